package ledger

import (
	"sort"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Ledger maintains in-memory per-user, per-asset collateral balances.
// Amounts are 18-decimal fixed point and never negative; a debit that
// would underflow is rejected before any mutation.
//
// The ledger has no locking of its own; the engine serializes access.
type Ledger struct {
	balances map[uuid.UUID]map[string]*uint256.Int
}

func New() *Ledger {
	return &Ledger{
		balances: make(map[uuid.UUID]map[string]*uint256.Int),
	}
}

// Credit increases balance[user][asset] by amount. Accounts are created
// implicitly on first credit.
func (l *Ledger) Credit(user uuid.UUID, asset string, amount *uint256.Int) {
	assets, ok := l.balances[user]
	if !ok {
		assets = make(map[string]*uint256.Int)
		l.balances[user] = assets
	}

	bal, ok := assets[asset]
	if !ok {
		bal = new(uint256.Int)
		assets[asset] = bal
	}
	bal.Add(bal, amount)
}

// Debit decreases balance[user][asset] by amount. Fails with
// InsufficientBalanceError when the recorded balance is smaller than the
// requested amount; the balance is left untouched in that case.
func (l *Ledger) Debit(user uuid.UUID, asset string, amount *uint256.Int) error {
	bal := l.lookup(user, asset)
	if bal == nil || bal.Lt(amount) {
		have := new(uint256.Int)
		if bal != nil {
			have.Set(bal)
		}
		return &InsufficientBalanceError{
			User:      user,
			Asset:     asset,
			Available: have,
			Requested: amount.Clone(),
		}
	}
	bal.Sub(bal, amount)
	return nil
}

// Balance returns a copy of balance[user][asset]; zero for unknown accounts.
func (l *Ledger) Balance(user uuid.UUID, asset string) *uint256.Int {
	if bal := l.lookup(user, asset); bal != nil {
		return bal.Clone()
	}
	return new(uint256.Int)
}

func (l *Ledger) lookup(user uuid.UUID, asset string) *uint256.Int {
	assets, ok := l.balances[user]
	if !ok {
		return nil
	}
	return assets[asset]
}

// Users returns all users with a recorded account, sorted by ID for
// deterministic iteration (state digests, snapshots).
func (l *Ledger) Users() []uuid.UUID {
	users := make([]uuid.UUID, 0, len(l.balances))
	for u := range l.balances {
		users = append(users, u)
	}
	sort.Slice(users, func(i, j int) bool {
		return users[i].String() < users[j].String()
	})
	return users
}

// Snapshot returns a deep copy of the balance table. Used both for
// whole-operation rollback and for persistence snapshots.
func (l *Ledger) Snapshot() map[uuid.UUID]map[string]*uint256.Int {
	snap := make(map[uuid.UUID]map[string]*uint256.Int, len(l.balances))
	for user, assets := range l.balances {
		copied := make(map[string]*uint256.Int, len(assets))
		for asset, bal := range assets {
			copied[asset] = bal.Clone()
		}
		snap[user] = copied
	}
	return snap
}

// Restore replaces the balance table with a previously taken snapshot.
func (l *Ledger) Restore(snap map[uuid.UUID]map[string]*uint256.Int) {
	restored := make(map[uuid.UUID]map[string]*uint256.Int, len(snap))
	for user, assets := range snap {
		copied := make(map[string]*uint256.Int, len(assets))
		for asset, bal := range assets {
			copied[asset] = bal.Clone()
		}
		restored[user] = copied
	}
	l.balances = restored
}
