package debt

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/token"
)

// Sentinel failures from the external debt-token primitive. The engine maps
// these onto its caller-facing error taxonomy.
var (
	ErrMintRefused     = errors.New("debt token refused mint")
	ErrTransferRefused = errors.New("debt token refused transfer")
)

// Gateway tracks per-user minted-debt balances and coordinates with the
// external debt-token primitive. The internal table is authoritative for
// health-factor math; the token is the user-visible asset.
//
// No locking of its own; the engine serializes access.
type Gateway struct {
	minted  map[uuid.UUID]*uint256.Int
	token   token.DebtToken
	custody uuid.UUID
}

// NewGateway binds the gateway to the debt token and the engine's custody
// account (the account burns are funded through).
func NewGateway(tok token.DebtToken, custody uuid.UUID) *Gateway {
	return &Gateway{
		minted:  make(map[uuid.UUID]*uint256.Int),
		token:   tok,
		custody: custody,
	}
}

// DebtOf returns a copy of the user's recorded minted debt.
func (g *Gateway) DebtOf(user uuid.UUID) *uint256.Int {
	if d, ok := g.minted[user]; ok {
		return d.Clone()
	}
	return new(uint256.Int)
}

// Increase records amount of new debt against user.
func (g *Gateway) Increase(user uuid.UUID, amount *uint256.Int) {
	d, ok := g.minted[user]
	if !ok {
		d = new(uint256.Int)
		g.minted[user] = d
	}
	d.Add(d, amount)
}

// Decrease reduces the user's recorded debt. More debt than recorded cannot
// be burned: underflow is rejected with InsufficientDebtError before any
// mutation.
func (g *Gateway) Decrease(user uuid.UUID, amount *uint256.Int) error {
	d, ok := g.minted[user]
	if !ok || d.Lt(amount) {
		have := new(uint256.Int)
		if ok {
			have.Set(d)
		}
		return &InsufficientDebtError{User: user, Recorded: have, Requested: amount.Clone()}
	}
	d.Sub(d, amount)
	return nil
}

// Issue asks the debt-token primitive to mint amount to user. The recorded
// debt must already have been increased; the engine rolls that back if the
// primitive refuses.
func (g *Gateway) Issue(user uuid.UUID, amount *uint256.Int) error {
	if !g.token.Mint(user, amount) {
		return fmt.Errorf("issue %s to %s: %w", amount.Dec(), user, ErrMintRefused)
	}
	return nil
}

// Settle pulls amount of the debt token from payer into engine custody and
// destroys it. The pull fails on missing allowance or balance.
func (g *Gateway) Settle(payer uuid.UUID, amount *uint256.Int) error {
	if !g.token.TransferFrom(payer, g.custody, amount) {
		return fmt.Errorf("pull %s from %s: %w", amount.Dec(), payer, ErrTransferRefused)
	}
	if !g.token.Burn(amount) {
		// Custody just received the amount, so a refused burn means the
		// primitive itself is broken; surface it as a transfer fault.
		return fmt.Errorf("burn %s from custody: %w", amount.Dec(), ErrTransferRefused)
	}
	return nil
}

// Users returns all users with a recorded debt entry.
func (g *Gateway) Users() []uuid.UUID {
	users := make([]uuid.UUID, 0, len(g.minted))
	for u := range g.minted {
		users = append(users, u)
	}
	return users
}

// Snapshot returns a deep copy of the debt table.
func (g *Gateway) Snapshot() map[uuid.UUID]*uint256.Int {
	snap := make(map[uuid.UUID]*uint256.Int, len(g.minted))
	for u, d := range g.minted {
		snap[u] = d.Clone()
	}
	return snap
}

// Restore replaces the debt table with a previously taken snapshot.
func (g *Gateway) Restore(snap map[uuid.UUID]*uint256.Int) {
	restored := make(map[uuid.UUID]*uint256.Int, len(snap))
	for u, d := range snap {
		restored[u] = d.Clone()
	}
	g.minted = restored
}

// InsufficientDebtError is returned when a burn would exceed the recorded
// debt.
type InsufficientDebtError struct {
	User      uuid.UUID
	Recorded  *uint256.Int
	Requested *uint256.Int
}

func (e *InsufficientDebtError) Error() string {
	return fmt.Sprintf("insufficient debt: user=%s recorded=%s requested=%s",
		e.User, e.Recorded.Dec(), e.Requested.Dec())
}
