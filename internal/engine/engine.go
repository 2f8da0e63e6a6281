package engine

import (
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
	"github.com/rs/zerolog"

	"SynthVault/internal/debt"
	"SynthVault/internal/event"
	"SynthVault/internal/ledger"
	"SynthVault/internal/observability"
	"SynthVault/internal/oracle"
	"SynthVault/internal/risk"
	"SynthVault/internal/token"
)

// Output is what the engine emits per committed event: the typed payload
// plus its envelope in the hash chain.
type Output struct {
	Envelope *event.Envelope
	Payload  event.Event
}

// Options configures a new Engine. Assets, Feeds and Collateral are
// positional triples; construction fails on any length mismatch before any
// state is built.
type Options struct {
	Assets     []string
	Feeds      []oracle.PriceFeed
	Collateral []token.CollateralToken
	Debt       token.DebtToken

	// Custody is the account collateral is pulled into and debt burns are
	// funded through. Generated when left zero.
	Custody uuid.UUID

	StartSequence int64

	// PersistChan receives every committed event with a blocking send.
	// ProjectionChan receives the same events non-blocking, dropping on a
	// full buffer. Either may be nil.
	PersistChan    chan<- Output
	ProjectionChan chan<- Output

	Metrics *observability.Metrics
	Logger  zerolog.Logger

	// Clock stamps committed envelopes; defaults to time.Now.
	Clock func() time.Time
}

// Engine is the facade over ledger, oracle, risk and debt state. Each
// mutating operation runs to completion under the engine lock, committing
// all of its effects or none of them. A nested mutating call made while one
// is in flight (a token callback re-entering the engine) fails with
// ErrReentrantCall instead of interleaving.
type Engine struct {
	mu   sync.RWMutex
	busy atomic.Bool

	sequence int64
	hasher   *StateHasher

	collateral *ledger.Ledger
	debts      *debt.Gateway
	health     *risk.Calculator
	prices     *oracle.Adapter

	tokens  map[string]token.CollateralToken
	custody uuid.UUID

	persistChan    chan<- Output
	projectionChan chan<- Output
	metrics        *observability.Metrics
	log            zerolog.Logger
	clock          func() time.Time
}

// New validates the configuration and builds an engine. The asset and feed
// lists are checked first (mismatch fails before the asset registry
// exists), then each asset is bound to its collateral token.
func New(opts Options) (*Engine, error) {
	adapter, err := oracle.NewAdapter(opts.Assets, opts.Feeds)
	if err != nil {
		return nil, err
	}
	if len(opts.Assets) != len(opts.Collateral) {
		return nil, fmt.Errorf("engine: %d assets but %d collateral tokens", len(opts.Assets), len(opts.Collateral))
	}
	if opts.Debt == nil {
		return nil, fmt.Errorf("engine: debt token is required")
	}

	tokens := make(map[string]token.CollateralToken, len(opts.Assets))
	for i, asset := range opts.Assets {
		if opts.Collateral[i] == nil {
			return nil, fmt.Errorf("engine: nil collateral token for asset %q", asset)
		}
		tokens[asset] = opts.Collateral[i]
	}

	custody := opts.Custody
	if custody == uuid.Nil {
		custody = uuid.New()
	}

	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}

	l := ledger.New()
	g := debt.NewGateway(opts.Debt, custody)

	return &Engine{
		sequence:       opts.StartSequence,
		hasher:         NewStateHasher(),
		collateral:     l,
		debts:          g,
		health:         risk.NewCalculator(l, g, adapter),
		prices:         adapter,
		tokens:         tokens,
		custody:        custody,
		persistChan:    opts.PersistChan,
		projectionChan: opts.ProjectionChan,
		metrics:        opts.Metrics,
		log:            opts.Logger,
		clock:          clock,
	}, nil
}

// Custody returns the engine's custody account.
func (e *Engine) Custody() uuid.UUID {
	return e.custody
}

// acquire takes the engine for a mutating operation. The busy flag is
// checked before the mutex: a nested call from a token callback runs on the
// goroutine that already holds the lock, so it must fail fast rather than
// deadlock on mu.
func (e *Engine) acquire() error {
	if !e.busy.CompareAndSwap(false, true) {
		return ErrReentrantCall
	}
	e.mu.Lock()
	return nil
}

func (e *Engine) release() {
	e.mu.Unlock()
	e.busy.Store(false)
}

// checkpoint captures the mutable state touched by operations. Restoring
// it undoes every ledger and debt mutation made since.
type checkpoint struct {
	balances map[uuid.UUID]map[string]*uint256.Int
	debts    map[uuid.UUID]*uint256.Int
}

func (e *Engine) checkpoint() checkpoint {
	return checkpoint{
		balances: e.collateral.Snapshot(),
		debts:    e.debts.Snapshot(),
	}
}

func (e *Engine) rollback(cp checkpoint) {
	e.collateral.Restore(cp.balances)
	e.debts.Restore(cp.debts)
}

// reject counts a rejected operation and passes the error through.
func (e *Engine) reject(op, reason string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(op, reason).Inc()
	}
	return err
}

// commit assigns sequences, extends the hash chain and emits every event of
// a successful operation. Runs only after all mutations and checks passed;
// nothing here can fail the operation.
//
// Each envelope's StateHash digests the state after that event ALONE, which
// is what Replay recomputes event by event. The operation's direct mutations
// left the state at its final form, so commit rewinds to the operation's
// checkpoint and re-applies the deltas one event at a time, hashing between
// steps. The re-applied deltas land on the same final state.
func (e *Engine) commit(op string, user uuid.UUID, start time.Time, cp checkpoint, events ...event.Event) {
	now := e.clock()

	e.rollback(cp)
	for _, evt := range events {
		seq := e.sequence

		if err := e.apply(evt); err != nil {
			// The deltas already applied once from this exact base state.
			panic(fmt.Sprintf("commit: re-apply %T at seq %d: %v", evt, seq, err))
		}

		hashStart := time.Now()
		digest := e.stateDigest(evt.Accounts())
		prev := e.hasher.GetPrevHash()
		hash := e.hasher.ComputeHash(seq, digest)
		if e.metrics != nil {
			e.metrics.StateHashDur.Observe(time.Since(hashStart).Seconds())
		}

		out := Output{
			Envelope: &event.Envelope{
				Sequence:  seq,
				Type:      evt.EventType(),
				User:      user,
				Timestamp: now,
				StateHash: hash,
				PrevHash:  prev,
			},
			Payload: evt,
		}

		// Persistence: blocking send, no committed event may be lost.
		if e.persistChan != nil {
			e.persistChan <- out
		}

		// Projections: non-blocking, they rebuild from the event log when
		// they fall behind.
		if e.projectionChan != nil {
			select {
			case e.projectionChan <- out:
			default:
				if e.metrics != nil {
					e.metrics.ProjectionDrops.Inc()
				}
			}
		}

		e.sequence++
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(op).Inc()
		e.metrics.OpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
		e.metrics.EngineSequence.Set(float64(e.sequence))
	}

	e.log.Info().
		Str("op", op).
		Str("user", user.String()).
		Int64("sequence", e.sequence-1).
		Msg("operation committed")
}

// apply mutates in-memory state with the delta a single committed event
// carries. Shared between commit and Replay so both sides of the hash chain
// walk identical state transitions.
func (e *Engine) apply(payload event.Event) error {
	switch evt := payload.(type) {
	case *event.CollateralDeposited:
		e.collateral.Credit(evt.User, evt.Asset, evt.Amount)
	case *event.CollateralRedeemed:
		return e.collateral.Debit(evt.RedeemedFrom, evt.Asset, evt.Amount)
	case *event.DebtMinted:
		e.debts.Increase(evt.User, evt.Amount)
	case *event.DebtBurned:
		return e.debts.Decrease(evt.OnBehalfOf, evt.Amount)
	case *event.Liquidation:
		// Summary event: the paired CollateralRedeemed and DebtBurned events
		// carry the balance deltas.
	default:
		return fmt.Errorf("unknown payload %T", payload)
	}
	return nil
}

// stateDigest builds the canonical byte representation of every account an
// event touched: user ID, debt scalar, then each asset balance in registry
// order. Accounts are sorted so the digest is deterministic.
func (e *Engine) stateDigest(accounts []uuid.UUID) []byte {
	sorted := make([]uuid.UUID, len(accounts))
	copy(sorted, accounts)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].String() < sorted[j].String()
	})

	assets := e.prices.Assets()
	digest := make([]byte, 0, len(sorted)*(16+32+32*len(assets)))

	for _, user := range sorted {
		digest = append(digest, user[:]...)

		d := e.debts.DebtOf(user).Bytes32()
		digest = append(digest, d[:]...)

		for _, asset := range assets {
			b := e.collateral.Balance(user, asset).Bytes32()
			digest = append(digest, b[:]...)
		}
	}

	return digest
}

// allowed checks the asset against the registry fixed at construction.
func (e *Engine) allowed(asset string) error {
	if !e.prices.Supported(asset) {
		return &TokenNotAllowedError{Asset: asset}
	}
	return nil
}
