package projection

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"SynthVault/internal/observability"
)

// Update mirrors the projection-relevant slice of engine.Output. The
// orchestrator (cmd/synthvault) bridges between the two.
type Update struct {
	Sequence  int64
	EventType string
	Timestamp time.Time

	Deltas      []BalanceDelta
	Liquidation *LiquidationRecord
}

// BalanceDelta is one signed balance movement. Amount is a signed decimal
// string; Postgres NUMERIC arithmetic applies it without precision loss.
type BalanceDelta struct {
	User   string
	Kind   string // "collateral" or "debt"
	Asset  string // empty for debt deltas
	Amount string
}

const (
	DeltaCollateral = "collateral"
	DeltaDebt       = "debt"
)

// LiquidationRecord is a completed liquidation for the history projection.
type LiquidationRecord struct {
	Target            string
	Liquidator        string
	Asset             string
	DebtCovered       string
	CollateralSeized  string
	Bonus             string
	StartHealthFactor string
	EndHealthFactor   string
}

// Worker updates projection tables from committed events. The projection
// channel is non-blocking with drop; when projections fall behind they are
// rebuilt from the event log.
type Worker struct {
	db        *sql.DB
	inputChan <-chan Update
	lastSeq   int64
	metrics   *observability.Metrics
	log       zerolog.Logger
}

func NewWorker(db *sql.DB, inputChan <-chan Update, metrics *observability.Metrics, log zerolog.Logger) *Worker {
	return &Worker{
		db:        db,
		inputChan: inputChan,
		metrics:   metrics,
		log:       log,
	}
}

// Run starts the projection worker loop.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case update, ok := <-w.inputChan:
			if !ok {
				return nil
			}

			start := time.Now()
			if err := w.apply(ctx, update); err != nil {
				// Projections are eventually consistent; a failed update is
				// recovered by a rebuild, not by stalling the engine.
				w.log.Warn().Err(err).Int64("sequence", update.Sequence).Msg("projection update failed")
				continue
			}

			w.lastSeq = update.Sequence
			if w.metrics != nil {
				w.metrics.ProjectionUpdateDur.WithLabelValues("balances").Observe(time.Since(start).Seconds())
				w.metrics.ProjectionLastSeq.Set(float64(update.Sequence))
			}
		}
	}
}

func (w *Worker) apply(ctx context.Context, update Update) error {
	tx, err := w.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, d := range update.Deltas {
		if err := w.applyDelta(ctx, tx, update.Sequence, d); err != nil {
			return fmt.Errorf("balance projection: %w", err)
		}
	}

	if update.Liquidation != nil {
		if err := w.insertLiquidation(ctx, tx, update); err != nil {
			return fmt.Errorf("liquidation history: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		VALUES ('main', $1, NOW())
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = $1, updated_at = NOW()
	`, update.Sequence); err != nil {
		return fmt.Errorf("watermark update: %w", err)
	}

	return tx.Commit()
}

func (w *Worker) applyDelta(ctx context.Context, tx *sql.Tx, seq int64, d BalanceDelta) error {
	switch d.Kind {
	case DeltaCollateral:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.collateral_balances (user_id, asset, balance, last_sequence)
			VALUES ($1, $2, $3::numeric, $4)
			ON CONFLICT (user_id, asset)
			DO UPDATE SET balance = projections.collateral_balances.balance + $3::numeric, last_sequence = $4
		`, d.User, d.Asset, d.Amount, seq)
		return err

	case DeltaDebt:
		_, err := tx.ExecContext(ctx, `
			INSERT INTO projections.debt_balances (user_id, balance, last_sequence)
			VALUES ($1, $2::numeric, $3)
			ON CONFLICT (user_id)
			DO UPDATE SET balance = projections.debt_balances.balance + $2::numeric, last_sequence = $3
		`, d.User, d.Amount, seq)
		return err

	default:
		return fmt.Errorf("unknown delta kind %q", d.Kind)
	}
}

func (w *Worker) insertLiquidation(ctx context.Context, tx *sql.Tx, update Update) error {
	l := update.Liquidation
	_, err := tx.ExecContext(ctx, `
		INSERT INTO projections.liquidation_history
			(sequence, target_user, liquidator, asset, debt_covered, collateral_seized,
			 bonus, start_health_factor, end_health_factor, timestamp)
		VALUES ($1, $2, $3, $4, $5::numeric, $6::numeric, $7::numeric, $8::numeric, $9::numeric, $10)
		ON CONFLICT (sequence) DO NOTHING
	`, update.Sequence, l.Target, l.Liquidator, l.Asset, l.DebtCovered,
		l.CollateralSeized, l.Bonus, l.StartHealthFactor, l.EndHealthFactor, update.Timestamp)
	return err
}

// Rebuild reconstructs all projection tables from the event log. Collateral
// and debt balances come from event_log.transfers; liquidation history from
// the stored Liquidation payloads.
func Rebuild(ctx context.Context, db *sql.DB, log zerolog.Logger) error {
	truncateStatements := []string{
		`TRUNCATE projections.collateral_balances`,
		`TRUNCATE projections.debt_balances`,
		`TRUNCATE projections.liquidation_history`,
		`DELETE FROM projections.watermark WHERE worker_id = 'main'`,
	}

	for _, stmt := range truncateStatements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("truncate failed: %w", err)
		}
	}

	// Deposits credit the vault balance of to_account.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.collateral_balances (user_id, asset, balance, last_sequence)
		SELECT to_account, asset, SUM(amount), MAX(sequence)
		FROM event_log.transfers
		WHERE kind = 'deposit'
		GROUP BY to_account, asset
	`); err != nil {
		return fmt.Errorf("rebuild deposits: %w", err)
	}

	// Redemptions and seizures debit the vault balance of from_account.
	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.collateral_balances (user_id, asset, balance, last_sequence)
		SELECT from_account, asset, -SUM(amount), MAX(sequence)
		FROM event_log.transfers
		WHERE kind IN ('redeem', 'seize')
		GROUP BY from_account, asset
		ON CONFLICT (user_id, asset) DO UPDATE
			SET balance = projections.collateral_balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.collateral_balances.last_sequence, EXCLUDED.last_sequence)
	`); err != nil {
		return fmt.Errorf("rebuild redemptions: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.debt_balances (user_id, balance, last_sequence)
		SELECT to_account, SUM(amount), MAX(sequence)
		FROM event_log.transfers
		WHERE kind = 'mint'
		GROUP BY to_account
	`); err != nil {
		return fmt.Errorf("rebuild mints: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.debt_balances (user_id, balance, last_sequence)
		SELECT from_account, -SUM(amount), MAX(sequence)
		FROM event_log.transfers
		WHERE kind = 'burn'
		GROUP BY from_account
		ON CONFLICT (user_id) DO UPDATE
			SET balance = projections.debt_balances.balance + EXCLUDED.balance,
			    last_sequence = GREATEST(projections.debt_balances.last_sequence, EXCLUDED.last_sequence)
	`); err != nil {
		return fmt.Errorf("rebuild burns: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.liquidation_history
			(sequence, target_user, liquidator, asset, debt_covered, collateral_seized,
			 bonus, start_health_factor, end_health_factor, timestamp)
		SELECT sequence,
		       payload->>'target',
		       payload->>'liquidator',
		       payload->>'asset',
		       (payload->>'debt_covered')::numeric,
		       (payload->>'collateral_seized')::numeric,
		       (payload->>'bonus')::numeric,
		       (payload->>'start_health_factor')::numeric,
		       (payload->>'end_health_factor')::numeric,
		       timestamp
		FROM event_log.events
		WHERE event_type = 'Liquidation'
		ON CONFLICT (sequence) DO NOTHING
	`); err != nil {
		return fmt.Errorf("rebuild liquidation history: %w", err)
	}

	if _, err := db.ExecContext(ctx, `
		INSERT INTO projections.watermark (worker_id, last_sequence, updated_at)
		SELECT 'main', COALESCE(MAX(sequence), 0), NOW() FROM event_log.events
		ON CONFLICT (worker_id) DO UPDATE SET last_sequence = EXCLUDED.last_sequence, updated_at = NOW()
	`); err != nil {
		return fmt.Errorf("rebuild watermark: %w", err)
	}

	log.Info().Msg("projection rebuild complete")
	return nil
}
