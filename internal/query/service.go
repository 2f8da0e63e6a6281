package query

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
)

// Service provides read-only access to projection tables. Every response
// carries as_of_sequence so callers can reason about freshness relative to
// the engine's live sequence.
type Service struct {
	db *sql.DB
}

func NewService(db *sql.DB) *Service {
	return &Service{db: db}
}

// GetCollateralBalance returns a user's projected balance for one asset.
func (s *Service) GetCollateralBalance(ctx context.Context, userID uuid.UUID, asset string) (*CollateralBalanceResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	var balance string
	err = s.db.QueryRowContext(ctx, `
		SELECT balance::text FROM projections.collateral_balances
		WHERE user_id = $1 AND asset = $2
	`, userID.String(), asset).Scan(&balance)
	if err == sql.ErrNoRows {
		balance = "0"
	} else if err != nil {
		return nil, err
	}

	return &CollateralBalanceResponse{
		UserID:       userID,
		Asset:        asset,
		Balance:      balance,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetAccountOverview returns all projected collateral balances plus the
// minted-debt scalar for a user.
func (s *Service) GetAccountOverview(ctx context.Context, userID uuid.UUID) (*AccountOverviewResponse, error) {
	asOfSeq, err := s.getWatermark(ctx)
	if err != nil {
		return nil, fmt.Errorf("watermark: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT asset, balance::text FROM projections.collateral_balances
		WHERE user_id = $1
		ORDER BY asset
	`, userID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	collateral := make(map[string]string)
	for rows.Next() {
		var asset, balance string
		if err := rows.Scan(&asset, &balance); err != nil {
			return nil, err
		}
		collateral[asset] = balance
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var debt string
	err = s.db.QueryRowContext(ctx, `
		SELECT balance::text FROM projections.debt_balances WHERE user_id = $1
	`, userID.String()).Scan(&debt)
	if err == sql.ErrNoRows {
		debt = "0"
	} else if err != nil {
		return nil, err
	}

	return &AccountOverviewResponse{
		UserID:       userID,
		Collateral:   collateral,
		DebtMinted:   debt,
		AsOfSequence: asOfSeq,
	}, nil
}

// GetLiquidationHistory returns completed liquidations where the user was
// target or liquidator, newest first, with cursor pagination.
func (s *Service) GetLiquidationHistory(ctx context.Context, userID uuid.UUID, limit int, beforeSequence *int64) ([]LiquidationHistoryEntry, error) {
	query := `
		SELECT sequence, target_user, liquidator, asset, debt_covered::text,
		       collateral_seized::text, bonus::text, start_health_factor::text,
		       end_health_factor::text, timestamp
		FROM projections.liquidation_history
		WHERE (target_user = $1 OR liquidator = $1)
	`
	args := []interface{}{userID.String()}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []LiquidationHistoryEntry
	for rows.Next() {
		var e LiquidationHistoryEntry
		if err := rows.Scan(
			&e.Sequence, &e.TargetUser, &e.Liquidator, &e.Asset, &e.DebtCovered,
			&e.CollateralSeized, &e.Bonus, &e.StartHealthFactor, &e.EndHealthFactor,
			&e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// GetTransferHistory returns balance movements involving a user, newest
// first, with cursor pagination.
func (s *Service) GetTransferHistory(ctx context.Context, userID uuid.UUID, limit int, beforeSequence *int64) ([]TransferHistoryEntry, error) {
	query := `
		SELECT transfer_id, sequence, kind, from_account, to_account, asset, amount::text, timestamp
		FROM event_log.transfers
		WHERE (from_account = $1 OR to_account = $1)
	`
	args := []interface{}{userID.String()}
	argIdx := 2

	if beforeSequence != nil {
		query += fmt.Sprintf(" AND sequence < $%d", argIdx)
		args = append(args, *beforeSequence)
		argIdx++
	}

	query += " ORDER BY sequence DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []TransferHistoryEntry
	for rows.Next() {
		var e TransferHistoryEntry
		if err := rows.Scan(
			&e.TransferID, &e.Sequence, &e.Kind, &e.FromAccount, &e.ToAccount,
			&e.Asset, &e.Amount, &e.Timestamp,
		); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// --- Admin APIs ---

// VerifyIntegrity checks hash-chain continuity in the event log and scans
// the balance projections for negative values.
func (s *Service) VerifyIntegrity(ctx context.Context) (*IntegrityReport, error) {
	report := &IntegrityReport{}

	rows, err := s.db.QueryContext(ctx, `
		SELECT e1.sequence
		FROM event_log.events e1
		JOIN event_log.events e2 ON e2.sequence = e1.sequence - 1
		WHERE e1.prev_hash != e2.state_hash
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var seq int64
		if err := rows.Scan(&seq); err != nil {
			return nil, err
		}
		report.HashChainBreaks = append(report.HashChainBreaks, seq)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Vault balances can never go negative; a negative projection row means
	// the projection diverged and needs a rebuild.
	negRows, err := s.db.QueryContext(ctx, `
		SELECT user_id || ':' || asset FROM projections.collateral_balances WHERE balance < 0
		UNION ALL
		SELECT user_id || ':debt' FROM projections.debt_balances WHERE balance < 0
		LIMIT 10
	`)
	if err != nil {
		return nil, err
	}
	defer negRows.Close()

	for negRows.Next() {
		var key string
		if err := negRows.Scan(&key); err != nil {
			return nil, err
		}
		report.NegativeBalances = append(report.NegativeBalances, key)
	}
	if err := negRows.Err(); err != nil {
		return nil, err
	}

	report.IsHealthy = len(report.HashChainBreaks) == 0 && len(report.NegativeBalances) == 0
	return report, nil
}

// --- helpers ---

func (s *Service) getWatermark(ctx context.Context) (int64, error) {
	var seq int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(last_sequence, 0) FROM projections.watermark WHERE worker_id = 'main'
	`).Scan(&seq)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	return seq, err
}
