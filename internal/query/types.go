package query

import (
	"time"

	"github.com/google/uuid"
)

// Amounts are decimal strings (18-decimal fixed point), straight from the
// NUMERIC projection columns.

// CollateralBalanceResponse is a user's projected balance in one asset.
type CollateralBalanceResponse struct {
	UserID       uuid.UUID `json:"user_id"`
	Asset        string    `json:"asset"`
	Balance      string    `json:"balance"`
	AsOfSequence int64     `json:"as_of_sequence"`
}

// AccountOverviewResponse aggregates a user's projected state: every
// collateral balance plus the minted-debt scalar.
type AccountOverviewResponse struct {
	UserID       uuid.UUID         `json:"user_id"`
	Collateral   map[string]string `json:"collateral"`
	DebtMinted   string            `json:"debt_minted"`
	AsOfSequence int64             `json:"as_of_sequence"`
}

// LiquidationHistoryEntry is one completed liquidation.
type LiquidationHistoryEntry struct {
	Sequence          int64     `json:"sequence"`
	TargetUser        string    `json:"target_user"`
	Liquidator        string    `json:"liquidator"`
	Asset             string    `json:"asset"`
	DebtCovered       string    `json:"debt_covered"`
	CollateralSeized  string    `json:"collateral_seized"`
	Bonus             string    `json:"bonus"`
	StartHealthFactor string    `json:"start_health_factor"`
	EndHealthFactor   string    `json:"end_health_factor"`
	Timestamp         time.Time `json:"timestamp"`
}

// TransferHistoryEntry is one balance movement from the event log.
type TransferHistoryEntry struct {
	TransferID  string    `json:"transfer_id"`
	Sequence    int64     `json:"sequence"`
	Kind        string    `json:"kind"`
	FromAccount string    `json:"from_account"`
	ToAccount   string    `json:"to_account"`
	Asset       string    `json:"asset"`
	Amount      string    `json:"amount"`
	Timestamp   time.Time `json:"timestamp"`
}

// IntegrityReport is the result of an integrity verification check.
type IntegrityReport struct {
	IsHealthy        bool     `json:"is_healthy"`
	HashChainBreaks  []int64  `json:"hash_chain_breaks,omitempty"`
	NegativeBalances []string `json:"negative_balances,omitempty"`
}
