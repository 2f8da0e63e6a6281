package event

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// Amounts are serialized as decimal strings in the event log; in memory
// they stay uint256.

type CollateralDeposited struct {
	User   uuid.UUID    `json:"user"`
	Asset  string       `json:"asset"`
	Amount *uint256.Int `json:"amount"`
}

func (e *CollateralDeposited) EventType() Type       { return TypeCollateralDeposited }
func (e *CollateralDeposited) Accounts() []uuid.UUID { return []uuid.UUID{e.User} }

// CollateralRedeemed covers both direct user redemption
// (RedeemedFrom == RedeemedTo) and liquidation seizure
// (RedeemedFrom = target, RedeemedTo = liquidator).
type CollateralRedeemed struct {
	RedeemedFrom uuid.UUID    `json:"redeemed_from"`
	RedeemedTo   uuid.UUID    `json:"redeemed_to"`
	Asset        string       `json:"asset"`
	Amount       *uint256.Int `json:"amount"`
}

func (e *CollateralRedeemed) EventType() Type { return TypeCollateralRedeemed }
func (e *CollateralRedeemed) Accounts() []uuid.UUID {
	if e.RedeemedFrom == e.RedeemedTo {
		return []uuid.UUID{e.RedeemedFrom}
	}
	return []uuid.UUID{e.RedeemedFrom, e.RedeemedTo}
}

type DebtMinted struct {
	User   uuid.UUID    `json:"user"`
	Amount *uint256.Int `json:"amount"`
}

func (e *DebtMinted) EventType() Type       { return TypeDebtMinted }
func (e *DebtMinted) Accounts() []uuid.UUID { return []uuid.UUID{e.User} }

// DebtBurned records a debt reduction for OnBehalfOf funded from Payer's
// token balance.
type DebtBurned struct {
	OnBehalfOf uuid.UUID    `json:"on_behalf_of"`
	Payer      uuid.UUID    `json:"payer"`
	Amount     *uint256.Int `json:"amount"`
}

func (e *DebtBurned) EventType() Type { return TypeDebtBurned }
func (e *DebtBurned) Accounts() []uuid.UUID {
	if e.OnBehalfOf == e.Payer {
		return []uuid.UUID{e.OnBehalfOf}
	}
	return []uuid.UUID{e.OnBehalfOf, e.Payer}
}

// Liquidation summarizes a completed forced rebalance: the component
// CollateralRedeemed and DebtBurned events carry the balance deltas, this
// one carries the protocol-level outcome.
type Liquidation struct {
	Target            uuid.UUID    `json:"target"`
	Liquidator        uuid.UUID    `json:"liquidator"`
	Asset             string       `json:"asset"`
	DebtCovered       *uint256.Int `json:"debt_covered"`
	CollateralSeized  *uint256.Int `json:"collateral_seized"`
	Bonus             *uint256.Int `json:"bonus"`
	StartHealthFactor *uint256.Int `json:"start_health_factor"`
	EndHealthFactor   *uint256.Int `json:"end_health_factor"`
}

func (e *Liquidation) EventType() Type { return TypeLiquidation }
func (e *Liquidation) Accounts() []uuid.UUID {
	return []uuid.UUID{e.Target, e.Liquidator}
}
