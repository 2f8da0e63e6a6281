package event

import (
	"time"

	"github.com/google/uuid"
)

// Type discriminator for event payloads
type Type int32

const (
	TypeUnknown Type = iota
	TypeCollateralDeposited
	TypeCollateralRedeemed
	TypeDebtMinted
	TypeDebtBurned
	TypeLiquidation
)

// Envelope wraps every committed event in the log
type Envelope struct {
	// Global monotonic sequence assigned by the engine
	Sequence int64

	// Event type discriminator
	Type Type

	// User whose action produced the event
	User uuid.UUID

	// Commit timestamp
	Timestamp time.Time

	// SHA-256 of engine state AFTER applying this event
	StateHash [32]byte

	// Previous event's state hash (chain integrity)
	PrevHash [32]byte
}

// Event is the interface all event payloads implement.
type Event interface {
	// EventType returns the discriminator
	EventType() Type

	// Accounts returns every user whose state the event touched, for
	// state-digest computation
	Accounts() []uuid.UUID
}

func (t Type) String() string {
	switch t {
	case TypeCollateralDeposited:
		return "CollateralDeposited"
	case TypeCollateralRedeemed:
		return "CollateralRedeemed"
	case TypeDebtMinted:
		return "DebtMinted"
	case TypeDebtBurned:
		return "DebtBurned"
	case TypeLiquidation:
		return "Liquidation"
	default:
		return "Unknown"
	}
}
