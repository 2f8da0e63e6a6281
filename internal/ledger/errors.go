package ledger

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// InsufficientBalanceError is returned by Debit when the requested amount
// exceeds the recorded balance. It carries both sides so callers can decide
// whether to retry with a smaller amount.
type InsufficientBalanceError struct {
	User      uuid.UUID
	Asset     string
	Available *uint256.Int
	Requested *uint256.Int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient collateral: user=%s asset=%s have=%s want=%s",
		e.User, e.Asset, e.Available.Dec(), e.Requested.Dec())
}
