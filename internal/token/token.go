package token

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"
)

// The engine treats tokens as external collaborators with fungible-token
// semantics. A false result and a thrown failure are equivalent: both mean
// the transfer did not happen.

// CollateralToken is the contract required from each supported collateral
// asset. Transfer moves funds out of the caller's own custody; TransferFrom
// pulls from a third account subject to allowance.
type CollateralToken interface {
	Transfer(to uuid.UUID, amount *uint256.Int) bool
	TransferFrom(from, to uuid.UUID, amount *uint256.Int) bool
	BalanceOf(account uuid.UUID) *uint256.Int
}

// DebtToken is the contract required from the synthetic debt unit. Mint
// issues new units to an account; Burn destroys units held in the caller's
// own custody.
type DebtToken interface {
	CollateralToken
	Mint(to uuid.UUID, amount *uint256.Int) bool
	Burn(amount *uint256.Int) bool
	Approve(spender uuid.UUID, amount *uint256.Int) bool
}
