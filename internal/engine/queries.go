package engine

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/risk"
)

// Read-only surface. Queries take the read lock: they see only fully
// committed state, never the middle of a mutating operation.

// HealthFactor returns the user's current collateralization ratio.
func (e *Engine) HealthFactor(user uuid.UUID) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health.HealthFactor(user)
}

// AccountInfo returns the user's minted debt and total collateral value in
// USD.
func (e *Engine) AccountInfo(user uuid.UUID) (debtMinted, collateralUSD *uint256.Int, err error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health.AccountInfo(user)
}

// CollateralBalance returns the user's deposited amount of asset.
func (e *Engine) CollateralBalance(user uuid.UUID, asset string) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.collateral.Balance(user, asset)
}

// DebtOf returns the user's recorded minted debt.
func (e *Engine) DebtOf(user uuid.UUID) *uint256.Int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.debts.DebtOf(user)
}

// TotalCollateralValue returns the USD value of everything the user has
// deposited, at current prices.
func (e *Engine) TotalCollateralValue(user uuid.UUID) (*uint256.Int, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.health.CollateralValue(user)
}

// USDValue converts an asset amount to USD at the current feed price.
func (e *Engine) USDValue(asset string, amount *uint256.Int) (*uint256.Int, error) {
	return e.prices.USDValue(asset, amount)
}

// TokenAmountFromUSD converts a USD value to an asset amount at the current
// feed price.
func (e *Engine) TokenAmountFromUSD(asset string, usd *uint256.Int) (*uint256.Int, error) {
	return e.prices.TokenAmountFromUSD(asset, usd)
}

// SupportedAssets returns the collateral assets fixed at construction.
func (e *Engine) SupportedAssets() []string {
	return e.prices.Assets()
}

// MinHealthFactor returns the minimum acceptable ratio (1e18).
func (e *Engine) MinHealthFactor() *uint256.Int {
	return risk.MinHealthFactor.Clone()
}

// LiquidationThreshold returns the percentage of collateral value counted
// toward borrowing capacity.
func (e *Engine) LiquidationThreshold() uint64 {
	return risk.LiquidationThreshold
}

// Sequence returns the next sequence number the engine will assign.
func (e *Engine) Sequence() int64 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.sequence
}

// StateHash returns the current hash-chain tip.
func (e *Engine) StateHash() [32]byte {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.hasher.GetPrevHash()
}
