package risk

import (
	"fmt"

	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/debt"
	"SynthVault/internal/ledger"
	fpmath "SynthVault/internal/math"
	"SynthVault/internal/oracle"
)

// Protocol risk parameters. LiquidationThreshold of 50 means only half of
// deposited collateral value counts toward borrowing capacity, i.e. 200%
// over-collateralization is required.
const (
	LiquidationThreshold = 50
	LiquidationPrecision = 100
	LiquidationBonus     = 10
)

var (
	// MinHealthFactor is 1.0 in 18-decimal fixed point.
	MinHealthFactor = uint256.NewInt(1_000_000_000_000_000_000)

	// MaxHealthFactor is the sentinel for accounts with zero minted debt:
	// the ratio is undefined by direct division, but zero debt can never
	// violate the invariant, so such accounts are reported as maximally
	// safe instead of trapping on the division.
	MaxHealthFactor = new(uint256.Int).SetAllOne()
)

// Calculator computes collateralization ratios. Pure reads: no method here
// mutates ledger or debt state.
type Calculator struct {
	ledger *ledger.Ledger
	debts  *debt.Gateway
	prices *oracle.Adapter
}

func NewCalculator(l *ledger.Ledger, g *debt.Gateway, prices *oracle.Adapter) *Calculator {
	return &Calculator{ledger: l, debts: g, prices: prices}
}

// CollateralValue sums the USD value of every supported asset the user has
// deposited. Prices are read fresh from the feeds on every call.
func (c *Calculator) CollateralValue(user uuid.UUID) (*uint256.Int, error) {
	total := new(uint256.Int)
	for _, asset := range c.prices.Assets() {
		bal := c.ledger.Balance(user, asset)
		if bal.IsZero() {
			continue
		}
		usd, err := c.prices.USDValue(asset, bal)
		if err != nil {
			return nil, fmt.Errorf("value %s collateral: %w", asset, err)
		}
		total.Add(total, usd)
	}
	return total, nil
}

// AccountInfo returns the user's minted debt and total collateral value in
// USD. Pure aggregation, no side effects.
func (c *Calculator) AccountInfo(user uuid.UUID) (debtMinted, collateralUSD *uint256.Int, err error) {
	collateralUSD, err = c.CollateralValue(user)
	if err != nil {
		return nil, nil, err
	}
	return c.debts.DebtOf(user), collateralUSD, nil
}

// HealthFactor returns the ratio of threshold-adjusted collateral value to
// minted debt, in 18-decimal fixed point. Zero debt returns the
// MaxHealthFactor sentinel.
func (c *Calculator) HealthFactor(user uuid.UUID) (*uint256.Int, error) {
	debtMinted, collateralUSD, err := c.AccountInfo(user)
	if err != nil {
		return nil, err
	}
	return healthFactor(debtMinted, collateralUSD), nil
}

func healthFactor(debtMinted, collateralUSD *uint256.Int) *uint256.Int {
	if debtMinted.IsZero() {
		return MaxHealthFactor.Clone()
	}

	adjusted := fpmath.MulDiv(collateralUSD,
		uint256.NewInt(LiquidationThreshold), uint256.NewInt(LiquidationPrecision))
	return fpmath.DivWad(adjusted, debtMinted)
}

// Assert fails with BreaksHealthFactorError when the user's ratio is below
// the minimum.
func (c *Calculator) Assert(user uuid.UUID) error {
	hf, err := c.HealthFactor(user)
	if err != nil {
		return err
	}
	if hf.Lt(MinHealthFactor) {
		return &BreaksHealthFactorError{User: user, HealthFactor: hf}
	}
	return nil
}

// BreaksHealthFactorError reports a post-mutation ratio below the minimum.
// It carries the computed ratio for diagnostics.
type BreaksHealthFactorError struct {
	User         uuid.UUID
	HealthFactor *uint256.Int
}

func (e *BreaksHealthFactorError) Error() string {
	return fmt.Sprintf("health factor broken: user=%s ratio=%s min=%s",
		e.User, e.HealthFactor.Dec(), MinHealthFactor.Dec())
}
