package engine

import (
	"github.com/google/uuid"
	"github.com/holiman/uint256"

	"SynthVault/internal/event"
	fpmath "SynthVault/internal/math"
	"SynthVault/internal/risk"
)

// Operation names for metrics and logs.
const (
	opDeposit        = "deposit_collateral"
	opMint           = "mint_debt"
	opDepositAndMint = "deposit_and_mint"
	opRedeem         = "redeem_collateral"
	opRedeemForDebt  = "redeem_for_debt"
	opBurn           = "burn_debt"
	opLiquidate      = "liquidate"
)

// debtLabel names the debt token in transfer errors, which otherwise carry
// a collateral asset.
const debtLabel = "debt"

// Operations are all-or-nothing. Internal state (ledger, debt table) is
// covered by checkpoint/rollback; token movements cannot be rolled back, so
// every operation orders its internal mutations and health checks BEFORE
// any token call that hands value out. The only token calls that can fail
// mid-operation are then pulls into custody, which leave the caller's
// wallet untouched on failure.

// DepositCollateral credits amount of asset to user's ledger balance and
// pulls the tokens into engine custody. No health check: adding collateral
// can only improve the ratio.
func (e *Engine) DepositCollateral(user uuid.UUID, asset string, amount *uint256.Int) error {
	start := e.clock()
	if amount == nil || amount.IsZero() {
		return e.reject(opDeposit, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.allowed(asset); err != nil {
		return e.reject(opDeposit, "token_not_allowed", err)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opDeposit, "reentrant", err)
	}
	defer e.release()

	cp := e.checkpoint()
	e.collateral.Credit(user, asset, amount)
	if !e.tokens[asset].TransferFrom(user, e.custody, amount) {
		e.rollback(cp)
		return e.reject(opDeposit, "transfer_failed", &TransferFailedError{Asset: asset})
	}

	e.commit(opDeposit, user, start, cp,
		&event.CollateralDeposited{User: user, Asset: asset, Amount: amount.Clone()})
	return nil
}

// MintDebt records amount of new debt against user and issues the debt
// token. The health check runs after the tentative increase, so it reflects
// the post-mint state; any failure rolls the increase back.
func (e *Engine) MintDebt(user uuid.UUID, amount *uint256.Int) error {
	start := e.clock()
	if amount == nil || amount.IsZero() {
		return e.reject(opMint, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opMint, "reentrant", err)
	}
	defer e.release()

	cp := e.checkpoint()
	if err := e.mintLocked(user, amount); err != nil {
		e.rollback(cp)
		return e.reject(opMint, mintReason(err), err)
	}

	e.commit(opMint, user, start, cp,
		&event.DebtMinted{User: user, Amount: amount.Clone()})
	return nil
}

// DepositCollateralAndMintDebt composes deposit and mint into one atomic
// operation: a failure in either leg undoes both. The deposit pull happens
// first, so a failed mint leg pushes the pulled collateral back.
func (e *Engine) DepositCollateralAndMintDebt(user uuid.UUID, asset string, amountCollateral, amountDebt *uint256.Int) error {
	start := e.clock()
	if amountCollateral == nil || amountCollateral.IsZero() || amountDebt == nil || amountDebt.IsZero() {
		return e.reject(opDepositAndMint, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.allowed(asset); err != nil {
		return e.reject(opDepositAndMint, "token_not_allowed", err)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opDepositAndMint, "reentrant", err)
	}
	defer e.release()

	cp := e.checkpoint()
	e.collateral.Credit(user, asset, amountCollateral)
	if !e.tokens[asset].TransferFrom(user, e.custody, amountCollateral) {
		e.rollback(cp)
		return e.reject(opDepositAndMint, "transfer_failed", &TransferFailedError{Asset: asset})
	}
	if err := e.mintLocked(user, amountDebt); err != nil {
		e.rollback(cp)
		e.refund(user, asset, amountCollateral)
		return e.reject(opDepositAndMint, mintReason(err), err)
	}

	e.commit(opDepositAndMint, user, start, cp,
		&event.CollateralDeposited{User: user, Asset: asset, Amount: amountCollateral.Clone()},
		&event.DebtMinted{User: user, Amount: amountDebt.Clone()})
	return nil
}

// RedeemCollateral debits amount of asset from user's ledger balance and
// pushes the tokens back to the user. The health check runs on the debited
// state, before any tokens leave custody.
func (e *Engine) RedeemCollateral(user uuid.UUID, asset string, amount *uint256.Int) error {
	start := e.clock()
	if amount == nil || amount.IsZero() {
		return e.reject(opRedeem, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.allowed(asset); err != nil {
		return e.reject(opRedeem, "token_not_allowed", err)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opRedeem, "reentrant", err)
	}
	defer e.release()

	cp := e.checkpoint()
	if err := e.collateral.Debit(user, asset, amount); err != nil {
		e.rollback(cp)
		return e.reject(opRedeem, "insufficient_balance", err)
	}
	if err := e.health.Assert(user); err != nil {
		e.rollback(cp)
		return e.reject(opRedeem, "health_factor", err)
	}
	if !e.tokens[asset].Transfer(user, amount) {
		e.rollback(cp)
		return e.reject(opRedeem, "transfer_failed", &TransferFailedError{Asset: asset})
	}

	e.commit(opRedeem, user, start, cp,
		&event.CollateralRedeemed{RedeemedFrom: user, RedeemedTo: user, Asset: asset, Amount: amount.Clone()})
	return nil
}

// RedeemCollateralForDebt burns debt and redeems collateral atomically.
// The debt reduction is recorded first so the health check sees the final
// state; token movements follow only once every check has passed.
func (e *Engine) RedeemCollateralForDebt(user uuid.UUID, asset string, amountCollateral, amountDebt *uint256.Int) error {
	start := e.clock()
	if amountCollateral == nil || amountCollateral.IsZero() || amountDebt == nil || amountDebt.IsZero() {
		return e.reject(opRedeemForDebt, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.allowed(asset); err != nil {
		return e.reject(opRedeemForDebt, "token_not_allowed", err)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opRedeemForDebt, "reentrant", err)
	}
	defer e.release()

	cp := e.checkpoint()
	if err := e.debts.Decrease(user, amountDebt); err != nil {
		e.rollback(cp)
		return e.reject(opRedeemForDebt, "insufficient_debt", err)
	}
	if err := e.collateral.Debit(user, asset, amountCollateral); err != nil {
		e.rollback(cp)
		return e.reject(opRedeemForDebt, "insufficient_balance", err)
	}
	if err := e.health.Assert(user); err != nil {
		e.rollback(cp)
		return e.reject(opRedeemForDebt, "health_factor", err)
	}
	if err := e.debts.Settle(user, amountDebt); err != nil {
		e.rollback(cp)
		return e.reject(opRedeemForDebt, "transfer_failed", &TransferFailedError{Asset: debtLabel, Cause: err})
	}
	if !e.tokens[asset].Transfer(user, amountCollateral) {
		e.rollback(cp)
		e.reissue(user, amountDebt)
		return e.reject(opRedeemForDebt, "transfer_failed", &TransferFailedError{Asset: asset})
	}

	e.commit(opRedeemForDebt, user, start, cp,
		&event.DebtBurned{OnBehalfOf: user, Payer: user, Amount: amountDebt.Clone()},
		&event.CollateralRedeemed{RedeemedFrom: user, RedeemedTo: user, Asset: asset, Amount: amountCollateral.Clone()})
	return nil
}

// BurnDebt reduces user's recorded debt, funded from their own debt-token
// balance. Burning can only improve the ratio; the assert is kept for
// uniformity with the other mutating paths.
func (e *Engine) BurnDebt(user uuid.UUID, amount *uint256.Int) error {
	start := e.clock()
	if amount == nil || amount.IsZero() {
		return e.reject(opBurn, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opBurn, "reentrant", err)
	}
	defer e.release()

	cp := e.checkpoint()
	if err := e.debts.Decrease(user, amount); err != nil {
		e.rollback(cp)
		return e.reject(opBurn, "insufficient_debt", err)
	}
	if err := e.health.Assert(user); err != nil {
		e.rollback(cp)
		return e.reject(opBurn, "health_factor", err)
	}
	if err := e.debts.Settle(user, amount); err != nil {
		e.rollback(cp)
		return e.reject(opBurn, "transfer_failed", &TransferFailedError{Asset: debtLabel, Cause: err})
	}

	e.commit(opBurn, user, start, cp,
		&event.DebtBurned{OnBehalfOf: user, Payer: user, Amount: amount.Clone()})
	return nil
}

// Liquidate forcibly rebalances an unsafe target. The liquidator covers
// debtToCover (USD-denominated) of the target's debt from their own
// debt-token balance and receives the equivalent collateral plus a 10%
// bonus, seized from the target's deposits. Refused outright when the
// target is healthy, and rolled back in full when the rebalance fails to
// lift the target above the minimum.
func (e *Engine) Liquidate(liquidator, target uuid.UUID, asset string, debtToCover *uint256.Int) error {
	start := e.clock()
	if debtToCover == nil || debtToCover.IsZero() {
		return e.reject(opLiquidate, "zero_amount", ErrNeedsMoreThanZero)
	}
	if err := e.allowed(asset); err != nil {
		return e.reject(opLiquidate, "token_not_allowed", err)
	}
	if err := e.acquire(); err != nil {
		return e.reject(opLiquidate, "reentrant", err)
	}
	defer e.release()

	startHF, err := e.health.HealthFactor(target)
	if err != nil {
		return e.reject(opLiquidate, "oracle", err)
	}
	if !startHF.Lt(risk.MinHealthFactor) {
		if e.metrics != nil {
			e.metrics.LiquidationsRefused.WithLabelValues("healthy_target").Inc()
		}
		return e.reject(opLiquidate, "healthy_target", &HealthFactorOkayError{HealthFactor: startHF})
	}

	tokenAmount, err := e.prices.TokenAmountFromUSD(asset, debtToCover)
	if err != nil {
		return e.reject(opLiquidate, "oracle", err)
	}
	bonus := fpmath.Percent(tokenAmount, risk.LiquidationBonus)
	seized := new(uint256.Int).Add(tokenAmount, bonus)

	cp := e.checkpoint()

	// Seizure cannot exceed what the target actually deposited; the ledger
	// underflow check enforces that. Over-covering fails the same way on the
	// debt table.
	if err := e.collateral.Debit(target, asset, seized); err != nil {
		e.rollback(cp)
		return e.reject(opLiquidate, "insufficient_balance", err)
	}
	if err := e.debts.Decrease(target, debtToCover); err != nil {
		e.rollback(cp)
		return e.reject(opLiquidate, "insufficient_debt", err)
	}

	endHF, err := e.health.HealthFactor(target)
	if err != nil {
		e.rollback(cp)
		return e.reject(opLiquidate, "oracle", err)
	}
	if !endHF.Gt(risk.MinHealthFactor) {
		e.rollback(cp)
		if e.metrics != nil {
			e.metrics.LiquidationsRefused.WithLabelValues("not_improved").Inc()
		}
		return e.reject(opLiquidate, "not_improved", &HealthFactorNotImprovedError{HealthFactor: endHF})
	}
	if err := e.health.Assert(liquidator); err != nil {
		e.rollback(cp)
		return e.reject(opLiquidate, "health_factor", err)
	}

	// All checks passed; token movements last. The settle pull leaves the
	// liquidator's wallet untouched when it fails.
	if err := e.debts.Settle(liquidator, debtToCover); err != nil {
		e.rollback(cp)
		return e.reject(opLiquidate, "transfer_failed", &TransferFailedError{Asset: debtLabel, Cause: err})
	}
	if !e.tokens[asset].Transfer(liquidator, seized) {
		e.rollback(cp)
		e.reissue(liquidator, debtToCover)
		return e.reject(opLiquidate, "transfer_failed", &TransferFailedError{Asset: asset})
	}

	if e.metrics != nil {
		e.metrics.LiquidationsExecuted.Inc()
	}
	e.commit(opLiquidate, liquidator, start, cp,
		&event.CollateralRedeemed{RedeemedFrom: target, RedeemedTo: liquidator, Asset: asset, Amount: seized.Clone()},
		&event.DebtBurned{OnBehalfOf: target, Payer: liquidator, Amount: debtToCover.Clone()},
		&event.Liquidation{
			Target:            target,
			Liquidator:        liquidator,
			Asset:             asset,
			DebtCovered:       debtToCover.Clone(),
			CollateralSeized:  seized.Clone(),
			Bonus:             bonus.Clone(),
			StartHealthFactor: startHF,
			EndHealthFactor:   endHF,
		})
	return nil
}

// --- locked building blocks (engine lock held, rollback handled by caller) ---

func (e *Engine) mintLocked(user uuid.UUID, amount *uint256.Int) error {
	e.debts.Increase(user, amount)
	if err := e.health.Assert(user); err != nil {
		return err
	}
	if err := e.debts.Issue(user, amount); err != nil {
		return &MintFailedError{Cause: err}
	}
	return nil
}

// refund pushes previously pulled collateral back to the user after a later
// leg of a composed operation failed. Best effort: custody holds the tokens,
// so a refused push means the token primitive itself is faulty.
func (e *Engine) refund(user uuid.UUID, asset string, amount *uint256.Int) {
	if !e.tokens[asset].Transfer(user, amount) {
		e.log.Error().
			Str("user", user.String()).
			Str("asset", asset).
			Str("amount", amount.Dec()).
			Msg("collateral refund refused by token")
	}
}

// reissue re-mints debt tokens settled earlier in an operation whose final
// token push failed. Best effort, same caveat as refund.
func (e *Engine) reissue(user uuid.UUID, amount *uint256.Int) {
	if err := e.debts.Issue(user, amount); err != nil {
		e.log.Error().
			Str("user", user.String()).
			Str("amount", amount.Dec()).
			Err(err).
			Msg("debt reissue refused by token")
	}
}

// --- rejection reason labels ---

func mintReason(err error) string {
	switch err.(type) {
	case *risk.BreaksHealthFactorError:
		return "health_factor"
	case *MintFailedError:
		return "mint_failed"
	default:
		return "error"
	}
}
