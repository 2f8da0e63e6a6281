package engine

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"

	"SynthVault/internal/risk"
)

// Caller-facing error taxonomy. Typed errors carry the values a caller
// needs to explain the rejection; sentinels cover the parameterless cases.
var (
	// ErrNeedsMoreThanZero rejects any operation with a zero amount before
	// any other validation runs.
	ErrNeedsMoreThanZero = errors.New("amount must be more than zero")

	// ErrReentrantCall rejects a mutating call made while another mutating
	// call is still in flight on the same engine. The guard cannot tell a
	// nested call apart from a concurrent one; with all mutations funneled
	// through the Processor's single goroutine, only genuine reentrancy
	// (a token callback re-entering the engine) ever trips it.
	ErrReentrantCall = errors.New("reentrant call rejected")

	// ErrHealthFactorNotImproved rejects a liquidation that failed to raise
	// the target's ratio above the minimum.
	ErrHealthFactorNotImproved = errors.New("liquidation did not restore health factor")
)

// TokenNotAllowedError rejects an operation naming an asset outside the
// supported set fixed at construction.
type TokenNotAllowedError struct {
	Asset string
}

func (e *TokenNotAllowedError) Error() string {
	return fmt.Sprintf("token not allowed: %s", e.Asset)
}

// TransferFailedError wraps a refused collateral-token movement. State has
// already been rolled back when the caller sees this.
type TransferFailedError struct {
	Asset string
	Cause error
}

func (e *TransferFailedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("collateral transfer failed: asset=%s: %v", e.Asset, e.Cause)
	}
	return fmt.Sprintf("collateral transfer failed: asset=%s", e.Asset)
}

func (e *TransferFailedError) Unwrap() error { return e.Cause }

// MintFailedError wraps a refused debt-token mint. State has already been
// rolled back when the caller sees this.
type MintFailedError struct {
	Cause error
}

func (e *MintFailedError) Error() string {
	return fmt.Sprintf("debt mint failed: %v", e.Cause)
}

func (e *MintFailedError) Unwrap() error { return e.Cause }

// HealthFactorOkayError rejects a liquidation attempt against a target whose
// ratio is at or above the minimum. It carries the observed ratio.
type HealthFactorOkayError struct {
	HealthFactor *uint256.Int
}

func (e *HealthFactorOkayError) Error() string {
	return fmt.Sprintf("health factor okay: ratio=%s min=%s",
		e.HealthFactor.Dec(), risk.MinHealthFactor.Dec())
}

// HealthFactorNotImprovedError reports the target's post-liquidation ratio
// when it failed to clear the minimum.
type HealthFactorNotImprovedError struct {
	HealthFactor *uint256.Int
}

func (e *HealthFactorNotImprovedError) Error() string {
	return fmt.Sprintf("%v: ratio=%s", ErrHealthFactorNotImproved, e.HealthFactor.Dec())
}

func (e *HealthFactorNotImprovedError) Unwrap() error { return ErrHealthFactorNotImproved }
