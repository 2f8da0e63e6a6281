package math

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Amounts are 18-decimal fixed point ("wad") throughout the engine. Price
// feeds report with their own precision (8 decimals by convention) and are
// scaled up to wad before any arithmetic.
var (
	// Wad is the 18-decimal fixed-point unit (1e18).
	Wad = uint256.NewInt(1_000_000_000_000_000_000)

	// Hundred is the percent denominator.
	Hundred = uint256.NewInt(100)
)

// NewWad returns whole × 1e18.
func NewWad(whole uint64) *uint256.Int {
	return new(uint256.Int).Mul(uint256.NewInt(whole), Wad)
}

// MulDiv computes a × b / denom with a 512-bit intermediate, truncating
// toward zero. Panics on zero denom (callers validate prices first).
func MulDiv(a, b, denom *uint256.Int) *uint256.Int {
	if denom.IsZero() {
		panic("math: MulDiv by zero")
	}
	res, overflow := new(uint256.Int).MulDivOverflow(a, b, denom)
	if overflow {
		panic("math: MulDiv overflow")
	}
	return res
}

// MulWad computes a × b / 1e18.
func MulWad(a, b *uint256.Int) *uint256.Int {
	return MulDiv(a, b, Wad)
}

// DivWad computes a × 1e18 / b.
func DivWad(a, b *uint256.Int) *uint256.Int {
	return MulDiv(a, Wad, b)
}

// Percent computes a × pct / 100.
func Percent(a *uint256.Int, pct uint64) *uint256.Int {
	return MulDiv(a, uint256.NewInt(pct), Hundred)
}

// Pow10 returns 10^n for n ≤ 77 (the uint256 range).
func Pow10(n uint8) *uint256.Int {
	res := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		res.Mul(res, ten)
	}
	return res
}

// ParseDecimal parses a base-10 unsigned integer string into a uint256.
// Used when rehydrating amounts from Postgres and config.
func ParseDecimal(s string) (*uint256.Int, error) {
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("parse decimal %q: %w", s, err)
	}
	return v, nil
}
