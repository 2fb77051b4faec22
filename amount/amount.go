// Package amount parses human-readable price strings into exact atomic
// integer units and formats them back. No binary floating-point value
// represents an amount at any stage; arithmetic is integer throughout.
package amount

import (
	"math/big"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/vitwit/x402-mvx/types"
)

// Parse converts a decimal-fraction or integer string into atomic units
// at the given precision. It rejects negative values, values with more
// fractional digits than decimals, and non-numeric input.
func Parse(input string, decimals uint32) (types.Amount, error) {
	s := strings.TrimSpace(input)
	if s == "" {
		return types.Amount{}, types.Errf(types.ErrInvalidAmount, "amount is empty")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return types.Amount{}, types.Errf(types.ErrInvalidAmount, "parsing %q: %v", input, err)
	}
	if d.IsNegative() {
		return types.Amount{}, types.Errf(types.ErrInvalidAmount, "amount %q is negative", input)
	}
	shifted := d.Shift(int32(decimals))
	if !shifted.IsInteger() {
		return types.Amount{}, types.Errf(types.ErrInvalidAmount, "amount %q has more than %d fractional digits", input, decimals)
	}
	return types.Amount{Atomic: shifted.BigInt(), Decimals: decimals}, nil
}

// FromAtomic wraps an already-atomic integer value. The value is copied.
func FromAtomic(atomic *big.Int, decimals uint32) (types.Amount, error) {
	if atomic == nil {
		return types.Amount{}, types.Errf(types.ErrInvalidAmount, "atomic value is nil")
	}
	if atomic.Sign() < 0 {
		return types.Amount{}, types.Errf(types.ErrInvalidAmount, "atomic value %s is negative", atomic)
	}
	return types.Amount{Atomic: new(big.Int).Set(atomic), Decimals: decimals}, nil
}

// Format renders an amount as a canonical decimal string. It is the exact
// inverse of Parse for values Parse produced: trailing fractional zeros
// are trimmed, so Format(Parse("1.50")) == "1.5".
func Format(a types.Amount) string {
	if a.Atomic == nil {
		return "0"
	}
	return decimal.NewFromBigInt(a.Atomic, -int32(a.Decimals)).String()
}
