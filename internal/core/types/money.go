// Package types holds the numeric value types shared by every domain:
// fixed-point ingredient quantities, money and percentages.
package types

import "github.com/shopspring/decimal"

// Money is an exact decimal amount.
type Money = decimal.Decimal

// Percent is a percentage, 10 meaning 10%.
type Percent = decimal.Decimal

var hundred = decimal.NewFromInt(100)

// MustMoney parses a literal and panics on error. For constants and tests.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// MustPercent parses a percentage literal and panics on error.
func MustPercent(s string) Percent {
	return decimal.RequireFromString(s)
}

// VariancePercent is delta/base*100, zero when base is zero.
func VariancePercent(delta, base Quantity) Percent {
	if base == 0 {
		return decimal.Zero
	}
	return delta.Decimal().Div(base.Decimal()).Mul(hundred)
}

// WithinTolerance reports |pct| <= allowance.
func WithinTolerance(pct, allowance Percent) bool {
	return pct.Abs().LessThanOrEqual(allowance)
}
