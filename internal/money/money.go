// Package money holds the rounding and arithmetic helpers shared by the billing code.
// Every monetary value is a decimal.Decimal; rounding happens only when a value is emitted.
package money

import "github.com/shopspring/decimal"

// Places is the number of decimal places used for currency output
const Places = 2

var (
	hundred = decimal.NewFromInt(100)
	two     = decimal.NewFromInt(2)
)

// Round rounds to 2 decimal places, half away from zero (2.345 -> 2.35, -2.345 -> -2.35)
func Round(d decimal.Decimal) decimal.Decimal {
	return d.Round(Places)
}

// IsCents reports whether d has no digits below the smallest currency unit
func IsCents(d decimal.Decimal) bool {
	return d.Equal(Round(d))
}

// Percent returns base * pct / 100 without rounding
func Percent(base, pct decimal.Decimal) decimal.Decimal {
	return base.Mul(pct).Div(hundred)
}

// Half returns d / 2 without rounding
func Half(d decimal.Decimal) decimal.Decimal {
	return d.Div(two)
}

// Sum adds all values
func Sum(values ...decimal.Decimal) decimal.Decimal {
	total := decimal.Zero
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

// Parse parses a string amount, returning zero on malformed input
func Parse(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
