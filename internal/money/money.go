// Package money converts between human decimal amounts and integer
// minor-unit amounts. Balances and transaction amounts are stored only in
// minor units; decimals exist at the API boundary.
package money

import "github.com/shopspring/decimal"

// ToMinorUnits converts a decimal amount to an integer number of minor
// units, rounding half away from zero (10.005 -> 1001).
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits renders a minor-unit amount as a fixed 2-decimal string.
// ToMinorUnits(FromMinorUnits(x)) == x for every int64 x.
func FromMinorUnits(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}
