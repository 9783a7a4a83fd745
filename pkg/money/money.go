// Package money converts between integer cents and USD display values.
// Cents are authoritative everywhere; USD values are derived on read.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// CentsToUSD returns the major-unit display value of an amount in cents.
func CentsToUSD(cents int64) float64 {
	return decimal.New(cents, -2).InexactFloat64()
}

// CentsToDecimal returns the exact major-unit value of an amount in cents.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// USDToCents converts a major-unit amount to cents, rounding half away from zero.
func USDToCents(usd float64) int64 {
	return DecimalToCents(decimal.NewFromFloat(usd))
}

// DecimalToCents converts an exact major-unit amount to cents.
func DecimalToCents(usd decimal.Decimal) int64 {
	return usd.Mul(hundred).Round(0).IntPart()
}

// Percent returns amount × pct / 100 in cents, rounded half away from zero.
func Percent(amount int64, pct decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(pct).Div(hundred).Round(0).IntPart()
}

// Scale returns amount × factor in cents, rounded half away from zero.
func Scale(amount int64, factor decimal.Decimal) int64 {
	return decimal.NewFromInt(amount).Mul(factor).Round(0).IntPart()
}

// Half returns half of amount in cents, rounded half away from zero.
func Half(amount int64) int64 {
	return Scale(amount, decimal.NewFromFloat(0.5))
}

// Format renders cents as a dollar string such as "$1,234.50".
func Format(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	whole := cents / 100
	frac := cents % 100

	digits := fmt.Sprintf("%d", whole)
	grouped := make([]byte, 0, len(digits)+len(digits)/3)
	for i, d := range []byte(digits) {
		if i > 0 && (len(digits)-i)%3 == 0 {
			grouped = append(grouped, ',')
		}
		grouped = append(grouped, d)
	}
	return fmt.Sprintf("%s$%s.%02d", sign, grouped, frac)
}
