package pricing

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradelines-backend/pkg/money"
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// multiLinePercent is the discount for the unit at position idx (0-based)
// once units are ordered by customer price, highest first.
func multiLinePercent(idx int) decimal.Decimal {
	switch {
	case idx == 0:
		return decimal.Zero
	case idx == 1:
		return decimal.NewFromInt(10)
	case idx == 2:
		return decimal.NewFromInt(20)
	default:
		return decimal.NewFromInt(30)
	}
}

type pricedUnit struct {
	line  int
	price UnitPrice
}

// applyMultiLineDiscount flattens lines into units, discounts every unit after
// the most expensive one, and folds the result back into each line's totals.
// Discounted units keep customer = base + markup. Returns the total discount.
func applyMultiLineDiscount(lines []QuoteLine) int64 {
	units := make([]pricedUnit, 0, len(lines))
	for i, line := range lines {
		for q := 0; q < line.Quantity; q++ {
			units = append(units, pricedUnit{line: i, price: line.Unit})
		}
	}
	sort.SliceStable(units, func(a, b int) bool {
		return units[a].price.CustomerPrice > units[b].price.CustomerPrice
	})

	var total int64
	for idx, u := range units {
		pct := multiLinePercent(idx)
		if pct.IsZero() {
			continue
		}
		keep := one.Sub(pct.Div(hundred))

		discount := money.Percent(u.price.CustomerPrice, pct)
		customer := u.price.CustomerPrice - discount
		markup := money.Scale(u.price.Markup, keep)
		share := money.Scale(u.price.RevenueShare, keep)
		base := customer - markup

		line := &lines[u.line]
		line.Line.CustomerPrice -= discount
		line.Line.BasePrice -= u.price.BasePrice - base
		line.Line.Markup -= u.price.Markup - markup
		line.Line.RevenueShare -= u.price.RevenueShare - share
		line.LineDiscount += discount
		total += discount
	}
	return total
}
