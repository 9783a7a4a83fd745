// Package pricing prices supplier tradelines for brokers and aggregates order quotes.
package pricing

import (
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/money"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

// BrokerTerms is the slice of a broker record that drives pricing.
type BrokerTerms struct {
	BrokerID            uuid.UUID
	Status              enums.BrokerStatus
	RevenueSharePercent decimal.Decimal
	MarkupType          enums.MarkupType
	MarkupValue         decimal.Decimal
}

// TermsFromBroker extracts pricing terms from a broker record.
func TermsFromBroker(b *models.Broker) *BrokerTerms {
	if b == nil {
		return nil
	}
	return &BrokerTerms{
		BrokerID:            b.ID,
		Status:              b.Status,
		RevenueSharePercent: b.RevenueSharePercent,
		MarkupType:          b.MarkupType,
		MarkupValue:         b.MarkupValue,
	}
}

// UnitPrice is the per-unit decomposition of a tradeline price, in cents.
type UnitPrice struct {
	BasePrice     int64
	RevenueShare  int64
	Markup        int64
	CustomerPrice int64
}

// BrokerEarnings is what the broker earns on the unit.
func (u UnitPrice) BrokerEarnings() int64 {
	return u.RevenueShare + u.Markup
}

// PlatformKeeps is the base left to the platform after the revenue share.
func (u UnitPrice) PlatformKeeps() int64 {
	return u.BasePrice - u.RevenueShare
}

func (u UnitPrice) times(qty int) UnitPrice {
	n := int64(qty)
	return UnitPrice{
		BasePrice:     u.BasePrice * n,
		RevenueShare:  u.RevenueShare * n,
		Markup:        u.Markup * n,
		CustomerPrice: u.CustomerPrice * n,
	}
}

// Price decomposes a single tradeline for the broker. A nil broker is a direct
// platform sale: the customer pays the base price and broker amounts are zero.
func Price(item tradelinesupply.Tradeline, broker *BrokerTerms) (UnitPrice, error) {
	base := item.PriceCents
	if base <= 0 {
		return UnitPrice{}, pkgerrors.Newf(pkgerrors.CodeValidation, "tradeline %s has no valid price", item.CardID)
	}
	if broker == nil {
		return UnitPrice{BasePrice: base, CustomerPrice: base}, nil
	}
	if broker.Status != enums.BrokerStatusActive {
		return UnitPrice{}, pkgerrors.New(pkgerrors.CodeForbidden, "broker is not active")
	}

	share := money.Percent(base, broker.RevenueSharePercent)
	var markup int64
	switch broker.MarkupType {
	case enums.MarkupTypeFixed:
		markup = broker.MarkupValue.Round(0).IntPart()
	default:
		markup = money.Percent(base, broker.MarkupValue)
	}
	if markup < 0 {
		markup = 0
	}

	return UnitPrice{
		BasePrice:     base,
		RevenueShare:  share,
		Markup:        markup,
		CustomerPrice: base + markup,
	}, nil
}

// LineRequest asks for a quantity of one catalog card.
type LineRequest struct {
	CardID   string
	Quantity int
}

// QuoteLine is a priced order line. Unit holds undiscounted per-unit values;
// Line holds the line totals after any multi-line discount.
type QuoteLine struct {
	Tradeline    tradelinesupply.Tradeline
	Quantity     int
	Unit         UnitPrice
	Line         UnitPrice
	LineDiscount int64
}

// Quote is the aggregate price of an order. SubtotalBase, BrokerRevenueShare
// and BrokerMarkup are undiscounted; MultiLineDiscount is taken off the total.
type Quote struct {
	BrokerID           *uuid.UUID
	Lines              []QuoteLine
	GrossBase          int64
	SubtotalBase       int64
	BrokerRevenueShare int64
	BrokerMarkup       int64
	PlatformNetRevenue int64
	MultiLineDiscount  int64
	TotalCharged       int64
	PromoCode          string
}

// CommissionRevenueShare is the broker share earned after discounts.
func (q *Quote) CommissionRevenueShare() int64 {
	var total int64
	for _, line := range q.Lines {
		total += line.Line.RevenueShare
	}
	return total
}

// CommissionMarkup is the broker markup earned after discounts.
func (q *Quote) CommissionMarkup() int64 {
	var total int64
	for _, line := range q.Lines {
		total += line.Line.Markup
	}
	return total
}

// Balanced reports whether the quote satisfies the order money invariant.
func (q *Quote) Balanced() bool {
	return q.TotalCharged == q.SubtotalBase+q.BrokerRevenueShare+q.BrokerMarkup-q.MultiLineDiscount
}

// Calculator aggregates quotes. It holds no state besides the promo policy.
type Calculator struct {
	multiLinePromo string
}

func NewCalculator(cfg config.PricingConfig) Calculator {
	return Calculator{multiLinePromo: strings.TrimSpace(cfg.MultiLinePromoCode)}
}

// Quote prices the requested lines against the catalog.
func (c Calculator) Quote(catalog []tradelinesupply.Tradeline, items []LineRequest, broker *BrokerTerms, promo string) (*Quote, error) {
	if len(items) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "at least one item is required")
	}
	if broker != nil && broker.Status != enums.BrokerStatusActive {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "broker is not active")
	}

	byCard := make(map[string]tradelinesupply.Tradeline, len(catalog))
	for _, t := range catalog {
		byCard[t.CardID] = t
	}

	quote := &Quote{Lines: make([]QuoteLine, 0, len(items))}
	if broker != nil {
		id := broker.BrokerID
		quote.BrokerID = &id
	}

	for _, item := range items {
		if item.Quantity < 1 {
			return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "quantity for card %s must be at least 1", item.CardID)
		}
		tradeline, ok := byCard[item.CardID]
		if !ok {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "tradeline %s not found", item.CardID)
		}
		unit, err := Price(tradeline, broker)
		if err != nil {
			return nil, err
		}
		quote.Lines = append(quote.Lines, QuoteLine{
			Tradeline: tradeline,
			Quantity:  item.Quantity,
			Unit:      unit,
			Line:      unit.times(item.Quantity),
		})
	}

	if c.multiLinePromo != "" && strings.EqualFold(strings.TrimSpace(promo), c.multiLinePromo) {
		quote.PromoCode = c.multiLinePromo
		quote.MultiLineDiscount = applyMultiLineDiscount(quote.Lines)
	}

	for _, line := range quote.Lines {
		undiscounted := line.Unit.times(line.Quantity)
		quote.GrossBase += undiscounted.BasePrice
		quote.BrokerRevenueShare += undiscounted.RevenueShare
		quote.BrokerMarkup += undiscounted.Markup
		quote.TotalCharged += line.Line.CustomerPrice
	}
	quote.SubtotalBase = quote.GrossBase - quote.BrokerRevenueShare
	// Flat 50% of gross base; the supplier split is not modelled per line.
	quote.PlatformNetRevenue = money.Half(quote.GrossBase)

	if !quote.Balanced() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "quote totals do not balance")
	}
	return quote, nil
}
