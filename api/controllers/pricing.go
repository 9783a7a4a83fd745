package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/api/responses"
	"github.com/angelmondragon/tradelines-backend/api/validators"
	"github.com/angelmondragon/tradelines-backend/internal/pricing"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/money"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

type unitPriceDTO struct {
	BasePrice         int64   `json:"base_price_cents"`
	RevenueShare      int64   `json:"revenue_share_cents"`
	Markup            int64   `json:"markup_cents"`
	CustomerPrice     int64   `json:"customer_price_cents"`
	BrokerEarnings    int64   `json:"broker_earnings_cents"`
	CustomerPriceUSD  float64 `json:"customer_price_usd"`
	BrokerEarningsUSD float64 `json:"broker_earnings_usd"`
}

func newUnitPriceDTO(p pricing.UnitPrice) unitPriceDTO {
	return unitPriceDTO{
		BasePrice:         p.BasePrice,
		RevenueShare:      p.RevenueShare,
		Markup:            p.Markup,
		CustomerPrice:     p.CustomerPrice,
		BrokerEarnings:    p.BrokerEarnings(),
		CustomerPriceUSD:  money.CentsToUSD(p.CustomerPrice),
		BrokerEarningsUSD: money.CentsToUSD(p.BrokerEarnings()),
	}
}

type catalogItemDTO struct {
	tradelinesupply.Tradeline
	Pricing unitPriceDTO `json:"pricing"`
}

type catalogResponse struct {
	BrokerID   uuid.UUID        `json:"broker_id"`
	ClientID   *uuid.UUID       `json:"client_id,omitempty"`
	Count      int              `json:"count"`
	Tradelines []catalogItemDTO `json:"tradelines"`
}

type quoteItemRequest struct {
	CardID   string `json:"card_id" validate:"required"`
	Quantity int    `json:"quantity" validate:"required,min=1,max=100"`
}

type quoteRequest struct {
	BrokerID  *uuid.UUID         `json:"broker_id,omitempty"`
	Items     []quoteItemRequest `json:"items" validate:"required,min=1,dive"`
	PromoCode string             `json:"promo_code,omitempty" validate:"omitempty,max=64"`
}

type quoteLineDTO struct {
	CardID       string       `json:"card_id"`
	BankName     string       `json:"bank_name"`
	Quantity     int          `json:"quantity"`
	Unit         unitPriceDTO `json:"unit"`
	Line         unitPriceDTO `json:"line"`
	LineDiscount int64        `json:"line_discount_cents"`
}

type quoteResponse struct {
	BrokerID           *uuid.UUID     `json:"broker_id,omitempty"`
	Lines              []quoteLineDTO `json:"lines"`
	GrossBase          int64          `json:"gross_base_cents"`
	SubtotalBase       int64          `json:"subtotal_base_cents"`
	MultiLineDiscount  int64          `json:"multi_line_discount_cents"`
	BrokerRevenueShare int64          `json:"broker_revenue_share_cents"`
	BrokerMarkup       int64          `json:"broker_markup_cents"`
	PlatformNetRevenue int64          `json:"platform_net_revenue_cents"`
	TotalCharged       int64          `json:"total_charged_cents"`
	TotalChargedUSD    float64        `json:"total_charged_usd"`
	PromoCode          string         `json:"promo_code,omitempty"`
}

func newQuoteResponse(q *pricing.Quote) quoteResponse {
	lines := make([]quoteLineDTO, 0, len(q.Lines))
	for _, l := range q.Lines {
		lines = append(lines, quoteLineDTO{
			CardID:       l.Tradeline.CardID,
			BankName:     l.Tradeline.BankName,
			Quantity:     l.Quantity,
			Unit:         newUnitPriceDTO(l.Unit),
			Line:         newUnitPriceDTO(l.Line),
			LineDiscount: l.LineDiscount,
		})
	}
	return quoteResponse{
		BrokerID:           q.BrokerID,
		Lines:              lines,
		GrossBase:          q.GrossBase,
		SubtotalBase:       q.SubtotalBase,
		MultiLineDiscount:  q.MultiLineDiscount,
		BrokerRevenueShare: q.BrokerRevenueShare,
		BrokerMarkup:       q.BrokerMarkup,
		PlatformNetRevenue: q.PlatformNetRevenue,
		TotalCharged:       q.TotalCharged,
		TotalChargedUSD:    money.CentsToUSD(q.TotalCharged),
		PromoCode:          q.PromoCode,
	}
}

// PricingCatalog lists available tradelines priced for the calling broker.
// Admins must name the broker with ?broker_id=.
func PricingCatalog(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		requested, err := optionalQueryUUID(r, "broker_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brokerID, err := EffectiveBroker(r, requested)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if brokerID == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "broker_id is required"))
			return
		}
		clientID, err := optionalQueryUUID(r, "client_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.Catalog(r.Context(), pricing.CatalogInput{
			BrokerID:      *brokerID,
			ClientID:      clientID,
			ExcludedBanks: splitCSV(r.URL.Query().Get("exclude_banks")),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		out := make([]catalogItemDTO, 0, len(items))
		for _, item := range items {
			out = append(out, catalogItemDTO{Tradeline: item.Tradeline, Pricing: newUnitPriceDTO(item.Price)})
		}
		responses.WriteSuccess(w, catalogResponse{
			BrokerID:   *brokerID,
			ClientID:   clientID,
			Count:      len(out),
			Tradelines: out,
		})
	}
}

// PricingQuote prices a prospective cart without creating an order.
func PricingQuote(svc pricing.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "pricing service unavailable"))
			return
		}

		var body quoteRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		brokerID, err := EffectiveBroker(r, body.BrokerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]pricing.LineRequest, 0, len(body.Items))
		for _, item := range body.Items {
			lines = append(lines, pricing.LineRequest{CardID: strings.TrimSpace(item.CardID), Quantity: item.Quantity})
		}
		quote, err := svc.Quote(r.Context(), pricing.QuoteInput{
			BrokerID:  brokerID,
			Items:     lines,
			PromoCode: body.PromoCode,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newQuoteResponse(quote))
	}
}

func optionalQueryUUID(r *http.Request, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "%s must be a valid uuid", key)
	}
	return &id, nil
}

func splitCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
