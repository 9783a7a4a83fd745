package tradelinesupply

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradelines-backend/pkg/money"
)

var (
	htmlTagPattern  = regexp.MustCompile(`<[^>]*>?`)
	nonPricePattern = regexp.MustCompile(`[^0-9.]`)
	firstIntPattern = regexp.MustCompile(`\d+`)
)

// Tradeline is one sanitized line from the supplier pricing feed.
type Tradeline struct {
	CardID                   string `json:"card_id"`
	BankName                 string `json:"bank_name"`
	CreditLimit              int64  `json:"credit_limit"`
	CreditLimitOriginal      int64  `json:"credit_limit_original"`
	DateOpened               string `json:"date_opened"`
	DateOpenedOriginal       string `json:"date_opened_original"`
	PurchaseDeadline         string `json:"purchase_deadline"`
	PurchaseDeadlineOriginal string `json:"purchase_deadline_original"`
	ReportingPeriod          string `json:"reporting_period"`
	ReportingPeriodOriginal  string `json:"reporting_period_original"`
	Stock                    int    `json:"stock"`
	PriceCents               int64  `json:"price_cents"`
	Image                    string `json:"image"`
}

type rawTradeline struct {
	CardID                   json.RawMessage `json:"card_id"`
	BankName                 json.RawMessage `json:"bank_name"`
	CreditLimit              json.RawMessage `json:"credit_limit"`
	CreditLimitOriginal      json.RawMessage `json:"credit_limit_original"`
	DateOpened               json.RawMessage `json:"date_opened"`
	DateOpenedOriginal       json.RawMessage `json:"date_opened_original"`
	PurchaseDeadline         json.RawMessage `json:"purchase_deadline"`
	PurchaseDeadlineOriginal json.RawMessage `json:"purchase_deadline_original"`
	ReportingPeriod          json.RawMessage `json:"reporting_period"`
	ReportingPeriodOriginal  json.RawMessage `json:"reporting_period_original"`
	Stock                    json.RawMessage `json:"stock"`
	Price                    json.RawMessage `json:"price"`
	Image                    json.RawMessage `json:"image"`
}

// Pricing fetches the current supplier feed. Prices and stock counts arrive as
// numbers or as HTML fragments and are normalized here.
func (c *Client) Pricing(ctx context.Context) ([]Tradeline, error) {
	var raw []rawTradeline
	if err := c.do(ctx, http.MethodGet, "pricing", nil, &raw); err != nil {
		return nil, err
	}

	out := make([]Tradeline, 0, len(raw))
	for _, item := range raw {
		out = append(out, Tradeline{
			CardID:                   text(item.CardID),
			BankName:                 strings.TrimSpace(stripTags(text(item.BankName))),
			CreditLimit:              wholeNumber(item.CreditLimit),
			CreditLimitOriginal:      wholeNumber(item.CreditLimitOriginal),
			DateOpened:               text(item.DateOpened),
			DateOpenedOriginal:       text(item.DateOpenedOriginal),
			PurchaseDeadline:         text(item.PurchaseDeadline),
			PurchaseDeadlineOriginal: text(item.PurchaseDeadlineOriginal),
			ReportingPeriod:          text(item.ReportingPeriod),
			ReportingPeriodOriginal:  text(item.ReportingPeriodOriginal),
			Stock:                    cleanStock(item.Stock),
			PriceCents:               cleanPrice(item.Price),
			Image:                    text(item.Image),
		})
	}
	return out, nil
}

// text returns a JSON string unquoted, or the literal of any other scalar.
func text(raw json.RawMessage) string {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return trimmed
}

func stripTags(s string) string {
	return htmlTagPattern.ReplaceAllString(s, "")
}

// cleanPrice converts a price such as 1250, "1250.00" or
// `<span class="amount">$1,250.00</span>` to cents. Unparseable values are 0.
func cleanPrice(raw json.RawMessage) int64 {
	digits := nonPricePattern.ReplaceAllString(stripTags(text(raw)), "")
	if digits == "" {
		return 0
	}
	amount, err := decimal.NewFromString(digits)
	if err != nil || amount.IsNegative() {
		return 0
	}
	return money.DecimalToCents(amount)
}

// cleanStock extracts the first integer found in the value.
func cleanStock(raw json.RawMessage) int {
	match := firstIntPattern.FindString(stripTags(text(raw)))
	if match == "" {
		return 0
	}
	n, err := strconv.Atoi(match)
	if err != nil {
		return 0
	}
	return n
}

func wholeNumber(raw json.RawMessage) int64 {
	digits := nonPricePattern.ReplaceAllString(stripTags(text(raw)), "")
	if digits == "" {
		return 0
	}
	amount, err := decimal.NewFromString(digits)
	if err != nil {
		return 0
	}
	return amount.Round(0).IntPart()
}
