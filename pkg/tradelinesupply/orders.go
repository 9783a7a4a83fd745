package tradelinesupply

import (
	"context"
	"net/http"
	"strings"

	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
)

const orderSource = "tradeline_marketplace_platform"

// OrderLine is one supplier product and quantity.
type OrderLine struct {
	CardID   string
	Quantity int
}

// OrderRequest places a paid order with the supplier on behalf of a customer.
type OrderRequest struct {
	PlatformOrderID string
	CustomerEmail   string
	CustomerName    string
	Lines           []OrderLine
}

// OrderResult is the supplier's acknowledgement.
type OrderResult struct {
	ID     string
	Status string
}

type wooBilling struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
}

type wooLineItem struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type wooMeta struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

type wooOrder struct {
	PaymentMethod      string        `json:"payment_method"`
	PaymentMethodTitle string        `json:"payment_method_title"`
	SetPaid            bool          `json:"set_paid"`
	Billing            wooBilling    `json:"billing"`
	LineItems          []wooLineItem `json:"line_items"`
	MetaData           []wooMeta     `json:"meta_data"`
}

// CreateOrder submits the order to the supplier. The platform has already
// collected payment, so the supplier order is created as paid.
func (c *Client) CreateOrder(ctx context.Context, req OrderRequest) (*OrderResult, error) {
	if len(req.Lines) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "supplier order requires at least one line")
	}
	if strings.TrimSpace(req.PlatformOrderID) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "platform order id is required")
	}

	first, last := splitName(req.CustomerName)
	payload := wooOrder{
		PaymentMethod:      "bacs",
		PaymentMethodTitle: "Direct Bank Transfer",
		SetPaid:            true,
		Billing: wooBilling{
			FirstName: first,
			LastName:  last,
			Email:     req.CustomerEmail,
		},
		LineItems: make([]wooLineItem, 0, len(req.Lines)),
		MetaData: []wooMeta{
			{Key: "platform_order_id", Value: req.PlatformOrderID},
			{Key: "source", Value: orderSource},
		},
	}
	for _, line := range req.Lines {
		payload.LineItems = append(payload.LineItems, wooLineItem{ProductID: line.CardID, Quantity: line.Quantity})
	}

	var resp struct {
		ID     rawID  `json:"id"`
		Status string `json:"status"`
	}
	if err := c.do(ctx, http.MethodPost, "orders", payload, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "supplier order response missing id")
	}
	return &OrderResult{ID: string(resp.ID), Status: resp.Status}, nil
}

func splitName(full string) (string, string) {
	fields := strings.Fields(full)
	if len(fields) == 0 {
		return "", ""
	}
	return fields[0], strings.Join(fields[1:], " ")
}

// rawID accepts numeric or string identifiers.
type rawID string

func (r *rawID) UnmarshalJSON(data []byte) error {
	*r = rawID(text(data))
	return nil
}
