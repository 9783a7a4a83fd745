// Package fulfillment places paid orders with the upstream tradeline supplier.
package fulfillment

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/tradelinesupply"
)

// Line is one supplier card and quantity.
type Line struct {
	CardID   string
	Quantity int
}

// Request describes a paid order to fulfil.
type Request struct {
	OrderID       uuid.UUID
	OrderNumber   string
	CustomerEmail string
	CustomerName  string
	Lines         []Line
}

// Result is the supplier's reference for the placed order.
type Result struct {
	SupplierOrderID string
	Status          string
}

// Supplier places orders upstream. Implementations must be safe to call from
// inside a database transaction and honour ctx cancellation.
type Supplier interface {
	PlaceOrder(ctx context.Context, req Request) (*Result, error)
}

type orderCreator interface {
	CreateOrder(ctx context.Context, req tradelinesupply.OrderRequest) (*tradelinesupply.OrderResult, error)
}

type tradelineSupplier struct {
	client orderCreator
}

// NewTradelineSupplier adapts the supplier HTTP client.
func NewTradelineSupplier(client orderCreator) (Supplier, error) {
	if client == nil {
		return nil, fmt.Errorf("supplier client required")
	}
	return &tradelineSupplier{client: client}, nil
}

func (s *tradelineSupplier) PlaceOrder(ctx context.Context, req Request) (*Result, error) {
	lines := make([]tradelinesupply.OrderLine, 0, len(req.Lines))
	for _, l := range req.Lines {
		lines = append(lines, tradelinesupply.OrderLine{CardID: l.CardID, Quantity: l.Quantity})
	}
	res, err := s.client.CreateOrder(ctx, tradelinesupply.OrderRequest{
		PlatformOrderID: req.OrderID.String(),
		CustomerEmail:   req.CustomerEmail,
		CustomerName:    req.CustomerName,
		Lines:           lines,
	})
	if err != nil {
		return nil, err
	}
	return &Result{SupplierOrderID: res.ID, Status: res.Status}, nil
}

// RequestFromOrder builds a fulfilment request from a persisted order and its items.
func RequestFromOrder(order *models.Order) Request {
	req := Request{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		Lines:         make([]Line, 0, len(order.Items)),
	}
	if order.CustomerName != nil {
		req.CustomerName = *order.CustomerName
	}
	for _, item := range order.Items {
		req.Lines = append(req.Lines, Line{CardID: item.CardID, Quantity: item.Quantity})
	}
	return req
}
