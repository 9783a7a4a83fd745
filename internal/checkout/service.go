// Package checkout opens hosted Stripe checkout sessions for new orders.
package checkout

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/stripe"
)

type orderService interface {
	Create(ctx context.Context, input orders.CreateOrderInput) (*orders.OrderView, error)
	AttachCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
}

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error)
}

// Service creates an order and the checkout session that pays for it.
type Service interface {
	Execute(ctx context.Context, input Input) (*Result, error)
}

// Input is a checkout request; redirect URLs fall back to configured defaults.
type Input struct {
	Order      orders.CreateOrderInput
	SuccessURL string
	CancelURL  string
}

// Result carries the pending order and where to send the customer.
type Result struct {
	Order       *orders.OrderView `json:"order"`
	SessionID   string            `json:"session_id"`
	CheckoutURL string            `json:"checkout_url"`
}

type service struct {
	orders   orderService
	sessions sessionCreator
	logg     *logger.Logger
}

func NewService(orderSvc orderService, sessions sessionCreator, logg *logger.Logger) (Service, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if sessions == nil {
		return nil, fmt.Errorf("checkout session creator required")
	}
	return &service{orders: orderSvc, sessions: sessions, logg: logg}, nil
}

// Execute leaves the order PENDING when the session cannot be opened; the
// order simply never receives a payment event.
func (s *service) Execute(ctx context.Context, input Input) (*Result, error) {
	method := input.Order.PaymentMethod
	if method != "" && method != enums.PaymentMethodStripe {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "checkout only supports card payments")
	}
	input.Order.PaymentMethod = enums.PaymentMethodStripe

	order, err := s.orders.Create(ctx, input.Order)
	if err != nil {
		return nil, err
	}

	session, err := s.sessions.CreateCheckoutSession(ctx, sessionRequest(order, input.SuccessURL, input.CancelURL))
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "create checkout session failed", err)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	if err := s.orders.AttachCheckoutSession(ctx, order.ID, session.ID); err != nil {
		return nil, err
	}
	order.StripeSessionID = &session.ID

	return &Result{Order: order, SessionID: session.ID, CheckoutURL: session.URL}, nil
}

// sessionRequest sends one checkout line per order line at its discounted
// line price so the session total equals the order's total_charged.
func sessionRequest(order *orders.OrderView, successURL, cancelURL string) stripe.CheckoutRequest {
	req := stripe.CheckoutRequest{
		OrderID:       order.ID.String(),
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		SuccessURL:    successURL,
		CancelURL:     cancelURL,
		Lines:         make([]stripe.CheckoutLine, 0, len(order.Items)),
	}
	if order.BrokerID != nil {
		req.BrokerID = order.BrokerID.String()
	}
	for _, item := range order.Items {
		name := fmt.Sprintf("%s tradeline", item.BankName)
		if item.Quantity > 1 {
			name = fmt.Sprintf("%s tradeline x%d", item.BankName, item.Quantity)
		}
		req.Lines = append(req.Lines, stripe.CheckoutLine{
			CardID:          item.CardID,
			Name:            name,
			Description:     fmt.Sprintf("Authorized user tradeline, $%d limit", item.CreditLimit),
			UnitAmountCents: item.LineCustomerPrice,
			Quantity:        1,
		})
	}
	return req
}
