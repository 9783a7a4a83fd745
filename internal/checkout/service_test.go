package checkout

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/stripe"
)

type stubOrders struct {
	createFn func(input orders.CreateOrderInput) (*orders.OrderView, error)
	attached map[uuid.UUID]string
}

func (s *stubOrders) Create(_ context.Context, input orders.CreateOrderInput) (*orders.OrderView, error) {
	return s.createFn(input)
}

func (s *stubOrders) AttachCheckoutSession(_ context.Context, orderID uuid.UUID, sessionID string) error {
	if s.attached == nil {
		s.attached = map[uuid.UUID]string{}
	}
	s.attached[orderID] = sessionID
	return nil
}

type stubSessions struct {
	req stripe.CheckoutRequest
	err error
}

func (s *stubSessions) CreateCheckoutSession(_ context.Context, req stripe.CheckoutRequest) (*stripe.CheckoutSession, error) {
	s.req = req
	if s.err != nil {
		return nil, s.err
	}
	return &stripe.CheckoutSession{ID: "cs_test_1", URL: "https://checkout.stripe.test/cs_test_1"}, nil
}

func pendingOrder() *orders.OrderView {
	brokerID := uuid.New()
	return &orders.OrderView{
		ID:            uuid.New(),
		OrderNumber:   "TLM26100001",
		BrokerID:      &brokerID,
		CustomerEmail: "jane@example.com",
		TotalCharged:  92400,
		Items: []orders.ItemView{
			{CardID: "c1", BankName: "Chase", CreditLimit: 10000, Quantity: 1, LineCustomerPrice: 60000},
			{CardID: "c2", BankName: "Amex", CreditLimit: 5000, Quantity: 1, LineCustomerPrice: 32400},
		},
	}
}

func TestExecuteAttachesSession(t *testing.T) {
	order := pendingOrder()
	var gotMethod enums.PaymentMethod
	orderSvc := &stubOrders{createFn: func(input orders.CreateOrderInput) (*orders.OrderView, error) {
		gotMethod = input.PaymentMethod
		return order, nil
	}}
	sessions := &stubSessions{}
	svc, err := NewService(orderSvc, sessions, nil)
	require.NoError(t, err)

	res, err := svc.Execute(context.Background(), Input{Order: orders.CreateOrderInput{CustomerEmail: "jane@example.com"}})
	require.NoError(t, err)

	assert.Equal(t, enums.PaymentMethodStripe, gotMethod)
	assert.Equal(t, "cs_test_1", res.SessionID)
	assert.Equal(t, "https://checkout.stripe.test/cs_test_1", res.CheckoutURL)
	assert.Equal(t, "cs_test_1", orderSvc.attached[order.ID])
	require.NotNil(t, res.Order.StripeSessionID)

	assert.Equal(t, order.ID.String(), sessions.req.OrderID)
	assert.Equal(t, order.BrokerID.String(), sessions.req.BrokerID)
	var total int64
	for _, line := range sessions.req.Lines {
		total += line.UnitAmountCents * line.Quantity
	}
	assert.Equal(t, order.TotalCharged, total)
}

func TestExecuteRejectsManualMethods(t *testing.T) {
	svc, err := NewService(&stubOrders{createFn: func(orders.CreateOrderInput) (*orders.OrderView, error) {
		t.Fatal("order must not be created")
		return nil, nil
	}}, &stubSessions{}, nil)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), Input{Order: orders.CreateOrderInput{PaymentMethod: enums.PaymentMethodWire}})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
}

func TestExecuteSessionFailureIsDependencyError(t *testing.T) {
	orderSvc := &stubOrders{createFn: func(orders.CreateOrderInput) (*orders.OrderView, error) { return pendingOrder(), nil }}
	svc, err := NewService(orderSvc, &stubSessions{err: errors.New("stripe down")}, nil)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), Input{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeDependency))
	assert.Empty(t, orderSvc.attached)
}

func TestExecutePropagatesOrderErrors(t *testing.T) {
	orderSvc := &stubOrders{createFn: func(orders.CreateOrderInput) (*orders.OrderView, error) {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "broker is not active")
	}}
	sessions := &stubSessions{}
	svc, err := NewService(orderSvc, sessions, nil)
	require.NoError(t, err)

	_, err = svc.Execute(context.Background(), Input{})
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeForbidden))
	assert.Empty(t, sessions.req.OrderID)
}
