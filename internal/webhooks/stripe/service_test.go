package stripewebhook

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/pkg/db/dbtest"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
)

type fakeOrders struct {
	views        map[uuid.UUID]*orders.OrderView
	payments     []orders.ProcessPaymentInput
	failures     map[uuid.UUID]string
	details      map[uuid.UUID][2]string
	processErr   error
	processCalls int
}

func newFakeOrders(ids ...uuid.UUID) *fakeOrders {
	f := &fakeOrders{
		views:    map[uuid.UUID]*orders.OrderView{},
		failures: map[uuid.UUID]string{},
		details:  map[uuid.UUID][2]string{},
	}
	for _, id := range ids {
		f.views[id] = &orders.OrderView{ID: id, Status: enums.OrderStatusPending, PaymentStatus: enums.PaymentStatusPending}
	}
	return f
}

func (f *fakeOrders) Get(_ context.Context, id uuid.UUID) (*orders.OrderView, error) {
	view, ok := f.views[id]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return view, nil
}

// ProcessPayment mimics the conditional transition: only the first call moves the order.
func (f *fakeOrders) ProcessPayment(_ context.Context, input orders.ProcessPaymentInput) (*orders.OrderView, error) {
	f.processCalls++
	view, ok := f.views[input.OrderID]
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if f.processErr != nil {
		return nil, f.processErr
	}
	if view.Status != enums.OrderStatusCompleted {
		f.payments = append(f.payments, input)
		view.Status = enums.OrderStatusCompleted
		view.PaymentStatus = enums.PaymentStatusSucceeded
	}
	return view, nil
}

func (f *fakeOrders) HandlePaymentFailed(_ context.Context, id uuid.UUID, reason string) (*orders.OrderView, error) {
	f.failures[id] = reason
	return f.views[id], nil
}

func (f *fakeOrders) UpdateCustomerDetails(_ context.Context, id uuid.UUID, name, phone *string) error {
	f.details[id] = [2]string{*name, *phone}
	return nil
}

type memoryStore struct {
	mu   sync.Mutex
	data map[string]string
	err  error
}

func (s *memoryStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data[key], nil
}

func (s *memoryStore) SetNX(_ context.Context, key string, value any, _ time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return false, s.err
	}
	if _, ok := s.data[key]; ok {
		return false, nil
	}
	s.data[key] = fmt.Sprint(value)
	return true, nil
}

func (s *memoryStore) IdempotencyKey(scope, id string) string {
	return "tl:idempotency:" + scope + ":" + id
}

func (s *memoryStore) Del(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, key := range keys {
		delete(s.data, key)
	}
	return nil
}

type harness struct {
	db      *gorm.DB
	orders  *fakeOrders
	store   *memoryStore
	svc     *Service
	reg     *prometheus.Registry
	orderID uuid.UUID
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t, &models.WebhookLog{})
	orderID := uuid.New()
	fake := newFakeOrders(orderID)
	store := &memoryStore{data: map[string]string{}}
	guard, err := NewDeliveryGuard(store, time.Hour)
	require.NoError(t, err)
	reg := prometheus.NewRegistry()

	svc, err := NewService(ServiceParams{
		Logs:    NewLogRepository(conn),
		Orders:  fake,
		Guard:   guard,
		Metrics: metrics.NewWebhookMetrics(reg),
	})
	require.NoError(t, err)
	return &harness{db: conn, orders: fake, store: store, svc: svc, reg: reg, orderID: orderID}
}

func event(t *testing.T, id string, eventType stripe.EventType, object map[string]any) (*stripe.Event, []byte) {
	t.Helper()
	raw, err := json.Marshal(object)
	require.NoError(t, err)
	evt := &stripe.Event{ID: id, Type: eventType, Object: "event", Data: &stripe.EventData{Raw: raw}}
	payload := []byte(fmt.Sprintf(`{"id":%q,"object":"event","type":%q,"data":{"object":%s}}`, id, eventType, raw))
	return evt, payload
}

func (h *harness) logs(t *testing.T, eventID string) []models.WebhookLog {
	t.Helper()
	rows, err := NewLogRepository(h.db).ListByEventID(context.Background(), eventID)
	require.NoError(t, err)
	return rows
}

func (h *harness) counter(t *testing.T, eventType, outcome string) float64 {
	t.Helper()
	families, err := h.reg.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "tradelines_webhook_events_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["event_type"] == eventType && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestCheckoutCompletedProcessesPayment(t *testing.T) {
	h := newHarness(t)
	evt, payload := event(t, "evt_1", stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_1",
		"object":         "checkout.session",
		"metadata":       map[string]string{"order_id": h.orderID.String()},
		"payment_intent": "pi_1",
		"payment_status": "paid",
		"customer_details": map[string]any{
			"name":  "Jane Roe",
			"phone": "+15550100",
		},
	})

	outcome, err := h.svc.HandleEvent(context.Background(), evt, payload)
	require.NoError(t, err)
	assert.Equal(t, enums.WebhookStatusProcessed, outcome.Status)

	require.Len(t, h.orders.payments, 1)
	assert.Equal(t, "pi_1", h.orders.payments[0].PaymentRef)
	assert.Equal(t, enums.PaymentMethodStripe, h.orders.payments[0].Method)
	assert.Equal(t, [2]string{"Jane Roe", "+15550100"}, h.orders.details[h.orderID])

	rows := h.logs(t, "evt_1")
	require.Len(t, rows, 1)
	assert.Equal(t, enums.WebhookStatusProcessed, rows[0].Status)
	assert.Equal(t, "checkout.session.completed", rows[0].EventType)
	assert.NotNil(t, rows[0].ProcessedAt)
}

func TestCheckoutCompletedFallsBackToClientReference(t *testing.T) {
	h := newHarness(t)
	evt, payload := event(t, "evt_ref", stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":                  "cs_2",
		"object":              "checkout.session",
		"client_reference_id": h.orderID.String(),
		"payment_status":      "paid",
	})

	_, err := h.svc.HandleEvent(context.Background(), evt, payload)
	require.NoError(t, err)
	require.Len(t, h.orders.payments, 1)
	assert.Equal(t, "cs_2", h.orders.payments[0].PaymentRef)
}

func TestDuplicateDeliveryIsAuditedButNotReapplied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	evt, payload := event(t, "evt_dup", stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_1",
		"object":         "checkout.session",
		"metadata":       map[string]string{"order_id": h.orderID.String()},
		"payment_intent": "pi_1",
		"payment_status": "paid",
	})

	_, err := h.svc.HandleEvent(ctx, evt, payload)
	require.NoError(t, err)
	outcome, err := h.svc.HandleEvent(ctx, evt, payload)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeDuplicate, outcome.Result)

	assert.Equal(t, 1, h.orders.processCalls)
	rows := h.logs(t, "evt_dup")
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, enums.WebhookStatusProcessed, row.Status)
	}
	assert.Equal(t, 1.0, h.counter(t, "checkout.session.completed", metrics.OutcomeDuplicate))
}

func TestDuplicateDeliveryWithoutGuardStillSafe(t *testing.T) {
	h := newHarness(t)
	h.store.err = errors.New("redis down")
	ctx := context.Background()
	evt, payload := event(t, "evt_noguard", stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_1",
		"object":         "checkout.session",
		"metadata":       map[string]string{"order_id": h.orderID.String()},
		"payment_status": "paid",
	})

	for i := 0; i < 2; i++ {
		_, err := h.svc.HandleEvent(ctx, evt, payload)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, h.orders.processCalls)
	assert.Len(t, h.orders.payments, 1)
}

func TestPaymentIntentSucceededSkipsSettledOrders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.orders.views[h.orderID].Status = enums.OrderStatusCompleted
	h.orders.views[h.orderID].PaymentStatus = enums.PaymentStatusSucceeded

	evt, payload := event(t, "evt_pi", stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":       "pi_9",
		"object":   "payment_intent",
		"metadata": map[string]string{"order_id": h.orderID.String()},
	})
	outcome, err := h.svc.HandleEvent(ctx, evt, payload)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeDuplicate, outcome.Result)
	assert.Zero(t, h.orders.processCalls)
}

func TestPaymentIntentSucceededLeavesFailedFulfillmentAlone(t *testing.T) {
	h := newHarness(t)
	h.orders.views[h.orderID].Status = enums.OrderStatusFailed
	h.orders.views[h.orderID].PaymentStatus = enums.PaymentStatusSucceeded

	evt, payload := event(t, "evt_pi_retry", stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":       "pi_10",
		"object":   "payment_intent",
		"metadata": map[string]string{"order_id": h.orderID.String()},
	})
	outcome, err := h.svc.HandleEvent(context.Background(), evt, payload)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeDuplicate, outcome.Result)
	assert.Zero(t, h.orders.processCalls)
	assert.Empty(t, h.orders.payments)
}

func TestPaymentIntentSucceededSettlesPendingOrder(t *testing.T) {
	h := newHarness(t)

	evt, payload := event(t, "evt_pi_new", stripe.EventTypePaymentIntentSucceeded, map[string]any{
		"id":       "pi_11",
		"object":   "payment_intent",
		"metadata": map[string]string{"order_id": h.orderID.String()},
	})
	outcome, err := h.svc.HandleEvent(context.Background(), evt, payload)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeProcessed, outcome.Result)
	require.Len(t, h.orders.payments, 1)
	assert.Equal(t, "pi_11", h.orders.payments[0].PaymentRef)
}

func TestPaymentFailedUsesLastErrorMessage(t *testing.T) {
	h := newHarness(t)
	evt, payload := event(t, "evt_fail", stripe.EventTypePaymentIntentPaymentFailed, map[string]any{
		"id":                 "pi_2",
		"object":             "payment_intent",
		"metadata":           map[string]string{"order_id": h.orderID.String()},
		"last_payment_error": map[string]any{"message": "Your card was declined."},
	})

	_, err := h.svc.HandleEvent(context.Background(), evt, payload)
	require.NoError(t, err)
	assert.Equal(t, "Your card was declined.", h.orders.failures[h.orderID])
}

func TestDispatchErrorMarksLogFailedAndReleasesGuard(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.orders.processErr = pkgerrors.New(pkgerrors.CodeUpstreamFulfillment, "supplier order placement failed")
	evt, payload := event(t, "evt_err", stripe.EventTypeCheckoutSessionCompleted, map[string]any{
		"id":             "cs_3",
		"object":         "checkout.session",
		"metadata":       map[string]string{"order_id": h.orderID.String()},
		"payment_status": "paid",
	})

	outcome, err := h.svc.HandleEvent(ctx, evt, payload)
	require.Error(t, err)
	require.NotNil(t, outcome)
	assert.Equal(t, enums.WebhookStatusFailed, outcome.Status)

	rows := h.logs(t, "evt_err")
	require.Len(t, rows, 1)
	assert.Equal(t, enums.WebhookStatusFailed, rows[0].Status)
	require.NotNil(t, rows[0].ErrorMessage)
	assert.Contains(t, *rows[0].ErrorMessage, "supplier order placement failed")

	h.orders.processErr = nil
	_, err = h.svc.HandleEvent(ctx, evt, payload)
	require.NoError(t, err)
	assert.Len(t, h.orders.payments, 1)
}

func TestUnknownEventsAreAcked(t *testing.T) {
	h := newHarness(t)
	evt, payload := event(t, "evt_other", stripe.EventType("charge.refunded"), map[string]any{"id": "ch_1"})

	outcome, err := h.svc.HandleEvent(context.Background(), evt, payload)
	require.NoError(t, err)
	assert.Equal(t, metrics.OutcomeIgnored, outcome.Result)
	assert.Equal(t, enums.WebhookStatusProcessed, h.logs(t, "evt_other")[0].Status)
}

func TestMissingOrderReferenceFails(t *testing.T) {
	h := newHarness(t)
	evt, payload := event(t, "evt_noref", stripe.EventTypePaymentIntentSucceeded, map[string]any{"id": "pi_3"})

	_, err := h.svc.HandleEvent(context.Background(), evt, payload)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	assert.Equal(t, enums.WebhookStatusFailed, h.logs(t, "evt_noref")[0].Status)
}
