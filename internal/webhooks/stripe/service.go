// Package stripewebhook reconciles verified Stripe events with order state.
package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/tradelines-backend/internal/orders"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
)

type orderProcessor interface {
	Get(ctx context.Context, orderID uuid.UUID) (*orders.OrderView, error)
	ProcessPayment(ctx context.Context, input orders.ProcessPaymentInput) (*orders.OrderView, error)
	HandlePaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) (*orders.OrderView, error)
	UpdateCustomerDetails(ctx context.Context, orderID uuid.UUID, name, phone *string) error
}

type deliveryGuard interface {
	Claim(ctx context.Context, eventID string) (bool, error)
	Release(ctx context.Context, eventID string) error
}

// Outcome reports how a delivery was recorded. A non-nil Outcome means the
// audit row is durable even when HandleEvent also returns an error.
type Outcome struct {
	LogID  uuid.UUID
	Status enums.WebhookStatus
	Result string
}

type ServiceParams struct {
	Logs    LogRepository
	Orders  orderProcessor
	Guard   deliveryGuard
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

type Service struct {
	logs    LogRepository
	orders  orderProcessor
	guard   deliveryGuard
	metrics *metrics.WebhookMetrics
	logg    *logger.Logger
	now     func() time.Time
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logs == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "webhook log repository required")
	}
	if params.Orders == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order service required")
	}
	return &Service{
		logs:    params.Logs,
		orders:  params.Orders,
		guard:   params.Guard,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     time.Now,
	}, nil
}

// HandleEvent records the delivery as PROCESSING, dispatches it and stores
// the final status.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event, payload []byte) (*Outcome, error) {
	if event == nil || event.Data == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}
	eventType := string(event.Type)
	if s.logg != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{"stripe_event_id": event.ID, "stripe_event_type": eventType})
	}

	entry := &models.WebhookLog{
		ID:        uuid.New(),
		Source:    enums.WebhookSourceStripe,
		EventType: eventType,
		EventID:   event.ID,
		Status:    enums.WebhookStatusProcessing,
		Payload:   jsonPayload(payload),
	}
	if err := s.logs.Create(ctx, entry); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record webhook delivery")
	}
	outcome := &Outcome{LogID: entry.ID, Status: enums.WebhookStatusProcessing}

	claimed := false
	if s.guard != nil && event.ID != "" {
		first, err := s.guard.Claim(ctx, event.ID)
		switch {
		case err != nil:
			s.warn(ctx, "webhook idempotency guard unavailable", err)
		case !first:
			outcome.Result = metrics.OutcomeDuplicate
			return outcome, s.finish(ctx, outcome, eventType, nil)
		default:
			claimed = true
		}
	}

	result, dispatchErr := s.dispatch(ctx, event)
	outcome.Result = result
	if dispatchErr != nil && claimed {
		if err := s.guard.Release(ctx, event.ID); err != nil {
			s.warn(ctx, "webhook idempotency release failed", err)
		}
	}
	if err := s.finish(ctx, outcome, eventType, dispatchErr); err != nil {
		return outcome, err
	}
	return outcome, dispatchErr
}

func (s *Service) finish(ctx context.Context, outcome *Outcome, eventType string, dispatchErr error) error {
	status := enums.WebhookStatusProcessed
	var message *string
	if dispatchErr != nil {
		status = enums.WebhookStatusFailed
		msg := dispatchErr.Error()
		message = &msg
		outcome.Result = metrics.OutcomeFailed
	}
	outcome.Status = status
	s.metrics.Observe(enums.WebhookSourceStripe, eventType, outcome.Result)

	if err := s.logs.MarkResult(ctx, outcome.LogID, status, message, s.now().UTC()); err != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "update webhook log failed", err)
		}
		if dispatchErr == nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update webhook log")
		}
	}
	if dispatchErr != nil && s.logg != nil {
		s.logg.Error(ctx, "stripe webhook dispatch failed", dispatchErr)
	}
	return nil
}

func (s *Service) dispatch(ctx context.Context, event *stripe.Event) (string, error) {
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		return s.checkoutCompleted(ctx, event)
	case stripe.EventTypePaymentIntentSucceeded:
		return s.paymentSucceeded(ctx, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		return s.paymentFailed(ctx, event)
	default:
		if s.logg != nil {
			s.logg.Info(ctx, "stripe event ignored")
		}
		return metrics.OutcomeIgnored, nil
	}
}

func (s *Service) checkoutCompleted(ctx context.Context, event *stripe.Event) (string, error) {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session")
	}
	orderID, err := orderIDFrom(session.Metadata, session.ClientReferenceID)
	if err != nil {
		return "", err
	}
	if session.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid {
		// Delayed methods settle later through payment_intent.succeeded.
		return metrics.OutcomeIgnored, nil
	}

	if details := session.CustomerDetails; details != nil {
		if err := s.orders.UpdateCustomerDetails(ctx, orderID, &details.Name, &details.Phone); err != nil {
			return "", err
		}
	}

	ref := session.ID
	if session.PaymentIntent != nil && session.PaymentIntent.ID != "" {
		ref = session.PaymentIntent.ID
	}
	if _, err := s.orders.ProcessPayment(ctx, orders.ProcessPaymentInput{
		OrderID:    orderID,
		PaymentRef: ref,
		Method:     enums.PaymentMethodStripe,
		ActorID:    "stripe",
	}); err != nil {
		return "", err
	}
	return metrics.OutcomeProcessed, nil
}

func (s *Service) paymentSucceeded(ctx context.Context, event *stripe.Event) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	orderID, err := orderIDFrom(intent.Metadata, "")
	if err != nil {
		return "", err
	}
	order, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return "", err
	}
	// Captured money is never re-settled here; fulfillment retries go through
	// ProcessPayment explicitly.
	if order.PaymentStatus == enums.PaymentStatusSucceeded {
		return metrics.OutcomeDuplicate, nil
	}
	if _, err := s.orders.ProcessPayment(ctx, orders.ProcessPaymentInput{
		OrderID:    orderID,
		PaymentRef: intent.ID,
		Method:     enums.PaymentMethodStripe,
		ActorID:    "stripe",
	}); err != nil {
		return "", err
	}
	return metrics.OutcomeProcessed, nil
}

func (s *Service) paymentFailed(ctx context.Context, event *stripe.Event) (string, error) {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent")
	}
	orderID, err := orderIDFrom(intent.Metadata, "")
	if err != nil {
		return "", err
	}
	reason := "payment failed"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	if _, err := s.orders.HandlePaymentFailed(ctx, orderID, reason); err != nil {
		return "", err
	}
	return metrics.OutcomeProcessed, nil
}

func orderIDFrom(metadata map[string]string, fallback string) (uuid.UUID, error) {
	raw := strings.TrimSpace(metadata["order_id"])
	if raw == "" {
		raw = strings.TrimSpace(fallback)
	}
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "order reference missing from event")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order reference %q", raw)
	}
	return id, nil
}

// jsonPayload keeps the raw body when it is valid JSON so the jsonb column accepts it.
func jsonPayload(payload []byte) json.RawMessage {
	if len(payload) == 0 || !json.Valid(payload) {
		return json.RawMessage(fmt.Sprintf("%q", string(payload)))
	}
	return json.RawMessage(payload)
}

func (s *Service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}
