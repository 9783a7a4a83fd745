package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/tradelines-backend/api/responses"
	stripewebhook "github.com/angelmondragon/tradelines-backend/internal/webhooks/stripe"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
)

const maxWebhookBody = 1 << 16

type StripeWebhookService interface {
	HandleEvent(ctx context.Context, event *stripe.Event, payload []byte) (*stripewebhook.Outcome, error)
}

// Signer exposes the endpoint signing secret.
type Signer interface {
	SigningSecret() string
}

// StripeWebhook verifies and reconciles Stripe payment events. Once the
// delivery is durably logged the endpoint answers 200, even if processing
// failed, so Stripe does not retry a delivery that is already on record.
func StripeWebhook(svc StripeWebhookService, signer Signer, counter *metrics.WebhookMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil || signer == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeDependency, "card payments not configured"))
			return
		}

		payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "read request body"))
			return
		}

		event, err := webhook.ConstructEventWithOptions(payload, r.Header.Get("Stripe-Signature"), signer.SigningSecret(),
			webhook.ConstructEventOptions{Tolerance: webhook.DefaultTolerance, IgnoreAPIVersionMismatch: true})
		if err != nil {
			counter.Observe(string(enums.WebhookSourceStripe), "unknown", metrics.OutcomeInvalidSignature)
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{
					"event":     "security.webhook_signature_invalid",
					"source":    "stripe",
					"remote_ip": r.RemoteAddr,
					"reason":    err.Error(),
				}), "stripe webhook signature rejected")
			}
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeSignature, err, "invalid signature"))
			return
		}

		outcome, err := svc.HandleEvent(ctx, &event, payload)
		if outcome == nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if err != nil && logg != nil {
			logg.Error(logg.WithFields(ctx, map[string]any{
				"stripe_event_id": event.ID,
				"webhook_log_id":  outcome.LogID.String(),
			}), "stripe event processing failed", err)
		}
		responses.WriteSuccess(w, map[string]any{
			"received": true,
			"event_id": event.ID,
			"status":   outcome.Status,
			"result":   outcome.Result,
		})
	}
}
