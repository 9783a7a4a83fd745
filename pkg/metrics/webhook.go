package metrics

import "github.com/prometheus/client_golang/prometheus"

// Webhook outcomes.
const (
	OutcomeProcessed        = "processed"
	OutcomeFailed           = "failed"
	OutcomeIgnored          = "ignored"
	OutcomeDuplicate        = "duplicate"
	OutcomeInvalidSignature = "invalid_signature"
)

// WebhookMetrics counts inbound gateway events by type and outcome.
type WebhookMetrics struct {
	events *prometheus.CounterVec
}

func NewWebhookMetrics(reg prometheus.Registerer) *WebhookMetrics {
	if reg == nil {
		return nil
	}
	events := counterVec("webhook", "events_total", "Inbound webhook events by source, type and outcome.", "source", "event_type", "outcome")
	reg.MustRegister(events)
	return &WebhookMetrics{events: events}
}

func (w *WebhookMetrics) Observe(source, eventType, outcome string) {
	if w != nil {
		w.events.WithLabelValues(label(source), label(eventType), label(outcome)).Inc()
	}
}
