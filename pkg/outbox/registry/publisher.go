// Package registry maps outbox event types to Pub/Sub topics and payload schemas.
package registry

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox/payloads"
)

// EventDescriptor links an event type to its aggregate, topic and payload schema.
type EventDescriptor struct {
	EventType      enums.OutboxEventType
	AggregateType  enums.OutboxAggregateType
	Topic          string
	PayloadFactory func() any
}

// ResolvedEvent is a decoded outbox row ready to publish.
type ResolvedEvent struct {
	Descriptor EventDescriptor
	Envelope   outbox.PayloadEnvelope
	Payload    any
}

type EventRegistry struct {
	entries map[enums.OutboxEventType]EventDescriptor
}

// ErrPermanent marks failures that retrying cannot fix; the publisher
// dead-letters such rows at once.
var ErrPermanent = errors.New("permanent outbox failure")

// Permanent wraps err with ErrPermanent.
func Permanent(format string, args ...any) error {
	return fmt.Errorf("%w: %w", ErrPermanent, fmt.Errorf(format, args...))
}

// IsPermanent reports whether err carries ErrPermanent.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

// NewEventRegistry routes fulfillment requests to the fulfillment topic and everything else to notifications.
func NewEventRegistry(cfg config.PubSubConfig) (*EventRegistry, error) {
	if cfg.FulfillmentTopic == "" {
		return nil, fmt.Errorf("fulfillment topic is required")
	}
	if cfg.NotificationTopic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}

	reg := &EventRegistry{entries: make(map[enums.OutboxEventType]EventDescriptor)}
	reg.register(EventDescriptor{
		EventType:      enums.EventFulfillmentAutomationRequested,
		AggregateType:  enums.AggregateOrder,
		Topic:          cfg.FulfillmentTopic,
		PayloadFactory: func() any { return &payloads.FulfillmentAutomationRequestedEvent{} },
	})
	for _, desc := range []EventDescriptor{
		{
			EventType:      enums.EventOrderPaid,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() any { return &payloads.OrderPaidEvent{} },
		},
		{
			EventType:      enums.EventPaymentFailed,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() any { return &payloads.PaymentFailedEvent{} },
		},
		{
			EventType:      enums.EventFulfillmentFailed,
			AggregateType:  enums.AggregateOrder,
			PayloadFactory: func() any { return &payloads.FulfillmentFailedEvent{} },
		},
		{
			EventType:      enums.EventPayoutCreated,
			AggregateType:  enums.AggregatePayout,
			PayloadFactory: func() any { return &payloads.PayoutCreatedEvent{} },
		},
		{
			EventType:      enums.EventPayoutCompleted,
			AggregateType:  enums.AggregatePayout,
			PayloadFactory: func() any { return &payloads.PayoutCompletedEvent{} },
		},
		{
			EventType:      enums.EventBrokerOnboarded,
			AggregateType:  enums.AggregateBroker,
			PayloadFactory: func() any { return &payloads.BrokerOnboardedEvent{} },
		},
	} {
		desc.Topic = cfg.NotificationTopic
		reg.register(desc)
	}
	return reg, nil
}

func (r *EventRegistry) register(desc EventDescriptor) {
	if desc.PayloadFactory == nil {
		return
	}
	r.entries[desc.EventType] = desc
}

// Resolve validates the row and decodes its typed payload. Every failure
// is permanent.
func (r *EventRegistry) Resolve(event models.OutboxEvent) (*ResolvedEvent, error) {
	desc, ok := r.entries[event.EventType]
	switch {
	case !ok:
		return nil, Permanent("unsupported event type %s", event.EventType)
	case desc.AggregateType != event.AggregateType:
		return nil, Permanent("aggregate mismatch: expected %s got %s", desc.AggregateType, event.AggregateType)
	case event.AggregateID == uuid.Nil:
		return nil, Permanent("missing aggregate_id")
	}

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent("%s: %w", event.EventType, err)
	}
	payload := desc.PayloadFactory()
	if err := json.Unmarshal(envelope.Data, payload); err != nil {
		return nil, Permanent("decode %s payload: %w", event.EventType, err)
	}
	return &ResolvedEvent{Descriptor: desc, Envelope: envelope, Payload: payload}, nil
}
