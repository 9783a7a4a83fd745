package outbox

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// envelopeVersion is stamped on envelopes whose event leaves Version unset.
const envelopeVersion = 1

var errEmptyData = errors.New("envelope carries no data")

// ActorRef identifies who caused the event.
type ActorRef struct {
	ActorID  string     `json:"actorId"`
	BrokerID *uuid.UUID `json:"brokerId,omitempty"`
	Role     string     `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON stored in outbox_events.payload and published
// unchanged as the Pub/Sub message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// encodeEnvelope wraps event.Data with a fresh event ID.
func encodeEnvelope(event DomainEvent, now time.Time) (PayloadEnvelope, []byte, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("encode %s payload: %w", event.EventType, err)
	}
	env := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Actor:      event.Actor,
		Data:       data,
	}
	if env.Version == 0 {
		env.Version = envelopeVersion
	}
	if env.OccurredAt.IsZero() {
		env.OccurredAt = now
	}
	env.OccurredAt = env.OccurredAt.UTC()

	raw, err := json.Marshal(env)
	if err != nil {
		return PayloadEnvelope{}, nil, fmt.Errorf("encode envelope: %w", err)
	}
	return env, raw, nil
}

// DecodeEnvelope parses a stored payload and rejects envelopes without data.
func DecodeEnvelope(raw []byte) (PayloadEnvelope, error) {
	var env PayloadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return PayloadEnvelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	data := bytes.TrimSpace(env.Data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return PayloadEnvelope{}, errEmptyData
	}
	return env, nil
}
