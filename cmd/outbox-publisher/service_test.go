package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/pkg/config"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox/registry"
)

func TestProcessBatchContinuesAfterTransientFailure(t *testing.T) {
	repo := &fakeRepo{events: []models.OutboxEvent{
		orderPaidRow(t, 0),
		orderPaidRow(t, 0),
	}}
	pub := &fakePublisher{results: []publishResult{
		fakePublishResult{err: errors.New("transient")},
		fakePublishResult{},
	}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("notifications")}, dlq, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.True(t, processed)
	assert.Equal(t, []uuid.UUID{repo.events[0].ID}, repo.failed)
	assert.Equal(t, []uuid.UUID{repo.events[1].ID}, repo.published)
	assert.Empty(t, dlq.entries)
}

func TestProcessBatchEmptyReportsIdle(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)

	processed, err := service.processBatch(context.Background())
	require.NoError(t, err)
	assert.False(t, processed)
}

func TestProcessBatchDeadLettersUnresolvableRow(t *testing.T) {
	row := orderPaidRow(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	reg := &fakeRegistry{err: registry.Permanent("invalid payload")}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, &fakePublisher{}, reg, dlq, nil)

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	entry := dlq.entries[0]
	assert.Equal(t, row.ID, entry.EventID)
	assert.JSONEq(t, string(row.Payload), string(entry.Payload))
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, entry.ErrorReason)
	require.NotNil(t, entry.ErrorMessage)
	assert.Contains(t, *entry.ErrorMessage, "invalid payload")
	assert.Equal(t, []uuid.UUID{row.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	row := orderPaidRow(t, 1)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{err: errors.New("deadline exceeded")}}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("notifications")}, dlq, &config.OutboxConfig{
		BatchSize:      1,
		PollIntervalMS: 100,
		MaxAttempts:    2,
	})

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonMaxAttempts, dlq.entries[0].ErrorReason)
	assert.Empty(t, repo.failed)
	assert.Equal(t, []uuid.UUID{row.ID}, repo.terminal)
}

func TestProcessBatchDeadLettersMissingPublisher(t *testing.T) {
	row := orderPaidRow(t, 0)
	repo := &fakeRepo{events: []models.OutboxEvent{row}}
	dlq := &fakeDLQRepo{}
	service := newTestService(t, repo, nil, &fakeRegistry{resolved: resolvedFor("fulfillment")}, dlq, nil)
	service.publisherFactory = func(string) publisher { return nil }

	_, err := service.processBatch(context.Background())
	require.NoError(t, err)
	require.Len(t, dlq.entries, 1)
	assert.Equal(t, enums.OutboxDLQReasonNonRetryable, dlq.entries[0].ErrorReason)
}

func TestProcessBatchAbortsWhenBookkeepingFails(t *testing.T) {
	repo := &fakeRepo{
		events:     []models.OutboxEvent{orderPaidRow(t, 0)},
		publishErr: errors.New("connection reset"),
	}
	pub := &fakePublisher{results: []publishResult{fakePublishResult{}}}
	service := newTestService(t, repo, pub, &fakeRegistry{resolved: resolvedFor("notifications")}, &fakeDLQRepo{}, nil)

	_, err := service.processBatch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mark published")
}

func TestMessageAttributesCarryRoutingKeys(t *testing.T) {
	row := orderPaidRow(t, 0)
	attrs := messageAttributes(row, outbox.PayloadEnvelope{EventID: "evt-1"})
	assert.Equal(t, "evt-1", attrs["event_id"])
	assert.Equal(t, string(enums.EventOrderPaid), attrs["event_type"])
	assert.Equal(t, string(enums.AggregateOrder), attrs["aggregate_type"])
	assert.Equal(t, row.AggregateID.String(), attrs["aggregate_id"])

	attrs = messageAttributes(row, outbox.PayloadEnvelope{})
	assert.Equal(t, row.ID.String(), attrs["event_id"])
}

func TestNewServiceAppliesDefaults(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, &config.OutboxConfig{})
	assert.Equal(t, defaultBatchSize, service.batchSize)
	assert.Equal(t, defaultMaxAttempts, service.maxAttempts)
	assert.Equal(t, time.Duration(defaultPollMs)*time.Millisecond, service.pollInterval)

	_, err := NewService(ServiceParams{})
	assert.Error(t, err)
}

func TestBackoffIsCapped(t *testing.T) {
	service := newTestService(t, &fakeRepo{}, &fakePublisher{}, &fakeRegistry{}, &fakeDLQRepo{}, nil)
	b := service.newBackoff()
	var last time.Duration
	for i := 0; i < 20; i++ {
		next, stop := b.Next()
		require.False(t, stop)
		last = next
	}
	assert.LessOrEqual(t, last, maxBackoff+jitterWindow)
}

func newTestService(t *testing.T, repo outboxRepository, pub publisher, reg registryResolver, dlq dlqRepository, override *config.OutboxConfig) *Service {
	t.Helper()
	outboxCfg := config.OutboxConfig{
		BatchSize:      2,
		PollIntervalMS: 100,
		MaxAttempts:    5,
	}
	if override != nil {
		outboxCfg = *override
	}
	service, err := NewService(ServiceParams{
		Config:           &config.Config{Outbox: outboxCfg},
		Logger:           logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		DB:               &fakeDB{},
		PubSub:           &fakePubSubClient{},
		Repository:       repo,
		Registry:         reg,
		PublisherFactory: func(string) publisher { return pub },
		DLQRepository:    dlq,
	})
	require.NoError(t, err)
	return service
}

func orderPaidRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	id := uuid.New()
	data, err := json.Marshal(payloads.OrderPaidEvent{})
	require.NoError(t, err)
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    1,
		EventID:    id.String(),
		OccurredAt: time.Now().UTC(),
		Data:       data,
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            id,
		EventType:     enums.EventOrderPaid,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func resolvedFor(topic string) *registry.ResolvedEvent {
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			Topic:         topic,
		},
		Payload: &payloads.OrderPaidEvent{},
	}
}

type fakeRepo struct {
	events     []models.OutboxEvent
	published  []uuid.UUID
	failed     []uuid.UUID
	terminal   []uuid.UUID
	publishErr error
}

func (f *fakeRepo) FetchUnpublishedForPublish(*gorm.DB, int, int) ([]models.OutboxEvent, error) {
	return f.events, nil
}

func (f *fakeRepo) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, _ int) error {
	f.terminal = append(f.terminal, id)
	return nil
}

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(_ context.Context, fn func(*gorm.DB) error) error { return fn(nil) }

type fakePubSubClient struct{}

func (fakePubSubClient) Ping(context.Context) error { return nil }

func (fakePubSubClient) Publisher(string) *gcppubsub.Publisher { return nil }

type fakePublisher struct {
	results []publishResult
}

func (f *fakePublisher) Publish(context.Context, *gcppubsub.Message) publishResult {
	if len(f.results) == 0 {
		return nil
	}
	result := f.results[0]
	f.results = f.results[1:]
	return result
}

type fakePublishResult struct {
	err error
}

func (f fakePublishResult) Get(context.Context) (string, error) {
	return "server-id", f.err
}

type fakeRegistry struct {
	resolved *registry.ResolvedEvent
	err      error
}

func (f *fakeRegistry) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if f.err != nil {
		return nil, f.err
	}
	if f.resolved == nil {
		return nil, registry.Permanent("unknown event")
	}
	resolved := *f.resolved
	resolved.Envelope = outbox.PayloadEnvelope{EventID: event.ID.String(), OccurredAt: time.Now()}
	return &resolved, nil
}

type fakeDLQRepo struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQRepo) DeadLetterTx(_ *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, failedAt time.Time) error {
	msg := cause.Error()
	f.entries = append(f.entries, models.OutboxDLQ{
		EventID:      event.ID,
		EventType:    event.EventType,
		ErrorReason:  reason,
		ErrorMessage: &msg,
		AttemptCount: event.AttemptCount,
		FailedAt:     failedAt,
	})
	return nil
}
