package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tradelines-backend/internal/payouts"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

type fakeBatcher struct {
	brokers []uuid.UUID
	listErr error
	results map[uuid.UUID]error
	inputs  []payouts.CreatePayoutInput
}

func (f *fakeBatcher) BrokersWithPendingCommission(context.Context) ([]uuid.UUID, error) {
	return f.brokers, f.listErr
}

func (f *fakeBatcher) CreatePayout(_ context.Context, input payouts.CreatePayoutInput) (*payouts.PayoutView, error) {
	f.inputs = append(f.inputs, input)
	if err := f.results[input.BrokerID]; err != nil {
		return nil, err
	}
	return &payouts.PayoutView{ID: uuid.New(), BrokerID: input.BrokerID, TotalAmount: 5000}, nil
}

func newPayoutBatchJob(t *testing.T, batcher *fakeBatcher) *payoutBatchJob {
	t.Helper()
	job, err := NewPayoutBatchJob(PayoutBatchJobParams{
		Logger:        logger.New(logger.Options{ServiceName: "test"}),
		Payouts:       batcher,
		PaymentMethod: "wire",
	})
	require.NoError(t, err)
	return job.(*payoutBatchJob)
}

func TestPayoutBatchJobCreatesPayoutPerBroker(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	batcher := &fakeBatcher{brokers: []uuid.UUID{a, b}}
	job := newPayoutBatchJob(t, batcher)
	now := time.Date(2026, 10, 12, 6, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))
	require.Len(t, batcher.inputs, 2)
	for _, input := range batcher.inputs {
		assert.Equal(t, now, input.PeriodEnd)
		assert.Equal(t, now.AddDate(0, 0, -defaultPayoutPeriodDays), input.PeriodStart)
		assert.Equal(t, "WIRE", input.PaymentMethod)
		assert.Equal(t, payouts.TriggerCron, input.Trigger)
		assert.Equal(t, cronActor, input.ActorID)
	}
	assert.Equal(t, "payout-batch", job.Name())
}

func TestPayoutBatchJobSkipsConflictsAndAggregatesFailures(t *testing.T) {
	ok, raced, broken1, broken2 := uuid.New(), uuid.New(), uuid.New(), uuid.New()
	batcher := &fakeBatcher{
		brokers: []uuid.UUID{ok, raced, broken1, broken2},
		results: map[uuid.UUID]error{
			raced:   pkgerrors.New(pkgerrors.CodeStateConflict, "no pending commission to pay out"),
			broken1: pkgerrors.New(pkgerrors.CodeDependency, "db down"),
			broken2: errors.New("timeout"),
		},
	}
	job := newPayoutBatchJob(t, batcher)

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 2)
	assert.Len(t, batcher.inputs, 4, "a failing broker does not stop the batch")
}

func TestPayoutBatchJobListFailure(t *testing.T) {
	job := newPayoutBatchJob(t, &fakeBatcher{listErr: errors.New("db down")})
	assert.ErrorContains(t, job.Run(context.Background()), "db down")
}

func TestNewPayoutBatchJobRequiresService(t *testing.T) {
	_, err := NewPayoutBatchJob(PayoutBatchJobParams{Logger: logger.New(logger.Options{ServiceName: "test"})})
	assert.Error(t, err)
}
