package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
	"github.com/angelmondragon/tradelines-backend/pkg/redis/redistest"
)

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func newTestService(t *testing.T, store *redistest.Store, jobs ...Job) (*Service, *prometheus.Registry) {
	t.Helper()
	registry := NewRegistry()
	for _, job := range jobs {
		require.NoError(t, registry.Register(job, time.Hour))
	}
	reg := prometheus.NewRegistry()
	svc, err := NewService(ServiceParams{
		Logger:   logger.New(logger.Options{ServiceName: "cron-test"}),
		Registry: registry,
		Locks:    RedisLockFactory(store, "test", WithLockTTL(time.Minute)),
		Metrics:  metrics.NewCronJobMetrics(reg),
	})
	require.NoError(t, err)
	return svc, reg
}

// counterValue sums the series of name whose labels include want.
func counterValue(t *testing.T, reg *prometheus.Registry, name string, want map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	total := 0.0
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
		for _, m := range family.GetMetric() {
			matched := 0
			for _, l := range m.GetLabel() {
				if v, ok := want[l.GetName()]; ok && v == l.GetValue() {
					matched++
				}
			}
			if matched == len(want) {
				total += m.GetCounter().GetValue()
			}
		}
	}
	return total
}

func runs(job, result string) map[string]string {
	return map[string]string{"job": job, "result": result}
}

func TestRunOnceRecordsOutcomeAndReleasesLock(t *testing.T) {
	store := redistest.NewStore()
	ok := &testJob{name: "payout-batch"}
	failing := &testJob{name: "outbox-retention", err: errors.New("boom")}
	svc, reg := newTestService(t, store, ok, failing)
	ctx := context.Background()

	assert.True(t, svc.runOnce(ctx, ok))
	assert.True(t, svc.runOnce(ctx, failing))
	assert.True(t, svc.runOnce(ctx, ok), "lock is released after each run")

	assert.Equal(t, 2, ok.runs)
	assert.Equal(t, 1, failing.runs)
	assert.Equal(t, 2.0, counterValue(t, reg, "tradelines_cron_job_runs_total", runs("payout-batch", "success")))
	assert.Equal(t, 1.0, counterValue(t, reg, "tradelines_cron_job_runs_total", runs("outbox-retention", "failure")))
	assert.Empty(t, store.Keys())
}

func TestRunOnceSkipsWhenAnotherReplicaHoldsLock(t *testing.T) {
	store := redistest.NewStore()
	job := &testJob{name: "payout-batch"}
	svc, reg := newTestService(t, store, job)
	ctx := context.Background()

	held, err := NewRedisLock(store, "tl:lock:cron:test:payout-batch", WithLockTTL(time.Minute), WithLockHolder("worker.2"))
	require.NoError(t, err)
	acquired, err := held.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, acquired)

	holder, err := held.Holder(ctx)
	require.NoError(t, err)
	assert.Equal(t, "worker.2", holder)

	assert.False(t, svc.runOnce(ctx, job))
	assert.Zero(t, job.runs)
	assert.Equal(t, 1.0, counterValue(t, reg, "tradelines_cron_cycle_skipped_total", map[string]string{"lock": "payout-batch"}))

	require.NoError(t, held.Release(ctx))
	assert.True(t, svc.runOnce(ctx, job))
}

type panicJob struct{}

func (panicJob) Name() string { return "panics" }

func (panicJob) Run(context.Context) error { panic("nil map write") }

func TestRunOnceRecoversPanics(t *testing.T) {
	store := redistest.NewStore()
	svc, reg := newTestService(t, store, panicJob{})

	assert.NotPanics(t, func() {
		assert.True(t, svc.runOnce(context.Background(), panicJob{}))
	})
	assert.Equal(t, 1.0, counterValue(t, reg, "tradelines_cron_job_runs_total", runs("panics", "failure")))
	assert.Empty(t, store.Keys(), "lock released after panic")
}

type signalJob struct {
	ran chan struct{}
}

func (s *signalJob) Name() string { return "signal" }

func (s *signalJob) Run(context.Context) error {
	select {
	case s.ran <- struct{}{}:
	default:
	}
	return nil
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &signalJob{ran: make(chan struct{}, 1)}
	svc, _ := newTestService(t, redistest.NewStore(), job)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	select {
	case <-job.ran:
	case <-time.After(time.Second):
		t.Fatal("job did not run on start")
	}
	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cron service did not stop")
	}
}

func TestRedisLockReleaseIgnoresForeignOwner(t *testing.T) {
	store := redistest.NewStore()
	ctx := context.Background()
	lock, err := NewRedisLock(store, "tl:lock:cron:test:x", WithLockTTL(time.Minute))
	require.NoError(t, err)

	ok, err := lock.Acquire(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.NoError(t, store.Set(ctx, lock.Key(), "someone-else", time.Minute))

	require.NoError(t, lock.Release(ctx))
	value, err := store.Get(ctx, lock.Key())
	require.NoError(t, err)
	assert.Equal(t, "someone-else", value)
}

func TestRedisLockHolderWhenFree(t *testing.T) {
	lock, err := NewRedisLock(redistest.NewStore(), "tl:lock:cron:test:free")
	require.NoError(t, err)

	holder, err := lock.Holder(context.Background())
	require.NoError(t, err)
	assert.Empty(t, holder)
}
