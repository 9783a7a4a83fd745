// Package cron runs the worker's scheduled jobs, each on its own ticker and
// under its own distributed lock.
package cron

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
)

const defaultInterval = 24 * time.Hour

// ServiceParams configure the cron service.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service executes registered cron jobs on their cadence.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	interval := params.Interval
	if interval <= 0 {
		interval = defaultInterval
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		interval: interval,
	}, nil
}

// Run runs every job once immediately, then on its interval, until ctx is
// canceled. Jobs never overlap with themselves on this replica.
func (s *Service) Run(ctx context.Context) error {
	var g errgroup.Group
	for _, entry := range s.registry.Entries() {
		interval := entry.Interval
		if interval <= 0 {
			interval = s.interval
		}
		job := entry.Job
		g.Go(func() error {
			s.loop(ctx, job, interval)
			return nil
		})
	}
	_ = g.Wait()
	s.logg.Info(ctx, "cron service stopped")
	return ctx.Err()
}

func (s *Service) loop(ctx context.Context, job Job, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		s.runOnce(ctx, job)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// runOnce executes job if this replica wins its lock and reports whether
// the job ran. A panicking job counts as a failed run.
func (s *Service) runOnce(ctx context.Context, job Job) bool {
	name := job.Name()
	jobCtx := s.logg.WithFields(ctx, map[string]any{"job": name, "event": "cron.job"})

	lock, err := s.locks(name)
	if err == nil {
		var locked bool
		locked, err = lock.Acquire(ctx)
		if err == nil && !locked {
			s.logg.Info(jobCtx, "job running on another replica; skipping")
			s.metrics.IncSkipped(name)
			return false
		}
	}
	if err != nil {
		s.logg.Error(jobCtx, "job lock unavailable", err)
		s.metrics.IncFailure(name)
		return false
	}
	defer func() {
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(jobCtx, "failed to release job lock", err)
		}
	}()

	s.logg.Info(jobCtx, "job start")
	start := time.Now()
	err = s.safeRun(jobCtx, job)
	elapsed := time.Since(start)
	s.metrics.ObserveDuration(name, elapsed)

	jobCtx = s.logg.WithField(jobCtx, "duration_ms", elapsed.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(name)
		return true
	}
	s.logg.Info(jobCtx, "job completed")
	s.metrics.IncSuccess(name)
	return true
}

func (s *Service) safeRun(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return job.Run(ctx)
}
