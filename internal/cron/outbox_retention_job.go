package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

const (
	outboxRetentionDays  = 30
	outboxExhaustedAfter = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type OutboxRetentionJobParams struct {
	Logger            *logger.Logger
	DB                txRunner
	Repository        outboxRetentionRepo
	RetentionDays     int
	ExhaustedAttempts int
}

type outboxRetentionRepo interface {
	DeleteSettledBefore(tx *gorm.DB, cutoff time.Time, exhaustedAttempts int) (int64, error)
}

// NewOutboxRetentionJob prunes outbox rows that were published or gave up
// before the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = outboxRetentionDays
	}
	exhausted := params.ExhaustedAttempts
	if exhausted <= 0 {
		exhausted = outboxExhaustedAfter
	}
	return &outboxRetentionJob{
		logg:      params.Logger,
		db:        params.DB,
		repo:      params.Repository,
		retention: retention,
		exhausted: exhausted,
		now:       time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg      *logger.Logger
	db        txRunner
	repo      outboxRetentionRepo
	retention int
	exhausted int
	now       func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.repo.DeleteSettledBefore(tx, cutoff, j.exhausted)
		if err != nil {
			return err
		}
		deleted = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":             cutoff,
		"retention_days":     j.retention,
		"exhausted_attempts": j.exhausted,
		"rows_deleted":       deleted,
	}), "outbox retention cleanup complete")
	return nil
}
