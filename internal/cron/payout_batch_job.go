package cron

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/angelmondragon/tradelines-backend/internal/payouts"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
)

const (
	defaultPayoutPeriodDays = 7
	defaultPayoutMethod     = "ACH"
	cronActor               = "cron"
)

type payoutBatcher interface {
	BrokersWithPendingCommission(ctx context.Context) ([]uuid.UUID, error)
	CreatePayout(ctx context.Context, input payouts.CreatePayoutInput) (*payouts.PayoutView, error)
}

type PayoutBatchJobParams struct {
	Logger        *logger.Logger
	Payouts       payoutBatcher
	PeriodDays    int
	PaymentMethod string
}

// NewPayoutBatchJob creates one payout per broker holding pending commission
// for the trailing period ending at the run time.
func NewPayoutBatchJob(params PayoutBatchJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Payouts == nil {
		return nil, fmt.Errorf("payout service required")
	}
	days := params.PeriodDays
	if days <= 0 {
		days = defaultPayoutPeriodDays
	}
	method := strings.ToUpper(strings.TrimSpace(params.PaymentMethod))
	if method == "" {
		method = defaultPayoutMethod
	}
	return &payoutBatchJob{
		logg:    params.Logger,
		payouts: params.Payouts,
		days:    days,
		method:  method,
		now:     time.Now,
	}, nil
}

type payoutBatchJob struct {
	logg    *logger.Logger
	payouts payoutBatcher
	days    int
	method  string
	now     func() time.Time
}

func (j *payoutBatchJob) Name() string { return "payout-batch" }

func (j *payoutBatchJob) Run(ctx context.Context) error {
	brokerIDs, err := j.payouts.BrokersWithPendingCommission(ctx)
	if err != nil {
		return fmt.Errorf("list brokers with pending commission: %w", err)
	}
	end := j.now().UTC()
	start := end.AddDate(0, 0, -j.days)

	var (
		errs    error
		created int
		skipped int
		total   int64
	)
	for _, brokerID := range brokerIDs {
		if ctx.Err() != nil {
			return multierr.Append(errs, ctx.Err())
		}
		brokerCtx := j.logg.WithField(ctx, "broker_id", brokerID.String())
		view, err := j.payouts.CreatePayout(brokerCtx, payouts.CreatePayoutInput{
			BrokerID:      brokerID,
			PeriodStart:   start,
			PeriodEnd:     end,
			PaymentMethod: j.method,
			Trigger:       payouts.TriggerCron,
			ActorID:       cronActor,
		})
		switch {
		case err == nil:
			created++
			total += view.TotalAmount
		case pkgerrors.IsCode(err, pkgerrors.CodeStateConflict):
			// Another run or an admin batched these commissions first.
			skipped++
			j.logg.Warn(j.logg.WithField(brokerCtx, "reason", err.Error()), "payout batch skipped broker")
		default:
			errs = multierr.Append(errs, fmt.Errorf("broker %s: %w", brokerID, err))
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"period_start":    start,
		"period_end":      end,
		"brokers":         len(brokerIDs),
		"payouts_created": created,
		"brokers_skipped": skipped,
		"brokers_failed":  len(multierr.Errors(errs)),
		"total_amount":    total,
	}), "payout batch complete")
	return errs
}
