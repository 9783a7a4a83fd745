// Package payouts batches broker commissions on settled orders into payouts
// and tracks them through to completion.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/activity"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/metrics"
	"github.com/angelmondragon/tradelines-backend/pkg/money"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradelines-backend/pkg/pagination"
	"github.com/angelmondragon/tradelines-backend/pkg/validation"
)

const systemActor = "system"

// Service exposes payout batching, settlement and reporting.
type Service interface {
	PendingCommission(ctx context.Context, brokerID uuid.UUID) (*PendingCommission, error)
	BrokersWithPendingCommission(ctx context.Context) ([]uuid.UUID, error)
	CreatePayout(ctx context.Context, input CreatePayoutInput) (*PayoutView, error)
	ProcessPayout(ctx context.Context, payoutID uuid.UUID, input ProcessPayoutInput) (*PayoutView, error)
	PendingPayouts(ctx context.Context) ([]PendingPayout, error)
	BrokerPayouts(ctx context.Context, brokerID uuid.UUID, params pagination.Params) (*BrokerPayoutHistory, error)
	Report(ctx context.Context, payoutID uuid.UUID) (*Report, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the payout service dependencies.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Activity activity.Recorder
	Outbox   eventEmitter
	Metrics  *metrics.PayoutMetrics
	Logger   *logger.Logger
}

type service struct {
	repo     Repository
	tx       txRunner
	activity activity.Recorder
	outbox   eventEmitter
	metrics  *metrics.PayoutMetrics
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("payout repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		activity: params.Activity,
		outbox:   params.Outbox,
		metrics:  params.Metrics,
		logg:     params.Logger,
		now:      time.Now,
	}, nil
}

func (s *service) PendingCommission(ctx context.Context, brokerID uuid.UUID) (*PendingCommission, error) {
	if brokerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broker id is required")
	}
	rows, err := s.repo.PendingCommissions(ctx, brokerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending commissions")
	}
	return newPendingCommission(brokerID, rows), nil
}

func (s *service) BrokersWithPendingCommission(ctx context.Context) ([]uuid.UUID, error) {
	ids, err := s.repo.BrokersWithPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list brokers with pending commission")
	}
	return ids, nil
}

func (s *service) CreatePayout(ctx context.Context, input CreatePayoutInput) (*PayoutView, error) {
	if input.BrokerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "broker id is required")
	}
	input.PaymentMethod = strings.ToUpper(strings.TrimSpace(input.PaymentMethod))
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	trigger := input.Trigger
	if trigger == "" {
		trigger = TriggerAdmin
	}
	actorID := input.ActorID
	if actorID == "" {
		actorID = systemActor
	}

	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCtx := tx.Statement.Context
		repo := s.repo.WithTx(tx)

		if _, err := repo.FindBroker(txCtx, input.BrokerID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "broker not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load broker")
		}
		rows, err := repo.PendingCommissions(txCtx, input.BrokerID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load pending commissions")
		}
		pending := newPendingCommission(input.BrokerID, rows)
		if pending.Total <= 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "no pending commission to pay out")
		}

		payout = &models.Payout{
			ID:                 uuid.New(),
			BrokerID:           input.BrokerID,
			TotalAmount:        pending.Total,
			RevenueShareAmount: pending.RevenueShare,
			MarkupAmount:       pending.Markup,
			OrderCount:         len(rows),
			PeriodStart:        input.PeriodStart.UTC(),
			PeriodEnd:          input.PeriodEnd.UTC(),
			Status:             enums.PayoutStatusPending,
			PaymentMethod:      input.PaymentMethod,
		}
		if err := repo.Create(txCtx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout")
		}

		ids := make([]uuid.UUID, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		linked, err := repo.LinkCommissions(txCtx, payout.ID, ids)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "link commissions")
		}
		if linked != int64(len(ids)) {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict,
				"commissions changed while batching: linked %d of %d", linked, len(ids))
		}

		brokerID := payout.BrokerID
		if _, err := s.activity.Record(txCtx, tx, activity.Entry{
			Action:     enums.ActivityPayoutCreated,
			EntityType: enums.EntityPayout,
			EntityID:   payout.ID,
			BrokerID:   &brokerID,
			ActorID:    actorID,
			Metadata: map[string]any{
				"total_amount":   payout.TotalAmount,
				"order_count":    payout.OrderCount,
				"payment_method": payout.PaymentMethod,
				"trigger":        trigger,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout activity")
		}
		if err := s.outbox.Emit(txCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutCreated,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payout.ID,
			Actor:         &outbox.ActorRef{ActorID: actorID, BrokerID: &brokerID},
			Data: payloads.PayoutCreatedEvent{
				PayoutID:    payout.ID,
				BrokerID:    brokerID,
				TotalAmount: payout.TotalAmount,
				OrderCount:  payout.OrderCount,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout created event")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "create payout")
	}

	s.metrics.ObserveCreated(trigger, payout.TotalAmount)
	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payout_id":    payout.ID.String(),
			"broker_id":    payout.BrokerID.String(),
			"total_amount": payout.TotalAmount,
			"order_count":  payout.OrderCount,
			"trigger":      trigger,
		}), "payout created")
	}
	view := newPayoutView(payout)
	return &view, nil
}

func (s *service) ProcessPayout(ctx context.Context, payoutID uuid.UUID, input ProcessPayoutInput) (*PayoutView, error) {
	input.TransactionID = strings.TrimSpace(input.TransactionID)
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	actorID := input.ActorID
	if actorID == "" {
		actorID = systemActor
	}

	var payout *models.Payout
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		txCtx := tx.Statement.Context
		repo := s.repo.WithTx(tx)

		current, err := repo.FindForUpdate(txCtx, payoutID)
		if err != nil {
			return notFoundOr(err, "load payout")
		}
		if current.Status != enums.PayoutStatusPending {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "payout is already %s", strings.ToLower(string(current.Status)))
		}
		at := s.now().UTC()
		ok, err := repo.MarkCompleted(txCtx, payoutID, input.TransactionID, at)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete payout")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout was processed concurrently")
		}
		if _, err := repo.CompleteCommissions(txCtx, payoutID, at); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete commissions")
		}

		brokerID := current.BrokerID
		if _, err := s.activity.Record(txCtx, tx, activity.Entry{
			Action:     enums.ActivityPayoutProcessed,
			EntityType: enums.EntityPayout,
			EntityID:   payoutID,
			BrokerID:   &brokerID,
			ActorID:    actorID,
			Metadata: map[string]any{
				"total_amount":   current.TotalAmount,
				"transaction_id": input.TransactionID,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record payout activity")
		}
		if err := s.outbox.Emit(txCtx, tx, outbox.DomainEvent{
			EventType:     enums.EventPayoutCompleted,
			AggregateType: enums.AggregatePayout,
			AggregateID:   payoutID,
			Actor:         &outbox.ActorRef{ActorID: actorID, BrokerID: &brokerID},
			Data: payloads.PayoutCompletedEvent{
				PayoutID:      payoutID,
				BrokerID:      brokerID,
				TotalAmount:   current.TotalAmount,
				TransactionID: input.TransactionID,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payout completed event")
		}

		payout, err = repo.FindByID(txCtx, payoutID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload payout")
		}
		return nil
	})
	if err != nil {
		return nil, asServiceError(err, "process payout")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"payout_id":      payout.ID.String(),
			"broker_id":      payout.BrokerID.String(),
			"transaction_id": input.TransactionID,
		}), "payout processed")
	}
	view := newPayoutView(payout)
	return &view, nil
}

func (s *service) PendingPayouts(ctx context.Context) ([]PendingPayout, error) {
	payouts, err := s.repo.ListPending(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list pending payouts")
	}
	brokerIDs := make([]uuid.UUID, 0, len(payouts))
	var orderIDs []uuid.UUID
	for _, p := range payouts {
		brokerIDs = append(brokerIDs, p.BrokerID)
		for _, c := range p.Commissions {
			orderIDs = append(orderIDs, c.OrderID)
		}
	}
	brokers, err := s.repo.FindBrokers(ctx, brokerIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout brokers")
	}
	orders, err := s.repo.OrdersWithItems(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout orders")
	}

	out := make([]PendingPayout, 0, len(payouts))
	for i := range payouts {
		p := &payouts[i]
		item := PendingPayout{
			PayoutView: newPayoutView(p),
			Broker:     newBrokerRef(brokers[p.BrokerID]),
			Orders:     make([]PayoutOrderRef, 0, len(p.Commissions)),
		}
		for _, c := range p.Commissions {
			ref := PayoutOrderRef{OrderID: c.OrderID}
			if o, ok := orders[c.OrderID]; ok {
				ref.OrderNumber = o.OrderNumber
				ref.CreatedAt = o.CreatedAt
			}
			item.Orders = append(item.Orders, ref)
		}
		out = append(out, item)
	}
	return out, nil
}

func (s *service) BrokerPayouts(ctx context.Context, brokerID uuid.UUID, params pagination.Params) (*BrokerPayoutHistory, error) {
	params = params.Normalize()
	payouts, total, err := s.repo.ListByBroker(ctx, brokerID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list broker payouts")
	}
	totals, err := s.repo.CompletedTotals(ctx, brokerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize broker payouts")
	}
	views := make([]PayoutView, 0, len(payouts))
	for i := range payouts {
		views = append(views, newPayoutView(&payouts[i]))
	}
	return &BrokerPayoutHistory{
		Payouts:    views,
		Pagination: pagination.NewMeta(params, total),
		Summary: PayoutSummary{
			TotalPayouts:        totals.Count,
			TotalPaid:           totals.TotalAmount,
			TotalPaidUSD:        money.CentsToUSD(totals.TotalAmount),
			RevenueSharePaidUSD: money.CentsToUSD(totals.RevenueShare),
			MarkupPaidUSD:       money.CentsToUSD(totals.Markup),
		},
	}, nil
}

func (s *service) Report(ctx context.Context, payoutID uuid.UUID) (*Report, error) {
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		return nil, notFoundOr(err, "load payout")
	}
	broker, err := s.repo.FindBroker(ctx, payout.BrokerID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout broker")
	}
	orderIDs := make([]uuid.UUID, 0, len(payout.Commissions))
	for _, c := range payout.Commissions {
		orderIDs = append(orderIDs, c.OrderID)
	}
	orders, err := s.repo.OrdersWithItems(ctx, orderIDs)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout orders")
	}

	report := &Report{
		PayoutID: payout.ID,
		BrokerID: payout.BrokerID,
		Broker:   newBrokerRef(broker),
		Period:   ReportPeriod{Start: payout.PeriodStart, End: payout.PeriodEnd},
		Totals: ReportTotals{
			RevenueShareUSD: money.CentsToUSD(payout.RevenueShareAmount),
			MarkupUSD:       money.CentsToUSD(payout.MarkupAmount),
			TotalUSD:        money.CentsToUSD(payout.TotalAmount),
		},
		Payment: ReportPayment{
			Method:        payout.PaymentMethod,
			Status:        payout.Status,
			TransactionID: payout.TransactionID,
			ProcessedAt:   payout.ProcessedAt,
		},
		Orders:     make([]ReportOrder, 0, len(payout.Commissions)),
		OrderCount: payout.OrderCount,
		CreatedAt:  payout.CreatedAt,
	}
	for _, c := range payout.Commissions {
		line := ReportOrder{
			OrderID:         c.OrderID,
			RevenueShareUSD: money.CentsToUSD(c.RevenueShareAmount),
			MarkupUSD:       money.CentsToUSD(c.MarkupAmount),
			CommissionUSD:   money.CentsToUSD(c.TotalCommission),
		}
		if o, ok := orders[c.OrderID]; ok {
			line.OrderNumber = o.OrderNumber
			line.OrderDate = o.CreatedAt
			line.Customer = o.CustomerEmail
			line.OrderTotalUSD = money.CentsToUSD(o.TotalCharged)
			line.Items = len(o.Items)
			for _, item := range o.Items {
				line.Units += item.Quantity
			}
		}
		report.Orders = append(report.Orders, line)
	}
	return report, nil
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func asServiceError(err error, action string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}
