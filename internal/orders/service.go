// Package orders owns the order lifecycle from creation through payment,
// fulfillment and commission accrual.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sethvargo/go-retry"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/internal/activity"
	"github.com/angelmondragon/tradelines-backend/internal/brokers"
	"github.com/angelmondragon/tradelines-backend/internal/fulfillment"
	"github.com/angelmondragon/tradelines-backend/internal/pricing"
	"github.com/angelmondragon/tradelines-backend/pkg/db"
	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/tradelines-backend/pkg/errors"
	"github.com/angelmondragon/tradelines-backend/pkg/logger"
	"github.com/angelmondragon/tradelines-backend/pkg/money"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox"
	"github.com/angelmondragon/tradelines-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/tradelines-backend/pkg/pagination"
	"github.com/angelmondragon/tradelines-backend/pkg/redis"
	"github.com/angelmondragon/tradelines-backend/pkg/validation"
)

const (
	defaultPaymentTimeout = 15 * time.Second
	defaultNumberAttempts = 5
	fulfillmentErrorState = "fulfillment_error"
	systemActor           = "system"
)

// Service drives orders through their payment and fulfillment states.
type Service interface {
	Create(ctx context.Context, input CreateOrderInput) (*OrderView, error)
	ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*OrderView, error)
	HandlePaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) (*OrderView, error)
	RecordManualPayment(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, actorID string) (*OrderView, error)
	Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error)
	ListBrokerOrders(ctx context.Context, brokerID uuid.UUID, filters OrderFilters, params pagination.Params) (*OrderList, error)
	List(ctx context.Context, filters OrderFilters, params pagination.Params) (*OrderList, error)
	AttachCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) error
	UpdateCustomerDetails(ctx context.Context, orderID uuid.UUID, name, phone *string) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams groups the order service dependencies.
type ServiceParams struct {
	Repo           Repository
	Tx             txRunner
	Quoter         Quoter
	Clients        ClientDirectory
	Supplier       fulfillment.Supplier
	Sales          SalesRecorder
	Activity       activity.Recorder
	Outbox         eventEmitter
	Cache          redis.Cache
	CacheTTL       time.Duration
	PaymentTimeout time.Duration
	Logger         *logger.Logger
}

type service struct {
	repo           Repository
	tx             txRunner
	quoter         Quoter
	clients        ClientDirectory
	supplier       fulfillment.Supplier
	sales          SalesRecorder
	activity       activity.Recorder
	outbox         eventEmitter
	cache          redis.Cache
	cacheTTL       time.Duration
	paymentTimeout time.Duration
	numberAttempts uint64
	newNumber      func(time.Time) (string, error)
	logg           *logger.Logger
	now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("order repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Quoter == nil {
		return nil, fmt.Errorf("quoter required")
	}
	if params.Clients == nil {
		return nil, fmt.Errorf("client directory required")
	}
	if params.Supplier == nil {
		return nil, fmt.Errorf("fulfillment supplier required")
	}
	if params.Sales == nil {
		return nil, fmt.Errorf("sales recorder required")
	}
	if params.Activity == nil {
		return nil, fmt.Errorf("activity recorder required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("cache required")
	}
	ttl := params.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	timeout := params.PaymentTimeout
	if timeout <= 0 {
		timeout = defaultPaymentTimeout
	}
	return &service{
		repo:           params.Repo,
		tx:             params.Tx,
		quoter:         params.Quoter,
		clients:        params.Clients,
		supplier:       params.Supplier,
		sales:          params.Sales,
		activity:       params.Activity,
		outbox:         params.Outbox,
		cache:          params.Cache,
		cacheTTL:       ttl,
		paymentTimeout: timeout,
		numberAttempts: defaultNumberAttempts,
		newNumber:      NewOrderNumber,
		logg:           params.Logger,
		now:            time.Now,
	}, nil
}

func (s *service) Create(ctx context.Context, input CreateOrderInput) (*OrderView, error) {
	if err := validation.Struct(input); err != nil {
		return nil, err
	}
	method := input.PaymentMethod
	if method == "" {
		method = enums.PaymentMethodStripe
	}
	if err := s.checkClient(ctx, input); err != nil {
		return nil, err
	}

	lines := make([]pricing.LineRequest, 0, len(input.Items))
	for _, item := range input.Items {
		lines = append(lines, pricing.LineRequest{CardID: strings.TrimSpace(item.CardID), Quantity: item.Quantity})
	}
	quote, err := s.quoter.Quote(ctx, pricing.QuoteInput{
		BrokerID:  input.BrokerID,
		Items:     lines,
		PromoCode: input.PromoCode,
	})
	if err != nil {
		return nil, err
	}
	if !quote.Balanced() {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "order totals do not balance")
	}

	var order *models.Order
	backoff := retry.WithMaxRetries(s.numberAttempts-1, retry.NewConstant(10*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		number, err := s.newNumber(s.now())
		if err != nil {
			return err
		}
		order = buildOrder(number, input, method, quote)
		err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
			return s.persist(ctx, tx, order, input.ActorID)
		})
		if isOrderNumberCollision(err) {
			return retry.RetryableError(err)
		}
		return err
	})
	if err != nil {
		if isOrderNumberCollision(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "could not allocate a unique order number")
		}
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"order_id":      order.ID.String(),
			"order_number":  order.OrderNumber,
			"total_charged": order.TotalCharged,
		}), "order created")
	}
	return NewOrderView(order), nil
}

// checkClient rejects a client_id that is unknown or owned by a broker other
// than the one the order is placed for.
func (s *service) checkClient(ctx context.Context, input CreateOrderInput) error {
	if input.ClientID == nil {
		return nil
	}
	client, err := s.clients.Get(ctx, *input.ClientID, nil)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return pkgerrors.New(pkgerrors.CodeValidation, "client_id does not reference a known client")
		}
		return err
	}
	if client.BrokerID != nil && (input.BrokerID == nil || *client.BrokerID != *input.BrokerID) {
		return pkgerrors.New(pkgerrors.CodeValidation, "client_id belongs to another broker")
	}
	return nil
}

// persist writes the order graph. The raw insert error is returned for the
// order row so the caller can detect order number collisions.
func (s *service) persist(ctx context.Context, tx *gorm.DB, order *models.Order, actorID string) error {
	repo := s.repo.WithTx(tx)
	if err := repo.Create(ctx, order); err != nil {
		return err
	}
	if err := repo.CreateItems(ctx, order.Items); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order items")
	}
	if order.Commission != nil {
		if err := repo.CreateCommission(ctx, order.Commission); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create commission record")
		}
	}
	return s.record(ctx, tx, order, enums.ActivityOrderCreated, actorID, map[string]any{
		"order_number":         order.OrderNumber,
		"total_charged":        order.TotalCharged,
		"subtotal_base":        order.SubtotalBase,
		"broker_revenue_share": order.BrokerRevenueShare,
		"broker_markup":        order.BrokerMarkup,
		"multi_line_discount":  order.MultiLineDiscount,
		"item_count":           len(order.Items),
	})
}

func buildOrder(number string, input CreateOrderInput, method enums.PaymentMethod, quote *pricing.Quote) *models.Order {
	order := &models.Order{
		ID:                 uuid.New(),
		OrderNumber:        number,
		BrokerID:           quote.BrokerID,
		ClientID:           input.ClientID,
		CustomerEmail:      strings.ToLower(strings.TrimSpace(input.CustomerEmail)),
		CustomerName:       optional(input.CustomerName),
		CustomerPhone:      optional(input.CustomerPhone),
		Status:             enums.OrderStatusPending,
		PaymentStatus:      enums.PaymentStatusPending,
		PaymentMethod:      method,
		SubtotalBase:       quote.SubtotalBase,
		BrokerRevenueShare: quote.BrokerRevenueShare,
		BrokerMarkup:       quote.BrokerMarkup,
		PlatformNetRevenue: quote.PlatformNetRevenue,
		TotalCharged:       quote.TotalCharged,
		MultiLineDiscount:  quote.MultiLineDiscount,
		PromoCode:          optional(quote.PromoCode),
		Items:              make([]models.OrderItem, 0, len(quote.Lines)),
	}
	for _, line := range quote.Lines {
		t := line.Tradeline
		order.Items = append(order.Items, models.OrderItem{
			ID:                uuid.New(),
			OrderID:           order.ID,
			CardID:            t.CardID,
			BankName:          t.BankName,
			CreditLimit:       t.CreditLimit,
			DateOpened:        optional(t.DateOpened),
			PurchaseDeadline:  optional(t.PurchaseDeadline),
			ReportingPeriod:   optional(t.ReportingPeriod),
			Quantity:          line.Quantity,
			UnitBasePrice:     line.Unit.BasePrice,
			UnitRevenueShare:  line.Unit.RevenueShare,
			UnitMarkup:        line.Unit.Markup,
			UnitCustomerPrice: line.Unit.CustomerPrice,
			LineBasePrice:     line.Line.BasePrice,
			LineRevenueShare:  line.Line.RevenueShare,
			LineMarkup:        line.Line.Markup,
			LineCustomerPrice: line.Line.CustomerPrice,
			LineDiscount:      line.LineDiscount,
		})
	}
	if quote.BrokerID != nil {
		share := quote.CommissionRevenueShare()
		markup := quote.CommissionMarkup()
		order.Commission = &models.CommissionRecord{
			ID:                 uuid.New(),
			OrderID:            order.ID,
			BrokerID:           *quote.BrokerID,
			RevenueShareAmount: share,
			MarkupAmount:       markup,
			TotalCommission:    share + markup,
			PayoutStatus:       enums.CommissionPending,
		}
	}
	return order
}

func (s *service) ProcessPayment(ctx context.Context, input ProcessPaymentInput) (*OrderView, error) {
	return s.processPayment(ctx, input, settleOptions{})
}

// settleOptions adjusts processPayment for callers with stricter preconditions.
type settleOptions struct {
	// requirePending rejects anything but (PENDING, PENDING) once the row is locked.
	requirePending bool
	// extra runs inside the transaction right after the payment transition.
	extra func(tx *gorm.DB, order *models.Order) error
}

// processPayment settles the order and places it with the supplier in one
// transaction. A supplier failure commits the FAILED state and is returned
// as an upstream error after commit.
func (s *service) processPayment(ctx context.Context, input ProcessPaymentInput, opts settleOptions) (*OrderView, error) {
	method := input.Method
	if method == "" {
		method = enums.PaymentMethodStripe
	}
	if !method.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid payment method %q", method)
	}
	actorID := input.ActorID
	if actorID == "" {
		actorID = systemActor
	}
	ctx = s.withOrder(ctx, input.OrderID)

	var (
		result       *models.Order
		fulfillErr   error
		transitioned bool
	)
	err := s.tx.WithTxTimeout(ctx, s.paymentTimeout, func(tx *gorm.DB) error {
		txCtx := tx.Statement.Context
		repo := s.repo.WithTx(tx)

		order, err := repo.FindForUpdate(txCtx, input.OrderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		if opts.requirePending && (order.Status != enums.OrderStatusPending || order.PaymentStatus != enums.PaymentStatusPending) {
			return errNotPending(order)
		}
		if order.Status == enums.OrderStatusCompleted && order.PaymentStatus == enums.PaymentStatusSucceeded {
			result = order
			return nil
		}
		if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusFailed {
			return pkgerrors.Newf(pkgerrors.CodeStateConflict, "order in status %s cannot be paid", order.Status)
		}
		if order.PaymentStatus == enums.PaymentStatusSucceeded && order.Status != enums.OrderStatusFailed {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order payment already recorded")
		}

		updates := map[string]any{
			"payment_status": enums.PaymentStatusSucceeded,
			"status":         enums.OrderStatusProcessing,
			"payment_method": method,
		}
		if method == enums.PaymentMethodStripe && input.PaymentRef != "" {
			updates["stripe_payment_intent"] = input.PaymentRef
		}
		ok, err := repo.Transition(txCtx, order.ID, StatusGuard{
			Statuses:        []enums.OrderStatus{order.Status},
			PaymentStatuses: []enums.PaymentStatus{order.PaymentStatus},
		}, updates)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark order paid")
		}
		if !ok {
			// Another writer moved the order first.
			current, err := repo.FindByID(txCtx, order.ID)
			if err == nil && opts.requirePending {
				return errNotPending(current)
			}
			if err != nil {
				return notFoundOr(err, "load order")
			}
			result = current
			return nil
		}
		transitioned = true
		order.PaymentStatus = enums.PaymentStatusSucceeded
		order.Status = enums.OrderStatusProcessing
		order.PaymentMethod = method
		if ref, ok := updates["stripe_payment_intent"].(string); ok {
			order.StripePaymentIntent = &ref
		}
		if opts.extra != nil {
			if err := opts.extra(tx, order); err != nil {
				return err
			}
		}

		placed, err := s.supplier.PlaceOrder(txCtx, fulfillment.RequestFromOrder(order))
		if err != nil {
			fulfillErr = err
			return s.markFulfillmentFailed(ctx, tx, order, actorID, err)
		}

		completedAt := s.now().UTC()
		supplierStatus := placed.Status
		if err := repo.Update(txCtx, order.ID, map[string]any{
			"status":                 enums.OrderStatusCompleted,
			"tradeline_order_id":     placed.SupplierOrderID,
			"tradeline_order_status": supplierStatus,
			"completed_at":           completedAt,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "complete order")
		}
		order.Status = enums.OrderStatusCompleted
		order.TradelineOrderID = &placed.SupplierOrderID
		order.TradelineOrderStatus = &supplierStatus
		order.CompletedAt = &completedAt

		if order.BrokerID != nil {
			sale := brokers.Sale{BrokerID: *order.BrokerID, At: completedAt, Revenue: order.TotalCharged}
			if order.Commission != nil {
				sale.RevenueShare = order.Commission.RevenueShareAmount
				sale.Markup = order.Commission.MarkupAmount
			}
			if err := s.sales.RecordSale(txCtx, tx, sale); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record broker sale")
			}
		}
		if err := s.record(ctx, tx, order, enums.ActivityPaymentCompleted, actorID, map[string]any{
			"payment_method":     method,
			"payment_ref":        input.PaymentRef,
			"total_charged":      order.TotalCharged,
			"tradeline_order_id": placed.SupplierOrderID,
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ActorID: actorID, BrokerID: order.BrokerID},
			Data: payloads.OrderPaidEvent{
				OrderID:          order.ID,
				OrderNumber:      order.OrderNumber,
				BrokerID:         order.BrokerID,
				CustomerEmail:    order.CustomerEmail,
				TotalCharged:     order.TotalCharged,
				PaymentMethod:    method,
				TradelineOrderID: placed.SupplierOrderID,
				CompletedAt:      completedAt,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit order paid event")
		}
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	if transitioned {
		s.invalidate(ctx, input.OrderID)
	}
	if fulfillErr != nil {
		if s.logg != nil {
			s.logg.Error(ctx, "supplier order placement failed", fulfillErr)
		}
		return NewOrderView(result), pkgerrors.Wrap(pkgerrors.CodeUpstreamFulfillment, fulfillErr, "supplier order placement failed")
	}
	return NewOrderView(result), nil
}

// markFulfillmentFailed leaves the payment recorded and the order FAILED so a
// later ProcessPayment can retry placement.
func (s *service) markFulfillmentFailed(ctx context.Context, tx *gorm.DB, order *models.Order, actorID string, cause error) error {
	txCtx := tx.Statement.Context
	state := fulfillmentErrorState
	if err := s.repo.WithTx(tx).Update(txCtx, order.ID, map[string]any{
		"status":                 enums.OrderStatusFailed,
		"tradeline_order_status": state,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark fulfillment failed")
	}
	order.Status = enums.OrderStatusFailed
	order.TradelineOrderStatus = &state

	if err := s.record(ctx, tx, order, enums.ActivityFulfillmentFailed, actorID, map[string]any{
		"error":         cause.Error(),
		"total_charged": order.TotalCharged,
	}); err != nil {
		return err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventFulfillmentFailed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Actor:         &outbox.ActorRef{ActorID: actorID},
		Data: payloads.FulfillmentFailedEvent{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			Error:       cause.Error(),
		},
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit fulfillment failed event")
	}
	return nil
}

func (s *service) HandlePaymentFailed(ctx context.Context, orderID uuid.UUID, reason string) (*OrderView, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "payment failed"
	}
	ctx = s.withOrder(ctx, orderID)

	var (
		result  *models.Order
		changed bool
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		ok, err := repo.Transition(ctx, orderID, StatusGuard{
			PaymentStatuses: []enums.PaymentStatus{enums.PaymentStatusPending},
		}, map[string]any{
			"status":         enums.OrderStatusFailed,
			"payment_status": enums.PaymentStatusFailed,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payment failed")
		}
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return notFoundOr(err, "load order")
		}
		result = order
		if !ok {
			return nil
		}
		changed = true

		if err := s.record(ctx, tx, order, enums.ActivityPaymentFailed, systemActor, map[string]any{
			"reason":        reason,
			"total_charged": order.TotalCharged,
		}); err != nil {
			return err
		}
		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventPaymentFailed,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ActorID: systemActor, BrokerID: order.BrokerID},
			Data: payloads.PaymentFailedEvent{
				OrderID:     order.ID,
				OrderNumber: order.OrderNumber,
				BrokerID:    order.BrokerID,
				Reason:      reason,
			},
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "emit payment failed event")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.invalidate(ctx, orderID)
	}
	return NewOrderView(result), nil
}

func (s *service) RecordManualPayment(ctx context.Context, orderID uuid.UUID, method enums.PaymentMethod, actorID string) (*OrderView, error) {
	if !method.IsManual() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "payment method %q cannot be recorded manually", method)
	}
	ctx = s.withOrder(ctx, orderID)

	var settled *models.Order
	view, payErr := s.processPayment(ctx, ProcessPaymentInput{
		OrderID: orderID,
		Method:  method,
		ActorID: actorID,
	}, settleOptions{
		requirePending: true,
		extra: func(tx *gorm.DB, order *models.Order) error {
			settled = order
			return s.record(ctx, tx, order, enums.ActivityManualPaymentRecorded, actorID, map[string]any{
				"payment_method": method,
				"total_charged":  order.TotalCharged,
			})
		},
	})
	if payErr != nil && !pkgerrors.IsCode(payErr, pkgerrors.CodeUpstreamFulfillment) {
		return nil, payErr
	}

	if settled != nil && len(settled.Items) > 0 {
		s.requestAutomation(ctx, settled, method, actorID)
	}
	return view, payErr
}

func errNotPending(order *models.Order) error {
	return pkgerrors.Newf(pkgerrors.CodeStateConflict,
		"manual payment requires a pending order, got %s/%s", order.Status, order.PaymentStatus)
}

// requestAutomation queues the supplier automation hand-off. Failures are
// logged and never undo the recorded payment.
func (s *service) requestAutomation(ctx context.Context, order *models.Order, method enums.PaymentMethod, actorID string) {
	items := make([]payloads.FulfillmentItem, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, payloads.FulfillmentItem{
			CardID:   item.CardID,
			BankName: item.BankName,
			Quantity: item.Quantity,
		})
	}
	event := payloads.FulfillmentAutomationRequestedEvent{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		CustomerEmail: order.CustomerEmail,
		PaymentMethod: method,
		Items:         items,
		RequestedBy:   actorID,
	}
	if order.CustomerName != nil {
		event.CustomerName = *order.CustomerName
	}
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventFulfillmentAutomationRequested,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Actor:         &outbox.ActorRef{ActorID: actorID, Role: string(enums.RoleAdmin)},
			Data:          event,
		})
	})
	if err != nil && s.logg != nil {
		s.logg.Error(ctx, "queue fulfillment automation failed", err)
	}
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*OrderView, error) {
	key := redis.OrderKey(orderID.String())
	var cached OrderView
	if err := s.cache.GetJSON(ctx, key, &cached); err == nil {
		return &cached, nil
	} else if !errors.Is(err, redis.ErrCacheMiss) {
		s.warn(ctx, "order cache read failed", err)
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		return nil, notFoundOr(err, "load order")
	}
	view := NewOrderView(order)
	if err := s.cache.SetJSON(ctx, key, view, s.cacheTTL); err != nil {
		s.warn(ctx, "order cache write failed", err)
	}
	return view, nil
}

func (s *service) ListBrokerOrders(ctx context.Context, brokerID uuid.UUID, filters OrderFilters, params pagination.Params) (*OrderList, error) {
	filters.BrokerID = &brokerID
	list, err := s.list(ctx, filters, params)
	if err != nil {
		return nil, err
	}
	summary, err := s.repo.CompletedSummary(ctx, filters)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize broker orders")
	}
	summary.TotalRevenueUSD = money.CentsToUSD(summary.TotalRevenue)
	summary.TotalCommissionUSD = money.CentsToUSD(summary.TotalCommission)
	list.Summary = &summary
	return list, nil
}

func (s *service) List(ctx context.Context, filters OrderFilters, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, filters, params)
}

func (s *service) list(ctx context.Context, filters OrderFilters, params pagination.Params) (*OrderList, error) {
	if filters.Status != nil && !filters.Status.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid order status %q", *filters.Status)
	}
	if filters.DateFrom != nil && filters.DateTo != nil && filters.DateTo.Before(*filters.DateFrom) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "date_to must not be before date_from")
	}
	params = params.Normalize()
	rows, total, err := s.repo.List(ctx, filters, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	ids := make([]uuid.UUID, 0, len(rows))
	for _, row := range rows {
		ids = append(ids, row.ID)
	}
	counts, err := s.repo.ItemCounts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "count order items")
	}
	out := &OrderList{
		Orders:     make([]OrderSummaryRow, 0, len(rows)),
		Pagination: pagination.NewMeta(params, total),
	}
	for _, row := range rows {
		out.Orders = append(out.Orders, newSummaryRow(row, counts[row.ID]))
	}
	return out, nil
}

func (s *service) AttachCheckoutSession(ctx context.Context, orderID uuid.UUID, sessionID string) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "session id is required")
	}
	if err := s.repo.Update(ctx, orderID, map[string]any{"stripe_session_id": sessionID}); err != nil {
		return notFoundOr(err, "attach checkout session")
	}
	s.invalidate(ctx, orderID)
	return nil
}

func (s *service) UpdateCustomerDetails(ctx context.Context, orderID uuid.UUID, name, phone *string) error {
	updates := map[string]any{}
	if v := optionalPtr(name); v != nil {
		updates["customer_name"] = *v
	}
	if v := optionalPtr(phone); v != nil {
		updates["customer_phone"] = *v
	}
	if len(updates) == 0 {
		return nil
	}
	if err := s.repo.Update(ctx, orderID, updates); err != nil {
		return notFoundOr(err, "update customer details")
	}
	s.invalidate(ctx, orderID)
	return nil
}

func (s *service) record(ctx context.Context, tx *gorm.DB, order *models.Order, action enums.ActivityAction, actorID string, metadata map[string]any) error {
	if _, err := s.activity.Record(ctx, tx, activity.Entry{
		Action:     action,
		EntityType: enums.EntityOrder,
		EntityID:   order.ID,
		BrokerID:   order.BrokerID,
		ActorID:    actorID,
		Metadata:   metadata,
	}); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "record order activity")
	}
	return nil
}

func (s *service) invalidate(ctx context.Context, orderID uuid.UUID) {
	if err := s.cache.Delete(ctx, redis.OrderKey(orderID.String())); err != nil {
		s.warn(ctx, "order cache delete failed", err)
	}
}

func (s *service) withOrder(ctx context.Context, orderID uuid.UUID) context.Context {
	if s.logg == nil {
		return ctx
	}
	return s.logg.WithOrderID(ctx, orderID.String())
}

func (s *service) warn(ctx context.Context, msg string, err error) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), msg)
}

func isOrderNumberCollision(err error) bool {
	if db.IsUniqueViolation(err, "ux_orders_order_number") {
		return true
	}
	// sqlite reports the column rather than the index name.
	return db.IsUniqueViolation(err, "") && strings.Contains(err.Error(), "order_number")
}

func notFoundOr(err error, action string) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeDependency, err, action)
}

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

func optionalPtr(value *string) *string {
	if value == nil {
		return nil
	}
	return optional(*value)
}
