package orders

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	"github.com/angelmondragon/tradelines-backend/pkg/pagination"
)

// StatusGuard restricts a conditional update to orders in the listed states.
// An empty slice leaves that column unconstrained.
type StatusGuard struct {
	Statuses        []enums.OrderStatus
	PaymentStatuses []enums.PaymentStatus
}

// Repository persists orders, their items and commission records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	CreateItems(ctx context.Context, items []models.OrderItem) error
	CreateCommission(ctx context.Context, commission *models.CommissionRecord) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error)
	Transition(ctx context.Context, id uuid.UUID, guard StatusGuard, updates map[string]any) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	List(ctx context.Context, filters OrderFilters, params pagination.Params) ([]models.Order, int64, error)
	ItemCounts(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]int, error)
	CompletedSummary(ctx context.Context, filters OrderFilters) (BrokerOrderSummary, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an order repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(order).Error
}

func (r *repository) CreateItems(ctx context.Context, items []models.OrderItem) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *repository) CreateCommission(ctx context.Context, commission *models.CommissionRecord) error {
	return r.db.WithContext(ctx).Create(commission).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Preload("Commission").
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).
		Where("order_id = ?", id).
		Order("created_at ASC, id ASC").
		Find(&order.Items).Error; err != nil {
		return nil, err
	}
	var commission models.CommissionRecord
	res := r.db.WithContext(ctx).Where("order_id = ?", id).Limit(1).Find(&commission)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected > 0 {
		order.Commission = &commission
	}
	return &order, nil
}

func (r *repository) FindBySessionID(ctx context.Context, sessionID string) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("stripe_session_id = ?", sessionID).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

// Transition applies updates only when the order still matches guard and
// reports whether a row changed.
func (r *repository) Transition(ctx context.Context, id uuid.UUID, guard StatusGuard, updates map[string]any) (bool, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id)
	if len(guard.Statuses) > 0 {
		query = query.Where("status IN ?", guard.Statuses)
	}
	if len(guard.PaymentStatuses) > 0 {
		query = query.Where("payment_status IN ?", guard.PaymentStatuses)
	}
	res := query.Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) List(ctx context.Context, filters OrderFilters, params pagination.Params) ([]models.Order, int64, error) {
	params = params.Normalize()

	var total int64
	if err := r.filtered(ctx, filters).Model(&models.Order{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Order
	err := r.filtered(ctx, filters).
		Order("created_at DESC, id DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *repository) ItemCounts(ctx context.Context, orderIDs []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(orderIDs))
	if len(orderIDs) == 0 {
		return counts, nil
	}
	var rows []struct {
		OrderID uuid.UUID
		Count   int
	}
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("order_id, COUNT(*) AS count").
		Where("order_id IN ?", orderIDs).
		Group("order_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, row := range rows {
		counts[row.OrderID] = row.Count
	}
	return counts, nil
}

// CompletedSummary totals the completed orders matching filters, ignoring any
// status filter. Commission comes from the commission records, which carry the
// discounted amounts on promo orders.
func (r *repository) CompletedSummary(ctx context.Context, filters OrderFilters) (BrokerOrderSummary, error) {
	filters.Status = nil
	completed := func() *gorm.DB {
		return r.filtered(ctx, filters).
			Model(&models.Order{}).
			Where("status = ? AND payment_status = ?", enums.OrderStatusCompleted, enums.PaymentStatusSucceeded)
	}

	var row struct {
		TotalOrders  int64
		TotalRevenue int64
	}
	if err := completed().
		Select("COUNT(*) AS total_orders, COALESCE(SUM(total_charged), 0) AS total_revenue").
		Scan(&row).Error; err != nil {
		return BrokerOrderSummary{}, err
	}

	var commission int64
	if err := r.db.WithContext(ctx).
		Model(&models.CommissionRecord{}).
		Select("COALESCE(SUM(total_commission), 0)").
		Where("order_id IN (?)", completed().Select("id")).
		Scan(&commission).Error; err != nil {
		return BrokerOrderSummary{}, err
	}
	return BrokerOrderSummary{
		TotalOrders:     row.TotalOrders,
		TotalRevenue:    row.TotalRevenue,
		TotalCommission: commission,
	}, nil
}

func (r *repository) filtered(ctx context.Context, filters OrderFilters) *gorm.DB {
	query := r.db.WithContext(ctx)
	if filters.BrokerID != nil {
		query = query.Where("broker_id = ?", *filters.BrokerID)
	}
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", filters.DateFrom.UTC())
	}
	if filters.DateTo != nil {
		query = query.Where("created_at < ?", endOfDay(*filters.DateTo))
	}
	return query
}

// endOfDay returns the start of the day after t so date-only upper bounds are inclusive.
func endOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, 1)
}
