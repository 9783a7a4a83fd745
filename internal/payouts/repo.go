package payouts

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

// CompletedTotals aggregates a broker's settled payouts.
type CompletedTotals struct {
	Count        int64
	TotalAmount  int64
	RevenueShare int64
	Markup       int64
}

// Repository persists payouts and moves commission records between payout states.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	PendingCommissions(ctx context.Context, brokerID uuid.UUID) ([]models.CommissionRecord, error)
	BrokersWithPending(ctx context.Context) ([]uuid.UUID, error)
	Create(ctx context.Context, payout *models.Payout) error
	LinkCommissions(ctx context.Context, payoutID uuid.UUID, commissionIDs []uuid.UUID) (int64, error)
	FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error)
	MarkCompleted(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) (bool, error)
	CompleteCommissions(ctx context.Context, payoutID uuid.UUID, at time.Time) (int64, error)
	ListPending(ctx context.Context) ([]models.Payout, error)
	ListByBroker(ctx context.Context, brokerID uuid.UUID, params pagination.Params) ([]models.Payout, int64, error)
	CompletedTotals(ctx context.Context, brokerID uuid.UUID) (CompletedTotals, error)
	FindBroker(ctx context.Context, id uuid.UUID) (*models.Broker, error)
	FindBrokers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Broker, error)
	OrdersWithItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Order, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a payout repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// eligible restricts commission_records to unbatched earnings on paid, fulfilled orders.
func (r *repository) eligible(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Model(&models.CommissionRecord{}).
		Joins("JOIN orders ON orders.id = commission_records.order_id").
		Where("commission_records.payout_status = ?", enums.CommissionPending).
		Where("orders.status = ? AND orders.payment_status = ?", enums.OrderStatusCompleted, enums.PaymentStatusSucceeded)
}

func (r *repository) PendingCommissions(ctx context.Context, brokerID uuid.UUID) ([]models.CommissionRecord, error) {
	var rows []models.CommissionRecord
	err := r.eligible(ctx).
		Select("commission_records.*").
		Where("commission_records.broker_id = ?", brokerID).
		Order("commission_records.created_at ASC, commission_records.id ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) BrokersWithPending(ctx context.Context) ([]uuid.UUID, error) {
	var ids []uuid.UUID
	err := r.eligible(ctx).
		Distinct("commission_records.broker_id").
		Order("commission_records.broker_id").
		Pluck("commission_records.broker_id", &ids).Error
	return ids, err
}

func (r *repository) Create(ctx context.Context, payout *models.Payout) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(payout).Error
}

func (r *repository) LinkCommissions(ctx context.Context, payoutID uuid.UUID, commissionIDs []uuid.UUID) (int64, error) {
	if len(commissionIDs) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).
		Model(&models.CommissionRecord{}).
		Where("id IN ? AND payout_status = ?", commissionIDs, enums.CommissionPending).
		Updates(map[string]any{
			"payout_id":     payoutID,
			"payout_status": enums.CommissionProcessing,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Preload("Commissions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindForUpdate(ctx context.Context, id uuid.UUID) (*models.Payout, error) {
	var payout models.Payout
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ?", id).
		First(&payout).Error
	if err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) MarkCompleted(ctx context.Context, id uuid.UUID, transactionID string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Where("id = ? AND status = ?", id, enums.PayoutStatusPending).
		Updates(map[string]any{
			"status":         enums.PayoutStatusCompleted,
			"transaction_id": transactionID,
			"processed_at":   at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) CompleteCommissions(ctx context.Context, payoutID uuid.UUID, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.CommissionRecord{}).
		Where("payout_id = ? AND payout_status = ?", payoutID, enums.CommissionProcessing).
		Updates(map[string]any{
			"payout_status": enums.CommissionCompleted,
			"paid_at":       at,
		})
	return res.RowsAffected, res.Error
}

func (r *repository) ListPending(ctx context.Context) ([]models.Payout, error) {
	var payouts []models.Payout
	err := r.db.WithContext(ctx).
		Preload("Commissions", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("status = ?", enums.PayoutStatusPending).
		Order("created_at ASC, id ASC").
		Find(&payouts).Error
	return payouts, err
}

func (r *repository) ListByBroker(ctx context.Context, brokerID uuid.UUID, params pagination.Params) ([]models.Payout, int64, error) {
	params = params.Normalize()
	query := r.db.WithContext(ctx).Model(&models.Payout{}).Where("broker_id = ?", brokerID)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var payouts []models.Payout
	err := query.
		Order("created_at DESC, id DESC").
		Limit(params.Limit).
		Offset(params.Offset()).
		Find(&payouts).Error
	return payouts, total, err
}

func (r *repository) CompletedTotals(ctx context.Context, brokerID uuid.UUID) (CompletedTotals, error) {
	var totals CompletedTotals
	err := r.db.WithContext(ctx).
		Model(&models.Payout{}).
		Select("COUNT(*) AS count, COALESCE(SUM(total_amount), 0) AS total_amount, " +
			"COALESCE(SUM(revenue_share_amount), 0) AS revenue_share, COALESCE(SUM(markup_amount), 0) AS markup").
		Where("broker_id = ? AND status = ?", brokerID, enums.PayoutStatusCompleted).
		Scan(&totals).Error
	return totals, err
}

func (r *repository) FindBroker(ctx context.Context, id uuid.UUID) (*models.Broker, error) {
	var broker models.Broker
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&broker).Error; err != nil {
		return nil, err
	}
	return &broker, nil
}

func (r *repository) FindBrokers(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Broker, error) {
	out := make(map[uuid.UUID]*models.Broker, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Broker
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}

func (r *repository) OrdersWithItems(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*models.Order, error) {
	out := make(map[uuid.UUID]*models.Order, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("created_at ASC, id ASC") }).
		Where("id IN ?", ids).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for i := range rows {
		out[rows[i].ID] = &rows[i]
	}
	return out, nil
}
