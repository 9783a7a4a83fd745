package brokers

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
)

// Repository persists brokers and their daily sales counters.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, broker *models.Broker) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Broker, error)
	FindByEmail(ctx context.Context, email string) (*models.Broker, error)
	FindByAPIKey(ctx context.Context, apiKey string) (*models.Broker, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	IncrementDailySales(ctx context.Context, sale models.BrokerAnalytics) error
	DailySales(ctx context.Context, brokerID uuid.UUID, from, to time.Time) ([]models.BrokerAnalytics, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds a broker repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, broker *models.Broker) error {
	return r.db.WithContext(ctx).Create(broker).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Broker, error) {
	var broker models.Broker
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&broker).Error; err != nil {
		return nil, err
	}
	return &broker, nil
}

func (r *repository) FindByEmail(ctx context.Context, email string) (*models.Broker, error) {
	var broker models.Broker
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&broker).Error; err != nil {
		return nil, err
	}
	return &broker, nil
}

func (r *repository) FindByAPIKey(ctx context.Context, apiKey string) (*models.Broker, error) {
	var broker models.Broker
	if err := r.db.WithContext(ctx).Where("api_key = ?", apiKey).First(&broker).Error; err != nil {
		return nil, err
	}
	return &broker, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	if len(updates) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.Broker{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementDailySales adds the sale to the broker's counters for sale.Date,
// creating the row on first use.
func (r *repository) IncrementDailySales(ctx context.Context, sale models.BrokerAnalytics) error {
	if sale.ID == uuid.Nil {
		sale.ID = uuid.New()
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "broker_id"}, {Name: "date"}},
		DoUpdates: clause.Assignments(map[string]any{
			"order_count":          gorm.Expr("broker_analytics.order_count + ?", sale.OrderCount),
			"revenue":              gorm.Expr("broker_analytics.revenue + ?", sale.Revenue),
			"revenue_share_earned": gorm.Expr("broker_analytics.revenue_share_earned + ?", sale.RevenueShareEarned),
			"markup_earned":        gorm.Expr("broker_analytics.markup_earned + ?", sale.MarkupEarned),
			"updated_at":           gorm.Expr("CURRENT_TIMESTAMP"),
		}),
	}).Create(&sale).Error
}

func (r *repository) DailySales(ctx context.Context, brokerID uuid.UUID, from, to time.Time) ([]models.BrokerAnalytics, error) {
	var rows []models.BrokerAnalytics
	if err := r.db.WithContext(ctx).
		Where("broker_id = ? AND date >= ? AND date <= ?", brokerID, from, to).
		Order("date ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}
