package stripewebhook

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// LogRepository appends webhook audit rows and records their outcome.
type LogRepository interface {
	Create(ctx context.Context, entry *models.WebhookLog) error
	MarkResult(ctx context.Context, id uuid.UUID, status enums.WebhookStatus, message *string, at time.Time) error
	ListByEventID(ctx context.Context, eventID string) ([]models.WebhookLog, error)
}

type logRepository struct {
	db *gorm.DB
}

func NewLogRepository(db *gorm.DB) LogRepository {
	return &logRepository{db: db}
}

func (r *logRepository) Create(ctx context.Context, entry *models.WebhookLog) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

func (r *logRepository) MarkResult(ctx context.Context, id uuid.UUID, status enums.WebhookStatus, message *string, at time.Time) error {
	return r.db.WithContext(ctx).
		Model(&models.WebhookLog{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":        status,
			"error_message": message,
			"processed_at":  at,
		}).Error
}

func (r *logRepository) ListByEventID(ctx context.Context, eventID string) ([]models.WebhookLog, error) {
	var rows []models.WebhookLog
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("created_at ASC").
		Find(&rows).Error
	return rows, err
}
