package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// WebhookLog is the append-only audit row for an inbound gateway event.
type WebhookLog struct {
	ID           uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Source       string              `gorm:"column:source;not null"`
	EventType    string              `gorm:"column:event_type;not null"`
	EventID      string              `gorm:"column:event_id;not null;index"`
	Status       enums.WebhookStatus `gorm:"column:status;type:webhook_status;not null"`
	ErrorMessage *string             `gorm:"column:error_message"`
	Payload      json.RawMessage     `gorm:"column:payload;type:jsonb"`
	ProcessedAt  *time.Time          `gorm:"column:processed_at"`
	CreatedAt    time.Time           `gorm:"column:created_at;autoCreateTime"`
}
