package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// ActivityLog records an immutable state transition with amounts and references.
type ActivityLog struct {
	ID         uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	Action     enums.ActivityAction `gorm:"column:action;not null"`
	EntityType string               `gorm:"column:entity_type;not null"`
	EntityID   uuid.UUID            `gorm:"column:entity_id;type:uuid;not null;index"`
	BrokerID   *uuid.UUID           `gorm:"column:broker_id;type:uuid"`
	ActorID    *string              `gorm:"column:actor_id"`
	Metadata   json.RawMessage      `gorm:"column:metadata;type:jsonb"`
	CreatedAt  time.Time            `gorm:"column:created_at;autoCreateTime"`
}
