package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// Broker resells supplier inventory with its own markup on top of the platform revenue share.
type Broker struct {
	ID                  uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Name                string             `gorm:"column:name;not null"`
	BusinessName        *string            `gorm:"column:business_name"`
	Email               string             `gorm:"column:email;not null;uniqueIndex:ux_brokers_email"`
	Phone               *string            `gorm:"column:phone"`
	Status              enums.BrokerStatus `gorm:"column:status;type:broker_status;not null;default:'PENDING'"`
	RevenueSharePercent decimal.Decimal    `gorm:"column:revenue_share_percent;type:numeric(5,2);not null"`
	MarkupType          enums.MarkupType   `gorm:"column:markup_type;type:markup_type;not null;default:'PERCENTAGE'"`
	MarkupValue         decimal.Decimal    `gorm:"column:markup_value;type:numeric(12,2);not null"`
	APIKey              string             `gorm:"column:api_key;not null;uniqueIndex:ux_brokers_api_key"`
	APISecretHash       string             `gorm:"column:api_secret_hash;not null"`
	ApprovedAt          *time.Time         `gorm:"column:approved_at"`
	CreatedAt           time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt           time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

// IsActive reports whether the broker may price and sell.
func (b *Broker) IsActive() bool {
	return b != nil && b.Status == enums.BrokerStatusActive
}
