package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// Payout batches a broker's eligible commissions into one transfer.
type Payout struct {
	ID                 uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	BrokerID           uuid.UUID          `gorm:"column:broker_id;type:uuid;not null;index"`
	TotalAmount        int64              `gorm:"column:total_amount;not null"`
	RevenueShareAmount int64              `gorm:"column:revenue_share_amount;not null"`
	MarkupAmount       int64              `gorm:"column:markup_amount;not null"`
	OrderCount         int                `gorm:"column:order_count;not null"`
	PeriodStart        time.Time          `gorm:"column:period_start;not null"`
	PeriodEnd          time.Time          `gorm:"column:period_end;not null"`
	Status             enums.PayoutStatus `gorm:"column:status;type:payout_status;not null;default:'PENDING'"`
	PaymentMethod      string             `gorm:"column:payment_method;not null"`
	TransactionID      *string            `gorm:"column:transaction_id"`
	ProcessedAt        *time.Time         `gorm:"column:processed_at"`
	Commissions        []CommissionRecord `gorm:"foreignKey:PayoutID"`
	CreatedAt          time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}
