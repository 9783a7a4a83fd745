package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// CommissionRecord is the broker's earnings on a single order.
type CommissionRecord struct {
	ID                 uuid.UUID                    `gorm:"column:id;type:uuid;primaryKey"`
	OrderID            uuid.UUID                    `gorm:"column:order_id;type:uuid;not null;uniqueIndex:ux_commission_records_order"`
	BrokerID           uuid.UUID                    `gorm:"column:broker_id;type:uuid;not null;index"`
	RevenueShareAmount int64                        `gorm:"column:revenue_share_amount;not null"`
	MarkupAmount       int64                        `gorm:"column:markup_amount;not null"`
	TotalCommission    int64                        `gorm:"column:total_commission;not null"`
	PayoutStatus       enums.CommissionPayoutStatus `gorm:"column:payout_status;type:commission_payout_status;not null;default:'PENDING'"`
	PayoutID           *uuid.UUID                   `gorm:"column:payout_id;type:uuid;index"`
	PaidAt             *time.Time                   `gorm:"column:paid_at"`
	CreatedAt          time.Time                    `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time                    `gorm:"column:updated_at;autoUpdateTime"`
}
