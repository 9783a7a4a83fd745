package models

import (
	"time"

	"github.com/google/uuid"
)

// BrokerAnalytics holds per-day sales counters for a broker.
type BrokerAnalytics struct {
	ID                 uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	BrokerID           uuid.UUID `gorm:"column:broker_id;type:uuid;not null;uniqueIndex:ux_broker_analytics_broker_date"`
	Date               time.Time `gorm:"column:date;type:date;not null;uniqueIndex:ux_broker_analytics_broker_date"`
	OrderCount         int       `gorm:"column:order_count;not null;default:0"`
	Revenue            int64     `gorm:"column:revenue;not null;default:0"`
	RevenueShareEarned int64     `gorm:"column:revenue_share_earned;not null;default:0"`
	MarkupEarned       int64     `gorm:"column:markup_earned;not null;default:0"`
	CreatedAt          time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (BrokerAnalytics) TableName() string { return "broker_analytics" }
