package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Client is an end customer buying tradelines, optionally attached to a broker.
type Client struct {
	ID            uuid.UUID      `gorm:"column:id;type:uuid;primaryKey"`
	BrokerID      *uuid.UUID     `gorm:"column:broker_id;type:uuid"`
	Email         string         `gorm:"column:email;not null;uniqueIndex:ux_clients_email"`
	Name          *string        `gorm:"column:name"`
	Phone         *string        `gorm:"column:phone"`
	ExcludedBanks pq.StringArray `gorm:"column:excluded_banks;type:text[]"`
	CreatedAt     time.Time      `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time      `gorm:"column:updated_at;autoUpdateTime"`
}
