package models

import (
	"time"

	"github.com/google/uuid"
)

// OrderItem snapshots the priced supplier line at order time. Line amounts are
// after any multi-line discount; LineDiscount records what was taken off.
type OrderItem struct {
	ID                uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID `gorm:"column:order_id;type:uuid;not null;index"`
	CardID            string    `gorm:"column:card_id;not null"`
	BankName          string    `gorm:"column:bank_name;not null"`
	CreditLimit       int64     `gorm:"column:credit_limit;not null;default:0"`
	DateOpened        *string   `gorm:"column:date_opened"`
	PurchaseDeadline  *string   `gorm:"column:purchase_deadline"`
	ReportingPeriod   *string   `gorm:"column:reporting_period"`
	Quantity          int       `gorm:"column:quantity;not null"`
	UnitBasePrice     int64     `gorm:"column:unit_base_price;not null"`
	UnitRevenueShare  int64     `gorm:"column:unit_revenue_share;not null;default:0"`
	UnitMarkup        int64     `gorm:"column:unit_markup;not null;default:0"`
	UnitCustomerPrice int64     `gorm:"column:unit_customer_price;not null"`
	LineBasePrice     int64     `gorm:"column:line_base_price;not null"`
	LineRevenueShare  int64     `gorm:"column:line_revenue_share;not null;default:0"`
	LineMarkup        int64     `gorm:"column:line_markup;not null;default:0"`
	LineCustomerPrice int64     `gorm:"column:line_customer_price;not null"`
	LineDiscount      int64     `gorm:"column:line_discount;not null;default:0"`
	CreatedAt         time.Time `gorm:"column:created_at;autoCreateTime"`
}
