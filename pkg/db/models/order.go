package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// Order is a customer purchase of one or more tradeline lines. Amounts are cents.
// SubtotalBase is the base cost net of the broker revenue share so that
// TotalCharged = SubtotalBase + BrokerRevenueShare + BrokerMarkup - MultiLineDiscount.
type Order struct {
	ID                   uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber          string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	BrokerID             *uuid.UUID          `gorm:"column:broker_id;type:uuid;index"`
	ClientID             *uuid.UUID          `gorm:"column:client_id;type:uuid"`
	CustomerEmail        string              `gorm:"column:customer_email;not null"`
	CustomerName         *string             `gorm:"column:customer_name"`
	CustomerPhone        *string             `gorm:"column:customer_phone"`
	Status               enums.OrderStatus   `gorm:"column:status;type:order_status;not null;default:'PENDING'"`
	PaymentStatus        enums.PaymentStatus `gorm:"column:payment_status;type:payment_status;not null;default:'PENDING'"`
	PaymentMethod        enums.PaymentMethod `gorm:"column:payment_method;type:payment_method;not null;default:'STRIPE'"`
	SubtotalBase         int64               `gorm:"column:subtotal_base;not null"`
	BrokerRevenueShare   int64               `gorm:"column:broker_revenue_share;not null;default:0"`
	BrokerMarkup         int64               `gorm:"column:broker_markup;not null;default:0"`
	PlatformNetRevenue   int64               `gorm:"column:platform_net_revenue;not null"`
	TotalCharged         int64               `gorm:"column:total_charged;not null"`
	MultiLineDiscount    int64               `gorm:"column:multi_line_discount;not null;default:0"`
	PromoCode            *string             `gorm:"column:promo_code"`
	StripeSessionID      *string             `gorm:"column:stripe_session_id"`
	StripePaymentIntent  *string             `gorm:"column:stripe_payment_intent"`
	TradelineOrderID     *string             `gorm:"column:tradeline_order_id"`
	TradelineOrderStatus *string             `gorm:"column:tradeline_order_status"`
	CompletedAt          *time.Time          `gorm:"column:completed_at"`
	Items                []OrderItem         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Commission           *CommissionRecord   `gorm:"foreignKey:OrderID"`
	CreatedAt            time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

// BalanceHolds reports whether the stored amounts satisfy the order money invariant.
func (o *Order) BalanceHolds() bool {
	return o.TotalCharged == o.SubtotalBase+o.BrokerRevenueShare+o.BrokerMarkup-o.MultiLineDiscount
}
