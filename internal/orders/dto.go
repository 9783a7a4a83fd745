package orders

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	"github.com/angelmondragon/tradelines-backend/pkg/money"
	"github.com/angelmondragon/tradelines-backend/pkg/pagination"
)

// CreateOrderInput is a customer checkout request.
type CreateOrderInput struct {
	BrokerID      *uuid.UUID          `json:"broker_id,omitempty"`
	ClientID      *uuid.UUID          `json:"client_id,omitempty"`
	CustomerEmail string              `json:"customer_email" validate:"required,email,max=254"`
	CustomerName  string              `json:"customer_name" validate:"omitempty,max=200"`
	CustomerPhone string              `json:"customer_phone" validate:"omitempty,max=40"`
	Items         []ItemInput         `json:"items" validate:"required,min=1,max=50,dive"`
	PromoCode     string              `json:"promo_code" validate:"omitempty,max=40"`
	PaymentMethod enums.PaymentMethod `json:"payment_method" validate:"omitempty,oneof=STRIPE CASH WIRE CHECK MANUAL"`
	ActorID       string              `json:"-"`
}

// ItemInput requests a quantity of one catalog card.
type ItemInput struct {
	CardID   string `json:"card_id" validate:"required,max=64"`
	Quantity int    `json:"quantity" validate:"min=1,max=100"`
}

// ProcessPaymentInput settles an order against a payment reference.
type ProcessPaymentInput struct {
	OrderID    uuid.UUID
	PaymentRef string
	Method     enums.PaymentMethod
	ActorID    string
}

// CommissionBreakdown splits the order total between supplier, platform and broker.
type CommissionBreakdown struct {
	SupplierGets             int64   `json:"supplier_gets"`
	SupplierGetsUSD          float64 `json:"supplier_gets_usd"`
	BrokerRevenueShare       int64   `json:"broker_revenue_share"`
	BrokerRevenueShareUSD    float64 `json:"broker_revenue_share_usd"`
	BrokerMarkup             int64   `json:"broker_markup"`
	BrokerMarkupUSD          float64 `json:"broker_markup_usd"`
	BrokerTotalEarnings      int64   `json:"broker_total_earnings"`
	BrokerTotalEarningsUSD   float64 `json:"broker_total_earnings_usd"`
	PlatformNetCommission    int64   `json:"platform_net_commission"`
	PlatformNetCommissionUSD float64 `json:"platform_net_commission_usd"`
	MultiLineDiscount        int64   `json:"multi_line_discount"`
	MultiLineDiscountUSD     float64 `json:"multi_line_discount_usd"`
}

// ItemView is an order line as returned to callers.
type ItemView struct {
	ID                   uuid.UUID `json:"id"`
	CardID               string    `json:"card_id"`
	BankName             string    `json:"bank_name"`
	CreditLimit          int64     `json:"credit_limit"`
	DateOpened           *string   `json:"date_opened,omitempty"`
	PurchaseDeadline     *string   `json:"purchase_deadline,omitempty"`
	ReportingPeriod      *string   `json:"reporting_period,omitempty"`
	Quantity             int       `json:"quantity"`
	UnitCustomerPrice    int64     `json:"unit_customer_price"`
	UnitCustomerPriceUSD float64   `json:"unit_customer_price_usd"`
	LineCustomerPrice    int64     `json:"line_customer_price"`
	LineCustomerPriceUSD float64   `json:"line_customer_price_usd"`
	LineRevenueShare     int64     `json:"line_revenue_share"`
	LineMarkup           int64     `json:"line_markup"`
	LineDiscount         int64     `json:"line_discount"`
	LineDiscountUSD      float64   `json:"line_discount_usd"`
}

// CommissionView is the broker commission attached to an order.
type CommissionView struct {
	ID                 uuid.UUID                    `json:"id"`
	RevenueShareAmount int64                        `json:"revenue_share_amount"`
	MarkupAmount       int64                        `json:"markup_amount"`
	TotalCommission    int64                        `json:"total_commission"`
	TotalCommissionUSD float64                      `json:"total_commission_usd"`
	PayoutStatus       enums.CommissionPayoutStatus `json:"payout_status"`
	PayoutID           *uuid.UUID                   `json:"payout_id,omitempty"`
}

// OrderView is an order with its items, commission and derived USD amounts.
type OrderView struct {
	ID                    uuid.UUID           `json:"id"`
	OrderNumber           string              `json:"order_number"`
	BrokerID              *uuid.UUID          `json:"broker_id,omitempty"`
	ClientID              *uuid.UUID          `json:"client_id,omitempty"`
	CustomerEmail         string              `json:"customer_email"`
	CustomerName          *string             `json:"customer_name,omitempty"`
	CustomerPhone         *string             `json:"customer_phone,omitempty"`
	Status                enums.OrderStatus   `json:"status"`
	PaymentStatus         enums.PaymentStatus `json:"payment_status"`
	PaymentMethod         enums.PaymentMethod `json:"payment_method"`
	SubtotalBase          int64               `json:"subtotal_base"`
	SubtotalBaseUSD       float64             `json:"subtotal_base_usd"`
	BrokerRevenueShare    int64               `json:"broker_revenue_share"`
	BrokerRevenueShareUSD float64             `json:"broker_revenue_share_usd"`
	BrokerMarkup          int64               `json:"broker_markup"`
	BrokerMarkupUSD       float64             `json:"broker_markup_usd"`
	PlatformNetRevenue    int64               `json:"platform_net_revenue"`
	PlatformNetRevenueUSD float64             `json:"platform_net_revenue_usd"`
	MultiLineDiscount     int64               `json:"multi_line_discount"`
	MultiLineDiscountUSD  float64             `json:"multi_line_discount_usd"`
	TotalCharged          int64               `json:"total_charged"`
	TotalChargedUSD       float64             `json:"total_charged_usd"`
	PromoCode             *string             `json:"promo_code,omitempty"`
	StripeSessionID       *string             `json:"stripe_session_id,omitempty"`
	StripePaymentIntent   *string             `json:"stripe_payment_intent,omitempty"`
	TradelineOrderID      *string             `json:"tradeline_order_id,omitempty"`
	TradelineOrderStatus  *string             `json:"tradeline_order_status,omitempty"`
	CompletedAt           *time.Time          `json:"completed_at,omitempty"`
	CreatedAt             time.Time           `json:"created_at"`
	Items                 []ItemView          `json:"items"`
	Commission            *CommissionView     `json:"commission,omitempty"`
	CommissionBreakdown   CommissionBreakdown `json:"commission_breakdown"`
}

// OrderSummaryRow is a list entry.
type OrderSummaryRow struct {
	ID                uuid.UUID           `json:"id"`
	OrderNumber       string              `json:"order_number"`
	BrokerID          *uuid.UUID          `json:"broker_id,omitempty"`
	CustomerEmail     string              `json:"customer_email"`
	Status            enums.OrderStatus   `json:"status"`
	PaymentStatus     enums.PaymentStatus `json:"payment_status"`
	PaymentMethod     enums.PaymentMethod `json:"payment_method"`
	ItemCount         int                 `json:"item_count"`
	TotalCharged      int64               `json:"total_charged"`
	TotalChargedUSD   float64             `json:"total_charged_usd"`
	BrokerEarnings    int64               `json:"broker_earnings"`
	BrokerEarningsUSD float64             `json:"broker_earnings_usd"`
	CreatedAt         time.Time           `json:"created_at"`
}

// OrderFilters narrow order lists.
type OrderFilters struct {
	BrokerID *uuid.UUID
	Status   *enums.OrderStatus
	DateFrom *time.Time
	DateTo   *time.Time
}

// BrokerOrderSummary aggregates a broker's completed orders in the filtered range.
type BrokerOrderSummary struct {
	TotalOrders        int64   `json:"total_orders"`
	TotalRevenue       int64   `json:"total_revenue"`
	TotalRevenueUSD    float64 `json:"total_revenue_usd"`
	TotalCommission    int64   `json:"total_commission"`
	TotalCommissionUSD float64 `json:"total_commission_usd"`
}

// OrderList is one page of orders.
type OrderList struct {
	Orders     []OrderSummaryRow   `json:"orders"`
	Pagination pagination.Meta     `json:"pagination"`
	Summary    *BrokerOrderSummary `json:"summary,omitempty"`
}

// NewOrderView renders a persisted order with derived amounts.
func NewOrderView(order *models.Order) *OrderView {
	view := &OrderView{
		ID:                    order.ID,
		OrderNumber:           order.OrderNumber,
		BrokerID:              order.BrokerID,
		ClientID:              order.ClientID,
		CustomerEmail:         order.CustomerEmail,
		CustomerName:          order.CustomerName,
		CustomerPhone:         order.CustomerPhone,
		Status:                order.Status,
		PaymentStatus:         order.PaymentStatus,
		PaymentMethod:         order.PaymentMethod,
		SubtotalBase:          order.SubtotalBase,
		SubtotalBaseUSD:       money.CentsToUSD(order.SubtotalBase),
		BrokerRevenueShare:    order.BrokerRevenueShare,
		BrokerRevenueShareUSD: money.CentsToUSD(order.BrokerRevenueShare),
		BrokerMarkup:          order.BrokerMarkup,
		BrokerMarkupUSD:       money.CentsToUSD(order.BrokerMarkup),
		PlatformNetRevenue:    order.PlatformNetRevenue,
		PlatformNetRevenueUSD: money.CentsToUSD(order.PlatformNetRevenue),
		MultiLineDiscount:     order.MultiLineDiscount,
		MultiLineDiscountUSD:  money.CentsToUSD(order.MultiLineDiscount),
		TotalCharged:          order.TotalCharged,
		TotalChargedUSD:       money.CentsToUSD(order.TotalCharged),
		PromoCode:             order.PromoCode,
		StripeSessionID:       order.StripeSessionID,
		StripePaymentIntent:   order.StripePaymentIntent,
		TradelineOrderID:      order.TradelineOrderID,
		TradelineOrderStatus:  order.TradelineOrderStatus,
		CompletedAt:           order.CompletedAt,
		CreatedAt:             order.CreatedAt,
		Items:                 make([]ItemView, 0, len(order.Items)),
	}

	for _, item := range order.Items {
		view.Items = append(view.Items, ItemView{
			ID:                   item.ID,
			CardID:               item.CardID,
			BankName:             item.BankName,
			CreditLimit:          item.CreditLimit,
			DateOpened:           item.DateOpened,
			PurchaseDeadline:     item.PurchaseDeadline,
			ReportingPeriod:      item.ReportingPeriod,
			Quantity:             item.Quantity,
			UnitCustomerPrice:    item.UnitCustomerPrice,
			UnitCustomerPriceUSD: money.CentsToUSD(item.UnitCustomerPrice),
			LineCustomerPrice:    item.LineCustomerPrice,
			LineCustomerPriceUSD: money.CentsToUSD(item.LineCustomerPrice),
			LineRevenueShare:     item.LineRevenueShare,
			LineMarkup:           item.LineMarkup,
			LineDiscount:         item.LineDiscount,
			LineDiscountUSD:      money.CentsToUSD(item.LineDiscount),
		})
	}

	brokerShare := order.BrokerRevenueShare
	brokerMarkup := order.BrokerMarkup
	if c := order.Commission; c != nil {
		view.Commission = &CommissionView{
			ID:                 c.ID,
			RevenueShareAmount: c.RevenueShareAmount,
			MarkupAmount:       c.MarkupAmount,
			TotalCommission:    c.TotalCommission,
			TotalCommissionUSD: money.CentsToUSD(c.TotalCommission),
			PayoutStatus:       c.PayoutStatus,
			PayoutID:           c.PayoutID,
		}
		brokerShare = c.RevenueShareAmount
		brokerMarkup = c.MarkupAmount
	}

	view.CommissionBreakdown = CommissionBreakdown{
		SupplierGets:             order.SubtotalBase,
		SupplierGetsUSD:          money.CentsToUSD(order.SubtotalBase),
		BrokerRevenueShare:       brokerShare,
		BrokerRevenueShareUSD:    money.CentsToUSD(brokerShare),
		BrokerMarkup:             brokerMarkup,
		BrokerMarkupUSD:          money.CentsToUSD(brokerMarkup),
		BrokerTotalEarnings:      brokerShare + brokerMarkup,
		BrokerTotalEarningsUSD:   money.CentsToUSD(brokerShare + brokerMarkup),
		PlatformNetCommission:    order.PlatformNetRevenue,
		PlatformNetCommissionUSD: money.CentsToUSD(order.PlatformNetRevenue),
		MultiLineDiscount:        order.MultiLineDiscount,
		MultiLineDiscountUSD:     money.CentsToUSD(order.MultiLineDiscount),
	}
	return view
}

func newSummaryRow(order models.Order, itemCount int) OrderSummaryRow {
	earnings := order.BrokerRevenueShare + order.BrokerMarkup
	return OrderSummaryRow{
		ID:                order.ID,
		OrderNumber:       order.OrderNumber,
		BrokerID:          order.BrokerID,
		CustomerEmail:     order.CustomerEmail,
		Status:            order.Status,
		PaymentStatus:     order.PaymentStatus,
		PaymentMethod:     order.PaymentMethod,
		ItemCount:         itemCount,
		TotalCharged:      order.TotalCharged,
		TotalChargedUSD:   money.CentsToUSD(order.TotalCharged),
		BrokerEarnings:    earnings,
		BrokerEarningsUSD: money.CentsToUSD(earnings),
		CreatedAt:         order.CreatedAt,
	}
}
