// Package payloads holds the JSON bodies carried inside outbox envelopes.
package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/enums"
)

// FulfillmentItem is one supplier line the automation worker must purchase.
type FulfillmentItem struct {
	CardID   string `json:"card_id"`
	BankName string `json:"bank_name"`
	Quantity int    `json:"quantity"`
}

// FulfillmentAutomationRequestedEvent asks the external automation worker to place
// the supplier order for a manually paid order.
type FulfillmentAutomationRequestedEvent struct {
	OrderID       uuid.UUID           `json:"order_id"`
	OrderNumber   string              `json:"order_number"`
	CustomerEmail string              `json:"customer_email"`
	CustomerName  string              `json:"customer_name,omitempty"`
	PaymentMethod enums.PaymentMethod `json:"payment_method"`
	Items         []FulfillmentItem   `json:"items"`
	RequestedBy   string              `json:"requested_by"`
}

// OrderPaidEvent is emitted once an order reaches COMPLETED/SUCCEEDED.
type OrderPaidEvent struct {
	OrderID          uuid.UUID           `json:"order_id"`
	OrderNumber      string              `json:"order_number"`
	BrokerID         *uuid.UUID          `json:"broker_id,omitempty"`
	CustomerEmail    string              `json:"customer_email"`
	TotalCharged     int64               `json:"total_charged"`
	PaymentMethod    enums.PaymentMethod `json:"payment_method"`
	TradelineOrderID string              `json:"tradeline_order_id,omitempty"`
	CompletedAt      time.Time           `json:"completed_at"`
}

// PaymentFailedEvent notifies the customer and broker of a declined payment.
type PaymentFailedEvent struct {
	OrderID     uuid.UUID  `json:"order_id"`
	OrderNumber string     `json:"order_number"`
	BrokerID    *uuid.UUID `json:"broker_id,omitempty"`
	Reason      string     `json:"reason"`
}

// FulfillmentFailedEvent alerts operators that a paid order could not be placed with the supplier.
type FulfillmentFailedEvent struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	Error       string    `json:"error"`
}

// PayoutCreatedEvent reports a new payout batch.
type PayoutCreatedEvent struct {
	PayoutID    uuid.UUID `json:"payout_id"`
	BrokerID    uuid.UUID `json:"broker_id"`
	TotalAmount int64     `json:"total_amount"`
	OrderCount  int       `json:"order_count"`
}

// PayoutCompletedEvent reports a settled payout.
type PayoutCompletedEvent struct {
	PayoutID      uuid.UUID `json:"payout_id"`
	BrokerID      uuid.UUID `json:"broker_id"`
	TotalAmount   int64     `json:"total_amount"`
	TransactionID string    `json:"transaction_id"`
}

// BrokerOnboardedEvent triggers the broker welcome notification.
type BrokerOnboardedEvent struct {
	BrokerID uuid.UUID `json:"broker_id"`
	Name     string    `json:"name"`
	Email    string    `json:"email"`
}
