package enums

// OrderStatus tracks fulfillment progress of an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusCompleted  OrderStatus = "COMPLETED"
	OrderStatusFailed     OrderStatus = "FAILED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
	OrderStatusRefunded   OrderStatus = "REFUNDED"
)

var validOrderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusCompleted,
	OrderStatusFailed,
	OrderStatusCancelled,
	OrderStatusRefunded,
}

func (s OrderStatus) String() string { return string(s) }

func (s OrderStatus) IsValid() bool { return isOneOf(validOrderStatuses, s) }

func ParseOrderStatus(value string) (OrderStatus, error) {
	return parseOneOf(validOrderStatuses, value, "order status")
}
