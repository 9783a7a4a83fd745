package enums

// OutboxAggregateType maps to the aggregate_type column of outbox_events.
type OutboxAggregateType string

const (
	AggregateOrder  OutboxAggregateType = "order"
	AggregatePayout OutboxAggregateType = "payout"
	AggregateBroker OutboxAggregateType = "broker"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregatePayout,
	AggregateBroker,
}

// IsValid reports whether the value matches a known aggregate type.
func (a OutboxAggregateType) IsValid() bool { return isOneOf(validAggregateTypes, a) }

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	return parseOneOf(validAggregateTypes, value, "aggregate type")
}

// OutboxEventType maps to the event_type column of outbox_events.
type OutboxEventType string

const (
	EventFulfillmentAutomationRequested OutboxEventType = "fulfillment_automation_requested"
	EventOrderPaid                      OutboxEventType = "order_paid"
	EventPaymentFailed                  OutboxEventType = "payment_failed"
	EventFulfillmentFailed              OutboxEventType = "fulfillment_failed"
	EventPayoutCreated                  OutboxEventType = "payout_created"
	EventPayoutCompleted                OutboxEventType = "payout_completed"
	EventBrokerOnboarded                OutboxEventType = "broker_onboarded"
)

var validOutboxEventTypes = []OutboxEventType{
	EventFulfillmentAutomationRequested,
	EventOrderPaid,
	EventPaymentFailed,
	EventFulfillmentFailed,
	EventPayoutCreated,
	EventPayoutCompleted,
	EventBrokerOnboarded,
}

// IsValid reports whether the value matches a known event type.
func (e OutboxEventType) IsValid() bool { return isOneOf(validOutboxEventTypes, e) }

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	return parseOneOf(validOutboxEventTypes, value, "event type")
}
