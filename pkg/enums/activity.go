package enums

// ActivityAction names an immutable activity log entry.
type ActivityAction string

const (
	ActivityOrderCreated          ActivityAction = "ORDER_CREATED"
	ActivityPaymentCompleted      ActivityAction = "PAYMENT_COMPLETED"
	ActivityPaymentFailed         ActivityAction = "PAYMENT_FAILED"
	ActivityFulfillmentFailed     ActivityAction = "FULFILLMENT_FAILED"
	ActivityManualPaymentRecorded ActivityAction = "MANUAL_PAYMENT_RECORDED"
	ActivityPayoutCreated         ActivityAction = "PAYOUT_CREATED"
	ActivityPayoutProcessed       ActivityAction = "PAYOUT_PROCESSED"
	ActivityBrokerOnboarded       ActivityAction = "BROKER_ONBOARDED"
	ActivityBrokerApproved        ActivityAction = "BROKER_APPROVED"
	ActivityBrokerUpdated         ActivityAction = "BROKER_UPDATED"
)

var validActivityActions = []ActivityAction{
	ActivityOrderCreated,
	ActivityPaymentCompleted,
	ActivityPaymentFailed,
	ActivityFulfillmentFailed,
	ActivityManualPaymentRecorded,
	ActivityPayoutCreated,
	ActivityPayoutProcessed,
	ActivityBrokerOnboarded,
	ActivityBrokerApproved,
	ActivityBrokerUpdated,
}

func (a ActivityAction) IsValid() bool { return isOneOf(validActivityActions, a) }

// Entity types recorded on activity log rows.
const (
	EntityOrder  = "Order"
	EntityPayout = "Payout"
	EntityBroker = "Broker"
)
