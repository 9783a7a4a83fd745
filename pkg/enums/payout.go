package enums

// CommissionPayoutStatus tracks a commission record through payout batching.
type CommissionPayoutStatus string

const (
	CommissionPending    CommissionPayoutStatus = "PENDING"
	CommissionProcessing CommissionPayoutStatus = "PROCESSING"
	CommissionCompleted  CommissionPayoutStatus = "COMPLETED"
)

var validCommissionStatuses = []CommissionPayoutStatus{
	CommissionPending,
	CommissionProcessing,
	CommissionCompleted,
}

func (s CommissionPayoutStatus) IsValid() bool { return isOneOf(validCommissionStatuses, s) }

// PayoutStatus tracks a payout batch.
type PayoutStatus string

const (
	PayoutStatusPending   PayoutStatus = "PENDING"
	PayoutStatusCompleted PayoutStatus = "COMPLETED"
)

var validPayoutStatuses = []PayoutStatus{PayoutStatusPending, PayoutStatusCompleted}

func (s PayoutStatus) IsValid() bool { return isOneOf(validPayoutStatuses, s) }
