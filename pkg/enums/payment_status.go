package enums

// PaymentStatus tracks whether the customer's payment cleared.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "PENDING"
	PaymentStatusSucceeded PaymentStatus = "SUCCEEDED"
	PaymentStatusFailed    PaymentStatus = "FAILED"
)

var validPaymentStatuses = []PaymentStatus{
	PaymentStatusPending,
	PaymentStatusSucceeded,
	PaymentStatusFailed,
}

// String implements fmt.Stringer.
func (p PaymentStatus) String() string { return string(p) }

// IsValid reports whether the value is a known PaymentStatus.
func (p PaymentStatus) IsValid() bool { return isOneOf(validPaymentStatuses, p) }

// ParsePaymentStatus converts raw input into a PaymentStatus.
func ParsePaymentStatus(value string) (PaymentStatus, error) {
	return parseOneOf(validPaymentStatuses, value, "payment status")
}
