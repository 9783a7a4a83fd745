package enums

// BrokerStatus gates whether a broker can price and sell.
type BrokerStatus string

const (
	BrokerStatusPending   BrokerStatus = "PENDING"
	BrokerStatusActive    BrokerStatus = "ACTIVE"
	BrokerStatusSuspended BrokerStatus = "SUSPENDED"
	BrokerStatusInactive  BrokerStatus = "INACTIVE"
)

var validBrokerStatuses = []BrokerStatus{
	BrokerStatusPending,
	BrokerStatusActive,
	BrokerStatusSuspended,
	BrokerStatusInactive,
}

func (s BrokerStatus) String() string { return string(s) }

func (s BrokerStatus) IsValid() bool { return isOneOf(validBrokerStatuses, s) }

func ParseBrokerStatus(value string) (BrokerStatus, error) {
	return parseOneOf(validBrokerStatuses, value, "broker status")
}

// MarkupType selects how a broker's markup value is applied.
type MarkupType string

const (
	MarkupTypePercentage MarkupType = "PERCENTAGE"
	MarkupTypeFixed      MarkupType = "FIXED"
)

var validMarkupTypes = []MarkupType{MarkupTypePercentage, MarkupTypeFixed}

func (m MarkupType) String() string { return string(m) }

func (m MarkupType) IsValid() bool { return isOneOf(validMarkupTypes, m) }

func ParseMarkupType(value string) (MarkupType, error) {
	return parseOneOf(validMarkupTypes, value, "markup type")
}
