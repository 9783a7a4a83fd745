package enums

// PaymentMethod describes the rail an order was settled on.
type PaymentMethod string

const (
	PaymentMethodStripe PaymentMethod = "STRIPE"
	PaymentMethodCash   PaymentMethod = "CASH"
	PaymentMethodWire   PaymentMethod = "WIRE"
	PaymentMethodCheck  PaymentMethod = "CHECK"
	PaymentMethodManual PaymentMethod = "MANUAL"
)

var validPaymentMethods = []PaymentMethod{
	PaymentMethodStripe,
	PaymentMethodCash,
	PaymentMethodWire,
	PaymentMethodCheck,
	PaymentMethodManual,
}

// String implements fmt.Stringer.
func (p PaymentMethod) String() string { return string(p) }

// IsValid reports whether the value is a known PaymentMethod.
func (p PaymentMethod) IsValid() bool { return isOneOf(validPaymentMethods, p) }

// IsManual reports whether the method is an out-of-band rail an operator records by hand.
func (p PaymentMethod) IsManual() bool {
	return p.IsValid() && p != PaymentMethodStripe
}

// ParsePaymentMethod converts raw input into a PaymentMethod.
func ParsePaymentMethod(value string) (PaymentMethod, error) {
	return parseOneOf(validPaymentMethods, value, "payment method")
}
