package enums

import "testing"

func TestParseRoundTrips(t *testing.T) {
	if got, err := ParseOrderStatus("COMPLETED"); err != nil || got != OrderStatusCompleted {
		t.Fatalf("ParseOrderStatus: got %q err %v", got, err)
	}
	if _, err := ParseOrderStatus("completed"); err == nil {
		t.Fatalf("status parsing must be case sensitive")
	}
	if got, err := ParseBrokerStatus("SUSPENDED"); err != nil || got != BrokerStatusSuspended {
		t.Fatalf("ParseBrokerStatus: got %q err %v", got, err)
	}
	if _, err := ParseMarkupType("TIERED"); err == nil {
		t.Fatalf("expected unknown markup type to fail")
	}
	if _, err := ParseOutboxEventType("order_paid"); err != nil {
		t.Fatalf("ParseOutboxEventType: %v", err)
	}
}

func TestPaymentMethodIsManual(t *testing.T) {
	tests := []struct {
		method PaymentMethod
		manual bool
	}{
		{PaymentMethodStripe, false},
		{PaymentMethodCash, true},
		{PaymentMethodWire, true},
		{PaymentMethodCheck, true},
		{PaymentMethodManual, true},
		{PaymentMethod("PAYPAL"), false},
	}
	for _, tt := range tests {
		if got := tt.method.IsManual(); got != tt.manual {
			t.Fatalf("%s.IsManual() = %v, want %v", tt.method, got, tt.manual)
		}
	}
}
