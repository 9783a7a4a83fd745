package enums

// WebhookStatus tracks processing of an inbound gateway event.
type WebhookStatus string

const (
	WebhookStatusProcessing WebhookStatus = "PROCESSING"
	WebhookStatusProcessed  WebhookStatus = "PROCESSED"
	WebhookStatusFailed     WebhookStatus = "FAILED"
)

func (s WebhookStatus) IsValid() bool {
	return isOneOf([]WebhookStatus{WebhookStatusProcessing, WebhookStatusProcessed, WebhookStatusFailed}, s)
}

// WebhookSourceStripe is the only gateway wired today.
const WebhookSourceStripe = "stripe"
