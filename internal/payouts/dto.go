package payouts

import (
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/tradelines-backend/pkg/db/models"
	"github.com/angelmondragon/tradelines-backend/pkg/enums"
	"github.com/angelmondragon/tradelines-backend/pkg/money"
	"github.com/angelmondragon/tradelines-backend/pkg/pagination"
)

// Payout triggers recorded on metrics and activity metadata.
const (
	TriggerAdmin = "admin"
	TriggerCron  = "cron"
)

// PendingCommission is a broker's unbatched earnings on settled orders.
type PendingCommission struct {
	BrokerID        uuid.UUID   `json:"broker_id"`
	RevenueShare    int64       `json:"revenue_share"`
	Markup          int64       `json:"markup"`
	Total           int64       `json:"total"`
	RevenueShareUSD float64     `json:"revenue_share_usd"`
	MarkupUSD       float64     `json:"markup_usd"`
	TotalUSD        float64     `json:"total_usd"`
	OrderIDs        []uuid.UUID `json:"order_ids"`
}

func newPendingCommission(brokerID uuid.UUID, rows []models.CommissionRecord) *PendingCommission {
	out := &PendingCommission{BrokerID: brokerID, OrderIDs: make([]uuid.UUID, 0, len(rows))}
	for _, row := range rows {
		out.RevenueShare += row.RevenueShareAmount
		out.Markup += row.MarkupAmount
		out.OrderIDs = append(out.OrderIDs, row.OrderID)
	}
	out.Total = out.RevenueShare + out.Markup
	out.RevenueShareUSD = money.CentsToUSD(out.RevenueShare)
	out.MarkupUSD = money.CentsToUSD(out.Markup)
	out.TotalUSD = money.CentsToUSD(out.Total)
	return out
}

// CreatePayoutInput batches a broker's pending commission.
type CreatePayoutInput struct {
	BrokerID      uuid.UUID `json:"broker_id"`
	PeriodStart   time.Time `json:"period_start" validate:"required"`
	PeriodEnd     time.Time `json:"period_end" validate:"required,gtefield=PeriodStart"`
	PaymentMethod string    `json:"payment_method" validate:"required,oneof=ACH WIRE CHECK PAYPAL"`
	Trigger       string    `json:"-"`
	ActorID       string    `json:"-"`
}

// ProcessPayoutInput completes a payout with the external transfer reference.
type ProcessPayoutInput struct {
	TransactionID string `json:"transaction_id" validate:"required,max=255"`
	ActorID       string `json:"-"`
}

// PayoutView is a payout with display amounts.
type PayoutView struct {
	ID                 uuid.UUID          `json:"id"`
	BrokerID           uuid.UUID          `json:"broker_id"`
	Status             enums.PayoutStatus `json:"status"`
	TotalAmount        int64              `json:"total_amount"`
	RevenueShareAmount int64              `json:"revenue_share_amount"`
	MarkupAmount       int64              `json:"markup_amount"`
	TotalAmountUSD     float64            `json:"total_amount_usd"`
	RevenueShareUSD    float64            `json:"revenue_share_usd"`
	MarkupUSD          float64            `json:"markup_usd"`
	OrderCount         int                `json:"order_count"`
	PeriodStart        time.Time          `json:"period_start"`
	PeriodEnd          time.Time          `json:"period_end"`
	PaymentMethod      string             `json:"payment_method"`
	TransactionID      *string            `json:"transaction_id,omitempty"`
	ProcessedAt        *time.Time         `json:"processed_at,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
}

func newPayoutView(p *models.Payout) PayoutView {
	return PayoutView{
		ID:                 p.ID,
		BrokerID:           p.BrokerID,
		Status:             p.Status,
		TotalAmount:        p.TotalAmount,
		RevenueShareAmount: p.RevenueShareAmount,
		MarkupAmount:       p.MarkupAmount,
		TotalAmountUSD:     money.CentsToUSD(p.TotalAmount),
		RevenueShareUSD:    money.CentsToUSD(p.RevenueShareAmount),
		MarkupUSD:          money.CentsToUSD(p.MarkupAmount),
		OrderCount:         p.OrderCount,
		PeriodStart:        p.PeriodStart,
		PeriodEnd:          p.PeriodEnd,
		PaymentMethod:      p.PaymentMethod,
		TransactionID:      p.TransactionID,
		ProcessedAt:        p.ProcessedAt,
		CreatedAt:          p.CreatedAt,
	}
}

// BrokerRef is the broker contact block shown to operators.
type BrokerRef struct {
	ID           uuid.UUID `json:"id"`
	Name         string    `json:"name"`
	BusinessName *string   `json:"business_name,omitempty"`
	Email        string    `json:"email"`
}

func newBrokerRef(b *models.Broker) BrokerRef {
	if b == nil {
		return BrokerRef{}
	}
	return BrokerRef{ID: b.ID, Name: b.Name, BusinessName: b.BusinessName, Email: b.Email}
}

// PayoutOrderRef identifies an order included in a payout.
type PayoutOrderRef struct {
	OrderID     uuid.UUID `json:"order_id"`
	OrderNumber string    `json:"order_number"`
	CreatedAt   time.Time `json:"created_at"`
}

// PendingPayout is a payout awaiting transfer, with its broker and orders.
type PendingPayout struct {
	PayoutView
	Broker BrokerRef        `json:"broker"`
	Orders []PayoutOrderRef `json:"orders"`
}

// PayoutSummary totals a broker's completed payouts.
type PayoutSummary struct {
	TotalPayouts        int64   `json:"total_payouts"`
	TotalPaid           int64   `json:"total_paid"`
	TotalPaidUSD        float64 `json:"total_paid_usd"`
	RevenueSharePaidUSD float64 `json:"revenue_share_paid_usd"`
	MarkupPaidUSD       float64 `json:"markup_paid_usd"`
}

// BrokerPayoutHistory is one page of a broker's payouts plus lifetime totals.
type BrokerPayoutHistory struct {
	Payouts    []PayoutView    `json:"payouts"`
	Pagination pagination.Meta `json:"pagination"`
	Summary    PayoutSummary   `json:"summary"`
}

// ReportOrder is one order line of a payout report. Items counts order lines;
// Units sums their quantities.
type ReportOrder struct {
	OrderID         uuid.UUID `json:"order_id"`
	OrderNumber     string    `json:"order_number"`
	OrderDate       time.Time `json:"order_date"`
	Customer        string    `json:"customer"`
	Items           int       `json:"items"`
	Units           int       `json:"units"`
	OrderTotalUSD   float64   `json:"order_total_usd"`
	RevenueShareUSD float64   `json:"revenue_share_usd"`
	MarkupUSD       float64   `json:"markup_usd"`
	CommissionUSD   float64   `json:"commission_usd"`
}

// ReportPeriod bounds the payout.
type ReportPeriod struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// ReportTotals are the payout amounts in USD.
type ReportTotals struct {
	RevenueShareUSD float64 `json:"revenue_share_usd"`
	MarkupUSD       float64 `json:"markup_usd"`
	TotalUSD        float64 `json:"total_usd"`
}

// ReportPayment describes the transfer state.
type ReportPayment struct {
	Method        string             `json:"method"`
	Status        enums.PayoutStatus `json:"status"`
	TransactionID *string            `json:"transaction_id,omitempty"`
	ProcessedAt   *time.Time         `json:"processed_at,omitempty"`
}

// Report is the itemized, read-only projection of a payout.
type Report struct {
	PayoutID   uuid.UUID     `json:"payout_id"`
	BrokerID   uuid.UUID     `json:"broker_id"`
	Broker     BrokerRef     `json:"broker"`
	Period     ReportPeriod  `json:"period"`
	Totals     ReportTotals  `json:"totals"`
	Payment    ReportPayment `json:"payment"`
	Orders     []ReportOrder `json:"orders"`
	OrderCount int           `json:"order_count"`
	CreatedAt  time.Time     `json:"created_at"`
}
