package metrics

import "github.com/prometheus/client_golang/prometheus"

// PayoutMetrics tracks payouts produced by the batch job and admins.
type PayoutMetrics struct {
	created *prometheus.CounterVec
	amount  *prometheus.CounterVec
}

func NewPayoutMetrics(reg prometheus.Registerer) *PayoutMetrics {
	if reg == nil {
		return nil
	}
	m := &PayoutMetrics{
		created: counterVec("payouts", "created_total", "Payouts created, by trigger.", "trigger"),
		amount:  counterVec("payouts", "amount_cents_total", "Total cents batched into payouts, by trigger.", "trigger"),
	}
	reg.MustRegister(m.created, m.amount)
	return m
}

func (p *PayoutMetrics) ObserveCreated(trigger string, amountCents int64) {
	if p == nil {
		return
	}
	trigger = label(trigger)
	p.created.WithLabelValues(trigger).Inc()
	p.amount.WithLabelValues(trigger).Add(float64(amountCents))
}
