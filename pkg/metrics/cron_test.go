package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCronJobMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveDuration("payout-batch", 250*time.Millisecond)
	m.IncSuccess("payout-batch")
	m.IncSuccess("payout-batch")
	m.IncFailure("payout-batch")
	m.IncSkipped("")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.runs.WithLabelValues("payout-batch", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("payout-batch", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.skipped.WithLabelValues("unknown")))

	hist := histogram(t, reg, "tradelines_cron_job_duration_seconds")
	assert.Equal(t, uint64(1), hist.GetSampleCount())
	assert.InDelta(t, 0.25, hist.GetSampleSum(), 1e-9)
}

func TestWebhookAndPayoutMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	webhooks := NewWebhookMetrics(reg)
	payouts := NewPayoutMetrics(reg)

	webhooks.Observe("stripe", "checkout.session.completed", OutcomeProcessed)
	webhooks.Observe("stripe", "checkout.session.completed", OutcomeDuplicate)
	payouts.ObserveCreated("cron", 5000)
	payouts.ObserveCreated("cron", 2500)

	assert.Equal(t, 1.0, testutil.ToFloat64(webhooks.events.WithLabelValues("stripe", "checkout.session.completed", OutcomeDuplicate)))
	assert.Equal(t, 2.0, testutil.ToFloat64(payouts.created.WithLabelValues("cron")))
	assert.Equal(t, 7500.0, testutil.ToFloat64(payouts.amount.WithLabelValues("cron")))
	assert.Equal(t, 2, testutil.CollectAndCount(webhooks.events))
}

func TestNilRegistererIsNoop(t *testing.T) {
	assert.NotPanics(t, func() {
		NewCronJobMetrics(nil).IncSuccess("job")
		NewCronJobMetrics(nil).ObserveDuration("job", time.Second)
		NewWebhookMetrics(nil).Observe("stripe", "x", OutcomeProcessed)
		NewPayoutMetrics(nil).ObserveCreated("cron", 10)
	})
}

func histogram(t *testing.T, reg *prometheus.Registry, name string) *dto.Histogram {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() == name {
			require.NotEmpty(t, mf.GetMetric())
			return mf.GetMetric()[0].GetHistogram()
		}
	}
	t.Fatalf("metric %q not registered", name)
	return nil
}
