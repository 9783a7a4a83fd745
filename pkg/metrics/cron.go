// Package metrics exposes Prometheus collectors for background jobs, payouts
// and webhook processing. Every constructor accepts a nil Registerer and then
// returns a collector whose methods do nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tradelines"

func counterVec(subsystem, name, help string, labels ...string) *prometheus.CounterVec {
	return prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: subsystem,
		Name:      name,
		Help:      help,
	}, labels)
}

// label keeps empty values out of the series set.
func label(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}

// CronJobMetrics records outcomes of scheduled jobs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	skipped  *prometheus.CounterVec
}

func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return nil
	}
	m := &CronJobMetrics{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "cron",
			Name:      "job_duration_seconds",
			Help:      "Duration of cron jobs in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"job"}),
		runs:    counterVec("cron", "job_runs_total", "Cron job executions by result.", "job", "result"),
		skipped: counterVec("cron", "cycle_skipped_total", "Cycles skipped because another worker held the lock.", "lock"),
	}
	reg.MustRegister(m.duration, m.runs, m.skipped)
	return m
}

func (c *CronJobMetrics) ObserveDuration(job string, d time.Duration) {
	if c != nil {
		c.duration.WithLabelValues(label(job)).Observe(d.Seconds())
	}
}

func (c *CronJobMetrics) IncSuccess(job string) {
	if c != nil {
		c.runs.WithLabelValues(label(job), "success").Inc()
	}
}

func (c *CronJobMetrics) IncFailure(job string) {
	if c != nil {
		c.runs.WithLabelValues(label(job), "failure").Inc()
	}
}

// IncSkipped counts a cycle that did not run because the lock was held elsewhere.
func (c *CronJobMetrics) IncSkipped(lock string) {
	if c != nil {
		c.skipped.WithLabelValues(label(lock)).Inc()
	}
}
