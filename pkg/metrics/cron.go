package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "crm"

// CronJobMetrics records per-job outcomes of the compensating jobs plus
// cycles skipped because another replica held the lock.
type CronJobMetrics struct {
	duration    *prometheus.HistogramVec
	success     *prometheus.CounterVec
	failure     *prometheus.CounterVec
	lastSuccess *prometheus.GaugeVec
	skipped     prometheus.Counter
}

// NewCronJobMetrics registers the cron job metrics on the provided registerer.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_duration_seconds",
		Help:      "Duration of cron jobs in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job"})
	success := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_success_total",
		Help:      "Successful cron job executions.",
	}, []string{"job"})
	failure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_failure_total",
		Help:      "Failed cron job executions.",
	}, []string{"job"})
	lastSuccess := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "job_last_success_timestamp_seconds",
		Help:      "Unix time of the last successful run per job.",
	}, []string{"job"})
	skipped := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cron",
		Name:      "cycles_skipped_total",
		Help:      "Cycles skipped because the cron lock was held elsewhere.",
	})
	reg.MustRegister(duration, success, failure, lastSuccess, skipped)
	return &CronJobMetrics{
		duration:    duration,
		success:     success,
		failure:     failure,
		lastSuccess: lastSuccess,
		skipped:     skipped,
	}
}

// ObserveDuration records the duration for the named job.
func (c *CronJobMetrics) ObserveDuration(job string, duration time.Duration) {
	if c == nil || c.duration == nil {
		return
	}
	c.duration.WithLabelValues(normalizeLabel(job)).Observe(duration.Seconds())
}

// IncSuccess counts a successful run and stamps its completion time.
func (c *CronJobMetrics) IncSuccess(job string, at time.Time) {
	if c == nil || c.success == nil {
		return
	}
	label := normalizeLabel(job)
	c.success.WithLabelValues(label).Inc()
	c.lastSuccess.WithLabelValues(label).Set(float64(at.Unix()))
}

// IncFailure increments the failure counter for the named job.
func (c *CronJobMetrics) IncFailure(job string) {
	if c == nil || c.failure == nil {
		return
	}
	c.failure.WithLabelValues(normalizeLabel(job)).Inc()
}

// IncSkipped counts a cycle that did not run because the lock was held.
func (c *CronJobMetrics) IncSkipped() {
	if c == nil || c.skipped == nil {
		return
	}
	c.skipped.Inc()
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
