package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
	OutcomeIgnored = "ignored"
	OutcomeReplay  = "replay"
)

// BillingMetrics tracks calls to the payment provider and inbound webhooks.
type BillingMetrics struct {
	gatewayCalls    *prometheus.CounterVec
	gatewayDuration *prometheus.HistogramVec
	webhookEvents   *prometheus.CounterVec
}

// NewBillingMetrics registers billing collectors on reg. A nil registerer
// yields a no-op recorder.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	calls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "gateway_calls_total",
		Help:      "Payment gateway calls by operation and outcome.",
	}, []string{"operation", "outcome"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "gateway_call_duration_seconds",
		Help:      "Latency of payment gateway calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	events := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "billing",
		Name:      "webhook_events_total",
		Help:      "Inbound billing webhook events by type and outcome.",
	}, []string{"type", "outcome"})
	reg.MustRegister(calls, duration, events)
	return &BillingMetrics{
		gatewayCalls:    calls,
		gatewayDuration: duration,
		webhookEvents:   events,
	}
}

// ObserveGatewayCall records one provider call.
func (b *BillingMetrics) ObserveGatewayCall(operation string, duration time.Duration, err error) {
	if b == nil || b.gatewayCalls == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	op := normalizeLabel(operation)
	b.gatewayCalls.WithLabelValues(op, outcome).Inc()
	b.gatewayDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// IncWebhookEvent counts one webhook delivery.
func (b *BillingMetrics) IncWebhookEvent(eventType, outcome string) {
	if b == nil || b.webhookEvents == nil {
		return
	}
	b.webhookEvents.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
