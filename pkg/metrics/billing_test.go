package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestBillingMetricsRecordsGatewayOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)

	m.ObserveGatewayCall("delete_subscription", 10*time.Millisecond, nil)
	m.ObserveGatewayCall("delete_subscription", 10*time.Millisecond, errors.New("boom"))
	m.IncWebhookEvent("checkout.session.completed", OutcomeSuccess)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	calls := findMetricFamily(mfs, "crm_billing_gateway_calls_total")
	if calls == nil {
		t.Fatalf("gateway calls metric missing")
	}
	if got := sumCounter(calls, "outcome", OutcomeFailure); got != 1 {
		t.Fatalf("expected one failure, got %f", got)
	}
	if got := sumCounter(calls, "outcome", OutcomeSuccess); got != 1 {
		t.Fatalf("expected one success, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "crm_billing_webhook_events_total", "type", "checkout.session.completed"); err != nil {
		t.Fatalf("fetch webhook counter: %v", err)
	} else if got != 1 {
		t.Fatalf("expected webhook counter 1, got %f", got)
	}
}

func TestBillingMetricsNilSafe(t *testing.T) {
	var m *BillingMetrics
	m.ObserveGatewayCall("op", time.Millisecond, nil)
	m.IncWebhookEvent("type", OutcomeIgnored)

	noop := NewBillingMetrics(nil)
	noop.ObserveGatewayCall("op", time.Millisecond, nil)
}

func sumCounter(mf *dto.MetricFamily, label, value string) float64 {
	var total float64
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}
