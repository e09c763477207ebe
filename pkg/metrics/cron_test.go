package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsExportsOutcomes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	finished := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m.ObserveDuration("remote-cancel-retry", 250*time.Millisecond)
	m.IncSuccess("remote-cancel-retry", finished)
	m.IncFailure("plan-expiry")
	m.IncSkipped()
	m.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	checks := []struct {
		name, job string
		want      float64
	}{
		{"crm_cron_job_success_total", "remote-cancel-retry", 1},
		{"crm_cron_job_failure_total", "plan-expiry", 1},
	}
	for _, c := range checks {
		got, err := fetchCounterValue(mfs, c.name, "job", c.job)
		if err != nil {
			t.Fatalf("fetch %s: %v", c.name, err)
		}
		if got != c.want {
			t.Fatalf("%s: expected %v, got %v", c.name, c.want, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "crm_cron_job_duration_seconds", "job", "remote-cancel-retry"); err != nil || got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f (%v)", got, err)
	}

	stamp := findMetricFamily(mfs, "crm_cron_job_last_success_timestamp_seconds")
	if stamp == nil || stamp.GetMetric()[0].GetGauge().GetValue() != float64(finished.Unix()) {
		t.Fatalf("expected last success stamp %d, got %v", finished.Unix(), stamp)
	}
	skipped := findMetricFamily(mfs, "crm_cron_cycles_skipped_total")
	if skipped == nil || skipped.GetMetric()[0].GetCounter().GetValue() != 2 {
		t.Fatalf("expected 2 skipped cycles, got %v", skipped)
	}
}

func TestCronJobMetricsNilRegistererIsNoop(t *testing.T) {
	m := NewCronJobMetrics(nil)
	m.ObserveDuration("job", time.Second)
	m.IncSuccess("job", time.Now())
	m.IncFailure("job")
	m.IncSkipped()

	var none *CronJobMetrics
	none.IncSkipped()
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
