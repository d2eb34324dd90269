package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsObserveRun(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.now = func() time.Time { return time.Unix(1_772_445_600, 0) }

	m.ObserveRun("sweep", 250*time.Millisecond, nil)
	m.ObserveRun("sweep", time.Second, errors.New("boom"))
	m.ObserveRun("", time.Millisecond, nil)
	m.IncSkipped()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got := mustValue(t, mfs, "orderdesk_cron_job_success_total", "sweep"); got != 1 {
		t.Fatalf("expected success=1, got %f", got)
	}
	if got := mustValue(t, mfs, "orderdesk_cron_job_failure_total", "sweep"); got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}
	if got := mustValue(t, mfs, "orderdesk_cron_job_last_success_timestamp_seconds", "sweep"); got != 1_772_445_600 {
		t.Fatalf("expected last success timestamp, got %f", got)
	}
	if got := mustValue(t, mfs, "orderdesk_cron_job_success_total", "unknown"); got != 1 {
		t.Fatalf("expected empty job name to be labelled unknown, got %f", got)
	}
	if got := mustValue(t, mfs, "orderdesk_cron_cycles_skipped_total", ""); got != 1 {
		t.Fatalf("expected one skipped cycle, got %f", got)
	}

	mf := findMetricFamily(mfs, "orderdesk_cron_job_duration_seconds")
	if mf == nil {
		t.Fatalf("duration histogram not exported")
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", "sweep") && metric.GetHistogram().GetSampleCount() != 2 {
			t.Fatalf("expected 2 duration samples, got %d", metric.GetHistogram().GetSampleCount())
		}
	}
}

func TestCronJobMetricsNilSafe(t *testing.T) {
	var m *CronJobMetrics
	m.ObserveRun("sweep", time.Second, nil)
	m.IncSkipped()
	NewCronJobMetrics(nil).ObserveRun("sweep", time.Second, errors.New("boom"))
}

// mustValue returns the counter or gauge value for the job label. An empty
// job matches an unlabelled series.
func mustValue(t *testing.T, mfs []*dto.MetricFamily, name, job string) float64 {
	t.Helper()
	v, err := seriesValue(mfs, name, job)
	if err != nil {
		t.Fatalf("%v", err)
	}
	return v
}

func seriesValue(mfs []*dto.MetricFamily, name, job string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if job != "" && !matchesLabel(metric.GetLabel(), "job", job) {
			continue
		}
		if metric.GetGauge() != nil {
			return metric.GetGauge().GetValue(), nil
		}
		return metric.GetCounter().GetValue(), nil
	}
	return 0, fmt.Errorf("metric %q missing job=%s", name, job)
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
