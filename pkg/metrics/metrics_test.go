package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestProtocolMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewProtocolMetrics(reg)
	metrics.IncProcessed("MPA_BID", "applied")
	metrics.IncProcessed("MPA_BID", "applied")
	metrics.IncRejected("MPA_LOCK", "state_conflict")
	metrics.SetPendingDepth(3)
	metrics.IncPublish("ok")
	metrics.ObserveProcessDuration("MPA_BID", 120*time.Millisecond)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "messages_processed_total", "kind", "MPA_BID"); err != nil {
		t.Fatalf("fetch processed: %v", err)
	} else if got != 2 {
		t.Fatalf("expected processed=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "messages_rejected_total", "reason", "state_conflict"); err != nil {
		t.Fatalf("fetch rejected: %v", err)
	} else if got != 1 {
		t.Fatalf("expected rejected=1, got %f", got)
	}

	if got, err := fetchGaugeValue(mfs, "pending_messages_depth"); err != nil {
		t.Fatalf("fetch pending depth: %v", err)
	} else if got != 3 {
		t.Fatalf("expected depth=3, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "outbound_publish_attempts_total", "result", "ok"); err != nil {
		t.Fatalf("fetch publish: %v", err)
	} else if got != 1 {
		t.Fatalf("expected publish=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "message_process_seconds", "kind", "MPA_BID"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}
}

func TestProtocolMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewProtocolMetrics(nil)
	metrics.IncProcessed("MPA_BID", "applied")
	metrics.IncRejected("MPA_BID", "bad")
	metrics.SetPendingDepth(1)
	metrics.IncPublish("ok")
	metrics.ObserveProcessDuration("MPA_BID", time.Millisecond)
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

func fetchGaugeValue(mfs []*dto.MetricFamily, name string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		return metric.GetGauge().GetValue(), nil
	}
	return 0, fmt.Errorf("metric %q has no samples", name)
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
