package metrics

import (
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCommerceMetricsExportsCountersAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewCommerceMetrics(reg)

	metrics.ObservePurchaseDuration("online", 120*time.Millisecond)
	metrics.IncPurchase("online", "success")
	metrics.IncPurchase("online", "success")
	metrics.IncPaymentOutcome("paid")
	metrics.IncEscrowRelease()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "purchases_total", "method", "online"); err != nil {
		t.Fatalf("fetch purchases: %v", err)
	} else if got != 2 {
		t.Fatalf("expected purchases=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "payment_outcomes_total", "outcome", "paid"); err != nil {
		t.Fatalf("fetch outcomes: %v", err)
	} else if got != 1 {
		t.Fatalf("expected outcomes=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "purchase_duration_seconds", "method", "online"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected duration sum > 0, got %f", got)
	}

	escrow := findMetricFamily(mfs, "escrow_releases_total")
	if escrow == nil || len(escrow.GetMetric()) == 0 {
		t.Fatal("escrow_releases_total not exported")
	}
	if got := escrow.GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Fatalf("expected escrow releases=1, got %f", got)
	}
}

func TestCommerceMetricsNilRegistererIsNoop(t *testing.T) {
	metrics := NewCommerceMetrics(nil)
	metrics.ObservePurchaseDuration("cod", time.Second)
	metrics.IncPurchase("cod", "failed")
	metrics.IncPaymentOutcome("failed")
	metrics.IncEscrowRelease()
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
