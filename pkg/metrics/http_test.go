package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveRecordsCounterAndHistogram(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)

	m.Observe("POST", "/api/v1/orders", "201", 42*time.Millisecond)
	m.Observe("POST", "/api/v1/orders", "201", 10*time.Millisecond)
	m.Observe("GET", "", "200", time.Millisecond)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}

	byName := map[string]*dto.MetricFamily{}
	for _, fam := range families {
		byName[fam.GetName()] = fam
	}

	counter, ok := byName["http_requests_total"]
	if !ok {
		t.Fatal("missing http_requests_total family")
	}
	var ordersCount float64
	var unknownRoute bool
	for _, metric := range counter.GetMetric() {
		labels := map[string]string{}
		for _, pair := range metric.GetLabel() {
			labels[pair.GetName()] = pair.GetValue()
		}
		if labels["route"] == "/api/v1/orders" {
			ordersCount = metric.GetCounter().GetValue()
		}
		if labels["route"] == "unknown" {
			unknownRoute = true
		}
	}
	if ordersCount != 2 {
		t.Fatalf("expected 2 order requests, got %v", ordersCount)
	}
	if !unknownRoute {
		t.Fatal("expected empty route to normalize to unknown")
	}

	hist, ok := byName["http_request_duration_seconds"]
	if !ok {
		t.Fatal("missing duration family")
	}
	var samples uint64
	for _, metric := range hist.GetMetric() {
		samples += metric.GetHistogram().GetSampleCount()
	}
	if samples != 3 {
		t.Fatalf("expected 3 duration samples, got %d", samples)
	}
}

func TestNilRegistererIsSafe(t *testing.T) {
	m := NewHTTPMetrics(nil)
	m.Observe("GET", "/x", "200", time.Second)

	var nilMetrics *HTTPMetrics
	nilMetrics.Observe("GET", "/x", "200", time.Second)
}
