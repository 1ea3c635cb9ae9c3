package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestGetMetricValue(t *testing.T) {
	t.Run("counter", func(t *testing.T) {
		labels := map[string]string{"kind": "metrics_test"}
		before, err := GetMetricValue(MalformedRecords, labels)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		MalformedRecords.With(labels).Inc()
		after, err := GetMetricValue(MalformedRecords, labels)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if after-before != 1 {
			t.Errorf("expected counter to grow by 1, got %v -> %v", before, after)
		}
		if got := testutil.ToFloat64(MalformedRecords.WithLabelValues("metrics_test")); got != after {
			t.Errorf("expected testutil to agree, got %v want %v", got, after)
		}
	})

	t.Run("gauge", func(t *testing.T) {
		labels := map[string]string{"route_id": "UP-NW", "direction": "Outbound"}
		UpcomingDepartures.With(labels).Set(4)
		got, err := GetMetricValue(UpcomingDepartures, labels)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 4 {
			t.Errorf("expected 4, got %v", got)
		}
	})

	t.Run("histogram sample count", func(t *testing.T) {
		labels := map[string]string{"endpoint": "/metrics_test", "method": "GET", "status": "200"}
		RemoteFetchDuration.With(labels).Observe(0.2)
		RemoteFetchDuration.With(labels).Observe(0.4)
		got, err := GetMetricValue(RemoteFetchDuration, labels)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != 2 {
			t.Errorf("expected 2 samples, got %v", got)
		}
	})
}
