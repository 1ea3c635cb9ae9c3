package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// GetMetricValue retrieves the current value of a gauge, counter or the
// sample count of a histogram for the given labels. Returns an error if the
// metric cannot be written.
func GetMetricValue(metric prometheus.Collector, labels map[string]string) (float64, error) {
	var c prometheus.Collector
	switch m := metric.(type) {
	case *prometheus.GaugeVec:
		c = m.With(labels)
	case *prometheus.CounterVec:
		c = m.With(labels)
	case *prometheus.HistogramVec:
		c = m.With(labels).(prometheus.Histogram)
	default:
		c = metric
	}

	ch := make(chan prometheus.Metric, 1)
	c.Collect(ch)
	m := <-ch

	pb := &dto.Metric{}
	if err := m.Write(pb); err != nil {
		return 0, err
	}

	switch {
	case pb.Gauge != nil:
		return pb.Gauge.GetValue(), nil
	case pb.Counter != nil:
		return pb.Counter.GetValue(), nil
	case pb.Histogram != nil:
		return float64(pb.Histogram.GetSampleCount()), nil
	}
	return 0, nil
}
