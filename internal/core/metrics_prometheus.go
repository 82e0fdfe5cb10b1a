package core

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusMetricsRecorder exports service metrics through a Prometheus registry.
type PrometheusMetricsRecorder struct {
	duration *prometheus.HistogramVec
	total    *prometheus.CounterVec
	worlds   prometheus.Counter
}

// NewPrometheusMetricsRecorder registers the heredity collectors with reg.
// A nil reg uses prometheus.DefaultRegisterer.
func NewPrometheusMetricsRecorder(reg prometheus.Registerer) (*PrometheusMetricsRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	r := &PrometheusMetricsRecorder{
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "heredity",
			Name:      "operation_duration_seconds",
			Help:      "Latency of heredity service operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 10),
		}, []string{"operation"}),
		total: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "heredity",
			Name:      "operations_total",
			Help:      "Heredity service operations by outcome.",
		}, []string{"operation", "status"}),
		worlds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "heredity",
			Name:      "inference_worlds_total",
			Help:      "Joint probability evaluations performed by inference runs.",
		}),
	}
	for _, c := range []prometheus.Collector{r.duration, r.total, r.worlds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Observe implements MetricsRecorder.
func (r *PrometheusMetricsRecorder) Observe(_ context.Context, operation string, success bool, duration time.Duration) {
	r.duration.WithLabelValues(operation).Observe(duration.Seconds())
	r.total.WithLabelValues(operation, statusLabel(success)).Inc()
}

// ObserveInference implements InferenceRecorder.
func (r *PrometheusMetricsRecorder) ObserveInference(_ context.Context, worlds int64) {
	r.worlds.Add(float64(worlds))
}
