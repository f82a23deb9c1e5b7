package backend

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	MetricOperationsTotal  = "operations_total"
	MetricRetriesTotal     = "write_retries_total"
	MetricOperationSeconds = "operation_duration_seconds"
)

// Metrics holds the backend's prometheus collectors.
type Metrics struct {
	outcomes *prometheus.CounterVec
	retries  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates unregistered collectors. Call Register to expose them.
func NewMetrics() *Metrics {
	return &Metrics{
		outcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meadowlark",
				Name:      MetricOperationsTotal,
				Help:      "Completed backend operations by response code.",
			},
			[]string{"operation", "response"},
		),
		retries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "meadowlark",
				Name:      MetricRetriesTotal,
				Help:      "Retries of a final write after a transient write conflict.",
			},
			[]string{"operation"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "meadowlark",
				Name:      MetricOperationSeconds,
				Help:      "Backend operation latency.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// Register adds the collectors to reg.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range []prometheus.Collector{m.outcomes, m.retries, m.duration} {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// Outcomes returns the per-response counter, labelled operation and response.
func (m *Metrics) Outcomes() *prometheus.CounterVec {
	return m.outcomes
}

// Retries returns the retry counter, labelled operation.
func (m *Metrics) Retries() *prometheus.CounterVec {
	return m.retries
}

func (m *Metrics) observe(operation string, response ResponseCode, start time.Time) {
	m.outcomes.WithLabelValues(operation, string(response)).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
