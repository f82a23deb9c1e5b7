package cli

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Ed-Fi-Exchange-OSS/Meadowlark-sub000/internal/backend"
)

// metricsSink collects backend metrics for one command and writes them to a
// file in the Prometheus text exposition format when flushed.
type metricsSink struct {
	path     string
	registry *prometheus.Registry
	metrics  *backend.Metrics
	logger   *slog.Logger
}

// openMetrics returns nil when --metrics is not set.
func (o *RootOptions) openMetrics(logger *slog.Logger) (*metricsSink, error) {
	if o.MetricsFile == "" {
		return nil, nil
	}
	m := backend.NewMetrics()
	reg := prometheus.NewRegistry()
	if err := m.Register(reg); err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to register metrics", err)
	}
	return &metricsSink{path: o.MetricsFile, registry: reg, metrics: m, logger: logger}, nil
}

// backendMetrics is nil-safe so callers can pass it straight to
// backend.WithMetrics.
func (s *metricsSink) backendMetrics() *backend.Metrics {
	if s == nil {
		return nil
	}
	return s.metrics
}

// flush writes the gathered families. Failures are logged; the command
// result is already decided.
func (s *metricsSink) flush() {
	if s == nil {
		return
	}
	if err := prometheus.WriteToTextfile(s.path, s.registry); err != nil {
		s.logger.Error("error writing metrics", "path", s.path, "error", err)
		return
	}
	s.logger.Debug("wrote metrics", "path", s.path)
}
