// Package metrics exposes Prometheus instrumentation for the relationship engine.
package metrics

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/common/expfmt"
)

// Metrics provides observability for graph mutations.
type Metrics struct {
	// Operation outcomes by operation and outcome label
	Operations *prometheus.CounterVec

	// Operation latency including transaction wait
	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance registered on reg. A nil reg registers on
// the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kin_graph_operations_total",
			Help: "Total graph mutations by operation and outcome",
		}, []string{"op", "outcome"}), // outcome: "ok", "not_found", "conflict", "invalid", "cancelled", "error"

		OperationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kin_graph_operation_duration_seconds",
			Help:    "Duration of graph mutations including transaction wait",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 5},
		}, []string{"op"}),
	}
}

// ObserveOperation records the outcome and duration of one mutation.
func (m *Metrics) ObserveOperation(op, outcome string, d time.Duration) {
	if m != nil {
		m.Operations.WithLabelValues(op, outcome).Inc()
		m.OperationLatency.WithLabelValues(op).Observe(d.Seconds())
	}
}

// WriteText gathers every metric family from g and writes it to w in the
// Prometheus text exposition format.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("gathering metrics: %w", err)
	}
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("writing metric %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
