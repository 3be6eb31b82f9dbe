package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors for reconciliation runs. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	registry    *prometheus.Registry
	runs        *prometheus.CounterVec
	changes     *prometheus.CounterVec
	oracleCalls *prometheus.CounterVec
	duration    prometheus.Histogram
	residual    prometheus.Histogram
}

// New builds the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proforma",
			Name:      "runs_total",
			Help:      "Engine runs by final balance state.",
		}, []string{"balanced"}),
		changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proforma",
			Name:      "changes_total",
			Help:      "Processed changes by outcome.",
		}, []string{"outcome"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "proforma",
			Name:      "oracle_calls_total",
			Help:      "Correction oracle invocations by result.",
		}, []string{"result"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proforma",
			Name:      "run_duration_seconds",
			Help:      "Wall time of one engine run.",
			Buckets:   []float64{0.001, 0.01, 0.1, 1, 10, 60, 300},
		}),
		residual: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "proforma",
			Name:      "failure_imbalance_abs",
			Help:      "Absolute imbalance recorded on failed changes, in currency units.",
			Buckets:   prometheus.ExponentialBuckets(1, 10, 10),
		}),
	}
	reg.MustRegister(m.runs, m.changes, m.oracleCalls, m.duration, m.residual)
	return m
}

// Registry returns the registry holding the collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveChange counts one processed change.
func (m *Metrics) ObserveChange(outcome string) {
	if m == nil {
		return
	}
	m.changes.WithLabelValues(outcome).Inc()
}

// ObserveFailure records the absolute imbalance of a failed change.
func (m *Metrics) ObserveFailure(absImbalance float64) {
	if m == nil {
		return
	}
	m.residual.Observe(absImbalance)
}

// ObserveOracle counts one oracle call; result is "ok", "error" or "timeout".
func (m *Metrics) ObserveOracle(result string) {
	if m == nil {
		return
	}
	m.oracleCalls.WithLabelValues(result).Inc()
}

// ObserveRun records one finished run.
func (m *Metrics) ObserveRun(start time.Time, balanced bool) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(fmt.Sprintf("%t", balanced)).Inc()
	m.duration.Observe(time.Since(start).Seconds())
}

// WriteTextfile dumps the collectors in the node-exporter textfile format.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
