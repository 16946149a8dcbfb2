package provisioning

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/imamik/azhpc/internal/resource"
)

// Ensure outcomes.
const (
	OutcomeCreated = "created"
	OutcomeExists  = "exists"
	OutcomeFailed  = "failed"
)

// Metrics holds the counters of a single run. Each run owns its registry so
// repeated runs in one process never collide. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ensureTotal  *prometheus.CounterVec
	stepTotal    *prometheus.CounterVec
	retryTotal   *prometheus.CounterVec
	stepDuration *prometheus.HistogramVec
	remediations *prometheus.CounterVec
}

// NewMetrics creates and registers the run metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ensureTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "azhpc",
				Name:      "ensure_total",
				Help:      "Total number of ensure calls by resource kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		stepTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "azhpc",
				Subsystem: "pipeline",
				Name:      "steps_total",
				Help:      "Total number of pipeline steps by step and final state",
			},
			[]string{"step", "state"},
		),
		retryTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "azhpc",
				Name:      "retries_total",
				Help:      "Total number of retries by policy class",
			},
			[]string{"policy"},
		),
		stepDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "azhpc",
				Subsystem: "pipeline",
				Name:      "step_duration_seconds",
				Help:      "Duration of pipeline steps in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.5, 2, 10), // 500ms to ~4min
			},
			[]string{"step"},
		),
		remediations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "azhpc",
				Name:      "remediations_total",
				Help:      "Total number of post-deployment remediations by choice and result",
			},
			[]string{"choice", "result"},
		),
	}
	m.registry.MustRegister(m.ensureTotal, m.stepTotal, m.retryTotal, m.stepDuration, m.remediations)
	return m
}

// Registry returns the registry holding the run metrics.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// RecordEnsure counts an ensure call.
func (m *Metrics) RecordEnsure(kind resource.Kind, outcome string) {
	if m == nil {
		return
	}
	m.ensureTotal.WithLabelValues(string(kind), outcome).Inc()
}

// RecordStep counts a finished step.
func (m *Metrics) RecordStep(step string, state resource.State, seconds float64) {
	if m == nil {
		return
	}
	m.stepTotal.WithLabelValues(step, string(state)).Inc()
	m.stepDuration.WithLabelValues(step).Observe(seconds)
}

// RecordRetry counts a retry of the given policy.
func (m *Metrics) RecordRetry(policy string) {
	if m == nil {
		return
	}
	m.retryTotal.WithLabelValues(policy).Inc()
}

// RecordRemediation counts a remediation decision. An empty choice counts as skipped.
func (m *Metrics) RecordRemediation(choice, result string) {
	if m == nil {
		return
	}
	if choice == "" {
		choice = "none"
	}
	m.remediations.WithLabelValues(choice, result).Inc()
}

// WriteTextfile writes the metrics in the text exposition format, for the
// node exporter textfile collector.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	return prometheus.WriteToTextfile(path, m.registry)
}
