// Package metrics provides Prometheus metrics for note generation runs.
//
// calnotes is a command line tool, not a long running service, so instead of
// serving /metrics the registry is written to a node_exporter textfile after
// each run.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for NotesTotal.
const (
	OutcomeCreated = "created"
	OutcomeSkipped = "skipped"
	OutcomeFailed  = "failed"
)

// Option applies a configuration option to the Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry sets the registry metrics are registered with and gathered from.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// Manager owns the metrics of one process.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	notes         *prometheus.CounterVec
	eventsFetched *prometheus.CounterVec
	runDuration   prometheus.Histogram
	runErrors     prometheus.Counter
	lastRun       prometheus.Gauge
}

// NewManager creates a manager with its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{namespace: "calnotes"}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	factory := promauto.With(m.registry)
	m.notes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "notes_total",
		Help:      "Notes processed, by outcome.",
	}, []string{"outcome"})
	m.eventsFetched = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "events_fetched_total",
		Help:      "Raw events fetched from calendar sources.",
	}, []string{"calendar"})
	m.runDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Name:      "run_duration_seconds",
		Help:      "Duration of generation runs.",
		Buckets:   prometheus.DefBuckets,
	})
	m.runErrors = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Name:      "run_errors_total",
		Help:      "Generation runs that failed before writing.",
	})
	m.lastRun = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time of the last finished run.",
	})
	return m
}

// RecordNote counts one note outcome.
func (m *Manager) RecordNote(outcome string) {
	m.notes.WithLabelValues(outcome).Inc()
}

// RecordEventsFetched counts raw events fetched from a calendar.
func (m *Manager) RecordEventsFetched(calendarID string, n int) {
	m.eventsFetched.WithLabelValues(calendarID).Add(float64(n))
}

// RecordRun observes a finished run.
func (m *Manager) RecordRun(started time.Time, err error) {
	m.runDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		m.runErrors.Inc()
	}
	m.lastRun.SetToCurrentTime()
}

// Registry returns the underlying registry.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// WriteTextfile writes all metrics to path in the text exposition format.
func (m *Manager) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics textfile: %w", err)
	}
	return nil
}
