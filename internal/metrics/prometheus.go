package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// LLM calls take tens of seconds to minutes.
var defaultLLMBuckets = []float64{1, 5, 10, 30, 60, 120, 300, 600}

// Manager owns the pipeline metrics. A nil *Manager is valid and records
// nothing.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	filesProcessed *prometheus.CounterVec
	llmAttempts    prometheus.Counter
	llmFailures    prometheus.Counter
	llmLatency     prometheus.Histogram
	lastRunUnix    prometheus.Gauge
	lastRunExit    prometheus.Gauge
	calendarEvents prometheus.Gauge
	calendarDegr   prometheus.Gauge
}

// NewManager creates a Manager with its metrics registered.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "lecnote",
		histogramBuckets: defaultLLMBuckets,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.filesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "files_total",
		Help:      "Transcript files handled, by outcome (done, skipped, aborted)",
	}, []string{"outcome"})

	m.llmAttempts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "llm",
		Name:      "attempts_total",
		Help:      "Total number of model calls",
	})

	m.llmFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "llm",
		Name:      "failures_total",
		Help:      "Model calls that errored or returned empty text",
	})

	m.llmLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "llm",
		Name:      "latency_seconds",
		Help:      "Model call latency in seconds",
		Buckets:   m.histogramBuckets,
	})

	m.lastRunUnix = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last batch finished",
	})

	m.lastRunExit = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "pipeline",
		Name:      "last_run_exit_code",
		Help:      "Exit code of the last batch (0 ok, 2 generation, 3 persistence, 4 archival)",
	})

	m.calendarEvents = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "calendar",
		Name:      "events",
		Help:      "Expanded calendar occurrences in the current window",
	})

	m.calendarDegr = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "calendar",
		Name:      "degraded",
		Help:      "1 when recurrence expansion failed and only explicit events are indexed",
	})
}

// RecordFile counts one file outcome.
func (m *Manager) RecordFile(outcome string) {
	if m == nil {
		return
	}
	m.filesProcessed.WithLabelValues(outcome).Inc()
}

// RecordLLMAttempt records one model call; err is nil on success.
func (m *Manager) RecordLLMAttempt(elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.llmAttempts.Inc()
	m.llmLatency.Observe(elapsed.Seconds())
	if err != nil {
		m.llmFailures.Inc()
	}
}

// RecordRun records the end of a batch.
func (m *Manager) RecordRun(finished time.Time, exitCode int) {
	if m == nil {
		return
	}
	m.lastRunUnix.Set(float64(finished.Unix()))
	m.lastRunExit.Set(float64(exitCode))
}

// SetCalendar records the size and mode of the calendar index.
func (m *Manager) SetCalendar(events int, degraded bool) {
	if m == nil {
		return
	}
	m.calendarEvents.Set(float64(events))
	if degraded {
		m.calendarDegr.Set(1)
	} else {
		m.calendarDegr.Set(0)
	}
}

// Registry returns the registry backing this Manager.
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// WriteTextfile writes the current metrics for node_exporter's textfile
// collector. It is a no-op for an empty path or a nil Manager.
func (m *Manager) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("metrics: write textfile %s: %w", path, err)
	}
	return nil
}
