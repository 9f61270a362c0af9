// Package metrics exposes the runner and HTTP facade's Prometheus
// instrumentation: per-stage pipeline latency, the queued-entry backlog,
// and transcription retry counts.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector registered against a single registry, so a
// test can create an isolated instance instead of sharing the process-wide
// default registry.
type Metrics struct {
	registry *prometheus.Registry

	StageDuration        *prometheus.HistogramVec
	QueueDepth           prometheus.Gauge
	TranscriptionRetries prometheus.Counter
	EntriesTotal         *prometheus.CounterVec
	RunTicks             prometheus.Counter
}

// New registers a fresh set of collectors against registry. A nil registry
// gets its own prometheus.NewRegistry(), so callers that don't care about
// sharing state with other collectors can pass nil.
func New(registry *prometheus.Registry) (*Metrics, error) {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "journal_stage_duration_seconds",
			Help:    "Time spent in each pipeline stage per run.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "journal_queue_depth",
			Help: "Number of entries currently queued or in an active stage.",
		}),
		TranscriptionRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_transcription_retries_total",
			Help: "Number of times whisper transcription was retried after a failure.",
		}),
		EntriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "journal_entries_total",
			Help: "Entries reaching a terminal stage, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		RunTicks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "journal_runner_ticks_total",
			Help: "Number of runner tick iterations executed.",
		}),
	}

	collectors := []prometheus.Collector{
		m.StageDuration, m.QueueDepth, m.TranscriptionRetries, m.EntriesTotal, m.RunTicks,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Handler returns the /metrics HTTP handler for this Metrics' registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStageDuration records how long a pipeline stage took.
func (m *Metrics) RecordStageDuration(stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// SetQueueDepth reports the current count of queued-or-active entries.
func (m *Metrics) SetQueueDepth(n int) {
	m.QueueDepth.Set(float64(n))
}

// IncTranscriptionRetry records one whisper retry attempt.
func (m *Metrics) IncTranscriptionRetry() {
	m.TranscriptionRetries.Inc()
}

// RecordEntryOutcome records an entry reaching a terminal stage.
func (m *Metrics) RecordEntryOutcome(kind, outcome string) {
	m.EntriesTotal.WithLabelValues(kind, outcome).Inc()
}

// IncRunTick records one runner tick iteration.
func (m *Metrics) IncRunTick() {
	m.RunTicks.Inc()
}
