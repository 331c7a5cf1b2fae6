// Package metrics provides Prometheus metrics for the scriptview daemon.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "scriptview"

// Metrics owns a private registry so tests and multiple daemons in one
// process do not collide. All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	reloads           *prometheus.CounterVec
	reloadDuration    prometheus.Histogram
	feedEntries       prometheus.Gauge
	transcriptEntries prometheus.Gauge
	feedPresent       prometheus.Gauge
	lastReplaced      prometheus.Gauge
	archived          prometheus.Counter
	streamClients     prometheus.Gauge
}

// New registers the scriptview collectors plus the standard Go and process
// collectors on a fresh registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		reloads: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "reloads_total",
				Help:      "Total number of feed reload cycles by outcome",
			},
			[]string{"outcome"},
		),
		reloadDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "reload_duration_seconds",
				Help:      "Duration of feed reload cycles in seconds",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 1},
			},
		),
		feedEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feed_entries",
				Help:      "Entries in the last successfully parsed feed snapshot",
			},
		),
		transcriptEntries: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "transcript_entries",
				Help:      "Entries in the current transcript after prefix collapsing",
			},
		),
		feedPresent: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "feed_present",
				Help:      "Feed presence at the last reload attempt (1 = present, 0 = missing)",
			},
		),
		lastReplaced: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_replace_timestamp_seconds",
				Help:      "Unix time of the last successful transcript replacement",
			},
		),
		archived: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "archived_entries_total",
				Help:      "Total number of settled entries written to the history archive",
			},
		),
		streamClients: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "stream_clients",
				Help:      "Connected transcript stream clients",
			},
		),
	}
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveReload records a reload cycle.
func (m *Metrics) ObserveReload(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.reloads.WithLabelValues(outcome).Inc()
	m.reloadDuration.Observe(duration.Seconds())
}

// SetTranscript records the raw and collapsed sizes of a successful reload.
func (m *Metrics) SetTranscript(feedEntries, transcriptEntries int, at time.Time) {
	if m == nil {
		return
	}
	m.feedEntries.Set(float64(feedEntries))
	m.transcriptEntries.Set(float64(transcriptEntries))
	m.lastReplaced.Set(float64(at.Unix()))
}

// SetTranscriptCleared records that readers emptied the transcript.
func (m *Metrics) SetTranscriptCleared() {
	if m == nil {
		return
	}
	m.transcriptEntries.Set(0)
}

// SetFeedPresent records feed presence.
func (m *Metrics) SetFeedPresent(present bool) {
	if m == nil {
		return
	}
	if present {
		m.feedPresent.Set(1)
		return
	}
	m.feedPresent.Set(0)
}

// AddArchived counts entries persisted to the history archive.
func (m *Metrics) AddArchived(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.archived.Add(float64(n))
}

// StreamClientConnected increments the stream client gauge.
func (m *Metrics) StreamClientConnected() {
	if m == nil {
		return
	}
	m.streamClients.Inc()
}

// StreamClientDisconnected decrements the stream client gauge.
func (m *Metrics) StreamClientDisconnected() {
	if m == nil {
		return
	}
	m.streamClients.Dec()
}
