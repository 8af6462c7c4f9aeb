// Package metrics provides Prometheus metrics export for the chat pipeline.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Exporter exports pipeline metrics in Prometheus format.
type Exporter struct {
	registry *prometheus.Registry

	turns           *prometheus.CounterVec
	turnLatency     *prometheus.HistogramVec
	modalities      *prometheus.CounterVec
	providerCalls   *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
}

// Config configures the exporter.
type Config struct {
	// Registry to use (if nil, creates a new one)
	Registry *prometheus.Registry

	// Buckets for latency histograms (in seconds)
	LatencyBuckets []float64
}

// DefaultConfig returns default exporter configuration.
func DefaultConfig() Config {
	return Config{
		LatencyBuckets: []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
	}
}

// NewExporter creates a new Prometheus metrics exporter.
func NewExporter(cfg Config) *Exporter {
	if len(cfg.LatencyBuckets) == 0 {
		cfg.LatencyBuckets = DefaultConfig().LatencyBuckets
	}

	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	e := &Exporter{registry: registry}

	e.turns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "pipeline",
			Name:      "turns_total",
			Help:      "Total number of processed conversation turns",
		},
		[]string{"platform", "status"},
	)

	e.turnLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "pipeline",
			Name:      "turn_latency_seconds",
			Help:      "End-to-end turn latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"platform"},
	)

	e.modalities = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "pipeline",
			Name:      "modalities_total",
			Help:      "Reply modality outcomes per turn",
		},
		[]string{"modality"},
	)

	e.providerCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "aura",
			Subsystem: "provider",
			Name:      "calls_total",
			Help:      "Remote provider calls by operation and status",
		},
		[]string{"operation", "status"},
	)

	e.providerLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "aura",
			Subsystem: "provider",
			Name:      "call_latency_seconds",
			Help:      "Remote provider call latency in seconds",
			Buckets:   cfg.LatencyBuckets,
		},
		[]string{"operation"},
	)

	registry.MustRegister(e.turns, e.turnLatency, e.modalities, e.providerCalls, e.providerLatency)
	return e
}

// RecordTurn records one processed turn.
func (e *Exporter) RecordTurn(platform, status string, duration time.Duration) {
	e.turns.WithLabelValues(platform, status).Inc()
	e.turnLatency.WithLabelValues(platform).Observe(duration.Seconds())
}

// RecordModality records the modality outcome of a turn.
func (e *Exporter) RecordModality(modality string) {
	e.modalities.WithLabelValues(modality).Inc()
}

// RecordProviderCall records one remote provider call.
func (e *Exporter) RecordProviderCall(operation, status string, duration time.Duration) {
	e.providerCalls.WithLabelValues(operation, status).Inc()
	e.providerLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
