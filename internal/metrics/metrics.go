// Package metrics exposes harvest counters in the prometheus format.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/blockedby/channel-history/internal/collector"
)

const namespace = "channel_history"

// Metrics bundles Prometheus collectors for harvesting.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry         *prometheus.Registry
	recordsCollected *prometheus.CounterVec
	skippedEmpty     *prometheus.CounterVec
	channels         *prometheus.CounterVec
	floodWaits       prometheus.Counter
	floodWaitSeconds prometheus.Counter
	requests         *prometheus.CounterVec
	runDuration      prometheus.Histogram
	sinkErrors       *prometheus.CounterVec
	wsClients        prometheus.Gauge
}

// New creates the collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		recordsCollected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "records_collected_total",
			Help:      "Message records collected",
		}, []string{"channel"}),
		skippedEmpty: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_skipped_empty_total",
			Help:      "Messages skipped because they carry no text",
		}, []string{"channel"}),
		channels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "channels_total",
			Help:      "Channels processed by outcome",
		}, []string{"status"}),
		floodWaits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_waits_total",
			Help:      "FLOOD_WAIT replies received",
		}),
		floodWaitSeconds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "flood_wait_seconds_total",
			Help:      "Seconds spent paused on FLOOD_WAIT",
		}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegram_requests_total",
			Help:      "Telegram API requests sent",
		}, []string{"method"}),
		runDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Duration of harvest runs",
			Buckets:   []float64{10, 30, 60, 300, 900, 1800, 3600, 7200},
		}),
		sinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sink_errors_total",
			Help:      "Failed sink writes",
		}, []string{"sink"}),
		wsClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ws_clients",
			Help:      "Current connected WebSocket clients",
		}),
	}

	registry.MustRegister(
		m.recordsCollected,
		m.skippedEmpty,
		m.channels,
		m.floodWaits,
		m.floodWaitSeconds,
		m.requests,
		m.runDuration,
		m.sinkErrors,
		m.wsClients,
	)

	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveChannel records the outcome of one channel.
func (m *Metrics) ObserveChannel(r collector.ChannelReport) {
	if m == nil {
		return
	}
	m.recordsCollected.WithLabelValues(r.Channel).Add(float64(r.Collected))
	m.skippedEmpty.WithLabelValues(r.Channel).Add(float64(r.SkippedEmpty))
	m.channels.WithLabelValues(string(r.Status)).Inc()
}

// ObserveFloodWait counts a flood wait and its length.
func (m *Metrics) ObserveFloodWait(wait time.Duration) {
	if m == nil {
		return
	}
	m.floodWaits.Inc()
	m.floodWaitSeconds.Add(wait.Seconds())
}

// IncRequests counts an outgoing API request.
func (m *Metrics) IncRequests(method string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method).Inc()
}

// ObserveRun records the duration of a finished run.
func (m *Metrics) ObserveRun(res *collector.RunResult) {
	if m == nil || res == nil || res.FinishedAt.IsZero() {
		return
	}
	m.runDuration.Observe(res.FinishedAt.Sub(res.StartedAt).Seconds())
}

// IncSinkErrors counts a failed sink write.
func (m *Metrics) IncSinkErrors(sink string) {
	if m == nil {
		return
	}
	m.sinkErrors.WithLabelValues(sink).Inc()
}

// IncWSClients adjusts the WebSocket client gauge by delta.
func (m *Metrics) IncWSClients(delta float64) {
	if m == nil {
		return
	}
	m.wsClients.Add(delta)
}
