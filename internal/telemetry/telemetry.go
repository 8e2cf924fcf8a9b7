// Package telemetry exposes Prometheus counters for the publication engine.
//
// A nil *Metrics is valid and records nothing, so components can be built without metrics in tests.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ytpub"

// Metrics owns a private registry and the collectors registered on it.
type Metrics struct {
	registry      *prometheus.Registry
	transitions   *prometheus.CounterVec
	remoteCalls   *prometheus.CounterVec
	remoteLatency *prometheus.HistogramVec
	playlistOps   *prometheus.CounterVec
	batchAssets   *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// New creates a Metrics with process and Go runtime collectors included.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_transitions_total",
			Help:      "Publication status transitions committed.",
		}, []string{"from", "to"}),
		remoteCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "remote_calls_total",
			Help:      "Remote API calls by operation and result.",
		}, []string{"op", "result"}),
		remoteLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "remote_call_duration_seconds",
			Help:      "Remote API call latency including retries.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
		}, []string{"op"}),
		playlistOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playlist_operations_total",
			Help:      "Playlist membership mutations issued.",
		}, []string{"op"}),
		batchAssets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_assets_total",
			Help:      "Assets processed by batch passes.",
		}, []string{"pass", "result"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications sent by cause and result.",
		}, []string{"cause", "result"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.transitions,
		m.remoteCalls,
		m.remoteLatency,
		m.playlistOps,
		m.batchAssets,
		m.notifications,
	)

	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Transition counts a committed status change.
func (m *Metrics) Transition(from, to string) {
	if m == nil {
		return
	}
	m.transitions.WithLabelValues(from, to).Inc()
}

// RemoteCall records the outcome and latency of one remote operation.
func (m *Metrics) RemoteCall(op string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	m.remoteCalls.WithLabelValues(op, result(err)).Inc()
	m.remoteLatency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// PlaylistOp counts a playlist mutation: "create", "insert" or "remove".
func (m *Metrics) PlaylistOp(op string) {
	if m == nil {
		return
	}
	m.playlistOps.WithLabelValues(op).Inc()
}

// BatchAsset counts one asset handled by a batch pass.
func (m *Metrics) BatchAsset(pass string, err error) {
	if m == nil {
		return
	}
	m.batchAssets.WithLabelValues(pass, result(err)).Inc()
}

// Notification counts a notification delivery attempt.
func (m *Metrics) Notification(cause string, err error) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(cause, result(err)).Inc()
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
