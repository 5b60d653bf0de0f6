// Package metrics exposes Prometheus collectors for the coordinator.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ActiveConnections is the number of currently open websocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "techstroke_active_connections",
		Help: "Number of open websocket connections.",
	})

	// EventsTotal counts processed inbound events by event name.
	EventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techstroke_events_total",
		Help: "Inbound events processed, by event name.",
	}, []string{"event"})

	// DroppedFramesTotal counts inbound frames dropped as protocol errors.
	DroppedFramesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techstroke_dropped_frames_total",
		Help: "Inbound frames dropped due to malformed payloads.",
	})

	// BroadcastsTotal counts frames fanned out to room members.
	BroadcastsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "techstroke_broadcasts_total",
		Help: "Frames delivered to room members.",
	})

	// ExecutionsTotal counts sandbox runs by outcome.
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "techstroke_executions_total",
		Help: "Sandbox execution requests, by outcome.",
	}, []string{"status"})
)

// Handler exposes Prometheus metrics at /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
