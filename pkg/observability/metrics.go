// Package observability exposes Prometheus metrics for the realtime
// layer.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	registry *prometheus.Registry

	// Realtime metrics
	ActiveConnections prometheus.Gauge
	ActiveRooms       prometheus.Gauge
	EventsReceived    *prometheus.CounterVec
	BroadcastsSent    prometheus.Counter
	BroadcastsDropped prometheus.Counter
	AuthFailures      prometheus.Counter
	StorageErrors     prometheus.Counter
}

// NewCollector creates a new metrics collector with the given namespace.
// Each collector owns its registry so tests can construct them freely.
func NewCollector(namespace string) *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		registry: registry,
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of live WebSocket connections",
		}),
		ActiveRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_rooms",
			Help:      "Number of board rooms with at least one member",
		}),
		EventsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_received_total",
			Help:      "Inbound client events by type",
		}, []string{"type"}),
		BroadcastsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_sent_total",
			Help:      "Frames fanned out to room members",
		}),
		BroadcastsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "broadcasts_dropped_total",
			Help:      "Frames dropped due to slow or closed clients",
		}),
		AuthFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Connection authentication failures",
		}),
		StorageErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "storage_errors_total",
			Help:      "Persistence call failures surfaced to clients",
		}),
	}

	registry.MustRegister(
		c.ActiveConnections,
		c.ActiveRooms,
		c.EventsReceived,
		c.BroadcastsSent,
		c.BroadcastsDropped,
		c.AuthFailures,
		c.StorageErrors,
	)
	return c
}

// Handler returns an HTTP handler serving the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
