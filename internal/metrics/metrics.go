// Package metrics implements the metrics collector (C7). Grounded on the
// sibling controller submodule's pkg/metrics package — GaugeVec/CounterVec
// construction plus Record* helper methods, MustRegister at construction
// time — adapted to notify-push's own registry (rather than
// controller-runtime's shared one, since that dependency has no home here)
// and its own counters: live connections per user and messages sent.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector holds the process's Prometheus metrics and its own registry.
type Collector struct {
	registry *prometheus.Registry

	ActiveConnections *prometheus.GaugeVec
	MessagesSent      *prometheus.CounterVec
	MessagesDropped   *prometheus.CounterVec
	BusReconnects     prometheus.Counter
}

// New constructs a Collector and registers all of its metrics.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ActiveConnections: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "notify_push_active_connections",
				Help: "Number of currently connected WebSocket sessions by user.",
			},
			[]string{"user"},
		),
		MessagesSent: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_push_messages_sent_total",
				Help: "Total number of notification frames written to sessions, by kind.",
			},
			[]string{"kind"},
		),
		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "notify_push_messages_dropped_total",
				Help: "Total number of notifications dropped due to a full fan-out buffer, by kind.",
			},
			[]string{"kind"},
		),
		BusReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "notify_push_bus_reconnects_total",
				Help: "Total number of times the bus subscriber has had to reconnect.",
			},
		),
	}

	c.registry.MustRegister(
		c.ActiveConnections,
		c.MessagesSent,
		c.MessagesDropped,
		c.BusReconnects,
	)
	return c
}

// RecordConnect increments the active-connection gauge for user.
func (c *Collector) RecordConnect(user string) {
	c.ActiveConnections.WithLabelValues(user).Inc()
}

// RecordDisconnect decrements the active-connection gauge for user.
func (c *Collector) RecordDisconnect(user string) {
	c.ActiveConnections.WithLabelValues(user).Dec()
}

// RecordSent increments the sent-message counter for kind.
func (c *Collector) RecordSent(kind string) {
	c.MessagesSent.WithLabelValues(kind).Inc()
}

// RecordDropped increments the dropped-message counter for kind.
func (c *Collector) RecordDropped(kind string) {
	c.MessagesDropped.WithLabelValues(kind).Inc()
}

// RecordBusReconnect increments the bus-reconnect counter.
func (c *Collector) RecordBusReconnect() {
	c.BusReconnects.Inc()
}

// Handler returns the HTTP handler that serves this collector's metrics in
// Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
