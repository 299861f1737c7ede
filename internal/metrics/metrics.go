// Package metrics holds the Prometheus collectors exported by the server.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors so tests can use a private registry.
type Metrics struct {
	MessagesSent      prometheus.Counter
	MessagesRejected  *prometheus.CounterVec
	EventsPublished   *prometheus.CounterVec
	EventsDelivered   prometheus.Counter
	ClientsDropped    prometheus.Counter
	WSConnections     prometheus.Gauge
	ActiveSubscribers prometheus.Gauge

	registry *prometheus.Registry
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		MessagesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnet",
			Subsystem: "chat",
			Name:      "messages_sent_total",
			Help:      "Direct messages persisted.",
		}),
		MessagesRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devnet",
			Subsystem: "chat",
			Name:      "messages_rejected_total",
			Help:      "Direct messages rejected before persistence, by reason.",
		}, []string{"reason"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "devnet",
			Subsystem: "realtime",
			Name:      "events_published_total",
			Help:      "Realtime events handed to the broker, by result.",
		}, []string{"result"}),
		EventsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnet",
			Subsystem: "realtime",
			Name:      "events_delivered_total",
			Help:      "Realtime events queued to websocket clients.",
		}),
		ClientsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "devnet",
			Subsystem: "realtime",
			Name:      "clients_dropped_total",
			Help:      "Websocket clients disconnected because their send queue was full.",
		}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "devnet",
			Subsystem: "realtime",
			Name:      "ws_connections",
			Help:      "Open websocket connections.",
		}),
		ActiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "devnet",
			Subsystem: "realtime",
			Name:      "channel_subscriptions",
			Help:      "Active (client, channel) subscriptions.",
		}),
		registry: reg,
	}
	reg.MustRegister(
		m.MessagesSent,
		m.MessagesRejected,
		m.EventsPublished,
		m.EventsDelivered,
		m.ClientsDropped,
		m.WSConnections,
		m.ActiveSubscribers,
		collectors.NewGoCollector(),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
