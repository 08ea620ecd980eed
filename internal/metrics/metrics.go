// Package metrics exposes Prometheus collectors for connections, presence
// and event delivery. A nil *Metrics is valid and records nothing.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gochat"

// Metrics groups the service collectors. The zero value is not usable; build
// one with New or pass nil to record nothing.
type Metrics struct {
	connections prometheus.Gauge
	onlineUsers prometheus.Gauge
	persisted   *prometheus.CounterVec
	delivered   *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	ignored     *prometheus.CounterVec
}

// New builds the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connections",
			Help:      "Number of live WebSocket connections.",
		}),
		onlineUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "online_users",
			Help:      "Number of usernames with at least one live connection.",
		}),
		persisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_persisted_total",
			Help:      "Messages written to the message store.",
		}, []string{"kind"}),
		delivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_delivered_total",
			Help:      "Events handed to a live connection.",
		}, []string{"event"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "deliveries_dropped_total",
			Help:      "Events dropped because the target connection was gone or saturated.",
		}, []string{"event"}),
		ignored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_ignored_total",
			Help:      "Client actions absorbed as no-ops.",
		}, []string{"action", "reason"}),
	}
	reg.MustRegister(m.connections, m.onlineUsers, m.persisted, m.delivered, m.dropped, m.ignored)
	return m
}

// ConnectionOpened counts a new live connection.
func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.connections.Inc()
}

// ConnectionClosed releases a live connection.
func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.connections.Dec()
}

// SetOnlineUsers records the current roster size.
func (m *Metrics) SetOnlineUsers(n int) {
	if m == nil {
		return
	}
	m.onlineUsers.Set(float64(n))
}

// MessagePersisted counts a stored message; private selects the kind label.
func (m *Metrics) MessagePersisted(private bool) {
	if m == nil {
		return
	}
	kind := "public"
	if private {
		kind = "private"
	}
	m.persisted.WithLabelValues(kind).Inc()
}

// EventDelivered counts an event handed to a connection.
func (m *Metrics) EventDelivered(event string) {
	if m == nil {
		return
	}
	m.delivered.WithLabelValues(event).Inc()
}

// DeliveryDropped counts an event whose recipient was gone or too slow.
func (m *Metrics) DeliveryDropped(event string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(event).Inc()
}

// ActionIgnored counts an action absorbed without effect.
func (m *Metrics) ActionIgnored(action, reason string) {
	if m == nil {
		return
	}
	m.ignored.WithLabelValues(action, reason).Inc()
}
