// Package metrics exposes prometheus instrumentation for sync sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the session collectors. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	messagesIn  *prometheus.CounterVec
	messagesOut *prometheus.CounterVec
	dropped     *prometheus.CounterVec
	reconnects  prometheus.Counter
	connected   prometheus.Gauge
	bookmarks   prometheus.Gauge
	seeks       *prometheus.CounterVec
}

// New registers the session collectors with reg. A nil reg uses a private
// registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	m := &Metrics{
		messagesIn: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varsync_messages_received_total",
				Help: "Total number of envelopes received from the archive peer",
			},
			[]string{"route"},
		),
		messagesOut: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varsync_messages_sent_total",
				Help: "Total number of envelopes sent to the archive peer",
			},
			[]string{"route"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varsync_messages_dropped_total",
				Help: "Total number of inbound messages dropped",
			},
			[]string{"reason"},
		),
		reconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "varsync_reconnect_attempts_total",
				Help: "Total number of reconnect attempts",
			},
		),
		connected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "varsync_connected",
				Help: "1 while the session is connected to the archive peer",
			},
		),
		bookmarks: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "varsync_bookmarks",
				Help: "Number of bookmarks held for the active media",
			},
		),
		seeks: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "varsync_skip_seeks_total",
				Help: "Total number of skip navigation seeks by outcome",
			},
			[]string{"outcome"},
		),
	}
	reg.MustRegister(m.messagesIn, m.messagesOut, m.dropped, m.reconnects, m.connected, m.bookmarks, m.seeks)
	return m
}

// Received counts an inbound envelope.
func (m *Metrics) Received(route string) {
	if m == nil {
		return
	}
	m.messagesIn.WithLabelValues(route).Inc()
}

// Sent counts an outbound envelope.
func (m *Metrics) Sent(route string) {
	if m == nil {
		return
	}
	m.messagesOut.WithLabelValues(route).Inc()
}

// Dropped counts a discarded inbound message.
func (m *Metrics) Dropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// Reconnect counts a reconnect attempt.
func (m *Metrics) Reconnect() {
	if m == nil {
		return
	}
	m.reconnects.Inc()
}

// SetConnected records the connection state.
func (m *Metrics) SetConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// SetBookmarks records the bookmark count.
func (m *Metrics) SetBookmarks(count int) {
	if m == nil {
		return
	}
	m.bookmarks.Set(float64(count))
}

// Seek counts a finished skip seek.
func (m *Metrics) Seek(outcome string) {
	if m == nil {
		return
	}
	m.seeks.WithLabelValues(outcome).Inc()
}
