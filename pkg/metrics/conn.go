package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// ConnMetrics records push connection health.
type ConnMetrics struct {
	connected     prometheus.Gauge
	reconnects    prometheus.Counter
	framesIn      prometheus.Counter
	framesDropped prometheus.Counter
	sendsDropped  prometheus.Counter
}

// NewConnMetrics registers the connection metrics on the provided registerer.
func NewConnMetrics(reg prometheus.Registerer) *ConnMetrics {
	if reg == nil {
		return &ConnMetrics{}
	}
	connected := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "push_connected",
		Help: "Whether the push connection is currently established (0/1).",
	})
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_reconnects_total",
		Help: "Reconnect attempts after connection loss.",
	})
	framesIn := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_frames_received_total",
		Help: "Inbound frames successfully decoded.",
	})
	framesDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_frames_dropped_total",
		Help: "Inbound frames dropped as malformed.",
	})
	sendsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "push_sends_dropped_total",
		Help: "Outbound control messages dropped while disconnected.",
	})
	reg.MustRegister(connected, reconnects, framesIn, framesDropped, sendsDropped)
	return &ConnMetrics{
		connected:     connected,
		reconnects:    reconnects,
		framesIn:      framesIn,
		framesDropped: framesDropped,
		sendsDropped:  sendsDropped,
	}
}

// SetConnected flips the connection gauge.
func (c *ConnMetrics) SetConnected(up bool) {
	if c == nil || c.connected == nil {
		return
	}
	if up {
		c.connected.Set(1)
		return
	}
	c.connected.Set(0)
}

// IncReconnects increments the reconnect attempt counter.
func (c *ConnMetrics) IncReconnects() {
	if c == nil || c.reconnects == nil {
		return
	}
	c.reconnects.Inc()
}

// IncFramesReceived increments the decoded frame counter.
func (c *ConnMetrics) IncFramesReceived() {
	if c == nil || c.framesIn == nil {
		return
	}
	c.framesIn.Inc()
}

// IncFramesDropped increments the malformed frame counter.
func (c *ConnMetrics) IncFramesDropped() {
	if c == nil || c.framesDropped == nil {
		return
	}
	c.framesDropped.Inc()
}

// IncSendsDropped increments the dropped outbound send counter.
func (c *ConnMetrics) IncSendsDropped() {
	if c == nil || c.sendsDropped == nil {
		return
	}
	c.sendsDropped.Inc()
}
