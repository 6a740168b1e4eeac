package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// InboxMetrics records the state of the session notification log.
type InboxMetrics struct {
	size    prometheus.Gauge
	unread  prometheus.Gauge
	alerts  prometheus.Counter
	evicted prometheus.Counter
	expired prometheus.Counter
}

// NewInboxMetrics registers the inbox metrics on the provided registerer.
func NewInboxMetrics(reg prometheus.Registerer) *InboxMetrics {
	if reg == nil {
		return &InboxMetrics{}
	}
	size := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inbox_size",
		Help: "Notifications currently held in the session log.",
	})
	unread := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "inbox_unread",
		Help: "Unread notifications currently held in the session log.",
	})
	alerts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "alerts_emitted_total",
		Help: "Notifications that passed the alert gate.",
	})
	evicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inbox_evicted_total",
		Help: "Notifications evicted by the log capacity bound.",
	})
	expired := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "inbox_expired_total",
		Help: "Unread notifications marked read by the expiry sweep.",
	})
	reg.MustRegister(size, unread, alerts, evicted, expired)
	return &InboxMetrics{
		size:    size,
		unread:  unread,
		alerts:  alerts,
		evicted: evicted,
		expired: expired,
	}
}

// SetSize updates the log size gauge.
func (i *InboxMetrics) SetSize(n int) {
	if i == nil || i.size == nil {
		return
	}
	i.size.Set(float64(n))
}

// SetUnread updates the unread gauge.
func (i *InboxMetrics) SetUnread(n int) {
	if i == nil || i.unread == nil {
		return
	}
	i.unread.Set(float64(n))
}

// IncAlerts increments the emitted alert counter.
func (i *InboxMetrics) IncAlerts() {
	if i == nil || i.alerts == nil {
		return
	}
	i.alerts.Inc()
}

// AddEvicted adds to the eviction counter.
func (i *InboxMetrics) AddEvicted(n int) {
	if i == nil || i.evicted == nil || n <= 0 {
		return
	}
	i.evicted.Add(float64(n))
}

// AddExpired adds to the expiry counter.
func (i *InboxMetrics) AddExpired(n int) {
	if i == nil || i.expired == nil || n <= 0 {
		return
	}
	i.expired.Add(float64(n))
}
