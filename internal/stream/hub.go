// Package stream fans application events out to server-sent-event
// subscribers. The hub is process-local and scoped to the single
// agent session.
package stream

import "sync"

// Event kinds published by the notification center.
const (
	KindNotificationAppended = "notification.appended"
	KindNotificationAlert    = "notification.alert"
	KindConnectionStatus     = "connection.status"
)

// subscriberBuffer bounds how far a subscriber may lag before
// events are dropped for it.
const subscriberBuffer = 16

// Event is a single server-sent notification event. Kind is used as
// the SSE "event:" name, Payload is an arbitrary JSON-serialisable body.
type Event struct {
	Kind    string `json:"kind"`
	Payload any    `json:"payload,omitempty"`
}

// Hub keeps in-memory event subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[chan Event]struct{}
	closed      bool
}

// NewHub constructs an empty Hub.
func NewHub() *Hub {
	return &Hub{subscribers: make(map[chan Event]struct{})}
}

// Subscribe registers a subscriber and returns its event channel plus
// an unsubscribe function that must be called on disconnect. The
// channel is closed on unsubscribe and on hub shutdown.
func (h *Hub) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	h.subscribers[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if _, ok := h.subscribers[ch]; !ok {
			return
		}
		delete(h.subscribers, ch)
		close(ch)
	}
	return ch, unsubscribe
}

// Publish sends an event to every subscriber. Slow consumers are
// skipped so producer code never blocks on a stalled client.
func (h *Hub) Publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	for ch := range h.subscribers {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Subscribers reports how many subscribers are currently attached.
func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

// Close detaches and closes every subscriber channel. Publish and
// Subscribe become no-ops afterwards.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for ch := range h.subscribers {
		delete(h.subscribers, ch)
		close(ch)
	}
}
