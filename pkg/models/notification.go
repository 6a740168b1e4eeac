package models

import (
	"strings"
	"time"

	"github.com/helmdeck/notify-agent/pkg/enums"
)

// MetadataPersistentKey marks a notification as exempt from auto-expiry.
const MetadataPersistentKey = "persistent"

// Notification is one received event in the session log. Metadata is
// the wire frame's bag passed through untyped: senders put anything
// JSON allows in it.
type Notification struct {
	ID        string         `json:"id"`
	Title     string         `json:"title"`
	Message   string         `json:"message"`
	Type      enums.Severity `json:"type"`
	Channel   enums.Channel  `json:"channel"`
	Priority  int            `json:"priority"`
	CreatedAt time.Time      `json:"createdAt"`
	ReadAt    *time.Time     `json:"readAt,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// IsRead reports whether the record has been marked read.
func (n *Notification) IsRead() bool {
	return n.ReadAt != nil
}

// MarkRead sets ReadAt exactly once; later calls are no-ops.
func (n *Notification) MarkRead(at time.Time) bool {
	if n.ReadAt != nil {
		return false
	}
	ts := at.UTC()
	n.ReadAt = &ts
	return true
}

// IsPersistent reports whether the metadata bag opts the record out of
// auto-expiry. Truthy encodings of the persistent key: a JSON boolean,
// the string spellings true/1/yes, a nonzero number. The bag is
// otherwise opaque to the agent.
func (n *Notification) IsPersistent() bool {
	if n.Metadata == nil {
		return false
	}
	switch v := n.Metadata[MetadataPersistentKey].(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	case float64:
		return v != 0
	case int:
		return v != 0
	}
	return false
}

// Clone returns a deep copy so callers cannot mutate log-owned state.
func (n *Notification) Clone() Notification {
	out := *n
	if n.ReadAt != nil {
		ts := *n.ReadAt
		out.ReadAt = &ts
	}
	if n.Metadata != nil {
		out.Metadata = cloneBag(n.Metadata)
	}
	return out
}

// cloneBag copies the JSON container shapes; scalar values are immutable.
func cloneBag(bag map[string]any) map[string]any {
	out := make(map[string]any, len(bag))
	for k, v := range bag {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		return cloneBag(typed)
	case []any:
		out := make([]any, len(typed))
		for i, item := range typed {
			out[i] = cloneValue(item)
		}
		return out
	default:
		return v
	}
}
