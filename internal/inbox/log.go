// Package inbox holds the bounded, newest-first session notification log.
package inbox

import (
	"sync"
	"time"

	"github.com/helmdeck/notify-agent/pkg/enums"
	"github.com/helmdeck/notify-agent/pkg/metrics"
	"github.com/helmdeck/notify-agent/pkg/models"
)

// DefaultCapacity bounds the log when no capacity is configured.
const DefaultCapacity = 50

// Log is a mutex-guarded bounded list of notifications, newest first.
// Appends past capacity evict the oldest records. Ids are not deduplicated;
// a redelivered frame becomes a second record.
type Log struct {
	mu       sync.Mutex
	capacity int
	records  []models.Notification
	now      func() time.Time
	metrics  *metrics.InboxMetrics
}

// Params configures a Log.
type Params struct {
	Capacity int
	Metrics  *metrics.InboxMetrics
	Now      func() time.Time
}

// NewLog builds an empty log.
func NewLog(params Params) *Log {
	capacity := params.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Log{
		capacity: capacity,
		records:  make([]models.Notification, 0, capacity),
		now:      now,
		metrics:  params.Metrics,
	}
}

// Append inserts the notification at the head and evicts past capacity.
// Returns the number of evicted records.
func (l *Log) Append(n models.Notification) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.records = append([]models.Notification{n.Clone()}, l.records...)

	evicted := 0
	if len(l.records) > l.capacity {
		evicted = len(l.records) - l.capacity
		l.records = l.records[:l.capacity]
	}

	l.metrics.AddEvicted(evicted)
	l.updateGaugesLocked()
	return evicted
}

// MarkResult reports whether a record was found and whether its read
// state actually changed.
type MarkResult struct {
	Found   bool
	Updated bool
}

// MarkRead marks the first unread record with the given id read.
// Duplicate ids from redelivery are distinct entries, so an already
// read duplicate does not shadow an unread one. Re-marking a fully
// read id is a found, non-updating no-op.
func (l *Log) MarkRead(id string) MarkResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	found := false
	for i := range l.records {
		if l.records[i].ID != id {
			continue
		}
		found = true
		if l.records[i].MarkRead(l.now()) {
			l.updateGaugesLocked()
			return MarkResult{Found: true, Updated: true}
		}
	}
	return MarkResult{Found: found}
}

// MarkAllRead marks every unread record read and returns the count.
func (l *Log) MarkAllRead() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.now()
	marked := 0
	for i := range l.records {
		if l.records[i].MarkRead(at) {
			marked++
		}
	}
	if marked > 0 {
		l.updateGaugesLocked()
	}
	return marked
}

// Remove deletes the record with the given id. Returns false when absent.
func (l *Log) Remove(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.records {
		if l.records[i].ID == id {
			l.records = append(l.records[:i], l.records[i+1:]...)
			l.updateGaugesLocked()
			return true
		}
	}
	return false
}

// Clear empties the log and returns the number of removed records.
func (l *Log) Clear() int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := len(l.records)
	l.records = l.records[:0]
	l.updateGaugesLocked()
	return removed
}

// ClearByType removes every record of the given severity.
func (l *Log) ClearByType(sev enums.Severity) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	kept := l.records[:0]
	removed := 0
	for _, record := range l.records {
		if record.Type == sev {
			removed++
			continue
		}
		kept = append(kept, record)
	}
	l.records = kept
	if removed > 0 {
		l.updateGaugesLocked()
	}
	return removed
}

// UnreadCount returns the number of records without a read timestamp.
func (l *Log) UnreadCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unreadLocked()
}

// Len returns the number of records held.
func (l *Log) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

// FilterParams are optional predicates combined with AND.
type FilterParams struct {
	Type    *enums.Severity
	Channel *enums.Channel
	Read    *bool
	Limit   int
}

// Filter returns clones of the records matching every set predicate,
// preserving newest-first order. A positive limit caps the result.
func (l *Log) Filter(params FilterParams) []models.Notification {
	l.mu.Lock()
	defer l.mu.Unlock()

	out := make([]models.Notification, 0, len(l.records))
	for i := range l.records {
		record := &l.records[i]
		if params.Type != nil && record.Type != *params.Type {
			continue
		}
		if params.Channel != nil && record.Channel != *params.Channel {
			continue
		}
		if params.Read != nil && record.IsRead() != *params.Read {
			continue
		}
		out = append(out, record.Clone())
		if params.Limit > 0 && len(out) == params.Limit {
			break
		}
	}
	return out
}

// Snapshot returns clones of the newest records, up to limit (0 = all).
func (l *Log) Snapshot(limit int) []models.Notification {
	return l.Filter(FilterParams{Limit: limit})
}

// Expire marks read every unread, non-persistent record older than ttl.
// Returns the number of records marked.
func (l *Log) Expire(ttl time.Duration) int {
	if ttl <= 0 {
		return 0
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	at := l.now()
	cutoff := at.Add(-ttl)
	expired := 0
	for i := range l.records {
		record := &l.records[i]
		if record.IsRead() || record.IsPersistent() {
			continue
		}
		// strictly older than ttl; a record exactly ttl old stays
		if !record.CreatedAt.Before(cutoff) {
			continue
		}
		if record.MarkRead(at) {
			expired++
		}
	}
	if expired > 0 {
		l.metrics.AddExpired(expired)
		l.updateGaugesLocked()
	}
	return expired
}

func (l *Log) unreadLocked() int {
	unread := 0
	for i := range l.records {
		if !l.records[i].IsRead() {
			unread++
		}
	}
	return unread
}

func (l *Log) updateGaugesLocked() {
	l.metrics.SetSize(len(l.records))
	l.metrics.SetUnread(l.unreadLocked())
}
