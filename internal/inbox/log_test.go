package inbox

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/helmdeck/notify-agent/pkg/enums"
	"github.com/helmdeck/notify-agent/pkg/models"
)

var testNow = time.Date(2026, 4, 2, 12, 0, 0, 0, time.UTC)

func newTestLog(capacity int) *Log {
	return NewLog(Params{Capacity: capacity, Now: func() time.Time { return testNow }})
}

func record(id string, sev enums.Severity, ch enums.Channel) models.Notification {
	return models.Notification{
		ID:        id,
		Title:     "title " + id,
		Message:   "message " + id,
		Type:      sev,
		Channel:   ch,
		CreatedAt: testNow,
	}
}

func TestAppendEvictsOldestPastCapacity(t *testing.T) {
	log := newTestLog(50)

	evicted := 0
	for i := 0; i < 55; i++ {
		evicted += log.Append(record(fmt.Sprintf("n-%02d", i), enums.SeverityInfo, enums.ChannelInApp))
	}

	require.Equal(t, 50, log.Len())
	assert.Equal(t, 5, evicted)

	records := log.Snapshot(0)
	assert.Equal(t, "n-54", records[0].ID, "newest first")
	assert.Equal(t, "n-05", records[len(records)-1].ID, "n-00..n-04 evicted")
}

func TestAppendDoesNotDeduplicate(t *testing.T) {
	log := newTestLog(10)

	log.Append(record("dup", enums.SeverityInfo, enums.ChannelInApp))
	log.Append(record("dup", enums.SeverityInfo, enums.ChannelInApp))

	require.Equal(t, 2, log.Len(), "redelivered id appends a second record")

	// each duplicate entry is marked separately, unread-first
	first := log.MarkRead("dup")
	require.True(t, first.Found)
	require.True(t, first.Updated)
	assert.Equal(t, 1, log.UnreadCount())

	second := log.MarkRead("dup")
	require.True(t, second.Found)
	require.True(t, second.Updated)

	third := log.MarkRead("dup")
	assert.True(t, third.Found)
	assert.False(t, third.Updated, "fully read id is a found no-op")
}

func TestMarkReadIdempotent(t *testing.T) {
	log := newTestLog(10)
	log.Append(record("n-1", enums.SeverityWarning, enums.ChannelPush))

	first := log.MarkRead("n-1")
	require.True(t, first.Found)
	require.True(t, first.Updated)

	again := log.MarkRead("n-1")
	assert.True(t, again.Found)
	assert.False(t, again.Updated)

	miss := log.MarkRead("missing")
	assert.False(t, miss.Found)
	assert.False(t, miss.Updated)

	records := log.Snapshot(0)
	require.NotNil(t, records[0].ReadAt)
	assert.True(t, records[0].ReadAt.Equal(testNow))
}

func TestUnreadCountTracksReadState(t *testing.T) {
	log := newTestLog(10)
	for i := 0; i < 5; i++ {
		log.Append(record(fmt.Sprintf("n-%d", i), enums.SeverityInfo, enums.ChannelChat))
	}

	require.Equal(t, 5, log.UnreadCount())

	log.MarkRead("n-1")
	log.MarkRead("n-3")
	assert.Equal(t, 3, log.UnreadCount())

	assert.Equal(t, 3, log.MarkAllRead())
	assert.Equal(t, 0, log.UnreadCount())
	assert.Equal(t, 0, log.MarkAllRead(), "second pass marks nothing")
}

func TestRemoveAndClear(t *testing.T) {
	log := newTestLog(10)
	log.Append(record("n-1", enums.SeverityError, enums.ChannelEmail))
	log.Append(record("n-2", enums.SeverityInfo, enums.ChannelEmail))

	require.True(t, log.Remove("n-1"))
	assert.False(t, log.Remove("n-1"), "second remove is a no-op")
	assert.Equal(t, 1, log.Len())

	assert.Equal(t, 1, log.Clear())
	assert.Equal(t, 0, log.Len())
}

func TestClearByType(t *testing.T) {
	log := newTestLog(10)
	log.Append(record("e-1", enums.SeverityError, enums.ChannelInApp))
	log.Append(record("i-1", enums.SeverityInfo, enums.ChannelInApp))
	log.Append(record("e-2", enums.SeverityError, enums.ChannelInApp))

	assert.Equal(t, 2, log.ClearByType(enums.SeverityError))

	records := log.Snapshot(0)
	require.Len(t, records, 1)
	assert.Equal(t, "i-1", records[0].ID)
}

func TestFilterCombinesPredicates(t *testing.T) {
	log := newTestLog(10)
	log.Append(record("u-1", enums.SeverityInfo, enums.ChannelPush))
	log.Append(record("r-1", enums.SeverityInfo, enums.ChannelPush))
	log.Append(record("u-2", enums.SeverityWarning, enums.ChannelPush))
	log.Append(record("r-2", enums.SeverityInfo, enums.ChannelChat))
	log.Append(record("u-3", enums.SeverityInfo, enums.ChannelChat))
	log.MarkRead("r-1")
	log.MarkRead("r-2")

	unread := false
	got := log.Filter(FilterParams{Read: &unread})
	require.Len(t, got, 3)
	for i, want := range []string{"u-3", "u-2", "u-1"} {
		assert.Equal(t, want, got[i].ID, "order preserved at index %d", i)
	}

	info := enums.SeverityInfo
	chat := enums.ChannelChat
	got = log.Filter(FilterParams{Type: &info, Channel: &chat, Read: &unread})
	require.Len(t, got, 1)
	assert.Equal(t, "u-3", got[0].ID)

	got = log.Filter(FilterParams{Limit: 2})
	assert.Len(t, got, 2)
}

func TestFilterReturnsClones(t *testing.T) {
	log := newTestLog(10)
	n := record("n-1", enums.SeverityInfo, enums.ChannelInApp)
	n.Metadata = map[string]any{"source": "ci"}
	log.Append(n)

	records := log.Snapshot(0)
	records[0].Metadata["source"] = "tampered"

	fresh := log.Snapshot(0)
	assert.Equal(t, "ci", fresh[0].Metadata["source"], "log-owned metadata untouched")
}

func TestExpireMarksOldUnreadNonPersistent(t *testing.T) {
	log := newTestLog(10)

	old := record("old", enums.SeverityInfo, enums.ChannelInApp)
	old.CreatedAt = testNow.Add(-2 * time.Hour)
	log.Append(old)

	pinned := record("pinned", enums.SeverityInfo, enums.ChannelInApp)
	pinned.CreatedAt = testNow.Add(-3 * time.Hour)
	pinned.Metadata = map[string]any{"persistent": true}
	log.Append(pinned)

	boundary := record("boundary", enums.SeverityInfo, enums.ChannelInApp)
	boundary.CreatedAt = testNow.Add(-time.Hour)
	log.Append(boundary)

	fresh := record("fresh", enums.SeverityInfo, enums.ChannelInApp)
	fresh.CreatedAt = testNow.Add(-10 * time.Minute)
	log.Append(fresh)

	alreadyRead := record("read", enums.SeverityInfo, enums.ChannelInApp)
	alreadyRead.CreatedAt = testNow.Add(-2 * time.Hour)
	log.Append(alreadyRead)
	log.MarkRead("read")

	require.Equal(t, 1, log.Expire(time.Hour), "exactly the old unread record expires")

	unread := false
	stillUnread := log.Filter(FilterParams{Read: &unread})
	require.Len(t, stillUnread, 3, "pinned, boundary and fresh stay unread")
	for _, r := range stillUnread {
		assert.NotEqual(t, "old", r.ID, "old record should have been marked read")
	}

	assert.Equal(t, 0, log.Expire(0), "zero ttl disables expiry")
}
