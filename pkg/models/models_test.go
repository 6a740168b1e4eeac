package models

import (
	"testing"
	"time"

	"github.com/helmdeck/notify-agent/pkg/enums"
)

func TestNotificationMarkReadOnce(t *testing.T) {
	n := Notification{ID: "n-1", Type: enums.SeverityInfo, Channel: enums.ChannelInApp}

	first := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	if !n.MarkRead(first) {
		t.Fatalf("expected first MarkRead to apply")
	}
	if !n.IsRead() {
		t.Fatalf("expected notification to be read")
	}
	if n.MarkRead(first.Add(time.Hour)) {
		t.Fatalf("expected second MarkRead to be a no-op")
	}
	if !n.ReadAt.Equal(first) {
		t.Fatalf("expected ReadAt %v, got %v", first, *n.ReadAt)
	}
}

func TestNotificationIsPersistent(t *testing.T) {
	tests := []struct {
		name string
		meta map[string]any
		want bool
	}{
		{name: "nil metadata", meta: nil, want: false},
		{name: "missing key", meta: map[string]any{"source": "billing"}, want: false},
		{name: "bool true", meta: map[string]any{"persistent": true}, want: true},
		{name: "bool false", meta: map[string]any{"persistent": false}, want: false},
		{name: "string true", meta: map[string]any{"persistent": "true"}, want: true},
		{name: "string numeric", meta: map[string]any{"persistent": "1"}, want: true},
		{name: "yes upper", meta: map[string]any{"persistent": " YES "}, want: true},
		{name: "string false", meta: map[string]any{"persistent": "false"}, want: false},
		{name: "json number", meta: map[string]any{"persistent": float64(1)}, want: true},
		{name: "json zero", meta: map[string]any{"persistent": float64(0)}, want: false},
		{name: "unrelated shape", meta: map[string]any{"persistent": []any{"true"}}, want: false},
	}

	for _, tc := range tests {
		n := Notification{Metadata: tc.meta}
		if got := n.IsPersistent(); got != tc.want {
			t.Errorf("%s: expected %v, got %v", tc.name, tc.want, got)
		}
	}
}

func TestNotificationClone(t *testing.T) {
	at := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	n := Notification{
		ID:     "n-1",
		ReadAt: &at,
		Metadata: map[string]any{
			"persistent": true,
			"origin":     map[string]any{"service": "ci"},
			"tags":       []any{"deploy"},
		},
	}

	cp := n.Clone()
	*cp.ReadAt = cp.ReadAt.Add(time.Hour)
	cp.Metadata["persistent"] = false
	cp.Metadata["origin"].(map[string]any)["service"] = "tampered"
	cp.Metadata["tags"].([]any)[0] = "tampered"

	if !n.ReadAt.Equal(at) {
		t.Fatalf("expected original ReadAt untouched, got %v", *n.ReadAt)
	}
	if n.Metadata["persistent"] != true {
		t.Fatalf("expected original metadata untouched, got %v", n.Metadata["persistent"])
	}
	if got := n.Metadata["origin"].(map[string]any)["service"]; got != "ci" {
		t.Fatalf("expected nested metadata untouched, got %v", got)
	}
	if got := n.Metadata["tags"].([]any)[0]; got != "deploy" {
		t.Fatalf("expected metadata slice untouched, got %v", got)
	}
}

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences("user-1")

	if p.UserID != "user-1" {
		t.Fatalf("expected user id user-1, got %q", p.UserID)
	}
	for _, ch := range []enums.Channel{enums.ChannelEmail, enums.ChannelChat, enums.ChannelPush, enums.ChannelInApp} {
		if !p.ChannelEnabled(ch) {
			t.Errorf("expected channel %s enabled by default", ch)
		}
	}
	if p.ChannelEnabled(enums.ChannelWebhook) {
		t.Errorf("expected webhook disabled by default")
	}
	if p.ChannelEnabled(enums.Channel("carrier_pigeon")) {
		t.Errorf("expected unknown channel disabled")
	}
}

func TestPreferencesPatchApply(t *testing.T) {
	base := DefaultPreferences("user-1")
	base.EmailAddress = "old@helmdeck.io"

	push := false
	addr := "new@helmdeck.io"
	device := "device-77"
	start, end := "22:00", "06:00"
	patch := PreferencesPatch{
		PushEnabled:       &push,
		EmailAddress:      &addr,
		PushDeviceID:      &device,
		QuietHoursStart:   &start,
		QuietHoursEnd:     &end,
		NotificationTypes: []string{"error", "critical"},
	}

	got := patch.Apply(base)

	if got.PushEnabled {
		t.Fatalf("expected push disabled after patch")
	}
	if got.EmailAddress != addr {
		t.Fatalf("expected email %q, got %q", addr, got.EmailAddress)
	}
	if got.PushDeviceID != device {
		t.Fatalf("expected device %q, got %q", device, got.PushDeviceID)
	}
	if got.QuietHoursStart != start || got.QuietHoursEnd != end {
		t.Fatalf("expected quiet hours %s-%s, got %s-%s", start, end, got.QuietHoursStart, got.QuietHoursEnd)
	}
	if len(got.NotificationTypes) != 2 {
		t.Fatalf("expected 2 notification types, got %d", len(got.NotificationTypes))
	}

	// untouched fields survive
	if !got.EmailEnabled || !got.ChatEnabled || !got.InAppEnabled {
		t.Fatalf("expected unpatched flags to keep base values")
	}
	// base is not mutated
	if !base.PushEnabled || base.EmailAddress != "old@helmdeck.io" {
		t.Fatalf("expected base preferences unchanged")
	}
}

func TestPreferencesPatchIsEmpty(t *testing.T) {
	var patch PreferencesPatch
	if !patch.IsEmpty() {
		t.Fatalf("expected zero patch to be empty")
	}

	on := true
	patch.ChatEnabled = &on
	if patch.IsEmpty() {
		t.Fatalf("expected patch with field set to be non-empty")
	}
}
