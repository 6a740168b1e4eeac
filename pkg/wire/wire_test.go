package wire

import (
	"strings"
	"testing"
	"time"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/enums"
	"github.com/helmdeck/notify-agent/pkg/models"
)

var ingestedAt = time.Date(2026, 4, 2, 9, 30, 0, 0, time.UTC)

func TestDecodeFrameComplete(t *testing.T) {
	payload := `{
		"id": "evt-1",
		"title": "Deploy finished",
		"message": "pipeline green",
		"type": "success",
		"channel": "push",
		"priority": 2,
		"createdAt": "2026-04-02T09:15:00Z",
		"metadata": {"persistent": "true", "source": "ci"}
	}`

	n, err := DecodeFrame([]byte(payload), ingestedAt)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if n.ID != "evt-1" {
		t.Fatalf("expected id evt-1, got %q", n.ID)
	}
	if n.Type != enums.SeveritySuccess || n.Channel != enums.ChannelPush {
		t.Fatalf("unexpected enums: %s/%s", n.Type, n.Channel)
	}
	if want := time.Date(2026, 4, 2, 9, 15, 0, 0, time.UTC); !n.CreatedAt.Equal(want) {
		t.Fatalf("expected wire createdAt %v, got %v", want, n.CreatedAt)
	}
	if !n.IsPersistent() {
		t.Fatalf("expected metadata to carry persistence")
	}
}

func TestDecodeFrameFallbacks(t *testing.T) {
	payload := `{"title": "Disk pressure", "message": "node-3 at 91%", "type": "warning", "channel": "in_app"}`

	n, err := DecodeFrame([]byte(payload), ingestedAt)
	if err != nil {
		t.Fatalf("DecodeFrame returned error: %v", err)
	}
	if n.ID == "" {
		t.Fatalf("expected generated id for frame without one")
	}
	if !n.CreatedAt.Equal(ingestedAt) {
		t.Fatalf("expected ingestion time fallback, got %v", n.CreatedAt)
	}
}

func TestDecodeFrameRejectsMalformed(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{name: "not json", payload: `{"title": "x"`},
		{name: "missing title", payload: `{"message": "m", "type": "info", "channel": "push"}`},
		{name: "unknown type", payload: `{"title": "t", "message": "m", "type": "verbose", "channel": "push"}`},
		{name: "unknown channel", payload: `{"title": "t", "message": "m", "type": "info", "channel": "fax"}`},
		{name: "bad createdAt", payload: `{"title": "t", "message": "m", "type": "info", "channel": "push", "createdAt": "yesterday"}`},
	}

	for _, tc := range tests {
		if _, err := DecodeFrame([]byte(tc.payload), ingestedAt); err == nil {
			t.Errorf("%s: expected decode error", tc.name)
		} else if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
			t.Errorf("%s: expected validation code, got %v", tc.name, err)
		}
	}
}

func TestDecodeFrameToleratesUnknownFields(t *testing.T) {
	payload := `{"title": "t", "message": "m", "type": "info", "channel": "chat", "futureField": true}`
	if _, err := DecodeFrame([]byte(payload), ingestedAt); err != nil {
		t.Fatalf("expected unknown fields to be tolerated, got %v", err)
	}
}

func TestDecodeFrameMetadataAcceptsAnyValues(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		check   func(t *testing.T, n models.Notification)
	}{
		{
			name:    "numeric value",
			payload: `{"title": "t", "message": "m", "type": "info", "channel": "push", "metadata": {"count": 3}}`,
			check: func(t *testing.T, n models.Notification) {
				if got := n.Metadata["count"]; got != float64(3) {
					t.Fatalf("expected numeric metadata kept, got %v", got)
				}
			},
		},
		{
			name:    "boolean persistence flag",
			payload: `{"title": "t", "message": "m", "type": "info", "channel": "push", "metadata": {"persistent": true}}`,
			check: func(t *testing.T, n models.Notification) {
				if !n.IsPersistent() {
					t.Fatalf("expected boolean persistent flag to be honored")
				}
			},
		},
		{
			name:    "nested object",
			payload: `{"title": "t", "message": "m", "type": "info", "channel": "push", "metadata": {"origin": {"service": "ci", "attempt": 2}}}`,
			check: func(t *testing.T, n models.Notification) {
				origin, ok := n.Metadata["origin"].(map[string]any)
				if !ok || origin["service"] != "ci" {
					t.Fatalf("expected nested metadata kept, got %v", n.Metadata["origin"])
				}
			},
		},
		{
			name:    "null bag",
			payload: `{"title": "t", "message": "m", "type": "info", "channel": "push", "metadata": null}`,
			check: func(t *testing.T, n models.Notification) {
				if n.Metadata != nil {
					t.Fatalf("expected nil metadata for null bag, got %v", n.Metadata)
				}
			},
		},
	}

	for _, tc := range tests {
		n, err := DecodeFrame([]byte(tc.payload), ingestedAt)
		if err != nil {
			t.Errorf("%s: expected frame to decode, got %v", tc.name, err)
			continue
		}
		tc.check(t, n)
	}
}

func TestControlMessageRoundTrip(t *testing.T) {
	msg := ControlMessage{Action: ActionMarkRead, NotificationID: "evt-1"}

	data, err := msg.Encode()
	if err != nil {
		t.Fatalf("Encode returned error: %v", err)
	}
	if !strings.Contains(string(data), `"action":"mark_read"`) {
		t.Fatalf("unexpected encoding: %s", data)
	}

	decoded, err := DecodeControl(data)
	if err != nil {
		t.Fatalf("DecodeControl returned error: %v", err)
	}
	if decoded != msg {
		t.Fatalf("expected %+v, got %+v", msg, decoded)
	}
}

func TestDecodeControlRejectsUnknownAction(t *testing.T) {
	if _, err := DecodeControl([]byte(`{"action": "archive", "notificationId": "evt-1"}`)); err == nil {
		t.Fatalf("expected unknown action to be rejected")
	}
	if _, err := DecodeControl([]byte(`{"action": "delete"}`)); err == nil {
		t.Fatalf("expected missing notification id to be rejected")
	}
}
