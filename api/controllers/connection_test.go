package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/helmdeck/notify-agent/internal/conn"
)

func TestConnectionStatus(t *testing.T) {
	connectedAt := time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	svc := &testCenterService{
		statusFn: func() conn.StatusInfo {
			return conn.StatusInfo{
				State:       conn.StateConnected,
				Endpoint:    "wss://push.helmdeck.io/v1/stream",
				ConnectedAt: &connectedAt,
			}
		},
	}

	req := httptest.NewRequest(http.MethodGet, "/api/v1/connection", nil)
	resp := httptest.NewRecorder()
	ConnectionStatus(svc, testLogger())(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data conn.StatusInfo `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if envelope.Data.State != conn.StateConnected {
		t.Fatalf("unexpected state %q", envelope.Data.State)
	}
	if envelope.Data.Endpoint != "wss://push.helmdeck.io/v1/stream" {
		t.Fatalf("unexpected endpoint %q", envelope.Data.Endpoint)
	}
	if envelope.Data.ConnectedAt == nil || !envelope.Data.ConnectedAt.Equal(connectedAt) {
		t.Fatalf("unexpected connectedAt %v", envelope.Data.ConnectedAt)
	}
}

func TestConnectionStatusNilService(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/v1/connection", nil)
	resp := httptest.NewRecorder()
	ConnectionStatus(nil, testLogger())(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}
