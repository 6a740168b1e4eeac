package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/helmdeck/notify-agent/api/responses"
	"github.com/helmdeck/notify-agent/internal/stream"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
)

const eventsHeartbeat = 25 * time.Second

// Events bridges the in-process event hub onto a text/event-stream
// response so the console can follow appends, alerts and connection
// state without polling.
func Events(hub *stream.Hub, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hub == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "event hub unavailable"))
			return
		}

		flusher, ok := w.(http.Flusher)
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "streaming unsupported"))
			return
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")

		events, cancel := hub.Subscribe()
		defer cancel()

		// Initial comment flushes the headers and keeps proxies happy.
		if _, err := fmt.Fprint(w, ": ok\n\n"); err != nil {
			return
		}
		flusher.Flush()

		heartbeat := time.NewTicker(eventsHeartbeat)
		defer heartbeat.Stop()

		for {
			select {
			case <-r.Context().Done():
				return
			case <-heartbeat.C:
				if _, err := fmt.Fprint(w, ": ping\n\n"); err != nil {
					return
				}
				flusher.Flush()
			case event, open := <-events:
				if !open {
					return
				}
				data, err := json.Marshal(event.Payload)
				if err != nil {
					ctx := logg.WithField(r.Context(), "kind", event.Kind)
					logg.Error(ctx, "event payload marshal failed", err)
					continue
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Kind, data); err != nil {
					return
				}
				flusher.Flush()
			}
		}
	}
}
