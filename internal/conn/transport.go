// Package conn maintains the push connection: dialing, the read loop,
// flat-interval reconnects, and best-effort outbound sends.
package conn

import (
	"context"
	"net/http"

	"github.com/helmdeck/notify-agent/pkg/models"
)

// Conn is one live push connection.
type Conn interface {
	ReadMessage() ([]byte, error)
	WriteMessage(data []byte) error
	Close() error
}

// Transport dials push connections. Implementations map an endpoint
// scheme to a concrete channel (websocket, redis pub/sub).
type Transport interface {
	Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error)
}

// FrameHandler receives decoded inbound notifications in arrival order.
type FrameHandler interface {
	HandleFrame(ctx context.Context, n models.Notification)
}

// FrameHandlerFunc adapts a plain function to the FrameHandler interface.
type FrameHandlerFunc func(ctx context.Context, n models.Notification)

// HandleFrame calls f.
func (f FrameHandlerFunc) HandleFrame(ctx context.Context, n models.Notification) {
	f(ctx, n)
}
