package conn

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/helmdeck/notify-agent/pkg/config"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
)

// WebsocketTransport dials ws:// and wss:// push endpoints.
type WebsocketTransport struct {
	handshakeTimeout time.Duration
	writeTimeout     time.Duration
	readLimit        int64
}

// NewWebsocketTransport builds the websocket transport from push settings.
func NewWebsocketTransport(cfg config.PushConfig) *WebsocketTransport {
	return &WebsocketTransport{
		handshakeTimeout: cfg.HandshakeTimeout,
		writeTimeout:     cfg.WriteTimeout,
		readLimit:        cfg.ReadLimitBytes,
	}
}

// Dial opens the websocket and applies the read limit.
func (t *WebsocketTransport) Dial(ctx context.Context, endpoint string, header http.Header) (Conn, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: t.handshakeTimeout,
	}
	ws, resp, err := dialer.DialContext(ctx, endpoint, header)
	if resp != nil && resp.Body != nil {
		defer resp.Body.Close()
	}
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "push handshake rejected")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "push dial failed")
	}
	if t.readLimit > 0 {
		ws.SetReadLimit(t.readLimit)
	}
	return &wsConn{ws: ws, writeTimeout: t.writeTimeout}, nil
}

// wsConn serializes writes; gorilla allows one concurrent writer.
type wsConn struct {
	ws           *websocket.Conn
	writeTimeout time.Duration

	writeMu sync.Mutex
}

func (c *wsConn) ReadMessage() ([]byte, error) {
	_, data, err := c.ws.ReadMessage()
	return data, err
}

func (c *wsConn) WriteMessage(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func (c *wsConn) Close() error {
	return c.ws.Close()
}
