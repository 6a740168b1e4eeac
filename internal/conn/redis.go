package conn

import (
	"context"
	"fmt"
	"net/http"

	redislib "github.com/redis/go-redis/v9"

	redisclient "github.com/helmdeck/notify-agent/pkg/redis"
)

// RedisTransport rides a redis pub/sub pair instead of a socket: inbound
// frames arrive on the session's notify channel, control messages go out
// on its control channel. Selected by redis:// and rediss:// endpoints.
type RedisTransport struct {
	client    *redisclient.Client
	sessionID string
}

// NewRedisTransport builds the pub/sub transport.
func NewRedisTransport(client *redisclient.Client, sessionID string) (*RedisTransport, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session id required")
	}
	return &RedisTransport{client: client, sessionID: sessionID}, nil
}

// Dial subscribes to the session's notify channel. The endpoint already
// configured the underlying client; the header is unused here.
func (t *RedisTransport) Dial(ctx context.Context, endpoint string, _ http.Header) (Conn, error) {
	if err := t.client.Ping(ctx); err != nil {
		return nil, fmt.Errorf("redis transport: %w", err)
	}
	sub, err := t.client.Subscribe(ctx, t.client.NotifyChannel(t.sessionID))
	if err != nil {
		return nil, fmt.Errorf("redis transport: %w", err)
	}
	return &redisConn{
		client:         t.client,
		sub:            sub,
		controlChannel: t.client.ControlChannel(t.sessionID),
	}, nil
}

type redisConn struct {
	client         *redisclient.Client
	sub            *redislib.PubSub
	controlChannel string
}

func (c *redisConn) ReadMessage() ([]byte, error) {
	msg, err := c.sub.ReceiveMessage(context.Background())
	if err != nil {
		return nil, err
	}
	return []byte(msg.Payload), nil
}

func (c *redisConn) WriteMessage(data []byte) error {
	return c.client.Publish(context.Background(), c.controlChannel, data)
}

func (c *redisConn) Close() error {
	return c.sub.Close()
}
