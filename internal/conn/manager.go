package conn

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/metrics"
	"github.com/helmdeck/notify-agent/pkg/wire"
)

// DefaultRetryInterval is the flat wait between reconnect attempts.
const DefaultRetryInterval = 5 * time.Second

// State is the connection lifecycle position.
type State string

const (
	StateIdle         State = "idle"
	StateConnecting   State = "connecting"
	StateConnected    State = "connected"
	StateDisconnected State = "disconnected"
	StateClosed       State = "closed"
)

// StatusInfo is the connection snapshot served to the status indicator.
type StatusInfo struct {
	State       State      `json:"state"`
	Endpoint    string     `json:"endpoint"`
	LastError   string     `json:"lastError,omitempty"`
	ConnectedAt *time.Time `json:"connectedAt,omitempty"`
}

// ManagerParams configures a Manager.
type ManagerParams struct {
	Endpoint      string
	Transport     Transport
	Handler       FrameHandler
	Header        http.Header
	RetryInterval time.Duration
	Logger        *logger.Logger
	Metrics       *metrics.ConnMetrics
	OnStateChange func(State)

	// Now and After are injectable for tests.
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// Manager owns the single push connection for the session. One run loop
// dials, reads, and schedules flat-interval reconnects; losses never
// propagate past the state and the log.
type Manager struct {
	endpoint      string
	transport     Transport
	handler       FrameHandler
	header        http.Header
	retryInterval time.Duration
	logg          *logger.Logger
	metrics       *metrics.ConnMetrics
	onStateChange func(State)
	now           func() time.Time
	after         func(time.Duration) <-chan time.Time

	mu          sync.Mutex
	state       State
	conn        Conn
	cancel      context.CancelFunc
	done        chan struct{}
	started     bool
	lastErr     string
	connectedAt *time.Time
}

// NewManager builds an idle manager.
func NewManager(params ManagerParams) (*Manager, error) {
	if params.Endpoint == "" {
		return nil, fmt.Errorf("push endpoint required")
	}
	if params.Transport == nil {
		return nil, fmt.Errorf("transport required")
	}
	if params.Handler == nil {
		return nil, fmt.Errorf("frame handler required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	retry := params.RetryInterval
	if retry <= 0 {
		retry = DefaultRetryInterval
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	after := params.After
	if after == nil {
		after = time.After
	}
	return &Manager{
		endpoint:      params.Endpoint,
		transport:     params.Transport,
		handler:       params.Handler,
		header:        params.Header,
		retryInterval: retry,
		logg:          params.Logger,
		metrics:       params.Metrics,
		onStateChange: params.OnStateChange,
		now:           now,
		after:         after,
		state:         StateIdle,
	}, nil
}

// Connect starts the run loop. Repeat calls while running are no-ops; a
// closed manager refuses to restart. The loop lives until ctx is canceled
// or Close is called.
func (m *Manager) Connect(ctx context.Context) error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return pkgerrors.New(pkgerrors.CodeConflict, "connection manager is closed")
	}
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.done = make(chan struct{})
	m.mu.Unlock()

	m.setState(StateConnecting)
	go m.run(runCtx)
	return nil
}

func (m *Manager) run(ctx context.Context) {
	defer func() {
		m.mu.Lock()
		done := m.done
		m.mu.Unlock()
		close(done)
	}()

	for {
		conn, err := m.transport.Dial(ctx, m.endpoint, m.header)
		if ctx.Err() != nil {
			if conn != nil {
				conn.Close()
			}
			return
		}
		if err != nil {
			m.logg.Error(ctx, "push dial failed", err)
			m.noteDisconnect(err)
			if !m.waitRetry(ctx) {
				return
			}
			m.metrics.IncReconnects()
			m.setState(StateConnecting)
			continue
		}

		if !m.attach(ctx, conn) {
			return
		}

		readDone := make(chan struct{})
		go func() {
			select {
			case <-ctx.Done():
				conn.Close()
			case <-readDone:
			}
		}()
		readErr := m.readLoop(ctx, conn)
		close(readDone)
		m.detach(conn)

		if ctx.Err() != nil {
			return
		}
		m.logg.Warn(m.logg.WithField(ctx, "error", readErr.Error()), "push connection lost")
		m.noteDisconnect(readErr)
		if !m.waitRetry(ctx) {
			return
		}
		m.metrics.IncReconnects()
		m.setState(StateConnecting)
	}
}

// readLoop consumes frames until the connection errors. Malformed frames
// are dropped without touching connection state.
func (m *Manager) readLoop(ctx context.Context, c Conn) error {
	for {
		data, err := c.ReadMessage()
		if err != nil {
			return err
		}
		n, err := wire.DecodeFrame(data, m.now())
		if err != nil {
			m.metrics.IncFramesDropped()
			m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "dropping malformed frame")
			continue
		}
		m.metrics.IncFramesReceived()
		m.handler.HandleFrame(ctx, n)
	}
}

// Send writes a control message when connected. Anything else is a silent
// drop; the channel is advisory and never blocks local mutations.
func (m *Manager) Send(ctx context.Context, msg wire.ControlMessage) error {
	m.mu.Lock()
	state, c := m.state, m.conn
	m.mu.Unlock()

	if state != StateConnected || c == nil {
		m.metrics.IncSendsDropped()
		return nil
	}

	data, err := msg.Encode()
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding control message")
	}
	if err := c.WriteMessage(data); err != nil {
		m.metrics.IncSendsDropped()
		m.logg.Warn(m.logg.WithField(ctx, "error", err.Error()), "control message write failed")
	}
	return nil
}

// Status returns the current lifecycle state.
func (m *Manager) Status() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Info returns the snapshot for the status endpoint.
func (m *Manager) Info() StatusInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	info := StatusInfo{
		State:     m.state,
		Endpoint:  m.endpoint,
		LastError: m.lastErr,
	}
	if m.connectedAt != nil {
		at := *m.connectedAt
		info.ConnectedAt = &at
	}
	return info
}

// Close moves to the terminal state: cancels any pending retry wait,
// closes the live connection, and waits for the run loop to exit.
// Idempotent.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		return nil
	}
	m.state = StateClosed
	hook := m.onStateChange
	cancel := m.cancel
	c := m.conn
	m.conn = nil
	done := m.done
	m.mu.Unlock()

	if hook != nil {
		hook(StateClosed)
	}
	if cancel != nil {
		cancel()
	}
	if c != nil {
		_ = c.Close()
	}
	if done != nil {
		<-done
	}
	m.metrics.SetConnected(false)
	return nil
}

func (m *Manager) attach(ctx context.Context, c Conn) bool {
	m.mu.Lock()
	if m.state == StateClosed {
		m.mu.Unlock()
		c.Close()
		return false
	}
	m.conn = c
	at := m.now()
	m.connectedAt = &at
	m.lastErr = ""
	m.mu.Unlock()

	m.metrics.SetConnected(true)
	m.setState(StateConnected)
	m.logg.Info(ctx, "push connection established")
	return true
}

func (m *Manager) detach(c Conn) {
	m.mu.Lock()
	if m.conn == c {
		m.conn = nil
	}
	m.mu.Unlock()
	_ = c.Close()
	m.metrics.SetConnected(false)
}

func (m *Manager) noteDisconnect(err error) {
	m.mu.Lock()
	if err != nil {
		m.lastErr = err.Error()
	}
	m.mu.Unlock()
	m.metrics.SetConnected(false)
	m.setState(StateDisconnected)
}

func (m *Manager) waitRetry(ctx context.Context) bool {
	select {
	case <-m.after(m.retryInterval):
		return true
	case <-ctx.Done():
		return false
	}
}

func (m *Manager) setState(next State) {
	m.mu.Lock()
	if m.state == StateClosed || m.state == next {
		m.mu.Unlock()
		return
	}
	m.state = next
	hook := m.onStateChange
	m.mu.Unlock()

	if hook != nil {
		hook(next)
	}
}
