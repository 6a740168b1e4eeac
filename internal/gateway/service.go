// Package gateway is a development stand-in for the push backend: it
// terminates agent websockets, lets tooling inject frames, and serves
// the preference API the agent's store fetches from.
package gateway

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/helmdeck/notify-agent/api/middleware"
	"github.com/helmdeck/notify-agent/api/responses"
	"github.com/helmdeck/notify-agent/api/validators"
	"github.com/helmdeck/notify-agent/pkg/auth"
	"github.com/helmdeck/notify-agent/pkg/config"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/models"
	"github.com/helmdeck/notify-agent/pkg/wire"
)

const maxInjectBytes = 1 << 20

// Params carries the gateway dependencies.
type Params struct {
	Gateway config.GatewayConfig
	Session config.SessionConfig
	Logger  *logger.Logger
}

// Service owns the connected agent sessions and the in-memory
// preference backend.
type Service struct {
	gatewayCfg config.GatewayConfig
	sessionCfg config.SessionConfig
	logg       *logger.Logger
	prefs      *PrefStore
	upgrader   websocket.Upgrader

	mu     sync.Mutex
	conns  map[*agentConn]struct{}
	closed bool
}

// NewService builds the dev gateway.
func NewService(params Params) (*Service, error) {
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	if params.Session.Secret == "" {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "session secret required")
	}
	return &Service{
		gatewayCfg: params.Gateway,
		sessionCfg: params.Session,
		logg:       params.Logger,
		prefs:      NewPrefStore(),
		upgrader: websocket.Upgrader{
			// dev fixture, any origin may connect
			CheckOrigin: func(*http.Request) bool { return true },
		},
		conns: make(map[*agentConn]struct{}),
	}, nil
}

// Router serves the gateway endpoints.
func (s *Service) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(s.logg),
		middleware.RequestID(s.logg),
		middleware.Logging(s.logg),
	)

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		responses.WriteSuccess(w, map[string]string{"status": "live"})
	})
	r.Get("/v1/stream", s.handleStream)
	r.Post("/v1/inject", s.handleInject)
	r.Route("/api/v1/users/{userId}/preferences", func(r chi.Router) {
		r.Get("/", s.handleGetPreferences)
		r.Patch("/", s.handlePatchPreferences)
	})
	return r
}

// Sessions reports how many agent connections are live.
func (s *Service) Sessions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Close disconnects every connected session. Idempotent.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	conns := make([]*agentConn, 0, len(s.conns))
	for c := range s.conns {
		conns = append(conns, c)
	}
	s.conns = make(map[*agentConn]struct{})
	s.mu.Unlock()

	for _, c := range conns {
		c.ws.Close()
	}
}

func (s *Service) handleStream(w http.ResponseWriter, r *http.Request) {
	claims, err := s.authenticate(r)
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}

	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the handshake error.
		s.logg.Error(r.Context(), "websocket upgrade failed", err)
		return
	}

	c := &agentConn{ws: ws, sessionID: claims.SessionID, userID: claims.UserID}
	if !s.add(c) {
		ws.Close()
		return
	}

	ctx := s.logg.WithFields(context.Background(), map[string]any{
		"session_id": claims.SessionID,
		"user_id":    claims.UserID,
	})
	s.logg.Info(ctx, "agent session connected")
	s.readLoop(ctx, c)
}

// readLoop drains control messages until the agent disconnects.
func (s *Service) readLoop(ctx context.Context, c *agentConn) {
	defer func() {
		s.remove(c)
		c.ws.Close()
		s.logg.Info(ctx, "agent session disconnected")
	}()

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		msg, err := wire.DecodeControl(data)
		if err != nil {
			s.logg.Warn(ctx, "control message rejected")
			continue
		}
		msgCtx := s.logg.WithFields(ctx, map[string]any{
			"action":          string(msg.Action),
			"notification_id": msg.NotificationID,
		})
		s.logg.Info(msgCtx, "control message received")
	}
}

func (s *Service) handleInject(w http.ResponseWriter, r *http.Request) {
	if token := s.gatewayCfg.InjectToken; token != "" && bearerToken(r) != token {
		responses.WriteError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "inject token required"))
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxInjectBytes))
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "reading inject payload"))
		return
	}

	// Normalizing here pins the generated id and timestamp, so every
	// session receives the same frame.
	n, err := wire.DecodeFrame(body, time.Now())
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}
	payload, err := json.Marshal(n)
	if err != nil {
		responses.WriteError(r.Context(), s.logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "encoding frame"))
		return
	}

	delivered := s.broadcast(payload, strings.TrimSpace(r.URL.Query().Get("session")))
	responses.WriteSuccess(w, map[string]any{"delivered": delivered, "id": n.ID})
}

func (s *Service) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		responses.WriteError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id required"))
		return
	}
	responses.WriteSuccess(w, s.prefs.Get(userID))
}

func (s *Service) handlePatchPreferences(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(chi.URLParam(r, "userId"))
	if userID == "" {
		responses.WriteError(r.Context(), s.logg, w, pkgerrors.New(pkgerrors.CodeValidation, "user id required"))
		return
	}

	var patch models.PreferencesPatch
	if err := validators.DecodeJSONBody(r, &patch); err != nil {
		responses.WriteError(r.Context(), s.logg, w, err)
		return
	}
	responses.WriteSuccess(w, s.prefs.Apply(userID, patch))
}

func (s *Service) authenticate(r *http.Request) (*auth.SessionTokenClaims, error) {
	token := bearerToken(r)
	if token == "" {
		token = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "session token required")
	}
	claims, err := auth.ParseSessionToken(s.sessionCfg, token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid session token")
	}
	return claims, nil
}

func (s *Service) add(c *agentConn) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return false
	}
	s.conns[c] = struct{}{}
	return true
}

func (s *Service) remove(c *agentConn) {
	s.mu.Lock()
	delete(s.conns, c)
	s.mu.Unlock()
}

// broadcast writes the payload to every live session, or only the one
// named. Write failures drop the frame for that session; its read loop
// notices the broken connection and unregisters it.
func (s *Service) broadcast(payload []byte, sessionID string) int {
	s.mu.Lock()
	conns := make([]*agentConn, 0, len(s.conns))
	for c := range s.conns {
		if sessionID != "" && c.sessionID != sessionID {
			continue
		}
		conns = append(conns, c)
	}
	s.mu.Unlock()

	delivered := 0
	for _, c := range conns {
		if err := c.send(payload); err != nil {
			continue
		}
		delivered++
	}
	return delivered
}

// agentConn serializes writes; gorilla allows one concurrent writer.
type agentConn struct {
	ws        *websocket.Conn
	sessionID string
	userID    string

	writeMu sync.Mutex
}

func (c *agentConn) send(data []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.ws.WriteMessage(websocket.TextMessage, data)
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
