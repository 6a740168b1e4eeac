// Package center is the dispatch façade between the push connection,
// the notification log, the preference store and the presentation
// layer. Every inbound frame and every console operation funnels
// through it.
package center

import (
	"context"
	"time"

	"github.com/helmdeck/notify-agent/internal/conn"
	"github.com/helmdeck/notify-agent/internal/inbox"
	"github.com/helmdeck/notify-agent/internal/prefs"
	"github.com/helmdeck/notify-agent/internal/stream"
	"github.com/helmdeck/notify-agent/pkg/enums"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/metrics"
	"github.com/helmdeck/notify-agent/pkg/models"
	"github.com/helmdeck/notify-agent/pkg/wire"
)

// Sender pushes advisory control messages to the gateway and exposes
// the connection state for the status indicator.
type Sender interface {
	Send(ctx context.Context, msg wire.ControlMessage) error
	Info() conn.StatusInfo
}

// Alerter raises the user-visible alert for a notification.
type Alerter interface {
	Alert(ctx context.Context, n models.Notification)
}

// PreferenceStore is the slice of the preference store the center uses.
type PreferenceStore interface {
	Load(ctx context.Context) (models.UserPreferences, error)
	Current() (models.UserPreferences, bool)
	Update(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error)
}

// ListParams filters the notification log. Nil predicates match all.
type ListParams struct {
	Type    *enums.Severity
	Channel *enums.Channel
	Read    *bool
	Limit   int
}

// FilterOptions lists the values the console filter dropdowns offer.
type FilterOptions struct {
	Types    []string `json:"types"`
	Channels []string `json:"channels"`
}

// Service defines the notification center operations.
type Service interface {
	HandleFrame(ctx context.Context, n models.Notification)
	List(ctx context.Context, params ListParams) []models.Notification
	UnreadCount() int
	MarkRead(ctx context.Context, id string) error
	MarkAllRead(ctx context.Context) int
	Remove(ctx context.Context, id string) error
	Clear(ctx context.Context) int
	ClearByType(ctx context.Context, severity enums.Severity) int
	Preferences(ctx context.Context) (models.UserPreferences, error)
	UpdatePreferences(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error)
	FilterOptions() FilterOptions
	AutoExpire(ttl time.Duration) int
	Status() conn.StatusInfo
}

type service struct {
	log     *inbox.Log
	store   PreferenceStore
	sender  Sender
	alerter Alerter
	hub     *stream.Hub
	metrics *metrics.InboxMetrics
	logg    *logger.Logger
	now     func() time.Time
}

// Params carries the center dependencies.
type Params struct {
	Log     *inbox.Log
	Store   PreferenceStore
	Sender  Sender
	Alerter Alerter
	Hub     *stream.Hub
	Metrics *metrics.InboxMetrics
	Logger  *logger.Logger
	Now     func() time.Time
}

// NewService wires the dispatch façade.
func NewService(params Params) (Service, error) {
	if params.Log == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notification log required")
	}
	if params.Store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "preference store required")
	}
	if params.Sender == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "control sender required")
	}
	if params.Alerter == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "alerter required")
	}
	if params.Hub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "event hub required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		log:     params.Log,
		store:   params.Store,
		sender:  params.Sender,
		alerter: params.Alerter,
		hub:     params.Hub,
		metrics: params.Metrics,
		logg:    params.Logger,
		now:     now,
	}, nil
}

// HandleFrame routes one decoded inbound notification: the record is
// always appended to the log, the alert only fires for an interruptive
// channel that is enabled and outside quiet hours.
func (s *service) HandleFrame(ctx context.Context, n models.Notification) {
	s.log.Append(n)
	s.hub.Publish(stream.Event{Kind: stream.KindNotificationAppended, Payload: n})

	if !n.Channel.Interruptive() {
		return
	}
	current, _ := s.store.Current()
	if !current.ChannelEnabled(n.Channel) {
		return
	}
	if prefs.IsQuietNow(current, s.now()) {
		return
	}

	s.alerter.Alert(ctx, n)
	s.metrics.IncAlerts()
	s.hub.Publish(stream.Event{Kind: stream.KindNotificationAlert, Payload: n})
}

func (s *service) List(ctx context.Context, params ListParams) []models.Notification {
	return s.log.Filter(inbox.FilterParams{
		Type:    params.Type,
		Channel: params.Channel,
		Read:    params.Read,
		Limit:   params.Limit,
	})
}

func (s *service) UnreadCount() int {
	return s.log.UnreadCount()
}

func (s *service) MarkRead(ctx context.Context, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	result := s.log.MarkRead(id)
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	if result.Updated {
		s.sendControl(ctx, wire.ControlMessage{Action: wire.ActionMarkRead, NotificationID: id})
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context) int {
	return s.log.MarkAllRead()
}

func (s *service) Remove(ctx context.Context, id string) error {
	if id == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}
	if !s.log.Remove(id) {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	s.sendControl(ctx, wire.ControlMessage{Action: wire.ActionDelete, NotificationID: id})
	return nil
}

func (s *service) Clear(ctx context.Context) int {
	return s.log.Clear()
}

func (s *service) ClearByType(ctx context.Context, severity enums.Severity) int {
	return s.log.ClearByType(severity)
}

func (s *service) Preferences(ctx context.Context) (models.UserPreferences, error) {
	return s.store.Load(ctx)
}

func (s *service) UpdatePreferences(ctx context.Context, patch models.PreferencesPatch) (models.UserPreferences, error) {
	return s.store.Update(ctx, patch)
}

// FilterOptions exposes the subscribed type set, falling back to the
// full severity enum when the user has not narrowed it.
func (s *service) FilterOptions() FilterOptions {
	current, _ := s.store.Current()

	types := make([]string, 0, len(current.NotificationTypes))
	types = append(types, current.NotificationTypes...)
	if len(types) == 0 {
		for _, sev := range enums.Severities() {
			types = append(types, string(sev))
		}
	}

	channels := make([]string, 0, len(enums.Channels()))
	for _, ch := range enums.Channels() {
		channels = append(channels, string(ch))
	}
	return FilterOptions{Types: types, Channels: channels}
}

func (s *service) AutoExpire(ttl time.Duration) int {
	expired := s.log.Expire(ttl)
	if expired > 0 {
		ctx := s.logg.WithField(context.Background(), "expired", expired)
		s.logg.Info(ctx, "stale notifications marked read")
	}
	return expired
}

func (s *service) Status() conn.StatusInfo {
	return s.sender.Info()
}

// sendControl pushes an advisory control message upstream. Failures
// are logged and swallowed, the local mutation already happened.
func (s *service) sendControl(ctx context.Context, msg wire.ControlMessage) {
	if err := s.sender.Send(ctx, msg); err != nil {
		ctx = s.logg.WithFields(ctx, map[string]any{
			"action":          string(msg.Action),
			"notification_id": msg.NotificationID,
		})
		s.logg.Warn(ctx, "control message dropped")
	}
}
