package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/helmdeck/notify-agent/api/responses"
	"github.com/helmdeck/notify-agent/api/validators"
	"github.com/helmdeck/notify-agent/internal/center"
	"github.com/helmdeck/notify-agent/pkg/enums"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
)

const maxListLimit = 500

// ListNotifications returns log records newest first, optionally
// filtered by type, channel and read state.
func ListNotifications(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}

		params := center.ListParams{}

		if raw := strings.TrimSpace(r.URL.Query().Get("type")); raw != "" {
			severity, err := enums.ParseSeverity(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type value"))
				return
			}
			params.Type = &severity
		}

		if raw := strings.TrimSpace(r.URL.Query().Get("channel")); raw != "" {
			channel, err := enums.ParseChannel(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid channel value"))
				return
			}
			params.Channel = &channel
		}

		read, err := validators.ParseQueryBool(r, "read")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Read = read

		limit, err := validators.ParseQueryInt(r, "limit", 0, 1, maxListLimit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params.Limit = limit

		responses.WriteSuccess(w, svc.List(r.Context(), params))
	}
}

// UnreadNotificationsCount returns the badge counter.
func UnreadNotificationsCount(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}
		responses.WriteSuccess(w, map[string]int{"unread": svc.UnreadCount()})
	}
}

// NotificationFilterOptions returns the type and channel values the
// console filter dropdowns offer.
func NotificationFilterOptions(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.FilterOptions())
	}
}

// MarkNotificationRead marks a single notification read.
func MarkNotificationRead(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}

		notificationID := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		if notificationID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "notification id required"))
			return
		}

		if err := svc.MarkRead(r.Context(), notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"read": true})
	}
}

// MarkAllNotificationsRead marks every unread notification read and
// reports how many changed.
func MarkAllNotificationsRead(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}
		updated := svc.MarkAllRead(r.Context())
		responses.WriteSuccess(w, map[string]int{"updated": updated})
	}
}

// DeleteNotification removes a single notification from the log.
func DeleteNotification(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}

		notificationID := strings.TrimSpace(chi.URLParam(r, "notificationId"))
		if notificationID == "" {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "notification id required"))
			return
		}

		if err := svc.Remove(r.Context(), notificationID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"deleted": true})
	}
}

// ClearNotifications empties the log, or only one severity when the
// type query parameter is present.
func ClearNotifications(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}

		raw := strings.TrimSpace(r.URL.Query().Get("type"))
		if raw == "" {
			responses.WriteSuccess(w, map[string]int{"removed": svc.Clear(r.Context())})
			return
		}

		severity, err := enums.ParseSeverity(raw)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid type value"))
			return
		}
		responses.WriteSuccess(w, map[string]int{"removed": svc.ClearByType(r.Context(), severity)})
	}
}
