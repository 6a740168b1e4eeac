package controllers

import (
	"net/http"

	"github.com/helmdeck/notify-agent/api/responses"
	"github.com/helmdeck/notify-agent/internal/center"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
)

// ConnectionStatus returns the push connection snapshot backing the
// console status indicator.
func ConnectionStatus(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}
		responses.WriteSuccess(w, svc.Status())
	}
}
