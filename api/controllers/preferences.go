package controllers

import (
	"net/http"

	"github.com/helmdeck/notify-agent/api/responses"
	"github.com/helmdeck/notify-agent/api/validators"
	"github.com/helmdeck/notify-agent/internal/center"
	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/models"
)

// GetPreferences fetches the delivery preferences from the preference
// service, falling back to the cached copy inside the store on error.
func GetPreferences(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}

		prefs, err := svc.Preferences(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prefs)
	}
}

// UpdatePreferences applies a partial preference update. The cache only
// changes once the preference service confirms the write.
func UpdatePreferences(svc center.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notification center unavailable"))
			return
		}

		var patch models.PreferencesPatch
		if err := validators.DecodeJSONBody(r, &patch); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if patch.IsEmpty() {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "patch carries no changes"))
			return
		}

		prefs, err := svc.UpdatePreferences(r.Context(), patch)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, prefs)
	}
}
