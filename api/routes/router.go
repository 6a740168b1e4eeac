package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/helmdeck/notify-agent/api/controllers"
	"github.com/helmdeck/notify-agent/api/middleware"
	"github.com/helmdeck/notify-agent/internal/center"
	"github.com/helmdeck/notify-agent/internal/stream"
	"github.com/helmdeck/notify-agent/pkg/config"
	"github.com/helmdeck/notify-agent/pkg/logger"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	centerService center.Service,
	hub *stream.Hub,
	registry *prometheus.Registry,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(cfg.CORS),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg))
	})

	if registry != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{
			ErrorHandling: promhttp.ContinueOnError,
		}))
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(centerService, logg))
			r.Get("/unread-count", controllers.UnreadNotificationsCount(centerService, logg))
			r.Get("/filter-options", controllers.NotificationFilterOptions(centerService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(centerService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(centerService, logg))
			r.Delete("/{notificationId}", controllers.DeleteNotification(centerService, logg))
			r.Delete("/", controllers.ClearNotifications(centerService, logg))
		})

		r.Route("/preferences", func(r chi.Router) {
			r.Get("/", controllers.GetPreferences(centerService, logg))
			r.Patch("/", controllers.UpdatePreferences(centerService, logg))
		})

		r.Get("/connection", controllers.ConnectionStatus(centerService, logg))
		r.Get("/events", controllers.Events(hub, logg))
	})

	return r
}
