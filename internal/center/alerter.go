package center

import (
	"context"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/logger"
	"github.com/helmdeck/notify-agent/pkg/models"
)

// LogAlerter surfaces alerts through the structured log. It stands in
// for platform alert integrations such as desktop toasts or sounds.
type LogAlerter struct {
	logg *logger.Logger
}

// NewLogAlerter wires the log-backed alerter.
func NewLogAlerter(logg *logger.Logger) (*LogAlerter, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &LogAlerter{logg: logg}, nil
}

// Alert writes one structured alert line for the notification.
func (a *LogAlerter) Alert(ctx context.Context, n models.Notification) {
	ctx = a.logg.WithFields(ctx, map[string]any{
		"notification_id": n.ID,
		"type":            string(n.Type),
		"channel":         string(n.Channel),
		"title":           n.Title,
	})
	a.logg.Info(ctx, "notification alert raised")
}
