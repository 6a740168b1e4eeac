// Package wire holds the push-channel payload contracts: inbound
// notification frames and outbound control messages.
package wire

import (
	"encoding/json"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
	"github.com/helmdeck/notify-agent/pkg/enums"
	"github.com/helmdeck/notify-agent/pkg/models"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" {
			return f.Name
		}
		return tag
	})
	return v
}

// Frame is one inbound push payload. Unknown extra fields are tolerated
// so the gateway can evolve ahead of deployed agents.
type Frame struct {
	ID        string         `json:"id" validate:"omitempty,max=128"`
	Title     string         `json:"title" validate:"required,max=256"`
	Message   string         `json:"message" validate:"required,max=4096"`
	Type      string         `json:"type" validate:"required,oneof=info warning error success critical"`
	Channel   string         `json:"channel" validate:"required,oneof=email chat push in_app webhook"`
	Priority  int            `json:"priority"`
	CreatedAt string         `json:"createdAt" validate:"omitempty"`
	Metadata  map[string]any `json:"metadata"`
}

// DecodeFrame parses and validates an inbound frame. The returned error
// marks the frame malformed; callers drop it without touching the
// connection. Missing ids get a generated one, a missing createdAt falls
// back to the ingestion time, and a present but unparseable createdAt is
// a malformed frame.
func DecodeFrame(data []byte, now time.Time) (models.Notification, error) {
	var frame Frame
	if err := json.Unmarshal(data, &frame); err != nil {
		return models.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frame payload")
	}
	if err := validate.Struct(&frame); err != nil {
		return models.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frame fields")
	}

	createdAt := now.UTC()
	if frame.CreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, frame.CreatedAt)
		if err != nil {
			return models.Notification{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid frame createdAt")
		}
		createdAt = parsed.UTC()
	}

	id := frame.ID
	if id == "" {
		id = uuid.NewString()
	}

	return models.Notification{
		ID:        id,
		Title:     frame.Title,
		Message:   frame.Message,
		Type:      enums.Severity(frame.Type),
		Channel:   enums.Channel(frame.Channel),
		Priority:  frame.Priority,
		CreatedAt: createdAt,
		Metadata:  frame.Metadata,
	}, nil
}
