package wire

import (
	"encoding/json"

	pkgerrors "github.com/helmdeck/notify-agent/pkg/errors"
)

type Action string

const (
	ActionMarkRead Action = "mark_read"
	ActionDelete   Action = "delete"
)

// ControlMessage is the outbound contract: an advisory state echo sent
// to the gateway after a local mutation.
type ControlMessage struct {
	Action         Action `json:"action" validate:"required,oneof=mark_read delete"`
	NotificationID string `json:"notificationId" validate:"required,max=128"`
}

func (m ControlMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeControl parses a control message on the gateway side.
func DecodeControl(data []byte) (ControlMessage, error) {
	var msg ControlMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return ControlMessage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid control payload")
	}
	if err := validate.Struct(&msg); err != nil {
		return ControlMessage{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid control fields")
	}
	return msg, nil
}
