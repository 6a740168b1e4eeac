package enums

import "fmt"

// Channel identifies the delivery medium a notification arrived through.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelChat    Channel = "chat"
	ChannelPush    Channel = "push"
	ChannelInApp   Channel = "in_app"
	ChannelWebhook Channel = "webhook"
)

var validChannels = []Channel{
	ChannelEmail,
	ChannelChat,
	ChannelPush,
	ChannelInApp,
	ChannelWebhook,
}

// IsValid checks whether the given channel matches the canonical enum.
func (c Channel) IsValid() bool {
	for _, candidate := range validChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseChannel converts raw strings into Channel.
func ParseChannel(value string) (Channel, error) {
	for _, candidate := range validChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid channel %q", value)
}

// Interruptive reports whether the channel produces an out-of-band alert
// (push/email) as opposed to purely passive logging.
func (c Channel) Interruptive() bool {
	return c == ChannelPush || c == ChannelEmail
}

// Channels returns the canonical ordering used for filter options.
func Channels() []Channel {
	out := make([]Channel, len(validChannels))
	copy(out, validChannels)
	return out
}
