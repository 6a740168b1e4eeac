package models

import (
	"time"

	"github.com/helmdeck/notify-agent/pkg/enums"
)

// UserPreferences holds the per-user delivery settings served by the
// preference service. Channel flags gate alerting, destinations tell the
// backend where to route, and the quiet window suppresses alerts locally.
type UserPreferences struct {
	UserID string `json:"userId"`

	EmailEnabled   bool `json:"emailEnabled"`
	ChatEnabled    bool `json:"chatEnabled"`
	PushEnabled    bool `json:"pushEnabled"`
	InAppEnabled   bool `json:"inAppEnabled"`
	WebhookEnabled bool `json:"webhookEnabled"`

	EmailAddress  string `json:"emailAddress,omitempty" validate:"omitempty,email"`
	ChatChannelID string `json:"chatChannelId,omitempty" validate:"omitempty,max=128"`
	PushDeviceID  string `json:"pushDeviceId,omitempty" validate:"omitempty,max=128"`
	WebhookURL    string `json:"webhookUrl,omitempty" validate:"omitempty,url"`

	// QuietHoursStart/End are "HH:MM" wall-clock bounds. An end before the
	// start wraps past midnight. Empty or equal values disable the window.
	QuietHoursStart string `json:"quietHoursStart,omitempty" validate:"omitempty,len=5"`
	QuietHoursEnd   string `json:"quietHoursEnd,omitempty" validate:"omitempty,len=5"`

	// NotificationTypes lists the severity names the user cares to see in
	// filtered views. Empty means all types.
	NotificationTypes []string `json:"notificationTypes,omitempty"`

	UpdatedAt time.Time `json:"updatedAt,omitempty"`
}

// DefaultPreferences returns the settings used until a load succeeds:
// interruptive and in-app channels on, webhook off, no quiet hours.
func DefaultPreferences(userID string) UserPreferences {
	return UserPreferences{
		UserID:       userID,
		EmailEnabled: true,
		ChatEnabled:  true,
		PushEnabled:  true,
		InAppEnabled: true,
	}
}

// ChannelEnabled reports whether delivery on the given channel is on.
// Unknown channels are off.
func (p *UserPreferences) ChannelEnabled(ch enums.Channel) bool {
	switch ch {
	case enums.ChannelEmail:
		return p.EmailEnabled
	case enums.ChannelChat:
		return p.ChatEnabled
	case enums.ChannelPush:
		return p.PushEnabled
	case enums.ChannelInApp:
		return p.InAppEnabled
	case enums.ChannelWebhook:
		return p.WebhookEnabled
	}
	return false
}

// Clone returns a deep copy of the preferences.
func (p *UserPreferences) Clone() UserPreferences {
	out := *p
	if p.NotificationTypes != nil {
		out.NotificationTypes = append([]string(nil), p.NotificationTypes...)
	}
	return out
}

// PreferencesPatch is a partial update. Nil fields are left untouched.
type PreferencesPatch struct {
	EmailEnabled   *bool `json:"emailEnabled,omitempty"`
	ChatEnabled    *bool `json:"chatEnabled,omitempty"`
	PushEnabled    *bool `json:"pushEnabled,omitempty"`
	InAppEnabled   *bool `json:"inAppEnabled,omitempty"`
	WebhookEnabled *bool `json:"webhookEnabled,omitempty"`

	EmailAddress  *string `json:"emailAddress,omitempty"`
	ChatChannelID *string `json:"chatChannelId,omitempty"`
	PushDeviceID  *string `json:"pushDeviceId,omitempty"`
	WebhookURL    *string `json:"webhookUrl,omitempty"`

	QuietHoursStart *string `json:"quietHoursStart,omitempty"`
	QuietHoursEnd   *string `json:"quietHoursEnd,omitempty"`

	NotificationTypes []string `json:"notificationTypes,omitempty"`
}

// IsEmpty reports whether the patch carries no changes.
func (pp *PreferencesPatch) IsEmpty() bool {
	return pp.EmailEnabled == nil &&
		pp.ChatEnabled == nil &&
		pp.PushEnabled == nil &&
		pp.InAppEnabled == nil &&
		pp.WebhookEnabled == nil &&
		pp.EmailAddress == nil &&
		pp.ChatChannelID == nil &&
		pp.PushDeviceID == nil &&
		pp.WebhookURL == nil &&
		pp.QuietHoursStart == nil &&
		pp.QuietHoursEnd == nil &&
		pp.NotificationTypes == nil
}

// Apply merges the patch into a copy of base and returns it.
func (pp *PreferencesPatch) Apply(base UserPreferences) UserPreferences {
	out := base.Clone()
	if pp.EmailEnabled != nil {
		out.EmailEnabled = *pp.EmailEnabled
	}
	if pp.ChatEnabled != nil {
		out.ChatEnabled = *pp.ChatEnabled
	}
	if pp.PushEnabled != nil {
		out.PushEnabled = *pp.PushEnabled
	}
	if pp.InAppEnabled != nil {
		out.InAppEnabled = *pp.InAppEnabled
	}
	if pp.WebhookEnabled != nil {
		out.WebhookEnabled = *pp.WebhookEnabled
	}
	if pp.EmailAddress != nil {
		out.EmailAddress = *pp.EmailAddress
	}
	if pp.ChatChannelID != nil {
		out.ChatChannelID = *pp.ChatChannelID
	}
	if pp.PushDeviceID != nil {
		out.PushDeviceID = *pp.PushDeviceID
	}
	if pp.WebhookURL != nil {
		out.WebhookURL = *pp.WebhookURL
	}
	if pp.QuietHoursStart != nil {
		out.QuietHoursStart = *pp.QuietHoursStart
	}
	if pp.QuietHoursEnd != nil {
		out.QuietHoursEnd = *pp.QuietHoursEnd
	}
	if pp.NotificationTypes != nil {
		out.NotificationTypes = append([]string(nil), pp.NotificationTypes...)
	}
	return out
}
