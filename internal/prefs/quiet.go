package prefs

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/helmdeck/notify-agent/pkg/models"
)

// QuietWindow is a wall-clock suppression window in minutes since
// midnight. End before start wraps past midnight.
type QuietWindow struct {
	start int
	end   int
}

// NewQuietWindow parses "HH:MM" bounds. Both empty means no window (nil).
func NewQuietWindow(start, end string) (*QuietWindow, error) {
	if start == "" && end == "" {
		return nil, nil
	}
	startMin, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("quiet hours start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("quiet hours end: %w", err)
	}
	return &QuietWindow{start: startMin, end: endMin}, nil
}

// Contains reports whether t's local time of day falls inside [start, end).
// An equal start and end is an empty window.
func (w *QuietWindow) Contains(t time.Time) bool {
	if w == nil || w.start == w.end {
		return false
	}
	m := t.Hour()*60 + t.Minute()
	if w.start < w.end {
		return m >= w.start && m < w.end
	}
	// overnight wraparound, e.g. 22:00-06:00
	return m >= w.start || m < w.end
}

// IsQuietNow reports whether the preferences suppress alerts at the given
// time. Unset or unparseable bounds never suppress.
func IsQuietNow(p models.UserPreferences, now time.Time) bool {
	if p.QuietHoursStart == "" || p.QuietHoursEnd == "" {
		return false
	}
	window, err := NewQuietWindow(p.QuietHoursStart, p.QuietHoursEnd)
	if err != nil {
		return false
	}
	return window.Contains(now)
}

func parseClock(v string) (int, error) {
	parts := strings.SplitN(v, ":", 2)
	if len(parts) != 2 {
		return 0, fmt.Errorf("%q is not HH:MM", v)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("%q has an invalid hour", v)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("%q has an invalid minute", v)
	}
	return hour*60 + minute, nil
}
