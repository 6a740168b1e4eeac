package enums

import "fmt"

// Severity classifies how urgent a notification is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityError    Severity = "error"
	SeveritySuccess  Severity = "success"
	SeverityCritical Severity = "critical"
)

var validSeverities = []Severity{
	SeverityInfo,
	SeverityWarning,
	SeverityError,
	SeveritySuccess,
	SeverityCritical,
}

// IsValid checks whether the given severity matches the canonical enum.
func (s Severity) IsValid() bool {
	for _, candidate := range validSeverities {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseSeverity converts raw strings into Severity.
func ParseSeverity(value string) (Severity, error) {
	for _, candidate := range validSeverities {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid severity %q", value)
}

// Severities returns the canonical ordering used for filter options.
func Severities() []Severity {
	out := make([]Severity, len(validSeverities))
	copy(out, validSeverities)
	return out
}
