package shared

import (
	"strings"
	"time"

	"staffdesk/internal/apperr"
)

// ParseDate accepts RFC3339 or YYYY-MM-DD.
func ParseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if parsed, err := time.Parse(time.RFC3339, value); err == nil {
		return parsed, nil
	}
	return time.Parse("2006-01-02", value)
}

// OptionalDate parses raw into a date, recording an issue on v when it is
// present but malformed. Blank input yields nil.
func OptionalDate(v *apperr.Validator, field, raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		v.Add(field, "must be a valid date in YYYY-MM-DD format")
		return nil
	}
	return &parsed
}
