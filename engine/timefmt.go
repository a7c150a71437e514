package engine

import (
	"time"

	"github.com/tecpap/lineplan/errors"
)

// MinuteLayout is the wire format for all timestamps: ISO 8601 local
// time truncated to minutes, e.g. "2026-01-05T08:00".
const MinuteLayout = "2006-01-02T15:04"

var parseLayouts = []string{
	MinuteLayout,
	"2006-01-02T15:04:05",
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// ParseMinute parses an ISO 8601 timestamp, with or without seconds or
// a zone offset.
func ParseMinute(s string) (time.Time, error) {
	for _, layout := range parseLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.Newf("invalid timestamp %q", s)
}

// FormatMinute renders a timestamp in the wire format.
func FormatMinute(t time.Time) string {
	return t.Format(MinuteLayout)
}

// minutesBetween returns whole minutes from one instant to another.
func minutesBetween(from, to time.Time) int {
	return int(to.Sub(from) / time.Minute)
}
