package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// ErrInvalidTimestamp is returned when a non-empty timestamp string cannot be parsed.
var ErrInvalidTimestamp = errors.New("invalid timestamp")

// timestampLayouts are tried in order before falling back to dateparse.
// They cover the formats the status feeds and porthistory actually emit.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
}

// zoneOffsets resolves zone abbreviations that time.Parse would otherwise
// record with a zero offset. Values are seconds east of UTC.
var zoneOffsets = map[string]int{
	"UTC": 0,
	"GMT": 0,
	"Z":   0,
	"EST": -5 * 3600,
	"EDT": -4 * 3600,
	"CST": -6 * 3600,
	"CDT": -5 * 3600,
	"MST": -7 * 3600,
	"MDT": -6 * 3600,
	"PST": -8 * 3600,
	"PDT": -7 * 3600,
}

// ParseTimestamp parses a free-text timestamp into a UTC instant.
// Empty or whitespace-only input returns ok=false with a nil error.
func ParseTimestamp(s string) (t time.Time, ok bool, err error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false, nil
	}

	for _, layout := range timestampLayouts {
		if parsed, perr := time.Parse(layout, s); perr == nil {
			return resolveZone(parsed).UTC(), true, nil
		}
	}

	parsed, perr := dateparse.ParseAny(s)
	if perr != nil {
		return time.Time{}, false, fmt.Errorf("%w %q: %v", ErrInvalidTimestamp, s, perr)
	}
	return resolveZone(parsed).UTC(), true, nil
}

// NormalizeTime converts a native time value to UTC. A nil or zero value is absent.
func NormalizeTime(t *time.Time) (time.Time, bool) {
	if t == nil || t.IsZero() {
		return time.Time{}, false
	}
	return t.UTC(), true
}

// resolveZone re-applies the real offset for abbreviations time.Parse did not know.
func resolveZone(t time.Time) time.Time {
	name, offset := t.Zone()
	known, ok := zoneOffsets[name]
	if !ok || known == offset {
		return t
	}
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), t.Nanosecond(),
		time.FixedZone(name, known))
}

// DateOf truncates an instant to its UTC calendar day.
func DateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
