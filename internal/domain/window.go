package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidWindow is returned when a window ends before it starts.
var ErrInvalidWindow = errors.New("invalid window")

// Window is an inclusive [Start, End] time range in UTC.
type Window struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// NewWindow builds a query window, rejecting End before Start.
func NewWindow(start, end time.Time) (Window, error) {
	start, end = start.UTC(), end.UTC()
	if end.Before(start) {
		return Window{}, fmt.Errorf("%w: end %s is before start %s",
			ErrInvalidWindow, end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return Window{Start: start, End: end}, nil
}

// Duration returns End - Start.
func (w Window) Duration() time.Duration {
	return w.End.Sub(w.Start)
}

// Days lists every calendar day touched by the window, in ascending order.
func (w Window) Days() []time.Time {
	first, last := DateOf(w.Start), DateOf(w.End)
	if last.Before(first) {
		return nil
	}
	days := make([]time.Time, 0, int(last.Sub(first).Hours()/24)+1)
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		days = append(days, d)
	}
	return days
}

// Clamp restricts the incident window [start, end] to the query window.
// It returns ok=false when the two do not overlap. An inverted incident
// window (end before start) is treated as the single instant start.
func Clamp(start, end time.Time, query Window) (Window, bool) {
	if end.Before(start) {
		end = start
	}
	if end.Before(query.Start) || start.After(query.End) {
		return Window{}, false
	}
	return Window{Start: latest(start, query.Start), End: earliest(end, query.End)}, true
}

func latest(a, b time.Time) time.Time {
	if a.After(b) {
		return a
	}
	return b
}

func earliest(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
