// FilePath: internal/shift/shift.go
package shift

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fabwatch/factoryhub/internal/models"
)

// Window is the configured daily work shift. All decisions are pure
// functions of wall-clock input; the timezone and bounds are fixed at
// process start.
type Window struct {
	loc      *time.Location
	startMin int
	endMin   int
}

// New builds a shift window from "hh:mm" bounds and an IANA timezone name.
// The end bound is exclusive and must lie after the start bound.
func New(start, end, timezone string) (*Window, error) {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid shift timezone %q: %w", timezone, err)
	}

	startMin, err := parseClock(start)
	if err != nil {
		return nil, fmt.Errorf("invalid shift start: %w", err)
	}
	endMin, err := parseClock(end)
	if err != nil {
		return nil, fmt.Errorf("invalid shift end: %w", err)
	}
	if endMin <= startMin {
		return nil, fmt.Errorf("shift end %s must be after start %s", end, start)
	}

	return &Window{loc: loc, startMin: startMin, endMin: endMin}, nil
}

// Contains reports whether t falls inside [start, end) of the shift,
// compared at minute granularity in the shift timezone.
func (w *Window) Contains(t time.Time) bool {
	local := t.In(w.loc)
	minute := local.Hour()*60 + local.Minute()
	return minute >= w.startMin && minute < w.endMin
}

// DateKey returns the calendar date of t in the shift timezone, offset
// by whole days. Offset -1 is yesterday, +1 tomorrow.
func (w *Window) DateKey(t time.Time, offsetDays int) string {
	return t.In(w.loc).AddDate(0, 0, offsetDays).Format(models.DateKeyLayout)
}

// LengthHours is the shift duration in hours.
func (w *Window) LengthHours() float64 {
	return float64(w.endMin-w.startMin) / 60.0
}

// NextEnd returns the first shift-end instant strictly after t.
func (w *Window) NextEnd(t time.Time) time.Time {
	local := t.In(w.loc)
	end := time.Date(local.Year(), local.Month(), local.Day(),
		w.endMin/60, w.endMin%60, 0, 0, w.loc)
	if !end.After(local) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}

func parseClock(s string) (int, error) {
	parts := strings.Split(s, ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("expected hh:mm, got %q", s)
	}
	hour, err := strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, fmt.Errorf("bad hour in %q", s)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, fmt.Errorf("bad minute in %q", s)
	}
	return hour*60 + minute, nil
}
