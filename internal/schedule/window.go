// Package schedule implements pure time-window and day-of-week evaluation
// for recurring sessions. It performs no I/O and holds no state.
package schedule

import (
	"fmt"
	"time"
)

const (
	minutesPerDay = 24 * 60

	// MinWindowMinutes is the shortest window a recurring session may
	// define. Anything shorter is treated as invalid and never matches.
	MinWindowMinutes = 5
)

// Window is a daily time-of-day interval. The end bound is exclusive, and a
// window whose end is at or before its start wraps across midnight.
type Window struct {
	StartHour   int `json:"start_hour"`
	StartMinute int `json:"start_minute"`
	EndHour     int `json:"end_hour"`
	EndMinute   int `json:"end_minute"`
}

// MinuteOfDay converts an hour/minute pair to minutes since midnight.
func MinuteOfDay(hour, minute int) int {
	return hour*60 + minute
}

// Start returns the window start as minutes since midnight.
func (w Window) Start() int { return MinuteOfDay(w.StartHour, w.StartMinute) }

// End returns the window end as minutes since midnight.
func (w Window) End() int { return MinuteOfDay(w.EndHour, w.EndMinute) }

// DurationMinutes returns the effective window length with midnight-wrap
// arithmetic. A zero-length window has duration 0.
func (w Window) DurationMinutes() int {
	start, end := w.Start(), w.End()
	if start == end {
		return 0
	}
	if end > start {
		return end - start
	}
	return (minutesPerDay - start) + end
}

// Valid reports whether the window fields are in range and the effective
// duration meets the enforced minimum.
func (w Window) Valid() bool {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 {
		return false
	}
	if w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
		return false
	}
	return w.DurationMinutes() >= MinWindowMinutes
}

// Validate returns a descriptive error when the window is unusable.
func (w Window) Validate() error {
	if w.StartHour < 0 || w.StartHour > 23 || w.EndHour < 0 || w.EndHour > 23 ||
		w.StartMinute < 0 || w.StartMinute > 59 || w.EndMinute < 0 || w.EndMinute > 59 {
		return fmt.Errorf("window bounds out of range: %02d:%02d-%02d:%02d",
			w.StartHour, w.StartMinute, w.EndHour, w.EndMinute)
	}
	if w.Start() == w.End() {
		return fmt.Errorf("window start equals end (%02d:%02d)", w.StartHour, w.StartMinute)
	}
	if d := w.DurationMinutes(); d < MinWindowMinutes {
		return fmt.Errorf("window duration %dm below minimum %dm", d, MinWindowMinutes)
	}
	return nil
}

// InWindow reports whether nowMin (minutes since midnight) falls inside the
// interval [startMin, endMin). Windows whose end is at or before their start
// wrap across midnight. Invalid windows never match.
func InWindow(nowMin, startMin, endMin int) bool {
	if startMin == endMin {
		return false
	}
	var duration int
	if endMin > startMin {
		duration = endMin - startMin
	} else {
		duration = (minutesPerDay - startMin) + endMin
	}
	if duration < MinWindowMinutes {
		return false
	}
	if endMin > startMin {
		return nowMin >= startMin && nowMin < endMin
	}
	// Wrap case: the end bound stays exclusive so back-to-back windows
	// never double-fire at the boundary instant.
	return nowMin >= startMin || nowMin < endMin
}

// Contains reports whether the wall-clock instant falls inside the window.
func (w Window) Contains(now time.Time) bool {
	return InWindow(MinuteOfDay(now.Hour(), now.Minute()), w.Start(), w.End())
}

// StartOn returns the wall-clock start of the window occurrence that contains
// or most recently preceded now on the given day. Used to anchor log entries
// for wrap windows entered before midnight.
func (w Window) StartOn(now time.Time) time.Time {
	start := time.Date(now.Year(), now.Month(), now.Day(), w.StartHour, w.StartMinute, 0, 0, now.Location())
	if start.After(now) {
		start = start.AddDate(0, 0, -1)
	}
	return start
}

// EndAfter returns the wall-clock end of the window occurrence containing now.
func (w Window) EndAfter(now time.Time) time.Time {
	end := time.Date(now.Year(), now.Month(), now.Day(), w.EndHour, w.EndMinute, 0, 0, now.Location())
	if !end.After(now) {
		end = end.AddDate(0, 0, 1)
	}
	return end
}
