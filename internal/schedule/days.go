package schedule

import (
	"fmt"
	"time"
)

// DaySet is a set of ISO weekday indexes, 1=Monday through 7=Sunday.
type DaySet []int

// EveryDay covers the whole week.
func EveryDay() DaySet { return DaySet{1, 2, 3, 4, 5, 6, 7} }

// Contains reports whether the ISO day index is in the set.
func (d DaySet) Contains(day int) bool {
	for _, v := range d {
		if v == day {
			return true
		}
	}
	return false
}

// Validate rejects empty sets and out-of-range indexes.
func (d DaySet) Validate() error {
	if len(d) == 0 {
		return fmt.Errorf("day set is empty")
	}
	for _, v := range d {
		if v < 1 || v > 7 {
			return fmt.Errorf("day index %d out of range 1..7", v)
		}
	}
	return nil
}

// ISODay converts Go's Sunday-first weekday numbering to the ISO convention
// where Monday is 1 and Sunday is 7.
func ISODay(wd time.Weekday) int {
	if wd == time.Sunday {
		return 7
	}
	return int(wd)
}

// ActiveOn reports whether the instant's weekday is in the set.
func (d DaySet) ActiveOn(t time.Time) bool {
	return d.Contains(ISODay(t.Weekday()))
}
