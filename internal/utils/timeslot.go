package utils

import (
	"fmt"
	"math"
	"time"
)

// ParseClock parses "HH:MM" into minutes since midnight.
func ParseClock(s string) (int, error) {
	t, err := time.Parse("15:04", s)
	if err != nil {
		return 0, fmt.Errorf("invalid clock time %q: %w", s, err)
	}
	return t.Hour()*60 + t.Minute(), nil
}

// CombineDateAndTime builds the instant for a "YYYY-MM-DD" date and "HH:MM"
// wall clock in loc.
func CombineDateAndTime(date, clock string, loc *time.Location) (time.Time, error) {
	t, err := time.ParseInLocation("2006-01-02 15:04", date+" "+clock, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date/time %q %q: %w", date, clock, err)
	}
	return t, nil
}

// MaxSlotHours caps a single booking.
const MaxSlotHours = 24

// SlotFromDuration returns [start, start+hours). Fractional hours are kept to
// the second.
func SlotFromDuration(start time.Time, hours float64) (time.Time, time.Time, error) {
	if math.IsNaN(hours) || math.IsInf(hours, 0) || hours <= 0 {
		return time.Time{}, time.Time{}, fmt.Errorf("durationHours must be positive")
	}
	if hours > MaxSlotHours {
		return time.Time{}, time.Time{}, fmt.Errorf("durationHours must be at most %d", MaxSlotHours)
	}
	end := start.Add(time.Duration(math.Round(hours*3600)) * time.Second)
	if !end.After(start) {
		return time.Time{}, time.Time{}, fmt.Errorf("durationHours is shorter than one second")
	}
	return start, end, nil
}

// WithinOperatingHours reports whether [start, end) lies inside openAt..closeAt on
// a single local day. Empty open and close mean no restriction.
func WithinOperatingHours(openAt, closeAt string, start, end time.Time, loc *time.Location) (bool, error) {
	if openAt == "" && closeAt == "" {
		return true, nil
	}
	openMin, err := ParseClock(openAt)
	if err != nil {
		return false, err
	}
	closeMin, err := ParseClock(closeAt)
	if err != nil {
		return false, err
	}
	ls, le := start.In(loc), end.In(loc)
	// Boundaries are wall-clock times so DST days keep their hours.
	opens := time.Date(ls.Year(), ls.Month(), ls.Day(), openMin/60, openMin%60, 0, 0, loc)
	closes := time.Date(ls.Year(), ls.Month(), ls.Day(), closeMin/60, closeMin%60, 0, 0, loc)
	// "00:00" as close means midnight at the end of the day.
	if closeMin == 0 {
		closes = time.Date(ls.Year(), ls.Month(), ls.Day()+1, 0, 0, 0, 0, loc)
	}
	return !ls.Before(opens) && !le.After(closes), nil
}
