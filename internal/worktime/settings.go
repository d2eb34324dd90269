// Package worktime measures durations restricted to a business calendar.
package worktime

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Clock is a wall-clock time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM" in 24h notation. "24:00" is not accepted.
func ParseClock(value string) (Clock, error) {
	raw := strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(raw, ":")
	if !ok {
		return Clock{}, fmt.Errorf("invalid time of day %q: expected HH:MM", value)
	}
	hour, err := strconv.Atoi(hh)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("invalid hour in %q", value)
	}
	minute, err := strconv.Atoi(mm)
	if err != nil || len(mm) != 2 || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("invalid minute in %q", value)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

// MustClock is ParseClock for constants; it panics on bad input.
func MustClock(value string) Clock {
	c, err := ParseClock(value)
	if err != nil {
		panic(err)
	}
	return c
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

func (c Clock) minutes() int {
	return c.Hour*60 + c.Minute
}

// on returns the instant of c on the calendar day of day in loc.
func (c Clock) on(day time.Time, loc *time.Location) time.Time {
	y, m, d := day.Date()
	return time.Date(y, m, d, c.Hour, c.Minute, 0, 0, loc)
}

// Settings is the business calendar. The zero Location means UTC.
type Settings struct {
	WorkStart  Clock
	WorkEnd    Clock
	WorkDays   []time.Weekday
	BreakStart *Clock
	BreakEnd   *Clock
	Location   *time.Location
}

// Validate checks that the calendar can produce working time.
func (s Settings) Validate() error {
	if s.WorkEnd.minutes() <= s.WorkStart.minutes() {
		return fmt.Errorf("work end %s must be after work start %s", s.WorkEnd, s.WorkStart)
	}
	for _, day := range s.WorkDays {
		if day < time.Sunday || day > time.Saturday {
			return fmt.Errorf("invalid work day %d", day)
		}
	}
	if (s.BreakStart == nil) != (s.BreakEnd == nil) {
		return fmt.Errorf("break start and end must be set together")
	}
	if s.BreakStart != nil && s.BreakEnd.minutes() <= s.BreakStart.minutes() {
		return fmt.Errorf("break end %s must be after break start %s", s.BreakEnd, s.BreakStart)
	}
	return nil
}

// HasBreak reports whether a break window is configured.
func (s Settings) HasBreak() bool {
	return s.BreakStart != nil && s.BreakEnd != nil
}

func (s Settings) location() *time.Location {
	if s.Location == nil {
		return time.UTC
	}
	return s.Location
}

func (s Settings) isWorkDay(day time.Weekday) bool {
	for _, d := range s.WorkDays {
		if d == day {
			return true
		}
	}
	return false
}

// dailyCapacity is the working time of a plain working day.
func (s Settings) dailyCapacity() time.Duration {
	window := time.Duration(s.WorkEnd.minutes()-s.WorkStart.minutes()) * time.Minute
	if window <= 0 {
		return 0
	}
	if s.HasBreak() {
		lo := max(s.BreakStart.minutes(), s.WorkStart.minutes())
		hi := min(s.BreakEnd.minutes(), s.WorkEnd.minutes())
		if hi > lo {
			window -= time.Duration(hi-lo) * time.Minute
		}
	}
	return window
}
