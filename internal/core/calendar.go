package core

import (
	"fmt"
	"strings"
	"time"
)

// Calendar carries the time zone and week convention used to cut time into
// days, weeks and months.
type Calendar struct {
	Location     *time.Location
	FirstWeekday time.Weekday
}

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// DefaultCalendar uses the process time zone and Sunday-first weeks.
func DefaultCalendar() Calendar {
	return Calendar{Location: time.Local, FirstWeekday: time.Sunday}
}

// NewCalendar builds a calendar from a zone name ("" or "Local" for the
// process zone) and a week start ("sunday" or "monday").
func NewCalendar(zone, weekStart string) (Calendar, error) {
	cal := DefaultCalendar()
	if zone != "" && !strings.EqualFold(zone, "local") {
		loc, err := time.LoadLocation(zone)
		if err != nil {
			return Calendar{}, fmt.Errorf("load location %q: %w", zone, err)
		}
		cal.Location = loc
	}
	wd, err := ParseWeekday(weekStart)
	if err != nil {
		return Calendar{}, err
	}
	cal.FirstWeekday = wd
	return cal, nil
}

// ParseWeekday accepts full English weekday names; empty means Sunday.
func ParseWeekday(s string) (time.Weekday, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return time.Sunday, nil
	}
	for d := time.Sunday; d <= time.Saturday; d++ {
		if strings.ToLower(d.String()) == s {
			return d, nil
		}
	}
	return time.Sunday, fmt.Errorf("invalid week start %q", s)
}

func (c Calendar) loc() *time.Location {
	if c.Location == nil {
		return time.Local
	}
	return c.Location
}

// In converts t into the calendar's zone.
func (c Calendar) In(t time.Time) time.Time {
	return t.In(c.loc())
}

// StartOfDay returns local midnight of the day containing t.
func (c Calendar) StartOfDay(t time.Time) time.Time {
	y, m, d := c.In(t).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, c.loc())
}

// StartOfWeek returns the start of the day that opens the week containing t.
func (c Calendar) StartOfWeek(t time.Time) time.Time {
	day := c.StartOfDay(t)
	back := (int(day.Weekday()) - int(c.FirstWeekday) + 7) % 7
	return day.AddDate(0, 0, -back)
}

// StartOfMonth returns midnight of the first day of t's month.
func (c Calendar) StartOfMonth(t time.Time) time.Time {
	y, m, _ := c.In(t).Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, c.loc())
}

// GridOffset is the number of blank cells before the first day of t's month
// in a week-row calendar grid.
func (c Calendar) GridOffset(t time.Time) int {
	first := c.StartOfMonth(t)
	return (int(first.Weekday()) - int(c.FirstWeekday) + 7) % 7
}

// DaysInMonth returns the number of days in the given month, leap years
// included.
func DaysInMonth(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Contains reports whether t falls in [Start, End).
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

func (i Interval) Duration() time.Duration {
	return i.End.Sub(i.Start)
}
