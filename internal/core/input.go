package core

import (
	"fmt"
	"strings"
	"time"
)

// timestampLayouts are tried in order for record timestamps. Layouts without
// a zone are read in the calendar's location.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseDate reads a YYYY-MM-DD value as local midnight in loc. Empty means
// now.
func ParseDate(v string, loc *time.Location, now time.Time) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return now, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, v, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: expected YYYY-MM-DD", v)
	}
	return t, nil
}

// ParseTimestamp reads a record timestamp. Empty returns the zero time, which
// the service replaces with now.
func ParseTimestamp(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, v, loc); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q: expected RFC 3339 or YYYY-MM-DDTHH:MM", v)
}

// ParsePeriodOrWeek is ParsePeriod with an empty value meaning the week view.
func ParsePeriodOrWeek(v string) (Period, error) {
	if strings.TrimSpace(v) == "" {
		return PeriodWeek, nil
	}
	return ParsePeriod(v)
}

// ResolveMonth fills a zero year or month from now and range-checks the rest.
func ResolveMonth(year, month int, now time.Time) (int, time.Month, error) {
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if year < 1 || year > 9999 {
		return 0, 0, fmt.Errorf("invalid year %d", year)
	}
	if month < 1 || month > 12 {
		return 0, 0, fmt.Errorf("invalid month %d: must be between 1 and 12", month)
	}
	return year, time.Month(month), nil
}
