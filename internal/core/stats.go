package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
)

const (
	Previous Direction = -1
	Next     Direction = 1
)

type (
	// Period is the granularity of a statistics report.
	Period string

	// Direction moves a reference date backwards or forwards by one period.
	Direction int

	// Counts holds one quantity per beverage type, indexed by BeverageType.
	Counts [beverageTypeCount]int

	// DrinkStats is one bucket of a report: its start and per-type quantities.
	DrinkStats struct {
		Date   time.Time
		Counts Counts
	}

	// TypeTotal is a per-type period total, used for summary tiles.
	TypeTotal struct {
		Type  BeverageType
		Count int
	}
)

// ParsePeriod accepts "day", "week" or "month" (case-insensitive).
func ParsePeriod(s string) (Period, error) {
	p := Period(strings.ToLower(strings.TrimSpace(s)))
	if !p.Valid() {
		return "", fmt.Errorf("invalid period %q: must be day, week or month", s)
	}
	return p, nil
}

func (p Period) Valid() bool {
	switch p {
	case PeriodDay, PeriodWeek, PeriodMonth:
		return true
	default:
		return false
	}
}

func (p Period) String() string { return string(p) }

// ParseDirection accepts next/prev and their common spellings.
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "next", "forward", "+1", "1":
		return Next, nil
	case "prev", "previous", "back", "-1":
		return Previous, nil
	default:
		return 0, fmt.Errorf("invalid direction %q: must be next or prev", s)
	}
}

// Count returns the quantity recorded for t in this bucket.
func (s DrinkStats) Count(t BeverageType) int {
	if !t.Valid() {
		return 0
	}
	return s.Counts[t]
}

// Total is the sum over all beverage types.
func (s DrinkStats) Total() int {
	total := 0
	for _, n := range s.Counts {
		total += n
	}
	return total
}

// Equal compares buckets structurally: same instant and same counts.
func (s DrinkStats) Equal(o DrinkStats) bool {
	return s.Date.Equal(o.Date) && s.Counts == o.Counts
}

// PeriodBoundaries returns the half-open interval of the period containing ref.
func (c Calendar) PeriodBoundaries(p Period, ref time.Time) Interval {
	switch p {
	case PeriodDay:
		start := c.StartOfDay(ref)
		return Interval{Start: start, End: start.AddDate(0, 0, 1)}
	case PeriodWeek:
		start := c.StartOfWeek(ref)
		return Interval{Start: start, End: start.AddDate(0, 0, 7)}
	case PeriodMonth:
		start := c.StartOfMonth(ref)
		return Interval{Start: start, End: start.AddDate(0, 1, 0)}
	default:
		return Interval{}
	}
}

// Slots cuts the period containing ref into its buckets: 24 hours for a day,
// 7 days for a week, one day per calendar day for a month.
//
// Hour slots are fixed 1h offsets from local midnight, so on a DST switch day
// the last slot may end before or after the next midnight.
func (c Calendar) Slots(p Period, ref time.Time) []Interval {
	switch p {
	case PeriodDay:
		start := c.StartOfDay(ref)
		slots := make([]Interval, 24)
		for h := range slots {
			s := start.Add(time.Duration(h) * time.Hour)
			slots[h] = Interval{Start: s, End: s.Add(time.Hour)}
		}
		return slots
	case PeriodWeek:
		return dailySlots(c.StartOfWeek(ref), 7)
	case PeriodMonth:
		start := c.StartOfMonth(ref)
		return dailySlots(start, DaysInMonth(start.Year(), start.Month()))
	default:
		return nil
	}
}

func dailySlots(start time.Time, n int) []Interval {
	slots := make([]Interval, n)
	for i := range slots {
		slots[i] = Interval{Start: start.AddDate(0, 0, i), End: start.AddDate(0, 0, i+1)}
	}
	return slots
}

// BucketsForPeriod aggregates records into the buckets of the period
// containing ref. Each bucket sums the Quantity of the records whose
// timestamp falls in its half-open interval.
//
// Week and month results are dense (every bucket present). Day results are
// sparse: hours without any drink are left out.
func (c Calendar) BucketsForPeriod(records []Record, p Period, ref time.Time) []DrinkStats {
	slots := c.Slots(p, ref)
	if len(slots) == 0 {
		return nil
	}

	buckets := make([]DrinkStats, len(slots))
	for i, s := range slots {
		buckets[i].Date = s.Start
	}

	first, last := slots[0].Start, slots[len(slots)-1].End
	for _, r := range records {
		if r.Timestamp.Before(first) || !r.Timestamp.Before(last) {
			continue
		}
		// slots are contiguous and ascending
		i := sort.Search(len(slots), func(i int) bool { return r.Timestamp.Before(slots[i].End) })
		if i == len(slots) || !slots[i].Contains(r.Timestamp) {
			continue
		}
		t := r.Type
		if !t.Valid() {
			t = Coffee
		}
		buckets[i].Counts[t] += r.Quantity
	}

	if p != PeriodDay {
		return buckets
	}
	sparse := buckets[:0]
	for _, b := range buckets {
		if b.Total() > 0 {
			sparse = append(sparse, b)
		}
	}
	return sparse
}

// TotalsByType sums each type across buckets. Types with a zero total are
// omitted.
func TotalsByType(buckets []DrinkStats) map[BeverageType]int {
	var sums Counts
	for _, b := range buckets {
		for t, n := range b.Counts {
			sums[t] += n
		}
	}
	totals := make(map[BeverageType]int)
	for t, n := range sums {
		if n != 0 {
			totals[BeverageType(t)] = n
		}
	}
	return totals
}

// OrderedTotals lists totals in display order, skipping zero entries.
func OrderedTotals(totals map[BeverageType]int) []TypeTotal {
	out := make([]TypeTotal, 0, len(totals))
	for _, t := range BeverageTypes() {
		if n := totals[t]; n != 0 {
			out = append(out, TypeTotal{Type: t, Count: n})
		}
	}
	return out
}

// AdvancePeriod shifts ref by one day, week or month. Month moves keep the
// day of month when possible and clamp it otherwise (Jan 31 -> Feb 29).
func (c Calendar) AdvancePeriod(p Period, ref time.Time, dir Direction) time.Time {
	ref = c.In(ref)
	step := int(dir)
	switch p {
	case PeriodDay:
		return ref.AddDate(0, 0, step)
	case PeriodWeek:
		return ref.AddDate(0, 0, 7*step)
	case PeriodMonth:
		return addMonthsClamped(ref, step)
	default:
		return ref
	}
}

func addMonthsClamped(t time.Time, months int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	target := time.Date(y, m+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if dim := DaysInMonth(target.Year(), target.Month()); d > dim {
		d = dim
	}
	return time.Date(target.Year(), target.Month(), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

// AllowsForward reports whether next may be shown given the current time.
// Only year and month are compared: any date in the current month passes,
// any date in a later month does not.
func (c Calendar) AllowsForward(next, now time.Time) bool {
	ny, nm, _ := c.In(next).Date()
	cy, cm, _ := c.In(now).Date()
	return ny*12+int(nm) <= cy*12+int(cm)
}

// FilterRange returns the records inside iv, oldest first.
func FilterRange(records []Record, iv Interval) []Record {
	out := make([]Record, 0)
	for _, r := range records {
		if iv.Contains(r.Timestamp) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out
}

// SumQuantity totals the quantity of records.
func SumQuantity(records []Record) int {
	total := 0
	for _, r := range records {
		total += r.Quantity
	}
	return total
}

// DaySummary is one cell of the month calendar: the day, how much was drunk
// and which beverages appear.
type DaySummary struct {
	Date  time.Time
	Total int
	Types []BeverageType
}

// MonthDays summarises every day of the month containing ref.
func (c Calendar) MonthDays(records []Record, ref time.Time) []DaySummary {
	buckets := c.BucketsForPeriod(records, PeriodMonth, ref)
	days := make([]DaySummary, len(buckets))
	for i, b := range buckets {
		days[i] = DaySummary{Date: b.Date, Total: b.Total()}
		for _, t := range BeverageTypes() {
			if b.Count(t) > 0 {
				days[i].Types = append(days[i].Types, t)
			}
		}
	}
	return days
}
