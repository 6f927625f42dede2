package http

import (
	"time"

	"coffeetea/internal/core"
	"coffeetea/internal/services"
)

// JSON views of domain values. Times are RFC 3339 in the calendar's zone and
// dates are YYYY-MM-DD.

type recordView struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"`
	Name      string    `json:"name"`
	Emoji     string    `json:"emoji"`
	Quantity  int       `json:"quantity"`
	Timestamp time.Time `json:"timestamp"`
}

type dayView struct {
	Date    string       `json:"date"`
	Total   int          `json:"total"`
	Records []recordView `json:"records"`
}

type bucketView struct {
	Start  time.Time      `json:"start"`
	Counts map[string]int `json:"counts"`
	Total  int            `json:"total"`
}

type statsView struct {
	Period  core.Period    `json:"period"`
	Start   time.Time      `json:"start"`
	End     time.Time      `json:"end"`
	Total   int            `json:"total"`
	Buckets []bucketView   `json:"buckets"`
	Totals  map[string]int `json:"totals"`
}

type navigateView struct {
	Period core.Period `json:"period"`
	Date   string      `json:"date"`
}

type calendarDayView struct {
	Date  string   `json:"date"`
	Total int      `json:"total"`
	Types []string `json:"types"`
}

type calendarView struct {
	Year         int               `json:"year"`
	Month        int               `json:"month"`
	FirstWeekday string            `json:"first_weekday"`
	Offset       int               `json:"offset"`
	Days         []calendarDayView `json:"days"`
}

type todayView struct {
	Date      string `json:"date"`
	Consumed  int    `json:"consumed"`
	Threshold int    `json:"threshold"`
	Warning   bool   `json:"warning"`
}

type beverageView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
}

func newRecordView(cal core.Calendar, r core.Record) recordView {
	return recordView{
		ID:        r.ID,
		Type:      r.Type.String(),
		Name:      r.Type.DisplayName(),
		Emoji:     r.Type.Emoji(),
		Quantity:  r.Quantity,
		Timestamp: cal.In(r.Timestamp),
	}
}

func newDayView(cal core.Calendar, day time.Time, recs []core.Record) dayView {
	v := dayView{
		Date:    cal.StartOfDay(day).Format(time.DateOnly),
		Total:   core.SumQuantity(recs),
		Records: make([]recordView, len(recs)),
	}
	for i, r := range recs {
		v.Records[i] = newRecordView(cal, r)
	}
	return v
}

func countsView(c core.Counts) map[string]int {
	out := make(map[string]int, len(c))
	for _, t := range core.BeverageTypes() {
		out[t.String()] = c[t]
	}
	return out
}

func newStatsView(r services.StatsReport) statsView {
	v := statsView{
		Period:  r.Period,
		Start:   r.Interval.Start,
		End:     r.Interval.End,
		Total:   r.Total(),
		Buckets: make([]bucketView, len(r.Buckets)),
		Totals:  make(map[string]int, len(r.Totals)),
	}
	for i, b := range r.Buckets {
		v.Buckets[i] = bucketView{Start: b.Date, Counts: countsView(b.Counts), Total: b.Total()}
	}
	for t, n := range r.Totals {
		v.Totals[t.String()] = n
	}
	return v
}

func newCalendarView(cal core.Calendar, month time.Time, days []core.DaySummary) calendarView {
	v := calendarView{
		Year:         month.Year(),
		Month:        int(month.Month()),
		FirstWeekday: cal.FirstWeekday.String(),
		Offset:       cal.GridOffset(month),
		Days:         make([]calendarDayView, len(days)),
	}
	for i, d := range days {
		types := make([]string, len(d.Types))
		for j, t := range d.Types {
			types[j] = t.String()
		}
		v.Days[i] = calendarDayView{Date: d.Date.Format(time.DateOnly), Total: d.Total, Types: types}
	}
	return v
}

func beverageViews() []beverageView {
	infos := core.Beverages()
	out := make([]beverageView, len(infos))
	for i, info := range infos {
		out[i] = beverageView{ID: info.ID, Name: info.DisplayName, Emoji: info.Emoji, Color: info.Color}
	}
	return out
}
