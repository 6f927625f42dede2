// Package chart renders beverage statistics for the terminal.
package chart

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"coffeetea/internal/core"
)

const barRune = "█"

var (
	Surface1 = lipgloss.Color("#45475a")
	Subtext0 = lipgloss.Color("#a6adc8")
	Sapphire = lipgloss.Color("#74c7ec")
	Peach    = lipgloss.Color("#fab387")

	Title = lipgloss.NewStyle().Foreground(Sapphire).Bold(true)
	Muted = lipgloss.NewStyle().Foreground(Subtext0)
	Hot   = lipgloss.NewStyle().Foreground(Peach).Bold(true)

	Tile = lipgloss.NewStyle().
		BorderStyle(lipgloss.RoundedBorder()).
		BorderForeground(Surface1).
		Padding(0, 1)
)

// TypeStyle colours text with the beverage's theme colour.
func TypeStyle(t core.BeverageType) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(t.Color()))
}

// BucketLabel names a bucket the way its period is read: hour of day,
// weekday and date, or day of month.
func BucketLabel(p core.Period, start time.Time) string {
	switch p {
	case core.PeriodDay:
		return start.Format("15:04")
	case core.PeriodWeek:
		return start.Format("Mon 02")
	default:
		return start.Format("02")
	}
}

// Bars draws one stacked horizontal bar per bucket. width is the number of
// cells used by the largest bucket.
func Bars(p core.Period, buckets []core.DrinkStats, width int) string {
	if width < 1 {
		width = 40
	}
	peak := 0
	for _, b := range buckets {
		if n := b.Total(); n > peak {
			peak = n
		}
	}
	if peak == 0 {
		return Muted.Render("No drinks recorded")
	}

	var sb strings.Builder
	for i, b := range buckets {
		if i > 0 {
			sb.WriteByte('\n')
		}
		sb.WriteString(Muted.Render(fmt.Sprintf("%-6s", BucketLabel(p, b.Date))))
		sb.WriteByte(' ')
		for _, t := range core.BeverageTypes() {
			n := b.Count(t)
			if n == 0 {
				continue
			}
			cells := n * width / peak
			if cells == 0 {
				cells = 1
			}
			sb.WriteString(TypeStyle(t).Render(strings.Repeat(barRune, cells)))
		}
		if total := b.Total(); total > 0 {
			sb.WriteString(fmt.Sprintf(" %d", total))
		}
	}
	return sb.String()
}

// Tiles renders one bordered box per beverage with a non-zero total.
func Tiles(totals map[core.BeverageType]int) string {
	ordered := core.OrderedTotals(totals)
	if len(ordered) == 0 {
		return Muted.Render("No drinks recorded")
	}
	tiles := make([]string, len(ordered))
	for i, tt := range ordered {
		body := fmt.Sprintf("%s %s\n%s", tt.Type.Emoji(), tt.Type.DisplayName(), Hot.Render(fmt.Sprint(tt.Count)))
		tiles[i] = Tile.BorderForeground(lipgloss.Color(tt.Type.Color())).Render(body)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, tiles...)
}

// Report combines a title, the bar chart and the total tiles.
func Report(p core.Period, iv core.Interval, buckets []core.DrinkStats, totals map[core.BeverageType]int, width int) string {
	title := Title.Render(PeriodTitle(p, iv))
	return lipgloss.JoinVertical(lipgloss.Left, title, "", Bars(p, buckets, width), "", Tiles(totals))
}

// PeriodTitle describes the interval of a report.
func PeriodTitle(p core.Period, iv core.Interval) string {
	switch p {
	case core.PeriodDay:
		return iv.Start.Format("Monday, 2 January 2006")
	case core.PeriodWeek:
		last := iv.End.AddDate(0, 0, -1)
		return fmt.Sprintf("Week %s - %s", iv.Start.Format("2 Jan"), last.Format("2 Jan 2006"))
	default:
		return iv.Start.Format("January 2006")
	}
}

// Calendar draws a month grid. Days with drinks are highlighted and followed
// by a dot.
func Calendar(cal core.Calendar, days []core.DaySummary) string {
	if len(days) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString(Title.Render(days[0].Date.Format("January 2006")))
	sb.WriteByte('\n')
	for i := 0; i < 7; i++ {
		wd := time.Weekday((int(cal.FirstWeekday) + i) % 7)
		sb.WriteString(Muted.Render(fmt.Sprintf("%-4s", wd.String()[:2])))
	}

	col := cal.GridOffset(days[0].Date)
	sb.WriteByte('\n')
	sb.WriteString(strings.Repeat(" ", 4*col))
	for _, d := range days {
		if col == 7 {
			sb.WriteByte('\n')
			col = 0
		}
		cell := fmt.Sprintf("%2d", d.Date.Day())
		if d.Total > 0 {
			cell = Hot.Render(cell) + TypeStyle(d.Types[0]).Render("•") + " "
		} else {
			cell += "  "
		}
		sb.WriteString(cell)
		col++
	}
	return sb.String()
}

// DayList prints the records of one day, oldest first.
func DayList(recs []core.Record) string {
	if len(recs) == 0 {
		return Muted.Render("No drinks recorded")
	}
	lines := make([]string, len(recs))
	for i, r := range recs {
		qty := ""
		if r.Quantity > 1 {
			qty = fmt.Sprintf(" x%d", r.Quantity)
		}
		lines[i] = fmt.Sprintf("%s  %s %s%s  %s",
			r.Timestamp.Format("15:04"),
			r.Type.Emoji(),
			TypeStyle(r.Type).Render(r.Type.DisplayName()),
			qty,
			Muted.Render(r.ID))
	}
	return strings.Join(lines, "\n")
}
