package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"coffeetea/internal/chart"
	"coffeetea/internal/cli"
	"coffeetea/internal/core"
)

const chartWidth = 40

func newStatsCmd() *cobra.Command {
	var (
		period string
		date   string
		shift  int
		width  int
	)

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Chart consumption for a day, week or month",
		RunE: func(cmd *cobra.Command, _ []string) error {
			p, err := core.ParsePeriodOrWeek(period)
			if err != nil {
				return err
			}
			return runWithApp(cmd, func(ctx context.Context, app *cli.App) error {
				svc := app.Service
				ref, err := core.ParseDate(date, svc.Calendar().Location, svc.Now())
				if err != nil {
					return err
				}
				ref, err = shiftPeriod(app, p, ref, shift)
				if err != nil {
					return err
				}
				report, err := svc.Stats(ctx, p, ref)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(),
					chart.Report(report.Period, report.Interval, report.Buckets, report.Totals, width))
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&period, "period", "p", "week", "day, week or month")
	cmd.Flags().StringVar(&date, "date", "", "reference date, YYYY-MM-DD (default today)")
	cmd.Flags().IntVar(&shift, "shift", 0, "move by this many periods, negative is backwards")
	cmd.Flags().IntVar(&width, "width", chartWidth, "bar width in cells")
	return cmd
}

// shiftPeriod navigates n periods from ref. Moving past the current month
// stops with an error.
func shiftPeriod(app *cli.App, p core.Period, ref time.Time, n int) (time.Time, error) {
	dir := core.Next
	if n < 0 {
		dir, n = core.Previous, -n
	}
	for i := 0; i < n; i++ {
		next, err := app.Service.Navigate(p, ref, dir)
		if err != nil {
			return ref, err
		}
		ref = next
	}
	return ref, nil
}

func newCalendarCmd() *cobra.Command {
	var year, month int

	cmd := &cobra.Command{
		Use:   "calendar",
		Short: "Show a month calendar with drink days marked",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *cli.App) error {
				svc := app.Service
				y, m, err := core.ResolveMonth(year, month, svc.Now())
				if err != nil {
					return err
				}
				first := time.Date(y, m, 1, 0, 0, 0, 0, svc.Calendar().Location)
				days, err := svc.MonthCalendar(ctx, first)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), chart.Calendar(svc.Calendar(), days))
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&year, "year", 0, "year (default current)")
	cmd.Flags().IntVar(&month, "month", 0, "month 1-12 (default current)")
	return cmd
}
