package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"coffeetea/internal/chart"
	"coffeetea/internal/cli"
	"coffeetea/internal/core"
	"coffeetea/internal/services"
)

func newAddCmd() *cobra.Command {
	var (
		quantity int
		at       string
		confirm  bool
	)

	cmd := &cobra.Command{
		Use:   "add <type>",
		Short: "Record a drink (coffee, tea, lemon_tea, bottled)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			bt, ok := core.LookupBeverageType(args[0])
			if !ok {
				return fmt.Errorf("%w: %q", core.ErrUnknownBeverage, args[0])
			}
			return runMutation(cmd, func(ctx context.Context, app *cli.App) error {
				ts, err := core.ParseTimestamp(at, app.Service.Calendar().Location)
				if err != nil {
					return err
				}
				rec, err := app.Service.AddRecord(ctx, services.AddRequest{
					Type:      bt,
					Quantity:  quantity,
					Timestamp: ts,
					Confirm:   confirm,
				})
				var warn *services.WarningError
				if errors.As(err, &warn) {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), chart.Hot.Render(warn.Error()))
					return fmt.Errorf("not recorded: rerun with --yes to confirm")
				}
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "recorded %s %s x%d at %s (%s)\n",
					rec.Type.Emoji(), rec.Type.DisplayName(), rec.Quantity,
					rec.Timestamp.Format("2006-01-02 15:04"), rec.ID)
				return nil
			})
		},
	}
	cmd.Flags().IntVarP(&quantity, "quantity", "q", core.MinQuantity, "number of drinks (1-10)")
	cmd.Flags().StringVar(&at, "at", "", "when it was drunk, RFC 3339 or YYYY-MM-DDTHH:MM (default now)")
	cmd.Flags().BoolVarP(&confirm, "yes", "y", false, "confirm past the daily warning threshold")
	return cmd
}

func newDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a recorded drink",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMutation(cmd, func(ctx context.Context, app *cli.App) error {
				if err := app.Service.DeleteRecord(ctx, args[0]); err != nil {
					return err
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
				return nil
			})
		},
	}
}

func newDayCmd() *cobra.Command {
	var date string

	cmd := &cobra.Command{
		Use:   "day",
		Short: "List the drinks of one day",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *cli.App) error {
				day, err := core.ParseDate(date, app.Service.Calendar().Location, app.Service.Now())
				if err != nil {
					return err
				}
				recs, err := app.Service.RecordsForDay(ctx, day)
				if err != nil {
					return err
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), chart.Title.Render(day.Format("Monday, 2 January 2006")))
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), chart.DayList(recs))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "day to list, YYYY-MM-DD (default today)")
	return cmd
}

func newTodayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "today",
		Short: "Show today's total against the warning threshold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWithApp(cmd, func(ctx context.Context, app *cli.App) error {
				consumed, threshold, err := app.Service.ConsumedToday(ctx)
				if err != nil {
					return err
				}
				line := "today: " + strconv.Itoa(consumed)
				if threshold > 0 {
					line += " / " + strconv.Itoa(threshold)
					if consumed >= threshold {
						line = chart.Hot.Render(line)
					}
				}
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), line)
				return nil
			})
		},
	}
}

func newBeveragesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "beverages",
		Short: "List the known beverage types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			for _, b := range core.Beverages() {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%-10s %s %s\n",
					b.ID, b.Emoji, chart.TypeStyle(b.Type).Render(b.DisplayName))
			}
			return nil
		},
	}
}
