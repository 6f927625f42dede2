package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"coffeetea/internal/backend"
	"coffeetea/internal/cli"
	"coffeetea/internal/log"
)

// errEphemeralBackend stops one-shot commands from writing to a store that
// is gone when the process exits.
var errEphemeralBackend = errors.New("the memory backend does not persist between commands; set DATA_BACKEND=sqlite")

func main() {
	if err := newRootCmd().Execute(); err != nil {
		_, _ = fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "coffeetea",
		Short:         "Track coffee and tea consumption",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newServeCmd())
	root.AddCommand(newAddCmd())
	root.AddCommand(newDeleteCmd())
	root.AddCommand(newDayCmd())
	root.AddCommand(newTodayCmd())
	root.AddCommand(newStatsCmd())
	root.AddCommand(newCalendarCmd())
	root.AddCommand(newBeveragesCmd())
	return root
}

// loadApp reads .env and the environment, then wires the service.
func loadApp(ctx context.Context, component string) (*cli.App, error) {
	cli.LoadEnvFile()
	cfg, err := cli.LoadAndValidateConfig()
	if err != nil {
		return nil, err
	}
	logger := cli.SetupLogger(cfg, component)
	return cli.NewApp(ctx, cfg, logger)
}

// runWithApp is the common RunE body of the one-shot commands.
func runWithApp(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	app, err := loadApp(ctx, log.ComponentCLI)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(ctx, app)
}

// runMutation is runWithApp for commands that change records.
func runMutation(cmd *cobra.Command, fn func(ctx context.Context, app *cli.App) error) error {
	return runWithApp(cmd, func(ctx context.Context, app *cli.App) error {
		if app.Backend.Type == backend.MemoryBackend {
			return errEphemeralBackend
		}
		return fn(ctx, app)
	})
}
