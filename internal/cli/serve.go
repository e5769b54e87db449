package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/pgkeep/internal/app"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run backups on the configured schedule in the foreground",
		Long: `Run the built-in scheduler using schedule.cron (six fields, seconds first).
A run that is still in progress when the next tick fires is skipped.
Use Ctrl+C to stop.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger().Infof("Starting %s in foreground mode", cfg.App.Name)
	return a.Serve(ctx)
}
