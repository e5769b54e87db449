package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/semmidev/pgkeep/internal/app"
	"github.com/semmidev/pgkeep/internal/domain"
)

func NewRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run a single backup and exit",
		Long: `Take the logical and physical backups, sync them to the destination,
send the report and apply retention. Exits 1 if any step failed.`,
		Args: cobra.NoArgs,
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, args []string) error {
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

	report := a.RunOnce(ctx)
	if report.ExitCode != domain.ExitSuccess {
		return &ExitError{Code: report.ExitCode, Err: report.Err}
	}
	return nil
}
