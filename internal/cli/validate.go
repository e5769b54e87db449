package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/semmidev/pgkeep/internal/app"
)

func NewValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration and test connectivity",
		Long: `Validate the configuration and check the environment:
- required tools on PATH (pg_dump, psql, tar, rclone when used)
- database connectivity
- the upload destination
- the notification transports`,
		Args: cobra.NoArgs,
		RunE: runValidate,
	}
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	ok := color.New(color.FgGreen).SprintFunc()
	bad := color.New(color.FgRed).SprintFunc()

	fmt.Fprintln(out, "Configuration:")
	loader := newLoader()
	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(out, "  %s Config: %v\n", bad("✗"), err)
		return &ExitError{Code: 1, Err: err}
	}
	fmt.Fprintf(out, "  %s Config valid\n", ok("✓"))
	if used := loader.ConfigFileUsed(); used != "" {
		fmt.Fprintf(out, "  Config file: %s\n", used)
	}
	fmt.Fprintf(out, "  Database: %s\n", cfg.Postgres.Database)
	fmt.Fprintf(out, "  Backup directory: %s\n", cfg.Backup.Dir)
	fmt.Fprintf(out, "  Destination: %s\n", cfg.Upload.Destination)
	fmt.Fprintf(out, "  Retention: %d days\n", cfg.Retention.Days)
	fmt.Fprintln(out)

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	a, err := app.New(context.Background(), cfg)
	if err != nil {
		fmt.Fprintf(out, "  %s Setup: %v\n", bad("✗"), err)
		return &ExitError{Code: 1, Err: err}
	}
	defer a.Close()

	fmt.Fprintln(out, "Checks:")
	failed := 0
	for _, check := range a.Checks(ctx) {
		if check.Err != nil {
			failed++
			fmt.Fprintf(out, "  %s %s: %v\n", bad("✗"), check.Name, check.Err)
			continue
		}
		fmt.Fprintf(out, "  %s %s\n", ok("✓"), check.Name)
	}

	fmt.Fprintln(out)
	if failed > 0 {
		return &ExitError{Code: 1, Err: fmt.Errorf("%d check(s) failed", failed)}
	}
	fmt.Fprintln(out, "Validation complete.")
	return nil
}
