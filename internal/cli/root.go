// Package cli provides the pgkeep command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/pkg/version"
)

var (
	cfgFile  string
	logLevel string
)

// ExitError carries a process exit code out of a command.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "pgkeep",
		Short: "PostgreSQL logical and physical backups with off-site sync",
		Long: `pgkeep takes a pg_dump custom-format dump and a tarball of the data
directory, copies both to a remote destination, reports the outcome by mail,
and prunes old local backups.

Run without a subcommand it performs a single backup run, which makes it
suitable for cron or a systemd timer.`,
		Version:       version.Get().String(),
		Args:          cobra.NoArgs,
		RunE:          runRun,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	rootCmd.AddCommand(NewRunCmd())
	rootCmd.AddCommand(NewServeCmd())
	rootCmd.AddCommand(NewValidateCmd())
	rootCmd.AddCommand(NewConfigCmd())
	rootCmd.AddCommand(NewGDriveAuthCmd())
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func newLoader() *config.Loader {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigPath(cfgFile)
	}
	if logLevel != "" {
		loader.Set("log.level", logLevel)
	}
	return loader
}

func loadConfig() (*config.Config, error) {
	return newLoader().Load()
}
