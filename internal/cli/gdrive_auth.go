package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/semmidev/pgkeep/internal/app"
	"github.com/semmidev/pgkeep/internal/infrastructure/logger"
)

var authAddr string

func NewGDriveAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "gdrive-auth",
		Short: "Obtain a Google Drive refresh token for gdrive:// destinations",
		Long: `Start a local OAuth helper. Open http://<addr>/auth/google/drive in a
browser, grant access, and copy the printed refresh token into
upload.gdrive.refresh_token. The client secret is read from
upload.gdrive.client_secret_file.`,
		Args: cobra.NoArgs,
		RunE: runGDriveAuth,
	}

	cmd.Flags().StringVar(&authAddr, "addr", "", "listen address (default upload.gdrive.auth_addr)")

	return cmd
}

func runGDriveAuth(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.New(logger.Options{Level: cfg.Log.Level, Stdout: cmd.OutOrStdout()})
	if err != nil {
		return err
	}
	defer log.Close()

	svc, err := app.NewGoogleOAuthService(log, cfg.Upload.GDrive.ClientSecretFile)
	if err != nil {
		return err
	}

	addr := authAddr
	if addr == "" {
		addr = cfg.Upload.GDrive.AuthAddr
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := svc.StartAuthServer(ctx, addr); err != nil {
		return err
	}

	select {
	case <-svc.Tokens():
		log.Infof("Refresh token issued, shutting down")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return svc.Shutdown(shutdownCtx)
}
