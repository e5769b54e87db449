package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"

	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/internal/domain"
	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

const dataDirectoryQuery = "SHOW data_directory"

const dumpFileMode = 0640

type PostgreSQLDatabase struct {
	config    config.PostgresConfig
	runner    command.Runner
	elevation command.Elevation
	db        *sql.DB
}

type Option func(*PostgreSQLDatabase)

func WithRunner(r command.Runner) Option {
	return func(p *PostgreSQLDatabase) {
		p.runner = r
	}
}

// WithElevation runs pg_dump and psql under the service owner account.
func WithElevation(e command.Elevation) Option {
	return func(p *PostgreSQLDatabase) {
		p.elevation = e
	}
}

// WithDB switches the data directory query from psql to database/sql.
func WithDB(db *sql.DB) Option {
	return func(p *PostgreSQLDatabase) {
		p.db = db
	}
}

func NewPostgreSQL(cfg config.PostgresConfig, opts ...Option) *PostgreSQLDatabase {
	p := &PostgreSQLDatabase{
		config: cfg,
		runner: command.NewExecRunner(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// ServiceOwnerElevation builds the sudo elevation for the configured service user.
// Every variable set by env() is preserved across sudo.
func ServiceOwnerElevation(cfg config.PostgresConfig) command.Elevation {
	if cfg.ServiceUser == "" {
		return command.NoElevation()
	}

	var preserve []string
	if cfg.Password != "" {
		preserve = append(preserve, "PGPASSWORD")
	}
	if cfg.SSLMode != "" {
		preserve = append(preserve, "PGSSLMODE")
	}
	return command.AsUser(cfg.ServiceUser, preserve...)
}

// Dump streams pg_dump's stdout into outputPath. The file is created by this
// process, so an elevated pg_dump never needs write access to the backup directory.
func (p *PostgreSQLDatabase) Dump(ctx context.Context, outputPath string) (err error) {
	out, err := os.OpenFile(outputPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, dumpFileMode)
	if err != nil {
		return fmt.Errorf("failed to create dump file: %w", err)
	}
	defer func() {
		if cerr := out.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close dump file: %w", cerr)
		}
	}()

	args := []string{
		"--format=custom",
		fmt.Sprintf("--compress=%d", p.config.CompressLevel),
	}
	args = append(args, p.connectionArgs()...)
	args = append(args, p.config.Database)

	cmd := p.elevation.Wrap(command.Command{
		Name:   p.binary(p.config.PgDumpPath, "pg_dump"),
		Args:   args,
		Env:    p.env(),
		Stdout: out,
	})

	if _, err := p.runner.Run(ctx, cmd); err != nil {
		return err
	}
	return nil
}

func (p *PostgreSQLDatabase) DataDirectory(ctx context.Context) (string, error) {
	if p.db != nil {
		return p.queryDataDirectory(ctx)
	}

	out, err := p.psql(ctx, dataDirectoryQuery)
	if err != nil {
		return "", fmt.Errorf("query data directory: %w", err)
	}

	dir := strings.TrimSpace(string(out))
	if dir == "" {
		return "", domain.ErrEmptyDataDirectory
	}
	return dir, nil
}

func (p *PostgreSQLDatabase) queryDataDirectory(ctx context.Context) (string, error) {
	var dir string
	if err := p.db.QueryRowContext(ctx, dataDirectoryQuery).Scan(&dir); err != nil {
		return "", fmt.Errorf("query data directory: %w", err)
	}

	dir = strings.TrimSpace(dir)
	if dir == "" {
		return "", domain.ErrEmptyDataDirectory
	}
	return dir, nil
}

func (p *PostgreSQLDatabase) GetName() string {
	return p.config.Database
}

func (p *PostgreSQLDatabase) Ping(ctx context.Context) error {
	if p.db != nil {
		if err := p.db.PingContext(ctx); err != nil {
			return fmt.Errorf("postgresql ping failed: %w", err)
		}
		return nil
	}

	if _, err := p.psql(ctx, "SELECT 1"); err != nil {
		return fmt.Errorf("postgresql ping failed: %w", err)
	}
	return nil
}

func (p *PostgreSQLDatabase) psql(ctx context.Context, query string) ([]byte, error) {
	args := []string{"-X", "-A", "-t", "-v", "ON_ERROR_STOP=1", "-c", query}
	args = append(args, p.connectionArgs()...)
	args = append(args, fmt.Sprintf("--dbname=%s", p.config.Database))

	return p.runner.Run(ctx, p.elevation.Wrap(command.Command{
		Name: p.binary(p.config.PsqlPath, "psql"),
		Args: args,
		Env:  p.env(),
	}))
}

func (p *PostgreSQLDatabase) connectionArgs() []string {
	var args []string
	if p.config.Host != "" {
		args = append(args, fmt.Sprintf("--host=%s", p.config.Host))
	}
	if p.config.Port != 0 {
		args = append(args, fmt.Sprintf("--port=%d", p.config.Port))
	}
	if p.config.User != "" {
		args = append(args, fmt.Sprintf("--username=%s", p.config.User))
	}
	return args
}

func (p *PostgreSQLDatabase) env() []string {
	var env []string
	if p.config.Password != "" {
		env = append(env, fmt.Sprintf("PGPASSWORD=%s", p.config.Password))
	}
	if p.config.SSLMode != "" {
		env = append(env, fmt.Sprintf("PGSSLMODE=%s", p.config.SSLMode))
	}
	return env
}

func (p *PostgreSQLDatabase) binary(configured, fallback string) string {
	if configured != "" {
		return configured
	}
	return fallback
}

var _ domain.Database = (*PostgreSQLDatabase)(nil)
