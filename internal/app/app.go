package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"time"

	"github.com/semmidev/pgkeep/internal/adapter/archiver"
	"github.com/semmidev/pgkeep/internal/adapter/database"
	"github.com/semmidev/pgkeep/internal/adapter/notifier"
	"github.com/semmidev/pgkeep/internal/adapter/storage"
	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/internal/domain"
	"github.com/semmidev/pgkeep/internal/infrastructure/command"
	"github.com/semmidev/pgkeep/internal/infrastructure/lock"
	"github.com/semmidev/pgkeep/internal/infrastructure/logger"
	"github.com/semmidev/pgkeep/internal/infrastructure/scheduler"
	"github.com/semmidev/pgkeep/internal/usecase"
)

type App struct {
	config       *config.Config
	logger       *logger.Logger
	stdout       io.Writer
	runner       command.Runner
	database     domain.Database
	archiver     domain.Archiver
	local        *storage.LocalStorage
	remote       domain.RemoteStorage
	notifier     domain.Notifier
	sqlDB        *sql.DB
	orchestrator *usecase.Orchestrator
	scheduler    *scheduler.Scheduler
}

type Option func(*App)

func WithRunner(r command.Runner) Option {
	return func(a *App) { a.runner = r }
}

func WithDatabase(db domain.Database) Option {
	return func(a *App) { a.database = db }
}

func WithArchiver(arc domain.Archiver) Option {
	return func(a *App) { a.archiver = arc }
}

func WithRemote(r domain.RemoteStorage) Option {
	return func(a *App) { a.remote = r }
}

func WithNotifier(n domain.Notifier) Option {
	return func(a *App) { a.notifier = n }
}

// WithStdout redirects the console copy of the log.
func WithStdout(w io.Writer) Option {
	return func(a *App) { a.stdout = w }
}

func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	a := &App{config: cfg, runner: command.NewExecRunner()}
	for _, opt := range opts {
		opt(a)
	}

	log, err := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		Format:     cfg.Log.Format,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   cfg.Log.Compress,
		Stdout:     a.stdout,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	a.logger = log

	if a.database == nil {
		if err := a.initDatabase(); err != nil {
			a.Close()
			return nil, err
		}
	}

	if a.archiver == nil {
		a.archiver = newArchiver(cfg.Physical, cfg.Postgres.CompressLevel, a.runner)
	}

	if a.remote == nil {
		remote, err := storage.NewRemote(ctx, cfg.Upload, a.runner)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize destination: %w", err)
		}
		a.remote = remote
	}

	if a.notifier == nil {
		a.notifier = newNotifier(cfg, a.runner, log)
	}

	a.local = storage.NewLocal(cfg.Backup.Dir)
	alerter := usecase.NewAlerter(a.notifier, log, cfg.Notify.LogTailLines, log)

	backup := usecase.NewBackupExecutor(a.database, a.archiver, usecase.BackupOptions{
		Dir:            cfg.Backup.Dir,
		LogicalPrefix:  cfg.Backup.LogicalPrefix,
		PhysicalPrefix: cfg.Backup.PhysicalPrefix,
		Host:           cfg.App.Hostname,
	}, log)

	cleanup := usecase.NewCleanup(a.local, log, usecase.RetentionPolicy{
		Days:        cfg.Retention.Days,
		FailOnError: cfg.Retention.FailOnError,
	})
	if cfg.Retention.Remote {
		cleanup.WithRemote(a.remote)
	}

	a.orchestrator = usecase.NewOrchestrator(
		a.local,
		backup,
		usecase.NewUploader(a.remote, alerter, log),
		cleanup,
		alerter,
		log,
	)

	return a, nil
}

func (a *App) initDatabase() error {
	pg := a.config.Postgres
	opts := []database.Option{
		database.WithRunner(a.runner),
		database.WithElevation(database.ServiceOwnerElevation(pg)),
	}

	if pg.QueryMode == "sql" {
		db, err := database.OpenSQL(pg)
		if err != nil {
			return err
		}
		a.sqlDB = db
		opts = append(opts, database.WithDB(db))
	}

	a.database = database.NewPostgreSQL(pg, opts...)
	return nil
}

func newArchiver(cfg config.PhysicalConfig, level int, runner command.Runner) domain.Archiver {
	if cfg.Archiver == "native" {
		return archiver.NewNative(level)
	}

	elevation := command.NoElevation()
	if cfg.UseSudo {
		elevation = command.AsRoot()
	}
	return archiver.NewTar(cfg.TarPath, runner, elevation)
}

// newNotifier builds every enabled transport. A transport that cannot be set up
// is logged and left out so the backup itself still runs.
func newNotifier(cfg *config.Config, runner command.Runner, log *logger.Logger) domain.Notifier {
	var transports []domain.Notifier

	if cfg.Notify.Email.Enabled {
		transports = append(transports, notifier.NewEmail(cfg.Notify.Email, cfg.App.Hostname, runner))
	}

	if cfg.Notify.Telegram.Enabled {
		tg, err := notifier.NewTelegram(cfg.Notify.Telegram, "")
		if err != nil {
			log.Warnf("Telegram notifications disabled: %v", err)
		} else {
			transports = append(transports, tg)
		}
	}

	if len(transports) == 0 {
		return notifier.NopNotifier{}
	}
	return notifier.NewMulti(transports...)
}

func (a *App) Logger() *logger.Logger {
	return a.logger
}

// RunOnce performs a single locked run. A held lock fails the run before any
// artifact is touched.
func (a *App) RunOnce(ctx context.Context) domain.RunReport {
	lk, err := lock.Acquire(a.config.App.LockFile)
	if err != nil {
		a.logger.Errorf("ERROR: %v", err)
		return domain.RunReport{Stage: domain.StageInit, ExitCode: domain.ExitFailure, Err: err}
	}
	defer func() {
		if err := lk.Release(); err != nil {
			a.logger.Warnf("Failed to release lock: %v", err)
		}
	}()

	return a.orchestrator.Run(ctx)
}

// Serve runs backups on the configured cron schedule until ctx is cancelled.
func (a *App) Serve(ctx context.Context) error {
	a.scheduler = scheduler.New(a.logger)

	spec := a.config.Schedule.Cron
	if err := a.scheduler.AddJob(spec, "backup", func(ctx context.Context) error {
		return a.RunOnce(ctx).Err
	}); err != nil {
		return err
	}

	a.scheduler.Start()
	a.logger.Infof("Scheduler started (%s), next run at %s", spec, a.scheduler.Next().Format(time.RFC3339))

	<-ctx.Done()
	return nil
}

// Check is the outcome of one validate check.
type Check struct {
	Name string
	Err  error
}

// Checks verifies the tools and services a run depends on.
func (a *App) Checks(ctx context.Context) []Check {
	var checks []Check

	lookPath := func(name, bin string) {
		path, err := command.LookPath(bin)
		if err == nil {
			name = fmt.Sprintf("%s (%s)", name, path)
		}
		checks = append(checks, Check{Name: name, Err: err})
	}

	pg := a.config.Postgres
	lookPath("pg_dump", pg.PgDumpPath)
	if pg.QueryMode == "psql" {
		lookPath("psql", pg.PsqlPath)
	}
	if a.config.Physical.Archiver == "tar" {
		lookPath("tar", a.config.Physical.TarPath)
	}

	if target, err := storage.ParseDestination(a.config.Upload.Destination); err == nil && target.Scheme == storage.SchemeRclone {
		lookPath("rclone", a.config.Upload.RclonePath)
	}

	checks = append(checks,
		Check{Name: "PostgreSQL " + a.database.GetName(), Err: a.database.Ping(ctx)},
		Check{Name: "Destination " + a.remote.String(), Err: a.remote.Validate(ctx)},
		Check{Name: "Notifications", Err: a.notifier.Validate(ctx)},
	)

	return checks
}

func (a *App) Close() {
	if a.scheduler != nil {
		a.logger.Infof("Shutting down scheduler...")
		a.scheduler.Stop()
	}
	if c, ok := a.remote.(io.Closer); ok {
		_ = c.Close()
	}
	if a.sqlDB != nil {
		_ = a.sqlDB.Close()
	}
	if a.logger != nil {
		a.logger.Close()
	}
}
