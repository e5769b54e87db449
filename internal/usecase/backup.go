package usecase

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/semmidev/pgkeep/internal/domain"
)

type BackupOptions struct {
	Dir            string
	LogicalPrefix  string
	PhysicalPrefix string
	Host           string
}

// BackupExecutor produces the logical dump and the physical archive for one run.
type BackupExecutor struct {
	db       domain.Database
	archiver domain.Archiver
	opts     BackupOptions
	logger   Logger
	now      func() time.Time
}

func NewBackupExecutor(db domain.Database, archiver domain.Archiver, opts BackupOptions, logger Logger) *BackupExecutor {
	return &BackupExecutor{
		db:       db,
		archiver: archiver,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
	}
}

func (uc *BackupExecutor) Host() string     { return uc.opts.Host }
func (uc *BackupExecutor) Dir() string      { return uc.opts.Dir }
func (uc *BackupExecutor) Database() string { return uc.db.GetName() }

// Run performs both backups in order. A failed logical dump does not stop the
// physical archive.
func (uc *BackupExecutor) Run(ctx context.Context, ts time.Time) domain.BackupRunResult {
	return domain.BackupRunResult{
		Host:      uc.opts.Host,
		Database:  uc.db.GetName(),
		Timestamp: ts,
		Logical:   uc.PerformLogical(ctx, ts),
		Physical:  uc.PerformPhysical(ctx, ts),
	}
}

func (uc *BackupExecutor) PerformLogical(ctx context.Context, ts time.Time) domain.StepResult {
	step := domain.NewStepResult(domain.KindLogical, uc.now())
	dbName := uc.db.GetName()

	name := domain.ArtifactName(uc.opts.LogicalPrefix, domain.KindLogical, ts)
	path := filepath.Join(uc.opts.Dir, name)

	uc.logger.Infof("Starting logical backup of %s...", dbName)
	if err := uc.db.Dump(ctx, path); err != nil {
		uc.logger.Errorf("ERROR: Logical backup of %s failed: %v", dbName, err)
		uc.removePartial(path)
		return step.Fail(err, uc.now())
	}

	artifact, err := uc.artifact(domain.KindLogical, name, path)
	if err != nil {
		uc.logger.Errorf("ERROR: Logical backup of %s failed: %v", dbName, err)
		uc.removePartial(path)
		return step.Fail(err, uc.now())
	}

	result := step.Succeed(artifact, uc.now())
	uc.logger.Infof("Logical backup created: %s (%.2f MB) in %s",
		name, artifact.SizeMB(), result.Duration().Round(time.Second))
	return result
}

func (uc *BackupExecutor) PerformPhysical(ctx context.Context, ts time.Time) domain.StepResult {
	step := domain.NewStepResult(domain.KindPhysical, uc.now())

	name := domain.ArtifactName(uc.opts.PhysicalPrefix, domain.KindPhysical, ts)
	path := filepath.Join(uc.opts.Dir, name)

	uc.logger.Infof("Starting physical backup...")

	dataDir, err := uc.db.DataDirectory(ctx)
	if err == nil && dataDir == "" {
		err = domain.ErrEmptyDataDirectory
	}
	if err != nil {
		err = fmt.Errorf("could not determine data directory: %w", err)
		uc.logger.Errorf("ERROR: Physical backup failed: %v", err)
		return step.Fail(err, uc.now())
	}
	uc.logger.Infof("Data directory: %s", dataDir)

	if err := uc.archiver.Archive(ctx, dataDir, path); err != nil {
		uc.logger.Errorf("ERROR: Physical backup of %s failed: %v", dataDir, err)
		uc.removePartial(path)
		return step.Fail(err, uc.now())
	}

	artifact, err := uc.artifact(domain.KindPhysical, name, path)
	if err != nil {
		uc.logger.Errorf("ERROR: Physical backup of %s failed: %v", dataDir, err)
		uc.removePartial(path)
		return step.Fail(err, uc.now())
	}

	result := step.Succeed(artifact, uc.now())
	uc.logger.Infof("Physical backup created: %s (%.2f MB) in %s",
		name, artifact.SizeMB(), result.Duration().Round(time.Second))
	return result
}

func (uc *BackupExecutor) artifact(kind domain.ArtifactKind, name, path string) (domain.Artifact, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.Artifact{}, fmt.Errorf("stat backup file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return domain.Artifact{}, fmt.Errorf("backup output %s is not a regular file", path)
	}
	return domain.Artifact{Kind: kind, Name: name, Path: path, Size: info.Size()}, nil
}

func (uc *BackupExecutor) removePartial(path string) {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		uc.logger.Warnf("Could not remove partial file %s: %v", path, err)
	}
}
