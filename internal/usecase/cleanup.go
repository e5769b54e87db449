package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/semmidev/pgkeep/internal/domain"
)

type RetentionPolicy struct {
	Days        int
	FailOnError bool
}

// Cleanup removes backups older than the retention window, locally and
// optionally on the remote destination.
type Cleanup struct {
	local  LocalStorage
	remote domain.RemoteStorage
	logger Logger
	policy RetentionPolicy
	now    func() time.Time
}

func NewCleanup(local LocalStorage, logger Logger, policy RetentionPolicy) *Cleanup {
	return &Cleanup{
		local:  local,
		logger: logger,
		policy: policy,
		now:    time.Now,
	}
}

// WithRemote also prunes the remote destination. Remote errors are logged only.
func (uc *Cleanup) WithRemote(remote domain.RemoteStorage) *Cleanup {
	uc.remote = remote
	return uc
}

// Cutoff returns the newest mtime that is still deleted. A file qualifies once
// it is Days+1 full days old, the way find -mtime +Days counts.
func (uc *Cleanup) Cutoff() time.Time {
	return uc.now().Add(-time.Duration(uc.policy.Days+1) * 24 * time.Hour)
}

func (uc *Cleanup) Execute(ctx context.Context) (domain.RetentionResult, error) {
	var result domain.RetentionResult
	cutoff := uc.Cutoff()

	uc.logger.Infof("Starting retention: removing backups older than %d days", uc.policy.Days)

	candidates, err := uc.local.GetOldFiles(ctx, cutoff)
	if err != nil {
		uc.logger.Errorf("ERROR: Could not scan backup directory: %v", err)
		result.Failures = append(result.Failures, domain.FileError{Name: uc.local.GetPath(""), Err: err})
		return result, uc.outcome(result)
	}
	result.Scanned = len(candidates)

	var old []string
	for _, name := range candidates {
		if domain.IsBackupFile(name) {
			old = append(old, name)
		}
	}
	result.Matched = len(old)

	if len(old) == 0 {
		uc.logger.Infof("No old files to delete")
	} else {
		uc.logger.Infof("Found %d backup file(s) older than %d days", len(old), uc.policy.Days)
	}

	for _, name := range old {
		uc.logger.Infof("Deleting old backup: %s", name)
		if err := uc.local.Delete(ctx, name); err != nil {
			uc.logger.Errorf("ERROR: Failed to delete %s: %v", name, err)
			result.Failures = append(result.Failures, domain.FileError{Name: name, Err: err})
			continue
		}
		result.Deleted = append(result.Deleted, name)
	}

	if uc.remote != nil {
		result.RemoteDeleted = uc.cleanupRemote(ctx, cutoff)
	}

	uc.logger.Infof("Retention completed: %d file(s) deleted", len(result.Deleted))
	return result, uc.outcome(result)
}

func (uc *Cleanup) outcome(result domain.RetentionResult) error {
	if len(result.Failures) == 0 || !uc.policy.FailOnError {
		return nil
	}
	return fmt.Errorf("%w: %d error(s)", domain.ErrRetentionFailed, len(result.Failures))
}

func (uc *Cleanup) cleanupRemote(ctx context.Context, cutoff time.Time) []string {
	dest := uc.remote.String()

	files, err := uc.remote.GetOldFiles(ctx, cutoff)
	if err != nil {
		files, err = uc.fallbackListFiles(ctx, cutoff)
		if err != nil {
			uc.logger.Errorf("ERROR: Remote retention on %s failed: %v", dest, err)
			return nil
		}
	}

	var deleted []string
	for _, name := range files {
		if !domain.IsBackupFile(name) {
			continue
		}
		uc.logger.Infof("Deleting old backup from %s: %s", dest, name)
		if err := uc.remote.Delete(ctx, name); err != nil {
			uc.logger.Errorf("ERROR: Failed to delete %s from %s: %v", name, dest, err)
			continue
		}
		deleted = append(deleted, name)
	}

	uc.logger.Infof("Deleted %d old backup(s) from %s", len(deleted), dest)
	return deleted
}

// fallbackListFiles selects by the timestamp embedded in each name.
func (uc *Cleanup) fallbackListFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	files, err := uc.remote.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}

	old := make([]string, 0)
	for _, name := range files {
		ts, err := domain.ParseArtifactTime(name)
		if err != nil {
			uc.logger.Warnf("Could not parse timestamp from %s: %v", name, err)
			continue
		}
		if ts.Before(cutoff) {
			old = append(old, name)
		}
	}
	return old, nil
}
