package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/semmidev/pgkeep/internal/domain"
)

// Uploader copies a run's artifacts to the remote destination, one at a time.
type Uploader struct {
	storage domain.RemoteStorage
	alerter *Alerter
	logger  Logger
}

func NewUploader(storage domain.RemoteStorage, alerter *Alerter, logger Logger) *Uploader {
	return &Uploader{storage: storage, alerter: alerter, logger: logger}
}

// Upload copies every artifact of run. Local files are kept. A failed file does
// not stop the others.
func (uc *Uploader) Upload(ctx context.Context, run domain.BackupRunResult) (domain.UploadResult, error) {
	dest := uc.storage.String()
	result := domain.UploadResult{Destination: dest}

	artifacts := run.Artifacts()
	if len(artifacts) == 0 {
		return result, domain.ErrNothingToUpload
	}

	uc.logger.Infof("Syncing %d file(s) to %s...", len(artifacts), dest)

	for _, a := range artifacts {
		uc.logger.Infof("Uploading %s...", a.Name)
		if err := uc.storage.Upload(ctx, a.Path, a.Name); err != nil {
			uc.logger.Errorf("ERROR: Failed to upload %s to %s: %v", a.Name, dest, err)
			result.Failures = append(result.Failures, domain.FileError{Name: a.Name, Err: err})
			continue
		}
		uc.logger.Infof("Uploaded %s", a.Name)
		result.Uploaded = append(result.Uploaded, a.Name)
	}

	if len(result.Failures) > 0 {
		uc.logger.Errorf("ERROR: Sync to %s failed for %d of %d file(s)", dest, len(result.Failures), len(artifacts))
		uc.alerter.NotifyFailure(ctx,
			fmt.Sprintf("Backup sync failed on %s", run.Host),
			uc.failureBody(run, result))
		return result, fmt.Errorf("%w: %d of %d file(s) not copied to %s",
			domain.ErrUploadFailed, len(result.Failures), len(artifacts), dest)
	}

	uc.logger.Infof("Sync to %s completed", dest)
	uc.alerter.NotifySuccess(ctx,
		fmt.Sprintf("Backup succeeded on %s", run.Host),
		uc.successBody(run, result))

	return result, nil
}

func (uc *Uploader) failureBody(run domain.BackupRunResult, result domain.UploadResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Backups of %s on %s succeeded locally but sync to %s failed.\n\n",
		run.Database, run.Host, result.Destination)
	fmt.Fprintf(&b, "Date: %s\nTimestamp: %s\n\n", run.DateStamp(), run.Stamp())

	b.WriteString("Failed files:\n")
	for _, f := range result.Failures {
		fmt.Fprintf(&b, "  - %s\n", f.Error())
	}

	if len(result.Uploaded) > 0 {
		b.WriteString("\nCopied files:\n")
		for _, name := range result.Uploaded {
			fmt.Fprintf(&b, "  - %s\n", name)
		}
	}

	b.WriteString("\nLocal copies were kept and retention was skipped.\n")
	return b.String()
}

func (uc *Uploader) successBody(run domain.BackupRunResult, result domain.UploadResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PostgreSQL backup of %s on %s completed successfully.\n\n", run.Database, run.Host)
	fmt.Fprintf(&b, "Date: %s\nTimestamp: %s\nDestination: %s\n\n", run.DateStamp(), run.Stamp(), result.Destination)

	b.WriteString("Files:\n")
	for _, a := range run.Artifacts() {
		fmt.Fprintf(&b, "  - %s (%.2f MB)\n", a.Name, a.SizeMB())
	}
	return b.String()
}
