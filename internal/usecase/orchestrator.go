package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/semmidev/pgkeep/internal/domain"
)

// Orchestrator sequences one run: init, backup, upload, retention.
type Orchestrator struct {
	local    LocalStorage
	backup   *BackupExecutor
	uploader *Uploader
	cleanup  *Cleanup
	alerter  *Alerter
	logger   Logger
	now      func() time.Time
}

func NewOrchestrator(
	local LocalStorage,
	backup *BackupExecutor,
	uploader *Uploader,
	cleanup *Cleanup,
	alerter *Alerter,
	logger Logger,
) *Orchestrator {
	return &Orchestrator{
		local:    local,
		backup:   backup,
		uploader: uploader,
		cleanup:  cleanup,
		alerter:  alerter,
		logger:   logger,
		now:      time.Now,
	}
}

// Run never calls retention before the upload, nor after a failed one.
func (o *Orchestrator) Run(ctx context.Context) domain.RunReport {
	start := o.now()
	host := o.backup.Host()

	o.logger.Infof("=== PostgreSQL backup started on %s ===", host)
	o.logger.Infof("Backup directory: %s", o.backup.Dir())
	o.logger.Infof("Database: %s", o.backup.Database())
	o.logger.Infof("Timestamp: %s", start.Format(domain.TimestampLayout))

	report := domain.RunReport{Stage: domain.StageInit}

	if err := o.local.EnsureDir(); err != nil {
		o.logger.Errorf("ERROR: %v", err)
		o.alerter.NotifyFailure(ctx,
			fmt.Sprintf("Backup failed on %s", host),
			fmt.Sprintf("Could not prepare backup directory %s on %s: %v\n", o.backup.Dir(), host, err))
		return o.fail(report, err)
	}

	report.Stage = domain.StageBackup
	run := o.backup.Run(ctx, start)
	report.Backup = run

	if run.Failed() {
		kinds := domain.JoinKinds(run.FailedKinds())
		o.logger.Errorf("Backup failed for: %s", kinds)
		o.alerter.NotifyFailure(ctx, fmt.Sprintf("Backup failed on %s", host), backupFailureBody(run))
		return o.fail(report, fmt.Errorf("backup failed for: %s", kinds))
	}

	report.Stage = domain.StageUpload
	upload, err := o.uploader.Upload(ctx, run)
	report.Upload = &upload
	if err != nil {
		o.logger.Errorf("ERROR: %v, skipping retention", err)
		return o.fail(report, err)
	}

	report.Stage = domain.StageRetention
	retention, err := o.cleanup.Execute(ctx)
	report.Retention = &retention
	if err != nil {
		o.logger.Errorf("ERROR: %v", err)
		return o.fail(report, err)
	}

	report.Stage = domain.StageDone
	report.ExitCode = domain.ExitSuccess
	o.logger.Infof("Backup run completed in %s", o.now().Sub(start).Round(time.Second))
	return report
}

func (o *Orchestrator) fail(report domain.RunReport, err error) domain.RunReport {
	report.ExitCode = domain.ExitFailure
	report.Err = err
	return report
}

func backupFailureBody(run domain.BackupRunResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PostgreSQL backup of %s on %s failed.\n\n", run.Database, run.Host)
	fmt.Fprintf(&b, "Timestamp: %s\n", run.Stamp())
	fmt.Fprintf(&b, "Failed: %s\n\n", domain.JoinKinds(run.FailedKinds()))
	for _, step := range run.FailedSteps() {
		fmt.Fprintf(&b, "  - %s: %v\n", step.Kind, step.Err)
	}
	b.WriteString("\nNothing was uploaded and no old backups were removed.\n")
	return b.String()
}
