package usecase

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgkeep/internal/adapter/archiver"
	"github.com/semmidev/pgkeep/internal/adapter/database"
	"github.com/semmidev/pgkeep/internal/adapter/notifier"
	"github.com/semmidev/pgkeep/internal/adapter/storage"
	"github.com/semmidev/pgkeep/internal/domain"
)

type orchestratorFixture struct {
	dir    string
	db     *database.MockDatabase
	arch   *archiver.MockArchiver
	remote *storage.MockStorage
	mail   *notifier.MockNotifier
	log    *recordingLogger
}

func newOrchestratorFixture(root string) *orchestratorFixture {
	return &orchestratorFixture{
		dir:    filepath.Join(root, "backups"),
		db:     &database.MockDatabase{Name: "orders", DataDir: "/var/lib/postgresql/16/main"},
		arch:   &archiver.MockArchiver{},
		remote: &storage.MockStorage{Name: "b2:backups/pg"},
		mail:   &notifier.MockNotifier{},
		log:    &recordingLogger{},
	}
}

func (f *orchestratorFixture) build() *Orchestrator {
	local := storage.NewLocal(f.dir)
	alerter := NewAlerter(f.mail, f.log, 15, f.log)

	backup := NewBackupExecutor(f.db, f.arch, BackupOptions{
		Dir:            f.dir,
		LogicalPrefix:  "orders_logical",
		PhysicalPrefix: "orders_physical",
		Host:           "db01",
	}, f.log)

	o := NewOrchestrator(
		local,
		backup,
		NewUploader(f.remote, alerter, f.log),
		NewCleanup(local, f.log, RetentionPolicy{Days: 7}),
		alerter,
		f.log,
	)
	o.now = func() time.Time { return time.Date(2026, 10, 19, 2, 0, 0, 0, time.Local) }
	return o
}

func TestOrchestrator(t *testing.T) {
	Convey("Given an Orchestrator", t, func() {
		ctx := context.Background()
		f := newOrchestratorFixture(t.TempDir())

		logical := "orders_logical_2026-10-19-020000.dump"
		physical := "orders_physical_2026-10-19-020000.tar.gz"

		Convey("When every step succeeds and nothing is old", func() {
			report := f.build().Run(ctx)

			Convey("It should exit 0 after one success report", func() {
				So(report.ExitCode, ShouldEqual, domain.ExitSuccess)
				So(report.Success(), ShouldBeTrue)
				So(report.Stage, ShouldEqual, domain.StageDone)
				So(f.remote.Uploaded(), ShouldResemble, []string{logical, physical})

				sent := f.mail.Sent()
				So(len(sent), ShouldEqual, 1)
				So(sent[0].Level, ShouldEqual, domain.LevelInfo)
				So(sent[0].Body, ShouldContainSubstring, logical)
				So(sent[0].Body, ShouldContainSubstring, physical)

				So(f.log.contains("No old files to delete"), ShouldBeTrue)
				So(f.log.contains("Backup run completed"), ShouldBeTrue)
			})

			Convey("It should run retention exactly once, after the upload", func() {
				So(f.log.count("Starting retention"), ShouldEqual, 1)
				So(f.log.index("Sync to b2:backups/pg completed"), ShouldBeLessThan, f.log.index("Starting retention"))
				So(report.Retention, ShouldNotBeNil)
			})

			Convey("It should create the backup directory and keep the artifacts", func() {
				for _, name := range []string{logical, physical} {
					_, err := os.Stat(filepath.Join(f.dir, name))
					So(err, ShouldBeNil)
				}
			})
		})

		Convey("When old backups exist", func() {
			So(os.MkdirAll(f.dir, 0750), ShouldBeNil)
			for _, days := range []int{3, 7, 8, 10} {
				So(writeAged(f.dir, domain.ArtifactName("orders_logical", domain.KindLogical, time.Now().AddDate(0, 0, -days)), days), ShouldBeNil)
			}

			report := f.build().Run(ctx)

			Convey("It should prune only those past the window", func() {
				So(report.ExitCode, ShouldEqual, domain.ExitSuccess)
				So(len(report.Retention.Deleted), ShouldEqual, 2)

				entries, _ := os.ReadDir(f.dir)
				So(len(entries), ShouldEqual, 4)
			})
		})

		Convey("When the dump fails", func() {
			f.db.DumpFunc = func(ctx context.Context, outputPath string) error {
				return errors.New("pg_dump failed: exit status 1")
			}

			report := f.build().Run(ctx)

			Convey("It should exit 1 without uploading", func() {
				So(report.ExitCode, ShouldEqual, domain.ExitFailure)
				So(report.Stage, ShouldEqual, domain.StageBackup)
				So(report.Upload, ShouldBeNil)
				So(report.Retention, ShouldBeNil)
				So(f.remote.Uploaded(), ShouldBeEmpty)
				So(f.log.contains("Backup failed for: logical"), ShouldBeTrue)
				So(f.log.contains("Starting retention"), ShouldBeFalse)
			})

			Convey("It should send a failure report naming only the logical backup", func() {
				sent := f.mail.Sent()
				So(len(sent), ShouldEqual, 1)
				So(sent[0].Level, ShouldEqual, domain.LevelError)
				So(sent[0].Subject, ShouldEqual, "Backup failed on db01")
				So(sent[0].Body, ShouldContainSubstring, "Failed: logical\n")
				So(sent[0].Body, ShouldContainSubstring, "logical: pg_dump failed: exit status 1")
				So(sent[0].Body, ShouldNotContainSubstring, "physical: ")
				So(sent[0].Body, ShouldContainSubstring, "--- Last 15 log lines ---")
			})
		})

		Convey("When the physical archive fails to upload", func() {
			So(os.MkdirAll(f.dir, 0750), ShouldBeNil)
			So(writeAged(f.dir, "orders_logical_2026-01-01-020000.dump", 30), ShouldBeNil)

			f.remote.UploadFunc = func(ctx context.Context, localPath, remoteName string) error {
				if strings.HasSuffix(remoteName, ".tar.gz") {
					return errors.New("connection reset")
				}
				return nil
			}

			report := f.build().Run(ctx)

			Convey("It should exit 1 and skip retention", func() {
				So(report.ExitCode, ShouldEqual, domain.ExitFailure)
				So(report.Stage, ShouldEqual, domain.StageUpload)
				So(errors.Is(report.Err, domain.ErrUploadFailed), ShouldBeTrue)
				So(report.Retention, ShouldBeNil)
				So(f.log.contains("Starting retention"), ShouldBeFalse)

				_, err := os.Stat(filepath.Join(f.dir, "orders_logical_2026-01-01-020000.dump"))
				So(err, ShouldBeNil)
			})

			Convey("It should keep the logical dump on disk", func() {
				_, err := os.Stat(filepath.Join(f.dir, logical))
				So(err, ShouldBeNil)
			})

			Convey("It should send the sync failure report", func() {
				sent := f.mail.Sent()
				So(len(sent), ShouldEqual, 1)
				So(sent[0].Subject, ShouldEqual, "Backup sync failed on db01")
			})
		})

		Convey("When the backup directory cannot be created", func() {
			blocker := filepath.Join(t.TempDir(), "blocker")
			So(os.WriteFile(blocker, []byte("x"), 0644), ShouldBeNil)
			f.dir = filepath.Join(blocker, "backups")

			report := f.build().Run(ctx)

			Convey("It should exit 1 at init with a failure report", func() {
				So(report.ExitCode, ShouldEqual, domain.ExitFailure)
				So(report.Stage, ShouldEqual, domain.StageInit)
				So(f.db.DumpCalls, ShouldEqual, 0)

				sent := f.mail.Sent()
				So(len(sent), ShouldEqual, 1)
				So(sent[0].Body, ShouldContainSubstring, "Could not prepare backup directory")
			})
		})

		Convey("When notifications cannot be sent", func() {
			f.mail.NotifyFunc = func(ctx context.Context, n *domain.Notification) error {
				return errors.New("sendmail missing")
			}

			report := f.build().Run(ctx)

			Convey("It should not change the exit code", func() {
				So(report.ExitCode, ShouldEqual, domain.ExitSuccess)
				So(f.log.contains("Failed to send notification"), ShouldBeTrue)
			})
		})
	})
}
