package usecase

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgkeep/internal/adapter/notifier"
	"github.com/semmidev/pgkeep/internal/domain"
)

type failingTail struct{}

func (failingTail) Tail(int) ([]string, error) { return nil, errors.New("log file missing") }

func TestAlerter(t *testing.T) {
	Convey("Given an Alerter", t, func() {
		ctx := context.Background()
		log := &recordingLogger{}
		mail := &notifier.MockNotifier{}

		for i := 1; i <= 20; i++ {
			log.Infof("line %d", i)
		}

		Convey("NotifyFailure should append the log tail", func() {
			NewAlerter(mail, log, 15, log).NotifyFailure(ctx, "Backup failed on db01", "pg_dump failed\n")

			sent := mail.Sent()
			So(len(sent), ShouldEqual, 1)
			So(sent[0].Level, ShouldEqual, domain.LevelError)
			So(sent[0].Subject, ShouldEqual, "Backup failed on db01")
			So(sent[0].Body, ShouldStartWith, "pg_dump failed\n\n--- Last 15 log lines ---\nline 6\n")
			So(sent[0].Body, ShouldEndWith, "line 20\n")
			So(sent[0].Body, ShouldNotContainSubstring, "line 5\n")
		})

		Convey("NotifySuccess should send the body unchanged", func() {
			NewAlerter(mail, log, 15, log).NotifySuccess(ctx, "Backup succeeded on db01", "all good")

			sent := mail.Sent()
			So(len(sent), ShouldEqual, 1)
			So(sent[0].Level, ShouldEqual, domain.LevelInfo)
			So(sent[0].Body, ShouldEqual, "all good")
		})

		Convey("An unreadable log keeps the body as is", func() {
			NewAlerter(mail, failingTail{}, 15, log).NotifyFailure(ctx, "s", "body")

			So(mail.Sent()[0].Body, ShouldEqual, "body")
			So(log.contains("Could not read log tail"), ShouldBeTrue)
		})

		Convey("Send errors are logged and swallowed", func() {
			mail.NotifyFunc = func(ctx context.Context, n *domain.Notification) error {
				return errors.New("sendmail: exit status 75")
			}

			So(func() { NewAlerter(mail, log, 15, log).NotifyFailure(ctx, "s", "b") }, ShouldNotPanic)
			So(log.contains("Failed to send notification: sendmail: exit status 75"), ShouldBeTrue)
		})
	})
}
