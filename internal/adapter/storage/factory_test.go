package storage

import (
	"context"
	"errors"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgkeep/internal/config"
	"github.com/semmidev/pgkeep/internal/domain"
	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

func TestParseDestination(t *testing.T) {
	Convey("ParseDestination", t, func() {
		cases := []struct {
			raw  string
			want Target
		}{
			{"s3://my-bucket/pg/prod", Target{Scheme: SchemeS3, Bucket: "my-bucket", Prefix: "pg/prod"}},
			{"s3://my-bucket", Target{Scheme: SchemeS3, Bucket: "my-bucket"}},
			{"gs://bucket/db/", Target{Scheme: SchemeGCS, Bucket: "bucket", Prefix: "db"}},
			{"gdrive://1AbCdEf", Target{Scheme: SchemeGDrive, Bucket: "1AbCdEf"}},
			{"azblob://acct/container/pg", Target{Scheme: SchemeAzure, Bucket: "container", Prefix: "pg", Path: "acct"}},
			{"file:///mnt/nas/pg", Target{Scheme: SchemeFile, Path: "/mnt/nas/pg"}},
			{"b2:bucket/path", Target{Scheme: SchemeRclone, Bucket: "b2:bucket/path"}},
			{"remote:", Target{Scheme: SchemeRclone, Bucket: "remote:"}},
		}

		for _, tc := range cases {
			got, err := ParseDestination(tc.raw)
			So(err, ShouldBeNil)
			So(got, ShouldResemble, tc.want)
		}

		Convey("Invalid destinations are rejected", func() {
			for _, raw := range []string{"", "ftp://host/dir", "s3:///nobucket", "azblob://acct", "file://"} {
				_, err := ParseDestination(raw)
				So(errors.Is(err, domain.ErrUnsupportedDestination), ShouldBeTrue)
			}
		})
	})
}

func TestNewRemote(t *testing.T) {
	Convey("NewRemote", t, func() {
		ctx := context.Background()
		runner := &command.MockRunner{}

		Convey("file:// builds a LocalStorage", func() {
			remote, err := NewRemote(ctx, config.UploadConfig{Destination: "file:///mnt/nas"}, runner)
			So(err, ShouldBeNil)
			So(remote, ShouldHaveSameTypeAs, &LocalStorage{})
			So(remote.String(), ShouldEqual, "file:///mnt/nas")
		})

		Convey("Unknown schemes without :// go to rclone", func() {
			remote, err := NewRemote(ctx, config.UploadConfig{Destination: "b2:pg", RclonePath: "rclone"}, runner)
			So(err, ShouldBeNil)
			So(remote, ShouldHaveSameTypeAs, &RcloneStorage{})
			So(remote.String(), ShouldEqual, "b2:pg")
		})

		Convey("Azure uses the account from the URL when none is configured", func() {
			remote, err := NewRemote(ctx, config.UploadConfig{
				Destination: "azblob://acct/backups/pg",
				Azure:       config.AzureConfig{AccountKey: "a2V5"},
			}, runner)
			So(err, ShouldBeNil)
			So(remote.String(), ShouldEqual, "azblob://acct/backups/pg")
		})

		Convey("Unsupported schemes fail", func() {
			_, err := NewRemote(ctx, config.UploadConfig{Destination: "ftp://x/y"}, runner)
			So(err, ShouldNotBeNil)
		})
	})
}
