package archiver

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

func readArchive(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, err
	}
	defer gz.Close()

	entries := map[string]string{}
	tr := tar.NewReader(gz)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return entries, nil
		}
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			return nil, err
		}
		entries[header.Name] = string(data)
	}
}

func TestNativeArchiver(t *testing.T) {
	Convey("Given a NativeArchiver", t, func() {
		archiver := NewNative(0)
		tempDir := t.TempDir()

		dataDir := filepath.Join(tempDir, "main")
		So(os.MkdirAll(filepath.Join(dataDir, "base", "1"), 0755), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dataDir, "PG_VERSION"), []byte("16\n"), 0644), ShouldBeNil)
		So(os.WriteFile(filepath.Join(dataDir, "base", "1", "1259"), []byte("relation"), 0644), ShouldBeNil)

		Convey("When archiving a directory", func() {
			dest := filepath.Join(tempDir, "physical.tar.gz")
			err := archiver.Archive(context.Background(), dataDir, dest)

			Convey("It should produce a gzip tarball rooted at the directory name", func() {
				So(err, ShouldBeNil)

				entries, err := readArchive(dest)
				So(err, ShouldBeNil)
				So(entries, ShouldContainKey, "main/")
				So(entries["main/PG_VERSION"], ShouldEqual, "16\n")
				So(entries["main/base/1/1259"], ShouldEqual, "relation")
			})
		})

		Convey("When the source does not exist", func() {
			dest := filepath.Join(tempDir, "missing.tar.gz")
			err := archiver.Archive(context.Background(), filepath.Join(tempDir, "nope"), dest)

			Convey("It should fail without leaving a file", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to stat source directory")
				_, statErr := os.Stat(dest)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})

		Convey("When the destination path is invalid", func() {
			err := archiver.Archive(context.Background(), dataDir, filepath.Join(tempDir, "no", "such", "dir.tar.gz"))

			Convey("It should return an error", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldContainSubstring, "failed to create dest file")
			})
		})

		Convey("When the context is cancelled", func() {
			ctx, cancel := context.WithCancel(context.Background())
			cancel()
			dest := filepath.Join(tempDir, "cancelled.tar.gz")
			err := archiver.Archive(ctx, dataDir, dest)

			Convey("It should stop and clean up", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				_, statErr := os.Stat(dest)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}

func TestAddEntryLiveFiles(t *testing.T) {
	Convey("Given a relation file stat'ed before it changes", t, func() {
		dir := t.TempDir()
		path := filepath.Join(dir, "16384")
		So(os.WriteFile(path, []byte("0123456789"), 0644), ShouldBeNil)

		info, err := os.Lstat(path)
		So(err, ShouldBeNil)
		entry := fs.FileInfoToDirEntry(info)

		var buf bytes.Buffer
		tw := tar.NewWriter(&buf)

		readBack := func() (*tar.Header, string) {
			tr := tar.NewReader(&buf)
			header, err := tr.Next()
			So(err, ShouldBeNil)
			data, err := io.ReadAll(tr)
			So(err, ShouldBeNil)
			return header, string(data)
		}

		Convey("When it shrinks before being copied", func() {
			So(os.Truncate(path, 4), ShouldBeNil)

			err := addEntry(tw, dir, path, entry)

			Convey("It should pad the entry so the archive stays valid", func() {
				So(err, ShouldBeNil)
				So(tw.Close(), ShouldBeNil)

				header, data := readBack()
				So(header.Size, ShouldEqual, 10)
				So(data, ShouldEqual, "0123"+strings.Repeat("\x00", 6))
			})
		})

		Convey("When it grows before being copied", func() {
			So(os.WriteFile(path, []byte("0123456789abcdef"), 0644), ShouldBeNil)

			err := addEntry(tw, dir, path, entry)

			Convey("It should keep only the recorded size", func() {
				So(err, ShouldBeNil)
				So(tw.Close(), ShouldBeNil)

				_, data := readBack()
				So(data, ShouldEqual, "0123456789")
			})
		})
	})
}

func TestTarArchiver(t *testing.T) {
	Convey("Given a TarArchiver", t, func() {
		runner := &command.MockRunner{}

		Convey("When archiving without elevation", func() {
			archiver := NewTar("tar", runner, command.NoElevation())
			err := archiver.Archive(context.Background(), "/var/lib/postgresql/16/main/", "/backups/p.tar.gz")

			Convey("It should call tar relative to the parent directory", func() {
				So(err, ShouldBeNil)
				So(runner.Last().Name, ShouldEqual, "tar")
				So(runner.Last().Args, ShouldResemble, []string{
					"-czf", "/backups/p.tar.gz", "-C", "/var/lib/postgresql/16", "main",
				})
			})
		})

		Convey("When archiving with superuser elevation", func() {
			elevation := command.AsRoot().WithCurrentUser(func() (string, error) { return "backup", nil })
			archiver := NewTar("", runner, elevation)
			err := archiver.Archive(context.Background(), "/srv/pgdata", "/backups/p.tar.gz")

			Convey("It should go through sudo", func() {
				So(err, ShouldBeNil)
				So(runner.Last().Name, ShouldEqual, "sudo")
				So(runner.Last().Args, ShouldResemble, []string{
					"-n", "--", "tar", "-czf", "/backups/p.tar.gz", "-C", "/srv", "pgdata",
				})
			})
		})

		Convey("When asked to archive the filesystem root", func() {
			archiver := NewTar("tar", runner, command.NoElevation())
			err := archiver.Archive(context.Background(), "/", "/backups/p.tar.gz")

			Convey("It should refuse", func() {
				So(err, ShouldNotBeNil)
				So(runner.Commands, ShouldBeEmpty)
			})
		})

		Convey("When tar fails", func() {
			dest := filepath.Join(t.TempDir(), "partial.tar.gz")
			So(os.WriteFile(dest, []byte("partial"), 0644), ShouldBeNil)
			runner.RunFunc = func(ctx context.Context, cmd command.Command) ([]byte, error) {
				return nil, errors.New("tar failed: exit status 2")
			}
			archiver := NewTar("tar", runner, command.NoElevation())
			err := archiver.Archive(context.Background(), "/srv/pgdata", dest)

			Convey("It should return the error and remove the partial file", func() {
				So(err, ShouldNotBeNil)
				_, statErr := os.Stat(dest)
				So(os.IsNotExist(statErr), ShouldBeTrue)
			})
		})
	})
}
