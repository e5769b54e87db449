package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLocalStorage(t *testing.T) {
	Convey("Given a LocalStorage", t, func() {
		tempDir, err := os.MkdirTemp("", "local_storage_test")
		So(err, ShouldBeNil)
		defer os.RemoveAll(tempDir)

		ctx := context.Background()

		Convey("EnsureDir", func() {
			Convey("When the directory does not exist", func() {
				newPath := filepath.Join(tempDir, "new", "nested", "dir")
				storage := NewLocal(newPath)

				Convey("It should create it", func() {
					So(storage.EnsureDir(), ShouldBeNil)

					info, err := os.Stat(newPath)
					So(err, ShouldBeNil)
					So(info.IsDir(), ShouldBeTrue)
				})

				Convey("It should be idempotent", func() {
					So(storage.EnsureDir(), ShouldBeNil)
					So(storage.EnsureDir(), ShouldBeNil)
				})
			})

			Convey("When a file is in the way", func() {
				blocker := filepath.Join(tempDir, "blocker")
				os.WriteFile(blocker, []byte("x"), 0644)

				err := NewLocal(filepath.Join(blocker, "dir")).EnsureDir()

				Convey("It should return an error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to create backup directory")
				})
			})
		})

		Convey("Upload method", func() {
			mirrorDir := filepath.Join(tempDir, "mirror")
			os.Mkdir(mirrorDir, 0755)
			storage := NewLocal(mirrorDir)

			Convey("When uploading a valid file", func() {
				sourceFile := filepath.Join(tempDir, "source.dump")
				os.WriteFile(sourceFile, []byte("test content"), 0644)

				err := storage.Upload(ctx, sourceFile, "uploaded.dump")

				Convey("It should copy and keep the source", func() {
					So(err, ShouldBeNil)

					content, err := os.ReadFile(filepath.Join(mirrorDir, "uploaded.dump"))
					So(err, ShouldBeNil)
					So(string(content), ShouldEqual, "test content")

					_, err = os.Stat(sourceFile)
					So(err, ShouldBeNil)
				})
			})

			Convey("When source file does not exist", func() {
				err := storage.Upload(ctx, "nonexistent.dump", "uploaded.dump")

				Convey("It should return error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to open source")
				})
			})
		})

		Convey("List method", func() {
			storage := NewLocal(tempDir)

			Convey("When directory has files", func() {
				os.WriteFile(filepath.Join(tempDir, "file1.dump"), []byte("test"), 0644)
				os.WriteFile(filepath.Join(tempDir, "file2.tar.gz"), []byte("test"), 0644)
				os.Mkdir(filepath.Join(tempDir, "subdir"), 0755)

				files, err := storage.List(ctx)

				Convey("It should list only files", func() {
					So(err, ShouldBeNil)
					So(len(files), ShouldEqual, 2)
					So(files, ShouldContain, "file1.dump")
					So(files, ShouldContain, "file2.tar.gz")
					So(files, ShouldNotContain, "subdir")
				})
			})

			Convey("When directory is empty", func() {
				emptyDir := filepath.Join(tempDir, "empty")
				os.Mkdir(emptyDir, 0755)

				files, err := NewLocal(emptyDir).List(ctx)

				Convey("It should return empty list", func() {
					So(err, ShouldBeNil)
					So(len(files), ShouldEqual, 0)
				})
			})
		})

		Convey("Delete method", func() {
			storage := NewLocal(tempDir)

			Convey("When deleting existing file", func() {
				testFile := "delete_me.dump"
				os.WriteFile(filepath.Join(tempDir, testFile), []byte("test"), 0644)

				err := storage.Delete(ctx, testFile)

				Convey("It should delete successfully", func() {
					So(err, ShouldBeNil)
					_, err := os.Stat(filepath.Join(tempDir, testFile))
					So(os.IsNotExist(err), ShouldBeTrue)
				})
			})

			Convey("When deleting non-existent file", func() {
				err := storage.Delete(ctx, "nonexistent.dump")

				Convey("It should return error", func() {
					So(err, ShouldNotBeNil)
					So(err.Error(), ShouldContainSubstring, "failed to delete file")
				})
			})
		})

		Convey("GetOldFiles method", func() {
			storage := NewLocal(tempDir)

			Convey("When finding old files", func() {
				oldFile := filepath.Join(tempDir, "old.dump")
				os.WriteFile(oldFile, []byte("test"), 0644)
				oldTime := time.Now().Add(-10 * 24 * time.Hour)
				os.Chtimes(oldFile, oldTime, oldTime)

				os.WriteFile(filepath.Join(tempDir, "new.dump"), []byte("test"), 0644)

				nested := filepath.Join(tempDir, "nested")
				os.Mkdir(nested, 0755)
				nestedOld := filepath.Join(nested, "deep.dump")
				os.WriteFile(nestedOld, []byte("test"), 0644)
				os.Chtimes(nestedOld, oldTime, oldTime)
				os.Chtimes(nested, oldTime, oldTime)

				cutoff := time.Now().Add(-7 * 24 * time.Hour)
				oldFiles, err := storage.GetOldFiles(ctx, cutoff)

				Convey("It should return only old top-level files", func() {
					So(err, ShouldBeNil)
					So(oldFiles, ShouldResemble, []string{"old.dump"})
				})
			})
		})

		Convey("GetPath and String", func() {
			storage := NewLocal(tempDir)

			So(storage.GetPath("test.dump"), ShouldEqual, filepath.Join(tempDir, "test.dump"))
			So(storage.String(), ShouldEqual, "file://"+tempDir)
		})

		Convey("Validate method", func() {
			So(NewLocal(tempDir).Validate(ctx), ShouldBeNil)
			So(NewLocal(filepath.Join(tempDir, "absent")).Validate(ctx), ShouldNotBeNil)
		})
	})
}
