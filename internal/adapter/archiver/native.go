package archiver

import (
	"archive/tar"
	"context"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/gzip"

	"github.com/semmidev/pgkeep/internal/domain"
)

// NativeArchiver writes a tar.gz in-process. The process needs read access to
// the whole tree.
type NativeArchiver struct {
	level int
}

func NewNative(level int) *NativeArchiver {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return &NativeArchiver{level: level}
}

func (a *NativeArchiver) Archive(ctx context.Context, sourceDir, destPath string) (err error) {
	src := filepath.Clean(sourceDir)
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s is not a directory", src)
	}

	destFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create dest file: %w", err)
	}
	defer func() {
		if cerr := destFile.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("failed to close dest file: %w", cerr)
		}
		if err != nil {
			_ = os.Remove(destPath)
		}
	}()

	gzipWriter, err := gzip.NewWriterLevel(destFile, a.level)
	if err != nil {
		return fmt.Errorf("failed to create gzip writer: %w", err)
	}
	tarWriter := tar.NewWriter(gzipWriter)

	root := filepath.Dir(src)
	walkErr := filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return addEntry(tarWriter, root, path, d)
	})
	if walkErr != nil {
		return fmt.Errorf("failed to archive %s: %w", src, walkErr)
	}

	if err := tarWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish tar stream: %w", err)
	}
	if err := gzipWriter.Close(); err != nil {
		return fmt.Errorf("failed to finish gzip stream: %w", err)
	}
	return nil
}

func addEntry(tw *tar.Writer, root, path string, d fs.DirEntry) error {
	info, err := d.Info()
	if err != nil {
		// files removed mid-walk (e.g. temp relations) are skipped
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}

	var link string
	if info.Mode()&os.ModeSymlink != 0 {
		if link, err = os.Readlink(path); err != nil {
			return err
		}
	}

	header, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return err
	}

	rel, err := filepath.Rel(root, path)
	if err != nil {
		return err
	}
	header.Name = filepath.ToSlash(rel)
	if info.IsDir() {
		header.Name += "/"
	}

	if err := tw.WriteHeader(header); err != nil {
		return err
	}

	if !info.Mode().IsRegular() {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	// The entry must hold exactly header.Size bytes. Growth past it is cut off,
	// and a file that shrank mid-walk is padded with zeros.
	n, err := io.CopyN(tw, f, header.Size)
	if err == io.EOF {
		_, err = io.CopyN(tw, zeros{}, header.Size-n)
	}
	return err
}

type zeros struct{}

func (zeros) Read(p []byte) (int, error) {
	clear(p)
	return len(p), nil
}

var _ domain.Archiver = (*NativeArchiver)(nil)
