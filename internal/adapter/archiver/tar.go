package archiver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/semmidev/pgkeep/internal/domain"
	"github.com/semmidev/pgkeep/internal/infrastructure/command"
)

// TarArchiver shells out to tar(1) as an argv call, optionally through sudo.
type TarArchiver struct {
	tarPath   string
	runner    command.Runner
	elevation command.Elevation
}

func NewTar(tarPath string, runner command.Runner, elevation command.Elevation) *TarArchiver {
	if tarPath == "" {
		tarPath = "tar"
	}
	if runner == nil {
		runner = command.NewExecRunner()
	}
	return &TarArchiver{tarPath: tarPath, runner: runner, elevation: elevation}
}

func (a *TarArchiver) Archive(ctx context.Context, sourceDir, destPath string) error {
	src := filepath.Clean(sourceDir)
	if src == "/" || src == "." {
		return fmt.Errorf("refusing to archive %q", sourceDir)
	}

	cmd := a.elevation.Wrap(command.Command{
		Name: a.tarPath,
		Args: []string{"-czf", destPath, "-C", filepath.Dir(src), filepath.Base(src)},
	})

	if _, err := a.runner.Run(ctx, cmd); err != nil {
		_ = os.Remove(destPath)
		return err
	}
	return nil
}

var _ domain.Archiver = (*TarArchiver)(nil)
