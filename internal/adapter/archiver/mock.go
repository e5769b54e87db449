package archiver

import (
	"context"
	"os"

	"github.com/semmidev/pgkeep/internal/domain"
)

// MockArchiver writes a placeholder file unless ArchiveFunc is set.
type MockArchiver struct {
	ArchiveFunc func(ctx context.Context, sourceDir, destPath string) error
	Sources     []string
}

func (m *MockArchiver) Archive(ctx context.Context, sourceDir, destPath string) error {
	m.Sources = append(m.Sources, sourceDir)
	if m.ArchiveFunc != nil {
		return m.ArchiveFunc(ctx, sourceDir, destPath)
	}
	return os.WriteFile(destPath, []byte("mock archive"), 0600)
}

var _ domain.Archiver = (*MockArchiver)(nil)
