package database

import (
	"context"
	"os"

	"github.com/semmidev/pgkeep/internal/domain"
)

// MockDatabase is a domain.Database for tests. By default Dump writes a small
// file and DataDirectory returns DataDir.
type MockDatabase struct {
	Name    string
	DataDir string

	DumpFunc          func(ctx context.Context, outputPath string) error
	DataDirectoryFunc func(ctx context.Context) (string, error)
	PingFunc          func(ctx context.Context) error

	DumpCalls int
}

func (m *MockDatabase) Dump(ctx context.Context, outputPath string) error {
	m.DumpCalls++
	if m.DumpFunc != nil {
		return m.DumpFunc(ctx, outputPath)
	}
	return os.WriteFile(outputPath, []byte("PGDMP mock dump"), 0600)
}

func (m *MockDatabase) DataDirectory(ctx context.Context) (string, error) {
	if m.DataDirectoryFunc != nil {
		return m.DataDirectoryFunc(ctx)
	}
	return m.DataDir, nil
}

func (m *MockDatabase) GetName() string {
	if m.Name == "" {
		return "mockdb"
	}
	return m.Name
}

func (m *MockDatabase) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

var _ domain.Database = (*MockDatabase)(nil)
