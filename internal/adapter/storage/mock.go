package storage

import (
	"context"
	"sync"
	"time"

	"github.com/semmidev/pgkeep/internal/domain"
)

// MockStorage is an in-memory RemoteStorage for tests.
type MockStorage struct {
	Name         string
	UploadFunc   func(ctx context.Context, localPath, remoteName string) error
	ListFunc     func(ctx context.Context) ([]string, error)
	DeleteFunc   func(ctx context.Context, remoteName string) error
	OldFilesFunc func(ctx context.Context, cutoff time.Time) ([]string, error)
	ValidateFunc func(ctx context.Context) error

	mu      sync.Mutex
	Uploads []string
	Deleted []string
}

func (m *MockStorage) Upload(ctx context.Context, localPath, remoteName string) error {
	m.mu.Lock()
	m.Uploads = append(m.Uploads, remoteName)
	m.mu.Unlock()

	if m.UploadFunc != nil {
		return m.UploadFunc(ctx, localPath, remoteName)
	}
	return nil
}

func (m *MockStorage) List(ctx context.Context) ([]string, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx)
	}
	return m.Uploaded(), nil
}

func (m *MockStorage) Delete(ctx context.Context, remoteName string) error {
	m.mu.Lock()
	m.Deleted = append(m.Deleted, remoteName)
	m.mu.Unlock()

	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, remoteName)
	}
	return nil
}

func (m *MockStorage) GetOldFiles(ctx context.Context, cutoff time.Time) ([]string, error) {
	if m.OldFilesFunc != nil {
		return m.OldFilesFunc(ctx, cutoff)
	}
	return nil, nil
}

func (m *MockStorage) String() string {
	if m.Name == "" {
		return "mock://"
	}
	return m.Name
}

func (m *MockStorage) Validate(ctx context.Context) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return nil
}

// Uploaded returns a copy of the uploaded names in order.
func (m *MockStorage) Uploaded() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Uploads...)
}

var _ domain.RemoteStorage = (*MockStorage)(nil)
