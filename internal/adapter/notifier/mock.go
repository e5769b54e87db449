package notifier

import (
	"context"
	"sync"

	"github.com/semmidev/pgkeep/internal/domain"
)

// MockNotifier records notifications for tests.
type MockNotifier struct {
	NotifyFunc   func(ctx context.Context, n *domain.Notification) error
	ValidateFunc func(ctx context.Context) error

	mu            sync.Mutex
	Notifications []*domain.Notification
}

func (m *MockNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	m.mu.Lock()
	m.Notifications = append(m.Notifications, n)
	m.mu.Unlock()

	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, n)
	}
	return nil
}

func (m *MockNotifier) Validate(ctx context.Context) error {
	if m.ValidateFunc != nil {
		return m.ValidateFunc(ctx)
	}
	return nil
}

// Sent returns a copy of the recorded notifications.
func (m *MockNotifier) Sent() []*domain.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.Notification(nil), m.Notifications...)
}

func (m *MockNotifier) Reset() {
	m.mu.Lock()
	m.Notifications = nil
	m.mu.Unlock()
}

var _ domain.Notifier = (*MockNotifier)(nil)
