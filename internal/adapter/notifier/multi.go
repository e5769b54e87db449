package notifier

import (
	"context"
	"errors"

	"github.com/semmidev/pgkeep/internal/domain"
)

// MultiNotifier sends every notification through all transports.
type MultiNotifier struct {
	notifiers []domain.Notifier
}

func NewMulti(notifiers ...domain.Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Notify attempts every transport and joins their errors.
func (m *MultiNotifier) Notify(ctx context.Context, n *domain.Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) Validate(ctx context.Context) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Validate(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m *MultiNotifier) Len() int {
	return len(m.notifiers)
}

var _ domain.Notifier = (*MultiNotifier)(nil)
