package notifier

import (
	"context"

	"github.com/semmidev/pgkeep/internal/domain"
)

// NopNotifier discards notifications.
type NopNotifier struct{}

func (NopNotifier) Notify(context.Context, *domain.Notification) error { return nil }

func (NopNotifier) Validate(context.Context) error { return nil }

var _ domain.Notifier = NopNotifier{}
