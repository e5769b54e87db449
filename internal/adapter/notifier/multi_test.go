package notifier

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/semmidev/pgkeep/internal/domain"
)

func TestMultiNotifier_Notify_AttemptsAll(t *testing.T) {
	failing := &MockNotifier{
		NotifyFunc: func(ctx context.Context, n *domain.Notification) error {
			return errors.New("smtp down")
		},
	}
	healthy := &MockNotifier{}

	multi := NewMulti(failing, healthy)
	err := multi.Notify(context.Background(), domain.InfoNotification("s", "b"))

	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")
	assert.Len(t, failing.Sent(), 1)
	assert.Len(t, healthy.Sent(), 1)
	assert.Equal(t, 2, multi.Len())
}

func TestMultiNotifier_Validate(t *testing.T) {
	ok := &MockNotifier{}
	bad := &MockNotifier{ValidateFunc: func(ctx context.Context) error { return errors.New("no token") }}

	assert.NoError(t, NewMulti(ok).Validate(context.Background()))
	assert.ErrorContains(t, NewMulti(ok, bad).Validate(context.Background()), "no token")
}

func TestNopNotifier(t *testing.T) {
	var n NopNotifier
	assert.NoError(t, n.Notify(context.Background(), domain.InfoNotification("s", "b")))
	assert.NoError(t, n.Validate(context.Background()))
}
