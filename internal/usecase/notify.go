package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/semmidev/pgkeep/internal/domain"
)

// Alerter sends run reports. Delivery problems are logged and never returned.
type Alerter struct {
	notifier  domain.Notifier
	tail      LogTail
	tailLines int
	logger    Logger
}

func NewAlerter(notifier domain.Notifier, tail LogTail, tailLines int, logger Logger) *Alerter {
	return &Alerter{
		notifier:  notifier,
		tail:      tail,
		tailLines: tailLines,
		logger:    logger,
	}
}

// NotifyFailure sends an error report with the last log lines appended.
func (a *Alerter) NotifyFailure(ctx context.Context, subject, body string) {
	a.send(ctx, domain.ErrorNotification(subject, a.withLogTail(body)))
}

func (a *Alerter) NotifySuccess(ctx context.Context, subject, body string) {
	a.send(ctx, domain.InfoNotification(subject, body))
}

func (a *Alerter) withLogTail(body string) string {
	if a.tail == nil || a.tailLines <= 0 {
		return body
	}

	lines, err := a.tail.Tail(a.tailLines)
	if err != nil {
		a.logger.Warnf("Could not read log tail: %v", err)
		return body
	}
	if len(lines) == 0 {
		return body
	}

	var b strings.Builder
	b.WriteString(strings.TrimRight(body, "\n"))
	fmt.Fprintf(&b, "\n\n--- Last %d log lines ---\n", a.tailLines)
	b.WriteString(strings.Join(lines, "\n"))
	b.WriteString("\n")
	return b.String()
}

func (a *Alerter) send(ctx context.Context, n *domain.Notification) {
	if err := a.notifier.Notify(ctx, n); err != nil {
		a.logger.Errorf("Failed to send notification: %v", err)
	}
}
