package domain

import "context"

// NotificationLevel is the severity of a notification.
type NotificationLevel string

const (
	LevelInfo  NotificationLevel = "info"
	LevelError NotificationLevel = "error"
)

// Notification is a single report sent to the operator.
type Notification struct {
	Subject string
	Body    string
	Level   NotificationLevel
}

// Notifier delivers notifications over one transport.
type Notifier interface {
	Notify(ctx context.Context, notification *Notification) error
	Validate(ctx context.Context) error
}

// ErrorNotification creates an error-level notification.
func ErrorNotification(subject, body string) *Notification {
	return &Notification{Subject: subject, Body: body, Level: LevelError}
}

// InfoNotification creates an info-level notification.
func InfoNotification(subject, body string) *Notification {
	return &Notification{Subject: subject, Body: body, Level: LevelInfo}
}
