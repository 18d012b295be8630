// Package notification delivers best-effort sync events to external services.
package notification

import "context"

// NotifierType identifies a notification backend.
type NotifierType string

const (
	NotifierDiscord NotifierType = "discord"
	NotifierWebhook NotifierType = "webhook"
	NotifierMock    NotifierType = "mock"
)

// Notifier is implemented by every notification backend.
type Notifier interface {
	Type() NotifierType
	Name() string
	Test(ctx context.Context) error
	Notify(ctx context.Context, event Event) error
}
