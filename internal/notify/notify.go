// Package notify delivers supervisor decisions to chat webhooks.
package notify

import (
	"context"
	"errors"
)

// Level is the severity of a notification
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelWarning
	LevelError
)

// Field is a labelled value rendered below the message
type Field struct {
	Title string
	Value string
	Short bool // fits next to another short field
}

// Notification is one pipeline event
type Notification struct {
	Title   string
	Message string
	Level   Level
	RunID   string // optional
	URL     string // optional link, e.g. the dashboard
	Fields  []Field
}

// Notifier delivers notifications
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// MultiNotifier delivers to every configured channel
type MultiNotifier struct {
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Send tries every channel; a failing channel does not stop the others.
// The joined error lists every failure.
func (m *MultiNotifier) Send(ctx context.Context, n Notification) error {
	var errs []error
	for _, notifier := range m.notifiers {
		if err := notifier.Send(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NoopNotifier drops every notification
type NoopNotifier struct{}

func (NoopNotifier) Send(context.Context, Notification) error { return nil }
