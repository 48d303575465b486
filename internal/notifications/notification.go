// Package notifications delivers account emails (welcome, verification)
// asynchronously, off the request path.
package notifications

import "context"

// Notification is a single message to one recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
	// Kind labels metrics and logs, e.g. "welcome".
	Kind string
}

// Sender delivers a notification. Implementations wrap temporary failures
// with ErrTransientFailure; any other error is permanent.
type Sender interface {
	Send(ctx context.Context, n Notification) error
}
