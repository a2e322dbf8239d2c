// Package mail renders and dispatches portal email. The portal side enqueues
// messages on the job queue; delivery happens in the worker through a
// Dispatcher. Failed deliveries are logged and left to manual retry.
package mail

import "context"

// Message is one rendered email ready for delivery.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// Dispatcher delivers rendered messages.
type Dispatcher interface {
	Send(ctx context.Context, msg Message) error
}
