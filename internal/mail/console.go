package mail

import (
	"context"
	"log/slog"
)

// ConsoleDispatcher logs mail instead of delivering it. Used in development
// when no SendGrid API key is configured.
type ConsoleDispatcher struct {
	Logger *slog.Logger
}

// Send writes the message to the log.
func (d ConsoleDispatcher) Send(ctx context.Context, msg Message) error {
	d.Logger.Info("mail (console dispatch)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("text", msg.Text),
	)
	return nil
}

var _ Dispatcher = ConsoleDispatcher{}
