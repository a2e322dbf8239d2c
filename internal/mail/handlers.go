package mail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/snt-portal/snt-portal/jobs"
)

// NewTaskHandlers returns the Asynq handlers the worker registers for mail
// delivery.
func NewTaskHandlers(dispatcher Dispatcher, logger *slog.Logger) []jobs.TaskHandler {
	return []jobs.TaskHandler{
		{Type: jobs.TaskTypeSendEmail, Handler: handleSendEmail(dispatcher, logger)},
		{Type: jobs.TaskTypeBroadcastEmail, Handler: handleBroadcastEmail(dispatcher, logger)},
	}
}

func handleSendEmail(dispatcher Dispatcher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload jobs.SendEmailPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("send email payload: %w: %w", err, asynq.SkipRetry)
		}
		msg := Message{To: payload.To, Subject: payload.Subject, HTML: payload.HTML, Text: payload.Text}
		if err := dispatcher.Send(ctx, msg); err != nil {
			logger.Warn("send email failed", slog.String("to", payload.To), slog.Any("error", err))
			return err
		}
		logger.Info("email sent", slog.String("to", payload.To), slog.String("subject", payload.Subject))
		return nil
	}
}

func handleBroadcastEmail(dispatcher Dispatcher, logger *slog.Logger) asynq.HandlerFunc {
	return func(ctx context.Context, task *asynq.Task) error {
		var payload jobs.BroadcastEmailPayload
		if err := json.Unmarshal(task.Payload(), &payload); err != nil {
			return fmt.Errorf("broadcast email payload: %w: %w", err, asynq.SkipRetry)
		}
		var failed int
		for _, to := range payload.Recipients {
			msg := Message{To: to, Subject: payload.Subject, HTML: payload.HTML, Text: payload.Text}
			if err := dispatcher.Send(ctx, msg); err != nil {
				failed++
				logger.Warn("broadcast recipient failed", slog.String("to", to), slog.Any("error", err))
			}
		}
		if failed == len(payload.Recipients) && failed > 0 {
			return fmt.Errorf("broadcast: all %d deliveries failed", failed)
		}
		logger.Info("broadcast sent",
			slog.Int("recipients", len(payload.Recipients)),
			slog.Int("failed", failed),
			slog.String("subject", payload.Subject))
		return nil
	}
}
