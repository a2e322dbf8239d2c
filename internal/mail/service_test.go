package mail

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/jobs"
)

type mockEnqueuer struct {
	sent      []jobs.SendEmailPayload
	broadcast []jobs.BroadcastEmailPayload
}

func (m *mockEnqueuer) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error {
	m.sent = append(m.sent, payload)
	return nil
}

func (m *mockEnqueuer) EnqueueBroadcastEmail(ctx context.Context, payload jobs.BroadcastEmailPayload) error {
	m.broadcast = append(m.broadcast, payload)
	return nil
}

func testAccount() accounts.Account {
	return accounts.Account{
		ID:         7,
		Email:      "ivan@example.com",
		Name:       "Ivan Petrov",
		PlotNumber: "42",
	}
}

func TestRegistrationLifecycleMail(t *testing.T) {
	queue := &mockEnqueuer{}
	svc := NewService(queue, nil, slog.Default(), "SNT Portal")
	ctx := context.Background()

	require.NoError(t, svc.RegistrationReceived(ctx, testAccount()))
	require.NoError(t, svc.RegistrationDecided(ctx, testAccount(), true))
	require.NoError(t, svc.RegistrationDecided(ctx, testAccount(), false))

	require.Len(t, queue.sent, 3)
	assert.Equal(t, "ivan@example.com", queue.sent[0].To)
	assert.Contains(t, queue.sent[0].Subject, "Registration received")
	assert.Contains(t, queue.sent[0].HTML, "Ivan Petrov")
	assert.Contains(t, queue.sent[0].HTML, "42")
	assert.Contains(t, queue.sent[1].Subject, "approved")
	assert.Contains(t, queue.sent[2].Subject, "declined")
}

func TestBroadcastNews(t *testing.T) {
	queue := &mockEnqueuer{}
	svc := NewService(queue, nil, slog.Default(), "SNT Portal")
	ctx := context.Background()

	// Empty recipient lists never reach the queue.
	require.NoError(t, svc.BroadcastNews(ctx, "Water outage", "Pumps off.", nil))
	assert.Empty(t, queue.broadcast)

	require.NoError(t, svc.BroadcastNews(ctx, "Water outage", "Pumps off.", []string{"a@snt.local"}))
	require.Len(t, queue.broadcast, 1)
	assert.Equal(t, []string{"a@snt.local"}, queue.broadcast[0].Recipients)
	assert.Contains(t, queue.broadcast[0].Subject, "Water outage")
	assert.Contains(t, queue.broadcast[0].HTML, "Pumps off.")
}

func TestRegistrationNotifiesBoard(t *testing.T) {
	queue := &mockEnqueuer{}
	svc := NewService(queue, nil, slog.Default(), "SNT Portal").WithBoardEmail("board@snt.local")

	require.NoError(t, svc.RegistrationReceived(context.Background(), testAccount()))

	require.Len(t, queue.sent, 2)
	assert.Equal(t, "ivan@example.com", queue.sent[0].To)
	assert.Equal(t, "board@snt.local", queue.sent[1].To)
	assert.Contains(t, queue.sent[1].Subject, "awaiting review")
	assert.Contains(t, queue.sent[1].HTML, "ivan@example.com")
}

type fixedRoster []string

func (r fixedRoster) ListPlotEmails(ctx context.Context, plotNumber string) ([]string, error) {
	return r, nil
}

func TestMeteringNotices(t *testing.T) {
	queue := &mockEnqueuer{}
	svc := NewService(queue, nil, slog.Default(), "SNT Portal")
	notifier := NewMeteringNotifier(svc, fixedRoster{"a@snt.local", "b@snt.local"}, slog.Default())
	ctx := context.Background()

	notifier.ReadingReceived(ctx, "42", "2026-01", 125.5)
	notifier.UnlockNotice(ctx, "42")

	require.Len(t, queue.broadcast, 2)
	assert.Equal(t, []string{"a@snt.local", "b@snt.local"}, queue.broadcast[0].Recipients)
	assert.Contains(t, queue.broadcast[0].Subject, "Reading received for plot 42")
	assert.Contains(t, queue.broadcast[0].HTML, "125.5")
	assert.Contains(t, queue.broadcast[0].HTML, "2026-01")
	assert.Contains(t, queue.broadcast[1].Subject, "Meter reset for plot 42")

	// A plot with no active members produces no queue traffic.
	empty := NewMeteringNotifier(svc, fixedRoster{}, slog.Default())
	empty.ReadingReceived(ctx, "7", "2026-01", 10)
	empty.UnlockNotice(ctx, "7")
	assert.Len(t, queue.broadcast, 2)
}

type recordingDispatcher struct {
	messages []Message
}

func (d *recordingDispatcher) Send(ctx context.Context, msg Message) error {
	d.messages = append(d.messages, msg)
	return nil
}

func TestTaskHandlers(t *testing.T) {
	dispatcher := &recordingDispatcher{}
	handlers := NewTaskHandlers(dispatcher, slog.Default())
	require.Len(t, handlers, 2)
	byType := map[string]asynq.HandlerFunc{}
	for _, h := range handlers {
		byType[h.Type] = h.Handler
	}
	ctx := context.Background()

	sendPayload, err := json.Marshal(jobs.SendEmailPayload{To: "a@snt.local", Subject: "Hi", HTML: "<p>hi</p>", Text: "hi"})
	require.NoError(t, err)
	require.NoError(t, byType[jobs.TaskTypeSendEmail](ctx, asynq.NewTask(jobs.TaskTypeSendEmail, sendPayload)))
	require.Len(t, dispatcher.messages, 1)
	assert.Equal(t, "a@snt.local", dispatcher.messages[0].To)

	broadcastPayload, err := json.Marshal(jobs.BroadcastEmailPayload{
		Recipients: []string{"a@snt.local", "b@snt.local"},
		Subject:    "News",
		HTML:       "<p>news</p>",
		Text:       "news",
	})
	require.NoError(t, err)
	require.NoError(t, byType[jobs.TaskTypeBroadcastEmail](ctx, asynq.NewTask(jobs.TaskTypeBroadcastEmail, broadcastPayload)))
	assert.Len(t, dispatcher.messages, 3)

	// Malformed payloads are dropped, not retried.
	err = byType[jobs.TaskTypeSendEmail](ctx, asynq.NewTask(jobs.TaskTypeSendEmail, []byte("{bad")))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}
