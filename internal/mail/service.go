package mail

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/jobs"
)

// Enqueuer submits rendered email to the background queue.
type Enqueuer interface {
	EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error
	EnqueueBroadcastEmail(ctx context.Context, payload jobs.BroadcastEmailPayload) error
}

// QueueEnqueuer adapts the jobs client to the Enqueuer interface.
type QueueEnqueuer struct {
	Client *jobs.Client
}

// EnqueueSendEmail submits a single email task.
func (q QueueEnqueuer) EnqueueSendEmail(ctx context.Context, payload jobs.SendEmailPayload) error {
	_, err := q.Client.EnqueueSendEmail(ctx, payload)
	return err
}

// EnqueueBroadcastEmail submits a recipient-list email task.
func (q QueueEnqueuer) EnqueueBroadcastEmail(ctx context.Context, payload jobs.BroadcastEmailPayload) error {
	_, err := q.Client.EnqueueBroadcastEmail(ctx, payload)
	return err
}

// Instrumentation counts enqueued mail. Implemented by observability.Metrics.
type Instrumentation interface {
	MailEnqueued()
}

// Service renders templates and enqueues delivery tasks.
type Service struct {
	queue      Enqueuer
	metrics    Instrumentation
	logger     *slog.Logger
	portalName string
	boardEmail string
}

// NewService builds a mail Service.
func NewService(queue Enqueuer, metrics Instrumentation, logger *slog.Logger, portalName string) *Service {
	return &Service{queue: queue, metrics: metrics, logger: logger, portalName: portalName}
}

// WithBoardEmail sets the address notified about new registrations.
func (s *Service) WithBoardEmail(email string) *Service {
	s.boardEmail = email
	return s
}

// RegistrationReceived emails the applicant that their registration is
// pending and notifies the board address, when one is configured.
func (s *Service) RegistrationReceived(ctx context.Context, acc accounts.Account) error {
	html, err := renderTemplate("registration-received.html", map[string]any{
		"Name":       acc.Name,
		"PlotNumber": acc.PlotNumber,
		"PortalName": s.portalName,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("Hello %s, your registration for plot %s has been received. The board will review your membership.", acc.Name, acc.PlotNumber)
	if err := s.enqueue(ctx, jobs.SendEmailPayload{
		To:      acc.Email,
		Subject: fmt.Sprintf("[%s] Registration received", s.portalName),
		HTML:    html,
		Text:    text,
	}); err != nil {
		return err
	}
	if s.boardEmail == "" {
		return nil
	}
	boardHTML, err := renderTemplate("registration-pending.html", map[string]any{
		"Name":       acc.Name,
		"Email":      acc.Email,
		"PlotNumber": acc.PlotNumber,
		"PortalName": s.portalName,
	})
	if err != nil {
		return err
	}
	return s.enqueue(ctx, jobs.SendEmailPayload{
		To:      s.boardEmail,
		Subject: fmt.Sprintf("[%s] New registration awaiting review", s.portalName),
		HTML:    boardHTML,
		Text:    fmt.Sprintf("%s (%s) registered for plot %s and is awaiting review.", acc.Name, acc.Email, acc.PlotNumber),
	})
}

// RegistrationDecided emails the applicant the board's decision.
func (s *Service) RegistrationDecided(ctx context.Context, acc accounts.Account, approved bool) error {
	name := "registration-rejected.html"
	subject := fmt.Sprintf("[%s] Membership declined", s.portalName)
	text := fmt.Sprintf("Hello %s, your membership application for plot %s was declined.", acc.Name, acc.PlotNumber)
	if approved {
		name = "registration-approved.html"
		subject = fmt.Sprintf("[%s] Membership approved", s.portalName)
		text = fmt.Sprintf("Hello %s, your membership for plot %s has been approved.", acc.Name, acc.PlotNumber)
	}
	html, err := renderTemplate(name, map[string]any{
		"Name":       acc.Name,
		"PlotNumber": acc.PlotNumber,
		"PortalName": s.portalName,
	})
	if err != nil {
		return err
	}
	return s.enqueue(ctx, jobs.SendEmailPayload{
		To:      acc.Email,
		Subject: subject,
		HTML:    html,
		Text:    text,
	})
}

// BroadcastNews emails a published announcement to all recipients.
func (s *Service) BroadcastNews(ctx context.Context, title, body string, recipients []string) error {
	if len(recipients) == 0 {
		return nil
	}
	html, err := renderTemplate("news-broadcast.html", map[string]any{
		"Title":      title,
		"Body":       body,
		"PortalName": s.portalName,
	})
	if err != nil {
		return err
	}
	return s.broadcast(ctx, jobs.BroadcastEmailPayload{
		Recipients: recipients,
		Subject:    fmt.Sprintf("[%s] %s", s.portalName, title),
		HTML:       html,
		Text:       body,
	})
}

// ReadingReceived emails the plot's members that a reading was recorded.
func (s *Service) ReadingReceived(ctx context.Context, recipients []string, plotNumber, periodKey string, value float64) error {
	if len(recipients) == 0 {
		return nil
	}
	html, err := renderTemplate("reading-received.html", map[string]any{
		"PlotNumber": plotNumber,
		"Period":     periodKey,
		"Value":      value,
		"PortalName": s.portalName,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("A meter reading of %g was recorded for plot %s for the %s period.", value, plotNumber, periodKey)
	return s.broadcast(ctx, jobs.BroadcastEmailPayload{
		Recipients: recipients,
		Subject:    fmt.Sprintf("[%s] Reading received for plot %s", s.portalName, plotNumber),
		HTML:       html,
		Text:       text,
	})
}

// UnlockNotice emails the plot's members that their meter number was reset.
func (s *Service) UnlockNotice(ctx context.Context, recipients []string, plotNumber string) error {
	if len(recipients) == 0 {
		return nil
	}
	html, err := renderTemplate("unlock-notice.html", map[string]any{
		"PlotNumber": plotNumber,
		"PortalName": s.portalName,
	})
	if err != nil {
		return err
	}
	text := fmt.Sprintf("The meter number for plot %s has been reset by the board.", plotNumber)
	return s.broadcast(ctx, jobs.BroadcastEmailPayload{
		Recipients: recipients,
		Subject:    fmt.Sprintf("[%s] Meter reset for plot %s", s.portalName, plotNumber),
		HTML:       html,
		Text:       text,
	})
}

func (s *Service) broadcast(ctx context.Context, payload jobs.BroadcastEmailPayload) error {
	if err := s.queue.EnqueueBroadcastEmail(ctx, payload); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.MailEnqueued()
	}
	return nil
}

func (s *Service) enqueue(ctx context.Context, payload jobs.SendEmailPayload) error {
	if err := s.queue.EnqueueSendEmail(ctx, payload); err != nil {
		return err
	}
	if s.metrics != nil {
		s.metrics.MailEnqueued()
	}
	return nil
}

var _ accounts.Notifier = (*Service)(nil)
