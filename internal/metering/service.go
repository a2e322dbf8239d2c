package metering

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// ConfirmationStore holds not-yet-submitted candidate meter numbers. The
// candidate lives outside the plot record: nothing is persisted on the plot
// until the member actually submits a reading.
type ConfirmationStore interface {
	SetCandidate(ctx context.Context, accountID int64, plotNumber, meterNumber string) error
	Candidate(ctx context.Context, accountID int64, plotNumber string) (string, error)
	ClearCandidate(ctx context.Context, accountID int64, plotNumber string) error
}

// DirectoryMirror writes the denormalized per-account meter number copy kept
// by the membership directory for display.
type DirectoryMirror interface {
	SetMeterMirror(ctx context.Context, plotNumber, meterNumber string) error
}

// AuditRecorder stores administrative actions for later display.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Publisher fans out change notifications to dashboards.
type Publisher interface {
	Publish(ctx context.Context, channel string, payload any) error
}

// Instrumentation receives domain counters. Implemented by observability.Metrics.
type Instrumentation interface {
	ReadingSubmitted()
	MeterUnlocked()
}

// Notifier emails the plot's members after workflow changes. Implementations
// handle their own failures; calls never block the workflow outcome.
type Notifier interface {
	ReadingReceived(ctx context.Context, plotNumber, periodKey string, value float64)
	UnlockNotice(ctx context.Context, plotNumber string)
}

// ChannelMetering is the pub/sub channel for workflow change events.
const ChannelMetering = "metering:changed"

// ChangeEvent is published after every successful submission or unlock.
type ChangeEvent struct {
	Kind       string `json:"kind"`
	PlotNumber string `json:"plot_number"`
	PeriodKey  string `json:"period_key,omitempty"`
}

// Service orchestrates the meter reading workflow.
type Service struct {
	repo     Repository
	holds    ConfirmationStore
	mirror   DirectoryMirror
	audit    AuditRecorder
	events   Publisher
	metrics  Instrumentation
	notifier Notifier
	logger   *slog.Logger
	clock    func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, holds ConfirmationStore, mirror DirectoryMirror, audit AuditRecorder, events Publisher, metrics Instrumentation, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		holds:   holds,
		mirror:  mirror,
		audit:   audit,
		events:  events,
		metrics: metrics,
		logger:  logger,
		clock:   time.Now,
	}
}

// WithNotifier attaches a mail notifier for workflow change notices.
func (s *Service) WithNotifier(notifier Notifier) *Service {
	s.notifier = notifier
	return s
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(clock func() time.Time) *Service {
	s.clock = clock
	return s
}

// PlotStatus is the member-facing view of a plot's workflow state.
type PlotStatus struct {
	Plot             Plot
	EffectiveState   LockState
	CandidateMeter   string
	WindowOpen       bool
	SubmittedPeriod  bool
	CurrentPeriodKey string
}

// Status returns the workflow state of a plot as seen by one member. The
// effective state folds the member's session-held confirmation into the
// persisted lock state.
func (s *Service) Status(ctx context.Context, actor accounts.Actor, plotNumber string) (PlotStatus, error) {
	plot, err := s.repo.GetOrCreatePlot(ctx, plotNumber)
	if err != nil {
		return PlotStatus{}, err
	}
	now := s.clock()
	status := PlotStatus{
		Plot:             plot,
		EffectiveState:   plot.LockState,
		WindowOpen:       IsSubmissionOpen(now),
		CurrentPeriodKey: PeriodKeyFor(now),
	}
	if plot.LockState == LockUnlocked {
		candidate, err := s.holds.Candidate(ctx, actor.ID, plotNumber)
		if err != nil {
			return PlotStatus{}, err
		}
		if candidate != "" {
			status.EffectiveState = LockConfirmedPending
			status.CandidateMeter = candidate
		}
	}
	submitted, err := s.repo.HasReading(ctx, plotNumber, status.CurrentPeriodKey)
	if err != nil {
		return PlotStatus{}, err
	}
	status.SubmittedPeriod = submitted
	return status, nil
}

// Confirm records a candidate meter number for the member's session. The
// plot itself is not modified; the candidate only becomes authoritative when
// a reading is submitted.
func (s *Service) Confirm(ctx context.Context, actor accounts.Actor, plotNumber, candidate string) error {
	candidate = strings.TrimSpace(candidate)
	if candidate == "" {
		return ErrEmptyMeterNumber
	}
	plot, err := s.repo.GetOrCreatePlot(ctx, plotNumber)
	if err != nil {
		return err
	}
	if err := ValidateLockTransition(plot.LockState, LockConfirmedPending); err != nil {
		return err
	}
	return s.holds.SetCandidate(ctx, actor.ID, plotNumber, candidate)
}

// Revise backs out of a not-yet-submitted confirmation so the member can
// retype the number. Nothing was persisted, so nothing is rolled back.
func (s *Service) Revise(ctx context.Context, actor accounts.Actor, plotNumber string) error {
	candidate, err := s.holds.Candidate(ctx, actor.ID, plotNumber)
	if err != nil {
		return err
	}
	if candidate == "" {
		return ErrMeterNotConfirmed
	}
	return s.holds.ClearCandidate(ctx, actor.ID, plotNumber)
}

// SubmitReading records one reading for the current period and locks the
// plot's meter number. Validation happens strictly before any mutation;
// window and duplicate violations leave the ledger untouched, so a retry
// after correcting the violated precondition behaves identically.
func (s *Service) SubmitReading(ctx context.Context, actor accounts.Actor, plotNumber string, value *float64) (MeterReading, error) {
	if value == nil {
		return MeterReading{}, ErrEmptyReadingValue
	}
	if *value < 0 {
		return MeterReading{}, ErrNegativeReadingValue
	}
	now := s.clock()
	if !IsSubmissionOpen(now) {
		return MeterReading{}, ErrWindowClosed
	}

	plot, err := s.repo.GetOrCreatePlot(ctx, plotNumber)
	if err != nil {
		return MeterReading{}, err
	}

	meterNumber := plot.MeterNumber
	fromCandidate := false
	if plot.LockState != LockLocked {
		candidate, err := s.holds.Candidate(ctx, actor.ID, plotNumber)
		if err != nil {
			return MeterReading{}, err
		}
		if candidate == "" {
			return MeterReading{}, ErrMeterNotConfirmed
		}
		if err := ValidateLockTransition(LockConfirmedPending, LockLocked); err != nil {
			return MeterReading{}, err
		}
		meterNumber = candidate
		fromCandidate = true
	}

	reading := MeterReading{
		PlotNumber:  plotNumber,
		MeterNumber: meterNumber,
		Value:       *value,
		SubmittedBy: actor.ID,
		SubmittedAt: now.UTC(),
		PeriodKey:   PeriodKeyFor(now),
	}
	stored, err := s.repo.SubmitReading(ctx, reading)
	if err != nil {
		return MeterReading{}, err
	}

	if fromCandidate {
		if err := s.holds.ClearCandidate(ctx, actor.ID, plotNumber); err != nil {
			s.logger.Warn("clear confirmation", slog.String("plot", plotNumber), slog.Any("error", err))
		}
	}
	if s.mirror != nil {
		if err := s.mirror.SetMeterMirror(ctx, plotNumber, meterNumber); err != nil {
			s.logger.Warn("update directory mirror", slog.String("plot", plotNumber), slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.ReadingSubmitted()
	}
	if s.notifier != nil {
		s.notifier.ReadingReceived(ctx, plotNumber, stored.PeriodKey, stored.Value)
	}
	s.publish(ctx, ChangeEvent{Kind: "reading_submitted", PlotNumber: plotNumber, PeriodKey: stored.PeriodKey})
	return stored, nil
}

// Unlock resets a plot's lock and clears its meter number. Only admin and
// chairman roles pass the guard; the ledger history is preserved, and the
// action is recorded for audit display.
func (s *Service) Unlock(ctx context.Context, actor accounts.Actor, plotNumber string) error {
	if !CanUnlock(actor.Role) {
		return ErrUnlockForbidden
	}
	plot, err := s.repo.GetPlot(ctx, plotNumber)
	if err != nil {
		return err
	}
	if err := ValidateLockTransition(plot.LockState, LockUnlocked); err != nil {
		return err
	}
	if err := s.repo.ResetLock(ctx, plotNumber); err != nil {
		return err
	}
	if s.mirror != nil {
		if err := s.mirror.SetMeterMirror(ctx, plotNumber, ""); err != nil {
			s.logger.Warn("clear directory mirror", slog.String("plot", plotNumber), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		err := s.audit.Record(ctx, shared.AuditLog{
			ActorID:   actor.ID,
			ActorRole: string(actor.Role),
			Action:    "meter.unlock",
			Entity:    "plot",
			EntityID:  plotNumber,
			Meta:      map[string]any{"previous_meter": plot.MeterNumber},
			At:        s.clock().UTC(),
		})
		if err != nil {
			s.logger.Warn("audit unlock", slog.String("plot", plotNumber), slog.Any("error", err))
		}
	}
	if s.metrics != nil {
		s.metrics.MeterUnlocked()
	}
	if s.notifier != nil {
		s.notifier.UnlockNotice(ctx, plotNumber)
	}
	s.publish(ctx, ChangeEvent{Kind: "meter_unlocked", PlotNumber: plotNumber})
	return nil
}

// AttachMember links an account to a plot in the registry.
func (s *Service) AttachMember(ctx context.Context, plotNumber string, accountID int64) error {
	return s.repo.AttachMember(ctx, plotNumber, accountID)
}

// ListPlotsWithMeters returns every plot holding a meter number, ordered by
// numeric plot number ascending.
func (s *Service) ListPlotsWithMeters(ctx context.Context) ([]Plot, error) {
	plots, err := s.repo.ListPlotsWithMeters(ctx)
	if err != nil {
		return nil, err
	}
	SortPlots(plots)
	return plots, nil
}

// ReadingHistory returns the full ledger for one plot.
func (s *Service) ReadingHistory(ctx context.Context, plotNumber string) ([]MeterReading, error) {
	return s.repo.ListReadings(ctx, plotNumber)
}

func (s *Service) publish(ctx context.Context, event ChangeEvent) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, ChannelMetering, event); err != nil {
		s.logger.Warn("publish change event", slog.String("kind", event.Kind), slog.Any("error", err))
	}
}
