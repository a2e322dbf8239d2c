package metering

import (
	"context"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// ============================================================================
// MOCK REPOSITORY
// ============================================================================

type mockRepository struct {
	plots    map[string]*Plot
	readings []MeterReading
	nextID   int64

	submitError error
}

func newMockRepository() *mockRepository {
	return &mockRepository{plots: make(map[string]*Plot), nextID: 1}
}

func (m *mockRepository) GetPlot(ctx context.Context, plotNumber string) (Plot, error) {
	p, ok := m.plots[plotNumber]
	if !ok {
		return Plot{}, shared.ErrNotFound
	}
	return *p, nil
}

func (m *mockRepository) GetOrCreatePlot(ctx context.Context, plotNumber string) (Plot, error) {
	if p, ok := m.plots[plotNumber]; ok {
		return *p, nil
	}
	p := &Plot{PlotNumber: plotNumber, LockState: LockUnlocked}
	m.plots[plotNumber] = p
	return *p, nil
}

func (m *mockRepository) ListPlotsWithMeters(ctx context.Context) ([]Plot, error) {
	var out []Plot
	for _, p := range m.plots {
		if p.MeterNumber != "" {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (m *mockRepository) AttachMember(ctx context.Context, plotNumber string, accountID int64) error {
	p, ok := m.plots[plotNumber]
	if !ok {
		p = &Plot{PlotNumber: plotNumber, LockState: LockUnlocked}
		m.plots[plotNumber] = p
	}
	p.Members = append(p.Members, accountID)
	return nil
}

func (m *mockRepository) SubmitReading(ctx context.Context, reading MeterReading) (MeterReading, error) {
	if m.submitError != nil {
		return MeterReading{}, m.submitError
	}
	for _, r := range m.readings {
		if r.PlotNumber == reading.PlotNumber && r.PeriodKey == reading.PeriodKey {
			return MeterReading{}, ErrDuplicateSubmission
		}
	}
	reading.ID = m.nextID
	m.nextID++
	m.readings = append(m.readings, reading)

	p := m.plots[reading.PlotNumber]
	p.MeterNumber = reading.MeterNumber
	p.LockState = LockLocked
	return reading, nil
}

func (m *mockRepository) ResetLock(ctx context.Context, plotNumber string) error {
	p, ok := m.plots[plotNumber]
	if !ok {
		return shared.ErrNotFound
	}
	p.MeterNumber = ""
	p.LockState = LockUnlocked
	return nil
}

func (m *mockRepository) ListReadings(ctx context.Context, plotNumber string) ([]MeterReading, error) {
	var out []MeterReading
	for _, r := range m.readings {
		if r.PlotNumber == plotNumber {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepository) HasReading(ctx context.Context, plotNumber, periodKey string) (bool, error) {
	for _, r := range m.readings {
		if r.PlotNumber == plotNumber && r.PeriodKey == periodKey {
			return true, nil
		}
	}
	return false, nil
}

var _ Repository = (*mockRepository)(nil)

// ============================================================================
// MOCK COLLABORATORS
// ============================================================================

type mockConfirmations struct {
	candidates map[string]string
}

func newMockConfirmations() *mockConfirmations {
	return &mockConfirmations{candidates: make(map[string]string)}
}

func holdKey(accountID int64, plotNumber string) string {
	return fmt.Sprintf("%d:%s", accountID, plotNumber)
}

func (m *mockConfirmations) SetCandidate(ctx context.Context, accountID int64, plotNumber, meterNumber string) error {
	m.candidates[holdKey(accountID, plotNumber)] = meterNumber
	return nil
}

func (m *mockConfirmations) Candidate(ctx context.Context, accountID int64, plotNumber string) (string, error) {
	return m.candidates[holdKey(accountID, plotNumber)], nil
}

func (m *mockConfirmations) ClearCandidate(ctx context.Context, accountID int64, plotNumber string) error {
	delete(m.candidates, holdKey(accountID, plotNumber))
	return nil
}

type mockMirror struct {
	meters map[string]string
}

func (m *mockMirror) SetMeterMirror(ctx context.Context, plotNumber, meterNumber string) error {
	if m.meters == nil {
		m.meters = make(map[string]string)
	}
	m.meters[plotNumber] = meterNumber
	return nil
}

type mockAudit struct {
	logs []shared.AuditLog
}

func (m *mockAudit) Record(ctx context.Context, log shared.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

type mockPublisher struct {
	events []ChangeEvent
}

func (m *mockPublisher) Publish(ctx context.Context, channel string, payload any) error {
	if event, ok := payload.(ChangeEvent); ok {
		m.events = append(m.events, event)
	}
	return nil
}

type notice struct {
	kind       string
	plotNumber string
	periodKey  string
	value      float64
}

type mockNotifier struct {
	notices []notice
}

func (m *mockNotifier) ReadingReceived(ctx context.Context, plotNumber, periodKey string, value float64) {
	m.notices = append(m.notices, notice{kind: "reading", plotNumber: plotNumber, periodKey: periodKey, value: value})
}

func (m *mockNotifier) UnlockNotice(ctx context.Context, plotNumber string) {
	m.notices = append(m.notices, notice{kind: "unlock", plotNumber: plotNumber})
}

// ============================================================================
// FIXTURE
// ============================================================================

type fixture struct {
	repo     *mockRepository
	holds    *mockConfirmations
	mirror   *mockMirror
	audit    *mockAudit
	events   *mockPublisher
	notifier *mockNotifier
	service  *Service
}

func newFixture(now time.Time) *fixture {
	f := &fixture{
		repo:     newMockRepository(),
		holds:    newMockConfirmations(),
		mirror:   &mockMirror{},
		audit:    &mockAudit{},
		events:   &mockPublisher{},
		notifier: &mockNotifier{},
	}
	f.service = NewService(f.repo, f.holds, f.mirror, f.audit, f.events, nil, slog.Default()).
		WithNotifier(f.notifier).
		WithClock(func() time.Time { return now })
	return f
}

var (
	member   = accounts.Actor{ID: 7, Role: accounts.RoleMember}
	chairman = accounts.Actor{ID: 1, Role: accounts.RoleChairman}
	admin    = accounts.Actor{ID: 2, Role: accounts.RoleAdmin}
	board    = accounts.Actor{ID: 3, Role: accounts.RoleBoardMember}
)

func inWindow() time.Time {
	return time.Date(2026, time.January, 23, 10, 0, 0, 0, time.UTC)
}

func outsideWindow() time.Time {
	return time.Date(2026, time.January, 10, 10, 0, 0, 0, time.UTC)
}

// ============================================================================
// FIRST SUBMISSION
// ============================================================================

func TestFirstSubmissionLocksMeter(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()

	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))

	status, err := f.service.Status(ctx, member, "42")
	require.NoError(t, err)
	assert.Equal(t, LockConfirmedPending, status.EffectiveState)
	assert.Equal(t, "PU-1001", status.CandidateMeter)
	// Confirmation alone persists nothing on the plot.
	assert.Equal(t, LockUnlocked, f.repo.plots["42"].LockState)
	assert.Empty(t, f.repo.plots["42"].MeterNumber)

	value := 125.5
	reading, err := f.service.SubmitReading(ctx, member, "42", &value)
	require.NoError(t, err)
	assert.Equal(t, "PU-1001", reading.MeterNumber)
	assert.Equal(t, 125.5, reading.Value)
	assert.Equal(t, "2026-01", reading.PeriodKey)
	assert.Equal(t, member.ID, reading.SubmittedBy)

	plot := f.repo.plots["42"]
	assert.Equal(t, LockLocked, plot.LockState)
	assert.Equal(t, "PU-1001", plot.MeterNumber)
	assert.Equal(t, "PU-1001", f.mirror.meters["42"])
	// The session hold is consumed by the submission.
	candidate, _ := f.holds.Candidate(ctx, member.ID, "42")
	assert.Empty(t, candidate)

	require.Len(t, f.events.events, 1)
	assert.Equal(t, "reading_submitted", f.events.events[0].Kind)

	require.Len(t, f.notifier.notices, 1)
	assert.Equal(t, notice{kind: "reading", plotNumber: "42", periodKey: "2026-01", value: 125.5}, f.notifier.notices[0])
}

func TestSubmitWithoutConfirmation(t *testing.T) {
	f := newFixture(inWindow())
	value := 100.0
	_, err := f.service.SubmitReading(context.Background(), member, "42", &value)
	assert.ErrorIs(t, err, ErrMeterNotConfirmed)
	assert.Empty(t, f.repo.readings)
}

func TestSubmitValidation(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()

	_, err := f.service.SubmitReading(ctx, member, "42", nil)
	assert.ErrorIs(t, err, ErrEmptyReadingValue)

	negative := -1.0
	_, err = f.service.SubmitReading(ctx, member, "42", &negative)
	assert.ErrorIs(t, err, ErrNegativeReadingValue)
}

func TestConfirmValidation(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()

	err := f.service.Confirm(ctx, member, "42", "   ")
	assert.ErrorIs(t, err, ErrEmptyMeterNumber)

	// A locked plot cannot take a new candidate.
	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))
	value := 10.0
	_, err = f.service.SubmitReading(ctx, member, "42", &value)
	require.NoError(t, err)
	err = f.service.Confirm(ctx, member, "42", "PU-2002")
	assert.ErrorIs(t, err, ErrInvalidLockTransition)
}

func TestRevise(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()

	// Nothing to revise before confirming.
	assert.ErrorIs(t, f.service.Revise(ctx, member, "42"), ErrMeterNotConfirmed)

	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))
	require.NoError(t, f.service.Revise(ctx, member, "42"))

	status, err := f.service.Status(ctx, member, "42")
	require.NoError(t, err)
	assert.Equal(t, LockUnlocked, status.EffectiveState)
	assert.Empty(t, status.CandidateMeter)
}

// ============================================================================
// DUPLICATE AND WINDOW REJECTION
// ============================================================================

func TestDuplicateSubmissionRejected(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()

	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))
	first := 125.5
	_, err := f.service.SubmitReading(ctx, member, "42", &first)
	require.NoError(t, err)

	second := 130.0
	_, err = f.service.SubmitReading(ctx, member, "42", &second)
	assert.ErrorIs(t, err, ErrDuplicateSubmission)

	// The ledger keeps exactly the first value.
	readings, err := f.service.ReadingHistory(ctx, "42")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, 125.5, readings[0].Value)
}

func TestWindowClosedRejected(t *testing.T) {
	f := newFixture(outsideWindow())
	ctx := context.Background()

	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))
	value := 125.5
	_, err := f.service.SubmitReading(ctx, member, "42", &value)
	assert.ErrorIs(t, err, ErrWindowClosed)

	// Rejection leaves no trace: no ledger row, no lock, candidate intact.
	assert.Empty(t, f.repo.readings)
	assert.Equal(t, LockUnlocked, f.repo.plots["42"].LockState)
	candidate, _ := f.holds.Candidate(ctx, member.ID, "42")
	assert.Equal(t, "PU-1001", candidate)
}

func TestLockedPlotResubmitsNextPeriod(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()

	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))
	jan := 125.5
	_, err := f.service.SubmitReading(ctx, member, "42", &jan)
	require.NoError(t, err)

	// Next month the plot is locked: no confirmation needed, the fixed
	// meter number carries over.
	f.service.WithClock(func() time.Time {
		return time.Date(2026, time.February, 24, 10, 0, 0, 0, time.UTC)
	})
	feb := 140.0
	reading, err := f.service.SubmitReading(ctx, member, "42", &feb)
	require.NoError(t, err)
	assert.Equal(t, "PU-1001", reading.MeterNumber)
	assert.Equal(t, "2026-02", reading.PeriodKey)
}

// ============================================================================
// ADMIN UNLOCK
// ============================================================================

func submitLocked(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, f.service.Confirm(ctx, member, "42", "PU-1001"))
	value := 125.5
	_, err := f.service.SubmitReading(ctx, member, "42", &value)
	require.NoError(t, err)
}

func TestUnlockByChairman(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()
	submitLocked(t, f)

	require.NoError(t, f.service.Unlock(ctx, chairman, "42"))

	plot := f.repo.plots["42"]
	assert.Equal(t, LockUnlocked, plot.LockState)
	assert.Empty(t, plot.MeterNumber)
	assert.Empty(t, f.mirror.meters["42"])

	// The ledger survives the unlock.
	readings, err := f.service.ReadingHistory(ctx, "42")
	require.NoError(t, err)
	require.Len(t, readings, 1)
	assert.Equal(t, "PU-1001", readings[0].MeterNumber)

	require.Len(t, f.audit.logs, 1)
	assert.Equal(t, "meter.unlock", f.audit.logs[0].Action)
	assert.Equal(t, "42", f.audit.logs[0].EntityID)
	assert.Equal(t, "PU-1001", f.audit.logs[0].Meta["previous_meter"])

	last := f.notifier.notices[len(f.notifier.notices)-1]
	assert.Equal(t, notice{kind: "unlock", plotNumber: "42"}, last)
}

func TestUnlockByAdmin(t *testing.T) {
	f := newFixture(inWindow())
	submitLocked(t, f)
	assert.NoError(t, f.service.Unlock(context.Background(), admin, "42"))
}

func TestUnlockForbiddenRoles(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()
	submitLocked(t, f)

	for _, actor := range []accounts.Actor{member, board} {
		err := f.service.Unlock(ctx, actor, "42")
		assert.ErrorIs(t, err, ErrUnlockForbidden)
	}
	// Nothing changed.
	assert.Equal(t, LockLocked, f.repo.plots["42"].LockState)
	assert.Empty(t, f.audit.logs)
}

func TestStatusReflectsSubmittedPeriod(t *testing.T) {
	f := newFixture(inWindow())
	ctx := context.Background()
	submitLocked(t, f)

	status, err := f.service.Status(ctx, member, "42")
	require.NoError(t, err)
	assert.Equal(t, LockLocked, status.EffectiveState)
	assert.True(t, status.SubmittedPeriod)
	assert.True(t, status.WindowOpen)
	assert.Equal(t, "2026-01", status.CurrentPeriodKey)
}
