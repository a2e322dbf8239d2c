package accounts

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/snt-portal/snt-portal/internal/shared"
)

// ============================================================================
// MOCKS
// ============================================================================

type mockRepository struct {
	accounts map[int64]*Account
	byEmail  map[string]*Account
	nextID   int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{
		accounts: make(map[int64]*Account),
		byEmail:  make(map[string]*Account),
		nextID:   1,
	}
}

func (m *mockRepository) Create(ctx context.Context, acc Account) (Account, error) {
	if _, ok := m.byEmail[acc.Email]; ok {
		return Account{}, ErrEmailTaken
	}
	acc.ID = m.nextID
	m.nextID++
	stored := acc
	m.accounts[acc.ID] = &stored
	m.byEmail[acc.Email] = &stored
	return stored, nil
}

func (m *mockRepository) Get(ctx context.Context, id int64) (Account, error) {
	acc, ok := m.accounts[id]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return *acc, nil
}

func (m *mockRepository) FindByEmail(ctx context.Context, email string) (Account, error) {
	acc, ok := m.byEmail[email]
	if !ok {
		return Account{}, shared.ErrNotFound
	}
	return *acc, nil
}

func (m *mockRepository) List(ctx context.Context, status string) ([]Account, error) {
	var out []Account
	for _, acc := range m.accounts {
		if status == "" || acc.Status == status {
			out = append(out, *acc)
		}
	}
	return out, nil
}

func (m *mockRepository) UpdateStatus(ctx context.Context, id int64, status string, role Role) error {
	acc, ok := m.accounts[id]
	if !ok {
		return shared.ErrNotFound
	}
	acc.Status = status
	acc.Role = role
	return nil
}

func (m *mockRepository) SetMeterMirror(ctx context.Context, plotNumber, meterNumber string) error {
	for _, acc := range m.accounts {
		if acc.PlotNumber == plotNumber {
			acc.MeterNumber = meterNumber
		}
	}
	return nil
}

func (m *mockRepository) ListActiveEmails(ctx context.Context) ([]string, error) {
	var out []string
	for _, acc := range m.accounts {
		if acc.Status == StatusActive {
			out = append(out, acc.Email)
		}
	}
	return out, nil
}

func (m *mockRepository) ListPlotEmails(ctx context.Context, plotNumber string) ([]string, error) {
	var out []string
	for _, acc := range m.accounts {
		if acc.Status == StatusActive && acc.PlotNumber == plotNumber {
			out = append(out, acc.Email)
		}
	}
	return out, nil
}

var _ Repository = (*mockRepository)(nil)

type mockNotifier struct {
	received []Account
	decided  []struct {
		acc      Account
		approved bool
	}
}

func (m *mockNotifier) RegistrationReceived(ctx context.Context, acc Account) error {
	m.received = append(m.received, acc)
	return nil
}

func (m *mockNotifier) RegistrationDecided(ctx context.Context, acc Account, approved bool) error {
	m.decided = append(m.decided, struct {
		acc      Account
		approved bool
	}{acc, approved})
	return nil
}

type mockAttacher struct {
	attached map[string][]int64
}

func (m *mockAttacher) AttachMember(ctx context.Context, plotNumber string, accountID int64) error {
	if m.attached == nil {
		m.attached = make(map[string][]int64)
	}
	m.attached[plotNumber] = append(m.attached[plotNumber], accountID)
	return nil
}

func newTestService() (*Service, *mockRepository, *mockNotifier, *mockAttacher) {
	repo := newMockRepository()
	notifier := &mockNotifier{}
	attacher := &mockAttacher{}
	return NewService(repo, notifier, attacher, slog.Default()), repo, notifier, attacher
}

var chairman = Actor{ID: 99, Role: RoleChairman}

// ============================================================================
// TESTS
// ============================================================================

func TestRegister(t *testing.T) {
	svc, _, notifier, _ := newTestService()
	ctx := context.Background()

	acc, err := svc.Register(ctx, RegisterInput{
		Email:      "  Ivan@Example.COM ",
		Name:       " Ivan Petrov ",
		Password:   "long-enough-pass",
		PlotNumber: "42",
	})
	require.NoError(t, err)
	assert.Equal(t, "ivan@example.com", acc.Email)
	assert.Equal(t, "Ivan Petrov", acc.Name)
	assert.Equal(t, StatusPending, acc.Status)
	assert.Equal(t, RoleGuest, acc.Role)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte("long-enough-pass")))
	require.Len(t, notifier.received, 1)

	_, err = svc.Register(ctx, RegisterInput{Email: "ivan@example.com", Name: "Dup", Password: "long-enough-pass"})
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestApprove(t *testing.T) {
	svc, _, notifier, attacher := newTestService()
	ctx := context.Background()

	acc, err := svc.Register(ctx, RegisterInput{
		Email: "ivan@example.com", Name: "Ivan", Password: "long-enough-pass", PlotNumber: "42",
	})
	require.NoError(t, err)

	approved, err := svc.Approve(ctx, acc.ID, chairman)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, approved.Status)
	assert.Equal(t, RoleMember, approved.Role)
	assert.Equal(t, []int64{acc.ID}, attacher.attached["42"])
	require.Len(t, notifier.decided, 1)
	assert.True(t, notifier.decided[0].approved)

	// Approving twice is a no-op transition, not an error.
	_, err = svc.Approve(ctx, acc.ID, chairman)
	assert.NoError(t, err)
}

func TestApproveForbiddenForNonBoard(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	acc, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Name: "A", Password: "long-enough-pass"})
	require.NoError(t, err)

	for _, role := range []Role{RoleGuest, RoleMember, RoleBoardMember} {
		_, err := svc.Approve(ctx, acc.ID, Actor{ID: 5, Role: role})
		assert.ErrorIs(t, err, ErrStatusChangeForbidden)
	}
}

func TestRejectThenApprove(t *testing.T) {
	svc, _, notifier, _ := newTestService()
	ctx := context.Background()
	acc, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Name: "A", Password: "long-enough-pass"})
	require.NoError(t, err)

	rejected, err := svc.Reject(ctx, acc.ID, chairman)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, rejected.Status)
	require.Len(t, notifier.decided, 1)
	assert.False(t, notifier.decided[0].approved)

	// A rejected application may be re-reviewed and approved.
	approved, err := svc.Approve(ctx, acc.ID, chairman)
	require.NoError(t, err)
	assert.Equal(t, StatusActive, approved.Status)
}

func TestLookupRole(t *testing.T) {
	svc, _, _, _ := newTestService()
	ctx := context.Background()
	acc, err := svc.Register(ctx, RegisterInput{Email: "a@b.c", Name: "A", Password: "long-enough-pass"})
	require.NoError(t, err)

	role, active, err := svc.LookupRole(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "GUEST", role)
	assert.False(t, active)

	_, err = svc.Approve(ctx, acc.ID, chairman)
	require.NoError(t, err)

	role, active, err = svc.LookupRole(ctx, acc.ID)
	require.NoError(t, err)
	assert.Equal(t, "MEMBER", role)
	assert.True(t, active)

	_, _, err = svc.LookupRole(ctx, 404)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestValidateStatusTransitionTable(t *testing.T) {
	assert.NoError(t, ValidateStatusTransition(StatusPending, StatusActive))
	assert.NoError(t, ValidateStatusTransition(StatusPending, StatusRejected))
	assert.NoError(t, ValidateStatusTransition(StatusRejected, StatusActive))
	assert.NoError(t, ValidateStatusTransition(StatusActive, StatusActive))
	assert.ErrorIs(t, ValidateStatusTransition(StatusActive, StatusRejected), ErrInvalidStatusTransition)
	assert.ErrorIs(t, ValidateStatusTransition(StatusActive, StatusPending), ErrInvalidStatusTransition)
}
