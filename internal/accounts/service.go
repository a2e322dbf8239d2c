package accounts

import (
	"context"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// Actor identifies who performs a privileged operation.
type Actor struct {
	ID   int64
	Role Role
}

// Notifier sends membership lifecycle emails.
type Notifier interface {
	RegistrationReceived(ctx context.Context, acc Account) error
	RegistrationDecided(ctx context.Context, acc Account, approved bool) error
}

// PlotAttacher links an approved account to its plot in the registry.
type PlotAttacher interface {
	AttachMember(ctx context.Context, plotNumber string, accountID int64) error
}

// Service handles membership business logic.
type Service struct {
	repo     Repository
	notifier Notifier
	plots    PlotAttacher
	logger   *slog.Logger
}

// NewService builds a Service instance.
func NewService(repo Repository, notifier Notifier, plots PlotAttacher, logger *slog.Logger) *Service {
	return &Service{repo: repo, notifier: notifier, plots: plots, logger: logger}
}

// RegisterInput carries the registration form fields.
type RegisterInput struct {
	Email      string
	Name       string
	Password   string
	PlotNumber string
}

// Register creates a pending account awaiting board approval.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Account, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Account{}, err
	}
	acc := Account{
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		Name:         strings.TrimSpace(in.Name),
		PasswordHash: string(hash),
		Role:         RoleGuest,
		Status:       StatusPending,
		PlotNumber:   strings.TrimSpace(in.PlotNumber),
	}
	created, err := s.repo.Create(ctx, acc)
	if err != nil {
		return Account{}, err
	}
	if s.notifier != nil {
		if err := s.notifier.RegistrationReceived(ctx, created); err != nil {
			s.logger.Warn("registration mail", slog.String("email", created.Email), slog.Any("error", err))
		}
	}
	return created, nil
}

// Approve activates a pending account and attaches it to its plot.
func (s *Service) Approve(ctx context.Context, id int64, actor Actor) (Account, error) {
	if actor.Role != RoleAdmin && actor.Role != RoleChairman {
		return Account{}, ErrStatusChangeForbidden
	}
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if err := ValidateStatusTransition(acc.Status, StatusActive); err != nil {
		return Account{}, err
	}
	role := acc.Role
	if role == RoleGuest {
		role = RoleMember
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusActive, role); err != nil {
		return Account{}, err
	}
	acc.Status = StatusActive
	acc.Role = role

	if s.plots != nil && acc.PlotNumber != "" {
		if err := s.plots.AttachMember(ctx, acc.PlotNumber, acc.ID); err != nil {
			s.logger.Warn("attach member to plot", slog.String("plot", acc.PlotNumber), slog.Any("error", err))
		}
	}
	if s.notifier != nil {
		if err := s.notifier.RegistrationDecided(ctx, acc, true); err != nil {
			s.logger.Warn("approval mail", slog.String("email", acc.Email), slog.Any("error", err))
		}
	}
	return acc, nil
}

// Reject declines a pending account.
func (s *Service) Reject(ctx context.Context, id int64, actor Actor) (Account, error) {
	if actor.Role != RoleAdmin && actor.Role != RoleChairman {
		return Account{}, ErrStatusChangeForbidden
	}
	acc, err := s.repo.Get(ctx, id)
	if err != nil {
		return Account{}, err
	}
	if err := ValidateStatusTransition(acc.Status, StatusRejected); err != nil {
		return Account{}, err
	}
	if err := s.repo.UpdateStatus(ctx, id, StatusRejected, acc.Role); err != nil {
		return Account{}, err
	}
	acc.Status = StatusRejected
	if s.notifier != nil {
		if err := s.notifier.RegistrationDecided(ctx, acc, false); err != nil {
			s.logger.Warn("rejection mail", slog.String("email", acc.Email), slog.Any("error", err))
		}
	}
	return acc, nil
}

// Get returns a single account.
func (s *Service) Get(ctx context.Context, id int64) (Account, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts, optionally filtered by status.
func (s *Service) List(ctx context.Context, status string) ([]Account, error) {
	return s.repo.List(ctx, status)
}

// SetMeterMirror writes the denormalized per-account meter number for a plot.
func (s *Service) SetMeterMirror(ctx context.Context, plotNumber, meterNumber string) error {
	return s.repo.SetMeterMirror(ctx, plotNumber, meterNumber)
}

// ListActiveEmails returns every active member email for broadcasts.
func (s *Service) ListActiveEmails(ctx context.Context) ([]string, error) {
	return s.repo.ListActiveEmails(ctx)
}

// LookupRole resolves the role and activity of an account for the rbac guard.
func (s *Service) LookupRole(ctx context.Context, accountID int64) (string, bool, error) {
	acc, err := s.repo.Get(ctx, accountID)
	if err != nil {
		return "", false, err
	}
	return string(acc.Role), acc.IsActive(), nil
}
