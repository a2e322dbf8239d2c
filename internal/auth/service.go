// Package auth implements login sessions for portal accounts.
package auth

import (
	"context"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Directory resolves accounts by their email identity.
type Directory interface {
	FindByEmail(ctx context.Context, email string) (accounts.Account, error)
}

// SessionRepository mirrors login sessions to PostgreSQL for auditing.
type SessionRepository interface {
	CreateSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, ua string) error
	DeleteSession(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	directory Directory
	sessions  SessionRepository
}

// NewService constructs a new Service.
func NewService(directory Directory, sessions SessionRepository) *Service {
	return &Service{directory: directory, sessions: sessions}
}

// Authenticate validates email/password credentials. Only active accounts may
// log in; pending and rejected memberships are indistinguishable from a bad
// password to the caller.
func (s *Service) Authenticate(ctx context.Context, email, password string) (accounts.Account, error) {
	acc, err := s.directory.FindByEmail(ctx, email)
	if err != nil {
		return accounts.Account{}, shared.ErrInvalidCredentials
	}
	if !acc.IsActive() {
		return accounts.Account{}, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acc.PasswordHash), []byte(password)); err != nil {
		return accounts.Account{}, shared.ErrInvalidCredentials
	}
	return acc, nil
}

// RegisterSession persists the session metadata in postgres.
func (s *Service) RegisterSession(ctx context.Context, id string, accountID int64, expiresAt time.Time, ip, ua string) error {
	return s.sessions.CreateSession(ctx, id, accountID, expiresAt, ip, ua)
}

// RemoveSession deletes a session record from postgres.
func (s *Service) RemoveSession(ctx context.Context, id string) error {
	return s.sessions.DeleteSession(ctx, id)
}
