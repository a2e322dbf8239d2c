package news

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// Broadcaster fans a published announcement out to the recipient list.
type Broadcaster interface {
	BroadcastNews(ctx context.Context, title, body string, recipients []string) error
}

// RecipientSource lists the emails of all active accounts.
type RecipientSource interface {
	ListActiveEmails(ctx context.Context) ([]string, error)
}

// Service handles announcement business logic.
type Service struct {
	repo        Repository
	broadcaster Broadcaster
	recipients  RecipientSource
	logger      *slog.Logger
	clock       func() time.Time
}

// NewService builds a Service instance.
func NewService(repo Repository, broadcaster Broadcaster, recipients RecipientSource, logger *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		broadcaster: broadcaster,
		recipients:  recipients,
		logger:      logger,
		clock:       time.Now,
	}
}

func canManageNews(role accounts.Role) bool {
	switch role {
	case accounts.RoleBoardMember, accounts.RoleChairman, accounts.RoleAdmin:
		return true
	}
	return false
}

// PostInput carries the announcement fields.
type PostInput struct {
	Title string `json:"title" validate:"required,min=3,max=200"`
	Body  string `json:"body" validate:"required"`
}

// Create stores a new draft. Board roles only.
func (s *Service) Create(ctx context.Context, actor accounts.Actor, in PostInput) (Post, error) {
	if !canManageNews(actor.Role) {
		return Post{}, shared.ErrForbidden
	}
	return s.repo.Create(ctx, Post{
		Title:    strings.TrimSpace(in.Title),
		Body:     in.Body,
		Status:   StatusDraft,
		AuthorID: actor.ID,
	})
}

// Update rewrites a draft or published post. Board roles only.
func (s *Service) Update(ctx context.Context, actor accounts.Actor, id int64, in PostInput) (Post, error) {
	if !canManageNews(actor.Role) {
		return Post{}, shared.ErrForbidden
	}
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	post.Title = strings.TrimSpace(in.Title)
	post.Body = in.Body
	if err := s.repo.Update(ctx, post); err != nil {
		return Post{}, err
	}
	return s.repo.Get(ctx, id)
}

// Publish flips a draft to published and broadcasts it to all active
// accounts. The broadcast is queued; a queue failure does not roll the
// publish back.
func (s *Service) Publish(ctx context.Context, actor accounts.Actor, id int64) (Post, error) {
	if !canManageNews(actor.Role) {
		return Post{}, shared.ErrForbidden
	}
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if post.Status == StatusPublished {
		return Post{}, ErrAlreadyPublished
	}
	if err := s.repo.MarkPublished(ctx, id, s.clock()); err != nil {
		return Post{}, err
	}
	emails, err := s.recipients.ListActiveEmails(ctx)
	if err != nil {
		s.logger.Error("broadcast recipients", slog.Int64("post_id", id), slog.Any("error", err))
	} else if err := s.broadcaster.BroadcastNews(ctx, post.Title, post.Body, emails); err != nil {
		s.logger.Error("broadcast enqueue", slog.Int64("post_id", id), slog.Any("error", err))
	}
	return s.repo.Get(ctx, id)
}

// Delete removes a post. Board roles only.
func (s *Service) Delete(ctx context.Context, actor accounts.Actor, id int64) error {
	if !canManageNews(actor.Role) {
		return shared.ErrForbidden
	}
	return s.repo.Delete(ctx, id)
}

// Get loads one post; drafts are board-only.
func (s *Service) Get(ctx context.Context, actor accounts.Actor, id int64) (Post, error) {
	post, err := s.repo.Get(ctx, id)
	if err != nil {
		return Post{}, err
	}
	if post.Status != StatusPublished && !canManageNews(actor.Role) {
		return Post{}, ErrPostNotFound
	}
	return post, nil
}

// List returns announcements. Board roles see drafts too.
func (s *Service) List(ctx context.Context, actor accounts.Actor) ([]Post, error) {
	return s.repo.List(ctx, !canManageNews(actor.Role))
}
