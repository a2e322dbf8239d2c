// Package audit exposes the audit trail to board roles, mainly for
// reviewing administrative meter unlocks.
package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/platform/httpx"
	"github.com/snt-portal/snt-portal/internal/rbac"
)

// Entry is a single audit record as served over the API.
type Entry struct {
	ID         int64          `json:"id"`
	ActorID    int64          `json:"actor_id"`
	ActorRole  string         `json:"actor_role"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// ListFilter narrows the audit listing.
type ListFilter struct {
	Action   string
	EntityID string
	Limit    int
}

// Repository reads from audit_logs.
type Repository interface {
	List(ctx context.Context, filter ListFilter) ([]Entry, error)
}

// PGRepository is the PostgreSQL implementation of Repository.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository builds a PGRepository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// List returns audit entries newest first.
func (r *PGRepository) List(ctx context.Context, filter ListFilter) ([]Entry, error) {
	q := `SELECT id, actor_id, actor_role, action, entity, entity_id, meta, occurred_at FROM audit_logs`
	args := []any{}
	where := ""
	if filter.Action != "" {
		args = append(args, filter.Action)
		where = fmt.Sprintf(" WHERE action = $%d", len(args))
	}
	if filter.EntityID != "" {
		args = append(args, filter.EntityID)
		if where == "" {
			where = fmt.Sprintf(" WHERE entity_id = $%d", len(args))
		} else {
			where += fmt.Sprintf(" AND entity_id = $%d", len(args))
		}
	}
	limit := filter.Limit
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	args = append(args, limit)
	q += where + fmt.Sprintf(" ORDER BY occurred_at DESC LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit logs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var metaJSON []byte
		if err := rows.Scan(&e.ID, &e.ActorID, &e.ActorRole, &e.Action, &e.Entity, &e.EntityID, &metaJSON, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("scan audit log: %w", err)
		}
		if len(metaJSON) > 0 {
			// Meta is display-only; a corrupt blob is shown empty.
			_ = json.Unmarshal(metaJSON, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Handler serves the audit trail to board roles.
type Handler struct {
	logger *slog.Logger
	repo   Repository
	guard  rbac.Middleware
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, repo Repository, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, repo: repo, guard: guard}
}

// MountRoutes registers audit routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(
			string(accounts.RoleBoardMember),
			string(accounts.RoleChairman),
			string(accounts.RoleAdmin),
		))
		r.Get("/", h.list)
	})
}

func (h *Handler) list(w http.ResponseWriter, r *http.Request) {
	filter := ListFilter{
		Action:   r.URL.Query().Get("action"),
		EntityID: r.URL.Query().Get("entity_id"),
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Invalid Limit", "limit must be numeric")
			return
		}
		filter.Limit = limit
	}
	entries, err := h.repo.List(r.Context(), filter)
	if err != nil {
		h.logger.Error("list audit logs", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, entries)
}
