// Package rbac gates HTTP handlers on the portal's fixed role set.
package rbac

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/snt-portal/snt-portal/internal/shared"
)

// Actor describes the authenticated account for the current request.
type Actor struct {
	ID   int64
	Role string
}

// RoleSource resolves the role and activity of an account.
type RoleSource interface {
	LookupRole(ctx context.Context, accountID int64) (role string, active bool, err error)
}

// Middleware wires role authorization helpers for HTTP handlers.
type Middleware struct {
	Source RoleSource
	Logger *slog.Logger
}

type actorContextKey struct{}

// ContextWithActor stores the acting account in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the acting account from context.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(Actor)
	return actor, ok
}

// RequireAuthenticated ensures a logged-in, active account.
func (m Middleware) RequireAuthenticated() func(http.Handler) http.Handler {
	return m.require(nil)
}

// RequireRole ensures the current account holds one of the given roles.
// An empty role list admits any authenticated account.
func (m Middleware) RequireRole(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		role = strings.ToUpper(strings.TrimSpace(role))
		if role != "" {
			allowed[role] = struct{}{}
		}
	}
	return m.require(allowed)
}

func (m Middleware) require(allowed map[string]struct{}) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			accountID, ok := m.currentAccountID(r)
			if !ok {
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}
			role, active, err := m.Source.LookupRole(r.Context(), accountID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
					return
				}
				if m.Logger != nil {
					m.Logger.Error("rbac lookup role", slog.Int64("account", accountID), slog.Any("error", err))
				}
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}
			if !active {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if len(allowed) > 0 {
				if _, ok := allowed[strings.ToUpper(role)]; !ok {
					http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
					return
				}
			}
			ctx := ContextWithActor(r.Context(), Actor{ID: accountID, Role: role})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m Middleware) currentAccountID(r *http.Request) (int64, bool) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		return 0, false
	}
	raw := strings.TrimSpace(sess.User())
	if raw == "" {
		return 0, false
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		if m.Logger != nil {
			m.Logger.Error("rbac parse account id", slog.String("value", raw))
		}
		return 0, false
	}
	return id, true
}
