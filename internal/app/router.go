package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/audit"
	"github.com/snt-portal/snt-portal/internal/auth"
	"github.com/snt-portal/snt-portal/internal/metering"
	"github.com/snt-portal/snt-portal/internal/news"
	"github.com/snt-portal/snt-portal/internal/observability"
	"github.com/snt-portal/snt-portal/internal/voting"
	"github.com/snt-portal/snt-portal/jobs"
)

// RouterParams aggregates everything the portal router mounts.
type RouterParams struct {
	Middleware []func(http.Handler) http.Handler

	Auth     *auth.Handler
	Accounts *accounts.Handler
	Metering *metering.Handler
	Voting   *voting.Handler
	News     *news.Handler
	Audit    *audit.Handler
	Jobs     *jobs.Handler
	Metrics  *observability.Metrics
}

// NewRouter assembles the portal HTTP router.
func NewRouter(p RouterParams) chi.Router {
	r := chi.NewRouter()
	for _, mw := range p.Middleware {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Route("/auth", p.Auth.MountRoutes)
	r.Route("/accounts", p.Accounts.MountRoutes)
	r.Route("/metering", p.Metering.MountRoutes)
	r.Route("/polls", p.Voting.MountRoutes)
	r.Route("/news", p.News.MountRoutes)
	r.Route("/audit", p.Audit.MountRoutes)
	if p.Jobs != nil {
		r.Route("/jobs", p.Jobs.MountRoutes)
	}
	if p.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", p.Metrics.Handler())
	}
	return r
}
