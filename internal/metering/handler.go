package metering

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/snt-portal/snt-portal/internal/accounts"
	"github.com/snt-portal/snt-portal/internal/platform/httpx"
	"github.com/snt-portal/snt-portal/internal/rbac"
	"github.com/snt-portal/snt-portal/internal/shared"
)

// AccountSource resolves the acting account's record, used to find its plot.
type AccountSource interface {
	Get(ctx context.Context, id int64) (accounts.Account, error)
}

// Handler wires HTTP endpoints for the meter reading workflow.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	directory AccountSource
	guard     rbac.Middleware
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, directory AccountSource, guard rbac.Middleware) *Handler {
	return &Handler{logger: logger, service: service, directory: directory, guard: guard, validator: validator.New()}
}

// MountRoutes registers metering routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireAuthenticated())
		r.Get("/plot", h.plotStatus)
		r.Post("/plot/confirm", h.confirm)
		r.Post("/plot/revise", h.revise)
		r.Post("/plot/readings", h.submitReading)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(string(accounts.RoleAdmin), string(accounts.RoleChairman), string(accounts.RoleBoardMember)))
		r.Get("/plots", h.listPlots)
		r.Get("/plots/{plotNumber}/readings", h.readingHistory)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.guard.RequireRole(string(accounts.RoleAdmin), string(accounts.RoleChairman)))
		r.Post("/plots/{plotNumber}/unlock", h.unlock)
	})
}

type plotView struct {
	PlotNumber  string    `json:"plot_number"`
	MeterNumber string    `json:"meter_number,omitempty"`
	LockState   LockState `json:"lock_state"`
	Members     []int64   `json:"members,omitempty"`
}

type readingView struct {
	ID          int64   `json:"id"`
	PlotNumber  string  `json:"plot_number"`
	MeterNumber string  `json:"meter_number"`
	Value       float64 `json:"value"`
	SubmittedBy int64   `json:"submitted_by"`
	SubmittedAt string  `json:"submitted_at"`
	PeriodKey   string  `json:"period"`
}

func toReadingView(m MeterReading) readingView {
	return readingView{
		ID:          m.ID,
		PlotNumber:  m.PlotNumber,
		MeterNumber: m.MeterNumber,
		Value:       m.Value,
		SubmittedBy: m.SubmittedBy,
		SubmittedAt: m.SubmittedAt.UTC().Format(timeLayout),
		PeriodKey:   m.PeriodKey,
	}
}

const timeLayout = "2006-01-02T15:04:05Z07:00"

func (h *Handler) plotStatus(w http.ResponseWriter, r *http.Request) {
	actor, acc, ok := h.actingAccount(w, r)
	if !ok {
		return
	}
	if acc.PlotNumber == "" {
		httpx.Problem(w, http.StatusConflict, "No Plot", "no plot is assigned to this account")
		return
	}
	status, err := h.service.Status(r.Context(), actor, acc.PlotNumber)
	if err != nil {
		h.logger.Error("plot status", slog.String("plot", acc.PlotNumber), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{
		"plot_number":     status.Plot.PlotNumber,
		"meter_number":    status.Plot.MeterNumber,
		"state":           status.EffectiveState,
		"candidate_meter": status.CandidateMeter,
		"window_open":     status.WindowOpen,
		"period":          status.CurrentPeriodKey,
		"period_done":     status.SubmittedPeriod,
	})
}

type confirmForm struct {
	MeterNumber string `json:"meter_number" validate:"required"`
}

func (h *Handler) confirm(w http.ResponseWriter, r *http.Request) {
	actor, acc, ok := h.actingAccount(w, r)
	if !ok {
		return
	}
	var form confirmForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.Confirm(r.Context(), actor, acc.PlotNumber, form.MeterNumber); err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"state": string(LockConfirmedPending)})
}

func (h *Handler) revise(w http.ResponseWriter, r *http.Request) {
	actor, acc, ok := h.actingAccount(w, r)
	if !ok {
		return
	}
	if err := h.service.Revise(r.Context(), actor, acc.PlotNumber); err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"state": string(LockUnlocked)})
}

type submitForm struct {
	Value *float64 `json:"value" validate:"required"`
}

func (h *Handler) submitReading(w http.ResponseWriter, r *http.Request) {
	actor, acc, ok := h.actingAccount(w, r)
	if !ok {
		return
	}
	var form submitForm
	if err := httpx.DecodeJSON(r, &form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Invalid Body", "request body must be valid JSON")
		return
	}
	if err := h.validator.Struct(form); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	reading, err := h.service.SubmitReading(r.Context(), actor, acc.PlotNumber, form.Value)
	if err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toReadingView(reading))
}

func (h *Handler) listPlots(w http.ResponseWriter, r *http.Request) {
	plots, err := h.service.ListPlotsWithMeters(r.Context())
	if err != nil {
		h.logger.Error("list plots", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]plotView, 0, len(plots))
	for _, plot := range plots {
		views = append(views, plotView{
			PlotNumber:  plot.PlotNumber,
			MeterNumber: plot.MeterNumber,
			LockState:   plot.LockState,
			Members:     plot.Members,
		})
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) readingHistory(w http.ResponseWriter, r *http.Request) {
	plotNumber := chi.URLParam(r, "plotNumber")
	readings, err := h.service.ReadingHistory(r.Context(), plotNumber)
	if err != nil {
		h.logger.Error("reading history", slog.String("plot", plotNumber), slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	views := make([]readingView, 0, len(readings))
	for _, m := range readings {
		views = append(views, toReadingView(m))
	}
	httpx.JSON(w, http.StatusOK, views)
}

func (h *Handler) unlock(w http.ResponseWriter, r *http.Request) {
	actor, _, ok := h.actingAccount(w, r)
	if !ok {
		return
	}
	plotNumber := chi.URLParam(r, "plotNumber")
	if err := h.service.Unlock(r.Context(), actor, plotNumber); err != nil {
		h.respondWorkflowError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]string{"state": string(LockUnlocked)})
}

func (h *Handler) actingAccount(w http.ResponseWriter, r *http.Request) (accounts.Actor, accounts.Account, bool) {
	current, ok := rbac.ActorFromContext(r.Context())
	if !ok {
		httpx.Problem(w, http.StatusUnauthorized, "Unauthorized", "login required")
		return accounts.Actor{}, accounts.Account{}, false
	}
	acc, err := h.directory.Get(r.Context(), current.ID)
	if err != nil {
		h.logger.Error("load acting account", slog.Int64("account", current.ID), slog.Any("error", err))
		httpx.RespondError(w, err)
		return accounts.Actor{}, accounts.Account{}, false
	}
	return accounts.Actor{ID: acc.ID, Role: acc.Role}, acc, true
}

func (h *Handler) respondWorkflowError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrEmptyMeterNumber), errors.Is(err, ErrEmptyReadingValue), errors.Is(err, ErrNegativeReadingValue):
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, ErrWindowClosed):
		httpx.Problem(w, http.StatusConflict, "Window Closed", err.Error())
	case errors.Is(err, ErrDuplicateSubmission):
		httpx.Problem(w, http.StatusConflict, "Duplicate", err.Error())
	case errors.Is(err, ErrMeterNotConfirmed), errors.Is(err, ErrInvalidLockTransition):
		httpx.Problem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, ErrUnlockForbidden):
		httpx.Problem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, shared.ErrNotFound):
		httpx.Problem(w, http.StatusNotFound, "Not Found", err.Error())
	default:
		h.logger.Error("metering workflow", slog.Any("error", err))
		httpx.RespondError(w, err)
	}
}
