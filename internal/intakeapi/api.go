// Package intakeapi exposes the intake service over HTTP. It is a thin
// translation layer: decode, validate the session key, delegate, encode.
package intakeapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/linnemanlabs/go-core/log"
	"github.com/linnemanlabs/go-core/xerrors"

	"github.com/linnemanlabs/intake/internal/intake"
	"github.com/linnemanlabs/intake/internal/session"
)

// IntakeService defines the business operations the API needs.
type IntakeService interface {
	Chat(ctx context.Context, key, text string) (*intake.ChatResult, error)
	RunTriage(ctx context.Context, key string) (*intake.Outcome, error)
	Get(ctx context.Context, key string) (*session.State, error)
	SetProfile(ctx context.Context, key string, patch session.ProfilePatch) (session.Profile, error)
	SetMode(ctx context.Context, key string, mode session.ClinicMode) (session.ClinicMode, error)
	Reset(ctx context.Context, key string) error
	Export(ctx context.Context, key string) (string, error)
}

// API holds dependencies for HTTP handlers.
type API struct {
	logger log.Logger
	svc    IntakeService
}

// New creates a new API handler.
func New(logger log.Logger, svc IntakeService) *API {
	if logger == nil {
		logger = log.Nop()
	}
	if svc == nil {
		panic(xerrors.New("intake service is required"))
	}
	return &API{logger: logger, svc: svc}
}

// RegisterRoutes attaches API endpoints to the router.
func (a *API) RegisterRoutes(r chi.Router) {
	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/chat", a.handleChat)
		r.Post("/triage", a.handleTriage)
		r.Post("/profile", a.handleProfile)
		r.Post("/mode", a.handleMode)
		r.Post("/reset", a.handleReset)
		r.Get("/sessions/{key}/state", a.handleState)
		r.Get("/sessions/{key}/export", a.handleExport)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps domain errors to status codes: structurally invalid input
// and unmet preconditions are 400s, everything else is a 500.
func (a *API) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case session.IsValidation(err), errors.Is(err, intake.ErrNoHistory), errors.Is(err, intake.ErrNoTriage):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	default:
		a.logger.Error(ctx, err, "request failed")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}
