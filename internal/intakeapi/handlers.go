package intakeapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/linnemanlabs/intake/internal/session"
)

// sessionKey validates the key and annotates the request span with it. An
// empty key is acceptable only where the handler mints one.
func sessionKey(r *http.Request, key string) (string, bool) {
	if !session.ValidKey(key) {
		return "", false
	}
	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("intake.session", key))
	return key, true
}

func (a *API) handleChat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
		Message   string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}

	// A first-contact client may omit the key; mint one and return it.
	if body.SessionID == "" {
		body.SessionID = uuid.NewString()
	}
	key, ok := sessionKey(r, body.SessionID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
		return
	}

	res, err := a.svc.Chat(r.Context(), key, body.Message)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":       key,
		"reply":           res.Reply,
		"memoryAvailable": res.MemoryAvailable,
	})
}

func (a *API) handleTriage(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	key, ok := sessionKey(r, body.SessionID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
		return
	}

	out, err := a.svc.RunTriage(r.Context(), key)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}

	span := trace.SpanFromContext(r.Context())
	span.SetAttributes(attribute.String("intake.recommendation", string(out.Triage.Recommendation)))

	writeJSON(w, http.StatusOK, out)
}

func (a *API) handleProfile(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string               `json:"sessionId"`
		Profile   session.ProfilePatch `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	key, ok := sessionKey(r, body.SessionID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
		return
	}

	profile, err := a.svc.SetProfile(r.Context(), key, body.Profile)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "profile": profile})
}

func (a *API) handleMode(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string             `json:"sessionId"`
		Mode      session.ClinicMode `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	key, ok := sessionKey(r, body.SessionID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
		return
	}

	mode, err := a.svc.SetMode(r.Context(), key, body.Mode)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true, "mode": mode})
}

func (a *API) handleReset(w http.ResponseWriter, r *http.Request) {
	var body struct {
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid payload"})
		return
	}
	key, ok := sessionKey(r, body.SessionID)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid sessionId"})
		return
	}

	if err := a.svc.Reset(r.Context(), key); err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

func (a *API) handleState(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(r, chi.URLParam(r, "key"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session key"})
		return
	}

	st, err := a.svc.Get(r.Context(), key)
	if err != nil {
		// State reads degrade rather than error: the client gets a usable
		// default document and a flag.
		a.logger.Warn(r.Context(), "state read degraded", "session", key, "error", err.Error())
		writeJSON(w, http.StatusOK, map[string]any{"state": session.DefaultState(), "degraded": true})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"state": st})
}

func (a *API) handleExport(w http.ResponseWriter, r *http.Request) {
	key, ok := sessionKey(r, chi.URLParam(r, "key"))
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid session key"})
		return
	}

	markdown, err := a.svc.Export(r.Context(), key)
	if err != nil {
		a.writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"markdown": markdown})
}
