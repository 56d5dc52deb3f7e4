package api

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/logoforge/internal/identity"
	"github.com/ashureev/logoforge/internal/session"
)

var errCallerMismatch = errors.New("userId does not match the caller")

// SessionHandler exposes the session store's request/response envelope.
type SessionHandler struct {
	sessions *session.Store
}

// NewSessionHandler creates a handler for POST /api/session.
func NewSessionHandler(sessions *session.Store) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// RegisterRoutes registers the envelope route.
func (h *SessionHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/session", h.Handle)
}

// Handle decodes an envelope, dispatches it and writes the envelope reply.
// Operation failures are reported in the envelope with status 200; only
// undecodable requests get a 400. Actions other than init are refused for
// callers who do not own the session.
func (h *SessionHandler) Handle(w http.ResponseWriter, r *http.Request) {
	var req session.Request
	if err := decode(w, r, &req); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.SessionID == "" {
		req.SessionID = identity.SessionIDFromContext(r.Context())
	}
	// The caller acts as its own identity; a body userId may only repeat it.
	if caller := identity.UserIDFromContext(r.Context()); caller != "" {
		if req.UserID != "" && req.UserID != caller {
			JSON(w, http.StatusOK, session.Response{Error: errCallerMismatch.Error()})
			return
		}
		req.UserID = caller
	}

	resp := h.sessions.Handle(r.Context(), req)
	if !resp.Success {
		slog.Debug("session request failed",
			"action", req.Action,
			"session_id", req.SessionID,
			"error", resp.Error)
	}
	JSON(w, http.StatusOK, resp)
}
