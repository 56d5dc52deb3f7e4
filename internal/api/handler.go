// Package api provides HTTP handlers for the logoforge API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/ashureev/logoforge/internal/orchestrator"
	"github.com/ashureev/logoforge/internal/session"
	"github.com/ashureev/logoforge/internal/workflow"
)

// maxBodyBytes bounds request bodies; SVG payloads dominate.
const maxBodyBytes = 4 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// decode reads a JSON body into v. An empty body leaves v untouched.
func decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return nil
}

// StatusFor maps a domain error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, orchestrator.ErrConceptNotFound),
		errors.Is(err, orchestrator.ErrSVGVersionNotFound),
		errors.Is(err, orchestrator.ErrUnknownApprovalItem):
		return http.StatusNotFound
	case errors.Is(err, session.ErrOwnerMismatch):
		return http.StatusForbidden
	case errors.Is(err, workflow.ErrInvalidTransition),
		errors.Is(err, workflow.ErrIterationLimit),
		errors.Is(err, orchestrator.ErrNoPendingApproval),
		errors.Is(err, orchestrator.ErrConceptNotApproved),
		errors.Is(err, orchestrator.ErrNotEarlierPhase),
		errors.Is(err, orchestrator.ErrNotExportPhase):
		return http.StatusConflict
	case errors.Is(err, session.ErrInvalidState),
		errors.Is(err, session.ErrSessionIDRequired),
		errors.Is(err, orchestrator.ErrInvalidDecision),
		errors.Is(err, orchestrator.ErrEmptyApproval),
		errors.Is(err, orchestrator.ErrInvalidApprovalItem),
		errors.Is(err, orchestrator.ErrInvalidStatus):
		return http.StatusUnprocessableEntity
	case errors.Is(err, orchestrator.ErrExportDisabled),
		errors.Is(err, orchestrator.ErrEvaluationDisabled),
		errors.Is(err, session.ErrClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// fail writes err with its mapped status. Server-side failures are logged.
func fail(w http.ResponseWriter, r *http.Request, err error) {
	status := StatusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	Error(w, status, err.Error())
}
