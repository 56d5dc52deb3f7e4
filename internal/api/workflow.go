package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/identity"
	"github.com/ashureev/logoforge/internal/orchestrator"
	"github.com/ashureev/logoforge/internal/session"
)

type ctxKey int

const sessionKey ctxKey = iota

// WorkflowHandler serves the orchestrator operations.
type WorkflowHandler struct {
	orch    *orchestrator.Orchestrator
	limiter *UserRateLimiter
}

// NewWorkflowHandler creates the workflow handler. limiter may be nil.
func NewWorkflowHandler(orch *orchestrator.Orchestrator, limiter *UserRateLimiter) *WorkflowHandler {
	return &WorkflowHandler{orch: orch, limiter: limiter}
}

// RegisterRoutes registers the workflow routes.
func (h *WorkflowHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/workflow", func(r chi.Router) {
		r.Use(requireSessionID)
		r.Post("/", h.Start)

		r.Group(func(r chi.Router) {
			r.Use(h.requireOwner)
			r.Get("/", h.State)
			r.Delete("/", h.Clear)
			r.Get("/status", h.Status)
			r.Post("/brand", h.UpdateBrand)
			r.Post("/research", h.AddResearch)
			r.Post("/concepts", h.AddConcepts)
			r.Patch("/concepts/{id}", h.UpdateConcept)
			r.Post("/concepts/{id}/select", h.SelectConcept)
			r.Post("/svg", h.AddSVG)
			r.Patch("/svg/{id}", h.UpdateSVG)
			r.Post("/svg/{id}/export", h.Export)
			r.Post("/approval", h.RequestApproval)
			r.Post("/approval/{itemID}", h.HandleApproval)
			r.Post("/advance", h.Advance)
			r.Post("/back", h.GoBack)
			r.Post("/iterate", h.Iterate)

			r.Group(func(r chi.Router) {
				if h.limiter != nil {
					r.Use(h.limiter.Middleware)
				}
				r.Post("/svg/{id}/evaluate", h.Evaluate)
			})
		})
	})
}

func requireSessionID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity.SessionIDFromContext(r.Context()) == "" {
			Error(w, http.StatusBadRequest, "session id is required ("+identity.SessionHeaderName+" header or session_id query)")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireOwner loads the session once and rejects callers who do not own it.
func (h *WorkflowHandler) requireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		state, err := h.orch.State(ctx, identity.SessionIDFromContext(ctx))
		if err != nil {
			fail(w, r, err)
			return
		}
		if state.UserID != "" && state.UserID != identity.UserIDFromContext(ctx) {
			fail(w, r, session.ErrOwnerMismatch)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, state)))
	})
}

func sid(r *http.Request) string {
	return identity.SessionIDFromContext(r.Context())
}

func respond(w http.ResponseWriter, r *http.Request, v interface{}, err error) {
	if err != nil {
		fail(w, r, err)
		return
	}
	JSON(w, http.StatusOK, v)
}

// Start creates the caller's session or returns the existing one.
func (h *WorkflowHandler) Start(w http.ResponseWriter, r *http.Request) {
	state, err := h.orch.Start(r.Context(), sid(r), identity.UserIDFromContext(r.Context()))
	respond(w, r, state, err)
}

// State returns the full agent state loaded by requireOwner.
func (h *WorkflowHandler) State(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, r.Context().Value(sessionKey))
}

func (h *WorkflowHandler) Clear(w http.ResponseWriter, r *http.Request) {
	if err := h.orch.ClearSession(r.Context(), sid(r)); err != nil {
		fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *WorkflowHandler) Status(w http.ResponseWriter, r *http.Request) {
	st, err := h.orch.GetWorkflowStatus(r.Context(), sid(r))
	respond(w, r, st, err)
}

func (h *WorkflowHandler) UpdateBrand(w http.ResponseWriter, r *http.Request) {
	var patch domain.BrandInfo
	if err := decode(w, r, &patch); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.UpdateBrandInfo(r.Context(), sid(r), patch)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) AddResearch(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Results []domain.ResearchResult `json:"results"`
	}
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.AddResearchResults(r.Context(), sid(r), body.Results)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) AddConcepts(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Concepts []domain.Concept `json:"concepts"`
	}
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.AddConcepts(r.Context(), sid(r), body.Concepts)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) UpdateConcept(w http.ResponseWriter, r *http.Request) {
	var patch domain.ConceptPatch
	if err := decode(w, r, &patch); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.UpdateConcept(r.Context(), sid(r), chi.URLParam(r, "id"), patch)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) SelectConcept(w http.ResponseWriter, r *http.Request) {
	state, err := h.orch.SelectConcept(r.Context(), sid(r), chi.URLParam(r, "id"))
	respond(w, r, state, err)
}

func (h *WorkflowHandler) AddSVG(w http.ResponseWriter, r *http.Request) {
	var v domain.SVGVersion
	if err := decode(w, r, &v); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if v.SVG == "" {
		Error(w, http.StatusBadRequest, "svg is required")
		return
	}
	state, err := h.orch.AddSVGVersion(r.Context(), sid(r), v)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) UpdateSVG(w http.ResponseWriter, r *http.Request) {
	var patch domain.SVGVersionPatch
	if err := decode(w, r, &patch); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.UpdateSVGVersion(r.Context(), sid(r), chi.URLParam(r, "id"), patch)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) Evaluate(w http.ResponseWriter, r *http.Request) {
	eval, err := h.orch.EvaluateSVG(r.Context(), sid(r), chi.URLParam(r, "id"))
	respond(w, r, eval, err)
}

func (h *WorkflowHandler) Export(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.ExportSVG(r.Context(), sid(r), chi.URLParam(r, "id"))
	respond(w, r, res, err)
}

func (h *WorkflowHandler) RequestApproval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Items []orchestrator.ApprovalItemInput `json:"items"`
	}
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.RequestApproval(r.Context(), sid(r), body.Items)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) HandleApproval(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Status   domain.ApprovalStatus `json:"status"`
		Feedback string                `json:"feedback"`
	}
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.HandleApproval(r.Context(), sid(r), chi.URLParam(r, "itemID"), body.Status, body.Feedback)
	respond(w, r, state, err)
}

// Advance reports a blocked move as a normal 200 result.
func (h *WorkflowHandler) Advance(w http.ResponseWriter, r *http.Request) {
	res, err := h.orch.TryAdvancePhase(r.Context(), sid(r))
	respond(w, r, res, err)
}

func (h *WorkflowHandler) GoBack(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Phase domain.Phase `json:"phase"`
	}
	if err := decode(w, r, &body); err != nil {
		Error(w, http.StatusBadRequest, err.Error())
		return
	}
	state, err := h.orch.GoBackToPhase(r.Context(), sid(r), body.Phase)
	respond(w, r, state, err)
}

func (h *WorkflowHandler) Iterate(w http.ResponseWriter, r *http.Request) {
	state, err := h.orch.IncrementIteration(r.Context(), sid(r))
	respond(w, r, state, err)
}
