package orchestrator

import (
	"context"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/workflow"
)

// WorkflowStatus is a read-only projection of AgentState for presentation.
type WorkflowStatus struct {
	SessionID           string                       `json:"session_id"`
	CurrentPhase        domain.Phase                 `json:"current_phase"`
	ProgressPercent     int                          `json:"progress_percent"`
	CompletedPhases     []domain.Phase               `json:"completed_phases"`
	RemainingPhases     []domain.Phase               `json:"remaining_phases"`
	IterationCounts     domain.IterationCounts       `json:"iteration_counts"`
	RemainingIterations map[domain.Phase]int         `json:"remaining_iterations"`
	RequiresApproval    bool                         `json:"requires_approval"`
	AwaitingApproval    bool                         `json:"awaiting_approval"`
	PendingApproval     *domain.ApprovalRequest      `json:"pending_approval,omitempty"`
	HasBrandInfo        bool                         `json:"has_brand_info"`
	HasSelectedConcept  bool                         `json:"has_selected_concept"`
	HasCurrentSVG       bool                         `json:"has_current_svg"`
	ResearchCount       int                          `json:"research_count"`
	ConceptCount        int                          `json:"concept_count"`
	SVGVersionCount     int                          `json:"svg_version_count"`
	ActionCount         int                          `json:"action_count"`
	LatestEvaluation    *domain.AggregatedEvaluation `json:"latest_evaluation,omitempty"`
}

// Status derives the workflow status from state.
func Status(state *domain.AgentState) WorkflowStatus {
	phases := domain.Phases()
	idx := state.CurrentPhase.Index()

	st := WorkflowStatus{
		SessionID:           state.SessionID,
		CurrentPhase:        state.CurrentPhase,
		CompletedPhases:     []domain.Phase{},
		RemainingPhases:     []domain.Phase{},
		IterationCounts:     state.IterationCounts.Clone(),
		RemainingIterations: make(map[domain.Phase]int, len(phases)),
		RequiresApproval:    workflow.RequiresApproval(state.CurrentPhase),
		AwaitingApproval:    state.AwaitingApproval != nil,
		PendingApproval:     state.AwaitingApproval,
		HasBrandInfo:        !state.BrandInfo.IsEmpty(),
		HasSelectedConcept:  state.SelectedConceptID != nil,
		HasCurrentSVG:       state.CurrentSVGVersionID != nil,
		ResearchCount:       len(state.ResearchResults),
		ConceptCount:        len(state.Concepts),
		SVGVersionCount:     len(state.SVGVersions),
		ActionCount:         len(state.Actions),
	}
	if idx >= 0 && len(phases) > 1 {
		st.ProgressPercent = idx * 100 / (len(phases) - 1)
	}
	for i, p := range phases {
		switch {
		case i < idx:
			st.CompletedPhases = append(st.CompletedPhases, p)
		case i > idx:
			st.RemainingPhases = append(st.RemainingPhases, p)
		}
		st.RemainingIterations[p] = workflow.RemainingIterations(state, p)
	}
	if state.CurrentSVGVersionID != nil {
		if v, ok := state.SVGVersion(*state.CurrentSVGVersionID); ok {
			st.LatestEvaluation = v.Evaluation
		}
	}
	return st
}

// GetWorkflowStatus returns the status of a session.
func (o *Orchestrator) GetWorkflowStatus(ctx context.Context, sessionID string) (*WorkflowStatus, error) {
	state, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	st := Status(state)
	return &st, nil
}
