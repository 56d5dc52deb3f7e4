package orchestrator

import (
	"context"
	"fmt"

	"github.com/ashureev/logoforge/internal/domain"
)

// ApprovalItemInput names one entity to put in front of the reviewer.
type ApprovalItemInput struct {
	Type     domain.ApprovalItemType `json:"type"`
	EntityID string                  `json:"entity_id"`
}

// RequestApproval installs a new approval request for the current phase.
// An outstanding request is replaced, not rejected; callers that must not
// supersede a pending review check AwaitingApproval first.
func (o *Orchestrator) RequestApproval(ctx context.Context, sessionID string, items []ApprovalItemInput) (*domain.AgentState, error) {
	if len(items) == 0 {
		return nil, ErrEmptyApproval
	}
	return o.mutate(ctx, "request_approval", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		req := &domain.ApprovalRequest{
			Phase:       state.CurrentPhase,
			Items:       make([]domain.ApprovalItem, 0, len(items)),
			RequestedAt: o.now(),
		}
		for _, in := range items {
			if err := checkApprovalTarget(state, in); err != nil {
				return nil, err
			}
			req.Items = append(req.Items, domain.ApprovalItem{
				ID:       o.newID(),
				Type:     in.Type,
				EntityID: in.EntityID,
				Status:   domain.ApprovalPending,
			})
		}
		if state.AwaitingApproval != nil {
			o.logger.Info("replacing outstanding approval request",
				"session_id", sessionID, "phase", state.AwaitingApproval.Phase)
		}
		state.AwaitingApproval = req
		o.record(state, domain.ActionAgentAction, domain.ActionNameApprovalRequest, req)
		return state, nil
	})
}

func checkApprovalTarget(state *domain.AgentState, in ApprovalItemInput) error {
	switch in.Type {
	case domain.ApprovalItemConcept:
		if _, ok := state.Concept(in.EntityID); !ok {
			return fmt.Errorf("%w: %s", ErrConceptNotFound, in.EntityID)
		}
	case domain.ApprovalItemSVG:
		if _, ok := state.SVGVersion(in.EntityID); !ok {
			return fmt.Errorf("%w: %s", ErrSVGVersionNotFound, in.EntityID)
		}
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidApprovalItem, in.Type)
	}
	return nil
}

type approvalPayload struct {
	ItemID   string                  `json:"item_id"`
	Type     domain.ApprovalItemType `json:"type"`
	EntityID string                  `json:"entity_id"`
	Status   domain.ApprovalStatus   `json:"status"`
	Feedback string                  `json:"feedback,omitempty"`
	Resolved bool                    `json:"resolved"`
}

// HandleApproval records the reviewer's decision on one item. The concept or
// SVG version it refers to takes the new status and feedback. The request is
// cleared once every item in it has been accepted; a rejection keeps it
// outstanding so forward transitions stay blocked.
func (o *Orchestrator) HandleApproval(ctx context.Context, sessionID, itemID string, status domain.ApprovalStatus, feedback string) (*domain.AgentState, error) {
	if !status.IsDecision() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidDecision, status)
	}
	return o.mutate(ctx, "handle_approval", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		req := state.AwaitingApproval
		if req == nil {
			return nil, ErrNoPendingApproval
		}
		item, ok := req.Item(itemID)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownApprovalItem, itemID)
		}
		item.Status = status
		item.Feedback = feedback

		switch item.Type {
		case domain.ApprovalItemConcept:
			replaceConcept(state, item.EntityID, domain.ConceptPatch{ApprovalStatus: &status, Feedback: &feedback})
		case domain.ApprovalItemSVG:
			replaceSVGVersion(state, item.EntityID, domain.SVGVersionPatch{ApprovalStatus: &status, Feedback: &feedback})
		}

		resolved := req.Resolved()
		o.record(state, domain.ActionUserInput, domain.ActionNameApproval, approvalPayload{
			ItemID:   item.ID,
			Type:     item.Type,
			EntityID: item.EntityID,
			Status:   status,
			Feedback: feedback,
			Resolved: resolved,
		})
		if resolved {
			state.AwaitingApproval = nil
		}
		return state, nil
	})
}
