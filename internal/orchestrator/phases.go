package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/workflow"
)

// ReasonFinalPhase is reported when the session is already at export.
const ReasonFinalPhase = "Already at final phase"

// AdvanceResult reports the outcome of TryAdvancePhase. When Advanced is
// false, Reason says why and the session is unchanged.
type AdvanceResult struct {
	Advanced bool               `json:"advanced"`
	From     domain.Phase       `json:"from"`
	To       domain.Phase       `json:"to,omitempty"`
	Reason   string             `json:"reason,omitempty"`
	State    *domain.AgentState `json:"state"`
}

// TryAdvancePhase moves the session to the next phase if it can. Expected
// blockers (final phase, pending approval, exhausted budget) are reported in
// the result instead of as errors.
func (o *Orchestrator) TryAdvancePhase(ctx context.Context, sessionID string) (*AdvanceResult, error) {
	var res AdvanceResult
	state, err := o.mutate(ctx, "try_advance_phase", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		res = AdvanceResult{From: state.CurrentPhase}
		next, ok := workflow.NextPhase(state.CurrentPhase)
		if !ok {
			res.Reason = ReasonFinalPhase
			return nil, nil
		}
		res.To = next

		if err := workflow.ValidateTransition(state, next); err != nil {
			var terr *workflow.TransitionError
			if errors.As(err, &terr) && terr.Reason != workflow.ReasonIllegal {
				res.Reason = terr.Error()
				return nil, nil
			}
			return nil, err
		}
		res.Advanced = true
		return workflow.ApplyTransition(state, next, o.now()), nil
	})
	if err != nil {
		return nil, err
	}
	res.State = state
	if res.Advanced {
		o.logger.Info("phase advanced", "session_id", sessionID, "from", res.From, "to", res.To)
	} else {
		o.logger.Info("phase advance blocked", "session_id", sessionID, "phase", res.From, "reason", res.Reason)
	}
	return &res, nil
}

// GoBackToPhase returns to an earlier phase. Backward moves never need
// approval but must follow an existing edge.
func (o *Orchestrator) GoBackToPhase(ctx context.Context, sessionID string, target domain.Phase) (*domain.AgentState, error) {
	if !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown phase %q", workflow.ErrInvalidTransition, target)
	}
	return o.mutate(ctx, "go_back_to_phase", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		if target.Index() >= state.CurrentPhase.Index() {
			return nil, fmt.Errorf("%w: %s is not before %s", ErrNotEarlierPhase, target, state.CurrentPhase)
		}
		if err := workflow.ValidateTransition(state, target); err != nil {
			return nil, err
		}
		return workflow.ApplyTransition(state, target, o.now()), nil
	})
}
