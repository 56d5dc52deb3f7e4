package session

import (
	"errors"
	"fmt"

	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/workflow"
)

// ErrInvalidState is matched by every *InvariantError.
var ErrInvalidState = errors.New("invalid session state")

// InvariantError reports a state change that would break a session invariant.
type InvariantError struct {
	Field  string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is lets errors.Is match ErrInvalidState.
func (e *InvariantError) Is(target error) bool {
	return target == ErrInvalidState
}

// validateRawReplacement guards Set and Update, which rewrite fields
// directly. Ownership stays fixed and phase moves must go through
// TransitionPhase so the state machine sees them.
func validateRawReplacement(prev, next *domain.AgentState) error {
	if next.UserID != prev.UserID {
		return &InvariantError{Field: "user_id", Reason: "cannot be changed"}
	}
	if next.CurrentPhase != prev.CurrentPhase {
		return &InvariantError{Field: "current_phase", Reason: "use transition to change phase"}
	}
	return validateReplacement(prev, next)
}

// validateReplacement checks that next is a legal successor of prev when the
// whole state is rewritten at once.
func validateReplacement(prev, next *domain.AgentState) error {
	if !next.CurrentPhase.IsValid() {
		return &InvariantError{Field: "current_phase", Reason: fmt.Sprintf("unknown phase %q", next.CurrentPhase)}
	}
	if next.IterationCounts == nil {
		next.IterationCounts = make(domain.IterationCounts)
	}
	for phase, count := range next.IterationCounts {
		if !phase.IsValid() {
			return &InvariantError{Field: "iteration_counts", Reason: fmt.Sprintf("unknown phase %q", phase)}
		}
		if count < prev.IterationCounts[phase] {
			return &InvariantError{Field: "iteration_counts", Reason: fmt.Sprintf("%s count cannot decrease", phase)}
		}
		if count > workflow.Ceiling(phase) {
			return &InvariantError{Field: "iteration_counts", Reason: fmt.Sprintf("%s exceeds ceiling %d", phase, workflow.Ceiling(phase))}
		}
	}
	for phase, count := range prev.IterationCounts {
		if _, ok := next.IterationCounts[phase]; !ok {
			next.IterationCounts[phase] = count
		}
	}
	if len(next.Actions) < len(prev.Actions) {
		return &InvariantError{Field: "actions", Reason: "history cannot be truncated"}
	}
	for i := range prev.Actions {
		if next.Actions[i].ID != prev.Actions[i].ID {
			return &InvariantError{Field: "actions", Reason: "history cannot be rewritten"}
		}
	}
	if next.AwaitingApproval != nil && len(next.AwaitingApproval.Items) == 0 {
		return &InvariantError{Field: "awaiting_approval", Reason: "request has no items"}
	}
	return nil
}
