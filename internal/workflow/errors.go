package workflow

import (
	"errors"
	"fmt"

	"github.com/ashureev/logoforge/internal/domain"
)

// ErrIterationLimit is matched by every *IterationError.
var ErrIterationLimit = errors.New("iteration limit reached")

// ErrInvalidTransition is matched by every *TransitionError.
var ErrInvalidTransition = errors.New("invalid phase transition")

// TransitionReason names the check a transition failed.
type TransitionReason string

const (
	ReasonIllegal          TransitionReason = "illegal"
	ReasonAwaitingApproval TransitionReason = "awaiting_approval"
	ReasonCeilingReached   TransitionReason = "ceiling_reached"
)

// TransitionError reports why a phase transition was refused.
type TransitionError struct {
	From   domain.Phase
	To     domain.Phase
	Reason TransitionReason
}

func (e *TransitionError) Error() string {
	switch e.Reason {
	case ReasonAwaitingApproval:
		return "Waiting for user approval"
	case ReasonCeilingReached:
		return fmt.Sprintf("Iteration limit reached for %s", e.To)
	default:
		return fmt.Sprintf("Invalid transition from %s to %s", e.From, e.To)
	}
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *TransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// IterationError reports an attempt to iterate past a phase ceiling.
type IterationError struct {
	Phase   domain.Phase
	Ceiling int
}

func (e *IterationError) Error() string {
	return fmt.Sprintf("Iteration limit reached for %s (max %d)", e.Phase, e.Ceiling)
}

// Is lets errors.Is match ErrIterationLimit.
func (e *IterationError) Is(target error) bool {
	return target == ErrIterationLimit
}
