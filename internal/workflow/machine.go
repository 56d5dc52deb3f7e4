// Package workflow defines the phase state machine: which transitions are
// legal, how many iterations each phase may consume, and which phases gate
// forward moves on human approval. Everything here is pure.
package workflow

import (
	"encoding/json"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
)

// PhaseRule describes the fixed limits of one phase.
type PhaseRule struct {
	Ceiling          int
	RequiresApproval bool
	Next             []domain.Phase
}

var rules = map[domain.Phase]PhaseRule{
	domain.PhaseDiscovery: {
		Ceiling: 10,
		Next:    []domain.Phase{domain.PhaseResearch},
	},
	domain.PhaseResearch: {
		Ceiling: 3,
		Next:    []domain.Phase{domain.PhaseConcept, domain.PhaseDiscovery},
	},
	domain.PhaseConcept: {
		Ceiling:          5,
		RequiresApproval: true,
		Next:             []domain.Phase{domain.PhaseRefinement, domain.PhaseResearch},
	},
	domain.PhaseRefinement: {
		Ceiling:          10,
		RequiresApproval: true,
		Next:             []domain.Phase{domain.PhaseExport, domain.PhaseConcept},
	},
	domain.PhaseExport: {
		Ceiling: 1,
	},
}

// Rule returns the rule for p. Unknown phases get the zero rule.
func Rule(p domain.Phase) PhaseRule {
	return rules[p]
}

// Ceiling returns the iteration ceiling of p.
func Ceiling(p domain.Phase) int {
	return rules[p].Ceiling
}

// RequiresApproval reports whether forward moves out of p are approval-gated.
func RequiresApproval(p domain.Phase) bool {
	return rules[p].RequiresApproval
}

// IsValidTransition reports whether to is adjacent to from.
func IsValidTransition(from, to domain.Phase) bool {
	for _, next := range rules[from].Next {
		if next == to {
			return true
		}
	}
	return false
}

// IsForward reports whether to comes later than from in phase order.
func IsForward(from, to domain.Phase) bool {
	return to.Index() > from.Index()
}

// NextPhase returns the phase after p, or false when p is terminal.
func NextPhase(p domain.Phase) (domain.Phase, bool) {
	idx := p.Index()
	phases := domain.Phases()
	if idx < 0 || idx+1 >= len(phases) {
		return "", false
	}
	return phases[idx+1], true
}

// RemainingIterations returns how many iterations p has left in state.
func RemainingIterations(state *domain.AgentState, p domain.Phase) int {
	left := Ceiling(p) - state.IterationCounts[p]
	if left < 0 {
		return 0
	}
	return left
}

// ValidateTransition checks topology, the approval gate and the destination
// ceiling, in that order, and returns the first violation.
func ValidateTransition(state *domain.AgentState, to domain.Phase) error {
	from := state.CurrentPhase
	if !IsValidTransition(from, to) {
		return &TransitionError{From: from, To: to, Reason: ReasonIllegal}
	}
	if IsForward(from, to) && RequiresApproval(from) && state.AwaitingApproval != nil {
		return &TransitionError{From: from, To: to, Reason: ReasonAwaitingApproval}
	}
	if state.IterationCounts[to] >= Ceiling(to) {
		return &TransitionError{From: from, To: to, Reason: ReasonCeilingReached}
	}
	return nil
}

type transitionPayload struct {
	From domain.Phase `json:"from"`
	To   domain.Phase `json:"to"`
}

// ApplyTransition returns a copy of state moved to phase to. The caller must
// have validated the transition against the same state.
func ApplyTransition(state *domain.AgentState, to domain.Phase, now time.Time) *domain.AgentState {
	next := state.Clone()
	from := next.CurrentPhase
	payload, _ := json.Marshal(transitionPayload{From: from, To: to})

	next.CurrentPhase = to
	next.AwaitingApproval = nil
	next.Actions = append(next.Actions, domain.AgentAction{
		ID:        NewActionID(now),
		Type:      domain.ActionAgentAction,
		Name:      domain.ActionNamePhaseTransition,
		Phase:     to,
		Payload:   payload,
		Timestamp: now,
	})
	next.UpdatedAt = now
	return next
}

// IncrementIteration returns a copy of state with the current phase's counter
// bumped, or ErrIterationLimit when the ceiling is already met.
func IncrementIteration(state *domain.AgentState, now time.Time) (*domain.AgentState, error) {
	phase := state.CurrentPhase
	if state.IterationCounts[phase] >= Ceiling(phase) {
		return nil, &IterationError{Phase: phase, Ceiling: Ceiling(phase)}
	}
	next := state.Clone()
	if next.IterationCounts == nil {
		next.IterationCounts = make(domain.IterationCounts)
	}
	next.IterationCounts[phase]++
	next.UpdatedAt = now
	return next, nil
}
