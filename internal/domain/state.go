package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// AgentState is the aggregate root for one workflow session.
// It is the unit of persistence and of concurrency control.
type AgentState struct {
	SessionID           string           `json:"session_id"`
	UserID              string           `json:"user_id"`
	CurrentPhase        Phase            `json:"current_phase"`
	IterationCounts     IterationCounts  `json:"iteration_counts"`
	AwaitingApproval    *ApprovalRequest `json:"awaiting_approval"`
	BrandInfo           BrandInfo        `json:"brand_info"`
	ResearchResults     []ResearchResult `json:"research_results"`
	Concepts            []Concept        `json:"concepts"`
	SVGVersions         []SVGVersion     `json:"svg_versions"`
	SelectedConceptID   *string          `json:"selected_concept_id"`
	CurrentSVGVersionID *string          `json:"current_svg_version_id"`
	Actions             []AgentAction    `json:"actions"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// NewAgentState returns the initial state of a fresh session.
func NewAgentState(sessionID, userID string, now time.Time) *AgentState {
	counts := make(IterationCounts, len(phaseOrder))
	for _, p := range phaseOrder {
		counts[p] = 0
	}
	return &AgentState{
		SessionID:       sessionID,
		UserID:          userID,
		CurrentPhase:    PhaseDiscovery,
		IterationCounts: counts,
		ResearchResults: []ResearchResult{},
		Concepts:        []Concept{},
		SVGVersions:     []SVGVersion{},
		Actions:         []AgentAction{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// Clone returns a deep copy so callers can mutate without touching shared state.
func (s *AgentState) Clone() *AgentState {
	if s == nil {
		return nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		panic(fmt.Sprintf("domain: clone agent state: %v", err))
	}
	var out AgentState
	if err := json.Unmarshal(data, &out); err != nil {
		panic(fmt.Sprintf("domain: clone agent state: %v", err))
	}
	return &out
}

// Concept returns the concept with the given id.
func (s *AgentState) Concept(id string) (*Concept, bool) {
	for i := range s.Concepts {
		if s.Concepts[i].ID == id {
			return &s.Concepts[i], true
		}
	}
	return nil, false
}

// SVGVersion returns the SVG version with the given id.
func (s *AgentState) SVGVersion(id string) (*SVGVersion, bool) {
	for i := range s.SVGVersions {
		if s.SVGVersions[i].ID == id {
			return &s.SVGVersions[i], true
		}
	}
	return nil, false
}

// Marshal serializes the state for the durable slot.
func (s *AgentState) Marshal() ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("marshal agent state: %w", err)
	}
	return data, nil
}

// UnmarshalAgentState decodes a persisted state blob.
func UnmarshalAgentState(data []byte) (*AgentState, error) {
	var s AgentState
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal agent state: %w", err)
	}
	if s.IterationCounts == nil {
		s.IterationCounts = make(IterationCounts)
	}
	return &s, nil
}
