package domain

import (
	"encoding/json"
	"time"
)

// ActionType categorizes audit log entries.
type ActionType string

const (
	ActionUserInput   ActionType = "user_input"
	ActionAgentAction ActionType = "agent_action"
	ActionToolCall    ActionType = "tool_call"
	ActionError       ActionType = "error"
)

// IsValid reports whether t is a known action type.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionUserInput, ActionAgentAction, ActionToolCall, ActionError:
		return true
	default:
		return false
	}
}

// Well-known action names.
const (
	ActionNamePhaseTransition = "phase_transition"
	ActionNameIteration       = "iteration"
	ActionNameApproval        = "approval"
	ActionNameApprovalRequest = "approval_request"
	ActionNameEvaluation      = "evaluation"
	ActionNameExport          = "export"
	ActionNameBrandUpdate     = "update_brand_info"
	ActionNameResearch        = "add_research_results"
	ActionNameConcepts        = "add_concepts"
	ActionNameConceptUpdate   = "update_concept"
	ActionNameSelectConcept   = "select_concept"
	ActionNameSVGVersion      = "add_svg_version"
	ActionNameSVGUpdate       = "update_svg_version"
)

// AgentAction is an immutable entry in the session audit trail.
type AgentAction struct {
	ID        string          `json:"id"`
	Type      ActionType      `json:"type"`
	Name      string          `json:"name,omitempty"`
	Phase     Phase           `json:"phase"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
}
