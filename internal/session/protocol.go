package session

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ashureev/logoforge/internal/domain"
)

// Action names a protocol operation.
type Action string

const (
	ActionInit       Action = "init"
	ActionGet        Action = "get"
	ActionSet        Action = "set"
	ActionUpdate     Action = "update"
	ActionTransition Action = "transition"
	ActionIncrement  Action = "increment"
	ActionLog        Action = "log"
	ActionClear      Action = "clear"
)

// Request is the envelope accepted by Handle.
type Request struct {
	Action      Action              `json:"action"`
	SessionID   string              `json:"sessionId"`
	UserID      string              `json:"userId,omitempty"`
	State       json.RawMessage     `json:"state,omitempty"`
	Phase       domain.Phase        `json:"phase,omitempty"`
	AgentAction *domain.AgentAction `json:"agentAction,omitempty"`
}

// UnmarshalJSON also accepts the snake_case spellings used by the rest of
// the API. The camelCase field wins when both are present.
func (r *Request) UnmarshalJSON(data []byte) error {
	type plain Request
	var aux struct {
		plain
		SnakeSessionID   string              `json:"session_id"`
		SnakeUserID      string              `json:"user_id"`
		SnakeAgentAction *domain.AgentAction `json:"agent_action"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Request(aux.plain)
	if r.SessionID == "" {
		r.SessionID = aux.SnakeSessionID
	}
	if r.UserID == "" {
		r.UserID = aux.SnakeUserID
	}
	if r.AgentAction == nil {
		r.AgentAction = aux.SnakeAgentAction
	}
	return nil
}

// Response is the envelope returned by Handle. Failures are reported in
// Error and never as a transport error.
type Response struct {
	Success bool               `json:"success"`
	State   *domain.AgentState `json:"state,omitempty"`
	Error   string             `json:"error,omitempty"`
}

// Handle dispatches a protocol request to the store. Every action except
// init is refused when req.UserID names someone other than the owner.
func (s *Store) Handle(ctx context.Context, req Request) Response {
	if err := s.authorize(ctx, req); err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	state, err := s.dispatch(ctx, req)
	if err != nil {
		return Response{Success: false, Error: err.Error()}
	}
	return Response{Success: true, State: state}
}

func (s *Store) authorize(ctx context.Context, req Request) error {
	if req.Action == ActionInit || req.UserID == "" {
		return nil
	}
	state, err := s.Get(ctx, req.SessionID)
	if err != nil {
		return err
	}
	if state.UserID != "" && state.UserID != req.UserID {
		return ErrOwnerMismatch
	}
	return nil
}

func (s *Store) dispatch(ctx context.Context, req Request) (*domain.AgentState, error) {
	switch req.Action {
	case ActionInit:
		return s.Init(ctx, req.SessionID, req.UserID)
	case ActionGet:
		return s.Get(ctx, req.SessionID)
	case ActionSet:
		if len(req.State) == 0 {
			return nil, fmt.Errorf("state is required for %s", req.Action)
		}
		replacement, err := domain.UnmarshalAgentState(req.State)
		if err != nil {
			return nil, err
		}
		return s.Set(ctx, req.SessionID, replacement)
	case ActionUpdate:
		if len(req.State) == 0 {
			return nil, fmt.Errorf("state is required for %s", req.Action)
		}
		var patch map[string]json.RawMessage
		if err := json.Unmarshal(req.State, &patch); err != nil {
			return nil, fmt.Errorf("decode update: %w", err)
		}
		return s.Update(ctx, req.SessionID, patch)
	case ActionTransition:
		if !req.Phase.IsValid() {
			return nil, fmt.Errorf("unknown phase %q", req.Phase)
		}
		return s.TransitionPhase(ctx, req.SessionID, req.Phase)
	case ActionIncrement:
		return s.IncrementIteration(ctx, req.SessionID)
	case ActionLog:
		if req.AgentAction == nil {
			return nil, fmt.Errorf("agent_action is required for %s", req.Action)
		}
		return s.AppendAction(ctx, req.SessionID, *req.AgentAction)
	case ActionClear:
		return nil, s.Clear(ctx, req.SessionID)
	default:
		return nil, fmt.Errorf("unknown action %q", req.Action)
	}
}
