package orchestrator

import (
	"context"
	"fmt"

	"github.com/ashureev/logoforge/internal/domain"
)

// UpdateBrandInfo merges patch into the brand data. Fields absent from the
// patch keep their previous values.
func (o *Orchestrator) UpdateBrandInfo(ctx context.Context, sessionID string, patch domain.BrandInfo) (*domain.AgentState, error) {
	return o.mutate(ctx, "update_brand_info", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		state.BrandInfo = state.BrandInfo.Merge(patch)
		o.record(state, domain.ActionToolCall, domain.ActionNameBrandUpdate, patch)
		return state, nil
	})
}

// AddResearchResults appends results in the order given.
func (o *Orchestrator) AddResearchResults(ctx context.Context, sessionID string, results []domain.ResearchResult) (*domain.AgentState, error) {
	return o.mutate(ctx, "add_research_results", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		now := o.now()
		ids := make([]string, 0, len(results))
		for _, r := range results {
			if r.ID == "" {
				r.ID = o.newID()
			}
			if r.CreatedAt.IsZero() {
				r.CreatedAt = now
			}
			state.ResearchResults = append(state.ResearchResults, r)
			ids = append(ids, r.ID)
		}
		o.record(state, domain.ActionToolCall, domain.ActionNameResearch, map[string]any{"ids": ids})
		return state, nil
	})
}

// AddConcepts appends concepts in the order given. New concepts start
// pending approval.
func (o *Orchestrator) AddConcepts(ctx context.Context, sessionID string, concepts []domain.Concept) (*domain.AgentState, error) {
	return o.mutate(ctx, "add_concepts", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		now := o.now()
		ids := make([]string, 0, len(concepts))
		for _, c := range concepts {
			if c.ID == "" {
				c.ID = o.newID()
			}
			if c.ApprovalStatus == "" {
				c.ApprovalStatus = domain.ApprovalPending
			}
			if !c.ApprovalStatus.IsValid() {
				return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, c.ApprovalStatus)
			}
			if c.CreatedAt.IsZero() {
				c.CreatedAt = now
			}
			state.Concepts = append(state.Concepts, c)
			ids = append(ids, c.ID)
		}
		o.record(state, domain.ActionToolCall, domain.ActionNameConcepts, map[string]any{"ids": ids})
		return state, nil
	})
}

// UpdateConcept applies patch to the concept with id. Unknown ids leave the
// session unchanged.
func (o *Orchestrator) UpdateConcept(ctx context.Context, sessionID, id string, patch domain.ConceptPatch) (*domain.AgentState, error) {
	if patch.ApprovalStatus != nil && !patch.ApprovalStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.ApprovalStatus)
	}
	return o.mutate(ctx, "update_concept", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		if !replaceConcept(state, id, patch) {
			return nil, nil
		}
		o.record(state, domain.ActionToolCall, domain.ActionNameConceptUpdate, map[string]any{"id": id})
		return state, nil
	})
}

func replaceConcept(state *domain.AgentState, id string, patch domain.ConceptPatch) bool {
	for i := range state.Concepts {
		if state.Concepts[i].ID == id {
			state.Concepts[i] = patch.Apply(state.Concepts[i])
			return true
		}
	}
	return false
}

// SelectConcept makes an approved concept the active one for refinement.
func (o *Orchestrator) SelectConcept(ctx context.Context, sessionID, id string) (*domain.AgentState, error) {
	return o.mutate(ctx, "select_concept", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		concept, ok := state.Concept(id)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrConceptNotFound, id)
		}
		if concept.ApprovalStatus != domain.ApprovalApproved {
			return nil, fmt.Errorf("%w: %s is %s", ErrConceptNotApproved, id, concept.ApprovalStatus)
		}
		selected := id
		state.SelectedConceptID = &selected
		o.record(state, domain.ActionUserInput, domain.ActionNameSelectConcept, map[string]any{"id": id})
		return state, nil
	})
}

// AddSVGVersion appends a rendered version and makes it current. The
// version number counts up per concept; the concept defaults to the
// selected one.
func (o *Orchestrator) AddSVGVersion(ctx context.Context, sessionID string, v domain.SVGVersion) (*domain.AgentState, error) {
	return o.mutate(ctx, "add_svg_version", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		if v.ID == "" {
			v.ID = o.newID()
		}
		if v.ConceptID == "" && state.SelectedConceptID != nil {
			v.ConceptID = *state.SelectedConceptID
		}
		if v.Version == 0 {
			v.Version = nextVersion(state.SVGVersions, v.ConceptID)
		}
		if v.ApprovalStatus == "" {
			v.ApprovalStatus = domain.ApprovalPending
		}
		if !v.ApprovalStatus.IsValid() {
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, v.ApprovalStatus)
		}
		if v.CreatedAt.IsZero() {
			v.CreatedAt = o.now()
		}
		state.SVGVersions = append(state.SVGVersions, v)
		current := v.ID
		state.CurrentSVGVersionID = &current
		o.record(state, domain.ActionToolCall, domain.ActionNameSVGVersion, map[string]any{
			"id":         v.ID,
			"concept_id": v.ConceptID,
			"version":    v.Version,
		})
		return state, nil
	})
}

func nextVersion(versions []domain.SVGVersion, conceptID string) int {
	n := 0
	for _, v := range versions {
		if v.ConceptID == conceptID && v.Version > n {
			n = v.Version
		}
	}
	return n + 1
}

// UpdateSVGVersion applies patch to the version with id. Unknown ids leave
// the session unchanged.
func (o *Orchestrator) UpdateSVGVersion(ctx context.Context, sessionID, id string, patch domain.SVGVersionPatch) (*domain.AgentState, error) {
	if patch.ApprovalStatus != nil && !patch.ApprovalStatus.IsValid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *patch.ApprovalStatus)
	}
	return o.mutate(ctx, "update_svg_version", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		if !replaceSVGVersion(state, id, patch) {
			return nil, nil
		}
		o.record(state, domain.ActionToolCall, domain.ActionNameSVGUpdate, map[string]any{"id": id})
		return state, nil
	})
}

func replaceSVGVersion(state *domain.AgentState, id string, patch domain.SVGVersionPatch) bool {
	for i := range state.SVGVersions {
		if state.SVGVersions[i].ID == id {
			state.SVGVersions[i] = patch.Apply(state.SVGVersions[i])
			return true
		}
	}
	return false
}
