package orchestrator

import (
	"context"
	"fmt"

	"github.com/ashureev/logoforge/internal/artifact"
	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/judge"
)

type evaluationPayload struct {
	SVGID        string   `json:"svg_id"`
	OverallScore float64  `json:"overall_score"`
	Passed       bool     `json:"passed"`
	FailedJudges []string `json:"failed_judges,omitempty"`
}

// AttachEvaluation stores an aggregated evaluation on an SVG version.
func (o *Orchestrator) AttachEvaluation(ctx context.Context, sessionID, svgID string, eval *domain.AggregatedEvaluation) (*domain.AgentState, error) {
	if eval == nil {
		return nil, fmt.Errorf("evaluation is required")
	}
	return o.mutate(ctx, "attach_evaluation", sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		if !replaceSVGVersion(state, svgID, domain.SVGVersionPatch{Evaluation: eval}) {
			return nil, fmt.Errorf("%w: %s", ErrSVGVersionNotFound, svgID)
		}
		o.record(state, domain.ActionToolCall, domain.ActionNameEvaluation, evaluationPayload{
			SVGID:        svgID,
			OverallScore: eval.OverallScore,
			Passed:       eval.Passed,
			FailedJudges: eval.FailedJudges,
		})
		return state, nil
	})
}

// EvaluateSVG runs the judge panel on an SVG version and attaches the
// result. Judges run outside the session actor, so other operations on the
// session are not held up while the model answers.
func (o *Orchestrator) EvaluateSVG(ctx context.Context, sessionID, svgID string) (eval *domain.AggregatedEvaluation, err error) {
	if o.evaluator == nil {
		return nil, ErrEvaluationDisabled
	}
	ctx, span := o.startSpan(ctx, "evaluate_svg", sessionID)
	defer func() { endSpan(span, err) }()

	state, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	req, err := evaluationRequest(state, svgID)
	if err != nil {
		return nil, err
	}

	eval = o.evaluator.RunAll(ctx, req)
	if _, err := o.AttachEvaluation(ctx, sessionID, svgID, eval); err != nil {
		return nil, err
	}
	o.logger.Info("svg evaluated",
		"session_id", sessionID,
		"svg_id", svgID,
		"overall_score", eval.OverallScore,
		"passed", eval.Passed,
		"failed_judges", eval.FailedJudges)
	return eval, nil
}

// evaluationRequest gathers the judge input for svgID. Feedback from earlier
// versions of the same concept is passed along so judges can check it was
// addressed.
func evaluationRequest(state *domain.AgentState, svgID string) (judge.Request, error) {
	v, ok := state.SVGVersion(svgID)
	if !ok {
		return judge.Request{}, fmt.Errorf("%w: %s", ErrSVGVersionNotFound, svgID)
	}
	req := judge.Request{SVG: v.SVG, Brand: state.BrandInfo}
	if c, ok := state.Concept(v.ConceptID); ok {
		concept := *c
		req.Concept = &concept
	}

	seen := map[string]bool{}
	add := func(s string) {
		if s != "" && !seen[s] {
			seen[s] = true
			req.PreviousFeedback = append(req.PreviousFeedback, s)
		}
	}
	for _, prev := range state.SVGVersions {
		if prev.ID == svgID || prev.ConceptID != v.ConceptID {
			continue
		}
		add(prev.Feedback)
		if prev.Evaluation != nil {
			for _, issue := range prev.Evaluation.CriticalIssues {
				add(issue)
			}
			for _, s := range prev.Evaluation.Suggestions {
				add(s)
			}
		}
	}
	return req, nil
}

// ExportResult names where an exported SVG was written.
type ExportResult struct {
	SVGID string             `json:"svg_id"`
	Key   string             `json:"key"`
	State *domain.AgentState `json:"state"`
}

// ExportSVG writes an SVG version to the artifact store. It is only allowed
// once the workflow has reached the export phase.
func (o *Orchestrator) ExportSVG(ctx context.Context, sessionID, svgID string) (res *ExportResult, err error) {
	if o.artifacts == nil {
		return nil, ErrExportDisabled
	}
	ctx, span := o.startSpan(ctx, "export_svg", sessionID)
	defer func() { endSpan(span, err) }()

	state, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if state.CurrentPhase != domain.PhaseExport {
		return nil, ErrNotExportPhase
	}
	v, ok := state.SVGVersion(svgID)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSVGVersionNotFound, svgID)
	}

	key, err := o.artifacts.Put(ctx, artifact.Key(o.artifactPrefix, sessionID, svgID), []byte(v.SVG), artifact.ContentTypeSVG)
	if err != nil {
		return nil, fmt.Errorf("export svg %s: %w", svgID, err)
	}

	next, err := o.sessions.Mutate(ctx, sessionID, func(state *domain.AgentState) (*domain.AgentState, error) {
		if state.CurrentPhase != domain.PhaseExport {
			return nil, ErrNotExportPhase
		}
		if !replaceSVGVersion(state, svgID, domain.SVGVersionPatch{ExportKey: &key}) {
			return nil, fmt.Errorf("%w: %s", ErrSVGVersionNotFound, svgID)
		}
		o.record(state, domain.ActionToolCall, domain.ActionNameExport, map[string]any{"svg_id": svgID, "key": key})
		return state, nil
	})
	if err != nil {
		return nil, err
	}
	o.logger.Info("svg exported", "session_id", sessionID, "svg_id", svgID, "key", key)
	return &ExportResult{SVGID: svgID, Key: key, State: next}, nil
}
