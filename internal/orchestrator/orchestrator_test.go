package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ashureev/logoforge/internal/artifact"
	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/judge"
	"github.com/ashureev/logoforge/internal/session"
	"github.com/ashureev/logoforge/internal/store"
	"github.com/ashureev/logoforge/internal/workflow"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

const sid = "sess-1"

type fixture struct {
	orch     *Orchestrator
	sessions *session.Store
	fs       afero.Fs
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	sessions := session.New(store.NewMemory(), session.Options{
		RetryBaseDelay: time.Millisecond,
		Clock:          func() time.Time { return testNow },
	})
	t.Cleanup(sessions.Close)

	fs := afero.NewMemMapFs()
	files, err := artifact.NewFileStore(fs, "/artifacts")
	require.NoError(t, err)

	var n atomic.Int64
	base := []Option{
		WithClock(func() time.Time { return testNow }),
		WithIDGenerator(func() string { return fmt.Sprintf("id-%d", n.Add(1)) }),
		WithArtifacts(files, "logos/"),
	}
	o := New(sessions, append(base, opts...)...)

	_, err = o.Start(context.Background(), sid, "user-1")
	require.NoError(t, err)
	return &fixture{orch: o, sessions: sessions, fs: fs}
}

func (f *fixture) advanceTo(t *testing.T, target domain.Phase) {
	t.Helper()
	for {
		state, err := f.orch.State(context.Background(), sid)
		require.NoError(t, err)
		if state.CurrentPhase == target {
			return
		}
		res, err := f.orch.TryAdvancePhase(context.Background(), sid)
		require.NoError(t, err)
		require.True(t, res.Advanced, res.Reason)
	}
}

func (f *fixture) addConcept(t *testing.T, name string) string {
	t.Helper()
	state, err := f.orch.AddConcepts(context.Background(), sid, []domain.Concept{{Name: name}})
	require.NoError(t, err)
	return state.Concepts[len(state.Concepts)-1].ID
}

func lastAction(state *domain.AgentState) domain.AgentAction {
	return state.Actions[len(state.Actions)-1]
}

func TestUpdateBrandInfoMerges(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.UpdateBrandInfo(ctx, sid, domain.BrandInfo{Name: "Acme", Industry: "tools"})
	require.NoError(t, err)
	state, err := f.orch.UpdateBrandInfo(ctx, sid, domain.BrandInfo{TargetAudience: "makers"})
	require.NoError(t, err)

	assert.Equal(t, "Acme", state.BrandInfo.Name)
	assert.Equal(t, "tools", state.BrandInfo.Industry)
	assert.Equal(t, "makers", state.BrandInfo.TargetAudience)
	assert.Equal(t, domain.ActionNameBrandUpdate, lastAction(state).Name)
}

func TestAddCollectionsPreserveOrder(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.AddResearchResults(ctx, sid, []domain.ResearchResult{{Query: "q1"}, {Query: "q2"}})
	require.NoError(t, err)
	state, err := f.orch.AddResearchResults(ctx, sid, []domain.ResearchResult{{ID: "given", Query: "q3"}})
	require.NoError(t, err)
	require.Len(t, state.ResearchResults, 3)
	assert.Equal(t, []string{"q1", "q2", "q3"}, []string{
		state.ResearchResults[0].Query, state.ResearchResults[1].Query, state.ResearchResults[2].Query,
	})
	assert.Equal(t, "given", state.ResearchResults[2].ID)
	assert.NotEmpty(t, state.ResearchResults[0].ID)

	state, err = f.orch.AddConcepts(ctx, sid, []domain.Concept{{Name: "A"}, {Name: "B"}})
	require.NoError(t, err)
	require.Len(t, state.Concepts, 2)
	assert.Equal(t, "A", state.Concepts[0].Name)
	assert.Equal(t, domain.ApprovalPending, state.Concepts[1].ApprovalStatus)
	assert.Equal(t, testNow, state.Concepts[0].CreatedAt)
}

func TestUpdateConceptByID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.addConcept(t, "A")
	f.addConcept(t, "B")

	name := "A2"
	state, err := f.orch.UpdateConcept(ctx, sid, first, domain.ConceptPatch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "A2", state.Concepts[0].Name)
	assert.Equal(t, "B", state.Concepts[1].Name)

	before := len(state.Actions)
	state, err = f.orch.UpdateConcept(ctx, sid, "missing", domain.ConceptPatch{Name: &name})
	require.NoError(t, err)
	assert.Len(t, state.Actions, before, "unknown id is a no-op")

	bad := domain.ApprovalStatus("maybe")
	_, err = f.orch.UpdateConcept(ctx, sid, first, domain.ConceptPatch{ApprovalStatus: &bad})
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestSelectConceptRequiresApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addConcept(t, "A")

	_, err := f.orch.SelectConcept(ctx, sid, "missing")
	assert.ErrorIs(t, err, ErrConceptNotFound)

	_, err = f.orch.SelectConcept(ctx, sid, id)
	assert.ErrorIs(t, err, ErrConceptNotApproved)

	withChanges := domain.ApprovalApprovedWithChanges
	_, err = f.orch.UpdateConcept(ctx, sid, id, domain.ConceptPatch{ApprovalStatus: &withChanges})
	require.NoError(t, err)
	_, err = f.orch.SelectConcept(ctx, sid, id)
	assert.ErrorIs(t, err, ErrConceptNotApproved, "only exactly approved concepts can be selected")

	approved := domain.ApprovalApproved
	_, err = f.orch.UpdateConcept(ctx, sid, id, domain.ConceptPatch{ApprovalStatus: &approved})
	require.NoError(t, err)
	state, err := f.orch.SelectConcept(ctx, sid, id)
	require.NoError(t, err)
	require.NotNil(t, state.SelectedConceptID)
	assert.Equal(t, id, *state.SelectedConceptID)
}

func TestAddSVGVersionNumbersPerConcept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{ConceptID: "c1", SVG: "<svg>1</svg>"})
	require.NoError(t, err)
	_, err = f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{ConceptID: "c2", SVG: "<svg>a</svg>"})
	require.NoError(t, err)
	state, err := f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{ConceptID: "c1", SVG: "<svg>2</svg>"})
	require.NoError(t, err)

	require.Len(t, state.SVGVersions, 3)
	assert.Equal(t, 1, state.SVGVersions[0].Version)
	assert.Equal(t, 1, state.SVGVersions[1].Version)
	assert.Equal(t, 2, state.SVGVersions[2].Version)
	require.NotNil(t, state.CurrentSVGVersionID)
	assert.Equal(t, state.SVGVersions[2].ID, *state.CurrentSVGVersionID)

	notes := "thinner stroke"
	state, err = f.orch.UpdateSVGVersion(ctx, sid, state.SVGVersions[0].ID, domain.SVGVersionPatch{Notes: &notes})
	require.NoError(t, err)
	assert.Equal(t, "thinner stroke", state.SVGVersions[0].Notes)
	assert.Empty(t, state.SVGVersions[2].Notes)
}

func TestAddSVGVersionDefaultsToSelectedConcept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := f.addConcept(t, "A")
	approved := domain.ApprovalApproved
	_, err := f.orch.UpdateConcept(ctx, sid, id, domain.ConceptPatch{ApprovalStatus: &approved})
	require.NoError(t, err)
	_, err = f.orch.SelectConcept(ctx, sid, id)
	require.NoError(t, err)

	state, err := f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{SVG: "<svg/>"})
	require.NoError(t, err)
	assert.Equal(t, id, state.SVGVersions[0].ConceptID)
}

func TestRejectedApprovalBlocksAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.advanceTo(t, domain.PhaseConcept)
	conceptID := f.addConcept(t, "A")

	state, err := f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: conceptID}})
	require.NoError(t, err)
	require.NotNil(t, state.AwaitingApproval)
	itemID := state.AwaitingApproval.Items[0].ID

	state, err = f.orch.HandleApproval(ctx, sid, itemID, domain.ApprovalRejected, "too busy")
	require.NoError(t, err)
	require.NotNil(t, state.AwaitingApproval, "rejection keeps the request outstanding")
	assert.Equal(t, domain.ApprovalRejected, state.Concepts[0].ApprovalStatus)
	assert.Equal(t, "too busy", state.Concepts[0].Feedback)
	assert.Equal(t, domain.ActionNameApproval, lastAction(state).Name)

	before, err := f.orch.State(ctx, sid)
	require.NoError(t, err)
	res, err := f.orch.TryAdvancePhase(ctx, sid)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, "Waiting for user approval", res.Reason)
	assert.Equal(t, domain.PhaseConcept, res.From)

	after, err := f.orch.State(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, before, after, "a blocked advance must not touch state")
}

func TestApprovalUnblocksAdvance(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.advanceTo(t, domain.PhaseConcept)
	conceptID := f.addConcept(t, "A")

	state, err := f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: conceptID}})
	require.NoError(t, err)
	itemID := state.AwaitingApproval.Items[0].ID

	state, err = f.orch.HandleApproval(ctx, sid, itemID, domain.ApprovalApproved, "")
	require.NoError(t, err)
	assert.Nil(t, state.AwaitingApproval)
	assert.Equal(t, domain.ApprovalApproved, state.Concepts[0].ApprovalStatus)

	res, err := f.orch.TryAdvancePhase(ctx, sid)
	require.NoError(t, err)
	assert.True(t, res.Advanced)
	assert.Equal(t, domain.PhaseRefinement, res.State.CurrentPhase)
}

func TestApprovalClearsOnlyWhenEveryItemAccepted(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addConcept(t, "A")
	b := f.addConcept(t, "B")

	state, err := f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{
		{Type: domain.ApprovalItemConcept, EntityID: a},
		{Type: domain.ApprovalItemConcept, EntityID: b},
	})
	require.NoError(t, err)
	items := state.AwaitingApproval.Items

	state, err = f.orch.HandleApproval(ctx, sid, items[0].ID, domain.ApprovalApprovedWithChanges, "swap blue")
	require.NoError(t, err)
	require.NotNil(t, state.AwaitingApproval)

	state, err = f.orch.HandleApproval(ctx, sid, items[1].ID, domain.ApprovalApproved, "")
	require.NoError(t, err)
	assert.Nil(t, state.AwaitingApproval)
}

func TestRequestApprovalOverwritesOutstandingRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.addConcept(t, "A")
	b := f.addConcept(t, "B")

	first, err := f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: a}})
	require.NoError(t, err)
	oldItem := first.AwaitingApproval.Items[0].ID

	second, err := f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: b}})
	require.NoError(t, err)
	require.Len(t, second.AwaitingApproval.Items, 1)
	assert.Equal(t, b, second.AwaitingApproval.Items[0].EntityID)

	_, err = f.orch.HandleApproval(ctx, sid, oldItem, domain.ApprovalApproved, "")
	assert.ErrorIs(t, err, ErrUnknownApprovalItem)
}

func TestRequestApprovalValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.RequestApproval(ctx, sid, nil)
	assert.ErrorIs(t, err, ErrEmptyApproval)
	_, err = f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: "nope"}})
	assert.ErrorIs(t, err, ErrConceptNotFound)
	_, err = f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemSVG, EntityID: "nope"}})
	assert.ErrorIs(t, err, ErrSVGVersionNotFound)
	_, err = f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: "poster", EntityID: "x"}})
	assert.ErrorIs(t, err, ErrInvalidApprovalItem)
}

func TestHandleApprovalErrors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.orch.HandleApproval(ctx, sid, "item", domain.ApprovalApproved, "")
	assert.ErrorIs(t, err, ErrNoPendingApproval)

	_, err = f.orch.HandleApproval(ctx, sid, "item", domain.ApprovalPending, "")
	assert.ErrorIs(t, err, ErrInvalidDecision)

	a := f.addConcept(t, "A")
	_, err = f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: a}})
	require.NoError(t, err)
	_, err = f.orch.HandleApproval(ctx, sid, "other", domain.ApprovalApproved, "")
	assert.ErrorIs(t, err, ErrUnknownApprovalItem)
}

func TestHandleApprovalOnSVGVersion(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	state, err := f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{SVG: "<svg/>"})
	require.NoError(t, err)
	svgID := state.SVGVersions[0].ID

	state, err = f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemSVG, EntityID: svgID}})
	require.NoError(t, err)
	state, err = f.orch.HandleApproval(ctx, sid, state.AwaitingApproval.Items[0].ID, domain.ApprovalApprovedWithChanges, "rounder corners")
	require.NoError(t, err)

	assert.Nil(t, state.AwaitingApproval)
	assert.Equal(t, domain.ApprovalApprovedWithChanges, state.SVGVersions[0].ApprovalStatus)
	assert.Equal(t, "rounder corners", state.SVGVersions[0].Feedback)
}

func TestTryAdvancePhaseAtFinalPhase(t *testing.T) {
	f := newFixture(t)
	f.advanceTo(t, domain.PhaseExport)

	res, err := f.orch.TryAdvancePhase(context.Background(), sid)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, ReasonFinalPhase, res.Reason)
	assert.Equal(t, domain.PhaseExport, res.State.CurrentPhase)
}

func TestTryAdvancePhaseCeilingReached(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.sessions.Mutate(ctx, sid, func(state *domain.AgentState) (*domain.AgentState, error) {
		state.IterationCounts[domain.PhaseResearch] = workflow.Ceiling(domain.PhaseResearch)
		return state, nil
	})
	require.NoError(t, err)

	res, err := f.orch.TryAdvancePhase(ctx, sid)
	require.NoError(t, err)
	assert.False(t, res.Advanced)
	assert.Equal(t, "Iteration limit reached for research", res.Reason)
	assert.Equal(t, domain.PhaseDiscovery, res.State.CurrentPhase)
}

func TestGoBackToPhase(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.advanceTo(t, domain.PhaseConcept)
	a := f.addConcept(t, "A")
	_, err := f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: a}})
	require.NoError(t, err)

	_, err = f.orch.GoBackToPhase(ctx, sid, domain.PhaseConcept)
	assert.ErrorIs(t, err, ErrNotEarlierPhase)
	_, err = f.orch.GoBackToPhase(ctx, sid, domain.PhaseRefinement)
	assert.ErrorIs(t, err, ErrNotEarlierPhase)
	_, err = f.orch.GoBackToPhase(ctx, sid, domain.PhaseDiscovery)
	assert.ErrorIs(t, err, workflow.ErrInvalidTransition, "no edge from concept to discovery")

	state, err := f.orch.GoBackToPhase(ctx, sid, domain.PhaseResearch)
	require.NoError(t, err, "going back ignores the pending approval")
	assert.Equal(t, domain.PhaseResearch, state.CurrentPhase)
	assert.Nil(t, state.AwaitingApproval)
	assert.Equal(t, domain.ActionNamePhaseTransition, lastAction(state).Name)
}

func TestIncrementIterationAtCeilingLeavesStateUnchanged(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < workflow.Ceiling(domain.PhaseDiscovery); i++ {
		_, err := f.orch.IncrementIteration(ctx, sid)
		require.NoError(t, err)
	}
	before, err := f.orch.State(ctx, sid)
	require.NoError(t, err)
	require.Equal(t, 10, before.IterationCounts[domain.PhaseDiscovery])

	_, err = f.orch.IncrementIteration(ctx, sid)
	assert.ErrorIs(t, err, workflow.ErrIterationLimit)

	after, err := f.orch.State(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestLogActionAndAwaitingApproval(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	state, err := f.orch.LogAction(ctx, sid, domain.AgentAction{Type: domain.ActionError, Name: "render_failed"})
	require.NoError(t, err)
	assert.Equal(t, "render_failed", lastAction(state).Name)
	assert.Equal(t, domain.PhaseDiscovery, lastAction(state).Phase)

	req, err := f.orch.AwaitingApproval(ctx, sid)
	require.NoError(t, err)
	assert.Nil(t, req)
}

func TestGetWorkflowStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.advanceTo(t, domain.PhaseConcept)
	_, err := f.orch.UpdateBrandInfo(ctx, sid, domain.BrandInfo{Name: "Acme"})
	require.NoError(t, err)
	_, err = f.orch.IncrementIteration(ctx, sid)
	require.NoError(t, err)
	a := f.addConcept(t, "A")
	_, err = f.orch.RequestApproval(ctx, sid, []ApprovalItemInput{{Type: domain.ApprovalItemConcept, EntityID: a}})
	require.NoError(t, err)

	st, err := f.orch.GetWorkflowStatus(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, domain.PhaseConcept, st.CurrentPhase)
	assert.Equal(t, 50, st.ProgressPercent)
	assert.Equal(t, []domain.Phase{domain.PhaseDiscovery, domain.PhaseResearch}, st.CompletedPhases)
	assert.Equal(t, []domain.Phase{domain.PhaseRefinement, domain.PhaseExport}, st.RemainingPhases)
	assert.Equal(t, 4, st.RemainingIterations[domain.PhaseConcept])
	assert.Equal(t, 10, st.RemainingIterations[domain.PhaseDiscovery])
	assert.True(t, st.RequiresApproval)
	assert.True(t, st.AwaitingApproval)
	assert.True(t, st.HasBrandInfo)
	assert.False(t, st.HasSelectedConcept)
	assert.False(t, st.HasCurrentSVG)
	assert.Equal(t, 1, st.ConceptCount)

	f.advanceToAfterApproval(t)
	st, err = f.orch.GetWorkflowStatus(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, 75, st.ProgressPercent)
}

func (f *fixture) advanceToAfterApproval(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	req, err := f.orch.AwaitingApproval(ctx, sid)
	require.NoError(t, err)
	for _, item := range req.Items {
		_, err := f.orch.HandleApproval(ctx, sid, item.ID, domain.ApprovalApproved, "")
		require.NoError(t, err)
	}
	res, err := f.orch.TryAdvancePhase(ctx, sid)
	require.NoError(t, err)
	require.True(t, res.Advanced, res.Reason)
}

func TestStatusProgressBounds(t *testing.T) {
	state := domain.NewAgentState("s", "u", testNow)
	assert.Equal(t, 0, Status(state).ProgressPercent)
	state.CurrentPhase = domain.PhaseExport
	st := Status(state)
	assert.Equal(t, 100, st.ProgressPercent)
	assert.Empty(t, st.RemainingPhases)
	assert.Len(t, st.CompletedPhases, 4)
}

type fakeEvaluator struct {
	mu   sync.Mutex
	reqs []judge.Request
	out  domain.AggregatedEvaluation
}

func (e *fakeEvaluator) RunAll(_ context.Context, req judge.Request) *domain.AggregatedEvaluation {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.reqs = append(e.reqs, req)
	out := e.out
	return &out
}

func TestEvaluateSVGAttachesResult(t *testing.T) {
	eval := &fakeEvaluator{out: domain.AggregatedEvaluation{
		OverallScore:   6.2,
		Passed:         false,
		CriticalIssues: []string{"illegible at 16px"},
		Suggestions:    []string{"thicken strokes"},
		FailedJudges:   []string{"versatility"},
	}}
	f := newFixture(t, WithEvaluator(eval))
	ctx := context.Background()

	_, err := f.orch.UpdateBrandInfo(ctx, sid, domain.BrandInfo{Name: "Acme"})
	require.NoError(t, err)
	conceptID := f.addConcept(t, "Anvil")
	state, err := f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{ConceptID: conceptID, SVG: "<svg>v1</svg>"})
	require.NoError(t, err)
	v1 := state.SVGVersions[0].ID

	got, err := f.orch.EvaluateSVG(ctx, sid, v1)
	require.NoError(t, err)
	assert.Equal(t, 6.2, got.OverallScore)

	state, err = f.orch.State(ctx, sid)
	require.NoError(t, err)
	require.NotNil(t, state.SVGVersions[0].Evaluation)
	assert.Equal(t, 6.2, state.SVGVersions[0].Evaluation.OverallScore)
	assert.Equal(t, domain.ActionToolCall, lastAction(state).Type)
	assert.Equal(t, domain.ActionNameEvaluation, lastAction(state).Name)

	state, err = f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{ConceptID: conceptID, SVG: "<svg>v2</svg>"})
	require.NoError(t, err)
	_, err = f.orch.EvaluateSVG(ctx, sid, state.SVGVersions[1].ID)
	require.NoError(t, err)

	require.Len(t, eval.reqs, 2)
	assert.Equal(t, "<svg>v1</svg>", eval.reqs[0].SVG)
	assert.Equal(t, "Acme", eval.reqs[0].Brand.Name)
	require.NotNil(t, eval.reqs[0].Concept)
	assert.Equal(t, "Anvil", eval.reqs[0].Concept.Name)
	assert.Empty(t, eval.reqs[0].PreviousFeedback)
	assert.Equal(t, []string{"illegible at 16px", "thicken strokes"}, eval.reqs[1].PreviousFeedback)

	_, err = f.orch.EvaluateSVG(ctx, sid, "missing")
	assert.ErrorIs(t, err, ErrSVGVersionNotFound)
}

func TestEvaluateSVGDisabled(t *testing.T) {
	f := newFixture(t)
	_, err := f.orch.EvaluateSVG(context.Background(), sid, "x")
	assert.ErrorIs(t, err, ErrEvaluationDisabled)
}

func TestExportSVG(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	state, err := f.orch.AddSVGVersion(ctx, sid, domain.SVGVersion{SVG: "<svg>final</svg>"})
	require.NoError(t, err)
	svgID := state.SVGVersions[0].ID

	_, err = f.orch.ExportSVG(ctx, sid, svgID)
	assert.ErrorIs(t, err, ErrNotExportPhase)

	f.advanceTo(t, domain.PhaseExport)
	_, err = f.orch.ExportSVG(ctx, sid, "missing")
	assert.ErrorIs(t, err, ErrSVGVersionNotFound)

	res, err := f.orch.ExportSVG(ctx, sid, svgID)
	require.NoError(t, err)
	assert.Equal(t, "logos/"+sid+"/"+svgID+".svg", res.Key)
	assert.Equal(t, res.Key, res.State.SVGVersions[0].ExportKey)
	assert.Equal(t, domain.ActionNameExport, lastAction(res.State).Name)

	data, err := afero.ReadFile(f.fs, "/artifacts/"+res.Key)
	require.NoError(t, err)
	assert.Equal(t, "<svg>final</svg>", string(data))
}

func TestClearSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.orch.ClearSession(ctx, sid))

	_, err := f.orch.State(ctx, sid)
	assert.ErrorIs(t, err, session.ErrSessionNotFound)
	_, err = f.orch.UpdateBrandInfo(ctx, sid, domain.BrandInfo{Name: "Ghost"})
	assert.ErrorIs(t, err, session.ErrSessionNotFound, "mutations never recreate a cleared session")
}

func TestConcurrentOperationsOnOneSession(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.orch.AddConcepts(ctx, sid, []domain.Concept{{Name: fmt.Sprintf("c%d", i)}})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	state, err := f.orch.State(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, state.Concepts, 20)
	assert.Len(t, state.Actions, 20)
}
