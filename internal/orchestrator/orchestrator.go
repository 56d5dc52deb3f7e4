// Package orchestrator is the domain façade over the session store. Every
// operation loads the session's state, computes the change and commits it
// inside the session's actor, so concurrent callers never race each other.
package orchestrator

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/ashureev/logoforge/internal/artifact"
	"github.com/ashureev/logoforge/internal/domain"
	"github.com/ashureev/logoforge/internal/judge"
	"github.com/ashureev/logoforge/internal/session"
	"github.com/ashureev/logoforge/internal/workflow"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/ashureev/logoforge/internal/orchestrator")

// Evaluator scores an artifact with every configured judge.
type Evaluator interface {
	RunAll(ctx context.Context, req judge.Request) *domain.AggregatedEvaluation
}

// Orchestrator drives the logo workflow for any number of sessions.
type Orchestrator struct {
	sessions       *session.Store
	artifacts      artifact.Store
	artifactPrefix string
	evaluator      Evaluator
	clock          func() time.Time
	newID          func() string
	logger         *slog.Logger
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithArtifacts enables SVG export to store under prefix.
func WithArtifacts(store artifact.Store, prefix string) Option {
	return func(o *Orchestrator) {
		o.artifacts = store
		o.artifactPrefix = prefix
	}
}

// WithEvaluator enables judge evaluation.
func WithEvaluator(e Evaluator) Option {
	return func(o *Orchestrator) { o.evaluator = e }
}

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(o *Orchestrator) { o.clock = clock }
}

// WithIDGenerator overrides entity id generation.
func WithIDGenerator(fn func() string) Option {
	return func(o *Orchestrator) { o.newID = fn }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

// New creates an Orchestrator over sessions.
func New(sessions *session.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		sessions: sessions,
		clock:    time.Now,
		newID:    uuid.NewString,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) now() time.Time {
	return o.clock().UTC()
}

func (o *Orchestrator) startSpan(ctx context.Context, op, sessionID string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "orchestrator."+op,
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(attribute.String("session.id", sessionID)),
	)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// mutate runs fn inside the session actor under a span named op.
func (o *Orchestrator) mutate(ctx context.Context, op, sessionID string, fn session.MutateFunc) (state *domain.AgentState, err error) {
	ctx, span := o.startSpan(ctx, op, sessionID)
	defer func() { endSpan(span, err) }()
	return o.sessions.Mutate(ctx, sessionID, fn)
}

// record appends an action to state.
func (o *Orchestrator) record(state *domain.AgentState, typ domain.ActionType, name string, payload any) {
	now := o.now()
	var raw json.RawMessage
	if payload != nil {
		raw, _ = json.Marshal(payload)
	}
	state.Actions = append(state.Actions, domain.AgentAction{
		ID:        workflow.NewActionID(now),
		Type:      typ,
		Name:      name,
		Phase:     state.CurrentPhase,
		Payload:   raw,
		Timestamp: now,
	})
}

// Start initializes a session, or returns it if it already exists.
func (o *Orchestrator) Start(ctx context.Context, sessionID, userID string) (state *domain.AgentState, err error) {
	ctx, span := o.startSpan(ctx, "start", sessionID)
	defer func() { endSpan(span, err) }()
	return o.sessions.Init(ctx, sessionID, userID)
}

// State returns the session's current state.
func (o *Orchestrator) State(ctx context.Context, sessionID string) (*domain.AgentState, error) {
	return o.sessions.Get(ctx, sessionID)
}

// AwaitingApproval returns the outstanding approval request, or nil.
func (o *Orchestrator) AwaitingApproval(ctx context.Context, sessionID string) (*domain.ApprovalRequest, error) {
	state, err := o.sessions.Get(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return state.AwaitingApproval, nil
}

// IncrementIteration consumes one iteration of the current phase.
func (o *Orchestrator) IncrementIteration(ctx context.Context, sessionID string) (state *domain.AgentState, err error) {
	ctx, span := o.startSpan(ctx, "increment_iteration", sessionID)
	defer func() { endSpan(span, err) }()
	return o.sessions.IncrementIteration(ctx, sessionID)
}

// LogAction appends a caller-supplied action to the audit trail.
func (o *Orchestrator) LogAction(ctx context.Context, sessionID string, action domain.AgentAction) (*domain.AgentState, error) {
	return o.sessions.AppendAction(ctx, sessionID, action)
}

// ClearSession deletes all state of a session.
func (o *Orchestrator) ClearSession(ctx context.Context, sessionID string) (err error) {
	ctx, span := o.startSpan(ctx, "clear_session", sessionID)
	defer func() { endSpan(span, err) }()
	return o.sessions.Clear(ctx, sessionID)
}
