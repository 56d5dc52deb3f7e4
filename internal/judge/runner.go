package judge

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"
)

var tracer = otel.Tracer("github.com/ashureev/logoforge/internal/judge")

// Completion is one prompt sent to the language model.
type Completion struct {
	Model  string
	System string
	Prompt string
}

// Completer returns the model's text reply to a prompt.
type Completer interface {
	Complete(ctx context.Context, c Completion) (string, error)
}

// RunnerOptions tunes a Runner.
type RunnerOptions struct {
	Model   string
	Timeout time.Duration
	Clock   func() time.Time
	Logger  *slog.Logger
}

// Runner asks every judge of the panel concurrently and aggregates them.
type Runner struct {
	completer Completer
	cfg       Config
	opts      RunnerOptions
	logger    *slog.Logger
}

// NewRunner creates a Runner for the panel cfg.
func NewRunner(completer Completer, cfg Config, opts RunnerOptions) *Runner {
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{completer: completer, cfg: cfg, opts: opts, logger: logger}
}

// Config returns the panel.
func (r *Runner) Config() Config {
	return r.cfg
}

// RunAll evaluates req with every judge and always returns a complete
// aggregate: a judge that errors, panics or replies with garbage is scored
// as degraded while the others carry on.
func (r *Runner) RunAll(ctx context.Context, req Request) *domain.AggregatedEvaluation {
	ctx, span := tracer.Start(ctx, "judge.run_all",
		trace.WithAttributes(attribute.Int("judge.count", len(r.cfg.Judges))))
	defer span.End()

	outcomes := make([]Outcome, len(r.cfg.Judges))
	var g errgroup.Group
	for i, p := range r.cfg.Judges {
		g.Go(func() error {
			outcomes[i] = r.runOne(ctx, p, req)
			return nil
		})
	}
	_ = g.Wait()

	evals := make([]domain.JudgeEvaluation, len(outcomes))
	for i, o := range outcomes {
		evals[i] = o.Evaluation()
	}
	agg := Aggregate(evals, r.cfg)

	span.SetAttributes(
		attribute.Float64("judge.overall_score", agg.OverallScore),
		attribute.Bool("judge.passed", agg.Passed),
		attribute.StringSlice("judge.failed", agg.FailedJudges),
	)
	return &agg
}

func (r *Runner) runOne(ctx context.Context, p Profile, req Request) (out Outcome) {
	ctx, span := tracer.Start(ctx, "judge.evaluate", trace.WithAttributes(attribute.String("judge.name", p.Name)))
	defer span.End()

	defer func() {
		if rec := recover(); rec != nil {
			out = r.degrade(span, p, fmt.Errorf("judge panicked: %v", rec))
		}
	}()

	if r.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.Timeout)
		defer cancel()
	}

	system, prompt := BuildPrompt(p, req)
	text, err := r.completer.Complete(ctx, Completion{Model: r.opts.Model, System: system, Prompt: prompt})
	if err != nil {
		return r.degrade(span, p, fmt.Errorf("completion failed: %w", err))
	}

	out = ParseEvaluation(p, text, r.opts.Clock().UTC())
	if d, ok := out.(Degraded); ok {
		return r.degrade(span, p, d.Cause)
	}
	eval := out.Evaluation()
	span.SetAttributes(attribute.Float64("judge.score", eval.OverallScore), attribute.Bool("judge.passed", eval.Passed))
	return out
}

func (r *Runner) degrade(span trace.Span, p Profile, cause error) Outcome {
	r.logger.Warn("judge evaluation degraded", "judge", p.Name, "error", cause)
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	return Degraded{Judge: p.Name, Cause: cause, At: r.opts.Clock().UTC()}
}
