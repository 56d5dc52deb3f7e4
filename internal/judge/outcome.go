package judge

import (
	"time"

	"github.com/ashureev/logoforge/internal/domain"
)

// CriticalIssueIncomplete is the single critical issue of a degraded judge.
const CriticalIssueIncomplete = "Evaluation could not be completed"

// Outcome is the result of one judge: either Scored or Degraded.
type Outcome interface {
	// Evaluation returns the judge's contribution to the aggregate.
	Evaluation() domain.JudgeEvaluation
	outcome()
}

// Scored is a well-formed evaluation.
type Scored struct {
	Eval domain.JudgeEvaluation
}

// Evaluation implements Outcome.
func (s Scored) Evaluation() domain.JudgeEvaluation { return s.Eval }
func (Scored) outcome() {}

// Degraded stands in for a judge whose call or output failed.
type Degraded struct {
	Judge string
	Cause error
	At    time.Time
}

// Evaluation implements Outcome. The result is a zero score that cannot pass.
func (d Degraded) Evaluation() domain.JudgeEvaluation {
	return domain.JudgeEvaluation{
		Judge:          d.Judge,
		Scores:         map[string]domain.CriterionScore{},
		OverallScore:   0,
		Passed:         false,
		CriticalIssues: []string{CriticalIssueIncomplete},
		Suggestions:    []string{},
		EvaluatedAt:    d.At,
	}
}
func (Degraded) outcome() {}
