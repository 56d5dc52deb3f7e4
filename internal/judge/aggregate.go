package judge

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ashureev/logoforge/internal/domain"
)

// Aggregate combines per-judge evaluations into one decision. It is pure:
// the same input always yields the same output.
//
// The overall score is the weight-normalised mean of the judges present.
// The panel passes only if no judge failed, no critical issue was raised
// and the overall score meets the global threshold.
func Aggregate(evals []domain.JudgeEvaluation, cfg Config) domain.AggregatedEvaluation {
	var weighted, totalWeight float64
	failed := []string{}
	critical := newOrderedSet()

	type tagged struct {
		score float64
		text  string
	}
	var pool []tagged

	for _, e := range evals {
		if p, ok := cfg.Profile(e.Judge); ok {
			weighted += e.OverallScore * p.Weight
			totalWeight += p.Weight
		}
		if !e.Passed {
			failed = append(failed, e.Judge)
		}
		critical.add(e.CriticalIssues...)
		for _, s := range e.Suggestions {
			pool = append(pool, tagged{score: e.OverallScore, text: s})
		}
	}

	var overall float64
	if totalWeight > 0 {
		overall = Round1(weighted / totalWeight)
	}

	// Feedback from the weakest judge comes first.
	sort.SliceStable(pool, func(i, j int) bool { return pool[i].score < pool[j].score })
	suggestions := newOrderedSet()
	for _, t := range pool {
		if suggestions.len() >= cfg.Policy.TopSuggestions {
			break
		}
		suggestions.add(t.text)
	}

	passed := len(failed) == 0 && critical.len() == 0 && overall >= cfg.Policy.GlobalThreshold

	out := domain.AggregatedEvaluation{
		OverallScore:   overall,
		Passed:         passed,
		Evaluations:    append([]domain.JudgeEvaluation{}, evals...),
		CriticalIssues: critical.items(),
		Suggestions:    suggestions.items(),
		FailedJudges:   failed,
	}
	out.Summary = summarize(out, cfg.Policy)
	return out
}

func summarize(a domain.AggregatedEvaluation, policy Policy) string {
	var b strings.Builder
	verdict := "failed"
	if a.Passed {
		verdict = "passed"
	}
	fmt.Fprintf(&b, "Overall score %.1f/10 (%s, threshold %.1f).", a.OverallScore, verdict, policy.GlobalThreshold)
	if len(a.FailedJudges) > 0 {
		fmt.Fprintf(&b, " Failed judges: %s.", strings.Join(a.FailedJudges, ", "))
	}
	if n := len(a.CriticalIssues); n > 0 {
		fmt.Fprintf(&b, " %d critical issue(s).", n)
	}
	if !a.Passed && len(a.FailedJudges) == 0 && len(a.CriticalIssues) == 0 {
		b.WriteString(" Every judge passed but the combined score is below the bar.")
	}
	return b.String()
}
