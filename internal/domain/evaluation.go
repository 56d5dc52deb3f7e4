package domain

import "time"

// CriterionScore is one judge's verdict on a single named criterion.
type CriterionScore struct {
	Score       float64  `json:"score"`
	Reasoning   string   `json:"reasoning,omitempty"`
	Issues      []string `json:"issues,omitempty"`
	Suggestions []string `json:"suggestions,omitempty"`
}

// JudgeEvaluation is the parsed output of one judge.
type JudgeEvaluation struct {
	Judge          string                    `json:"judge"`
	Scores         map[string]CriterionScore `json:"scores"`
	OverallScore   float64                   `json:"overall_score"`
	Passed         bool                      `json:"passed"`
	CriticalIssues []string                  `json:"critical_issues"`
	Suggestions    []string                  `json:"suggestions"`
	EvaluatedAt    time.Time                 `json:"evaluated_at"`
}

// AggregatedEvaluation combines every judge into one decision.
type AggregatedEvaluation struct {
	OverallScore   float64           `json:"overall_score"`
	Passed         bool              `json:"passed"`
	Evaluations    []JudgeEvaluation `json:"evaluations"`
	CriticalIssues []string          `json:"critical_issues"`
	Suggestions    []string          `json:"suggestions"`
	Summary        string            `json:"summary"`
	FailedJudges   []string          `json:"failed_judges"`
}
