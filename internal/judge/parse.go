package judge

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ashureev/logoforge/internal/domain"
)

// ErrNoJSON is the cause of a degraded result when the judge's reply holds
// no balanced JSON object.
var ErrNoJSON = errors.New("no JSON object in judge output")

// ExtractJSON returns the first balanced {...} span of raw. Braces inside
// JSON strings are ignored.
func ExtractJSON(raw string) (string, bool) {
	start := strings.IndexByte(raw, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(raw); i++ {
		c := raw[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return raw[start : i+1], true
			}
		}
	}
	return "", false
}

// ParseEvaluation turns a judge's free-text reply into an Outcome. Malformed
// sub-fields are coerced to zero values; only a missing or unparseable
// object degrades the judge.
func ParseEvaluation(profile Profile, raw string, now time.Time) Outcome {
	span, ok := ExtractJSON(raw)
	if !ok {
		return Degraded{Judge: profile.Name, Cause: ErrNoJSON, At: now}
	}
	var doc map[string]any
	if err := json.Unmarshal([]byte(span), &doc); err != nil {
		return Degraded{Judge: profile.Name, Cause: fmt.Errorf("decode judge output: %w", err), At: now}
	}

	rawScores, _ := doc["scores"].(map[string]any)
	criteria := profile.Criteria
	if len(criteria) == 0 {
		for name := range rawScores {
			criteria = append(criteria, name)
		}
		sort.Strings(criteria)
	}

	scores := make(map[string]domain.CriterionScore, len(criteria))
	suggestions := newOrderedSet()
	var sum float64
	for _, name := range criteria {
		cs := coerceCriterion(rawScores[name])
		scores[name] = cs
		sum += cs.Score
		suggestions.add(cs.Suggestions...)
	}
	suggestions.add(coerceStrings(doc["suggestions"])...)

	var overall float64
	if len(criteria) > 0 {
		overall = Round1(sum / float64(len(criteria)))
	}
	critical := newOrderedSet()
	critical.add(coerceStrings(doc["critical_issues"])...)

	return Scored{Eval: domain.JudgeEvaluation{
		Judge:          profile.Name,
		Scores:         scores,
		OverallScore:   overall,
		Passed:         overall >= profile.Threshold && critical.len() == 0,
		CriticalIssues: critical.items(),
		Suggestions:    suggestions.items(),
		EvaluatedAt:    now,
	}}
}

func coerceCriterion(v any) domain.CriterionScore {
	switch t := v.(type) {
	case map[string]any:
		return domain.CriterionScore{
			Score:       coerceScore(t["score"]),
			Reasoning:   coerceString(t["reasoning"]),
			Issues:      coerceStrings(t["issues"]),
			Suggestions: coerceStrings(t["suggestions"]),
		}
	default:
		return domain.CriterionScore{
			Score:       coerceScore(v),
			Issues:      []string{},
			Suggestions: []string{},
		}
	}
}

// coerceScore reads a 0-10 score from a number or numeric string.
func coerceScore(v any) float64 {
	var f float64
	switch t := v.(type) {
	case float64:
		f = t
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return math.Max(0, math.Min(10, f))
}

func coerceString(v any) string {
	s, _ := v.(string)
	return s
}

func coerceStrings(v any) []string {
	out := []string{}
	switch t := v.(type) {
	case string:
		if s := strings.TrimSpace(t); s != "" {
			out = append(out, s)
		}
	case []any:
		for _, item := range t {
			if s, ok := item.(string); ok {
				if s = strings.TrimSpace(s); s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

// Round1 rounds to one decimal place.
func Round1(f float64) float64 {
	return math.Round(f*10) / 10
}

// orderedSet keeps the first occurrence of each string.
type orderedSet struct {
	seen  map[string]bool
	order []string
}

func newOrderedSet() *orderedSet {
	return &orderedSet{seen: make(map[string]bool), order: []string{}}
}

func (s *orderedSet) add(items ...string) {
	for _, item := range items {
		if s.seen[item] {
			continue
		}
		s.seen[item] = true
		s.order = append(s.order, item)
	}
}

func (s *orderedSet) len() int { return len(s.order) }

func (s *orderedSet) items() []string { return s.order }
