package judge

import (
	"reflect"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"

	"github.com/ashureev/logoforge/internal/domain"
)

func passing(name string, score float64, suggestions ...string) domain.JudgeEvaluation {
	return domain.JudgeEvaluation{
		Judge:          name,
		OverallScore:   score,
		Passed:         true,
		CriticalIssues: []string{},
		Suggestions:    suggestions,
		EvaluatedAt:    testNow,
	}
}

func TestAggregateAllPassButCombinedScoreBelowGlobal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Policy.GlobalThreshold = 9.5

	agg := Aggregate([]domain.JudgeEvaluation{
		passing("brand_alignment", 9),
		passing("technical_quality", 9),
		passing("aesthetics", 9),
		passing("versatility", 9),
	}, cfg)

	assert.Equal(t, 9.0, agg.OverallScore)
	assert.False(t, agg.Passed)
	assert.Empty(t, agg.FailedJudges)
	assert.Empty(t, agg.CriticalIssues)
	assert.Len(t, agg.Evaluations, 4)
	assert.Contains(t, agg.Summary, "below the bar")
}

func TestAggregateJudgesAtThresholdPassIndividually(t *testing.T) {
	cfg := DefaultConfig()
	var evals []domain.JudgeEvaluation
	for _, p := range cfg.Judges {
		scores := map[string]float64{}
		for _, c := range p.Criteria {
			scores[c] = p.Threshold
		}
		raw := `{"scores": ` + toJSON(scores) + `, "critical_issues": []}`
		evals = append(evals, ParseEvaluation(p, raw, testNow).Evaluation())
	}
	for _, e := range evals {
		assert.True(t, e.Passed, e.Judge)
	}

	agg := Aggregate(evals, cfg)
	assert.Equal(t, 6.9, agg.OverallScore)
	assert.Empty(t, agg.FailedJudges)
	assert.False(t, agg.Passed, "global threshold is above every individual threshold")
}

func TestAggregatePasses(t *testing.T) {
	agg := Aggregate([]domain.JudgeEvaluation{
		passing("brand_alignment", 8.5),
		passing("technical_quality", 8),
		passing("aesthetics", 9),
		passing("versatility", 7.5),
	}, DefaultConfig())

	// (8.5*.35 + 8*.25 + 9*.15 + 7.5*.25) / 1.0 = 8.2
	assert.Equal(t, 8.2, agg.OverallScore)
	assert.True(t, agg.Passed)
	assert.Contains(t, agg.Summary, "passed")
}

func TestAggregateNormalisesByPresentWeights(t *testing.T) {
	agg := Aggregate([]domain.JudgeEvaluation{
		passing("brand_alignment", 10),
		passing("aesthetics", 6),
	}, DefaultConfig())

	// (10*.35 + 6*.15) / .5 = 8.8
	assert.Equal(t, 8.8, agg.OverallScore)
}

func TestAggregateFailedJudgeAndCriticalIssues(t *testing.T) {
	failing := passing("technical_quality", 9)
	failing.Passed = false
	failing.CriticalIssues = []string{"invalid svg", "no viewBox"}
	other := passing("versatility", 9)
	other.Passed = false
	other.CriticalIssues = []string{"invalid svg"}

	agg := Aggregate([]domain.JudgeEvaluation{passing("brand_alignment", 9), failing, other}, DefaultConfig())

	assert.False(t, agg.Passed)
	assert.Equal(t, []string{"technical_quality", "versatility"}, agg.FailedJudges)
	assert.Equal(t, []string{"invalid svg", "no viewBox"}, agg.CriticalIssues)
	assert.Contains(t, agg.Summary, "Failed judges: technical_quality, versatility.")
}

func TestAggregateSuggestionsWorstJudgeFirst(t *testing.T) {
	agg := Aggregate([]domain.JudgeEvaluation{
		passing("brand_alignment", 8, "a1", "shared"),
		passing("technical_quality", 5, "b1", "shared"),
		passing("aesthetics", 6, "c1"),
	}, DefaultConfig())
	assert.Equal(t, []string{"b1", "shared", "c1", "a1"}, agg.Suggestions)

	cfg := DefaultConfig()
	cfg.Policy.TopSuggestions = 2
	agg = Aggregate([]domain.JudgeEvaluation{
		passing("brand_alignment", 8, "a1", "shared"),
		passing("technical_quality", 5, "b1", "shared"),
		passing("aesthetics", 6, "c1"),
	}, cfg)
	assert.Equal(t, []string{"b1", "shared"}, agg.Suggestions)
}

func TestAggregateSuggestionTiesKeepJudgeOrder(t *testing.T) {
	agg := Aggregate([]domain.JudgeEvaluation{
		passing("brand_alignment", 7, "first", "second"),
		passing("aesthetics", 7, "third"),
	}, DefaultConfig())
	assert.Equal(t, []string{"first", "second", "third"}, agg.Suggestions)
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil, DefaultConfig())
	assert.Equal(t, 0.0, agg.OverallScore)
	assert.False(t, agg.Passed)
	assert.NotNil(t, agg.Evaluations)
	assert.NotNil(t, agg.FailedJudges)
}

func genEvaluation(names []string) gopter.Gen {
	values := make([]interface{}, len(names))
	for i, n := range names {
		values[i] = n
	}
	return gopter.CombineGens(
		gen.OneConstOf(values...),
		gen.Float64Range(0, 10),
		gen.Bool(),
		gen.SliceOfN(3, gen.OneConstOf("contrast", "kerning", "spacing", "palette")),
	).Map(func(v []interface{}) domain.JudgeEvaluation {
		e := passing(v[0].(string), Round1(v[1].(float64)), v[3].([]string)...)
		e.Passed = v[2].(bool)
		if !e.Passed {
			e.CriticalIssues = []string{"issue from " + e.Judge}
		}
		return e
	})
}

func TestPropertyAggregateIsPure(t *testing.T) {
	cfg := DefaultConfig()
	names := make([]string, len(cfg.Judges))
	for i, p := range cfg.Judges {
		names[i] = p.Name
	}

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("same evaluations give the same aggregate", prop.ForAll(
		func(evals []domain.JudgeEvaluation) bool {
			first := Aggregate(evals, cfg)
			second := Aggregate(evals, cfg)
			return reflect.DeepEqual(first, second)
		},
		gen.SliceOf(genEvaluation(names)),
	))

	properties.Property("overall score stays within the judges' range", prop.ForAll(
		func(evals []domain.JudgeEvaluation) bool {
			if len(evals) == 0 {
				return true
			}
			lo, hi := 10.0, 0.0
			for _, e := range evals {
				lo = min(lo, e.OverallScore)
				hi = max(hi, e.OverallScore)
			}
			agg := Aggregate(evals, cfg)
			return agg.OverallScore >= Round1(lo)-0.05 && agg.OverallScore <= Round1(hi)+0.05
		},
		gen.SliceOf(genEvaluation(names)),
	))

	properties.Property("suggestions are unique and capped", prop.ForAll(
		func(evals []domain.JudgeEvaluation) bool {
			agg := Aggregate(evals, cfg)
			if len(agg.Suggestions) > cfg.Policy.TopSuggestions {
				return false
			}
			seen := map[string]bool{}
			for _, s := range agg.Suggestions {
				if seen[s] {
					return false
				}
				seen[s] = true
			}
			return true
		},
		gen.SliceOf(genEvaluation(names)),
	))

	properties.Property("a failed judge always fails the panel", prop.ForAll(
		func(evals []domain.JudgeEvaluation) bool {
			agg := Aggregate(evals, cfg)
			for _, e := range evals {
				if !e.Passed && agg.Passed {
					return false
				}
			}
			return true
		},
		gen.SliceOf(genEvaluation(names)),
	))

	properties.TestingRun(t)
}
