package infer

import (
	"testing"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustRule(t *testing.T, id string, conditions []core.Fact, conclusion string, cf float64) *core.Rule {
	t.Helper()
	rule, err := core.NewRule(id, conditions, conclusion, cf, id)
	require.NoError(t, err)
	return rule
}

// TestCombineCFs tests the independent-evidence combination
func TestCombineCFs(t *testing.T) {
	tests := []struct {
		name     string
		old, new float64
		expected float64
	}{
		{"zero plus zero", 0.0, 0.0, 0.0},
		{"zero is identity", 0.7, 0.0, 0.7},
		{"symmetric identity", 0.0, 0.7, 0.7},
		{"two strong factors", 0.9, 0.92, 0.992},
		{"equal halves", 0.5, 0.5, 0.75},
		{"one absorbs", 1.0, 0.4, 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CombineCFs(tt.old, tt.new), 1e-9)
		})
	}
}

// TestCombineCFs_Bounds tests that results stay in [0, 1]
func TestCombineCFs_Bounds(t *testing.T) {
	values := []float64{0.0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1.0}
	for _, a := range values {
		for _, b := range values {
			combined := CombineCFs(a, b)
			assert.GreaterOrEqual(t, combined, 0.0)
			assert.LessOrEqual(t, combined, 1.0)
		}
	}
}

// TestCombineCFs_Monotonic tests non-decreasing accumulation
func TestCombineCFs_Monotonic(t *testing.T) {
	running := 0.0
	for _, cf := range []float64{0.3, 0.5, 0.2, 0.9, 0.1} {
		next := CombineCFs(running, cf)
		assert.GreaterOrEqual(t, next, running, "Combining can never lower certainty")
		running = next
	}
}

// TestInfer_SingleRuleFires tests basic conjunctive matching
func TestInfer_SingleRuleFires(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a", "fact_b"}, "intrusion", 0.8),
	}
	facts := core.NewFactSet("fact_a", "fact_b", "fact_c")

	conclusions, trace := Infer(facts, rules)

	require.Contains(t, conclusions, "intrusion")
	assert.Equal(t, 0.8, conclusions["intrusion"])

	require.Len(t, trace.FiredRules, 1)
	assert.Equal(t, "r1", trace.FiredRules[0].RuleID)
	assert.Equal(t, []core.Fact{"fact_a", "fact_b"}, trace.FiredRules[0].MatchedConditions)
	assert.Empty(t, trace.SkippedRules)
}

// TestInfer_AllConditionsRequired tests that partial matches never fire
func TestInfer_AllConditionsRequired(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a", "fact_b", "fact_c"}, "intrusion", 0.8),
	}
	facts := core.NewFactSet("fact_a", "fact_c")

	conclusions, trace := Infer(facts, rules)

	assert.Empty(t, conclusions, "Two of three conditions give no partial credit")
	assert.Empty(t, trace.FiredRules)
	require.Len(t, trace.SkippedRules, 1)
	assert.Equal(t, []core.Fact{"fact_b"}, trace.SkippedRules[0].MissingConditions,
		"The skip record names exactly the absent condition")
}

// TestInfer_CFAccumulation tests pairwise combination across shared conclusions
func TestInfer_CFAccumulation(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a"}, "brute_force_attack", 0.9),
		mustRule(t, "r2", []core.Fact{"fact_b"}, "brute_force_attack", 0.92),
	}
	facts := core.NewFactSet("fact_a", "fact_b")

	conclusions, trace := Infer(facts, rules)

	// 0.9 + 0.92*(1-0.9) = 0.992
	assert.InDelta(t, 0.992, conclusions["brute_force_attack"], 1e-9)

	record := trace.Conclusions["brute_force_attack"]
	require.Len(t, record.SupportingRules, 2)
	assert.Equal(t, "r1", record.SupportingRules[0].RuleID, "Support preserves firing order")
	assert.Equal(t, "r2", record.SupportingRules[1].RuleID)
	assert.Equal(t, []core.Fact{"fact_a", "fact_b"}, record.UsedFacts)
	assert.InDelta(t, 0.992, record.FinalCF, 1e-9)
}

// TestInfer_IndependentConclusions tests that conclusions do not interfere
func TestInfer_IndependentConclusions(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a"}, "brute_force_attack", 0.9),
		mustRule(t, "r2", []core.Fact{"fact_a"}, "ddos_attack", 0.4),
	}
	facts := core.NewFactSet("fact_a")

	conclusions, _ := Infer(facts, rules)

	assert.Equal(t, 0.9, conclusions["brute_force_attack"])
	assert.Equal(t, 0.4, conclusions["ddos_attack"])
}

// TestInfer_Deterministic tests identical outputs for identical inputs
func TestInfer_Deterministic(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a"}, "x", 0.7),
		mustRule(t, "r2", []core.Fact{"fact_a"}, "x", 0.6),
		mustRule(t, "r3", []core.Fact{"fact_b"}, "y", 0.5),
	}
	facts := core.NewFactSet("fact_a")

	firstConclusions, firstTrace := Infer(facts, rules)
	secondConclusions, secondTrace := Infer(facts, rules)

	assert.Equal(t, firstConclusions, secondConclusions)
	assert.Equal(t, firstTrace.FiredRules, secondTrace.FiredRules)
	assert.Equal(t, firstTrace.SkippedRules, secondTrace.SkippedRules)
	assert.Equal(t, firstTrace.Conclusions, secondTrace.Conclusions)
}

// TestInfer_EmptyInputs tests empty fact set and empty rule list
func TestInfer_EmptyInputs(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a"}, "x", 0.7),
	}

	conclusions, trace := Infer(core.NewFactSet(), rules)
	assert.Empty(t, conclusions)
	assert.Empty(t, trace.FiredRules)
	assert.Len(t, trace.SkippedRules, 1)

	conclusions, trace = Infer(core.NewFactSet("fact_a"), nil)
	assert.Empty(t, conclusions)
	assert.Empty(t, trace.FiredRules)
	assert.Empty(t, trace.SkippedRules)
}

// TestInfer_FreshTracePerRun tests that runs never share trace state
func TestInfer_FreshTracePerRun(t *testing.T) {
	rules := []*core.Rule{
		mustRule(t, "r1", []core.Fact{"fact_a"}, "x", 0.7),
	}

	_, first := Infer(core.NewFactSet("fact_a"), rules)
	_, second := Infer(core.NewFactSet("fact_a"), rules)

	assert.NotSame(t, first, second)
	assert.Len(t, first.FiredRules, 1)
	assert.Len(t, second.FiredRules, 1)
}
