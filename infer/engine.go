// Package infer implements the forward-chaining certainty-factor engine and
// the why/why-not explainer over its traces.
//
// # Algorithm
//
// Infer walks the rule list once, in the order given. A rule fires when
// every one of its conditions is present in the fact set; otherwise it is
// skipped with the specific missing facts recorded. When several fired
// rules share a conclusion, their certainty factors accumulate pairwise in
// firing order with CombineCFs.
//
// The engine holds no state between calls: Infer is a pure function of its
// inputs and safe to run concurrently against a shared read-only rule list.
package infer

import "argus/core"

// CombineCFs combines two certainty factors under the independent-evidence
// model: the new evidence claims its share of the remaining uncertainty.
//
//	combined = cfOld + cfNew * (1 - cfOld)
//
// The result is clamped to [0, 1] and is monotonic non-decreasing in both
// operands. It is applied pairwise in firing order only; floating-point
// rounding makes the sequence order-observable in the last bits, which is
// why traces preserve firing order.
func CombineCFs(cfOld, cfNew float64) float64 {
	result := cfOld + cfNew*(1.0-cfOld)
	if result < 0.0 {
		return 0.0
	}
	if result > 1.0 {
		return 1.0
	}
	return result
}

// Infer evaluates the rule list against the fact set and returns the
// combined CF per conclusion plus the full trace. Rules must be
// pre-validated (see core.NewRule); the engine itself never errors.
//
// An empty fact set or empty rule list is not an error: it yields an empty
// conclusion map and a trace with the corresponding fired/skipped counts.
func Infer(facts core.FactSet, rules []*core.Rule) (map[string]float64, *core.Trace) {
	trace := core.NewTrace()
	conclusions := make(map[string]float64)
	support := make(map[string][]core.RuleContribution)

	for _, rule := range rules {
		missing := facts.Missing(rule.Conditions)

		if len(missing) > 0 {
			trace.SkippedRules = append(trace.SkippedRules, core.SkippedRule{
				RuleID:            rule.ID,
				MissingConditions: missing,
				Conclusion:        rule.Conclusion,
				Explanation:       rule.Name,
			})
			continue
		}

		trace.FiredRules = append(trace.FiredRules, core.FiredRule{
			RuleID:            rule.ID,
			MatchedConditions: rule.Conditions,
			CF:                rule.CF,
			Conclusion:        rule.Conclusion,
			Explanation:       rule.Name,
		})

		if prev, ok := conclusions[rule.Conclusion]; ok {
			conclusions[rule.Conclusion] = CombineCFs(prev, rule.CF)
		} else {
			conclusions[rule.Conclusion] = rule.CF
		}
		support[rule.Conclusion] = append(support[rule.Conclusion], core.RuleContribution{
			RuleID:            rule.ID,
			CF:                rule.CF,
			MatchedConditions: rule.Conditions,
			Explanation:       rule.Name,
		})
	}

	for conclusion, finalCF := range conclusions {
		used := core.NewFactSet()
		for _, contrib := range support[conclusion] {
			for _, f := range contrib.MatchedConditions {
				used.Add(f)
			}
		}
		trace.Conclusions[conclusion] = core.ConclusionRecord{
			Conclusion:      conclusion,
			FinalCF:         finalCF,
			SupportingRules: support[conclusion],
			UsedFacts:       used.Sorted(),
		}
	}

	return conclusions, trace
}
