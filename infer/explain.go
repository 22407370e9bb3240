package infer

import (
	"fmt"
	"math"
	"strings"

	"argus/core"
)

// Explanation answer types.
const (
	ExplanationWhy    = "why"
	ExplanationWhyNot = "why_not"
)

// CFStep is one row of the stepwise combination ledger: the running CF
// before and after one rule's contribution. Values are rounded to four
// decimal places for display; the exact final CF lives in the trace.
type CFStep struct {
	Step         int     `json:"step"`
	RuleID       string  `json:"rule_id"`
	RuleCF       float64 `json:"rule_cf"`
	CFBefore     float64 `json:"cf_before"`
	CFAfter      float64 `json:"cf_after"`
	Contribution float64 `json:"contribution"`
	Explanation  string  `json:"explanation"`
}

// Explanation is the structured answer to a why or why-not query.
//
// For a "why" answer, SupportingRules, UsedFacts and Steps are populated
// and FinalCF equals the value in the trace's conclusion map. For a
// "why_not" answer, CandidateRules lists the skipped rules that name the
// conclusion and MissingFacts is the union of their missing conditions.
type Explanation struct {
	Type            string                  `json:"type"`
	Conclusion      string                  `json:"conclusion"`
	FinalCF         float64                 `json:"final_cf,omitempty"`
	SupportingRules []core.RuleContribution `json:"supporting_rules,omitempty"`
	UsedFacts       []core.Fact             `json:"used_facts,omitempty"`
	Steps           []CFStep                `json:"stepwise_combination,omitempty"`
	CandidateRules  []core.SkippedRule      `json:"candidate_rules,omitempty"`
	MissingFacts    []core.Fact             `json:"missing_facts,omitempty"`
	Summary         string                  `json:"summary"`
}

// Explain answers a why/why-not query about one conclusion, consulting only
// the trace. It never re-runs inference, so it is stateless and replayable
// against stored traces. Querying a conclusion no rule ever mentions is not
// an error; it yields a why-not answer with an empty candidate list.
func Explain(conclusionID string, trace *core.Trace) *Explanation {
	if record, ok := trace.Conclusions[conclusionID]; ok {
		return &Explanation{
			Type:            ExplanationWhy,
			Conclusion:      record.Conclusion,
			FinalCF:         record.FinalCF,
			SupportingRules: record.SupportingRules,
			UsedFacts:       record.UsedFacts,
			Steps:           stepwiseCF(record.SupportingRules),
			Summary:         whySummary(record),
		}
	}

	var candidates []core.SkippedRule
	for _, skipped := range trace.SkippedRules {
		if skipped.Conclusion == conclusionID {
			candidates = append(candidates, skipped)
		}
	}

	return &Explanation{
		Type:           ExplanationWhyNot,
		Conclusion:     conclusionID,
		CandidateRules: candidates,
		MissingFacts:   missingUnion(candidates),
		Summary:        whyNotSummary(conclusionID, candidates),
	}
}

// stepwiseCF replays the CF combination over the supporting rules in firing
// order, recording before/after/marginal per step.
func stepwiseCF(supporting []core.RuleContribution) []CFStep {
	steps := make([]CFStep, 0, len(supporting))
	running := 0.0

	for i, contrib := range supporting {
		before := running
		after := CombineCFs(running, contrib.CF)

		steps = append(steps, CFStep{
			Step:         i + 1,
			RuleID:       contrib.RuleID,
			RuleCF:       contrib.CF,
			CFBefore:     round4(before),
			CFAfter:      round4(after),
			Contribution: round4(after - before),
			Explanation:  contrib.Explanation,
		})

		running = after
	}

	return steps
}

func whySummary(record core.ConclusionRecord) string {
	return fmt.Sprintf("Conclusion %q reached with %d%% certainty. Supported by %d rule(s) using %d fact(s).",
		record.Conclusion,
		int(record.FinalCF*100),
		len(record.SupportingRules),
		len(record.UsedFacts))
}

func whyNotSummary(conclusionID string, candidates []core.SkippedRule) string {
	if len(candidates) == 0 {
		return fmt.Sprintf("Conclusion %q was not reached because no rules support it.", conclusionID)
	}

	missing := missingUnion(candidates)
	return fmt.Sprintf("Conclusion %q was not reached. %d rule(s) could have supported it, but %d required fact(s) were missing: %s",
		conclusionID,
		len(candidates),
		len(missing),
		strings.Join(missing, ", "))
}

func missingUnion(candidates []core.SkippedRule) []core.Fact {
	union := core.NewFactSet()
	for _, c := range candidates {
		for _, f := range c.MissingConditions {
			union.Add(f)
		}
	}
	if len(union) == 0 {
		return nil
	}
	return union.Sorted()
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
