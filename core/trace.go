package core

import "encoding/json"

// FiredRule records one rule whose full condition set was satisfied during
// an inference run.
type FiredRule struct {
	RuleID            string  `json:"rule_id"`
	MatchedConditions []Fact  `json:"matched_conditions"`
	CF                float64 `json:"cf"`
	Conclusion        string  `json:"conclusion"`
	Explanation       string  `json:"explanation"`
}

// SkippedRule records one rule that did not fire, annotated with the exact
// facts that were absent. "Why not" explanations are built from these, so
// the missing set is always populated, never just a pass/fail flag.
type SkippedRule struct {
	RuleID            string `json:"rule_id"`
	MissingConditions []Fact `json:"missing_conditions"`
	Conclusion        string `json:"conclusion"`
	Explanation       string `json:"explanation"`
}

// RuleContribution is one rule's contribution to a conclusion: its own CF
// and the facts it matched. Contributions are stored in firing order, which
// is part of the engine's observable contract (CF accumulation is applied
// pairwise in that order).
type RuleContribution struct {
	RuleID            string  `json:"rule_id"`
	CF                float64 `json:"cf"`
	MatchedConditions []Fact  `json:"matched_conditions"`
	Explanation       string  `json:"explanation"`
}

// ConclusionRecord is the derived support record for one conclusion: the
// combined certainty factor, every contributing rule in firing order, and
// the union of facts those rules matched.
type ConclusionRecord struct {
	Conclusion      string             `json:"conclusion"`
	FinalCF         float64            `json:"final_cf"`
	SupportingRules []RuleContribution `json:"supporting_rules"`
	UsedFacts       []Fact             `json:"used_facts"`
}

// Trace is the full audit record of one inference run. It is freshly
// allocated per run, immutable once returned, and the sole artifact the
// explainer and incident storage consume.
//
// FiredRules and SkippedRules preserve rule-base iteration order.
type Trace struct {
	FiredRules   []FiredRule                 `json:"fired_rules"`
	SkippedRules []SkippedRule               `json:"skipped_rules"`
	Conclusions  map[string]ConclusionRecord `json:"conclusions"`
}

// NewTrace allocates an empty trace.
func NewTrace() *Trace {
	return &Trace{
		FiredRules:   []FiredRule{},
		SkippedRules: []SkippedRule{},
		Conclusions:  make(map[string]ConclusionRecord),
	}
}

// ToJSON serializes the trace losslessly. Firing order is preserved in the
// fired_rules and supporting_rules lists; replaying CF combination over a
// deserialized trace reproduces the stored final CFs bit-for-bit.
func (t *Trace) ToJSON() ([]byte, error) {
	return json.Marshal(t)
}

// TraceFromJSON reloads a trace serialized with ToJSON.
func TraceFromJSON(data []byte) (*Trace, error) {
	var t Trace
	if err := json.Unmarshal(data, &t); err != nil {
		return nil, err
	}
	if t.FiredRules == nil {
		t.FiredRules = []FiredRule{}
	}
	if t.SkippedRules == nil {
		t.SkippedRules = []SkippedRule{}
	}
	if t.Conclusions == nil {
		t.Conclusions = make(map[string]ConclusionRecord)
	}
	return &t, nil
}
