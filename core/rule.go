package core

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// Rule validation errors, surfaced at construction time. A rule that fails
// validation must never enter the active rule list handed to the engine.
var (
	// ErrInvalidCF is returned when a certainty factor is outside [0, 1].
	ErrInvalidCF = errors.New("certainty factor must be in [0.0, 1.0]")

	// ErrEmptyConditions is returned for a rule with no conditions. Such a
	// rule would fire vacuously on every alert.
	ErrEmptyConditions = errors.New("rule must have at least one condition")
)

// DefaultCF is applied when a rule record arrives from storage with no
// certainty factor set.
const DefaultCF = 0.5

// UnknownConclusion labels rule records whose conclusion is missing. Rules
// carrying it still evaluate, but the triage service never ranks it as a
// top conclusion.
const UnknownConclusion = "unknown"

// Rule is a single forward-chaining rule: a conjunction of required facts
// supporting a conclusion with a certainty factor.
//
// Rules are immutable after construction and safe to share across
// concurrent inference calls.
type Rule struct {
	ID string `json:"id" example:"ssh-brute-force"`
	// Conditions is the full set of facts that must ALL be present for the
	// rule to fire. No negation, no disjunction, no partial credit.
	Conditions []Fact `json:"conditions"`
	// Conclusion names the hypothesis this rule supports. Multiple rules may
	// share a conclusion; their CFs combine during inference.
	Conclusion string `json:"conclusion" example:"brute_force_attack"`
	// CF is the rule's certainty factor in [0.0, 1.0].
	CF float64 `json:"cf" example:"0.9"`
	// Name is a free-form human label carried into traces and explanations.
	// It has no effect on matching.
	Name string `json:"name" example:"SSH Brute Force Pattern"`

	// AttackType groups rules by the attack family they detect. Display and
	// filtering only.
	AttackType string `json:"attack_type,omitempty" example:"brute_force"`
	Enabled    bool   `json:"enabled" example:"true"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewRule constructs a validated Rule. Conditions are deduplicated and
// sorted so two rules with the same condition set compare equal regardless
// of authoring order. Returns ErrInvalidCF or ErrEmptyConditions on bad
// input.
func NewRule(id string, conditions []Fact, conclusion string, cf float64, name string) (*Rule, error) {
	if cf < 0.0 || cf > 1.0 {
		return nil, fmt.Errorf("rule %s: %w (got %v)", id, ErrInvalidCF, cf)
	}

	seen := make(map[Fact]struct{}, len(conditions))
	var conds []Fact
	for _, c := range conditions {
		if c == "" {
			continue
		}
		if _, dup := seen[c]; dup {
			continue
		}
		seen[c] = struct{}{}
		conds = append(conds, c)
	}
	if len(conds) == 0 {
		return nil, fmt.Errorf("rule %s: %w", id, ErrEmptyConditions)
	}
	sort.Strings(conds)

	if conclusion == "" {
		conclusion = UnknownConclusion
	}

	now := time.Now().UTC()
	return &Rule{
		ID:         id,
		Conditions: conds,
		Conclusion: conclusion,
		CF:         cf,
		Name:       name,
		Enabled:    true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}, nil
}

// Validate re-checks the rule invariants. Storage calls this before
// persisting records that were built field-by-field rather than through
// NewRule.
func (r *Rule) Validate() error {
	if r.CF < 0.0 || r.CF > 1.0 {
		return fmt.Errorf("rule %s: %w (got %v)", r.ID, ErrInvalidCF, r.CF)
	}
	if len(r.Conditions) == 0 {
		return fmt.Errorf("rule %s: %w", r.ID, ErrEmptyConditions)
	}
	return nil
}
