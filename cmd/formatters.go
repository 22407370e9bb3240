package cmd

import (
	"fmt"
	"strings"

	"argus/core"
	"argus/infer"

	"github.com/fatih/color"
)

// renderRulesTable displays rules in a formatted table
func renderRulesTable(rules []*core.Rule) {
	if len(rules) == 0 {
		warningColor.Println("No rules stored")
		return
	}

	headerColor.Println("RULES")
	headerColor.Println(strings.Repeat("=", 110))
	fmt.Printf("%-28s %-24s %-6s %-8s %-10s %s\n",
		"ID", "Conclusion", "CF", "Enabled", "Conditions", "Name")
	fmt.Println(strings.Repeat("-", 110))

	for _, rule := range rules {
		enabled := "Yes"
		if !rule.Enabled {
			enabled = "No"
		}

		id := rule.ID
		if len(id) > 27 {
			id = id[:24] + "..."
		}
		name := rule.Name
		if len(name) > 30 {
			name = name[:27] + "..."
		}

		fmt.Printf("%-28s %-24s %-6.2f %-8s %-10d %s\n",
			id, rule.Conclusion, rule.CF, enabled, len(rule.Conditions), name)
	}

	fmt.Println(strings.Repeat("=", 110))
	fmt.Printf("%d rules\n", len(rules))
}

// renderRuleDetails displays detailed rule information
func renderRuleDetails(rule *core.Rule) {
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	headerColor.Printf("  Rule: %s\n", rule.ID)
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	printSection("Definition")
	printField("ID", rule.ID)
	printField("Name", rule.Name)
	printField("Conclusion", rule.Conclusion)
	printField("CF", fmt.Sprintf("%.2f", rule.CF))
	printField("Attack Type", rule.AttackType)
	printField("Enabled", formatBool(rule.Enabled))
	fmt.Println()

	printSection("Conditions")
	for _, cond := range rule.Conditions {
		fmt.Printf("    - %s (%s)\n", cond, core.DescribeFact(cond))
	}
	fmt.Println()

	printSection("Timestamps")
	printField("Created At", formatTime(rule.CreatedAt))
	printField("Updated At", formatTime(rule.UpdatedAt))
	fmt.Println()
}

// renderFacts displays an extracted fact set
func renderFacts(facts core.FactSet) {
	sorted := facts.Sorted()
	if len(sorted) == 0 {
		warningColor.Println("No facts extracted")
		return
	}

	headerColor.Printf("EXTRACTED FACTS (%d)\n", len(sorted))
	headerColor.Println(strings.Repeat("=", 80))
	for _, fact := range sorted {
		fmt.Printf("  %-36s %s\n", fact, core.DescribeFact(fact))
	}
	fmt.Println(strings.Repeat("=", 80))
}

// renderIncident displays an analysis result
func renderIncident(incident *core.Incident, showTrace bool) {
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	headerColor.Printf("  Incident: %s\n", incident.IncidentID)
	headerColor.Println("═══════════════════════════════════════════════════════════════")
	fmt.Println()

	printSection("Result")
	if incident.TopConclusion == "" {
		warningColor.Println("    No conclusion reached")
	} else {
		printField("Top Conclusion", incident.TopConclusion)
		printField("Confidence", formatCF(incident.Confidence))
	}
	printField("Alert ID", incident.AlertID)
	printField("Created At", formatTime(incident.CreatedAt))
	fmt.Println()

	if len(incident.Conclusions) > 0 {
		printSection("Ranked Conclusions")
		for i, rc := range incident.Conclusions {
			fmt.Printf("    %d. %-28s %s\n", i+1, rc.Conclusion, formatCF(rc.CF))
		}
		fmt.Println()
	}

	printSection("Facts")
	for _, fact := range incident.Facts {
		fmt.Printf("    - %s\n", fact)
	}
	fmt.Println()

	printSection("Explanation")
	fmt.Printf("    %s\n", incident.Explanation)
	fmt.Println()

	if showTrace && incident.Trace != nil {
		renderTrace(incident.Trace)
	}
}

// renderTrace displays fired and skipped rules from an inference run
func renderTrace(trace *core.Trace) {
	printSection(fmt.Sprintf("Fired Rules (%d)", len(trace.FiredRules)))
	for _, fr := range trace.FiredRules {
		successColor.Printf("    ✓ %s", fr.RuleID)
		fmt.Printf("  %s (cf %.2f)  [%s]\n",
			fr.Conclusion, fr.CF, strings.Join(fr.MatchedConditions, ", "))
	}
	fmt.Println()

	printSection(fmt.Sprintf("Skipped Rules (%d)", len(trace.SkippedRules)))
	for _, sr := range trace.SkippedRules {
		errorColor.Printf("    ✗ %s", sr.RuleID)
		fmt.Printf("  missing: %s\n", strings.Join(sr.MissingConditions, ", "))
	}
	fmt.Println()
}

// renderExplanation displays a why/why-not answer
func renderExplanation(explanation *infer.Explanation) {
	switch explanation.Type {
	case infer.ExplanationWhy:
		headerColor.Printf("WHY %q\n", explanation.Conclusion)
	default:
		headerColor.Printf("WHY NOT %q\n", explanation.Conclusion)
	}
	headerColor.Println(strings.Repeat("=", 80))
	fmt.Printf("  %s\n\n", explanation.Summary)

	if len(explanation.SupportingRules) > 0 {
		printSection("Supporting Rules")
		for _, rc := range explanation.SupportingRules {
			fmt.Printf("    - %s (cf %.2f): %s\n",
				rc.RuleID, rc.CF, strings.Join(rc.MatchedConditions, ", "))
		}
		fmt.Println()
	}

	if len(explanation.Steps) > 0 {
		printSection("Certainty Combination")
		for _, step := range explanation.Steps {
			fmt.Printf("    step %d: %s\n", step.Step, step.Explanation)
		}
		fmt.Println()
	}

	if len(explanation.CandidateRules) > 0 {
		printSection("Candidate Rules")
		for _, sr := range explanation.CandidateRules {
			fmt.Printf("    - %s  missing: %s\n",
				sr.RuleID, strings.Join(sr.MissingConditions, ", "))
		}
		fmt.Println()
	}

	if len(explanation.MissingFacts) > 0 {
		printSection("Missing Facts")
		for _, fact := range explanation.MissingFacts {
			fmt.Printf("    - %s\n", fact)
		}
		fmt.Println()
	}
}

// printSection prints a section header
func printSection(title string) {
	headerColor.Printf("  %s\n", title)
	headerColor.Println("  " + strings.Repeat("─", len([]rune(title))))
}

// printField prints a key-value field
func printField(key, value string) {
	if value == "" {
		value = "(not set)"
	}
	fmt.Printf("  %-25s %s\n", key+":", value)
}

// formatBool renders a boolean as Yes/No
func formatBool(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}

// formatCF renders a certainty factor as a colored percentage. Green above
// 0.8, yellow above 0.5, red otherwise.
func formatCF(cf float64) string {
	text := fmt.Sprintf("%.1f%%", cf*100)
	switch {
	case cf >= 0.8:
		return color.New(color.FgGreen).Sprint(text)
	case cf >= 0.5:
		return color.New(color.FgYellow).Sprint(text)
	default:
		return color.New(color.FgRed).Sprint(text)
	}
}
