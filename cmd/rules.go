// Package cmd provides command-line interface commands for Argus.
package cmd

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"argus/config"
	"argus/core"
	"argus/storage"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// CLI output formatters
var (
	successColor = color.New(color.FgGreen, color.Bold)
	errorColor   = color.New(color.FgRed, color.Bold)
	warningColor = color.New(color.FgYellow)
	infoColor    = color.New(color.FgCyan)
	headerColor  = color.New(color.FgBlue, color.Bold)
)

// Global flags shared by all commands
var (
	outputJSON bool
	noColor    bool
	quiet      bool
)

// Security constants
const (
	maxImportFileSize = 10 * 1024 * 1024 // 10MB - protection against memory exhaustion
)

// validateFilePath validates a file path to prevent path traversal attacks.
// URL-decodes first so encoded ".." sequences cannot bypass the check, then
// verifies the cleaned absolute path stays inside the working directory.
func validateFilePath(filename string) error {
	decoded, err := url.QueryUnescape(filename)
	if err != nil {
		decoded = filename
	}

	if strings.Contains(decoded, "..") || strings.Contains(filename, "..") {
		return fmt.Errorf("path traversal detected: '..' not allowed in file path")
	}

	cleanPath := filepath.Clean(decoded)

	absPath, err := filepath.Abs(cleanPath)
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("failed to get working directory: %w", err)
	}

	if !strings.HasPrefix(absPath, workDir) {
		return fmt.Errorf("path escapes current directory")
	}

	return nil
}

// readImportFile validates, size-checks and reads an import file.
func readImportFile(filename string) ([]byte, error) {
	if err := validateFilePath(filename); err != nil {
		return nil, fmt.Errorf("invalid file path: %w", err)
	}

	fileInfo, err := os.Stat(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}
	if fileInfo.Size() > maxImportFileSize {
		return nil, fmt.Errorf("file too large: maximum size is %d bytes (%d MB), got %d bytes",
			maxImportFileSize, maxImportFileSize/(1024*1024), fileInfo.Size())
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// NewRulesCmd creates the root rules command with all subcommands.
func NewRulesCmd() *cobra.Command {
	rulesCmd := &cobra.Command{
		Use:   "rules",
		Short: "Manage triage rules",
		Long: `Manage the certainty-factor rule base used for alert triage.

Rules pair a set of fact conditions with a conclusion and a certainty factor.
Every enabled rule participates in inference; disabled rules are kept in
storage but skipped at analysis time.`,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
	}

	rulesCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	rulesCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rulesCmd.PersistentFlags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")

	rulesCmd.AddCommand(newRulesListCmd())
	rulesCmd.AddCommand(newRulesShowCmd())
	rulesCmd.AddCommand(newRulesAddCmd())
	rulesCmd.AddCommand(newRulesDeleteCmd())
	rulesCmd.AddCommand(newRulesEnableCmd())
	rulesCmd.AddCommand(newRulesDisableCmd())
	rulesCmd.AddCommand(newRulesImportCmd())
	rulesCmd.AddCommand(newRulesExportCmd())
	rulesCmd.AddCommand(newRulesSeedCmd())

	return rulesCmd
}

// newRulesListCmd creates the 'list' subcommand
func newRulesListCmd() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List all rules",
		Long:    "Display a table of all stored rules with their conditions, conclusions and certainty factors.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			var rules []*core.Rule
			if enabledOnly {
				rules, err = rs.GetEnabledRules()
			} else {
				rules, err = rs.GetRules()
			}
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			if outputJSON {
				return outputAsJSON(rules)
			}

			renderRulesTable(rules)
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled", false, "Show only enabled rules")

	return cmd
}

// newRulesShowCmd creates the 'show' subcommand
func newRulesShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <rule-id>",
		Short: "Show detailed rule information",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			rule, err := rs.GetRule(args[0])
			if err != nil {
				return fmt.Errorf("failed to get rule: %w", err)
			}

			if outputJSON {
				return outputAsJSON(rule)
			}

			renderRuleDetails(rule)
			return nil
		},
	}
}

// newRulesAddCmd creates the 'add' subcommand
func newRulesAddCmd() *cobra.Command {
	var (
		id         string
		name       string
		conditions []string
		conclusion string
		cf         float64
		attackType string
		disabled   bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a new rule",
		Long:  "Add a new triage rule to the rule base.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			if id == "" {
				return fmt.Errorf("rule id is required (use --id)")
			}
			if len(conditions) == 0 {
				return fmt.Errorf("at least one condition is required (use --condition)")
			}

			conds := make([]core.Fact, len(conditions))
			for i, c := range conditions {
				conds[i] = core.Fact(c)
			}

			rule, err := core.NewRule(id, conds, conclusion, cf, name)
			if err != nil {
				return fmt.Errorf("invalid rule: %w", err)
			}
			rule.AttackType = attackType
			rule.Enabled = !disabled

			if err := rs.CreateRule(rule); err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Rule created: %s\n", rule.ID)
			}

			if outputJSON {
				return outputAsJSON(rule)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&id, "id", "", "Rule identifier")
	cmd.Flags().StringVar(&name, "name", "", "Human-readable rule name")
	cmd.Flags().StringArrayVar(&conditions, "condition", nil, "Fact condition (repeatable)")
	cmd.Flags().StringVar(&conclusion, "conclusion", "", "Conclusion asserted when the rule fires (empty becomes \"unknown\")")
	cmd.Flags().Float64Var(&cf, "cf", core.DefaultCF, "Certainty factor in [0, 1]")
	cmd.Flags().StringVar(&attackType, "attack-type", "", "Attack type category")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the rule disabled")

	return cmd
}

// newRulesDeleteCmd creates the 'delete' subcommand
func newRulesDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:     "delete <rule-id>",
		Aliases: []string{"rm"},
		Short:   "Delete a rule",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			if !force {
				warningColor.Printf("Delete rule %s? This cannot be undone. [y/N]: ", args[0])
				var answer string
				fmt.Scanln(&answer)
				if strings.ToLower(strings.TrimSpace(answer)) != "y" {
					infoColor.Println("Aborted")
					return nil
				}
			}

			if err := rs.DeleteRule(args[0]); err != nil {
				return fmt.Errorf("failed to delete rule: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Rule deleted: %s\n", args[0])
			}

			return nil
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

// newRulesEnableCmd creates the 'enable' subcommand
func newRulesEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <rule-id>",
		Short: "Enable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRuleEnabled(args[0], true)
		},
	}
}

// newRulesDisableCmd creates the 'disable' subcommand
func newRulesDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <rule-id>",
		Short: "Disable a rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setRuleEnabled(args[0], false)
		},
	}
}

func setRuleEnabled(id string, enabled bool) error {
	rs, cleanup, err := initRuleStorage()
	if err != nil {
		return err
	}
	defer cleanup()

	if err := rs.SetRuleEnabled(id, enabled); err != nil {
		return fmt.Errorf("failed to update rule: %w", err)
	}

	if !quiet {
		state := "enabled"
		if !enabled {
			state = "disabled"
		}
		successColor.Printf("✓ Rule %s: %s\n", state, id)
	}
	return nil
}

// ruleSpec is the YAML import/export representation of a rule. CF and
// Conclusion are pointers so absent fields are distinguishable from zero
// values; absent CF defaults to 0.5 and absent conclusion to "unknown".
type ruleSpec struct {
	ID         string   `yaml:"id" json:"id"`
	Name       string   `yaml:"name,omitempty" json:"name,omitempty"`
	Conditions []string `yaml:"conditions" json:"conditions"`
	Conclusion *string  `yaml:"conclusion" json:"conclusion"`
	CF         *float64 `yaml:"cf" json:"cf"`
	AttackType string   `yaml:"attack_type,omitempty" json:"attack_type,omitempty"`
	Enabled    *bool    `yaml:"enabled,omitempty" json:"enabled,omitempty"`
}

// toRule applies the rule adaptation defaults and validates via core.NewRule.
func (spec *ruleSpec) toRule() (*core.Rule, error) {
	cf := core.DefaultCF
	if spec.CF != nil {
		cf = *spec.CF
	}
	conclusion := core.UnknownConclusion
	if spec.Conclusion != nil && *spec.Conclusion != "" {
		conclusion = *spec.Conclusion
	}

	conds := make([]core.Fact, len(spec.Conditions))
	for i, c := range spec.Conditions {
		conds[i] = core.Fact(c)
	}

	rule, err := core.NewRule(spec.ID, conds, conclusion, cf, spec.Name)
	if err != nil {
		return nil, err
	}
	rule.AttackType = spec.AttackType
	if spec.Enabled != nil {
		rule.Enabled = *spec.Enabled
	}
	return rule, nil
}

// newRulesImportCmd creates the 'import' subcommand
func newRulesImportCmd() *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import rules from YAML file",
		Long:  "Import rules from a YAML file. Rules with null CF default to 0.5; null conclusions become \"unknown\".",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			data, err := readImportFile(args[0])
			if err != nil {
				return err
			}

			var rulesConfig struct {
				Rules []ruleSpec `yaml:"rules"`
			}
			if err := yaml.Unmarshal(data, &rulesConfig); err != nil {
				return fmt.Errorf("failed to parse YAML: %w", err)
			}

			imported := 0
			failed := 0
			for _, spec := range rulesConfig.Rules {
				rule, err := spec.toRule()
				if err != nil {
					errorColor.Printf("✗ Invalid rule %s: %v\n", spec.ID, err)
					failed++
					continue
				}

				if replace {
					if err := rs.UpdateRule(rule.ID, rule); err == nil {
						if !quiet {
							successColor.Printf("✓ Updated rule: %s\n", rule.ID)
						}
						imported++
						continue
					}
				}

				if err := rs.CreateRule(rule); err != nil {
					errorColor.Printf("✗ Failed to import rule %s: %v\n", rule.ID, err)
					failed++
				} else {
					if !quiet {
						successColor.Printf("✓ Imported rule: %s\n", rule.ID)
					}
					imported++
				}
			}

			if !quiet {
				fmt.Printf("\nImported %d rules, %d failed\n", imported, failed)
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&replace, "replace", false, "Update rules that already exist")

	return cmd
}

// newRulesExportCmd creates the 'export' subcommand
func newRulesExportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "export [file]",
		Short: "Export rules to YAML file",
		Long:  "Export all rules to a YAML file. If no file is specified, output to stdout.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			rules, err := rs.GetRules()
			if err != nil {
				return fmt.Errorf("failed to list rules: %w", err)
			}

			specs := make([]ruleSpec, len(rules))
			for i, r := range rules {
				conds := make([]string, len(r.Conditions))
				for j, c := range r.Conditions {
					conds[j] = string(c)
				}
				conclusion := r.Conclusion
				cf := r.CF
				enabled := r.Enabled
				specs[i] = ruleSpec{
					ID:         r.ID,
					Name:       r.Name,
					Conditions: conds,
					Conclusion: &conclusion,
					CF:         &cf,
					AttackType: r.AttackType,
					Enabled:    &enabled,
				}
			}

			rulesConfig := struct {
				Rules []ruleSpec `yaml:"rules"`
			}{Rules: specs}

			out, err := yaml.Marshal(rulesConfig)
			if err != nil {
				return fmt.Errorf("failed to marshal rules: %w", err)
			}

			if len(args) == 0 {
				fmt.Print(string(out))
				return nil
			}

			filename := args[0]
			if err := validateFilePath(filename); err != nil {
				return fmt.Errorf("invalid file path: %w", err)
			}
			if err := os.WriteFile(filename, out, 0o600); err != nil {
				return fmt.Errorf("failed to write file: %w", err)
			}

			if !quiet {
				successColor.Printf("✓ Exported %d rules to %s\n", len(specs), filename)
			}

			return nil
		},
	}
}

// newRulesSeedCmd creates the 'seed' subcommand
func newRulesSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the built-in rule base",
		Long:  "Install the built-in starter rule base. Rules that already exist are left untouched.",
		RunE: func(cmd *cobra.Command, args []string) error {
			rs, cleanup, err := initRuleStorage()
			if err != nil {
				return err
			}
			defer cleanup()

			created, err := storage.SeedRules(rs, cliLogger())
			if err != nil {
				return fmt.Errorf("failed to seed rules: %w", err)
			}

			if !quiet {
				if created == 0 {
					infoColor.Println("Rule base already seeded, nothing to do")
				} else {
					successColor.Printf("✓ Seeded %d rules\n", created)
				}
			}

			return nil
		},
	}
}

// initRuleStorage opens the configured SQLite database and returns the rule
// storage plus a cleanup function.
func initRuleStorage() (*storage.SQLiteRuleStorage, func(), error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load config: %w", err)
	}

	sugar := cliLogger()

	sqlite, err := storage.NewSQLite(cfg.DataPaths.SQLitePath, sugar)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize SQLite: %w", err)
	}

	ruleStorage := storage.NewSQLiteRuleStorage(sqlite, sugar)

	cleanup := func() {
		if err := sqlite.Close(); err != nil {
			sugar.Warnf("Failed to close SQLite connection during cleanup: %v", err)
		}
	}

	return ruleStorage, cleanup, nil
}

// cliLogger builds a quiet logger for CLI use. Storage internals log at
// warn-and-above only so command output stays readable.
func cliLogger() *zap.SugaredLogger {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	cfg.OutputPaths = []string{"stderr"}
	logger, err := cfg.Build()
	if err != nil {
		return zap.NewNop().Sugar()
	}
	return logger.Sugar()
}

// outputAsJSON outputs data as JSON to stdout.
func outputAsJSON(data interface{}) error {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

// formatTime renders a timestamp for table output.
func formatTime(t time.Time) string {
	return t.Local().Format("2006-01-02 15:04:05")
}
