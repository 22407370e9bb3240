package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	"argus/config"
	"argus/core"
	"argus/extract"
	"argus/infer"
	"argus/service"
	"argus/storage"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

// alertSpec is the JSON representation of an alert accepted on the command
// line. Everything except observations is optional; missing fields fall back
// to the defaults NewAlert applies.
type alertSpec struct {
	AlertID       string                 `json:"alert_id,omitempty"`
	Timestamp     *time.Time             `json:"timestamp,omitempty"`
	SourceIP      string                 `json:"source_ip,omitempty"`
	DestinationIP string                 `json:"destination_ip,omitempty"`
	AlertType     string                 `json:"alert_type,omitempty"`
	Severity      string                 `json:"severity,omitempty"`
	Observations  map[string]interface{} `json:"observations,omitempty"`
}

func (spec *alertSpec) toAlert() *core.Alert {
	alert := core.NewAlert()
	if spec.AlertID != "" {
		alert.AlertID = spec.AlertID
	}
	if spec.Timestamp != nil {
		alert.Timestamp = spec.Timestamp.UTC()
	}
	alert.SourceIP = spec.SourceIP
	alert.DestinationIP = spec.DestinationIP
	if spec.AlertType != "" {
		alert.AlertType = spec.AlertType
	}
	if spec.Severity != "" {
		alert.Severity = spec.Severity
	}
	if spec.Observations != nil {
		alert.Observations = spec.Observations
	}
	return alert
}

// NewAnalyzeCmd creates the 'analyze' command.
func NewAnalyzeCmd() *cobra.Command {
	var (
		factsOnly bool
		whyTarget string
		whyNot    string
		showTrace bool
	)

	cmd := &cobra.Command{
		Use:   "analyze <alert-file>",
		Short: "Analyze a security alert",
		Long: `Run one alert through the triage pipeline: extract facts, evaluate the
stored rule base, and print the resulting incident with ranked conclusions.

The alert file is a JSON document with alert_type, severity, source and
destination IPs, and an observations map. The alert and incident are
persisted to the configured database.`,
		Args: cobra.ExactArgs(1),
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				color.NoColor = true
			}
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := readImportFile(args[0])
			if err != nil {
				return err
			}

			var spec alertSpec
			if err := json.Unmarshal(data, &spec); err != nil {
				return fmt.Errorf("failed to parse alert JSON: %w", err)
			}
			alert := spec.toAlert()

			if factsOnly {
				facts := extract.Facts(alert)
				if outputJSON {
					return outputAsJSON(facts.Sorted())
				}
				renderFacts(facts)
				return nil
			}

			svc, cleanup, err := initTriageService()
			if err != nil {
				return err
			}
			defer cleanup()

			var s *spinner.Spinner
			if !quiet && !outputJSON {
				s = spinner.New(spinner.CharSets[14], 100*time.Millisecond)
				s.Suffix = " Analyzing alert..."
				s.Start()
			}

			incident, err := svc.Analyze(alert)

			if s != nil {
				s.Stop()
			}

			if err != nil {
				return fmt.Errorf("analysis failed: %w", err)
			}

			if whyTarget != "" || whyNot != "" {
				target := whyTarget
				if target == "" {
					target = whyNot
				}
				explanation := infer.Explain(target, incident.Trace)
				if outputJSON {
					return outputAsJSON(explanation)
				}
				renderIncident(incident, showTrace)
				fmt.Println()
				renderExplanation(explanation)
				return nil
			}

			if outputJSON {
				return outputAsJSON(incident)
			}

			renderIncident(incident, showTrace)
			return nil
		},
	}

	cmd.Flags().BoolVar(&outputJSON, "json", false, "Output in JSON format")
	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress non-essential output")
	cmd.Flags().BoolVar(&factsOnly, "facts-only", false, "Extract and print facts without running inference")
	cmd.Flags().StringVar(&whyTarget, "why", "", "Explain why the given conclusion was reached")
	cmd.Flags().StringVar(&whyNot, "why-not", "", "Explain why the given conclusion was not reached")
	cmd.Flags().BoolVar(&showTrace, "trace", false, "Include fired and skipped rules in the output")

	return cmd
}

// initTriageService wires storage and the triage service for one CLI run.
func initTriageService() (*service.TriageService, func(), error) {
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
	alertStorage := storage.NewSQLiteAlertStorage(sqlite, sugar)
	incidentStorage := storage.NewSQLiteIncidentStorage(sqlite, sugar)

	if cfg.Engine.SeedRuleBase {
		if _, err := storage.SeedRules(ruleStorage, sugar); err != nil {
			sqlite.Close()
			return nil, nil, fmt.Errorf("failed to seed rules: %w", err)
		}
	}

	svc, err := service.NewTriageService(ruleStorage, alertStorage, incidentStorage, nil, sugar)
	if err != nil {
		sqlite.Close()
		return nil, nil, fmt.Errorf("failed to create triage service: %w", err)
	}

	cleanup := func() {
		if err := sqlite.Close(); err != nil {
			sugar.Warnf("Failed to close SQLite connection during cleanup: %v", err)
		}
	}

	return svc, cleanup, nil
}
