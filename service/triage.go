// Package service provides the business logic layer between the HTTP
// handlers and storage: the triage pipeline (extract facts, run inference,
// persist the incident) and explain queries over stored traces.
package service

import (
	"fmt"
	"time"

	"argus/core"
	"argus/extract"
	"argus/infer"
	"argus/metrics"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"
)

// traceCacheSize bounds the in-memory trace cache for explain queries.
// Traces are re-read from storage on miss, so eviction only costs a query.
const traceCacheSize = 256

// RuleSource supplies the active rule base for an inference run. Defined
// here (consumer package) following Interface Segregation Principle.
type RuleSource interface {
	GetEnabledRules() ([]*core.Rule, error)
}

// AlertStore defines the alert storage operations the service needs.
type AlertStore interface {
	InsertAlert(alert *core.Alert) error
	GetAlert(alertID string) (*core.Alert, error)
	UpdateAlertStatus(alertID, status string) error
}

// IncidentStore defines the incident storage operations the service needs.
type IncidentStore interface {
	InsertIncident(incident *core.Incident) error
	GetIncident(incidentID string) (*core.Incident, error)
}

// IncidentNotifier receives each newly created incident, e.g. for broadcast
// to live WebSocket subscribers. May be nil.
type IncidentNotifier interface {
	NotifyIncident(incident *core.Incident)
}

// TriageService runs the analysis pipeline for one alert at a time. It has
// no mutable state beyond the trace cache, so concurrent Analyze calls are
// safe.
type TriageService struct {
	rules      RuleSource
	alerts     AlertStore
	incidents  IncidentStore
	notifier   IncidentNotifier
	traceCache *lru.Cache[string, *core.Trace]
	logger     *zap.SugaredLogger
}

// NewTriageService creates a TriageService. notifier may be nil.
func NewTriageService(rules RuleSource, alerts AlertStore, incidents IncidentStore, notifier IncidentNotifier, logger *zap.SugaredLogger) (*TriageService, error) {
	cache, err := lru.New[string, *core.Trace](traceCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create trace cache: %w", err)
	}
	return &TriageService{
		rules:      rules,
		alerts:     alerts,
		incidents:  incidents,
		notifier:   notifier,
		traceCache: cache,
		logger:     logger,
	}, nil
}

// Analyze persists the alert, derives its fact set, evaluates the active
// rule base and stores the resulting incident with its full trace. The
// alert is marked processed on success.
//
// The rule base is loaded fresh per call; rules changed between calls take
// effect immediately and two calls with identical inputs yield identical
// conclusion CFs.
func (ts *TriageService) Analyze(alert *core.Alert) (*core.Incident, error) {
	start := time.Now()

	if err := ts.alerts.InsertAlert(alert); err != nil {
		return nil, fmt.Errorf("failed to store alert: %w", err)
	}

	facts := extract.Facts(alert)
	metrics.FactsExtracted.Observe(float64(len(facts)))

	rules, err := ts.rules.GetEnabledRules()
	if err != nil {
		// Rule-source failure is an infrastructure error, retryable by the
		// caller; it is not an engine condition.
		return nil, fmt.Errorf("failed to load rule base: %w", err)
	}

	conclusions, trace := infer.Infer(facts, rules)
	metrics.RulesFired.Add(float64(len(trace.FiredRules)))
	metrics.RulesSkipped.Add(float64(len(trace.SkippedRules)))

	incident := core.NewIncident(alert.AlertID, facts, conclusions, trace)
	incident.Explanation = ts.generateExplanation(incident, trace)

	if err := ts.incidents.InsertIncident(incident); err != nil {
		return nil, fmt.Errorf("failed to store incident: %w", err)
	}
	ts.traceCache.Add(incident.IncidentID, trace)

	if err := ts.alerts.UpdateAlertStatus(alert.AlertID, core.AlertStatusProcessed); err != nil {
		ts.logger.Warnw("Failed to mark alert processed", "alert_id", alert.AlertID, "error", err)
	}

	metrics.AlertsAnalyzed.WithLabelValues(alert.Severity).Inc()
	if incident.TopConclusion != "" {
		metrics.IncidentsCreated.WithLabelValues(incident.TopConclusion).Inc()
	} else {
		metrics.IncidentsCreated.WithLabelValues("none").Inc()
	}
	metrics.InferenceDuration.Observe(time.Since(start).Seconds())

	ts.logger.Infow("Alert analyzed",
		"alert_id", alert.AlertID,
		"incident_id", incident.IncidentID,
		"facts", len(facts),
		"fired", len(trace.FiredRules),
		"skipped", len(trace.SkippedRules),
		"top_conclusion", incident.TopConclusion,
		"confidence", incident.Confidence)

	if ts.notifier != nil {
		ts.notifier.NotifyIncident(incident)
	}

	return incident, nil
}

// ExplainIncident answers a why/why-not query for a stored incident without
// re-running inference. Traces are served from the LRU cache when possible.
func (ts *TriageService) ExplainIncident(incidentID, conclusionID string) (*infer.Explanation, error) {
	trace, err := ts.loadTrace(incidentID)
	if err != nil {
		return nil, err
	}
	return infer.Explain(conclusionID, trace), nil
}

func (ts *TriageService) loadTrace(incidentID string) (*core.Trace, error) {
	if trace, ok := ts.traceCache.Get(incidentID); ok {
		metrics.ExplainCacheHits.Inc()
		return trace, nil
	}
	metrics.ExplainCacheMisses.Inc()

	incident, err := ts.incidents.GetIncident(incidentID)
	if err != nil {
		return nil, err
	}
	ts.traceCache.Add(incidentID, incident.Trace)
	return incident.Trace, nil
}

// generateExplanation produces the stored one-paragraph summary for an
// incident: the why-summary of the top conclusion, or an explicit
// no-conclusion statement.
func (ts *TriageService) generateExplanation(incident *core.Incident, trace *core.Trace) string {
	if incident.TopConclusion == "" {
		return fmt.Sprintf("No conclusion reached: none of the %d evaluated rules had all conditions satisfied.",
			len(trace.FiredRules)+len(trace.SkippedRules))
	}
	return infer.Explain(incident.TopConclusion, trace).Summary
}
