package service

import (
	"path/filepath"
	"testing"

	"argus/core"
	"argus/infer"
	"argus/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type triageFixture struct {
	svc       *TriageService
	rules     *storage.SQLiteRuleStorage
	alerts    *storage.SQLiteAlertStorage
	incidents *storage.SQLiteIncidentStorage
	notifier  *recordingNotifier
}

type recordingNotifier struct {
	incidents []*core.Incident
}

func (rn *recordingNotifier) NotifyIncident(incident *core.Incident) {
	rn.incidents = append(rn.incidents, incident)
}

func setupTriage(t *testing.T) *triageFixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	sqlite, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	f := &triageFixture{
		rules:     storage.NewSQLiteRuleStorage(sqlite, logger),
		alerts:    storage.NewSQLiteAlertStorage(sqlite, logger),
		incidents: storage.NewSQLiteIncidentStorage(sqlite, logger),
		notifier:  &recordingNotifier{},
	}

	_, err = storage.SeedRules(f.rules, logger)
	require.NoError(t, err)

	f.svc, err = NewTriageService(f.rules, f.alerts, f.incidents, f.notifier, logger)
	require.NoError(t, err)
	return f
}

func bruteForceAlert() *core.Alert {
	alert := core.NewAlert()
	alert.Severity = "high"
	alert.SourceIP = "203.0.113.50"
	alert.DestinationIP = "10.0.0.22"
	alert.Observations = map[string]interface{}{
		"failed_attempts": float64(15),
		"time_window":     float64(120),
		"target_service":  "ssh",
		"target_username": "root",
	}
	return alert
}

// TestAnalyze_BruteForceScenario tests the full pipeline end to end
func TestAnalyze_BruteForceScenario(t *testing.T) {
	f := setupTriage(t)

	incident, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)
	require.NotNil(t, incident)

	assert.Equal(t, "brute_force_attack", incident.TopConclusion)
	assert.Greater(t, incident.Confidence, 0.9, "Multiple brute force rules should accumulate high certainty")
	assert.NotEmpty(t, incident.Explanation)
	assert.Contains(t, incident.Facts, "ssh_brute_force_pattern")
	require.NotNil(t, incident.Trace)
	assert.NotEmpty(t, incident.Trace.FiredRules)
}

// TestAnalyze_PersistsEverything tests storage side effects
func TestAnalyze_PersistsEverything(t *testing.T) {
	f := setupTriage(t)

	alert := bruteForceAlert()
	incident, err := f.svc.Analyze(alert)
	require.NoError(t, err)

	storedAlert, err := f.alerts.GetAlert(alert.AlertID)
	require.NoError(t, err)
	assert.Equal(t, core.AlertStatusProcessed, storedAlert.Status, "Alert must be marked processed")

	storedIncident, err := f.incidents.GetIncident(incident.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, incident.TopConclusion, storedIncident.TopConclusion)
	assert.Equal(t, incident.Conclusions, storedIncident.Conclusions)
	require.NotNil(t, storedIncident.Trace)
	assert.Equal(t, incident.Trace.Conclusions, storedIncident.Trace.Conclusions)

	require.Len(t, f.notifier.incidents, 1, "Notifier must receive the incident")
	assert.Equal(t, incident.IncidentID, f.notifier.incidents[0].IncidentID)
}

// TestAnalyze_QuietAlert tests an alert that fires nothing
func TestAnalyze_QuietAlert(t *testing.T) {
	f := setupTriage(t)

	incident, err := f.svc.Analyze(core.NewAlert())
	require.NoError(t, err)

	assert.Empty(t, incident.TopConclusion)
	assert.Zero(t, incident.Confidence)
	assert.Empty(t, incident.Conclusions)
	assert.Contains(t, incident.Explanation, "No conclusion reached")
	assert.Empty(t, incident.Trace.FiredRules)
	assert.NotEmpty(t, incident.Trace.SkippedRules, "Every rule should be recorded as skipped")
}

// TestAnalyze_Deterministic tests identical conclusions for identical alerts
func TestAnalyze_Deterministic(t *testing.T) {
	f := setupTriage(t)

	first, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)
	second, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)

	assert.Equal(t, first.Conclusions, second.Conclusions)
	assert.Equal(t, first.Confidence, second.Confidence)
	assert.NotEqual(t, first.IncidentID, second.IncidentID)
}

// TestAnalyze_RuleChangesTakeEffect tests per-call rule base loading
func TestAnalyze_RuleChangesTakeEffect(t *testing.T) {
	f := setupTriage(t)

	before, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)
	require.Equal(t, "brute_force_attack", before.TopConclusion)

	// Disable every brute force rule
	rules, err := f.rules.GetRules()
	require.NoError(t, err)
	for _, rule := range rules {
		if rule.Conclusion == "brute_force_attack" {
			require.NoError(t, f.rules.SetRuleEnabled(rule.ID, false))
		}
	}

	after, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)
	assert.NotEqual(t, "brute_force_attack", after.TopConclusion,
		"Disabled rules must not participate in the next run")
}

// TestExplainIncident_Why tests re-explanation of a stored incident
func TestExplainIncident_Why(t *testing.T) {
	f := setupTriage(t)

	incident, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)

	explanation, err := f.svc.ExplainIncident(incident.IncidentID, incident.TopConclusion)
	require.NoError(t, err)
	assert.Equal(t, infer.ExplanationWhy, explanation.Type)
	assert.Equal(t, incident.Confidence, explanation.FinalCF,
		"Re-explanation reports the stored CF, never a recomputed one")
	assert.NotEmpty(t, explanation.SupportingRules)
	assert.NotEmpty(t, explanation.Steps)
}

// TestExplainIncident_WhyNot tests a why-not query over a stored trace
func TestExplainIncident_WhyNot(t *testing.T) {
	f := setupTriage(t)

	incident, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)

	explanation, err := f.svc.ExplainIncident(incident.IncidentID, "ddos_attack")
	require.NoError(t, err)
	assert.Equal(t, infer.ExplanationWhyNot, explanation.Type)
	assert.NotEmpty(t, explanation.CandidateRules)
	assert.NotEmpty(t, explanation.MissingFacts)
}

// TestExplainIncident_CacheMiss tests explain after the cache is gone
func TestExplainIncident_CacheMiss(t *testing.T) {
	f := setupTriage(t)

	incident, err := f.svc.Analyze(bruteForceAlert())
	require.NoError(t, err)

	// A fresh service instance has a cold cache, forcing a storage read
	fresh, err := NewTriageService(f.rules, f.alerts, f.incidents, nil, zap.NewNop().Sugar())
	require.NoError(t, err)

	explanation, err := fresh.ExplainIncident(incident.IncidentID, incident.TopConclusion)
	require.NoError(t, err)
	assert.Equal(t, infer.ExplanationWhy, explanation.Type)
	assert.Equal(t, incident.Confidence, explanation.FinalCF)
}

// TestExplainIncident_NotFound tests the missing incident case
func TestExplainIncident_NotFound(t *testing.T) {
	f := setupTriage(t)

	_, err := f.svc.ExplainIncident("missing", "brute_force_attack")
	assert.ErrorIs(t, err, storage.ErrIncidentNotFound)
}
