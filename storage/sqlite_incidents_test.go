package storage

import (
	"testing"

	"argus/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type incidentFixture struct {
	alerts    *SQLiteAlertStorage
	incidents *SQLiteIncidentStorage
}

func setupIncidentStorage(t *testing.T) *incidentFixture {
	t.Helper()
	sqlite := setupTestSQLite(t)
	return &incidentFixture{
		alerts:    NewSQLiteAlertStorage(sqlite, zap.NewNop().Sugar()),
		incidents: NewSQLiteIncidentStorage(sqlite, zap.NewNop().Sugar()),
	}
}

func (f *incidentFixture) storedAlert(t *testing.T) *core.Alert {
	t.Helper()
	alert := core.NewAlert()
	require.NoError(t, f.alerts.InsertAlert(alert))
	return alert
}

func sampleIncident(alertID string) *core.Incident {
	trace := core.NewTrace()
	trace.FiredRules = []core.FiredRule{
		{RuleID: "bf-high", MatchedConditions: []core.Fact{"high_failed_attempts"}, CF: 0.9, Conclusion: "brute_force_attack"},
	}
	trace.SkippedRules = []core.SkippedRule{
		{RuleID: "ddos-volumetric", MissingConditions: []core.Fact{"high_traffic_rate"}, Conclusion: "ddos_attack"},
	}
	trace.Conclusions["brute_force_attack"] = core.ConclusionRecord{
		Conclusion: "brute_force_attack",
		FinalCF:    0.9,
		SupportingRules: []core.RuleContribution{
			{RuleID: "bf-high", CF: 0.9, MatchedConditions: []core.Fact{"high_failed_attempts"}},
		},
		UsedFacts: []core.Fact{"high_failed_attempts"},
	}

	facts := core.NewFactSet("high_failed_attempts", "high_severity")
	incident := core.NewIncident(alertID, facts, map[string]float64{"brute_force_attack": 0.9}, trace)
	incident.Explanation = "Conclusion reached"
	return incident
}

// TestIncidentStorage_InsertAndGet tests the trace round trip
func TestIncidentStorage_InsertAndGet(t *testing.T) {
	f := setupIncidentStorage(t)
	alert := f.storedAlert(t)

	incident := sampleIncident(alert.AlertID)
	require.NoError(t, f.incidents.InsertIncident(incident))

	got, err := f.incidents.GetIncident(incident.IncidentID)
	require.NoError(t, err)
	assert.Equal(t, incident.IncidentID, got.IncidentID)
	assert.Equal(t, incident.AlertID, got.AlertID)
	assert.Equal(t, incident.TopConclusion, got.TopConclusion)
	assert.Equal(t, incident.Confidence, got.Confidence)
	assert.Equal(t, incident.Conclusions, got.Conclusions)
	assert.Equal(t, incident.Facts, got.Facts)
	assert.Equal(t, incident.Explanation, got.Explanation)

	require.NotNil(t, got.Trace, "GetIncident must return the stored trace")
	assert.Equal(t, incident.Trace.FiredRules, got.Trace.FiredRules)
	assert.Equal(t, incident.Trace.SkippedRules, got.Trace.SkippedRules)
	assert.Equal(t, incident.Trace.Conclusions, got.Trace.Conclusions)
}

// TestIncidentStorage_GetIncident_NotFound tests the sentinel error
func TestIncidentStorage_GetIncident_NotFound(t *testing.T) {
	f := setupIncidentStorage(t)

	_, err := f.incidents.GetIncident("missing")
	assert.ErrorIs(t, err, ErrIncidentNotFound)
}

// TestIncidentStorage_GetIncidents tests that listings omit traces
func TestIncidentStorage_GetIncidents(t *testing.T) {
	f := setupIncidentStorage(t)
	alert := f.storedAlert(t)

	require.NoError(t, f.incidents.InsertIncident(sampleIncident(alert.AlertID)))
	require.NoError(t, f.incidents.InsertIncident(sampleIncident(alert.AlertID)))

	incidents, err := f.incidents.GetIncidents(10)
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	for _, inc := range incidents {
		assert.Nil(t, inc.Trace, "Listings must not carry traces")
		assert.NotEmpty(t, inc.Conclusions)
	}

	limited, err := f.incidents.GetIncidents(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

// TestIncidentStorage_ForeignKey tests that incidents require a stored alert
func TestIncidentStorage_ForeignKey(t *testing.T) {
	f := setupIncidentStorage(t)

	err := f.incidents.InsertIncident(sampleIncident("no-such-alert"))
	assert.Error(t, err, "Incidents must reference an existing alert")
}

// TestIncidentStorage_CascadeDelete tests deletion cascade from alerts
func TestIncidentStorage_CascadeDelete(t *testing.T) {
	f := setupIncidentStorage(t)
	alert := f.storedAlert(t)

	incident := sampleIncident(alert.AlertID)
	require.NoError(t, f.incidents.InsertIncident(incident))

	_, err := f.incidents.sqlite.WriteDB.Exec(`DELETE FROM alerts WHERE alert_id = ?`, alert.AlertID)
	require.NoError(t, err)

	_, err = f.incidents.GetIncident(incident.IncidentID)
	assert.ErrorIs(t, err, ErrIncidentNotFound, "Deleting the alert must cascade to its incidents")
}

// TestIncidentStorage_NilTrace tests storing an incident without a trace
func TestIncidentStorage_NilTrace(t *testing.T) {
	f := setupIncidentStorage(t)
	alert := f.storedAlert(t)

	incident := sampleIncident(alert.AlertID)
	incident.Trace = nil
	require.NoError(t, f.incidents.InsertIncident(incident))

	got, err := f.incidents.GetIncident(incident.IncidentID)
	require.NoError(t, err)
	require.NotNil(t, got.Trace)
	assert.Empty(t, got.Trace.FiredRules)

	count, err := f.incidents.GetIncidentCount()
	require.NoError(t, err)
	assert.EqualValues(t, 1, count)
}
