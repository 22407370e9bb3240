package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"argus/config"
	"argus/core"
	"argus/infer"
	"argus/service"
	"argus/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type apiFixture struct {
	api   *API
	rules *storage.SQLiteRuleStorage
}

func setupAPI(t *testing.T) *apiFixture {
	t.Helper()
	logger := zap.NewNop().Sugar()

	sqlite, err := storage.NewSQLite(filepath.Join(t.TempDir(), "test.db"), logger)
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	ruleStorage := storage.NewSQLiteRuleStorage(sqlite, logger)
	alertStorage := storage.NewSQLiteAlertStorage(sqlite, logger)
	incidentStorage := storage.NewSQLiteIncidentStorage(sqlite, logger)

	_, err = storage.SeedRules(ruleStorage, logger)
	require.NoError(t, err)

	svc, err := service.NewTriageService(ruleStorage, alertStorage, incidentStorage, nil, logger)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.API.Host = "127.0.0.1"
	cfg.API.Port = 0
	cfg.API.RateLimit.RequestsPerSecond = 1000
	cfg.API.RateLimit.Burst = 1000

	return &apiFixture{
		api:   NewAPI(svc, alertStorage, incidentStorage, ruleStorage, nil, cfg, logger),
		rules: ruleStorage,
	}
}

func (f *apiFixture) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	f.api.Router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v))
}

// TestHealthEndpoint tests the liveness probe
func TestHealthEndpoint(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	var body map[string]string
	decodeBody(t, rec, &body)
	assert.Equal(t, "ok", body["status"])
}

// TestSubmitAlert tests the full analyze round trip over HTTP
func TestSubmitAlert(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"source_ip":      "203.0.113.50",
		"destination_ip": "10.0.0.22",
		"alert_type":     "authentication",
		"severity":       "high",
		"observations": map[string]interface{}{
			"failed_attempts": 15,
			"time_window":     120,
			"target_service":  "ssh",
			"target_username": "root",
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var incident core.Incident
	decodeBody(t, rec, &incident)
	assert.Equal(t, "brute_force_attack", incident.TopConclusion)
	assert.Greater(t, incident.Confidence, 0.9)
	assert.NotEmpty(t, incident.IncidentID)
	assert.NotEmpty(t, incident.Explanation)
}

// TestSubmitAlert_InvalidSeverity tests payload validation
func TestSubmitAlert_InvalidSeverity(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"severity": "catastrophic",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestSubmitAlert_MalformedIPAccepted tests that a bad IP is valid input.
// The extractor classifies it as external rather than rejecting the alert.
func TestSubmitAlert_MalformedIPAccepted(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"source_ip": "not-an-ip",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var incident core.Incident
	decodeBody(t, rec, &incident)
	assert.Contains(t, incident.Facts, "external_source")
}

// TestSubmitAlert_BadObservationType tests the observations schema
func TestSubmitAlert_BadObservationType(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"observations": map[string]interface{}{
			"failed_attempts": "lots",
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestSubmitAlert_UnknownObservationKeysAllowed tests the open vocabulary
func TestSubmitAlert_UnknownObservationKeysAllowed(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"observations": map[string]interface{}{
			"custom_sensor_reading": 42,
		},
	})
	assert.Equal(t, http.StatusCreated, rec.Code)
}

// TestSubmitAlert_InvalidJSON tests malformed bodies
func TestSubmitAlert_InvalidJSON(t *testing.T) {
	f := setupAPI(t)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/alerts", bytes.NewReader([]byte("{broken")))
	rec := httptest.NewRecorder()
	f.api.Router().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestAlertLifecycle tests list, get and status update endpoints
func TestAlertLifecycle(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{"severity": "low"})
	require.Equal(t, http.StatusCreated, rec.Code)
	var incident core.Incident
	decodeBody(t, rec, &incident)

	rec = f.do(t, http.MethodGet, "/api/v1/alerts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var alerts []*core.Alert
	decodeBody(t, rec, &alerts)
	require.Len(t, alerts, 1)
	assert.Equal(t, core.AlertStatusProcessed, alerts[0].Status)

	rec = f.do(t, http.MethodGet, "/api/v1/alerts/"+incident.AlertID, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPut, "/api/v1/alerts/"+incident.AlertID+"/status",
		map[string]string{"status": "ignored"})
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/alerts?status=ignored", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	decodeBody(t, rec, &alerts)
	assert.Len(t, alerts, 1)

	rec = f.do(t, http.MethodGet, "/api/v1/alerts?status=bogus", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/alerts/does-not-exist", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestIncidentEndpoints tests incident retrieval and explanation
func TestIncidentEndpoints(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/alerts", map[string]interface{}{
		"severity": "high",
		"observations": map[string]interface{}{
			"failed_attempts": 15,
			"time_window":     120,
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	var created core.Incident
	decodeBody(t, rec, &created)

	rec = f.do(t, http.MethodGet, "/api/v1/incidents", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var incidents []*core.Incident
	decodeBody(t, rec, &incidents)
	require.Len(t, incidents, 1)
	assert.Nil(t, incidents[0].Trace, "Listings omit traces")

	rec = f.do(t, http.MethodGet, "/api/v1/incidents/"+created.IncidentID, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var full core.Incident
	decodeBody(t, rec, &full)
	assert.NotNil(t, full.Trace)

	rec = f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/incidents/%s/explain/%s", created.IncidentID, created.TopConclusion), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var why infer.Explanation
	decodeBody(t, rec, &why)
	assert.Equal(t, infer.ExplanationWhy, why.Type)
	assert.Equal(t, created.Confidence, why.FinalCF)

	rec = f.do(t, http.MethodGet,
		fmt.Sprintf("/api/v1/incidents/%s/explain/ddos_attack", created.IncidentID), nil)
	require.Equal(t, http.StatusOK, rec.Code, "An unreached conclusion is a valid why-not query")
	var whyNot infer.Explanation
	decodeBody(t, rec, &whyNot)
	assert.Equal(t, infer.ExplanationWhyNot, whyNot.Type)

	rec = f.do(t, http.MethodGet, "/api/v1/incidents/missing/explain/x", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/incidents/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestRuleEndpoints tests the rule CRUD surface
func TestRuleEndpoints(t *testing.T) {
	f := setupAPI(t)

	payload := map[string]interface{}{
		"id":         "custom-rule",
		"name":       "Custom Rule",
		"conditions": []string{"high_failed_attempts", "admin_target"},
		"conclusion": "brute_force_attack",
		"cf":         0.85,
	}

	rec := f.do(t, http.MethodPost, "/api/v1/rules", payload)
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	rec = f.do(t, http.MethodPost, "/api/v1/rules", payload)
	assert.Equal(t, http.StatusConflict, rec.Code, "Duplicate IDs conflict")

	rec = f.do(t, http.MethodGet, "/api/v1/rules/custom-rule", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rule core.Rule
	decodeBody(t, rec, &rule)
	assert.Equal(t, 0.85, rule.CF)

	payload["cf"] = 0.95
	rec = f.do(t, http.MethodPut, "/api/v1/rules/custom-rule", payload)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/rules/custom-rule/disable", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	got, err := f.rules.GetRule("custom-rule")
	require.NoError(t, err)
	assert.False(t, got.Enabled)

	rec = f.do(t, http.MethodPost, "/api/v1/rules/custom-rule/enable", nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/rules/custom-rule", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = f.do(t, http.MethodDelete, "/api/v1/rules/custom-rule", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// TestCreateRule_AdaptationDefaults tests null cf and missing conclusion
func TestCreateRule_AdaptationDefaults(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"id":         "partial-rule",
		"name":       "Partial Rule",
		"conditions": []string{"fact_a"},
	})
	require.Equal(t, http.StatusCreated, rec.Code, "body: %s", rec.Body.String())

	var rule core.Rule
	decodeBody(t, rec, &rule)
	assert.Equal(t, core.DefaultCF, rule.CF, "Absent cf defaults to 0.5")
	assert.Equal(t, core.UnknownConclusion, rule.Conclusion, "Absent conclusion becomes unknown")
}

// TestCreateRule_Invalid tests CF bounds and empty conditions
func TestCreateRule_Invalid(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"id":         "bad-cf",
		"name":       "Bad CF",
		"conditions": []string{"fact_a"},
		"cf":         1.5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodPost, "/api/v1/rules", map[string]interface{}{
		"id":         "no-conds",
		"name":       "No Conditions",
		"conditions": []string{},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

// TestListFacts tests the fact vocabulary endpoint
func TestListFacts(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/v1/facts", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var facts map[string]string
	decodeBody(t, rec, &facts)
	assert.Contains(t, facts, "high_failed_attempts")
	assert.Contains(t, facts, "ssh_brute_force_pattern")
}

// TestStream_Disabled tests the stream endpoint without a hub
func TestStream_Disabled(t *testing.T) {
	f := setupAPI(t)

	rec := f.do(t, http.MethodGet, "/api/v1/stream", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
