package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"argus/core"
	"argus/storage"
	"argus/util"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
	maxBodyBytes     = 1 << 20 // 1MB request body cap
)

// writeJSON writes a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v interface{}, logger *zap.SugaredLogger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warnw("Failed to encode response", "error", err)
	}
}

// writeError writes a JSON error response. The internal error is logged,
// sanitized; only the public message reaches the client.
func writeError(w http.ResponseWriter, status int, message string, err error, logger *zap.SugaredLogger) {
	if err != nil {
		logger.Warnw("Request failed", "status", status, "message", message, "error", util.SanitizeError(err))
	}
	writeJSON(w, status, map[string]string{"error": message}, logger)
}

func listLimit(r *http.Request) int {
	limit := defaultListLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	return limit
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, a.logger)
}

// submitAlertRequest is the POST /api/v1/alerts payload. IPs are length
// bounded but not format-validated: a malformed IP is valid input to the
// extractor and simply classifies as external.
type submitAlertRequest struct {
	SourceIP      string                 `json:"source_ip" validate:"omitempty,max=45"`
	DestinationIP string                 `json:"destination_ip" validate:"omitempty,max=45"`
	AlertType     string                 `json:"alert_type" validate:"omitempty,max=64"`
	Severity      string                 `json:"severity" validate:"omitempty,oneof=low medium high critical"`
	Observations  map[string]interface{} `json:"observations"`
}

func (a *API) handleSubmitAlert(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req submitAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", err, a.logger)
		return
	}

	validate := validator.New()
	if err := validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid alert payload", err, a.logger)
		return
	}
	if err := ValidateObservations(req.Observations); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid observations: "+err.Error(), err, a.logger)
		return
	}

	alert := core.NewAlert()
	alert.SourceIP = req.SourceIP
	alert.DestinationIP = req.DestinationIP
	if req.AlertType != "" {
		alert.AlertType = req.AlertType
	}
	if req.Severity != "" {
		alert.Severity = req.Severity
	}
	if req.Observations != nil {
		alert.Observations = req.Observations
	}

	incident, err := a.triager.Analyze(alert)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "Alert could not be analyzed", err, a.logger)
		return
	}

	writeJSON(w, http.StatusCreated, incident, a.logger)
}

func (a *API) handleListAlerts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	switch status {
	case "", core.AlertStatusNew, core.AlertStatusProcessed, core.AlertStatusIgnored:
	default:
		writeError(w, http.StatusBadRequest, "Invalid status filter", nil, a.logger)
		return
	}

	alerts, err := a.alerts.GetAlerts(status, listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list alerts", err, a.logger)
		return
	}
	if alerts == nil {
		alerts = []*core.Alert{}
	}
	writeJSON(w, http.StatusOK, alerts, a.logger)
}

func (a *API) handleGetAlert(w http.ResponseWriter, r *http.Request) {
	alert, err := a.alerts.GetAlert(mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrAlertNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load alert", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, alert, a.logger)
}

func (a *API) handleUpdateAlertStatus(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Status string `json:"status" validate:"required,oneof=new processed ignored"`
	}
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", err, a.logger)
		return
	}
	if err := validator.New().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid status", err, a.logger)
		return
	}

	err := a.alerts.UpdateAlertStatus(mux.Vars(r)["id"], req.Status)
	if errors.Is(err, storage.ErrAlertNotFound) {
		writeError(w, http.StatusNotFound, "Alert not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update alert", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": req.Status}, a.logger)
}

func (a *API) handleListIncidents(w http.ResponseWriter, r *http.Request) {
	incidents, err := a.incidents.GetIncidents(listLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list incidents", err, a.logger)
		return
	}
	if incidents == nil {
		incidents = []*core.Incident{}
	}
	writeJSON(w, http.StatusOK, incidents, a.logger)
}

func (a *API) handleGetIncident(w http.ResponseWriter, r *http.Request) {
	incident, err := a.incidents.GetIncident(mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrIncidentNotFound) {
		writeError(w, http.StatusNotFound, "Incident not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load incident", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, incident, a.logger)
}

// handleExplain answers why/why-not for a stored incident. An unknown
// conclusion name is a valid why-not query, never an error.
func (a *API) handleExplain(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)

	explanation, err := a.triager.ExplainIncident(vars["id"], vars["conclusion"])
	if errors.Is(err, storage.ErrIncidentNotFound) {
		writeError(w, http.StatusNotFound, "Incident not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to explain incident", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, explanation, a.logger)
}

// ruleRequest is the create/update payload for rules.
type ruleRequest struct {
	ID         string   `json:"id" validate:"required,max=128"`
	Name       string   `json:"name" validate:"required,max=256"`
	AttackType string   `json:"attack_type" validate:"omitempty,max=64"`
	Conditions []string `json:"conditions" validate:"required,min=1,dive,required,max=128"`
	Conclusion string   `json:"conclusion" validate:"omitempty,max=128"`
	CF         *float64 `json:"cf" validate:"omitempty,gte=0,lte=1"`
	Enabled    *bool    `json:"enabled"`
}

func (a *API) decodeRule(w http.ResponseWriter, r *http.Request) (*core.Rule, bool) {
	var req ruleRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON payload", err, a.logger)
		return nil, false
	}
	if err := validator.New().Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid rule payload", err, a.logger)
		return nil, false
	}

	cf := core.DefaultCF
	if req.CF != nil {
		cf = *req.CF
	}
	rule, err := core.NewRule(req.ID, req.Conditions, req.Conclusion, cf, req.Name)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), nil, a.logger)
		return nil, false
	}
	rule.AttackType = req.AttackType
	if req.Enabled != nil {
		rule.Enabled = *req.Enabled
	}
	return rule, true
}

func (a *API) handleListRules(w http.ResponseWriter, r *http.Request) {
	rules, err := a.rules.GetRules()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list rules", err, a.logger)
		return
	}
	if rules == nil {
		rules = []*core.Rule{}
	}
	writeJSON(w, http.StatusOK, rules, a.logger)
}

func (a *API) handleGetRule(w http.ResponseWriter, r *http.Request) {
	rule, err := a.rules.GetRule(mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, "Rule not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load rule", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, rule, a.logger)
}

func (a *API) handleCreateRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := a.decodeRule(w, r)
	if !ok {
		return
	}

	err := a.rules.CreateRule(rule)
	if errors.Is(err, storage.ErrRuleExists) {
		writeError(w, http.StatusConflict, "Rule already exists", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to create rule", err, a.logger)
		return
	}
	writeJSON(w, http.StatusCreated, rule, a.logger)
}

func (a *API) handleUpdateRule(w http.ResponseWriter, r *http.Request) {
	rule, ok := a.decodeRule(w, r)
	if !ok {
		return
	}

	err := a.rules.UpdateRule(mux.Vars(r)["id"], rule)
	if errors.Is(err, storage.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, "Rule not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to update rule", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, rule, a.logger)
}

func (a *API) handleDeleteRule(w http.ResponseWriter, r *http.Request) {
	err := a.rules.DeleteRule(mux.Vars(r)["id"])
	if errors.Is(err, storage.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, "Rule not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete rule", err, a.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleEnableRule(w http.ResponseWriter, r *http.Request) {
	a.setRuleEnabled(w, r, true)
}

func (a *API) handleDisableRule(w http.ResponseWriter, r *http.Request) {
	a.setRuleEnabled(w, r, false)
}

func (a *API) setRuleEnabled(w http.ResponseWriter, r *http.Request, enabled bool) {
	err := a.rules.SetRuleEnabled(mux.Vars(r)["id"], enabled)
	if errors.Is(err, storage.ErrRuleNotFound) {
		writeError(w, http.StatusNotFound, "Rule not found", nil, a.logger)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to toggle rule", err, a.logger)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"enabled": enabled}, a.logger)
}

// handleListFacts returns the built-in fact vocabulary with descriptions,
// for rule-authoring clients.
func (a *API) handleListFacts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, core.FactDescriptions, a.logger)
}

func (a *API) handleStream(w http.ResponseWriter, r *http.Request) {
	if a.hub == nil {
		writeError(w, http.StatusServiceUnavailable, "Streaming not enabled", nil, a.logger)
		return
	}
	a.hub.ServeWS(w, r)
}
