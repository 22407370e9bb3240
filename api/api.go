// Package api exposes the Argus triage engine over HTTP: alert submission,
// incident retrieval, why/why-not explanations, rule management and a
// WebSocket incident stream.
package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"argus/config"
	"argus/core"
	"argus/infer"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Triager runs the analysis pipeline and answers explain queries.
type Triager interface {
	Analyze(alert *core.Alert) (*core.Incident, error)
	ExplainIncident(incidentID, conclusionID string) (*infer.Explanation, error)
}

// AlertStorer defines the alert storage operations the API needs.
type AlertStorer interface {
	GetAlert(alertID string) (*core.Alert, error)
	GetAlerts(status string, limit int) ([]*core.Alert, error)
	UpdateAlertStatus(alertID, status string) error
}

// IncidentStorer defines the incident storage operations the API needs.
type IncidentStorer interface {
	GetIncident(incidentID string) (*core.Incident, error)
	GetIncidents(limit int) ([]*core.Incident, error)
	GetIncidentCount() (int64, error)
}

// RuleStorer defines the rule storage operations the API needs.
type RuleStorer interface {
	GetRules() ([]*core.Rule, error)
	GetRule(id string) (*core.Rule, error)
	CreateRule(rule *core.Rule) error
	UpdateRule(id string, rule *core.Rule) error
	DeleteRule(id string) error
	SetRuleEnabled(id string, enabled bool) error
}

// API is the HTTP server for the triage engine.
type API struct {
	triager   Triager
	alerts    AlertStorer
	incidents IncidentStorer
	rules     RuleStorer
	hub       *Hub
	cfg       *config.Config
	logger    *zap.SugaredLogger
	server    *http.Server
}

// NewAPI creates the API server and its route table.
func NewAPI(triager Triager, alerts AlertStorer, incidents IncidentStorer, rules RuleStorer, hub *Hub, cfg *config.Config, logger *zap.SugaredLogger) *API {
	a := &API{
		triager:   triager,
		alerts:    alerts,
		incidents: incidents,
		rules:     rules,
		hub:       hub,
		cfg:       cfg,
		logger:    logger,
	}

	r := mux.NewRouter()
	r.Use(a.loggingMiddleware)

	r.HandleFunc("/health", a.handleHealth).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	v1 := r.PathPrefix("/api/v1").Subrouter()
	v1.Use(newRateLimitMiddleware(cfg.API.RateLimit.RequestsPerSecond, cfg.API.RateLimit.Burst, logger))

	v1.HandleFunc("/alerts", a.handleSubmitAlert).Methods(http.MethodPost)
	v1.HandleFunc("/alerts", a.handleListAlerts).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/{id}", a.handleGetAlert).Methods(http.MethodGet)
	v1.HandleFunc("/alerts/{id}/status", a.handleUpdateAlertStatus).Methods(http.MethodPut)

	v1.HandleFunc("/incidents", a.handleListIncidents).Methods(http.MethodGet)
	v1.HandleFunc("/incidents/{id}", a.handleGetIncident).Methods(http.MethodGet)
	v1.HandleFunc("/incidents/{id}/explain/{conclusion}", a.handleExplain).Methods(http.MethodGet)

	v1.HandleFunc("/rules", a.handleListRules).Methods(http.MethodGet)
	v1.HandleFunc("/rules", a.handleCreateRule).Methods(http.MethodPost)
	v1.HandleFunc("/rules/{id}", a.handleGetRule).Methods(http.MethodGet)
	v1.HandleFunc("/rules/{id}", a.handleUpdateRule).Methods(http.MethodPut)
	v1.HandleFunc("/rules/{id}", a.handleDeleteRule).Methods(http.MethodDelete)
	v1.HandleFunc("/rules/{id}/enable", a.handleEnableRule).Methods(http.MethodPost)
	v1.HandleFunc("/rules/{id}/disable", a.handleDisableRule).Methods(http.MethodPost)

	v1.HandleFunc("/facts", a.handleListFacts).Methods(http.MethodGet)

	v1.HandleFunc("/stream", a.handleStream).Methods(http.MethodGet)

	a.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.API.Host, cfg.API.Port),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return a
}

// Router exposes the handler for tests.
func (a *API) Router() http.Handler {
	return a.server.Handler
}

// Start serves HTTP until the listener fails or Shutdown is called.
func (a *API) Start() error {
	a.logger.Infow("API server listening", "addr", a.server.Addr)
	if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("API server failed: %w", err)
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (a *API) Shutdown(ctx context.Context) error {
	return a.server.Shutdown(ctx)
}
