// Package bootstrap wires the Argus components together and manages their
// lifecycle.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"argus/api"
	"argus/config"
	"argus/service"
	"argus/storage"

	"go.uber.org/zap"
)

// App holds the assembled application.
type App struct {
	Config *config.Config
	Logger *zap.Logger
	Sugar  *zap.SugaredLogger

	SQLite          *storage.SQLite
	RuleStorage     *storage.SQLiteRuleStorage
	AlertStorage    *storage.SQLiteAlertStorage
	IncidentStorage *storage.SQLiteIncidentStorage

	Triage    *service.TriageService
	Hub       *api.Hub
	APIServer *api.API

	serviceWg  sync.WaitGroup
	shutdownCh chan struct{}
}

// NewApp initializes all components. Nothing is serving yet when it
// returns; call Start.
func NewApp(ctx context.Context) (*App, error) {
	app := &App{shutdownCh: make(chan struct{})}

	logger, sugar, level, err := InitLogger()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	app.Logger = logger
	app.Sugar = sugar

	sugar.Info("Argus starting...")

	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	app.Config = cfg
	level.SetLevel(ParseLevel(cfg.Logging.Level))
	sugar.Infow("Config loaded",
		"sqlite_path", cfg.DataPaths.SQLitePath,
		"api_port", cfg.API.Port)

	sqlite, err := storage.NewSQLite(cfg.DataPaths.SQLitePath, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	app.SQLite = sqlite
	app.RuleStorage = storage.NewSQLiteRuleStorage(sqlite, sugar)
	app.AlertStorage = storage.NewSQLiteAlertStorage(sqlite, sugar)
	app.IncidentStorage = storage.NewSQLiteIncidentStorage(sqlite, sugar)

	if cfg.Engine.SeedRuleBase {
		if _, err := storage.SeedRules(app.RuleStorage, sugar); err != nil {
			return nil, fmt.Errorf("failed to seed rule base: %w", err)
		}
	}

	app.Hub = api.NewHub(sugar)

	app.Triage, err = service.NewTriageService(
		app.RuleStorage, app.AlertStorage, app.IncidentStorage, app.Hub, sugar)
	if err != nil {
		return nil, fmt.Errorf("failed to create triage service: %w", err)
	}

	app.APIServer = api.NewAPI(
		app.Triage, app.AlertStorage, app.IncidentStorage, app.RuleStorage,
		app.Hub, cfg, sugar)

	return app, nil
}

// Start launches the API server.
func (app *App) Start(ctx context.Context) error {
	app.serviceWg.Add(1)
	go func() {
		defer app.serviceWg.Done()
		if err := app.APIServer.Start(); err != nil {
			app.Sugar.Errorw("API server exited", "error", err)
		}
	}()
	return nil
}

// WaitForShutdown blocks until SIGINT/SIGTERM.
func (app *App) WaitForShutdown() {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	app.Sugar.Infow("Shutdown signal received", "signal", sig.String())
}

// Shutdown stops the API server and closes storage.
func (app *App) Shutdown() {
	close(app.shutdownCh)

	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.APIServer.Shutdown(ctx); err != nil {
		app.Sugar.Warnw("API shutdown error", "error", err)
	}
	app.serviceWg.Wait()

	if err := app.SQLite.Close(); err != nil {
		app.Sugar.Warnw("Storage close error", "error", err)
	}

	app.Sugar.Info("Argus stopped")
	_ = app.Logger.Sync()
}
