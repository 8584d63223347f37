// Package app wires the storage, engines and orchestration for the CLI
// and the server from one workspace config.
package app

import (
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"govpulse/internal/adapter"
	"govpulse/internal/analytics"
	"govpulse/internal/config"
	"govpulse/internal/db"
	"govpulse/internal/migrate"
	"govpulse/internal/reconcile"
	"govpulse/internal/syncjob"
)

type App struct {
	DB           *sql.DB
	Config       *config.Config
	Reconcile    reconcile.Engine
	Analytics    analytics.Engine
	Jobs         *syncjob.Registry
	Orchestrator *syncjob.Orchestrator
	Logger       *log.Logger
}

// Open loads the workspace config (falling back to defaults when none
// exists), opens and migrates the database, and builds the engines.
func Open(workspace string) (*App, error) {
	cfg, err := config.LoadOptional(workspace)
	if err != nil {
		return nil, err
	}
	if cfg == nil {
		cfg = config.Default()
	}
	if workspace == "" {
		workspace = cfg.Workspace
	}
	if _, err := db.EnsureWorkspace(workspace); err != nil {
		return nil, err
	}
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	logger := log.New(os.Stderr, "[govpulse] ", log.LstdFlags)

	rec := reconcile.New(conn)
	an := analytics.New(conn)
	if len(cfg.SLA.Allowances) > 0 {
		allowances := make(map[string]time.Duration, len(cfg.SLA.Allowances))
		for priority, d := range cfg.SLA.Allowances {
			allowances[priority] = d.Std()
		}
		an.Allowances = allowances
	}
	if cfg.SLA.Lookahead.Std() > 0 {
		an.Lookahead = cfg.SLA.Lookahead.Std()
	}

	sources, err := buildSources(cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	registry := syncjob.NewRegistry()
	orch := syncjob.NewOrchestrator(rec, registry, sources, logger)
	if cfg.Sync.BatchSize > 0 {
		orch.BatchSize = cfg.Sync.BatchSize
	}

	return &App{
		DB:           conn,
		Config:       cfg,
		Reconcile:    rec,
		Analytics:    an,
		Jobs:         registry,
		Orchestrator: orch,
		Logger:       logger,
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// Scheduler returns a timer-driven runner for all configured sources,
// using the configured interval.
func (a *App) Scheduler() *syncjob.Scheduler {
	return syncjob.NewScheduler(a.Orchestrator, a.Config.Sync.Interval.Std(), a.Logger)
}

func buildSources(cfg *config.Config) (map[string]adapter.Source, error) {
	sources := make(map[string]adapter.Source, len(cfg.Sources))
	for _, sc := range cfg.Sources {
		mode := sc.Mode
		if mode == "" {
			mode = "stub"
		}
		src, err := adapter.New(adapter.Options{
			Name:        sc.Name,
			Kind:        sc.Kind,
			Mode:        mode,
			BaseURL:     sc.BaseURL,
			Token:       sc.Token,
			ProjectKeys: sc.ProjectKeys,
			Timeout:     sc.Timeout.Std(),
		})
		if err != nil {
			return nil, fmt.Errorf("source %s: %w", sc.Name, err)
		}
		sources[sc.Name] = src
	}
	return sources, nil
}
