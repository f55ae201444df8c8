package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/priyankdesai/jaal/internal/brain"
	"github.com/priyankdesai/jaal/internal/callback"
	"github.com/priyankdesai/jaal/internal/config"
	"github.com/priyankdesai/jaal/internal/engage"
	"github.com/priyankdesai/jaal/internal/feed"
	"github.com/priyankdesai/jaal/internal/httpapi"
	"github.com/priyankdesai/jaal/internal/observability"
	"github.com/priyankdesai/jaal/internal/persona"
	"github.com/priyankdesai/jaal/internal/scoring"
	"github.com/priyankdesai/jaal/internal/session"
)

// BuildResult bundles the wired service.
type BuildResult struct {
	Config       config.Config
	API          *httpapi.Server
	Store        session.Store
	Orchestrator *engage.Orchestrator
	Hub          *feed.Hub
	Metrics      *observability.Metrics

	// Cleanup should be called on shutdown to release external
	// resources.
	Cleanup func()
}

// Build wires every component from config.
func Build(ctx context.Context, cfg config.Config, logger *zap.Logger, provider scoring.Provider) (*BuildResult, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	store, err := session.NewStore(ctx, cfg.DatabaseURL, cfg.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("session store init failed: %w", err)
	}

	adapter, err := brain.NewAdapter(brain.Config{
		Mode:    cfg.BrainMode,
		HTTPURL: cfg.BrainHTTPURL,
	})
	if err != nil {
		store.Close()
		return nil, fmt.Errorf("brain adapter init failed: %w", err)
	}

	if provider == nil {
		provider = &scoring.StaticProvider{}
	}

	engine := persona.NewEngine(adapter, cfg.GenerationTimeout, logger)
	dispatcher := callback.NewDispatcher(callback.Config{
		URL:         cfg.CallbackURL,
		APIKey:      cfg.CallbackAPIKey,
		Attempts:    cfg.CallbackAttempts,
		BackoffBase: cfg.CallbackBackoffBase,
		BackoffCap:  cfg.CallbackBackoffCap,
		Timeout:     cfg.CallbackTimeout,
		HoldingDir:  cfg.HoldingDir,
	}, logger)
	hub := feed.NewHub()

	orchestrator := engage.NewOrchestrator(engage.Config{
		EngagementThreshold: cfg.EngagementThreshold,
		MaxTurns:            cfg.MaxTurns,
		HighValueMinimum:    cfg.HighValueMinimum,
		DefaultPersona:      cfg.DefaultPersona,
		TurnDeadline:        cfg.TurnDeadline,
		PersistTimeout:      cfg.PersistTimeout,
		StoreReadRetries:    cfg.StoreReadRetries,
	}, store, provider, engine, dispatcher, hub, metrics, logger)

	api := httpapi.New(cfg, orchestrator, store, hub, metrics, logger)

	cleanup := func() {
		orchestrator.Flush()
		store.Close()
	}

	return &BuildResult{
		Config:       cfg,
		API:          api,
		Store:        store,
		Orchestrator: orchestrator,
		Hub:          hub,
		Metrics:      metrics,
		Cleanup:      cleanup,
	}, nil
}
