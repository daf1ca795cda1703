// Package app assembles the capability clients and engine components from configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/codeindex"
	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/engine"
	"github.com/miradorstack/mirador-investigator/internal/reasoning"
	"github.com/miradorstack/mirador-investigator/internal/repo"
)

// App holds the wired engine and the resources that must be released on shutdown.
type App struct {
	Config       *config.Config
	Deps         engine.Dependencies
	Investigator *engine.Investigator
	Timeline     *engine.TimelineAggregator

	closers []func() error
	logger  *slog.Logger
}

// Build connects every configured backend. Unconfigured capabilities stay nil and the engine
// degrades around them.
func Build(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	a := &App{Config: cfg, logger: logger}

	cacheProvider := a.buildCache(cfg.Cache)
	a.closers = append(a.closers, cacheProvider.Close)

	deps := engine.Dependencies{}
	correlationFields := cfg.Tracer.Fields

	if cfg.Warehouse.DSN != "" {
		wh, err := repo.OpenWarehouse(ctx, cfg.Warehouse)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, wh.Close)
		deps.Warehouse = wh
	}
	if cfg.Clients.VictoriaLogs.BaseURL != "" {
		deps.Recent = repo.NewVictoriaLogsClient(cfg.Clients.VictoriaLogs, correlationFields)
	}
	if cfg.Clients.Archive.BaseURL != "" {
		deps.Historical = repo.NewArchiveClient(cfg.Clients.Archive, correlationFields)
	}
	if cfg.Clients.CodeIntel.BaseURL != "" {
		ci := repo.NewCodeIntelClient(cfg.Clients.CodeIntel, cacheProvider, cfg.Cache.CodeSearchTTL, cfg.Cache.CodeGraphTTL)
		deps.CodeSearchers = append(deps.CodeSearchers, ci)
		deps.CodeGraph = ci
	}
	if cfg.CodeIndex.Root != "" {
		idx, err := codeindex.New(cfg.CodeIndex, logger)
		if err != nil {
			logger.Warn("local code index unavailable", slog.String("root", cfg.CodeIndex.Root), slog.Any("error", err))
		} else {
			deps.CodeSearchers = append(deps.CodeSearchers, idx)
			if deps.CodeGraph == nil {
				deps.CodeGraph = idx
			}
		}
	}
	if cfg.Clients.Weaviate.Endpoint != "" {
		deps.Docs = repo.NewWeaviateDocs(cfg.Clients.Weaviate, cacheProvider, cfg.Cache.DocsTTL)
	}
	if cfg.Clients.Status.BaseURL != "" {
		deps.Status = repo.NewStatusClient(cfg.Clients.Status)
	}

	pattern, err := engine.NewPatternExtractor(cfg.Identifiers.Patterns)
	if err != nil {
		a.Close()
		return nil, err
	}
	deps.Extractor = pattern
	reasoner, err := buildReasoner(cfg.Reasoning, logger)
	switch {
	case err != nil:
		logger.Warn("reasoning disabled; patterns will be classified unknown", slog.Any("error", err))
	case reasoner != nil:
		deps.Reasoner = reasoner
		if cfg.Reasoning.Extract {
			deps.Extractor = engine.ChainExtractor{pattern, reasoner}
		}
	}

	rules, err := engine.NewRuleEngine(cfg.Rules.Path, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("load rule pack: %w", err)
	}
	deps.Rules = rules

	inv, err := engine.NewInvestigator(cfg, deps, logger)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Deps = deps
	a.Investigator = inv
	a.Timeline = engine.NewTimelineAggregator(cfg, deps, logger)

	logger.Info("capabilities wired",
		slog.Bool("warehouse", deps.Warehouse != nil),
		slog.Bool("recent_logs", deps.Recent != nil),
		slog.Bool("historical_logs", deps.Historical != nil),
		slog.Int("code_searchers", len(deps.CodeSearchers)),
		slog.Bool("docs", deps.Docs != nil),
		slog.Bool("status", deps.Status != nil),
		slog.Bool("reasoning", deps.Reasoner != nil),
		slog.Int("rules", rules.Len()))
	return a, nil
}

// Close releases pools and connections in reverse order of creation.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *App) buildCache(cfg config.CacheConfig) cache.Provider {
	switch strings.ToLower(cfg.Backend) {
	case "valkey":
		if cfg.Addr == "" {
			a.logger.Warn("valkey cache selected without addr; using in-memory cache")
			break
		}
		provider, err := cache.NewValkeyProvider(cache.ValkeyConfig{
			Addr:         cfg.Addr,
			Username:     cfg.Username,
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			MaxRetries:   cfg.MaxRetries,
			PoolSize:     cfg.PoolSize,
			TLS:          cfg.TLS,
		})
		if err != nil {
			a.logger.Warn("valkey cache unavailable; using in-memory cache", slog.Any("error", err))
			break
		}
		return provider
	case "none":
		return cache.NoopProvider{}
	}
	return cache.NewMemoryProvider(cfg.MemorySize, maxDuration(cfg.CodeSearchTTL, cfg.CodeGraphTTL, cfg.DocsTTL))
}

func buildReasoner(cfg config.ReasoningConfig, logger *slog.Logger) (*reasoning.AnthropicReasoner, error) {
	switch strings.ToLower(cfg.Provider) {
	case "", "none", "disabled":
		return nil, nil
	case "anthropic":
		return reasoning.NewAnthropicReasoner(cfg, logger)
	default:
		return nil, fmt.Errorf("unknown reasoning provider %q", cfg.Provider)
	}
}

func maxDuration(values ...time.Duration) time.Duration {
	var out time.Duration
	for _, v := range values {
		if v > out {
			out = v
		}
	}
	return out
}
