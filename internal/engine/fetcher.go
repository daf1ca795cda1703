package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const stageFetch = "fetch"

// FetchPlan describes what the fetcher should collect.
type FetchPlan struct {
	Window   models.Window
	Services []string
	// Filters maps log fields to identifier values; any one matching selects a record.
	Filters  map[string]string
	Keywords []string
}

// FetchResult is the union of all per-service tasks.
type FetchResult struct {
	Backend  models.Backend
	Querier  LogQuerier
	Evidence *EvidenceSet
	Markers  []models.Marker
	// Fallbacks lists services whose identifier query was empty and which were re-queried by keyword.
	Fallbacks []string
}

// Fetcher runs one query task per target service against the store that covers the window.
type Fetcher struct {
	recent     LogQuerier
	historical LogQuerier
	cfg        config.FetchConfig
	sources    config.SourcesConfig
	dedup      patterns.DedupStrategy
	now        func() time.Time
	logger     *slog.Logger
}

// NewFetcher constructs a Fetcher. Either store may be nil; a window routed to a missing store
// yields source-unavailable markers and, in turn, no evidence.
func NewFetcher(recent, historical LogQuerier, cfg config.FetchConfig, sources config.SourcesConfig, dedup patterns.DedupStrategy, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if dedup == nil {
		dedup = patterns.NormalizedBodyHash{}
	}
	return &Fetcher{
		recent:     recent,
		historical: historical,
		cfg:        cfg,
		sources:    sources,
		dedup:      dedup,
		now:        time.Now,
		logger:     logger,
	}
}

// SelectBackend routes a window by the age of its start: recent store inside recentRetention,
// historical store inside historicalRetention, ErrRetentionExceeded beyond.
func (f *Fetcher) SelectBackend(w models.Window) (models.Backend, LogQuerier, error) {
	age := f.now().Sub(w.Start)
	switch {
	case age <= f.cfg.RecentRetention:
		return models.BackendRecent, f.recent, nil
	case age <= f.cfg.HistoricalRetention:
		return models.BackendHistorical, f.historical, nil
	default:
		return "", nil, fmt.Errorf("window starting %s is %s old: %w",
			w.Start.Format(time.RFC3339), age.Round(time.Hour), utils.ErrRetentionExceeded)
	}
}

type fetchSlot struct {
	records  []models.EvidenceRecord
	marker   *models.Marker
	fallback bool
}

// Fetch runs the plan. It returns ErrRetentionExceeded or ErrNoEvidence (wrapped) for the two
// terminal outcomes; every other failure is a marker on the result.
func (f *Fetcher) Fetch(ctx context.Context, plan FetchPlan) (FetchResult, error) {
	backend, querier, err := f.SelectBackend(plan.Window)
	if err != nil {
		return FetchResult{}, err
	}
	result := FetchResult{Backend: backend, Querier: querier, Evidence: NewEvidenceSet(f.dedup)}

	services := plan.Services
	if len(services) == 0 {
		services = []string{""}
	}
	slots := make([]fetchSlot, len(services))

	if querier == nil {
		for i, svc := range services {
			slots[i].marker = &models.Marker{
				Kind: models.KindSourceUnavailable, Stage: stageFetch, Scope: scopeFor(svc),
				Message: fmt.Sprintf("no %s log store configured", backend),
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(f.cfg.Workers)
		for i, svc := range services {
			g.Go(func() error {
				slots[i] = f.runTask(gctx, querier, plan, svc)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, slot := range slots {
		if slot.marker != nil {
			result.Markers = append(result.Markers, *slot.marker)
		}
		if slot.fallback {
			result.Fallbacks = append(result.Fallbacks, services[i])
		}
		result.Evidence.Add(slot.records...)
	}

	if result.Evidence.Len() == 0 {
		return result, fmt.Errorf("%d service(s) queried on %s store: %w", len(services), backend, utils.ErrNoEvidence)
	}
	return result, nil
}

// runTask queries one service: identifier filters first, then once by keyword when that came back
// empty. It never returns an error; failures become the slot's marker.
func (f *Fetcher) runTask(ctx context.Context, querier LogQuerier, plan FetchPlan, service string) fetchSlot {
	if f.cfg.TaskTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.cfg.TaskTimeout)
		defer cancel()
	}

	base := models.LogQuery{
		Service: service,
		Start:   plan.Window.Start,
		End:     plan.Window.End,
		Limit:   f.cfg.Limit,
	}
	if route, ok := f.sources.Route(service); ok {
		base.Stream = route.Stream
	}
	keywords := f.sources.KeywordsFor(service, plan.Keywords...)

	var slot fetchSlot
	if len(plan.Filters) > 0 {
		q := base
		q.Identifiers = plan.Filters
		records, err := f.query(ctx, querier, q)
		if err != nil {
			slot.marker = f.failure(service, err)
			return slot
		}
		if len(records) > 0 || len(keywords) == 0 {
			slot.records = records
			return slot
		}
		slot.fallback = true
	}

	q := base
	if len(keywords) > 0 {
		q.Keywords = keywords
	} else {
		q.Levels = []models.LogLevel{models.LevelError, models.LevelFatal}
	}
	records, err := f.query(ctx, querier, q)
	if err != nil {
		slot.marker = f.failure(service, err)
		return slot
	}
	slot.records = records
	return slot
}

// query retries transient failures with linear backoff. An empty result is a success and is never
// retried.
func (f *Fetcher) query(ctx context.Context, querier LogQuerier, q models.LogQuery) ([]models.EvidenceRecord, error) {
	var records []models.EvidenceRecord
	err := utils.Retry(ctx, f.cfg.Retries, f.cfg.RetryBackoff, func(ctx context.Context) error {
		var err error
		records, err = querier.QueryLogs(ctx, q)
		return err
	})
	switch {
	case err != nil:
		metrics.ObserveBackendQuery(querier.Name(), metrics.OutcomeError)
	case len(records) == 0:
		metrics.ObserveBackendQuery(querier.Name(), metrics.OutcomeEmpty)
	default:
		metrics.ObserveBackendQuery(querier.Name(), metrics.OutcomeSuccess)
	}
	return records, err
}

func (f *Fetcher) failure(service string, err error) *models.Marker {
	f.logger.Warn("evidence task failed", slog.String("service", service), slog.Any("error", err))
	m := utils.MarkerFor(stageFetch, scopeFor(service), err)
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		m.Kind = models.KindDeadlineExceeded
	} else {
		m.Kind = models.KindSourceUnavailable
	}
	return &m
}

func scopeFor(service string) string {
	if service == "" {
		return "all"
	}
	return service
}
