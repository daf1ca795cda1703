package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/patterns"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const tracerName = "github.com/miradorstack/mirador-investigator/internal/engine"

// Investigator orchestrates one RCA run: resolve, window, fetch, trace, cluster, classify, report.
type Investigator struct {
	cfg        *config.Config
	resolver   *Resolver
	selector   *WindowSelector
	fetcher    *Fetcher
	tracer     *Tracer
	classifier *Classifier
	builder    *ReportBuilder
	spans      trace.Tracer
	logger     *slog.Logger
}

// NewInvestigator wires the pipeline stages over deps. It fails only on invalid configuration.
func NewInvestigator(cfg *config.Config, deps Dependencies, logger *slog.Logger) (*Investigator, error) {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if logger == nil {
		logger = slog.Default()
	}
	dedup, err := patterns.StrategyFor(cfg.Fetch.Dedup)
	if err != nil {
		return nil, err
	}
	agg, err := AggregatorFor(cfg.Classifier.Aggregation)
	if err != nil {
		return nil, err
	}
	tracer, err := NewTracer(cfg.Tracer, logger)
	if err != nil {
		return nil, err
	}
	extractor := deps.Extractor
	if extractor == nil {
		pe, err := NewPatternExtractor(cfg.Identifiers.Patterns)
		if err != nil {
			return nil, err
		}
		extractor = pe
	}
	return &Investigator{
		cfg:        cfg,
		resolver:   NewResolver(deps.Warehouse, extractor, logger),
		selector:   NewWindowSelector(deps.Warehouse, cfg.Window, logger),
		fetcher:    NewFetcher(deps.Recent, deps.Historical, cfg.Fetch, cfg.Sources, dedup, logger),
		tracer:     tracer,
		classifier: NewClassifier(deps, cfg.Classifier, agg, logger),
		builder:    NewReportBuilder(cfg.Report, cfg.Cluster.BurstThreshold, deps.Rules),
		spans:      otel.Tracer(tracerName),
		logger:     logger,
	}, nil
}

// Investigate runs the pipeline. It never returns an error: halts become terminal reports and
// partial failures become markers.
func (inv *Investigator) Investigate(ctx context.Context, req models.InvestigationRequest) models.Report {
	opts := req.Options
	if opts.Deadline.IsZero() && opts.Budget <= 0 {
		opts.Budget = inv.cfg.Server.DefaultBudget
	}
	ctx, cancel := opts.Context(ctx)
	defer cancel()

	started := time.Now()
	in := ReportInput{RunID: uuid.NewString(), StartedAt: started}
	ctx, span := inv.spans.Start(ctx, "investigate", trace.WithAttributes(attribute.String("run_id", in.RunID)))
	defer span.End()
	logger := inv.logger.With(slog.String("run_id", in.RunID))

	report := inv.run(ctx, req, opts, &in, logger)

	if report.Terminal() {
		span.SetStatus(codes.Error, report.Summary)
	}
	span.SetAttributes(
		attribute.String("reason", string(report.Reason)),
		attribute.Int("evidence", report.EvidenceCount),
		attribute.Int("clusters", report.ClusterCount),
	)
	metrics.ObserveInvestigation(time.Since(started), string(report.Reason))
	logger.Info("investigation finished",
		slog.String("reason", string(report.Reason)),
		slog.Int("evidence", report.EvidenceCount),
		slog.Int("clusters", report.ClusterCount),
		slog.Int("markers", len(report.Markers)),
		slog.Duration("elapsed", time.Since(started)))
	return report
}

func (inv *Investigator) run(ctx context.Context, req models.InvestigationRequest, opts models.Options, in *ReportInput, logger *slog.Logger) models.Report {
	sctx, span := inv.spans.Start(ctx, stageResolve)
	res := inv.resolver.Resolve(sctx, req)
	span.End()
	in.Identifiers = res.Identifiers.All()
	in.Markers = append(in.Markers, res.Markers...)

	sctx, span = inv.spans.Start(ctx, stageWindow)
	window, markers := inv.selector.Select(sctx, res.Identifiers, req.Description, req.ReportedAt)
	span.SetAttributes(attribute.Int("tier", int(window.Tier)))
	span.End()
	in.Window = &window
	in.Markers = append(in.Markers, markers...)
	logger.Debug("window selected",
		slog.Time("start", window.Start), slog.Time("end", window.End), slog.String("tier", window.Tier.String()))

	services := inv.cfg.Sources.Services(req.Services)
	plan := FetchPlan{
		Window:   window,
		Services: services,
		Filters:  LogFilters(res, inv.cfg.Identifiers.Patterns),
		Keywords: req.Keywords,
	}
	sctx, span = inv.spans.Start(ctx, stageFetch, trace.WithAttributes(attribute.Int("services", len(services))))
	fetched, err := inv.fetcher.Fetch(sctx, plan)
	span.End()
	in.Backend = fetched.Backend
	in.Markers = append(in.Markers, fetched.Markers...)
	switch {
	case errors.Is(err, utils.ErrRetentionExceeded):
		return inv.builder.Terminal(*in, models.ReasonRetentionExceeded, err)
	case errors.Is(err, utils.ErrNoEvidence):
		return inv.builder.Terminal(*in, models.ReasonNoEvidence, nil)
	case err != nil:
		in.Markers = append(in.Markers, utils.MarkerFor(stageFetch, "", err))
		return inv.builder.Terminal(*in, models.ReasonNoEvidence, err)
	}

	sctx, span = inv.spans.Start(ctx, stageTrace)
	traced := inv.tracer.Trace(sctx, fetched.Querier, window, fetched.Evidence)
	span.SetAttributes(attribute.Int("ids", len(traced.IDs)), attribute.Int("queries", traced.Queries))
	span.End()
	in.Markers = append(in.Markers, traced.Markers...)
	in.EvidenceCount = fetched.Evidence.Len()
	in.TracedCount = traced.Added

	maxClusters := inv.cfg.Cluster.MaxClusters
	if opts.MaxClusters > 0 {
		maxClusters = opts.MaxClusters
	}
	clusterer := patterns.NewClusterer(patterns.Options{
		SimilarityThreshold: inv.cfg.Cluster.SimilarityThreshold,
		Mask:                inv.cfg.Cluster.Mask,
		MaxCorrelationIDs:   inv.cfg.Tracer.MaxIDs,
	})
	clusterer.AddAll(fetched.Evidence.Chronological())
	in.Clusters = clusterer.Top(maxClusters)
	metrics.ObserveClusters(len(in.Clusters))
	if dropped := clusterer.Len() - len(in.Clusters); dropped > 0 {
		logger.Debug("low-volume patterns dropped", slog.Int("dropped", dropped))
	}

	if opts.SkipClassification {
		in.Classifications = make([]models.Classification, len(in.Clusters))
		for i, cl := range in.Clusters {
			in.Classifications[i] = models.Classification{PatternID: cl.ID, Verdict: models.VerdictUnknown}
		}
	} else {
		sctx, span = inv.spans.Start(ctx, stageClassify, trace.WithAttributes(attribute.Int("clusters", len(in.Clusters))))
		in.Classifications = inv.classifier.ClassifyAll(sctx, in.Clusters, window, res.Identifiers)
		span.End()
	}

	if ctx.Err() != nil {
		in.Markers = append(in.Markers, models.Marker{
			Kind: models.KindDeadlineExceeded, Stage: "investigate",
			Message: fmt.Sprintf("deadline reached after %s; results are partial", time.Since(in.StartedAt).Round(time.Millisecond)),
		})
	}
	return inv.builder.Build(*in)
}
