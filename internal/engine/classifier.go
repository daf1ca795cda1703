package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/extractors"
	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const (
	reasonerRetries = 1
	reasonerBackoff = 500 * time.Millisecond
)

const (
	stageClassify     = "classify"
	maxSymbols        = 3
	maxEntityLookups  = 3
	docSnippetsPerRun = 3
)

// Signal weights relative to the model's own confidence.
const (
	weightModel    = 1.0
	weightCode     = 0.3
	weightFlow     = 0.3
	weightSeverity = 0.2
)

// Classifier assigns a verdict to each cluster from code, flow, state and documentation context.
// Results are never cached: entity state may change between runs.
type Classifier struct {
	searchers []CodeSearcher
	graph     CodeGraph
	docs      DocSearcher
	status    StatusLookup
	reasoner  Reasoner
	cfg       config.ClassifierConfig
	agg       ConfidenceAggregator
	logger    *slog.Logger
}

// NewClassifier constructs a classifier over the capabilities in deps. A nil aggregator selects
// NoisyOR.
func NewClassifier(deps Dependencies, cfg config.ClassifierConfig, agg ConfidenceAggregator, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	if agg == nil {
		agg = NoisyOR{}
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.GraphDepth <= 0 {
		cfg.GraphDepth = 4
	}
	if cfg.MaxCodeRefs <= 0 {
		cfg.MaxCodeRefs = 5
	}
	return &Classifier{
		searchers: deps.CodeSearchers,
		graph:     deps.CodeGraph,
		docs:      deps.Docs,
		status:    deps.Status,
		reasoner:  deps.Reasoner,
		cfg:       cfg,
		agg:       agg,
		logger:    logger,
	}
}

// ClassifyAll classifies clusters concurrently and returns results in cluster order. Every cluster
// gets a classification, unknown when reasoning was unavailable.
func (c *Classifier) ClassifyAll(ctx context.Context, clusters []models.PatternCluster, window models.Window, ids models.IdentifierSet) []models.Classification {
	out := make([]models.Classification, len(clusters))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.Workers)
	for i, cl := range clusters {
		g.Go(func() error {
			out[i] = c.Classify(gctx, cl, window, ids)
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Classify assembles the context for one cluster and asks the reasoner for a verdict.
func (c *Classifier) Classify(ctx context.Context, cl models.PatternCluster, window models.Window, ids models.IdentifierSet) models.Classification {
	if c.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.Timeout)
		defer cancel()
	}

	result := models.Classification{PatternID: cl.ID, Verdict: models.VerdictUnknown}
	actual := extractors.CallSequence(cl.Representative)
	symbols := extractors.Symbols(cl.Template, maxSymbols)
	if len(symbols) == 0 && len(actual) > 0 {
		symbols = actual[:1]
	}

	result.CodeCandidates = c.codeReferences(ctx, cl.ID, symbols, &result.Markers)
	if len(result.CodeCandidates) > 0 {
		ref := result.CodeCandidates[0]
		result.CodeReference = &ref
	}
	result.Flow = c.flow(ctx, cl.ID, actual, symbols, &result.Markers)
	result.EntityStates = c.entityStates(ctx, cl, ids, &result.Markers)
	result.Docs = c.documentation(ctx, cl, &result.Markers)

	if c.reasoner == nil {
		result.Markers = append(result.Markers, models.Marker{
			Kind: models.KindClassificationUnavailable, Stage: stageClassify, Scope: cl.ID,
			Message: "no reasoning capability configured",
		})
		metrics.ObserveClassification(string(result.Verdict))
		return result
	}

	in := models.ReasoningInput{
		PatternID:      cl.ID,
		Template:       cl.TemplateString(),
		Occurrences:    cl.Count,
		Representative: cl.Representative.Body,
		Services:       cl.Services,
		ErrorShare:     cl.ErrorShare(),
		Window:         window,
		EntityStates:   result.EntityStates,
		CodeReference:  result.CodeReference,
		Flow:           result.Flow,
		Docs:           result.Docs,
	}
	var out models.ReasoningOutput
	err := utils.Retry(ctx, reasonerRetries, reasonerBackoff, func(ctx context.Context) error {
		var callErr error
		out, callErr = c.reasoner.Classify(ctx, in)
		return callErr
	})
	if err != nil {
		c.logger.Warn("classification unavailable", slog.String("pattern", cl.ID), slog.Any("error", err))
		result.Markers = append(result.Markers, models.Marker{
			Kind: models.KindClassificationUnavailable, Stage: stageClassify, Scope: cl.ID, Message: err.Error(),
		})
		metrics.ObserveClassification(string(result.Verdict))
		return result
	}

	result.Verdict = out.Verdict
	if result.Verdict == "" {
		result.Verdict = models.VerdictUnknown
	}
	result.ModelConfidence = clamp(out.Confidence, 0, 1)
	result.Explanation = out.Explanation
	result.Confidence = Accumulate(c.agg, corroboration(result, cl))
	metrics.ObserveClassification(string(result.Verdict))
	return result
}

// corroboration lists the signals supporting the verdict, model first. An unknown verdict has no
// support.
func corroboration(result models.Classification, cl models.PatternCluster) []Signal {
	if result.Verdict == models.VerdictUnknown {
		return nil
	}
	signals := []Signal{{Name: "model", Value: result.ModelConfidence, Weight: weightModel}}
	if result.CodeReference != nil {
		signals = append(signals, Signal{Name: "code", Value: clamp(result.CodeReference.Score, 0, 1), Weight: weightCode})
	}
	share := cl.ErrorShare()
	if result.Flow != nil && len(result.Flow.Expected) > 0 {
		v := result.Flow.Similarity
		if result.Verdict == models.VerdictRealError {
			v = 1 - v
		}
		signals = append(signals, Signal{Name: "flow", Value: v, Weight: weightFlow})
	}
	if result.Verdict == models.VerdictExpected {
		share = 1 - share
	}
	signals = append(signals, Signal{Name: "severity", Value: share, Weight: weightSeverity})
	return signals
}

func (c *Classifier) codeReferences(ctx context.Context, patternID string, symbols []string, markers *[]models.Marker) []models.CodeLocation {
	if len(c.searchers) == 0 || len(symbols) == 0 {
		return nil
	}
	var lists [][]models.CodeLocation
	for _, s := range c.searchers {
		for _, sym := range symbols {
			locs, err := s.SearchCode(ctx, sym, c.cfg.MaxCodeRefs)
			if err != nil {
				*markers = append(*markers, utils.MarkerFor(stageClassify, patternID+"/"+s.Name(), err))
				break
			}
			lists = append(lists, locs)
		}
	}
	merged := mergeCodeLocations(lists...)
	if len(merged) > c.cfg.MaxCodeRefs {
		merged = merged[:c.cfg.MaxCodeRefs]
	}
	return merged
}

func (c *Classifier) flow(ctx context.Context, patternID string, actual, symbols []string, markers *[]models.Marker) *models.FlowComparison {
	if c.graph == nil || len(actual) == 0 {
		return nil
	}
	root := actual[0]
	graph, err := c.graph.CallGraph(ctx, root, c.cfg.GraphDepth)
	if err != nil {
		*markers = append(*markers, utils.MarkerFor(stageClassify, patternID+"/callgraph", err))
		return nil
	}
	if (graph == nil || len(graph.Edges) == 0) && len(symbols) > 0 && symbols[0] != root {
		if graph, err = c.graph.CallGraph(ctx, symbols[0], c.cfg.GraphDepth); err != nil {
			*markers = append(*markers, utils.MarkerFor(stageClassify, patternID+"/callgraph", err))
			return nil
		}
	}
	if graph == nil {
		return nil
	}
	cmp := CompareFlow(actual, *graph)
	return &cmp
}

func (c *Classifier) entityStates(ctx context.Context, cl models.PatternCluster, ids models.IdentifierSet, markers *[]models.Marker) []models.EntityState {
	if c.status == nil {
		return nil
	}
	referenced := extractors.Mentions(cl.Representative, ids.Values())
	if len(referenced) == 0 {
		if primary := ids.Value(models.IdentifierEntity); primary != "" {
			referenced = []string{primary}
		}
	}
	if len(referenced) > maxEntityLookups {
		referenced = referenced[:maxEntityLookups]
	}
	var states []models.EntityState
	for _, id := range referenced {
		state, err := c.status.EntityStatus(ctx, id)
		if err != nil {
			*markers = append(*markers, utils.MarkerFor(stageClassify, fmt.Sprintf("%s/status:%s", cl.ID, id), err))
			continue
		}
		if state != nil {
			states = append(states, *state)
		}
	}
	return states
}

func (c *Classifier) documentation(ctx context.Context, cl models.PatternCluster, markers *[]models.Marker) []models.DocSnippet {
	if c.docs == nil || !c.cfg.UseDocs {
		return nil
	}
	service := ""
	if len(cl.Services) > 0 {
		service = cl.Services[0]
	}
	docs, err := c.docs.SearchDocs(ctx, service, c.cfg.DocsCategory, cl.TemplateString(), docSnippetsPerRun)
	if err != nil {
		*markers = append(*markers, utils.MarkerFor(stageClassify, cl.ID+"/docs", err))
		return nil
	}
	return docs
}
