package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/extractors"
	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const stageTrace = "trace"

// TraceResult summarises one tracing pass.
type TraceResult struct {
	IDs     []string
	Days    int
	Queries int
	Added   int
	Markers []models.Marker
}

// Tracer follows correlation ids found in the evidence across every service, one query per id and
// UTC calendar day of the window.
type Tracer struct {
	cfg          config.TracerConfig
	bodyPatterns []*regexp.Regexp
	logger       *slog.Logger
}

// NewTracer compiles the configured body patterns.
func NewTracer(cfg config.TracerConfig, logger *slog.Logger) (*Tracer, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	t := &Tracer{cfg: cfg, logger: logger}
	for _, expr := range cfg.BodyPatterns {
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("tracer body pattern %q: %w", expr, err)
		}
		t.bodyPatterns = append(t.bodyPatterns, re)
	}
	return t, nil
}

type traceTask struct {
	id  string
	day models.TimeRange
}

type traceSlot struct {
	records []models.EvidenceRecord
	marker  *models.Marker
	// cut is set when the call deadline stopped the task before or during its query.
	cut bool
}

// Trace expands set in place with records sharing a correlation id. At most MaxIDs ids are followed
// and exactly one query is issued per (id, day) pair.
func (t *Tracer) Trace(ctx context.Context, querier LogQuerier, window models.Window, set *EvidenceSet) TraceResult {
	var res TraceResult
	if querier == nil || t.cfg.MaxIDs == 0 || set.Len() == 0 {
		return res
	}
	res.IDs = extractors.CorrelationIDs(set.Records(), t.cfg.Fields, t.bodyPatterns, t.cfg.MaxIDs)
	days := utils.DaySpans(window.Start, window.End)
	res.Days = len(days)
	if len(res.IDs) == 0 || len(days) == 0 {
		return res
	}

	tasks := make([]traceTask, 0, len(res.IDs)*len(days))
	for _, id := range res.IDs {
		for _, day := range days {
			tasks = append(tasks, traceTask{id: id, day: day})
		}
	}
	slots := make([]traceSlot, len(tasks))
	var issued atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(t.cfg.Concurrency)
	for i, task := range tasks {
		g.Go(func() error {
			qctx := gctx
			if t.cfg.QueryTimeout > 0 {
				var cancel context.CancelFunc
				qctx, cancel = context.WithTimeout(gctx, t.cfg.QueryTimeout)
				defer cancel()
			}
			if ctx.Err() != nil {
				slots[i].cut = true
				return nil
			}
			issued.Add(1)
			records, err := querier.QueryLogs(qctx, models.LogQuery{
				CorrelationID: task.id,
				Start:         task.day.Start,
				End:           task.day.End,
				Limit:         t.cfg.Limit,
			})
			if err != nil {
				if ctx.Err() != nil {
					slots[i].cut = true
					return nil
				}
				m := utils.MarkerFor(stageTrace, task.id+"@"+task.day.Start.Format("2006-01-02"), err)
				slots[i].marker = &m
				return nil
			}
			slots[i].records = records
			return nil
		})
	}
	_ = g.Wait()

	cut := 0
	for _, slot := range slots {
		if slot.cut {
			cut++
		}
		if slot.marker != nil {
			res.Markers = append(res.Markers, *slot.marker)
		}
		res.Added += set.Add(slot.records...)
	}
	if cut > 0 {
		res.Markers = append(res.Markers, models.Marker{
			Kind:    models.KindDeadlineExceeded,
			Stage:   stageTrace,
			Scope:   "all",
			Message: fmt.Sprintf("%d of %d trace queries cut short by the deadline", cut, len(tasks)),
		})
	}
	res.Queries = int(issued.Load())
	metrics.AddTracerQueries(res.Queries)
	if len(res.Markers) > 0 {
		t.logger.Warn("correlation tracing partial", slog.Int("markers", len(res.Markers)), slog.Int("cut", cut), slog.Int("queries", res.Queries))
	}
	return res
}
