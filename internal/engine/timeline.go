package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/metrics"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const stageTimeline = "timeline"

// BranchFunc produces the rows and timestamped events of one timeline branch.
type BranchFunc func(ctx context.Context, entityID string) ([]models.Row, []models.TimelineEvent, error)

type timelineBranch struct {
	key string
	run BranchFunc
}

// TimelineAggregator fans out independent branch queries for one entity and merges their events.
type TimelineAggregator struct {
	warehouse Warehouse
	status    StatusLookup
	logs      LogQuerier
	cfg       config.TimelineConfig
	limit     int
	branches  []timelineBranch
	spans     trace.Tracer
	now       func() time.Time
	logger    *slog.Logger
}

// NewTimelineAggregator registers one SQL branch per configured warehouse query plus the log-backed
// outbound_calls branch.
func NewTimelineAggregator(cfg *config.Config, deps Dependencies, logger *slog.Logger) *TimelineAggregator {
	if cfg == nil {
		def := config.Default()
		cfg = &def
	}
	if logger == nil {
		logger = slog.Default()
	}
	logs := deps.Recent
	if logs == nil {
		logs = deps.Historical
	}
	a := &TimelineAggregator{
		warehouse: deps.Warehouse,
		status:    deps.Status,
		logs:      logs,
		cfg:       cfg.Timeline,
		limit:     cfg.Fetch.Limit,
		spans:     otel.Tracer(tracerName),
		now:       time.Now,
		logger:    logger,
	}
	keys := make([]string, 0, len(cfg.Warehouse.Queries))
	for k := range cfg.Warehouse.Queries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		a.Register(k, a.warehouseBranch(k))
	}
	a.Register(models.BranchOutboundCalls, a.outboundCalls)
	return a
}

// Register adds or replaces a branch.
func (a *TimelineAggregator) Register(key string, fn BranchFunc) {
	for i := range a.branches {
		if a.branches[i].key == key {
			a.branches[i].run = fn
			return
		}
	}
	a.branches = append(a.branches, timelineBranch{key: key, run: fn})
}

// Branches lists the registered branch keys in registration order.
func (a *TimelineAggregator) Branches() []string {
	keys := make([]string, len(a.branches))
	for i, b := range a.branches {
		keys[i] = b.key
	}
	return keys
}

type branchSlot struct {
	result models.BranchResult
}

// GetTimeline resolves the entity, reads its state and runs every branch concurrently. Failed
// branches stay in the result under their key with an error marker.
func (a *TimelineAggregator) GetTimeline(ctx context.Context, req models.TimelineRequest) models.TimelineResult {
	ctx, cancel := req.Options.Context(ctx)
	defer cancel()
	ctx, span := a.spans.Start(ctx, stageTimeline)
	defer span.End()

	result := models.TimelineResult{
		EntityID: strings.TrimSpace(req.EntityID),
		Branches: make(map[string]models.BranchResult, len(a.branches)),
		Events:   []models.TimelineEvent{},
	}
	if result.EntityID == "" && req.CompoundKey != "" {
		if a.warehouse == nil {
			result.Markers = append(result.Markers, utils.MarkerFor(stageTimeline, "resolve", utils.ErrNotConfigured))
		} else if id, err := a.warehouse.ResolveKey(ctx, req.CompoundKey); err != nil {
			result.Markers = append(result.Markers, utils.MarkerFor(stageTimeline, "resolve", err))
		} else {
			result.EntityID = id
			result.ResolvedKey = req.CompoundKey
		}
	}
	if result.EntityID == "" {
		if len(result.Markers) == 0 {
			result.Markers = append(result.Markers, models.Marker{
				Kind: models.KindResolutionAmbiguous, Stage: stageTimeline, Scope: "resolve",
				Message: "no entity id or resolvable compound key supplied",
			})
		}
		result.Partial = true
		result.GeneratedAt = a.now()
		return result
	}
	span.SetAttributes(attribute.String("entity_id", result.EntityID))

	state, markers := a.resolveState(ctx, result.EntityID)
	result.State = state
	result.Markers = append(result.Markers, markers...)

	slots := make([]branchSlot, len(a.branches))
	g, gctx := errgroup.WithContext(ctx)
	for i, b := range a.branches {
		g.Go(func() error {
			slots[i].result = a.runBranch(gctx, b, result.EntityID)
			return nil
		})
	}
	_ = g.Wait()

	type sequenced struct {
		event models.TimelineEvent
		seq   int
	}
	var merged []sequenced
	for _, slot := range slots {
		br := slot.result
		result.Branches[br.Key] = br
		if br.Err != nil {
			result.Partial = true
			continue
		}
		for seq, ev := range br.Events {
			merged = append(merged, sequenced{event: ev, seq: seq})
		}
	}
	sort.SliceStable(merged, func(i, j int) bool {
		x, y := merged[i], merged[j]
		if !x.event.Time.Equal(y.event.Time) {
			return x.event.Time.Before(y.event.Time)
		}
		if x.event.Branch != y.event.Branch {
			return x.event.Branch < y.event.Branch
		}
		return x.seq < y.seq
	})
	for _, m := range merged {
		result.Events = append(result.Events, m.event)
	}
	if len(result.Markers) > 0 {
		result.Partial = true
	}
	result.GeneratedAt = a.now()
	a.logger.Info("timeline built",
		slog.String("entity_id", result.EntityID),
		slog.Int("events", len(result.Events)),
		slog.Int("failed_branches", len(result.Failed())))
	return result
}

func (a *TimelineAggregator) runBranch(ctx context.Context, b timelineBranch, entityID string) models.BranchResult {
	if a.cfg.BranchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.BranchTimeout)
		defer cancel()
	}
	started := time.Now()
	rows, events, err := b.run(ctx, entityID)
	br := models.BranchResult{Key: b.key, Duration: time.Since(started)}
	if err != nil {
		m := utils.MarkerFor(stageTimeline, b.key, err)
		if errors.Is(err, context.DeadlineExceeded) {
			m.Kind = models.KindDeadlineExceeded
		}
		br.Err = &m
		a.logger.Warn("timeline branch failed", slog.String("branch", b.key), slog.Any("error", err))
		metrics.ObserveTimelineBranch(b.key, metrics.OutcomeError)
		return br
	}
	for i := range events {
		events[i].Branch = b.key
	}
	br.Rows = rows
	br.Events = events
	outcome := metrics.OutcomeSuccess
	if len(rows) == 0 && len(events) == 0 {
		outcome = metrics.OutcomeEmpty
	}
	metrics.ObserveTimelineBranch(b.key, outcome)
	return br
}

// resolveState prefers the live API, then the warehouse record, then the latest log line. A
// warehouse record older than the newest log line by more than the ETL lag is treated as stale.
func (a *TimelineAggregator) resolveState(ctx context.Context, entityID string) (*models.EntityState, []models.Marker) {
	var markers []models.Marker
	if a.status != nil {
		state, err := a.status.EntityStatus(ctx, entityID)
		if err != nil {
			markers = append(markers, utils.MarkerFor(stageTimeline, "state/live", err))
		} else if state != nil {
			state.Source = models.StateFromLive
			return state, markers
		}
	}

	var fromWarehouse *models.EntityState
	if a.warehouse != nil {
		rec, err := a.warehouse.EntityRecord(ctx, entityID)
		if err != nil {
			markers = append(markers, utils.MarkerFor(stageTimeline, "state/warehouse", err))
		} else if rec != nil {
			fromWarehouse = &models.EntityState{
				EntityID:   entityID,
				State:      rec.State,
				Source:     models.StateFromWarehouse,
				ObservedAt: rec.UpdatedAt,
			}
			if a.now().Sub(rec.UpdatedAt) <= a.cfg.ETLLag {
				return fromWarehouse, markers
			}
		}
	}

	fromLogs, err := a.logState(ctx, entityID)
	if err != nil {
		markers = append(markers, utils.MarkerFor(stageTimeline, "state/logs", err))
	}
	switch {
	case fromWarehouse == nil:
		return fromLogs, markers
	case fromLogs != nil && fromLogs.ObservedAt.After(fromWarehouse.ObservedAt.Add(a.cfg.ETLLag)):
		return fromLogs, markers
	default:
		return fromWarehouse, markers
	}
}

func (a *TimelineAggregator) logState(ctx context.Context, entityID string) (*models.EntityState, error) {
	if a.logs == nil || a.cfg.EntityLogField == "" {
		return nil, nil
	}
	now := a.now()
	records, err := a.logs.QueryLogs(ctx, models.LogQuery{
		Start:       now.Add(-a.cfg.LogLookback),
		End:         now,
		Identifiers: map[string]string{a.cfg.EntityLogField: entityID},
		Limit:       a.limit,
	})
	if err != nil || len(records) == 0 {
		return nil, err
	}
	latest := records[0]
	for _, r := range records[1:] {
		if r.Timestamp.After(latest.Timestamp) {
			latest = r
		}
	}
	return &models.EntityState{
		EntityID:   entityID,
		State:      firstNonEmpty(latest.Field("state"), latest.Field("status"), "observed"),
		Source:     models.StateFromLogs,
		ObservedAt: latest.Timestamp,
		Attributes: map[string]string{"service": latest.Service, "level": string(latest.Severity)},
	}, nil
}

func (a *TimelineAggregator) warehouseBranch(key string) BranchFunc {
	return func(ctx context.Context, entityID string) ([]models.Row, []models.TimelineEvent, error) {
		if a.warehouse == nil {
			return nil, nil, utils.ErrNotConfigured
		}
		rows, err := a.warehouse.BranchRows(ctx, key, entityID)
		if err != nil {
			return nil, nil, err
		}
		var events []models.TimelineEvent
		for _, row := range rows {
			raw, ok := row["ts"]
			if !ok || raw == "" {
				continue
			}
			ts, err := utils.ParseTimestamp(raw)
			if err != nil {
				continue
			}
			attrs := make(map[string]string, len(row))
			for k, v := range row {
				if k != "ts" {
					attrs[k] = v
				}
			}
			events = append(events, models.TimelineEvent{
				Time:       ts,
				Event:      describeRow(key, row),
				Severity:   rowSeverity(key, row),
				Attributes: attrs,
			})
		}
		return rows, events, nil
	}
}

func (a *TimelineAggregator) outboundCalls(ctx context.Context, entityID string) ([]models.Row, []models.TimelineEvent, error) {
	if a.logs == nil {
		return nil, nil, utils.ErrNotConfigured
	}
	now := a.now()
	records, err := a.logs.QueryLogs(ctx, models.LogQuery{
		Start:       now.Add(-a.cfg.LogLookback),
		End:         now,
		Keywords:    a.cfg.OutboundKeywords,
		Identifiers: map[string]string{a.cfg.EntityLogField: entityID},
		Limit:       a.limit,
	})
	if err != nil {
		return nil, nil, err
	}
	events := make([]models.TimelineEvent, 0, len(records))
	for _, r := range records {
		sev := models.SeverityLow
		if r.Severity.IsError() {
			sev = models.SeverityHigh
		}
		attrs := map[string]string{"service": r.Service, "source": r.Source}
		if r.CorrelationID != "" {
			attrs["correlation_id"] = r.CorrelationID
		}
		events = append(events, models.TimelineEvent{Time: r.Timestamp, Event: r.Body, Severity: sev, Attributes: attrs})
	}
	return nil, events, nil
}

func describeRow(key string, row models.Row) string {
	switch key {
	case models.BranchCreationSource:
		return "created via " + firstNonEmpty(row["source"], "unknown source")
	case models.BranchFileStats:
		return fmt.Sprintf("file %s received (%s records)", row["file_name"], firstNonEmpty(row["record_count"], "?"))
	case models.BranchProcessingStats:
		return strings.TrimSpace(fmt.Sprintf("%s %s", row["stage"], row["status"]))
	case models.BranchErrorSummary:
		return fmt.Sprintf("%s x%s", row["code"], firstNonEmpty(row["occurrences"], "1"))
	case models.BranchNetworkStatus:
		return strings.TrimSpace(fmt.Sprintf("%s %s %s", row["relation"], row["partner_id"], row["status"]))
	}
	keys := make([]string, 0, len(row))
	for k := range row {
		if k != "ts" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + row[k]
	}
	return key + " " + strings.Join(parts, " ")
}

func rowSeverity(key string, row models.Row) models.Severity {
	if key == models.BranchErrorSummary {
		return models.SeverityHigh
	}
	status := strings.ToLower(row["status"])
	switch {
	case strings.Contains(status, "fail"), strings.Contains(status, "error"), strings.Contains(status, "reject"):
		return models.SeverityHigh
	case strings.Contains(status, "inactive"), strings.Contains(status, "suspend"), strings.Contains(status, "pending"):
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
