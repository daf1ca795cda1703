package engine

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	dps "github.com/markusmobius/go-dateparser"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const stageWindow = "window"

// WindowSelector picks the investigation window from the first available tier: entity lifecycle,
// validation error range, dates in the description, then report time.
type WindowSelector struct {
	warehouse Warehouse
	cfg       config.WindowConfig
	now       func() time.Time
	logger    *slog.Logger
}

// NewWindowSelector constructs a selector. Zero buffers take their defaults.
func NewWindowSelector(warehouse Warehouse, cfg config.WindowConfig, logger *slog.Logger) *WindowSelector {
	if logger == nil {
		logger = slog.Default()
	}
	defaults := config.Default().Window
	if cfg.LifecycleBuffer <= 0 {
		cfg.LifecycleBuffer = defaults.LifecycleBuffer
	}
	if cfg.ValidationBuffer <= 0 {
		cfg.ValidationBuffer = defaults.ValidationBuffer
	}
	if cfg.TextBuffer <= 0 {
		cfg.TextBuffer = defaults.TextBuffer
	}
	if cfg.ReportBuffer <= 0 {
		cfg.ReportBuffer = defaults.ReportBuffer
	}
	return &WindowSelector{warehouse: warehouse, cfg: cfg, now: time.Now, logger: logger}
}

// Select returns the chosen window and markers for warehouse lookups that failed along the way.
// Tiers are never combined; tier 4 always succeeds.
func (s *WindowSelector) Select(ctx context.Context, ids models.IdentifierSet, description string, reportedAt time.Time) (models.Window, []models.Marker) {
	var markers []models.Marker
	ref := reportedAt
	if ref.IsZero() {
		ref = s.now()
	}
	ref = ref.UTC()

	entityID := ids.Value(models.IdentifierEntity)
	if s.warehouse != nil && entityID != "" {
		verrs, err := s.warehouse.ValidationErrors(ctx, entityID)
		if err != nil {
			markers = append(markers, utils.MarkerFor(stageWindow, "validation_errors", err))
		}

		lc, err := s.warehouse.Lifecycle(ctx, entityID)
		if err != nil {
			markers = append(markers, utils.MarkerFor(stageWindow, "lifecycle", err))
		}
		if lc != nil && !lc.CreatedAt.IsZero() {
			if w, err := s.lifecycleWindow(*lc, verrs, ref); err == nil {
				return w, markers
			}
		}
		if w, ok := s.validationWindow(verrs); ok {
			return w, markers
		}
	}

	if dates := parseTextDates(description, ref); len(dates) > 0 {
		lo, hi := dates[0], dates[0]
		for _, d := range dates[1:] {
			if d.Before(lo) {
				lo = d
			}
			if d.After(hi) {
				hi = d
			}
		}
		reason := fmt.Sprintf("%d date(s) mentioned in description", len(dates))
		if w, err := models.NewWindow(lo.Add(-s.cfg.TextBuffer), hi.Add(s.cfg.TextBuffer), models.TierSourceText, reason); err == nil {
			return w, markers
		}
	}

	w, err := models.NewWindow(ref.Add(-s.cfg.ReportBuffer), ref.Add(s.cfg.ReportBuffer), models.TierReportTime, "around report time")
	if err != nil {
		// Unreachable with positive buffers; keep a valid window regardless.
		w, _ = models.NewWindow(ref.Add(-time.Hour), ref.Add(time.Hour), models.TierReportTime, "around report time")
	}
	return w, markers
}

// lifecycleWindow spans creation to termination (or ref for live entities) plus the buffer, expanded
// to cover validation errors that fall outside it.
func (s *WindowSelector) lifecycleWindow(lc models.Lifecycle, verrs []models.ValidationError, ref time.Time) (models.Window, error) {
	end := lc.TerminatedAt
	reason := "entity lifecycle created..terminated"
	if end.IsZero() {
		end = ref
		reason = "entity lifecycle created..now"
		if end.Before(lc.CreatedAt) {
			end = lc.CreatedAt
		}
	}
	w, err := models.NewWindow(lc.CreatedAt.Add(-s.cfg.LifecycleBuffer), end.Add(s.cfg.LifecycleBuffer), models.TierLifecycle, reason)
	if err != nil {
		return w, err
	}
	for _, v := range verrs {
		at := v.OccurredAt.UTC()
		if w.Contains(at) {
			continue
		}
		if lo := at.Add(-s.cfg.LifecycleBuffer); lo.Before(w.Start) {
			w.Start = lo
		}
		if hi := at.Add(s.cfg.LifecycleBuffer); hi.After(w.End) {
			w.End = hi
		}
		w.Expanded = true
		w.ExpansionReason = fmt.Sprintf("validation error %s at %s outside lifecycle", v.Code, at.Format(time.RFC3339))
	}
	return w, nil
}

func (s *WindowSelector) validationWindow(verrs []models.ValidationError) (models.Window, bool) {
	if len(verrs) == 0 {
		return models.Window{}, false
	}
	lo, hi := verrs[0].OccurredAt, verrs[0].OccurredAt
	for _, v := range verrs[1:] {
		if v.OccurredAt.Before(lo) {
			lo = v.OccurredAt
		}
		if v.OccurredAt.After(hi) {
			hi = v.OccurredAt
		}
	}
	reason := fmt.Sprintf("%d validation error(s)", len(verrs))
	w, err := models.NewWindow(lo.Add(-s.cfg.ValidationBuffer), hi.Add(s.cfg.ValidationBuffer), models.TierValidation, reason)
	return w, err == nil
}

var datePhrases = []*regexp.Regexp{
	regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2})?(?:Z|[+-]\d{2}:?\d{2})?)?\b`),
	regexp.MustCompile(`\b\d{1,2}/\d{1,2}/\d{2,4}(?:\s+\d{1,2}:\d{2})?\b`),
	regexp.MustCompile(`(?i)\b(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*\.?\s+\d{1,2}(?:st|nd|rd|th)?(?:,?\s+\d{4})?(?:\s+(?:at\s+)?\d{1,2}(?::\d{2})?\s*(?:am|pm)?)?\b`),
	regexp.MustCompile(`(?i)\b\d{1,2}(?:st|nd|rd|th)?\s+(?:jan|feb|mar|apr|may|jun|jul|aug|sep|sept|oct|nov|dec)[a-z]*(?:\s+\d{4})?\b`),
	regexp.MustCompile(`(?i)\b(?:yesterday|today|last night|\d+\s+(?:minutes?|hours?|days?|weeks?)\s+ago)\b`),
}

// parseTextDates finds date phrases in text and resolves them relative to ref. Dates more than a day
// after ref are dropped.
func parseTextDates(text string, ref time.Time) []time.Time {
	if text == "" {
		return nil
	}
	parser := dps.Parser{}
	cfg := &dps.Configuration{
		CurrentTime:         ref,
		PreferredDateSource: dps.Past,
	}

	seen := make(map[string]struct{})
	var out []time.Time
	for _, re := range datePhrases {
		for _, phrase := range re.FindAllString(text, -1) {
			if _, ok := seen[phrase]; ok {
				continue
			}
			seen[phrase] = struct{}{}
			parsed, err := parser.Parse(cfg, phrase)
			if err != nil || parsed.IsZero() {
				continue
			}
			t := parsed.Time.UTC()
			if t.After(ref.Add(24 * time.Hour)) {
				continue
			}
			out = append(out, t)
		}
	}
	return out
}
