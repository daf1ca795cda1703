// Package enginetest provides in-memory capability doubles for engine tests.
package enginetest

import (
	"context"
	"strings"
	"sync"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// Logs is an in-memory LogQuerier. Records are filtered the way the real stores filter them unless
// Respond is set.
type Logs struct {
	NameValue string
	Records   []models.EvidenceRecord
	Respond   func(q models.LogQuery) ([]models.EvidenceRecord, error)
	// Hang lists services whose queries wait until their context ends.
	Hang map[string]bool

	mu      sync.Mutex
	queries []models.LogQuery
}

// Name implements engine.LogQuerier.
func (l *Logs) Name() string {
	if l.NameValue == "" {
		return "fake-logs"
	}
	return l.NameValue
}

// QueryLogs implements engine.LogQuerier.
func (l *Logs) QueryLogs(ctx context.Context, q models.LogQuery) ([]models.EvidenceRecord, error) {
	l.mu.Lock()
	l.queries = append(l.queries, q)
	l.mu.Unlock()
	if l.Hang[q.Service] {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if l.Respond != nil {
		return l.Respond(q)
	}
	return Filter(l.Records, q), nil
}

// Queries returns a copy of every query received.
func (l *Logs) Queries() []models.LogQuery {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]models.LogQuery(nil), l.queries...)
}

// Filter applies q to records: time bounds, service, any-of identifiers, correlation id, any-of
// keywords, levels and limit.
func Filter(records []models.EvidenceRecord, q models.LogQuery) []models.EvidenceRecord {
	var out []models.EvidenceRecord
	for _, r := range records {
		if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
			continue
		}
		if !q.End.IsZero() && !r.Timestamp.Before(q.End) {
			continue
		}
		if q.Service != "" && r.Service != q.Service {
			continue
		}
		if len(q.Identifiers) > 0 && !anyIdentifier(r, q.Identifiers) {
			continue
		}
		if q.CorrelationID != "" && r.Field("correlation_id") != q.CorrelationID && r.Field("trace_id") != q.CorrelationID {
			continue
		}
		if len(q.Keywords) > 0 && !anyKeyword(r.Body, q.Keywords) {
			continue
		}
		if len(q.Levels) > 0 && !hasLevel(r.Severity, q.Levels) {
			continue
		}
		out = append(out, r)
		if q.Limit > 0 && len(out) >= q.Limit {
			break
		}
	}
	return out
}

func anyIdentifier(r models.EvidenceRecord, ids map[string]string) bool {
	for field, value := range ids {
		if r.Field(field) == value || strings.Contains(r.Body, value) {
			return true
		}
	}
	return false
}

func anyKeyword(body string, keywords []string) bool {
	body = strings.ToLower(body)
	for _, kw := range keywords {
		if strings.Contains(body, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

func hasLevel(level models.LogLevel, levels []models.LogLevel) bool {
	for _, l := range levels {
		if l == level {
			return true
		}
	}
	return false
}

// Warehouse is an in-memory engine.Warehouse. Err, when set, fails every lookup.
type Warehouse struct {
	Matches    map[string]*models.WarehouseMatch
	Failed     map[string]*models.WarehouseMatch
	Companies  map[string][]models.Company
	Lifecycles map[string]*models.Lifecycle
	Validation map[string][]models.ValidationError
	Records    map[string]*models.EntityRecord
	Keys       map[string]string
	Branches   map[string][]models.Row
	BranchErr  map[string]error
	Err        error
}

// Key indexes Matches and Failed.
func Key(kind models.IdentifierType, value string) string {
	return string(kind) + ":" + value
}

func (w *Warehouse) FindIdentifier(_ context.Context, kind models.IdentifierType, value string) (*models.WarehouseMatch, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Matches[Key(kind, value)], nil
}

func (w *Warehouse) FindFailedRecord(_ context.Context, kind models.IdentifierType, value string) (*models.WarehouseMatch, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Failed[Key(kind, value)], nil
}

func (w *Warehouse) FindCompanies(_ context.Context, name string) ([]models.Company, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Companies[strings.ToLower(name)], nil
}

func (w *Warehouse) Lifecycle(_ context.Context, entityID string) (*models.Lifecycle, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Lifecycles[entityID], nil
}

func (w *Warehouse) ValidationErrors(_ context.Context, entityID string) ([]models.ValidationError, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Validation[entityID], nil
}

func (w *Warehouse) EntityRecord(_ context.Context, entityID string) (*models.EntityRecord, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	return w.Records[entityID], nil
}

func (w *Warehouse) ResolveKey(_ context.Context, compound string) (string, error) {
	if w.Err != nil {
		return "", w.Err
	}
	id, ok := w.Keys[compound]
	if !ok {
		return "", models.Marker{Kind: models.KindResolutionAmbiguous, Stage: "warehouse", Message: "unknown key " + compound}
	}
	return id, nil
}

func (w *Warehouse) BranchRows(ctx context.Context, branch, _ string) ([]models.Row, error) {
	if w.Err != nil {
		return nil, w.Err
	}
	if err := w.BranchErr[branch]; err != nil {
		return nil, err
	}
	return w.Branches[branch], ctx.Err()
}

// CodeSearch is an engine.CodeSearcher returning canned locations per symbol.
type CodeSearch struct {
	NameValue string
	Results   map[string][]models.CodeLocation
	Err       error
}

func (c *CodeSearch) Name() string { return c.NameValue }

func (c *CodeSearch) SearchCode(_ context.Context, symbol string, limit int) ([]models.CodeLocation, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	out := c.Results[symbol]
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// CodeGraph is an engine.CodeGraph returning canned graphs per root symbol.
type CodeGraph struct {
	Graphs map[string]*models.CallGraph
	Err    error
}

func (c *CodeGraph) CallGraph(_ context.Context, symbol string, _ int) (*models.CallGraph, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	return c.Graphs[symbol], nil
}

// Docs is an engine.DocSearcher.
type Docs struct {
	Snippets []models.DocSnippet
	Err      error
}

func (d *Docs) SearchDocs(_ context.Context, _, _, _ string, limit int) ([]models.DocSnippet, error) {
	if d.Err != nil {
		return nil, d.Err
	}
	if limit > 0 && len(d.Snippets) > limit {
		return d.Snippets[:limit], nil
	}
	return d.Snippets, nil
}

// Status is an engine.StatusLookup.
type Status struct {
	States map[string]*models.EntityState
	Err    error
}

func (s *Status) EntityStatus(_ context.Context, entityID string) (*models.EntityState, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	st, ok := s.States[entityID]
	if !ok {
		return nil, nil
	}
	cp := *st
	return &cp, nil
}

// Reasoner is an engine.Reasoner answering by template keyword. The first key contained in the
// template wins; Default answers everything else.
type Reasoner struct {
	ByKeyword map[string]models.ReasoningOutput
	Default   models.ReasoningOutput
	Err       error

	mu     sync.Mutex
	inputs []models.ReasoningInput
}

func (r *Reasoner) Classify(ctx context.Context, in models.ReasoningInput) (models.ReasoningOutput, error) {
	r.mu.Lock()
	r.inputs = append(r.inputs, in)
	r.mu.Unlock()
	if r.Err != nil {
		return models.ReasoningOutput{}, r.Err
	}
	if err := ctx.Err(); err != nil {
		return models.ReasoningOutput{}, err
	}
	for kw, out := range r.ByKeyword {
		if strings.Contains(in.Template, kw) {
			return out, nil
		}
	}
	return r.Default, nil
}

// Inputs returns every reasoning input received.
func (r *Reasoner) Inputs() []models.ReasoningInput {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.ReasoningInput(nil), r.inputs...)
}

// Extractor is an engine.Extractor returning fixed identifiers.
type Extractor struct {
	Identifiers []models.Identifier
	Err         error
}

func (e *Extractor) Extract(context.Context, string) ([]models.Identifier, error) {
	return e.Identifiers, e.Err
}
