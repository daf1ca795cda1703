package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

const stageResolve = "resolve"

// Resolution is the outcome of identifier resolution.
type Resolution struct {
	Identifiers models.IdentifierSet
	// Broadened is set when a company name could not be pinned to exactly one company and the
	// company filter was dropped.
	Broadened bool
	Markers   []models.Marker
}

// Resolver turns a request into a confirmed identifier set.
type Resolver struct {
	warehouse Warehouse
	extractor Extractor
	logger    *slog.Logger
}

// NewResolver constructs a Resolver. Either capability may be nil.
func NewResolver(warehouse Warehouse, extractor Extractor, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{warehouse: warehouse, extractor: extractor, logger: logger}
}

// Resolve collects caller-supplied identifiers (treated as provided), adds identifiers inferred from
// the description, then confirms what it can against the warehouse. Warehouse failures degrade to
// inferred identifiers and a marker.
func (r *Resolver) Resolve(ctx context.Context, req models.InvestigationRequest) Resolution {
	res := Resolution{Identifiers: models.NewIdentifierSet()}

	types := make([]string, 0, len(req.Identifiers))
	for t := range req.Identifiers {
		types = append(types, string(t))
	}
	sort.Strings(types)
	for _, t := range types {
		res.Identifiers.Add(models.Identifier{
			Type:       models.IdentifierType(t),
			Value:      strings.TrimSpace(req.Identifiers[models.IdentifierType(t)]),
			Confidence: 1,
			Provenance: models.ProvenanceProvided,
			Source:     "request",
		})
	}

	if r.extractor != nil && strings.TrimSpace(req.Description) != "" {
		ids, err := r.extractor.Extract(ctx, req.Description)
		if err != nil {
			r.logger.Warn("identifier extraction degraded", slog.Any("error", err))
			res.Markers = append(res.Markers, models.Marker{
				Kind: models.KindSourceUnavailable, Stage: stageResolve, Scope: "extractor", Message: err.Error(),
			})
		}
		for _, id := range ids {
			id.Provenance = models.ProvenanceInferred
			res.Identifiers.Add(id)
		}
	}

	if r.warehouse == nil {
		if res.Identifiers.Len() > 0 {
			res.Markers = append(res.Markers, models.Marker{
				Kind: models.KindSourceUnavailable, Stage: stageResolve, Scope: "warehouse",
				Message: "warehouse not configured; identifiers left unconfirmed",
			})
		}
		res.Broadened = res.Identifiers.Value(models.IdentifierCompanyName) != ""
		return res
	}

	if err := r.confirm(ctx, &res); err != nil {
		r.logger.Warn("warehouse confirmation degraded", slog.Any("error", err))
		res.Markers = append(res.Markers, utils.MarkerFor(stageResolve, "warehouse", err))
		return res
	}
	r.resolveCompany(ctx, &res)
	return res
}

var confirmable = map[models.IdentifierType]bool{
	models.IdentifierEntity:   true,
	models.IdentifierTracking: true,
	models.IdentifierRequest:  true,
}

// confirm looks each unconfirmed identifier up in the exact-match table, then among failed records.
// The first warehouse error aborts confirmation.
func (r *Resolver) confirm(ctx context.Context, res *Resolution) error {
	for _, id := range res.Identifiers.All() {
		if !confirmable[id.Type] || id.Provenance == models.ProvenanceConfirmed {
			continue
		}
		if id.Type == models.IdentifierEntity {
			rec, err := r.warehouse.EntityRecord(ctx, id.Value)
			if err != nil {
				return fmt.Errorf("confirm %s: %w", id.Type, err)
			}
			if rec != nil {
				res.Identifiers.Add(confirmed(id.Type, id.Value, "entities"))
				if rec.CompanyID != "" {
					res.Identifiers.Add(confirmed(models.IdentifierCompany, rec.CompanyID, "entities"))
				}
			}
			continue
		}

		match, err := r.warehouse.FindIdentifier(ctx, id.Type, id.Value)
		if err != nil {
			return fmt.Errorf("confirm %s: %w", id.Type, err)
		}
		if match == nil {
			if match, err = r.warehouse.FindFailedRecord(ctx, id.Type, id.Value); err != nil {
				return fmt.Errorf("confirm %s in failed records: %w", id.Type, err)
			}
		}
		if match == nil {
			r.logger.Debug("identifier unconfirmed", slog.String("type", string(id.Type)), slog.String("value", id.Value))
			continue
		}
		res.Identifiers.Add(confirmed(id.Type, id.Value, match.Table))
		if match.EntityID != "" {
			res.Identifiers.Add(confirmed(models.IdentifierEntity, match.EntityID, match.Table))
		}
		if match.CompanyID != "" {
			res.Identifiers.Add(confirmed(models.IdentifierCompany, match.CompanyID, match.Table))
		}
	}
	return nil
}

// resolveCompany pins a company name to a company id. Zero or several matches drop the company
// filter instead of risking a false negative.
func (r *Resolver) resolveCompany(ctx context.Context, res *Resolution) {
	name := res.Identifiers.Value(models.IdentifierCompanyName)
	if name == "" {
		return
	}
	if id, ok := res.Identifiers.Get(models.IdentifierCompany); ok && id.Provenance.Authoritative() {
		return
	}
	companies, err := r.warehouse.FindCompanies(ctx, name)
	if err != nil {
		r.logger.Warn("company lookup failed", slog.String("company", name), slog.Any("error", err))
		res.Markers = append(res.Markers, utils.MarkerFor(stageResolve, "companies", err))
		res.Broadened = true
		return
	}
	if len(companies) == 1 {
		res.Identifiers.Add(confirmed(models.IdentifierCompany, companies[0].ID, "companies"))
		return
	}
	res.Broadened = true
	res.Markers = append(res.Markers, models.Marker{
		Kind:    models.KindResolutionAmbiguous,
		Stage:   stageResolve,
		Scope:   "companies",
		Message: fmt.Sprintf("company %q matched %d companies; searching without company filter", name, len(companies)),
	})
}

func confirmed(t models.IdentifierType, value, source string) models.Identifier {
	return models.Identifier{Type: t, Value: value, Confidence: 1, Provenance: models.ProvenanceConfirmed, Source: source}
}

// LogFilters maps the resolved identifiers onto log field filters using the configured patterns.
// Company ids only filter when nothing more specific is known and the company was not broadened.
func LogFilters(res Resolution, patterns []config.IdentifierPattern) map[string]string {
	fields := make(map[models.IdentifierType]string, len(patterns))
	for _, p := range patterns {
		if p.LogField != "" {
			fields[p.Type] = p.LogField
		}
	}
	filters := make(map[string]string)
	for _, id := range res.Identifiers.All() {
		if id.Type == models.IdentifierCompany || id.Type == models.IdentifierCompanyName {
			continue
		}
		if field, ok := fields[id.Type]; ok {
			filters[field] = id.Value
		}
	}
	if len(filters) == 0 && !res.Broadened {
		if id, ok := res.Identifiers.Get(models.IdentifierCompany); ok && id.Provenance.Authoritative() {
			if field, ok := fields[models.IdentifierCompany]; ok {
				filters[field] = id.Value
			}
		}
	}
	return filters
}
