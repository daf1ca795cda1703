package engine

import (
	"context"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

// LogQuerier runs one log query against a recent or historical store.
type LogQuerier interface {
	Name() string
	QueryLogs(ctx context.Context, q models.LogQuery) ([]models.EvidenceRecord, error)
}

// Warehouse answers authoritative lookups. Lookups return nil (or an empty slice) without error
// when nothing matches.
type Warehouse interface {
	FindIdentifier(ctx context.Context, kind models.IdentifierType, value string) (*models.WarehouseMatch, error)
	FindFailedRecord(ctx context.Context, kind models.IdentifierType, value string) (*models.WarehouseMatch, error)
	FindCompanies(ctx context.Context, name string) ([]models.Company, error)
	Lifecycle(ctx context.Context, entityID string) (*models.Lifecycle, error)
	ValidationErrors(ctx context.Context, entityID string) ([]models.ValidationError, error)
	EntityRecord(ctx context.Context, entityID string) (*models.EntityRecord, error)
	ResolveKey(ctx context.Context, compound string) (string, error)
	BranchRows(ctx context.Context, branch, entityID string) ([]models.Row, error)
}

// CodeSearcher finds code locations for a symbol.
type CodeSearcher interface {
	Name() string
	SearchCode(ctx context.Context, symbol string, limit int) ([]models.CodeLocation, error)
}

// CodeGraph expands the calls reachable from a symbol.
type CodeGraph interface {
	CallGraph(ctx context.Context, symbol string, depth int) (*models.CallGraph, error)
}

// DocSearcher looks up documentation snippets.
type DocSearcher interface {
	SearchDocs(ctx context.Context, service, category, query string, limit int) ([]models.DocSnippet, error)
}

// StatusLookup reads the live state of an entity. A nil state means the entity is unknown.
type StatusLookup interface {
	EntityStatus(ctx context.Context, entityID string) (*models.EntityState, error)
}

// Reasoner turns an assembled context into a verdict.
type Reasoner interface {
	Classify(ctx context.Context, in models.ReasoningInput) (models.ReasoningOutput, error)
}

// Extractor pulls candidate identifiers out of free text.
type Extractor interface {
	Extract(ctx context.Context, text string) ([]models.Identifier, error)
}

// Dependencies bundles the capabilities an Investigator or TimelineAggregator may use. Nil fields
// disable the corresponding feature.
type Dependencies struct {
	Warehouse     Warehouse
	Recent        LogQuerier
	Historical    LogQuerier
	CodeSearchers []CodeSearcher
	CodeGraph     CodeGraph
	Docs          DocSearcher
	Status        StatusLookup
	Reasoner      Reasoner
	Extractor     Extractor
	Rules         *RuleEngine
}
