package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/engine/enginetest"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

func TestPatternExtractorDefaults(t *testing.T) {
	ex, err := NewPatternExtractor(config.DefaultIdentifierPatterns())
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	ids, err := ex.Extract(context.Background(), "Tracking number: 4815162342 failed, request id req-77aa21.")
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	got := map[models.IdentifierType]string{}
	for _, id := range ids {
		if id.Provenance != models.ProvenanceInferred {
			t.Fatalf("extracted ids must be inferred, got %+v", id)
		}
		got[id.Type] = id.Value
	}
	if got[models.IdentifierTracking] != "4815162342" || got[models.IdentifierRequest] != "req-77aa21" {
		t.Fatalf("unexpected identifiers %v", got)
	}
}

func TestPatternExtractorRejectsBadRegex(t *testing.T) {
	if _, err := NewPatternExtractor([]config.IdentifierPattern{{Type: models.IdentifierEntity, Regex: "["}}); err == nil {
		t.Fatalf("expected compile error")
	}
}

func TestChainExtractorKeepsPartialResults(t *testing.T) {
	chain := ChainExtractor{
		&enginetest.Extractor{Err: errors.New("model offline")},
		&enginetest.Extractor{Identifiers: []models.Identifier{{Type: models.IdentifierEntity, Value: "E-1"}}},
	}
	ids, err := chain.Extract(context.Background(), "entity E-1")
	if err == nil || len(ids) != 1 {
		t.Fatalf("expected partial results with error, got %v %v", ids, err)
	}
}
