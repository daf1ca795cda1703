package patterns

import (
	"testing"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

func TestNormalizedBodyHashCollapsesCosmeticDifferences(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := models.EvidenceRecord{Source: "victorialogs", Timestamp: ts, Body: "Payment  FAILED for 610038256 "}
	b := models.EvidenceRecord{Source: "victorialogs", Timestamp: ts, Body: "payment failed for 610038256"}

	var s DedupStrategy = NormalizedBodyHash{}
	if s.Key(a) != s.Key(b) {
		t.Fatalf("expected normalized keys to match")
	}
	if (ExactBody{}).Key(a) == (ExactBody{}).Key(b) {
		t.Fatalf("expected exact keys to differ")
	}

	c := b
	c.Source = "archive"
	if s.Key(b) == s.Key(c) {
		t.Fatalf("expected source to be part of the key")
	}
	d := b
	d.Timestamp = ts.Add(time.Millisecond)
	if s.Key(b) == s.Key(d) {
		t.Fatalf("expected timestamp to be part of the key")
	}
}

func TestNormalizedBodyHashKeepsVariableTokens(t *testing.T) {
	ts := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	a := models.EvidenceRecord{Source: "victorialogs", Timestamp: ts, Body: "payment failed for 610038256"}
	b := models.EvidenceRecord{Source: "victorialogs", Timestamp: ts, Body: "payment failed for 610038257"}

	if (NormalizedBodyHash{}).Key(a) == (NormalizedBodyHash{}).Key(b) {
		t.Fatalf("records for different ids at the same instant must stay distinct")
	}
	if got := NormalizeBody("  Timeout after\t3000 ms "); got != "timeout after 3000 ms" {
		t.Fatalf("unexpected normalized body %q", got)
	}
}

func TestStrategyFor(t *testing.T) {
	for name, want := range map[string]string{"": "normalized", "normalized": "normalized", "EXACT": "exact"} {
		s, err := StrategyFor(name)
		if err != nil || s.Name() != want {
			t.Fatalf("StrategyFor(%q) = %v, %v", name, s, err)
		}
	}
	if _, err := StrategyFor("fuzzy"); err == nil {
		t.Fatalf("expected error for unknown strategy")
	}
}
