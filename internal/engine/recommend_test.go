package engine

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

const testRules = `rules:
  - id: ingest-timeout
    match:
      verdict: real_error
      service: "ingest-*"
      template_contains: ["timeout"]
    recommendations: ["Raise the upstream timeout", "Check carrier API health"]
  - id: no-evidence
    match:
      reason: NO_EVIDENCE
    recommendations: ["Confirm log shipping for the service"]
  - id: any-real-error
    match:
      verdict: real_error
    recommendations: ["Check carrier API health"]
`

func TestRuleEngineRecommend(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	if err := os.WriteFile(path, []byte(testRules), 0644); err != nil {
		t.Fatalf("write rules: %v", err)
	}

	engine, err := NewRuleEngine(path, slog.New(slog.NewTextHandler(os.Stdout, nil)))
	if err != nil {
		t.Fatalf("new rule engine: %v", err)
	}
	if engine.Len() != 3 {
		t.Fatalf("expected 3 rules, got %d", engine.Len())
	}

	report := models.Report{
		Reason: models.ReasonCompleted,
		Patterns: []models.PatternSummary{{
			Cluster: models.PatternCluster{
				Template: []string{"upstream", "timeout", "after", "<NUM>", "ms"},
				Services: []string{"ingest-api"},
			},
			Classification: models.Classification{Verdict: models.VerdictRealError},
		}},
	}
	recs := engine.Recommend(report)
	if len(recs) != 2 {
		t.Fatalf("expected 2 unique recommendations, got %v", recs)
	}
	if recs[0] != "Raise the upstream timeout" {
		t.Fatalf("unexpected order: %v", recs)
	}
}

func TestRuleEngineReasonMatch(t *testing.T) {
	engine, err := ParseRules([]byte(testRules), nil)
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	recs := engine.Recommend(models.Report{Reason: models.ReasonNoEvidence})
	if len(recs) != 1 || recs[0] != "Confirm log shipping for the service" {
		t.Fatalf("unexpected recommendations %v", recs)
	}
}

func TestRuleEngineServiceGlobMismatch(t *testing.T) {
	engine, err := ParseRules([]byte(testRules), nil)
	if err != nil {
		t.Fatalf("parse rules: %v", err)
	}
	report := models.Report{
		Reason: models.ReasonCompleted,
		Patterns: []models.PatternSummary{{
			Cluster:        models.PatternCluster{Template: []string{"timeout"}, Services: []string{"billing"}},
			Classification: models.Classification{Verdict: models.VerdictExpected},
		}},
	}
	if recs := engine.Recommend(report); len(recs) != 0 {
		t.Fatalf("expected no recommendations, got %v", recs)
	}
}

func TestRuleEngineNoFile(t *testing.T) {
	engine, err := NewRuleEngine("non-existent", nil)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if engine != nil {
		t.Fatalf("expected nil engine when file missing")
	}
	if recs := engine.Recommend(models.Report{}); recs != nil {
		t.Fatalf("nil engine should recommend nothing")
	}
}

func TestDefaultRemediation(t *testing.T) {
	for _, reason := range []models.ReasonCode{models.ReasonNoEvidence, models.ReasonRetentionExceeded, models.ReasonCompleted} {
		if len(defaultRemediation(reason)) == 0 {
			t.Fatalf("expected default remediation for %s", reason)
		}
	}
}
