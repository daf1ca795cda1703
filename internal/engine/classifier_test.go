package engine

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/engine/enginetest"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

func timeoutCluster(id string) models.PatternCluster {
	rep := logRecord("ingest", t0, models.LevelError, "CarrierClient.Post upstream timeout for tracking 123456",
		map[string]string{"call_path": "Handler.Submit -> CarrierClient.Post -> HTTPClient.Do", "tracking_id": "123456"})
	return models.PatternCluster{
		ID:             id,
		Template:       []string{"CarrierClient.Post", "upstream", "timeout", "for", "tracking", "<NUM>"},
		Count:          10,
		Representative: rep,
		FirstSeen:      t0,
		LastSeen:       t0,
		Services:       []string{"ingest"},
		Severities:     map[models.LogLevel]int{models.LevelError: 10},
	}
}

func classifierDeps() (Dependencies, *enginetest.Reasoner) {
	reasoner := &enginetest.Reasoner{
		ByKeyword: map[string]models.ReasoningOutput{
			"timeout": {Verdict: models.VerdictRealError, Confidence: 0.6, Explanation: "carrier timed out"},
		},
		Default: models.ReasoningOutput{Verdict: models.VerdictExpected, Confidence: 0.8},
	}
	return Dependencies{
		CodeSearchers: []CodeSearcher{
			&enginetest.CodeSearch{NameValue: "codeintel", Results: map[string][]models.CodeLocation{
				"CarrierClient.Post": {{Repo: "ingest", File: "carrier/client.go", Score: 0.6, Provenance: "codeintel"}},
			}},
			&enginetest.CodeSearch{NameValue: "codeindex", Results: map[string][]models.CodeLocation{
				"CarrierClient.Post": {{Repo: "ingest", File: "carrier/client.go", Score: 0.9, Provenance: "codeindex"}},
			}},
		},
		CodeGraph: &enginetest.CodeGraph{Graphs: map[string]*models.CallGraph{"Handler.Submit": ptrGraph(testGraph())}},
		Status: &enginetest.Status{States: map[string]*models.EntityState{
			"123456": {EntityID: "123456", State: "in_transit"},
		}},
		Docs:     &enginetest.Docs{Snippets: []models.DocSnippet{{Title: "Carrier timeouts", Text: "Retry after 5 minutes", Score: 0.8}}},
		Reasoner: reasoner,
	}, reasoner
}

func ptrGraph(g models.CallGraph) *models.CallGraph { return &g }

func trackingIDs() models.IdentifierSet {
	return models.NewIdentifierSet(models.Identifier{Type: models.IdentifierTracking, Value: "123456", Provenance: models.ProvenanceConfirmed})
}

func TestClassifierAssemblesContext(t *testing.T) {
	deps, reasoner := classifierDeps()
	c := NewClassifier(deps, config.Default().Classifier, nil, discardLogger())

	got := c.Classify(context.Background(), timeoutCluster("pattern-1"), testWindow(), trackingIDs())

	if got.Verdict != models.VerdictRealError || got.ModelConfidence != 0.6 {
		t.Fatalf("unexpected verdict %+v", got)
	}
	want := 1 - (1-0.6)*(1-0.27)*(1-0)*(1-0.2)
	if math.Abs(got.Confidence-want) > 1e-9 {
		t.Fatalf("expected confidence %.4f, got %.4f", want, got.Confidence)
	}
	if got.Confidence < got.ModelConfidence {
		t.Fatalf("corroboration must not lower confidence")
	}
	if got.CodeReference == nil || got.CodeReference.Provenance != "codeindex" || len(got.CodeCandidates) != 1 {
		t.Fatalf("expected merged code reference, got %+v", got.CodeCandidates)
	}
	if got.Flow == nil || got.Flow.Similarity != 1 {
		t.Fatalf("expected full flow match, got %+v", got.Flow)
	}
	if len(got.EntityStates) != 1 || got.EntityStates[0].State != "in_transit" {
		t.Fatalf("expected entity state, got %+v", got.EntityStates)
	}
	if len(got.Docs) != 1 {
		t.Fatalf("expected docs, got %+v", got.Docs)
	}
	inputs := reasoner.Inputs()
	if len(inputs) != 1 || inputs[0].CodeReference == nil || inputs[0].Flow == nil || inputs[0].Occurrences != 10 {
		t.Fatalf("reasoner received incomplete context %+v", inputs)
	}
}

func TestClassifierReasonerFailureKeepsCluster(t *testing.T) {
	deps, _ := classifierDeps()
	deps.Reasoner = &enginetest.Reasoner{Err: errors.New("rate limited")}
	c := NewClassifier(deps, config.Default().Classifier, nil, discardLogger())

	got := c.Classify(context.Background(), timeoutCluster("pattern-2"), testWindow(), trackingIDs())
	if got.Verdict != models.VerdictUnknown || got.Confidence != 0 {
		t.Fatalf("expected unknown verdict, got %+v", got)
	}
	if len(got.Markers) != 1 || got.Markers[0].Kind != models.KindClassificationUnavailable || got.Markers[0].Scope != "pattern-2" {
		t.Fatalf("expected classification marker, got %+v", got.Markers)
	}
	if got.CodeReference == nil {
		t.Fatalf("context gathered before the failure should be kept")
	}
}

func TestClassifierWithoutReasoner(t *testing.T) {
	c := NewClassifier(Dependencies{}, config.Default().Classifier, nil, discardLogger())
	got := c.Classify(context.Background(), timeoutCluster("pattern-3"), testWindow(), trackingIDs())
	if got.Verdict != models.VerdictUnknown || len(got.Markers) != 1 {
		t.Fatalf("expected unknown with marker, got %+v", got)
	}
}

func TestClassifierCapabilityFailuresAreMarkers(t *testing.T) {
	deps, _ := classifierDeps()
	deps.CodeSearchers = []CodeSearcher{&enginetest.CodeSearch{NameValue: "codeintel", Err: errors.New("502")}}
	deps.Status = &enginetest.Status{Err: errors.New("status down")}
	c := NewClassifier(deps, config.Default().Classifier, nil, discardLogger())

	got := c.Classify(context.Background(), timeoutCluster("pattern-4"), testWindow(), trackingIDs())
	if got.Verdict != models.VerdictRealError {
		t.Fatalf("reasoning should still run, got %+v", got)
	}
	if len(got.Markers) != 2 {
		t.Fatalf("expected code search and status markers, got %+v", got.Markers)
	}
}

func TestClassifyAllPreservesOrder(t *testing.T) {
	deps, _ := classifierDeps()
	cfg := config.Default().Classifier
	cfg.Workers = 2
	c := NewClassifier(deps, cfg, nil, discardLogger())

	clusters := make([]models.PatternCluster, 5)
	for i := range clusters {
		clusters[i] = timeoutCluster(fmt.Sprintf("pattern-%d", i+1))
	}
	clusters[2].Template = []string{"heartbeat", "ok"}

	got := c.ClassifyAll(context.Background(), clusters, testWindow(), trackingIDs())
	for i, cls := range got {
		if cls.PatternID != clusters[i].ID {
			t.Fatalf("slot %d holds %s", i, cls.PatternID)
		}
	}
	if got[2].Verdict != models.VerdictExpected {
		t.Fatalf("expected heartbeat to be expected behaviour, got %s", got[2].Verdict)
	}
}
