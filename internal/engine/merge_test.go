package engine

import (
	"testing"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

func TestMergeCodeLocationsKeepsHigherScore(t *testing.T) {
	remote := []models.CodeLocation{
		{Repo: "ingest", File: "carrier/client.go", Score: 0.6, Provenance: "codeintel"},
		{Repo: "ingest", File: "carrier/retry.go", Score: 0.4, Provenance: "codeintel"},
	}
	local := []models.CodeLocation{
		{Repo: "ingest", File: "carrier/client.go", Score: 0.9, Provenance: "codeindex"},
	}

	merged := mergeCodeLocations(remote, local)
	if len(merged) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(merged))
	}
	if merged[0].File != "carrier/client.go" || merged[0].Score != 0.9 || merged[0].Provenance != "codeindex" {
		t.Fatalf("expected higher-scored duplicate first, got %+v", merged[0])
	}
}

func TestMergeByKeyFirstSeenOrder(t *testing.T) {
	got := MergeByKey(
		func(s string) string { return s[:1] },
		func(candidate, current string) bool { return len(candidate) > len(current) },
		[]string{"apple", "banana"},
		[]string{"avocado", "blueberry", "cherry"},
	)
	want := []string{"avocado", "blueberry", "cherry"}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v, want %v", got, want)
		}
	}
}
