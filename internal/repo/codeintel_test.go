package repo

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/config"
)

func TestCodeIntelCallGraphCachesResults(t *testing.T) {
	var hits int
	client := NewCodeIntelClient(config.CodeIntelConfig{BaseURL: "https://code.test"}, newStubCache(), time.Minute, time.Minute)
	client.http.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.URL.Path != "/api/v1/code/graph" {
			t.Fatalf("unexpected path %s", req.URL.Path)
		}
		return jsonResponse(http.StatusOK, `{"root":"Handler.Post","edges":[{"from":"Handler.Post","to":"Ledger.Write","depth":1},{"from":"Ledger.Write","to":"DB.Exec","depth":2},{"from":"DB.Exec","to":"Pool.Get","depth":5}]}`), nil
	}))

	ctx := context.Background()
	first, err := client.CallGraph(ctx, "Handler.Post", 4)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first.Edges) != 2 {
		t.Fatalf("expected edges beyond depth to be dropped, got %+v", first.Edges)
	}
	second, err := client.CallGraph(ctx, "Handler.Post", 4)
	if err != nil {
		t.Fatalf("unexpected error on cached call: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected cached graph, got %d upstream calls", hits)
	}
	if second.Root != "Handler.Post" || len(second.Edges) != 2 {
		t.Fatalf("unexpected cached graph %+v", second)
	}
}

func TestCodeIntelSearchTagsProvenance(t *testing.T) {
	client := NewCodeIntelClient(config.CodeIntelConfig{BaseURL: "https://code.test"}, nil, 0, 0)
	client.http.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"results":[{"repo":"ledger","file":"internal/post.go","line":42,"score":0.8}]}`), nil
	}))
	locs, err := client.SearchCode(context.Background(), "PostEntry", 5)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(locs) != 1 || locs[0].Provenance != "codeintel" || locs[0].Symbol != "PostEntry" {
		t.Fatalf("unexpected locations %+v", locs)
	}
}
