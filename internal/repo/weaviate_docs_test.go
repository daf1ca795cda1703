package repo

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/config"
)

func TestWeaviateDocsSearchCachesAndRanks(t *testing.T) {
	var hits int
	docs := NewWeaviateDocs(config.WeaviateConfig{Endpoint: "https://weaviate.test", APIKey: "k"}, newStubCache(), time.Minute)
	docs.http.httpClient = newTestClient(roundTripFunc(func(req *http.Request) (*http.Response, error) {
		hits++
		if req.URL.Path != "/v1/graphql" {
			t.Fatalf("unexpected path: %s", req.URL.Path)
		}
		if req.Header.Get("Authorization") != "Bearer k" {
			t.Fatalf("missing bearer token")
		}
		var gql map[string]string
		_ = json.NewDecoder(req.Body).Decode(&gql)
		if !strings.Contains(gql["query"], `valueText: "ledger"`) || !strings.Contains(gql["query"], "DocChunk(") {
			t.Fatalf("unexpected query %s", gql["query"])
		}
		return jsonResponse(http.StatusOK, `{"data":{"Get":{"DocChunk":[
			{"title":"Retry policy","text":"Posting retries are expected","service":"ledger","category":"runbook","_additional":{"certainty":0.7}},
			{"title":"Posting failures","text":"Escalate when","service":"ledger","category":"runbook","_additional":{"certainty":0.9}}]}}}`), nil
	}))

	ctx := context.Background()
	first, err := docs.SearchDocs(ctx, "ledger", "runbook", "posting failed", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(first) != 2 || first[0].Title != "Posting failures" {
		t.Fatalf("expected snippets ranked by certainty, got %+v", first)
	}
	if _, err := docs.SearchDocs(ctx, "ledger", "runbook", "posting failed", 2); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected cached second call, got %d hits", hits)
	}
}

func TestWeaviateDocsGraphQLErrors(t *testing.T) {
	docs := NewWeaviateDocs(config.WeaviateConfig{Endpoint: "https://weaviate.test"}, nil, 0)
	docs.http.httpClient = newTestClient(roundTripFunc(func(*http.Request) (*http.Response, error) {
		return jsonResponse(http.StatusOK, `{"errors":[{"message":"class DocChunk not found"}]}`), nil
	}))
	if _, err := docs.SearchDocs(context.Background(), "", "", "x", 1); err == nil || !strings.Contains(err.Error(), "not found") {
		t.Fatalf("expected graphql error, got %v", err)
	}
}
