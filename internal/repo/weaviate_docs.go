package repo

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// WeaviateDocs searches runbooks and service documentation stored in Weaviate.
type WeaviateDocs struct {
	http  jsonClient
	class string
	cache cache.Provider
	ttl   time.Duration
}

// NewWeaviateDocs constructs a documentation search client.
func NewWeaviateDocs(cfg config.WeaviateConfig, cacheProvider cache.Provider, ttl time.Duration) *WeaviateDocs {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	if ttl < 0 {
		ttl = 0
	}
	d := &WeaviateDocs{
		http:  newJSONClient("weaviate", cfg.Endpoint, cfg.Timeout),
		class: firstNonEmpty(cfg.Class, "DocChunk"),
		cache: cacheProvider,
		ttl:   ttl,
	}
	if cfg.APIKey != "" {
		d.http.headers["Authorization"] = "Bearer " + cfg.APIKey
	}
	return d
}

// SearchDocs returns snippets for service and category ranked by semantic closeness to query.
func (d *WeaviateDocs) SearchDocs(ctx context.Context, service, category, query string, limit int) ([]models.DocSnippet, error) {
	if d == nil || !d.http.configured() {
		return nil, fmt.Errorf("weaviate endpoint not configured")
	}
	if limit <= 0 {
		limit = 3
	}

	key := fmt.Sprintf("weaviate:docs:%s:%s:%d:%s", service, category, limit, query)
	var cached []models.DocSnippet
	if d.ttl > 0 && cache.GetJSON(ctx, d.cache, key, &cached) {
		return cached, nil
	}

	gql := map[string]any{"query": d.buildQuery(service, category, query, limit)}
	var response struct {
		Data struct {
			Get map[string][]struct {
				Title      string `json:"title"`
				Text       string `json:"text"`
				URL        string `json:"url"`
				Service    string `json:"service"`
				Category   string `json:"category"`
				Additional struct {
					Certainty float64 `json:"certainty"`
				} `json:"_additional"`
			} `json:"Get"`
		} `json:"data"`
		Errors []struct {
			Message string `json:"message"`
		} `json:"errors"`
	}
	if err := d.http.postJSON(ctx, d.http.resolvePath("/v1/graphql"), gql, &response); err != nil {
		return nil, fmt.Errorf("weaviate docs request failed: %w", err)
	}
	if len(response.Errors) > 0 {
		return nil, fmt.Errorf("weaviate docs query: %s", response.Errors[0].Message)
	}

	hits := response.Data.Get[d.class]
	snippets := make([]models.DocSnippet, 0, len(hits))
	for _, h := range hits {
		snippets = append(snippets, models.DocSnippet{
			Service:  h.Service,
			Category: h.Category,
			Title:    h.Title,
			Text:     h.Text,
			URL:      h.URL,
			Score:    h.Additional.Certainty,
		})
	}
	sort.SliceStable(snippets, func(i, j int) bool { return snippets[i].Score > snippets[j].Score })

	if len(snippets) > 0 {
		_ = cache.SetJSON(ctx, d.cache, key, snippets, d.ttl)
	}
	return snippets, nil
}

func (d *WeaviateDocs) buildQuery(service, category, query string, limit int) string {
	var operands []string
	if service != "" {
		operands = append(operands, fmt.Sprintf(`{path: ["service"], operator: Equal, valueText: %s}`, strconv.Quote(service)))
	}
	if category != "" {
		operands = append(operands, fmt.Sprintf(`{path: ["category"], operator: Equal, valueText: %s}`, strconv.Quote(category)))
	}
	where := ""
	if len(operands) > 0 {
		where = fmt.Sprintf("where: {operator: And, operands: [%s]}", strings.Join(operands, ", "))
	}
	return fmt.Sprintf(`{
  Get {
    %s(
      limit: %d
      nearText: {concepts: [%s]}
      %s
    ) {
      title
      text
      url
      service
      category
      _additional { certainty }
    }
  }
}`, d.class, limit, strconv.Quote(query), where)
}
