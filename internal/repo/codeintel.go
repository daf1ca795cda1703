package repo

import (
	"context"
	"fmt"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/cache"
	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// CodeIntelClient wraps the remote code search and call-graph APIs.
type CodeIntelClient struct {
	http       jsonClient
	searchPath string
	graphPath  string
	cache      cache.Provider
	searchTTL  time.Duration
	graphTTL   time.Duration
}

// NewCodeIntelClient constructs a client targeting the configured code-intel service.
func NewCodeIntelClient(cfg config.CodeIntelConfig, cacheProvider cache.Provider, searchTTL, graphTTL time.Duration) *CodeIntelClient {
	if cacheProvider == nil {
		cacheProvider = cache.NoopProvider{}
	}
	return &CodeIntelClient{
		http:       newJSONClient("codeintel", cfg.BaseURL, cfg.Timeout),
		searchPath: firstNonEmpty(cfg.SearchPath, "/api/v1/code/search"),
		graphPath:  firstNonEmpty(cfg.GraphPath, "/api/v1/code/graph"),
		cache:      cacheProvider,
		searchTTL:  searchTTL,
		graphTTL:   graphTTL,
	}
}

// Name is the provenance tag attached to results.
func (c *CodeIntelClient) Name() string { return "codeintel" }

// SearchCode finds files defining or referencing symbol.
func (c *CodeIntelClient) SearchCode(ctx context.Context, symbol string, limit int) ([]models.CodeLocation, error) {
	if c == nil || !c.http.configured() {
		return nil, fmt.Errorf("codeintel base URL not configured")
	}

	key := fmt.Sprintf("codeintel:search:%d:%s", limit, symbol)
	var cached []models.CodeLocation
	if c.searchTTL > 0 && cache.GetJSON(ctx, c.cache, key, &cached) {
		return cached, nil
	}

	payload := map[string]any{"symbol": symbol, "limit": limit}
	var response struct {
		Results []struct {
			Repo   string  `json:"repo"`
			File   string  `json:"file"`
			Symbol string  `json:"symbol"`
			Line   int     `json:"line"`
			Score  float64 `json:"score"`
		} `json:"results"`
	}
	if err := c.http.postJSON(ctx, c.http.resolvePath(c.searchPath), payload, &response); err != nil {
		return nil, fmt.Errorf("codeintel search request failed: %w", err)
	}

	locations := make([]models.CodeLocation, 0, len(response.Results))
	for _, r := range response.Results {
		locations = append(locations, models.CodeLocation{
			Repo:       r.Repo,
			File:       r.File,
			Symbol:     firstNonEmpty(r.Symbol, symbol),
			Line:       r.Line,
			Score:      r.Score,
			Provenance: c.Name(),
		})
	}
	if len(locations) > 0 {
		_ = cache.SetJSON(ctx, c.cache, key, locations, c.searchTTL)
	}
	return locations, nil
}

// CallGraph retrieves calls reachable from symbol within depth hops. Graphs change only on deploy,
// so they are cached for graphTTL.
func (c *CodeIntelClient) CallGraph(ctx context.Context, symbol string, depth int) (*models.CallGraph, error) {
	if c == nil || !c.http.configured() {
		return nil, fmt.Errorf("codeintel base URL not configured")
	}

	key := fmt.Sprintf("codeintel:graph:%d:%s", depth, symbol)
	var cached models.CallGraph
	if c.graphTTL > 0 && cache.GetJSON(ctx, c.cache, key, &cached) {
		return &cached, nil
	}

	payload := map[string]any{"symbol": symbol, "depth": depth}
	var response struct {
		Root  string `json:"root"`
		Edges []struct {
			From  string `json:"from"`
			To    string `json:"to"`
			Depth int    `json:"depth"`
		} `json:"edges"`
	}
	if err := c.http.postJSON(ctx, c.http.resolvePath(c.graphPath), payload, &response); err != nil {
		return nil, fmt.Errorf("codeintel graph request failed: %w", err)
	}

	graph := models.CallGraph{Root: firstNonEmpty(response.Root, symbol), Depth: depth}
	for _, e := range response.Edges {
		if depth > 0 && e.Depth > depth {
			continue
		}
		graph.Edges = append(graph.Edges, models.CallEdge{From: e.From, To: e.To, Depth: e.Depth})
	}
	if len(graph.Edges) > 0 {
		_ = cache.SetJSON(ctx, c.cache, key, graph, c.graphTTL)
	}
	return &graph, nil
}
