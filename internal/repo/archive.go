package repo

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// ArchiveClient queries the historical log store using the Elasticsearch search DSL.
type ArchiveClient struct {
	http              jsonClient
	index             string
	timestampField    string
	messageField      string
	serviceField      string
	levelField        string
	correlationFields []string
}

// NewArchiveClient builds a historical-store client.
func NewArchiveClient(cfg config.ArchiveConfig, correlationFields []string) *ArchiveClient {
	c := &ArchiveClient{
		http:              newJSONClient("archive", cfg.BaseURL, cfg.Timeout),
		index:             firstNonEmpty(cfg.Index, "logs-*"),
		timestampField:    firstNonEmpty(cfg.TimestampField, "@timestamp"),
		messageField:      firstNonEmpty(cfg.MessageField, "message"),
		serviceField:      firstNonEmpty(cfg.ServiceField, "service"),
		levelField:        firstNonEmpty(cfg.LevelField, "level"),
		correlationFields: correlationFields,
	}
	if cfg.APIToken != "" {
		c.http.headers["X-API-TOKEN"] = cfg.APIToken
	}
	return c
}

// Name identifies the backend in markers and metrics.
func (c *ArchiveClient) Name() string { return "archive" }

// QueryLogs runs q as a bool query sorted by timestamp.
func (c *ArchiveClient) QueryLogs(ctx context.Context, q models.LogQuery) ([]models.EvidenceRecord, error) {
	if c == nil || !c.http.configured() {
		return nil, fmt.Errorf("archive base URL not configured")
	}

	body, err := json.Marshal(c.BuildQuery(q))
	if err != nil {
		return nil, fmt.Errorf("marshal archive query: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.http.resolvePath("/"+c.index+"/_search"), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var response struct {
		Hits struct {
			Hits []struct {
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(&response); err != nil {
		return nil, fmt.Errorf("decode archive response: %w", err)
	}

	records := make([]models.EvidenceRecord, 0, len(response.Hits.Hits))
	for _, hit := range response.Hits.Hits {
		records = append(records, c.toRecord(hit.Source, q.Service))
	}
	return records, nil
}

// BuildQuery renders q as an Elasticsearch bool query.
func (c *ArchiveClient) BuildQuery(q models.LogQuery) map[string]any {
	must := []map[string]any{{
		"range": map[string]any{
			c.timestampField: map[string]any{
				"gte": q.Start.UTC().Format(time.RFC3339),
				"lt":  q.End.UTC().Format(time.RFC3339),
			},
		},
	}}
	if q.Service != "" {
		must = append(must, map[string]any{"term": map[string]any{c.serviceField + ".keyword": q.Service}})
	}
	if len(q.Levels) > 0 {
		levels := make([]string, 0, len(q.Levels))
		for _, l := range q.Levels {
			levels = append(levels, string(l))
		}
		must = append(must, map[string]any{"terms": map[string]any{c.levelField + ".keyword": levels}})
	}
	if len(q.Identifiers) > 0 {
		var should []map[string]any
		for _, field := range sortedKeys(q.Identifiers) {
			value := q.Identifiers[field]
			should = append(should,
				map[string]any{"term": map[string]any{field + ".keyword": value}},
				map[string]any{"match_phrase": map[string]any{c.messageField: value}},
			)
		}
		must = append(must, anyOf(should))
	}
	if q.CorrelationID != "" {
		should := make([]map[string]any, 0, len(c.correlationFields)+1)
		for _, f := range c.correlationFields {
			should = append(should, map[string]any{"term": map[string]any{f + ".keyword": q.CorrelationID}})
		}
		should = append(should, map[string]any{"match_phrase": map[string]any{c.messageField: q.CorrelationID}})
		must = append(must, anyOf(should))
	}
	if len(q.Keywords) > 0 {
		should := make([]map[string]any, 0, len(q.Keywords))
		for _, k := range q.Keywords {
			should = append(should, map[string]any{"match_phrase": map[string]any{c.messageField: k}})
		}
		must = append(must, anyOf(should))
	}

	size := q.Limit
	if size <= 0 {
		size = 500
	}
	return map[string]any{
		"query": map[string]any{"bool": map[string]any{"must": must}},
		"sort":  []map[string]any{{c.timestampField: map[string]any{"order": "asc"}}},
		"size":  size,
	}
}

func anyOf(should []map[string]any) map[string]any {
	return map[string]any{"bool": map[string]any{"should": should, "minimum_should_match": 1}}
}

func (c *ArchiveClient) toRecord(source map[string]any, service string) models.EvidenceRecord {
	fields := make(map[string]string, len(source))
	for k, v := range source {
		if s, ok := stringify(v); ok {
			fields[k] = s
		}
	}
	ts, _ := time.Parse(time.RFC3339Nano, fields[c.timestampField])
	rec := models.EvidenceRecord{
		Source:    c.Name(),
		Backend:   models.BackendHistorical,
		Service:   firstNonEmpty(fields[c.serviceField], service),
		Timestamp: ts.UTC(),
		Severity:  models.ParseLogLevel(fields[c.levelField]),
		Body:      fields[c.messageField],
		TraceID:   fields["trace_id"],
	}
	for _, f := range c.correlationFields {
		if v := fields[f]; v != "" && f != "trace_id" {
			rec.CorrelationID = v
			break
		}
	}
	delete(fields, c.messageField)
	delete(fields, c.timestampField)
	rec.Fields = fields
	return rec
}
