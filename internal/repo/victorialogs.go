package repo

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

// VictoriaLogsClient queries the recent-log store with LogsQL.
type VictoriaLogsClient struct {
	http              jsonClient
	queryPath         string
	serviceField      string
	levelField        string
	correlationFields []string
}

// NewVictoriaLogsClient builds a client; correlationFields lists the structured fields that may carry
// a correlation or trace id.
func NewVictoriaLogsClient(cfg config.VictoriaLogsConfig, correlationFields []string) *VictoriaLogsClient {
	return &VictoriaLogsClient{
		http:              newJSONClient("victorialogs", cfg.BaseURL, cfg.Timeout),
		queryPath:         firstNonEmpty(cfg.QueryPath, "/select/logsql/query"),
		serviceField:      firstNonEmpty(cfg.ServiceField, "service"),
		levelField:        firstNonEmpty(cfg.LevelField, "level"),
		correlationFields: correlationFields,
	}
}

// Name identifies the backend in markers and metrics.
func (c *VictoriaLogsClient) Name() string { return "victorialogs" }

// QueryLogs runs q and decodes the JSON-lines response.
func (c *VictoriaLogsClient) QueryLogs(ctx context.Context, q models.LogQuery) ([]models.EvidenceRecord, error) {
	if c == nil || !c.http.configured() {
		return nil, fmt.Errorf("victorialogs base URL not configured")
	}

	form := url.Values{}
	form.Set("query", BuildLogsQL(q, c.serviceField, c.levelField, c.correlationFields))
	form.Set("start", q.Start.UTC().Format(time.RFC3339))
	form.Set("end", q.End.UTC().Format(time.RFC3339))
	if q.Limit > 0 {
		form.Set("limit", strconv.Itoa(q.Limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.http.resolvePath(c.queryPath), strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("create query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.send(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var records []models.EvidenceRecord
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		rec, err := c.decodeLine([]byte(line), q.Service)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
		if q.Limit > 0 && len(records) >= q.Limit {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read victorialogs response: %w", err)
	}
	return records, nil
}

func (c *VictoriaLogsClient) decodeLine(line []byte, service string) (models.EvidenceRecord, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return models.EvidenceRecord{}, fmt.Errorf("decode victorialogs line: %w", err)
	}

	fields := make(map[string]string, len(raw))
	for k, v := range raw {
		if s, ok := stringify(v); ok {
			fields[k] = s
		}
	}
	ts, _ := time.Parse(time.RFC3339Nano, fields["_time"])
	rec := models.EvidenceRecord{
		Source:    c.Name(),
		Backend:   models.BackendRecent,
		Service:   firstNonEmpty(fields[c.serviceField], service),
		Timestamp: ts.UTC(),
		Severity:  models.ParseLogLevel(fields[c.levelField]),
		Body:      fields["_msg"],
		TraceID:   fields["trace_id"],
	}
	for _, f := range c.correlationFields {
		if v := fields[f]; v != "" && f != "trace_id" {
			rec.CorrelationID = v
			break
		}
	}
	delete(fields, "_msg")
	delete(fields, "_time")
	rec.Fields = fields
	return rec, nil
}

// BuildLogsQL renders q as a LogsQL filter expression. Space-separated filters are ANDed.
func BuildLogsQL(q models.LogQuery, serviceField, levelField string, correlationFields []string) string {
	var filters []string
	if q.Stream != "" {
		filters = append(filters, "_stream:"+q.Stream)
	}
	if q.Service != "" {
		filters = append(filters, fmt.Sprintf("%s:%s", serviceField, strconv.Quote(q.Service)))
	}
	if len(q.Levels) > 0 {
		levels := make([]string, 0, len(q.Levels))
		for _, l := range q.Levels {
			levels = append(levels, strconv.Quote(string(l)))
		}
		filters = append(filters, fmt.Sprintf("%s:in(%s)", levelField, strings.Join(levels, ",")))
	}
	if len(q.Identifiers) > 0 {
		var alts []string
		for _, field := range sortedKeys(q.Identifiers) {
			value := strconv.Quote(q.Identifiers[field])
			alts = append(alts, fmt.Sprintf("%s:%s", field, value), value)
		}
		filters = append(filters, "("+strings.Join(dedupe(alts), " OR ")+")")
	}
	if q.CorrelationID != "" {
		value := strconv.Quote(q.CorrelationID)
		alts := make([]string, 0, len(correlationFields)+1)
		for _, f := range correlationFields {
			alts = append(alts, fmt.Sprintf("%s:%s", f, value))
		}
		alts = append(alts, value)
		filters = append(filters, "("+strings.Join(alts, " OR ")+")")
	}
	if len(q.Keywords) > 0 {
		kws := make([]string, 0, len(q.Keywords))
		for _, k := range q.Keywords {
			kws = append(kws, "i("+strconv.Quote(k)+")")
		}
		filters = append(filters, "("+strings.Join(kws, " OR ")+")")
	}
	filters = append(filters, fmt.Sprintf("_time:[%s, %s)", q.Start.UTC().Format(time.RFC3339), q.End.UTC().Format(time.RFC3339)))

	query := strings.Join(filters, " ")
	if q.Limit > 0 {
		query = fmt.Sprintf("%s | limit %d", query, q.Limit)
	}
	return query
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := values[:0]
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
