package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

var knownIdentifiers = map[models.IdentifierType]bool{
	models.IdentifierEntity:      true,
	models.IdentifierTracking:    true,
	models.IdentifierRequest:     true,
	models.IdentifierCompany:     true,
	models.IdentifierCompanyName: true,
	models.IdentifierCorrelation: true,
}

type wireOptions struct {
	Deadline           string `json:"deadline"`
	Budget             string `json:"budget"`
	MaxClusters        int    `json:"max_clusters"`
	SkipClassification bool   `json:"skip_classification"`
}

type wireInvestigation struct {
	Description string            `json:"description"`
	Identifiers map[string]string `json:"identifiers"`
	Services    []string          `json:"services"`
	Keywords    []string          `json:"keywords"`
	ReportedAt  string            `json:"reported_at"`
	Options     wireOptions       `json:"options"`
}

type wireTimeline struct {
	EntityID    string      `json:"entity_id"`
	CompoundKey string      `json:"compound_key"`
	Options     wireOptions `json:"options"`
}

// FromWireInvestigationRequest maps a Struct request into a domain InvestigationRequest.
// Durations use Go syntax ("90s") and timestamps RFC 3339.
func FromWireInvestigationRequest(in *structpb.Struct) (models.InvestigationRequest, error) {
	if in == nil {
		return models.InvestigationRequest{}, fmt.Errorf("request is nil")
	}
	var w wireInvestigation
	if err := decodeStruct(in, &w); err != nil {
		return models.InvestigationRequest{}, err
	}
	req := models.InvestigationRequest{
		Description: strings.TrimSpace(w.Description),
		Services:    append([]string(nil), w.Services...),
		Keywords:    append([]string(nil), w.Keywords...),
	}
	for k, v := range w.Identifiers {
		kind := models.IdentifierType(strings.ToLower(strings.TrimSpace(k)))
		if !knownIdentifiers[kind] {
			return models.InvestigationRequest{}, fmt.Errorf("unknown identifier type %q", k)
		}
		if strings.TrimSpace(v) == "" {
			continue
		}
		if req.Identifiers == nil {
			req.Identifiers = make(map[models.IdentifierType]string)
		}
		req.Identifiers[kind] = strings.TrimSpace(v)
	}
	if req.Description == "" && len(req.Identifiers) == 0 {
		return models.InvestigationRequest{}, fmt.Errorf("description or identifiers are required")
	}
	if w.ReportedAt != "" {
		ts, err := utils.ParseRFC3339(w.ReportedAt)
		if err != nil {
			return models.InvestigationRequest{}, fmt.Errorf("reported_at: %w", err)
		}
		req.ReportedAt = ts
	}
	opts, err := w.Options.toDomain()
	if err != nil {
		return models.InvestigationRequest{}, err
	}
	req.Options = opts
	return req, nil
}

// FromWireTimelineRequest maps a Struct request into a domain TimelineRequest.
func FromWireTimelineRequest(in *structpb.Struct) (models.TimelineRequest, error) {
	if in == nil {
		return models.TimelineRequest{}, fmt.Errorf("request is nil")
	}
	var w wireTimeline
	if err := decodeStruct(in, &w); err != nil {
		return models.TimelineRequest{}, err
	}
	req := models.TimelineRequest{
		EntityID:    strings.TrimSpace(w.EntityID),
		CompoundKey: strings.TrimSpace(w.CompoundKey),
	}
	if req.EntityID == "" && req.CompoundKey == "" {
		return models.TimelineRequest{}, fmt.Errorf("entity_id or compound_key is required")
	}
	opts, err := w.Options.toDomain()
	if err != nil {
		return models.TimelineRequest{}, err
	}
	req.Options = opts
	return req, nil
}

func (w wireOptions) toDomain() (models.Options, error) {
	opts := models.Options{MaxClusters: w.MaxClusters, SkipClassification: w.SkipClassification}
	if w.MaxClusters < 0 {
		return opts, fmt.Errorf("options.max_clusters must not be negative")
	}
	if w.Deadline != "" {
		ts, err := utils.ParseRFC3339(w.Deadline)
		if err != nil {
			return opts, fmt.Errorf("options.deadline: %w", err)
		}
		opts.Deadline = ts
	}
	if w.Budget != "" {
		d, err := time.ParseDuration(w.Budget)
		if err != nil || d <= 0 {
			return opts, fmt.Errorf("options.budget: invalid duration %q", w.Budget)
		}
		opts.Budget = d
	}
	return opts, nil
}

// ToWireReport converts a report into its Struct representation.
func ToWireReport(report models.Report) (*structpb.Struct, error) {
	return encodeStruct(report)
}

// ToWireTimeline converts a timeline result into its Struct representation.
func ToWireTimeline(result models.TimelineResult) (*structpb.Struct, error) {
	return encodeStruct(result)
}

// ToWireInvestigationRequest is the client-side inverse of FromWireInvestigationRequest.
func ToWireInvestigationRequest(req models.InvestigationRequest) (*structpb.Struct, error) {
	w := wireInvestigation{
		Description: req.Description,
		Services:    req.Services,
		Keywords:    req.Keywords,
		Options:     fromDomainOptions(req.Options),
	}
	if len(req.Identifiers) > 0 {
		w.Identifiers = make(map[string]string, len(req.Identifiers))
		for k, v := range req.Identifiers {
			w.Identifiers[string(k)] = v
		}
	}
	if !req.ReportedAt.IsZero() {
		w.ReportedAt = req.ReportedAt.UTC().Format(time.RFC3339)
	}
	return encodeStruct(w)
}

// ToWireTimelineRequest is the client-side inverse of FromWireTimelineRequest.
func ToWireTimelineRequest(req models.TimelineRequest) (*structpb.Struct, error) {
	return encodeStruct(wireTimeline{
		EntityID:    req.EntityID,
		CompoundKey: req.CompoundKey,
		Options:     fromDomainOptions(req.Options),
	})
}

// DecodeReport parses a Struct produced by ToWireReport.
func DecodeReport(in *structpb.Struct) (models.Report, error) {
	var report models.Report
	err := decodeLoose(in, &report)
	return report, err
}

// DecodeTimeline parses a Struct produced by ToWireTimeline.
func DecodeTimeline(in *structpb.Struct) (models.TimelineResult, error) {
	var result models.TimelineResult
	err := decodeLoose(in, &result)
	return result, err
}

func fromDomainOptions(o models.Options) wireOptions {
	w := wireOptions{MaxClusters: o.MaxClusters, SkipClassification: o.SkipClassification}
	if !o.Deadline.IsZero() {
		w.Deadline = o.Deadline.UTC().Format(time.RFC3339Nano)
	}
	if o.Budget > 0 {
		w.Budget = o.Budget.String()
	}
	return w
}

func encodeStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("encode: %w", err)
	}
	return structpb.NewStruct(m)
}

// decodeStruct rejects unknown fields so typos in requests surface as errors.
func decodeStruct(in *structpb.Struct, out any) error {
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func decodeLoose(in *structpb.Struct, out any) error {
	if in == nil {
		return fmt.Errorf("response is nil")
	}
	raw, err := json.Marshal(in.AsMap())
	if err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return json.Unmarshal(raw, out)
}
