package api

import (
	"testing"
	"time"

	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-investigator/internal/models"
)

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestFromWireInvestigationRequest(t *testing.T) {
	in := mustStruct(t, map[string]any{
		"description": "  labels missing for 1Z999AA10123456784 since 8am ",
		"identifiers": map[string]any{"Tracking_ID": "1Z999AA10123456784", "request_id": ""},
		"services":    []any{"label-service"},
		"reported_at": "2026-03-04T09:30:00Z",
		"options":     map[string]any{"budget": "45s", "max_clusters": 5},
	})

	req, err := FromWireInvestigationRequest(in)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.Description != "labels missing for 1Z999AA10123456784 since 8am" {
		t.Fatalf("unexpected description %q", req.Description)
	}
	if got := req.Identifiers[models.IdentifierTracking]; got != "1Z999AA10123456784" {
		t.Fatalf("unexpected tracking id %q", got)
	}
	if _, ok := req.Identifiers[models.IdentifierRequest]; ok {
		t.Fatalf("empty identifier values should be dropped")
	}
	if req.Options.Budget != 45*time.Second || req.Options.MaxClusters != 5 {
		t.Fatalf("unexpected options %+v", req.Options)
	}
	if !req.ReportedAt.Equal(time.Date(2026, 3, 4, 9, 30, 0, 0, time.UTC)) {
		t.Fatalf("unexpected reported_at %v", req.ReportedAt)
	}
}

func TestFromWireInvestigationRequestRejects(t *testing.T) {
	cases := map[string]map[string]any{
		"empty":         {},
		"unknown field": {"description": "x", "severity": "high"},
		"unknown id":    {"identifiers": map[string]any{"order": "42"}},
		"bad budget":    {"description": "x", "options": map[string]any{"budget": "soon"}},
		"bad deadline":  {"description": "x", "options": map[string]any{"deadline": "tomorrow"}},
	}
	for name, m := range cases {
		if _, err := FromWireInvestigationRequest(mustStruct(t, m)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
	if _, err := FromWireInvestigationRequest(nil); err == nil {
		t.Fatalf("nil request: expected error")
	}
}

func TestFromWireTimelineRequest(t *testing.T) {
	req, err := FromWireTimelineRequest(mustStruct(t, map[string]any{"compound_key": "acme:PO-77"}))
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if req.CompoundKey != "acme:PO-77" || req.EntityID != "" {
		t.Fatalf("unexpected request %+v", req)
	}
	if _, err := FromWireTimelineRequest(mustStruct(t, map[string]any{})); err == nil {
		t.Fatalf("expected error for missing entity")
	}
}

func TestRequestRoundTrip(t *testing.T) {
	deadline := time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)
	orig := models.InvestigationRequest{
		Description: "shipment stuck",
		Identifiers: map[models.IdentifierType]string{models.IdentifierEntity: "E-1"},
		Keywords:    []string{"timeout"},
		Options:     models.Options{Deadline: deadline, SkipClassification: true},
	}
	wire, err := ToWireInvestigationRequest(orig)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	back, err := FromWireInvestigationRequest(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.Identifiers[models.IdentifierEntity] != "E-1" || !back.Options.Deadline.Equal(deadline) || !back.Options.SkipClassification {
		t.Fatalf("round trip lost data: %+v", back)
	}
}

func TestToWireReport(t *testing.T) {
	report := models.Report{
		RunID:         "run-1",
		Reason:        models.ReasonCompleted,
		Summary:       "50 records grouped into 2 patterns",
		EvidenceCount: 50,
		ClusterCount:  2,
		Counts:        models.VerdictCounts{RealError: 1, Expected: 1},
		Remediation:   []string{"Check carrier latency"},
		Markers: []models.Marker{{
			Kind:  models.KindSourceUnavailable,
			Stage: "fetch",
			Scope: "archive",
		}},
		Partial: true,
	}
	wire, err := ToWireReport(report)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if got := wire.Fields["reason"].GetStringValue(); got != string(models.ReasonCompleted) {
		t.Fatalf("unexpected reason %q", got)
	}
	if got := wire.Fields["evidence_count"].GetNumberValue(); got != 50 {
		t.Fatalf("unexpected evidence count %v", got)
	}

	back, err := DecodeReport(wire)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if back.RunID != "run-1" || !back.Partial || len(back.Markers) != 1 || back.Markers[0].Scope != "archive" {
		t.Fatalf("unexpected decoded report %+v", back)
	}
}
