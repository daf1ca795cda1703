package services

import (
	"context"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-investigator/internal/api"
	"github.com/miradorstack/mirador-investigator/internal/config"
	"github.com/miradorstack/mirador-investigator/internal/models"
)

type investigatorStub struct {
	got models.InvestigationRequest
}

func (s *investigatorStub) Investigate(ctx context.Context, req models.InvestigationRequest) models.Report {
	s.got = req
	if len(req.Identifiers) == 0 {
		return models.Report{RunID: "run-empty", Reason: models.ReasonNoEvidence, Remediation: []string{"Widen the window"}}
	}
	return models.Report{RunID: "run-1", Reason: models.ReasonCompleted, EvidenceCount: 12, ClusterCount: 2}
}

type timelineStub struct{}

func (timelineStub) GetTimeline(ctx context.Context, req models.TimelineRequest) models.TimelineResult {
	if req.EntityID == "" {
		return models.TimelineResult{
			Markers: []models.Marker{{Kind: models.KindResolutionAmbiguous, Stage: "timeline", Message: "no entity for " + req.CompoundKey}},
			Partial: true,
		}
	}
	return models.TimelineResult{
		EntityID: req.EntityID,
		Events:   []models.TimelineEvent{{Time: time.Date(2026, 3, 4, 8, 0, 0, 0, time.UTC), Branch: "lifecycle", Event: "created"}},
	}
}

func mustStruct(t *testing.T, m map[string]any) *structpb.Struct {
	t.Helper()
	s, err := structpb.NewStruct(m)
	if err != nil {
		t.Fatalf("build struct: %v", err)
	}
	return s
}

func TestInvestigate(t *testing.T) {
	inv := &investigatorStub{}
	service := NewRCAService(nil, inv, nil)

	out, err := service.Investigate(context.Background(), mustStruct(t, map[string]any{
		"description": "labels failing",
		"identifiers": map[string]any{"entity_id": "E-1"},
	}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inv.got.Identifiers[models.IdentifierEntity] != "E-1" {
		t.Fatalf("identifiers not forwarded: %+v", inv.got)
	}
	if got := out.Fields["reason"].GetStringValue(); got != "COMPLETED" {
		t.Fatalf("unexpected reason %q", got)
	}
	if service.LatencyP95() < 0 {
		t.Fatalf("latency should be tracked")
	}
}

func TestInvestigateTerminalReportIsNotAnError(t *testing.T) {
	service := NewRCAService(nil, &investigatorStub{}, nil)

	out, err := service.Investigate(context.Background(), mustStruct(t, map[string]any{"description": "something broke"}))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := out.Fields["reason"].GetStringValue(); got != "NO_EVIDENCE" {
		t.Fatalf("unexpected reason %q", got)
	}
}

func TestInvestigateStatusCodes(t *testing.T) {
	service := NewRCAService(nil, &investigatorStub{}, nil)
	if _, err := service.Investigate(context.Background(), nil); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for nil, got %v", err)
	}
	if _, err := service.Investigate(context.Background(), mustStruct(t, map[string]any{})); status.Code(err) != codes.InvalidArgument {
		t.Fatalf("expected invalid argument for empty request, got %v", err)
	}
	unconfigured := NewRCAService(nil, nil, nil)
	if _, err := unconfigured.Investigate(context.Background(), mustStruct(t, map[string]any{"description": "x"})); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
	if _, err := unconfigured.GetTimeline(context.Background(), mustStruct(t, map[string]any{"entity_id": "E-1"})); status.Code(err) != codes.FailedPrecondition {
		t.Fatalf("expected failed precondition, got %v", err)
	}
}

func TestGetTimelineUnresolvedKey(t *testing.T) {
	service := NewRCAService(nil, nil, timelineStub{})
	_, err := service.GetTimeline(context.Background(), mustStruct(t, map[string]any{"compound_key": "acme:missing"}))
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestServeOverGRPC(t *testing.T) {
	srv, err := api.NewServer(config.ServerConfig{Address: "127.0.0.1:0"}, NewRCAService(nil, &investigatorStub{}, timelineStub{}), nil)
	if err != nil {
		t.Fatalf("new server: %v", err)
	}
	go func() { _ = srv.Start() }()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	})

	conn, err := grpc.NewClient(srv.Address(), grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	client := api.NewInvestigatorClient(conn)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := api.ToWireInvestigationRequest(models.InvestigationRequest{
		Identifiers: map[models.IdentifierType]string{models.IdentifierTracking: "1Z999"},
	})
	if err != nil {
		t.Fatalf("encode request: %v", err)
	}
	out, err := client.Investigate(ctx, req)
	if err != nil {
		t.Fatalf("investigate: %v", err)
	}
	report, err := api.DecodeReport(out)
	if err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if report.RunID != "run-1" || report.EvidenceCount != 12 {
		t.Fatalf("unexpected report %+v", report)
	}

	treq, _ := api.ToWireTimelineRequest(models.TimelineRequest{EntityID: "E-9"})
	tout, err := client.GetTimeline(ctx, treq)
	if err != nil {
		t.Fatalf("timeline: %v", err)
	}
	timeline, err := api.DecodeTimeline(tout)
	if err != nil {
		t.Fatalf("decode timeline: %v", err)
	}
	if timeline.EntityID != "E-9" || len(timeline.Events) != 1 {
		t.Fatalf("unexpected timeline %+v", timeline)
	}
}
