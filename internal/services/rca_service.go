package services

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/miradorstack/mirador-investigator/internal/api"
	"github.com/miradorstack/mirador-investigator/internal/models"
	"github.com/miradorstack/mirador-investigator/internal/utils"
)

// Investigator runs an RCA investigation. Implemented by *engine.Investigator.
type Investigator interface {
	Investigate(ctx context.Context, req models.InvestigationRequest) models.Report
}

// TimelineReader builds entity timelines. Implemented by *engine.TimelineAggregator.
type TimelineReader interface {
	GetTimeline(ctx context.Context, req models.TimelineRequest) models.TimelineResult
}

// RCAService implements the gRPC Investigator service.
type RCAService struct {
	logger       *slog.Logger
	investigator Investigator
	timelines    TimelineReader
	latencies    *utils.LatencyTracker
}

var _ api.InvestigatorServer = (*RCAService)(nil)

// NewRCAService constructs the service facade. Either capability may be nil, in which case the
// corresponding method reports FailedPrecondition.
func NewRCAService(logger *slog.Logger, investigator Investigator, timelines TimelineReader) *RCAService {
	if logger == nil {
		logger = slog.Default()
	}
	return &RCAService{
		logger:       logger,
		investigator: investigator,
		timelines:    timelines,
		latencies:    utils.NewLatencyTracker(1024),
	}
}

// Investigate decodes the request, runs the investigation and returns the report. Terminal
// outcomes such as NO_EVIDENCE are successful responses carrying the reason code.
func (s *RCAService) Investigate(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.investigator == nil {
		return nil, status.Error(codes.FailedPrecondition, "investigator not configured")
	}
	req, err := api.FromWireInvestigationRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	s.logger.Debug("Investigate called", slog.Int("identifiers", len(req.Identifiers)), slog.Int("services", len(req.Services)))

	start := time.Now()
	report := s.investigator.Investigate(ctx, req)
	duration := time.Since(start)
	s.latencies.Observe(duration)
	if count := s.latencies.Count(); count >= 20 && count%20 == 0 {
		p95 := s.latencies.Percentile(95)
		s.logger.Info("investigation latency", slog.Duration("p95", p95), slog.Int("samples", count))
	}

	out, err := api.ToWireReport(report)
	if err != nil {
		s.logger.Error("encode report failed", slog.String("run_id", report.RunID), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode report")
	}
	return out, nil
}

// GetTimeline decodes the request and returns the merged entity timeline.
func (s *RCAService) GetTimeline(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if in == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	if s.timelines == nil {
		return nil, status.Error(codes.FailedPrecondition, "timeline aggregator not configured")
	}
	req, err := api.FromWireTimelineRequest(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result := s.timelines.GetTimeline(ctx, req)
	if result.EntityID == "" && len(result.Markers) > 0 {
		return nil, status.Error(codes.NotFound, result.Markers[0].Error())
	}
	out, err := api.ToWireTimeline(result)
	if err != nil {
		s.logger.Error("encode timeline failed", slog.String("entity_id", result.EntityID), slog.Any("error", err))
		return nil, status.Error(codes.Internal, "failed to encode timeline")
	}
	return out, nil
}

// LatencyP95 returns the current p95 investigation latency.
func (s *RCAService) LatencyP95() time.Duration {
	if s.latencies == nil {
		return 0
	}
	return s.latencies.Percentile(95)
}
