package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "rca.v1.Investigator"

const (
	investigateMethod = "/" + ServiceName + "/Investigate"
	timelineMethod    = "/" + ServiceName + "/GetTimeline"
)

// InvestigatorServer is the server API for the Investigator service. Requests and responses are
// google.protobuf.Struct documents mirroring the JSON shape of the domain types.
type InvestigatorServer interface {
	Investigate(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetTimeline(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterInvestigatorServer attaches srv to a gRPC registrar.
func RegisterInvestigatorServer(s grpc.ServiceRegistrar, srv InvestigatorServer) {
	s.RegisterService(&InvestigatorServiceDesc, srv)
}

// InvestigatorServiceDesc describes the Investigator service for grpc.Server.
var InvestigatorServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*InvestigatorServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Investigate", Handler: investigateHandler},
		{MethodName: "GetTimeline", Handler: timelineHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "rca/v1/investigator.proto",
}

func investigateHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvestigatorServer).Investigate(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: investigateMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InvestigatorServer).Investigate(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func timelineHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(InvestigatorServer).GetTimeline(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: timelineMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(InvestigatorServer).GetTimeline(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

// InvestigatorClient calls a remote Investigator service.
type InvestigatorClient struct {
	cc grpc.ClientConnInterface
}

// NewInvestigatorClient wraps an established connection.
func NewInvestigatorClient(cc grpc.ClientConnInterface) *InvestigatorClient {
	return &InvestigatorClient{cc: cc}
}

// Investigate runs a remote investigation.
func (c *InvestigatorClient) Investigate(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, investigateMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetTimeline fetches a remote entity timeline.
func (c *InvestigatorClient) GetTimeline(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, timelineMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}
