package orchestratorrpc

import (
	"context"

	"google.golang.org/grpc"
)

// serviceName identifies the orchestrator status service on the wire.
const serviceName = "prreview.orchestrator.v1.OrchestratorStatus"

// OrchestratorStatusServer is implemented by anything that can answer
// queue-status questions about a running orchestrator: GetQueueStatus,
// GetPR, and IsBlocked mirror Orchestrator's same-named methods so a
// separate CLI invocation or dashboard can poll a long-running
// orchestrator process over the wire.
type OrchestratorStatusServer interface {
	GetQueueStatus(context.Context, *GetQueueStatusRequest) (*GetQueueStatusResponse, error)
	GetPR(context.Context, *GetPRRequest) (*GetPRResponse, error)
	IsBlocked(context.Context, *IsBlockedRequest) (*IsBlockedResponse, error)
}

func getQueueStatusHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetQueueStatusRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorStatusServer).GetQueueStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetQueueStatus"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorStatusServer).GetQueueStatus(ctx, req.(*GetQueueStatusRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func getPRHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(GetPRRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorStatusServer).GetPR(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/GetPR"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorStatusServer).GetPR(ctx, req.(*GetPRRequest))
	}
	return interceptor(ctx, in, info, handler)
}

func isBlockedHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(IsBlockedRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(OrchestratorStatusServer).IsBlocked(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: serviceName + "/IsBlocked"}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(OrchestratorStatusServer).IsBlocked(ctx, req.(*IsBlockedRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// ServiceDesc is the grpc.ServiceDesc for OrchestratorStatusServer, built
// by hand in place of the usual protoc-gen-go-grpc output.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*OrchestratorStatusServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetQueueStatus", Handler: getQueueStatusHandler},
		{MethodName: "GetPR", Handler: getPRHandler},
		{MethodName: "IsBlocked", Handler: isBlockedHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "internal/api/orchestratorrpc/service.go",
}

// RegisterOrchestratorStatusServer registers srv on s.
func RegisterOrchestratorStatusServer(s grpc.ServiceRegistrar, srv OrchestratorStatusServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// OrchestratorStatusClient is the client-side counterpart of
// OrchestratorStatusServer.
type OrchestratorStatusClient interface {
	GetQueueStatus(ctx context.Context, in *GetQueueStatusRequest) (*GetQueueStatusResponse, error)
	GetPR(ctx context.Context, in *GetPRRequest) (*GetPRResponse, error)
	IsBlocked(ctx context.Context, in *IsBlockedRequest) (*IsBlockedResponse, error)
}

type orchestratorStatusClient struct {
	cc grpc.ClientConnInterface
}

// NewOrchestratorStatusClient wraps an existing connection.
func NewOrchestratorStatusClient(cc grpc.ClientConnInterface) OrchestratorStatusClient {
	return &orchestratorStatusClient{cc: cc}
}

func (c *orchestratorStatusClient) GetQueueStatus(ctx context.Context, in *GetQueueStatusRequest) (*GetQueueStatusResponse, error) {
	out := new(GetQueueStatusResponse)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/GetQueueStatus", in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorStatusClient) GetPR(ctx context.Context, in *GetPRRequest) (*GetPRResponse, error) {
	out := new(GetPRResponse)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/GetPR", in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *orchestratorStatusClient) IsBlocked(ctx context.Context, in *IsBlockedRequest) (*IsBlockedResponse, error) {
	out := new(IsBlockedResponse)
	err := c.cc.Invoke(ctx, "/"+serviceName+"/IsBlocked", in, out, grpc.CallContentSubtype(codecName))
	if err != nil {
		return nil, err
	}
	return out, nil
}
