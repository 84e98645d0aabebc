package grpc

import (
	"context"

	"google.golang.org/grpc"

	"asynccalc/internal/types"
)

const serviceName = "calc.v1.Calculations"

// CalculationsServer is the server side of calc.v1.Calculations.
type CalculationsServer interface {
	Create(ctx context.Context, req *types.CalculateRequest) (*types.Calculation, error)
	Get(ctx context.Context, req *types.GetRequest) (*types.Calculation, error)
	List(ctx context.Context, req *types.ListRequest) (*types.CalculationList, error)
	Cancel(ctx context.Context, req *types.CancelRequest) (*types.CalculationStatus, error)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CalculationsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Create", Handler: unary("Create", CalculationsServer.Create)},
		{MethodName: "Get", Handler: unary("Get", CalculationsServer.Get)},
		{MethodName: "List", Handler: unary("List", CalculationsServer.List)},
		{MethodName: "Cancel", Handler: unary("Cancel", CalculationsServer.Cancel)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "calc/v1/calculations",
}

func fullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

// RegisterCalculationsServer attaches srv to s.
func RegisterCalculationsServer(s grpc.ServiceRegistrar, srv CalculationsServer) {
	s.RegisterService(&serviceDesc, srv)
}

func unary[Req, Resp any](method string, call func(CalculationsServer, context.Context, *Req) (*Resp, error)) func(any, context.Context, func(any) error, grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CalculationsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CalculationsServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
