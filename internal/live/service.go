// Package live exposes the portfolio over gRPC: a snapshot call and a
// server stream of live valuations. Messages are protobuf Structs carrying
// the same JSON documents the HTTP API serves, so no generated code is
// needed.
package live

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	serviceName          = "papertrade.Portfolio"
	getPortfolioMethod   = "/papertrade.Portfolio/GetPortfolio"
	watchValuationMethod = "/papertrade.Portfolio/WatchValuation"
)

// PortfolioServer is the server API for the papertrade.Portfolio service.
type PortfolioServer interface {
	GetPortfolio(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	WatchValuation(*emptypb.Empty, grpc.ServerStreamingServer[structpb.Struct]) error
}

var portfolioServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*PortfolioServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "GetPortfolio", Handler: getPortfolioHandler},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "WatchValuation", Handler: watchValuationHandler, ServerStreams: true},
	},
	Metadata: "papertrade/portfolio.proto",
}

// RegisterPortfolioServer registers srv on s.
func RegisterPortfolioServer(s grpc.ServiceRegistrar, srv PortfolioServer) {
	s.RegisterService(&portfolioServiceDesc, srv)
}

func getPortfolioHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(PortfolioServer).GetPortfolio(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: getPortfolioMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(PortfolioServer).GetPortfolio(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func watchValuationHandler(srv any, stream grpc.ServerStream) error {
	in := new(emptypb.Empty)
	if err := stream.RecvMsg(in); err != nil {
		return err
	}
	return srv.(PortfolioServer).WatchValuation(in, &grpc.GenericServerStream[emptypb.Empty, structpb.Struct]{ServerStream: stream})
}
