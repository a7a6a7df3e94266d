package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"papertrade/internal/dashboard"
	"papertrade/internal/ledger"
)

// Server implements the papertrade.Portfolio gRPC service.
type Server struct {
	ledger  *ledger.Ledger
	watcher *dashboard.Watcher
	log     *slog.Logger
}

var _ PortfolioServer = (*Server)(nil)

// NewServer creates a gRPC server backed by the ledger.
func NewServer(l *ledger.Ledger, w *dashboard.Watcher, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{ledger: l, watcher: w, log: log.With("component", "grpc")}
}

// RegisterGRPC registers the server on the given gRPC server instance.
func (s *Server) RegisterGRPC(gs *grpc.Server) {
	RegisterPortfolioServer(gs, s)
}

// GetPortfolio returns the current cash balance and holdings.
func (s *Server) GetPortfolio(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	out, err := toStruct(s.ledger.Snapshot())
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return out, nil
}

// WatchValuation starts a valuation task for the stream and sends every
// update until the client disconnects.
func (s *Server) WatchValuation(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	ctx := stream.Context()
	s.log.Info("grpc client watching")

	err := s.watcher.Watch(ctx, func(u dashboard.Update) error {
		msg, err := toStruct(u)
		if err != nil {
			return status.Error(codes.Internal, err.Error())
		}
		return stream.Send(msg)
	})
	s.log.Info("grpc client disconnected")
	return err
}

// toStruct converts v to a Struct through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding %T: %w", v, err)
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("decoding %T: %w", v, err)
	}
	return structpb.NewStruct(m)
}

// fromStruct is the inverse of toStruct.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}
