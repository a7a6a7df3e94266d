package live

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"papertrade/internal/dashboard"
	"papertrade/internal/domain"
)

// Client talks to a papertrade.Portfolio server.
type Client struct {
	conn *grpc.ClientConn
	log  *slog.Logger
}

// Dial creates a client targeting addr. Extra options are appended after
// the default insecure transport credentials.
func Dial(addr string, log *slog.Logger, opts ...grpc.DialOption) (*Client, error) {
	if log == nil {
		log = slog.Default()
	}
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to %s: %w", addr, err)
	}
	return &Client{conn: conn, log: log}, nil
}

// Close closes the connection.
func (c *Client) Close() error { return c.conn.Close() }

// Portfolio fetches the server's portfolio snapshot.
func (c *Client) Portfolio(ctx context.Context) (domain.Portfolio, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, getPortfolioMethod, &emptypb.Empty{}, out); err != nil {
		return domain.Portfolio{}, fmt.Errorf("GetPortfolio: %w", err)
	}
	var p domain.Portfolio
	if err := fromStruct(out, &p); err != nil {
		return domain.Portfolio{}, fmt.Errorf("decoding portfolio: %w", err)
	}
	return p, nil
}

// Watch streams valuation and ledger updates to fn. It blocks until ctx is
// cancelled or the stream ends.
func (c *Client) Watch(ctx context.Context, fn func(dashboard.Update)) error {
	cs, err := c.conn.NewStream(ctx, &portfolioServiceDesc.Streams[0], watchValuationMethod)
	if err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	stream := &grpc.GenericClientStream[emptypb.Empty, structpb.Struct]{ClientStream: cs}
	if err := stream.SendMsg(&emptypb.Empty{}); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return fmt.Errorf("starting stream: %w", err)
	}
	c.log.Info("connected to valuation stream", "target", c.conn.Target())

	for {
		msg, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("receiving update: %w", err)
		}
		var u dashboard.Update
		if err := fromStruct(msg, &u); err != nil {
			c.log.Warn("dropping undecodable update", "error", err)
			continue
		}
		fn(u)
	}
}
