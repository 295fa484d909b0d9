package visualiser

import (
	"context"
	"errors"
	"fmt"
	"io"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/scansim/internal/lidar/laserscan"
)

// Client consumes the scan stream.
type Client struct {
	conn *grpc.ClientConn
}

// Dial connects to a scan stream server. Without options the connection
// is plaintext.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	if len(opts) == 0 {
		opts = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", target, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// StreamScans calls fn for every scan received, optionally only those of
// frameID. It returns nil when ctx is cancelled or the server ends the
// stream, and fn's error if fn fails.
func (c *Client) StreamScans(ctx context.Context, frameID string, fn func(laserscan.Message) error) error {
	req := &structpb.Struct{Fields: map[string]*structpb.Value{}}
	if frameID != "" {
		req.Fields[fieldFrameID] = structpb.NewStringValue(frameID)
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	stream, err := streamScans(ctx, c.conn, req)
	if err != nil {
		return fmt.Errorf("failed to open scan stream: %w", err)
	}
	for {
		s, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			if status.Code(err) == codes.Canceled {
				return nil
			}
			return err
		}
		msg, err := StructToMessage(s)
		if err != nil {
			return fmt.Errorf("failed to decode scan: %w", err)
		}
		if err := fn(msg); err != nil {
			return err
		}
	}
}
