package visualiser

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/banshee-data/scansim/internal/lidar"
)

// Ensure Server implements the gRPC interface.
var _ ScanServiceServer = (*Server)(nil)

// Server implements the scan service on top of a Publisher.
type Server struct {
	publisher *Publisher
}

// NewServer creates a new scan service backed by publisher.
func NewServer(publisher *Publisher) *Server {
	return &Server{publisher: publisher}
}

// StreamScans streams every published scan, optionally restricted to the
// request's "frame_id", until the client cancels or the publisher stops.
func (s *Server) StreamScans(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	var frameID string
	if v, ok := req.GetFields()[fieldFrameID]; ok {
		sv, ok := v.GetKind().(*structpb.Value_StringValue)
		if !ok {
			return status.Error(codes.InvalidArgument, "frame_id must be a string")
		}
		frameID = sv.StringValue
	}

	client, ok := s.publisher.addClient(frameID)
	if !ok {
		return status.Errorf(codes.ResourceExhausted, "client limit %d reached", s.publisher.config.MaxClients)
	}
	defer s.publisher.removeClient(client.id)

	ctx := stream.Context()
	for {
		select {
		case <-ctx.Done():
			return status.FromContextError(ctx.Err()).Err()
		case <-s.publisher.stopCh:
			return status.Error(codes.Unavailable, "scan stream stopped")
		case msg := <-client.scanCh:
			if err := stream.Send(MessageToStruct(*msg)); err != nil {
				lidar.Diagf("visualiser: send to %s failed: %v", client.id, err)
				return err
			}
		}
	}
}
