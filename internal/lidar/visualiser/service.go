package visualiser

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Fully-qualified names of the scan service.
const (
	ScanServiceName           = "scansim.ScanService"
	ScanServiceStreamScans    = "/scansim.ScanService/StreamScans"
	scanServiceStreamScansIdx = 0
)

// ScanServiceServer is the server API for the scan service.
//
// StreamScans takes a request struct with an optional "frame_id" string
// and streams one struct per scan until the client goes away.
type ScanServiceServer interface {
	StreamScans(req *structpb.Struct, stream grpc.ServerStreamingServer[structpb.Struct]) error
}

// RegisterScanServiceServer registers srv on s.
func RegisterScanServiceServer(s grpc.ServiceRegistrar, srv ScanServiceServer) {
	s.RegisterService(&ScanServiceDesc, srv)
}

func streamScansHandler(srv any, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(ScanServiceServer).StreamScans(req, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// ScanServiceDesc describes the scan service for grpc.ServiceRegistrar.
var ScanServiceDesc = grpc.ServiceDesc{
	ServiceName: ScanServiceName,
	HandlerType: (*ScanServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "StreamScans",
			Handler:       streamScansHandler,
			ServerStreams: true,
		},
	},
	Metadata: "scansim/scan_service.proto",
}

// streamScans opens the server stream on cc and sends req.
func streamScans(ctx context.Context, cc grpc.ClientConnInterface, req *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := cc.NewStream(ctx, &ScanServiceDesc.Streams[scanServiceStreamScansIdx], ScanServiceStreamScans, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(req); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}
