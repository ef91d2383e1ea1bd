package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "fichas.v1.Scanner"

// ScannerServer is the server API for the Scanner service. Messages are
// well-known protobuf types so no generated code is needed.
type ScannerServer interface {
	StartCamera(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	StopCamera(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	Capture(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	FillForm(context.Context, *emptypb.Empty) (*wrapperspb.BoolValue, error)
	GetState(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Extract(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ListScans(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetScan(context.Context, *wrapperspb.StringValue) (*structpb.Struct, error)
	ExportScans(context.Context, *structpb.Struct) (*wrapperspb.BytesValue, error)
	Subscribe(*emptypb.Empty, grpc.ServerStream) error
}

func fullMethod(name string) string { return "/" + ServiceName + "/" + name }

func unary[Req proto.Message, Resp proto.Message](name string, newReq func() Req, call func(ScannerServer, context.Context, Req) (Resp, error)) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := newReq()
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ScannerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ScannerServer), ctx, req.(Req))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

func newEmpty() *emptypb.Empty                { return &emptypb.Empty{} }
func newStruct() *structpb.Struct             { return &structpb.Struct{} }
func newStringValue() *wrapperspb.StringValue { return &wrapperspb.StringValue{} }

// ScannerServiceDesc describes the Scanner service for grpc.ServiceRegistrar.
var ScannerServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ScannerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("StartCamera", newEmpty, ScannerServer.StartCamera),
		unary("StopCamera", newEmpty, ScannerServer.StopCamera),
		unary("Capture", newEmpty, ScannerServer.Capture),
		unary("FillForm", newEmpty, ScannerServer.FillForm),
		unary("GetState", newEmpty, ScannerServer.GetState),
		unary("Extract", newStringValue, ScannerServer.Extract),
		unary("ListScans", newStruct, ScannerServer.ListScans),
		unary("GetScan", newStringValue, ScannerServer.GetScan),
		unary("ExportScans", newStruct, ScannerServer.ExportScans),
	},
	Streams: []grpc.StreamDesc{
		{
			StreamName: "Subscribe",
			Handler: func(srv any, stream grpc.ServerStream) error {
				in := new(emptypb.Empty)
				if err := stream.RecvMsg(in); err != nil {
					return err
				}
				return srv.(ScannerServer).Subscribe(in, stream)
			},
			ServerStreams: true,
		},
	},
	Metadata: "fichas/v1/scanner.proto",
}

// RegisterScannerServer registers srv on s.
func RegisterScannerServer(s grpc.ServiceRegistrar, srv ScannerServer) {
	s.RegisterService(&ScannerServiceDesc, srv)
}
