package patchengine

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	// ServiceName is the fully qualified gRPC service name.
	ServiceName = "shim.v1.PatchEngine"

	// PatchBinaryMethod is the full method name of the PatchBinary RPC.
	PatchBinaryMethod = "/" + ServiceName + "/PatchBinary"

	// MaxMessageSize bounds a single request or response; native libraries
	// routinely exceed gRPC's 4 MiB default.
	MaxMessageSize = 256 << 20
)

// PatchEngineServer is the server API for the PatchEngine service.
type PatchEngineServer interface {
	PatchBinary(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error)
}

// serviceDesc describes the PatchEngine service for grpc.Server.RegisterService.
//
//nolint:gochecknoglobals // Service descriptors are package-level by gRPC convention.
var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PatchEngineServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "PatchBinary",
			Handler:    patchBinaryHandler,
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "shim/v1/patch_engine.proto",
}

// RegisterPatchEngineServer registers srv on s.
func RegisterPatchEngineServer(s grpc.ServiceRegistrar, srv PatchEngineServer) {
	s.RegisterService(&serviceDesc, srv)
}

// patchBinaryHandler decodes the request and dispatches it through the interceptor chain.
func patchBinaryHandler(
	srv any,
	ctx context.Context,
	dec func(any) error,
	interceptor grpc.UnaryServerInterceptor,
) (any, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}

	if interceptor == nil {
		return srv.(PatchEngineServer).PatchBinary(ctx, in) //nolint:forcetypeassert // Guaranteed by HandlerType.
	}

	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: PatchBinaryMethod,
	}

	handler := func(ctx context.Context, req any) (any, error) {
		//nolint:forcetypeassert // Guaranteed by HandlerType and dec.
		return srv.(PatchEngineServer).PatchBinary(ctx, req.(*structpb.Struct))
	}

	return interceptor(ctx, in, info, handler)
}

// Invoke calls PatchBinary on conn.
func Invoke(ctx context.Context, conn grpc.ClientConnInterface, req *Request) (*Response, error) {
	in, err := EncodeRequest(req)
	if err != nil {
		return nil, err
	}

	out := new(structpb.Struct)

	err = conn.Invoke(ctx, PatchBinaryMethod, in, out,
		grpc.MaxCallSendMsgSize(MaxMessageSize),
		grpc.MaxCallRecvMsgSize(MaxMessageSize),
	)
	if err != nil {
		return nil, err
	}

	return DecodeResponse(out)
}
