// ABOUTME: Hand-declared gRPC descriptor of the WorkspaceControl service
// ABOUTME: All methods are unary and exchange google.protobuf.Struct messages

package live

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "coven.migrate.v1.WorkspaceControl"

// Method names
const (
	MethodHello      = "Hello"
	MethodFindAll    = "FindAll"
	MethodUpload     = "Upload"
	MethodClean      = "Clean"
	MethodForceClose = "ForceClose"
)

// FullMethod returns the gRPC path of a method
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// ControlService is the server API of WorkspaceControl
type ControlService interface {
	Hello(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	FindAll(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Upload(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	Clean(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
	ForceClose(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(srv ControlService, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryMethod(name string, call unaryCall) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: name,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(ControlService), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(name)}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(ControlService), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// ServiceDesc describes WorkspaceControl for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*ControlService)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(MethodHello, ControlService.Hello),
		unaryMethod(MethodFindAll, ControlService.FindAll),
		unaryMethod(MethodUpload, ControlService.Upload),
		unaryMethod(MethodClean, ControlService.Clean),
		unaryMethod(MethodForceClose, ControlService.ForceClose),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coven/migrate/v1/control.proto",
}

// RegisterControlService registers srv on s
func RegisterControlService(s grpc.ServiceRegistrar, srv ControlService) {
	s.RegisterService(&ServiceDesc, srv)
}
