// Package docrpc serves a docstore.Store over gRPC and provides the matching
// client. Messages are google.protobuf.Struct envelopes of the form
// {success, <payload>, error}.
package docrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "stockflow.docstore.v1.DocumentStore"

// DocumentStoreServer is the server API for the document store service.
type DocumentStoreServer interface {
	GetConfiguration(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetExistingCollections(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SendData(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteData(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// ServiceDesc describes the document store service for grpc.Server.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*DocumentStoreServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "GetConfiguration",
			Handler: unary("GetConfiguration", func() *emptypb.Empty { return new(emptypb.Empty) },
				DocumentStoreServer.GetConfiguration),
		},
		{MethodName: "GetExistingCollections", Handler: unary("GetExistingCollections", newStruct, DocumentStoreServer.GetExistingCollections)},
		{MethodName: "GetData", Handler: unary("GetData", newStruct, DocumentStoreServer.GetData)},
		{MethodName: "SendData", Handler: unary("SendData", newStruct, DocumentStoreServer.SendData)},
		{MethodName: "DeleteData", Handler: unary("DeleteData", newStruct, DocumentStoreServer.DeleteData)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "stockflow/docstore/v1/docstore.proto",
}

// RegisterDocumentStoreServer registers srv on s.
func RegisterDocumentStoreServer(s grpc.ServiceRegistrar, srv DocumentStoreServer) {
	s.RegisterService(&ServiceDesc, srv)
}

func fullMethod(method string) string { return "/" + ServiceName + "/" + method }

func newStruct() *structpb.Struct { return new(structpb.Struct) }

func unary[Req any](method string, newReq func() Req, call func(DocumentStoreServer, context.Context, Req) (*structpb.Struct, error)) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(DocumentStoreServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod(method)}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(DocumentStoreServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}
