package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name
const ServiceName = "timegraph.v1.TemporalGraph"

// TemporalGraphServer is the service contract. Requests and responses are
// protobuf Structs so no generated code is needed.
type TemporalGraphServer interface {
	Insert(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Remove(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Graphs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Materialize(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Stats(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryCall func(TemporalGraphServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryCall) func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(TemporalGraphServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(TemporalGraphServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// ServiceDesc describes the TemporalGraph service for grpc.Server.RegisterService
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*TemporalGraphServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Insert", Handler: unaryHandler("Insert", TemporalGraphServer.Insert)},
		{MethodName: "Remove", Handler: unaryHandler("Remove", TemporalGraphServer.Remove)},
		{MethodName: "Graphs", Handler: unaryHandler("Graphs", TemporalGraphServer.Graphs)},
		{MethodName: "Materialize", Handler: unaryHandler("Materialize", TemporalGraphServer.Materialize)},
		{MethodName: "Stats", Handler: unaryHandler("Stats", TemporalGraphServer.Stats)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "timegraph/v1/temporal_graph.proto",
}

// Register adds srv to a gRPC server
func Register(s grpc.ServiceRegistrar, srv TemporalGraphServer) {
	s.RegisterService(&ServiceDesc, srv)
}

// Client calls the TemporalGraph service
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps a connection
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) call(ctx context.Context, method string, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, req, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Insert adds N-Triples or N-Quads statements, optionally into a span's graph
func (c *Client) Insert(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Insert", in, opts...)
}

// Remove deletes one statement
func (c *Client) Remove(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Remove", in, opts...)
}

// Graphs lists graph ids for an instant or span
func (c *Client) Graphs(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Graphs", in, opts...)
}

// Materialize builds a snapshot and returns it serialized
func (c *Client) Materialize(ctx context.Context, in map[string]interface{}, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Materialize", in, opts...)
}

// Stats reports store sizes
func (c *Client) Stats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.call(ctx, "Stats", map[string]interface{}{}, opts...)
}
