// Package linkv1 defines the gRPC object link between flightlog and the
// simulator daemon. Messages are protobuf well-known types; an object address
// travels in front of its payload inside a BytesValue:
//
//	type id   uint32 LE
//	instance  uint16 LE
//	data      remaining bytes
package linkv1

import (
	"context"
	"encoding/binary"
	"errors"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "flightlog.link.v1.Link"

// Full method names.
const (
	Link_RequestObject_FullMethodName = "/" + ServiceName + "/RequestObject"
	Link_WriteObject_FullMethodName   = "/" + ServiceName + "/WriteObject"
	Link_Status_FullMethodName        = "/" + ServiceName + "/Status"
	Link_Shutdown_FullMethodName      = "/" + ServiceName + "/Shutdown"
)

// addressSize is the length of the object address prefix.
const addressSize = 6

// ErrShortMessage is returned for a message too short to hold an address.
var ErrShortMessage = errors.New("message shorter than object address")

// Object is an addressed object payload.
type Object struct {
	TypeID   uint32
	Instance uint16
	Data     []byte
}

// Pack encodes o into a BytesValue.
func (o Object) Pack() *wrapperspb.BytesValue {
	b := make([]byte, addressSize+len(o.Data))
	binary.LittleEndian.PutUint32(b[0:4], o.TypeID)
	binary.LittleEndian.PutUint16(b[4:6], o.Instance)
	copy(b[addressSize:], o.Data)
	return wrapperspb.Bytes(b)
}

// Unpack decodes a BytesValue built by Pack. Data aliases the message.
func Unpack(v *wrapperspb.BytesValue) (Object, error) {
	b := v.GetValue()
	if len(b) < addressSize {
		return Object{}, ErrShortMessage
	}
	return Object{
		TypeID:   binary.LittleEndian.Uint32(b[0:4]),
		Instance: binary.LittleEndian.Uint16(b[4:6]),
		Data:     b[addressSize:],
	}, nil
}

// LinkClient is the client API for the Link service.
type LinkClient interface {
	// RequestObject reads an object. The request carries only the address;
	// the response carries the address and the current value.
	RequestObject(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error)
	// WriteObject replaces an object value.
	WriteObject(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error)
	// Status reports daemon and device health.
	Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	// Shutdown asks the daemon to exit.
	Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
}

type linkClient struct {
	cc grpc.ClientConnInterface
}

// NewLinkClient creates a client on cc.
func NewLinkClient(cc grpc.ClientConnInterface) LinkClient {
	return &linkClient{cc}
}

func (c *linkClient) RequestObject(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*wrapperspb.BytesValue, error) {
	out := new(wrapperspb.BytesValue)
	if err := c.cc.Invoke(ctx, Link_RequestObject_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *linkClient) WriteObject(ctx context.Context, in *wrapperspb.BytesValue, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Link_WriteObject_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *linkClient) Status(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, Link_Status_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *linkClient) Shutdown(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	out := new(emptypb.Empty)
	if err := c.cc.Invoke(ctx, Link_Shutdown_FullMethodName, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// LinkServer is the server API for the Link service. Implementations must
// embed UnimplementedLinkServer.
type LinkServer interface {
	RequestObject(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error)
	WriteObject(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error)
	Status(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	mustEmbedUnimplementedLinkServer()
}

// UnimplementedLinkServer answers every method with codes.Unimplemented.
type UnimplementedLinkServer struct{}

func (UnimplementedLinkServer) RequestObject(context.Context, *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	return nil, status.Error(codes.Unimplemented, "method RequestObject not implemented")
}

func (UnimplementedLinkServer) WriteObject(context.Context, *wrapperspb.BytesValue) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method WriteObject not implemented")
}

func (UnimplementedLinkServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Status not implemented")
}

func (UnimplementedLinkServer) Shutdown(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, status.Error(codes.Unimplemented, "method Shutdown not implemented")
}

func (UnimplementedLinkServer) mustEmbedUnimplementedLinkServer() {}

// RegisterLinkServer registers srv on s.
func RegisterLinkServer(s grpc.ServiceRegistrar, srv LinkServer) {
	s.RegisterService(&Link_ServiceDesc, srv)
}

func handler[Req any, Resp any](method string, call func(LinkServer, context.Context, *Req) (*Resp, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(LinkServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: method}
		return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
			return call(srv.(LinkServer), ctx, req.(*Req))
		})
	}
}

// Link_ServiceDesc is the grpc.ServiceDesc for the Link service.
var Link_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LinkServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "RequestObject",
			Handler:    handler(Link_RequestObject_FullMethodName, LinkServer.RequestObject),
		},
		{
			MethodName: "WriteObject",
			Handler:    handler(Link_WriteObject_FullMethodName, LinkServer.WriteObject),
		},
		{
			MethodName: "Status",
			Handler:    handler(Link_Status_FullMethodName, LinkServer.Status),
		},
		{
			MethodName: "Shutdown",
			Handler:    handler(Link_Shutdown_FullMethodName, LinkServer.Shutdown),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "flightlog/link/v1/link.proto",
}
