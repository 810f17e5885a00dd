package linkv1

import (
	"context"
	"net"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

func TestObjectPackUnpack(t *testing.T) {
	o := Object{TypeID: 0xDEADBEEF, Instance: 7, Data: []byte{1, 2, 3}}
	got, err := Unpack(o.Pack())
	require.NoError(t, err)
	assert.Equal(t, o, got)

	empty, err := Unpack(Object{TypeID: 1}.Pack())
	require.NoError(t, err)
	assert.Empty(t, empty.Data)

	_, err = Unpack(wrapperspb.Bytes([]byte{1, 2}))
	assert.ErrorIs(t, err, ErrShortMessage)
}

type echoServer struct {
	UnimplementedLinkServer
}

func (echoServer) RequestObject(_ context.Context, in *wrapperspb.BytesValue) (*wrapperspb.BytesValue, error) {
	o, err := Unpack(in)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}
	o.Data = []byte("value")
	return o.Pack(), nil
}

func (echoServer) Status(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return structpb.NewStruct(map[string]any{"running": true})
}

func dial(t *testing.T, srv LinkServer, opts ...grpc.ServerOption) LinkClient {
	t.Helper()
	lis := bufconn.Listen(1 << 16)
	s := grpc.NewServer(opts...)
	RegisterLinkServer(s, srv)
	go func() { _ = s.Serve(lis) }()
	t.Cleanup(s.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewLinkClient(conn)
}

func TestServiceRoundTrip(t *testing.T) {
	var (
		mu          sync.Mutex
		intercepted []string
	)
	client := dial(t, echoServer{}, grpc.UnaryInterceptor(func(ctx context.Context, req any, info *grpc.UnaryServerInfo, h grpc.UnaryHandler) (any, error) {
		mu.Lock()
		intercepted = append(intercepted, info.FullMethod)
		mu.Unlock()
		return h(ctx, req)
	}))
	ctx := context.Background()

	resp, err := client.RequestObject(ctx, Object{TypeID: 42, Instance: 1}.Pack())
	require.NoError(t, err)
	o, err := Unpack(resp)
	require.NoError(t, err)
	assert.Equal(t, Object{TypeID: 42, Instance: 1, Data: []byte("value")}, o)

	st, err := client.Status(ctx, &emptypb.Empty{})
	require.NoError(t, err)
	assert.True(t, st.GetFields()["running"].GetBoolValue())

	_, err = client.WriteObject(ctx, Object{TypeID: 42}.Pack())
	assert.Equal(t, codes.Unimplemented, status.Code(err))

	_, err = client.RequestObject(ctx, wrapperspb.Bytes(nil))
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, intercepted, Link_RequestObject_FullMethodName)
	assert.Contains(t, intercepted, Link_Status_FullMethodName)
}
