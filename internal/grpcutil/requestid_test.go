package grpcutil

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

func TestRequestIDContextRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))
}

func TestUnaryClientInterceptorCopiesIDToMetadata(t *testing.T) {
	var got metadata.MD
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		got, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	ctx := WithRequestID(context.Background(), "req-42")
	err := UnaryClientInterceptor()(ctx, "/dealcart.v1.VendorBackend/GetQuote", nil, nil, nil, invoker)
	require.NoError(t, err)
	assert.Equal(t, []string{"req-42"}, got.Get(MetadataKey))
}

func TestUnaryClientInterceptorNoIDNoMetadata(t *testing.T) {
	var got metadata.MD
	invoker := func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, opts ...grpc.CallOption) error {
		got, _ = metadata.FromOutgoingContext(ctx)
		return nil
	}

	err := UnaryClientInterceptor()(context.Background(), "/m", nil, nil, nil, invoker)
	require.NoError(t, err)
	assert.Empty(t, got.Get(MetadataKey))
}

func TestUnaryServerInterceptorLiftsIDFromMetadata(t *testing.T) {
	incoming := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(MetadataKey, "req-7"))

	var seen string
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		seen = RequestID(ctx)
		return "ok", nil
	}

	resp, err := UnaryServerInterceptor(zerolog.Nop())(incoming, nil,
		&grpc.UnaryServerInfo{FullMethod: "/dealcart.v1.Checkout/Start"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, "req-7", seen)
}

type ctxStream struct {
	grpc.ServerStream
	ctx context.Context
}

func (s *ctxStream) Context() context.Context { return s.ctx }

func TestStreamServerInterceptorWrapsContext(t *testing.T) {
	incoming := metadata.NewIncomingContext(context.Background(),
		metadata.Pairs(MetadataKey, "req-9"))

	var seen string
	handler := func(srv interface{}, ss grpc.ServerStream) error {
		seen = RequestID(ss.Context())
		return nil
	}

	err := StreamServerInterceptor(zerolog.Nop())(nil, &ctxStream{ctx: incoming},
		&grpc.StreamServerInfo{FullMethod: "/dealcart.v1.VendorPricing/StreamQuotes"}, handler)
	require.NoError(t, err)
	assert.Equal(t, "req-9", seen)
}
