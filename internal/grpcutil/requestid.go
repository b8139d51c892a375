// Package grpcutil propagates request ids across process boundaries as gRPC
// metadata so one browser request can be traced through the whole chain.
package grpcutil

import (
	"context"

	grpc_middleware "github.com/grpc-ecosystem/go-grpc-middleware"
	"github.com/rs/zerolog"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// MetadataKey is the wire name of the request id, matching the HTTP header
// X-Request-ID at the edge.
const MetadataKey = "x-request-id"

type ctxKey struct{}

// WithRequestID stores a request id on the context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// RequestID returns the request id on the context, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(ctxKey{}).(string)
	return id
}

func fromIncoming(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get(MetadataKey)
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}

func toOutgoing(ctx context.Context) context.Context {
	if id := RequestID(ctx); id != "" {
		return metadata.AppendToOutgoingContext(ctx, MetadataKey, id)
	}
	return ctx
}

// UnaryClientInterceptor copies the context request id into outgoing metadata.
func UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		return invoker(toOutgoing(ctx), method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor copies the context request id into outgoing metadata.
func StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		return streamer(toOutgoing(ctx), desc, cc, method, opts...)
	}
}

// UnaryServerInterceptor lifts the request id out of incoming metadata, puts
// it on the handler context, and logs the call with it attached.
func UnaryServerInterceptor(logger zerolog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if id := fromIncoming(ctx); id != "" {
			ctx = WithRequestID(ctx, id)
			logger.Debug().Str("request_id", id).Str("method", info.FullMethod).Msg("rpc")
		}
		return handler(ctx, req)
	}
}

// StreamServerInterceptor is the streaming counterpart of
// UnaryServerInterceptor.
func StreamServerInterceptor(logger zerolog.Logger) grpc.StreamServerInterceptor {
	return func(srv interface{}, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
		if id := fromIncoming(ss.Context()); id != "" {
			wrapped := grpc_middleware.WrapServerStream(ss)
			wrapped.WrappedContext = WithRequestID(ss.Context(), id)
			logger.Debug().Str("request_id", id).Str("method", info.FullMethod).Msg("rpc stream")
			ss = wrapped
		}
		return handler(srv, ss)
	}
}

// ServerOptions bundles the request-id interceptor chain for a gRPC server.
func ServerOptions(logger zerolog.Logger) []grpc.ServerOption {
	return []grpc.ServerOption{
		grpc.UnaryInterceptor(grpc_middleware.ChainUnaryServer(
			UnaryServerInterceptor(logger),
		)),
		grpc.StreamInterceptor(grpc_middleware.ChainStreamServer(
			StreamServerInterceptor(logger),
		)),
	}
}
