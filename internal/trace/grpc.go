package trace

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// UnaryServerInterceptor extracts trace context from incoming gRPC metadata
// and logs each call at debug level.
func UnaryServerInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		ctx = WithContext(ctx, extractMetadata(ctx))
		resp, err := handler(ctx, req)
		Logger(ctx).Debug("grpc call", "method", info.FullMethod, "error", err)
		return resp, err
	}
}

// extractMetadata reads trace ids from incoming gRPC metadata.
func extractMetadata(ctx context.Context) Context {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return New()
	}
	m := make(map[string]string, 2)
	for _, key := range []string{TraceIDKey, SpanIDKey} {
		if vals := md.Get(key); len(vals) > 0 {
			m[key] = vals[0]
		}
	}
	return FromMap(m)
}
