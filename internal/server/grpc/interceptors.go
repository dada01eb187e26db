package grpcserver

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/dojo-relay/internal/server/edge"
)

// healthPrefix marks probe traffic, which is logged at debug level.
const healthPrefix = "/grpc.health.v1.Health/"

var requestIDKey = strings.ToLower(edge.RequestIDHeader)

// RequestIDUnary reuses the caller's x-request-id metadata or mints one, and echoes it as a header.
func RequestIDUnary() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		var incoming string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if v := md.Get(requestIDKey); len(v) > 0 {
				incoming = v[0]
			}
		}
		id := edge.ResolveRequestID(incoming)
		// no transport stream outside a real server call
		_ = grpc.SetHeader(ctx, metadata.Pairs(requestIDKey, id))
		return next(edge.WithRequestID(ctx, id), req)
	}
}

// LoggingUnary returns a unary server interceptor for structured logging.
func LoggingUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := next(ctx, req)
		code := status.Code(err)

		var remote string
		if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
			remote = p.Addr.String()
		}

		lvl := zapcore.InfoLevel
		if strings.HasPrefix(info.FullMethod, healthPrefix) && code == codes.OK {
			lvl = zapcore.DebugLevel
		}
		log.Log(lvl, "grpc", edge.Access(ctx, info.FullMethod, code.String(), time.Since(start), remote)...)
		return resp, err
	}
}

// RecoverUnary returns a unary server interceptor that turns panics into codes.Internal.
func RecoverUnary(log *zap.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				log.Error("panic", edge.Panic(ctx, info.FullMethod, r)...)
				err = status.Error(codes.Internal, "internal")
			}
		}()
		return next(ctx, req)
	}
}
