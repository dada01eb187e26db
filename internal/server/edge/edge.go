// Package edge holds what the HTTP and gRPC edges share: request correlation
// and the field sets of access and panic log entries.
package edge

import (
	"context"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

// RequestIDHeader carries the correlation ID (HTTP header, gRPC metadata key in lower case).
const RequestIDHeader = "X-Request-ID"

// maxRequestIDLen caps client-supplied IDs before they reach logs.
const maxRequestIDLen = 128

type ctxKey string

const requestIDKey ctxKey = "dojo.requestID"

// ResolveRequestID reuses a sane incoming ID or mints a UUIDv4.
func ResolveRequestID(incoming string) string {
	id := strings.TrimSpace(incoming)
	if id != "" && len(id) <= maxRequestIDLen {
		return id
	}
	if v, err := uuid.NewV4(); err == nil {
		return v.String()
	}
	return ""
}

// WithRequestID stores the request correlation ID in context.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestIDFromCtx fetches the request correlation ID from context.
func RequestIDFromCtx(ctx context.Context) (string, bool) {
	v := ctx.Value(requestIDKey)
	if v == nil {
		return "", false
	}
	id, ok := v.(string)
	return id, ok && id != ""
}

// Access returns the fields of an access log entry. Metadata only, never payloads.
func Access(ctx context.Context, route, status string, dur time.Duration, peer string) []zap.Field {
	rid, _ := RequestIDFromCtx(ctx)
	return []zap.Field{
		zap.String("route", route),
		zap.String("status", status),
		zap.Duration("dur", dur),
		zap.String("peer", peer),
		zap.String("requestID", rid),
	}
}

// Panic returns the fields of a recovered panic entry.
func Panic(ctx context.Context, route string, reason any) []zap.Field {
	rid, _ := RequestIDFromCtx(ctx)
	return []zap.Field{
		zap.String("route", route),
		zap.Any("reason", reason),
		zap.ByteString("stack", debug.Stack()),
		zap.String("requestID", rid),
	}
}
