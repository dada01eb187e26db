package grpcserver

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
	"go.uber.org/zap/zaptest/observer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"

	"github.com/and161185/dojo-relay/internal/server/edge"
)

type fakeAddr struct{}

func (fakeAddr) Network() string { return "tcp" }
func (fakeAddr) String() string  { return "127.0.0.1:12345" }

func TestLoggingUnary_Passthrough(t *testing.T) {
	t.Parallel()

	ic := LoggingUnary(zaptest.NewLogger(t))
	ctx := peer.NewContext(context.Background(), &peer.Peer{Addr: fakeAddr{}})
	info := &grpc.UnaryServerInfo{FullMethod: "/dojo.Admin/Method"}

	h := func(ctx context.Context, req any) (any, error) { return "ok", nil }
	resp, err := ic(ctx, "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if s, _ := resp.(string); s != "ok" {
		t.Fatalf("resp mismatch: %v", resp)
	}

	wantErr := errors.New("boom")
	hErr := func(ctx context.Context, req any) (any, error) { return nil, wantErr }
	_, err = ic(ctx, "req", info, hErr)
	if !errors.Is(err, wantErr) {
		t.Fatalf("want original error, got: %v", err)
	}
}

func TestLoggingUnary_HealthProbesAtDebug(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	ic := LoggingUnary(zap.New(core))
	ok := func(ctx context.Context, req any) (any, error) { return nil, nil }
	fail := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, ok)
	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/grpc.health.v1.Health/Check"}, fail)
	_, _ = ic(context.Background(), nil, &grpc.UnaryServerInfo{FullMethod: "/dojo.Admin/Other"}, ok)

	entries := logs.All()
	if len(entries) != 3 {
		t.Fatalf("want 3 entries, got %d", len(entries))
	}
	if entries[0].Level != zapcore.DebugLevel {
		t.Fatalf("healthy probe should log at debug, got %s", entries[0].Level)
	}
	if entries[1].Level != zapcore.InfoLevel || entries[1].ContextMap()["status"] != "NotFound" {
		t.Fatalf("failed probe should log at info with code, got %s %v", entries[1].Level, entries[1].ContextMap())
	}
	if entries[2].Level != zapcore.InfoLevel {
		t.Fatalf("regular call should log at info, got %s", entries[2].Level)
	}
}

func TestRecoverUnary_CatchesPanic(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/dojo.Admin/Panic"}
	panicH := func(ctx context.Context, req any) (any, error) {
		panic("oh no")
	}

	_, err := ic(context.Background(), "req", info, panicH)
	if err == nil {
		t.Fatalf("expected error from panic")
	}
	st, ok := status.FromError(err)
	if !ok || st.Code() != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}
}

func TestRecoverUnary_NoPanicPassThrough(t *testing.T) {
	t.Parallel()

	ic := RecoverUnary(zaptest.NewLogger(t))
	info := &grpc.UnaryServerInfo{FullMethod: "/dojo.Admin/Ok"}
	h := func(ctx context.Context, req any) (any, error) { return 42, nil }

	resp, err := ic(context.Background(), "req", info, h)
	if err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if resp.(int) != 42 {
		t.Fatalf("resp mismatch: %v", resp)
	}
}

func TestRequestIDUnary_ReusesOrMints(t *testing.T) {
	t.Parallel()

	ic := RequestIDUnary()
	info := &grpc.UnaryServerInfo{FullMethod: "/dojo.Admin/Method"}
	var got string
	h := func(ctx context.Context, req any) (any, error) {
		got, _ = edge.RequestIDFromCtx(ctx)
		return nil, nil
	}

	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "abc-123"))
	if _, err := ic(ctx, nil, info, h); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if got != "abc-123" {
		t.Fatalf("want caller id, got %q", got)
	}

	if _, err := ic(context.Background(), nil, info, h); err != nil {
		t.Fatalf("unexpected err: %v", err)
	}
	if len(got) != 36 {
		t.Fatalf("want minted uuid, got %q", got)
	}
}

func TestInterceptors_ShareRequestIDInLogs(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	log := zap.New(core)
	info := &grpc.UnaryServerInfo{FullMethod: "/dojo.Admin/Panic"}
	panicH := func(ctx context.Context, req any) (any, error) { panic("oh no") }

	chained := func(ctx context.Context, req any) (any, error) {
		return LoggingUnary(log)(ctx, req, info, func(ctx context.Context, req any) (any, error) {
			return RecoverUnary(log)(ctx, req, info, panicH)
		})
	}
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs("x-request-id", "rid-7"))
	_, err := RequestIDUnary()(ctx, nil, info, chained)
	if status.Code(err) != codes.Internal {
		t.Fatalf("want codes.Internal, got: %v", err)
	}

	entries := logs.All()
	if len(entries) != 2 {
		t.Fatalf("want panic + access entries, got %d", len(entries))
	}
	for _, e := range entries {
		if e.ContextMap()["requestID"] != "rid-7" || e.ContextMap()["route"] != info.FullMethod {
			t.Fatalf("entry %q lacks shared fields: %v", e.Message, e.ContextMap())
		}
	}
}
