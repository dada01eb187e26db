// Package grpcserver runs the relay's admin gRPC surface: health checking and, in dev, reflection.
package grpcserver

import (
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// SessionRelayService is the health service name of the session issuance relay.
const SessionRelayService = "dojo.chatkit.SessionRelay"

// Health tracks serving status. The overall ("") status follows process
// liveness; SessionRelayService additionally requires the upstream secret.
type Health struct {
	srv *health.Server
}

// NewHealth constructs Health with the session relay status derived from configured.
func NewHealth(configured bool) *Health {
	h := &Health{srv: health.NewServer()}
	h.srv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	h.SetConfigured(configured)
	return h
}

// SetConfigured updates the session relay status.
func (h *Health) SetConfigured(configured bool) {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if configured {
		st = healthpb.HealthCheckResponse_SERVING
	}
	h.srv.SetServingStatus(SessionRelayService, st)
}

// Shutdown flips every service to NOT_SERVING and ignores later updates.
func (h *Health) Shutdown() { h.srv.Shutdown() }

// NewServer builds the admin gRPC server with logging/recovery interceptors,
// tracing and the health service registered.
func NewServer(log *zap.Logger, h *Health, dev bool, opts ...grpc.ServerOption) *grpc.Server {
	opts = append(opts,
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			RequestIDUnary(),
			LoggingUnary(log),
			RecoverUnary(log),
		),
	)
	s := grpc.NewServer(opts...)
	healthpb.RegisterHealthServer(s, h.srv)
	if dev {
		reflection.Register(s)
	}
	return s
}
