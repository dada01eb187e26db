// Command dojo-relay serves the ChatKit session relay and widget action sink.
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"

	"github.com/and161185/dojo-relay/internal/config"
	grpcserver "github.com/and161185/dojo-relay/internal/server/grpc"
	"github.com/and161185/dojo-relay/internal/server/httpserver"
	"github.com/and161185/dojo-relay/internal/service"
	"github.com/and161185/dojo-relay/internal/telemetry"
	"github.com/and161185/dojo-relay/internal/upstream"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// parseFlags overrides environment configuration with command-line flags.
// The upstream secret has no flag.
func parseFlags(cfg *config.Config, args []string) error {
	fs := pflag.NewFlagSet("dojo-relay", pflag.ContinueOnError)
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.HealthAddr, "health-addr", cfg.HealthAddr, "gRPC health listen address (empty disables)")
	fs.StringVar(&cfg.TLSCert, "tls-cert", cfg.TLSCert, "TLS certificate (PEM)")
	fs.StringVar(&cfg.TLSKey, "tls-key", cfg.TLSKey, "TLS private key (PEM)")
	fs.BoolVar(&cfg.Dev, "dev", cfg.Dev, "development logging and gRPC reflection")
	return fs.Parse(args)
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// main loads configuration and runs the HTTP relay plus the admin health server until signalled.
func main() {
	cfg, err := config.Load()
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(2)
	}
	if err := parseFlags(&cfg, os.Args[1:]); err != nil {
		os.Exit(2)
	}

	logger, _ := newLogger(cfg.Dev)
	defer func() { _ = logger.Sync() }()
	logger.Info("starting",
		zap.String("version", version),
		zap.String("buildDate", buildDate),
		zap.String("addr", cfg.Addr),
		zap.String("healthAddr", cfg.HealthAddr),
		zap.Bool("tls", cfg.TLSEnabled()),
	)

	// missing secret degrades the session endpoint only
	if !cfg.HasSecret() {
		logger.Warn("OPENAI_API_KEY is not set; session requests will fail with a configuration error")
	}

	// Context with OS signals
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, "dojo-relay", version)
	if err != nil {
		logger.Warn("tracing disabled", zap.Error(err))
	}

	// Services
	chatkit := upstream.New(upstream.Config{
		SessionsURL: cfg.SessionsURL,
		WorkflowID:  cfg.WorkflowID,
		APIKey:      cfg.APIKey,
		Timeout:     cfg.UpstreamTimeout,
	})
	sessions := service.NewSessionService(chatkit, logger)
	actions := service.NewActionLogService(logger)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpserver.New(sessions, actions, logger, cfg.MaxBodyBytes).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Health & reflection (dev)
	hs := grpcserver.NewHealth(cfg.HasSecret())
	var grpcOpts []grpc.ServerOption
	if cfg.TLSEnabled() {
		creds, err := credentials.NewServerTLSFromFile(cfg.TLSCert, cfg.TLSKey)
		if err != nil {
			logger.Fatal("failed to load TLS cert/key", zap.Error(err))
		}
		grpcOpts = append(grpcOpts, grpc.Creds(creds))
	}
	adm := grpcserver.NewServer(logger, hs, cfg.Dev, grpcOpts...)

	errCh := make(chan error, 2)
	go func() {
		logger.Info("listening (HTTP)", zap.String("addr", cfg.Addr))
		var err error
		if cfg.TLSEnabled() {
			err = httpSrv.ListenAndServeTLS(cfg.TLSCert, cfg.TLSKey)
		} else {
			err = httpSrv.ListenAndServe()
		}
		if !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()
	if cfg.HealthAddr != "" {
		lis, err := net.Listen("tcp", cfg.HealthAddr)
		if err != nil {
			logger.Fatal("listen", zap.Error(err))
		}
		go func() {
			logger.Info("listening (gRPC health)", zap.String("addr", cfg.HealthAddr))
			errCh <- adm.Serve(lis)
		}()
	}

	// Wait for stop
	exit := 0
	select {
	case <-ctx.Done():
	case err := <-errCh:
		logger.Error("server error", zap.Error(err))
		exit = 1
	}

	// graceful shutdown
	hs.Shutdown()
	sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpSrv.Shutdown(sctx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	done := make(chan struct{})
	go func() {
		adm.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-sctx.Done():
		adm.Stop()
	}
	if shutdownTracing != nil {
		if err := shutdownTracing(sctx); err != nil {
			logger.Warn("tracing shutdown", zap.Error(err))
		}
	}

	logger.Info("shutdown complete")
	if exit != 0 {
		_ = logger.Sync()
		os.Exit(exit)
	}
}
