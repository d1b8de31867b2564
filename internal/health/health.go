// Package health serves the standard gRPC health checking protocol.
package health

import (
	"context"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/ashureev/handoff-chat/internal/provider"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
)

// ChatService is the service name whose status reflects whether chat turns
// can reach the completion provider.
const ChatService = "handoff.chat.v1.Chat"

// Pinger is satisfied by store.Repository.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Config configures the health server.
type Config struct {
	Interval     time.Duration
	PingTimeout  time.Duration
	KeepaliveMax time.Duration
}

// DefaultConfig returns default health server configuration.
func DefaultConfig() Config {
	return Config{
		Interval:     15 * time.Second,
		PingTimeout:  2 * time.Second,
		KeepaliveMax: 2 * time.Minute,
	}
}

// Server owns a gRPC server exposing grpc.health.v1.Health.
//
// The overall status ("") is SERVING while the database answers pings.
// ChatService is additionally NOT_SERVING while the provider has no
// credential configured.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	db       Pinger
	provider provider.Provider
	cfg      Config
	logger   *slog.Logger

	mu   sync.Mutex
	last map[string]healthpb.HealthCheckResponse_ServingStatus
}

// NewServer creates a health server. p may be nil.
func NewServer(db Pinger, p provider.Provider, cfg Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.PingTimeout <= 0 {
		cfg.PingTimeout = def.PingTimeout
	}
	if cfg.KeepaliveMax <= 0 {
		cfg.KeepaliveMax = def.KeepaliveMax
	}

	gs := grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle: cfg.KeepaliveMax,
			Time:              cfg.KeepaliveMax,
			Timeout:           10 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             30 * time.Second,
			PermitWithoutStream: true,
		}),
	)
	hs := health.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	s := &Server{
		grpc:     gs,
		health:   hs,
		db:       db,
		provider: p,
		cfg:      cfg,
		logger:   logger,
		last:     make(map[string]healthpb.HealthCheckResponse_ServingStatus),
	}
	hs.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	hs.SetServingStatus(ChatService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Update probes dependencies once and publishes the resulting statuses.
func (s *Server) Update(ctx context.Context) {
	overall := healthpb.HealthCheckResponse_SERVING
	if s.db != nil {
		pingCtx, cancel := context.WithTimeout(ctx, s.cfg.PingTimeout)
		err := s.db.Ping(pingCtx)
		cancel()
		if err != nil {
			s.logger.Warn("Health check: database ping failed", "error", err)
			overall = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	chat := overall
	if checker, ok := s.provider.(provider.CredentialChecker); ok {
		if missing := checker.MissingCredential(); missing != "" {
			chat = healthpb.HealthCheckResponse_NOT_SERVING
		}
	}

	s.set("", overall)
	s.set(ChatService, chat)
}

func (s *Server) set(service string, status healthpb.HealthCheckResponse_ServingStatus) {
	s.mu.Lock()
	prev, seen := s.last[service]
	s.last[service] = status
	s.mu.Unlock()

	if !seen || prev != status {
		s.logger.Info("Health status changed", "service", service, "status", status.String())
	}
	s.health.SetServingStatus(service, status)
}

// Run updates statuses on a ticker until ctx is done.
func (s *Server) Run(ctx context.Context) {
	s.Update(ctx)
	ticker := time.NewTicker(s.cfg.Interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.Update(ctx)
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Serve accepts gRPC connections on lis. It blocks until Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.logger.Info("gRPC health server listening", "addr", lis.Addr().String())
	return s.grpc.Serve(lis)
}

// Stop marks every service NOT_SERVING and drains in-flight RPCs.
func (s *Server) Stop() {
	s.health.Shutdown()
	s.grpc.GracefulStop()
}
