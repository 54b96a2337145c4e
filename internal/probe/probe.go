// Package probe exposes the standard gRPC health-checking service backed by
// a database ping, for orchestrators that probe over gRPC.
package probe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service name reported alongside the overall "" entry.
const ServiceName = "healthchat.Chat"

const (
	defaultInterval = 15 * time.Second
	pingTimeout     = 5 * time.Second
)

// Pinger checks database connectivity.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server serves grpc.health.v1.Health and keeps its status in step with db.
type Server struct {
	grpc     *grpc.Server
	health   *health.Server
	db       Pinger
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	wg       sync.WaitGroup
}

// New creates a probe server. interval <= 0 uses 15s.
func New(db Pinger, interval time.Duration, logger *slog.Logger) *Server {
	if interval <= 0 {
		interval = defaultInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	hs := health.NewServer()
	gs := grpc.NewServer()
	healthpb.RegisterHealthServer(gs, hs)

	return &Server{
		grpc:     gs,
		health:   hs,
		db:       db,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
	}
}

// Check pings the database once and publishes the result.
func (s *Server) Check(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	if err := s.db.Ping(ctx); err != nil {
		s.logger.Warn("gRPC health probe: database unreachable", "error", err)
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// Serve checks once, starts the refresh loop and blocks serving lis until
// Stop is called.
func (s *Server) Serve(lis net.Listener) error {
	s.Check(context.Background())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.refreshLoop()
	}()

	s.logger.Info("gRPC health probe listening", "addr", lis.Addr().String())
	if err := s.grpc.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return fmt.Errorf("serve gRPC health probe: %w", err)
	}
	return nil
}

// Stop marks the service NOT_SERVING and drains in-flight probes.
func (s *Server) Stop() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.health.Shutdown()
		s.grpc.GracefulStop()
		s.wg.Wait()
	})
}

func (s *Server) refreshLoop() {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			s.Check(context.Background())
		}
	}
}
