package grpc_control

import (
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"quote-proxy/src/interfaces"
	"quote-proxy/src/logger"
	"quote-proxy/src/models"

	"github.com/juju/clock"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"
)

// ServiceName is the health-checked service, besides the server-wide "" entry.
const ServiceName = "quoteproxy.QuoteProxy"

const (
	DefaultCheckInterval = 10 * time.Second
	checkTimeout         = 2 * time.Second
)

// HealthService serves grpc.health.v1 for the proxy. Status follows the
// cache store: SERVING while it answers Ping, NOT_SERVING otherwise.
type HealthService struct {
	Config   *models.MConfig
	Store    interfaces.ICacheStore
	Logger   *logger.Logger
	Clock    clock.Clock
	Interval time.Duration

	health *health.Server
	server *grpc.Server

	mu     sync.Mutex
	status healthpb.HealthCheckResponse_ServingStatus
}

// NewHealthService creates a new instance of HealthService
func NewHealthService(cfg *models.MConfig, store interfaces.ICacheStore, log *logger.Logger) *HealthService {
	return &HealthService{
		Config:   cfg,
		Store:    store,
		Logger:   log,
		Clock:    clock.WallClock,
		Interval: DefaultCheckInterval,
		health:   health.NewServer(),
		status:   healthpb.HealthCheckResponse_UNKNOWN,
	}
}

// -----------------------------------------------------------------------------

// CheckOnce pings the store and publishes the result.
func (s *HealthService) CheckOnce(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	status := healthpb.HealthCheckResponse_SERVING
	err := s.Store.Ping(ctx)
	if err != nil {
		status = healthpb.HealthCheckResponse_NOT_SERVING
	}

	s.mu.Lock()
	changed := status != s.status
	s.status = status
	s.mu.Unlock()

	if changed {
		if err != nil {
			s.Logger.Warning("gRPC health: %s (store: %v)", status, err)
		} else {
			s.Logger.Info("gRPC health: %s", status)
		}
	}

	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(ServiceName, status)
	return status
}

// -----------------------------------------------------------------------------

// Watch checks the store every Interval until ctx is done.
func (s *HealthService) Watch(ctx context.Context) {
	s.CheckOnce(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.Clock.After(s.Interval):
			s.CheckOnce(ctx)
		}
	}
}

// -----------------------------------------------------------------------------

// Start listens on grpc_host:grpc_port and blocks until Stop.
func (s *HealthService) Start(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.Config.GrpcHost, s.Config.GrpcPort)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	s.Logger.Info("Starting gRPC health server on %s", addr)
	return s.Serve(ctx, lis)
}

// -----------------------------------------------------------------------------

// Serve runs the gRPC server on lis and the health check loop alongside it.
func (s *HealthService) Serve(ctx context.Context, lis net.Listener) error {
	s.mu.Lock()
	s.server = grpc.NewServer()
	srv := s.server
	s.mu.Unlock()

	healthpb.RegisterHealthServer(srv, s.health)
	reflection.Register(srv)

	go s.Watch(ctx)
	return srv.Serve(lis)
}

// -----------------------------------------------------------------------------

func (s *HealthService) Stop() {
	// Marks everything NOT_SERVING so watchers see the shutdown
	s.health.Shutdown()

	s.mu.Lock()
	srv := s.server
	s.mu.Unlock()
	if srv != nil {
		srv.GracefulStop()
	}
}
