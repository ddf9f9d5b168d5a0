package httpapi

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"tms.dev/internal/obs"
)

// GRPCServer reports readiness through the standard grpc.health.v1 service.
type GRPCServer struct {
	health    *health.Server
	readiness readinessChecker
	version   string
	log       logrus.FieldLogger
}

// NewGRPCServer creates the health wrapper. Both the overall status ("") and serviceName
// start NOT_SERVING until the first Refresh.
func NewGRPCServer(r readinessChecker, version string, log logrus.FieldLogger) *GRPCServer {
	if r == nil {
		r = ReadyProbe{}
	}
	if log == nil {
		log = obs.Logger()
	}
	s := &GRPCServer{
		health:    health.NewServer(),
		readiness: r,
		version:   version,
		log:       log,
	}
	s.set(healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// Register attaches the health service to srv.
func (s *GRPCServer) Register(srv *grpc.Server) {
	healthpb.RegisterHealthServer(srv, s.health)
}

// Refresh runs the readiness probe once and publishes the result.
func (s *GRPCServer) Refresh(ctx context.Context) bool {
	if err := s.readiness.Check(ctx); err != nil {
		obs.SetReady(false)
		s.set(healthpb.HealthCheckResponse_NOT_SERVING)
		s.log.WithError(err).WithField("version", s.version).Warn("readiness probe failed")
		return false
	}
	obs.SetReady(true)
	s.set(healthpb.HealthCheckResponse_SERVING)
	return true
}

// Run refreshes on every tick until ctx is done, then marks the service as shutting down.
func (s *GRPCServer) Run(ctx context.Context, interval time.Duration) {
	s.Refresh(ctx)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.health.Shutdown()
			return
		case <-ticker.C:
			probeCtx, cancel := context.WithTimeout(ctx, interval)
			s.Refresh(probeCtx)
			cancel()
		}
	}
}

func (s *GRPCServer) set(status healthpb.HealthCheckResponse_ServingStatus) {
	s.health.SetServingStatus("", status)
	s.health.SetServingStatus(serviceName, status)
}
