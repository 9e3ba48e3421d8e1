package main

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/reflection"
)

// newHealthServer builds a gRPC server that only exposes grpc.health.v1 for
// orchestrator probes.
func newHealthServer(logger *logrus.Logger) (*grpc.Server, *health.Server) {
	opts := []grpc.ServerOption{
		grpc.Creds(insecure.NewCredentials()),
		// Probes ping rarely; allow up to one ping every 15s even without streams.
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             15 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			MaxConnectionIdle:     5 * time.Minute,
			MaxConnectionAge:      30 * time.Minute,
			MaxConnectionAgeGrace: 5 * time.Second,
			Time:                  30 * time.Second,
			Timeout:               10 * time.Second,
		}),
	}

	s := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	grpc_health_v1.RegisterHealthServer(s, healthServer)
	healthServer.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)

	// Enable reflection for grpcurl/debugging
	reflection.Register(s)

	logger.WithFields(logrus.Fields{
		"min_time":            "15s",
		"max_connection_idle": "5m",
		"max_connection_age":  "30m",
	}).Debug("Configured gRPC health server keepalive settings")

	return s, healthServer
}

// stopGRPC stops s gracefully, forcing it when ctx expires first.
func stopGRPC(ctx context.Context, s *grpc.Server, logger *logrus.Logger) {
	stopped := make(chan struct{})
	go func() {
		s.GracefulStop()
		close(stopped)
	}()

	select {
	case <-stopped:
	case <-ctx.Done():
		logger.Warn("Graceful shutdown timeout, forcing gRPC stop...")
		s.Stop()
	}
}
