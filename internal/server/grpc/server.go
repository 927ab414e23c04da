// Package grpc serves the standard gRPC health protocol for the filing
// server, reflecting database reachability.
package grpc

import (
	"context"
	"net"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/dmitrijs2005/filingapi/internal/logging"
)

// ServiceName is the health service name reported next to the overall ("") status.
const ServiceName = "filing.v1.FilingService"

// Checker reports whether the server can do useful work.
type Checker func(ctx context.Context) error

type GRPCServer struct {
	address  string
	health   *health.Server
	check    Checker
	interval time.Duration
	logger   logging.Logger
}

// NewGRPCServer builds a health-only server probing check every interval.
// A nil check is always healthy.
func NewGRPCServer(a string, l logging.Logger, check Checker, interval time.Duration) *GRPCServer {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &GRPCServer{
		address:  a,
		health:   health.NewServer(),
		check:    check,
		interval: interval,
		logger:   l.With("module", "grpc_server"),
	}
}

func (s *GRPCServer) Run(ctx context.Context) error {

	// announces address
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}

	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor))
	healthpb.RegisterHealthServer(srv, s.health)

	s.probe(ctx)
	go s.watch(ctx)

	go func() {
		<-ctx.Done()
		s.logger.Info(ctx, "Stopping gRPC server...")
		s.health.Shutdown()
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", s.address)

	// starts accepting incoming connections
	if err := srv.Serve(listen); err != nil {
		return err
	}

	return nil
}
