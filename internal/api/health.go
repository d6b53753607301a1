package api

import (
	"net"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the name the engine registers with the gRPC health service.
const ServiceName = "tracespectra.Engine"

// NewHealthServer creates a gRPC server that exposes the standard health
// service with the engine marked as serving.
func NewHealthServer() (*grpc.Server, *health.Server) {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)

	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)
	return srv, hs
}

// ServeHealth listens on addr and serves the health service until srv stops.
func ServeHealth(srv *grpc.Server, addr string) error {
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	log.Printf("gRPC health server starting on %s", addr)
	return srv.Serve(lis)
}
