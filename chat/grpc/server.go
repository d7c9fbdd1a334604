// Package grpc exposes a gRPC health endpoint for orchestrators that probe
// over gRPC instead of HTTP.
package grpc

import (
	"net"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"qna-chatbot/backend/pkg/logger"
)

// StartHealthServer serves the standard gRPC health service on the given
// port. Blocks; run in a goroutine.
func StartHealthServer(port string, log *logger.Logger) error {
	lis, err := net.Listen("tcp", ":"+port)
	if err != nil {
		return err
	}

	server := grpc.NewServer()
	healthServer := health.NewServer()
	healthpb.RegisterHealthServer(server, healthServer)
	healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)

	log.Info("gRPC health server listening", "port", port)
	return server.Serve(lis)
}
