package server

import (
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/GriffinCanCode/orb/internal/trace"
)

// GRPCServer returns a gRPC server carrying the health service. The orb
// service reports SERVING while ambient playback runs.
func (s *Server) GRPCServer() *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(trace.UnaryServerInterceptor()))
	healthpb.RegisterHealthServer(srv, s.health)
	s.refreshHealth()
	return srv
}

func (s *Server) refreshHealth() {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if s.ctrl.Status().Snapshot().AmbientRunning {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus(HealthService, status)
	s.health.SetServingStatus("", status)
}
