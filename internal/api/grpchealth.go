package api

import (
	"fmt"
	"net"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	"google.golang.org/grpc/health/grpc_health_v1"
)

// HealthServer exposes per-service health over the standard gRPC
// health protocol. The empty service name reports the supervisor
// itself.
type HealthServer struct {
	srv    *grpc.Server
	health *grpchealth.Server
	ln     net.Listener
}

// NewHealthServer creates the health service; Start binds it.
func NewHealthServer() *HealthServer {
	return &HealthServer{health: grpchealth.NewServer()}
}

// Start serves the health endpoint on addr in the background.
func (h *HealthServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen grpc health: %w", err)
	}
	h.ln = ln
	h.srv = grpc.NewServer()
	grpc_health_v1.RegisterHealthServer(h.srv, h.health)
	// The supervisor itself is serving as soon as the endpoint is up.
	h.health.SetServingStatus("", grpc_health_v1.HealthCheckResponse_SERVING)
	go func() {
		_ = h.srv.Serve(ln)
	}()
	return nil
}

// Addr returns the bound address, valid after Start.
func (h *HealthServer) Addr() string {
	if h.ln == nil {
		return ""
	}
	return h.ln.Addr().String()
}

// SetServing flips one service's reported status. It implements the
// supervisor's StatusNotifier.
func (h *HealthServer) SetServing(service string, serving bool) {
	status := grpc_health_v1.HealthCheckResponse_NOT_SERVING
	if serving {
		status = grpc_health_v1.HealthCheckResponse_SERVING
	}
	h.health.SetServingStatus(service, status)
}

// Stop shuts the endpoint down gracefully.
func (h *HealthServer) Stop() {
	if h.srv == nil {
		return
	}
	h.health.Shutdown()
	h.srv.GracefulStop()
}
