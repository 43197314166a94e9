// Package health provides liveness and readiness endpoints.
//
// Docker and Kubernetes poll /healthz over HTTP. The same state is also
// published over the standard gRPC health protocol, with an extra
// "nova.remote" service that tracks whether the backend is answering.
// The daemon itself stays healthy while the backend is down: offline
// commands keep working.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"google.golang.org/grpc"
	grpchealth "google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/nadzzz/nova/internal/message"
)

// RemoteService is the gRPC health service name reporting backend reachability.
const RemoteService = "nova.remote"

// Backend reports and refreshes backend reachability.
type Backend interface {
	Status() message.BackendStatus
	Refresh(ctx context.Context) bool
}

// Server exposes /healthz and /readyz, and optionally the gRPC health service.
type Server struct {
	port     int
	grpcPort int
	backend  Backend
	interval time.Duration

	ready      atomic.Bool
	server     *http.Server
	grpcServer *grpc.Server
	grpcHealth *grpchealth.Server
}

// New creates a new health check server. grpcPort 0 disables gRPC health.
// backend may be nil; interval controls how often it is re-probed.
func New(port, grpcPort int, backend Backend, interval time.Duration) *Server {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	s := &Server{
		port:       port,
		grpcPort:   grpcPort,
		backend:    backend,
		interval:   interval,
		grpcHealth: grpchealth.NewServer(),
	}
	s.grpcHealth.SetServingStatus("", healthpb.HealthCheckResponse_NOT_SERVING)
	s.grpcHealth.SetServingStatus(RemoteService, healthpb.HealthCheckResponse_NOT_SERVING)
	return s
}

// SetReady marks the daemon as ready to accept traffic.
func (s *Server) SetReady(ready bool) {
	s.ready.Store(ready)
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if ready {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.grpcHealth.SetServingStatus("", status)
}

// Handler returns the HTTP health endpoints.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		s.writeStatus(w, true)
	})

	mux.HandleFunc("GET /readyz", func(w http.ResponseWriter, r *http.Request) {
		s.writeStatus(w, false)
	})

	return mux
}

type statusResponse struct {
	Status  string                 `json:"status"`
	Backend *message.BackendStatus `json:"backend,omitempty"`
}

func (s *Server) writeStatus(w http.ResponseWriter, withBackend bool) {
	resp := statusResponse{Status: "ok"}
	code := http.StatusOK
	if !s.ready.Load() {
		resp.Status = "not_ready"
		code = http.StatusServiceUnavailable
	}
	if withBackend && s.backend != nil {
		st := s.backend.Status()
		resp.Backend = &st
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(resp)
}

// UpdateRemote publishes the backend's reachability to gRPC health clients.
func (s *Server) UpdateRemote(online bool) {
	status := healthpb.HealthCheckResponse_NOT_SERVING
	if online {
		status = healthpb.HealthCheckResponse_SERVING
	}
	s.grpcHealth.SetServingStatus(RemoteService, status)
}

// HealthServer exposes the gRPC health implementation, for tests and
// for registering on another gRPC server.
func (s *Server) HealthServer() healthpb.HealthServer { return s.grpcHealth }

// ListenAndServe starts the health check servers.
// It blocks until the context is cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.server = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	if s.grpcPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", s.grpcPort))
		if err != nil {
			return fmt.Errorf("grpc health listen: %w", err)
		}
		s.grpcServer = grpc.NewServer()
		healthpb.RegisterHealthServer(s.grpcServer, s.grpcHealth)
		go func() {
			slog.Info("grpc health listening", "port", s.grpcPort)
			if err := s.grpcServer.Serve(lis); err != nil {
				slog.Error("grpc health server failed", "error", err)
			}
		}()
	}

	if s.backend != nil {
		go s.watchBackend(ctx)
	}

	slog.Info("health server listening", "port", s.port)

	go func() {
		<-ctx.Done()
		s.grpcHealth.Shutdown()
		if s.grpcServer != nil {
			s.grpcServer.GracefulStop()
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = s.server.Shutdown(shutdownCtx)
	}()

	if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

// watchBackend re-probes the backend every interval and publishes the result.
func (s *Server) watchBackend(ctx context.Context) {
	s.UpdateRemote(s.backend.Status().Online)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.UpdateRemote(s.backend.Refresh(ctx))
		}
	}
}
