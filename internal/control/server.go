// Package control serves the standard gRPC health service on the instance's
// Unix socket so local tooling can probe the daemon.
package control

import (
	"context"
	"fmt"
	"net"
	"os"

	"github.com/matheus3301/courier/internal/bus"
	"github.com/matheus3301/courier/internal/status"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

// ServiceName is the health service reported alongside the overall status.
const ServiceName = "courier.Chat"

// Server manages the control socket lifecycle.
type Server struct {
	grpcServer *grpc.Server
	health     *health.Server
	listener   net.Listener
	socketPath string
	machine    *status.Machine
	logger     *zap.Logger
	events     <-chan bus.Event
	unsub      func()
	ctx        context.Context
	cancel     context.CancelFunc
}

// NewServer binds socketPath. A stale socket file is removed first.
func NewServer(socketPath string, machine *status.Machine, b *bus.Bus, logger *zap.Logger) (*Server, error) {
	if _, err := os.Stat(socketPath); err == nil {
		_ = os.Remove(socketPath)
	}

	listener, err := net.Listen("unix", socketPath)
	if err != nil {
		return nil, fmt.Errorf("listen unix socket: %w", err)
	}
	if err := os.Chmod(socketPath, 0600); err != nil {
		_ = listener.Close()
		return nil, fmt.Errorf("chmod socket: %w", err)
	}

	hs := health.NewServer()
	srv := grpc.NewServer()
	healthpb.RegisterHealthServer(srv, hs)

	s := &Server{
		grpcServer: srv,
		health:     hs,
		listener:   listener,
		socketPath: socketPath,
		machine:    machine,
		logger:     logger,
	}
	s.events, s.unsub = b.Subscribe("daemon.", 16)
	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.sync()
	return s, nil
}

// Start follows status changes and serves until Stop. Blocks.
func (s *Server) Start() error {
	go func() {
		for {
			select {
			case <-s.events:
				s.sync()
			case <-s.ctx.Done():
				return
			}
		}
	}()

	s.logger.Info("control server starting", zap.String("socket", s.socketPath))
	return s.grpcServer.Serve(s.listener)
}

// Stop performs a graceful shutdown and removes the socket file.
func (s *Server) Stop(_ context.Context) {
	s.logger.Info("control server stopping")
	s.cancel()
	s.unsub()
	s.health.Shutdown()
	s.grpcServer.GracefulStop()
	_ = s.listener.Close()
	_ = os.Remove(s.socketPath)
}

func (s *Server) sync() {
	st := healthpb.HealthCheckResponse_NOT_SERVING
	if s.machine.Serving() {
		st = healthpb.HealthCheckResponse_SERVING
	}
	s.health.SetServingStatus("", st)
	s.health.SetServingStatus(ServiceName, st)
}
