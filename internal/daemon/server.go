package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/matheus3301/courier/internal/api"
	"go.uber.org/zap"
)

// readHeaderTimeout bounds how long a client may take to send request headers.
const readHeaderTimeout = 10 * time.Second

// HTTPServer manages the public API listener.
type HTTPServer struct {
	srv    *http.Server
	addr   string
	ln     net.Listener
	logger *zap.Logger
}

// NewHTTPServer builds the router; the socket is bound in Start.
func NewHTTPServer(p Params, deps *api.Deps, logger *zap.Logger) *HTTPServer {
	return &HTTPServer{
		srv: &http.Server{
			Handler:           api.NewRouter(*deps),
			ReadHeaderTimeout: readHeaderTimeout,
		},
		addr:   p.Config.HTTP.Addr,
		logger: logger,
	}
}

// Start binds the address and serves in the background. A bind failure
// is returned synchronously.
func (s *HTTPServer) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.addr, err)
	}
	s.ln = ln
	s.logger.Info("http server starting", zap.String("addr", ln.Addr().String()))
	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http server error", zap.Error(err))
		}
	}()
	return nil
}

// Addr returns the bound address, useful when configured with port 0.
func (s *HTTPServer) Addr() string {
	if s.ln == nil {
		return s.addr
	}
	return s.ln.Addr().String()
}

// Stop drains in-flight requests until ctx expires.
func (s *HTTPServer) Stop(ctx context.Context) {
	s.logger.Info("http server stopping")
	if err := s.srv.Shutdown(ctx); err != nil {
		s.logger.Warn("http shutdown", zap.Error(err))
	}
}
