package ingress

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"
)

// Server wraps the HTTP server hosting the ingress handler.
type Server struct {
	address string
	logger  *slog.Logger

	mu      sync.RWMutex
	httpSrv *http.Server
	ln      net.Listener
}

// NewServer creates a server for the given handler.
func NewServer(address string, handler *Handler, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)

	return &Server{
		address: address,
		logger:  logger,
		httpSrv: &http.Server{
			Addr:              address,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
	}
}

// Start begins serving. It returns once the listener is bound; serving
// continues in the background until Stop.
func (s *Server) Start(_ context.Context) error {
	ln, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("ingress: listen on %s: %w", s.address, err)
	}

	s.mu.Lock()
	s.ln = ln
	s.address = ln.Addr().String()
	s.mu.Unlock()

	go func() {
		if serveErr := s.httpSrv.Serve(ln); serveErr != nil && serveErr != http.ErrServerClosed {
			s.logger.Error("Ingress server stopped unexpectedly", "error", serveErr)
		}
	}()

	s.logger.Info("Ingress server started", "address", s.Addr())
	return nil
}

// Stop gracefully shuts the server down, letting in-flight sync calls
// finish within the context's deadline.
func (s *Server) Stop(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}

// Addr returns the bound listen address. Useful when the server was
// started on port 0.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}
