package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"
)

const (
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// Server is the HTTP status server.
type Server struct {
	srv *http.Server
}

// NewServer returns a server for h on addr.
func NewServer(addr string, h http.Handler) *Server {
	return &Server{srv: &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: readHeaderTimeout,
	}}
}

// Serve listens and serves until ctx is cancelled or done is closed, then
// shuts the server down gracefully.
func (s *Server) Serve(ctx context.Context, done <-chan struct{}) error {
	ln, err := net.Listen("tcp", s.srv.Addr)
	if err != nil {
		return fmt.Errorf("app: listen %q: %w", s.srv.Addr, err)
	}
	return s.serve(ctx, ln, done)
}

func (s *Server) serve(ctx context.Context, ln net.Listener, done <-chan struct{}) error {
	errCh := make(chan error, 1)
	go func() {
		slog.Info("status server listening", "addr", ln.Addr().String())
		errCh <- s.srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("app: status server: %w", err)
	case <-ctx.Done():
	case <-done:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("app: status server shutdown: %w", err)
	}
	return nil
}
