package health

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// shutdownTimeout bounds the graceful drain of in-flight ops requests.
const shutdownTimeout = 5 * time.Second

// Server is the ops HTTP server: probes plus the Prometheus scrape
// endpoint. It carries no application traffic.
type Server struct {
	srv *http.Server
	log *slog.Logger
}

// NewServer builds an ops server listening on addr with the given readiness
// checkers. The Prometheus default registry backs /metrics; the OTel
// Prometheus exporter bridge registers there.
func NewServer(addr string, log *slog.Logger, checkers ...Checker) *Server {
	if log == nil {
		log = slog.Default()
	}

	mux := http.NewServeMux()
	New(checkers...).Register(mux)
	mux.Handle("GET /metrics", promhttp.Handler())

	return &Server{
		srv: &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		},
		log: log,
	}
}

// ListenAndServe blocks serving ops traffic until [Server.Shutdown] is
// called. A closed-server error is swallowed; anything else is returned.
func (s *Server) ListenAndServe() error {
	s.log.Info("ops server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}
