package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/finradar/finradar/internal/logging"
)

// Server exposes /metrics. Implements lifecycle.Component; a zero
// address makes every method a no-op.
type Server struct {
	addr   string
	server *http.Server
	logger *logging.Logger
}

// NewServer builds the listener for addr (e.g. ":9090").
func NewServer(addr string, gatherer prometheus.Gatherer) *Server {
	s := &Server{addr: addr, logger: logging.GetLogger("metrics")}
	if addr == "" {
		return s
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	s.server = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Name() string { return "metrics" }

func (s *Server) Start(context.Context) error {
	if s.server == nil {
		return nil
	}
	go func() {
		if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("metrics listener: %v", err)
		}
	}()
	s.logger.Info("serving /metrics on %s", s.addr)
	return nil
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
