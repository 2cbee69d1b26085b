// Package api serves the status HTTP API next to the detection loop.
package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/slice/havoc/internal/db"
)

// Server exposes liveness endpoints and prometheus metrics.
type Server struct {
	store    *db.Store
	registry *prom.Registry
}

// New creates a Server over the store and metric registry.
func New(store *db.Store, registry *prom.Registry) *Server {
	return &Server{store: store, registry: registry}
}

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/ping", s.handlePing)
	mux.HandleFunc("GET /api/v1/ping/database", s.handlePingDatabase)
	mux.Handle("GET /metrics", promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{}))
	return mux
}

func (s *Server) handlePing(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, `"pong"`)
}

func (s *Server) handlePingDatabase(w http.ResponseWriter, r *http.Request) {
	two, err := s.store.Check(r.Context())
	if err != nil {
		http.Error(w, fmt.Sprintf("a fatal error occurred: %v", err), http.StatusInternalServerError)
		return
	}
	fmt.Fprintf(w, "1 + 1 = %d", two)
}

// ListenAndServe serves until the context is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		slog.Info("binding http api server", "addr", addr)
		errs <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
		return ctx.Err()
	case err := <-errs:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http api server: %w", err)
	}
}
