package observability

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthCheck reports basic liveness for the /health endpoint.
type HealthCheck func(ctx context.Context) HealthStatus

// StatusOK is the healthy sentinel; any other Status value makes /health
// answer 503.
const StatusOK = "ok"

type HealthStatus struct {
	Status    string    `json:"status"`
	Files     int       `json:"files"`
	Edges     int       `json:"edges"`
	IndexedAt time.Time `json:"indexed_at"`
}

// Server exposes /metrics and /health on a dedicated listener.
type Server struct {
	addr   string
	health HealthCheck
	server *http.Server
}

func NewServer(addr string, health HealthCheck) *Server {
	return &Server{addr: addr, health: health}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Addr:    s.addr,
		Handler: mux,
	}

	slog.Info("observability server starting", "addr", s.addr)

	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("observability server failed", "error", err)
		}
	}()

	return nil
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := HealthStatus{Status: StatusOK}
	if s.health != nil {
		status = s.health(r.Context())
	}
	w.Header().Set("Content-Type", "application/json")
	if status.Status != StatusOK {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}
