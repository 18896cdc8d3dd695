package web

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"cfguard/internal/db"
)

type Pinger interface {
	Ping(ctx context.Context) error
}

// Server exposes health, state and metrics of a long-running guard. It
// only reads; cycles run on the app loop.
type Server struct {
	repo   *db.Repository
	remote Pinger
	log    zerolog.Logger
}

func NewServer(repo *db.Repository, remote Pinger, logger zerolog.Logger) *Server {
	return &Server{repo: repo, remote: remote, log: logger}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/readyz", s.handleReadyz)
	mux.HandleFunc("/api/state", s.handleState)
	mux.HandleFunc("/api/cycles", s.handleCycles)
	mux.Handle("/metrics", promhttp.Handler())
	return logMiddleware(mux, s.log)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mode, hasMode, err := s.repo.LoadModeState(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	alert, hasAlert, err := s.repo.LoadAlertState(ctx)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	notifications := map[string]int{}
	for _, status := range []string{"sent", "failed", "suppressed"} {
		n, err := s.repo.NotificationCount(ctx, status)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		notifications[status] = n
	}
	out := map[string]any{"mode_state": nil, "alert_state": nil, "notifications": notifications}
	if hasMode {
		out["mode_state"] = mode
	}
	if hasAlert {
		out["alert_state"] = alert
	}
	writeJSON(w, out)
}

func (s *Server) handleCycles(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	cycles, err := s.repo.RecentCycles(r.Context(), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, cycles)
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleReadyz checks the state database; ?remote=1 also checks the API.
func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	if err := s.repo.DB().PingContext(r.Context()); err != nil {
		http.Error(w, "state db not ready", http.StatusServiceUnavailable)
		return
	}
	if r.URL.Query().Get("remote") == "1" && s.remote != nil {
		if err := s.remote.Ping(r.Context()); err != nil {
			http.Error(w, "cloudflare not reachable", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
