package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"tivrox-backend/internal/middleware"
	"tivrox-backend/internal/transport"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// Server serves the unauthenticated service-level endpoints.
type Server struct {
	Log *slog.Logger
	DB  Pinger
}

type rootResponse struct {
	Message string `json:"message"`
	Status  string `json:"status"`
}

type healthResponse struct {
	Status   string `json:"status"`
	Database string `json:"database,omitempty"`
}

func (s *Server) Root(w http.ResponseWriter, r *http.Request) {
	transport.WriteJSON(w, http.StatusOK, rootResponse{Message: "TIVROX API is running", Status: "ok"})
}

// Health pings the database when one is configured; an unreachable database yields 503.
func (s *Server) Health(w http.ResponseWriter, r *http.Request) {
	if s.DB == nil {
		transport.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := s.DB.Ping(ctx); err != nil {
		s.logWithRequest(r).Warn("health: database unreachable", slog.String("error", err.Error()))
		transport.WriteJSON(w, http.StatusServiceUnavailable, healthResponse{Status: "unhealthy", Database: "unreachable"})
		return
	}
	transport.WriteJSON(w, http.StatusOK, healthResponse{Status: "healthy", Database: "ok"})
}

func (s *Server) logWithRequest(r *http.Request) *slog.Logger {
	if r == nil {
		return s.Log
	}
	if id := middleware.RequestIDFromContext(r.Context()); id != "" {
		return s.Log.With(slog.String("request_id", id))
	}
	return s.Log
}
