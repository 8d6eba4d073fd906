package middleware

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"tivrox-backend/internal/metrics"
	"tivrox-backend/internal/transport"
)

// WindowStore records request timestamps per key over a trailing window.
type WindowStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

const defaultLimitMessage = "Too many requests. Please try again later."

type RateLimiter struct {
	name    string
	limit   int
	window  time.Duration
	store   WindowStore
	log     *slog.Logger
	message string
}

func NewRateLimiter(name string, limit int, window time.Duration, store WindowStore, log *slog.Logger) *RateLimiter {
	return &RateLimiter{
		name:    name,
		limit:   limit,
		window:  window,
		store:   store,
		log:     log,
		message: defaultLimitMessage,
	}
}

// WithMessage overrides the 429 detail text.
func (rl *RateLimiter) WithMessage(message string) *RateLimiter {
	rl.message = message
	return rl
}

// Allow fails open when the store is unreachable.
func (rl *RateLimiter) Allow(ctx context.Context, clientKey string) bool {
	ok, err := rl.store.Allow(ctx, rl.name+":"+clientKey, rl.limit, rl.window)
	if err != nil {
		rl.log.Warn("rate limit: store error", slog.String("limiter", rl.name), slog.String("error", err.Error()))
		return true
	}
	return ok
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := ClientIP(r)
		if !rl.Allow(r.Context(), ip) {
			rl.log.Warn("rate limit: exceeded",
				slog.String("limiter", rl.name),
				slog.String("ip", ip),
				slog.String("request_id", RequestIDFromContext(r.Context())),
			)
			metrics.IncRateLimited(rl.name)
			transport.WriteError(w, http.StatusTooManyRequests, rl.message, nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// ClientIP prefers the first X-Forwarded-For entry, then the connection address.
func ClientIP(r *http.Request) string {
	if xf := r.Header.Get("X-Forwarded-For"); xf != "" {
		parts := strings.Split(xf, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}

	if r.RemoteAddr == "" {
		return "unknown"
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryWindowStore keeps timestamps in process; it is not shared across instances.
type MemoryWindowStore struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	now      func() time.Time
}

func NewMemoryWindowStore() *MemoryWindowStore {
	return &MemoryWindowStore{
		requests: make(map[string][]time.Time),
		now:      time.Now,
	}
}

func (s *MemoryWindowStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	timestamps := s.requests[key]
	valid := timestamps[:0]
	for _, ts := range timestamps {
		if now.Sub(ts) < window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= limit {
		s.requests[key] = valid
		return false, nil
	}

	s.requests[key] = append(valid, now)
	return true, nil
}

// Sweep drops keys with no request inside window.
func (s *MemoryWindowStore) Sweep(window time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, timestamps := range s.requests {
		if len(timestamps) == 0 || now.Sub(timestamps[len(timestamps)-1]) >= window {
			delete(s.requests, key)
			removed++
		}
	}
	return removed
}

// RunSweeper calls Sweep every interval until ctx is done.
func (s *MemoryWindowStore) RunSweeper(ctx context.Context, interval, window time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(window)
		case <-ctx.Done():
			return
		}
	}
}
