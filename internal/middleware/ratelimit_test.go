package middleware

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMemoryWindowStoreSlidingWindow(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryWindowStore()
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		ok, err := store.Allow(ctx, "1.2.3.4", 5, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: expected allow, got %v %v", i+1, ok, err)
		}
		now = now.Add(time.Second)
	}
	if ok, _ := store.Allow(ctx, "1.2.3.4", 5, time.Minute); ok {
		t.Fatalf("6th request inside the window must be rejected")
	}
	if ok, _ := store.Allow(ctx, "5.6.7.8", 5, time.Minute); !ok {
		t.Fatalf("other clients keep their own counter")
	}

	// The first timestamp leaves the window exactly 60s after it was recorded.
	now = time.Date(2026, 3, 1, 10, 1, 0, 0, time.UTC)
	if ok, _ := store.Allow(ctx, "1.2.3.4", 5, time.Minute); !ok {
		t.Fatalf("expected allow once the oldest request left the window")
	}
	if ok, _ := store.Allow(ctx, "1.2.3.4", 5, time.Minute); ok {
		t.Fatalf("window is full again")
	}
}

func TestMemoryWindowStoreConcurrentBurst(t *testing.T) {
	store := NewMemoryWindowStore()
	var allowed int64
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if ok, _ := store.Allow(context.Background(), "burst", 5, time.Minute); ok {
				atomic.AddInt64(&allowed, 1)
			}
		}()
	}
	wg.Wait()
	if allowed != 5 {
		t.Fatalf("expected exactly 5 allowed, got %d", allowed)
	}
}

func TestMemoryWindowStoreSweep(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	store := NewMemoryWindowStore()
	store.now = func() time.Time { return now }
	_, _ = store.Allow(context.Background(), "old", 5, time.Minute)
	now = now.Add(30 * time.Second)
	_, _ = store.Allow(context.Background(), "fresh", 5, time.Minute)
	now = now.Add(45 * time.Second)

	if removed := store.Sweep(time.Minute); removed != 1 {
		t.Fatalf("expected 1 key removed, got %d", removed)
	}
	if _, ok := store.requests["fresh"]; !ok {
		t.Fatalf("fresh key must survive the sweep")
	}
}

type failingStore struct{}

func (failingStore) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	return false, context.DeadlineExceeded
}

func TestRateLimiterFailsOpen(t *testing.T) {
	rl := NewRateLimiter("bookings", 1, time.Minute, failingStore{}, discardLogger())
	if !rl.Allow(context.Background(), "1.2.3.4") {
		t.Fatalf("store errors must not block requests")
	}
}

func TestRateLimiterMiddleware(t *testing.T) {
	rl := NewRateLimiter("bookings", 2, time.Minute, NewMemoryWindowStore(), discardLogger())
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/bookings", nil)
		req.Header.Set("X-Forwarded-For", "9.9.9.9, 10.0.0.1")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected status sequence: %v", codes)
	}
}

func TestRateLimiterCustomMessage(t *testing.T) {
	rl := NewRateLimiter("login", 1, time.Minute, NewMemoryWindowStore(), discardLogger()).
		WithMessage("Too many login attempts")
	handler := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	var rec *httptest.ResponseRecorder
	for i := 0; i < 2; i++ {
		rec = httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/admin/login", nil))
	}
	if rec.Code != http.StatusTooManyRequests || !strings.Contains(rec.Body.String(), "Too many login attempts") {
		t.Fatalf("unexpected rejection %d %s", rec.Code, rec.Body.String())
	}
}

func TestLimitersKeepIndependentCounters(t *testing.T) {
	store := NewMemoryWindowStore()
	bookings := NewRateLimiter("bookings", 1, time.Minute, store, discardLogger())
	login := NewRateLimiter("login", 1, time.Minute, store, discardLogger())
	ctx := context.Background()

	if !bookings.Allow(ctx, "1.2.3.4") {
		t.Fatalf("expected first booking allowed")
	}
	if !login.Allow(ctx, "1.2.3.4") {
		t.Fatalf("login counter must not see booking requests")
	}
	if bookings.Allow(ctx, "1.2.3.4") {
		t.Fatalf("expected second booking rejected")
	}
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.168.1.10:5555"
	if got := ClientIP(req); got != "192.168.1.10" {
		t.Fatalf("expected remote host, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", " 203.0.113.7 , 10.0.0.1")
	if got := ClientIP(req); got != "203.0.113.7" {
		t.Fatalf("expected first forwarded entry, got %q", got)
	}

	bare := httptest.NewRequest(http.MethodGet, "/", nil)
	bare.RemoteAddr = ""
	if got := ClientIP(bare); got != "unknown" {
		t.Fatalf("expected unknown, got %q", got)
	}
}
