package middleware

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"
)

// rateWindow is one client's counter for the current fixed window.
type rateWindow struct {
	count   int
	resetAt time.Time
}

// RateLimitStore holds per-client request counters. It is created at
// process start and swept periodically; it has no cross-process state,
// so a multi-instance deployment under-counts.
type RateLimitStore struct {
	mu      sync.Mutex
	windows map[string]*rateWindow
}

// NewRateLimitStore creates an empty rate-limit store
func NewRateLimitStore() *RateLimitStore {
	return &RateLimitStore{
		windows: make(map[string]*rateWindow),
	}
}

// Allow records a request for key and reports whether it fits inside
// the fixed window of the given size.
func (s *RateLimitStore) Allow(key string, max int, window time.Duration) bool {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.windows[key]
	if !exists || now.After(w.resetAt) {
		s.windows[key] = &rateWindow{count: 1, resetAt: now.Add(window)}
		return true
	}

	if w.count >= max {
		return false
	}
	w.count++
	return true
}

// StartSweeper launches a goroutine that prunes expired windows until
// ctx is cancelled.
func (s *RateLimitStore) StartSweeper(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				s.sweep(now)
			}
		}
	}()
}

func (s *RateLimitStore) sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

// Len returns the number of tracked clients.
func (s *RateLimitStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// RateLimit applies rate limiting based on client IP address, backed by
// the given store.
func RateLimit(store *RateLimitStore, max int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !store.Allow(getClientIP(r), max, window) {
				writeError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// getClientIP extracts the client IP from the request
func getClientIP(r *http.Request) string {
	// Check for forwarded headers first
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return strings.Split(ip, ",")[0]
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}

	// Fall back to remote address
	ip := r.RemoteAddr
	if colonIndex := strings.LastIndex(ip, ":"); colonIndex != -1 {
		ip = ip[:colonIndex]
	}
	return ip
}
