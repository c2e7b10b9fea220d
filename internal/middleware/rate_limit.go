package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/welldanyogia/mailclean/internal/metrics"
)

// RateLimiter implements a sliding-window in-memory rate limiter
type RateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int           // Max requests
	window   time.Duration // Time window
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter creates a new rate limiter. Close stops its cleanup loop.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
		stop:     make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// Close stops the background cleanup.
func (rl *RateLimiter) Close() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow checks if a request is allowed for the given key
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.prune(rl.requests[key], now)

	if len(valid) >= rl.limit {
		rl.requests[key] = valid
		return false
	}

	rl.requests[key] = append(valid, now)
	return true
}

// Remaining returns the number of remaining requests for a key
func (rl *RateLimiter) Remaining(key string) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	remaining := rl.limit - len(rl.prune(rl.requests[key], rl.now()))
	if remaining < 0 {
		return 0
	}
	return remaining
}

// Reset returns the time when the oldest request in the window expires
func (rl *RateLimiter) Reset(key string) time.Time {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	valid := rl.prune(rl.requests[key], now)
	if len(valid) == 0 {
		return now
	}
	return valid[0].Add(rl.window)
}

// prune drops timestamps outside the window. Timestamps are appended in
// order, so the survivors keep their order.
func (rl *RateLimiter) prune(requests []time.Time, now time.Time) []time.Time {
	windowStart := now.Add(-rl.window)
	i := 0
	for i < len(requests) && !requests[i].After(windowStart) {
		i++
	}
	return requests[i:]
}

// cleanup periodically removes keys with no requests in the window
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, requests := range rl.requests {
				if valid := rl.prune(requests, now); len(valid) == 0 {
					delete(rl.requests, key)
				} else {
					rl.requests[key] = valid
				}
			}
			rl.mu.Unlock()
		}
	}
}

// PerIP returns middleware that limits each client IP. It expects
// chi's RealIP middleware to have run so RemoteAddr is the client address.
func (rl *RateLimiter) PerIP(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := clientIP(r)

		if !rl.Allow(key) {
			metrics.HTTPRateLimited.Inc()
			writeRateLimitError(w, rl.limit, rl.Reset(key), rl.now())
			return
		}

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.limit))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rl.Remaining(key)))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(rl.Reset(key).Unix(), 10))

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitError writes a 429 in the API's error envelope
func writeRateLimitError(w http.ResponseWriter, limit int, resetTime, now time.Time) {
	retryAfter := int64(resetTime.Sub(now).Seconds() + 0.5)
	if retryAfter < 1 {
		retryAfter = 1
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.WriteHeader(http.StatusTooManyRequests)

	response := map[string]interface{}{
		"success": false,
		"error": map[string]interface{}{
			"code":    "RATE_LIMIT_EXCEEDED",
			"message": "Rate limit exceeded. Please try again later.",
			"details": map[string]interface{}{
				"retry_after": retryAfter,
				"limit":       limit,
			},
		},
		"timestamp": now.UTC(),
	}

	json.NewEncoder(w).Encode(response)
}
