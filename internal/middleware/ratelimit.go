package middleware

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

// RateLimiter implements a per-client token bucket rate limiter.
type RateLimiter struct {
	mu       sync.Mutex
	clients  map[string]*clientLimiter
	rate     int           // requests per window
	window   time.Duration // time window
	idleTTL  time.Duration
	now      func() time.Time
	stop     chan struct{}
	stopOnce sync.Once
}

type clientLimiter struct {
	tokens     float64
	lastUpdate time.Time
}

// NewRateLimiter creates a new rate limiter allowing rate requests per
// window per client.
func NewRateLimiter(rate int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string]*clientLimiter),
		rate:    rate,
		window:  window,
		idleTTL: time.Hour,
		now:     time.Now,
		stop:    make(chan struct{}),
	}

	go rl.cleanup(5 * time.Minute)

	return rl
}

// cleanup periodically forgets clients idle for longer than idleTTL.
func (rl *RateLimiter) cleanup(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := rl.now()
			for key, limiter := range rl.clients {
				if now.Sub(limiter.lastUpdate) > rl.idleTTL {
					delete(rl.clients, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stop) })
}

// Allow takes a token for key and reports whether the request may proceed
// along with the tokens left.
func (rl *RateLimiter) Allow(key string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	limiter, exists := rl.clients[key]
	if !exists {
		limiter = &clientLimiter{tokens: float64(rl.rate), lastUpdate: now}
		rl.clients[key] = limiter
	}

	// refill continuously, capped at a full bucket
	elapsed := now.Sub(limiter.lastUpdate)
	limiter.tokens += float64(rl.rate) * elapsed.Seconds() / rl.window.Seconds()
	if limiter.tokens > float64(rl.rate) {
		limiter.tokens = float64(rl.rate)
	}
	limiter.lastUpdate = now

	if limiter.tokens < 1 {
		return false, 0
	}
	limiter.tokens--
	return true, int(limiter.tokens)
}

// clientIP returns the request's client address without its port. chi's
// RealIP middleware has already resolved proxy headers into RemoteAddr.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}

// RateLimitMiddleware creates a middleware that rate limits requests.
func RateLimitMiddleware(limiter *RateLimiter) func(http.Handler) http.Handler {
	limit := strconv.Itoa(limiter.rate)
	retryAfter := strconv.Itoa(int((limiter.window / time.Duration(max(limiter.rate, 1))).Seconds()) + 1)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, remaining := limiter.Allow(clientIP(r))

			w.Header().Set("X-RateLimit-Limit", limit)
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", retryAfter)
				w.WriteHeader(http.StatusTooManyRequests)
				w.Write([]byte(`{"error": "rate limit exceeded"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
