package middleware

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures the per-client token bucket.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained refill rate.
	RequestsPerSecond float64
	// Burst is the bucket capacity.
	Burst int
}

// limiterTable holds one token bucket per client IP and evicts buckets that
// have been idle long enough to be full again anyway.
type limiterTable struct {
	cfg RateLimitConfig

	mu      sync.Mutex
	buckets map[string]*trackedLimiter
}

type trackedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newLimiterTable(cfg RateLimitConfig) *limiterTable {
	lt := &limiterTable{cfg: cfg, buckets: make(map[string]*trackedLimiter)}
	go lt.evictLoop()
	return lt
}

func (lt *limiterTable) get(ip string) *rate.Limiter {
	lt.mu.Lock()
	defer lt.mu.Unlock()

	if tl, ok := lt.buckets[ip]; ok {
		tl.lastSeen = time.Now()
		return tl.limiter
	}
	tl := &trackedLimiter{
		limiter:  rate.NewLimiter(rate.Limit(lt.cfg.RequestsPerSecond), lt.cfg.Burst),
		lastSeen: time.Now(),
	}
	lt.buckets[ip] = tl
	return tl.limiter
}

func (lt *limiterTable) evictLoop() {
	for range time.Tick(5 * time.Minute) {
		cutoff := time.Now().Add(-10 * time.Minute)
		lt.mu.Lock()
		for ip, tl := range lt.buckets {
			if tl.lastSeen.Before(cutoff) {
				delete(lt.buckets, ip)
			}
		}
		lt.mu.Unlock()
	}
}

// RateLimiter enforces a per-client token-bucket limit and answers 429 with
// a Retry-After hint when the bucket is empty.
func RateLimiter(cfg RateLimitConfig) func(http.Handler) http.Handler {
	table := newLimiterTable(cfg)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			limiter := table.get(clientIP(r))

			reservation := limiter.Reserve()
			if !reservation.OK() {
				writeTooManyRequests(w, 0)
				return
			}
			if delay := reservation.Delay(); delay > 0 {
				// Never make the client wait server-side; hand the delay back.
				reservation.Cancel()
				writeTooManyRequests(w, int(delay.Seconds())+1)
				return
			}

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.Burst))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(int(limiter.Tokens())))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(time.Second).Unix(), 10))

			next.ServeHTTP(w, r)
		})
	}
}

// clientIP keys the bucket table on RemoteAddr alone. X-Forwarded-For is
// attacker-controlled and would make the limit trivially bypassable.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func writeTooManyRequests(w http.ResponseWriter, retryAfterSecs int) {
	if retryAfterSecs > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSecs))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"code":    http.StatusTooManyRequests,
		"message": "rate limit exceeded",
	})
}
