// Package limits throttles uploads and live connections per client.
package limits

import (
	"encoding/json"
	"math"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// TooManyRequests is the message returned with a 429.
const TooManyRequests = "Trop de requêtes, veuillez réessayer dans un instant."

// TokenBucket is a per-key token bucket.
type TokenBucket struct {
	rate  float64 // tokens per second
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*bucket

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

type bucket struct {
	tokens   float64
	lastFill time.Time
}

// BucketOption configures a TokenBucket.
type BucketOption func(*TokenBucket)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) BucketOption {
	return func(tb *TokenBucket) { tb.now = now }
}

// NewTokenBucket allows rate operations per second per key with bursts of
// up to burst. Idle keys are forgotten every sweep; a non-positive sweep
// disables that.
func NewTokenBucket(rate float64, burst int, sweep time.Duration, opts ...BucketOption) *TokenBucket {
	tb := &TokenBucket{
		rate:    rate,
		burst:   max(burst, 1),
		now:     time.Now,
		buckets: make(map[string]*bucket),
		done:    make(chan struct{}),
	}
	for _, opt := range opts {
		opt(tb)
	}
	if sweep > 0 {
		tb.wg.Add(1)
		go tb.sweepLoop(sweep)
	}
	return tb
}

// Allow takes one token for key.
func (tb *TokenBucket) Allow(key string) bool {
	return tb.AllowN(key, 1)
}

// AllowN takes n tokens for key, or none.
func (tb *TokenBucket) AllowN(key string, n int) bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	b := tb.fillLocked(key, now)
	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// RetryAfter is how long key waits for its next token.
func (tb *TokenBucket) RetryAfter(key string) time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	b := tb.fillLocked(key, tb.now())
	if b.tokens >= 1 || tb.rate <= 0 {
		return 0
	}
	return time.Duration((1 - b.tokens) / tb.rate * float64(time.Second))
}

func (tb *TokenBucket) fillLocked(key string, now time.Time) *bucket {
	b, ok := tb.buckets[key]
	if !ok {
		b = &bucket{tokens: float64(tb.burst), lastFill: now}
		tb.buckets[key] = b
		return b
	}
	b.tokens = math.Min(float64(tb.burst), b.tokens+now.Sub(b.lastFill).Seconds()*tb.rate)
	b.lastFill = now
	return b
}

// Len returns the number of tracked keys.
func (tb *TokenBucket) Len() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return len(tb.buckets)
}

func (tb *TokenBucket) sweepLoop(interval time.Duration) {
	defer tb.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			tb.sweep(interval)
		case <-tb.done:
			return
		}
	}
}

// sweep drops keys whose bucket has been full for idle.
func (tb *TokenBucket) sweep(idle time.Duration) {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	now := tb.now()
	for key, b := range tb.buckets {
		if now.Sub(b.lastFill) > idle {
			delete(tb.buckets, key)
		}
	}
}

// Close stops the sweeper.
func (tb *TokenBucket) Close() error {
	tb.once.Do(func() { close(tb.done) })
	tb.wg.Wait()
	return nil
}

// Middleware rejects requests over the limit of their client IP with a
// JSON 429, the shape the upload endpoint uses for errors.
func Middleware(tb *TokenBucket) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := ClientIP(r)
			if !tb.Allow(ip) {
				wait := tb.RetryAfter(ip)
				w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(max(wait.Seconds(), 1)))))
				writeError(w, http.StatusTooManyRequests, TooManyRequests)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP is the host part of RemoteAddr. Proxy headers are resolved
// upstream by chi's RealIP middleware.
func ClientIP(r *http.Request) string {
	ip, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return ip
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
