package limits

import (
	"net/http"
	"strings"
	"sync"
)

// TooManyConnections is the message returned when a client holds too many
// live connections.
const TooManyConnections = "Trop de connexions ouvertes depuis cette adresse."

// ConnectionLimiter caps concurrent connections per client IP.
type ConnectionLimiter struct {
	maxPerIP int

	mu    sync.Mutex
	conns map[string]int
}

// NewConnectionLimiter allows maxPerIP connections per IP. A non-positive
// value means 20.
func NewConnectionLimiter(maxPerIP int) *ConnectionLimiter {
	if maxPerIP <= 0 {
		maxPerIP = 20
	}
	return &ConnectionLimiter{maxPerIP: maxPerIP, conns: make(map[string]int)}
}

// Acquire takes a slot for ip.
func (cl *ConnectionLimiter) Acquire(ip string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.conns[ip] >= cl.maxPerIP {
		return false
	}
	cl.conns[ip]++
	return true
}

// Release returns a slot taken by Acquire.
func (cl *ConnectionLimiter) Release(ip string) {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	if cl.conns[ip] <= 1 {
		delete(cl.conns, ip)
		return
	}
	cl.conns[ip]--
}

// Count returns the open connections of ip.
func (cl *ConnectionLimiter) Count(ip string) int {
	cl.mu.Lock()
	defer cl.mu.Unlock()
	return cl.conns[ip]
}

// Total returns the open connections of all clients.
func (cl *ConnectionLimiter) Total() int {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	n := 0
	for _, c := range cl.conns {
		n += c
	}
	return n
}

// Middleware holds a slot for the lifetime of every WebSocket upgrade.
// Plain requests pass through.
func (cl *ConnectionLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			ip := ClientIP(r)
			if !cl.Acquire(ip) {
				writeError(w, http.StatusTooManyRequests, TooManyConnections)
				return
			}
			defer cl.Release(ip)
			next.ServeHTTP(w, r)
		})
	}
}
