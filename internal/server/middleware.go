package server

import (
	"crypto/subtle"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/unzipd/unzipd/internal/metrics"
)

// securityHeaders sets baseline response headers on every request.
func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "no-referrer")
		h.Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}

// basicAuth enforces HTTP basic auth with constant-time comparison.
func basicAuth(username, password string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, pass, ok := r.BasicAuth()
			userOK := subtle.ConstantTimeCompare([]byte(user), []byte(username)) == 1
			passOK := subtle.ConstantTimeCompare([]byte(pass), []byte(password)) == 1
			if !ok || !userOK || !passOK {
				w.Header().Set("WWW-Authenticate", `Basic realm="unzipd"`)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientLimiter applies a per-client token bucket. Idle clients are pruned
// so the map stays bounded.
type clientLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int
}

type clientEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

const clientIdleTTL = 10 * time.Minute

func newClientLimiter(perMinute, burst int) *clientLimiter {
	if perMinute < 1 {
		perMinute = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &clientLimiter{
		clients: make(map[string]*clientEntry),
		limit:   rate.Limit(float64(perMinute) / 60.0),
		burst:   burst,
	}
}

// allow reports whether the client may proceed.
func (cl *clientLimiter) allow(client string) bool {
	cl.mu.Lock()
	defer cl.mu.Unlock()

	now := time.Now()
	entry, ok := cl.clients[client]
	if !ok {
		entry = &clientEntry{limiter: rate.NewLimiter(cl.limit, cl.burst)}
		cl.clients[client] = entry
	}
	entry.lastSeen = now

	for key, e := range cl.clients {
		if now.Sub(e.lastSeen) > clientIdleTTL {
			delete(cl.clients, key)
		}
	}

	return entry.limiter.Allow()
}

func (cl *clientLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		host, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			host = r.RemoteAddr
		}
		if !cl.allow(host) {
			metrics.RateLimitedTotal.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		next.ServeHTTP(w, r)
	})
}
