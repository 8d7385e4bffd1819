package server

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// rateLimiter tracks message timestamps using a sliding window.
type rateLimiter struct {
	timestamps []time.Time
	lastSeen   time.Time
}

// allow checks if an action is allowed and records the timestamp if so.
func (r *rateLimiter) allow(now time.Time, limit int, window time.Duration) bool {
	cutoff := now.Add(-window)
	r.lastSeen = now

	// Prune old timestamps
	valid := r.timestamps[:0]
	for _, t := range r.timestamps {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}
	r.timestamps = valid

	if len(r.timestamps) >= limit {
		return false
	}
	r.timestamps = append(r.timestamps, now)
	return true
}

// ipRateLimiter keeps one sliding window per client IP.
type ipRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	clients map[string]*rateLimiter
	lastGC  time.Time
	now     func() time.Time
}

func newIPRateLimiter(limit int, window time.Duration) *ipRateLimiter {
	return &ipRateLimiter{
		limit:   limit,
		window:  window,
		clients: make(map[string]*rateLimiter),
		lastGC:  time.Now(),
		now:     time.Now,
	}
}

func (l *ipRateLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastGC) > IPRateLimitCleanupInterval {
		for k, rl := range l.clients {
			if now.Sub(rl.lastSeen) > IPRateLimitEntryTTL {
				delete(l.clients, k)
			}
		}
		l.lastGC = now
	}

	rl, ok := l.clients[ip]
	if !ok {
		rl = &rateLimiter{}
		l.clients[ip] = rl
	}
	return rl.allow(now, l.limit, l.window)
}

// middleware rejects requests over the per-IP limit with 429.
func (l *ipRateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !l.allow(clientIP(r)) {
			writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: "rate limit exceeded"})
			return
		}
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
