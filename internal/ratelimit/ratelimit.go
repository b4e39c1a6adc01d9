// Package ratelimit throttles proxied traffic per client IP, independent
// of the Control API's single global limiter on mutating endpoints.
package ratelimit

import (
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// staleAfter is how long a client can go unseen before its limiter is
// reclaimed by Sweep.
const staleAfter = 3 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen int64
}

// Limiter hands out an independent token bucket per client IP.
type Limiter struct {
	mu                sync.RWMutex
	clients           map[string]*client
	requestsPerSecond float64
	burst             int
}

// New builds a Limiter. A negative requestsPerSecond disables limiting
// entirely: Allow always reports true. A requestsPerSecond of 0 still
// enforces the burst size, it just never refills.
func New(requestsPerSecond float64, burst int) *Limiter {
	return &Limiter{
		clients:           make(map[string]*client),
		requestsPerSecond: requestsPerSecond,
		burst:             burst,
	}
}

// Allow reports whether the request identified by its client IP may
// proceed, consuming a token from that IP's bucket if so.
func (l *Limiter) Allow(r *http.Request) bool {
	if l.requestsPerSecond < 0 {
		return true
	}
	return l.clientFor(clientIP(r)).limiter.Allow()
}

func (l *Limiter) clientFor(ip string) *client {
	l.mu.RLock()
	c, ok := l.clients[ip]
	l.mu.RUnlock()

	if !ok {
		l.mu.Lock()
		c, ok = l.clients[ip]
		if !ok {
			c = &client{limiter: rate.NewLimiter(rate.Limit(l.requestsPerSecond), l.burst)}
			l.clients[ip] = c
		}
		l.mu.Unlock()
	}

	atomic.StoreInt64(&c.lastSeen, time.Now().Unix())
	return c
}

// Sweep removes clients that haven't been seen in staleAfter. Callers run
// it periodically (e.g. once a minute) in a background goroutine.
func (l *Limiter) Sweep() {
	cutoff := time.Now().Add(-staleAfter).Unix()
	l.mu.Lock()
	defer l.mu.Unlock()
	for ip, c := range l.clients {
		if atomic.LoadInt64(&c.lastSeen) < cutoff {
			delete(l.clients, ip)
		}
	}
}

// clientIP extracts the caller's address, preferring the first hop of
// X-Forwarded-For when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		return strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
