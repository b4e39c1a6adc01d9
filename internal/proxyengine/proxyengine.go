// Package proxyengine is the catch-all HTTP handler bound to the proxy
// port: per request it extracts the Host header, looks up a route, and
// either forwards to a service or serves a static file.
package proxyengine

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/marshallku/traffic-switcher/internal/breaker"
	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/metrics"
	"github.com/marshallku/traffic-switcher/internal/ratelimit"
	"github.com/marshallku/traffic-switcher/internal/respwriter"
	"github.com/marshallku/traffic-switcher/internal/routing"
	"github.com/marshallku/traffic-switcher/internal/staticfiles"
)

const headerXRequestID = "X-Request-Id"

// errorResponse is the JSON body written for every error the engine
// produces itself (as opposed to bytes streamed back from an upstream).
type errorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// Engine dispatches inbound requests by Host header against a routing
// Table, forwarding to services through a non-pooled per-request transport
// guarded by a per-service circuit breaker, or serving static files.
type Engine struct {
	table    *routing.Table
	breakers *breaker.Registry
	limiter  *ratelimit.Limiter
	logger   *slog.Logger
}

// New builds an Engine. logger must not be nil. A negative
// requestsPerSecond disables per-client rate limiting; zero still allows
// each client burst requests, with no refill.
func New(table *routing.Table, breakers *breaker.Registry, logger *slog.Logger, requestsPerSecond float64, burst int) *Engine {
	return &Engine{
		table:    table,
		breakers: breakers,
		limiter:  ratelimit.New(requestsPerSecond, burst),
		logger:   logger,
	}
}

// ServeHTTP dispatches by Host header: exact match then wildcard, service
// forward or static delegation. Requests exceeding the per-client rate
// limit are rejected before any routing lookup happens.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	rw := respwriter.Wrap(w)
	requestID := r.Header.Get(headerXRequestID)

	defer func() {
		if p := recover(); p != nil {
			if p == http.ErrAbortHandler || rw.StatusCode != 0 {
				panic(p)
			}
			e.logger.Error("panic in proxy handler", "panic", p, "request_id", requestID)
			e.sendError(rw, requestID, http.StatusInternalServerError, "internal server error")
		}
	}()

	if !e.limiter.Allow(r) {
		e.sendError(rw, requestID, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	domain := hostWithoutPort(r.Host)
	target, ok := e.table.LookupRoute(domain)
	if !ok {
		e.sendError(rw, requestID, http.StatusNotFound, "no route for host")
		e.record(domain, rw, start)
		return
	}

	if target.IsStatic() {
		e.serveStatic(rw, requestID, *target.Static, r.URL.EscapedPath())
		e.record(domain, rw, start)
		return
	}

	e.serveService(rw, r, requestID, target.ServiceName)
	e.record(domain, rw, start)
}

func (e *Engine) serveService(w *respwriter.ResponseWriter, r *http.Request, requestID, serviceName string) {
	svc, ok := e.table.LookupService(serviceName)
	if !ok {
		e.sendError(w, requestID, http.StatusBadGateway, "route names an unknown service")
		return
	}

	targetURL := &url.URL{
		Scheme: "http",
		Host:   net.JoinHostPort(svc.Host, strconv.Itoa(svc.Port)),
	}

	b := e.breakers.Get(serviceName)
	proxy := &httputil.ReverseProxy{
		Director:     director(targetURL, requestID),
		Transport:    &breakerTransport{breaker: b, inner: newUpstreamTransport()},
		ErrorHandler: e.errorHandler(requestID),
		BufferPool:   newBufferPool(),
	}
	proxy.ServeHTTP(w, r)
}

// serveStatic implements spec.md §4.F.1's status-code mapping on top of
// internal/staticfiles.Resolve: 400 on bad percent-encoding, 403 on
// traversal, 404 when nothing matches, 200 with the inferred Content-Type
// otherwise.
func (e *Engine) serveStatic(w *respwriter.ResponseWriter, requestID string, target config.StaticTarget, requestPath string) {
	result, err := staticfiles.Resolve(target, requestPath)
	if err != nil {
		switch {
		case errors.Is(err, staticfiles.ErrDecode):
			e.sendError(w, requestID, http.StatusBadRequest, "invalid path encoding")
		case errors.Is(err, staticfiles.ErrForbidden):
			e.sendError(w, requestID, http.StatusForbidden, "forbidden")
		default:
			e.sendError(w, requestID, http.StatusNotFound, "not found")
		}
		return
	}

	w.Header().Set("Content-Type", result.ContentType)
	w.WriteHeader(http.StatusOK)
	w.Write(result.Body)
}

// director rewrites the outbound request's URL to target, leaving the
// original Host header untouched so the upstream sees the Host the client
// sent, and tags the request with its ID for upstream correlation.
func director(target *url.URL, requestID string) func(*http.Request) {
	return func(req *http.Request) {
		req.URL.Scheme = target.Scheme
		req.URL.Host = target.Host
		if requestID != "" {
			req.Header.Set(headerXRequestID, requestID)
		}
		req.Header.Del("Connection")
		req.Header.Del("Proxy-Connection")
	}
}

func (e *Engine) errorHandler(requestID string) func(http.ResponseWriter, *http.Request, error) {
	return func(w http.ResponseWriter, r *http.Request, err error) {
		e.logger.Error("proxy error", "error", err, "path", r.URL.Path, "request_id", requestID)
		e.sendError(respwriter.Wrap(w), requestID, http.StatusBadGateway, "bad gateway")
	}
}

func (e *Engine) sendError(w *respwriter.ResponseWriter, requestID string, status int, message string) {
	body, _ := json.Marshal(errorResponse{Error: message, RequestID: requestID})
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	w.Write(body)
}

// SweepRateLimiters discards per-client limiter state for clients that
// haven't been seen recently. Callers run it periodically in the
// background; it is not required for correctness, only for bounding
// memory growth across many distinct client IPs.
func (e *Engine) SweepRateLimiters() {
	e.limiter.Sweep()
}

func (e *Engine) record(domain string, w *respwriter.ResponseWriter, start time.Time) {
	outcome := "success"
	if w.StatusCode >= 400 {
		outcome = "error"
	}
	metrics.RecordRequest(domain, outcome, time.Since(start).Seconds())
}

// hostWithoutPort strips a trailing ":port" from a Host header value.
func hostWithoutPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	return strings.TrimSuffix(host, ":")
}

// newUpstreamTransport builds a fresh, non-pooled transport: every request
// opens its own TCP connection and keep-alives are disabled, matching
// spec.md's "upstream connections are per-request, not pooled".
func newUpstreamTransport() *http.Transport {
	return &http.Transport{
		DisableKeepAlives:   true,
		MaxIdleConnsPerHost: -1,
		DialContext: (&net.Dialer{
			Timeout: 10 * time.Second,
		}).DialContext,
	}
}

// breakerTransport gates RoundTrip through a circuit breaker: an open
// breaker fails fast without dialing the upstream at all.
type breakerTransport struct {
	breaker *breaker.Breaker
	inner   http.RoundTripper
}

func (t *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.breaker.Execute(func() (*http.Response, error) {
		return t.inner.RoundTrip(req)
	})
}

// bufferPool implements httputil.BufferPool with a pool of fixed-size
// buffers, avoiding a fresh allocation per streamed chunk.
type bufferPool struct {
	pool sync.Pool
}

func newBufferPool() httputil.BufferPool {
	return &bufferPool{pool: sync.Pool{New: func() any {
		return make([]byte, 32*1024)
	}}}
}

func (p *bufferPool) Get() []byte { return p.pool.Get().([]byte) }

func (p *bufferPool) Put(b []byte) { p.pool.Put(b) }
