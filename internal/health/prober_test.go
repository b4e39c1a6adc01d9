package health_test

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync/atomic"
	"testing"

	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/health"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	host, portStr, err := net.SplitHostPort(u.Host)
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)
	return host, port
}

func TestProbeHealthyOnFirstAttempt(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)

	p := health.NewProber()
	ok := p.Probe(context.Background(), "api", host, port, config.HealthCheckConfig{
		Path:              "/",
		RetryCount:        3,
		RetryDelaySeconds: 0,
	})
	assert.True(t, ok)
}

func TestProbeHealthyRegardlessOfStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)

	p := health.NewProber()
	ok := p.Probe(context.Background(), "api", host, port, config.HealthCheckConfig{
		Path:              "/",
		RetryCount:        1,
		RetryDelaySeconds: 0,
	})
	assert.True(t, ok, "any completed response, even a 500, counts as healthy")
}

func TestProbeUnhealthyAfterExhaustingRetries(t *testing.T) {
	p := health.NewProber()
	// Nothing listens on this port.
	ok := p.Probe(context.Background(), "api", "127.0.0.1", 1, config.HealthCheckConfig{
		Path:              "/",
		RetryCount:        2,
		RetryDelaySeconds: 0,
	})
	assert.False(t, ok)
}

func TestProbeRetryCountZeroMeansNoProbe(t *testing.T) {
	p := health.NewProber()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	ok := p.Probe(context.Background(), "api", host, port, config.HealthCheckConfig{
		Path:       "/",
		RetryCount: 0,
	})
	assert.True(t, ok)
	assert.Equal(t, int32(0), atomic.LoadInt32(&calls), "retry_count=0 must not issue any request")
}

func TestProbeRetriesUpToCountThenReportsAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			// Close without responding to force a transport error.
			hj, ok := w.(http.Hijacker)
			if ok {
				conn, _, _ := hj.Hijack()
				conn.Close()
				return
			}
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	host, port := splitHostPort(t, srv.URL)
	p := health.NewProber()
	ok := p.Probe(context.Background(), "api", host, port, config.HealthCheckConfig{
		Path:              "/",
		RetryCount:        5,
		RetryDelaySeconds: 0,
	})
	assert.True(t, ok)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(3))
}
