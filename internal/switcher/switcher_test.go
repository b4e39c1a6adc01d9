package switcher_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/health"
	"github.com/marshallku/traffic-switcher/internal/routing"
	"github.com/marshallku/traffic-switcher/internal/switcher"
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

func newHarness(t *testing.T, cfg *config.Config) (*switcher.Switcher, *routing.Table, string) {
	t.Helper()
	table, err := routing.NewTable(cfg)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, config.Save(path, cfg))

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sw := switcher.New(table, health.NewProber(), path, logger, nil)
	return sw, table, path
}

func TestUpdateServicePortSucceedsAndPersists(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	host, port := splitHostPort(t, srv.URL)

	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		HealthCheck: config.HealthCheckConfig{Path: "/", RetryCount: 2, RetryDelaySeconds: 0},
		Services:    []config.Service{{Name: "api", Host: host, Port: 1}},
		Routes:      []config.Route{{Domain: "*", Service: "api"}},
	}
	sw, table, path := newHarness(t, cfg)

	oldPort, err := sw.UpdateServicePort(context.Background(), "api", port, false)
	require.NoError(t, err)
	assert.Equal(t, 1, oldPort)

	svc, ok := table.LookupService("api")
	require.True(t, ok)
	assert.Equal(t, port, svc.Port)
	assert.Equal(t, 1, svc.PreviousPort)

	persisted, err := config.Load(path)
	require.NoError(t, err)
	require.Len(t, persisted.Services, 1)
	assert.Equal(t, port, persisted.Services[0].Port)
}

func TestUpdateServicePortUnknownService(t *testing.T) {
	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		Services: []config.Service{{Name: "api", Host: "127.0.0.1", Port: 1}},
		Routes:   []config.Route{{Domain: "*", Service: "api"}},
	}
	sw, _, _ := newHarness(t, cfg)

	_, err := sw.UpdateServicePort(context.Background(), "ghost", 4201, true)
	assert.True(t, errors.Is(err, switcher.ErrServiceNotFound))
}

func TestUpdateServicePortZeroPortRejected(t *testing.T) {
	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		Services: []config.Service{{Name: "api", Host: "127.0.0.1", Port: 1}},
		Routes:   []config.Route{{Domain: "*", Service: "api"}},
	}
	sw, _, _ := newHarness(t, cfg)

	_, err := sw.UpdateServicePort(context.Background(), "api", 0, true)
	assert.True(t, errors.Is(err, switcher.ErrInvalidPort))
}

func TestUpdateServicePortSkipsHealthCheck(t *testing.T) {
	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		HealthCheck: config.HealthCheckConfig{Path: "/", RetryCount: 5, RetryDelaySeconds: 0},
		Services:    []config.Service{{Name: "api", Host: "127.0.0.1", Port: 1}},
		Routes:      []config.Route{{Domain: "*", Service: "api"}},
	}
	sw, table, _ := newHarness(t, cfg)

	_, err := sw.UpdateServicePort(context.Background(), "api", 59999, true)
	require.NoError(t, err, "nothing listens on 59999, but skip_health_check must bypass the probe")

	svc, ok := table.LookupService("api")
	require.True(t, ok)
	assert.Equal(t, 59999, svc.Port)
}

func TestUpdateServicePortDoesNotRollBackOnHealthCheckFailure(t *testing.T) {
	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		HealthCheck: config.HealthCheckConfig{Path: "/", RetryCount: 1, RetryDelaySeconds: 0},
		Services:    []config.Service{{Name: "api", Host: "127.0.0.1", Port: 1}},
		Routes:      []config.Route{{Domain: "*", Service: "api"}},
	}
	sw, table, _ := newHarness(t, cfg)

	oldPort, err := sw.UpdateServicePort(context.Background(), "api", 59998, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, switcher.ErrHealthCheckFailed))
	assert.Equal(t, 1, oldPort)

	svc, ok := table.LookupService("api")
	require.True(t, ok)
	assert.Equal(t, 59998, svc.Port, "a failed probe must not revert the in-memory port")
	assert.Equal(t, 1, svc.PreviousPort)
}

func TestUpdateServicePortRetryCountZeroMeansHealthy(t *testing.T) {
	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		HealthCheck: config.HealthCheckConfig{Path: "/", RetryCount: 0},
		Services:    []config.Service{{Name: "api", Host: "127.0.0.1", Port: 1}},
		Routes:      []config.Route{{Domain: "*", Service: "api"}},
	}
	sw, _, _ := newHarness(t, cfg)

	_, err := sw.UpdateServicePort(context.Background(), "api", 59997, false)
	assert.NoError(t, err)
}

func TestUpdateServicePortPersistenceFailureIsNonFatal(t *testing.T) {
	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		Services: []config.Service{{Name: "api", Host: "127.0.0.1", Port: 1}},
		Routes:   []config.Route{{Domain: "*", Service: "api"}},
	}
	table, err := routing.NewTable(cfg)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	// A path under a directory that does not exist: Save must fail, but
	// UpdateServicePort must still report success since persistence
	// failure is logged, not fatal.
	badPath := filepath.Join(t.TempDir(), "missing-dir", "config.yaml")
	sw := switcher.New(table, health.NewProber(), badPath, logger, nil)

	_, err = sw.UpdateServicePort(context.Background(), "api", 4201, true)
	require.NoError(t, err)

	svc, ok := table.LookupService("api")
	require.True(t, ok)
	assert.Equal(t, 4201, svc.Port)

	_, statErr := os.Stat(badPath)
	assert.Error(t, statErr, "the file must not exist since the directory itself was missing")
}

// TestUpdateServicePortSerializesAcrossConcurrentSwitches asserts the write
// lock is held across the health probe itself, not just the in-memory
// mutation: two switches racing for different services must never have
// their probes in flight at the same time.
func TestUpdateServicePortSerializesAcrossConcurrentSwitches(t *testing.T) {
	var inFlight int32
	var maxObserved int32

	slowProbe := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&inFlight, 1)
		for {
			observed := atomic.LoadInt32(&maxObserved)
			if n <= observed || atomic.CompareAndSwapInt32(&maxObserved, observed, n) {
				break
			}
		}
		time.Sleep(50 * time.Millisecond)
		atomic.AddInt32(&inFlight, -1)
		w.WriteHeader(http.StatusOK)
	}))
	defer slowProbe.Close()
	host, port := splitHostPort(t, slowProbe.URL)

	cfg := &config.Config{
		APIPort: 1143, ProxyPort: 1144,
		HealthCheck: config.HealthCheckConfig{Path: "/", RetryCount: 1, RetryDelaySeconds: 0},
		Services: []config.Service{
			{Name: "one", Host: host, Port: 1},
			{Name: "two", Host: host, Port: 2},
		},
		Routes: []config.Route{
			{Domain: "one.example", Service: "one"},
			{Domain: "two.example", Service: "two"},
		},
	}
	sw, _, _ := newHarness(t, cfg)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		_, _ = sw.UpdateServicePort(context.Background(), "one", port, false)
	}()
	go func() {
		defer wg.Done()
		_, _ = sw.UpdateServicePort(context.Background(), "two", port, false)
	}()
	wg.Wait()

	assert.EqualValues(t, 1, atomic.LoadInt32(&maxObserved),
		"the two switches' health probes must never overlap: the write lock should be held across the probe")
}
