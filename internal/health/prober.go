// Package health implements the bounded-retry HTTP health probe the Port
// Switcher gates a switch on.
package health

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/marshallku/traffic-switcher/internal/config"
	"github.com/marshallku/traffic-switcher/internal/limitedbuf"
	"github.com/marshallku/traffic-switcher/internal/metrics"
)

// requestTimeout bounds a single probe attempt. Finite and short so a dead
// backend can't stall a switch indefinitely.
const requestTimeout = 5 * time.Second

// maxProbeBodyBytes caps how much of a probe response body the prober
// keeps in memory; a health endpoint is expected to return a small payload.
// The rest of the body is read and discarded, within requestTimeout.
const maxProbeBodyBytes = 64 * 1024

// Prober issues retrying HTTP GETs against a candidate host:port and
// reports whether the backend answered before the retry budget ran out.
type Prober struct {
	client *http.Client
}

// NewProber builds a Prober with a bounded per-request timeout.
func NewProber() *Prober {
	return &Prober{client: &http.Client{Timeout: requestTimeout}}
}

// Probe performs up to cfg.RetryCount GET requests against
// http://host:port{cfg.Path}. Any response that completes without a
// transport error counts as healthy, regardless of status code. A
// RetryCount of 0 means "no probe": Probe returns true immediately without
// issuing a request. The initial attempt counts as attempt 1; between
// failed attempts Probe sleeps cfg.RetryDelaySeconds. service labels the
// health_probe_duration_seconds metric this call records.
func (p *Prober) Probe(ctx context.Context, service, host string, port int, cfg config.HealthCheckConfig) bool {
	if cfg.RetryCount <= 0 {
		return true
	}

	start := time.Now()
	ok := p.probe(ctx, host, port, cfg)
	metrics.RecordHealthProbe(service, time.Since(start).Seconds())
	return ok
}

func (p *Prober) probe(ctx context.Context, host string, port int, cfg config.HealthCheckConfig) bool {
	url := fmt.Sprintf("http://%s:%d%s", host, port, cfg.Path)
	delay := time.Duration(cfg.RetryDelaySeconds) * time.Second

	for attempt := 1; attempt <= cfg.RetryCount; attempt++ {
		if p.attempt(ctx, url) {
			return true
		}

		if attempt == cfg.RetryCount {
			break
		}

		select {
		case <-ctx.Done():
			return false
		case <-time.After(delay):
		}
	}

	return false
}

func (p *Prober) attempt(ctx context.Context, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()

	body := limitedbuf.New(maxProbeBodyBytes)
	body.ReadFrom(resp.Body)

	return true
}
