package ratelimit_test

import (
	"net/http/httptest"
	"testing"

	"github.com/marshallku/traffic-switcher/internal/ratelimit"
	"github.com/stretchr/testify/assert"
)

func TestAllowPermitsUpToBurstThenRejects(t *testing.T) {
	l := ratelimit.New(0, 2)
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.5:1234"

	assert.True(t, l.Allow(req))
	assert.True(t, l.Allow(req))
	assert.False(t, l.Allow(req))
}

func TestAllowTracksClientsIndependently(t *testing.T) {
	l := ratelimit.New(0, 1)

	reqA := httptest.NewRequest("GET", "/", nil)
	reqA.RemoteAddr = "10.0.0.1:1"
	reqB := httptest.NewRequest("GET", "/", nil)
	reqB.RemoteAddr = "10.0.0.2:1"

	assert.True(t, l.Allow(reqA))
	assert.False(t, l.Allow(reqA))
	assert.True(t, l.Allow(reqB))
}

func TestAllowUsesForwardedForWhenPresent(t *testing.T) {
	l := ratelimit.New(0, 1)

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1"
	req.Header.Set("X-Forwarded-For", "203.0.113.9, 10.0.0.1")

	assert.True(t, l.Allow(req))
	assert.False(t, l.Allow(req))

	other := httptest.NewRequest("GET", "/", nil)
	other.RemoteAddr = "10.0.0.1:2"
	assert.True(t, l.Allow(other))
}

func TestNewNegativeRateDisablesLimiting(t *testing.T) {
	l := ratelimit.New(-1, 1)
	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "10.0.0.1:1"

	for i := 0; i < 5; i++ {
		assert.True(t, l.Allow(req))
	}
}
