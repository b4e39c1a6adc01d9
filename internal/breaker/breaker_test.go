package breaker_test

import (
	"errors"
	"net/http"
	"testing"

	"github.com/marshallku/traffic-switcher/internal/breaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errUpstream = errors.New("upstream unreachable")

func TestRegistryReturnsSameBreakerPerService(t *testing.T) {
	reg := breaker.NewRegistry(nil)
	assert.Same(t, reg.Get("api"), reg.Get("api"))
}

func TestRegistryIsolatesServices(t *testing.T) {
	reg := breaker.NewRegistry(nil)
	assert.NotSame(t, reg.Get("api"), reg.Get("web"))
}

func TestExecutePassesThroughSuccess(t *testing.T) {
	reg := breaker.NewRegistry(nil)
	b := reg.Get("api")

	want := &http.Response{StatusCode: http.StatusOK}
	got, err := b.Execute(func() (*http.Response, error) {
		return want, nil
	})
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestExecuteTripsAfterConsecutiveFailures(t *testing.T) {
	reg := breaker.NewRegistry(nil)
	b := reg.Get("api")

	for i := 0; i < 5; i++ {
		_, err := b.Execute(func() (*http.Response, error) {
			return nil, errUpstream
		})
		assert.ErrorIs(t, err, errUpstream)
	}

	_, err := b.Execute(func() (*http.Response, error) {
		t.Fatal("fn must not run once the breaker is open")
		return nil, nil
	})
	assert.ErrorIs(t, err, breaker.ErrOpen)
}
