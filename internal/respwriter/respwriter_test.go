package respwriter_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/marshallku/traffic-switcher/internal/respwriter"
	"github.com/stretchr/testify/assert"
)

func TestWriteHeaderRecordsStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := respwriter.Wrap(rec)

	rw.WriteHeader(http.StatusTeapot)
	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestWriteDefaultsStatusTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := respwriter.Wrap(rec)

	n, err := rw.Write([]byte("hello"))
	assert.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.Equal(t, 5, rw.BytesWritten)
}

func TestWrapDoesNotDoubleWrap(t *testing.T) {
	rec := httptest.NewRecorder()
	once := respwriter.Wrap(rec)
	twice := respwriter.Wrap(once)
	assert.Same(t, once, twice)
}
