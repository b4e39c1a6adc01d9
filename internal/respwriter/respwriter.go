// Package respwriter wraps http.ResponseWriter to capture the status code
// and byte count of a response for logging and metrics, without altering
// what's sent to the client.
package respwriter

import (
	"bufio"
	"net"
	"net/http"
)

// ResponseWriter records the status code and byte count of a response as it
// is written, passing every byte through to the underlying writer
// unchanged. The response body itself is not buffered: the Proxy Engine may
// stream arbitrarily large upstream bodies, and holding a copy in memory
// per request would be wasteful.
type ResponseWriter struct {
	http.ResponseWriter
	StatusCode   int
	BytesWritten int
}

// Wrap returns w unchanged if it is already a *ResponseWriter, otherwise
// wraps it.
func Wrap(w http.ResponseWriter) *ResponseWriter {
	if rw, ok := w.(*ResponseWriter); ok {
		return rw
	}
	return &ResponseWriter{ResponseWriter: w}
}

// WriteHeader records statusCode and forwards it to the underlying writer.
func (rw *ResponseWriter) WriteHeader(statusCode int) {
	rw.StatusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

// Write defaults the status to 200 if WriteHeader was never called, then
// forwards b to the underlying writer and tallies the bytes actually sent.
func (rw *ResponseWriter) Write(b []byte) (int, error) {
	if rw.StatusCode == 0 {
		rw.StatusCode = http.StatusOK
	}

	n, err := rw.ResponseWriter.Write(b)
	rw.BytesWritten += n
	return n, err
}

// Hijack allows taking over the underlying connection, required for the
// Proxy Engine's non-pooled upstream forwarding path to remain compatible
// with callers that expect http.Hijacker.
func (rw *ResponseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return hijacker.Hijack()
}
