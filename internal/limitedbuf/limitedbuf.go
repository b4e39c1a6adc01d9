// Package limitedbuf provides a bounded buffer for draining response
// bodies from backends that are not fully trusted to behave: a probe
// target could in principle stream gigabytes in response to a health
// check GET, and the prober must not hold all of that in memory. The
// excess is still read and discarded, so how long draining takes is
// bounded by the caller's own timeout, not by this buffer.
package limitedbuf

import (
	"bytes"
	"errors"
	"io"
	"sync"
)

// ErrFull names the condition of the buffer having reached its configured
// cap. ReadFrom does not return it: data past the cap is discarded and
// reported through IsOverflow instead.
var ErrFull = errors.New("limitedbuf: capacity exceeded")

// Buffer is a thread-safe, size-capped byte buffer.
type Buffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	maxSize   int
	overflow  bool
	totalSize int64
}

// New returns a Buffer that retains at most maxSize bytes.
func New(maxSize int) *Buffer {
	return &Buffer{maxSize: maxSize}
}

// ReadFrom drains r until EOF, keeping only the first maxSize bytes but
// reporting the true total size observed. It never returns an error
// solely because the cap was hit; callers that care check IsOverflow.
func (b *Buffer) ReadFrom(r io.Reader) (int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	available := b.maxSize - b.buf.Len()
	if available <= 0 {
		drained, err := io.Copy(io.Discard, r)
		if drained > 0 {
			b.overflow = true
		}
		b.totalSize += drained
		return drained, err
	}

	n, err := io.CopyN(&b.buf, r, int64(available))
	b.totalSize += n
	if err == io.EOF {
		err = nil
	}
	if n == int64(available) {
		drained, discardErr := io.Copy(io.Discard, r)
		if drained > 0 {
			b.overflow = true
		}
		b.totalSize += drained
		if err == nil {
			err = discardErr
		}
	}
	return n, err
}

// Bytes returns a copy of the retained prefix.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]byte, b.buf.Len())
	copy(out, b.buf.Bytes())
	return out
}

// IsOverflow reports whether more data was observed than maxSize.
func (b *Buffer) IsOverflow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.overflow
}

// TotalSize returns the full size of everything read, including the part
// that was discarded past the cap.
func (b *Buffer) TotalSize() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.totalSize
}
