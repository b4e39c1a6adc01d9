// Package staticfiles resolves a request path against a directory on disk,
// the way the Proxy Engine's static routes are served: percent-decode,
// reject traversal segment-by-segment, fall back through an index list and
// then a try_files list, and infer the response Content-Type.
package staticfiles

import (
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/marshallku/traffic-switcher/internal/config"
)

// ErrDecode is returned when the request path fails percent-decoding.
var ErrDecode = errors.New("staticfiles: invalid percent-encoding")

// ErrForbidden is returned when a path segment attempts directory traversal
// or contains a NUL byte.
var ErrForbidden = errors.New("staticfiles: path traversal rejected")

// ErrNotFound is returned when no candidate file exists on disk.
var ErrNotFound = errors.New("staticfiles: no matching file")

// defaultIndex is used when a StaticTarget's Index list is empty.
var defaultIndex = []string{"index.html"}

// Result is a resolved file ready to be written to the response.
type Result struct {
	Path        string
	Body        []byte
	ContentType string
}

// Resolve implements spec.md's static file resolution algorithm against
// target.Root for requestPath (the raw, still percent-encoded request path).
func Resolve(target config.StaticTarget, requestPath string) (*Result, error) {
	decoded, err := url.PathUnescape(requestPath)
	if err != nil {
		return nil, ErrDecode
	}

	candidate, err := buildCandidate(target.Root, decoded)
	if err != nil {
		return nil, err
	}

	resolved, err := resolveCandidate(target, candidate)
	if err != nil {
		return nil, err
	}

	body, err := os.ReadFile(resolved)
	if err != nil {
		return nil, ErrNotFound
	}

	return &Result{
		Path:        resolved,
		Body:        body,
		ContentType: contentType(resolved),
	}, nil
}

// buildCandidate appends each non-empty, non-"." segment of decoded to
// root. A segment of ".." or one containing a NUL byte is rejected; no
// other normalization is performed.
func buildCandidate(root, decoded string) (string, error) {
	candidate := root
	for _, segment := range strings.Split(decoded, "/") {
		if segment == "" || segment == "." {
			continue
		}
		if segment == ".." || strings.ContainsRune(segment, 0) {
			return "", ErrForbidden
		}
		candidate = filepath.Join(candidate, segment)
	}
	return candidate, nil
}

// resolveCandidate applies the index and try_files fallback chains to a
// candidate path that may name a directory or a missing file.
func resolveCandidate(target config.StaticTarget, candidate string) (string, error) {
	info, err := os.Stat(candidate)
	if err == nil && !info.IsDir() {
		return candidate, nil
	}

	if err == nil && info.IsDir() {
		index := target.Index
		if len(index) == 0 {
			index = defaultIndex
		}
		for _, name := range index {
			p := filepath.Join(candidate, name)
			if fi, statErr := os.Stat(p); statErr == nil && !fi.IsDir() {
				return p, nil
			}
		}
		// candidate exists as a directory: that's a terminal match even
		// without an index file. try_files only applies to a path that
		// doesn't exist at all, never to one that resolves to a directory.
		return "", ErrNotFound
	}

	parent := filepath.Dir(candidate)
	for _, entry := range target.TryFiles {
		var p string
		if strings.HasPrefix(entry, "/") {
			p = filepath.Join(target.Root, entry)
		} else {
			p = filepath.Join(parent, entry)
		}
		if fi, statErr := os.Stat(p); statErr == nil && !fi.IsDir() {
			return p, nil
		}
	}

	return "", ErrNotFound
}

// extensionTypes is a fixed extension-to-MIME table rather than a lookup
// through the system mime.types database, so the Content-Type a given file
// gets does not depend on what happens to be installed on the host.
var extensionTypes = map[string]string{
	".html": "text/html",
	".htm":  "text/html",
	".css":  "text/css",
	".csv":  "text/csv",
	".txt":  "text/plain",
	".js":   "application/javascript",
	".mjs":  "application/javascript",
	".json": "application/json",
	".xml":  "application/xml",
	".svg":  "image/svg+xml",
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".gif":  "image/gif",
	".ico":  "image/x-icon",
	".webp": "image/webp",
	".woff": "font/woff",
	".woff2": "font/woff2",
	".wasm": "application/wasm",
	".pdf":  "application/pdf",
}

// contentType infers a response Content-Type from path's extension,
// appending "; charset=utf-8" for text/* and application/javascript as
// spec.md requires.
func contentType(path string) string {
	ct, ok := extensionTypes[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return "application/octet-stream"
	}

	if strings.HasPrefix(ct, "text/") || ct == "application/javascript" {
		return ct + "; charset=utf-8"
	}
	return ct
}
