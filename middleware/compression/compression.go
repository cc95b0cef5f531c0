// Copyright 2025 The Rivaas Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package compression

import (
	"compress/gzip"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
)

// DefaultMinSize is the body size below which responses are not compressed.
const DefaultMinSize = 1024

// Option configures the middleware.
type Option func(*config)

type config struct {
	gzipLevel           int
	brotliLevel         int
	minSize             int
	enableGzip          bool
	enableBrotli        bool
	excludeContentTypes []string
}

// WithGzipLevel sets the gzip level (gzip.BestSpeed to gzip.BestCompression).
func WithGzipLevel(level int) Option {
	return func(c *config) { c.gzipLevel = level }
}

// WithBrotliLevel sets the brotli level, clamped to 0..11.
func WithBrotliLevel(level int) Option {
	return func(c *config) { c.brotliLevel = max(0, min(level, 11)) }
}

// WithoutBrotli disables brotli.
func WithoutBrotli() Option {
	return func(c *config) { c.enableBrotli = false }
}

// WithoutGzip disables gzip.
func WithoutGzip() Option {
	return func(c *config) { c.enableGzip = false }
}

// WithMinSize sets the smallest body that is compressed.
func WithMinSize(n int) Option {
	return func(c *config) { c.minSize = max(0, n) }
}

// WithExcludeContentTypes adds content types that are sent uncompressed.
// Matching is by substring, so "image/" excludes every image type.
func WithExcludeContentTypes(types ...string) Option {
	return func(c *config) {
		for _, t := range types {
			c.excludeContentTypes = append(c.excludeContentTypes, strings.ToLower(t))
		}
	}
}

// New returns the middleware.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		gzipLevel:    gzip.DefaultCompression,
		brotliLevel:  4,
		minSize:      DefaultMinSize,
		enableGzip:   true,
		enableBrotli: true,
		excludeContentTypes: []string{
			"text/event-stream",
			"application/grpc",
			"application/octet-stream",
		},
	}
	for _, opt := range opts {
		opt(cfg)
	}

	pools := map[string]*sync.Pool{
		"br": {New: func() any { return brotli.NewWriterLevel(io.Discard, cfg.brotliLevel) }},
		"gzip": {New: func() any {
			w, err := gzip.NewWriterLevel(io.Discard, cfg.gzipLevel)
			if err != nil {
				w = gzip.NewWriter(io.Discard)
			}
			return w
		}},
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Add("Vary", "Accept-Encoding")

			encoding := cfg.choose(r.Header.Get("Accept-Encoding"))
			if encoding == "" || r.Method == http.MethodHead || r.Header.Get("Range") != "" {
				next.ServeHTTP(w, r)
				return
			}

			cw := &compressWriter{
				ResponseWriter: w,
				cfg:            cfg,
				pool:           pools[encoding],
				encoding:       encoding,
				status:         http.StatusOK,
			}
			defer cw.finish()
			next.ServeHTTP(cw, r)
		})
	}
}

// choose returns "br", "gzip" or "" for an Accept-Encoding header.
// Brotli wins ties.
func (c *config) choose(accept string) string {
	if accept == "" {
		return ""
	}

	var brQ, gzipQ float64
	for part := range strings.SplitSeq(strings.ToLower(accept), ",") {
		name, params, _ := strings.Cut(strings.TrimSpace(part), ";")
		q := 1.0
		if v, ok := strings.CutPrefix(strings.TrimSpace(params), "q="); ok {
			parsed, err := strconv.ParseFloat(v, 64)
			if err != nil {
				continue
			}
			q = parsed
		}
		switch strings.TrimSpace(name) {
		case "br":
			brQ = q
		case "gzip":
			gzipQ = q
		case "*":
			brQ, gzipQ = max(brQ, q), max(gzipQ, q)
		}
	}

	switch {
	case c.enableBrotli && brQ > 0 && brQ >= gzipQ:
		return "br"
	case c.enableGzip && gzipQ > 0:
		return "gzip"
	case c.enableBrotli && brQ > 0:
		return "br"
	default:
		return ""
	}
}

func (c *config) excluded(contentType string) bool {
	ct := strings.ToLower(contentType)
	for _, t := range c.excludeContentTypes {
		if strings.Contains(ct, t) {
			return true
		}
	}

	return false
}

// compressWriter buffers the body until it reaches the minimum size, then
// commits to compressing or passing through.
type compressWriter struct {
	http.ResponseWriter
	cfg      *config
	pool     *sync.Pool
	encoding string

	status  int
	buf     []byte
	decided bool
	zw      io.WriteCloser
}

func (w *compressWriter) WriteHeader(code int) {
	if w.decided {
		return
	}
	w.status = code
	if code < http.StatusOK || code == http.StatusNoContent ||
		code == http.StatusPartialContent || code == http.StatusNotModified {
		w.decide(false)
	}
}

func (w *compressWriter) Write(b []byte) (int, error) {
	if !w.decided {
		w.buf = append(w.buf, b...)
		if len(w.buf) < w.cfg.minSize {
			return len(b), nil
		}
		if err := w.decide(true); err != nil {
			return 0, err
		}

		return len(b), nil
	}
	if w.zw != nil {
		return w.zw.Write(b)
	}

	return w.ResponseWriter.Write(b)
}

// decide sends the header and the buffered body.
func (w *compressWriter) decide(compress bool) error {
	w.decided = true
	h := w.ResponseWriter.Header()
	if h.Get("Content-Type") == "" && len(w.buf) > 0 {
		h.Set("Content-Type", http.DetectContentType(w.buf))
	}
	if compress && (h.Get("Content-Encoding") != "" || w.cfg.excluded(h.Get("Content-Type"))) {
		compress = false
	}

	var out io.Writer = w.ResponseWriter
	if compress {
		h.Del("Content-Length")
		h.Set("Content-Encoding", w.encoding)
		switch zw := w.pool.Get().(type) {
		case *brotli.Writer:
			zw.Reset(w.ResponseWriter)
			w.zw = zw
		case *gzip.Writer:
			zw.Reset(w.ResponseWriter)
			w.zw = zw
		}
		out = w.zw
	}
	w.ResponseWriter.WriteHeader(w.status)

	if len(w.buf) == 0 {
		return nil
	}
	_, err := out.Write(w.buf)
	w.buf = nil

	return err
}

// finish flushes a body that never reached the minimum size and returns
// the compressor to its pool.
func (w *compressWriter) finish() {
	if !w.decided {
		_ = w.decide(false) //nolint:errcheck // the client is gone
	}
	if w.zw == nil {
		return
	}
	_ = w.zw.Close() //nolint:errcheck // the client is gone
	switch zw := w.zw.(type) {
	case *brotli.Writer:
		zw.Reset(io.Discard)
	case *gzip.Writer:
		zw.Reset(io.Discard)
	}
	w.pool.Put(w.zw)
	w.zw = nil
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *compressWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
