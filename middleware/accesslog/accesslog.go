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

package accesslog

import (
	"log/slog"
	"math/rand/v2"
	"net/http"
	"strings"
	"time"

	"rivaas.dev/mapping/middleware/requestid"
	"rivaas.dev/mapping/telemetry/semconv"
)

// Option configures the middleware.
type Option func(*config)

type config struct {
	logger        *slog.Logger
	excludePaths  map[string]struct{}
	excludePrefix []string
	slowThreshold time.Duration
	errorsOnly    bool
	sampleRate    float64
	requestID     func(*http.Request) string
}

// WithLogger sets the logger. The default is [slog.Default].
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) { c.logger = logger }
}

// WithExcludePaths skips logging for the exact paths given.
func WithExcludePaths(paths ...string) Option {
	return func(c *config) {
		for _, p := range paths {
			c.excludePaths[p] = struct{}{}
		}
	}
}

// WithExcludePrefixes skips logging for paths starting with any prefix.
func WithExcludePrefixes(prefixes ...string) Option {
	return func(c *config) { c.excludePrefix = append(c.excludePrefix, prefixes...) }
}

// WithSlowThreshold logs requests taking at least d at warn level.
func WithSlowThreshold(d time.Duration) Option {
	return func(c *config) { c.slowThreshold = d }
}

// WithErrorsOnly logs only 4xx and 5xx responses and slow requests.
func WithErrorsOnly() Option {
	return func(c *config) { c.errorsOnly = true }
}

// WithSampleRate logs the given fraction of successful requests. Errors
// and slow requests are always logged.
func WithSampleRate(rate float64) Option {
	return func(c *config) { c.sampleRate = rate }
}

// WithRequestIDFunc sets how the request ID is read. The default reads
// the requestid middleware's value.
func WithRequestIDFunc(fn func(*http.Request) string) Option {
	return func(c *config) { c.requestID = fn }
}

// New returns the middleware.
func New(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		excludePaths: make(map[string]struct{}),
		sampleRate:   1,
		requestID:    func(r *http.Request) string { return requestid.Get(r.Context()) },
	}
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = slog.Default()
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.excluded(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)
			cfg.log(r, rw, time.Since(start))
		})
	}
}

func (c *config) excluded(path string) bool {
	if _, ok := c.excludePaths[path]; ok {
		return true
	}
	for _, prefix := range c.excludePrefix {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}

	return false
}

func (c *config) log(r *http.Request, rw *responseWriter, elapsed time.Duration) {
	slow := c.slowThreshold > 0 && elapsed >= c.slowThreshold
	failed := rw.status >= http.StatusBadRequest

	if !failed && !slow {
		if c.errorsOnly {
			return
		}
		if c.sampleRate < 1 && rand.Float64() >= c.sampleRate { //nolint:gosec // sampling, not security
			return
		}
	}

	attrs := []slog.Attr{
		slog.String(semconv.HTTPMethod, r.Method),
		slog.String(semconv.HTTPTarget, r.URL.Path),
		slog.Int64(semconv.HTTPStatusCode, int64(rw.status)),
		slog.Duration("duration", elapsed),
		slog.Int64("bytes", rw.bytes),
		slog.String(semconv.ClientAddress, r.RemoteAddr),
	}
	if ua := r.UserAgent(); ua != "" {
		attrs = append(attrs, slog.String(semconv.UserAgent, ua))
	}
	if id := c.requestID(r); id != "" {
		attrs = append(attrs, slog.String(semconv.RequestID, id))
	}

	level := slog.LevelInfo
	switch {
	case rw.status >= http.StatusInternalServerError:
		level = slog.LevelError
	case failed, slow:
		level = slog.LevelWarn
	}
	if slow {
		attrs = append(attrs, slog.Bool("slow", true))
	}

	c.logger.LogAttrs(r.Context(), level, "request", attrs...)
}

type responseWriter struct {
	http.ResponseWriter
	status      int
	bytes       int64
	wroteHeader bool
}

func (w *responseWriter) WriteHeader(code int) {
	if !w.wroteHeader {
		w.status = code
		w.wroteHeader = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *responseWriter) Write(b []byte) (int, error) {
	w.wroteHeader = true
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)

	return n, err
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *responseWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }
