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
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var large = strings.Repeat(`{"controller":"book","action":"show"}`, 100)

func body(contentType string, status int, payload string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, payload) //nolint:errcheck // test handler
	})
}

func request(h http.Handler, accept string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/books/7", nil)
	if accept != "" {
		req.Header.Set("Accept-Encoding", accept)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()

	var r io.Reader
	switch rec.Header().Get("Content-Encoding") {
	case "br":
		r = brotli.NewReader(rec.Body)
	case "gzip":
		zr, err := gzip.NewReader(rec.Body)
		require.NoError(t, err)
		r = zr
	default:
		r = rec.Body
	}
	b, err := io.ReadAll(r)
	require.NoError(t, err)

	return string(b)
}

func TestCompression(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		opts        []Option
		accept      string
		contentType string
		status      int
		payload     string
		encoding    string
	}{
		{name: "brotli preferred", accept: "gzip, br", contentType: "application/json", status: http.StatusOK, payload: large, encoding: "br"},
		{name: "gzip by quality", accept: "br;q=0.5, gzip", contentType: "application/json", status: http.StatusOK, payload: large, encoding: "gzip"},
		{name: "wildcard", accept: "*", contentType: "application/json", status: http.StatusOK, payload: large, encoding: "br"},
		{name: "brotli disabled", opts: []Option{WithoutBrotli()}, accept: "br, gzip", contentType: "application/json", status: http.StatusOK, payload: large, encoding: "gzip"},
		{name: "refused", accept: "gzip;q=0", contentType: "application/json", status: http.StatusOK, payload: large},
		{name: "no header", contentType: "application/json", status: http.StatusOK, payload: large},
		{name: "small body", accept: "gzip", contentType: "application/json", status: http.StatusOK, payload: "{}"},
		{name: "excluded type", accept: "gzip", contentType: "text/event-stream", status: http.StatusOK, payload: large},
		{name: "custom exclusion", opts: []Option{WithExcludeContentTypes("image/")}, accept: "gzip", contentType: "image/svg+xml", status: http.StatusOK, payload: large},
		{name: "error status still compressed", accept: "gzip", contentType: "application/problem+json", status: http.StatusNotFound, payload: large, encoding: "gzip"},
		{name: "min size zero", opts: []Option{WithMinSize(0)}, accept: "gzip", contentType: "text/plain", status: http.StatusOK, payload: "hi", encoding: "gzip"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := request(New(tt.opts...)(body(tt.contentType, tt.status, tt.payload)), tt.accept)
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.encoding, rec.Header().Get("Content-Encoding"))
			assert.Equal(t, "Accept-Encoding", rec.Header().Get("Vary"))
			assert.Equal(t, tt.payload, decode(t, rec))
		})
	}
}

func TestCompressionNoContent(t *testing.T) {
	t.Parallel()

	h := New(WithMinSize(0))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	rec := request(h, "gzip")

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Empty(t, rec.Header().Get("Content-Encoding"))
	assert.Zero(t, rec.Body.Len())
}

func TestCompressionSniffsContentType(t *testing.T) {
	t.Parallel()

	rec := request(New()(body("", http.StatusOK, "<html>"+large+"</html>")), "gzip")

	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))
	assert.Equal(t, "text/html; charset=utf-8", rec.Header().Get("Content-Type"))
}

func TestCompressionWriterReuse(t *testing.T) {
	t.Parallel()

	h := New(WithGzipLevel(gzip.BestSpeed), WithBrotliLevel(20))(body("application/json", http.StatusOK, large))
	for range 3 {
		for _, accept := range []string{"gzip", "br"} {
			rec := request(h, accept)
			assert.Equal(t, large, decode(t, rec))
		}
	}
}

func TestChoose(t *testing.T) {
	t.Parallel()

	cfg := &config{enableBrotli: true, enableGzip: true}
	assert.Empty(t, cfg.choose(""))
	assert.Empty(t, cfg.choose("identity"))
	assert.Empty(t, cfg.choose("br;q=bogus"))
	assert.Equal(t, "gzip", cfg.choose("GZIP"))
	assert.Equal(t, "br", cfg.choose("gzip;q=0.8, br;q=0.9"))

	cfg.enableGzip = false
	assert.Equal(t, "br", cfg.choose("gzip, br;q=0.1"))
}
