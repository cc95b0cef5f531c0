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

package requestid

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, header string, opts ...Option) (string, string) {
	t.Helper()

	var seen string
	h := New(opts...)(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = Get(r.Context())
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if header != "" {
		req.Header.Set(DefaultHeader, header)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	return seen, rec.Header().Get(DefaultHeader)
}

func TestRequestID(t *testing.T) {
	t.Parallel()

	t.Run("generates a UUIDv7", func(t *testing.T) {
		t.Parallel()

		seen, header := serve(t, "")
		assert.Equal(t, seen, header)
		id, err := uuid.Parse(seen)
		require.NoError(t, err)
		assert.Equal(t, uuid.Version(7), id.Version())
	})

	t.Run("keeps the client ID", func(t *testing.T) {
		t.Parallel()

		seen, header := serve(t, "abc-123")
		assert.Equal(t, "abc-123", seen)
		assert.Equal(t, "abc-123", header)
	})

	t.Run("ignores the client ID", func(t *testing.T) {
		t.Parallel()

		seen, _ := serve(t, "abc-123", WithoutClientID())
		assert.NotEqual(t, "abc-123", seen)
		assert.NotEmpty(t, seen)
	})

	t.Run("ULID", func(t *testing.T) {
		t.Parallel()

		seen, _ := serve(t, "", WithULID())
		_, err := ulid.ParseStrict(seen)
		require.NoError(t, err)
	})

	t.Run("custom generator", func(t *testing.T) {
		t.Parallel()

		seen, _ := serve(t, "", WithGenerator(func() string { return "fixed" }))
		assert.Equal(t, "fixed", seen)
	})
}

func TestCustomHeader(t *testing.T) {
	t.Parallel()

	h := New(WithHeader("X-Trace"))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Trace", "t-1")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "t-1", rec.Header().Get("X-Trace"))
	assert.Empty(t, rec.Header().Get(DefaultHeader))
}

func TestGetWithoutMiddleware(t *testing.T) {
	t.Parallel()

	assert.Empty(t, Get(httptest.NewRequest(http.MethodGet, "/", nil).Context()))
}
