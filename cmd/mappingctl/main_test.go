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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"rivaas.dev/mapping"
)

const testDefinition = `
mapping:
  cache:
    url: 0
rules:
  - name: bookShow
    pattern: /books/$id
    method: GET
    controller: book
    action: show
    constraints:
      id:
        kind: int
  - pattern: /about
    view: about
  - pattern: /$controller/$action?/$id?
  - status: 404
    view: notFound
  - status: 500
    controller: errors
`

func writeDefinition(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(testDefinition), 0o600))

	return path
}

// runCLI runs args and returns the exit code with both outputs.
func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()

	var stdout, stderr bytes.Buffer
	c := &cli{stdout: &stdout, stderr: &stderr}
	code := c.run(context.Background(), args)

	return code, stdout.String(), stderr.String()
}

func TestRun(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		args   []string
		code   int
		stdout string
		stderr string
	}{
		{name: "no arguments", args: nil, code: 2, stderr: "Commands:"},
		{name: "help", args: []string{"help"}, code: 0, stderr: "routes"},
		{name: "version", args: []string{"version"}, code: 0, stdout: "mappingctl dev"},
		{name: "unknown command", args: []string{"frobnicate"}, code: 2, stderr: `unknown command "frobnicate"`},
		{name: "command help", args: []string{"match", "-h"}, code: 0, stderr: "-method"},
		{name: "bad flag", args: []string{"routes", "-nope"}, code: 2, stderr: "-nope"},
		{name: "missing file", args: []string{"routes", "-f", "does-not-exist.yaml"}, code: 1, stderr: "does-not-exist.yaml"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			code, stdout, stderr := runCLI(t, tt.args...)
			assert.Equal(t, tt.code, code)
			assert.Contains(t, stdout, tt.stdout)
			assert.Contains(t, stderr, tt.stderr)
		})
	}
}

func TestRoutes(t *testing.T) {
	t.Parallel()

	code, stdout, stderr := runCLI(t, "routes", "-f", writeDefinition(t), "-color=false")
	require.Equal(t, 0, code, stderr)

	for _, want := range []string{"Pattern", "bookShow", "/books/$id", "book/show", "view:about", "${controller}/${action}", "404", "errors"} {
		assert.Contains(t, stdout, want)
	}
	assert.NotContains(t, stdout, "\x1b[")
}

func TestMatch(t *testing.T) {
	t.Parallel()

	file := writeDefinition(t)

	tests := []struct {
		name string
		args []string
		code int
		want []string
	}{
		{
			name: "literal controller",
			args: []string{"/books/7"},
			want: []string{"controller: book", "action:     show", "param:      id=7"},
		},
		{
			name: "captured controller defaults the action",
			args: []string{"/shelf"},
			want: []string{"controller: shelf", "action:     index"},
		},
		{name: "view", args: []string{"/about"}, want: []string{"view:       about"}},
		{name: "escaped path is decoded", args: []string{"/books/%37"}, want: []string{"controller: book", "param:      id=7"}},
		{name: "escaped space", args: []string{"/shelf/read%20later"}, want: []string{"controller: shelf", "action:     read later"}},
		{name: "bad escape", args: []string{"/books/%zz"}, code: 2, want: []string{"invalid path"}},
		{
			name: "all matches",
			args: []string{"-all", "/books/7"},
			want: []string{"GET /books/$id -> book/show", "/$controller/$action?/$id? -> "},
		},
		{name: "other methods fall through", args: []string{"-method", "DELETE", "/books/7"}, want: []string{"controller: books", "action:     7"}},
		{name: "no match", args: []string{"/a/b/c/d"}, code: 1, want: []string{"no rule matches /a/b/c/d"}},
		{name: "missing path", args: nil, code: 2, want: []string{"expected exactly one path"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"match", "-f", file}, tt.args...)
			code, stdout, stderr := runCLI(t, args...)
			assert.Equal(t, tt.code, code, stderr)
			for _, want := range tt.want {
				assert.Contains(t, stdout+stderr, want)
			}
		})
	}
}

func TestURL(t *testing.T) {
	t.Parallel()

	file := writeDefinition(t)

	tests := []struct {
		name string
		args []string
		code int
		want string
	}{
		{name: "reverse lookup", args: []string{"-controller", "book", "-action", "show", "id=7"}, want: "/books/7\n"},
		{name: "named rule", args: []string{"-name", "bookShow", "id=7"}, want: "/books/7\n"},
		{name: "extra params become the query", args: []string{"-controller", "book", "-action", "show", "id=7", "lang=en"}, want: "/books/7?lang=en\n"},
		{name: "fragment", args: []string{"-controller", "book", "-action", "show", "-fragment", "top", "id=7"}, want: "/books/7#top\n"},
		{name: "fixed uri", args: []string{"-uri", "/help", "topic=maps"}, want: "/help?topic=maps\n"},
		{name: "bad parameter", args: []string{"-controller", "book", "id"}, code: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			args := append([]string{"url", "-f", file}, tt.args...)
			code, stdout, stderr := runCLI(t, args...)
			require.Equal(t, tt.code, code, stderr)
			if tt.want != "" {
				assert.Equal(t, tt.want, stdout)
			}
		})
	}
}

func TestParseParams(t *testing.T) {
	t.Parallel()

	params, err := parseParams([]string{"a=1", "b=x=y", "a=2", "a=3", "c="})
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"a": []string{"1", "2", "3"},
		"b": "x=y",
		"c": "",
	}, params)

	_, err = parseParams([]string{"=v"})
	require.ErrorIs(t, err, errUsage)
}

func TestConfig(t *testing.T) {
	t.Parallel()

	file := writeDefinition(t)

	code, stdout, stderr := runCLI(t, "config", "-f", file, "-format", "json")
	require.Equal(t, 0, code, stderr)

	var doc map[string]map[string]any
	require.NoError(t, json.Unmarshal([]byte(stdout), &doc))
	assert.Equal(t, map[string]any{
		"forward": float64(mapping.DefaultForwardCacheCapacity),
		"multi":   float64(mapping.DefaultMultiCacheCapacity),
		"url":     float64(0),
	}, doc["mapping"]["cache"])
	assert.Equal(t, true, doc["mapping"]["default_url"])

	code, stdout, _ = runCLI(t, "config", "-f", file)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "url: 0")

	code, _, stderr = runCLI(t, "config", "-f", file, "-format", "ini")
	assert.Equal(t, 2, code)
	assert.Contains(t, stderr, "-format")
}

func TestPreviewDispatcher(t *testing.T) {
	t.Parallel()

	_, tbl, err := (&common{file: writeDefinition(t)}).load(context.Background(), mapping.NoopLogger())
	require.NoError(t, err)
	t.Cleanup(tbl.Close)

	d, err := newPreviewDispatcher(tbl, mapping.NoopLogger(), noop.NewTracerProvider())
	require.NoError(t, err)

	tests := []struct {
		name   string
		target string
		status int
		want   preview
	}{
		{
			name:   "controller",
			target: "/books/7",
			status: http.StatusOK,
			want:   preview{Rule: "GET /books/$id -> book/show", Controller: "book", Action: "show", Params: map[string]any{"id": float64(7)}},
		},
		{
			name:   "view",
			target: "/about",
			status: http.StatusOK,
			want:   preview{Rule: "/about -> view:about", View: "about"},
		},
		{
			name:   "status rule",
			target: "/a/b/c/d",
			status: http.StatusNotFound,
			want:   preview{Rule: "404 -> view:notFound", View: "notFound", Status: http.StatusNotFound},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			rec := httptest.NewRecorder()
			d.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var got preview
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrometheus(t *testing.T) {
	t.Parallel()

	tel, err := newTelemetry(context.Background(), telemetryOptions{metricsAddr: ":0", metricsPath: "/metrics"}, io.Discard)
	require.NoError(t, err)
	t.Cleanup(func() { _ = tel.Shutdown(context.Background()) })
	require.NotNil(t, tel.metricsHandler)
	handler := tel.metricsHandler

	_, tbl, err := (&common{file: writeDefinition(t)}).load(context.Background(), mapping.NoopLogger(), mapping.WithMeterProvider(tel.MeterProvider()))
	require.NoError(t, err)
	t.Cleanup(tbl.Close)

	require.NotNil(t, tbl.Match("/books/7"))
	_, err = tbl.BuildURL("book", "show", map[string]any{"id": 7}, "")
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "mapping_matches")
	assert.Contains(t, rec.Body.String(), "mapping_urls")
}

func TestTelemetryStdout(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	tel, err := newTelemetry(context.Background(), telemetryOptions{
		metricsStdout: true,
		traceStdout:   true,
	}, &buf)
	require.NoError(t, err)
	assert.Nil(t, tel.metricsHandler)

	_, tbl, err := (&common{file: writeDefinition(t)}).load(context.Background(), mapping.NoopLogger(), mapping.WithMeterProvider(tel.MeterProvider()))
	require.NoError(t, err)
	t.Cleanup(tbl.Close)
	require.NotNil(t, tbl.Match("/books/7"))

	_, span := tel.TracerProvider().Tracer("test").Start(context.Background(), "GET /books/7")
	span.End()
	require.NoError(t, tel.Shutdown(context.Background()))

	out := buf.String()
	assert.Contains(t, out, "GET /books/7")
	assert.Contains(t, out, serviceName)
	assert.Contains(t, out, "mapping.matches")
}

func TestTelemetryDisabled(t *testing.T) {
	t.Parallel()

	tel, err := newTelemetry(context.Background(), telemetryOptions{}, io.Discard)
	require.NoError(t, err)
	assert.Nil(t, tel.meterProvider)
	assert.Nil(t, tel.tracerProvider)
	assert.NotNil(t, tel.MeterProvider())
	assert.NotNil(t, tel.TracerProvider())
	assert.NoError(t, tel.Shutdown(context.Background()))
}

func TestSplitEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in       string
		want     string
		insecure bool
	}{
		{"http://localhost:4318", "localhost:4318", true},
		{"https://collector.example.com/v1/traces", "collector.example.com", false},
		{"collector:4318", "collector:4318", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			got, insecure := splitEndpoint(tt.in)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.insecure, insecure)
		})
	}
}
