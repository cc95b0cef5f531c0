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

package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
)

func TestNew(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		opts    []Option
		wantErr bool
	}{
		{name: "defaults"},
		{name: "text", opts: []Option{WithTextHandler()}},
		{name: "console", opts: []Option{WithConsoleHandler()}},
		{name: "nil output", opts: []Option{WithOutput(nil)}, wantErr: true},
		{name: "unknown handler", opts: []Option{WithHandlerType("xml")}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			l, err := New(tt.opts...)
			if tt.wantErr {
				require.Error(t, err)
				assert.Nil(t, l)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, l.Logger())
		})
	}

	assert.Panics(t, func() { MustNew(WithHandlerType("xml")) })
}

func TestJSONHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := MustNew(
		WithJSONHandler(),
		WithOutput(&buf),
		WithServiceName("mappingctl"),
		WithServiceVersion("1.2.3"),
	)

	l.Logger().Debug("hidden")
	l.Logger().Info("table initialized", "rules", 4)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "table initialized", entry["msg"])
	assert.Equal(t, "mappingctl", entry["service"])
	assert.Equal(t, "1.2.3", entry["version"])
	assert.InDelta(t, 4, entry["rules"], 0)
}

func TestSetLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := MustNew(WithTextHandler(), WithOutput(&buf), WithLevel(LevelWarn))
	assert.Equal(t, LevelWarn, l.Level())

	l.Logger().Info("dropped")
	assert.Empty(t, buf.String())

	l.SetLevel(LevelDebug)
	l.Logger().Debug("kept")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestConsoleHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := MustNew(WithConsoleHandler(), WithOutput(&buf), WithoutColor(), WithDebugLevel())

	logger := l.Logger().With("table", "main").WithGroup("match")
	logger.Debug("resolved",
		"path", "/books/1",
		"cached", true,
		"took", 3*time.Millisecond,
		"err", errors.New("none"),
		slog.Group("rule", "pattern", "/books/(*)"),
	)

	out := buf.String()
	assert.NotContains(t, out, "\033[")
	assert.Contains(t, out, "DEBUG resolved")
	assert.Contains(t, out, " table=main")
	assert.Contains(t, out, " match.path=/books/1")
	assert.Contains(t, out, " match.cached=true")
	assert.Contains(t, out, " match.took=3ms")
	assert.Contains(t, out, " match.err=none")
	assert.Contains(t, out, " match.rule.pattern=/books/(*)")
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestConsoleHandlerColor(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := MustNew(WithConsoleHandler(), WithOutput(&buf))
	l.Logger().Error("failed")

	assert.Contains(t, buf.String(), colorRed)
	assert.Contains(t, buf.String(), "failed")
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		want    Level
		wantErr bool
	}{
		{in: "debug", want: LevelDebug},
		{in: "INFO", want: LevelInfo},
		{in: " warn ", want: LevelWarn},
		{in: "error", want: LevelError},
		{in: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()

			got, err := ParseLevel(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWithTrace(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := MustNew(WithJSONHandler(), WithOutput(&buf)).Logger()

	assert.Same(t, base, WithTrace(context.Background(), base))

	traceID, err := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	require.NoError(t, err)
	spanID, err := trace.SpanIDFromHex("00f067aa0ba902b7")
	require.NoError(t, err)
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID: traceID,
		SpanID:  spanID,
	}))

	WithTrace(ctx, base).Info("dispatched")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", entry[FieldTraceID])
	assert.Equal(t, "00f067aa0ba902b7", entry[FieldSpanID])
}
