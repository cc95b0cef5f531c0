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

package definition

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/config/codec"
)

const booksYAML = `
mapping:
  cache:
    url: 0
  exclude:
    - /static/**
rules:
  - name: bookShow
    pattern: /books/$id
    method: GET
    controller: book
    action: show
    constraints:
      id:
        kind: int
  - pattern: /sections/(*)/(*)?
    captures: [section, page]
    controller: "${section}"
    action: page
    params:
      layout: wide
  - pattern: /$controller/$action?/$id?
  - status: 404
    view: notFound
  - status: 500
    error: path_error
    controller: errors
    action: missingFile
  - status: 500
    controller: errors
    action: serverError
`

type quotaError struct{}

func (quotaError) Error() string { return "quota exceeded" }

func TestParseYAML(t *testing.T) {
	t.Parallel()

	def, err := Parse(context.Background(), []byte(booksYAML), codec.TypeYAML)
	require.NoError(t, err)

	assert.Equal(t, 0, def.Settings.Cache.URL)
	assert.Equal(t, mapping.DefaultForwardCacheCapacity, def.Settings.Cache.Forward)
	assert.Equal(t, []string{"/static/**"}, def.Settings.Exclude)
	assert.True(t, def.Settings.DefaultURL)
	require.Len(t, def.Rules, 6)

	show := def.Rules[0]
	assert.Equal(t, "bookShow", show.Name)
	assert.Equal(t, "GET", show.Method)
	assert.Equal(t, mapping.Literal("book"), show.Controller)
	require.Contains(t, show.Constraints, "id")

	section := def.Rules[1]
	assert.Equal(t, mapping.FromParam("section"), section.Controller)
	assert.Equal(t, []mapping.Capture{{Name: "section"}, {Name: "page"}}, section.Captures)
	assert.Equal(t, map[string]any{"layout": "wide"}, section.Params)

	assert.Equal(t, reflect.TypeFor[*fs.PathError](), def.Rules[4].ErrorType)
}

func TestDefinitionTable(t *testing.T) {
	t.Parallel()

	def, err := Parse(context.Background(), []byte(booksYAML), codec.TypeYAML)
	require.NoError(t, err)

	table, err := def.Table()
	require.NoError(t, err)
	t.Cleanup(table.Close)

	m := table.MatchMethod("/books/7", http.MethodGet)
	require.NotNil(t, m)
	assert.Equal(t, "book", m.ControllerName())
	assert.Equal(t, int64(7), m.Params["id"])

	m = table.Match("/sections/news")
	require.NotNil(t, m)
	assert.Equal(t, "news", m.ControllerName())
	assert.Equal(t, "page", m.ActionName())
	assert.Equal(t, "wide", m.Params["layout"])

	m = table.Match("/author/list")
	require.NotNil(t, m)
	assert.Equal(t, "author", m.ControllerName())
	assert.Equal(t, "list", m.ActionName())

	assert.Nil(t, table.Match("/static/app.js"))

	notFound := table.MatchStatusCode(http.StatusNotFound)
	require.NotNil(t, notFound)
	assert.Equal(t, "notFound", notFound.ViewName())

	missing := table.MatchStatusCodeError(http.StatusInternalServerError, &fs.PathError{Op: "open", Path: "x", Err: fs.ErrNotExist})
	require.NotNil(t, missing)
	assert.Equal(t, "missingFile", missing.ActionName())

	u, err := table.BuildURL("book", "show", map[string]any{"id": 7}, "")
	require.NoError(t, err)
	assert.Equal(t, "/books/7", u)
}

func TestParseTOML(t *testing.T) {
	t.Parallel()

	doc := `
[mapping]
default_url = false

[[rules]]
pattern = "/books/(*)"
captures = ["id"]
controller = "book"
action = "show"

[rules.constraints.id]
kind = "int"

[[rules]]
status = 404
uri = "/errors/404"
`
	def, err := Parse(context.Background(), []byte(doc), codec.TypeTOML)
	require.NoError(t, err)

	assert.False(t, def.Settings.DefaultURL)
	require.Len(t, def.Rules, 2)
	assert.Equal(t, "/books/(*)", def.Rules[0].Pattern)
	assert.Equal(t, []mapping.Capture{{Name: "id"}}, def.Rules[0].Captures)
	assert.Contains(t, def.Rules[0].Constraints, "id")
	assert.Equal(t, 404, def.Rules[1].Status)
	assert.Equal(t, "/errors/404", def.Rules[1].URI)
}

func TestParseJSON(t *testing.T) {
	t.Parallel()

	doc := `{"rules":[{"pattern":"/health","view":"health"},{"status":503,"error":"timeout","view":"busy"}]}`
	def, err := Parse(context.Background(), []byte(doc), codec.TypeJSON)
	require.NoError(t, err)

	require.Len(t, def.Rules, 2)
	assert.Equal(t, mapping.Literal("health"), def.Rules[0].View)
	assert.Equal(t, 503, def.Rules[1].Status)
	assert.Equal(t, reflect.TypeFor[interface{ Timeout() bool }](), def.Rules[1].ErrorType)
}

func TestParseRejects(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		doc    string
		target error
	}{
		{name: "unknown rule key", doc: `{"rules":[{"patern":"/a","view":"a"}]}`},
		{name: "pattern and status", doc: `{"rules":[{"pattern":"/a","status":404,"view":"a"}]}`},
		{name: "relative pattern", doc: `{"rules":[{"pattern":"a","view":"a"}]}`},
		{name: "negative cache", doc: `{"mapping":{"cache":{"url":-1}}}`},
		{name: "unknown constraint kind", doc: `{"rules":[{"pattern":"/a/(*)","captures":["x"],"view":"a","constraints":{"x":{"kind":"color"}}}]}`},
		{
			name:   "unknown error type",
			doc:    `{"rules":[{"status":500,"error":"quota","view":"e"}]}`,
			target: ErrUnknownErrorType,
		},
		{
			name:   "bad regex",
			doc:    `{"rules":[{"pattern":"/a/(*)","captures":["x"],"view":"a","constraints":{"x":{"kind":"regex","pattern":"("}}}]}`,
			target: ErrInvalidDefinition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			def, err := Parse(context.Background(), []byte(tt.doc), codec.TypeJSON)
			require.Error(t, err)
			assert.Nil(t, def)
			if tt.target != nil {
				require.ErrorIs(t, err, tt.target)
			}
		})
	}
}

func TestWithErrorType(t *testing.T) {
	t.Parallel()

	doc := `{"rules":[{"status":429,"error":"quota","view":"slowDown"}]}`
	def, err := Parse(context.Background(), []byte(doc), codec.TypeJSON,
		WithErrorType("quota", reflect.TypeFor[quotaError]()))
	require.NoError(t, err)

	table, err := def.Table(mapping.WithoutCaches())
	require.NoError(t, err)

	m := table.MatchStatusCodeError(http.StatusTooManyRequests, errors.Join(errors.New("request"), quotaError{}))
	require.NotNil(t, m)
	assert.Equal(t, "slowDown", m.ViewName())
}

func TestLoadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte(booksYAML), 0o600))

	def, err := LoadFile(context.Background(), path)
	require.NoError(t, err)
	assert.Len(t, def.Rules, 6)

	_, err = LoadFile(context.Background(), filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = LoadFile(context.Background(), "mapping.xml")
	require.Error(t, err)
}

//nolint:paralleltest // uses t.Setenv
func TestWithEnv(t *testing.T) {
	t.Setenv("DEFTEST_MAPPING__CACHE__FORWARD", "12")
	t.Setenv("DEFTEST_MAPPING__DEFAULT_URL", "false")

	def, err := Parse(context.Background(), []byte(booksYAML), codec.TypeYAML, WithEnv("DEFTEST_"))
	require.NoError(t, err)

	assert.Equal(t, 12, def.Settings.Cache.Forward)
	assert.Equal(t, 0, def.Settings.Cache.URL)
	assert.False(t, def.Settings.DefaultURL)
	assert.Equal(t, []string{"/static/**"}, def.Settings.Exclude)
}

func TestTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want mapping.Target
	}{
		{in: "", want: mapping.Target{}},
		{in: "book", want: mapping.Literal("book")},
		{in: "${action}", want: mapping.FromParam("action")},
		{in: " ${action} ", want: mapping.FromParam("action")},
		{in: "${}", want: mapping.Literal("${}")},
		{in: "${open", want: mapping.Literal("${open")},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, target(tt.in))
		})
	}
}

func TestSchemaIsACopy(t *testing.T) {
	t.Parallel()

	s := Schema()
	require.NotEmpty(t, s)
	s[0] = 'x'
	assert.Equal(t, byte('{'), Schema()[0])
}
