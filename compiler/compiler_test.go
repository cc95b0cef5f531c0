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

package compiler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestTokenize tests splitting patterns into classified tokens.
func TestTokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		want    []Token
	}{
		{
			name:    "root",
			pattern: "/",
			want:    nil,
		},
		{
			name:    "literal with trailing slash",
			pattern: "/books/",
			want:    []Token{{Value: "books", Kind: TokenLiteral}},
		},
		{
			name:    "captures and optional",
			pattern: "/(*)/(*)?/(*)?",
			want: []Token{
				{Value: "(*)", Kind: TokenCapture},
				{Value: "(*)", Kind: TokenCapture, Optional: true},
				{Value: "(*)", Kind: TokenCapture, Optional: true},
			},
		},
		{
			name:    "double capture",
			pattern: "/files/(**)",
			want: []Token{
				{Value: "files", Kind: TokenLiteral},
				{Value: "(**)", Kind: TokenDoubleCapture},
			},
		},
		{
			name:    "named sugar",
			pattern: "/$controller/$path**?",
			want: []Token{
				{Value: "(*)", Kind: TokenCapture, Name: "controller"},
				{Value: "(**)", Kind: TokenDoubleCapture, Optional: true, Name: "path"},
			},
		},
		{
			name:    "uncaptured wildcards",
			pattern: "/static/*/**",
			want: []Token{
				{Value: "static", Kind: TokenLiteral},
				{Value: "*", Kind: TokenWildcard},
				{Value: "**", Kind: TokenDoubleWildcard},
			},
		},
		{
			name:    "embedded star",
			pattern: "/img/thumb-*.png",
			want: []Token{
				{Value: "img", Kind: TokenLiteral},
				{Value: "thumb-*.png", Kind: TokenWildcard},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Tokenize(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

// TestTokenizeRejects tests that malformed patterns fail with InvalidPatternError.
func TestTokenizeRejects(t *testing.T) {
	t.Parallel()

	patterns := []string{
		"",
		"   ",
		"books",
		"/books//(*)",
		"/books/?",
		"/books/(*",
		"/books/x(*)y",
		"/books/a**b",
		"/$",
		"/$1abc",
		"/$na-me",
	}

	for _, pattern := range patterns {
		t.Run(pattern, func(t *testing.T) {
			t.Parallel()

			_, err := Compile(pattern)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidPattern)

			var perr *InvalidPatternError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, pattern, perr.Pattern)
		})
	}
}

// TestCompileVariants tests fallback variant generation and regex shape.
func TestCompileVariants(t *testing.T) {
	t.Parallel()

	p := MustCompile("/(*)/(*)?/(*)?")

	variants := p.Variants()
	require.Len(t, variants, 3)
	assert.Len(t, variants[0], 3)
	assert.Len(t, variants[1], 2)
	assert.Len(t, variants[2], 1)

	assert.Equal(t, []string{
		`^/([^/]+)/([^/]+)/([^/]+)/?$`,
		`^/([^/]+)/([^/]+)/?$`,
		`^/([^/]+)/?$`,
	}, p.Expressions())

	captures := p.Captures()
	require.Len(t, captures, 3)
	assert.False(t, captures[0].Nullable)
	assert.True(t, captures[1].Nullable)
	assert.True(t, captures[2].Nullable)
}

// TestCompileEscapesLiterals tests that regex metacharacters in literals are escaped.
func TestCompileEscapesLiterals(t *testing.T) {
	t.Parallel()

	p := MustCompile("/v1.0/a+b/(*)")

	_, ok := p.Match("/v1.0/a+b/x")
	assert.True(t, ok)

	_, ok = p.Match("/v1x0/a+b/x")
	assert.False(t, ok, "dot must not act as a regex wildcard")

	_, ok = p.Match("/v1.0/aab/x")
	assert.False(t, ok, "plus must not act as a quantifier")
}

// TestPatternMatch tests structural matching and capture extraction.
func TestPatternMatch(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		pattern string
		path    string
		want    []string
		wantOK  bool
	}{
		{name: "root matches empty", pattern: "/", path: "", want: []string{}, wantOK: true},
		{name: "root matches slash", pattern: "/", path: "/", want: []string{}, wantOK: true},
		{name: "root rejects deeper", pattern: "/", path: "/a", wantOK: false},
		{name: "trailing slash tolerated", pattern: "/books", path: "/books/", want: []string{}, wantOK: true},
		{name: "single capture", pattern: "/books/(*)", path: "/books/42", want: []string{"42"}, wantOK: true},
		{name: "single capture stops at slash", pattern: "/books/(*)", path: "/books/42/x", wantOK: false},
		{name: "single capture needs a value", pattern: "/books/(*)", path: "/books/", wantOK: false},
		{name: "double capture spans", pattern: "/files/(**)", path: "/files/a/b/c.txt", want: []string{"a/b/c.txt"}, wantOK: true},
		{name: "double capture drops trailing slash", pattern: "/files/(**)", path: "/files/a/b/", want: []string{"a/b"}, wantOK: true},
		{name: "optional fallback", pattern: "/(*)/(*)?", path: "/book", want: []string{"book"}, wantOK: true},
		{name: "full variant first", pattern: "/(*)/(*)?", path: "/book/list", want: []string{"book", "list"}, wantOK: true},
		{name: "query stripped", pattern: "/books/(*)", path: "/books/7?sort=asc", want: []string{"7"}, wantOK: true},
		{name: "fragment stripped", pattern: "/books/(*)", path: "/books/7#top", want: []string{"7"}, wantOK: true},
		{name: "bare star", pattern: "/static/*", path: "/static/app.js", want: []string{}, wantOK: true},
		{name: "embedded star", pattern: "/img/thumb-*.png", path: "/img/thumb-42.png", want: []string{}, wantOK: true},
		{name: "embedded star literal part", pattern: "/img/thumb-*.png", path: "/img/thumb-42.gif", wantOK: false},
		{name: "uncaptured double", pattern: "/assets/**", path: "/assets/css/site.css", want: []string{}, wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := MustCompile(tt.pattern)
			got, ok := p.Match(tt.path)
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

// TestSubmatchesOrder tests that every matching variant is yielded, longest first.
func TestSubmatchesOrder(t *testing.T) {
	t.Parallel()

	p := MustCompile("/(*)/(*)?")

	var got [][]string
	for values := range p.Submatches("/book") {
		got = append(got, values)
	}
	assert.Equal(t, [][]string{{"book"}}, got)

	got = nil
	for values := range p.Submatches("/book/list") {
		got = append(got, values)
	}
	assert.Equal(t, [][]string{{"book", "list"}}, got)
}

// TestPatternCounts tests the counters used for precedence decisions.
func TestPatternCounts(t *testing.T) {
	t.Parallel()

	p := MustCompile("/api/(*)/files/(**)/*")
	assert.Equal(t, 5, p.TokenCount())
	assert.Equal(t, 2, p.StaticCount())
	assert.Equal(t, 2, p.SingleWildcardCount())
	assert.Equal(t, 1, p.DoubleWildcardCount())
	assert.True(t, p.HasUncapturedWildcards())
	assert.False(t, p.IsStatic())

	first, ok := p.FirstLiteral()
	assert.True(t, ok)
	assert.Equal(t, "api", first)
}

// TestStaticPath tests normalization of static patterns and request paths.
func TestStaticPath(t *testing.T) {
	t.Parallel()

	assert.True(t, MustCompile("/").IsStatic())
	assert.Equal(t, "/", MustCompile("/").StaticPath())
	assert.Equal(t, "/a/b", MustCompile("/a/b/").StaticPath())
	assert.False(t, MustCompile("/a/b?").IsStatic())

	assert.Equal(t, "/", NormalizePath(""))
	assert.Equal(t, "/", NormalizePath("/"))
	assert.Equal(t, "/a/b", NormalizePath("/a/b/"))
	assert.Equal(t, "a", FirstSegment("/a/b"))
	assert.Equal(t, "", FirstSegment("/"))
}

// TestNullability tests that captures past the shortest variant are nullable.
func TestNullability(t *testing.T) {
	t.Parallel()

	p := MustCompile("/(*)?/edit/(*)")
	captures := p.Captures()
	require.Len(t, captures, 2)
	assert.True(t, captures[0].Nullable)
	assert.True(t, captures[1].Nullable, "beyond the shortest variant")

	p = MustCompile("/files/(**)")
	assert.True(t, p.Captures()[0].Nullable)
	assert.Equal(t, CaptureDouble, p.Captures()[0].Kind)
}

// TestBloomFilter tests that added members always test positive.
func TestBloomFilter(t *testing.T) {
	t.Parallel()

	bf := NewBloomFilter(1024, 3)
	members := []string{"/", "/books", "/books/list", "/about"}
	for _, m := range members {
		bf.Add(m)
	}
	for _, m := range members {
		assert.True(t, bf.Test(m), m)
	}

	misses := 0
	for _, s := range []string{"/x", "/y", "/z", "/books/x", "/nope"} {
		if !bf.Test(s) {
			misses++
		}
	}
	assert.Positive(t, misses, "a sparse filter rejects most non-members")
}
