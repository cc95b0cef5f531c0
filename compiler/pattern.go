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
	"iter"
	"regexp"
	"slices"
	"strings"
)

// CaptureKind distinguishes single-segment from multi-segment captures.
type CaptureKind uint8

const (
	// CaptureSingle binds one path segment.
	CaptureSingle CaptureKind = iota
	// CaptureDouble binds the remainder of the path.
	CaptureDouble
)

// CapturePoint describes one capturing token of a pattern.
type CapturePoint struct {
	// Position is the index of the token within the pattern.
	Position int
	Kind     CaptureKind
	// Nullable is true when the capture may legitimately be absent: the token
	// is optional, it is a double capture, or it lies beyond the shortest
	// fallback variant.
	Nullable bool
	// Name is the "$name" binding, empty for anonymous captures.
	Name string
}

// Pattern is a compiled URL mapping pattern.
type Pattern struct {
	raw      string
	tokens   []Token
	captures []CapturePoint
	// lengths holds the token count of each fallback variant, strictly
	// decreasing, starting with the full pattern.
	lengths []int
	regexps []*regexp.Regexp

	static  int
	singles int
	doubles int
}

// Compile tokenizes and compiles pattern.
func Compile(pattern string) (*Pattern, error) {
	tokens, err := Tokenize(pattern)
	if err != nil {
		return nil, err
	}

	p := &Pattern{
		raw:     strings.TrimSpace(pattern),
		tokens:  tokens,
		lengths: variantLengths(tokens),
	}

	p.regexps = make([]*regexp.Regexp, len(p.lengths))
	for i, n := range p.lengths {
		re, err := regexp.Compile(variantExpr(tokens[:n]))
		if err != nil {
			return nil, &InvalidPatternError{Pattern: pattern, Reason: "regular expression does not compile", Err: err}
		}
		p.regexps[i] = re
	}

	shortest := p.lengths[len(p.lengths)-1]
	for i, tok := range tokens {
		switch tok.Kind {
		case TokenLiteral:
			p.static++
		case TokenWildcard:
			p.singles++
		case TokenCapture:
			p.singles++
			p.captures = append(p.captures, CapturePoint{
				Position: i,
				Kind:     CaptureSingle,
				Nullable: tok.Optional || i >= shortest,
				Name:     tok.Name,
			})
		case TokenDoubleWildcard:
			p.doubles++
		case TokenDoubleCapture:
			p.doubles++
			p.captures = append(p.captures, CapturePoint{
				Position: i,
				Kind:     CaptureDouble,
				Nullable: true,
				Name:     tok.Name,
			})
		}
	}

	return p, nil
}

// MustCompile is like [Compile] but panics on error.
func MustCompile(pattern string) *Pattern {
	p, err := Compile(pattern)
	if err != nil {
		panic(err)
	}

	return p
}

// variantLengths returns the full token count followed by the prefix length
// in front of every optional token, deepest first.
func variantLengths(tokens []Token) []int {
	lengths := []int{len(tokens)}
	for i := len(tokens) - 1; i >= 0; i-- {
		if tokens[i].Optional {
			lengths = append(lengths, i)
		}
	}

	return lengths
}

func variantExpr(tokens []Token) string {
	var b strings.Builder
	b.WriteByte('^')
	for _, tok := range tokens {
		b.WriteByte('/')
		switch tok.Kind {
		case TokenCapture:
			b.WriteString(`([^/]+)`)
		case TokenDoubleCapture:
			b.WriteString(`(.*?)`)
		case TokenDoubleWildcard:
			b.WriteString(`.*?`)
		case TokenWildcard:
			if tok.Value == SingleWildcard {
				b.WriteString(`[^/]+`)
				continue
			}
			for i, lit := range strings.Split(tok.Value, SingleWildcard) {
				if i > 0 {
					b.WriteString(`[^/]*`)
				}
				b.WriteString(regexp.QuoteMeta(lit))
			}
		default:
			b.WriteString(regexp.QuoteMeta(tok.Value))
		}
	}
	b.WriteString(`/?$`)

	return b.String()
}

// String returns the pattern text.
func (p *Pattern) String() string { return p.raw }

// Tokens returns the pattern tokens. The slice must not be modified.
func (p *Pattern) Tokens() []Token { return p.tokens }

// TokenCount returns the number of tokens; zero for the root pattern.
func (p *Pattern) TokenCount() int { return len(p.tokens) }

// Captures returns the capture points in token order.
func (p *Pattern) Captures() []CapturePoint { return p.captures }

// StaticCount returns the number of plain literal tokens.
func (p *Pattern) StaticCount() int { return p.static }

// SingleWildcardCount returns the number of single-segment wildcards,
// captured or not.
func (p *Pattern) SingleWildcardCount() int { return p.singles }

// DoubleWildcardCount returns the number of multi-segment wildcards,
// captured or not.
func (p *Pattern) DoubleWildcardCount() int { return p.doubles }

// HasUncapturedWildcards reports whether any wildcard token binds no name.
func (p *Pattern) HasUncapturedWildcards() bool {
	return slices.ContainsFunc(p.tokens, func(t Token) bool {
		return t.Kind == TokenWildcard || t.Kind == TokenDoubleWildcard
	})
}

// IsStatic reports whether the pattern consists only of mandatory literals.
func (p *Pattern) IsStatic() bool {
	return p.static == len(p.tokens) && len(p.lengths) == 1
}

// StaticPath returns the normalized path a static pattern matches.
func (p *Pattern) StaticPath() string {
	if len(p.tokens) == 0 {
		return "/"
	}

	var b strings.Builder
	for _, tok := range p.tokens {
		b.WriteByte('/')
		b.WriteString(tok.Value)
	}

	return b.String()
}

// FirstLiteral returns the first token when it is a mandatory literal.
func (p *Pattern) FirstLiteral() (string, bool) {
	if len(p.tokens) == 0 {
		return "", false
	}
	first := p.tokens[0]
	if first.Kind != TokenLiteral || first.Optional {
		return "", false
	}

	return first.Value, true
}

// Variants returns the fallback variants, most specific first.
func (p *Pattern) Variants() [][]Token {
	out := make([][]Token, len(p.lengths))
	for i, n := range p.lengths {
		out[i] = p.tokens[:n]
	}

	return out
}

// Expressions returns the compiled expression of every variant.
func (p *Pattern) Expressions() []string {
	out := make([]string, len(p.regexps))
	for i, re := range p.regexps {
		out[i] = re.String()
	}

	return out
}

// Submatches yields the captured values for every variant matching path,
// most specific first. The i-th value belongs to the i-th capture point; a
// variant yields only the values of the captures it contains.
//
// Values are cut at the first '?' or '#'.
func (p *Pattern) Submatches(path string) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		for _, re := range p.regexps {
			groups := re.FindStringSubmatch(path)
			if groups == nil {
				continue
			}
			values := groups[1:]
			for i, v := range values {
				values[i] = StripQuery(v)
			}
			if !yield(values) {
				return
			}
		}
	}
}

// Match returns the captured values of the first matching variant.
func (p *Pattern) Match(path string) ([]string, bool) {
	for values := range p.Submatches(path) {
		return values, true
	}

	return nil, false
}

// StripQuery cuts s at the first '?' or '#'.
func StripQuery(s string) string {
	if i := strings.IndexAny(s, "?#"); i >= 0 {
		return s[:i]
	}

	return s
}

// NormalizePath maps a request path onto the key space of [Pattern.StaticPath]:
// a single trailing slash is dropped and the empty path becomes "/".
func NormalizePath(path string) string {
	if len(path) > 1 {
		path = strings.TrimSuffix(path, "/")
	}
	if path == "" {
		return "/"
	}

	return path
}

// FirstSegment returns the first segment of path.
func FirstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		return path[:i]
	}

	return path
}
