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
	"strings"
)

// Wildcard token spellings.
const (
	SingleWildcard         = "*"
	DoubleWildcard         = "**"
	CapturedSingleWildcard = "(*)"
	CapturedDoubleWildcard = "(**)"
	OptionalMarker         = "?"
	namedCaptureSigil      = "$"
)

// TokenKind classifies a pattern token.
type TokenKind uint8

const (
	// TokenLiteral matches its value verbatim.
	TokenLiteral TokenKind = iota
	// TokenWildcard is an uncaptured single-segment wildcard, either a bare
	// "*" or a literal with embedded stars.
	TokenWildcard
	// TokenDoubleWildcard is an uncaptured "**".
	TokenDoubleWildcard
	// TokenCapture is "(*)".
	TokenCapture
	// TokenDoubleCapture is "(**)".
	TokenDoubleCapture
)

// String returns a short name for the kind.
func (k TokenKind) String() string {
	switch k {
	case TokenLiteral:
		return "literal"
	case TokenWildcard:
		return "wildcard"
	case TokenDoubleWildcard:
		return "double-wildcard"
	case TokenCapture:
		return "capture"
	case TokenDoubleCapture:
		return "double-capture"
	default:
		return "unknown"
	}
}

// Token is one '/'-separated element of a pattern.
type Token struct {
	// Value is the normalized token text with the optional marker removed.
	// Named captures are normalized to "(*)" or "(**)".
	Value    string
	Kind     TokenKind
	Optional bool
	// Name is the bound parameter name of a "$name" token.
	Name string
}

// IsCapture reports whether the token binds a value.
func (t Token) IsCapture() bool {
	return t.Kind == TokenCapture || t.Kind == TokenDoubleCapture
}

// IsStatic reports whether the token is a plain literal.
func (t Token) IsStatic() bool {
	return t.Kind == TokenLiteral
}

// String renders the token as it would appear in a pattern.
func (t Token) String() string {
	if t.Optional {
		return t.Value + OptionalMarker
	}

	return t.Value
}

// Tokenize splits a pattern into tokens.
//
// The pattern must begin with '/'. A single trailing '/' is ignored, and the
// root pattern "/" yields zero tokens. Empty interior segments are rejected.
func Tokenize(pattern string) ([]Token, error) {
	raw := strings.TrimSpace(pattern)
	if raw == "" {
		return nil, invalid(pattern, "pattern is empty")
	}
	if raw[0] != '/' {
		return nil, invalid(pattern, "pattern must start with '/'")
	}

	body := strings.TrimSuffix(raw[1:], "/")
	if body == "" {
		return nil, nil
	}

	tokens := make([]Token, 0, strings.Count(body, "/")+1)
	for part := range strings.SplitSeq(body, "/") {
		tok, err := parseToken(pattern, part)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, tok)
	}

	return tokens, nil
}

func parseToken(pattern, part string) (Token, error) {
	if part == "" {
		return Token{}, invalid(pattern, "empty path segment")
	}

	var tok Token
	if strings.HasSuffix(part, OptionalMarker) {
		tok.Optional = true
		part = strings.TrimSuffix(part, OptionalMarker)
		if part == "" {
			return Token{}, invalid(pattern, "optional marker without a token")
		}
	}

	switch {
	case strings.HasPrefix(part, namedCaptureSigil):
		name := part[len(namedCaptureSigil):]
		tok.Kind = TokenCapture
		tok.Value = CapturedSingleWildcard
		if trimmed, ok := strings.CutSuffix(name, DoubleWildcard); ok {
			name = trimmed
			tok.Kind = TokenDoubleCapture
			tok.Value = CapturedDoubleWildcard
		}
		if !validName(name) {
			return Token{}, invalid(pattern, "invalid capture name %q", name)
		}
		tok.Name = name

	case part == CapturedSingleWildcard:
		tok.Kind = TokenCapture
		tok.Value = part

	case part == CapturedDoubleWildcard:
		tok.Kind = TokenDoubleCapture
		tok.Value = part

	case part == DoubleWildcard:
		tok.Kind = TokenDoubleWildcard
		tok.Value = part

	case strings.Contains(part, SingleWildcard):
		if strings.ContainsAny(part, "()") {
			return Token{}, invalid(pattern, "unparseable wildcard syntax in %q", part)
		}
		if strings.Contains(part, DoubleWildcard) {
			return Token{}, invalid(pattern, "double wildcard must be a whole segment in %q", part)
		}
		tok.Kind = TokenWildcard
		tok.Value = part

	default:
		tok.Kind = TokenLiteral
		tok.Value = part
	}

	return tok, nil
}

func validName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}

	return true
}
