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

// Package constraint provides validators for values captured from URL paths.
//
// A [Validator] checks one raw captured string and may convert it to a typed
// value. Rejection is not an error: the caller treats it as a non-match and
// moves on to the next candidate rule.
package constraint

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// Validator validates and converts a captured value.
type Validator interface {
	// Validate returns the converted value and true, or false to reject.
	Validate(raw string) (any, bool)
	// Nullable reports whether the parameter may be absent.
	Nullable() bool
}

// Counter is implemented by validators that apply more than one rule.
// Rules with more applied constraints win precedence ties.
type Counter interface {
	AppliedConstraints() int
}

// Count returns the number of constraints v applies.
func Count(v Validator) int {
	if v == nil {
		return 0
	}
	if c, ok := v.(Counter); ok {
		return c.AppliedConstraints()
	}

	return 1
}

// Kind is the type of a built-in constraint.
type Kind uint8

const (
	KindNone Kind = iota
	KindInt
	KindFloat
	KindUUID
	KindRegex
	KindEnum
	KindDate     // RFC3339 full-date
	KindDateTime // RFC3339 date-time
)

var kindNames = map[Kind]string{
	KindNone:     "any",
	KindInt:      "int",
	KindFloat:    "float",
	KindUUID:     "uuid",
	KindRegex:    "regex",
	KindEnum:     "enum",
	KindDate:     "date",
	KindDateTime: "datetime",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// ParseKind maps a kind name as written in rule files back to a Kind.
func ParseKind(name string) (Kind, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return KindNone, true
	}
	for k, n := range kindNames {
		if n == name {
			return k, true
		}
	}

	return KindNone, false
}

var kindExprs = map[Kind]string{
	KindInt:      `\d+`,
	KindFloat:    `-?(?:\d+\.?\d*|\.\d+)(?:[eE][+-]?\d+)?`,
	KindUUID:     `[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[1-5][0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}`,
	KindDate:     `\d{4}-\d{2}-\d{2}`,
	KindDateTime: `\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})`,
}

// Typed is a built-in validator for one [Kind].
type Typed struct {
	kind     Kind
	expr     string
	re       *regexp.Regexp
	enum     []string
	nullable bool
}

func typed(kind Kind) *Typed {
	expr := kindExprs[kind]

	return &Typed{kind: kind, expr: expr, re: regexp.MustCompile("^" + expr + "$")}
}

// Int accepts decimal digits and converts to int64.
func Int() *Typed { return typed(KindInt) }

// Float accepts decimal or exponent notation and converts to float64.
func Float() *Typed { return typed(KindFloat) }

// UUID accepts RFC 4122 UUIDs and converts to [uuid.UUID].
func UUID() *Typed { return typed(KindUUID) }

// Date accepts an RFC 3339 full-date.
func Date() *Typed { return typed(KindDate) }

// DateTime accepts an RFC 3339 date-time.
func DateTime() *Typed { return typed(KindDateTime) }

// Any accepts every value unchanged.
func Any() *Typed { return &Typed{kind: KindNone} }

// Regex accepts values fully matching expr.
func Regex(expr string) (*Typed, error) {
	re, err := regexp.Compile("^(?:" + expr + ")$")
	if err != nil {
		return nil, err
	}

	return &Typed{kind: KindRegex, expr: expr, re: re}, nil
}

// MustRegex is like [Regex] but panics on a bad expression.
func MustRegex(expr string) *Typed {
	t, err := Regex(expr)
	if err != nil {
		panic(err)
	}

	return t
}

// Enum accepts exactly one of values.
func Enum(values ...string) *Typed {
	escaped := make([]string, 0, len(values))
	for _, v := range values {
		escaped = append(escaped, regexp.QuoteMeta(v))
	}
	expr := "(?:" + strings.Join(escaped, "|") + ")"

	return &Typed{
		kind: KindEnum,
		expr: expr,
		re:   regexp.MustCompile("^" + expr + "$"),
		enum: append([]string(nil), values...),
	}
}

// Optional returns a copy of t that accepts an absent value.
func (t *Typed) Optional() *Typed {
	c := *t
	c.nullable = true

	return &c
}

// Kind returns the constraint kind.
func (t *Typed) Kind() Kind { return t.kind }

// Expr returns the regular expression the validator enforces.
func (t *Typed) Expr() string { return t.expr }

// Nullable implements [Validator].
func (t *Typed) Nullable() bool { return t.nullable }

// AppliedConstraints implements [Counter].
func (t *Typed) AppliedConstraints() int {
	n := 0
	if t.kind != KindNone {
		n++
	}
	if t.nullable {
		n++
	}

	return n
}

// Validate implements [Validator].
func (t *Typed) Validate(raw string) (any, bool) {
	if t.re != nil && !t.re.MatchString(raw) {
		return nil, false
	}

	switch t.kind {
	case KindInt:
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, false
		}

		return n, true
	case KindFloat:
		f, err := cast.ToFloat64E(raw)
		if err != nil {
			return nil, false
		}

		return f, true
	case KindUUID:
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, false
		}

		return id, true
	case KindDate:
		if _, err := time.Parse(time.DateOnly, raw); err != nil {
			return nil, false
		}
	case KindDateTime:
		if _, err := time.Parse(time.RFC3339Nano, raw); err != nil {
			return nil, false
		}
	}

	return raw, true
}

// Func adapts a function to [Validator].
type Func func(raw string) (any, bool)

// Validate implements [Validator].
func (f Func) Validate(raw string) (any, bool) { return f(raw) }

// Nullable implements [Validator].
func (Func) Nullable() bool { return false }

type optional struct {
	Validator
}

func (optional) Nullable() bool { return true }

func (o optional) AppliedConstraints() int { return Count(o.Validator) + 1 }

// Optional wraps v so that the parameter may be absent.
func Optional(v Validator) Validator {
	if v == nil {
		return Any().Optional()
	}

	return optional{Validator: v}
}
