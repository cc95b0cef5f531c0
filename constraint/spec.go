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

package constraint

import (
	"errors"
	"fmt"
)

// ErrUnknownKind is returned for a constraint kind name that does not exist.
var ErrUnknownKind = errors.New("unknown constraint kind")

// Spec is the declarative form of a validator, as written in rule files.
type Spec struct {
	Kind     string   `mapstructure:"kind" yaml:"kind" toml:"kind" json:"kind"`
	Pattern  string   `mapstructure:"pattern" yaml:"pattern" toml:"pattern" json:"pattern"`
	Enum     []string `mapstructure:"enum" yaml:"enum" toml:"enum" json:"enum"`
	Tag      string   `mapstructure:"tag" yaml:"tag" toml:"tag" json:"tag"`
	Nullable bool     `mapstructure:"nullable" yaml:"nullable" toml:"nullable" json:"nullable"`
}

// Build turns s into a validator. A spec may combine a kind with a tag, in
// which case both must accept the value.
func (s Spec) Build() (Validator, error) {
	kind, ok := ParseKind(s.Kind)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, s.Kind)
	}

	var base *Typed
	switch kind {
	case KindRegex:
		re, err := Regex(s.Pattern)
		if err != nil {
			return nil, fmt.Errorf("constraint pattern %q: %w", s.Pattern, err)
		}
		base = re
	case KindEnum:
		if len(s.Enum) == 0 {
			return nil, errors.New("enum constraint needs at least one value")
		}
		base = Enum(s.Enum...)
	case KindNone:
	default:
		base = typed(kind)
	}

	var v Validator
	switch {
	case base != nil && s.Tag != "":
		v = All(base, NewTag(s.Tag))
	case base != nil:
		v = base
	case s.Tag != "":
		v = NewTag(s.Tag)
	default:
		v = Any()
	}

	if s.Nullable && !v.Nullable() {
		v = Optional(v)
	}

	return v, nil
}

type all []Validator

// All chains validators. Each receives the raw value; the first validator's
// conversion is kept. The chain is nullable when any member is.
func All(vs ...Validator) Validator {
	return all(vs)
}

func (a all) Validate(raw string) (any, bool) {
	var out any = raw
	for i, v := range a {
		converted, ok := v.Validate(raw)
		if !ok {
			return nil, false
		}
		if i == 0 {
			out = converted
		}
	}

	return out, true
}

func (a all) Nullable() bool {
	for _, v := range a {
		if v.Nullable() {
			return true
		}
	}

	return false
}

func (a all) AppliedConstraints() int {
	n := 0
	for _, v := range a {
		n += Count(v)
	}

	return n
}
