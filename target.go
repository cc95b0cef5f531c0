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

package mapping

import "github.com/spf13/cast"

type targetKind uint8

const (
	targetNone targetKind = iota
	targetLiteral
	targetParam
)

// Target names a controller, action or view. It is either a literal name or
// a reference to a match parameter resolved when the name is read.
type Target struct {
	kind  targetKind
	value string
}

// Literal returns a target with a fixed name.
func Literal(name string) Target {
	if name == "" {
		return Target{}
	}

	return Target{kind: targetLiteral, value: name}
}

// FromParam returns a target read from the named match parameter.
func FromParam(param string) Target {
	return Target{kind: targetParam, value: param}
}

// IsZero reports whether the target is unset.
func (t Target) IsZero() bool { return t.kind == targetNone }

// IsLiteral reports whether the target has a fixed name.
func (t Target) IsLiteral() bool { return t.kind == targetLiteral }

// Param returns the referenced parameter name for a runtime target.
func (t Target) Param() (string, bool) {
	return t.value, t.kind == targetParam
}

// Name returns the literal name, or "" for other targets.
func (t Target) Name() string {
	if t.kind == targetLiteral {
		return t.value
	}

	return ""
}

// Resolve returns the target name for params.
func (t Target) Resolve(params map[string]any) string {
	switch t.kind {
	case targetLiteral:
		return t.value
	case targetParam:
		v, ok := params[t.value]
		if !ok || v == nil {
			return ""
		}
		s, err := cast.ToStringE(v)
		if err != nil {
			return ""
		}

		return s
	default:
		return ""
	}
}

// String renders the target as it appears in rule listings.
func (t Target) String() string {
	switch t.kind {
	case targetLiteral:
		return t.value
	case targetParam:
		return "${" + t.value + "}"
	default:
		return ""
	}
}
