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

import (
	"maps"
	"reflect"
)

// Match is the result of resolving a path or status code against a table.
//
// Runtime targets are resolved from Params each time a name is read, so
// changes to Params made after matching are visible to the accessors.
type Match struct {
	rule *Rule

	// Params holds literal rule parameters overlaid with captured values.
	Params       map[string]any
	ParseRequest bool
}

// Rule returns the rule that produced the match.
func (m *Match) Rule() *Rule { return m.rule }

// ControllerName returns the resolved controller name.
func (m *Match) ControllerName() string { return m.rule.controller.Resolve(m.Params) }

// ActionName returns the resolved action name.
func (m *Match) ActionName() string { return m.rule.action.Resolve(m.Params) }

// ViewName returns the resolved view name.
func (m *Match) ViewName() string { return m.rule.view.Resolve(m.Params) }

// URI returns the forward URI of the rule.
func (m *Match) URI() string { return m.rule.uri }

// Status returns the status code of a status match, or 0.
func (m *Match) Status() int { return m.rule.status }

// Param returns a parameter value.
func (m *Match) Param(name string) (any, bool) {
	v, ok := m.Params[name]

	return v, ok
}

// Equal reports whether m and o come from the same rule with equal parameters.
func (m *Match) Equal(o *Match) bool {
	if m == nil || o == nil {
		return m == o
	}

	return m.rule == o.rule && m.ParseRequest == o.ParseRequest && reflect.DeepEqual(m.Params, o.Params)
}

func (m *Match) clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Params = maps.Clone(m.Params)

	return &c
}

func cloneMatches(ms []*Match) []*Match {
	if ms == nil {
		return nil
	}
	out := make([]*Match, len(ms))
	for i, m := range ms {
		out[i] = m.clone()
	}

	return out
}
