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
	"slices"
	"strings"
)

// Parameter names with a fixed meaning during URL building.
const (
	ParamController  = "controller"
	ParamAction      = "action"
	ParamID          = "id"
	ParamMappingName = "mappingName"
	ParamNamespace   = "namespace"
	ParamPlugin      = "plugin"

	// DefaultAction is the action assumed for rules that name none.
	DefaultAction = "index"
)

type reverseKey struct {
	controller string
	action     string
	names      string
}

type listKey struct {
	controller string
	action     string
}

type reverseEntry struct {
	names []string
	rule  *Rule
}

// reverseIndex maps (controller, action, parameter names) to the most
// specific rule able to render a URL for them.
type reverseIndex struct {
	exact map[reverseKey]*Rule
	lists map[listKey][]reverseEntry
}

// buildReverseIndex indexes rules, which must be in precedence order. A rule
// is keyed by its mandatory capture names, then once more for every capture
// added from the first nullable one onward.
func buildReverseIndex(rules []*Rule, t *Table) *reverseIndex {
	x := &reverseIndex{
		exact: make(map[reverseKey]*Rule),
		lists: make(map[listKey][]reverseEntry),
	}

	for _, r := range rules {
		if r.pattern.HasUncapturedWildcards() {
			t.emit(DiagNotReverseIndexed, "rule has uncaptured wildcards", map[string]any{
				"rule": r.String(),
			})
			continue
		}

		lk := listKey{controller: r.controller.Name(), action: r.action.Name()}

		var names []string
		optional := -1
		for i, c := range r.captures {
			if c.nullable {
				optional = i
				break
			}
			names = append(names, c.name)
		}
		x.put(lk, names, r, t)
		if optional < 0 {
			continue
		}
		for _, c := range r.captures[optional:] {
			names = append(names, c.name)
			x.put(lk, names, r, t)
		}
	}

	return x
}

func (x *reverseIndex) put(lk listKey, names []string, r *Rule, t *Table) {
	sorted := slices.Clone(names)
	slices.Sort(sorted)
	key := reverseKey{controller: lk.controller, action: lk.action, names: strings.Join(sorted, ",")}

	if owner, taken := x.exact[key]; taken {
		if owner != r {
			t.emit(DiagReverseConflict, "reverse key owned by a rule of higher precedence", map[string]any{
				"controller": lk.controller,
				"action":     lk.action,
				"params":     key.names,
				"owner":      owner.String(),
				"rule":       r.String(),
			})
		}
		return
	}
	x.exact[key] = r
	x.lists[lk] = append(x.lists[lk], reverseEntry{names: sorted, rule: r})
}

// best returns the rule of lk whose names are all supplied and which uses
// the most of them; ties go to the earlier entry. require lists names the
// entry must contain.
func (x *reverseIndex) best(lk listKey, supplied map[string]struct{}, require ...string) *Rule {
	var found *reverseEntry
	for i := range x.lists[lk] {
		e := &x.lists[lk][i]
		if !containsAll(e.names, require) || !subset(e.names, supplied) {
			continue
		}
		if found == nil || len(e.names) > len(found.names) {
			found = e
		}
	}
	if found == nil {
		return nil
	}

	return found.rule
}

// lookup finds the rule for building a URL to controller/action from the
// supplied parameter names, widening the search step by step.
func (x *reverseIndex) lookup(controller, action string, names []string) *Rule {
	supplied := make(map[string]struct{}, len(names)+2)
	for _, n := range names {
		supplied[n] = struct{}{}
	}

	sorted := slices.Clone(names)
	slices.Sort(sorted)
	if r := x.exact[reverseKey{controller: controller, action: action, names: strings.Join(sorted, ",")}]; r != nil {
		return r
	}
	if r := x.best(listKey{controller, action}, supplied); r != nil {
		return r
	}

	// A rule for the controller alone serves the action when it captures
	// the action name or when the default action is requested.
	if action != "" {
		withAction := with(supplied, ParamAction)
		for _, e := range x.lists[listKey{controller: controller}] {
			if !subset(e.names, withAction) {
				continue
			}
			name, isParam := e.rule.action.Param()
			if (isParam && slices.Contains(e.names, name)) || (e.rule.action.IsZero() && action == DefaultAction) {
				return e.rule
			}
		}
	}

	if action != "" {
		if r := x.best(listKey{controller: controller}, with(supplied, ParamAction), ParamAction); r != nil {
			return r
		}
	}
	if controller != "" {
		if r := x.best(listKey{action: action}, with(supplied, ParamController), ParamController); r != nil {
			return r
		}
	}
	if r := x.best(listKey{}, with(supplied, ParamController, ParamAction), ParamController, ParamAction); r != nil {
		return r
	}
	if action == "" {
		if r := x.exact[reverseKey{controller: controller}]; r != nil {
			return r
		}
	}

	return nil
}

func with(set map[string]struct{}, names ...string) map[string]struct{} {
	out := make(map[string]struct{}, len(set)+len(names))
	for k := range set {
		out[k] = struct{}{}
	}
	for _, n := range names {
		out[n] = struct{}{}
	}

	return out
}

func subset(names []string, set map[string]struct{}) bool {
	for _, n := range names {
		if _, ok := set[n]; !ok {
			return false
		}
	}

	return true
}

func containsAll(names, required []string) bool {
	for _, n := range required {
		if !slices.Contains(names, n) {
			return false
		}
	}

	return true
}
