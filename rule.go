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
	"fmt"
	"maps"
	"net/http"
	"reflect"
	"strings"

	"rivaas.dev/mapping/compiler"
	"rivaas.dev/mapping/constraint"
)

// Capture binds a name and an optional validator to one capturing token.
type Capture struct {
	Name      string
	Validator constraint.Validator
}

// RuleSpec describes a rule before registration.
//
// A path rule sets Pattern. A status rule sets Status and optionally
// ErrorType; it never matches paths.
type RuleSpec struct {
	// Name registers the rule for lookup by name and for reverse building via
	// the "mappingName" parameter.
	Name    string
	Pattern string
	// Method restricts the rule to one HTTP method. Empty or "*" matches any.
	Method string

	Controller Target
	Action     Target
	View       Target
	// URI forwards the request to another path instead of a controller.
	URI string

	Status    int
	ErrorType reflect.Type

	// Captures lists the capturing tokens' bindings in token order. Tokens
	// written as "$name" may be left out or given without a name.
	Captures []Capture
	// Constraints attaches validators by parameter name.
	Constraints map[string]constraint.Validator
	// Params are literal parameters added to every match.
	Params       map[string]any
	ParseRequest bool
}

type capture struct {
	point     compiler.CapturePoint
	name      string
	validator constraint.Validator
	nullable  bool
}

// Rule is an immutable, registered URL mapping rule.
type Rule struct {
	name    string
	method  string
	pattern *compiler.Pattern

	controller Target
	action     Target
	view       Target
	uri        string

	status    int
	errorType reflect.Type

	captures     []capture
	params       map[string]any
	parseRequest bool

	constraints int
	order       int
}

// NewRule validates spec and compiles its pattern.
func NewRule(spec RuleSpec) (*Rule, error) {
	r := &Rule{
		name:         spec.Name,
		method:       strings.ToUpper(strings.TrimSpace(spec.Method)),
		controller:   spec.Controller,
		action:       spec.Action,
		view:         spec.View,
		uri:          spec.URI,
		status:       spec.Status,
		errorType:    spec.ErrorType,
		params:       maps.Clone(spec.Params),
		parseRequest: spec.ParseRequest,
	}
	if r.method == "*" {
		r.method = ""
	}

	if spec.Status != 0 {
		if spec.Pattern != "" {
			return nil, fmt.Errorf("%w: rule has both a status code and a pattern", ErrInvalidRule)
		}
		if spec.Status < 100 || spec.Status > 999 {
			return nil, fmt.Errorf("%w: status code %d out of range", ErrInvalidRule, spec.Status)
		}
		if !r.hasTarget() {
			return nil, fmt.Errorf("%w: status rule %d has no controller, view or uri", ErrInvalidRule, spec.Status)
		}

		return r, nil
	}

	if spec.ErrorType != nil {
		return nil, fmt.Errorf("%w: error filter without a status code", ErrInvalidRule)
	}
	if spec.Pattern == "" {
		return nil, fmt.Errorf("%w: rule needs a pattern or a status code", ErrInvalidRule)
	}

	pattern, err := compiler.Compile(spec.Pattern)
	if err != nil {
		return nil, err
	}
	r.pattern = pattern

	if err := r.bindCaptures(spec); err != nil {
		return nil, err
	}

	if r.controller.IsZero() && r.hasCapture("controller") {
		r.controller = FromParam("controller")
	}
	if r.action.IsZero() && r.hasCapture("action") {
		r.action = FromParam("action")
	}
	if r.view.IsZero() && r.hasCapture("view") {
		r.view = FromParam("view")
	}
	if !r.hasTarget() {
		return nil, fmt.Errorf("%w: %q has no controller, view or uri", ErrInvalidRule, spec.Pattern)
	}

	return r, nil
}

func (r *Rule) bindCaptures(spec RuleSpec) error {
	points := r.pattern.Captures()
	if len(spec.Captures) > len(points) {
		return fmt.Errorf("%w: %q declares %d captures but has %d capturing tokens",
			ErrInvalidRule, spec.Pattern, len(spec.Captures), len(points))
	}

	r.captures = make([]capture, len(points))
	seen := make(map[string]struct{}, len(points))
	for i, point := range points {
		c := capture{point: point, name: point.Name}
		if i < len(spec.Captures) {
			decl := spec.Captures[i]
			if decl.Name != "" {
				if c.name != "" && c.name != decl.Name {
					return fmt.Errorf("%w: capture %d is named both %q and %q", ErrInvalidRule, i, c.name, decl.Name)
				}
				c.name = decl.Name
			}
			c.validator = decl.Validator
		}
		if c.name == "" {
			return fmt.Errorf("%w: capture %d of %q has no name", ErrInvalidRule, i, spec.Pattern)
		}
		if _, dup := seen[c.name]; dup {
			return fmt.Errorf("%w: capture name %q used twice in %q", ErrInvalidRule, c.name, spec.Pattern)
		}
		seen[c.name] = struct{}{}

		if v, ok := spec.Constraints[c.name]; ok {
			if c.validator != nil {
				c.validator = constraint.All(c.validator, v)
			} else {
				c.validator = v
			}
		}
		c.nullable = point.Nullable || (c.validator != nil && c.validator.Nullable())
		r.constraints += constraint.Count(c.validator)
		r.captures[i] = c
	}

	for name := range spec.Constraints {
		if _, ok := seen[name]; !ok {
			return fmt.Errorf("%w: constraint on unknown parameter %q in %q", ErrInvalidRule, name, spec.Pattern)
		}
	}

	return nil
}

func (r *Rule) hasTarget() bool {
	return !r.controller.IsZero() || !r.view.IsZero() || r.uri != ""
}

func (r *Rule) hasCapture(name string) bool {
	for _, c := range r.captures {
		if c.name == name {
			return true
		}
	}

	return false
}

// Name returns the registration name, if any.
func (r *Rule) Name() string { return r.name }

// Pattern returns the pattern text, or "" for a status rule.
func (r *Rule) Pattern() string {
	if r.pattern == nil {
		return ""
	}

	return r.pattern.String()
}

// Compiled returns the compiled pattern, or nil for a status rule.
func (r *Rule) Compiled() *compiler.Pattern { return r.pattern }

// Method returns the HTTP method filter; empty means any.
func (r *Rule) Method() string { return r.method }

// Controller returns the controller target.
func (r *Rule) Controller() Target { return r.controller }

// Action returns the action target.
func (r *Rule) Action() Target { return r.action }

// View returns the view target.
func (r *Rule) View() Target { return r.view }

// URI returns the forward URI.
func (r *Rule) URI() string { return r.uri }

// Status returns the status code of a status rule, or 0.
func (r *Rule) Status() int { return r.status }

// ErrorType returns the error filter of a status rule.
func (r *Rule) ErrorType() reflect.Type { return r.errorType }

// IsStatus reports whether r is a status rule.
func (r *Rule) IsStatus() bool { return r.status != 0 }

// ParseRequest reports whether matched requests should have their bodies parsed.
func (r *Rule) ParseRequest() bool { return r.parseRequest }

// Params returns a copy of the literal parameters.
func (r *Rule) Params() map[string]any { return maps.Clone(r.params) }

// CaptureNames returns the bound capture names in token order.
func (r *Rule) CaptureNames() []string {
	names := make([]string, len(r.captures))
	for i, c := range r.captures {
		names[i] = c.name
	}

	return names
}

// ConstraintCount returns the number of constraints applied to captures.
func (r *Rule) ConstraintCount() int { return r.constraints }

// AllowsMethod reports whether the rule accepts method.
func (r *Rule) AllowsMethod(method string) bool {
	return r.method == "" || method == "" || strings.EqualFold(r.method, method) ||
		(r.method == http.MethodGet && strings.EqualFold(method, http.MethodHead))
}

// String renders the rule for listings.
func (r *Rule) String() string {
	var b strings.Builder
	if r.IsStatus() {
		fmt.Fprintf(&b, "%d", r.status)
		if r.errorType != nil {
			fmt.Fprintf(&b, "(%s)", r.errorType)
		}
	} else {
		if r.method != "" {
			b.WriteString(r.method)
			b.WriteByte(' ')
		}
		b.WriteString(r.pattern.String())
	}
	b.WriteString(" -> ")
	switch {
	case r.uri != "":
		b.WriteString(r.uri)
	case !r.controller.IsZero():
		b.WriteString(r.controller.String())
		if !r.action.IsZero() {
			b.WriteByte('/')
			b.WriteString(r.action.String())
		}
	default:
		b.WriteString("view:")
		b.WriteString(r.view.String())
	}

	return b.String()
}

// match tries every fallback variant in order and returns the first one
// whose captures validate.
func (r *Rule) match(path string) *Match {
	for values := range r.pattern.Submatches(path) {
		if m := r.bind(values); m != nil {
			return m
		}
	}

	return nil
}

func (r *Rule) bind(values []string) *Match {
	params := make(map[string]any, len(r.params)+len(values))
	maps.Copy(params, r.params)

	for i, raw := range values {
		c := r.captures[i]
		if raw == "" {
			if !c.nullable {
				return nil
			}
			continue
		}
		if c.validator == nil {
			params[c.name] = raw
			continue
		}
		v, ok := c.validator.Validate(raw)
		if !ok {
			return nil
		}
		params[c.name] = v
	}

	return &Match{rule: r, Params: params, ParseRequest: r.parseRequest}
}

// statusMatch returns the match of a status rule.
func (r *Rule) statusMatch() *Match {
	return &Match{rule: r, Params: maps.Clone(r.params), ParseRequest: r.parseRequest}
}

func (r *Rule) matchesError(err error) bool {
	if r.errorType == nil || err == nil {
		return false
	}

	return errorChainHas(err, r.errorType)
}

// errorChainHas walks err's wrap tree for an error whose dynamic type is
// assignable to typ.
func errorChainHas(err error, typ reflect.Type) bool {
	if err == nil {
		return false
	}
	if reflect.TypeOf(err).AssignableTo(typ) {
		return true
	}

	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return errorChainHas(u.Unwrap(), typ)
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if errorChainHas(e, typ) {
				return true
			}
		}
	}

	return false
}
