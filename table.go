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
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel/metric"

	"rivaas.dev/mapping/compiler"
)

// Table holds the registered rules of an application.
//
// A table is built in two phases. While building, rules are added with
// [Table.Add]. [Table.Initialize] sorts them by precedence, builds the
// lookup and reverse indices and makes the table ready. A ready table is
// immutable and safe for concurrent use; lookups before Initialize find
// nothing. To reload, build a new table and swap it in.
type Table struct {
	mu      sync.Mutex
	pending []*Rule
	named   map[string]*Rule
	ready   atomic.Bool

	// Path rules in precedence order, and status rules in registration order.
	rules  []*Rule
	status []*Rule

	static   map[string][]int
	bloom    *compiler.BloomFilter
	byFirst  map[string][]int
	rest     []int
	excludes []*compiler.Pattern
	reverse  *reverseIndex

	matches *boundedCache[*Match]
	multi   *boundedCache[[]*Match]
	urls    *urlCache

	settings      Settings
	logger        *slog.Logger
	diagnostics   DiagnosticHandler
	meterProvider metric.MeterProvider
	metrics       *recorder
	bloomSize     uint64
	bloomHashes   int
}

// New creates an empty table in the building phase.
func New(opts ...Option) (*Table, error) {
	t := &Table{
		named:       make(map[string]*Rule),
		settings:    DefaultSettings(),
		bloomSize:   defaultBloomFilterSize,
		bloomHashes: defaultBloomHashFunctions,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.logger == nil {
		t.logger = noopLogger
	}

	if err := t.validate(); err != nil {
		return nil, fmt.Errorf("mapping table configuration validation failed: %w", err)
	}

	for _, p := range t.settings.Exclude {
		pattern, err := compiler.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("exclude pattern: %w", err)
		}
		t.excludes = append(t.excludes, pattern)
	}

	metrics, err := newRecorder(t.meterProvider)
	if err != nil {
		return nil, fmt.Errorf("mapping metrics: %w", err)
	}
	t.metrics = metrics

	return t, nil
}

// MustNew is like [New] but panics on invalid configuration.
func MustNew(opts ...Option) *Table {
	t, err := New(opts...)
	if err != nil {
		panic(err)
	}

	return t
}

// Build creates a table from specs and initializes it.
func Build(specs []RuleSpec, opts ...Option) (*Table, error) {
	t, err := New(opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Add(specs...); err != nil {
		return nil, err
	}
	if err := t.Initialize(); err != nil {
		return nil, err
	}

	return t, nil
}

func (t *Table) validate() error {
	var errs []error
	if err := t.settings.Validate(); err != nil {
		errs = append(errs, err)
	}
	if t.bloomSize == 0 {
		errs = append(errs, errors.New("bloom filter size must be non-zero"))
	}
	if t.bloomHashes <= 0 {
		errs = append(errs, errors.New("bloom hash functions must be positive"))
	}

	return errors.Join(errs...)
}

// Add registers rules built from specs. It fails with [ErrTableFrozen] once
// the table is ready. On error, rules before the failing one stay registered.
func (t *Table) Add(specs ...RuleSpec) error {
	for i, spec := range specs {
		r, err := NewRule(spec)
		if err != nil {
			return fmt.Errorf("rule %d: %w", i, err)
		}
		if err := t.AddRule(r); err != nil {
			return err
		}
	}

	return nil
}

// AddRule registers a rule created with [NewRule].
func (t *Table) AddRule(r *Rule) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ready.Load() {
		return ErrTableFrozen
	}
	if r.name != "" {
		if _, dup := t.named[r.name]; dup {
			return fmt.Errorf("%w: %q", ErrDuplicateRuleName, r.name)
		}
	}

	c := *r
	c.order = len(t.pending)
	t.pending = append(t.pending, &c)
	if c.name != "" {
		t.named[c.name] = &c
	}

	return nil
}

// Initialize sorts the rules, builds the indices and caches, and makes the
// table ready. Calling it again has no effect.
func (t *Table) Initialize() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.ready.Load() {
		return nil
	}

	var paths, status []*Rule
	for _, r := range t.pending {
		if r.IsStatus() {
			status = append(status, r)
		} else {
			paths = append(paths, r)
		}
	}
	SortRules(paths)

	var err error
	if t.matches, err = newBoundedCache[*Match](t.settings.Cache.Forward); err != nil {
		return fmt.Errorf("forward cache: %w", err)
	}
	if t.multi, err = newBoundedCache[[]*Match](t.settings.Cache.Multi); err != nil {
		return fmt.Errorf("multi-match cache: %w", err)
	}
	if t.urls, err = newURLCache(t.settings.Cache.URL); err != nil {
		return fmt.Errorf("url cache: %w", err)
	}

	t.rules = paths
	t.status = status
	t.index()
	t.reverse = buildReverseIndex(paths, t)

	t.logger.Info("mapping table initialized",
		"path_rules", len(paths),
		"status_rules", len(status),
		"named_rules", len(t.named),
	)
	if t.logger.Enabled(context.Background(), slog.LevelDebug) {
		for i, r := range paths {
			t.logger.Debug("rule order", "position", i, "rule", r.String())
		}
	}
	t.emit(DiagTableInitialized, "mapping table initialized", map[string]any{
		"path_rules":   len(paths),
		"status_rules": len(status),
	})
	t.metrics.ruleCounts(len(paths), len(status))

	t.ready.Store(true)

	return nil
}

// index builds the static and first-segment indices over t.rules.
func (t *Table) index() {
	t.static = make(map[string][]int)
	t.byFirst = make(map[string][]int)
	t.rest = nil
	t.bloom = compiler.NewBloomFilter(t.bloomSize, t.bloomHashes)

	seen := make(map[string]*Rule, len(t.rules))
	for i, r := range t.rules {
		key := r.method + " " + r.pattern.String()
		if first, dup := seen[key]; dup {
			t.emit(DiagDuplicatePattern, "pattern registered twice", map[string]any{
				"pattern": r.pattern.String(),
				"method":  r.method,
				"first":   first.String(),
			})
		} else {
			seen[key] = r
		}

		switch {
		case r.pattern.IsStatic():
			path := r.pattern.StaticPath()
			t.static[path] = append(t.static[path], i)
			t.bloom.Add(path)
		default:
			if first, ok := r.pattern.FirstLiteral(); ok {
				t.byFirst[first] = append(t.byFirst[first], i)
			} else {
				t.rest = append(t.rest, i)
			}
		}
	}
}

// Ready reports whether Initialize has completed.
func (t *Table) Ready() bool { return t.ready.Load() }

// Settings returns the effective settings.
func (t *Table) Settings() Settings { return t.settings }

// Close releases cache resources. The table must not be used afterwards.
func (t *Table) Close() {
	t.matches.close()
	t.multi.close()
}

// Rules returns the path rules in precedence order followed by the status
// rules in registration order. Before Initialize it returns the rules in
// registration order.
func (t *Table) Rules() []*Rule {
	if !t.ready.Load() {
		t.mu.Lock()
		defer t.mu.Unlock()

		return slices.Clone(t.pending)
	}

	out := make([]*Rule, 0, len(t.rules)+len(t.status))
	out = append(out, t.rules...)

	return append(out, t.status...)
}

// Named returns the rule registered under name.
func (t *Table) Named(name string) (*Rule, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	r, ok := t.named[name]

	return r, ok
}

// Match returns the first rule in precedence order matching path, or nil.
// It returns nil until the table is ready. The path must already be
// percent-decoded, as in [net/url.URL.Path]; captures are taken verbatim.
func (t *Table) Match(path string) *Match {
	return t.MatchMethod(path, "")
}

// MatchMethod is like [Table.Match] but skips rules restricted to another
// HTTP method. An empty method matches every rule.
func (t *Table) MatchMethod(path, method string) *Match {
	if !t.ready.Load() {
		return nil
	}

	key := cacheKey(path, method)
	if t.matches != nil {
		if m, ok := t.matches.get(key); ok {
			t.metrics.cache("forward", true)
			return m.clone()
		}
		t.metrics.cache("forward", false)
	}

	var found *Match
	if !t.excluded(path) {
		for _, i := range t.candidates(path) {
			r := t.rules[i]
			if !r.AllowsMethod(method) {
				continue
			}
			if m := r.match(path); m != nil {
				found = m
				break
			}
		}
	}
	t.metrics.match("path", found != nil)

	if found != nil {
		t.matches.set(key, found, 1)
	}

	return found.clone()
}

// MatchAll returns every rule matching path, in precedence order. It returns
// nil until the table is ready.
func (t *Table) MatchAll(path string) []*Match {
	return t.MatchAllMethod(path, "")
}

// MatchAllMethod is like [Table.MatchAll] restricted to rules accepting method.
func (t *Table) MatchAllMethod(path, method string) []*Match {
	if !t.ready.Load() {
		return nil
	}

	key := cacheKey(path, method)
	if t.multi != nil {
		if ms, ok := t.multi.get(key); ok {
			t.metrics.cache("multi", true)
			return cloneMatches(ms)
		}
		t.metrics.cache("multi", false)
	}

	var found []*Match
	if !t.excluded(path) {
		for _, i := range t.candidates(path) {
			r := t.rules[i]
			if !r.AllowsMethod(method) {
				continue
			}
			if m := r.match(path); m != nil {
				found = append(found, m)
			}
		}
	}
	t.metrics.match("all", len(found) > 0)

	if len(found) > 0 {
		t.multi.set(key, found, int64(len(found)))
	}

	return cloneMatches(found)
}

// AllowedMethods returns the sorted methods of method-restricted rules that
// match path.
func (t *Table) AllowedMethods(path string) []string {
	var methods []string
	for _, m := range t.MatchAll(path) {
		if method := m.rule.method; method != "" && !slices.Contains(methods, method) {
			methods = append(methods, method)
		}
	}
	slices.Sort(methods)

	return methods
}

// MatchStatusCode returns the first status rule for code that has no error
// filter, or nil.
func (t *Table) MatchStatusCode(code int) *Match {
	if !t.ready.Load() {
		return nil
	}
	for _, r := range t.status {
		if r.status == code && r.errorType == nil {
			t.metrics.match("status", true)
			return r.statusMatch()
		}
	}
	t.metrics.match("status", false)

	return nil
}

// MatchStatusCodeError returns the first status rule for code whose error
// filter matches err or an error it wraps, or nil. Rules without a filter
// are not considered; callers fall back to [Table.MatchStatusCode].
func (t *Table) MatchStatusCodeError(code int, err error) *Match {
	if !t.ready.Load() || err == nil {
		return nil
	}
	for _, r := range t.status {
		if r.status == code && r.matchesError(err) {
			t.metrics.match("status_error", true)
			return r.statusMatch()
		}
	}
	t.metrics.match("status_error", false)

	return nil
}

func (t *Table) excluded(path string) bool {
	for _, p := range t.excludes {
		if _, ok := p.Match(path); ok {
			return true
		}
	}

	return false
}

// candidates returns, in precedence order, the indices of the rules that
// may match path.
func (t *Table) candidates(path string) []int {
	var static []int
	if key := compiler.NormalizePath(path); t.bloom.Test(key) {
		static = t.static[key]
	}

	return mergeSorted(mergeSorted(static, t.byFirst[compiler.FirstSegment(path)]), t.rest)
}

// mergeSorted merges two ascending, disjoint index lists.
func mergeSorted(a, b []int) []int {
	switch {
	case len(a) == 0:
		return b
	case len(b) == 0:
		return a
	}

	out := make([]int, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		if a[i] < b[j] {
			out = append(out, a[i])
			i++
		} else {
			out = append(out, b[j])
			j++
		}
	}
	out = append(out, a[i:]...)

	return append(out, b[j:]...)
}

func cacheKey(path, method string) string {
	if method == "" {
		return path
	}

	return method + "\x00" + path
}
