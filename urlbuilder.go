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
	"errors"
	"fmt"
	"maps"
	"net/url"
	"reflect"
	"slices"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/spf13/cast"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/htmlindex"

	"rivaas.dev/mapping/compiler"
)

// URLRequest describes a reverse URL build.
type URLRequest struct {
	Controller string
	Action     string
	// Params supplies capture values. Parameters no rule token consumes are
	// appended as a query string. Params is never modified.
	Params map[string]any
	// Encoding names the character encoding applied before percent-encoding.
	// Empty means UTF-8.
	Encoding string
	Fragment string
	// NoDefault fails with ErrNoReverseMapping instead of producing the
	// /controller/action/id form when no rule applies.
	NoDefault bool
}

// BuildURL renders a URL for controller and action.
func (t *Table) BuildURL(controller, action string, params map[string]any, encoding string) (string, error) {
	return t.URL(URLRequest{Controller: controller, Action: action, Params: params, Encoding: encoding})
}

// BuildURLWithFragment is [Table.BuildURL] with a trailing fragment.
func (t *Table) BuildURLWithFragment(controller, action string, params map[string]any, encoding, fragment string) (string, error) {
	return t.URL(URLRequest{Controller: controller, Action: action, Params: params, Encoding: encoding, Fragment: fragment})
}

// URL renders the URL described by req.
//
// The rule is chosen by the "mappingName" parameter when it names a rule,
// otherwise by controller, action and supplied parameter names. Without a
// rule the default form /controller/action/id is produced unless disabled.
func (t *Table) URL(req URLRequest) (string, error) {
	if !t.ready.Load() {
		return "", ErrTableNotInitialized
	}

	enc, err := encoderFor(req.Encoding)
	if err != nil {
		return "", err
	}

	var key urlKey
	if t.urls != nil {
		key = urlCacheKey(req)
		if u, ok := t.urls.get(key); ok {
			t.metrics.cache("url", true)
			return u, nil
		}
		t.metrics.cache("url", false)
	}

	u, outcome, err := t.buildURL(req, enc)
	t.metrics.url(outcome)
	if err != nil {
		return "", err
	}
	t.urls.add(key, u)

	return u, nil
}

// BuildURI appends params to a literal URI as a query string. Reserved
// routing parameters are left out. The result is not cached.
func (t *Table) BuildURI(uri string, params map[string]any, encoding string) (string, error) {
	enc, err := encoderFor(encoding)
	if err != nil {
		return "", err
	}

	used := make(map[string]struct{}, len(reservedParams))
	for _, name := range reservedParams {
		used[name] = struct{}{}
	}

	var q strings.Builder
	if err := appendQuery(&q, params, used, enc); err != nil {
		return "", err
	}

	query := q.String()
	if query != "" && strings.Contains(uri, "?") {
		query = "&" + query[1:]
	}

	return uri + query, nil
}

func (t *Table) buildURL(req URLRequest, enc *encoding.Encoder) (string, string, error) {
	var rule *Rule
	if v, ok := req.Params[ParamMappingName]; ok && v != nil {
		name, err := cast.ToStringE(v)
		if err != nil {
			return "", "error", fmt.Errorf("%w: %s: %w", ErrInvalidParameter, ParamMappingName, err)
		}
		if r, ok := t.named[name]; ok && !r.IsStatus() {
			rule = r
		}
	}
	if rule == nil {
		rule = t.reverse.lookup(req.Controller, req.Action, paramNames(req.Params))
	}

	if rule != nil {
		u, err := render(rule, req, enc)
		if err != nil {
			return "", "error", err
		}

		return u, "rule", nil
	}

	if req.Controller == "" && req.Action == "" {
		return "", "error", fmt.Errorf("%w: neither controller nor action given", ErrNoReverseMapping)
	}
	if req.NoDefault || !t.settings.DefaultURL {
		return "", "error", fmt.Errorf("%w: controller %q action %q", ErrNoReverseMapping, req.Controller, req.Action)
	}

	u, err := defaultURL(req, enc)
	if err != nil {
		return "", "error", err
	}

	return u, "default", nil
}

var reservedParams = []string{ParamController, ParamAction, ParamNamespace, ParamPlugin, ParamMappingName}

func paramNames(params map[string]any) []string {
	names := make([]string, 0, len(params))
	for k := range params {
		if k != ParamMappingName {
			names = append(names, k)
		}
	}

	return names
}

// render fills rule's pattern with values from req. Rendering stops at the
// first nullable capture without a value.
func render(r *Rule, req URLRequest, enc *encoding.Encoder) (string, error) {
	values := make(map[string]any, len(req.Params)+2)
	maps.Copy(values, req.Params)
	if req.Controller != "" {
		values[ParamController] = req.Controller
	}
	if req.Action != "" {
		values[ParamAction] = req.Action
	}

	used := make(map[string]struct{}, len(r.captures)+len(reservedParams))
	for _, name := range reservedParams {
		used[name] = struct{}{}
	}

	var b strings.Builder
	next := 0
tokens:
	for _, tok := range r.pattern.Tokens() {
		switch tok.Kind {
		case compiler.TokenLiteral:
			b.WriteByte('/')
			b.WriteString(tok.Value)

		case compiler.TokenCapture, compiler.TokenDoubleCapture:
			c := r.captures[next]
			next++
			used[c.name] = struct{}{}

			s, err := paramString(c.name, values[c.name])
			if err != nil {
				return "", err
			}
			if s == "" {
				if !c.nullable {
					return "", &MissingRequiredParameterError{Param: c.name, Pattern: r.pattern.String()}
				}
				break tokens
			}

			if tok.Kind == compiler.TokenCapture {
				b.WriteByte('/')
				seg, err := encodeSegment(s, enc)
				if err != nil {
					return "", err
				}
				b.WriteString(seg)
				continue
			}
			for part := range strings.SplitSeq(strings.Trim(s, "/"), "/") {
				b.WriteByte('/')
				seg, err := encodeSegment(part, enc)
				if err != nil {
					return "", err
				}
				b.WriteString(seg)
			}

		default:
			return "", fmt.Errorf("%w: %s has uncaptured wildcards", ErrNoReverseMapping, r.pattern)
		}
	}
	if b.Len() == 0 {
		b.WriteByte('/')
	}

	if err := appendQuery(&b, values, used, enc); err != nil {
		return "", err
	}
	if err := appendFragment(&b, req.Fragment, enc); err != nil {
		return "", err
	}

	return b.String(), nil
}

// defaultURL renders /controller/action/id with the remaining parameters
// as query string.
func defaultURL(req URLRequest, enc *encoding.Encoder) (string, error) {
	id, err := paramString(ParamID, req.Params[ParamID])
	if err != nil {
		return "", err
	}

	var b strings.Builder
	for _, s := range []string{req.Controller, req.Action, id} {
		if s == "" {
			continue
		}
		seg, err := encodeSegment(s, enc)
		if err != nil {
			return "", err
		}
		b.WriteByte('/')
		b.WriteString(seg)
	}

	used := make(map[string]struct{}, len(reservedParams)+1)
	for _, name := range reservedParams {
		used[name] = struct{}{}
	}
	used[ParamID] = struct{}{}

	if err := appendQuery(&b, req.Params, used, enc); err != nil {
		return "", err
	}
	if err := appendFragment(&b, req.Fragment, enc); err != nil {
		return "", err
	}

	return b.String(), nil
}

// appendQuery writes the parameters not in used as a query string in key
// order. Slice values repeat the key.
func appendQuery(b *strings.Builder, values map[string]any, used map[string]struct{}, enc *encoding.Encoder) error {
	keys := make([]string, 0, len(values))
	for k := range values {
		if _, skip := used[k]; !skip {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return nil
	}
	slices.Sort(keys)

	sep := byte('?')
	write := func(k, v string) error {
		ek, err := encodeQuery(k, enc)
		if err != nil {
			return err
		}
		ev, err := encodeQuery(v, enc)
		if err != nil {
			return err
		}
		b.WriteByte(sep)
		sep = '&'
		b.WriteString(ek)
		b.WriteByte('=')
		b.WriteString(ev)

		return nil
	}

	for _, k := range keys {
		items, isList := listValues(values[k])
		if !isList {
			items = []any{values[k]}
		}
		for _, item := range items {
			s, err := paramString(k, item)
			if err != nil {
				return err
			}
			if err := write(k, s); err != nil {
				return err
			}
		}
	}

	return nil
}

func appendFragment(b *strings.Builder, fragment string, enc *encoding.Encoder) error {
	if fragment == "" {
		return nil
	}
	f, err := encodeQuery(fragment, enc)
	if err != nil {
		return err
	}
	b.WriteByte('#')
	b.WriteString(f)

	return nil
}

// listValues expands slice and array values other than byte slices.
func listValues(v any) ([]any, bool) {
	if v == nil {
		return nil, false
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, false
	}
	if rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}

	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}

	return out, true
}

func paramString(name string, v any) (string, error) {
	if v == nil {
		return "", nil
	}
	s, err := cast.ToStringE(v)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrInvalidParameter, name, err)
	}

	return s, nil
}

func encoderFor(name string) (*encoding.Encoder, error) {
	if name == "" || strings.EqualFold(name, "utf-8") || strings.EqualFold(name, "utf8") {
		return nil, nil
	}
	e, err := htmlindex.Get(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedEncoding, name)
	}

	return e.NewEncoder(), nil
}

func transcode(s string, enc *encoding.Encoder) (string, error) {
	if enc == nil || s == "" {
		return s, nil
	}
	out, err := enc.String(s)
	if err != nil {
		return "", errors.Join(ErrInvalidParameter, err)
	}

	return out, nil
}

// encodeSegment percent-encodes a path segment; spaces become %20.
func encodeSegment(s string, enc *encoding.Encoder) (string, error) {
	s, err := transcode(s, enc)
	if err != nil {
		return "", err
	}

	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20"), nil
}

// encodeQuery percent-encodes a query component; spaces become '+'.
func encodeQuery(s string, enc *encoding.Encoder) (string, error) {
	s, err := transcode(s, enc)
	if err != nil {
		return "", err
	}

	return url.QueryEscape(s), nil
}

// digestValue writes v the way it is rendered into a URL. Lists and
// scalars are tagged apart so a list never collides with its printed form.
func digestValue(h *xxhash.Digest, v any) {
	items, isList := listValues(v)
	if !isList {
		_, _ = h.Write([]byte{'s'})
		digestScalar(h, v)
		return
	}
	_, _ = fmt.Fprintf(h, "l%d", len(items))
	for _, item := range items {
		_, _ = h.Write([]byte{0})
		digestScalar(h, item)
	}
	_, _ = h.Write([]byte{0})
}

func digestScalar(h *xxhash.Digest, v any) {
	if v == nil {
		_, _ = h.Write([]byte{'n'})
		return
	}
	if s, err := cast.ToStringE(v); err == nil {
		_, _ = h.Write([]byte{'v'})
		_, _ = h.WriteString(s)
		return
	}
	// Unrenderable values fail the build; key them by type so the error repeats.
	_, _ = fmt.Fprintf(h, "t%T:%v", v, v)
}

func urlCacheKey(req URLRequest) urlKey {
	names := make([]string, 0, len(req.Params))
	for k := range req.Params {
		names = append(names, k)
	}
	slices.Sort(names)

	h := xxhash.New()
	for _, k := range names {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{0})
		digestValue(h, req.Params[k])
	}

	return urlKey{
		controller: req.Controller,
		action:     req.Action,
		names:      strings.Join(names, ","),
		digest:     h.Sum64(),
		encoding:   strings.ToLower(req.Encoding),
		fragment:   req.Fragment,
		noDefault:  req.NoDefault,
	}
}
