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

package dispatch

import (
	"context"
	"net/http"

	"rivaas.dev/mapping"
)

type contextKey int

const (
	matchKey contextKey = iota
	errorKey
	statusKey
	depthKey
)

// MatchFromContext returns the match being served, or nil.
func MatchFromContext(ctx context.Context) *mapping.Match {
	m, _ := ctx.Value(matchKey).(*mapping.Match)
	return m
}

// ParamsFromContext returns the parameters of the match being served.
func ParamsFromContext(ctx context.Context) map[string]any {
	if m := MatchFromContext(ctx); m != nil {
		return m.Params
	}

	return nil
}

// Param returns one parameter of the match serving r.
func Param(r *http.Request, name string) (any, bool) {
	v, ok := ParamsFromContext(r.Context())[name]
	return v, ok
}

// ErrorFromContext returns the error a status handler is serving, if any.
func ErrorFromContext(ctx context.Context) error {
	err, _ := ctx.Value(errorKey).(error)
	return err
}

// StatusFromContext returns the status code a status handler is serving,
// or 0 for regular requests.
func StatusFromContext(ctx context.Context) int {
	code, _ := ctx.Value(statusKey).(int)
	return code
}

func withMatch(ctx context.Context, m *mapping.Match) context.Context {
	return context.WithValue(ctx, matchKey, m)
}

func depthFromContext(ctx context.Context) int {
	d, _ := ctx.Value(depthKey).(int)
	return d
}
