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

// DiagnosticEvent reports a table-building anomaly. The table behaves the
// same whether or not events are collected.
type DiagnosticEvent struct {
	Kind    DiagnosticKind
	Message string
	Fields  map[string]any
}

// DiagnosticKind categorizes diagnostic events.
type DiagnosticKind string

const (
	// DiagDuplicatePattern: two path rules share pattern and method. The
	// later one can only match when the earlier one's validators reject.
	DiagDuplicatePattern DiagnosticKind = "duplicate_pattern"
	// DiagReverseConflict: a reverse key is already owned by a rule of higher
	// precedence.
	DiagReverseConflict DiagnosticKind = "reverse_key_conflict"
	// DiagNotReverseIndexed: a rule has uncaptured wildcards and can never be
	// used to build URLs.
	DiagNotReverseIndexed DiagnosticKind = "rule_not_reverse_indexed"
	DiagTableInitialized  DiagnosticKind = "table_initialized"
)

// DiagnosticHandler receives diagnostic events from the table.
//
// Example with logging:
//
//	handler := mapping.DiagnosticHandlerFunc(func(e mapping.DiagnosticEvent) {
//	    slog.Warn(e.Message, "kind", e.Kind, "fields", e.Fields)
//	})
//	table := mapping.MustNew(mapping.WithDiagnostics(handler))
type DiagnosticHandler interface {
	OnDiagnostic(DiagnosticEvent)
}

// DiagnosticHandlerFunc is a function adapter for DiagnosticHandler.
type DiagnosticHandlerFunc func(DiagnosticEvent)

func (f DiagnosticHandlerFunc) OnDiagnostic(e DiagnosticEvent) {
	f(e)
}

func (t *Table) emit(kind DiagnosticKind, msg string, fields map[string]any) {
	if t.diagnostics == nil {
		return
	}
	t.diagnostics.OnDiagnostic(DiagnosticEvent{Kind: kind, Message: msg, Fields: fields})
}
