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

// Package mapping resolves URL paths to controller, action and view targets
// and builds URLs back from those targets.
//
// # Key Features
//
//   - Patterns with single "(*)" and multi-segment "(**)" captures
//   - Optional trailing tokens ("(*)?") with fallback variants
//   - Per-capture validators that convert or reject values
//   - Deterministic precedence between overlapping rules
//   - Status-code rules, optionally filtered by error type
//   - Reverse URL building with charset-aware percent-encoding
//   - Bounded caches for forward lookups and built URLs
//
// # Lifecycle
//
// A [Table] is built, then initialized, then read:
//
//	table := mapping.MustNew()
//	_ = table.Add(
//	    mapping.RuleSpec{
//	        Pattern:    "/books/(*)",
//	        Controller: mapping.Literal("book"),
//	        Action:     mapping.Literal("show"),
//	        Captures:   []mapping.Capture{{Name: "id", Validator: constraint.Int()}},
//	    },
//	    mapping.RuleSpec{Status: 404, Controller: mapping.Literal("errors"), Action: mapping.Literal("notFound")},
//	)
//	if err := table.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//
//	m := table.Match("/books/42")   // m.ControllerName() == "book", m.Params["id"] == int64(42)
//	u, _ := table.BuildURL("book", "show", map[string]any{"id": 42}, "") // "/books/42"
//
// After Initialize the table is immutable and safe for concurrent use.
//
// # Precedence
//
// Rules are tried in the order defined by [Compare]: the root pattern
// first, patterns without literals last, and in between fewer wildcards and
// more literals win. Rules that compare equal keep registration order.
package mapping
