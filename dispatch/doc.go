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

// Package dispatch serves HTTP requests through a [mapping.Table].
//
// A request path is matched against the table. The match is resolved to a
// handler registered for its controller and action, to a view rendered by a
// [ViewRenderer], or to a forward URI that is dispatched again. Requests
// nothing matches, handler failures and panics are routed through the
// table's status-code rules and fall back to RFC 9457 problem responses.
//
//	d, err := dispatch.New(table, dispatch.WithLogger(logger))
//	d.HandleFunc("book", "show", func(w http.ResponseWriter, r *http.Request) {
//	    id, _ := dispatch.Param(r, "id")
//	    fmt.Fprintf(w, "book %v", id)
//	})
//	http.ListenAndServe(":8080", d)
//
// The table can be replaced at runtime with [Dispatcher.SetTable]; requests
// in flight keep the table they started with.
package dispatch
