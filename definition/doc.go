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

// Package definition reads URL mapping rules from YAML, TOML or JSON
// documents.
//
// A document has an optional "mapping" section holding [mapping.Settings]
// and a "rules" list:
//
//	mapping:
//	  cache:
//	    url: 0
//	rules:
//	  - pattern: /books/$id
//	    controller: book
//	    action: show
//	    constraints:
//	      id: {kind: int}
//	  - pattern: /$controller/$action?/$id?
//	  - status: 404
//	    view: notFound
//
// A controller, action or view written as "${name}" is read from the
// parameter name at match time. Error filters of status rules are named;
// see [WithErrorType] and [DefaultErrorTypes].
//
// The document is checked against an embedded JSON Schema before it is
// converted. Keys are case sensitive.
package definition
