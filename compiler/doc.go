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

// Package compiler turns URL mapping patterns into anchored regular expressions.
//
// A pattern is a '/'-separated list of tokens. Each token is one of:
//
//   - a literal segment, matched verbatim ("books")
//   - "(*)", which captures exactly one non-empty segment
//   - "(**)", which captures the remainder of the path, slashes included
//   - "*" or "**", the uncaptured forms of the two wildcards
//   - a literal carrying embedded stars ("file-*.txt"), where each star
//     matches any run of non-separator characters
//   - "$name" or "$name**", shorthand for a named single or double capture
//
// Any token may carry a trailing '?' to mark it optional. Optional tokens
// produce fallback variants: the full pattern is tried first, then every
// prefix that ends just before an optional token, longest first.
//
// Compiled patterns are immutable and safe for concurrent use.
package compiler
