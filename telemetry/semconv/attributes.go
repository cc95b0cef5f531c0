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

package semconv

// HTTP attributes.
const (
	HTTPMethod = "http.method"
	// HTTPRoute is the pattern of the matched rule, not the requested path.
	HTTPRoute      = "http.route"
	HTTPTarget     = "http.target"
	HTTPStatusCode = "http.status_code"
	UserAgent      = "user_agent.original"
	// ClientAddress is the address of the direct peer, which may be a proxy.
	ClientAddress = "client.address"
)

// Resolution attributes.
const (
	MappingController = "mapping.controller"
	MappingAction     = "mapping.action"
	MappingView       = "mapping.view"
	// MappingForward is the URI a rule forwarded to.
	MappingForward = "mapping.forward"
)

// Correlation attributes. These are log field names rather than span
// attributes.
const (
	TraceID   = "trace_id"
	SpanID    = "span_id"
	RequestID = "request_id"
)

// All returns every key, for tests and log processors that whitelist fields.
func All() []string {
	return []string{
		HTTPMethod, HTTPRoute, HTTPTarget, HTTPStatusCode, UserAgent, ClientAddress,
		MappingController, MappingAction, MappingView, MappingForward,
		TraceID, SpanID, RequestID,
	}
}
