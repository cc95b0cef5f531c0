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

// Package accesslog provides net/http middleware that writes one structured
// log record per request.
//
// Records carry method, path, status, duration, bytes written, client
// address, user agent and the request ID set by the requestid middleware.
// 5xx responses log at error level, 4xx at warn, slow requests at warn
// with slow=true, everything else at info.
//
//	handler := requestid.New()(accesslog.New(
//	    accesslog.WithLogger(logger),
//	    accesslog.WithExcludePaths("/healthz"),
//	)(dispatcher))
package accesslog
