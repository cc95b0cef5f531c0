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

// Package compression provides net/http middleware that compresses
// responses with brotli or gzip, chosen from the client's Accept-Encoding
// header.
//
// Bodies shorter than the minimum size (1 KiB by default) are sent as is.
// Event streams, gRPC and octet-stream responses are never compressed,
// nor are 204, 206 and 304 responses.
//
//	handler := compression.New(compression.WithMinSize(512))(dispatcher)
package compression
