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

// Package logging builds [slog.Logger] values for the mapping tools.
//
// Loggers write JSON, key=value text, or colored console output:
//
//	logger := logging.MustNew(
//	    logging.WithConsoleHandler(),
//	    logging.WithDebugLevel(),
//	    logging.WithServiceName("mappingctl"),
//	)
//	table, err := mapping.Build(specs, mapping.WithLogger(logger.Logger()))
//
// [WithTrace] adds the trace and span IDs of the active OpenTelemetry span
// to a logger.
package logging
