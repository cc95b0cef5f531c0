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

// Package config loads layered configuration for the mapping tools.
//
// Sources are read in registration order and merged, later sources
// overriding earlier ones. The merged map can be validated with a JSON
// Schema and custom validators, then bound to a struct with mapstructure.
//
//	settings := mapping.DefaultSettings()
//	cfg := config.MustNew(
//	    config.WithFile("mapping.yaml"),
//	    config.WithEnv("MAPPINGCTL_"),
//	    config.WithBindingAt("mapping", &settings),
//	)
//	if err := cfg.Load(ctx); err != nil {
//	    log.Fatal(err)
//	}
//
// A bound struct keeps the values it already holds for keys that no source
// provides, so callers pre-fill defaults before Load.
//
// Keys are case-insensitive unless [WithCaseSensitiveKeys] is given.
package config
