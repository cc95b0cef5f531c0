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

package source

import (
	"context"
	"fmt"
	"os"
	"strings"

	"rivaas.dev/mapping/config/codec"
)

// OSEnvVar loads environment variables that start with a prefix. The prefix
// is stripped and the rest is decoded by [codec.EnvVarCodec].
//
//	MAPPINGCTL_CACHE__URL=0     -> cache.url = "0"
//	MAPPINGCTL_DEFAULT_URL=true -> default_url = "true"
type OSEnvVar struct {
	prefix  string
	decoder codec.Decoder
	environ func() []string
}

// NewOSEnvVar returns an environment source filtered by prefix.
func NewOSEnvVar(prefix string) *OSEnvVar {
	return &OSEnvVar{
		prefix:  prefix,
		decoder: codec.EnvVarCodec{},
		environ: os.Environ,
	}
}

// Load implements the config source contract.
func (e *OSEnvVar) Load(_ context.Context) (map[string]any, error) {
	env := e.environ()
	matching := make([]string, 0, len(env))
	for _, kv := range env {
		if rest, ok := strings.CutPrefix(kv, e.prefix); ok {
			matching = append(matching, rest)
		}
	}

	var config map[string]any
	if err := e.decoder.Decode([]byte(strings.Join(matching, "\n")), &config); err != nil {
		return nil, fmt.Errorf("failed to decode environment variables: %w", err)
	}

	return config, nil
}
