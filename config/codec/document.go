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

package codec

import (
	"encoding/json"

	"github.com/BurntSushi/toml"
	"github.com/goccy/go-yaml"
)

// Document formats.
const (
	TypeYAML Type = "yaml"
	TypeTOML Type = "toml"
	TypeJSON Type = "json"
)

func init() {
	Register(TypeYAML, YAMLCodec{})
	Register(TypeTOML, TOMLCodec{})
	Register(TypeJSON, JSONCodec{})
}

// YAMLCodec reads and writes YAML. Sequences are indented under their key.
type YAMLCodec struct{}

func (YAMLCodec) Encode(v any) ([]byte, error) {
	return yaml.MarshalWithOptions(v, yaml.Indent(2), yaml.IndentSequence(true))
}

func (YAMLCodec) Decode(data []byte, v any) error {
	return yaml.Unmarshal(data, v)
}

// TOMLCodec reads and writes TOML. Arrays of tables decode as
// []map[string]any.
type TOMLCodec struct{}

func (TOMLCodec) Encode(v any) ([]byte, error) { return toml.Marshal(v) }

func (TOMLCodec) Decode(data []byte, v any) error { return toml.Unmarshal(data, v) }

// JSONCodec reads and writes JSON. Output is indented by two spaces.
type JSONCodec struct{}

func (JSONCodec) Encode(v any) ([]byte, error) { return json.MarshalIndent(v, "", "  ") }

func (JSONCodec) Decode(data []byte, v any) error { return json.Unmarshal(data, v) }
