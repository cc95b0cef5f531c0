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
	"fmt"
	"maps"
	"slices"
	"sync"
)

var registry = struct {
	sync.RWMutex
	encoders map[Type]Encoder
	decoders map[Type]Decoder
}{
	encoders: make(map[Type]Encoder),
	decoders: make(map[Type]Decoder),
}

// RegisterEncoder registers encoder under name, replacing any previous one.
func RegisterEncoder(name Type, encoder Encoder) {
	registry.Lock()
	defer registry.Unlock()
	registry.encoders[name] = encoder
}

// RegisterDecoder registers decoder under name, replacing any previous one.
func RegisterDecoder(name Type, decoder Decoder) {
	registry.Lock()
	defer registry.Unlock()
	registry.decoders[name] = decoder
}

// Register registers a codec that both encodes and decodes.
func Register(name Type, c Codec) {
	RegisterEncoder(name, c)
	RegisterDecoder(name, c)
}

// Encoders returns the registered encoder names, sorted.
func Encoders() []Type {
	registry.RLock()
	defer registry.RUnlock()

	return slices.Sorted(maps.Keys(registry.encoders))
}

// GetEncoder returns the encoder registered under name.
func GetEncoder(name Type) (Encoder, error) {
	registry.RLock()
	defer registry.RUnlock()

	encoder, exists := registry.encoders[name]
	if !exists {
		return nil, fmt.Errorf("no encoder for %q", name)
	}

	return encoder, nil
}

// GetDecoder returns the decoder registered under name.
func GetDecoder(name Type) (Decoder, error) {
	registry.RLock()
	defer registry.RUnlock()

	decoder, exists := registry.decoders[name]
	if !exists {
		return nil, fmt.Errorf("no decoder for %q", name)
	}

	return decoder, nil
}
