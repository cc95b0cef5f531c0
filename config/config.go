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

package config

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"math/rand"
	"os"
	"reflect"
	"strings"
	"sync"
	"time"

	"dario.cat/mergo"
	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/spf13/cast"

	"rivaas.dev/mapping/config/codec"
	"rivaas.dev/mapping/config/source"
)

// Option configures a [Config].
type Option func(c *Config) error

// Validator is implemented by bound structs that check themselves.
type Validator interface {
	Validate() error
}

type binding struct {
	path   string
	target any
}

// Config merges configuration sources and binds the result to structs.
//
// Config is safe for concurrent use.
type Config struct {
	mu         sync.RWMutex
	values     map[string]any
	sources    []Source
	bindings   []binding
	tagName    string
	schema     *jsonschema.Schema
	validators []func(map[string]any) error
	keepCase   bool
}

// WithSource adds a source.
func WithSource(src Source) Option {
	return func(c *Config) error {
		if src == nil {
			return errors.New("source cannot be nil")
		}
		c.sources = append(c.sources, src)

		return nil
	}
}

// WithFile adds a file source whose format is detected from the extension.
// The path may reference environment variables as ${VAR} or $VAR.
func WithFile(path string) Option {
	return func(c *Config) error {
		path = os.ExpandEnv(path)

		format, err := DetectFormat(path)
		if err != nil {
			return NewError("file-source", "detect-format", err)
		}
		decoder, err := codec.GetDecoder(format)
		if err != nil {
			return NewError("file-source", "get-decoder", err)
		}
		c.sources = append(c.sources, source.NewFile(path, decoder))

		return nil
	}
}

// WithFileAs adds a file source with an explicit format.
func WithFileAs(path string, codecType codec.Type) Option {
	return func(c *Config) error {
		decoder, err := codec.GetDecoder(codecType)
		if err != nil {
			return NewError("file-source", "get-decoder", err)
		}
		c.sources = append(c.sources, source.NewFile(os.ExpandEnv(path), decoder))

		return nil
	}
}

// WithContent adds an in-memory source.
func WithContent(data []byte, codecType codec.Type) Option {
	return func(c *Config) error {
		decoder, err := codec.GetDecoder(codecType)
		if err != nil {
			return NewError("content-source", "get-decoder", err)
		}
		c.sources = append(c.sources, source.NewFileContent(data, decoder))

		return nil
	}
}

// WithEnv adds the environment variables starting with prefix. A double
// underscore separates nesting levels: PREFIX_CACHE__FORWARD=10 sets
// cache.forward.
func WithEnv(prefix string) Option {
	return func(c *Config) error {
		c.sources = append(c.sources, source.NewOSEnvVar(prefix))

		return nil
	}
}

// WithBinding binds the whole configuration to the struct target points to.
func WithBinding(target any) Option {
	return WithBindingAt("", target)
}

// WithBindingAt binds the subtree at the dotted path to target.
func WithBindingAt(path string, target any) Option {
	return func(c *Config) error {
		if target == nil {
			return errors.New("binding target cannot be nil")
		}
		if reflect.TypeOf(target).Kind() != reflect.Pointer {
			return errors.New("binding target must be a pointer")
		}
		c.bindings = append(c.bindings, binding{path: path, target: target})

		return nil
	}
}

// WithTag sets the struct tag used for binding. The default is "mapstructure".
func WithTag(tagName string) Option {
	return func(c *Config) error {
		if tagName == "" {
			return errors.New("tag name cannot be empty")
		}
		c.tagName = tagName

		return nil
	}
}

// WithJSONSchema validates the merged configuration against schema.
func WithJSONSchema(schema []byte) Option {
	return func(c *Config) error {
		//nolint:gosec // unique resource name, not security sensitive
		name := fmt.Sprintf("inline_%d.json", rand.Int())

		doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schema))
		if err != nil {
			return NewError("json-schema", "parse", err)
		}
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(name, doc); err != nil {
			return NewError("json-schema", "add-resource", err)
		}
		compiled, err := compiler.Compile(name)
		if err != nil {
			return NewError("json-schema", "compile", err)
		}
		c.schema = compiled

		return nil
	}
}

// WithValidator adds a check over the merged configuration map.
func WithValidator(fn func(map[string]any) error) Option {
	return func(c *Config) error {
		if fn == nil {
			return errors.New("validator cannot be nil")
		}
		c.validators = append(c.validators, fn)

		return nil
	}
}

// WithCaseSensitiveKeys keeps key case when merging. Use it for documents
// whose keys are data, such as parameter names.
func WithCaseSensitiveKeys() Option {
	return func(c *Config) error {
		c.keepCase = true

		return nil
	}
}

// New creates a Config. Option errors are joined and returned together.
func New(options ...Option) (*Config, error) {
	c := &Config{
		values:  map[string]any{},
		tagName: "mapstructure",
	}

	var errs error
	for _, option := range options {
		if option == nil {
			continue
		}
		if err := option(c); err != nil {
			errs = errors.Join(errs, err)
		}
	}
	if errs != nil {
		return nil, errs
	}

	return c, nil
}

// MustNew is like [New] but panics on error.
func MustNew(options ...Option) *Config {
	cfg, err := New(options...)
	if err != nil {
		panic(fmt.Sprintf("config: failed to create config: %v", err))
	}

	return cfg
}

// Load reads and merges all sources, validates the result and updates the
// bound structs. On error the previous state is kept.
func (c *Config) Load(ctx context.Context) error {
	if ctx == nil {
		return errors.New("context cannot be nil")
	}

	merged, err := c.loadSources(ctx)
	if err != nil {
		return err
	}

	if c.schema != nil {
		if err := c.schema.Validate(merged); err != nil {
			return NewError("json-schema", "validate", err)
		}
	}

	for i, fn := range c.validators {
		if err := runValidator(fn, merged); err != nil {
			return NewError(fmt.Sprintf("custom-validator[%d]", i), "validate", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	decoded := make([]reflect.Value, len(c.bindings))
	for i, b := range c.bindings {
		v, err := c.decode(lookup(merged, b.path, c.keepCase), b.target)
		if err != nil {
			return NewFieldError("binding", b.path, "bind", err)
		}
		decoded[i] = v
	}
	for i, b := range c.bindings {
		reflect.ValueOf(b.target).Elem().Set(decoded[i].Elem())
	}
	c.values = merged

	return nil
}

// MustLoad is like [Config.Load] but panics on error.
func (c *Config) MustLoad(ctx context.Context) {
	if err := c.Load(ctx); err != nil {
		panic(err)
	}
}

func runValidator(fn func(map[string]any) error, values map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("validator panic: %v", r)
		}
	}()

	return fn(values)
}

func (c *Config) loadSources(ctx context.Context) (map[string]any, error) {
	merged := make(map[string]any)
	for i, src := range c.sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		conf, err := src.Load(ctx)
		if err != nil {
			return nil, NewError(fmt.Sprintf("source[%d]", i), "load", err)
		}
		if conf == nil {
			continue
		}
		conf = normalizeMap(conf, !c.keepCase)
		if err := mergo.Map(&merged, conf, mergo.WithOverride); err != nil {
			return nil, NewError(fmt.Sprintf("source[%d]", i), "merge", err)
		}
	}

	return merged, nil
}

// decode binds values into a copy of *target, runs its Validate method and
// returns the copy. target itself is not touched.
func (c *Config) decode(values any, target any) (reflect.Value, error) {
	current := reflect.ValueOf(target).Elem()
	tmp := reflect.New(current.Type())
	tmp.Elem().Set(current)

	if values != nil {
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			TagName:          c.tagName,
			Squash:           true,
			WeaklyTypedInput: true,
			Result:           tmp.Interface(),
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.StringToSliceHookFunc(","),
				mapstructure.StringToTimeHookFunc(time.RFC3339),
			),
		})
		if err != nil {
			return reflect.Value{}, fmt.Errorf("failed to create decoder: %w", err)
		}
		if err := decoder.Decode(values); err != nil {
			return reflect.Value{}, fmt.Errorf("failed to decode configuration: %w", err)
		}
	}

	if v, ok := tmp.Interface().(Validator); ok {
		if err := v.Validate(); err != nil {
			return reflect.Value{}, err
		}
	}

	return tmp, nil
}

// normalizeMap copies m, folding keys to lower case when fold is set.
// Slices of tables, as produced by TOML, become []any so that every source
// yields the same shapes.
func normalizeMap(m map[string]any, fold bool) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		if fold {
			k = strings.ToLower(k)
		}
		out[k] = normalizeValue(v, fold)
	}

	return out
}

func normalizeValue(v any, fold bool) any {
	switch v := v.(type) {
	case map[string]any:
		return normalizeMap(v, fold)
	case []map[string]any:
		out := make([]any, len(v))
		for i, m := range v {
			out[i] = normalizeMap(m, fold)
		}

		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = normalizeValue(item, fold)
		}

		return out
	default:
		return v
	}
}

// lookup walks a dotted path through nested maps.
func lookup(values map[string]any, path string, keepCase bool) any {
	if path == "" {
		return values
	}
	if !keepCase {
		path = strings.ToLower(path)
	}
	if v, ok := values[path]; ok {
		return v
	}

	var current any = values
	for segment := range strings.SplitSeq(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil
		}
		if current, ok = m[segment]; !ok {
			return nil
		}
	}

	return current
}

// Values returns a shallow copy of the merged configuration.
func (c *Config) Values() map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return maps.Clone(c.values)
}

// Get returns the value at a dotted key, or nil.
func (c *Config) Get(key string) any {
	if c == nil || key == "" {
		return nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	return lookup(c.values, key, c.keepCase)
}

// String returns the value at key as a string.
func (c *Config) String(key string) string { return cast.ToString(c.Get(key)) }

// Int returns the value at key as an int.
func (c *Config) Int(key string) int { return cast.ToInt(c.Get(key)) }

// Bool returns the value at key as a bool.
func (c *Config) Bool(key string) bool { return cast.ToBool(c.Get(key)) }

// Duration returns the value at key as a duration.
func (c *Config) Duration(key string) time.Duration { return cast.ToDuration(c.Get(key)) }

// StringSlice returns the value at key as a string slice.
func (c *Config) StringSlice(key string) []string { return cast.ToStringSlice(c.Get(key)) }

// StringOr returns the value at key, or defaultVal when it is absent.
func (c *Config) StringOr(key, defaultVal string) string {
	if v := c.Get(key); v != nil {
		return cast.ToString(v)
	}

	return defaultVal
}

// IntOr returns the value at key, or defaultVal when it is absent.
func (c *Config) IntOr(key string, defaultVal int) int {
	if v := c.Get(key); v != nil {
		return cast.ToInt(v)
	}

	return defaultVal
}
