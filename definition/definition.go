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

package definition

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"reflect"
	"strings"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/config"
	"rivaas.dev/mapping/config/codec"
	"rivaas.dev/mapping/constraint"
)

//go:embed schema.json
var schema []byte

// Schema returns the JSON Schema rule documents are checked against.
func Schema() []byte {
	return append([]byte(nil), schema...)
}

var (
	// ErrUnknownErrorType is returned for an error filter name nobody registered.
	ErrUnknownErrorType = errors.New("unknown error type")
	// ErrInvalidDefinition wraps every conversion failure.
	ErrInvalidDefinition = errors.New("invalid mapping definition")
)

// RuleDef is one entry of the "rules" list.
type RuleDef struct {
	Name         string                     `mapstructure:"name" yaml:"name,omitempty" json:"name,omitempty" toml:"name,omitempty"`
	Pattern      string                     `mapstructure:"pattern" yaml:"pattern,omitempty" json:"pattern,omitempty" toml:"pattern,omitempty"`
	Method       string                     `mapstructure:"method" yaml:"method,omitempty" json:"method,omitempty" toml:"method,omitempty"`
	Controller   string                     `mapstructure:"controller" yaml:"controller,omitempty" json:"controller,omitempty" toml:"controller,omitempty"`
	Action       string                     `mapstructure:"action" yaml:"action,omitempty" json:"action,omitempty" toml:"action,omitempty"`
	View         string                     `mapstructure:"view" yaml:"view,omitempty" json:"view,omitempty" toml:"view,omitempty"`
	URI          string                     `mapstructure:"uri" yaml:"uri,omitempty" json:"uri,omitempty" toml:"uri,omitempty"`
	Status       int                        `mapstructure:"status" yaml:"status,omitempty" json:"status,omitempty" toml:"status,omitempty"`
	Error        string                     `mapstructure:"error" yaml:"error,omitempty" json:"error,omitempty" toml:"error,omitempty"`
	Captures     []string                   `mapstructure:"captures" yaml:"captures,omitempty" json:"captures,omitempty" toml:"captures,omitempty"`
	Constraints  map[string]constraint.Spec `mapstructure:"constraints" yaml:"constraints,omitempty" json:"constraints,omitempty" toml:"constraints,omitempty"`
	Params       map[string]any             `mapstructure:"params" yaml:"params,omitempty" json:"params,omitempty" toml:"params,omitempty"`
	ParseRequest bool                       `mapstructure:"parse_request" yaml:"parse_request,omitempty" json:"parse_request,omitempty" toml:"parse_request,omitempty"`
}

// Definition is a loaded document.
type Definition struct {
	Settings mapping.Settings
	Rules    []mapping.RuleSpec
}

// Table builds and initializes a table from d. opts are applied after the
// document's settings.
func (d *Definition) Table(opts ...mapping.Option) (*mapping.Table, error) {
	all := append([]mapping.Option{mapping.WithSettings(d.Settings)}, opts...)

	return mapping.Build(d.Rules, all...)
}

// Option configures loading.
type Option func(*loader)

type loader struct {
	errorTypes errorTypes
	envPrefix  string
	logger     *slog.Logger
}

// WithErrorType registers an error filter name. typ is usually obtained
// with reflect.TypeFor.
func WithErrorType(name string, typ reflect.Type) Option {
	return func(l *loader) {
		l.errorTypes[name] = typ
	}
}

// WithEnv lets environment variables starting with prefix override the
// document's settings, for example PREFIX_MAPPING__CACHE__URL=0. Rules
// cannot be set from the environment.
func WithEnv(prefix string) Option {
	return func(l *loader) {
		l.envPrefix = prefix
	}
}

// WithLogger sets the logger used to report loaded documents.
func WithLogger(logger *slog.Logger) Option {
	return func(l *loader) {
		l.logger = logger
	}
}

func newLoader(opts []Option) *loader {
	l := &loader{
		errorTypes: DefaultErrorTypes(),
		logger:     mapping.NoopLogger(),
	}
	for _, opt := range opts {
		opt(l)
	}

	return l
}

// LoadFile reads the document at path. The format follows the extension.
func LoadFile(ctx context.Context, path string, opts ...Option) (*Definition, error) {
	return newLoader(opts).load(ctx, path, config.WithFile(path))
}

// Parse reads a document from data.
func Parse(ctx context.Context, data []byte, format codec.Type, opts ...Option) (*Definition, error) {
	return newLoader(opts).load(ctx, string(format), config.WithContent(data, format))
}

func (l *loader) load(ctx context.Context, origin string, src config.Option) (*Definition, error) {
	settings := mapping.DefaultSettings()
	var defs []RuleDef

	doc, err := config.New(
		src,
		config.WithCaseSensitiveKeys(),
		config.WithJSONSchema(schema),
		config.WithBindingAt("mapping", &settings),
		config.WithBindingAt("rules", &defs),
	)
	if err != nil {
		return nil, err
	}
	if err := doc.Load(ctx); err != nil {
		return nil, err
	}

	// environment values are strings, so they bypass the schema and only
	// reach the settings
	if l.envPrefix != "" {
		env, err := config.New(
			config.WithEnv(l.envPrefix),
			config.WithBindingAt("mapping", &settings),
		)
		if err != nil {
			return nil, err
		}
		if err := env.Load(ctx); err != nil {
			return nil, err
		}
	}

	specs, err := l.convert(defs)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("mapping definition loaded", "origin", origin, "rules", len(specs))

	return &Definition{Settings: settings, Rules: specs}, nil
}

func (l *loader) convert(defs []RuleDef) ([]mapping.RuleSpec, error) {
	specs := make([]mapping.RuleSpec, 0, len(defs))
	var errs []error
	for i, def := range defs {
		spec, err := def.spec(l.errorTypes)
		if err != nil {
			errs = append(errs, fmt.Errorf("%w: rule %d (%s): %w", ErrInvalidDefinition, i, def.label(), err))
			continue
		}
		specs = append(specs, spec)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	return specs, nil
}

func (d RuleDef) label() string {
	switch {
	case d.Name != "":
		return d.Name
	case d.Pattern != "":
		return d.Pattern
	default:
		return fmt.Sprintf("status %d", d.Status)
	}
}

// Spec converts d using the default error filters.
func (d RuleDef) Spec() (mapping.RuleSpec, error) {
	return d.spec(DefaultErrorTypes())
}

func (d RuleDef) spec(types errorTypes) (mapping.RuleSpec, error) {
	errType, err := types.lookup(d.Error)
	if err != nil {
		return mapping.RuleSpec{}, err
	}

	spec := mapping.RuleSpec{
		Name:         d.Name,
		Pattern:      d.Pattern,
		Method:       d.Method,
		Controller:   target(d.Controller),
		Action:       target(d.Action),
		View:         target(d.View),
		URI:          d.URI,
		Status:       d.Status,
		ErrorType:    errType,
		Params:       maps.Clone(d.Params),
		ParseRequest: d.ParseRequest,
	}

	for _, name := range d.Captures {
		spec.Captures = append(spec.Captures, mapping.Capture{Name: name})
	}

	if len(d.Constraints) > 0 {
		spec.Constraints = make(map[string]constraint.Validator, len(d.Constraints))
		for name, cs := range d.Constraints {
			v, err := cs.Build()
			if err != nil {
				return mapping.RuleSpec{}, fmt.Errorf("constraint %q: %w", name, err)
			}
			spec.Constraints[name] = v
		}
	}

	return spec, nil
}

// target reads "${name}" as a parameter reference and anything else as a
// literal.
func target(s string) mapping.Target {
	s = strings.TrimSpace(s)
	if s == "" {
		return mapping.Target{}
	}
	if name, ok := strings.CutPrefix(s, "${"); ok {
		if name, ok = strings.CutSuffix(name, "}"); ok && name != "" {
			return mapping.FromParam(name)
		}
	}

	return mapping.Literal(s)
}
