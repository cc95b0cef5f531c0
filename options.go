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

package mapping

import (
	"errors"
	"fmt"
	"io"
	"log/slog"

	"go.opentelemetry.io/otel/metric"
)

// Default cache capacities.
const (
	DefaultForwardCacheCapacity = 5000
	DefaultMultiCacheCapacity   = 5000
	DefaultURLCacheCapacity     = 4096

	defaultBloomFilterSize    = 1000
	defaultBloomHashFunctions = 3
)

var noopLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// NoopLogger returns the singleton logger that discards everything. It is
// used when no logger is configured.
func NoopLogger() *slog.Logger {
	return noopLogger
}

// Settings holds the externally configurable table behavior. It is the
// "mapping" section of a configuration file.
type Settings struct {
	Cache CacheSettings `mapstructure:"cache" yaml:"cache" toml:"cache" json:"cache"`
	// Exclude lists patterns of paths the table never matches.
	Exclude []string `mapstructure:"exclude" yaml:"exclude" toml:"exclude" json:"exclude"`
	// DefaultURL enables the /controller/action/id fallback of the URL builder.
	DefaultURL bool `mapstructure:"default_url" yaml:"default_url" toml:"default_url" json:"default_url"`
}

// CacheSettings sets cache capacities. Zero disables a cache.
type CacheSettings struct {
	Forward int `mapstructure:"forward" yaml:"forward" toml:"forward" json:"forward"`
	Multi   int `mapstructure:"multi" yaml:"multi" toml:"multi" json:"multi"`
	URL     int `mapstructure:"url" yaml:"url" toml:"url" json:"url"`
}

// DefaultSettings returns the settings used when none are given.
func DefaultSettings() Settings {
	return Settings{
		Cache: CacheSettings{
			Forward: DefaultForwardCacheCapacity,
			Multi:   DefaultMultiCacheCapacity,
			URL:     DefaultURLCacheCapacity,
		},
		DefaultURL: true,
	}
}

// Validate checks the settings for impossible values.
func (s Settings) Validate() error {
	var errs []error
	if s.Cache.Forward < 0 {
		errs = append(errs, fmt.Errorf("cache.forward must not be negative, got %d", s.Cache.Forward))
	}
	if s.Cache.Multi < 0 {
		errs = append(errs, fmt.Errorf("cache.multi must not be negative, got %d", s.Cache.Multi))
	}
	if s.Cache.URL < 0 {
		errs = append(errs, fmt.Errorf("cache.url must not be negative, got %d", s.Cache.URL))
	}

	return errors.Join(errs...)
}

// Option configures a [Table].
type Option func(*Table)

// WithSettings replaces all externally configurable settings.
func WithSettings(s Settings) Option {
	return func(t *Table) {
		t.settings = s
	}
}

// WithForwardCacheCapacity sets the capacity of the path to match cache.
func WithForwardCacheCapacity(n int) Option {
	return func(t *Table) {
		t.settings.Cache.Forward = n
	}
}

// WithMultiMatchCacheCapacity sets the capacity of the path to all-matches cache.
func WithMultiMatchCacheCapacity(n int) Option {
	return func(t *Table) {
		t.settings.Cache.Multi = n
	}
}

// WithURLCacheCapacity sets the capacity of the reverse URL cache.
func WithURLCacheCapacity(n int) Option {
	return func(t *Table) {
		t.settings.Cache.URL = n
	}
}

// WithoutCaches disables all three caches.
func WithoutCaches() Option {
	return func(t *Table) {
		t.settings.Cache = CacheSettings{}
	}
}

// WithExcludePatterns adds patterns of paths that never match.
func WithExcludePatterns(patterns ...string) Option {
	return func(t *Table) {
		t.settings.Exclude = append(t.settings.Exclude, patterns...)
	}
}

// WithDefaultURL enables or disables the /controller/action/id fallback.
func WithDefaultURL(enabled bool) Option {
	return func(t *Table) {
		t.settings.DefaultURL = enabled
	}
}

// WithLogger sets the logger for table lifecycle events.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Table) {
		t.logger = logger
	}
}

// WithDiagnostics sets a diagnostic handler.
func WithDiagnostics(handler DiagnosticHandler) Option {
	return func(t *Table) {
		t.diagnostics = handler
	}
}

// WithMeterProvider records lookup and cache metrics through mp.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(t *Table) {
		t.meterProvider = mp
	}
}

// WithBloomFilter sizes the static-path bloom filter.
func WithBloomFilter(size uint64, hashFunctions int) Option {
	return func(t *Table) {
		t.bloomSize = size
		t.bloomHashes = hashFunctions
	}
}
