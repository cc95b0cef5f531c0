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

package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// HandlerType selects the output format.
type HandlerType string

const (
	// JSONHandler outputs structured JSON logs.
	JSONHandler HandlerType = "json"
	// TextHandler outputs key=value text logs.
	TextHandler HandlerType = "text"
	// ConsoleHandler outputs human-readable colored logs.
	ConsoleHandler HandlerType = "console"
)

// Level is a log level.
type Level = slog.Level

// Log levels.
const (
	LevelDebug = slog.LevelDebug
	LevelInfo  = slog.LevelInfo
	LevelWarn  = slog.LevelWarn
	LevelError = slog.LevelError
)

// ErrInvalidHandler is returned for an unknown handler type.
var ErrInvalidHandler = errors.New("invalid handler type")

// Logger owns a configured [slog.Logger]. Its level can be changed at
// runtime with [Logger.SetLevel].
//
// Thread-safe: all methods are safe for concurrent use.
type Logger struct {
	handlerType    HandlerType
	output         io.Writer
	level          *slog.LevelVar
	serviceName    string
	serviceVersion string
	addSource      bool
	color          bool

	slogger *slog.Logger
}

// Option configures a [Logger].
type Option func(*Logger)

// New creates a Logger. The default writes JSON at info level to stdout.
func New(opts ...Option) (*Logger, error) {
	l := &Logger{
		handlerType: JSONHandler,
		output:      os.Stdout,
		level:       new(slog.LevelVar),
		color:       true,
	}
	for _, opt := range opts {
		opt(l)
	}

	if l.output == nil {
		return nil, errors.New("invalid configuration: output writer cannot be nil")
	}

	handlerOpts := &slog.HandlerOptions{Level: l.level, AddSource: l.addSource}

	var handler slog.Handler
	switch l.handlerType {
	case JSONHandler:
		handler = slog.NewJSONHandler(l.output, handlerOpts)
	case TextHandler:
		handler = slog.NewTextHandler(l.output, handlerOpts)
	case ConsoleHandler:
		handler = newConsoleHandler(l.output, handlerOpts, l.color)
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidHandler, l.handlerType)
	}

	logger := slog.New(handler)
	if l.serviceName != "" {
		logger = logger.With("service", l.serviceName)
	}
	if l.serviceVersion != "" {
		logger = logger.With("version", l.serviceVersion)
	}
	l.slogger = logger

	return l, nil
}

// MustNew is like [New] but panics on error.
func MustNew(opts ...Option) *Logger {
	l, err := New(opts...)
	if err != nil {
		panic("logging initialization failed: " + err.Error())
	}

	return l
}

// Logger returns the underlying [slog.Logger].
func (l *Logger) Logger() *slog.Logger {
	return l.slogger
}

// SetLevel changes the minimum level of every logger derived from l.
func (l *Logger) SetLevel(level Level) {
	l.level.Set(level)
}

// Level returns the current minimum level.
func (l *Logger) Level() Level {
	return l.level.Level()
}

// ParseLevel parses "debug", "info", "warn" or "error", case-insensitively.
func ParseLevel(s string) (Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return LevelInfo, fmt.Errorf("invalid log level %q: %w", s, err)
	}

	return level, nil
}
