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

// Command mappingctl inspects and serves URL mapping definitions.
//
// Usage:
//
//	mappingctl <command> [flags] [args]
//
// Commands:
//
//	routes   list the rules of a definition in precedence order
//	match    resolve a path against a definition
//	url      build a URL from a controller, action and parameters
//	config   print the effective table settings
//	serve    serve a definition over HTTP with Prometheus metrics
//
// Every command reads the definition named by -f (mapping.yaml by default).
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/definition"
	"rivaas.dev/mapping/logging"
)

const serviceName = "mappingctl"

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

// errUsage marks errors caused by bad command lines. It maps to exit code 2.
var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(ctx context.Context, c *cli, args []string) error
}

var commands = []command{
	{name: "routes", summary: "list the rules of a definition", run: runRoutes},
	{name: "match", summary: "resolve a path against a definition", run: runMatch},
	{name: "url", summary: "build a URL from a controller, action and parameters", run: runURL},
	{name: "config", summary: "print the effective table settings", run: runConfig},
	{name: "serve", summary: "serve a definition over HTTP", run: runServe},
}

// cli carries the process environment so commands can be run from tests.
type cli struct {
	stdout  io.Writer
	stderr  io.Writer
	environ []string
}

// common holds the flags shared by every command.
type common struct {
	file      string
	envPrefix string
	logLevel  string
	logFormat string
}

// register adds the shared flags. level is the default log level.
func (o *common) register(fs *flag.FlagSet, level string) {
	fs.StringVar(&o.file, "f", "mapping.yaml", "definition `file` (.yaml, .yml, .json or .toml)")
	fs.StringVar(&o.envPrefix, "env", "", "environment variable `prefix` for settings overrides")
	fs.StringVar(&o.logLevel, "log-level", level, "log `level` (debug, info, warn, error)")
	fs.StringVar(&o.logFormat, "log-format", "console", "log `format` (console, text, json)")
}

func (o *common) logger(c *cli) (*slog.Logger, error) {
	level, err := logging.ParseLevel(o.logLevel)
	if err != nil {
		return nil, fmt.Errorf("%w: -log-level: %w", errUsage, err)
	}

	l, err := logging.New(
		logging.WithHandlerType(logging.HandlerType(o.logFormat)),
		logging.WithOutput(c.stderr),
		logging.WithLevel(level),
		logging.WithServiceName(serviceName),
		logging.WithServiceVersion(version),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: -log-format: %w", errUsage, err)
	}

	return l.Logger(), nil
}

// load reads the definition and builds an initialized table.
func (o *common) load(ctx context.Context, logger *slog.Logger, opts ...mapping.Option) (*definition.Definition, *mapping.Table, error) {
	defOpts := []definition.Option{definition.WithLogger(logger)}
	if o.envPrefix != "" {
		defOpts = append(defOpts, definition.WithEnv(o.envPrefix))
	}

	def, err := definition.LoadFile(ctx, o.file, defOpts...)
	if err != nil {
		return nil, nil, err
	}

	table, err := def.Table(append([]mapping.Option{mapping.WithLogger(logger)}, opts...)...)
	if err != nil {
		return nil, nil, fmt.Errorf("building table from %s: %w", o.file, err)
	}

	return def, table, nil
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(serviceName+" "+name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)

	return fs
}

// parse parses args and wraps failures as usage errors.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return err
		}

		return fmt.Errorf("%w: %w", errUsage, err)
	}

	return nil
}

func (c *cli) usage() {
	fmt.Fprintf(c.stderr, "Usage: %s <command> [flags] [args]\n\nCommands:\n", serviceName)
	for _, cmd := range commands {
		fmt.Fprintf(c.stderr, "  %-8s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprintf(c.stderr, "\nRun '%s <command> -h' for the flags of a command.\n", serviceName)
}

// run executes the command line and returns the process exit code.
func (c *cli) run(ctx context.Context, args []string) int {
	if len(args) == 0 {
		c.usage()
		return 2
	}

	switch args[0] {
	case "-h", "-help", "--help", "help":
		c.usage()
		return 0
	case "-version", "--version", "version":
		fmt.Fprintln(c.stdout, serviceName, version)
		return 0
	}

	for _, cmd := range commands {
		if cmd.name != args[0] {
			continue
		}

		err := cmd.run(ctx, c, args[1:])
		switch {
		case err == nil:
			return 0
		case errors.Is(err, flag.ErrHelp):
			return 0
		case errors.Is(err, errUsage):
			fmt.Fprintf(c.stderr, "%s %s: %v\n", serviceName, cmd.name, err)
			return 2
		default:
			fmt.Fprintf(c.stderr, "%s %s: %v\n", serviceName, cmd.name, err)
			return 1
		}
	}

	fmt.Fprintf(c.stderr, "%s: unknown command %q\n\n", serviceName, args[0])
	c.usage()

	return 2
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	c := &cli{stdout: os.Stdout, stderr: os.Stderr, environ: os.Environ()}
	code := c.run(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}
