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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"net/http"
	"net/url"
	"os"
	"slices"
	"strings"

	"github.com/charmbracelet/colorprofile"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"golang.org/x/term"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/config/codec"
)

// errNoMatch is returned by the match command when no rule applies.
var errNoMatch = errors.New("no rule matches")

func runRoutes(ctx context.Context, c *cli, args []string) error {
	var opts common
	fs := c.flagSet("routes")
	opts.register(fs, "warn")
	color := fs.Bool("color", true, "color methods and headers when the output supports it")
	if err := parse(fs, args); err != nil {
		return err
	}

	logger, err := opts.logger(c)
	if err != nil {
		return err
	}
	_, tbl, err := opts.load(ctx, logger, mapping.WithoutCaches())
	if err != nil {
		return err
	}
	defer tbl.Close()

	w := colorprofile.NewWriter(c.stdout, c.environ)
	if !*color {
		w.Profile = colorprofile.NoTTY
	}
	renderRules(w, tbl.Rules(), terminalWidth(c.stdout))

	return nil
}

var methodStyles = map[string]lipgloss.Style{
	http.MethodGet:     lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true),
	http.MethodPost:    lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true),
	http.MethodPut:     lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true),
	http.MethodDelete:  lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true),
	http.MethodPatch:   lipgloss.NewStyle().Foreground(lipgloss.Color("13")).Bold(true),
	http.MethodHead:    lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Bold(true),
	http.MethodOptions: lipgloss.NewStyle().Foreground(lipgloss.Color("7")).Bold(true),
}

var statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("208")).Bold(true)

// renderRules writes rules as a table. width limits the table when positive.
func renderRules(w io.Writer, rules []*mapping.Rule, width int) {
	rows := make([][]string, 0, len(rules))
	for i, r := range rules {
		method := r.Method()
		if method == "" {
			method = "*"
		} else if style, ok := methodStyles[method]; ok {
			method = style.Render(method)
		}

		pattern := r.Pattern()
		if r.IsStatus() {
			method = "-"
			pattern = statusStyle.Render(fmt.Sprint(r.Status()))
			if typ := r.ErrorType(); typ != nil {
				pattern += " (" + typ.String() + ")"
			}
		}

		name := r.Name()
		if name == "" {
			name = "-"
		}

		rows = append(rows, []string{fmt.Sprint(i + 1), name, method, pattern, ruleTarget(r), fmt.Sprint(r.ConstraintCount())})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("240"))).
		StyleFunc(func(row, _ int) lipgloss.Style {
			style := lipgloss.NewStyle().Align(lipgloss.Left).Padding(0, 1)
			if row == table.HeaderRow {
				style = style.Bold(true).Foreground(lipgloss.Color("230"))
			}

			return style
		}).
		Headers("#", "Name", "Method", "Pattern", "Target", "Constraints").
		Rows(rows...)

	out := t.Render()
	if width > 0 && lipgloss.Width(out) > width {
		out = t.Width(width).Render()
	}
	_, _ = fmt.Fprintln(w, out) //nolint:errcheck // display output
}

// ruleTarget renders where a rule sends a request.
func ruleTarget(r *mapping.Rule) string {
	switch {
	case r.URI() != "":
		return "uri:" + r.URI()
	case !r.Controller().IsZero():
		s := r.Controller().String()
		if !r.Action().IsZero() {
			s += "/" + r.Action().String()
		}

		return s
	case !r.View().IsZero():
		return "view:" + r.View().String()
	default:
		return "-"
	}
}

// terminalWidth returns the width of w when it is a terminal, or 0.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}

	return width
}

func runMatch(ctx context.Context, c *cli, args []string) error {
	var opts common
	fs := c.flagSet("match")
	opts.register(fs, "warn")
	method := fs.String("method", "", "HTTP `method` to match; empty matches any")
	all := fs.Bool("all", false, "print every matching rule in precedence order")
	if err := parse(fs, args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("%w: expected exactly one path", errUsage)
	}
	path, err := url.PathUnescape(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w: invalid path: %w", errUsage, err)
	}

	logger, err := opts.logger(c)
	if err != nil {
		return err
	}
	_, tbl, err := opts.load(ctx, logger, mapping.WithoutCaches())
	if err != nil {
		return err
	}
	defer tbl.Close()

	var matches []*mapping.Match
	if *all {
		matches = tbl.MatchAllMethod(path, *method)
	} else if m := tbl.MatchMethod(path, *method); m != nil {
		matches = []*mapping.Match{m}
	}
	if len(matches) == 0 {
		if allowed := tbl.AllowedMethods(path); len(allowed) > 0 {
			return fmt.Errorf("%w %s %s (allowed: %s)", errNoMatch, *method, path, strings.Join(allowed, ", "))
		}

		return fmt.Errorf("%w %s", errNoMatch, path)
	}

	for i, m := range matches {
		if i > 0 {
			fmt.Fprintln(c.stdout)
		}
		writeMatch(c.stdout, m)
	}

	return nil
}

func writeMatch(w io.Writer, m *mapping.Match) {
	fmt.Fprintf(w, "rule:       %s\n", m.Rule())
	if uri := m.URI(); uri != "" {
		fmt.Fprintf(w, "uri:        %s\n", uri)
	}
	if controller := m.ControllerName(); controller != "" {
		fmt.Fprintf(w, "controller: %s\n", controller)
		action := m.ActionName()
		if action == "" {
			action = mapping.DefaultAction
		}
		fmt.Fprintf(w, "action:     %s\n", action)
	}
	if view := m.ViewName(); view != "" {
		fmt.Fprintf(w, "view:       %s\n", view)
	}
	for _, k := range slices.Sorted(maps.Keys(m.Params)) {
		fmt.Fprintf(w, "param:      %s=%v\n", k, m.Params[k])
	}
}

func runURL(ctx context.Context, c *cli, args []string) error {
	var opts common
	fs := c.flagSet("url")
	opts.register(fs, "warn")
	controller := fs.String("controller", "", "controller `name`")
	action := fs.String("action", "", "action `name`")
	name := fs.String("name", "", "build with the rule registered under `name`")
	uri := fs.String("uri", "", "append the parameters to a fixed `uri` instead")
	encoding := fs.String("encoding", "", "character `encoding` of the URL; empty means UTF-8")
	fragment := fs.String("fragment", "", "URL `fragment`")
	strict := fs.Bool("strict", false, "fail instead of falling back to /controller/action/id")
	if err := parse(fs, args); err != nil {
		return err
	}

	params, err := parseParams(fs.Args())
	if err != nil {
		return err
	}
	if *name != "" {
		params[mapping.ParamMappingName] = *name
	}

	logger, err := opts.logger(c)
	if err != nil {
		return err
	}
	_, tbl, err := opts.load(ctx, logger, mapping.WithoutCaches())
	if err != nil {
		return err
	}
	defer tbl.Close()

	var built string
	if *uri != "" {
		built, err = tbl.BuildURI(*uri, params, *encoding)
	} else {
		built, err = tbl.URL(mapping.URLRequest{
			Controller: *controller,
			Action:     *action,
			Params:     params,
			Encoding:   *encoding,
			Fragment:   *fragment,
			NoDefault:  *strict,
		})
	}
	if err != nil {
		return err
	}
	fmt.Fprintln(c.stdout, built)

	return nil
}

// parseParams reads name=value arguments. A repeated name collects a list.
func parseParams(args []string) (map[string]any, error) {
	params := make(map[string]any, len(args))
	for _, arg := range args {
		k, v, ok := strings.Cut(arg, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("%w: parameter %q is not name=value", errUsage, arg)
		}
		switch prev := params[k].(type) {
		case nil:
			params[k] = v
		case string:
			params[k] = []string{prev, v}
		case []string:
			params[k] = append(prev, v)
		}
	}

	return params, nil
}

func runConfig(ctx context.Context, c *cli, args []string) error {
	var opts common
	fs := c.flagSet("config")
	opts.register(fs, "warn")
	format := fs.String("format", string(codec.TypeYAML), "output `format` (yaml, json, toml, msgpack)")
	if err := parse(fs, args); err != nil {
		return err
	}

	enc, err := codec.GetEncoder(codec.Type(*format))
	if err != nil {
		return fmt.Errorf("%w: -format: %w (registered: %v)", errUsage, err, codec.Encoders())
	}

	logger, err := opts.logger(c)
	if err != nil {
		return err
	}
	def, tbl, err := opts.load(ctx, logger, mapping.WithoutCaches())
	if err != nil {
		return err
	}
	tbl.Close()

	out, err := enc.Encode(map[string]any{"mapping": def.Settings})
	if err != nil {
		return fmt.Errorf("encoding settings: %w", err)
	}
	_, err = c.stdout.Write(out)

	return err
}
