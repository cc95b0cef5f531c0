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

package dispatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/logging"
	"rivaas.dev/mapping/telemetry/semconv"
)

const (
	tracerName = "rivaas.dev/mapping/dispatch"

	defaultMaxForwards = 10
)

var (
	// ErrNoTable is returned when a nil table is given.
	ErrNoTable = errors.New("dispatch: table is nil")
	// ErrNoHandler is served as 404 when a match names a controller
	// nothing is registered for.
	ErrNoHandler = errors.New("dispatch: no handler registered")
	// ErrNoRenderer is served as 500 when a match names a view but no
	// renderer is configured.
	ErrNoRenderer = errors.New("dispatch: no view renderer configured")
	// ErrTooManyForwards is served as 500 when forwards loop.
	ErrTooManyForwards = errors.New("dispatch: too many forwards")
)

// HandlerFunc handles a matched request and may fail. A failure is served
// through the table's status rules; wrap it with [Error] to pick the status.
type HandlerFunc func(w http.ResponseWriter, r *http.Request) error

// ViewRenderer renders named views.
type ViewRenderer interface {
	Render(w http.ResponseWriter, r *http.Request, view string, params map[string]any) error
}

// ViewRendererFunc adapts a function to [ViewRenderer].
type ViewRendererFunc func(w http.ResponseWriter, r *http.Request, view string, params map[string]any) error

// Render implements [ViewRenderer].
func (f ViewRendererFunc) Render(w http.ResponseWriter, r *http.Request, view string, params map[string]any) error {
	return f(w, r, view, params)
}

// Option configures a [Dispatcher].
type Option func(*Dispatcher)

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) { d.logger = logger }
}

// WithTracerProvider sets the tracer provider. The default is the global one.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(d *Dispatcher) { d.tracer = tp.Tracer(tracerName) }
}

// WithPropagator sets the propagator used to read incoming trace context.
// The default is the global one.
func WithPropagator(p propagation.TextMapPropagator) Option {
	return func(d *Dispatcher) { d.propagator = p }
}

// WithViewRenderer sets the renderer for view targets.
func WithViewRenderer(r ViewRenderer) Option {
	return func(d *Dispatcher) { d.views = r }
}

// WithMaxForwards limits chained forwards per request.
func WithMaxForwards(n int) Option {
	return func(d *Dispatcher) { d.maxForwards = n }
}

// WithDefaultHandler sets the handler for matches naming a controller that
// has no registered handler. Without one those requests get a 404.
func WithDefaultHandler(h HandlerFunc) Option {
	return func(d *Dispatcher) { d.fallback = h }
}

// Dispatcher is an [http.Handler] backed by a mapping table.
type Dispatcher struct {
	table atomic.Pointer[mapping.Table]

	mu       sync.RWMutex
	handlers map[string]HandlerFunc

	views       ViewRenderer
	fallback    HandlerFunc
	logger      *slog.Logger
	tracer      trace.Tracer
	propagator  propagation.TextMapPropagator
	maxForwards int
}

// New creates a Dispatcher serving table, which must be initialized.
func New(table *mapping.Table, opts ...Option) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers:    make(map[string]HandlerFunc),
		logger:      mapping.NoopLogger(),
		tracer:      otel.GetTracerProvider().Tracer(tracerName),
		propagator:  otel.GetTextMapPropagator(),
		maxForwards: defaultMaxForwards,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = mapping.NoopLogger()
	}

	if _, err := d.SetTable(table); err != nil {
		return nil, err
	}

	return d, nil
}

// SetTable replaces the table and returns the previous one. Requests in
// flight finish with the table they started with.
func (d *Dispatcher) SetTable(table *mapping.Table) (*mapping.Table, error) {
	if table == nil {
		return nil, ErrNoTable
	}
	if !table.Ready() {
		return nil, mapping.ErrTableNotInitialized
	}

	return d.table.Swap(table), nil
}

// Table returns the table currently served.
func (d *Dispatcher) Table() *mapping.Table {
	return d.table.Load()
}

// Handle registers h for controller and action. An empty action registers
// h for every action of the controller without a handler of its own.
func (d *Dispatcher) Handle(controller, action string, h http.Handler) {
	d.HandleError(controller, action, func(w http.ResponseWriter, r *http.Request) error {
		h.ServeHTTP(w, r)
		return nil
	})
}

// HandleFunc registers fn for controller and action.
func (d *Dispatcher) HandleFunc(controller, action string, fn func(http.ResponseWriter, *http.Request)) {
	d.Handle(controller, action, http.HandlerFunc(fn))
}

// HandleError registers a handler that can fail.
func (d *Dispatcher) HandleError(controller, action string, fn HandlerFunc) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[controller+"/"+action] = fn
}

func (d *Dispatcher) handler(controller, action string) (HandlerFunc, bool) {
	if action == "" {
		action = mapping.DefaultAction
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if h, ok := d.handlers[controller+"/"+action]; ok {
		return h, true
	}
	h, ok := d.handlers[controller+"/"]

	return h, ok
}

// ServeHTTP implements [http.Handler].
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := d.propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	ctx, span := d.tracer.Start(ctx, r.Method+" "+r.URL.Path,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String(semconv.HTTPMethod, r.Method),
			attribute.String(semconv.HTTPTarget, r.URL.Path),
		),
	)
	defer span.End()

	r = r.WithContext(ctx)
	table := d.table.Load()
	rw := &responseWriter{ResponseWriter: w}

	defer func() {
		if rec := recover(); rec != nil {
			if rec == http.ErrAbortHandler { //nolint:errorlint // sentinel compared by identity
				panic(rec)
			}
			err, ok := rec.(error)
			if !ok {
				err = fmt.Errorf("%v", rec)
			}
			err = fmt.Errorf("panic: %w", err)
			logging.WithTrace(ctx, d.logger).Error("handler panicked", "path", r.URL.Path, "error", err)
			span.RecordError(err)
			if !rw.wroteHeader() {
				d.serveStatus(rw, r, table, http.StatusInternalServerError, err)
			}
		}

		status := rw.Status()
		span.SetAttributes(attribute.Int(semconv.HTTPStatusCode, status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}()

	d.serve(rw, r, table)
}

func (d *Dispatcher) serve(w http.ResponseWriter, r *http.Request, table *mapping.Table) {
	path := r.URL.Path

	m := table.MatchMethod(path, r.Method)
	if m == nil {
		if allowed := table.AllowedMethods(path); len(allowed) > 0 {
			w.Header().Set("Allow", strings.Join(allowed, ", "))
			d.serveStatus(w, r, table, http.StatusMethodNotAllowed,
				fmt.Errorf("method %s is not allowed for %s", r.Method, path))
			return
		}
		logging.WithTrace(r.Context(), d.logger).Debug("no mapping", "method", r.Method, "path", path)
		d.serveStatus(w, r, table, http.StatusNotFound, nil)

		return
	}

	if err := d.serveMatch(w, r, table, m); err != nil {
		d.fail(w, r, table, err)
	}
}

func (d *Dispatcher) fail(w http.ResponseWriter, r *http.Request, table *mapping.Table, err error) {
	trace.SpanFromContext(r.Context()).RecordError(err)
	if tw, ok := w.(tracker); ok && tw.wroteHeader() {
		logging.WithTrace(r.Context(), d.logger).Error("handler failed after writing", "path", r.URL.Path, "error", err)
		return
	}
	d.serveStatus(w, r, table, statusOf(err), err)
}

func (d *Dispatcher) serveMatch(w http.ResponseWriter, r *http.Request, table *mapping.Table, m *mapping.Match) error {
	if m.Params == nil {
		m.Params = make(map[string]any)
	}

	span := trace.SpanFromContext(r.Context())
	if pattern := m.Rule().Pattern(); pattern != "" {
		span.SetAttributes(attribute.String(semconv.HTTPRoute, pattern))
	}

	if m.ParseRequest {
		if err := r.ParseForm(); err != nil {
			return Error(http.StatusBadRequest, err)
		}
		for k, vs := range r.Form {
			if _, taken := m.Params[k]; taken || len(vs) == 0 {
				continue
			}
			if len(vs) == 1 {
				m.Params[k] = vs[0]
			} else {
				m.Params[k] = vs
			}
		}
	}

	r = r.WithContext(withMatch(r.Context(), m))

	if m.URI() != "" {
		return d.forward(w, r, table, m)
	}

	if controller := m.ControllerName(); controller != "" {
		action := m.ActionName()
		span.SetAttributes(
			attribute.String(semconv.MappingController, controller),
			attribute.String(semconv.MappingAction, action),
		)
		h, ok := d.handler(controller, action)
		if !ok && d.fallback != nil {
			h, ok = d.fallback, true
		}
		if !ok {
			return Error(http.StatusNotFound, fmt.Errorf("%w for %s/%s", ErrNoHandler, controller, action))
		}

		return h(w, r)
	}

	if view := m.ViewName(); view != "" {
		span.SetAttributes(attribute.String(semconv.MappingView, view))
		if d.views == nil {
			return fmt.Errorf("%w: view %q", ErrNoRenderer, view)
		}

		return d.views.Render(w, r, view, m.Params)
	}

	return Error(http.StatusNotFound, ErrNoHandler)
}

// forward serves the rule's URI as if it had been requested. Parameters of
// the forwarding match are kept unless the new match sets them.
func (d *Dispatcher) forward(w http.ResponseWriter, r *http.Request, table *mapping.Table, m *mapping.Match) error {
	depth := depthFromContext(r.Context()) + 1
	if depth > d.maxForwards {
		return fmt.Errorf("%w: %s", ErrTooManyForwards, m.URI())
	}

	target, err := url.Parse(m.URI())
	if err != nil {
		return fmt.Errorf("dispatch: forward uri %q: %w", m.URI(), err)
	}

	next := table.MatchMethod(target.Path, r.Method)
	if next == nil {
		return Error(http.StatusNotFound, fmt.Errorf("forward target %s has no mapping", target.Path))
	}
	if next.Params == nil {
		next.Params = make(map[string]any, len(m.Params))
	}
	for k, v := range m.Params {
		if _, ok := next.Params[k]; !ok {
			next.Params[k] = v
		}
	}

	trace.SpanFromContext(r.Context()).SetAttributes(attribute.String(semconv.MappingForward, target.Path))

	fr := r.Clone(context.WithValue(r.Context(), depthKey, depth))
	fr.URL.Path = target.Path
	fr.URL.RawPath = ""
	if target.RawQuery != "" {
		fr.URL.RawQuery = target.RawQuery
	}
	logging.WithTrace(r.Context(), d.logger).Debug("forward", "from", r.URL.Path, "to", target.Path, "depth", depth)

	return d.serveMatch(w, fr, table, next)
}

// serveStatus serves status through the table's status rules. An error
// filtered rule for err is preferred over the plain rule for status. A
// failure while serving a status rule falls back to a problem response.
func (d *Dispatcher) serveStatus(w http.ResponseWriter, r *http.Request, table *mapping.Table, status int, err error) {
	if StatusFromContext(r.Context()) == 0 {
		m := table.MatchStatusCodeError(status, err)
		if m == nil {
			m = table.MatchStatusCode(status)
		}
		if m != nil {
			ctx := context.WithValue(r.Context(), statusKey, status)
			if err != nil {
				ctx = context.WithValue(ctx, errorKey, err)
			}
			sw := &statusWriter{ResponseWriter: w, code: status}
			herr := d.serveMatch(sw, r.WithContext(ctx), table, m)
			if herr == nil {
				return
			}
			logging.WithTrace(r.Context(), d.logger).Error("status handler failed",
				"status", status, "error", herr)
			if sw.wroteHeader() {
				return
			}
		}
	}

	p := problem(r, status, err)
	logger := logging.WithTrace(r.Context(), d.logger)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", "status", status, "path", r.URL.Path, "error_id", p.Extensions["error_id"], "error", err)
	} else {
		logger.Debug("request rejected", "status", status, "path", r.URL.Path)
	}
	if werr := writeProblem(w, p); werr != nil {
		logger.Warn("failed to write problem response", "error", werr)
	}
}
