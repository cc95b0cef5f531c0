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
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"rivaas.dev/mapping"
	"rivaas.dev/mapping/dispatch"
	"rivaas.dev/mapping/middleware/accesslog"
	"rivaas.dev/mapping/middleware/compression"
	"rivaas.dev/mapping/middleware/requestid"
)

type serveOptions struct {
	common
	telemetryOptions
	addr            string
	accessLog       bool
	compress        bool
	slowThreshold   time.Duration
	shutdownTimeout time.Duration
}

func runServe(ctx context.Context, c *cli, args []string) error {
	var opts serveOptions
	fs := c.flagSet("serve")
	opts.register(fs, "info")
	fs.StringVar(&opts.addr, "addr", ":8080", "listen `address`")
	fs.StringVar(&opts.metricsAddr, "metrics-addr", ":9090", "Prometheus listen `address`; empty disables metrics")
	fs.StringVar(&opts.metricsPath, "metrics-path", "/metrics", "Prometheus scrape `path`")
	fs.BoolVar(&opts.metricsStdout, "metrics-stdout", false, "write metrics to stderr every export interval")
	fs.DurationVar(&opts.exportInterval, "export-interval", defaultExportInterval, "push `interval` for stderr and OTLP metrics")
	fs.BoolVar(&opts.traceStdout, "trace", false, "write spans to stderr")
	fs.StringVar(&opts.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP collector `url` for metrics and spans")
	fs.BoolVar(&opts.accessLog, "access-log", true, "log every request")
	fs.BoolVar(&opts.compress, "compress", true, "compress responses with brotli or gzip")
	fs.DurationVar(&opts.slowThreshold, "slow", time.Second, "log requests slower than `duration` at warn level")
	fs.DurationVar(&opts.shutdownTimeout, "shutdown-timeout", 10*time.Second, "graceful shutdown `timeout`")
	if err := parse(fs, args); err != nil {
		return err
	}

	logger, err := opts.logger(c)
	if err != nil {
		return err
	}

	return opts.serve(ctx, c, logger)
}

func (o *serveOptions) serve(ctx context.Context, c *cli, logger *slog.Logger) error {
	tel, err := newTelemetry(ctx, o.telemetryOptions, c.stderr)
	if err != nil {
		return err
	}
	defer shutdown(logger, "telemetry", o.shutdownTimeout, tel.Shutdown)
	tableOpts := []mapping.Option{mapping.WithMeterProvider(tel.MeterProvider())}

	_, tbl, err := o.load(ctx, logger, tableOpts...)
	if err != nil {
		return err
	}

	d, err := newPreviewDispatcher(tbl, logger, tel.TracerProvider())
	if err != nil {
		tbl.Close()
		return err
	}

	var handler http.Handler = d
	if o.compress {
		handler = compression.New()(handler)
	}
	if o.accessLog {
		handler = accesslog.New(accesslog.WithLogger(logger), accesslog.WithSlowThreshold(o.slowThreshold))(handler)
	}
	handler = requestid.New()(handler)

	servers := []*http.Server{{
		Addr:              o.addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}}
	if tel.metricsHandler != nil {
		mux := http.NewServeMux()
		mux.Handle(o.metricsPath, tel.metricsHandler)
		servers = append(servers, &http.Server{
			Addr:              o.metricsAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		})
	}

	listeners := make([]net.Listener, 0, len(servers))
	for _, srv := range servers {
		ln, lerr := net.Listen("tcp", srv.Addr)
		if lerr != nil {
			for _, l := range listeners {
				_ = l.Close() //nolint:errcheck // already failing
			}
			tbl.Close()

			return fmt.Errorf("listening on %s: %w", srv.Addr, lerr)
		}
		listeners = append(listeners, ln)
	}

	errCh := make(chan error, len(servers))
	for i, srv := range servers {
		ln := listeners[i]
		logger.Info("listening", "addr", ln.Addr().String())
		go func() {
			if serr := srv.Serve(ln); serr != nil && !errors.Is(serr, http.ErrServerClosed) {
				errCh <- serr
			}
		}()
	}

	reload, stopReload := setupReloadSignal()
	defer stopReload()

	for {
		select {
		case <-reload:
			o.reload(ctx, logger, d, tableOpts)
			continue
		case err = <-errCh:
			logger.Error("server failed", "error", err)
		case <-ctx.Done():
			logger.Info("shutting down")
		}

		break
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), o.shutdownTimeout)
	defer cancel()
	for _, srv := range servers {
		if serr := srv.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("shutdown incomplete", "addr", srv.Addr, "error", serr)
		}
	}
	d.Table().Close()

	return err
}

// reload rebuilds the table from the definition file. On failure the
// current table keeps serving.
func (o *serveOptions) reload(ctx context.Context, logger *slog.Logger, d *dispatch.Dispatcher, tableOpts []mapping.Option) {
	_, tbl, err := o.load(ctx, logger, tableOpts...)
	if err != nil {
		logger.Error("reload failed, keeping current rules", "file", o.file, "error", err)
		return
	}
	old, err := d.SetTable(tbl)
	if err != nil {
		tbl.Close()
		logger.Error("reload failed, keeping current rules", "file", o.file, "error", err)
		return
	}
	logger.Info("rules reloaded", "file", o.file, "rules", len(tbl.Rules()))

	// Requests in flight may still hold the old table.
	time.AfterFunc(o.shutdownTimeout, old.Close)
}

func shutdown(logger *slog.Logger, what string, timeout time.Duration, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		logger.Warn("shutdown failed", "component", what, "error", err)
	}
}

// preview is the body written for every matched request by the serve
// command, which has no application handlers.
type preview struct {
	Rule       string         `json:"rule"`
	Controller string         `json:"controller,omitempty"`
	Action     string         `json:"action,omitempty"`
	View       string         `json:"view,omitempty"`
	Status     int            `json:"status,omitempty"`
	Error      string         `json:"error,omitempty"`
	Params     map[string]any `json:"params,omitempty"`
}

// newPreviewDispatcher serves tbl with handlers that describe each match
// as JSON.
func newPreviewDispatcher(tbl *mapping.Table, logger *slog.Logger, tp trace.TracerProvider) (*dispatch.Dispatcher, error) {
	return dispatch.New(tbl,
		dispatch.WithLogger(logger),
		dispatch.WithTracerProvider(tp),
		dispatch.WithPropagator(propagation.TraceContext{}),
		dispatch.WithDefaultHandler(func(w http.ResponseWriter, r *http.Request) error {
			return writePreview(w, r, "")
		}),
		dispatch.WithViewRenderer(dispatch.ViewRendererFunc(
			func(w http.ResponseWriter, r *http.Request, view string, _ map[string]any) error {
				return writePreview(w, r, view)
			})),
	)
}

func writePreview(w http.ResponseWriter, r *http.Request, view string) error {
	m := dispatch.MatchFromContext(r.Context())
	if m == nil {
		return dispatch.Error(http.StatusNotFound, nil)
	}

	p := preview{
		Rule:   m.Rule().String(),
		View:   view,
		Status: dispatch.StatusFromContext(r.Context()),
		Params: m.Params,
	}
	if controller := m.ControllerName(); controller != "" {
		p.Controller = controller
		p.Action = m.ActionName()
		if p.Action == "" {
			p.Action = mapping.DefaultAction
		}
	}
	if err := dispatch.ErrorFromContext(r.Context()); err != nil {
		p.Error = err.Error()
	}

	w.Header().Set("Content-Type", "application/json")
	if p.Status != 0 {
		w.WriteHeader(p.Status)
	}

	return json.NewEncoder(w).Encode(p)
}
