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
	"net/http"
	"strings"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetrichttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.17.0"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// defaultExportInterval matches the OpenTelemetry SDK default.
const defaultExportInterval = 30 * time.Second

// telemetryOptions selects the exporters of the serve command. Every
// exporter is optional; with none enabled the providers are no-ops.
type telemetryOptions struct {
	metricsAddr    string
	metricsPath    string
	metricsStdout  bool
	exportInterval time.Duration
	traceStdout    bool
	otlpEndpoint   string
}

func (o *telemetryOptions) metricsEnabled() bool {
	return o.metricsAddr != "" || o.metricsStdout || o.otlpEndpoint != ""
}

func (o *telemetryOptions) tracingEnabled() bool {
	return o.traceStdout || o.otlpEndpoint != ""
}

// telemetry owns the SDK providers built from telemetryOptions.
type telemetry struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider *sdktrace.TracerProvider

	// metricsHandler serves the Prometheus registry; nil unless a
	// metrics address was configured.
	metricsHandler http.Handler
}

// newTelemetry builds one meter provider and one tracer provider, each
// fanning out to every enabled exporter. Stdout exporters write to w.
func newTelemetry(ctx context.Context, o telemetryOptions, w io.Writer) (*telemetry, error) {
	t := &telemetry{}
	res := newResource()

	interval := o.exportInterval
	if interval <= 0 {
		interval = defaultExportInterval
	}

	if o.metricsEnabled() {
		mopts := []sdkmetric.Option{sdkmetric.WithResource(res)}

		if o.metricsAddr != "" {
			reader, handler, err := newPrometheus()
			if err != nil {
				return nil, err
			}
			mopts = append(mopts, sdkmetric.WithReader(reader))
			t.metricsHandler = handler
		}
		if o.metricsStdout {
			exporter, err := stdoutmetric.New(stdoutmetric.WithWriter(w))
			if err != nil {
				return nil, fmt.Errorf("failed to create stdout metric exporter: %w", err)
			}
			mopts = append(mopts, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
		}
		if o.otlpEndpoint != "" {
			endpoint, insecure := splitEndpoint(o.otlpEndpoint)
			opts := []otlpmetrichttp.Option{otlpmetrichttp.WithEndpoint(endpoint)}
			if insecure {
				opts = append(opts, otlpmetrichttp.WithInsecure())
			}
			exporter, err := otlpmetrichttp.New(ctx, opts...)
			if err != nil {
				return nil, fmt.Errorf("failed to create OTLP metric exporter: %w", err)
			}
			mopts = append(mopts, sdkmetric.WithReader(
				sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(interval))))
		}

		t.meterProvider = sdkmetric.NewMeterProvider(mopts...)
	}

	if o.tracingEnabled() {
		topts := []sdktrace.TracerProviderOption{sdktrace.WithResource(res)}

		if o.traceStdout {
			exporter, err := stdouttrace.New(stdouttrace.WithWriter(w))
			if err != nil {
				t.shutdownPartial()
				return nil, fmt.Errorf("failed to create stdout trace exporter: %w", err)
			}
			topts = append(topts, sdktrace.WithBatcher(exporter))
		}
		if o.otlpEndpoint != "" {
			endpoint, insecure := splitEndpoint(o.otlpEndpoint)
			opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(endpoint)}
			if insecure {
				opts = append(opts, otlptracehttp.WithInsecure())
			}
			exporter, err := otlptracehttp.New(ctx, opts...)
			if err != nil {
				t.shutdownPartial()
				return nil, fmt.Errorf("failed to create OTLP trace exporter: %w", err)
			}
			topts = append(topts, sdktrace.WithBatcher(exporter))
		}

		t.tracerProvider = sdktrace.NewTracerProvider(topts...)
	}

	return t, nil
}

// MeterProvider returns the SDK provider, or a no-op one when metrics are
// disabled.
func (t *telemetry) MeterProvider() metric.MeterProvider {
	if t.meterProvider == nil {
		return metricnoop.NewMeterProvider()
	}
	return t.meterProvider
}

// TracerProvider returns the SDK provider, or a no-op one when tracing is
// disabled.
func (t *telemetry) TracerProvider() trace.TracerProvider {
	if t.tracerProvider == nil {
		return tracenoop.NewTracerProvider()
	}
	return t.tracerProvider
}

// Shutdown flushes and stops both providers.
func (t *telemetry) Shutdown(ctx context.Context) error {
	var errs []error
	if t.tracerProvider != nil {
		if err := t.tracerProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("tracer provider: %w", err))
		}
	}
	if t.meterProvider != nil {
		if err := t.meterProvider.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("meter provider: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (t *telemetry) shutdownPartial() {
	if t.meterProvider != nil {
		_ = t.meterProvider.Shutdown(context.Background()) //nolint:errcheck // already failing
	}
}

// newPrometheus returns a reader exporting to a private registry and the
// scrape handler for it.
func newPrometheus() (sdkmetric.Reader, http.Handler, error) {
	registry := promclient.NewRegistry()

	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create Prometheus exporter: %w", err)
	}

	return exporter, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}), nil
}

func newResource() *resource.Resource {
	return resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(serviceName),
		semconv.ServiceVersion(version),
	)
}

// splitEndpoint reduces an OTLP endpoint URL to host:port. Plain http
// endpoints are reported as insecure.
func splitEndpoint(endpoint string) (hostport string, insecure bool) {
	if rest, ok := strings.CutPrefix(endpoint, "http://"); ok {
		endpoint, insecure = rest, true
	} else if rest, ok := strings.CutPrefix(endpoint, "https://"); ok {
		endpoint = rest
	}
	if i := strings.IndexByte(endpoint, '/'); i != -1 {
		endpoint = endpoint[:i]
	}
	return endpoint, insecure
}
