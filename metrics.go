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
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const meterName = "rivaas.dev/mapping"

var (
	attrHit  = attribute.String("result", "hit")
	attrMiss = attribute.String("result", "miss")
)

// recorder holds the table's instruments. With no meter provider configured
// it records into the no-op provider.
type recorder struct {
	cacheLookups metric.Int64Counter
	matches      metric.Int64Counter
	urls         metric.Int64Counter
	rules        metric.Int64Gauge
}

func newRecorder(mp metric.MeterProvider) (*recorder, error) {
	if mp == nil {
		mp = noop.NewMeterProvider()
	}
	meter := mp.Meter(meterName)

	cacheLookups, err := meter.Int64Counter("mapping.cache.lookups",
		metric.WithDescription("Cache lookups by cache and result"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}
	matches, err := meter.Int64Counter("mapping.matches",
		metric.WithDescription("Forward lookups by kind and outcome"),
		metric.WithUnit("{lookup}"))
	if err != nil {
		return nil, err
	}
	urls, err := meter.Int64Counter("mapping.urls",
		metric.WithDescription("Reverse URL builds by outcome"),
		metric.WithUnit("{url}"))
	if err != nil {
		return nil, err
	}
	rules, err := meter.Int64Gauge("mapping.rules",
		metric.WithDescription("Registered rules by tier"),
		metric.WithUnit("{rule}"))
	if err != nil {
		return nil, err
	}

	return &recorder{cacheLookups: cacheLookups, matches: matches, urls: urls, rules: rules}, nil
}

func (r *recorder) cache(name string, hit bool) {
	result := attrMiss
	if hit {
		result = attrHit
	}
	r.cacheLookups.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("cache", name), result))
}

func (r *recorder) match(kind string, matched bool) {
	outcome := "unmatched"
	if matched {
		outcome = "matched"
	}
	r.matches.Add(context.Background(), 1,
		metric.WithAttributes(attribute.String("kind", kind), attribute.String("outcome", outcome)))
}

func (r *recorder) url(outcome string) {
	r.urls.Add(context.Background(), 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (r *recorder) ruleCounts(path, status int) {
	ctx := context.Background()
	r.rules.Record(ctx, int64(path), metric.WithAttributes(attribute.String("tier", "path")))
	r.rules.Record(ctx, int64(status), metric.WithAttributes(attribute.String("tier", "status")))
}
