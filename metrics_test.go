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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func collectSums(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	sums := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			for _, dp := range sum.DataPoints {
				sums[m.Name] += dp.Value
			}
		}
	}

	return sums
}

// TestMetricsRecorded tests that lookups and builds are counted.
func TestMetricsRecorded(t *testing.T) {
	t.Parallel()

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	table := newBookTable(t, WithMeterProvider(provider))

	table.Match("/books/1")
	table.Match("/a/b/c/d")
	table.MatchStatusCode(404)
	_, err := table.BuildURL("book", "show", map[string]any{"id": 1}, "")
	require.NoError(t, err)
	_, err = table.BuildURL("book", "show", map[string]any{"id": 1}, "")
	require.NoError(t, err)

	sums := collectSums(t, reader)
	assert.Equal(t, int64(3), sums["mapping.matches"])
	assert.Equal(t, int64(1), sums["mapping.urls"], "the second build is a cache hit")
	assert.GreaterOrEqual(t, sums["mapping.cache.lookups"], int64(4))
}

// TestNoopMetrics tests that a table without a meter provider still works.
func TestNoopMetrics(t *testing.T) {
	t.Parallel()

	r, err := newRecorder(nil)
	require.NoError(t, err)

	r.cache("forward", true)
	r.match("path", false)
	r.url("rule")
	r.ruleCounts(1, 2)
}
