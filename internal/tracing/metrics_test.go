// Copyright 2025 Tom Barlow
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

package tracing

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/tombee/tracebridge/pkg/bridge"
)

func newTestCollector(t *testing.T) (*MetricsCollector, *sdkmetric.ManualReader) {
	t.Helper()
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	t.Cleanup(func() { _ = mp.Shutdown(context.Background()) })

	mc, err := NewMetricsCollector(mp)
	require.NoError(t, err)
	return mc, reader
}

func collectMetric(t *testing.T, reader *sdkmetric.ManualReader, name string) (metricdata.Metrics, bool) {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name == name {
				return m, true
			}
		}
	}
	return metricdata.Metrics{}, false
}

// counterValue sums the data points of a counter whose attributes include
// every pair in match.
func counterValue(t *testing.T, reader *sdkmetric.ManualReader, name string, match ...attribute.KeyValue) int64 {
	t.Helper()
	m, ok := collectMetric(t, reader, name)
	if !ok {
		return 0
	}
	sum, ok := m.Data.(metricdata.Sum[int64])
	require.True(t, ok, "%s is not an int64 sum", name)

	var total int64
	for _, dp := range sum.DataPoints {
		matched := true
		for _, kv := range match {
			v, ok := dp.Attributes.Value(kv.Key)
			if !ok || v != kv.Value {
				matched = false
				break
			}
		}
		if matched {
			total += dp.Value
		}
	}
	return total
}

func gaugeValue(t *testing.T, reader *sdkmetric.ManualReader, name string) int64 {
	t.Helper()
	m, ok := collectMetric(t, reader, name)
	require.True(t, ok, "%s not collected", name)
	gauge, ok := m.Data.(metricdata.Gauge[int64])
	require.True(t, ok)
	require.Len(t, gauge.DataPoints, 1)
	return gauge.DataPoints[0].Value
}

func TestMetricsCollector_SpanLifecycle(t *testing.T) {
	mc, reader := newTestCollector(t)
	ctx := context.Background()

	mc.RecordSpanCreated(ctx, bridge.LevelInfo, false)
	mc.RecordSpanCreated(ctx, bridge.LevelInfo, false)
	mc.RecordSpanCreated(ctx, bridge.LevelDebug, true)
	assert.Equal(t, int64(2), gaugeValue(t, reader, "tracebridge_open_spans"))

	mc.RecordSpanClosed(ctx, bridge.LevelInfo, 20*time.Millisecond)
	assert.Equal(t, int64(1), gaugeValue(t, reader, "tracebridge_open_spans"))

	assert.Equal(t, int64(2), counterValue(t, reader, "tracebridge_spans_total",
		attribute.String("status", "created")))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_spans_total",
		attribute.String("status", "dropped"), attribute.String("level", "DEBUG")))

	m, ok := collectMetric(t, reader, "tracebridge_span_duration_seconds")
	require.True(t, ok)
	hist, ok := m.Data.(metricdata.Histogram[float64])
	require.True(t, ok)
	require.Len(t, hist.DataPoints, 1)
	assert.Equal(t, uint64(1), hist.DataPoints[0].Count)
}

func TestMetricsCollector_OpenSpansNeverNegative(t *testing.T) {
	mc, reader := newTestCollector(t)

	mc.RecordSpanClosed(context.Background(), bridge.LevelInfo, time.Millisecond)
	assert.Equal(t, int64(0), gaugeValue(t, reader, "tracebridge_open_spans"))
}

func TestMetricsCollector_Executions(t *testing.T) {
	mc, reader := newTestCollector(t)
	ctx := context.Background()

	mc.RecordExecutionStart()
	mc.RecordExecutionStart()
	assert.Equal(t, int64(2), gaugeValue(t, reader, "tracebridge_active_sessions"))

	mc.RecordExecutionComplete(ctx, "ok", time.Second)
	mc.RecordExecutionComplete(ctx, "error", time.Second)
	mc.RecordExecutionComplete(ctx, "error", time.Second)

	assert.Equal(t, int64(0), gaugeValue(t, reader, "tracebridge_active_sessions"))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_executions_total", attribute.String("status", "ok")))
	assert.Equal(t, int64(2), counterValue(t, reader, "tracebridge_executions_total", attribute.String("status", "error")))
}

func TestMetricsCollector_Faults(t *testing.T) {
	mc, reader := newTestCollector(t)

	mc.RecordFault(context.Background(), "event")
	mc.RecordFault(context.Background(), "event")
	mc.RecordFault(context.Background(), "exit")

	assert.Equal(t, int64(2), counterValue(t, reader, "tracebridge_faults_total", attribute.String("op", "event")))
	assert.Equal(t, int64(3), counterValue(t, reader, "tracebridge_faults_total"))
}

func TestInstrumentedSubscriber(t *testing.T) {
	mc, reader := newTestCollector(t)
	rec := NewRecorder(AllowAll())
	sub := Instrument(rec, mc)
	assert.Same(t, rec, sub.Unwrap())

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "handler"))
	sub.Enter(id)
	sub.Record(id, bridge.NewFieldSet(bridge.F("x", bridge.I64(1))))
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelWarn, "app", "e"), bridge.FieldSet{}))
	assert.Equal(t, int64(1), gaugeValue(t, reader, "tracebridge_open_spans"))
	sub.Exit(id)
	assert.Equal(t, int64(1), gaugeValue(t, reader, "tracebridge_open_spans"), "exited spans stay open")
	sub.CloseSpan(id)

	assert.Equal(t, int64(0), gaugeValue(t, reader, "tracebridge_open_spans"))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_spans_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_records_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_events_total", attribute.String("level", "WARN")))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_enters_total"))
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_exits_total"))

	// The wrapped subscriber still sees every call.
	assert.Len(t, rec.Ops(), 6)
	assert.True(t, rec.Spans()[0].Released)
}

func TestInstrumentedSubscriber_DroppedSpan(t *testing.T) {
	mc, reader := newTestCollector(t)
	filter, err := ParseFilter("error")
	require.NoError(t, err)
	sub := Instrument(NewRecorder(filter), mc)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "quiet"))
	assert.Equal(t, bridge.NoSpan, id)
	assert.Equal(t, int64(1), counterValue(t, reader, "tracebridge_spans_total", attribute.String("status", "dropped")))
	assert.Equal(t, int64(0), gaugeValue(t, reader, "tracebridge_open_spans"))
}

func TestMetricsCollector_ConcurrentAccess(t *testing.T) {
	mc, reader := newTestCollector(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			mc.RecordSpanCreated(ctx, bridge.LevelInfo, false)
			mc.RecordEvent(ctx, bridge.LevelInfo)
			mc.RecordSpanClosed(ctx, bridge.LevelInfo, time.Millisecond)
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(0), gaugeValue(t, reader, "tracebridge_open_spans"))
	assert.Equal(t, int64(50), counterValue(t, reader, "tracebridge_events_total"))
}
