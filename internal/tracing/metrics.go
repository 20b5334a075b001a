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
	"time"

	"github.com/tombee/tracebridge/pkg/bridge"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MetricsCollector records bridge and sandbox metrics
type MetricsCollector struct {
	meter metric.Meter

	// Counters
	spansTotal      metric.Int64Counter
	recordsTotal    metric.Int64Counter
	eventsTotal     metric.Int64Counter
	entersTotal     metric.Int64Counter
	exitsTotal      metric.Int64Counter
	faultsTotal     metric.Int64Counter
	executionsTotal metric.Int64Counter

	// Histograms
	spanDuration      metric.Float64Histogram
	executionDuration metric.Float64Histogram

	// Gauges (using observable gauges)
	openSpans        int64
	openSpansMu      sync.RWMutex
	activeSessions   int64
	activeSessionsMu sync.RWMutex
}

// NewMetricsCollector creates a new metrics collector using the given meter provider
func NewMetricsCollector(meterProvider metric.MeterProvider) (*MetricsCollector, error) {
	meter := meterProvider.Meter("tracebridge")

	mc := &MetricsCollector{
		meter: meter,
	}

	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
		unit string
	}{
		{&mc.spansTotal, "tracebridge_spans_total", "Total number of guest spans created", "{span}"},
		{&mc.recordsTotal, "tracebridge_records_total", "Total number of late field records on guest spans", "{record}"},
		{&mc.eventsTotal, "tracebridge_events_total", "Total number of guest events", "{event}"},
		{&mc.entersTotal, "tracebridge_enters_total", "Total number of guest span entries", "{enter}"},
		{&mc.exitsTotal, "tracebridge_exits_total", "Total number of guest span exits", "{exit}"},
		{&mc.faultsTotal, "tracebridge_faults_total", "Total number of absorbed tracing faults", "{fault}"},
		{&mc.executionsTotal, "tracebridge_executions_total", "Total number of guest script executions", "{execution}"},
	}

	var err error
	for _, c := range counters {
		*c.dst, err = meter.Int64Counter(
			c.name,
			metric.WithDescription(c.desc),
			metric.WithUnit(c.unit),
		)
		if err != nil {
			return nil, err
		}
	}

	// Initialize histograms
	mc.spanDuration, err = meter.Float64Histogram(
		"tracebridge_span_duration_seconds",
		metric.WithDescription("Guest span duration from creation to close in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	mc.executionDuration, err = meter.Float64Histogram(
		"tracebridge_execution_duration_seconds",
		metric.WithDescription("Guest script execution duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	// Initialize observable gauges
	_, err = meter.Int64ObservableGauge(
		"tracebridge_open_spans",
		metric.WithDescription("Number of guest spans created but not yet closed"),
		metric.WithUnit("{span}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.openSpansMu.RLock()
			count := mc.openSpans
			mc.openSpansMu.RUnlock()
			observer.Observe(count)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	_, err = meter.Int64ObservableGauge(
		"tracebridge_active_sessions",
		metric.WithDescription("Number of guest sandbox sessions currently running"),
		metric.WithUnit("{session}"),
		metric.WithInt64Callback(func(ctx context.Context, observer metric.Int64Observer) error {
			mc.activeSessionsMu.RLock()
			count := mc.activeSessions
			mc.activeSessionsMu.RUnlock()
			observer.Observe(count)
			return nil
		}),
	)
	if err != nil {
		return nil, err
	}

	return mc, nil
}

// RecordSpanCreated records a NewSpan call. Dropped spans count with status
// "dropped" and do not open.
func (mc *MetricsCollector) RecordSpanCreated(ctx context.Context, level bridge.Level, dropped bool) {
	status := "created"
	if dropped {
		status = "dropped"
	}
	mc.spansTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level.String()),
		attribute.String("status", status),
	))
	if dropped {
		return
	}
	mc.openSpansMu.Lock()
	mc.openSpans++
	mc.openSpansMu.Unlock()
}

// RecordSpanClosed records the end of a closed span.
func (mc *MetricsCollector) RecordSpanClosed(ctx context.Context, level bridge.Level, duration time.Duration) {
	mc.openSpansMu.Lock()
	if mc.openSpans > 0 {
		mc.openSpans--
	}
	mc.openSpansMu.Unlock()

	mc.spanDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("level", level.String()),
	))
}

// RecordRecord records a late field record.
func (mc *MetricsCollector) RecordRecord(ctx context.Context) {
	mc.recordsTotal.Add(ctx, 1)
}

// RecordEvent records a guest event.
func (mc *MetricsCollector) RecordEvent(ctx context.Context, level bridge.Level) {
	mc.eventsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("level", level.String()),
	))
}

// RecordEnter records a span entry.
func (mc *MetricsCollector) RecordEnter(ctx context.Context) {
	mc.entersTotal.Add(ctx, 1)
}

// RecordExit records a span exit.
func (mc *MetricsCollector) RecordExit(ctx context.Context) {
	mc.exitsTotal.Add(ctx, 1)
}

// RecordFault records a fault absorbed by a subscriber.
func (mc *MetricsCollector) RecordFault(ctx context.Context, op string) {
	mc.faultsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("op", op),
	))
}

// RecordExecutionStart increments the active sessions gauge
func (mc *MetricsCollector) RecordExecutionStart() {
	mc.activeSessionsMu.Lock()
	mc.activeSessions++
	mc.activeSessionsMu.Unlock()
}

// RecordExecutionComplete records the end of a guest script execution
func (mc *MetricsCollector) RecordExecutionComplete(ctx context.Context, status string, duration time.Duration) {
	mc.activeSessionsMu.Lock()
	if mc.activeSessions > 0 {
		mc.activeSessions--
	}
	mc.activeSessionsMu.Unlock()

	attrs := metric.WithAttributes(attribute.String("status", status))
	mc.executionsTotal.Add(ctx, 1, attrs)
	mc.executionDuration.Record(ctx, duration.Seconds(), attrs)
}

// InstrumentedSubscriber counts capability calls on the way to another
// subscriber.
type InstrumentedSubscriber struct {
	next    bridge.Subscriber
	metrics *MetricsCollector

	mu    sync.Mutex
	spans map[bridge.SpanID]*instrumentedSpan
}

type instrumentedSpan struct {
	level   bridge.Level
	depth   int
	opened  time.Time
	closing bool
}

// Instrument wraps next so every call is counted by metrics.
func Instrument(next bridge.Subscriber, metrics *MetricsCollector) *InstrumentedSubscriber {
	return &InstrumentedSubscriber{
		next:    next,
		metrics: metrics,
		spans:   make(map[bridge.SpanID]*instrumentedSpan),
	}
}

// Unwrap returns the wrapped subscriber.
func (i *InstrumentedSubscriber) Unwrap() bridge.Subscriber {
	return i.next
}

// Enabled implements bridge.Subscriber.
func (i *InstrumentedSubscriber) Enabled(meta *bridge.Metadata) bool {
	return i.next.Enabled(meta)
}

// NewSpan implements bridge.Subscriber.
func (i *InstrumentedSubscriber) NewSpan(attrs bridge.Attributes) bridge.SpanID {
	id := i.next.NewSpan(attrs)
	dropped := id == bridge.NoSpan
	i.metrics.RecordSpanCreated(context.Background(), attrs.Metadata.Level, dropped)
	if !dropped {
		i.mu.Lock()
		i.spans[id] = &instrumentedSpan{level: attrs.Metadata.Level, opened: time.Now()}
		i.mu.Unlock()
	}
	return id
}

// Record implements bridge.Subscriber.
func (i *InstrumentedSubscriber) Record(id bridge.SpanID, values bridge.FieldSet) {
	i.metrics.RecordRecord(context.Background())
	i.next.Record(id, values)
}

// Event implements bridge.Subscriber.
func (i *InstrumentedSubscriber) Event(ev bridge.Event) {
	i.metrics.RecordEvent(context.Background(), ev.Metadata.Level)
	i.next.Event(ev)
}

// Enter implements bridge.Subscriber.
func (i *InstrumentedSubscriber) Enter(id bridge.SpanID) {
	i.metrics.RecordEnter(context.Background())
	i.mu.Lock()
	if s, ok := i.spans[id]; ok {
		s.depth++
	}
	i.mu.Unlock()
	i.next.Enter(id)
}

// Exit implements bridge.Subscriber.
func (i *InstrumentedSubscriber) Exit(id bridge.SpanID) {
	i.metrics.RecordExit(context.Background())
	i.next.Exit(id)

	i.mu.Lock()
	s, ok := i.spans[id]
	closed := false
	if ok {
		if s.depth > 0 {
			s.depth--
		}
		closed = s.depth == 0 && s.closing
		if closed {
			delete(i.spans, id)
		}
	}
	i.mu.Unlock()

	if closed {
		i.metrics.RecordSpanClosed(context.Background(), s.level, time.Since(s.opened))
	}
}

// CloseSpan implements bridge.SpanCloser.
func (i *InstrumentedSubscriber) CloseSpan(id bridge.SpanID) {
	bridge.CloseSpan(i.next, id)

	i.mu.Lock()
	s, ok := i.spans[id]
	closed := ok && s.depth == 0
	if closed {
		delete(i.spans, id)
	} else if ok {
		s.closing = true
	}
	i.mu.Unlock()

	if closed {
		i.metrics.RecordSpanClosed(context.Background(), s.level, time.Since(s.opened))
	}
}

var (
	_ bridge.Subscriber = (*InstrumentedSubscriber)(nil)
	_ bridge.SpanCloser = (*InstrumentedSubscriber)(nil)
)
