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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/tombee/tracebridge/internal/tracing/redact"
	"github.com/tombee/tracebridge/pkg/bridge"
)

func newTestSubscriber(t *testing.T, opts ...SubscriberOption) (*OTelSubscriber, *tracetest.InMemoryExporter) {
	t.Helper()
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })
	return NewOTelSubscriber(tp.Tracer("test"), opts...), exporter
}

func spanAttrs(level bridge.Level, target, name string, fields ...bridge.Field) bridge.Attributes {
	return bridge.NewAttributes(bridge.NewMetadata(level, target, name), bridge.NewFieldSet(fields...))
}

func attrValue(attrs []attribute.KeyValue, key string) (attribute.Value, bool) {
	for _, kv := range attrs {
		if string(kv.Key) == key {
			return kv.Value, true
		}
	}
	return attribute.Value{}, false
}

func findSpan(t *testing.T, spans tracetest.SpanStubs, name string) tracetest.SpanStub {
	t.Helper()
	for _, s := range spans {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("span %q not exported", name)
	return tracetest.SpanStub{}
}

func TestOTelSubscriber_NestedSpans(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	parent := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "handler", bridge.F("request", bridge.I64(7))))
	require.NotEqual(t, bridge.NoSpan, parent)
	sub.Enter(parent)

	child := sub.NewSpan(spanAttrs(bridge.LevelDebug, "app::db", "query"))
	require.NotEqual(t, parent, child)
	sub.Enter(child)
	sub.Exit(child)
	sub.CloseSpan(child)

	assert.Len(t, exporter.GetSpans(), 1, "child ends when closed")

	sub.Exit(parent)
	sub.CloseSpan(parent)
	spans := exporter.GetSpans()
	require.Len(t, spans, 2)

	handler := findSpan(t, spans, "handler")
	query := findSpan(t, spans, "query")
	assert.Equal(t, handler.SpanContext.SpanID(), query.Parent.SpanID())
	assert.Equal(t, handler.SpanContext.TraceID(), query.SpanContext.TraceID())

	v, ok := attrValue(handler.Attributes, "request")
	require.True(t, ok)
	assert.Equal(t, int64(7), v.AsInt64())

	v, ok = attrValue(query.Attributes, AttrTarget)
	require.True(t, ok)
	assert.Equal(t, "app::db", v.AsString())

	v, ok = attrValue(query.Attributes, AttrLevel)
	require.True(t, ok)
	assert.Equal(t, "DEBUG", v.AsString())

	assert.Zero(t, sub.OpenSpans())
}

func TestOTelSubscriber_ReentryKeepsSpanUntilClosed(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "loop"))
	sub.Enter(id)
	sub.Exit(id)
	assert.Empty(t, exporter.GetSpans())
	assert.Equal(t, 1, sub.OpenSpans())

	sub.Enter(id)
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelInfo, "app", "iteration"), bridge.FieldSet{}))
	sub.Exit(id)
	assert.Empty(t, exporter.GetSpans(), "event must not become a standalone span")

	sub.CloseSpan(id)
	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "loop", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "iteration", spans[0].Events[0].Name)
	assert.Zero(t, sub.OpenSpans())
}

func TestOTelSubscriber_CloseWhileEnteredEndsOnLastExit(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "outer"))
	sub.Enter(id)
	sub.Enter(id)
	sub.CloseSpan(id)
	sub.Exit(id)
	assert.Empty(t, exporter.GetSpans())

	sub.Exit(id)
	assert.Len(t, exporter.GetSpans(), 1)
	assert.Zero(t, sub.OpenSpans())

	// The handle is retired.
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)
	assert.Len(t, exporter.GetSpans(), 1)
}

func TestOTelSubscriber_UnbalancedExitIgnored(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "lopsided"))
	sub.Exit(id)
	sub.Enter(id)
	sub.CloseSpan(id)
	assert.Empty(t, exporter.GetSpans())

	sub.Exit(id)
	assert.Len(t, exporter.GetSpans(), 1)
}

func TestOTelSubscriber_MetadataAttributes(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	meta := bridge.NewMetadata(bridge.LevelWarn, "app", "located",
		bridge.WithLocation("src/lib.rs", 42),
		bridge.WithModulePath("app::lib"),
	)
	id := sub.NewSpan(bridge.NewAttributes(meta, bridge.FieldSet{}))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "located")
	v, _ := attrValue(span.Attributes, AttrFile)
	assert.Equal(t, "src/lib.rs", v.AsString())
	v, _ = attrValue(span.Attributes, AttrLine)
	assert.Equal(t, int64(42), v.AsInt64())
	v, _ = attrValue(span.Attributes, AttrModulePath)
	assert.Equal(t, "app::lib", v.AsString())
}

func TestOTelSubscriber_UnknownLineOmitted(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "nowhere"))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "nowhere")
	_, ok := attrValue(span.Attributes, AttrLine)
	assert.False(t, ok)
	_, ok = attrValue(span.Attributes, AttrFile)
	assert.False(t, ok)
}

func TestOTelSubscriber_KnownLineZeroExported(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	meta := bridge.NewMetadata(bridge.LevelInfo, "app", "generated", bridge.WithLocation("gen.go", 0))
	id := sub.NewSpan(bridge.NewAttributes(meta, bridge.FieldSet{}))
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "generated")
	v, ok := attrValue(span.Attributes, AttrLine)
	require.True(t, ok)
	assert.Equal(t, int64(0), v.AsInt64())
}

func TestOTelSubscriber_Record(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	attrs := bridge.NewAttributes(
		bridge.NewMetadata(bridge.LevelInfo, "app", "work"),
		bridge.FieldSet{}.Declare("rows"),
	)
	id := sub.NewSpan(attrs)
	sub.Enter(id)
	sub.Record(id, bridge.NewFieldSet(bridge.F("rows", bridge.U64(3))))
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "work")
	v, ok := attrValue(span.Attributes, "rows")
	require.True(t, ok)
	assert.Equal(t, int64(3), v.AsInt64())
}

func TestOTelSubscriber_LargeUnsignedBecomesString(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "big", bridge.F("n", bridge.U64(1<<63+5))))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "big")
	v, ok := attrValue(span.Attributes, "n")
	require.True(t, ok)
	assert.Equal(t, attribute.STRING, v.Type())
	assert.Equal(t, "9223372036854775813", v.AsString())
}

func TestOTelSubscriber_EventsAttachToEnteredSpan(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "handler"))
	sub.Enter(id)
	sub.Event(bridge.NewEvent(
		bridge.NewMetadata(bridge.LevelWarn, "app", "slow query"),
		bridge.NewFieldSet(bridge.F("ms", bridge.F64(12.5))),
	))
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelError, "app", "failed"), bridge.FieldSet{}))
	sub.Exit(id)
	sub.CloseSpan(id)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	span := spans[0]

	require.Len(t, span.Events, 2)
	assert.Equal(t, "slow query", span.Events[0].Name)
	v, ok := attrValue(span.Events[0].Attributes, "ms")
	require.True(t, ok)
	assert.Equal(t, 12.5, v.AsFloat64())

	assert.Equal(t, codes.Error, span.Status.Code)
	assert.Equal(t, "failed", span.Status.Description)
}

func TestOTelSubscriber_EventWithoutSpan(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelInfo, "app", "startup"), bridge.FieldSet{}))

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "startup", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "startup", spans[0].Events[0].Name)
}

func TestOTelSubscriber_FilterDropsSpans(t *testing.T) {
	filter, err := ParseFilter("info")
	require.NoError(t, err)
	sub, exporter := newTestSubscriber(t, WithFilter(filter))

	debugMeta := bridge.NewMetadata(bridge.LevelDebug, "app", "noise")
	assert.False(t, sub.Enabled(&debugMeta))

	id := sub.NewSpan(bridge.NewAttributes(debugMeta, bridge.FieldSet{}))
	assert.Equal(t, bridge.NoSpan, id)

	// Calls on a dropped handle are ignored.
	sub.Record(id, bridge.NewFieldSet(bridge.F("x", bridge.I64(1))))
	sub.Enter(id)
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelDebug, "app", "hidden"), bridge.FieldSet{}))
	sub.Exit(id)

	assert.Empty(t, exporter.GetSpans())
}

func TestOTelSubscriber_UnknownHandlesIgnored(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	sub.Enter(99)
	sub.Record(99, bridge.NewFieldSet(bridge.F("x", bridge.I64(1))))
	sub.Exit(99)

	assert.Empty(t, exporter.GetSpans())
}

func TestOTelSubscriber_MaxOpenSpans(t *testing.T) {
	sub, _ := newTestSubscriber(t, WithMaxOpenSpans(2))

	a := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "a"))
	b := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "b"))
	c := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "c"))

	assert.NotEqual(t, bridge.NoSpan, a)
	assert.NotEqual(t, bridge.NoSpan, b)
	assert.Equal(t, bridge.NoSpan, c)

	sub.Enter(a)
	sub.Exit(a)
	assert.Equal(t, bridge.NoSpan, sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "d")), "exited spans stay open")

	sub.CloseSpan(a)
	assert.NotEqual(t, bridge.NoSpan, sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "d")))
}

func TestOTelSubscriber_RemappedSpan(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	attrs := bridge.RemappedAttributes(bridge.LevelInfo, "guest::module", "compute",
		bridge.NewFieldSet(bridge.F("n", bridge.I64(5))))
	id := sub.NewSpan(attrs)
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "compute")
	v, ok := attrValue(span.Attributes, AttrTarget)
	require.True(t, ok)
	assert.Equal(t, "guest::module", v.AsString())

	_, ok = attrValue(span.Attributes, bridge.TargetKey)
	assert.False(t, ok)
	_, ok = attrValue(span.Attributes, bridge.NameKey)
	assert.False(t, ok)

	v, ok = attrValue(span.Attributes, "n")
	require.True(t, ok)
	assert.Equal(t, int64(5), v.AsInt64())
}

func TestOTelSubscriber_RemappedSpanLateRename(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	attrs := bridge.RemappedAttributes(bridge.LevelInfo, "guest", "first", bridge.FieldSet{})
	id := sub.NewSpan(attrs)
	sub.Enter(id)
	sub.Record(id, bridge.NewFieldSet(bridge.F(bridge.NameKey, bridge.Str("second"))))
	sub.Exit(id)
	sub.CloseSpan(id)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "second", spans[0].Name)
}

func TestOTelSubscriber_IncompleteRemapKeepsLiteralName(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	meta := bridge.NewMetadata(bridge.LevelInfo, "app", bridge.TraceIdentifier)
	id := sub.NewSpan(bridge.NewAttributes(meta, bridge.NewFieldSet(bridge.F(bridge.NameKey, bridge.Str("only-name")))))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, bridge.TraceIdentifier, spans[0].Name)
}

func TestOTelSubscriber_Redaction(t *testing.T) {
	sub, exporter := newTestSubscriber(t, WithRedactor(redact.NewRedactor(redact.ModeStandard)))

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "login",
		bridge.F("password", bridge.Str("hunter2")),
		bridge.F("user", bridge.Str("alice")),
	))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "login")
	v, _ := attrValue(span.Attributes, "password")
	assert.Equal(t, "[REDACTED]", v.AsString())
	v, _ = attrValue(span.Attributes, "user")
	assert.Equal(t, "alice", v.AsString())
}

func TestOTelSubscriber_EventRateLimit(t *testing.T) {
	sub, exporter := newTestSubscriber(t, WithEventRate(1))

	for i := 0; i < 5; i++ {
		sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelInfo, "app", "tick"), bridge.FieldSet{}))
	}
	assert.Len(t, exporter.GetSpans(), 1)
}

func TestOTelSubscriber_ParentContext(t *testing.T) {
	const traceparent = "00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01"
	ctx := ContextFromTraceparent(context.Background(), traceparent)
	sub, exporter := newTestSubscriber(t, WithParentContext(ctx))

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "root"))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	span := findSpan(t, exporter.GetSpans(), "root")
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", span.SpanContext.TraceID().String())
	assert.Equal(t, "00f067aa0ba902b7", span.Parent.SpanID().String())
}

func TestOTelSubscriber_Close(t *testing.T) {
	sub, exporter := newTestSubscriber(t)

	sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "never-entered"))
	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "left-open"))
	sub.Enter(id)
	assert.Equal(t, 2, sub.OpenSpans())

	require.NoError(t, sub.Close(context.Background()))
	assert.Zero(t, sub.OpenSpans())
	assert.Len(t, exporter.GetSpans(), 2)
}

type panicTracer struct {
	noop.Tracer
}

func (panicTracer) Start(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	panic("exporter exploded")
}

func TestOTelSubscriber_AbsorbsFaults(t *testing.T) {
	var faults []string
	sub := NewOTelSubscriber(panicTracer{}, WithFaultHandler(func(op string) {
		faults = append(faults, op)
	}))

	var id bridge.SpanID
	assert.NotPanics(t, func() {
		id = sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "boom"))
		sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelInfo, "app", "boom"), bridge.FieldSet{}))
	})
	assert.Equal(t, bridge.NoSpan, id)
	assert.Equal(t, []string{"new_span", "event"}, faults)
}

func TestOTelSubscriber_StrictRedactionOfReservedKeys(t *testing.T) {
	sub, exporter := newTestSubscriber(t, WithRedactor(redact.NewRedactor(redact.ModeStrict)))

	plain := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "lookup", bridge.F(bridge.NameKey, bridge.Str("alice"))))
	sub.CloseSpan(plain)

	remapped := sub.NewSpan(bridge.RemappedAttributes(bridge.LevelInfo, "guest", "compute", bridge.FieldSet{}))
	sub.CloseSpan(remapped)

	lookup := findSpan(t, exporter.GetSpans(), "lookup")
	v, ok := attrValue(lookup.Attributes, bridge.NameKey)
	require.True(t, ok)
	assert.Equal(t, "[REDACTED]", v.AsString())

	compute := findSpan(t, exporter.GetSpans(), "compute")
	v, ok = attrValue(compute.Attributes, AttrTarget)
	require.True(t, ok)
	assert.Equal(t, "guest", v.AsString())
}
