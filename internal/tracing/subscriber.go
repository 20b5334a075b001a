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
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tombee/tracebridge/internal/tracing/redact"
	"github.com/tombee/tracebridge/pkg/bridge"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// SubscriberOption configures an OTelSubscriber.
type SubscriberOption func(*OTelSubscriber)

// WithFilter sets the level/target filter. The default allows everything.
func WithFilter(f Filter) SubscriberOption {
	return func(s *OTelSubscriber) { s.filter = f }
}

// WithMaxOpenSpans caps the number of spans held open at once. Spans beyond
// the cap are dropped. Zero means unlimited.
func WithMaxOpenSpans(n int) SubscriberOption {
	return func(s *OTelSubscriber) { s.maxOpen = n }
}

// WithEventRate caps events per second. Zero or less means unlimited.
func WithEventRate(perSecond float64) SubscriberOption {
	return func(s *OTelSubscriber) {
		if perSecond <= 0 {
			s.limiter = nil
			return
		}
		burst := int(perSecond)
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithRedactor masks sensitive field values before they are recorded.
func WithRedactor(r *redact.Redactor) SubscriberOption {
	return func(s *OTelSubscriber) { s.redactor = r }
}

// WithLogger sets the logger used for absorbed faults and dropped data.
func WithLogger(logger *slog.Logger) SubscriberOption {
	return func(s *OTelSubscriber) { s.logger = logger }
}

// WithFaultHandler registers a callback for absorbed faults.
func WithFaultHandler(fn func(op string)) SubscriberOption {
	return func(s *OTelSubscriber) { s.onFault = fn }
}

// WithParentContext makes guest root spans children of the span in ctx.
func WithParentContext(ctx context.Context) SubscriberOption {
	return func(s *OTelSubscriber) { s.root = ctx }
}

// OTelSubscriber records guest spans and events with an OpenTelemetry tracer.
//
// Handles are allocated from a counter starting at 1; bridge.NoSpan marks a
// dropped span. A span may be entered and exited any number of times; it
// ends when its handle is closed (CloseSpan) and no Enter is outstanding,
// or when the subscriber is closed. Enter/Exit keep a single entry stack
// per subscriber; the top of the stack is the parent for new spans and the
// owner of events.
type OTelSubscriber struct {
	tracer   trace.Tracer
	filter   Filter
	maxOpen  int
	limiter  *rate.Limiter
	redactor *redact.Redactor
	logger   *slog.Logger
	onFault  func(op string)
	root     context.Context

	nextID atomic.Uint64

	mu    sync.Mutex
	spans map[bridge.SpanID]*otelSpanState
	stack []bridge.SpanID
}

type otelSpanState struct {
	span  trace.Span
	ctx   context.Context
	meta  bridge.Metadata
	depth int

	// closing is set by CloseSpan while the span is still entered.
	closing bool

	// values accumulates fields of remapped spans so late overrides can
	// rename them.
	values bridge.FieldSet
}

// NewOTelSubscriber creates a subscriber that records into tracer.
func NewOTelSubscriber(tracer trace.Tracer, opts ...SubscriberOption) *OTelSubscriber {
	s := &OTelSubscriber{
		tracer: tracer,
		filter: AllowAll(),
		logger: slog.Default(),
		root:   context.Background(),
		spans:  make(map[bridge.SpanID]*otelSpanState),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Enabled implements bridge.Subscriber.
func (s *OTelSubscriber) Enabled(meta *bridge.Metadata) bool {
	return s.filter.Enabled(meta)
}

// NewSpan implements bridge.Subscriber.
func (s *OTelSubscriber) NewSpan(attrs bridge.Attributes) (id bridge.SpanID) {
	defer s.absorb("new_span")

	if !s.filter.AllowsSpan(&attrs) {
		return bridge.NoSpan
	}

	remapped := attrs.Metadata.IsRemapped()
	values := s.redactor.RedactFields(attrs.Values, remapped)
	name, target := bridge.Resolve(&attrs.Metadata, values)

	kv := metadataAttributes(&attrs.Metadata, target)
	kv = append(kv, fieldAttributes(values, remapped)...)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.maxOpen > 0 && len(s.spans) >= s.maxOpen {
		s.logger.Debug("dropping guest span, open span limit reached",
			"name", name, "target", target, "limit", s.maxOpen)
		return bridge.NoSpan
	}

	parent := s.root
	if top := s.topLocked(); top != nil {
		parent = top.ctx
	}

	ctx, otelSpan := s.tracer.Start(parent, name, trace.WithAttributes(kv...))

	state := &otelSpanState{
		span: otelSpan,
		ctx:  ctx,
		meta: attrs.Metadata,
	}
	if remapped {
		state.values = values
	}

	id = bridge.SpanID(s.nextID.Add(1))
	s.spans[id] = state
	return id
}

// Record implements bridge.Subscriber.
func (s *OTelSubscriber) Record(id bridge.SpanID, values bridge.FieldSet) {
	defer s.absorb("record")

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.spans[id]
	if !ok {
		return
	}

	remapped := state.meta.IsRemapped()
	values = s.redactor.RedactFields(values, remapped)
	state.span.SetAttributes(fieldAttributes(values, remapped)...)

	if remapped {
		state.values = state.values.With(collect(values)...)
		name, target := bridge.Resolve(&state.meta, state.values)
		state.span.SetName(name)
		state.span.SetAttributes(attribute.String(AttrTarget, target))
	}
}

// Event implements bridge.Subscriber.
func (s *OTelSubscriber) Event(ev bridge.Event) {
	defer s.absorb("event")

	if !s.filter.AllowsEvent(&ev) {
		return
	}
	if s.limiter != nil && !s.limiter.Allow() {
		s.logger.Debug("dropping guest event, rate limit reached", "name", ev.Metadata.Name)
		return
	}

	remapped := ev.Metadata.IsRemapped()
	values := s.redactor.RedactFields(ev.Values, remapped)
	name, target := bridge.Resolve(&ev.Metadata, values)
	kv := metadataAttributes(&ev.Metadata, target)
	kv = append(kv, fieldAttributes(values, remapped)...)

	s.mu.Lock()
	top := s.topLocked()
	s.mu.Unlock()

	if top != nil {
		top.span.AddEvent(name, trace.WithAttributes(kv...))
		if ev.Metadata.Level == bridge.LevelError {
			top.span.SetStatus(codes.Error, name)
		}
		return
	}

	// No entered span: the event stands alone as a zero-length span.
	_, otelSpan := s.tracer.Start(s.root, name, trace.WithAttributes(kv...))
	otelSpan.AddEvent(name, trace.WithAttributes(kv...))
	if ev.Metadata.Level == bridge.LevelError {
		otelSpan.SetStatus(codes.Error, name)
	}
	otelSpan.End()
}

// Enter implements bridge.Subscriber.
func (s *OTelSubscriber) Enter(id bridge.SpanID) {
	defer s.absorb("enter")

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.spans[id]
	if !ok {
		return
	}
	state.depth++
	s.stack = append(s.stack, id)
}

// Exit implements bridge.Subscriber.
func (s *OTelSubscriber) Exit(id bridge.SpanID) {
	defer s.absorb("exit")

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.spans[id]
	if !ok {
		return
	}

	for i := len(s.stack) - 1; i >= 0; i-- {
		if s.stack[i] != id {
			continue
		}
		if i != len(s.stack)-1 {
			s.logger.Debug("guest span exited out of order", "id", uint64(id))
		}
		s.stack = append(s.stack[:i], s.stack[i+1:]...)
		break
	}

	if state.depth > 0 {
		state.depth--
	}
	if state.depth == 0 && state.closing {
		state.span.End()
		delete(s.spans, id)
	}
}

// CloseSpan implements bridge.SpanCloser. The span ends now, or on its last
// Exit if it is still entered. The handle is retired either way.
func (s *OTelSubscriber) CloseSpan(id bridge.SpanID) {
	defer s.absorb("close")

	s.mu.Lock()
	defer s.mu.Unlock()

	state, ok := s.spans[id]
	if !ok {
		return
	}
	if state.depth > 0 {
		state.closing = true
		return
	}
	state.span.End()
	delete(s.spans, id)
}

// OpenSpans returns the number of spans that have not ended.
func (s *OTelSubscriber) OpenSpans() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.spans)
}

// Close ends every span that is still open, including spans the guest
// created but never closed.
func (s *OTelSubscriber) Close(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for id, state := range s.spans {
		state.span.End()
		delete(s.spans, id)
	}
	s.stack = s.stack[:0]
	return ctx.Err()
}

// topLocked returns the innermost entered span. Callers hold s.mu.
func (s *OTelSubscriber) topLocked() *otelSpanState {
	for i := len(s.stack) - 1; i >= 0; i-- {
		if state, ok := s.spans[s.stack[i]]; ok {
			return state
		}
	}
	return nil
}

// absorb recovers from a panic inside a capability method. Tracing faults
// must never reach guest code.
func (s *OTelSubscriber) absorb(op string) {
	if r := recover(); r != nil {
		s.logger.Debug("guest tracing fault absorbed", "op", op, "panic", r)
		if s.onFault != nil {
			s.onFault(op)
		}
	}
}

// collect returns the fields of a set as a slice.
func collect(values bridge.FieldSet) []bridge.Field {
	fields := make([]bridge.Field, 0, values.Len())
	for _, f := range values.All() {
		fields = append(fields, f)
	}
	return fields
}

var (
	_ bridge.Subscriber = (*OTelSubscriber)(nil)
	_ bridge.SpanCloser = (*OTelSubscriber)(nil)
)
