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

//go:build !tracebridge_off

package span

import (
	"slices"

	"github.com/tombee/tracebridge/pkg/bridge"
)

// Span is a handle to a span issued by the active subscriber. The zero Span
// is inert: entering, recording and exiting it do nothing. A span may be
// entered and exited any number of times until it is closed.
type Span struct {
	sub bridge.Subscriber
	id  bridge.SpanID
}

// None returns an inert span.
func None() Span {
	return Span{}
}

// New registers a span built from attrs. Without a subscriber it returns an
// inert span.
func New(attrs bridge.Attributes) Span {
	sub := backend()
	if sub == nil {
		return Span{}
	}
	return Span{sub: sub, id: sub.NewSpan(attrs)}
}

// Named creates a span from a level, target, name and initial fields. The
// subscriber's Enabled filter is consulted before any attributes are built.
func Named(level bridge.Level, target, name string, fields ...bridge.Field) Span {
	sub := backend()
	if sub == nil {
		return Span{}
	}
	meta := bridge.NewMetadata(level, target, name)
	if !sub.Enabled(&meta) {
		return Span{}
	}
	attrs := bridge.NewAttributes(meta, bridge.NewFieldSet(slices.Clone(fields)...))
	return Span{sub: sub, id: sub.NewSpan(attrs)}
}

// ID returns the subscriber's handle for the span.
func (s Span) ID() bridge.SpanID {
	return s.id
}

// IsNone reports whether the span is inert.
func (s Span) IsNone() bool {
	return s.sub == nil
}

// Record attaches fields to the span.
func (s Span) Record(fields ...bridge.Field) {
	if s.sub == nil {
		return
	}
	s.sub.Record(s.id, bridge.NewFieldSet(slices.Clone(fields)...))
}

// Close releases the span. Subscribers that keep spans open between
// entries end it here, or on its last Exit if it is still entered. The
// span must not be used afterwards.
func (s Span) Close() {
	if s.sub == nil {
		return
	}
	bridge.CloseSpan(s.sub, s.id)
}

// Enter marks the current execution as inside the span. The returned guard
// must be exited, normally with defer. Exiting does not close the span.
func (s Span) Enter() Guard {
	if s.sub == nil {
		return Guard{}
	}
	s.sub.Enter(s.id)
	return Guard{span: s, active: true}
}

// Guard exits its span when released.
type Guard struct {
	span   Span
	active bool

	// owned guards also close the span they created.
	owned bool
}

// Exit leaves the span. Calling Exit more than once has no further effect.
func (g *Guard) Exit() {
	if !g.active {
		return
	}
	g.active = false
	g.span.sub.Exit(g.span.id)
	if g.owned {
		g.span.Close()
	}
}

// Enter creates a span from level and name under DefaultTarget and enters
// it. The guard owns the span: Exit also closes it.
func Enter(level bridge.Level, name string) Guard {
	g := Named(level, DefaultTarget, name).Enter()
	g.owned = true
	return g
}

// Enabled reports whether the active subscriber would record meta.
func Enabled(meta *bridge.Metadata) bool {
	sub := backend()
	return sub != nil && sub.Enabled(meta)
}

// Emit reports ev to the active subscriber.
func Emit(ev bridge.Event) {
	if sub := backend(); sub != nil {
		sub.Event(ev)
	}
}

// Log emits an event named by message if the subscriber accepts its level
// and target.
func Log(level bridge.Level, target, message string, fields ...bridge.Field) {
	sub := backend()
	if sub == nil {
		return
	}
	meta := bridge.NewMetadata(level, target, message)
	if !sub.Enabled(&meta) {
		return
	}
	sub.Event(bridge.NewEvent(meta, bridge.NewFieldSet(slices.Clone(fields)...)))
}
