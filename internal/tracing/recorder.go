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
	"fmt"
	"strings"
	"sync"

	"github.com/tombee/tracebridge/pkg/bridge"
)

// Operation names recorded by Recorder.
const (
	OpNewSpan = "new_span"
	OpRecord  = "record"
	OpEvent   = "event"
	OpEnter   = "enter"
	OpExit    = "exit"
	OpClose   = "close"
)

// Op is one capability call seen by a Recorder.
type Op struct {
	Kind string
	ID   bridge.SpanID
}

// RecordedSpan is a span as seen by a Recorder.
type RecordedSpan struct {
	ID       bridge.SpanID
	Parent   bridge.SpanID
	Name     string
	Target   string
	Metadata bridge.Metadata
	Values   bridge.FieldSet
	Entered  int
	Exited   int

	// Released is set once the handle has been closed.
	Released bool
}

// Closed reports whether every Enter has been balanced by an Exit.
func (s *RecordedSpan) Closed() bool {
	return s.Entered > 0 && s.Entered == s.Exited
}

// RecordedEvent is an event as seen by a Recorder.
type RecordedEvent struct {
	Parent   bridge.SpanID
	Name     string
	Target   string
	Metadata bridge.Metadata
	Values   bridge.FieldSet
}

// Recorder is an in-memory subscriber that keeps everything it is given.
// It backs the "record" subscriber and is the capture point in tests.
type Recorder struct {
	filter Filter

	mu     sync.Mutex
	nextID bridge.SpanID
	ops    []Op
	spans  []*RecordedSpan
	byID   map[bridge.SpanID]*RecordedSpan
	events []RecordedEvent
	stack  []bridge.SpanID
}

// NewRecorder creates a recorder that accepts everything filter allows.
func NewRecorder(filter Filter) *Recorder {
	return &Recorder{
		filter: filter,
		byID:   make(map[bridge.SpanID]*RecordedSpan),
	}
}

// Enabled implements bridge.Subscriber.
func (r *Recorder) Enabled(meta *bridge.Metadata) bool {
	return r.filter.Enabled(meta)
}

// NewSpan implements bridge.Subscriber.
func (r *Recorder) NewSpan(attrs bridge.Attributes) bridge.SpanID {
	if !r.filter.AllowsSpan(&attrs) {
		return bridge.NoSpan
	}
	name, target := bridge.Resolve(&attrs.Metadata, attrs.Values)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	s := &RecordedSpan{
		ID:       r.nextID,
		Parent:   r.topLocked(),
		Name:     name,
		Target:   target,
		Metadata: attrs.Metadata,
		Values:   attrs.Values,
	}
	r.spans = append(r.spans, s)
	r.byID[s.ID] = s
	r.ops = append(r.ops, Op{Kind: OpNewSpan, ID: s.ID})
	return s.ID
}

// Record implements bridge.Subscriber.
func (r *Recorder) Record(id bridge.SpanID, values bridge.FieldSet) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpRecord, ID: id})
	s, ok := r.byID[id]
	if !ok {
		return
	}
	for _, f := range values.All() {
		s.Values = s.Values.With(f)
	}
	if s.Metadata.IsRemapped() {
		s.Name, s.Target = bridge.Resolve(&s.Metadata, s.Values)
	}
}

// Event implements bridge.Subscriber.
func (r *Recorder) Event(ev bridge.Event) {
	if !r.filter.AllowsEvent(&ev) {
		return
	}
	name, target := bridge.Resolve(&ev.Metadata, ev.Values)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, RecordedEvent{
		Parent:   r.topLocked(),
		Name:     name,
		Target:   target,
		Metadata: ev.Metadata,
		Values:   ev.Values,
	})
	r.ops = append(r.ops, Op{Kind: OpEvent})
}

// Enter implements bridge.Subscriber.
func (r *Recorder) Enter(id bridge.SpanID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpEnter, ID: id})
	if s, ok := r.byID[id]; ok {
		s.Entered++
		r.stack = append(r.stack, id)
	}
}

// Exit implements bridge.Subscriber.
func (r *Recorder) Exit(id bridge.SpanID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpExit, ID: id})
	if s, ok := r.byID[id]; ok {
		s.Exited++
	}
	for i := len(r.stack) - 1; i >= 0; i-- {
		if r.stack[i] == id {
			r.stack = append(r.stack[:i], r.stack[i+1:]...)
			break
		}
	}
}

// CloseSpan implements bridge.SpanCloser.
func (r *Recorder) CloseSpan(id bridge.SpanID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.ops = append(r.ops, Op{Kind: OpClose, ID: id})
	if s, ok := r.byID[id]; ok {
		s.Released = true
	}
}

// Ops returns every recorded capability call in order.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Op(nil), r.ops...)
}

// Spans returns a snapshot of the recorded spans in creation order.
func (r *Recorder) Spans() []RecordedSpan {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]RecordedSpan, len(r.spans))
	for i, s := range r.spans {
		out[i] = *s
	}
	return out
}

// Events returns a snapshot of the recorded events.
func (r *Recorder) Events() []RecordedEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RecordedEvent(nil), r.events...)
}

// Span returns the span with the given handle.
func (r *Recorder) Span(id bridge.SpanID) (RecordedSpan, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byID[id]
	if !ok {
		return RecordedSpan{}, false
	}
	return *s, true
}

// Reset discards everything recorded so far.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID = 0
	r.ops = nil
	r.spans = nil
	r.byID = make(map[bridge.SpanID]*RecordedSpan)
	r.events = nil
	r.stack = nil
}

// Tree renders spans and events as an indented outline.
//
//	INFO handler [app]
//	  DEBUG db.query [app::db] rows=3
//	  * WARN slow query [app::db]
func (r *Recorder) Tree() string {
	r.mu.Lock()
	defer r.mu.Unlock()

	var b strings.Builder
	var walk func(parent bridge.SpanID, depth int)
	walk = func(parent bridge.SpanID, depth int) {
		indent := strings.Repeat("  ", depth)
		for _, s := range r.spans {
			if s.Parent != parent {
				continue
			}
			fmt.Fprintf(&b, "%s%s %s [%s]%s\n", indent, s.Metadata.Level, s.Name, s.Target,
				renderFields(s.Values, s.Metadata.IsRemapped()))
			walk(s.ID, depth+1)
		}
		for _, ev := range r.events {
			if ev.Parent != parent {
				continue
			}
			fmt.Fprintf(&b, "%s* %s %s [%s]%s\n", indent, ev.Metadata.Level, ev.Name, ev.Target,
				renderFields(ev.Values, ev.Metadata.IsRemapped()))
		}
	}
	walk(bridge.NoSpan, 0)
	return b.String()
}

func (r *Recorder) topLocked() bridge.SpanID {
	if len(r.stack) == 0 {
		return bridge.NoSpan
	}
	return r.stack[len(r.stack)-1]
}

func renderFields(values bridge.FieldSet, remapped bool) string {
	var b strings.Builder
	for _, f := range values.All() {
		v, ok := f.Value()
		if !ok || (remapped && bridge.IsReservedKey(f.Name)) {
			continue
		}
		fmt.Fprintf(&b, " %s=%s", f.Name, v)
	}
	return b.String()
}

var _ bridge.Subscriber = (*Recorder)(nil)
