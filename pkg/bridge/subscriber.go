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

package bridge

// SpanID is an opaque span handle. Only the subscriber that issued it can
// interpret it; the bridge passes it through unchanged.
type SpanID uint64

// NoSpan is the handle subscribers return for spans they chose not to record.
// Every operation on it must be a silent no-op.
const NoSpan SpanID = 0

// Subscriber is the capability the host implements to receive guest spans and
// events. These are the only operations a guest may invoke on the host's
// tracing backend.
//
// Implementations must be safe for concurrent use. No method reports an error:
// an implementation that cannot process a call must drop it. Tracing must never
// change the control flow of traced code.
type Subscriber interface {
	// Enabled reports whether spans or events described by meta would be
	// recorded. It must be free of side effects.
	Enabled(meta *Metadata) bool

	// NewSpan registers a span and returns its handle. It returns NoSpan (or
	// another handle it will ignore) when the span is dropped.
	NewSpan(attrs Attributes) SpanID

	// Record attaches fields to an existing span.
	Record(id SpanID, values FieldSet)

	// Event reports a point-in-time event.
	Event(ev Event)

	// Enter marks the start of the current execution's presence in a span.
	Enter(id SpanID)

	// Exit marks the end of the current execution's presence in a span.
	// Callers issue Enter/Exit pairs in LIFO order within one sequential
	// execution context.
	Exit(id SpanID)
}

// SpanCloser is implemented by subscribers that keep a span after its last
// Exit so it can be entered again. CloseSpan releases the handle: the span
// ends now, or on its last Exit if it is still entered. Handles are not
// valid after CloseSpan.
type SpanCloser interface {
	CloseSpan(id SpanID)
}

// CloseSpan releases id on sub when sub implements SpanCloser. It is a
// no-op for NoSpan and for subscribers without the method.
func CloseSpan(sub Subscriber, id SpanID) {
	if id == NoSpan {
		return
	}
	if c, ok := sub.(SpanCloser); ok {
		c.CloseSpan(id)
	}
}
