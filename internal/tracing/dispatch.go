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
	"sync/atomic"

	"github.com/tombee/tracebridge/pkg/bridge"
)

// Dispatch is a subscriber that forwards to a target that can be replaced
// after Dispatch itself is installed in the write-once registry. A host that
// reloads its tracing configuration installs one Dispatch and swaps targets.
//
// Handles are passed to the current target unchanged. Subscribers number
// their handles independently, so a handle issued before a swap may name an
// unrelated span of the new target, or none at all. Swap targets between
// runs, when no guest span is open. With no target every call is a no-op.
type Dispatch struct {
	target atomic.Pointer[bridge.Subscriber]
}

// NewDispatch returns a Dispatch forwarding to sub, which may be nil.
func NewDispatch(sub bridge.Subscriber) *Dispatch {
	d := &Dispatch{}
	d.Set(sub)
	return d
}

// Set replaces the target. A nil sub disables forwarding.
func (d *Dispatch) Set(sub bridge.Subscriber) {
	if sub == nil {
		d.target.Store(nil)
		return
	}
	d.target.Store(&sub)
}

// Target returns the current target, or nil.
func (d *Dispatch) Target() bridge.Subscriber {
	if p := d.target.Load(); p != nil {
		return *p
	}
	return nil
}

// Enabled implements bridge.Subscriber.
func (d *Dispatch) Enabled(meta *bridge.Metadata) bool {
	sub := d.Target()
	return sub != nil && sub.Enabled(meta)
}

// NewSpan implements bridge.Subscriber.
func (d *Dispatch) NewSpan(attrs bridge.Attributes) bridge.SpanID {
	if sub := d.Target(); sub != nil {
		return sub.NewSpan(attrs)
	}
	return bridge.NoSpan
}

// Record implements bridge.Subscriber.
func (d *Dispatch) Record(id bridge.SpanID, values bridge.FieldSet) {
	if sub := d.Target(); sub != nil {
		sub.Record(id, values)
	}
}

// Event implements bridge.Subscriber.
func (d *Dispatch) Event(ev bridge.Event) {
	if sub := d.Target(); sub != nil {
		sub.Event(ev)
	}
}

// Enter implements bridge.Subscriber.
func (d *Dispatch) Enter(id bridge.SpanID) {
	if sub := d.Target(); sub != nil {
		sub.Enter(id)
	}
}

// Exit implements bridge.Subscriber.
func (d *Dispatch) Exit(id bridge.SpanID) {
	if sub := d.Target(); sub != nil {
		sub.Exit(id)
	}
}

// CloseSpan implements bridge.SpanCloser.
func (d *Dispatch) CloseSpan(id bridge.SpanID) {
	if sub := d.Target(); sub != nil {
		bridge.CloseSpan(sub, id)
	}
}

var (
	_ bridge.Subscriber = (*Dispatch)(nil)
	_ bridge.SpanCloser = (*Dispatch)(nil)
)
