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

package sandbox

import (
	"math"
	"strings"

	"github.com/dop251/goja"

	"github.com/tombee/tracebridge/pkg/bridge"
	"github.com/tombee/tracebridge/pkg/span"
)

// ConsoleTarget is the target of events written through console.*.
const ConsoleTarget = "console"

// maxSafeInteger is the largest integer a JS number holds exactly.
const maxSafeInteger = 1<<53 - 1

// host holds the per-run state behind the __host functions. A goja VM is
// single threaded, so host is only touched from the goroutine running the
// script.
type host struct {
	vm        *goja.Runtime
	stringify goja.Callable
	spans     map[bridge.SpanID]span.Span
	entered   []entered
}

type entered struct {
	id    bridge.SpanID
	guard span.Guard
}

func newHost(vm *goja.Runtime) *host {
	h := &host{
		vm:    vm,
		spans: make(map[bridge.SpanID]span.Span),
	}
	if json := vm.Get("JSON"); json != nil {
		h.stringify, _ = goja.AssertFunction(json.ToObject(vm).Get("stringify"))
	}
	return h
}

// install exposes the host functions and console on vm.
func (h *host) install() error {
	fns := h.vm.NewObject()
	for name, fn := range map[string]func(goja.FunctionCall) goja.Value{
		"enabled": h.enabled,
		"newSpan": h.newSpan,
		"record":  h.record,
		"event":   h.event,
		"enter":   h.enter,
		"exit":    h.exit,
		"close":   h.close,
	} {
		if err := fns.Set(name, fn); err != nil {
			return err
		}
	}
	if err := h.vm.Set("__host", fns); err != nil {
		return err
	}

	console := h.vm.NewObject()
	for name, level := range map[string]bridge.Level{
		"log":   bridge.LevelInfo,
		"info":  bridge.LevelInfo,
		"debug": bridge.LevelDebug,
		"warn":  bridge.LevelWarn,
		"error": bridge.LevelError,
	} {
		if err := console.Set(name, h.console(level)); err != nil {
			return err
		}
	}
	return h.vm.Set("console", console)
}

// enabled(level, target, name) -> bool
func (h *host) enabled(call goja.FunctionCall) goja.Value {
	level, ok := parseLevel(call.Argument(0))
	if !ok {
		return h.vm.ToValue(false)
	}
	meta := bridge.NewMetadata(level, call.Argument(1).String(), call.Argument(2).String())
	return h.vm.ToValue(span.Enabled(&meta))
}

// newSpan(level, fields) -> id
//
// The span is always named TraceIdentifier under the TraceIdentifier target.
// Callers put the real name and target in the reserved fields.
func (h *host) newSpan(call goja.FunctionCall) goja.Value {
	level, ok := parseLevel(call.Argument(0))
	if !ok {
		return h.vm.ToValue(0)
	}
	meta := bridge.NewMetadata(level, bridge.TraceIdentifier, bridge.TraceIdentifier)
	s := span.New(bridge.NewAttributes(meta, bridge.NewFieldSet(h.fields(call.Argument(1))...)))
	id := s.ID()
	if s.IsNone() || id == bridge.NoSpan {
		return h.vm.ToValue(0)
	}
	if id > maxSafeInteger {
		s.Close()
		return h.vm.ToValue(0)
	}
	h.spans[id] = s
	return h.vm.ToValue(int64(id))
}

// record(id, fields)
func (h *host) record(call goja.FunctionCall) goja.Value {
	if s, ok := h.lookup(call.Argument(0)); ok {
		s.Record(h.fields(call.Argument(1))...)
	}
	return goja.Undefined()
}

// event(level, target, message, fields)
func (h *host) event(call goja.FunctionCall) goja.Value {
	level, ok := parseLevel(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	span.Log(level, call.Argument(1).String(), call.Argument(2).String(), h.fields(call.Argument(3))...)
	return goja.Undefined()
}

// enter(id)
func (h *host) enter(call goja.FunctionCall) goja.Value {
	s, ok := h.lookup(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	h.entered = append(h.entered, entered{id: s.ID(), guard: s.Enter()})
	return goja.Undefined()
}

// exit(id) releases the most recent entry of id. Unknown ids are ignored.
func (h *host) exit(call goja.FunctionCall) goja.Value {
	id, ok := toSpanID(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	for i := len(h.entered) - 1; i >= 0; i-- {
		if h.entered[i].id != id {
			continue
		}
		h.entered[i].guard.Exit()
		h.entered = append(h.entered[:i], h.entered[i+1:]...)
		break
	}
	return goja.Undefined()
}

// close(id) retires a span handle. A span that is still entered ends on its
// last exit.
func (h *host) close(call goja.FunctionCall) goja.Value {
	s, ok := h.lookup(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	delete(h.spans, s.ID())
	s.Close()
	return goja.Undefined()
}

// release exits every entry still held, innermost first, then closes every
// span the run created.
func (h *host) release() {
	for i := len(h.entered) - 1; i >= 0; i-- {
		h.entered[i].guard.Exit()
	}
	h.entered = nil
	for id, s := range h.spans {
		s.Close()
		delete(h.spans, id)
	}
}

func (h *host) console(level bridge.Level) func(goja.FunctionCall) goja.Value {
	return func(call goja.FunctionCall) goja.Value {
		parts := make([]string, len(call.Arguments))
		for i, arg := range call.Arguments {
			parts[i] = arg.String()
		}
		span.Log(level, ConsoleTarget, strings.Join(parts, " "))
		return goja.Undefined()
	}
}

func (h *host) lookup(v goja.Value) (span.Span, bool) {
	id, ok := toSpanID(v)
	if !ok {
		return span.None(), false
	}
	s, ok := h.spans[id]
	return s, ok
}

// fields converts a plain JS object into bridge fields in key order.
func (h *host) fields(v goja.Value) []bridge.Field {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil
	}
	keys := obj.Keys()
	fields := make([]bridge.Field, 0, len(keys))
	for _, key := range keys {
		fields = append(fields, bridge.F(key, h.value(obj.Get(key))))
	}
	return fields
}

// value maps a JS value onto a field value. Integral numbers become I64,
// other numbers F64. Anything that is not a boolean, number or string is
// sent as a debug string.
func (h *host) value(v goja.Value) bridge.Value {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return bridge.DebugStr(stringOf(v))
	}
	switch x := v.Export().(type) {
	case bool:
		return bridge.Bool(x)
	case int64:
		return bridge.I64(x)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) <= maxSafeInteger {
			return bridge.I64(int64(x))
		}
		return bridge.F64(x)
	case string:
		return bridge.Str(x)
	}
	if h.stringify != nil {
		if out, err := h.stringify(goja.Undefined(), v); err == nil && !goja.IsUndefined(out) {
			return bridge.DebugStr(out.String())
		}
	}
	return bridge.DebugStr(v.String())
}

func stringOf(v goja.Value) string {
	if v == nil {
		return "undefined"
	}
	return v.String()
}

func parseLevel(v goja.Value) (bridge.Level, bool) {
	level, err := bridge.ParseLevel(v.String())
	return level, err == nil
}

func toSpanID(v goja.Value) (bridge.SpanID, bool) {
	n := v.ToInteger()
	if n <= 0 {
		return bridge.NoSpan, false
	}
	return bridge.SpanID(n), true
}
