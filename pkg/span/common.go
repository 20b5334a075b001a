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

package span

import "github.com/tombee/tracebridge/pkg/bridge"

// DefaultTarget is the target used when a call site only gives a level and name.
const DefaultTarget = "guest"

// Within runs body inside s. The span is exited on every return path from
// body, including panics. s stays open so it can be entered again; close it
// when it is finished.
func Within(s Span, body func()) {
	g := s.Enter()
	defer g.Exit()
	body()
}

// WithinValue runs body inside s and returns its result.
func WithinValue[T any](s Span, body func() T) T {
	g := s.Enter()
	defer g.Exit()
	return body()
}

// WithinNamed creates a span from level and name, runs body inside it and
// returns its result. The span is closed when body returns.
func WithinNamed[T any](level bridge.Level, name string, body func() T) T {
	g := Enter(level, name)
	defer g.Exit()
	return body()
}

// TraceSpan creates a TRACE span.
func TraceSpan(target, name string, fields ...bridge.Field) Span {
	return Named(bridge.LevelTrace, target, name, fields...)
}

// DebugSpan creates a DEBUG span.
func DebugSpan(target, name string, fields ...bridge.Field) Span {
	return Named(bridge.LevelDebug, target, name, fields...)
}

// InfoSpan creates an INFO span.
func InfoSpan(target, name string, fields ...bridge.Field) Span {
	return Named(bridge.LevelInfo, target, name, fields...)
}

// WarnSpan creates a WARN span.
func WarnSpan(target, name string, fields ...bridge.Field) Span {
	return Named(bridge.LevelWarn, target, name, fields...)
}

// ErrorSpan creates an ERROR span.
func ErrorSpan(target, name string, fields ...bridge.Field) Span {
	return Named(bridge.LevelError, target, name, fields...)
}

// Trace emits a TRACE event.
func Trace(target, message string, fields ...bridge.Field) {
	Log(bridge.LevelTrace, target, message, fields...)
}

// Debug emits a DEBUG event.
func Debug(target, message string, fields ...bridge.Field) {
	Log(bridge.LevelDebug, target, message, fields...)
}

// Info emits an INFO event.
func Info(target, message string, fields ...bridge.Field) {
	Log(bridge.LevelInfo, target, message, fields...)
}

// Warn emits a WARN event.
func Warn(target, message string, fields ...bridge.Field) {
	Log(bridge.LevelWarn, target, message, fields...)
}

// Error emits an ERROR event.
func Error(target, message string, fields ...bridge.Field) {
	Log(bridge.LevelError, target, message, fields...)
}
