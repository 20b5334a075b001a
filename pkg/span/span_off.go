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

//go:build tracebridge_off

package span

import "github.com/tombee/tracebridge/pkg/bridge"

// Backend names the build variant.
const Backend = "off"

// Span is inert in builds without tracing.
type Span struct{}

// None returns an inert span.
func None() Span { return Span{} }

// New returns an inert span.
func New(bridge.Attributes) Span { return Span{} }

// Named returns an inert span.
func Named(bridge.Level, string, string, ...bridge.Field) Span { return Span{} }

// ID always returns bridge.NoSpan.
func (Span) ID() bridge.SpanID { return bridge.NoSpan }

// IsNone always reports true.
func (Span) IsNone() bool { return true }

// Record does nothing.
func (Span) Record(...bridge.Field) {}

// Close does nothing.
func (Span) Close() {}

// Enter returns an inert guard.
func (Span) Enter() Guard { return Guard{} }

// Guard is inert in builds without tracing.
type Guard struct{}

// Exit does nothing.
func (*Guard) Exit() {}

// Enter returns an inert guard.
func Enter(bridge.Level, string) Guard { return Guard{} }

// Enabled always reports false.
func Enabled(*bridge.Metadata) bool { return false }

// Emit does nothing.
func Emit(bridge.Event) {}

// Log does nothing.
func Log(bridge.Level, string, string, ...bridge.Field) {}
