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

// Package storage persists exported guest spans in SQLite.
package storage

import "time"

// StatusCode mirrors the OpenTelemetry span status.
type StatusCode int

const (
	StatusUnset StatusCode = 0
	StatusOK    StatusCode = 1
	StatusError StatusCode = 2
)

// String returns the lower-case status name.
func (c StatusCode) String() string {
	switch c {
	case StatusOK:
		return "ok"
	case StatusError:
		return "error"
	default:
		return "unset"
	}
}

// Span is a stored span.
type Span struct {
	TraceID  string
	SpanID   string
	ParentID string
	Name     string

	// Target and Level are the guest metadata, empty for host spans.
	Target string
	Level  string

	StartTime time.Time
	EndTime   time.Time

	Status        StatusCode
	StatusMessage string

	Attributes map[string]any
	Events     []Event
}

// Duration returns the span's elapsed time, or zero if it has not ended.
func (s *Span) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return 0
	}
	return s.EndTime.Sub(s.StartTime)
}

// Event is a timestamped event recorded inside a span.
type Event struct {
	Name       string
	Timestamp  time.Time
	Attributes map[string]any
}
