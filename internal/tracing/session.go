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

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// AttrSession is the span attribute that carries the session ID.
const AttrSession = "tracebridge.session_id"

// SessionID identifies one guest execution across logs, spans and metrics.
// It uses RFC 4122 UUID format.
type SessionID string

type sessionKeyType struct{}

var sessionKey = sessionKeyType{}

// NewSessionID generates a new session ID.
func NewSessionID() SessionID {
	return SessionID(uuid.NewString())
}

// ParseSessionID accepts a caller supplied ID if it is a valid UUID.
func ParseSessionID(s string) (SessionID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		return "", false
	}
	return SessionID(id.String()), true
}

func (s SessionID) String() string {
	return string(s)
}

// Attribute returns the session as a span attribute.
func (s SessionID) Attribute() attribute.KeyValue {
	return attribute.String(AttrSession, string(s))
}

// WithSession stores the session ID in ctx.
func WithSession(ctx context.Context, id SessionID) context.Context {
	return context.WithValue(ctx, sessionKey, id)
}

// SessionFromContext returns the session ID in ctx, or "" if there is none.
func SessionFromContext(ctx context.Context) SessionID {
	if id, ok := ctx.Value(sessionKey).(SessionID); ok {
		return id
	}
	return ""
}
