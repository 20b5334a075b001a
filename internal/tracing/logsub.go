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
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/tombee/tracebridge/internal/log"
	"github.com/tombee/tracebridge/pkg/bridge"
)

// LogSubscriber writes guest spans and events to a structured logger.
// Events log at the guest level mapped onto slog; span closes log at the
// span's own level with the elapsed time once the handle is closed and no
// Enter is outstanding.
type LogSubscriber struct {
	logger *slog.Logger
	filter Filter

	nextID atomic.Uint64

	mu    sync.Mutex
	spans map[bridge.SpanID]*logSpan
	stack []bridge.SpanID
}

type logSpan struct {
	name   string
	target string
	level  bridge.Level
	attrs  []any
	depth  int
	opened time.Time

	closing bool
}

// NewLogSubscriber creates a subscriber that logs through logger.
func NewLogSubscriber(logger *slog.Logger, filter Filter) *LogSubscriber {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSubscriber{
		logger: log.WithComponent(logger, "guest"),
		filter: filter,
		spans:  make(map[bridge.SpanID]*logSpan),
	}
}

// Enabled implements bridge.Subscriber.
func (l *LogSubscriber) Enabled(meta *bridge.Metadata) bool {
	return l.filter.Enabled(meta) &&
		l.logger.Enabled(context.Background(), log.FromBridge(meta.Level))
}

// NewSpan implements bridge.Subscriber.
func (l *LogSubscriber) NewSpan(attrs bridge.Attributes) bridge.SpanID {
	if !l.filter.AllowsSpan(&attrs) ||
		!l.logger.Enabled(context.Background(), log.FromBridge(attrs.Metadata.Level)) {
		return bridge.NoSpan
	}
	name, target := bridge.Resolve(&attrs.Metadata, attrs.Values)

	id := bridge.SpanID(l.nextID.Add(1))
	l.mu.Lock()
	l.spans[id] = &logSpan{
		name:   name,
		target: target,
		level:  attrs.Metadata.Level,
		attrs:  logFields(attrs.Values, attrs.Metadata.IsRemapped()),
		opened: time.Now(),
	}
	l.mu.Unlock()
	return id
}

// Record implements bridge.Subscriber.
func (l *LogSubscriber) Record(id bridge.SpanID, values bridge.FieldSet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.spans[id]; ok {
		s.attrs = append(s.attrs, logFields(values, false)...)
	}
}

// Event implements bridge.Subscriber.
func (l *LogSubscriber) Event(ev bridge.Event) {
	if !l.filter.AllowsEvent(&ev) ||
		!l.logger.Enabled(context.Background(), log.FromBridge(ev.Metadata.Level)) {
		return
	}
	name, target := bridge.Resolve(&ev.Metadata, ev.Values)

	attrs := []any{log.TargetKey, target}
	if path := l.path(); path != "" {
		attrs = append(attrs, "span", path)
	}
	attrs = append(attrs, logFields(ev.Values, ev.Metadata.IsRemapped())...)

	l.logger.Log(context.Background(), log.FromBridge(ev.Metadata.Level), name, attrs...)
}

// Enter implements bridge.Subscriber.
func (l *LogSubscriber) Enter(id bridge.SpanID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if s, ok := l.spans[id]; ok {
		s.depth++
		l.stack = append(l.stack, id)
	}
}

// Exit implements bridge.Subscriber.
func (l *LogSubscriber) Exit(id bridge.SpanID) {
	l.mu.Lock()
	s, ok := l.spans[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	for i := len(l.stack) - 1; i >= 0; i-- {
		if l.stack[i] == id {
			l.stack = append(l.stack[:i], l.stack[i+1:]...)
			break
		}
	}
	if s.depth > 0 {
		s.depth--
	}
	closed := s.depth == 0 && s.closing
	if closed {
		delete(l.spans, id)
	}
	l.mu.Unlock()

	if closed {
		l.finish(id, s)
	}
}

// CloseSpan implements bridge.SpanCloser.
func (l *LogSubscriber) CloseSpan(id bridge.SpanID) {
	l.mu.Lock()
	s, ok := l.spans[id]
	if !ok {
		l.mu.Unlock()
		return
	}
	closed := s.depth == 0
	if closed {
		delete(l.spans, id)
	} else {
		s.closing = true
	}
	l.mu.Unlock()

	if closed {
		l.finish(id, s)
	}
}

// Close logs every span that is still open.
func (l *LogSubscriber) Close(ctx context.Context) error {
	l.mu.Lock()
	open := l.spans
	l.spans = make(map[bridge.SpanID]*logSpan)
	l.stack = l.stack[:0]
	l.mu.Unlock()

	for id, s := range open {
		l.finish(id, s)
	}
	return ctx.Err()
}

func (l *LogSubscriber) finish(id bridge.SpanID, s *logSpan) {
	attrs := append([]any{
		log.TargetKey, s.target,
		log.SpanIDKey, uint64(id),
		log.DurationKey, time.Since(s.opened).Milliseconds(),
	}, s.attrs...)
	l.logger.Log(context.Background(), log.FromBridge(s.level), "span closed: "+s.name, attrs...)
}

// path renders the names of the entered spans, outermost first.
func (l *LogSubscriber) path() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	names := make([]string, 0, len(l.stack))
	for _, id := range l.stack {
		if s, ok := l.spans[id]; ok {
			names = append(names, s.name)
		}
	}
	return strings.Join(names, ":")
}

func logFields(values bridge.FieldSet, remapped bool) []any {
	attrs := make([]any, 0, values.Len())
	for _, f := range values.All() {
		v, ok := f.Value()
		if !ok || (remapped && bridge.IsReservedKey(f.Name)) {
			continue
		}
		attrs = append(attrs, slog.Any(f.Name, v.Any()))
	}
	return attrs
}

var (
	_ bridge.Subscriber = (*LogSubscriber)(nil)
	_ bridge.SpanCloser = (*LogSubscriber)(nil)
)
