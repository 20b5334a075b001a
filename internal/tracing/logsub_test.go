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
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tombee/tracebridge/internal/log"
	"github.com/tombee/tracebridge/pkg/bridge"
)

func newLogSubscriber(t *testing.T, level slog.Level, filter Filter) (*LogSubscriber, *bytes.Buffer) {
	t.Helper()
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: level}))
	return NewLogSubscriber(logger, filter), &buf
}

func logLines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var lines []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}
	return lines
}

func TestLogSubscriber_EventInsideSpans(t *testing.T) {
	sub, buf := newLogSubscriber(t, slog.LevelDebug, AllowAll())

	outer := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "outer"))
	sub.Enter(outer)
	inner := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "inner"))
	sub.Enter(inner)
	sub.Event(bridge.NewEvent(
		bridge.NewMetadata(bridge.LevelWarn, "app::db", "slow"),
		bridge.NewFieldSet(bridge.F("ms", bridge.I64(250))),
	))
	sub.Exit(inner)
	sub.CloseSpan(inner)
	sub.Exit(outer)
	sub.CloseSpan(outer)

	lines := logLines(t, buf)
	require.Len(t, lines, 3)

	event := lines[0]
	assert.Equal(t, "slow", event["msg"])
	assert.Equal(t, "WARN", event["level"])
	assert.Equal(t, "app::db", event[log.TargetKey])
	assert.Equal(t, "outer:inner", event["span"])
	assert.Equal(t, "guest", event["component"])
	assert.Equal(t, float64(250), event["ms"])

	assert.Equal(t, "span closed: inner", lines[1]["msg"])
	assert.Equal(t, "span closed: outer", lines[2]["msg"])
	assert.Contains(t, lines[2], log.DurationKey)
}

func TestLogSubscriber_RecordedFieldsOnClose(t *testing.T) {
	sub, buf := newLogSubscriber(t, slog.LevelDebug, AllowAll())

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "work"))
	sub.Enter(id)
	sub.Record(id, bridge.NewFieldSet(bridge.F("rows", bridge.I64(3))))
	sub.Exit(id)
	sub.CloseSpan(id)

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, float64(3), lines[0]["rows"])
}

func TestLogSubscriber_RemappedNames(t *testing.T) {
	sub, buf := newLogSubscriber(t, slog.LevelDebug, AllowAll())

	id := sub.NewSpan(bridge.RemappedAttributes(bridge.LevelInfo, "guest::mod", "compute", bridge.FieldSet{}))
	sub.Enter(id)
	sub.Exit(id)
	sub.CloseSpan(id)

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "span closed: compute", lines[0]["msg"])
	assert.Equal(t, "guest::mod", lines[0][log.TargetKey])
	assert.NotContains(t, lines[0], bridge.NameKey)
}

func TestLogSubscriber_LoggerLevelGates(t *testing.T) {
	sub, buf := newLogSubscriber(t, slog.LevelWarn, AllowAll())

	info := bridge.NewMetadata(bridge.LevelInfo, "app", "quiet")
	assert.False(t, sub.Enabled(&info))
	assert.Equal(t, bridge.NoSpan, sub.NewSpan(bridge.NewAttributes(info, bridge.FieldSet{})))

	sub.Event(bridge.NewEvent(info, bridge.FieldSet{}))
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelError, "app", "loud"), bridge.FieldSet{}))

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "loud", lines[0]["msg"])
}

func TestLogSubscriber_TraceLevel(t *testing.T) {
	sub, buf := newLogSubscriber(t, log.LevelTrace, AllowAll())

	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelTrace, "app", "fine"), bridge.FieldSet{}))

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "fine", lines[0]["msg"])
}

func TestLogSubscriber_FilterGates(t *testing.T) {
	filter, err := ParseFilter("info,chatty=error")
	require.NoError(t, err)
	sub, buf := newLogSubscriber(t, slog.LevelDebug, filter)

	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelWarn, "chatty", "hidden"), bridge.FieldSet{}))
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelWarn, "app", "shown"), bridge.FieldSet{}))

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "shown", lines[0]["msg"])
}

func TestLogSubscriber_ReentryLogsOnceOnClose(t *testing.T) {
	sub, buf := newLogSubscriber(t, slog.LevelDebug, AllowAll())

	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "loop"))
	sub.Enter(id)
	sub.Exit(id)
	sub.Enter(id)
	sub.Event(bridge.NewEvent(bridge.NewMetadata(bridge.LevelInfo, "app", "tick"), bridge.FieldSet{}))
	sub.Exit(id)

	lines := logLines(t, buf)
	require.Len(t, lines, 1)
	assert.Equal(t, "loop", lines[0]["span"])

	sub.CloseSpan(id)
	lines = logLines(t, buf)
	require.Len(t, lines, 2)
	assert.Equal(t, "span closed: loop", lines[1]["msg"])

	sub.CloseSpan(id)
	assert.Len(t, logLines(t, buf), 2)
}

func TestLogSubscriber_CloseFlushesOpenSpans(t *testing.T) {
	sub, buf := newLogSubscriber(t, slog.LevelDebug, AllowAll())

	sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "never-entered"))
	id := sub.NewSpan(spanAttrs(bridge.LevelInfo, "app", "left-open"))
	sub.Enter(id)

	require.NoError(t, sub.Close(context.Background()))

	var msgs []any
	for _, line := range logLines(t, buf) {
		msgs = append(msgs, line["msg"])
	}
	assert.ElementsMatch(t, []any{"span closed: never-entered", "span closed: left-open"}, msgs)
}
