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

package log

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func decodeLines(t *testing.T, buf *bytes.Buffer) []map[string]interface{} {
	t.Helper()
	var entries []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("expected valid JSON output: %v", err)
		}
		entries = append(entries, entry)
	}
	return entries
}

func TestLogExecutionStart(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "debug", Format: FormatJSON, Output: &buf})

	LogExecutionStart(logger, &Execution{
		SessionID: "sess-1",
		Script:    "hello.js",
		Metadata:  map[string]any{"bytes": 12},
	})

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["event"] != "execution_start" {
		t.Errorf("expected event to be 'execution_start', got: %v", entry["event"])
	}
	if entry["session_id"] != "sess-1" {
		t.Errorf("expected session_id to be 'sess-1', got: %v", entry["session_id"])
	}
	if entry["bytes"] != float64(12) {
		t.Errorf("expected bytes to be 12, got: %v", entry["bytes"])
	}
}

func TestLogExecutionEnd_Failure(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&Config{Level: "info", Format: FormatJSON, Output: &buf})

	LogExecutionEnd(logger,
		&Execution{SessionID: "sess-1", Script: "bad.js"},
		&ExecutionResult{Success: false, Error: "ReferenceError", DurationMs: 7},
	)

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	entry := entries[0]

	if entry["level"] != "ERROR" {
		t.Errorf("expected level to be 'ERROR', got: %v", entry["level"])
	}
	if entry["msg"] != "guest execution failed" {
		t.Errorf("unexpected msg: %v", entry["msg"])
	}
	if entry["error"] != "ReferenceError" {
		t.Errorf("expected error to be 'ReferenceError', got: %v", entry["error"])
	}
	if entry["duration_ms"] != float64(7) {
		t.Errorf("expected duration_ms to be 7, got: %v", entry["duration_ms"])
	}
}

func TestExecutionMiddleware_Handler(t *testing.T) {
	var buf bytes.Buffer
	mw := NewExecutionMiddleware(New(&Config{Level: "debug", Format: FormatJSON, Output: &buf}))

	called := false
	err := mw.Handler(&Execution{SessionID: "s", Script: "ok.js"}, func() error {
		called = true
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !called {
		t.Fatal("expected handler to be called")
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[1]["success"] != true {
		t.Errorf("expected success to be true, got: %v", entries[1]["success"])
	}
}

func TestExecutionMiddleware_HandlerError(t *testing.T) {
	var buf bytes.Buffer
	mw := NewExecutionMiddleware(New(&Config{Level: "info", Format: FormatJSON, Output: &buf}))

	want := errors.New("script failed")
	err := mw.Handler(&Execution{SessionID: "s", Script: "bad.js"}, func() error {
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("expected handler error to be returned, got %v", err)
	}

	entries := decodeLines(t, &buf)
	if len(entries) != 1 {
		t.Fatalf("expected only the end entry at info level, got %d", len(entries))
	}
	if entries[0]["error"] != "script failed" {
		t.Errorf("expected error to be 'script failed', got: %v", entries[0]["error"])
	}
}
