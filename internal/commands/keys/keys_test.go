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

package keys

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/tombee/tracebridge/internal/commands/shared"
)

func execute(t *testing.T) string {
	t.Helper()
	cmd := NewCommand()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetArgs(nil)
	if err := cmd.Execute(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return buf.String()
}

func TestKeys_Text(t *testing.T) {
	shared.SetColorForTest(false)
	shared.SetJSONForTest(false)

	out := execute(t)
	for _, want := range []string{
		"wasm_tracing",
		"target key:       target",
		"name key:         name",
		"tracebridge.session_id",
		"TRACE < DEBUG < INFO < WARN < ERROR",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestKeys_JSON(t *testing.T) {
	shared.SetJSONForTest(true)
	t.Cleanup(func() { shared.SetJSONForTest(false) })

	var got struct {
		Command string `json:"command"`
		Reserved
	}
	if err := json.Unmarshal([]byte(execute(t)), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if got.Command != "keys" {
		t.Errorf("expected command keys, got %q", got.Command)
	}
	if got.TraceIdentifier != "wasm_tracing" || got.TargetKey != "target" || got.NameKey != "name" {
		t.Errorf("unexpected identifiers %+v", got.Reserved)
	}
	if len(got.Levels) != 5 || got.Levels[0] != "TRACE" || got.Levels[4] != "ERROR" {
		t.Errorf("unexpected levels %v", got.Levels)
	}
}
