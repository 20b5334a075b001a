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

package config

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/zalando/go-keyring"

	"github.com/tombee/tracebridge/internal/commands/shared"
)

// setupTest isolates config lookup and resets global flags.
func setupTest(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	t.Setenv("TRACEBRIDGE_TRACE_KEY", "")
	keyring.MockInit()
	shared.SetColorForTest(false)
	shared.SetJSONForTest(false)
	shared.SetConfigPathForTest("")
	t.Cleanup(func() {
		shared.SetJSONForTest(false)
		shared.SetConfigPathForTest("")
	})
	return dir
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	shared.SetConfigPathForTest(path)
	return path
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	cmd.SilenceUsage = true
	cmd.SilenceErrors = true
	err := cmd.Execute()
	return out.String(), err
}

func TestConfigShowCommand(t *testing.T) {
	tests := []struct {
		name        string
		setupConfig string
		explicit    bool
		wantErr     bool
		wantOut     string
	}{
		{
			name:    "no config file uses defaults",
			wantOut: "defaults (no file at",
		},
		{
			name:     "explicit missing file",
			explicit: true,
			wantErr:  true,
		},
		{
			name: "valid config",
			setupConfig: `tracing:
  subscriber: log
  filter: app::db=debug,info
`,
			wantOut: "app::db=debug,info",
		},
		{
			name: "invalid config",
			setupConfig: `tracing:
  subscriber: carrier-pigeon
`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupTest(t)
			if tt.setupConfig != "" {
				writeConfig(t, tt.setupConfig)
			} else if tt.explicit {
				shared.SetConfigPathForTest(filepath.Join(t.TempDir(), "absent.yaml"))
			}

			out, err := run(t, newConfigShowCommand())
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v\n%s", err, tt.wantErr, out)
			}
			if tt.wantOut != "" && !strings.Contains(out, tt.wantOut) {
				t.Errorf("expected %q in output:\n%s", tt.wantOut, out)
			}
		})
	}
}

func TestConfigPathCommand(t *testing.T) {
	dir := setupTest(t)

	out, err := run(t, newConfigPathCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), filepath.Join(dir, "tracebridge")) {
		t.Errorf("expected path under %s, got %q", dir, out)
	}
}

func TestConfigPathJSON(t *testing.T) {
	setupTest(t)
	path := writeConfig(t, "log:\n  level: debug\n")
	shared.SetJSONForTest(true)

	out, err := run(t, newConfigPathCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var resp struct {
		Path     string `json:"path"`
		Exists   bool   `json:"exists"`
		SpanDB   string `json:"span_db"`
		Encrypts bool   `json:"encrypts"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if resp.Path != path || !resp.Exists {
		t.Errorf("unexpected path result %+v", resp)
	}
	if resp.SpanDB == "" {
		t.Error("span_db should be set")
	}
	if resp.Encrypts {
		t.Error("encrypts should be false without a trace key")
	}
}

func TestConfigShowJSON(t *testing.T) {
	setupTest(t)
	writeConfig(t, `tracing:
  exporters:
    - type: otlp
      endpoint: localhost:4317
      headers:
        authorization: Bearer abcdef1234567890
`)
	shared.SetJSONForTest(true)

	out, err := run(t, newConfigShowCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v\n%s", err, out)
	}

	var resp struct {
		Success bool           `json:"success"`
		Config  map[string]any `json:"config"`
	}
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("invalid JSON: %v\n%s", err, out)
	}
	if !resp.Success {
		t.Error("expected success")
	}
	if _, ok := resp.Config["tracing"]; !ok {
		t.Errorf("tracing section missing: %v", resp.Config)
	}
	if strings.Contains(out, "abcdef1234567890") {
		t.Error("header value should be masked")
	}
}

func TestMaskValue(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", ""},
		{"short", "****"},
		{"Bearer abcdef1234567890", "Bear***************7890"},
		{"${OTLP_TOKEN}", "${OTLP_TOKEN}"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := maskValue(tt.in); got != tt.want {
				t.Errorf("maskValue(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestConfigCommand(t *testing.T) {
	cmd := NewConfigCommand()

	if cmd.Use != "config" {
		t.Errorf("expected Use to be 'config', got %s", cmd.Use)
	}

	want := map[string]bool{"init": false, "show": false, "validate": false, "path": false, "trace-key": false}
	for _, sub := range cmd.Commands() {
		if _, ok := want[sub.Name()]; ok {
			want[sub.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected subcommand %q", name)
		}
	}

	if cmd.RunE == nil {
		t.Error("expected RunE to be set for default show behavior")
	}
}

func TestConfigShowWithEnvOverride(t *testing.T) {
	setupTest(t)
	t.Setenv("TRACEBRIDGE_TRACING_FILTER", "warn")

	out, err := run(t, newConfigShowCommand())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "filter: warn") {
		t.Errorf("environment override not applied:\n%s", out)
	}
}
