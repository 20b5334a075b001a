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

package errors_test

import (
	"errors"
	"io/fs"
	"testing"
	"time"

	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

func TestValidationError_Error(t *testing.T) {
	tests := []struct {
		name    string
		err     *tberrors.ValidationError
		wantMsg string
	}{
		{
			name:    "with field",
			err:     &tberrors.ValidationError{Field: "filter", Message: "unknown level \"loud\""},
			wantMsg: "validation failed on filter: unknown level \"loud\"",
		},
		{
			name:    "without field",
			err:     &tberrors.ValidationError{Message: "no scripts given"},
			wantMsg: "validation failed: no scripts given",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("ValidationError.Error() = %q, want %q", got, tt.wantMsg)
			}
		})
	}
}

func TestNotFoundError_Error(t *testing.T) {
	err := &tberrors.NotFoundError{Resource: "script", ID: "main.js"}
	if got, want := err.Error(), "script not found: main.js"; got != want {
		t.Errorf("NotFoundError.Error() = %q, want %q", got, want)
	}
	if err.ErrorType() != "not_found" {
		t.Errorf("ErrorType() = %q", err.ErrorType())
	}
}

func TestConfigError(t *testing.T) {
	cause := fs.ErrNotExist
	err := &tberrors.ConfigError{Key: "tracing.exporters", Reason: "cannot read file", Cause: cause}

	if got, want := err.Error(), "config error at tracing.exporters: cannot read file: file does not exist"; got != want {
		t.Errorf("ConfigError.Error() = %q, want %q", got, want)
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("ConfigError should unwrap to its cause")
	}

	noKey := &tberrors.ConfigError{Reason: "empty"}
	if got, want := noKey.Error(), "config error: empty"; got != want {
		t.Errorf("ConfigError.Error() = %q, want %q", got, want)
	}
}

func TestTimeoutError(t *testing.T) {
	err := &tberrors.TimeoutError{Operation: "script loop.js", Duration: 2 * time.Second}
	if got, want := err.Error(), "script loop.js timed out after 2s"; got != want {
		t.Errorf("TimeoutError.Error() = %q, want %q", got, want)
	}
	if !err.IsRetryable() {
		t.Error("timeouts should be retryable")
	}
}

func TestSandboxError(t *testing.T) {
	tests := []struct {
		name          string
		err           *tberrors.SandboxError
		wantMsg       string
		wantType      string
		wantRetryable bool
		wantHint      bool
	}{
		{
			name:     "compile",
			err:      &tberrors.SandboxError{Script: "a.js", Kind: tberrors.SandboxCompile, Message: "Unexpected token"},
			wantMsg:  "script a.js: compile: Unexpected token",
			wantType: "sandbox_compile",
			wantHint: true,
		},
		{
			name:     "exception",
			err:      &tberrors.SandboxError{Script: "b.js", Kind: tberrors.SandboxException, Message: "Error: boom"},
			wantMsg:  "script b.js: exception: Error: boom",
			wantType: "sandbox_exception",
		},
		{
			name:          "interrupted",
			err:           &tberrors.SandboxError{Script: "c.js", Kind: tberrors.SandboxInterrupted, Message: "timeout"},
			wantMsg:       "script c.js: interrupted: timeout",
			wantType:      "sandbox_interrupted",
			wantRetryable: true,
			wantHint:      true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.wantMsg {
				t.Errorf("Error() = %q, want %q", got, tt.wantMsg)
			}
			if got := tt.err.ErrorType(); got != tt.wantType {
				t.Errorf("ErrorType() = %q, want %q", got, tt.wantType)
			}
			if got := tt.err.IsRetryable(); got != tt.wantRetryable {
				t.Errorf("IsRetryable() = %v, want %v", got, tt.wantRetryable)
			}
			if got := tt.err.Suggestion() != ""; got != tt.wantHint {
				t.Errorf("Suggestion() = %q", tt.err.Suggestion())
			}
			if tt.err.UserMessage() != tt.err.Message {
				t.Errorf("UserMessage() = %q, want %q", tt.err.UserMessage(), tt.err.Message)
			}
		})
	}
}
