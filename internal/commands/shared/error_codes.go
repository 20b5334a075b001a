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

package shared

import (
	"errors"

	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// Error codes for JSON output
const (
	// Script errors (E100-E199)
	ErrorCodeScriptCompile     = "E101" // Script did not parse
	ErrorCodeScriptException   = "E102" // Script threw
	ErrorCodeScriptInterrupted = "E103" // Script timed out or was canceled

	// Configuration errors (E200-E299)
	ErrorCodeInvalidConfig = "E201" // Config file or environment is invalid
	ErrorCodeInvalidInput  = "E202" // Flag or argument is invalid

	// Resource errors (E400-E499)
	ErrorCodeNotFound = "E401" // Script, trace or database not found
	ErrorCodeInternal = "E402" // Anything else
)

// ErrorCodeFor maps an error onto its JSON error code.
func ErrorCodeFor(err error) string {
	var sbErr *tberrors.SandboxError
	if errors.As(err, &sbErr) {
		switch sbErr.Kind {
		case tberrors.SandboxCompile:
			return ErrorCodeScriptCompile
		case tberrors.SandboxInterrupted:
			return ErrorCodeScriptInterrupted
		default:
			return ErrorCodeScriptException
		}
	}

	var cfgErr *tberrors.ConfigError
	if errors.As(err, &cfgErr) {
		return ErrorCodeInvalidConfig
	}
	var valErr *tberrors.ValidationError
	if errors.As(err, &valErr) {
		return ErrorCodeInvalidInput
	}
	var nfErr *tberrors.NotFoundError
	if errors.As(err, &nfErr) {
		return ErrorCodeNotFound
	}
	return ErrorCodeInternal
}

// NewJSONError describes err for JSON output.
func NewJSONError(err error) JSONError {
	message, suggestion := tberrors.Describe(err)
	return JSONError{
		Code:       ErrorCodeFor(err),
		Message:    message,
		Suggestion: suggestion,
	}
}
