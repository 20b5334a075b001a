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
	"fmt"
	"io"
	"os"

	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// Exit codes for the tracebridge CLI
const (
	ExitSuccess       = 0
	ExitScriptFailed  = 1
	ExitInvalidConfig = 2
	ExitNotFound      = 3
	ExitInterrupted   = 4
)

// ExitError is an error that carries a process exit code.
type ExitError struct {
	Code    int
	Message string
	Cause   error
}

func (e *ExitError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Cause
}

// NewExitError wraps cause with the exit code matching its type.
func NewExitError(msg string, cause error) *ExitError {
	return &ExitError{
		Code:    ExitCodeFor(cause),
		Message: msg,
		Cause:   cause,
	}
}

// ExitCodeFor maps an error onto an exit code.
func ExitCodeFor(err error) int {
	if err == nil {
		return ExitSuccess
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}

	var cfgErr *tberrors.ConfigError
	var valErr *tberrors.ValidationError
	if errors.As(err, &cfgErr) || errors.As(err, &valErr) {
		return ExitInvalidConfig
	}

	var nfErr *tberrors.NotFoundError
	if errors.As(err, &nfErr) {
		return ExitNotFound
	}

	var sbErr *tberrors.SandboxError
	if errors.As(err, &sbErr) && sbErr.Kind == tberrors.SandboxInterrupted {
		return ExitInterrupted
	}

	return ExitScriptFailed
}

// HandleExitError prints err with any suggestion and exits with its code.
func HandleExitError(err error) {
	if err == nil {
		return
	}
	PrintError(os.Stderr, err)
	os.Exit(ExitCodeFor(err))
}

// PrintError writes err and, if the chain holds a user visible error, its
// suggestion.
func PrintError(w io.Writer, err error) {
	if msg := err.Error(); msg != "" {
		fmt.Fprintln(w, "Error:", msg)
	}
	printUserVisibleSuggestion(w, err)
}

func printUserVisibleSuggestion(w io.Writer, err error) {
	var userErr tberrors.UserVisibleError
	if !errors.As(err, &userErr) || !userErr.IsUserVisible() {
		return
	}
	if suggestion := userErr.Suggestion(); suggestion != "" {
		fmt.Fprintf(w, "\nSuggestion: %s\n", suggestion)
	}
}
