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

// Package errors defines the typed errors returned by host setup code and
// the guest sandbox. Guest tracing calls never return errors.
package errors

import (
	"fmt"
	"time"
)

// ValidationError represents invalid user input, such as a bad filter
// directive or an unknown subscriber kind.
type ValidationError struct {
	// Field identifies which input failed validation
	Field string

	// Message is the human-readable error description
	Message string

	// Hint provides actionable guidance for fixing the error
	Hint string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
	}
	return fmt.Sprintf("validation failed: %s", e.Message)
}

func (e *ValidationError) ErrorType() string { return "validation" }
func (e *ValidationError) IsRetryable() bool { return false }
func (e *ValidationError) IsUserVisible() bool { return true }
func (e *ValidationError) UserMessage() string { return e.Error() }
func (e *ValidationError) Suggestion() string { return e.Hint }

// NotFoundError represents a missing resource: a script, a span database,
// or a stored span.
type NotFoundError struct {
	// Resource is the type of resource (e.g., "script", "span", "trace")
	Resource string

	// ID is the identifier that was not found
	ID string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) ErrorType() string { return "not_found" }
func (e *NotFoundError) IsRetryable() bool { return false }

// ConfigError represents configuration problems.
type ConfigError struct {
	// Key is the configuration key that has the problem (e.g., "tracing.filter")
	Key string

	// Reason explains what's wrong with the configuration
	Reason string

	// Cause is the underlying error (e.g., file read error, parse error)
	Cause error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Key != "" {
		msg += " at " + e.Key
	}
	msg += ": " + e.Reason
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

func (e *ConfigError) ErrorType() string { return "config" }
func (e *ConfigError) IsRetryable() bool { return false }
func (e *ConfigError) IsUserVisible() bool { return true }
func (e *ConfigError) UserMessage() string { return e.Error() }
func (e *ConfigError) Suggestion() string {
	return "Check the configuration file and TRACEBRIDGE_* environment variables"
}

// TimeoutError represents an operation that exceeded its deadline.
type TimeoutError struct {
	// Operation describes what timed out (e.g., "script main.js")
	Operation string

	// Duration is how long the operation ran before timing out
	Duration time.Duration

	// Cause is the underlying error (if any)
	Cause error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("%s timed out after %v", e.Operation, e.Duration)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *TimeoutError) Unwrap() error {
	return e.Cause
}

func (e *TimeoutError) ErrorType() string { return "timeout" }
func (e *TimeoutError) IsRetryable() bool { return true }

// SandboxErrorKind classifies a failed guest script.
type SandboxErrorKind string

const (
	// SandboxCompile means the script did not parse.
	SandboxCompile SandboxErrorKind = "compile"

	// SandboxException means the script threw.
	SandboxException SandboxErrorKind = "exception"

	// SandboxInterrupted means the host stopped the script, by timeout or
	// cancellation.
	SandboxInterrupted SandboxErrorKind = "interrupted"
)

// SandboxError is returned when a guest script fails. Spans the script
// entered are exited before the error reaches the caller.
type SandboxError struct {
	// Script is the name the script was run under
	Script string

	// Kind classifies the failure
	Kind SandboxErrorKind

	// Message is the guest's error message
	Message string

	// Stack is the guest stack trace, if known
	Stack string

	// Cause is the underlying error
	Cause error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("script %s: %s: %s", e.Script, e.Kind, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *SandboxError) Unwrap() error {
	return e.Cause
}

func (e *SandboxError) ErrorType() string { return "sandbox_" + string(e.Kind) }
func (e *SandboxError) IsRetryable() bool { return e.Kind == SandboxInterrupted }
func (e *SandboxError) IsUserVisible() bool { return true }
func (e *SandboxError) UserMessage() string { return e.Message }

func (e *SandboxError) Suggestion() string {
	switch e.Kind {
	case SandboxCompile:
		return "Check the script for syntax errors"
	case SandboxInterrupted:
		return "Raise sandbox.timeout or shorten the script"
	default:
		return ""
	}
}
