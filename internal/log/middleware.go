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
	"context"
	"log/slog"
	"time"
)

// Execution describes one guest script run for logging purposes.
type Execution struct {
	// SessionID identifies the sandbox session.
	SessionID string

	// Script is the script name.
	Script string

	// Metadata contains additional run metadata.
	Metadata map[string]any
}

// ExecutionResult describes how a guest script run ended.
type ExecutionResult struct {
	// Success indicates whether the script completed without error.
	Success bool

	// Error is the error message if the script failed.
	Error string

	// DurationMs is the run duration in milliseconds.
	DurationMs int64
}

// LogExecutionStart logs the start of a guest script run.
func LogExecutionStart(logger *slog.Logger, exec *Execution) {
	attrs := []any{
		EventKey, "execution_start",
		SessionIDKey, exec.SessionID,
		ScriptKey, exec.Script,
	}
	for k, v := range exec.Metadata {
		attrs = append(attrs, k, v)
	}
	logger.Debug("guest execution started", attrs...)
}

// LogExecutionEnd logs the end of a guest script run.
func LogExecutionEnd(logger *slog.Logger, exec *Execution, res *ExecutionResult) {
	attrs := []any{
		EventKey, "execution_end",
		SessionIDKey, exec.SessionID,
		ScriptKey, exec.Script,
		"success", res.Success,
		DurationKey, res.DurationMs,
	}
	if res.Error != "" {
		attrs = append(attrs, "error", res.Error)
	}

	level := slog.LevelInfo
	message := "guest execution completed"
	if !res.Success {
		level = slog.LevelError
		message = "guest execution failed"
	}

	logger.Log(context.Background(), level, message, attrs...)
}

// ExecutionMiddleware wraps guest runs with start and end logging.
type ExecutionMiddleware struct {
	logger *slog.Logger
}

// NewExecutionMiddleware creates a new execution logging middleware.
func NewExecutionMiddleware(logger *slog.Logger) *ExecutionMiddleware {
	return &ExecutionMiddleware{
		logger: logger,
	}
}

// Handler logs exec, runs handler, and logs the outcome.
func (m *ExecutionMiddleware) Handler(exec *Execution, handler func() error) error {
	start := time.Now()

	LogExecutionStart(m.logger, exec)

	err := handler()

	res := &ExecutionResult{
		Success:    err == nil,
		DurationMs: time.Since(start).Milliseconds(),
	}
	if err != nil {
		res.Error = err.Error()
	}

	LogExecutionEnd(m.logger, exec, res)

	return err
}
