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

package sandbox

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/dop251/goja"

	"github.com/tombee/tracebridge/internal/log"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/pkg/bridge"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
	"github.com/tombee/tracebridge/pkg/span"
)

// Target is the target of the span each run is wrapped in.
const Target = "sandbox"

//go:embed prelude.js
var preludeSource string

var prelude = goja.MustCompile("prelude.js", preludeSource, true)

// Result is the outcome of a successful run.
type Result struct {
	// Value is the exported completion value of the script, nil for
	// undefined and null.
	Value any

	// Duration is how long the script ran.
	Duration time.Duration

	// SessionID identifies the run in logs, spans and metrics.
	SessionID tracing.SessionID
}

// Runtime runs guest scripts. Each run gets a fresh VM, but the installed
// subscriber keeps one entry stack for the whole process. Runs on separate
// goroutines interleave their Enter/Exit calls on that stack, so spans and
// events of concurrent runs may be parented to each other. Run scripts one
// at a time when span nesting matters.
type Runtime struct {
	cfg        Config
	logger     *slog.Logger
	metrics    *tracing.MetricsCollector
	middleware *log.ExecutionMiddleware
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger for run start and end records.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithMetrics reports runs to mc.
func WithMetrics(mc *tracing.MetricsCollector) Option {
	return func(r *Runtime) {
		r.metrics = mc
	}
}

// New creates a Runtime with cfg limits.
func New(cfg Config, opts ...Option) *Runtime {
	r := &Runtime{
		cfg:    cfg,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = log.WithComponent(r.logger, "sandbox")
	r.middleware = log.NewExecutionMiddleware(r.logger)
	return r
}

// ExecuteFile reads a script from disk and runs it under its path.
func (r *Runtime) ExecuteFile(ctx context.Context, path string) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &tberrors.NotFoundError{Resource: "script", ID: path}
		}
		return nil, tberrors.Wrapf(err, "reading script %s", path)
	}
	return r.Execute(ctx, path, string(src))
}

// Execute compiles and runs script. The run stops when ctx is done or the
// configured timeout passes. Spans the script created are exited and closed
// before Execute returns, whatever the outcome.
func (r *Runtime) Execute(ctx context.Context, name, script string) (*Result, error) {
	session := tracing.SessionFromContext(ctx)
	if session == "" {
		session = tracing.NewSessionID()
		ctx = tracing.WithSession(ctx, session)
	}

	prog, err := goja.Compile(name, script, false)
	if err != nil {
		return nil, &tberrors.SandboxError{
			Script:  name,
			Kind:    tberrors.SandboxCompile,
			Message: err.Error(),
			Cause:   err,
		}
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	if r.metrics != nil {
		r.metrics.RecordExecutionStart()
	}

	res := &Result{SessionID: session}
	exec := &log.Execution{SessionID: session.String(), Script: name}
	start := time.Now()

	err = r.middleware.Handler(exec, func() error {
		root := span.Named(bridge.LevelInfo, Target, "execute",
			bridge.F("script", bridge.Str(name)),
			bridge.F("session_id", bridge.Str(session.String())),
		)
		defer root.Close()
		guard := root.Enter()
		defer guard.Exit()

		value, err := r.run(ctx, name, prog)
		if err != nil {
			root.Record(bridge.F("error", bridge.Str(err.Error())))
			return err
		}
		res.Value = value
		return nil
	})
	res.Duration = time.Since(start)

	if r.metrics != nil {
		r.metrics.RecordExecutionComplete(ctx, tberrors.Status(err), res.Duration)
	}
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (r *Runtime) run(ctx context.Context, name string, prog *goja.Program) (any, error) {
	vm := goja.New()
	if r.cfg.MaxCallStackSize > 0 {
		vm.SetMaxCallStackSize(r.cfg.MaxCallStackSize)
	}

	h := newHost(vm)
	defer h.release()
	if err := r.setupGlobals(vm, h); err != nil {
		return nil, fmt.Errorf("preparing sandbox: %w", err)
	}

	stop := context.AfterFunc(ctx, func() {
		vm.Interrupt(ctx.Err())
	})
	defer stop()

	v, err := vm.RunProgram(prog)
	if err != nil {
		return nil, r.classify(ctx, name, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil, nil
	}
	return v.Export(), nil
}

// setupGlobals removes module loading globals, neuters timers, installs the
// host functions and evaluates the prelude.
func (r *Runtime) setupGlobals(vm *goja.Runtime, h *host) error {
	for _, name := range []string{"require", "process", "module", "exports"} {
		if err := vm.Set(name, goja.Undefined()); err != nil {
			return err
		}
	}
	noop := func(goja.FunctionCall) goja.Value { return goja.Undefined() }
	for _, name := range []string{"setTimeout", "setInterval", "clearTimeout", "clearInterval"} {
		if err := vm.Set(name, noop); err != nil {
			return err
		}
	}
	if err := h.install(); err != nil {
		return err
	}
	_, err := vm.RunProgram(prelude)
	return err
}

func (r *Runtime) classify(ctx context.Context, name string, err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause, _ := interrupted.Value().(error)
		if cause == nil {
			cause = ctx.Err()
		}
		serr := &tberrors.SandboxError{
			Script:  name,
			Kind:    tberrors.SandboxInterrupted,
			Message: "interrupted",
			Cause:   cause,
		}
		if errors.Is(cause, context.DeadlineExceeded) {
			serr.Message = fmt.Sprintf("timed out after %v", r.cfg.Timeout)
			serr.Cause = &tberrors.TimeoutError{
				Operation: "script " + name,
				Duration:  r.cfg.Timeout,
				Cause:     cause,
			}
		} else if cause != nil {
			serr.Message = cause.Error()
		}
		return serr
	}

	var exception *goja.Exception
	if errors.As(err, &exception) {
		return &tberrors.SandboxError{
			Script:  name,
			Kind:    tberrors.SandboxException,
			Message: exception.Value().String(),
			Stack:   exception.String(),
			Cause:   err,
		}
	}

	return &tberrors.SandboxError{
		Script:  name,
		Kind:    tberrors.SandboxException,
		Message: err.Error(),
		Cause:   err,
	}
}
