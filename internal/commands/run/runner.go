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

package run

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/examples"
	"github.com/tombee/tracebridge/internal/sandbox"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/pkg/bridge"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// dispatch is installed in the registry on first use. Each run points it at
// the subscriber that run built.
var (
	dispatch    = tracing.NewDispatch(nil)
	installOnce sync.Once
)

func attach(sub bridge.Subscriber) {
	installOnce.Do(func() { bridge.Install(dispatch) })
	dispatch.Set(sub)
}

// scriptResult is the outcome of one script, shared by text and JSON output.
type scriptResult struct {
	Script     string            `json:"script"`
	SessionID  string            `json:"session_id,omitempty"`
	DurationMs int64             `json:"duration_ms"`
	Value      any               `json:"value,omitempty"`
	Error      *shared.JSONError `json:"error,omitempty"`
}

type runResponse struct {
	shared.JSONResponse
	Results []scriptResult `json:"results"`
	Tree    string         `json:"tree,omitempty"`
	Metrics string         `json:"metrics,omitempty"`
}

func runScripts(cmd *cobra.Command, args []string, opts options) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := shared.LoadConfig()
	if err != nil {
		return shared.NewExitError("loading configuration", err)
	}
	flags := cmd.Flags()
	if flags.Changed("subscriber") {
		cfg.Tracing.Subscriber = opts.subscriber
	}
	if flags.Changed("filter") {
		cfg.Tracing.Filter = opts.filter
	}
	if flags.Changed("timeout") {
		cfg.Sandbox.Timeout = opts.timeout
	}
	if err := cfg.Validate(); err != nil {
		return shared.NewExitError("invalid flags", &tberrors.ConfigError{Key: "flags", Reason: "flag values failed validation", Cause: err})
	}

	scripts, err := expandScripts(args)
	if err != nil {
		return shared.NewExitError("resolving scripts", err)
	}

	var subOpts []tracing.SubscriberOption
	if opts.traceparent != "" {
		parent := tracing.ContextFromTraceparent(ctx, opts.traceparent)
		if !trace.SpanContextFromContext(parent).IsValid() {
			return shared.NewExitError("invalid --traceparent", &tberrors.ValidationError{
				Field:   "traceparent",
				Message: fmt.Sprintf("%q is not a W3C traceparent", opts.traceparent),
				Hint:    "Use the form 00-<32 hex trace id>-<16 hex span id>-<2 hex flags>",
			})
		}
		subOpts = append(subOpts, tracing.WithParentContext(parent))
	}
	if opts.session != "" {
		id, ok := tracing.ParseSessionID(opts.session)
		if !ok {
			return shared.NewExitError("invalid --session", &tberrors.ValidationError{
				Field:   "session",
				Message: fmt.Sprintf("%q is not a UUID", opts.session),
			})
		}
		ctx = tracing.WithSession(ctx, id)
	}

	if opts.watch {
		w, err := newWatcher(args, scripts, shared.NewLogger(cfg, cmd.ErrOrStderr()))
		if err != nil {
			return shared.NewExitError("watching scripts", err)
		}
		defer w.Close()
		return w.loop(ctx, cmd.ErrOrStderr(), args, scripts, func(scripts []string) error {
			return executeScripts(ctx, cmd, cfg, scripts, opts, subOpts)
		})
	}
	return executeScripts(ctx, cmd, cfg, scripts, opts, subOpts)
}

// executeScripts runs scripts under a fresh provider and subscriber and
// prints the results.
func executeScripts(ctx context.Context, cmd *cobra.Command, cfg *config.Config, scripts []string, opts options, subOpts []tracing.SubscriberOption) error {
	out := cmd.OutOrStdout()
	logger := shared.NewLogger(cfg, cmd.ErrOrStderr())

	provider, err := tracing.NewProvider(ctx, cfg.Tracing, logger)
	if err != nil {
		return shared.NewExitError("starting tracing", err)
	}
	sub, err := provider.NewSubscriber(subOpts...)
	if err != nil {
		_ = provider.Shutdown(context.Background())
		return shared.NewExitError("creating subscriber", err)
	}
	attach(sub)

	rt := sandbox.New(cfg.Sandbox,
		sandbox.WithLogger(logger),
		sandbox.WithMetrics(provider.MetricsCollector()),
	)

	results := make([]scriptResult, 0, len(scripts))
	var failures []error
	for _, path := range scripts {
		r := scriptResult{Script: path}
		res, err := executeOne(ctx, rt, path)
		if err != nil {
			jerr := shared.NewJSONError(err)
			jerr.Script = path
			r.Error = &jerr
			failures = append(failures, err)
		} else {
			r.SessionID = res.SessionID.String()
			r.DurationMs = res.Duration.Milliseconds()
			r.Value = res.Value
		}
		results = append(results, r)
	}

	attach(nil)
	closeSubscriber(context.Background(), sub)

	var tree string
	if rec, ok := sub.(*tracing.Recorder); ok {
		tree = rec.Tree()
	}
	// Gathered before shutdown; the reader stops collecting once shut down.
	var metrics string
	if opts.metrics {
		var buf bytes.Buffer
		if err := provider.WriteMetrics(&buf); err != nil {
			logger.Warn("failed to write metrics", "error", err)
		}
		metrics = buf.String()
	}
	if err := provider.Shutdown(context.Background()); err != nil {
		logger.Warn("tracing shutdown failed", "error", err)
	}

	if shared.GetJSON() {
		resp := runResponse{
			JSONResponse: shared.NewJSONResponse("run", len(failures) == 0),
			Results:      results,
			Tree:         tree,
			Metrics:      metrics,
		}
		if err := shared.EmitJSON(out, resp); err != nil {
			return err
		}
	} else {
		printResults(out, results, tree, metrics)
	}

	if len(failures) > 0 {
		return shared.NewExitError(fmt.Sprintf("%d of %d script(s) failed", len(failures), len(results)), failures[0])
	}
	return nil
}

// executeOne runs a script file, or an embedded example for an
// "example:<name>" argument.
func executeOne(ctx context.Context, rt *sandbox.Runtime, path string) (*sandbox.Result, error) {
	name, ok := examples.Resolve(path)
	if !ok {
		return rt.ExecuteFile(ctx, path)
	}
	src, err := examples.Get(name)
	if err != nil {
		return nil, &tberrors.NotFoundError{Resource: "example", ID: name}
	}
	return rt.Execute(ctx, name+".js", string(src))
}

func printResults(w io.Writer, results []scriptResult, tree, metrics string) {
	quiet := shared.GetQuiet()
	for _, r := range results {
		if r.Error != nil {
			fmt.Fprintln(w, shared.RenderError(r.Script+": "+r.Error.Message))
			continue
		}
		if quiet {
			continue
		}
		fmt.Fprintln(w, shared.RenderOK(r.Script+" "+shared.RenderLabel(fmt.Sprintf("(%dms)", r.DurationMs))))
		if r.Value != nil {
			fmt.Fprintf(w, "  %s %s\n", shared.RenderLabel("=>"), formatValue(r.Value))
		}
	}

	if tree != "" {
		fmt.Fprintln(w)
		fmt.Fprintln(w, shared.Paint(shared.Header, "Spans"))
		fmt.Fprint(w, indent(tree, "  "))
	}
	if metrics != "" {
		fmt.Fprintln(w)
		fmt.Fprint(w, metrics)
	}
}

func formatValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func indent(s, prefix string) string {
	lines := strings.SplitAfter(s, "\n")
	var b strings.Builder
	for _, line := range lines {
		if line == "" {
			continue
		}
		b.WriteString(prefix)
		b.WriteString(line)
	}
	return b.String()
}

// expandScripts resolves glob patterns. Plain paths are kept as given so a
// missing file is reported when it is run.
func expandScripts(patterns []string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}

	for _, pattern := range patterns {
		if !isGlob(pattern) {
			add(pattern)
			continue
		}
		if !doublestar.ValidatePathPattern(pattern) {
			return nil, &tberrors.ValidationError{
				Field:   "script",
				Message: fmt.Sprintf("invalid glob pattern %q", pattern),
			}
		}
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			return nil, fmt.Errorf("expanding %q: %w", pattern, err)
		}
		if len(matches) == 0 {
			return nil, &tberrors.NotFoundError{Resource: "script", ID: pattern}
		}
		sort.Strings(matches)
		for _, m := range matches {
			add(m)
		}
	}
	return out, nil
}

type closer interface {
	Close(ctx context.Context) error
}

type unwrapper interface {
	Unwrap() bridge.Subscriber
}

// closeSubscriber ends spans the subscriber still holds open.
func closeSubscriber(ctx context.Context, sub bridge.Subscriber) {
	for sub != nil {
		if c, ok := sub.(closer); ok {
			_ = c.Close(ctx)
			return
		}
		u, ok := sub.(unwrapper)
		if !ok {
			return
		}
		sub = u.Unwrap()
	}
}
