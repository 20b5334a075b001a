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

package spans

import (
	"context"
	"fmt"
	"io"
	"maps"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/cli/timeline"
	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/jq"
	"github.com/tombee/tracebridge/internal/tracing/storage"
	"github.com/tombee/tracebridge/pkg/bridge"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// TraceListItem is a trace in list output.
type TraceListItem struct {
	TraceID    string        `json:"trace_id"`
	Name       string        `json:"name"`
	StartTime  time.Time     `json:"start_time"`
	Duration   time.Duration `json:"duration"`
	SpanCount  int           `json:"span_count"`
	ErrorCount int           `json:"error_count"`
}

// SpanItem is a stored span in find and show output.
type SpanItem struct {
	TraceID    string         `json:"trace_id"`
	SpanID     string         `json:"span_id"`
	ParentID   string         `json:"parent_id,omitempty"`
	Name       string         `json:"name"`
	Target     string         `json:"target,omitempty"`
	Level      string         `json:"level,omitempty"`
	Status     string         `json:"status"`
	Message    string         `json:"status_message,omitempty"`
	StartTime  time.Time      `json:"start_time"`
	Duration   time.Duration  `json:"duration"`
	Attributes map[string]any `json:"attributes,omitempty"`
	Events     []SpanEvent    `json:"events,omitempty"`
}

// SpanEvent is an event within a span.
type SpanEvent struct {
	Name       string         `json:"name"`
	Timestamp  time.Time      `json:"timestamp"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

func openStore(opts options) (*storage.SQLiteStore, error) {
	if opts.jq != "" {
		if err := jq.Validate(opts.jq); err != nil {
			return nil, shared.NewExitError("invalid --jq", &tberrors.ValidationError{Field: "jq", Message: err.Error()})
		}
	}
	cfg, err := shared.LoadConfig()
	if err != nil {
		return nil, shared.NewExitError("loading configuration", err)
	}
	store, err := shared.OpenSpanStore(shared.SpanStorePath(cfg, opts.db))
	if err != nil {
		return nil, shared.NewExitError("opening span database", err)
	}
	return store, nil
}

// jsonOutput reports whether the command should print JSON.
func jsonOutput(opts options) bool {
	return shared.GetJSON() || opts.jq != ""
}

// emitJSON writes response, or each value --jq produces from it.
func emitJSON(cmd *cobra.Command, opts options, response any) error {
	out := cmd.OutOrStdout()
	if opts.jq == "" {
		return shared.EmitJSON(out, response)
	}
	results, err := jq.NewExecutor(0, 0).Execute(commandContext(cmd), opts.jq, response)
	if err != nil {
		return shared.NewExitError("running --jq", &tberrors.ValidationError{Field: "jq", Message: err.Error()})
	}
	for _, r := range results {
		if err := shared.EmitJSON(out, r); err != nil {
			return err
		}
	}
	return nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}

func runList(cmd *cobra.Command, opts options) error {
	store, err := openStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	traces, err := store.ListTraces(commandContext(cmd), opts.limit)
	if err != nil {
		return fmt.Errorf("failed to list traces: %w", err)
	}

	items := make([]TraceListItem, 0, len(traces))
	for _, t := range traces {
		item := TraceListItem{
			TraceID:    t.TraceID,
			Name:       t.Name,
			StartTime:  t.StartTime,
			SpanCount:  t.SpanCount,
			ErrorCount: t.ErrorCount,
		}
		if !t.EndTime.IsZero() {
			item.Duration = t.EndTime.Sub(t.StartTime)
		}
		items = append(items, item)
	}

	out := cmd.OutOrStdout()
	if jsonOutput(opts) {
		return emitJSON(cmd, opts, struct {
			shared.JSONResponse
			Traces []TraceListItem `json:"traces"`
		}{shared.NewJSONResponse("spans", true), items})
	}

	if len(items) == 0 {
		fmt.Fprintln(out, shared.RenderLabel("No traces stored yet."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACE ID\tNAME\tSPANS\tERRORS\tDURATION\tSTARTED")
	for _, t := range items {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			truncateID(t.TraceID),
			t.Name,
			t.SpanCount,
			t.ErrorCount,
			formatDuration(t.Duration),
			formatTime(t.StartTime),
		)
	}
	return w.Flush()
}

func runFind(cmd *cobra.Command, opts options) error {
	filter := storage.SpanFilter{
		Target:     opts.target,
		Name:       opts.name,
		ErrorsOnly: opts.errors,
		Limit:      opts.findLimit,
	}
	if opts.level != "" {
		lvl, err := bridge.ParseLevel(opts.level)
		if err != nil {
			return shared.NewExitError("invalid --level", &tberrors.ValidationError{Field: "level", Message: err.Error()})
		}
		filter.MinLevel = &lvl
	}
	if opts.since != "" {
		since, err := parseSince(opts.since)
		if err != nil {
			return shared.NewExitError("invalid --since", err)
		}
		filter.Since = &since
	}

	var where *predicate
	if opts.where != "" {
		p, err := compileWhere(opts.where)
		if err != nil {
			return shared.NewExitError("invalid --where", err)
		}
		where = p
		// The expression runs after the query, so the limit moves with it.
		filter.Limit = 0
	}

	store, err := openStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	spans, err := store.ListSpans(commandContext(cmd), filter)
	if err != nil {
		return fmt.Errorf("failed to list spans: %w", err)
	}
	if where != nil {
		spans = filterSpans(spans, where, opts.findLimit)
	}

	out := cmd.OutOrStdout()
	if jsonOutput(opts) {
		return emitJSON(cmd, opts, struct {
			shared.JSONResponse
			Spans []SpanItem `json:"spans"`
		}{shared.NewJSONResponse("spans find", true), toItems(spans)})
	}

	if len(spans) == 0 {
		fmt.Fprintln(out, shared.RenderLabel("No matching spans."))
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TRACE ID\tLEVEL\tTARGET\tNAME\tSTATUS\tDURATION\tSTARTED")
	for _, s := range spans {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			truncateID(s.TraceID),
			dash(s.Level),
			dash(s.Target),
			s.Name,
			s.Status,
			formatDuration(s.Duration()),
			formatTime(s.StartTime),
		)
	}
	return w.Flush()
}

func runShow(cmd *cobra.Command, traceID string, opts options) error {
	store, err := openStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	spans, err := store.GetTraceSpans(commandContext(cmd), traceID)
	if err != nil {
		return fmt.Errorf("failed to load trace: %w", err)
	}
	if len(spans) == 0 {
		return shared.NewExitError("loading trace", &tberrors.NotFoundError{Resource: "trace", ID: traceID})
	}

	out := cmd.OutOrStdout()
	if jsonOutput(opts) {
		return emitJSON(cmd, opts, struct {
			shared.JSONResponse
			TraceID string     `json:"trace_id"`
			Spans   []SpanItem `json:"spans"`
		}{shared.NewJSONResponse("spans show", true), traceID, toItems(spans)})
	}

	renderer, err := timeline.NewRenderer()
	if err != nil {
		return err
	}
	text, err := renderer.Render(traceID, spans)
	if err != nil {
		return err
	}
	fmt.Fprint(out, text)

	if shared.GetVerbose() {
		printDetails(out, spans)
	}
	return nil
}

func runPrune(cmd *cobra.Command, opts options) error {
	cutoff, err := parseSince(opts.since)
	if err != nil {
		return shared.NewExitError("invalid --older-than", err)
	}

	store, err := openStore(opts)
	if err != nil {
		return err
	}
	defer store.Close()

	n, err := store.DeleteTracesOlderThan(commandContext(cmd), cutoff)
	if err != nil {
		return fmt.Errorf("failed to prune traces: %w", err)
	}

	if jsonOutput(opts) {
		return emitJSON(cmd, opts, struct {
			shared.JSONResponse
			Deleted int64 `json:"deleted"`
		}{shared.NewJSONResponse("spans prune", true), n})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(cmd.OutOrStdout(), shared.RenderOK(fmt.Sprintf("Deleted %d trace(s) started before %s", n, cutoff.Format(time.RFC3339))))
	}
	return nil
}

// printDetails lists each span's attributes and events under the timeline.
func printDetails(w io.Writer, spans []*storage.Span) {
	for _, row := range timeline.Rows(spans) {
		s := findSpan(spans, row)
		if s == nil {
			continue
		}
		prefix := strings.Repeat("  ", row.Depth)
		fmt.Fprintf(w, "\n%s%s %s\n", prefix, shared.Paint(shared.Bold, s.Name), shared.RenderLabel("["+s.SpanID+"]"))
		for _, k := range slices.Sorted(maps.Keys(s.Attributes)) {
			fmt.Fprintf(w, "%s  %s: %v\n", prefix, k, s.Attributes[k])
		}
		for _, ev := range s.Events {
			fmt.Fprintf(w, "%s  [%s] %s\n", prefix, ev.Timestamp.Format("15:04:05.000"), ev.Name)
		}
		if s.StatusMessage != "" {
			fmt.Fprintf(w, "%s  %s\n", prefix, shared.RenderError(s.StatusMessage))
		}
	}
}

func findSpan(spans []*storage.Span, row timeline.Row) *storage.Span {
	for _, s := range spans {
		if s.Name == row.Name && s.StartTime.Equal(row.StartTime) {
			return s
		}
	}
	return nil
}

func toItems(spans []*storage.Span) []SpanItem {
	items := make([]SpanItem, 0, len(spans))
	for _, s := range spans {
		item := SpanItem{
			TraceID:    s.TraceID,
			SpanID:     s.SpanID,
			ParentID:   s.ParentID,
			Name:       s.Name,
			Target:     s.Target,
			Level:      s.Level,
			Status:     s.Status.String(),
			Message:    s.StatusMessage,
			StartTime:  s.StartTime,
			Duration:   s.Duration(),
			Attributes: s.Attributes,
		}
		for _, ev := range s.Events {
			item.Events = append(item.Events, SpanEvent(ev))
		}
		items = append(items, item)
	}
	return items
}

// parseSince turns "30m", "2h" or "7d" into the time that long ago.
func parseSince(s string) (time.Time, error) {
	var dur time.Duration
	if days, ok := strings.CutSuffix(s, "d"); ok {
		n, err := strconv.Atoi(days)
		if err != nil || n < 0 {
			return time.Time{}, &tberrors.ValidationError{Field: "duration", Message: fmt.Sprintf("invalid duration %q", s)}
		}
		dur = time.Duration(n) * 24 * time.Hour
	} else {
		d, err := time.ParseDuration(s)
		if err != nil || d < 0 {
			return time.Time{}, &tberrors.ValidationError{
				Field:   "duration",
				Message: fmt.Sprintf("invalid duration %q", s),
				Hint:    "Use a Go duration like 30m or 2h, or whole days like 7d",
			}
		}
		dur = d
	}
	return time.Now().Add(-dur), nil
}

func truncateID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}

func formatTime(t time.Time) string {
	if time.Since(t) < 24*time.Hour {
		return t.Format("15:04:05")
	}
	return t.Format("2006-01-02 15:04")
}

func formatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "-"
	case d < time.Millisecond:
		return fmt.Sprintf("%dµs", d.Microseconds())
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	default:
		return fmt.Sprintf("%.2fs", d.Seconds())
	}
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
