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

package completion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/shared"
)

const (
	traceCacheTTL    = 2 * time.Second
	storeTimeout     = 500 * time.Millisecond
	maxTraceComplete = 50
)

// traceCacheEntry holds cached trace completions with expiry.
type traceCacheEntry struct {
	path      string
	traces    []string
	expiresAt time.Time
}

var (
	traceCache   *traceCacheEntry
	traceCacheMu sync.RWMutex
)

// CompleteTraceIDs provides completion for stored trace IDs, newest first,
// described by root span name and span count. It reads the database named
// by --db on the command being completed, or the configured default.
func CompleteTraceIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		if len(args) > 0 {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		override := ""
		if cmd != nil {
			if f := cmd.Flag("db"); f != nil {
				override = f.Value.String()
			}
		}
		cfg, err := LoadConfigForCompletion()
		if err != nil || cfg == nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		traces, err := getTraceCompletions(shared.SpanStorePath(cfg, override))
		if err != nil {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}
		return traces, cobra.ShellCompDirectiveNoFileComp
	})
}

// getTraceCompletions reads trace completions from path with caching.
func getTraceCompletions(path string) ([]string, error) {
	traceCacheMu.RLock()
	if traceCache != nil && traceCache.path == path && time.Now().Before(traceCache.expiresAt) {
		cached := traceCache.traces
		traceCacheMu.RUnlock()
		return cached, nil
	}
	traceCacheMu.RUnlock()

	traces, err := fetchTraces(path)
	if err != nil {
		return nil, err
	}

	traceCacheMu.Lock()
	traceCache = &traceCacheEntry{
		path:      path,
		traces:    traces,
		expiresAt: time.Now().Add(traceCacheTTL),
	}
	traceCacheMu.Unlock()

	return traces, nil
}

func fetchTraces(path string) ([]string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	store, err := shared.OpenSpanStore(path)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	summaries, err := store.ListTraces(ctx, maxTraceComplete)
	if err != nil {
		return nil, err
	}

	completions := make([]string, 0, len(summaries))
	for _, t := range summaries {
		desc := fmt.Sprintf("%s (%d spans)", t.Name, t.SpanCount)
		if t.ErrorCount > 0 {
			desc = fmt.Sprintf("%s (%d spans, %d errors)", t.Name, t.SpanCount, t.ErrorCount)
		}
		completions = append(completions, t.TraceID+"\t"+desc)
	}
	return completions, nil
}

// resetTraceCache clears cached completions.
func resetTraceCache() {
	traceCacheMu.Lock()
	traceCache = nil
	traceCacheMu.Unlock()
}
