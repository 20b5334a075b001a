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
	"strings"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/pkg/bridge"
)

// CompleteSubscribers provides completion for --subscriber flag values.
func CompleteSubscribers(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		return []string{
			tracing.SubscriberOTel + "\tExport through OpenTelemetry",
			tracing.SubscriberLog + "\tWrite spans and events to the host log",
			tracing.SubscriberRecord + "\tRecord in memory and print the span tree",
			tracing.SubscriberNone + "\tDisable guest tracing",
		}, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteLevels provides completion for level flag values.
func CompleteLevels(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		levels := make([]string, 0, len(bridge.Levels))
		for _, l := range bridge.Levels {
			levels = append(levels, strings.ToLower(l.String()))
		}
		return levels, cobra.ShellCompDirectiveNoFileComp
	})
}

// CompleteFilter completes the level part of the directive being typed in
// a --filter value, keeping earlier directives as a prefix.
func CompleteFilter(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return SafeCompletionWrapper(func() ([]string, cobra.ShellCompDirective) {
		prefix := ""
		current := toComplete
		if i := strings.LastIndex(toComplete, ","); i >= 0 {
			prefix, current = toComplete[:i+1], toComplete[i+1:]
		}
		if i := strings.Index(current, "="); i >= 0 {
			prefix += current[:i+1]
		} else if strings.Contains(current, "::") || (current != "" && !isLevelPrefix(current)) {
			// Typing a target; nothing to offer until "=".
			return nil, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
		}

		levels, _ := CompleteLevels(cmd, args, "")
		out := make([]string, 0, len(levels))
		for _, l := range levels {
			out = append(out, prefix+l)
		}
		return out, cobra.ShellCompDirectiveNoFileComp | cobra.ShellCompDirectiveNoSpace
	})
}

func isLevelPrefix(s string) bool {
	s = strings.ToLower(s)
	for _, l := range bridge.Levels {
		if strings.HasPrefix(strings.ToLower(l.String()), s) {
			return true
		}
	}
	return false
}
