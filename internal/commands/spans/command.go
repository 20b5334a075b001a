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
	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/completion"
)

// options holds flags shared by the spans subcommands.
type options struct {
	db        string
	limit     int
	findLimit int
	since     string
	target    string
	level     string
	name      string
	errors    bool
	where     string
	jq        string
}

// NewCommand creates the spans command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "spans",
		Short: "Browse spans stored by the sqlite exporter",
		Annotations: map[string]string{
			"group": "inspection",
		},
		Long: `View traces and spans that guest scripts exported to the local span
database. The database is the sqlite exporter's path from configuration,
or the default under $XDG_DATA_HOME/tracebridge. Encrypted attributes are
read with the key in $TRACEBRIDGE_TRACE_KEY or the one stored by
'tracebridge config trace-key --generate'.

Without a subcommand, lists the most recent traces.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts)
		},
	}
	cmd.PersistentFlags().StringVar(&opts.db, "db", "", "Path to the span database (default from config)")
	cmd.PersistentFlags().StringVar(&opts.jq, "jq", "", "Filter JSON output through a jq expression (implies --json)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 20, "Maximum number of traces to list (0 for all)")

	find := &cobra.Command{
		Use:   "find",
		Short: "Find spans by target, level, name or status",
		Example: `  tracebridge spans find --target app::db --level debug
  tracebridge spans find --errors --since 1h
  tracebridge spans find --where 'duration_ms > 50 && attrs.rows > 100'
  tracebridge spans find --jq '.spans[] | .name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFind(cmd, opts)
		},
	}
	find.Flags().IntVarP(&opts.findLimit, "limit", "n", 50, "Maximum number of spans (0 for all)")
	find.Flags().StringVar(&opts.since, "since", "", "Only spans started within this duration (e.g., 30m, 2h, 7d)")
	find.Flags().StringVar(&opts.target, "target", "", "Only spans whose target starts with this prefix")
	find.Flags().StringVar(&opts.level, "level", "", "Only spans at or above this level")
	find.Flags().StringVar(&opts.name, "name", "", "Only spans with this exact name")
	find.Flags().BoolVar(&opts.errors, "errors", false, "Only spans that ended with an error")
	find.Flags().StringVar(&opts.where, "where", "", "Only spans matching this expression (fields: name, target, level, status, duration_ms, root, attrs)")
	_ = find.RegisterFlagCompletionFunc("level", completion.CompleteLevels)

	show := &cobra.Command{
		Use:               "show <trace-id>",
		Short:             "Show a trace as a timeline",
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteTraceIDs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], opts)
		},
	}

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete traces older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPrune(cmd, opts)
		},
	}
	prune.Flags().StringVar(&opts.since, "older-than", "", "Delete traces that started before this duration ago (e.g., 7d)")
	_ = prune.MarkFlagRequired("older-than")

	cmd.AddCommand(find, show, prune)
	return cmd
}
