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
	"time"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/completion"
)

// options holds the run command flags.
type options struct {
	subscriber  string
	filter      string
	traceparent string
	session     string
	timeout     time.Duration
	metrics     bool
	watch       bool
}

// NewCommand creates the run command
func NewCommand() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "run <script-or-glob>...",
		Short: "Run guest scripts with host tracing attached",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Run executes JavaScript guest scripts in the sandbox. Each script reaches
the host only through the tracing bridge; spans and events it emits go to
the selected subscriber.

Subscribers:
  otel     Export through OpenTelemetry using the configured exporters
  log      Write span lifecycle and events to the host log (stderr)
  record   Keep everything in memory and print the span tree after the run
  none     Install nothing; guest tracing calls are no-ops

Filter directives are a default level plus per-target prefixes, e.g.
  --filter "warn,app=debug,app::db=trace"

Arguments may be glob patterns ("scripts/**/*.js"). Matches are run in
lexical order; a failing script does not stop the rest. With --watch, the
scripts run again each time one of them (or a new glob match) is written.

An argument of the form example:<name> runs a built-in example script; see
'tracebridge examples'.`,
		Example: `  tracebridge run --subscriber record example:handler
  tracebridge run --filter debug --metrics 'scripts/**/*.js'
  tracebridge run --watch -s record 'scripts/*.js'
  tracebridge run --traceparent 00-4bf92f3577b34da6a3ce929d0e0e4736-00f067aa0ba902b7-01 job.js`,
		Args:              cobra.MinimumNArgs(1),
		ValidArgsFunction: completion.CompleteScripts,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScripts(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.subscriber, "subscriber", "s", "", "Subscriber to install: otel, log, record or none (default from config)")
	cmd.Flags().StringVarP(&opts.filter, "filter", "f", "", "Level/target filter directives (default from config)")
	cmd.Flags().StringVar(&opts.traceparent, "traceparent", "", "W3C traceparent to continue; guest root spans join this trace")
	cmd.Flags().StringVar(&opts.session, "session", "", "Session ID (UUID) to use instead of a generated one")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Per-script timeout (default from config)")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "Print bridge metrics in Prometheus text format after the run")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Run again whenever a script changes, until interrupted")

	_ = cmd.RegisterFlagCompletionFunc("subscriber", completion.CompleteSubscribers)
	_ = cmd.RegisterFlagCompletionFunc("filter", completion.CompleteFilter)

	return cmd
}
