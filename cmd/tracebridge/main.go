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

package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/tombee/tracebridge/internal/cli"
	"github.com/tombee/tracebridge/internal/commands/completion"
	"github.com/tombee/tracebridge/internal/commands/config"
	"github.com/tombee/tracebridge/internal/commands/examples"
	"github.com/tombee/tracebridge/internal/commands/keys"
	"github.com/tombee/tracebridge/internal/commands/run"
	"github.com/tombee/tracebridge/internal/commands/spans"
	versioncmd "github.com/tombee/tracebridge/internal/commands/version"
)

// Version information (injected via ldflags at build time)
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

func main() {
	cli.SetVersion(version, commit, buildDate)

	rootCmd := cli.NewRootCommand()

	// Execution
	rootCmd.AddCommand(run.NewCommand())
	rootCmd.AddCommand(examples.NewCommand())

	// Inspection
	rootCmd.AddCommand(spans.NewCommand())
	rootCmd.AddCommand(keys.NewCommand())

	// Configuration
	rootCmd.AddCommand(config.NewConfigCommand())
	rootCmd.AddCommand(completion.NewCommand())
	rootCmd.AddCommand(versioncmd.NewVersionCommand())

	// Custom help command with JSON support
	rootCmd.SetHelpCommand(cli.NewHelpCommand(rootCmd))

	// Ctrl-C interrupts a running script instead of killing the process,
	// so subscribers still flush.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		cli.HandleExitError(err)
	}
}
