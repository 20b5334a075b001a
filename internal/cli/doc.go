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

/*
Package cli provides the root command and help for the tracebridge CLI.

This package creates the root Cobra command and handles global concerns like
version information, persistent flags, and error handling. Individual commands
are implemented in the internal/commands subpackages; the timeline subpackage
renders stored traces for 'spans show'.

# Command Tree

	tracebridge
	├── run           Run guest scripts with tracing attached (--watch to re-run)
	├── examples      List, show and copy built-in example scripts
	├── spans         Browse the sqlite span store (--jq filters JSON output)
	│   ├── find      Filter spans by target, level, name or status
	│   ├── show      Render one trace as a timeline
	│   └── prune     Delete old traces
	├── keys          List reserved field keys and levels
	├── config        Create, show, validate and locate configuration
	│   ├── init      Write a config file interactively or from flags
	│   ├── show      Print the effective configuration
	│   ├── validate  Check a config file
	│   ├── path      Print the config file location
	│   └── trace-key Generate or clear the span encryption key
	├── completion    Generate shell completion scripts
	├── version       Show version
	└── help          Show help (supports --json)

# Usage

From main.go:

	cli.SetVersion(version, commit, date)
	rootCmd := cli.NewRootCommand()
	// ... add commands ...
	if err := rootCmd.Execute(); err != nil {
	    cli.HandleExitError(err)
	}

# Global Flags

All commands inherit these flags:

	--verbose, -v    Enable verbose output
	--quiet, -q      Suppress non-error output
	--json           Output in JSON format
	--config         Path to config file

# Exit Codes

	0  success
	1  a guest script failed
	2  invalid configuration, flags or arguments
	3  script, trace or span database not found
	4  a guest script was interrupted (timeout or cancel)
*/
package cli
