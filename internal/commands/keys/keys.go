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

// Package keys implements the keys command, which prints the identifiers
// consumers of the bridge must match exactly.
package keys

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/pkg/bridge"
)

// Reserved lists the bridge's fixed identifiers.
type Reserved struct {
	TraceIdentifier string   `json:"trace_identifier"`
	TargetKey       string   `json:"target_key"`
	NameKey         string   `json:"name_key"`
	SessionKey      string   `json:"session_key"`
	Levels          []string `json:"levels"`
}

// Current returns the identifiers compiled into this build.
func Current() Reserved {
	levels := make([]string, 0, len(bridge.Levels))
	for _, l := range bridge.Levels {
		levels = append(levels, l.String())
	}
	return Reserved{
		TraceIdentifier: bridge.TraceIdentifier,
		TargetKey:       bridge.TargetKey,
		NameKey:         bridge.NameKey,
		SessionKey:      tracing.AttrSession,
		Levels:          levels,
	}
}

// NewCommand creates the keys command
func NewCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "keys",
		Short: "Show reserved span names, field keys and levels",
		Annotations: map[string]string{
			"group": "inspection",
		},
		Long: `Keys prints the identifiers a consumer of guest spans must match byte for
byte. A span named with the trace identifier carries its real target and
name in the target and name fields. Levels are listed from least to most
severe.`,
		Args: cobra.NoArgs,
		RunE: runKeys,
	}
}

func runKeys(cmd *cobra.Command, args []string) error {
	r := Current()
	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Reserved
		}{shared.NewJSONResponse("keys", true), r})
	}

	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("trace identifier:"), r.TraceIdentifier)
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("target key:      "), r.TargetKey)
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("name key:        "), r.NameKey)
	fmt.Fprintf(out, "%s %s\n", shared.RenderLabel("session key:     "), r.SessionKey)
	fmt.Fprintf(out, "%s", shared.RenderLabel("levels:           "))
	for i, l := range bridge.Levels {
		if i > 0 {
			fmt.Fprint(out, " < ")
		}
		fmt.Fprint(out, shared.RenderLevel(l))
	}
	fmt.Fprintln(out)
	return nil
}
