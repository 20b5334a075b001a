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

package examples

import (
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/completion"
	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/examples"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

type listResponse struct {
	shared.JSONResponse
	Examples []examples.Example `json:"examples"`
}

type copyResponse struct {
	shared.JSONResponse
	Name string `json:"name"`
	Path string `json:"path"`
}

// NewCommand creates the examples command
func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "examples",
		Short: "Browse and copy built-in example scripts",
		Annotations: map[string]string{
			"group": "execution",
		},
		Long: `Browse, view and copy example guest scripts.

Examples are embedded in the binary and work offline. Run one directly with
'tracebridge run example:<name>'.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}

	cmd.AddCommand(newListCommand(), newShowCommand(), newCopyCommand())
	return cmd
}

func newListCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List available example scripts",
		Example: `  tracebridge examples list
  tracebridge examples list --json | jq -r '.examples[].name'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd)
		},
	}
}

func runList(cmd *cobra.Command) error {
	list, err := examples.List()
	if err != nil {
		return fmt.Errorf("failed to list examples: %w", err)
	}

	out := cmd.OutOrStdout()
	if shared.GetJSON() {
		return shared.EmitJSON(out, listResponse{
			JSONResponse: shared.NewJSONResponse("examples list", true),
			Examples:     list,
		})
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tDESCRIPTION")
	fmt.Fprintln(w, "────\t───────────")
	for _, ex := range list {
		fmt.Fprintf(w, "%s\t%s\n", ex.Name, ex.Description)
	}
	w.Flush()

	fmt.Fprintln(out)
	fmt.Fprintln(out, "Use 'tracebridge examples show <name>' to view an example")
	fmt.Fprintln(out, "Use 'tracebridge run -s record example:<name>' to run one")
	fmt.Fprintln(out, "Use 'tracebridge examples copy <name> [dest]' to copy an example")
	return nil
}

func newShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Print the source of an example script",
		Example: `  tracebridge examples show handler
  tracebridge examples show pipeline > pipeline.js`,
		Args:              cobra.ExactArgs(1),
		ValidArgsFunction: completion.CompleteExampleNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			content, err := lookup(args[0])
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(content)
			return err
		},
	}
}

func newCopyCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "copy <name> [dest]",
		Short: "Copy an example script to the filesystem",
		Long: `Copy an embedded example to the local filesystem.

Without a destination the example is written to '<name>.js' in the current
directory. A destination that is a directory receives '<name>.js'.`,
		Example: `  tracebridge examples copy handler
  tracebridge examples copy pipeline scripts/
  tracebridge examples copy failure charge.js --force`,
		Args:              cobra.RangeArgs(1, 2),
		ValidArgsFunction: completion.CompleteExampleNames,
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if _, err := lookup(name); err != nil {
				return err
			}

			dest := name + ".js"
			if len(args) > 1 {
				dest = args[1]
			}
			if info, err := os.Stat(dest); err == nil && info.IsDir() {
				dest = filepath.Join(dest, name+".js")
			}
			if _, err := os.Stat(dest); err == nil && !force {
				return &tberrors.ConfigError{
					Key:    "dest",
					Reason: fmt.Sprintf("%s already exists (use --force to overwrite)", dest),
				}
			}

			if err := examples.CopyTo(name, dest); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if shared.GetJSON() {
				return shared.EmitJSON(out, copyResponse{
					JSONResponse: shared.NewJSONResponse("examples copy", true),
					Name:         name,
					Path:         dest,
				})
			}
			fmt.Fprintln(out, shared.RenderOK(fmt.Sprintf("Copied example %q to %s", name, dest)))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing file")
	return cmd
}

func lookup(name string) ([]byte, error) {
	if !examples.Exists(name) {
		return nil, &tberrors.NotFoundError{Resource: "example", ID: name}
	}
	return examples.Get(name)
}
