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

package config

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/tracing/storage"
)

// newTraceKeyCommand creates the 'config trace-key' subcommand.
func newTraceKeyCommand() *cobra.Command {
	var generate, remove bool

	cmd := &cobra.Command{
		Use:   "trace-key",
		Short: "Manage the span database encryption key",
		Long: `Manage the key that encrypts span attributes in the sqlite exporter's
database.

The key is read from $TRACEBRIDGE_TRACE_KEY, then from the system keychain.
Without flags, reports where the key comes from. The key itself is never
printed except when generated.`,
		Example: `  # Store a new random key in the keychain
  tracebridge config trace-key --generate

  # Remove the keychain entry
  tracebridge config trace-key --clear`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()

			switch {
			case generate:
				key, err := storage.GenerateEncryptionKey()
				if err != nil {
					return err
				}
				if err := storage.StoreKey(key.String()); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "Keychain unavailable. To use this key, set:\n\n  export %s=%s\n\n", storage.KeyEnv, key.String())
					return shared.NewExitError("storing trace key", err)
				}
				if !shared.GetQuiet() && !shared.GetJSON() {
					fmt.Fprintln(out, shared.RenderOK("Stored a new trace key in the system keychain"))
				}
			case remove:
				if err := storage.DeleteKey(); err != nil {
					return shared.NewExitError("removing trace key", err)
				}
				if !shared.GetQuiet() && !shared.GetJSON() {
					fmt.Fprintln(out, shared.RenderOK("Removed the trace key from the system keychain"))
				}
			}

			_, src := storage.LookupKey()
			if shared.GetJSON() {
				return shared.EmitJSON(out, struct {
					shared.JSONResponse
					Source storage.KeySource `json:"source"`
				}{shared.NewJSONResponse("config trace-key", true), src})
			}
			if generate || remove {
				return nil
			}
			if src == storage.KeySourceNone {
				fmt.Fprintln(out, shared.RenderLabel("No trace key set; span attributes are stored unencrypted."))
				return nil
			}
			fmt.Fprintf(out, "Trace key source: %s\n", src)
			return nil
		},
	}

	cmd.Flags().BoolVar(&generate, "generate", false, "Generate a new key and store it in the keychain")
	cmd.Flags().BoolVar(&remove, "clear", false, "Remove the key from the keychain")
	cmd.MarkFlagsMutuallyExclusive("generate", "clear")

	return cmd
}

func hasTraceKey() bool {
	_, src := storage.LookupKey()
	return src != storage.KeySourceNone
}
