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
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/tracing"
)

// NewConfigCommand creates the config command with subcommands
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "View and check configuration",
		Annotations: map[string]string{
			"group": "configuration",
		},
		Long: `View and check tracebridge configuration.

Configuration is read from the --config file (or the default path when it
exists), then overridden by TRACEBRIDGE_* environment variables, e.g.
TRACEBRIDGE_TRACING_FILTER=debug or TRACEBRIDGE_SANDBOX_TIMEOUT=5s.

Subcommands:
  init      - Create a configuration file
  show      - Display the effective configuration
  validate  - Check configuration and report problems
  path      - Show config file location
  trace-key - Manage the span database encryption key`,
	}

	cmd.AddCommand(newInitCommand())
	cmd.AddCommand(newConfigShowCommand())
	cmd.AddCommand(NewValidateCommand())
	cmd.AddCommand(newConfigPathCommand())
	cmd.AddCommand(newTraceKeyCommand())

	// If no subcommand provided, default to 'show'
	cmd.RunE = runConfigShow

	return cmd
}

// newConfigShowCommand creates the 'config show' subcommand
func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Display the effective configuration",
		Long: `Display the configuration after defaults and environment overrides.

Exporter header values are masked. Use --json for machine-readable output.`,
		RunE: runConfigShow,
	}
}

// newConfigPathCommand creates the 'config path' subcommand
func newConfigPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Show config file location",
		Long:  `Display the path to the configuration file and the default span database.`,
		RunE:  runConfigPath,
	}
}

// configPath returns the file to read and whether it exists.
func configPath() (string, bool, error) {
	cfgPath := shared.GetConfigPath()
	if cfgPath == "" {
		var err error
		cfgPath, err = config.ConfigPath()
		if err != nil {
			return "", false, fmt.Errorf("failed to determine config path: %w", err)
		}
	}
	_, err := os.Stat(config.ExpandHome(cfgPath))
	return cfgPath, err == nil, nil
}

// runConfigShow displays the current configuration
func runConfigShow(cmd *cobra.Command, args []string) error {
	cfgPath, exists, err := configPath()
	if err != nil {
		return err
	}
	if !exists && shared.GetConfigPath() != "" {
		return shared.NewExitError("loading configuration", fmt.Errorf("no configuration file found at %s", cfgPath))
	}

	load := cfgPath
	if !exists {
		load = ""
	}
	cfg, err := config.Load(load)
	if err != nil {
		return shared.NewExitError("loading configuration", err)
	}

	masked := maskSensitiveConfig(cfg)
	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		doc, err := toDocument(masked)
		if err != nil {
			return err
		}
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Path   string         `json:"path,omitempty"`
			Config map[string]any `json:"config"`
		}{shared.NewJSONResponse("config show", true), load, doc})
	}

	source := cfgPath
	if !exists {
		source = "defaults (no file at " + cfgPath + ")"
	}
	return outputConfigYAML(out, source, masked)
}

// runConfigPath displays the config file path
func runConfigPath(cmd *cobra.Command, args []string) error {
	cfgPath, exists, err := configPath()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Path     string `json:"path"`
			Exists   bool   `json:"exists"`
			SpanDB   string `json:"span_db"`
			Encrypts bool   `json:"encrypts"`
		}{shared.NewJSONResponse("config path", true), cfgPath, exists, config.DefaultStoragePath(), hasTraceKey()})
	}

	fmt.Fprintln(out, cfgPath)
	return nil
}

// maskSensitiveConfig returns a copy of cfg with exporter header values masked.
func maskSensitiveConfig(cfg *config.Config) *config.Config {
	masked := *cfg
	masked.Tracing.Exporters = make([]tracing.ExporterConfig, len(cfg.Tracing.Exporters))
	for i, exp := range cfg.Tracing.Exporters {
		if len(exp.Headers) > 0 {
			headers := make(map[string]string, len(exp.Headers))
			for k, v := range exp.Headers {
				headers[k] = maskValue(v)
			}
			exp.Headers = headers
		}
		masked.Tracing.Exporters[i] = exp
	}
	return &masked
}

// maskValue masks a credential for display, keeping environment references.
func maskValue(v string) string {
	if v == "" {
		return ""
	}
	if strings.HasPrefix(v, "${") && strings.HasSuffix(v, "}") {
		return v
	}
	if len(v) <= 8 {
		return "****"
	}
	return v[:4] + strings.Repeat("*", len(v)-8) + v[len(v)-4:]
}

// toDocument round-trips cfg through YAML so JSON output uses the same keys
// as the config file.
func toDocument(cfg *config.Config) (map[string]any, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	return doc, nil
}

// outputConfigYAML outputs config in YAML format
func outputConfigYAML(w io.Writer, source string, cfg *config.Config) error {
	fmt.Fprintf(w, "Configuration: %s\n", source)
	fmt.Fprintln(w, strings.Repeat("=", 50))
	fmt.Fprintln(w)

	encoder := yaml.NewEncoder(w)
	encoder.SetIndent(2)

	if err := encoder.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return encoder.Close()
}
