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

	"github.com/spf13/cobra"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/internal/tracing/storage"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// ValidationResult represents the result of config validation.
type ValidationResult struct {
	Valid    bool     `json:"valid"`
	Errors   []string `json:"errors,omitempty"`
	Warnings []string `json:"warnings,omitempty"`
}

// NewValidateCommand creates the 'config validate' subcommand.
func NewValidateCommand() *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate configuration",
		Long: `Validate the configuration file and environment overrides.

Checks performed:
  - YAML syntax and structure
  - Log level and format
  - Subscriber kind and filter directives
  - Exporter settings (endpoints, TLS pairs, sqlite paths)
  - Sampling, redaction and sandbox limits

Warnings flag settings that are valid but probably unintended, such as an
otel subscriber with no exporters. With --strict, warnings are treated as
errors.`,
		Example: `  # Validate configuration
  tracebridge config validate

  # Validate with warnings as errors
  tracebridge config validate --strict

  # Get validation result as JSON
  tracebridge config validate --json`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd.OutOrStdout(), strict)
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "Treat warnings as errors")

	return cmd
}

// runValidate performs configuration validation.
func runValidate(w io.Writer, strict bool) error {
	cfgPath, exists, err := configPath()
	if err != nil {
		return err
	}
	if !exists {
		if shared.GetConfigPath() != "" {
			return outputValidationResult(w, ValidationResult{
				Errors: []string{fmt.Sprintf("No configuration file found at %s", cfgPath)},
			}, strict)
		}
		cfgPath = ""
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return outputValidationResult(w, ValidationResult{Errors: describeErrors(err)}, strict)
	}

	return outputValidationResult(w, validateConfig(cfg), strict)
}

// validateConfig checks a loaded config for settings that are valid but
// likely mistakes.
func validateConfig(cfg *config.Config) ValidationResult {
	var errs []string
	if err := cfg.Validate(); err != nil {
		errs = describeErrors(err)
	}

	var warnings []string
	hasExporter := false
	for i, exp := range cfg.Tracing.Exporters {
		switch exp.Type {
		case "", "none":
			continue
		case tracing.ExporterSQLite:
			if exp.Retention == 0 {
				warnings = append(warnings, fmt.Sprintf("tracing.exporters[%d]: sqlite exporter has no retention; the span database grows without bound", i))
			}
			if _, src := storage.LookupKey(); src == storage.KeySourceNone {
				warnings = append(warnings, fmt.Sprintf("tracing.exporters[%d]: no trace key in %s or the keychain; span attributes are stored unencrypted", i, storage.KeyEnv))
			}
		}
		hasExporter = true
	}

	if cfg.Tracing.Subscriber == tracing.SubscriberOTel && !hasExporter {
		warnings = append(warnings, "tracing.subscriber is otel but no exporters are configured; spans will be dropped")
	}
	if cfg.Tracing.Sampling.Enabled && cfg.Tracing.Sampling.Rate == 0 && !cfg.Tracing.Sampling.AlwaysSampleErrors {
		warnings = append(warnings, "tracing.sampling.rate is 0; no traces will be kept")
	}

	return ValidationResult{
		Valid:    len(errs) == 0,
		Errors:   errs,
		Warnings: warnings,
	}
}

// describeErrors flattens err into one line per validation problem.
func describeErrors(err error) []string {
	var out []string
	var walk func(error)
	walk = func(e error) {
		if vErr, ok := e.(*tberrors.ValidationError); ok {
			out = append(out, vErr.Error())
			return
		}
		switch u := e.(type) {
		case interface{ Unwrap() []error }:
			for _, inner := range u.Unwrap() {
				walk(inner)
			}
		case interface{ Unwrap() error }:
			walk(u.Unwrap())
		}
	}
	walk(err)

	if len(out) == 0 {
		out = append(out, err.Error())
	}
	return out
}

// outputValidationResult writes the result and returns an exit error when it
// fails.
func outputValidationResult(w io.Writer, result ValidationResult, strict bool) error {
	if shared.GetJSON() {
		if err := shared.EmitJSON(w, struct {
			shared.JSONResponse
			ValidationResult
		}{shared.NewJSONResponse("config validate", result.Valid), result}); err != nil {
			return fmt.Errorf("failed to encode JSON: %w", err)
		}
	} else {
		if result.Valid {
			fmt.Fprintln(w, shared.RenderOK("Configuration is valid"))
		} else {
			fmt.Fprintln(w, shared.RenderError("Configuration validation failed"))
		}
		fmt.Fprintln(w)

		if len(result.Errors) > 0 {
			fmt.Fprintln(w, shared.Paint(shared.Header, "Errors:"))
			for _, err := range result.Errors {
				fmt.Fprintf(w, "  %s %s\n", shared.Paint(shared.StatusError, shared.SymbolError), err)
			}
			fmt.Fprintln(w)
		}

		if len(result.Warnings) > 0 {
			fmt.Fprintln(w, shared.Paint(shared.Header, "Warnings:"))
			for _, warn := range result.Warnings {
				fmt.Fprintf(w, "  %s %s\n", shared.Paint(shared.StatusWarn, shared.SymbolWarn), warn)
			}
			fmt.Fprintln(w)
		}

		if result.Valid && len(result.Warnings) == 0 {
			fmt.Fprintln(w, "No issues found.")
		}
	}

	if !result.Valid {
		return shared.NewExitError("configuration is invalid", &tberrors.ConfigError{
			Key:    "validation",
			Reason: fmt.Sprintf("%d problem(s) found", len(result.Errors)),
		})
	}

	if strict && len(result.Warnings) > 0 {
		return shared.NewExitError("configuration has warnings (strict mode)", &tberrors.ConfigError{
			Key:    "validation",
			Reason: fmt.Sprintf("%d warning(s) treated as errors", len(result.Warnings)),
		})
	}

	return nil
}
