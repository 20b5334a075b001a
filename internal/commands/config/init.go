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
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"golang.org/x/term"
	"gopkg.in/yaml.v3"

	"github.com/tombee/tracebridge/internal/commands/shared"
	"github.com/tombee/tracebridge/internal/config"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/internal/tracing/export"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// defaultRetention is the sqlite retention written by init.
const defaultRetention = 7 * 24 * time.Hour

// initAnswers holds the choices config init writes.
type initAnswers struct {
	Subscriber string
	Filter     string
	Exporter   string
	Endpoint   string
	Path       string
	Retention  time.Duration
}

// newInitCommand creates the 'config init' subcommand.
func newInitCommand() *cobra.Command {
	var (
		a     initAnswers
		force bool
		yes   bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a configuration file",
		Long: `Create a configuration file with the subscriber, filter and exporter to use.

In a terminal, init asks for each setting. Pass --yes, or any of the
setting flags, to write the file without prompting.`,
		Example: `  # Interactive setup
  tracebridge config init

  # Store spans locally for 'tracebridge spans'
  tracebridge config init --exporter sqlite --yes

  # Export to a local collector
  tracebridge config init --exporter otlp --endpoint localhost:4317`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			flags := cmd.Flags()
			interactive := !yes && stdinIsTerminal() &&
				!flags.Changed("subscriber") && !flags.Changed("filter") &&
				!flags.Changed("exporter") && !flags.Changed("endpoint")
			return runInit(cmd, a, force, interactive)
		},
	}

	cmd.Flags().StringVar(&a.Subscriber, "subscriber", tracing.SubscriberOTel, "Subscriber: otel, log, record or none")
	cmd.Flags().StringVar(&a.Filter, "filter", "info", "Level/target filter directives")
	cmd.Flags().StringVar(&a.Exporter, "exporter", export.KindNone, "Exporter for the otel subscriber: console, otlp, otlp-http, sqlite or none")
	cmd.Flags().StringVar(&a.Endpoint, "endpoint", "", "OTLP receiver address (otlp and otlp-http exporters)")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing configuration file")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Write the file without prompting")

	return cmd
}

func runInit(cmd *cobra.Command, a initAnswers, force, interactive bool) error {
	out := cmd.OutOrStdout()

	path := shared.GetConfigPath()
	if path == "" {
		var err error
		path, err = config.ConfigPath()
		if err != nil {
			return fmt.Errorf("failed to determine config path: %w", err)
		}
	}
	path = config.ExpandHome(path)

	if _, err := os.Stat(path); err == nil && !force {
		return shared.NewExitError("writing configuration", &tberrors.ConfigError{
			Key:    "config_file",
			Reason: fmt.Sprintf("%s already exists (use --force to overwrite)", path),
		})
	}

	if interactive {
		if err := promptAnswers(&a); err != nil {
			if errors.Is(err, huh.ErrUserAborted) {
				fmt.Fprintln(out, shared.RenderLabel("Cancelled."))
				return nil
			}
			return err
		}
	}

	cfg := a.apply(config.Default())
	if err := cfg.Validate(); err != nil {
		return shared.NewExitError("invalid settings", &tberrors.ConfigError{Key: "init", Reason: "settings failed validation", Cause: err})
	}

	if err := writeConfigFile(path, a.document()); err != nil {
		return err
	}

	if shared.GetJSON() {
		return shared.EmitJSON(out, struct {
			shared.JSONResponse
			Path string `json:"path"`
		}{shared.NewJSONResponse("config init", true), path})
	}
	if !shared.GetQuiet() {
		fmt.Fprintln(out, shared.RenderOK("Wrote "+path))
		printNextSteps(out, a)
	}
	return nil
}

// apply sets the answers on cfg.
func (a initAnswers) apply(cfg *config.Config) *config.Config {
	cfg.Tracing.Subscriber = a.Subscriber
	cfg.Tracing.Filter = a.Filter
	if exp, ok := a.exporter(); ok {
		cfg.Tracing.Exporters = []tracing.ExporterConfig{exp}
	}
	return cfg
}

func (a initAnswers) exporter() (tracing.ExporterConfig, bool) {
	switch a.Exporter {
	case "", export.KindNone:
		return tracing.ExporterConfig{}, false
	case tracing.ExporterSQLite:
		path := a.Path
		if path == "" {
			path = config.DefaultStoragePath()
		}
		retention := a.Retention
		if retention == 0 {
			retention = defaultRetention
		}
		return tracing.ExporterConfig{Type: a.Exporter, Path: path, Retention: retention}, true
	default:
		return tracing.ExporterConfig{Type: a.Exporter, Endpoint: a.Endpoint}, true
	}
}

// document is the YAML written to disk. Only the chosen settings appear;
// everything else keeps its default.
func (a initAnswers) document() map[string]any {
	tr := map[string]any{
		"subscriber": a.Subscriber,
		"filter":     a.Filter,
	}
	if exp, ok := a.exporter(); ok {
		entry := map[string]any{"type": exp.Type}
		if exp.Endpoint != "" {
			entry["endpoint"] = exp.Endpoint
		}
		if exp.Path != "" {
			entry["path"] = exp.Path
			entry["retention"] = exp.Retention.String()
		}
		tr["exporters"] = []any{entry}
	}
	return map[string]any{"tracing": tr}
}

func writeConfigFile(path string, doc map[string]any) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

func printNextSteps(w io.Writer, a initAnswers) {
	fmt.Fprintln(w)
	fmt.Fprintln(w, shared.Paint(shared.Header, "Next steps:"))
	fmt.Fprintln(w, "  tracebridge config validate")
	fmt.Fprintln(w, "  tracebridge run <script.js>")
	if a.Exporter == tracing.ExporterSQLite {
		fmt.Fprintln(w, "  tracebridge config trace-key --generate   # encrypt stored attributes")
		fmt.Fprintln(w, "  tracebridge spans")
	}
}

func stdinIsTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

// promptAnswers asks for each setting, starting from the flag values.
func promptAnswers(a *initAnswers) error {
	notEmpty := func(s string) error {
		if s == "" {
			return errors.New("required")
		}
		return nil
	}

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Subscriber").
				Description("Where guest spans and events go").
				Options(
					huh.NewOption("otel - export through OpenTelemetry", tracing.SubscriberOTel),
					huh.NewOption("log - write to the host log", tracing.SubscriberLog),
					huh.NewOption("record - print the span tree after each run", tracing.SubscriberRecord),
					huh.NewOption("none - guest tracing calls are no-ops", tracing.SubscriberNone),
				).
				Value(&a.Subscriber),
			huh.NewInput().
				Title("Filter").
				Description("Default level plus per-target prefixes, e.g. warn,app=debug").
				Value(&a.Filter).
				Validate(func(s string) error {
					_, err := tracing.ParseFilter(s)
					return err
				}),
		),
		huh.NewGroup(
			huh.NewSelect[string]().
				Title("Exporter").
				Options(
					huh.NewOption("sqlite - local span database for 'tracebridge spans'", tracing.ExporterSQLite),
					huh.NewOption("otlp - OTLP over gRPC", export.KindOTLP),
					huh.NewOption("otlp-http - OTLP over HTTP", export.KindOTLPHTTP),
					huh.NewOption("console - print spans to stdout", export.KindConsole),
					huh.NewOption("none", export.KindNone),
				).
				Value(&a.Exporter),
		).WithHideFunc(func() bool { return a.Subscriber != tracing.SubscriberOTel }),
		huh.NewGroup(
			huh.NewInput().
				Title("OTLP endpoint").
				Placeholder("localhost:4317").
				Value(&a.Endpoint).
				Validate(notEmpty),
		).WithHideFunc(func() bool { return a.Exporter != export.KindOTLP && a.Exporter != export.KindOTLPHTTP }),
	).WithTheme(formTheme())

	if err := form.Run(); err != nil {
		return err
	}
	if a.Subscriber != tracing.SubscriberOTel {
		a.Exporter = export.KindNone
	}
	return nil
}

// formTheme is the Charm theme in the CLI's colours.
func formTheme() *huh.Theme {
	t := huh.ThemeCharm()
	primary := lipgloss.Color("39")
	muted := lipgloss.Color("245")

	t.Focused.Title = lipgloss.NewStyle().Foreground(primary).Bold(true)
	t.Focused.Description = lipgloss.NewStyle().Foreground(muted)
	t.Focused.SelectSelector = lipgloss.NewStyle().Foreground(primary).Bold(true)
	t.Blurred.Title = lipgloss.NewStyle().Foreground(muted)
	t.Blurred.Description = lipgloss.NewStyle().Foreground(muted)
	return t
}
