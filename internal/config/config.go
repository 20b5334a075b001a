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

// Package config loads host configuration from a YAML file and
// TRACEBRIDGE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/tombee/tracebridge/internal/log"
	"github.com/tombee/tracebridge/internal/sandbox"
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/internal/tracing/export"
	"github.com/tombee/tracebridge/internal/tracing/redact"
	tberrors "github.com/tombee/tracebridge/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g.
// TRACEBRIDGE_TRACING_FILTER or TRACEBRIDGE_SANDBOX_TIMEOUT.
const EnvPrefix = "TRACEBRIDGE"

var (
	// ErrInvalidConfig is returned when configuration validation fails.
	ErrInvalidConfig = errors.New("config: invalid configuration")
)

// Config represents the complete host configuration.
type Config struct {
	Log     log.Config     `yaml:"log" envconfig:"LOG"`
	Tracing tracing.Config `yaml:"tracing" envconfig:"TRACING"`
	Sandbox sandbox.Config `yaml:"sandbox" envconfig:"SANDBOX"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Log:     *log.DefaultConfig(),
		Tracing: tracing.DefaultConfig(),
		Sandbox: sandbox.DefaultConfig(),
	}
}

// Load loads configuration from an optional YAML file, then applies
// environment overrides. Environment variables take precedence over the
// file. If configPath is empty, only environment variables are used.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := cfg.loadFromFile(configPath); err != nil {
			return nil, &tberrors.ConfigError{
				Key:    "config_file",
				Reason: fmt.Sprintf("failed to load from %s", configPath),
				Cause:  err,
			}
		}
	}

	if err := envconfig.Process(EnvPrefix, cfg); err != nil {
		return nil, &tberrors.ConfigError{
			Key:    "environment",
			Reason: "failed to read " + EnvPrefix + "_* variables",
			Cause:  err,
		}
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, &tberrors.ConfigError{
			Key:    "validation",
			Reason: "configuration validation failed",
			Cause:  err,
		}
	}

	return cfg, nil
}

// applyDefaults fills in zero values left by a minimal config file.
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
	if c.Log.Format == "" {
		c.Log.Format = defaults.Log.Format
	}

	if c.Tracing.Subscriber == "" {
		c.Tracing.Subscriber = defaults.Tracing.Subscriber
	}
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = defaults.Tracing.ServiceName
	}
	if c.Tracing.ServiceVersion == "" {
		c.Tracing.ServiceVersion = defaults.Tracing.ServiceVersion
	}
	if c.Tracing.BatchSize == 0 {
		c.Tracing.BatchSize = defaults.Tracing.BatchSize
	}
	if c.Tracing.BatchInterval == 0 {
		c.Tracing.BatchInterval = defaults.Tracing.BatchInterval
	}
	if c.Tracing.Redaction.Level == "" {
		c.Tracing.Redaction.Level = defaults.Tracing.Redaction.Level
	}
	for i := range c.Tracing.Exporters {
		exp := &c.Tracing.Exporters[i]
		if exp.Type == tracing.ExporterSQLite && exp.Path == "" {
			exp.Path = DefaultStoragePath()
		}
		exp.Path = ExpandHome(exp.Path)
	}

	if c.Sandbox.Timeout == 0 {
		c.Sandbox.Timeout = defaults.Sandbox.Timeout
	}
	if c.Sandbox.MaxCallStackSize == 0 {
		c.Sandbox.MaxCallStackSize = defaults.Sandbox.MaxCallStackSize
	}
}

// loadFromFile loads configuration from a YAML file.
func (c *Config) loadFromFile(path string) error {
	data, err := os.ReadFile(ExpandHome(path))
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse YAML: %w", err)
	}

	return nil
}

// Validate checks that the configuration is usable. Every problem is
// reported, each as a *errors.ValidationError.
func (c *Config) Validate() error {
	var errs []error
	invalid := func(field, format string, args ...any) {
		errs = append(errs, &tberrors.ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	validLevels := map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[strings.ToLower(c.Log.Level)] {
		invalid("log.level", "must be one of [trace, debug, info, warn, error], got %q", c.Log.Level)
	}
	if c.Log.Format != log.FormatJSON && c.Log.Format != log.FormatText {
		invalid("log.format", "must be one of [json, text], got %q", c.Log.Format)
	}

	switch c.Tracing.Subscriber {
	case tracing.SubscriberOTel, tracing.SubscriberLog, tracing.SubscriberRecord, tracing.SubscriberNone:
	default:
		invalid("tracing.subscriber", "must be one of [otel, log, record, none], got %q", c.Tracing.Subscriber)
	}
	if _, err := tracing.ParseFilter(c.Tracing.Filter); err != nil {
		invalid("tracing.filter", "%v", err)
	}
	if c.Tracing.BatchSize < 0 {
		invalid("tracing.batch_size", "must not be negative, got %d", c.Tracing.BatchSize)
	}
	if c.Tracing.MaxOpenSpans < 0 {
		invalid("tracing.max_open_spans", "must not be negative, got %d", c.Tracing.MaxOpenSpans)
	}
	if c.Tracing.EventsPerSecond < 0 {
		invalid("tracing.events_per_second", "must not be negative, got %v", c.Tracing.EventsPerSecond)
	}
	if r := c.Tracing.Sampling.Rate; r < 0 || r > 1 {
		invalid("tracing.sampling.rate", "must be between 0 and 1, got %v", r)
	}
	switch redact.RedactionMode(c.Tracing.Redaction.Level) {
	case redact.ModeNone, redact.ModeStandard, redact.ModeStrict:
	default:
		invalid("tracing.redaction.level", "must be one of [none, standard, strict], got %q", c.Tracing.Redaction.Level)
	}

	for i, exp := range c.Tracing.Exporters {
		field := fmt.Sprintf("tracing.exporters[%d]", i)
		switch exp.Type {
		case export.KindConsole, export.KindNone:
		case export.KindOTLP, export.KindOTLPHTTP:
			if exp.Endpoint == "" {
				invalid(field+".endpoint", "required for %s exporter", exp.Type)
			}
			if exp.TLS.CertPath != "" && exp.TLS.KeyPath == "" {
				invalid(field+".tls.key_path", "required when cert_path is set")
			}
		case tracing.ExporterSQLite:
			if exp.Path == "" {
				invalid(field+".path", "required for sqlite exporter")
			}
			if exp.Retention < 0 {
				invalid(field+".retention", "must not be negative, got %v", exp.Retention)
			}
		default:
			invalid(field+".type", "unknown exporter type %q", exp.Type)
		}
	}

	if c.Sandbox.Timeout < 0 {
		invalid("sandbox.timeout", "must not be negative, got %v", c.Sandbox.Timeout)
	}
	if c.Sandbox.MaxCallStackSize < 0 {
		invalid("sandbox.max_call_stack_size", "must not be negative, got %d", c.Sandbox.MaxCallStackSize)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
	}
	return nil
}

// ExpandHome expands a leading "~/" to the user's home directory.
func ExpandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}
