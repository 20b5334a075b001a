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

package tracing

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/tombee/tracebridge/internal/tracing/export"
	"github.com/tombee/tracebridge/internal/tracing/storage"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterSQLite stores spans in a local SQLite database.
const ExporterSQLite = "sqlite"

// TraceKeyEnv names the environment variable holding the sqlite encryption key.
const TraceKeyEnv = storage.KeyEnv

// CreateExporter creates a span exporter from configuration.
// A "none" or empty type returns a nil exporter.
func CreateExporter(ctx context.Context, cfg ExporterConfig, logger *slog.Logger) (sdktrace.SpanExporter, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.Type == ExporterSQLite {
		if cfg.Path == "" {
			return nil, fmt.Errorf("sqlite exporter requires a path")
		}
		key, _ := storage.LookupKey()
		exp, err := storage.OpenExporter(storage.Config{
			Path:          cfg.Path,
			EncryptionKey: key,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to open span store: %w", err)
		}
		if cfg.Retention <= 0 {
			return exp, nil
		}
		rm := NewRetentionManager(exp.Store(), cfg.Retention, 0, logger)
		rm.Start()
		return &retainedExporter{Exporter: exp, retention: rm}, nil
	}

	return export.New(ctx, cfg.Type, export.Options{
		Endpoint: cfg.Endpoint,
		URLPath:  cfg.URLPath,
		Headers:  cfg.Headers,
		Compress: cfg.Compress,
		Timeout:  cfg.Timeout,
		TLS: export.TLSOptions{
			Enabled:    cfg.TLS.Enabled,
			SkipVerify: cfg.TLS.Enabled && !cfg.TLS.VerifyCertificate,
			CACertPath: cfg.TLS.CACertPath,
			CertPath:   cfg.TLS.CertPath,
			KeyPath:    cfg.TLS.KeyPath,
			ServerName: cfg.TLS.ServerName,
		},
	})
}

// CreateExportersFromConfig creates batch span processors for all configured exporters.
// Exporter creation failures are logged but don't block startup.
func CreateExportersFromConfig(ctx context.Context, cfg Config, logger *slog.Logger) []sdktrace.SpanProcessor {
	if logger == nil {
		logger = slog.Default()
	}

	var processors []sdktrace.SpanProcessor
	for i, exporterCfg := range cfg.Exporters {
		exporter, err := CreateExporter(ctx, exporterCfg, logger)
		if err != nil {
			logger.Warn("failed to create exporter, skipping",
				"index", i,
				"type", exporterCfg.Type,
				"endpoint", exporterCfg.Endpoint,
				"error", err)
			continue
		}
		if exporter == nil {
			continue
		}

		var batchOpts []sdktrace.BatchSpanProcessorOption
		if cfg.BatchSize > 0 {
			batchOpts = append(batchOpts, sdktrace.WithMaxExportBatchSize(cfg.BatchSize))
		}
		if cfg.BatchInterval > 0 {
			batchOpts = append(batchOpts, sdktrace.WithBatchTimeout(cfg.BatchInterval))
		}

		processors = append(processors, sdktrace.NewBatchSpanProcessor(exporter, batchOpts...))

		logger.Debug("created exporter",
			"type", exporterCfg.Type,
			"endpoint", exporterCfg.Endpoint,
			"path", exporterCfg.Path)
	}

	return processors
}
