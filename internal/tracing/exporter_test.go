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
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/tombee/tracebridge/internal/tracing/storage"
	"github.com/tombee/tracebridge/pkg/bridge"
)

func TestCreateExporter(t *testing.T) {
	ctx := context.Background()

	t.Run("none", func(t *testing.T) {
		exp, err := CreateExporter(ctx, ExporterConfig{Type: "none"}, nil)
		require.NoError(t, err)
		assert.Nil(t, exp)
	})

	t.Run("console", func(t *testing.T) {
		exp, err := CreateExporter(ctx, ExporterConfig{Type: "console"}, nil)
		require.NoError(t, err)
		require.NotNil(t, exp)
		assert.NoError(t, exp.Shutdown(ctx))
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := CreateExporter(ctx, ExporterConfig{Type: "zipkin"}, nil)
		assert.Error(t, err)
	})

	t.Run("sqlite requires path", func(t *testing.T) {
		_, err := CreateExporter(ctx, ExporterConfig{Type: ExporterSQLite}, nil)
		assert.Error(t, err)
	})

	t.Run("sqlite", func(t *testing.T) {
		exp, err := CreateExporter(ctx, ExporterConfig{
			Type: ExporterSQLite,
			Path: filepath.Join(t.TempDir(), "spans.db"),
		}, nil)
		require.NoError(t, err)
		assert.IsType(t, &storage.Exporter{}, exp)
		assert.NoError(t, exp.Shutdown(ctx))
	})

	t.Run("sqlite with retention", func(t *testing.T) {
		exp, err := CreateExporter(ctx, ExporterConfig{
			Type:      ExporterSQLite,
			Path:      filepath.Join(t.TempDir(), "spans.db"),
			Retention: time.Hour,
		}, nil)
		require.NoError(t, err)
		assert.IsType(t, &retainedExporter{}, exp)
		assert.NoError(t, exp.Shutdown(ctx))
	})
}

func TestCreateExportersFromConfig_SkipsFailures(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Exporters = []ExporterConfig{
		{Type: "console"},
		{Type: "zipkin"},
		{Type: "none"},
	}

	processors := CreateExportersFromConfig(context.Background(), cfg, nil)
	require.Len(t, processors, 1)
	assert.NoError(t, processors[0].Shutdown(context.Background()))
}

func TestProvider_SQLiteExporterEndToEnd(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spans.db")
	t.Setenv(TraceKeyEnv, "")

	cfg := DefaultConfig()
	cfg.Exporters = []ExporterConfig{{Type: ExporterSQLite, Path: path}}
	provider, err := NewProvider(context.Background(), cfg, nil)
	require.NoError(t, err)

	sub, err := provider.NewSubscriber()
	require.NoError(t, err)
	id := sub.NewSpan(spanAttrs(bridge.LevelWarn, "guest::mod", "compute", bridge.F("n", bridge.I64(4))))
	sub.Enter(id)
	sub.Exit(id)
	bridge.CloseSpan(sub, id)

	// Shutdown drains the batch processor and closes the store.
	require.NoError(t, provider.Shutdown(context.Background()))

	store, err := storage.New(storage.Config{Path: path})
	require.NoError(t, err)
	defer store.Close()

	spans, err := store.ListSpans(context.Background(), storage.SpanFilter{})
	require.NoError(t, err)
	require.Len(t, spans, 1)
	assert.Equal(t, "compute", spans[0].Name)
	assert.Equal(t, "guest::mod", spans[0].Target)
	assert.Equal(t, "WARN", spans[0].Level)
	assert.Equal(t, float64(4), spans[0].Attributes["n"])
}

var _ sdktrace.SpanExporter = (*retainedExporter)(nil)
