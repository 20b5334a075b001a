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

package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

func TestExporter_StoresFinishedSpans(t *testing.T) {
	store := newMemoryStore(t)
	exporter := NewExporter(store, nil)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer tp.Shutdown(context.Background())
	tracer := tp.Tracer("test")

	ctx, parent := tracer.Start(context.Background(), "handler", trace.WithAttributes(
		attribute.String(targetAttr, "app"),
		attribute.String(levelAttr, "INFO"),
		attribute.Int64("request", 7),
	))
	_, child := tracer.Start(ctx, "db.query", trace.WithAttributes(
		attribute.String(targetAttr, "app::db"),
		attribute.String(levelAttr, "DEBUG"),
	))
	child.AddEvent("slow", trace.WithAttributes(attribute.Bool("retry", true)))
	child.SetStatus(codes.Error, "timeout")
	child.End()
	parent.End()

	traceID := parent.SpanContext().TraceID().String()
	spans, err := store.GetTraceSpans(context.Background(), traceID)
	require.NoError(t, err)
	require.Len(t, spans, 2)

	byName := map[string]*Span{}
	for _, s := range spans {
		byName[s.Name] = s
	}

	handler := byName["handler"]
	require.NotNil(t, handler)
	assert.Equal(t, "app", handler.Target)
	assert.Equal(t, "INFO", handler.Level)
	assert.Empty(t, handler.ParentID)
	assert.Equal(t, float64(7), handler.Attributes["request"])
	assert.NotContains(t, handler.Attributes, targetAttr)

	query := byName["db.query"]
	require.NotNil(t, query)
	assert.Equal(t, handler.SpanID, query.ParentID)
	assert.Equal(t, StatusError, query.Status)
	assert.Equal(t, "timeout", query.StatusMessage)
	require.Len(t, query.Events, 1)
	assert.Equal(t, "slow", query.Events[0].Name)
	assert.Equal(t, true, query.Events[0].Attributes["retry"])
}

func TestOpenExporter_ClosesStoreOnShutdown(t *testing.T) {
	exporter, err := OpenExporter(Config{Path: filepath.Join(t.TempDir(), "spans.db")}, nil)
	require.NoError(t, err)

	require.NoError(t, exporter.Shutdown(context.Background()))
	assert.Error(t, exporter.Store().DB().Ping())
}

func TestNewExporter_LeavesStoreOpen(t *testing.T) {
	store := newMemoryStore(t)
	exporter := NewExporter(store, nil)

	require.NoError(t, exporter.Shutdown(context.Background()))
	assert.NoError(t, store.DB().Ping())
}
