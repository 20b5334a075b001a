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

//go:build tracebridge_native && !tracebridge_off

package span

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/pkg/bridge"
)

func TestNative_BypassesRegistry(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	otel.SetTracerProvider(tp)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	rec := tracing.NewRecorder(tracing.AllowAll())
	bridge.Install(rec)

	WithinNamed(bridge.LevelInfo, "native-work", func() int {
		Info("app", "inside")
		return 0
	})

	assert.Empty(t, rec.Ops(), "the registry is not consulted")

	spans := exporter.GetSpans()
	require.Len(t, spans, 1)
	assert.Equal(t, "native-work", spans[0].Name)
	require.Len(t, spans[0].Events, 1)
	assert.Equal(t, "inside", spans[0].Events[0].Name)
}
