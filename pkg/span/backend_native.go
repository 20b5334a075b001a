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
	"github.com/tombee/tracebridge/internal/tracing"
	"github.com/tombee/tracebridge/pkg/bridge"
	"go.opentelemetry.io/otel"
)

// Backend names the build variant.
const Backend = "native"

// nativeTracerName is the instrumentation scope for spans created in native builds.
const nativeTracerName = "tracebridge.native"

// native talks to the global OpenTelemetry provider. The global tracer
// delegates, so spans go to whatever provider the host sets later.
var native bridge.Subscriber = tracing.NewOTelSubscriber(otel.Tracer(nativeTracerName))

// backend always returns the native subscriber; the registry is bypassed.
var backend = func() bridge.Subscriber { return native }
