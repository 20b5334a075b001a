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

/*
Package tracing provides the host side subscribers for guest tracing.

A guest records spans and events through pkg/span. Each call crosses the
bridge as a bridge.Subscriber capability call; the subscribers in this
package decide what happens to it.

# Subscribers

  - OTelSubscriber maps guest spans onto OpenTelemetry spans. The innermost
    entered span is the parent of new spans and the owner of events.
  - LogSubscriber writes spans and events to a slog.Logger.
  - Recorder keeps every call in memory for tests and the "record" mode of
    the CLI.
  - InstrumentedSubscriber wraps any of these and counts calls with
    OpenTelemetry metrics.

All subscribers honor a Filter, parsed from directives like

	warn,runtime=debug,runtime::vm=trace

Spans named bridge.TraceIdentifier are remapped: their display name and
target come from the reserved "name" and "target" fields.

# Provider

Provider owns the SDK. It builds exporters from configuration, installs
the W3C propagator, and exposes Prometheus metrics:

	provider, err := tracing.NewProvider(ctx, cfg, logger)
	if err != nil {
	    return err
	}
	defer provider.Shutdown(ctx)

	sub, err := provider.NewSubscriber(
	    tracing.WithParentContext(tracing.ContextFromTraceparent(ctx, tp)),
	)

Metrics:

  - tracebridge_spans_total{level,status}
  - tracebridge_events_total{level}
  - tracebridge_faults_total{op}
  - tracebridge_executions_total{status}
  - tracebridge_span_duration_seconds{level}
  - tracebridge_open_spans
  - tracebridge_active_sessions

# Exporters

Exporters are "console", "otlp", "otlp-http", "sqlite" and "none". The
sqlite exporter stores spans locally so the CLI can list them later. Stored
attributes are encrypted when a trace key is found in TRACEBRIDGE_TRACE_KEY
or the system keychain.
*/
package tracing
