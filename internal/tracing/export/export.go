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

// Package export builds OpenTelemetry span exporters for guest traces.
package export

import (
	"context"
	"fmt"
	"io"
	"time"

	"go.opentelemetry.io/otel/sdk/trace"
)

// Exporter kinds.
const (
	KindConsole  = "console"
	KindOTLP     = "otlp"
	KindOTLPHTTP = "otlp-http"
	KindNone     = "none"
)

// Options configures an exporter. Fields that do not apply to a kind are
// ignored.
type Options struct {
	// Endpoint is the collector address, e.g. "localhost:4317".
	Endpoint string

	// URLPath overrides the OTLP HTTP path (default "/v1/traces").
	URLPath string

	// Headers are sent with every export request.
	Headers map[string]string

	// TLS configures transport security. Disabled TLS means plaintext.
	TLS TLSOptions

	// Compress enables gzip compression for OTLP.
	Compress bool

	// Timeout bounds each export request. Zero uses the SDK default.
	Timeout time.Duration

	// Writer is the console destination (default: os.Stdout).
	Writer io.Writer

	// Compact disables console pretty printing.
	Compact bool
}

// New creates an exporter of the given kind. KindNone and the empty kind
// return a nil exporter and no error.
func New(ctx context.Context, kind string, opts Options) (trace.SpanExporter, error) {
	switch kind {
	case KindConsole:
		return NewConsoleExporter(opts.Writer, !opts.Compact)
	case KindOTLP:
		return NewOTLPExporter(ctx, opts)
	case KindOTLPHTTP, "otlp_http":
		return NewOTLPHTTPExporter(ctx, opts)
	case KindNone, "":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown exporter type: %s", kind)
	}
}
