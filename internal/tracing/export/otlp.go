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

package export

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/sdk/trace"
	"google.golang.org/grpc/credentials"
)

// NewOTLPExporter creates an OTLP gRPC exporter.
func NewOTLPExporter(ctx context.Context, opts Options) (trace.SpanExporter, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("otlp exporter requires an endpoint")
	}

	grpcOpts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(opts.Endpoint)}

	tlsConfig, err := BuildTLSConfig(opts.TLS)
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithInsecure())
	} else {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTLSCredentials(credentials.NewTLS(tlsConfig)))
	}

	if len(opts.Headers) > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithHeaders(opts.Headers))
	}
	if opts.Compress {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithCompressor("gzip"))
	}
	if opts.Timeout > 0 {
		grpcOpts = append(grpcOpts, otlptracegrpc.WithTimeout(opts.Timeout))
	}

	exporter, err := otlptracegrpc.New(ctx, grpcOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP gRPC exporter: %w", err)
	}
	return exporter, nil
}

// NewOTLPHTTPExporter creates an OTLP HTTP exporter.
func NewOTLPHTTPExporter(ctx context.Context, opts Options) (trace.SpanExporter, error) {
	if opts.Endpoint == "" {
		return nil, fmt.Errorf("otlp-http exporter requires an endpoint")
	}

	httpOpts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(opts.Endpoint)}
	if opts.URLPath != "" {
		httpOpts = append(httpOpts, otlptracehttp.WithURLPath(opts.URLPath))
	}

	tlsConfig, err := BuildTLSConfig(opts.TLS)
	if err != nil {
		return nil, err
	}
	if tlsConfig == nil {
		httpOpts = append(httpOpts, otlptracehttp.WithInsecure())
	} else {
		httpOpts = append(httpOpts, otlptracehttp.WithTLSClientConfig(tlsConfig))
	}

	if len(opts.Headers) > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithHeaders(opts.Headers))
	}
	if opts.Compress {
		httpOpts = append(httpOpts, otlptracehttp.WithCompression(otlptracehttp.GzipCompression))
	}
	if opts.Timeout > 0 {
		httpOpts = append(httpOpts, otlptracehttp.WithTimeout(opts.Timeout))
	}

	exporter, err := otlptracehttp.New(ctx, httpOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP HTTP exporter: %w", err)
	}
	return exporter, nil
}
