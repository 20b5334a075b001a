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
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
	"go.opentelemetry.io/otel"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/tombee/tracebridge/internal/tracing/redact"
	"github.com/tombee/tracebridge/pkg/bridge"
)

// GuestScope is the instrumentation scope of guest spans.
const GuestScope = "tracebridge.guest"

// Provider owns the OpenTelemetry SDK for the host: the tracer provider
// with its exporters and a meter provider feeding a private Prometheus
// registry.
type Provider struct {
	cfg              Config
	logger           *slog.Logger
	tp               *sdktrace.TracerProvider
	mp               *metric.MeterProvider
	registry         *prometheus.Registry
	metricsCollector *MetricsCollector
	instanceID       string
}

// NewProvider creates a provider from configuration. Extra options are
// applied after the configured exporters, so tests can add a syncer.
// The tracer provider and W3C propagator are installed globally.
func NewProvider(ctx context.Context, cfg Config, logger *slog.Logger, opts ...sdktrace.TracerProviderOption) (*Provider, error) {
	if logger == nil {
		logger = slog.Default()
	}

	instanceID := uuid.NewString()

	// No schema URL, to avoid conflicts when merging with the default resource.
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			"",
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.ServiceInstanceID(instanceID),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	allOpts := []sdktrace.TracerProviderOption{
		sdktrace.WithResource(res),
		sdktrace.WithSampler(NewSampler(cfg.Sampling)),
	}
	for _, processor := range CreateExportersFromConfig(ctx, cfg, logger) {
		allOpts = append(allOpts, sdktrace.WithSpanProcessor(processor))
	}
	allOpts = append(allOpts, opts...)

	tp := sdktrace.NewTracerProvider(allOpts...)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(W3CPropagator())

	// A private registry keeps providers independent of the global one.
	registry := prometheus.NewRegistry()
	promExporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	mp := metric.NewMeterProvider(
		metric.WithResource(res),
		metric.WithReader(promExporter),
	)

	metricsCollector, err := NewMetricsCollector(mp)
	if err != nil {
		return nil, fmt.Errorf("failed to create metrics collector: %w", err)
	}

	return &Provider{
		cfg:              cfg,
		logger:           logger,
		tp:               tp,
		mp:               mp,
		registry:         registry,
		metricsCollector: metricsCollector,
		instanceID:       instanceID,
	}, nil
}

// Tracer returns a tracer for the given instrumentation scope.
func (p *Provider) Tracer(name string) trace.Tracer {
	return p.tp.Tracer(name)
}

// InstanceID identifies this host process in exported resources.
func (p *Provider) InstanceID() string {
	return p.instanceID
}

// NewSubscriber builds the subscriber selected by the configuration.
// SubscriberNone returns a nil subscriber. Extra options apply to the
// OpenTelemetry subscriber only.
func (p *Provider) NewSubscriber(opts ...SubscriberOption) (bridge.Subscriber, error) {
	filter, err := ParseFilter(p.cfg.Filter)
	if err != nil {
		return nil, err
	}

	switch p.cfg.Subscriber {
	case SubscriberOTel, "":
		base := []SubscriberOption{
			WithFilter(filter),
			WithMaxOpenSpans(p.cfg.MaxOpenSpans),
			WithEventRate(p.cfg.EventsPerSecond),
			WithRedactor(redact.NewRedactor(redact.ParseMode(p.cfg.Redaction.Level))),
			WithLogger(p.logger),
			WithFaultHandler(func(op string) {
				p.metricsCollector.RecordFault(context.Background(), op)
			}),
		}
		sub := NewOTelSubscriber(p.Tracer(GuestScope), append(base, opts...)...)
		return Instrument(sub, p.metricsCollector), nil

	case SubscriberLog:
		return Instrument(NewLogSubscriber(p.logger, filter), p.metricsCollector), nil

	case SubscriberRecord:
		return NewRecorder(filter), nil

	case SubscriberNone:
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown subscriber %q", p.cfg.Subscriber)
	}
}

// Shutdown flushes any pending spans and releases resources.
func (p *Provider) Shutdown(ctx context.Context) error {
	return errors.Join(p.tp.Shutdown(ctx), p.mp.Shutdown(ctx))
}

// ForceFlush exports all pending spans synchronously.
func (p *Provider) ForceFlush(ctx context.Context) error {
	if err := p.tp.ForceFlush(ctx); err != nil {
		return err
	}
	return p.mp.ForceFlush(ctx)
}

// MetricsCollector returns the collector for bridge and sandbox metrics.
func (p *Provider) MetricsCollector() *MetricsCollector {
	return p.metricsCollector
}

// MetricsHandler returns an HTTP handler for the Prometheus metrics endpoint.
func (p *Provider) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

// WriteMetrics writes the current metrics to w in the Prometheus text format.
func (p *Provider) WriteMetrics(w io.Writer) error {
	families, err := p.registry.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range families {
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("failed to encode metrics: %w", err)
		}
	}
	return nil
}
