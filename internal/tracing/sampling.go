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
	"github.com/tombee/tracebridge/pkg/bridge"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// SamplingConfig configures trace sampling behavior
type SamplingConfig struct {
	// Enabled controls whether sampling is active
	Enabled bool `yaml:"enabled" envconfig:"ENABLED"`

	// Rate is the sampling rate (0.0 - 1.0)
	// 1.0 = 100% sampling (all traces)
	// 0.1 = 10% sampling
	Rate float64 `yaml:"rate" envconfig:"RATE"`

	// AlwaysSampleErrors keeps every span and event emitted at ERROR level
	AlwaysSampleErrors bool `yaml:"always_sample_errors" envconfig:"ALWAYS_SAMPLE_ERRORS"`
}

// NewSampler creates an OpenTelemetry sampler based on the configuration.
// Child spans follow their parent's decision.
func NewSampler(cfg SamplingConfig) sdktrace.Sampler {
	return sdktrace.ParentBased(newRootSampler(cfg))
}

func newRootSampler(cfg SamplingConfig) sdktrace.Sampler {
	if !cfg.Enabled || cfg.Rate >= 1.0 {
		return sdktrace.AlwaysSample()
	}

	base := sdktrace.NeverSample()
	if cfg.Rate > 0.0 {
		base = sdktrace.TraceIDRatioBased(cfg.Rate)
	}

	if cfg.AlwaysSampleErrors {
		return &errorAwareSampler{baseSampler: base}
	}
	return base
}

// errorAwareSampler wraps a base sampler to always sample ERROR level guest spans
type errorAwareSampler struct {
	baseSampler sdktrace.Sampler
}

// ShouldSample implements the Sampler interface
func (s *errorAwareSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	for _, attr := range params.Attributes {
		if attr.Key == AttrLevel && attr.Value.AsString() == bridge.LevelError.String() {
			return sdktrace.SamplingResult{
				Decision:   sdktrace.RecordAndSample,
				Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
			}
		}
	}

	return s.baseSampler.ShouldSample(params)
}

// Description returns a description of the sampler
func (s *errorAwareSampler) Description() string {
	return "ErrorAwareSampler{base=" + s.baseSampler.Description() + "}"
}
