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
	"time"
)

// Subscriber kinds selectable from configuration.
const (
	SubscriberOTel   = "otel"
	SubscriberLog    = "log"
	SubscriberRecord = "record"
	SubscriberNone   = "none"
)

// Config holds host tracing configuration.
type Config struct {
	// Subscriber selects which subscriber the host installs.
	Subscriber string `yaml:"subscriber" envconfig:"SUBSCRIBER"`

	// Filter is a directive string such as "info,runtime=trace".
	Filter string `yaml:"filter" envconfig:"FILTER"`

	// ServiceName identifies this host in traces.
	ServiceName string `yaml:"service_name" envconfig:"SERVICE_NAME"`

	// ServiceVersion is the application version.
	ServiceVersion string `yaml:"service_version" envconfig:"SERVICE_VERSION"`

	// Exporters configures export destinations.
	Exporters []ExporterConfig `yaml:"exporters" ignored:"true"`

	// BatchSize is the maximum number of spans per export batch (default: 512).
	BatchSize int `yaml:"batch_size" envconfig:"BATCH_SIZE"`

	// BatchInterval is how often to flush spans (default: 5s).
	BatchInterval time.Duration `yaml:"batch_interval" envconfig:"BATCH_INTERVAL"`

	// MaxOpenSpans caps spans held open by the subscriber. Zero is unlimited.
	MaxOpenSpans int `yaml:"max_open_spans" envconfig:"MAX_OPEN_SPANS"`

	// EventsPerSecond caps guest events. Zero is unlimited.
	EventsPerSecond float64 `yaml:"events_per_second" envconfig:"EVENTS_PER_SECOND"`

	// Redaction configures sensitive field handling.
	Redaction RedactionConfig `yaml:"redaction" envconfig:"REDACTION"`

	// Sampling configures head sampling of guest traces.
	Sampling SamplingConfig `yaml:"sampling" envconfig:"SAMPLING"`
}

// ExporterConfig defines an export destination.
type ExporterConfig struct {
	// Type is the exporter type: "console", "otlp", "otlp-http", "sqlite" or "none".
	Type string `yaml:"type"`

	// Endpoint is the OTLP receiver address.
	Endpoint string `yaml:"endpoint"`

	// URLPath overrides the OTLP HTTP path.
	URLPath string `yaml:"url_path"`

	// Path is the database path for the sqlite exporter.
	Path string `yaml:"path"`

	// Retention is how long the sqlite exporter keeps traces. Zero keeps
	// them forever.
	Retention time.Duration `yaml:"retention"`

	// Headers are additional headers for authentication.
	Headers map[string]string `yaml:"headers"`

	// Compress enables gzip for OTLP exporters.
	Compress bool `yaml:"compress"`

	// Timeout bounds each export request.
	Timeout time.Duration `yaml:"timeout"`

	// TLS configures secure connections.
	TLS TLSConfig `yaml:"tls"`
}

// TLSConfig configures TLS for exporters.
type TLSConfig struct {
	// Enabled activates TLS.
	Enabled bool `yaml:"enabled"`

	// VerifyCertificate controls certificate validation.
	VerifyCertificate bool `yaml:"verify_certificate"`

	// CACertPath is the path to the CA certificate.
	CACertPath string `yaml:"ca_cert_path"`

	// CertPath and KeyPath enable mutual TLS.
	CertPath string `yaml:"cert_path"`
	KeyPath  string `yaml:"key_path"`

	// ServerName overrides the expected server name.
	ServerName string `yaml:"server_name"`
}

// RedactionConfig controls sensitive data redaction in guest fields.
type RedactionConfig struct {
	// Level is the redaction mode: "none", "standard", or "strict".
	Level string `yaml:"level" envconfig:"LEVEL"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Subscriber:     SubscriberOTel,
		Filter:         "info",
		ServiceName:    "tracebridge",
		ServiceVersion: "unknown",
		Exporters:      nil,             // No exporters by default
		BatchSize:      512,             // OTLP default batch size
		BatchInterval:  5 * time.Second, // OTLP default batch interval
		MaxOpenSpans:   10000,
		Redaction: RedactionConfig{
			Level: "standard",
		},
		Sampling: SamplingConfig{
			Enabled:            false,
			Rate:               1.0,
			AlwaysSampleErrors: true,
		},
	}
}
