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
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Attribute keys the exporter lifts into dedicated columns.
const (
	targetAttr = "tracebridge.target"
	levelAttr  = "tracebridge.level"
)

// Exporter writes finished OpenTelemetry spans to a SQLiteStore.
type Exporter struct {
	store  *SQLiteStore
	logger *slog.Logger
	owned  bool
}

// NewExporter creates an exporter for store. The caller keeps ownership of
// store.
func NewExporter(store *SQLiteStore, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{store: store, logger: logger}
}

// OpenExporter opens a store at cfg.Path and returns an exporter that closes
// it on Shutdown.
func OpenExporter(cfg Config, logger *slog.Logger) (*Exporter, error) {
	store, err := New(cfg)
	if err != nil {
		return nil, err
	}
	e := NewExporter(store, logger)
	e.owned = true
	return e, nil
}

// ExportSpans implements sdktrace.SpanExporter. A span that fails to store
// is logged and does not block the rest of the batch.
func (e *Exporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	var errs []error
	for _, ro := range spans {
		span := FromReadOnly(ro)
		if err := e.store.StoreSpan(ctx, span); err != nil {
			e.logger.Warn("failed to store span",
				"trace_id", span.TraceID,
				"span_id", span.SpanID,
				"error", err)
			errs = append(errs, err)
		}
	}
	if len(errs) == len(spans) && len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Shutdown implements sdktrace.SpanExporter.
func (e *Exporter) Shutdown(ctx context.Context) error {
	if e.owned {
		return e.store.Close()
	}
	return nil
}

// Store returns the underlying store.
func (e *Exporter) Store() *SQLiteStore {
	return e.store
}

// FromReadOnly converts an SDK span into a stored span.
func FromReadOnly(ro sdktrace.ReadOnlySpan) *Span {
	span := &Span{
		TraceID:    ro.SpanContext().TraceID().String(),
		SpanID:     ro.SpanContext().SpanID().String(),
		Name:       ro.Name(),
		StartTime:  ro.StartTime(),
		EndTime:    ro.EndTime(),
		Attributes: make(map[string]any, len(ro.Attributes())),
	}

	if ro.Parent().IsValid() {
		span.ParentID = ro.Parent().SpanID().String()
	}

	switch ro.Status().Code {
	case codes.Ok:
		span.Status = StatusOK
	case codes.Error:
		span.Status = StatusError
		span.StatusMessage = ro.Status().Description
	default:
		span.Status = StatusUnset
	}

	for _, attr := range ro.Attributes() {
		switch string(attr.Key) {
		case targetAttr:
			span.Target = attr.Value.AsString()
		case levelAttr:
			span.Level = attr.Value.AsString()
		default:
			span.Attributes[string(attr.Key)] = attr.Value.AsInterface()
		}
	}

	for _, ev := range ro.Events() {
		event := Event{
			Name:       ev.Name,
			Timestamp:  ev.Time,
			Attributes: make(map[string]any, len(ev.Attributes)),
		}
		for _, attr := range ev.Attributes {
			event.Attributes[string(attr.Key)] = attr.Value.AsInterface()
		}
		span.Events = append(span.Events, event)
	}

	return span
}

var _ sdktrace.SpanExporter = (*Exporter)(nil)
