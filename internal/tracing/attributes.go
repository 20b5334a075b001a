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
	"math"

	"github.com/tombee/tracebridge/pkg/bridge"
	"go.opentelemetry.io/otel/attribute"
)

// Attribute keys added to every guest span and event.
const (
	AttrTarget     = "tracebridge.target"
	AttrLevel      = "tracebridge.level"
	AttrFile       = "code.filepath"
	AttrLine       = "code.lineno"
	AttrModulePath = "code.namespace"
)

// toAttribute converts a field value to an OpenTelemetry attribute.
// OTel has no unsigned type, so u64 values above MaxInt64 become strings.
func toAttribute(key string, v bridge.Value) attribute.KeyValue {
	switch v.Kind() {
	case bridge.KindBool:
		return attribute.Bool(key, v.AsBool())
	case bridge.KindI64:
		return attribute.Int64(key, v.AsI64())
	case bridge.KindU64:
		if v.AsU64() > math.MaxInt64 {
			return attribute.String(key, v.String())
		}
		return attribute.Int64(key, int64(v.AsU64()))
	case bridge.KindF64:
		return attribute.Float64(key, v.AsF64())
	default:
		return attribute.String(key, v.String())
	}
}

// metadataAttributes describes where a span or event came from.
func metadataAttributes(meta *bridge.Metadata, target string) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		attribute.String(AttrTarget, target),
		attribute.String(AttrLevel, meta.Level.String()),
	}
	if meta.File != "" {
		attrs = append(attrs, attribute.String(AttrFile, meta.File))
	}
	if meta.HasLine {
		attrs = append(attrs, attribute.Int64(AttrLine, int64(meta.Line)))
	}
	if meta.ModulePath != "" {
		attrs = append(attrs, attribute.String(AttrModulePath, meta.ModulePath))
	}
	return attrs
}

// fieldAttributes converts set fields in order. Placeholders are skipped.
// For remapped spans the reserved keys describe the span itself and are not
// repeated as attributes.
func fieldAttributes(values bridge.FieldSet, remapped bool) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, values.Len())
	for _, f := range values.All() {
		v, ok := f.Value()
		if !ok {
			continue
		}
		if remapped && bridge.IsReservedKey(f.Name) {
			continue
		}
		attrs = append(attrs, toAttribute(f.Name, v))
	}
	return attrs
}
