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

package bridge

// Reserved identifiers. External consumers match these byte for byte; they
// must never change.
const (
	// TargetKey is the field whose value overrides the span target.
	TargetKey = "target"

	// NameKey is the field whose value overrides the span name.
	NameKey = "name"

	// TraceIdentifier is the span name that tells consumers to read the real
	// name and target from the TargetKey and NameKey fields.
	TraceIdentifier = "wasm_tracing"
)

// IsReservedKey reports whether name is one of the override field names.
func IsReservedKey(name string) bool {
	return name == TargetKey || name == NameKey
}

// IsRemapped reports whether meta names a span whose identity lives in its
// reserved fields.
func (m *Metadata) IsRemapped() bool {
	return m.Name == TraceIdentifier
}

// RemappedAttributes builds span attributes for a call site that can only use
// the generic TraceIdentifier name. The real target and name travel in the
// reserved fields, appended after values.
func RemappedAttributes(level Level, target, name string, values FieldSet) Attributes {
	meta := NewMetadata(level, TraceIdentifier, TraceIdentifier)
	return NewAttributes(meta, values.Append(TargetKey, Str(target)).Append(NameKey, Str(name)))
}

// Resolve returns the display name and target for a span. For spans named
// TraceIdentifier that carry both reserved fields, the field values win;
// otherwise the literal metadata name and target are returned.
func Resolve(meta *Metadata, values FieldSet) (name, target string) {
	name, target = meta.Name, meta.Target
	if !meta.IsRemapped() {
		return name, target
	}
	t, okTarget := values.Get(TargetKey)
	n, okName := values.Get(NameKey)
	if !okTarget || !okName {
		return name, target
	}
	return n.String(), t.String()
}
