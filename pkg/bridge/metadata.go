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

// Metadata describes a kind of span or event, independent of the values of
// any one invocation. Optional fields are empty (or zero for Line) when absent.
type Metadata struct {
	// Name is the span or event name.
	Name string

	// Target identifies the emitting component, usually a module path.
	Target string

	// Level is the severity.
	Level Level

	// File is the source file of the call site.
	File string

	// Line is the source line of the call site, valid when HasLine is set.
	Line    uint32
	HasLine bool

	// ModulePath is the module that contains the call site.
	ModulePath string

	// FieldNames declares the fields a FieldSet built against this
	// metadata may carry.
	FieldNames []string
}

// MetadataOption configures optional Metadata fields.
type MetadataOption func(*Metadata)

// WithLocation sets the call site file and line.
func WithLocation(file string, line uint32) MetadataOption {
	return func(m *Metadata) {
		m.File = file
		m.Line = line
		m.HasLine = true
	}
}

// WithModulePath sets the module path.
func WithModulePath(path string) MetadataOption {
	return func(m *Metadata) {
		m.ModulePath = path
	}
}

// WithFieldNames declares the field names.
func WithFieldNames(names ...string) MetadataOption {
	return func(m *Metadata) {
		m.FieldNames = names
	}
}

// NewMetadata builds metadata for a span or event.
func NewMetadata(level Level, target, name string, opts ...MetadataOption) Metadata {
	m := Metadata{
		Name:   name,
		Target: target,
		Level:  level,
	}
	for _, opt := range opts {
		opt(&m)
	}
	return m
}

// CheckFields reports whether every field in values is declared in
// FieldNames. Metadata without declared names accepts any set. This is an
// advisory check; nothing in the bridge enforces it.
func (m *Metadata) CheckFields(values FieldSet) bool {
	if len(m.FieldNames) == 0 {
		return true
	}
	if values.Len() > len(m.FieldNames) {
		return false
	}
	for _, f := range values.All() {
		found := false
		for _, name := range m.FieldNames {
			if name == f.Name {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Attributes is the payload for creating a span.
type Attributes struct {
	Metadata Metadata
	Values   FieldSet
}

// NewAttributes combines metadata with initial field values.
func NewAttributes(meta Metadata, values FieldSet) Attributes {
	return Attributes{Metadata: meta, Values: values}
}

// Event is a point-in-time occurrence.
type Event struct {
	Metadata Metadata
	Values   FieldSet
}

// NewEvent combines metadata with event field values.
func NewEvent(meta Metadata, values FieldSet) Event {
	return Event{Metadata: meta, Values: values}
}
