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

import (
	"iter"
	"slices"
)

// Field is a named value. A field may be declared without a value and filled
// later by a Record call.
type Field struct {
	Name  string
	value Value
}

// F returns a field carrying v.
func F(name string, v Value) Field {
	return Field{Name: name, value: v}
}

// Placeholder returns a field declared without a value.
func Placeholder(name string) Field {
	return Field{Name: name}
}

// Value returns the field's value and whether one is set.
func (f Field) Value() (Value, bool) {
	return f.value, f.value.IsValid()
}

// IsSet reports whether the field carries a value.
func (f Field) IsSet() bool {
	return f.value.IsValid()
}

// FieldSet is an ordered sequence of fields. Names are caller supplied and may
// repeat; consumers should treat the last occurrence as authoritative.
// The zero FieldSet is empty and ready to use. Appending never mutates a set
// that was already handed out.
type FieldSet struct {
	fields []Field
}

// NewFieldSet returns a set holding fields in order.
func NewFieldSet(fields ...Field) FieldSet {
	return FieldSet{fields: fields}
}

// Append adds a field with a value and returns the extended set.
func (s FieldSet) Append(name string, v Value) FieldSet {
	s.fields = append(slices.Clip(s.fields), F(name, v))
	return s
}

// Declare adds a placeholder field and returns the extended set.
func (s FieldSet) Declare(name string) FieldSet {
	s.fields = append(slices.Clip(s.fields), Placeholder(name))
	return s
}

// With appends fields and returns the extended set.
func (s FieldSet) With(fields ...Field) FieldSet {
	s.fields = append(slices.Clip(s.fields), fields...)
	return s
}

// Len returns the number of fields, including placeholders.
func (s FieldSet) Len() int {
	return len(s.fields)
}

// At returns the field at position i.
func (s FieldSet) At(i int) Field {
	return s.fields[i]
}

// Get returns the last set value recorded under name.
func (s FieldSet) Get(name string) (Value, bool) {
	for i := len(s.fields) - 1; i >= 0; i-- {
		f := s.fields[i]
		if f.Name == name && f.IsSet() {
			return f.value, true
		}
	}
	return Value{}, false
}

// Names returns field names in insertion order.
func (s FieldSet) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// All iterates over fields in insertion order.
func (s FieldSet) All() iter.Seq2[int, Field] {
	return func(yield func(int, Field) bool) {
		for i, f := range s.fields {
			if !yield(i, f) {
				return
			}
		}
	}
}
