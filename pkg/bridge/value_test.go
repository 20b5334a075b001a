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
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldSet_SixKindsKeepOrder(t *testing.T) {
	type point struct{ X, Y int }

	fs := FieldSet{}.
		Append("ok", Bool(true)).
		Append("delta", I64(-42)).
		Append("bytes", U64(math.MaxUint64)).
		Append("ratio", F64(0.25)).
		Append("user", Str("alice")).
		Append("where", Debug(point{X: 1, Y: 2}))

	require.Equal(t, 6, fs.Len())
	assert.Equal(t, []string{"ok", "delta", "bytes", "ratio", "user", "where"}, fs.Names())

	wantKinds := []Kind{KindBool, KindI64, KindU64, KindF64, KindStr, KindDebug}
	for i, f := range fs.All() {
		v, ok := f.Value()
		require.True(t, ok, "field %d", i)
		assert.Equal(t, wantKinds[i], v.Kind(), "field %d", i)
	}

	v, _ := fs.At(0).Value()
	assert.True(t, v.AsBool())
	v, _ = fs.At(1).Value()
	assert.Equal(t, int64(-42), v.AsI64())
	v, _ = fs.At(2).Value()
	assert.Equal(t, uint64(math.MaxUint64), v.AsU64())
	v, _ = fs.At(3).Value()
	assert.Equal(t, 0.25, v.AsF64())
	v, _ = fs.At(4).Value()
	assert.Equal(t, "alice", v.AsString())
	v, _ = fs.At(5).Value()
	assert.Equal(t, "{X:1 Y:2}", v.String())
}

func TestValue_StringAndDebugAreDistinct(t *testing.T) {
	s := Str("x")
	d := DebugStr("x")

	assert.Equal(t, s.String(), d.String())
	assert.NotEqual(t, s.Kind(), d.Kind())
	assert.False(t, s.Equal(d))
}

func TestValueOf(t *testing.T) {
	tests := []struct {
		name string
		in   any
		kind Kind
		text string
	}{
		{"bool", false, KindBool, "false"},
		{"int", 7, KindI64, "7"},
		{"int32", int32(-3), KindI64, "-3"},
		{"uint8", uint8(200), KindU64, "200"},
		{"float32", float32(1.5), KindF64, "1.5"},
		{"string", "hi", KindStr, "hi"},
		{"error", errors.New("boom"), KindDebug, "boom"},
		{"slice", []int{1, 2}, KindDebug, "[1 2]"},
		{"value passthrough", U64(9), KindU64, "9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := ValueOf(tt.in)
			assert.Equal(t, tt.kind, v.Kind())
			assert.Equal(t, tt.text, v.String())
		})
	}
}

func TestValue_ZeroIsInvalid(t *testing.T) {
	var v Value
	assert.False(t, v.IsValid())
	assert.Nil(t, v.Any())
	assert.Equal(t, "", v.String())
	assert.Equal(t, "invalid", v.Kind().String())
}

func TestFieldSet_Placeholders(t *testing.T) {
	fs := NewFieldSet(F("a", I64(1))).Declare("pending")

	require.Equal(t, 2, fs.Len())
	assert.False(t, fs.At(1).IsSet())

	_, ok := fs.Get("pending")
	assert.False(t, ok, "placeholder has no value")
}

func TestFieldSet_GetLastWriteWins(t *testing.T) {
	fs := NewFieldSet(F("k", I64(1)), F("k", I64(2)), Placeholder("k"))

	v, ok := fs.Get("k")
	require.True(t, ok)
	assert.Equal(t, int64(2), v.AsI64())
}

func TestFieldSet_AppendDoesNotAlias(t *testing.T) {
	base := FieldSet{}.Append("a", I64(1)).Append("b", I64(2))
	left := base.Append("c", Str("left"))
	right := base.Append("c", Str("right"))

	l, _ := left.Get("c")
	r, _ := right.Get("c")
	assert.Equal(t, "left", l.AsString())
	assert.Equal(t, "right", r.AsString())
	assert.Equal(t, 2, base.Len())
}

func TestLevel_Order(t *testing.T) {
	for i := 1; i < len(Levels); i++ {
		assert.Less(t, uint8(Levels[i-1]), uint8(Levels[i]))
	}
	assert.True(t, LevelError.Enabled(LevelWarn))
	assert.True(t, LevelWarn.Enabled(LevelWarn))
	assert.False(t, LevelDebug.Enabled(LevelInfo))
}

func TestLevel_ParseAndText(t *testing.T) {
	for _, lvl := range Levels {
		text, err := lvl.MarshalText()
		require.NoError(t, err)

		var parsed Level
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, lvl, parsed)
	}

	lvl, err := ParseLevel("Warning")
	require.NoError(t, err)
	assert.Equal(t, LevelWarn, lvl)

	_, err = ParseLevel("loud")
	assert.Error(t, err)

	_, err = Level(9).MarshalText()
	assert.Error(t, err)
	assert.Equal(t, "LEVEL(9)", Level(9).String())
}

func TestMetadata_CheckFields(t *testing.T) {
	meta := NewMetadata(LevelInfo, "app", "load", WithFieldNames("id", "size"))

	assert.True(t, meta.CheckFields(NewFieldSet(F("id", I64(1)))))
	assert.True(t, meta.CheckFields(NewFieldSet(F("id", I64(1)), Placeholder("size"))))
	assert.False(t, meta.CheckFields(NewFieldSet(F("other", I64(1)))))

	open := NewMetadata(LevelInfo, "app", "load")
	assert.True(t, open.CheckFields(NewFieldSet(F("anything", Bool(true)))))
}

func TestNewMetadata_Options(t *testing.T) {
	meta := NewMetadata(LevelDebug, "runtime::io", "read",
		WithLocation("io.go", 42),
		WithModulePath("runtime/io"),
	)

	assert.Equal(t, "read", meta.Name)
	assert.Equal(t, "runtime::io", meta.Target)
	assert.Equal(t, LevelDebug, meta.Level)
	assert.Equal(t, "io.go", meta.File)
	assert.Equal(t, uint32(42), meta.Line)
	assert.True(t, meta.HasLine)
	assert.Equal(t, "runtime/io", meta.ModulePath)
}

func TestNewMetadata_LineIsOptional(t *testing.T) {
	unknown := NewMetadata(LevelInfo, "app", "x")
	assert.False(t, unknown.HasLine)

	zero := NewMetadata(LevelInfo, "app", "x", WithLocation("gen.go", 0))
	assert.True(t, zero.HasLine)
	assert.Zero(t, zero.Line)
}
