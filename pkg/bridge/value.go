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
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which primitive a Value holds.
type Kind uint8

const (
	// KindBool holds a boolean.
	KindBool Kind = iota + 1
	// KindI64 holds a signed 64-bit integer.
	KindI64
	// KindU64 holds an unsigned 64-bit integer.
	KindU64
	// KindF64 holds a 64-bit float.
	KindF64
	// KindStr holds a UTF-8 string.
	KindStr
	// KindDebug holds a pre-rendered textual form of a value that has no typed slot.
	KindDebug
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindI64:
		return "i64"
	case KindU64:
		return "u64"
	case KindF64:
		return "f64"
	case KindStr:
		return "str"
	case KindDebug:
		return "debug"
	default:
		return "invalid"
	}
}

// Value is a single field value. It is a plain value type: the zero Value is
// invalid and only appears as the value of a placeholder field.
type Value struct {
	kind Kind
	num  uint64
	str  string
}

// Bool returns a boolean value.
func Bool(v bool) Value {
	var n uint64
	if v {
		n = 1
	}
	return Value{kind: KindBool, num: n}
}

// I64 returns a signed integer value.
func I64(v int64) Value {
	return Value{kind: KindI64, num: uint64(v)}
}

// U64 returns an unsigned integer value.
func U64(v uint64) Value {
	return Value{kind: KindU64, num: v}
}

// F64 returns a float value.
func F64(v float64) Value {
	return Value{kind: KindF64, num: math.Float64bits(v)}
}

// Str returns a string value.
func Str(v string) Value {
	return Value{kind: KindStr, str: v}
}

// DebugStr returns a debug value from text that is already rendered.
func DebugStr(v string) Value {
	return Value{kind: KindDebug, str: v}
}

// Debug renders v with %+v and returns it as a debug value.
func Debug(v any) Value {
	return DebugStr(fmt.Sprintf("%+v", v))
}

// ValueOf maps a Go value onto the closest primitive kind.
// Anything without a typed slot becomes a debug value, so ValueOf never fails.
func ValueOf(v any) Value {
	switch x := v.(type) {
	case Value:
		return x
	case bool:
		return Bool(x)
	case int:
		return I64(int64(x))
	case int8:
		return I64(int64(x))
	case int16:
		return I64(int64(x))
	case int32:
		return I64(int64(x))
	case int64:
		return I64(x)
	case uint:
		return U64(uint64(x))
	case uint8:
		return U64(uint64(x))
	case uint16:
		return U64(uint64(x))
	case uint32:
		return U64(uint64(x))
	case uint64:
		return U64(x)
	case float32:
		return F64(float64(x))
	case float64:
		return F64(x)
	case string:
		return Str(x)
	case fmt.Stringer:
		return DebugStr(x.String())
	case error:
		return DebugStr(x.Error())
	default:
		return Debug(v)
	}
}

// Kind returns the value's kind, or 0 for the zero Value.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v was built by a constructor.
func (v Value) IsValid() bool { return v.kind != 0 }

// AsBool returns the boolean payload.
func (v Value) AsBool() bool { return v.kind == KindBool && v.num != 0 }

// AsI64 returns the signed payload. Unsigned values are converted.
func (v Value) AsI64() int64 {
	switch v.kind {
	case KindI64, KindU64:
		return int64(v.num)
	}
	return 0
}

// AsU64 returns the unsigned payload. Signed values are converted.
func (v Value) AsU64() uint64 {
	switch v.kind {
	case KindI64, KindU64:
		return v.num
	}
	return 0
}

// AsF64 returns the float payload.
func (v Value) AsF64() float64 {
	if v.kind != KindF64 {
		return 0
	}
	return math.Float64frombits(v.num)
}

// AsString returns the payload of a string or debug value.
func (v Value) AsString() string {
	switch v.kind {
	case KindStr, KindDebug:
		return v.str
	}
	return ""
}

// String renders any value as text.
func (v Value) String() string {
	switch v.kind {
	case KindBool:
		return strconv.FormatBool(v.AsBool())
	case KindI64:
		return strconv.FormatInt(int64(v.num), 10)
	case KindU64:
		return strconv.FormatUint(v.num, 10)
	case KindF64:
		return strconv.FormatFloat(v.AsF64(), 'g', -1, 64)
	case KindStr, KindDebug:
		return v.str
	default:
		return ""
	}
}

// Any returns the payload as a Go value of the matching type.
func (v Value) Any() any {
	switch v.kind {
	case KindBool:
		return v.AsBool()
	case KindI64:
		return int64(v.num)
	case KindU64:
		return v.num
	case KindF64:
		return v.AsF64()
	case KindStr, KindDebug:
		return v.str
	default:
		return nil
	}
}

// Equal reports whether two values have the same kind and payload.
func (v Value) Equal(o Value) bool {
	return v.kind == o.kind && v.num == o.num && v.str == o.str
}
