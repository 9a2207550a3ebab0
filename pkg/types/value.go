// Copyright 2021 Matrix Origin
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package types

import (
	"fmt"
	"math"
	"math/big"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

// Value is a single scalar, one of the kinds of spec.md §3.1. A zero Value
// with Null=true represents SQL NULL for any type.
type Value struct {
	Type  DataType
	Null  bool
	i64   int64   // Bool, Int32, Int64, Date, Timestamp, TimestampTz
	f64   float64 // Float64
	dec   Decimal128
	str   string // String
	blob  []byte
	iv    Interval
	vec   []float64
}

func NullValue(t DataType) Value { return Value{Type: t, Null: true} }

func BoolValue(v bool) Value {
	i := int64(0)
	if v {
		i = 1
	}
	return Value{Type: NewType(KindBool, true), i64: i}
}

func Int32Value(v int32) Value { return Value{Type: NewType(KindInt32, true), i64: int64(v)} }
func Int64Value(v int64) Value { return Value{Type: NewType(KindInt64, true), i64: v} }
func Float64Value(v float64) Value { return Value{Type: NewType(KindFloat64, true), f64: v} }
func StringValue(v string) Value   { return Value{Type: NewType(KindString, true), str: v} }
func BlobValue(v []byte) Value     { return Value{Type: NewType(KindBlob, true), blob: v} }
func DecimalValue(d Decimal128, precision int32) Value {
	return Value{Type: NewDecimalType(precision, d.Scale, true), dec: d}
}
func DateValue(d Date) Value { return Value{Type: NewType(KindDate, true), i64: int64(d)} }
func TimestampValue(ts Timestamp) Value {
	return Value{Type: NewType(KindTimestamp, true), i64: int64(ts)}
}
func TimestampTzValue(ts TimestampTz) Value {
	return Value{Type: NewType(KindTimestampTz, true), i64: int64(ts.Timestamp)}
}
func IntervalValue(iv Interval) Value { return Value{Type: NewType(KindInterval, true), iv: iv} }
func VectorValue(v []float64) Value {
	return Value{Type: NewVectorType(len(v), true), vec: v}
}

func (v Value) Bool() bool         { return v.i64 != 0 }
func (v Value) Int32() int32       { return int32(v.i64) }
func (v Value) Int64() int64       { return v.i64 }
func (v Value) Float64() float64   { return v.f64 }
func (v Value) Decimal() Decimal128 { return v.dec }
func (v Value) String_() string    { return v.str }
func (v Value) Blob() []byte       { return v.blob }
func (v Value) Date() Date         { return Date(v.i64) }
func (v Value) Timestamp() Timestamp { return Timestamp(v.i64) }
func (v Value) Interval() Interval { return v.iv }
func (v Value) Vector() []float64  { return v.vec }

func (v Value) String() string {
	if v.Null {
		return "NULL"
	}
	switch v.Type.Kind {
	case KindBool:
		return fmt.Sprintf("%v", v.Bool())
	case KindInt32, KindInt64, KindDate, KindTimestamp, KindTimestampTz:
		return fmt.Sprintf("%d", v.i64)
	case KindFloat64:
		return fmt.Sprintf("%v", v.f64)
	case KindDecimal:
		return v.dec.String()
	case KindString:
		return v.str
	case KindBlob:
		return fmt.Sprintf("%x", v.blob)
	case KindInterval:
		return v.iv.String()
	case KindVector:
		return fmt.Sprintf("%v", v.vec)
	default:
		return "?"
	}
}

// Compare orders values per spec.md §3.1: Null sorts less than any
// non-null; among non-null values of the same kind, natural ordering.
func Compare(a, b Value) int {
	if a.Null && b.Null {
		return 0
	}
	if a.Null {
		return -1
	}
	if b.Null {
		return 1
	}
	switch a.Type.Kind {
	case KindDecimal:
		return a.dec.Cmp(b.dec)
	case KindFloat64:
		switch {
		case a.f64 < b.f64:
			return -1
		case a.f64 > b.f64:
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.str < b.str:
			return -1
		case a.str > b.str:
			return 1
		default:
			return 0
		}
	case KindBlob:
		return compareBytes(a.blob, b.blob)
	case KindVector:
		return compareVector(a.vec, b.vec)
	default:
		switch {
		case a.i64 < b.i64:
			return -1
		case a.i64 > b.i64:
			return 1
		default:
			return 0
		}
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// compareVector orders vectors lexicographically by element, same-dimension
// vectors only (column Dim is fixed, so a and b are always the same length
// in practice); good enough for equality/ORDER BY, not a similarity metric.
func compareVector(a, b []float64) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		switch {
		case a[i] < b[i]:
			return -1
		case a[i] > b[i]:
			return 1
		}
	}
	switch {
	case len(a) < len(b):
		return -1
	case len(a) > len(b):
		return 1
	default:
		return 0
	}
}

// Add implements SQL `+`: null propagates, integer overflow is not checked
// (wrapping, matching Go's native int arithmetic), decimal follows
// AddDecimal's max-scale rule.
func Add(a, b Value) (Value, error) {
	if a.Null || b.Null {
		return NullValue(a.Type), nil
	}
	switch a.Type.Kind {
	case KindInt32:
		return Int32Value(a.Int32() + b.Int32()), nil
	case KindInt64:
		return Int64Value(a.Int64() + b.Int64()), nil
	case KindFloat64:
		return Float64Value(a.Float64() + b.Float64()), nil
	case KindDecimal:
		d, err := AddDecimal(a.dec, b.dec)
		if err != nil {
			return Value{}, err
		}
		return DecimalValue(d, a.Type.Precision), nil
	case KindInterval:
		return IntervalValue(a.iv.Add(b.iv)), nil
	default:
		return Value{}, engineerr.NewExecute("unsupported operand type for +: %s", a.Type)
	}
}

func Sub(a, b Value) (Value, error) {
	if a.Null || b.Null {
		return NullValue(a.Type), nil
	}
	switch a.Type.Kind {
	case KindInt32:
		return Int32Value(a.Int32() - b.Int32()), nil
	case KindInt64:
		return Int64Value(a.Int64() - b.Int64()), nil
	case KindFloat64:
		return Float64Value(a.Float64() - b.Float64()), nil
	case KindDecimal:
		d, err := SubDecimal(a.dec, b.dec)
		if err != nil {
			return Value{}, err
		}
		return DecimalValue(d, a.Type.Precision), nil
	default:
		return Value{}, engineerr.NewExecute("unsupported operand type for -: %s", a.Type)
	}
}

func Mul(a, b Value) (Value, error) {
	if a.Null || b.Null {
		return NullValue(a.Type), nil
	}
	switch a.Type.Kind {
	case KindInt32:
		return Int32Value(a.Int32() * b.Int32()), nil
	case KindInt64:
		return Int64Value(a.Int64() * b.Int64()), nil
	case KindFloat64:
		return Float64Value(a.Float64() * b.Float64()), nil
	case KindDecimal:
		d, err := MulDecimal(a.dec, b.dec)
		if err != nil {
			return Value{}, err
		}
		return DecimalValue(d, a.Type.Precision), nil
	default:
		return Value{}, engineerr.NewExecute("unsupported operand type for *: %s", a.Type)
	}
}

// Div implements SQL `/`: integer division truncates, per spec.md §3.1;
// division by zero fails the row with a typed error rather than panicking.
func Div(a, b Value) (Value, error) {
	if a.Null || b.Null {
		return NullValue(a.Type), nil
	}
	switch a.Type.Kind {
	case KindInt32:
		if b.Int32() == 0 {
			return Value{}, engineerr.NewExecute("division by zero")
		}
		return Int32Value(a.Int32() / b.Int32()), nil
	case KindInt64:
		if b.Int64() == 0 {
			return Value{}, engineerr.NewExecute("division by zero")
		}
		return Int64Value(a.Int64() / b.Int64()), nil
	case KindFloat64:
		if b.Float64() == 0 {
			return Value{}, engineerr.NewExecute("division by zero")
		}
		return Float64Value(a.Float64() / b.Float64()), nil
	case KindDecimal:
		d, err := DivDecimal(a.dec, b.dec)
		if err != nil {
			return Value{}, err
		}
		return DecimalValue(d, a.Type.Precision), nil
	default:
		return Value{}, engineerr.NewExecute("unsupported operand type for /: %s", a.Type)
	}
}

// Mod implements SQL `%`: integer modulo by zero fails typed, per spec.md §3.1.
func Mod(a, b Value) (Value, error) {
	if a.Null || b.Null {
		return NullValue(a.Type), nil
	}
	switch a.Type.Kind {
	case KindInt32:
		if b.Int32() == 0 {
			return Value{}, engineerr.NewExecute("division by zero")
		}
		return Int32Value(a.Int32() % b.Int32()), nil
	case KindInt64:
		if b.Int64() == 0 {
			return Value{}, engineerr.NewExecute("division by zero")
		}
		return Int64Value(a.Int64() % b.Int64()), nil
	case KindFloat64:
		if b.Float64() == 0 {
			return Value{}, engineerr.NewExecute("division by zero")
		}
		return Float64Value(math.Mod(a.Float64(), b.Float64())), nil
	default:
		return Value{}, engineerr.NewExecute("unsupported operand type for %%: %s", a.Type)
	}
}

func Neg(a Value) (Value, error) {
	if a.Null {
		return NullValue(a.Type), nil
	}
	switch a.Type.Kind {
	case KindInt32:
		return Int32Value(-a.Int32()), nil
	case KindInt64:
		return Int64Value(-a.Int64()), nil
	case KindFloat64:
		return Float64Value(-a.Float64()), nil
	case KindDecimal:
		d := Decimal128{Unscaled: new(big.Int).Neg(a.dec.Unscaled), Scale: a.dec.Scale}
		return DecimalValue(d, a.Type.Precision), nil
	default:
		return Value{}, engineerr.NewExecute("unsupported operand type for unary -: %s", a.Type)
	}
}
