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

// Package types is the leaf of the engine's dependency graph: scalar
// values, their types, and the arithmetic/cast semantics spec.md §3.1
// requires, with no dependency on containers, storage, or the planner.
package types

import "fmt"

// Kind names a scalar value's runtime type.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindInt32
	KindInt64
	KindFloat64
	KindDecimal
	KindString
	KindBlob
	KindDate
	KindTimestamp
	KindTimestampTz
	KindInterval
	KindVector
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindInt32:
		return "int32"
	case KindInt64:
		return "int64"
	case KindFloat64:
		return "float64"
	case KindDecimal:
		return "decimal"
	case KindString:
		return "string"
	case KindBlob:
		return "blob"
	case KindDate:
		return "date"
	case KindTimestamp:
		return "timestamp"
	case KindTimestampTz:
		return "timestamptz"
	case KindInterval:
		return "interval"
	case KindVector:
		return "vector"
	default:
		return "unknown"
	}
}

// DataType is a (kind, nullable) pair, per spec.md §3.1. Decimal additionally
// carries precision/scale; Vector carries a fixed dimension.
type DataType struct {
	Kind      Kind
	Nullable  bool
	Precision int32 // Decimal only
	Scale     int32 // Decimal only
	Dim       int   // Vector only
}

func NewType(k Kind, nullable bool) DataType { return DataType{Kind: k, Nullable: nullable} }

func NewDecimalType(precision, scale int32, nullable bool) DataType {
	return DataType{Kind: KindDecimal, Nullable: nullable, Precision: precision, Scale: scale}
}

func NewVectorType(dim int, nullable bool) DataType {
	return DataType{Kind: KindVector, Nullable: nullable, Dim: dim}
}

func (t DataType) String() string {
	n := ""
	if t.Nullable {
		n = " null"
	}
	switch t.Kind {
	case KindDecimal:
		return fmt.Sprintf("decimal(%d,%d)%s", t.Precision, t.Scale, n)
	case KindVector:
		return fmt.Sprintf("vector(%d)%s", t.Dim, n)
	default:
		return t.Kind.String() + n
	}
}

// FixedWidth returns the on-disk fixed width in bytes for primitive kinds
// that use the plain/RLE block encodings of spec.md §3.3, and ok=false for
// variable-width kinds (string/blob) which use the offset+bytes encoding.
// Vector is fixed-width per column (Dim float64s laid out contiguously),
// even though its width varies from one vector column to the next.
func (t DataType) FixedWidth() (int, bool) {
	switch t.Kind {
	case KindBool:
		return 1, true
	case KindInt32, KindDate:
		return 4, true
	case KindInt64, KindTimestamp, KindTimestampTz:
		return 8, true
	case KindFloat64:
		return 8, true
	case KindDecimal:
		return 16, true
	case KindInterval:
		return 8, true // months(int32) + days(int32)
	case KindVector:
		return t.Dim * 8, true
	default:
		return 0, false
	}
}
