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

// Package containers is the columnar array/batch layer: one typed column of
// length N with an optional validity bitmap, per spec.md §3.2. Grounded on
// the teacher's containers.Vector/Batch idiom (seen pervasively in
// txn/txnimpl/store.go, tables/base.go) generalized to a standalone,
// dependency-free columnar layer since no Arrow-like library exists in the
// example corpus.
package containers

import (
	"github.com/egraph-db/secondary/pkg/common/bitmap"
	"github.com/egraph-db/secondary/pkg/types"
)

// Array is one typed column of length N.
type Array interface {
	Type() types.DataType
	Len() int
	Validity() *bitmap.Bitmap // nil means "all valid"
	IsValid(i int) bool
	Get(i int) types.Value
	// Slice returns the sub-array [lo, hi), sharing no backing storage.
	Slice(lo, hi int) Array
	// AppendValue copies a single materialized value onto the end of this
	// array; v.Null appends a null regardless of v's carried type.
	AppendValue(v types.Value)
}

// PrimitiveArray is a fixed-width typed array, generic over the Go-native
// storage representation (int32, int64, float64, byte for bool).
type PrimitiveArray[T comparable] struct {
	typ      types.DataType
	data     []T
	validity *bitmap.Bitmap
	toValue  func(T) types.Value
	fromVal  func(types.Value) T
}

func NewPrimitiveArray[T comparable](typ types.DataType, data []T, validity *bitmap.Bitmap,
	toValue func(T) types.Value, fromVal func(types.Value) T) *PrimitiveArray[T] {
	return &PrimitiveArray[T]{typ: typ, data: data, validity: validity, toValue: toValue, fromVal: fromVal}
}

func (a *PrimitiveArray[T]) Type() types.DataType      { return a.typ }
func (a *PrimitiveArray[T]) Len() int                  { return len(a.data) }
func (a *PrimitiveArray[T]) Validity() *bitmap.Bitmap  { return a.validity }
func (a *PrimitiveArray[T]) Data() []T                 { return a.data }

func (a *PrimitiveArray[T]) IsValid(i int) bool {
	return a.validity == nil || a.validity.Contains(int64(i))
}

func (a *PrimitiveArray[T]) Get(i int) types.Value {
	if !a.IsValid(i) {
		return types.NullValue(a.typ)
	}
	return a.toValue(a.data[i])
}

func (a *PrimitiveArray[T]) Slice(lo, hi int) Array {
	var v *bitmap.Bitmap
	if a.validity != nil {
		v = bitmap.New(int64(hi - lo))
		for i := lo; i < hi; i++ {
			if a.validity.Contains(int64(i)) {
				v.Add(int64(i - lo))
			}
		}
	}
	out := make([]T, hi-lo)
	copy(out, a.data[lo:hi])
	return &PrimitiveArray[T]{typ: a.typ, data: out, validity: v, toValue: a.toValue, fromVal: a.fromVal}
}

func (a *PrimitiveArray[T]) AppendValue(v types.Value) {
	valid := !v.Null
	if !valid {
		var zero T
		a.data = append(a.data, zero)
	} else {
		a.data = append(a.data, a.fromVal(v))
	}
	a.appendValidity(valid)
}

func (a *PrimitiveArray[T]) appendValidity(valid bool) {
	n := int64(len(a.data))
	if a.validity == nil {
		if valid {
			return
		}
		a.validity = bitmap.NewAllValid(n)
		a.validity.Remove(n - 1)
		return
	}
	grown := bitmap.New(n)
	for i := int64(0); i < n-1; i++ {
		if a.validity.Contains(i) {
			grown.Add(i)
		}
	}
	if valid {
		grown.Add(n - 1)
	}
	a.validity = grown
}

// VarWidthArray backs String/Blob columns: offsets + contiguous bytes, per
// spec.md §3.2.
type VarWidthArray struct {
	typ      types.DataType
	offsets  []int32 // length N+1
	bytes    []byte
	validity *bitmap.Bitmap
	isString bool
}

func NewVarWidthArray(typ types.DataType, offsets []int32, data []byte, validity *bitmap.Bitmap, isString bool) *VarWidthArray {
	return &VarWidthArray{typ: typ, offsets: offsets, bytes: data, validity: validity, isString: isString}
}

func (a *VarWidthArray) Type() types.DataType     { return a.typ }
func (a *VarWidthArray) Len() int                 { return len(a.offsets) - 1 }
func (a *VarWidthArray) Validity() *bitmap.Bitmap { return a.validity }

func (a *VarWidthArray) IsValid(i int) bool {
	return a.validity == nil || a.validity.Contains(int64(i))
}

func (a *VarWidthArray) RawAt(i int) []byte {
	return a.bytes[a.offsets[i]:a.offsets[i+1]]
}

func (a *VarWidthArray) Get(i int) types.Value {
	if !a.IsValid(i) {
		return types.NullValue(a.typ)
	}
	raw := a.RawAt(i)
	if a.isString {
		return types.StringValue(string(raw))
	}
	b := make([]byte, len(raw))
	copy(b, raw)
	return types.BlobValue(b)
}

func (a *VarWidthArray) Slice(lo, hi int) Array {
	startByte := a.offsets[lo]
	offsets := make([]int32, hi-lo+1)
	for i := lo; i <= hi; i++ {
		offsets[i-lo] = a.offsets[i] - startByte
	}
	data := make([]byte, a.offsets[hi]-startByte)
	copy(data, a.bytes[startByte:a.offsets[hi]])
	var v *bitmap.Bitmap
	if a.validity != nil {
		v = bitmap.New(int64(hi - lo))
		for i := lo; i < hi; i++ {
			if a.validity.Contains(int64(i)) {
				v.Add(int64(i - lo))
			}
		}
	}
	return &VarWidthArray{typ: a.typ, offsets: offsets, bytes: data, validity: v, isString: a.isString}
}

func (a *VarWidthArray) AppendValue(v types.Value) {
	valid := !v.Null
	var raw []byte
	if valid {
		if a.isString {
			raw = []byte(v.String_())
		} else {
			raw = v.Blob()
		}
	}
	a.bytes = append(a.bytes, raw...)
	a.offsets = append(a.offsets, int32(len(a.bytes)))
	n := int64(len(a.offsets) - 1)
	if a.validity == nil {
		if !valid {
			a.validity = bitmap.NewAllValid(n)
			a.validity.Remove(n - 1)
		}
		return
	}
	grown := bitmap.New(n)
	for j := int64(0); j < n-1; j++ {
		if a.validity.Contains(j) {
			grown.Add(j)
		}
	}
	if valid {
		grown.Add(n - 1)
	}
	a.validity = grown
}

// NewEmptyArray allocates a zero-length, growable array matching typ, used
// as an accumulator by operators (hash/sort/top-n) and block decoders.
func NewEmptyArray(typ types.DataType) Array {
	switch typ.Kind {
	case types.KindBool:
		return NewPrimitiveArray[byte](typ, nil, nil,
			func(b byte) types.Value { return types.BoolValue(b != 0) },
			func(v types.Value) byte { if v.Bool() { return 1 }; return 0 })
	case types.KindInt32, types.KindDate:
		return NewPrimitiveArray[int32](typ, nil, nil,
			func(i int32) types.Value {
				if typ.Kind == types.KindDate {
					return types.DateValue(types.Date(i))
				}
				return types.Int32Value(i)
			},
			func(v types.Value) int32 { return v.Int32() })
	case types.KindInt64, types.KindTimestamp, types.KindTimestampTz:
		return NewPrimitiveArray[int64](typ, nil, nil,
			func(i int64) types.Value {
				switch typ.Kind {
				case types.KindTimestamp:
					return types.TimestampValue(types.Timestamp(i))
				case types.KindTimestampTz:
					return types.TimestampTzValue(types.TimestampTz{Timestamp: types.Timestamp(i)})
				default:
					return types.Int64Value(i)
				}
			},
			func(v types.Value) int64 { return v.Int64() })
	case types.KindFloat64:
		return NewPrimitiveArray[float64](typ, nil, nil,
			func(f float64) types.Value { return types.Float64Value(f) },
			func(v types.Value) float64 { return v.Float64() })
	case types.KindString:
		return NewVarWidthArray(typ, []int32{0}, nil, nil, true)
	case types.KindBlob:
		return NewVarWidthArray(typ, []int32{0}, nil, nil, false)
	default:
		// Decimal/Interval/Vector have no natural Go-primitive storage
		// representation at the array layer; they are boxed directly as
		// types.Value. The block codec (pkg/secondary/block) still encodes
		// them in their proper fixed-width on-disk form.
		return &BoxedArray{typ: typ}
	}
}

// BoxedArray stores arbitrary Value directly, used for the kinds that do
// not fit the PrimitiveArray/VarWidthArray split (Decimal, Interval, Vector).
type BoxedArray struct {
	typ    types.DataType
	values []types.Value
}

func (a *BoxedArray) Type() types.DataType { return a.typ }
func (a *BoxedArray) Len() int             { return len(a.values) }

func (a *BoxedArray) Validity() *bitmap.Bitmap {
	for _, v := range a.values {
		if v.Null {
			bm := bitmap.New(int64(len(a.values)))
			for i, vv := range a.values {
				if !vv.Null {
					bm.Add(int64(i))
				}
			}
			return bm
		}
	}
	return nil
}

func (a *BoxedArray) IsValid(i int) bool    { return !a.values[i].Null }
func (a *BoxedArray) Get(i int) types.Value { return a.values[i] }

func (a *BoxedArray) Slice(lo, hi int) Array {
	out := make([]types.Value, hi-lo)
	copy(out, a.values[lo:hi])
	return &BoxedArray{typ: a.typ, values: out}
}

func (a *BoxedArray) AppendValue(v types.Value) {
	a.values = append(a.values, v)
}
