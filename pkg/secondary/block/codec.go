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

package block

import (
	"encoding/binary"
	"math"
	"math/big"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/types"
)

var decimalModulus = new(big.Int).Lsh(big.NewInt(1), 128)
var decimalHalf = new(big.Int).Lsh(big.NewInt(1), 127)

func scalarWidth(typ types.DataType) int {
	w, ok := typ.FixedWidth()
	if !ok {
		panic("scalarWidth: variable-width type")
	}
	return w
}

func putScalar(buf []byte, typ types.DataType, v types.Value) {
	switch typ.Kind {
	case types.KindBool:
		if v.Bool() {
			buf[0] = 1
		} else {
			buf[0] = 0
		}
	case types.KindInt32, types.KindDate:
		binary.LittleEndian.PutUint32(buf, uint32(v.Int64()))
	case types.KindInt64, types.KindTimestamp, types.KindTimestampTz:
		binary.LittleEndian.PutUint64(buf, uint64(v.Int64()))
	case types.KindFloat64:
		binary.LittleEndian.PutUint64(buf, math.Float64bits(v.Float64()))
	case types.KindDecimal:
		n := new(big.Int).Set(v.Decimal().Unscaled)
		if n.Sign() < 0 {
			n.Add(n, decimalModulus)
		}
		be := make([]byte, 16)
		n.FillBytes(be)
		for i := 0; i < 16; i++ {
			buf[i] = be[15-i]
		}
	case types.KindInterval:
		iv := v.Interval()
		binary.LittleEndian.PutUint32(buf[0:4], uint32(iv.Months))
		binary.LittleEndian.PutUint32(buf[4:8], uint32(iv.Days))
	case types.KindVector:
		for i, f := range v.Vector() {
			binary.LittleEndian.PutUint64(buf[i*8:i*8+8], math.Float64bits(f))
		}
	default:
		panic("putScalar: unsupported fixed-width kind")
	}
}

func getScalar(buf []byte, typ types.DataType) types.Value {
	switch typ.Kind {
	case types.KindBool:
		return types.BoolValue(buf[0] != 0)
	case types.KindInt32:
		return types.Int32Value(int32(binary.LittleEndian.Uint32(buf)))
	case types.KindDate:
		return types.DateValue(types.Date(int32(binary.LittleEndian.Uint32(buf))))
	case types.KindInt64:
		return types.Int64Value(int64(binary.LittleEndian.Uint64(buf)))
	case types.KindTimestamp:
		return types.TimestampValue(types.Timestamp(int64(binary.LittleEndian.Uint64(buf))))
	case types.KindTimestampTz:
		return types.TimestampTzValue(types.TimestampTz{Timestamp: types.Timestamp(int64(binary.LittleEndian.Uint64(buf)))})
	case types.KindFloat64:
		return types.Float64Value(math.Float64frombits(binary.LittleEndian.Uint64(buf)))
	case types.KindInterval:
		months := int32(binary.LittleEndian.Uint32(buf[0:4]))
		days := int32(binary.LittleEndian.Uint32(buf[4:8]))
		return types.IntervalValue(types.Interval{Months: months, Days: days})
	case types.KindVector:
		dim := typ.Dim
		vec := make([]float64, dim)
		for i := 0; i < dim; i++ {
			vec[i] = math.Float64frombits(binary.LittleEndian.Uint64(buf[i*8 : i*8+8]))
		}
		return types.VectorValue(vec)
	case types.KindDecimal:
		be := make([]byte, 16)
		for i := 0; i < 16; i++ {
			be[i] = buf[15-i]
		}
		n := new(big.Int).SetBytes(be)
		if n.Cmp(decimalHalf) >= 0 {
			n.Sub(n, decimalModulus)
		}
		return types.DecimalValue(types.Decimal128{Unscaled: n, Scale: typ.Scale}, typ.Precision)
	default:
		panic("getScalar: unsupported fixed-width kind")
	}
}

// EncodePlain writes the "Plain primitive" form: contiguous little-endian
// values, no nulls (spec.md §3.3). Callers must guarantee every value is
// non-null.
func EncodePlain(typ types.DataType, values []types.Value) []byte {
	width := scalarWidth(typ)
	out := make([]byte, width*len(values))
	for i, v := range values {
		putScalar(out[i*width:(i+1)*width], typ, v)
	}
	return out
}

func DecodePlain(typ types.DataType, payload []byte, n int) []types.Value {
	width := scalarWidth(typ)
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		out[i] = getScalar(payload[i*width:(i+1)*width], typ)
	}
	return out
}

// EncodePlainNullable writes fixed-width values followed by a trailing
// validity bitmap, one byte per element (spec.md §3.3).
func EncodePlainNullable(typ types.DataType, values []types.Value) []byte {
	width := scalarWidth(typ)
	out := make([]byte, width*len(values)+len(values))
	for i, v := range values {
		if !v.Null {
			putScalar(out[i*width:(i+1)*width], typ, v)
		}
	}
	validOff := width * len(values)
	for i, v := range values {
		if !v.Null {
			out[validOff+i] = 1
		}
	}
	return out
}

func DecodePlainNullable(typ types.DataType, payload []byte, n int) []types.Value {
	width := scalarWidth(typ)
	validOff := width * n
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		if payload[validOff+i] == 0 {
			out[i] = types.NullValue(typ)
			continue
		}
		out[i] = getScalar(payload[i*width:(i+1)*width], typ)
	}
	return out
}

// run is one RLE run: a value repeated `length` times.
type run struct {
	value  types.Value
	length uint16
}

func buildRuns(values []types.Value) []run {
	var runs []run
	i := 0
	for i < len(values) {
		j := i + 1
		for j < len(values) && j-i < MaxRunLength && sameValue(values[i], values[j]) {
			j++
		}
		runs = append(runs, run{value: values[i], length: uint16(j - i)})
		i = j
	}
	return runs
}

func sameValue(a, b types.Value) bool {
	if a.Null != b.Null {
		return false
	}
	if a.Null {
		return true
	}
	return types.Compare(a, b) == 0
}

// EncodeRLE writes `u32 runs`, then `runs x u16` run lengths, then a nested
// plain/plain-nullable block of the distinct run values, per spec.md §3.3.
func EncodeRLE(typ types.DataType, values []types.Value, nullable bool) []byte {
	runs := buildRuns(values)
	header := make([]byte, 4+2*len(runs))
	binary.LittleEndian.PutUint32(header[0:4], uint32(len(runs)))
	distinct := make([]types.Value, len(runs))
	for i, r := range runs {
		binary.LittleEndian.PutUint16(header[4+2*i:6+2*i], r.length)
		distinct[i] = r.value
	}
	var nested []byte
	if nullable {
		nested = EncodePlainNullable(typ, distinct)
	} else {
		nested = EncodePlain(typ, distinct)
	}
	return append(header, nested...)
}

func DecodeRLE(typ types.DataType, payload []byte, nullable bool) ([]types.Value, error) {
	if len(payload) < 4 {
		return nil, engineerr.NewStorage("RLE block truncated")
	}
	numRuns := int(binary.LittleEndian.Uint32(payload[0:4]))
	lengths := make([]uint16, numRuns)
	off := 4
	for i := 0; i < numRuns; i++ {
		lengths[i] = binary.LittleEndian.Uint16(payload[off : off+2])
		off += 2
	}
	var distinct []types.Value
	if nullable {
		distinct = DecodePlainNullable(typ, payload[off:], numRuns)
	} else {
		distinct = DecodePlain(typ, payload[off:], numRuns)
	}
	total := 0
	for _, l := range lengths {
		total += int(l)
	}
	out := make([]types.Value, 0, total)
	for i, l := range lengths {
		for k := uint16(0); k < l; k++ {
			out = append(out, distinct[i])
		}
	}
	return out, nil
}

// EncodeVarWidth writes offsets + contiguous bytes, with or without
// validity, per spec.md §3.3 ("Char/varchar"). nullable controls whether a
// trailing validity section is written at all; it must match the column's
// declared nullability so a decoder can recover the layout without
// re-scanning the values.
func EncodeVarWidth(values []types.Value, isString, nullable bool) []byte {
	offsets := make([]byte, 4*(len(values)+1))
	var data []byte
	var validity []byte
	if nullable {
		validity = make([]byte, len(values))
	}
	off := int32(0)
	binary.LittleEndian.PutUint32(offsets[0:4], uint32(off))
	for i, v := range values {
		if !v.Null {
			var raw []byte
			if isString {
				raw = []byte(v.String_())
			} else {
				raw = v.Blob()
			}
			data = append(data, raw...)
			off += int32(len(raw))
			if validity != nil {
				validity[i] = 1
			}
		} else if validity != nil {
			validity[i] = 0
		}
		binary.LittleEndian.PutUint32(offsets[4*(i+1):4*(i+2)], uint32(off))
	}
	out := append(offsets, data...)
	if validity != nil {
		out = append(out, validity...)
	}
	return out
}

func DecodeVarWidth(payload []byte, n int, hasValidity, isString bool) []types.Value {
	offsets := make([]int32, n+1)
	for i := 0; i <= n; i++ {
		offsets[i] = int32(binary.LittleEndian.Uint32(payload[4*i : 4*i+4]))
	}
	dataStart := 4 * (n + 1)
	dataEnd := dataStart + int(offsets[n])
	data := payload[dataStart:dataEnd]
	var validity []byte
	if hasValidity {
		validity = payload[dataEnd : dataEnd+n]
	}
	out := make([]types.Value, n)
	for i := 0; i < n; i++ {
		if hasValidity && validity[i] == 0 {
			if isString {
				out[i] = types.NullValue(types.NewType(types.KindString, true))
			} else {
				out[i] = types.NullValue(types.NewType(types.KindBlob, true))
			}
			continue
		}
		raw := data[offsets[i]:offsets[i+1]]
		if isString {
			out[i] = types.StringValue(string(raw))
		} else {
			b := make([]byte, len(raw))
			copy(b, raw)
			out[i] = types.BlobValue(b)
		}
	}
	return out
}
