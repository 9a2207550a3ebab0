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
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/types"
)

func TestPlainRoundTrip(t *testing.T) {
	typ := types.NewType(types.KindInt32, false)
	vals := []types.Value{types.Int32Value(1), types.Int32Value(-7), types.Int32Value(42)}
	payload := EncodePlain(typ, vals)
	out := DecodePlain(typ, payload, len(vals))
	for i := range vals {
		require.Equal(t, vals[i].Int32(), out[i].Int32())
	}
}

func TestPlainNullableRoundTrip(t *testing.T) {
	typ := types.NewType(types.KindInt64, true)
	vals := []types.Value{types.Int64Value(5), types.NullValue(typ), types.Int64Value(-9)}
	payload := EncodePlainNullable(typ, vals)
	out := DecodePlainNullable(typ, payload, len(vals))
	require.True(t, out[1].Null)
	require.Equal(t, int64(5), out[0].Int64())
	require.Equal(t, int64(-9), out[2].Int64())
}

func TestRLERoundTrip(t *testing.T) {
	typ := types.NewType(types.KindInt32, false)
	vals := []types.Value{
		types.Int32Value(1), types.Int32Value(1), types.Int32Value(1),
		types.Int32Value(2),
		types.Int32Value(3), types.Int32Value(3),
	}
	payload := EncodeRLE(typ, vals, false)
	out, err := DecodeRLE(typ, payload, false)
	require.NoError(t, err)
	require.Len(t, out, len(vals))
	for i := range vals {
		require.Equal(t, vals[i].Int32(), out[i].Int32())
	}
}

func TestVarWidthRoundTripWithNulls(t *testing.T) {
	typ := types.NewType(types.KindString, true)
	vals := []types.Value{types.StringValue("hello"), types.NullValue(typ), types.StringValue("")}
	payload := EncodeVarWidth(vals, true, true)
	out := DecodeVarWidth(payload, len(vals), true, true)
	require.Equal(t, "hello", out[0].String_())
	require.True(t, out[1].Null)
	require.Equal(t, "", out[2].String_())
}

func TestVectorPlainNullableRoundTrip(t *testing.T) {
	typ := types.NewVectorType(3, true)
	vals := []types.Value{
		types.VectorValue([]float64{1.5, -2.25, 3}),
		types.NullValue(typ),
		types.VectorValue([]float64{0, 0, 0}),
	}
	payload := EncodePlainNullable(typ, vals)
	out := DecodePlainNullable(typ, payload, len(vals))
	require.Equal(t, []float64{1.5, -2.25, 3}, out[0].Vector())
	require.True(t, out[1].Null)
	require.Equal(t, []float64{0, 0, 0}, out[2].Vector())
}

func TestVectorBuilderFinishDoesNotPanic(t *testing.T) {
	typ := types.NewVectorType(2, true)
	b := NewBuilder(typ, ChecksumNone, 1<<20, false)
	require.Equal(t, TypePlainNullable, b.Kind(), "nullable vector columns use the plain-nullable fixed-width path")
	b.Append(types.VectorValue([]float64{1, 2}))
	b.Append(types.NullValue(typ))
	out := b.Finish()
	_, payload, err := DecodeHeader(out, 1, 1, 1)
	require.NoError(t, err)
	decoded := DecodePlainNullable(typ, payload, 2)
	require.Equal(t, []float64{1, 2}, decoded[0].Vector())
	require.True(t, decoded[1].Null)
}

func TestDecimalScalarRoundTripNegative(t *testing.T) {
	typ := types.NewDecimalType(10, 2, false)
	neg := types.Decimal128{Unscaled: big.NewInt(-12345), Scale: 2}
	v := types.DecimalValue(neg, 10)
	payload := EncodePlain(typ, []types.Value{v})
	out := DecodePlain(typ, payload, 1)
	require.Equal(t, 0, neg.Cmp(out[0].Decimal()))
}

func TestHeaderEncodeDecodeChecksumMismatch(t *testing.T) {
	raw := Encode(TypePlain, ChecksumCRC32C, []byte{1, 2, 3, 4})
	raw[len(raw)-1] ^= 0xFF
	_, _, err := DecodeHeader(raw, 1, 2, 3)
	require.Error(t, err)
}

func TestIndexWriterFooterRoundTrip(t *testing.T) {
	w := NewIndexWriter(ChecksumCRC32C)
	w.Add(Entry{FirstRowID: 0, RowCount: 100, ByteOffset: 0, ByteLength: 400})
	w.Add(Entry{FirstRowID: 100, RowCount: 50, ByteOffset: 400, ByteLength: 200, HasKeys: true,
		FirstKey: []byte{1, 0, 0, 0}, LastKey: []byte{50, 0, 0, 0}})
	raw := w.Finish()
	entries, err := ReadIndex(raw)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.Equal(t, uint64(100), entries[0].RowCount)
	require.True(t, entries[1].HasKeys)
	require.Equal(t, []byte{1, 0, 0, 0}, entries[1].FirstKey)
}

func TestBuilderShouldFinishRespectsTargetSize(t *testing.T) {
	typ := types.NewType(types.KindInt32, false)
	b := NewBuilder(typ, ChecksumNone, 8, false)
	require.False(t, b.ShouldFinish(types.Int32Value(1)))
	b.Append(types.Int32Value(1))
	b.Append(types.Int32Value(2))
	require.True(t, b.ShouldFinish(types.Int32Value(3)))
	out := b.Finish()
	require.Equal(t, 0, b.Len())
	typDecoded, payload, err := DecodeHeader(out, 1, 1, 1)
	require.NoError(t, err)
	require.Equal(t, TypePlain, typDecoded)
	require.Equal(t, []types.Value{types.Int32Value(1), types.Int32Value(2)}, DecodePlain(typ, payload, 2))
}
