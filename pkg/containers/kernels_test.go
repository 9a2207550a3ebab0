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

package containers

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/common/bitmap"
	"github.com/egraph-db/secondary/pkg/types"
)

func int32Array(vals []int32, nulls map[int]bool) Array {
	typ := types.NewType(types.KindInt32, true)
	arr := NewEmptyArray(typ)
	for i, v := range vals {
		if nulls[i] {
			arr.AppendValue(types.NullValue(typ))
		} else {
			arr.AppendValue(types.Int32Value(v))
		}
	}
	return arr
}

func TestBinaryOpValidityIsIntersection(t *testing.T) {
	a := int32Array([]int32{1, 2, 3, 4}, map[int]bool{1: true})
	b := int32Array([]int32{10, 20, 30, 40}, map[int]bool{2: true})

	out, sidecar := BinaryOp(a, b, types.NewType(types.KindInt32, true), func(x, y types.Value) (types.Value, error) {
		return types.Add(x, y)
	})
	require.Nil(t, sidecar)
	require.Equal(t, 4, out.Len())
	require.True(t, out.IsValid(0))
	require.False(t, out.IsValid(1))
	require.False(t, out.IsValid(2))
	require.True(t, out.IsValid(3))
	require.Equal(t, int32(11), out.Get(0).Int32())
	require.Equal(t, int32(44), out.Get(3).Int32())
}

func TestBinaryOpDivByZeroSidecar(t *testing.T) {
	a := int32Array([]int32{10, 20, 30}, nil)
	b := int32Array([]int32{2, 0, 5}, nil)
	out, sidecar := BinaryOp(a, b, types.NewType(types.KindInt32, true), func(x, y types.Value) (types.Value, error) {
		return types.Div(x, y)
	})
	require.NotNil(t, sidecar)
	require.Equal(t, 1, sidecar.Row)
	require.Equal(t, int32(5), out.Get(0).Int32())
	require.False(t, out.IsValid(1))
	require.Equal(t, int32(6), out.Get(2).Int32())
}

func TestFilterPreservesOrderAndPopcount(t *testing.T) {
	a := int32Array([]int32{1, 2, 3, 4, 5}, nil)
	batch, err := NewBatch([]Array{a})
	require.NoError(t, err)

	bm := bitmap.New(5)
	bm.Add(0)
	bm.Add(2)
	bm.Add(4)

	out, err := batch.Filter(bm)
	require.NoError(t, err)
	require.Equal(t, bm.Count(), out.Cardinality())
	require.Equal(t, int32(1), out.Column(0).Get(0).Int32())
	require.Equal(t, int32(3), out.Column(0).Get(1).Int32())
	require.Equal(t, int32(5), out.Column(0).Get(2).Int32())
}

func TestConcatSumsCardinality(t *testing.T) {
	a, _ := NewBatch([]Array{int32Array([]int32{1, 2}, nil)})
	b, _ := NewBatch([]Array{int32Array([]int32{3, 4, 5}, nil)})
	out, err := Concat([]*Batch{a, b})
	require.NoError(t, err)
	require.Equal(t, 5, out.Cardinality())
}
