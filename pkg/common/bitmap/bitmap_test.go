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

package bitmap

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitmapAddContainsCount(t *testing.T) {
	bm := New(100)
	require.True(t, bm.IsEmpty())
	bm.Add(0)
	bm.Add(63)
	bm.Add(64)
	bm.Add(99)
	require.False(t, bm.IsEmpty())
	require.Equal(t, 4, bm.Count())
	require.True(t, bm.Contains(63))
	require.False(t, bm.Contains(62))

	bm.Remove(63)
	require.Equal(t, 3, bm.Count())
}

func TestBitmapAllValidClearsTrailingBits(t *testing.T) {
	bm := NewAllValid(70)
	require.Equal(t, 70, bm.Count())
	for i := int64(70); i < int64(bm.WordCount()*64); i++ {
		require.Zero(t, bm.Word(int(i>>6))&(uint64(1)<<uint(i&63)))
	}
}

func TestBitmapAndOrAndNot(t *testing.T) {
	a := New(8)
	b := New(8)
	a.Add(1)
	a.Add(2)
	b.Add(2)
	b.Add(3)

	and := a.Clone()
	and.And(b)
	require.Equal(t, []int64{2}, and.ToArray())

	or := a.Clone()
	or.Or(b)
	require.Equal(t, []int64{1, 2, 3}, or.ToArray())

	andNot := a.Clone()
	andNot.AndNot(b)
	require.Equal(t, []int64{1}, andNot.ToArray())
}

func TestBitmapIterator(t *testing.T) {
	bm := FromSortedRows(10, []int64{0, 3, 7, 9})
	it := bm.Iterator()
	var got []int64
	for it.HasNext() {
		got = append(got, it.Next())
	}
	require.Equal(t, []int64{0, 3, 7, 9}, got)
}
