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

// Package bitmap implements a word-packed bit vector used as array
// validity (one bit per row, 1 = valid) and as filter masks for batch
// kernels. It is sized to its caller rather than fixed, unlike the
// teacher's FixSizedBitmap, since array/batch lengths vary per query.
package bitmap

import (
	"math/bits"

	"github.com/egraph-db/secondary/pkg/common/logutil"
)

const (
	emptyUnknown = 0
	emptyYes     = 1
	emptyNo      = -1
)

// Bitmap is a packed bit vector whose length is fixed at construction.
type Bitmap struct {
	len       int64
	data      []uint64
	emptyFlag int8
}

// New creates a Bitmap of the given length, all bits unset (all invalid).
func New(n int64) *Bitmap {
	bm := &Bitmap{len: n}
	bm.data = make([]uint64, wordCount(n))
	bm.emptyFlag = emptyYes
	return bm
}

// NewAllValid creates a Bitmap of the given length with every bit set.
func NewAllValid(n int64) *Bitmap {
	bm := New(n)
	for i := range bm.data {
		bm.data[i] = ^uint64(0)
	}
	bm.clearTrailingBits()
	bm.emptyFlag = emptyUnknown
	return bm
}

func wordCount(n int64) int {
	return int((n + 63) / 64)
}

func (bm *Bitmap) Len() int64 { return bm.len }

func (bm *Bitmap) clearTrailingBits() {
	if bm.len == 0 {
		return
	}
	if rem := bm.len % 64; rem != 0 {
		last := len(bm.data) - 1
		bm.data[last] &= (uint64(1) << uint(rem)) - 1
	}
}

func (bm *Bitmap) checkRange(row int64) {
	if row < 0 || row >= bm.len {
		logutil.Fatalf("bitmap: row %d out of range [0,%d)", row, bm.len)
	}
}

func (bm *Bitmap) Add(row int64) {
	bm.checkRange(row)
	bm.data[row>>6] |= 1 << uint(row&63)
	bm.emptyFlag = emptyNo
}

func (bm *Bitmap) Remove(row int64) {
	bm.checkRange(row)
	bm.data[row>>6] &^= 1 << uint(row&63)
	bm.emptyFlag = emptyUnknown
}

func (bm *Bitmap) Contains(row int64) bool {
	bm.checkRange(row)
	return bm.data[row>>6]&(1<<uint(row&63)) != 0
}

// IsEmpty reports whether no bit is set, caching the result the way the
// teacher's FixSizedBitmap.IsEmpty does.
func (bm *Bitmap) IsEmpty() bool {
	if bm.emptyFlag == emptyYes {
		return true
	}
	for _, w := range bm.data {
		if w != 0 {
			bm.emptyFlag = emptyNo
			return false
		}
	}
	bm.emptyFlag = emptyYes
	return true
}

func (bm *Bitmap) Count() int {
	if bm.emptyFlag == emptyYes {
		return 0
	}
	cnt := 0
	for _, w := range bm.data {
		cnt += bits.OnesCount64(w)
	}
	if cnt == 0 {
		bm.emptyFlag = emptyYes
	} else {
		bm.emptyFlag = emptyNo
	}
	return cnt
}

func (bm *Bitmap) Word(i int) uint64 { return bm.data[i] }

func (bm *Bitmap) WordCount() int { return len(bm.data) }

// And sets bm to the bitwise AND of bm and o; both must have equal length.
func (bm *Bitmap) And(o *Bitmap) {
	if bm.len != o.len {
		logutil.Fatalf("bitmap: And length mismatch %d != %d", bm.len, o.len)
	}
	empty := true
	for i := range bm.data {
		bm.data[i] &= o.data[i]
		if bm.data[i] != 0 {
			empty = false
		}
	}
	if empty {
		bm.emptyFlag = emptyYes
	} else {
		bm.emptyFlag = emptyNo
	}
}

// Or sets bm to the bitwise OR of bm and o; both must have equal length.
func (bm *Bitmap) Or(o *Bitmap) {
	if bm.len != o.len {
		logutil.Fatalf("bitmap: Or length mismatch %d != %d", bm.len, o.len)
	}
	empty := true
	for i := range bm.data {
		bm.data[i] |= o.data[i]
		if bm.data[i] != 0 {
			empty = false
		}
	}
	if empty {
		bm.emptyFlag = emptyYes
	} else {
		bm.emptyFlag = emptyNo
	}
}

// AndNot clears every bit in bm that is set in o (used to mask out deleted
// rows: validity AND NOT deleted).
func (bm *Bitmap) AndNot(o *Bitmap) {
	if bm.len != o.len {
		logutil.Fatalf("bitmap: AndNot length mismatch %d != %d", bm.len, o.len)
	}
	empty := true
	for i := range bm.data {
		bm.data[i] &^= o.data[i]
		if bm.data[i] != 0 {
			empty = false
		}
	}
	if empty {
		bm.emptyFlag = emptyYes
	} else {
		bm.emptyFlag = emptyNo
	}
}

func (bm *Bitmap) Clone() *Bitmap {
	data := make([]uint64, len(bm.data))
	copy(data, bm.data)
	return &Bitmap{len: bm.len, data: data, emptyFlag: bm.emptyFlag}
}

// Iterator walks the set bit positions in ascending order.
type Iterator struct {
	bm  *Bitmap
	i   int64
	ok  bool
}

func (bm *Bitmap) Iterator() *Iterator {
	it := &Iterator{bm: bm}
	if pos, ok := it.findNext(0); ok {
		it.i = pos
		it.ok = true
	}
	return it
}

func (it *Iterator) findNext(from int64) (int64, bool) {
	for i := from; i < it.bm.len; i++ {
		if it.bm.Contains(i) {
			return i, true
		}
	}
	return 0, false
}

func (it *Iterator) HasNext() bool { return it.ok }

func (it *Iterator) Next() int64 {
	cur := it.i
	if pos, ok := it.findNext(cur + 1); ok {
		it.i = pos
		it.ok = true
	} else {
		it.ok = false
	}
	return cur
}

// ToArray materializes every set bit position.
func (bm *Bitmap) ToArray() []int64 {
	if bm.IsEmpty() {
		return nil
	}
	out := make([]int64, 0, bm.Count())
	it := bm.Iterator()
	for it.HasNext() {
		out = append(out, it.Next())
	}
	return out
}

// FromSortedRows builds a Bitmap of length n with the given sorted row ids set.
func FromSortedRows(n int64, rows []int64) *Bitmap {
	bm := New(n)
	for _, r := range rows {
		bm.Add(r)
	}
	return bm
}
