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
	"github.com/egraph-db/secondary/pkg/common/bitmap"
	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

// Batch is an ordered tuple of arrays of identical length, per spec.md §3.2.
type Batch struct {
	Columns []Array
}

func NewBatch(cols []Array) (*Batch, error) {
	if len(cols) == 0 {
		return &Batch{}, nil
	}
	n := cols[0].Len()
	for _, c := range cols[1:] {
		if c.Len() != n {
			return nil, engineerr.ErrLengthMismatch(n, c.Len())
		}
	}
	return &Batch{Columns: cols}, nil
}

func (b *Batch) Cardinality() int {
	if len(b.Columns) == 0 {
		return 0
	}
	return b.Columns[0].Len()
}

func (b *Batch) NumColumns() int { return len(b.Columns) }

func (b *Batch) Column(i int) Array { return b.Columns[i] }

// Filter returns the sub-batch of rows where bm is set, per spec.md §4.1.
func (b *Batch) Filter(bm *bitmap.Bitmap) (*Batch, error) {
	if int64(b.Cardinality()) != bm.Len() {
		return nil, engineerr.ErrLengthMismatch(b.Cardinality(), int(bm.Len()))
	}
	rows := bm.ToArray()
	out := make([]Array, len(b.Columns))
	for i, col := range b.Columns {
		out[i] = filterArray(col, rows)
	}
	return &Batch{Columns: out}, nil
}

func filterArray(a Array, rows []int64) Array {
	out := NewEmptyArray(a.Type())
	for _, r := range rows {
		out.AppendValue(a.Get(int(r)))
	}
	return out
}

// Concat concatenates batches that share arity and per-column types, per
// spec.md §4.1.
func Concat(chunks []*Batch) (*Batch, error) {
	live := make([]*Batch, 0, len(chunks))
	for _, c := range chunks {
		if c.Cardinality() > 0 {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		if len(chunks) > 0 {
			return &Batch{Columns: emptyLike(chunks[0])}, nil
		}
		return &Batch{}, nil
	}
	arity := live[0].NumColumns()
	out := make([]Array, arity)
	for c := 0; c < arity; c++ {
		acc := NewEmptyArray(live[0].Column(c).Type())
		for _, chunk := range live {
			col := chunk.Column(c)
			for i := 0; i < col.Len(); i++ {
				acc.AppendValue(col.Get(i))
			}
		}
		out[c] = acc
	}
	return &Batch{Columns: out}, nil
}

func emptyLike(b *Batch) []Array {
	out := make([]Array, b.NumColumns())
	for i, c := range b.Columns {
		out[i] = NewEmptyArray(c.Type())
	}
	return out
}

// Project selects a subset of columns by index, in order (possibly with
// repeats), matching the executor's Projection operator contract.
func (b *Batch) Project(indices []int) *Batch {
	out := make([]Array, len(indices))
	for i, idx := range indices {
		out[i] = b.Columns[idx]
	}
	return &Batch{Columns: out}
}

// Slice returns rows [lo, hi) across all columns.
func (b *Batch) Slice(lo, hi int) *Batch {
	out := make([]Array, len(b.Columns))
	for i, c := range b.Columns {
		out[i] = c.Slice(lo, hi)
	}
	return &Batch{Columns: out}
}
