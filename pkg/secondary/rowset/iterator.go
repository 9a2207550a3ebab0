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

package rowset

import (
	"context"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary/block"
	"github.com/egraph-db/secondary/pkg/types"
)

// BlockSource fetches the raw bytes of one block, keyed by
// {rowsetID, storageColID, blockID}. The block cache (pkg/secondary/cache)
// implements this, dispatching cache misses to a blocking worker pool per
// spec.md §4.6.
type BlockSource interface {
	FetchBlock(ctx context.Context, rowsetID, storageColID uint64, blockID int) ([]byte, error)
}

// KeyRange bounds a primary-key column scan by [Low, High), either end
// optionally unset, per spec.md §4.5 Scan contract.
type KeyRange struct {
	HasLow, HasHigh bool
	Low, High       types.Value
}

func (r *KeyRange) disjointWith(firstKey, lastKey []byte, typ types.DataType) bool {
	if r == nil {
		return false
	}
	first := decodeKey(firstKey, typ)
	last := decodeKey(lastKey, typ)
	if r.HasHigh && types.Compare(first, r.High) >= 0 {
		return true
	}
	if r.HasLow && types.Compare(last, r.Low) < 0 {
		return true
	}
	return false
}

func decodeKey(raw []byte, typ types.DataType) types.Value {
	if typ.Kind == types.KindString {
		return block.DecodeVarWidth(raw, 1, false, true)[0]
	}
	if typ.Kind == types.KindBlob {
		return block.DecodeVarWidth(raw, 1, false, false)[0]
	}
	return block.DecodePlain(typ, raw, 1)[0]
}

// ColumnIterator walks the blocks of one column in row order, per spec.md
// §4.6 read path steps 1-2. It decodes each block and hands array batches
// of up to batchSize rows to the caller.
type ColumnIterator struct {
	source      BlockSource
	rowsetID    uint64
	storageID   uint64
	typ         types.DataType
	entries     []block.Entry
	keyRange    *KeyRange
	batchSize   int
	blockIdx    int
	pending     []types.Value
	pendingOff  int
}

// NewColumnIterator constructs an iterator over a column given its parsed
// index entries. keyRange may be nil to scan the whole column.
func NewColumnIterator(source BlockSource, rowsetID, storageID uint64, typ types.DataType, entries []block.Entry, keyRange *KeyRange, batchSize int) *ColumnIterator {
	return &ColumnIterator{
		source: source, rowsetID: rowsetID, storageID: storageID, typ: typ,
		entries: entries, keyRange: keyRange, batchSize: batchSize,
	}
}

// Next returns up to batchSize values, or a nil array once exhausted.
func (it *ColumnIterator) Next(ctx context.Context) (containers.Array, error) {
	out := containers.NewEmptyArray(it.typ)
	produced := 0
	for produced < it.batchSize {
		if it.pendingOff >= len(it.pending) {
			ok, err := it.advanceBlock(ctx)
			if err != nil {
				return nil, err
			}
			if !ok {
				break
			}
			continue
		}
		out.AppendValue(it.pending[it.pendingOff])
		it.pendingOff++
		produced++
	}
	if produced == 0 {
		return nil, nil
	}
	return out, nil
}

// advanceBlock loads the next non-skipped block into it.pending, returning
// false when there are no more blocks and the error of a failed fetch or
// decode.
func (it *ColumnIterator) advanceBlock(ctx context.Context) (bool, error) {
	for it.blockIdx < len(it.entries) {
		e := it.entries[it.blockIdx]
		it.blockIdx++
		if e.HasKeys && it.keyRange.disjointWith(e.FirstKey, e.LastKey, it.typ) {
			continue
		}
		raw, err := it.source.FetchBlock(ctx, it.rowsetID, it.storageID, it.blockIdx-1)
		if err != nil {
			it.pending = nil
			it.pendingOff = 0
			return false, err
		}
		values, decErr := decodeBlock(raw, it.typ, int(e.RowCount), it.rowsetID, it.storageID, uint64(it.blockIdx-1))
		if decErr != nil {
			it.pending = nil
			it.pendingOff = 0
			return false, decErr
		}
		it.pending = values
		it.pendingOff = 0
		return true, nil
	}
	return false, nil
}

func decodeBlock(raw []byte, typ types.DataType, rowCount int, rowsetID, columnID, blockID uint64) ([]types.Value, error) {
	typKind, payload, err := block.DecodeHeader(raw, rowsetID, columnID, blockID)
	if err != nil {
		return nil, err
	}
	switch typKind {
	case block.TypePlain:
		return block.DecodePlain(typ, payload, rowCount), nil
	case block.TypePlainNullable:
		return block.DecodePlainNullable(typ, payload, rowCount), nil
	case block.TypeRLE:
		return block.DecodeRLE(typ, payload, typ.Nullable)
	case block.TypeVarWidth:
		isString := typ.Kind == types.KindString
		return block.DecodeVarWidth(payload, rowCount, typ.Nullable, isString), nil
	default:
		return nil, engineerr.NewStorage("unknown block type %d", typKind)
	}
}

// ConcatIterator interleaves per-column iterators row-for-row into full
// batches, per spec.md §4.6 read path step 3.
type ConcatIterator struct {
	cols []*ColumnIterator
}

func NewConcatIterator(cols []*ColumnIterator) *ConcatIterator {
	return &ConcatIterator{cols: cols}
}

// Next produces the next aligned batch across all columns, or nil when the
// underlying column iterators are exhausted.
func (it *ConcatIterator) Next(ctx context.Context) (*containers.Batch, error) {
	arrays := make([]containers.Array, len(it.cols))
	for i, c := range it.cols {
		a, err := c.Next(ctx)
		if err != nil {
			return nil, err
		}
		if a == nil {
			return nil, nil
		}
		arrays[i] = a
	}
	return containers.NewBatch(arrays)
}
