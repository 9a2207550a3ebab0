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
	"golang.org/x/sync/errgroup"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary/block"
	"github.com/egraph-db/secondary/pkg/types"
)

// Files is the set of byte blobs that make up one finished rowset directory,
// keyed by file name (MANIFEST, "<col>.col", "<col>.idx").
type Files map[string][]byte

type columnBuilder struct {
	desc       ColumnDescriptor
	bb         *block.Builder
	data       []byte
	index      *block.IndexWriter
	blockFirst uint64
	firstKey   types.Value
	lastKey    types.Value
	haveKey    bool
}

// Builder fans a stream of batches into per-column block builders, per
// spec.md §4.6 step 1: "a rowset builder fans columns out into per-column
// block builders". One Builder produces exactly one rowset's Files.
type Builder struct {
	tableID, rowsetID uint64
	checksumKind      block.ChecksumKind
	targetBlockSize   int
	cols              []*columnBuilder
	rowCount          int64
}

// NewBuilder constructs a rowset builder for tableID/rowsetID writing the
// given columns in order.
func NewBuilder(tableID, rowsetID uint64, descriptors []ColumnDescriptor, checksumKind block.ChecksumKind, targetBlockSize int) *Builder {
	b := &Builder{tableID: tableID, rowsetID: rowsetID, checksumKind: checksumKind, targetBlockSize: targetBlockSize}
	for _, d := range descriptors {
		b.cols = append(b.cols, &columnBuilder{
			desc:  d,
			bb:    block.NewBuilder(d.Type, checksumKind, targetBlockSize, d.RLE),
			index: block.NewIndexWriter(checksumKind),
		})
	}
	return b
}

// Append adds one batch of rows, one column at a time. Columns must appear
// in the same order as the descriptors passed to NewBuilder.
func (b *Builder) Append(batch *containers.Batch) error {
	if batch.NumColumns() != len(b.cols) {
		return engineerr.ErrLengthMismatch(len(b.cols), batch.NumColumns())
	}
	n := batch.Cardinality()
	for ci, cb := range b.cols {
		col := batch.Column(ci)
		for i := 0; i < n; i++ {
			v := col.Get(i)
			if cb.bb.ShouldFinish(v) {
				b.flushBlock(cb)
			}
			cb.bb.Append(v)
			if cb.desc.IsPrimaryKey && !v.Null {
				if !cb.haveKey {
					cb.firstKey = v
					cb.haveKey = true
				}
				cb.lastKey = v
			}
		}
	}
	b.rowCount += int64(n)
	return nil
}

func (b *Builder) flushBlock(cb *columnBuilder) {
	rowCount := uint64(cb.bb.Len())
	if rowCount == 0 {
		return
	}
	offset := uint64(len(cb.data))
	encoded := cb.bb.Finish()
	cb.data = append(cb.data, encoded...)
	entry := block.Entry{
		FirstRowID: cb.blockFirst,
		RowCount:   rowCount,
		ByteOffset: offset,
		ByteLength: uint64(len(encoded)),
	}
	if cb.desc.IsPrimaryKey && cb.haveKey {
		entry.HasKeys = true
		entry.FirstKey = encodeKey(cb.firstKey, cb.desc.Type)
		entry.LastKey = encodeKey(cb.lastKey, cb.desc.Type)
	}
	cb.index.Add(entry)
	cb.blockFirst += rowCount
	cb.haveKey = false
}

// Finish flushes any partial blocks, finalizes every column's index file,
// and returns the complete rowset Files plus its row count, per spec.md
// §4.6 step 4. Each column's final flush touches only that column's own
// builder state, so the columns are finalized concurrently.
func (b *Builder) Finish() (Files, int64) {
	var g errgroup.Group
	for _, cb := range b.cols {
		cb := cb
		g.Go(func() error {
			if cb.bb.Len() > 0 {
				b.flushBlock(cb)
			}
			return nil
		})
	}
	g.Wait()

	files := Files{}
	var descriptors []ColumnDescriptor
	for _, cb := range b.cols {
		files[DataFileName(cb.desc.StorageID)] = cb.data
		files[IndexFileName(cb.desc.StorageID)] = cb.index.Finish()
		descriptors = append(descriptors, cb.desc)
	}
	files[ManifestFileName] = Encode(Manifest{RowCount: b.rowCount, Columns: descriptors})
	return files, b.rowCount
}

func encodeKey(v types.Value, typ types.DataType) []byte {
	if typ.Kind == types.KindString {
		return block.EncodeVarWidth([]types.Value{v}, true, false)
	}
	if typ.Kind == types.KindBlob {
		return block.EncodeVarWidth([]types.Value{v}, false, false)
	}
	return block.EncodePlain(typ, []types.Value{v})
}
