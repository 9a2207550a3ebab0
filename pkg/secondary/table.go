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

package secondary

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/egraph-db/secondary/pkg/common/bitmap"
	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary/block"
	"github.com/egraph-db/secondary/pkg/secondary/cache"
	"github.com/egraph-db/secondary/pkg/secondary/rowset"
	"github.com/egraph-db/secondary/pkg/types"
)

// FileStore abstracts the byte-level persistence a Table writes rowset and
// delete-vector files to. No library in the example pack wraps raw
// directory/file I/O for a bespoke on-disk layout like this one (no mmap or
// embedded-KV dependency is wired elsewhere in the stack), so DiskStore is a
// thin stdlib os/filepath wrapper; see DESIGN.md.
type FileStore interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	MkdirAll(path string) error
}

// DiskStore is the default FileStore, rooted at a directory configured at
// open, per spec.md §6.3.
type DiskStore struct{ Root string }

func (s DiskStore) ReadFile(path string) ([]byte, error) {
	return os.ReadFile(filepath.Join(s.Root, path))
}

// WriteFile writes data to path and fsyncs both the file and its parent
// directory entry before returning, so a crash right after WriteFile
// returns can never observe a truncated or missing file.
func (s DiskStore) WriteFile(path string, data []byte) error {
	full := filepath.Join(s.Root, path)
	dir := filepath.Dir(full)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	return syncDir(dir)
}

// syncDir fsyncs a directory's entry so a new or renamed file within it
// survives a crash, not just the file's own contents.
func syncDir(dir string) error {
	d, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer d.Close()
	return d.Sync()
}

func (s DiskStore) MkdirAll(path string) error {
	return os.MkdirAll(filepath.Join(s.Root, path), 0o755)
}

// rowsetHandle is a table's in-memory view of one on-disk rowset: its
// column manifest and parsed block indexes, which together are enough to
// drive reads without re-parsing on every scan.
type rowsetHandle struct {
	rowsetID uint64
	rowCount int64
	columns  []rowset.ColumnDescriptor
	indexes  map[uint64][]block.Entry // storage_col_id -> entries
}

// Table is the storage-layer view of one table: an ordered list of
// immutable rowsets plus the delete vectors layered on top, per spec.md
// §3.5. The transaction manager (pkg/secondary/txn) wraps Table with
// snapshot isolation and single-writer serialization.
type Table struct {
	TableID uint64

	store FileStore
	cache *cache.Cache

	mu            sync.RWMutex
	rowsets       []*rowsetHandle
	deleteVectors map[uint64][]*DeleteVector // rowset_id -> DVs
}

// NewTable constructs an empty table view backed by store, using cache for
// block reads.
func NewTable(tableID uint64, store FileStore, c *cache.Cache) *Table {
	return &Table{TableID: tableID, store: store, cache: c, deleteVectors: make(map[uint64][]*DeleteVector)}
}

// SetCache attaches a block cache constructed after the table itself, since
// cache.New needs the table's Loader as its loader function — callers
// outside this package build the table first, then the cache from
// t.Loader(), then call SetCache.
func (t *Table) SetCache(c *cache.Cache) { t.cache = c }

// blockSourceFor adapts the table's FileStore into a rowset.BlockSource by
// routing misses through the block cache, which loads the requested
// block's bytes straight out of the rowset's data file via byte-range
// slicing (the column data file for a given rowset never changes size
// after the rowset is finalized).
func (t *Table) blockSourceFor(rs *rowsetHandle) rowset.BlockSource {
	return blockSourceFunc(func(ctx context.Context, rowsetID, storageColID uint64, blockID int) ([]byte, error) {
		return t.cache.FetchBlock(ctx, rowsetID, storageColID, blockID)
	})
}

type blockSourceFunc func(ctx context.Context, rowsetID, storageColID uint64, blockID int) ([]byte, error)

func (f blockSourceFunc) FetchBlock(ctx context.Context, rowsetID, storageColID uint64, blockID int) ([]byte, error) {
	return f(ctx, rowsetID, storageColID, blockID)
}

// Loader builds a cache.Loader that reads a block's bytes directly from the
// rowset's data file and index, given the table's current rowset list.
func (t *Table) Loader() cache.Loader {
	return func(ctx context.Context, key cache.Key) ([]byte, error) {
		t.mu.RLock()
		var rs *rowsetHandle
		for _, h := range t.rowsets {
			if h.rowsetID == key.RowsetID {
				rs = h
				break
			}
		}
		t.mu.RUnlock()
		if rs == nil {
			return nil, engineerr.NewStorage("unknown rowset %d", key.RowsetID)
		}
		entries := rs.indexes[key.StorageID]
		if key.BlockID < 0 || key.BlockID >= len(entries) {
			return nil, engineerr.NewStorage("block %d out of range for column %d", key.BlockID, key.StorageID)
		}
		e := entries[key.BlockID]
		data, err := t.store.ReadFile(filepath.Join(rowset.DirName(t.TableID, key.RowsetID), rowset.DataFileName(key.StorageID)))
		if err != nil {
			return nil, err
		}
		return data[e.ByteOffset : e.ByteOffset+e.ByteLength], nil
	}
}

// AddRowset persists a freshly built rowset's Files to disk and registers
// it as the newest rowset, per spec.md §4.6 step 5 ("rowset directory
// writes are atomic relative to the manifest"): every file is fsynced (via
// FileStore.WriteFile) before this returns, so the caller is free to append
// the corresponding AddRowset manifest record immediately after.
func (t *Table) AddRowset(rowsetID uint64, files rowset.Files, descriptors []rowset.ColumnDescriptor) error {
	dir := rowset.DirName(t.TableID, rowsetID)
	if err := t.store.MkdirAll(dir); err != nil {
		return err
	}
	for name, data := range files {
		if err := t.store.WriteFile(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	manifest, err := rowset.Decode(files[rowset.ManifestFileName])
	if err != nil {
		return err
	}
	h := &rowsetHandle{rowsetID: rowsetID, rowCount: manifest.RowCount, columns: manifest.Columns, indexes: make(map[uint64][]block.Entry)}
	for _, c := range descriptors {
		entries, err := block.ReadIndex(files[rowset.IndexFileName(c.StorageID)])
		if err != nil {
			return err
		}
		h.indexes[c.StorageID] = entries
	}
	t.mu.Lock()
	t.rowsets = append(t.rowsets, h)
	t.mu.Unlock()
	return nil
}

// AddDeleteVector registers dv against its rowset, masking the rows it
// covers out of future scans.
func (t *Table) AddDeleteVector(dv *DeleteVector) {
	t.mu.Lock()
	t.deleteVectors[dv.RowsetID] = append(t.deleteVectors[dv.RowsetID], dv)
	t.mu.Unlock()
}

// RowsetIDs returns the ids of all rowsets currently visible, in the
// monotonic order spec.md §5 requires scans to honor.
func (t *Table) RowsetIDs() []uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	ids := make([]uint64, len(t.rowsets))
	for i, h := range t.rowsets {
		ids[i] = h.rowsetID
	}
	return ids
}

// CompactRowsets atomically replaces oldIDs with a single freshly written
// rowset, the background-compaction step of spec.md §4.7: small rowsets
// with accumulated deletes are merged into one, and the superseded rowsets
// (plus the delete vectors that applied to them) drop out of view at once.
func (t *Table) CompactRowsets(oldIDs []uint64, newRowsetID uint64, files rowset.Files, descriptors []rowset.ColumnDescriptor) error {
	dir := rowset.DirName(t.TableID, newRowsetID)
	if err := t.store.MkdirAll(dir); err != nil {
		return err
	}
	for name, data := range files {
		if err := t.store.WriteFile(filepath.Join(dir, name), data); err != nil {
			return err
		}
	}
	manifest, err := rowset.Decode(files[rowset.ManifestFileName])
	if err != nil {
		return err
	}
	h := &rowsetHandle{rowsetID: newRowsetID, rowCount: manifest.RowCount, columns: manifest.Columns, indexes: make(map[uint64][]block.Entry)}
	for _, c := range descriptors {
		entries, err := block.ReadIndex(files[rowset.IndexFileName(c.StorageID)])
		if err != nil {
			return err
		}
		h.indexes[c.StorageID] = entries
	}

	old := make(map[uint64]bool, len(oldIDs))
	for _, id := range oldIDs {
		old[id] = true
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	kept := t.rowsets[:0:0]
	for _, rs := range t.rowsets {
		if !old[rs.rowsetID] {
			kept = append(kept, rs)
		}
	}
	t.rowsets = append(kept, h)
	for _, id := range oldIDs {
		delete(t.deleteVectors, id)
	}
	return nil
}

// TableSnapshot is the immutable `(rowsets, delete_vectors)` tuple of
// spec.md §3.5, frozen at the moment it is taken; concurrent commits after
// a TableSnapshot is acquired are not visible through it.
type TableSnapshot struct {
	table         *Table
	handles       []*rowsetHandle
	deleteVectors map[uint64][]*DeleteVector
}

// Snapshot freezes the table's current rowset list and delete vectors.
// pkg/secondary/txn's read() acquires one of these per reader.
func (t *Table) Snapshot() *TableSnapshot {
	t.mu.RLock()
	defer t.mu.RUnlock()
	handles := append([]*rowsetHandle(nil), t.rowsets...)
	dvs := make(map[uint64][]*DeleteVector, len(t.deleteVectors))
	for k, v := range t.deleteVectors {
		dvs[k] = append([]*DeleteVector(nil), v...)
	}
	return &TableSnapshot{table: t, handles: handles, deleteVectors: dvs}
}

// Scan opens a streaming reader over the requested storage columns across
// every rowset visible in this snapshot, honoring keyRange pushdown and
// delete-vector masking, per spec.md §4.5 Scan contract.
func (s *TableSnapshot) Scan(storageColIDs []uint64, keyRange *rowset.KeyRange, batchSize int) *TableScan {
	return &TableScan{table: s.table, handles: s.handles, deleteVectors: s.deleteVectors, storageColIDs: storageColIDs, keyRange: keyRange, batchSize: batchSize}
}

// Scan is a convenience for a one-shot read that does not need an
// independently held snapshot; it takes one internally.
func (t *Table) Scan(storageColIDs []uint64, keyRange *rowset.KeyRange, batchSize int) *TableScan {
	return t.Snapshot().Scan(storageColIDs, keyRange, batchSize)
}

// RowsetStat summarizes one rowset's size and how much of it is dead,
// the input compaction candidate selection reads.
type RowsetStat struct {
	RowsetID     uint64
	RowCount     int64
	DeletedCount uint64
}

// RowsetStats reports every rowset in this snapshot's size and delete
// count, for pkg/secondary/txn's compaction candidate selection.
func (s *TableSnapshot) RowsetStats() []RowsetStat {
	stats := make([]RowsetStat, len(s.handles))
	for i, h := range s.handles {
		var deleted uint64
		for _, dv := range s.deleteVectors[h.rowsetID] {
			deleted += dv.Cardinality()
		}
		stats[i] = RowsetStat{RowsetID: h.rowsetID, RowCount: h.rowCount, DeletedCount: deleted}
	}
	return stats
}

// ScanRowsets opens a scan restricted to the named rowset ids, the merge
// read compaction uses to rebuild a single rowset out of several.
func (t *Table) ScanRowsets(rowsetIDs, storageColIDs []uint64, batchSize int) *TableScan {
	want := make(map[uint64]bool, len(rowsetIDs))
	for _, id := range rowsetIDs {
		want[id] = true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	var handles []*rowsetHandle
	dvs := make(map[uint64][]*DeleteVector, len(rowsetIDs))
	for _, h := range t.rowsets {
		if want[h.rowsetID] {
			handles = append(handles, h)
			dvs[h.rowsetID] = append([]*DeleteVector(nil), t.deleteVectors[h.rowsetID]...)
		}
	}
	return &TableScan{table: t, handles: handles, deleteVectors: dvs, storageColIDs: storageColIDs, batchSize: batchSize}
}

// TableScan is the per-query cursor produced by Table.Scan; it sequences
// rowsets in order and applies delete-vector masking at batch granularity.
type TableScan struct {
	table         *Table
	handles       []*rowsetHandle
	deleteVectors map[uint64][]*DeleteVector
	storageColIDs []uint64
	keyRange      *rowset.KeyRange
	batchSize     int

	handleIdx int
	rowOffset int64
	concat    *rowset.ConcatIterator
}

// Next returns the next non-empty batch with deleted rows already masked
// out, or nil once every rowset has been exhausted.
func (s *TableScan) Next(ctx context.Context) (*containers.Batch, error) {
	for {
		if s.concat == nil {
			if s.handleIdx >= len(s.handles) {
				return nil, nil
			}
			h := s.handles[s.handleIdx]
			src := s.table.blockSourceFor(h)
			var iters []*rowset.ColumnIterator
			for _, colID := range s.storageColIDs {
				typ := columnType(h, colID)
				iters = append(iters, rowset.NewColumnIterator(src, h.rowsetID, colID, typ, h.indexes[colID], s.keyRange, s.batchSize))
			}
			s.concat = rowset.NewConcatIterator(iters)
			s.rowOffset = 0
		}
		batch, err := s.concat.Next(ctx)
		if err != nil {
			return nil, err
		}
		if batch == nil {
			s.concat = nil
			s.handleIdx++
			continue
		}
		h := s.handles[s.handleIdx]
		masked, consumed := s.applyDeletes(h, batch)
		s.rowOffset += int64(consumed)
		if masked.Cardinality() == 0 {
			continue
		}
		return masked, nil
	}
}

func (s *TableScan) applyDeletes(h *rowsetHandle, batch *containers.Batch) (*containers.Batch, int) {
	dvs := s.deleteVectors[h.rowsetID]
	n := batch.Cardinality()
	if len(dvs) == 0 {
		return batch, n
	}
	bm := bitmap.NewAllValid(int64(n))
	for i := 0; i < n; i++ {
		rowID := uint32(s.rowOffset + int64(i))
		for _, dv := range dvs {
			if dv.Contains(rowID) {
				bm.Remove(int64(i))
				break
			}
		}
	}
	filtered, err := batch.Filter(bm)
	if err != nil {
		return batch, n
	}
	return filtered, n
}

func columnType(h *rowsetHandle, storageColID uint64) types.DataType {
	for _, c := range h.columns {
		if c.StorageID == storageColID {
			return c.Type
		}
	}
	return types.DataType{}
}

// ScanForDelete opens a scan like Scan, except the returned batch's first
// two columns are always (rowset_id int64, row_id int64) identifying each
// surviving row, followed by storageColIDs — the shape DeleteOperator's
// child must produce so it can mark the matched rows in a delete vector
// without losing identity to the WHERE-clause filter sitting above it.
func (t *Table) ScanForDelete(storageColIDs []uint64, keyRange *rowset.KeyRange, batchSize int) *DeleteScan {
	return &DeleteScan{inner: t.Scan(storageColIDs, keyRange, batchSize)}
}

// DeleteScan wraps TableScan, prepending row-identity columns to each batch.
type DeleteScan struct {
	inner *TableScan
}

func (s *DeleteScan) Next(ctx context.Context) (*containers.Batch, error) {
	batch, rowsetID, ids, err := s.inner.nextIdentified(ctx)
	if err != nil {
		return nil, err
	}
	if batch == nil {
		return nil, nil
	}
	n := batch.Cardinality()
	rowsetCol := containers.NewEmptyArray(types.NewType(types.KindInt64, false))
	rowCol := containers.NewEmptyArray(types.NewType(types.KindInt64, false))
	for i := 0; i < n; i++ {
		rowsetCol.AppendValue(types.Int64Value(int64(rowsetID)))
		rowCol.AppendValue(types.Int64Value(int64(ids[i])))
	}
	cols := append([]containers.Array{rowsetCol, rowCol}, batch.Columns...)
	return containers.NewBatch(cols)
}

// nextIdentified is Next, except it also returns the source rowset id and
// the original row id of every row retained in the output batch (deleted
// rows excluded, matching applyDeletes' masking exactly).
func (s *TableScan) nextIdentified(ctx context.Context) (*containers.Batch, uint64, []uint32, error) {
	for {
		if s.concat == nil {
			if s.handleIdx >= len(s.handles) {
				return nil, 0, nil, nil
			}
			h := s.handles[s.handleIdx]
			src := s.table.blockSourceFor(h)
			var iters []*rowset.ColumnIterator
			for _, colID := range s.storageColIDs {
				typ := columnType(h, colID)
				iters = append(iters, rowset.NewColumnIterator(src, h.rowsetID, colID, typ, h.indexes[colID], s.keyRange, s.batchSize))
			}
			s.concat = rowset.NewConcatIterator(iters)
			s.rowOffset = 0
		}
		batch, err := s.concat.Next(ctx)
		if err != nil {
			return nil, 0, nil, err
		}
		if batch == nil {
			s.concat = nil
			s.handleIdx++
			continue
		}
		h := s.handles[s.handleIdx]
		start := s.rowOffset
		masked, consumed, ids := s.applyDeletesIdentified(h, batch, start)
		s.rowOffset += int64(consumed)
		if masked.Cardinality() == 0 {
			continue
		}
		return masked, h.rowsetID, ids, nil
	}
}

func (s *TableScan) applyDeletesIdentified(h *rowsetHandle, batch *containers.Batch, start int64) (*containers.Batch, int, []uint32) {
	dvs := s.deleteVectors[h.rowsetID]
	n := batch.Cardinality()
	bm := bitmap.NewAllValid(int64(n))
	ids := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		rowID := uint32(start + int64(i))
		dead := false
		for _, dv := range dvs {
			if dv.Contains(rowID) {
				dead = true
				break
			}
		}
		if dead {
			bm.Remove(int64(i))
			continue
		}
		ids = append(ids, rowID)
	}
	filtered, err := batch.Filter(bm)
	if err != nil {
		return batch, n, nil
	}
	return filtered, n, ids
}
