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

package txn

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary"
	"github.com/egraph-db/secondary/pkg/secondary/block"
	"github.com/egraph-db/secondary/pkg/secondary/cache"
	"github.com/egraph-db/secondary/pkg/secondary/rowset"
	"github.com/egraph-db/secondary/pkg/types"
)

func newTestManager(t *testing.T) (*Manager, *secondary.Table) {
	store := secondary.DiskStore{Root: t.TempDir()}
	table := secondary.NewTable(1, store, nil)
	c, err := cache.New(64, 2, table.Loader())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	table.SetCache(c)

	descriptors := []rowset.ColumnDescriptor{
		{StorageID: 0, Name: "id", Type: types.NewType(types.KindInt32, false), IsPrimaryKey: true},
	}
	log := secondary.NewLog(nil)
	return NewManager(table, log, descriptors, block.ChecksumCRC32C, 4096), table
}

func insertBatch(t *testing.T, w *WriteTxn, ids []int32) {
	typ := types.NewType(types.KindInt32, false)
	arr := containers.NewEmptyArray(typ)
	for _, v := range ids {
		arr.AppendValue(types.Int32Value(v))
	}
	batch, err := containers.NewBatch([]containers.Array{arr})
	require.NoError(t, err)
	require.NoError(t, w.Insert(batch))
}

func TestWriteTxnCommitIsVisibleToLaterReaders(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	before := m.Read()
	beforeScan := before.Scan([]uint64{0}, nil, 8)
	batch, err := beforeScan.Next(ctx)
	require.NoError(t, err)
	require.Nil(t, batch)

	w, err := m.Write(ctx)
	require.NoError(t, err)
	insertBatch(t, w, []int32{1, 2, 3})
	require.NoError(t, w.Commit())

	after := m.Read()
	scan := after.Scan([]uint64{0}, nil, 8)
	var got []int32
	for {
		b, err := scan.Next(ctx)
		require.NoError(t, err)
		if b == nil {
			break
		}
		for i := 0; i < b.Cardinality(); i++ {
			got = append(got, b.Column(0).Get(i).Int32())
		}
	}
	require.Equal(t, []int32{1, 2, 3}, got)
}

func TestWriteTxnAbortLeavesNoTrace(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	w, err := m.Write(ctx)
	require.NoError(t, err)
	insertBatch(t, w, []int32{9})
	require.NoError(t, w.Abort())

	scan := m.Read().Scan([]uint64{0}, nil, 8)
	b, err := scan.Next(ctx)
	require.NoError(t, err)
	require.Nil(t, b)
}

func TestWriteBlocksSecondWriterUntilFirstReleases(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	w1, err := m.Write(ctx)
	require.NoError(t, err)

	ctx2, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = m.Write(ctx2)
	require.Error(t, err)

	require.NoError(t, w1.Abort())

	w2, err := m.Write(ctx)
	require.NoError(t, err)
	require.NoError(t, w2.Abort())
}

func TestDeleteMasksRowOnNextRead(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	w, err := m.Write(ctx)
	require.NoError(t, err)
	insertBatch(t, w, []int32{10, 20, 30})
	require.NoError(t, w.Commit())

	rowsetIDs := m.table.RowsetIDs()
	require.Len(t, rowsetIDs, 1)

	w2, err := m.Write(ctx)
	require.NoError(t, err)
	w2.Delete(rowsetIDs[0], 1)
	require.NoError(t, w2.Commit())

	scan := m.Read().Scan([]uint64{0}, nil, 8)
	var got []int32
	for {
		b, err := scan.Next(ctx)
		require.NoError(t, err)
		if b == nil {
			break
		}
		for i := 0; i < b.Cardinality(); i++ {
			got = append(got, b.Column(0).Get(i).Int32())
		}
	}
	require.Equal(t, []int32{10, 30}, got)
}

func TestCompactOnceMergesHeavilyDeletedRowsets(t *testing.T) {
	m, table := newTestManager(t)
	ctx := context.Background()

	w1, err := m.Write(ctx)
	require.NoError(t, err)
	insertBatch(t, w1, []int32{1, 2})
	require.NoError(t, w1.Commit())

	w2, err := m.Write(ctx)
	require.NoError(t, err)
	insertBatch(t, w2, []int32{3, 4})
	require.NoError(t, w2.Commit())

	ids := table.RowsetIDs()
	require.Len(t, ids, 2)

	w3, err := m.Write(ctx)
	require.NoError(t, err)
	w3.Delete(ids[0], 0)
	w3.Delete(ids[1], 0)
	require.NoError(t, w3.Commit())

	compacted, err := m.CompactOnce(ctx, 0.4)
	require.NoError(t, err)
	require.True(t, compacted)
	require.Len(t, table.RowsetIDs(), 1)

	scan := m.Read().Scan([]uint64{0}, nil, 8)
	var got []int32
	for {
		b, err := scan.Next(ctx)
		require.NoError(t, err)
		if b == nil {
			break
		}
		for i := 0; i < b.Cardinality(); i++ {
			got = append(got, b.Column(0).Get(i).Int32())
		}
	}
	require.ElementsMatch(t, []int32{2, 4}, got)
}
