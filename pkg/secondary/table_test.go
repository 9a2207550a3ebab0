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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary/block"
	"github.com/egraph-db/secondary/pkg/secondary/cache"
	"github.com/egraph-db/secondary/pkg/secondary/rowset"
	"github.com/egraph-db/secondary/pkg/types"
)

func newTestTable(t *testing.T) *Table {
	store := DiskStore{Root: t.TempDir()}
	tbl := NewTable(1, store, nil)
	c, err := cache.New(64, 2, tbl.Loader())
	require.NoError(t, err)
	t.Cleanup(c.Close)
	tbl.cache = c
	return tbl
}

func writeRowset(t *testing.T, tbl *Table, rowsetID uint64, ids []int32) {
	typ := types.NewType(types.KindInt32, false)
	descriptors := []rowset.ColumnDescriptor{{StorageID: 0, Name: "id", Type: typ, IsPrimaryKey: true}}
	b := rowset.NewBuilder(tbl.TableID, rowsetID, descriptors, block.ChecksumCRC32C, 4096)
	arr := containers.NewEmptyArray(typ)
	for _, v := range ids {
		arr.AppendValue(types.Int32Value(v))
	}
	batch, err := containers.NewBatch([]containers.Array{arr})
	require.NoError(t, err)
	require.NoError(t, b.Append(batch))
	files, _ := b.Finish()
	require.NoError(t, tbl.AddRowset(rowsetID, files, descriptors))
}

func TestTableScanAcrossRowsets(t *testing.T) {
	tbl := newTestTable(t)
	writeRowset(t, tbl, 1, []int32{1, 2, 3})
	writeRowset(t, tbl, 2, []int32{4, 5})

	scan := tbl.Scan([]uint64{0}, nil, 8)
	var got []int32
	for {
		b, err := scan.Next(context.Background())
		require.NoError(t, err)
		if b == nil {
			break
		}
		for i := 0; i < b.Cardinality(); i++ {
			got = append(got, b.Column(0).Get(i).Int32())
		}
	}
	require.Equal(t, []int32{1, 2, 3, 4, 5}, got)
}

func TestTableScanMasksDeletedRows(t *testing.T) {
	tbl := newTestTable(t)
	writeRowset(t, tbl, 1, []int32{10, 20, 30})

	dv := NewDeleteVector(1, 1)
	dv.Add(1) // delete row at position 1 within rowset 1 (value 20)
	tbl.AddDeleteVector(dv)

	scan := tbl.Scan([]uint64{0}, nil, 8)
	var got []int32
	for {
		b, err := scan.Next(context.Background())
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
