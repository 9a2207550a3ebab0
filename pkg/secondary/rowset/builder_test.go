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
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/secondary/block"
	"github.com/egraph-db/secondary/pkg/types"
)

// memBlockSource serves blocks directly out of in-memory Files, slicing by
// the parsed index entries, standing in for the real block cache in tests.
type memBlockSource struct {
	data    map[uint64][]byte
	entries map[uint64][]block.Entry
	fetches int
}

func (s *memBlockSource) FetchBlock(_ context.Context, _ uint64, storageColID uint64, blockID int) ([]byte, error) {
	s.fetches++
	e := s.entries[storageColID][blockID]
	return s.data[storageColID][e.ByteOffset : e.ByteOffset+e.ByteLength], nil
}

func buildTestRowset(t *testing.T, n int, targetBlockSize int) (Files, []ColumnDescriptor) {
	pkType := types.NewType(types.KindInt32, false)
	valType := types.NewType(types.KindString, true)
	descriptors := []ColumnDescriptor{
		{StorageID: 0, Name: "id", Type: pkType, IsPrimaryKey: true},
		{StorageID: 1, Name: "name", Type: valType},
	}
	b := NewBuilder(1, 1, descriptors, block.ChecksumCRC32C, targetBlockSize)

	idArr := containers.NewEmptyArray(pkType)
	nameArr := containers.NewEmptyArray(valType)
	for i := 0; i < n; i++ {
		idArr.AppendValue(types.Int32Value(int32(i)))
		if i%5 == 0 {
			nameArr.AppendValue(types.NullValue(valType))
		} else {
			nameArr.AppendValue(types.StringValue(fmt.Sprintf("row-%d", i)))
		}
	}
	batch, err := containers.NewBatch([]containers.Array{idArr, nameArr})
	require.NoError(t, err)
	require.NoError(t, b.Append(batch))

	files, rowCount := b.Finish()
	require.Equal(t, int64(n), rowCount)
	return files, descriptors
}

func TestRowsetBuilderRoundTrip(t *testing.T) {
	files, descriptors := buildTestRowset(t, 37, 24)

	manifest, err := Decode(files[ManifestFileName])
	require.NoError(t, err)
	require.Equal(t, int64(37), manifest.RowCount)
	require.Len(t, manifest.Columns, 2)

	idEntries, err := block.ReadIndex(files[IndexFileName(descriptors[0].StorageID)])
	require.NoError(t, err)
	require.Greater(t, len(idEntries), 1, "small target block size should force multiple blocks")

	nameEntries, err := block.ReadIndex(files[IndexFileName(descriptors[1].StorageID)])
	require.NoError(t, err)

	src := &memBlockSource{
		data: map[uint64][]byte{
			0: files[DataFileName(0)],
			1: files[DataFileName(1)],
		},
		entries: map[uint64][]block.Entry{
			0: idEntries,
			1: nameEntries,
		},
	}

	idIter := NewColumnIterator(src, 1, 0, descriptors[0].Type, idEntries, nil, 8)
	nameIter := NewColumnIterator(src, 1, 1, descriptors[1].Type, nameEntries, nil, 8)
	concat := NewConcatIterator([]*ColumnIterator{idIter, nameIter})

	ctx := context.Background()
	total := 0
	nextExpected := int32(0)
	for {
		b, err := concat.Next(ctx)
		require.NoError(t, err)
		if b == nil {
			break
		}
		for i := 0; i < b.Cardinality(); i++ {
			require.Equal(t, nextExpected, b.Column(0).Get(i).Int32())
			if nextExpected%5 == 0 {
				require.True(t, b.Column(1).Get(i).Null)
			} else {
				require.Equal(t, fmt.Sprintf("row-%d", nextExpected), b.Column(1).Get(i).String_())
			}
			nextExpected++
		}
		total += b.Cardinality()
	}
	require.Equal(t, 37, total)
}

func TestRowsetBuilderVectorColumnDoesNotPanic(t *testing.T) {
	pkType := types.NewType(types.KindInt32, false)
	vecType := types.NewVectorType(2, true)
	descriptors := []ColumnDescriptor{
		{StorageID: 0, Name: "id", Type: pkType, IsPrimaryKey: true},
		{StorageID: 1, Name: "v", Type: vecType},
	}
	b := NewBuilder(1, 1, descriptors, block.ChecksumCRC32C, 4096)

	idArr := containers.NewEmptyArray(pkType)
	vecArr := containers.NewEmptyArray(vecType)
	idArr.AppendValue(types.Int32Value(0))
	vecArr.AppendValue(types.VectorValue([]float64{1, 2}))
	idArr.AppendValue(types.Int32Value(1))
	vecArr.AppendValue(types.NullValue(vecType))

	batch, err := containers.NewBatch([]containers.Array{idArr, vecArr})
	require.NoError(t, err)
	require.NotPanics(t, func() { require.NoError(t, b.Append(batch)) })

	var files Files
	var rowCount int64
	require.NotPanics(t, func() { files, rowCount = b.Finish() })
	require.Equal(t, int64(2), rowCount)

	vecEntries, err := block.ReadIndex(files[IndexFileName(1)])
	require.NoError(t, err)

	src := &memBlockSource{
		data:    map[uint64][]byte{1: files[DataFileName(1)]},
		entries: map[uint64][]block.Entry{1: vecEntries},
	}
	iter := NewColumnIterator(src, 1, 1, vecType, vecEntries, nil, 8)
	out, err := iter.Next(context.Background())
	require.NoError(t, err)
	require.Equal(t, []float64{1, 2}, out.Get(0).Vector())
	require.True(t, out.Get(1).Null)
}

func TestKeyRangeSkipsDisjointBlocks(t *testing.T) {
	files, descriptors := buildTestRowset(t, 37, 24)
	idEntries, err := block.ReadIndex(files[IndexFileName(descriptors[0].StorageID)])
	require.NoError(t, err)
	require.Greater(t, len(idEntries), 1)

	kr := &KeyRange{HasLow: true, Low: types.Int32Value(1000)}
	for _, e := range idEntries {
		require.True(t, kr.disjointWith(e.FirstKey, e.LastKey, descriptors[0].Type))
	}
}
