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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/secondary/rowset"
	"github.com/egraph-db/secondary/pkg/types"
)

func TestManifestLogReplayRoundTrip(t *testing.T) {
	log := NewLog(nil)
	var data []byte
	data = append(data, log.Append(Record{
		Kind:    RecordAddTable,
		TableID: 7,
		Columns: []rowset.ColumnDescriptor{
			{StorageID: 0, Name: "id", Type: types.NewType(types.KindInt32, false), IsPrimaryKey: true},
			{StorageID: 1, Name: "name", Type: types.NewType(types.KindString, true)},
		},
	})...)
	data = append(data, log.Append(Record{
		Kind:     RecordAddRowset,
		TableID:  7,
		RowsetID: 1,
		RowCount: 100,
	})...)
	data = append(data, log.Append(Record{
		Kind:     RecordAddDeleteVector,
		TableID:  7,
		RowsetID: 1,
		DVID:     1,
	})...)

	records, err := ReplayLog(data)
	require.NoError(t, err)
	require.Len(t, records, 3)
	require.Equal(t, RecordAddTable, records[0].Kind)
	require.Len(t, records[0].Columns, 2)
	require.Equal(t, "id", records[0].Columns[0].Name)
	require.True(t, records[0].Columns[0].IsPrimaryKey)
	require.Equal(t, "name", records[0].Columns[1].Name)
	require.Equal(t, types.KindString, records[0].Columns[1].Type.Kind)
	require.Equal(t, int64(100), records[1].RowCount)
	require.Equal(t, uint64(1), records[2].DVID)
}

func TestManifestLogDetectsChecksumCorruption(t *testing.T) {
	log := NewLog(nil)
	data := log.Append(Record{Kind: RecordAddRowset, TableID: 1, RowsetID: 1, RowCount: 5})
	data[len(data)-1] ^= 0xFF
	_, err := ReplayLog(data)
	require.Error(t, err)
}

func TestDeleteVectorSerializeRoundTrip(t *testing.T) {
	dv := NewDeleteVector(1, 1)
	dv.Add(3)
	dv.Add(9)
	dv.Add(100)
	raw, err := dv.Serialize()
	require.NoError(t, err)

	out, err := DeserializeDeleteVector(1, 1, raw)
	require.NoError(t, err)
	require.True(t, out.Contains(3))
	require.True(t, out.Contains(9))
	require.True(t, out.Contains(100))
	require.False(t, out.Contains(4))
	require.Equal(t, uint64(3), out.Cardinality())
}

func TestDeleteVectorUnion(t *testing.T) {
	a := NewDeleteVector(1, 1)
	a.Add(1)
	b := NewDeleteVector(1, 2)
	b.Add(2)
	a.Union(b)
	require.True(t, a.Contains(1))
	require.True(t, a.Contains(2))
}
