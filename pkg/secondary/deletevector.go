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

// Package secondary is the on-disk columnar storage engine of spec.md §3,
// tying together the block codec, rowset builder/iterators, delete
// vectors, manifest log, block cache, and the per-table view the
// transaction manager operates on.
package secondary

import (
	"bytes"

	"github.com/RoaringBitmap/roaring"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

// DeleteVector is `{rowset_id, dv_id, [sorted row_ids]}` of spec.md §3.4,
// backed by a Roaring bitmap (github.com/RoaringBitmap/roaring, in the
// teacher's require block) for compact sorted row-id sets.
type DeleteVector struct {
	RowsetID uint64
	DVID     uint64
	bits     *roaring.Bitmap
}

// NewDeleteVector constructs an empty delete vector for rowsetID/dvID.
func NewDeleteVector(rowsetID, dvID uint64) *DeleteVector {
	return &DeleteVector{RowsetID: rowsetID, DVID: dvID, bits: roaring.New()}
}

// Add marks rowID deleted.
func (dv *DeleteVector) Add(rowID uint32) { dv.bits.Add(rowID) }

// Contains reports whether rowID is deleted in this vector.
func (dv *DeleteVector) Contains(rowID uint32) bool { return dv.bits.Contains(rowID) }

// Cardinality returns the number of deleted rows.
func (dv *DeleteVector) Cardinality() uint64 { return dv.bits.GetCardinality() }

// Union merges other's deleted rows into dv, used by compaction when
// folding multiple delete vectors over the same rowset into one.
func (dv *DeleteVector) Union(other *DeleteVector) {
	dv.bits.Or(other.bits)
}

// Serialize writes the delete vector file contents, per spec.md §6.3
// (`dv/{table_id}_{rowset_id}_{dv_id}.dv`).
func (dv *DeleteVector) Serialize() ([]byte, error) {
	var buf bytes.Buffer
	if _, err := dv.bits.WriteTo(&buf); err != nil {
		return nil, engineerr.NewStorage("serialize delete vector: %v", err)
	}
	return buf.Bytes(), nil
}

// DeserializeDeleteVector parses a delete vector file's contents.
func DeserializeDeleteVector(rowsetID, dvID uint64, data []byte) (*DeleteVector, error) {
	bits := roaring.New()
	if _, err := bits.ReadFrom(bytes.NewReader(data)); err != nil {
		return nil, engineerr.NewStorage("deserialize delete vector: %v", err)
	}
	return &DeleteVector{RowsetID: rowsetID, DVID: dvID, bits: bits}, nil
}
