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
	"encoding/binary"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/types"
)

// ColumnDescriptor is one column's frozen-at-write-time descriptor, per
// spec.md §3.3 ("one MANIFEST with the ordered column descriptors frozen at
// write time").
type ColumnDescriptor struct {
	StorageID    uint64
	Name         string
	Type         types.DataType
	IsPrimaryKey bool
	RLE          bool
}

// Manifest is the ordered column descriptor list for one rowset.
type Manifest struct {
	RowCount int64
	Columns  []ColumnDescriptor
}

// Encode serializes the rowset manifest. The byte layout is bespoke rather
// than a general-purpose marshaler (no third-party serialization library in
// the example pack produces the spec's length-prefixed, checksum-bearing
// layout used throughout storage on-disk files; see DESIGN.md) but follows
// the same length-prefixed-record shape as block.Entry.
func Encode(m Manifest) []byte {
	out := make([]byte, 0, 64)
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], uint64(m.RowCount))
	out = append(out, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(m.Columns)))
	out = append(out, tmp[:4]...)
	for _, c := range m.Columns {
		out = appendColumnDescriptor(out, c)
	}
	return out
}

func appendColumnDescriptor(out []byte, c ColumnDescriptor) []byte {
	var tmp [8]byte
	binary.LittleEndian.PutUint64(tmp[:], c.StorageID)
	out = append(out, tmp[:]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(len(c.Name)))
	out = append(out, tmp[:4]...)
	out = append(out, c.Name...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(c.Type.Kind))
	out = append(out, tmp[:4]...)
	flags := byte(0)
	if c.Type.Nullable {
		flags |= 1
	}
	if c.IsPrimaryKey {
		flags |= 2
	}
	if c.RLE {
		flags |= 4
	}
	out = append(out, flags)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(c.Type.Precision))
	out = append(out, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(c.Type.Scale))
	out = append(out, tmp[:4]...)
	binary.LittleEndian.PutUint32(tmp[:4], uint32(c.Type.Dim))
	out = append(out, tmp[:4]...)
	return out
}

// Decode parses a manifest previously produced by Encode.
func Decode(raw []byte) (Manifest, error) {
	if len(raw) < 12 {
		return Manifest{}, engineerr.NewStorage("rowset manifest truncated")
	}
	var m Manifest
	m.RowCount = int64(binary.LittleEndian.Uint64(raw[0:8]))
	numCols := int(binary.LittleEndian.Uint32(raw[8:12]))
	off := 12
	for i := 0; i < numCols; i++ {
		c, n, err := decodeColumnDescriptor(raw[off:])
		if err != nil {
			return Manifest{}, err
		}
		m.Columns = append(m.Columns, c)
		off += n
	}
	return m, nil
}

func decodeColumnDescriptor(raw []byte) (ColumnDescriptor, int, error) {
	if len(raw) < 12 {
		return ColumnDescriptor{}, 0, engineerr.NewStorage("column descriptor truncated")
	}
	var c ColumnDescriptor
	off := 0
	c.StorageID = binary.LittleEndian.Uint64(raw[off:])
	off += 8
	nameLen := int(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	if len(raw) < off+nameLen+1+12 {
		return ColumnDescriptor{}, 0, engineerr.NewStorage("column descriptor truncated")
	}
	c.Name = string(raw[off : off+nameLen])
	off += nameLen
	kind := types.Kind(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	flags := raw[off]
	off++
	precision := int32(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	scale := int32(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	dim := int32(binary.LittleEndian.Uint32(raw[off:]))
	off += 4
	nullable := flags&1 != 0
	c.IsPrimaryKey = flags&2 != 0
	c.RLE = flags&4 != 0
	switch kind {
	case types.KindDecimal:
		c.Type = types.NewDecimalType(precision, scale, nullable)
	case types.KindVector:
		c.Type = types.NewVectorType(int(dim), nullable)
	default:
		c.Type = types.NewType(kind, nullable)
	}
	return c, off, nil
}
