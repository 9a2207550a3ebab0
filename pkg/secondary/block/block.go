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

// Package block implements the per-column block encodings of spec.md §3.3:
// plain, plain-nullable, RLE, and char/varchar. Grounded on
// original_source/src/storage/secondary/block/{primitive_block_builder,
// primitive_nullable_block_builder,rle_primitive_block_builder}.rs for the
// on-disk shape, and on the teacher's object/block lifecycle idiom in
// pkg/vm/engine/tae/tables/{base,obj}.go and
// pkg/vm/engine/tae/index/access/impl/block.go for checksum/header handling.
package block

import (
	"encoding/binary"
	"hash/crc32"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

// Type identifies the block-kind-specific byte layout that follows the
// fixed header, per spec.md §3.3.
type Type int32

const (
	TypePlain Type = iota
	TypePlainNullable
	TypeRLE
	TypeVarWidth
)

// ChecksumKind selects the checksum scheme over block bytes, per spec.md §4.6.
type ChecksumKind int32

const (
	ChecksumNone ChecksumKind = iota
	ChecksumCRC32C
)

// headerSize is the fixed 16-byte block header of spec.md §6.3:
// `| block_type (i32) | checksum_type (i32) | checksum (u64) |`.
const headerSize = 4 + 4 + 8

// MaxRunLength bounds RLE run lengths to fit a u16 field, per spec.md §3.3
// ("row_count per block ≤ 64 Ki to fit run-length fields").
const MaxRunLength = 1<<16 - 1

var crc32cTable = crc32.MakeTable(crc32.Castagnoli)

func checksumOf(kind ChecksumKind, payload []byte) uint64 {
	switch kind {
	case ChecksumNone:
		return 0
	case ChecksumCRC32C:
		return uint64(crc32.Checksum(payload, crc32cTable))
	default:
		return 0
	}
}

// Encode writes a header followed by payload.
func Encode(typ Type, checksumKind ChecksumKind, payload []byte) []byte {
	out := make([]byte, headerSize+len(payload))
	binary.LittleEndian.PutUint32(out[0:4], uint32(typ))
	binary.LittleEndian.PutUint32(out[4:8], uint32(checksumKind))
	binary.LittleEndian.PutUint64(out[8:16], checksumOf(checksumKind, payload))
	copy(out[headerSize:], payload)
	return out
}

// DecodeHeader parses the fixed header and returns the remaining payload,
// validating the checksum when one is configured. rowsetID/columnID/blockID
// are used only to tag a checksum-mismatch error, per spec.md §7.
func DecodeHeader(raw []byte, rowsetID, columnID, blockID uint64) (Type, []byte, error) {
	if len(raw) < headerSize {
		return 0, nil, engineerr.NewStorage("block too short: %d bytes", len(raw))
	}
	typ := Type(binary.LittleEndian.Uint32(raw[0:4]))
	checksumKind := ChecksumKind(binary.LittleEndian.Uint32(raw[4:8]))
	checksum := binary.LittleEndian.Uint64(raw[8:16])
	payload := raw[headerSize:]
	if checksumKind != ChecksumNone {
		if got := checksumOf(checksumKind, payload); got != checksum {
			return 0, nil, engineerr.ErrChecksumMismatch(rowsetID, columnID, blockID)
		}
	}
	return typ, payload, nil
}
