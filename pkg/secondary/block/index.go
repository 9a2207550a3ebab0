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

package block

import (
	"encoding/binary"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
)

// indexMagic is the index-file footer magic of spec.md §6.3.
const indexMagic = 0x00002333

// footerSize is the fixed 24-byte footer:
// `magic (u32) | block_count (u64) | checksum_type (i32) | checksum (u64)`.
const footerSize = 4 + 8 + 4 + 8

// Entry is one block index record, per spec.md §3.3: the row range and
// byte range of a block, plus the primary-key bounds when the column is
// sorted.
type Entry struct {
	FirstRowID uint64
	RowCount   uint64
	ByteOffset uint64
	ByteLength uint64
	HasKeys    bool
	FirstKey   []byte
	LastKey    []byte
}

func encodeEntry(e Entry) []byte {
	keyLen := 0
	if e.HasKeys {
		keyLen = 4 + len(e.FirstKey) + 4 + len(e.LastKey)
	}
	body := make([]byte, 8+8+8+8+1+keyLen)
	off := 0
	binary.LittleEndian.PutUint64(body[off:], e.FirstRowID)
	off += 8
	binary.LittleEndian.PutUint64(body[off:], e.RowCount)
	off += 8
	binary.LittleEndian.PutUint64(body[off:], e.ByteOffset)
	off += 8
	binary.LittleEndian.PutUint64(body[off:], e.ByteLength)
	off += 8
	if e.HasKeys {
		body[off] = 1
	}
	off++
	if e.HasKeys {
		binary.LittleEndian.PutUint32(body[off:], uint32(len(e.FirstKey)))
		off += 4
		copy(body[off:], e.FirstKey)
		off += len(e.FirstKey)
		binary.LittleEndian.PutUint32(body[off:], uint32(len(e.LastKey)))
		off += 4
		copy(body[off:], e.LastKey)
		off += len(e.LastKey)
	}
	out := make([]byte, 4+len(body))
	binary.LittleEndian.PutUint32(out[0:4], uint32(len(body)))
	copy(out[4:], body)
	return out
}

func decodeEntry(raw []byte) (Entry, int, error) {
	if len(raw) < 4 {
		return Entry{}, 0, engineerr.NewStorage("index record truncated")
	}
	recLen := int(binary.LittleEndian.Uint32(raw[0:4]))
	if len(raw) < 4+recLen {
		return Entry{}, 0, engineerr.NewStorage("index record truncated")
	}
	body := raw[4 : 4+recLen]
	var e Entry
	off := 0
	e.FirstRowID = binary.LittleEndian.Uint64(body[off:])
	off += 8
	e.RowCount = binary.LittleEndian.Uint64(body[off:])
	off += 8
	e.ByteOffset = binary.LittleEndian.Uint64(body[off:])
	off += 8
	e.ByteLength = binary.LittleEndian.Uint64(body[off:])
	off += 8
	e.HasKeys = body[off] != 0
	off++
	if e.HasKeys {
		fkLen := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		e.FirstKey = append([]byte(nil), body[off:off+fkLen]...)
		off += fkLen
		lkLen := int(binary.LittleEndian.Uint32(body[off:]))
		off += 4
		e.LastKey = append([]byte(nil), body[off:off+lkLen]...)
		off += lkLen
	}
	return e, 4 + recLen, nil
}

// IndexWriter accumulates block index entries for one column's .idx file and
// finalizes them with the footer of spec.md §6.3.
type IndexWriter struct {
	checksumKind ChecksumKind
	buf          []byte
	count        uint64
}

func NewIndexWriter(checksumKind ChecksumKind) *IndexWriter {
	return &IndexWriter{checksumKind: checksumKind}
}

func (w *IndexWriter) Add(e Entry) {
	w.buf = append(w.buf, encodeEntry(e)...)
	w.count++
}

// Finish returns the complete .idx file contents: length-delimited entries
// followed by the fixed footer. The footer checksum covers the entry bytes
// written so far.
func (w *IndexWriter) Finish() []byte {
	footer := make([]byte, footerSize)
	binary.LittleEndian.PutUint32(footer[0:4], indexMagic)
	binary.LittleEndian.PutUint64(footer[4:12], w.count)
	binary.LittleEndian.PutUint32(footer[12:16], uint32(w.checksumKind))
	binary.LittleEndian.PutUint64(footer[16:24], checksumOf(w.checksumKind, w.buf))
	return append(w.buf, footer...)
}

// ReadIndex parses a complete .idx file, validating the footer magic and
// checksum, and returns the ordered block index entries.
func ReadIndex(raw []byte) ([]Entry, error) {
	if len(raw) < footerSize {
		return nil, engineerr.NewStorage("index file too short")
	}
	body := raw[:len(raw)-footerSize]
	footer := raw[len(raw)-footerSize:]
	magic := binary.LittleEndian.Uint32(footer[0:4])
	if magic != indexMagic {
		return nil, engineerr.NewStorage("index file footer magic mismatch")
	}
	blockCount := binary.LittleEndian.Uint64(footer[4:12])
	checksumKind := ChecksumKind(int32(binary.LittleEndian.Uint32(footer[12:16])))
	checksum := binary.LittleEndian.Uint64(footer[16:24])
	if checksumKind != ChecksumNone {
		if got := checksumOf(checksumKind, body); got != checksum {
			return nil, engineerr.NewStorage("index file checksum mismatch")
		}
	}
	entries := make([]Entry, 0, blockCount)
	off := 0
	for off < len(body) {
		e, n, err := decodeEntry(body[off:])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		off += n
	}
	if uint64(len(entries)) != blockCount {
		return nil, engineerr.NewStorage("index file block count mismatch: header=%d parsed=%d", blockCount, len(entries))
	}
	return entries, nil
}
