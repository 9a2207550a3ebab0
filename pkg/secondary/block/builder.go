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
	"github.com/egraph-db/secondary/pkg/types"
)

// maxBlockRows bounds a single block's row count at 64 Ki, per spec.md §3.3,
// independent of the RLE run-length split already enforced in EncodeRLE.
const maxBlockRows = 1 << 16

// Builder accumulates values for one column block and decides, via
// ShouldFinish, when the active block has grown enough to flush. One Builder
// is reused across the blocks of a column; grounded on
// original_source/src/storage/secondary/block/{primitive_block_builder,
// rle_primitive_block_builder}.rs, which keep an estimated byte size and
// flush when the next item would exceed the configured target.
type Builder struct {
	typ          types.DataType
	kind         Type
	checksumKind ChecksumKind
	targetSize   int
	isString     bool
	values       []types.Value
	estBytes     int
}

// NewBuilder constructs a block builder for typ, picking the block kind
// suited to the column: RLE for low-cardinality-friendly columns when
// useRLE is requested by the caller, plain/plain-nullable for the rest, and
// var-width for string/blob.
func NewBuilder(typ types.DataType, checksumKind ChecksumKind, targetSize int, useRLE bool) *Builder {
	var kind Type
	switch {
	case typ.Kind == types.KindString || typ.Kind == types.KindBlob:
		kind = TypeVarWidth
	case useRLE:
		kind = TypeRLE
	case typ.Nullable:
		kind = TypePlainNullable
	default:
		kind = TypePlain
	}
	return &Builder{
		typ:          typ,
		kind:         kind,
		checksumKind: checksumKind,
		targetSize:   targetSize,
		isString:     typ.Kind == types.KindString,
	}
}

func (b *Builder) itemSize(v types.Value) int {
	if w, ok := b.typ.FixedWidth(); ok {
		if b.kind == TypePlainNullable {
			return w + 1
		}
		return w
	}
	n := 4 // offset entry
	if !v.Null {
		if b.isString {
			n += len(v.String_())
		} else {
			n += len(v.Blob())
		}
	}
	return n
}

// ShouldFinish reports whether appending next to the active block would
// exceed the target size or the 64 Ki row-count bound; an empty builder
// always accepts its first item regardless of size.
func (b *Builder) ShouldFinish(next types.Value) bool {
	if len(b.values) == 0 {
		return false
	}
	if len(b.values) >= maxBlockRows {
		return true
	}
	return b.estBytes+b.itemSize(next) > b.targetSize
}

// Append adds v to the active block. Callers must first check ShouldFinish
// and flush when it returns true.
func (b *Builder) Append(v types.Value) {
	b.values = append(b.values, v)
	b.estBytes += b.itemSize(v)
}

// Len reports the number of rows accumulated in the active block.
func (b *Builder) Len() int { return len(b.values) }

// Kind reports the block encoding this builder emits.
func (b *Builder) Kind() Type { return b.kind }

// Values exposes the accumulated rows, used to compute first_key/last_key
// for primary-key columns before Finish resets the builder.
func (b *Builder) Values() []types.Value { return b.values }

// Finish encodes the accumulated values into a complete block (header +
// payload, per spec.md §6.3) and resets the builder for the next block.
func (b *Builder) Finish() []byte {
	var payload []byte
	switch b.kind {
	case TypePlain:
		payload = EncodePlain(b.typ, b.values)
	case TypePlainNullable:
		payload = EncodePlainNullable(b.typ, b.values)
	case TypeRLE:
		payload = EncodeRLE(b.typ, b.values, b.typ.Nullable)
	case TypeVarWidth:
		payload = EncodeVarWidth(b.values, b.isString, b.typ.Nullable)
	}
	out := Encode(b.kind, b.checksumKind, payload)
	b.values = nil
	b.estBytes = 0
	return out
}
