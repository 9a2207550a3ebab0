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

// Package txn implements the per-table read()/write()/update() contract of
// spec.md §4.7 on top of pkg/secondary's Table: single-writer serialization,
// a manifest-append commit, and background compaction. Grounded on the
// teacher's pkg/vm/engine/tae/txn/txnimpl/store.go per-table store and its
// single-writer/ApplyCommit/ApplyRollback lifecycle, generalized to spec.md's
// simpler contract (no WAL beyond the manifest, per spec.md's Non-goals).
package txn

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/egraph-db/secondary/pkg/secondary"
	"github.com/egraph-db/secondary/pkg/secondary/rowset"
)

// ReadTxn is a handle to an immutable snapshot of one table, acquired at
// read() time; every Scan it opens sees the same rowset list and delete
// vectors regardless of commits that land afterward.
type ReadTxn struct {
	ID       uuid.UUID
	snapshot *secondary.TableSnapshot
}

// Scan opens a streaming reader over the snapshot this ReadTxn froze at
// acquisition time.
func (r *ReadTxn) Scan(storageColIDs []uint64, keyRange *rowset.KeyRange, batchSize int) *secondary.TableScan {
	return r.snapshot.Scan(storageColIDs, keyRange, batchSize)
}

// newID derives a uint64 id from a fresh UUID, the scheme pkg/secondary uses
// throughout for rowset_id/dv_id (naming.go's `{table_id}_{rowset_id}`
// directories are numeric, but nothing about spec.md's contract requires
// them to be sequential — a random, collision-free uint64 is simpler to
// generate under concurrent writers than a shared counter).
func newID() uint64 {
	u := uuid.New()
	return binary.BigEndian.Uint64(u[:8])
}
