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

	"github.com/egraph-db/secondary/pkg/secondary"
	"github.com/egraph-db/secondary/pkg/secondary/rowset"
)

// CompactOnce is one background-compaction pass, per spec.md §4.7: it picks
// rowsets whose delete ratio meets minDeleteRatio, merges them into a single
// new rowset with dead rows already filtered out by the merge scan's own
// delete-vector masking, and atomically swaps the inputs out. It never
// blocks — if a writer currently holds the slot, it returns (false, nil)
// immediately so the caller can retry on its own schedule.
func (m *Manager) CompactOnce(ctx context.Context, minDeleteRatio float64) (bool, error) {
	select {
	case <-m.writeSlot:
	default:
		return false, nil
	}
	defer func() { m.writeSlot <- struct{}{} }()

	candidates := compactionCandidates(m.table.Snapshot().RowsetStats(), minDeleteRatio)
	if len(candidates) < 2 {
		return false, nil
	}

	storageColIDs := make([]uint64, len(m.descriptors))
	for i, d := range m.descriptors {
		storageColIDs[i] = d.StorageID
	}

	newRowsetID := newID()
	builder := rowset.NewBuilder(m.table.TableID, newRowsetID, m.descriptors, m.checksumKind, m.targetBlockSize)
	scan := m.table.ScanRowsets(candidates, storageColIDs, 4096)
	for {
		batch, err := scan.Next(ctx)
		if err != nil {
			return false, err
		}
		if batch == nil {
			break
		}
		if err := builder.Append(batch); err != nil {
			return false, err
		}
	}
	files, rowCount := builder.Finish()
	if err := m.table.CompactRowsets(candidates, newRowsetID, files, m.descriptors); err != nil {
		return false, err
	}
	m.log.Append(secondary.Record{
		Kind:     secondary.RecordAddRowset,
		TableID:  m.table.TableID,
		RowsetID: newRowsetID,
		RowCount: rowCount,
	})
	return true, nil
}

// compactionCandidates picks every rowset whose deleted fraction is at
// least minDeleteRatio. Empty rowsets (RowCount == 0, which should not
// occur but costs nothing to guard) are skipped.
func compactionCandidates(stats []secondary.RowsetStat, minDeleteRatio float64) []uint64 {
	var ids []uint64
	for _, s := range stats {
		if s.RowCount == 0 {
			continue
		}
		if float64(s.DeletedCount)/float64(s.RowCount) >= minDeleteRatio {
			ids = append(ids, s.RowsetID)
		}
	}
	return ids
}
