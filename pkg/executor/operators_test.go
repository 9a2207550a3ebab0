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

package executor

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

func TestScanAppliesResidualFilter(t *testing.T) {
	batch := mustBatch(int64Col(1, 2, 3, 4))
	filter := binTerm(planner.OpGt, colIndexTerm(0), litTerm(types.Int64Value(2)))
	op := NewScan(&sliceSource{batches: []*containers.Batch{batch}}, filter)

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, 1, len(out))
	require.Equal(t, 2, out[0].Cardinality())
	require.Equal(t, int64(3), out[0].Column(0).Get(0).Int64())
	require.Equal(t, int64(4), out[0].Column(0).Get(1).Int64())
}

func TestFilterDropsNonMatchingRows(t *testing.T) {
	batch := mustBatch(int64Col(10, 20, 30))
	pred := binTerm(planner.OpEq, colIndexTerm(0), litTerm(types.Int64Value(20)))
	op := NewFilter(pred, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, 1, totalCardinality(out))
	require.Equal(t, int64(20), firstValue(out).Int64())
}

func TestProjectReordersColumns(t *testing.T) {
	batch := mustBatch(int64Col(1), stringCol("a"))
	exprs := []*planner.Term{colIndexTerm(1), colIndexTerm(0)}
	op := NewProject(exprs, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, "a", out[0].Column(0).Get(0).String_())
	require.Equal(t, int64(1), out[0].Column(1).Get(0).Int64())
}

func TestLimitOffsetSkipsThenBounds(t *testing.T) {
	batch := mustBatch(int64Col(1, 2, 3, 4, 5))
	op := NewLimit(2, 1, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, 2, totalCardinality(out))
	vals := collectInt64s(out, 0)
	require.Equal(t, []int64{2, 3}, vals)
}

func TestOrderSortsAscendingStable(t *testing.T) {
	batch := mustBatch(int64Col(3, 1, 2))
	keys := []planner.TermSortKey{{Expr: colIndexTerm(0), Desc: false}}
	op := NewOrder(keys, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, []int64{1, 2, 3}, collectInt64s(out, 0))
}

func TestTopNDescLimitOffset(t *testing.T) {
	batch := mustBatch(int64Col(3, 1, 4, 2))
	keys := []planner.TermSortKey{{Expr: colIndexTerm(0), Desc: true}}
	op := NewTopN(keys, 2, 1, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, []int64{3, 2}, collectInt64s(out, 0))
}

func TestHashAggGroupsAndSums(t *testing.T) {
	region := stringCol("east", "east", "west")
	amount := int64Col(10, 15, 7)
	batch := mustBatch(region, amount)

	keys := []*planner.Term{colIndexTerm(0)}
	aggs := []*planner.Term{{Node: planner.Node{Op: planner.OpSum}, Children: []*planner.Term{colIndexTerm(1)}}}
	op := NewHashAgg(keys, aggs, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, 1, len(out))
	require.Equal(t, 2, out[0].Cardinality())

	sums := map[string]int64{}
	for i := 0; i < out[0].Cardinality(); i++ {
		sums[out[0].Column(0).Get(i).String_()] = out[0].Column(1).Get(i).Int64()
	}
	require.Equal(t, int64(25), sums["east"])
	require.Equal(t, int64(7), sums["west"])
}

func totalCardinality(batches []*containers.Batch) int {
	n := 0
	for _, b := range batches {
		n += b.Cardinality()
	}
	return n
}

func firstValue(batches []*containers.Batch) types.Value {
	return batches[0].Column(0).Get(0)
}

func collectInt64s(batches []*containers.Batch, col int) []int64 {
	var out []int64
	for _, b := range batches {
		for i := 0; i < b.Cardinality(); i++ {
			out = append(out, b.Column(col).Get(i).Int64())
		}
	}
	return out
}

type fakeInserter struct {
	batches []*containers.Batch
}

func (f *fakeInserter) Insert(batch *containers.Batch) error {
	f.batches = append(f.batches, batch)
	return nil
}

func TestInsertAccumulatesBatchesAndReportsCount(t *testing.T) {
	batch := mustBatch(int64Col(1, 2, 3))
	ins := &fakeInserter{}
	op := NewInsert(ins, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	out, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, 1, len(out))
	require.Equal(t, int64(3), out[0].Column(0).Get(0).Int64())
	require.Equal(t, 1, len(ins.batches))
}

type fakeDeleter struct {
	deleted map[uint64][]uint32
}

func (f *fakeDeleter) Delete(rowsetID uint64, rowID uint32) {
	if f.deleted == nil {
		f.deleted = map[uint64][]uint32{}
	}
	f.deleted[rowsetID] = append(f.deleted[rowsetID], rowID)
}

func TestDeleteMarksEachIdentityPair(t *testing.T) {
	batch := mustBatch(int64Col(1, 1, 2), int64Col(0, 1, 0))
	del := &fakeDeleter{}
	op := NewDelete(del, NewScan(&sliceSource{batches: []*containers.Batch{batch}}, nil))

	_, err := drainAll(op)
	require.NoError(t, err)
	require.Equal(t, []uint32{0, 1}, del.deleted[1])
	require.Equal(t, []uint32{0}, del.deleted[2])
}
