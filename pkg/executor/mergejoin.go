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
	"context"

	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// MergeJoinOperator assumes both sides are already ordered ascending by
// their respective join keys (per RuleMergeJoinPromote's
// TableIsSortedByPrimaryKey precondition) and walks them with two cursors,
// matching equal-key runs pairwise, per spec.md §4.5's MergeJoin contract.
type MergeJoinOperator struct {
	baseOperator
	joinKind     planner.JoinKind
	cond         *planner.Term
	lkeys, rkeys []*planner.Term
	leftWidth    int
	rightWidth   int
	left, right  Operator
}

func NewMergeJoin(joinKind planner.JoinKind, cond *planner.Term, lkeys, rkeys []*planner.Term, leftWidth, rightWidth int, left, right Operator) *MergeJoinOperator {
	return &MergeJoinOperator{joinKind: joinKind, cond: cond, lkeys: lkeys, rkeys: rkeys, leftWidth: leftWidth, rightWidth: rightWidth, left: left, right: right}
}

func (m *MergeJoinOperator) Close() error {
	le := m.left.Close()
	re := m.right.Close()
	if le != nil {
		return le
	}
	return re
}

func (m *MergeJoinOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if m.finished() {
		return nil, nil
	}
	out, err := m.run(ctx)
	m.done = true
	if err != nil {
		return nil, err
	}
	if out == nil || out.Cardinality() == 0 {
		return nil, nil
	}
	return out, nil
}

func (m *MergeJoinOperator) run(ctx context.Context) (*containers.Batch, error) {
	leftBatch, err := drainAndConcat(ctx, m.left)
	if err != nil {
		return nil, err
	}
	rightBatch, err := drainAndConcat(ctx, m.right)
	if err != nil {
		return nil, err
	}

	lkeyCols, err := evalKeyTerms(m.lkeys, leftBatch)
	if err != nil {
		return nil, err
	}
	rkeyCols, err := evalKeyTerms(m.rkeys, rightBatch)
	if err != nil {
		return nil, err
	}

	nL, nR := leftBatch.Cardinality(), rightBatch.Cardinality()
	leftRow := func(i int) []types.Value { return fullRow(leftBatch, i) }
	rightRow := func(i int) []types.Value { return fullRow(rightBatch, i) }
	nullLeft := nullRow(m.leftWidth)
	nullRight := nullRow(m.rightWidth)

	outWidth := m.leftWidth + m.rightWidth
	var outRows [][]types.Value
	emit := func(left, right []types.Value) {
		row := make([]types.Value, outWidth)
		copy(row, left)
		copy(row[m.leftWidth:], right)
		outRows = append(outRows, row)
	}

	matchedRight := make([]bool, nR)
	li, ri := 0, 0
	for li < nL && ri < nR {
		cmp := compareKeyRow(lkeyCols, li, rkeyCols, ri)
		switch {
		case cmp < 0:
			if m.joinKind == planner.JoinLeft || m.joinKind == planner.JoinFull || m.joinKind == planner.JoinAnti {
				emit(leftRow(li), nullRight)
			}
			li++
		case cmp > 0:
			ri++
		default:
			lEnd := li
			for lEnd < nL && compareKeyRow(lkeyCols, lEnd, lkeyCols, li) == 0 {
				lEnd++
			}
			rEnd := ri
			for rEnd < nR && compareKeyRow(rkeyCols, rEnd, rkeyCols, ri) == 0 {
				rEnd++
			}
			for a := li; a < lEnd; a++ {
				anyMatch := false
				for b := ri; b < rEnd; b++ {
					ok, err := evalCondRow(m.cond, leftRow(a), rightRow(b))
					if err != nil {
						return nil, err
					}
					if !ok {
						continue
					}
					anyMatch = true
					matchedRight[b] = true
					if m.joinKind != planner.JoinSemi && m.joinKind != planner.JoinAnti {
						emit(leftRow(a), rightRow(b))
					}
				}
				switch m.joinKind {
				case planner.JoinSemi:
					if anyMatch {
						emit(leftRow(a), nullRight)
					}
				case planner.JoinAnti:
					if !anyMatch {
						emit(leftRow(a), nullRight)
					}
				case planner.JoinLeft, planner.JoinFull:
					if !anyMatch {
						emit(leftRow(a), nullRight)
					}
				}
			}
			li, ri = lEnd, rEnd
		}
	}
	for ; li < nL; li++ {
		if m.joinKind == planner.JoinLeft || m.joinKind == planner.JoinFull || m.joinKind == planner.JoinAnti {
			emit(leftRow(li), nullRight)
		}
	}
	if m.joinKind == planner.JoinRight || m.joinKind == planner.JoinFull {
		for b := 0; b < nR; b++ {
			if !matchedRight[b] {
				emit(nullLeft, rightRow(b))
			}
		}
	}

	if len(outRows) == 0 {
		return nil, nil
	}
	cols := make([]containers.Array, outWidth)
	for c := 0; c < outWidth; c++ {
		cols[c] = containers.NewEmptyArray(columnTypeAcross(outRows, c))
	}
	for _, row := range outRows {
		for c, v := range row {
			cols[c].AppendValue(v)
		}
	}
	return containers.NewBatch(cols)
}

func evalKeyTerms(keys []*planner.Term, batch *containers.Batch) ([]containers.Array, error) {
	cols := make([]containers.Array, len(keys))
	for i, k := range keys {
		col, err := Eval(k, batch)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

func compareKeyRow(cols []containers.Array, i int, other []containers.Array, j int) int {
	for k := range cols {
		cmp := compareNullsFirst(cols[k].Get(i), other[k].Get(j))
		if cmp != 0 {
			return cmp
		}
	}
	return 0
}

func fullRow(batch *containers.Batch, row int) []types.Value {
	out := make([]types.Value, batch.NumColumns())
	for c := range out {
		out[c] = batch.Column(c).Get(row)
	}
	return out
}
