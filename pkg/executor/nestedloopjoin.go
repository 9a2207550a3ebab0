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

// NestedLoopJoinOperator evaluates cond against every (left, right) row
// pair, the always-applicable fallback per spec.md §4.5 when no equi-join
// key splits cleanly across the two sides.
type NestedLoopJoinOperator struct {
	baseOperator
	joinKind    planner.JoinKind
	cond        *planner.Term
	leftWidth   int
	rightWidth  int
	left, right Operator
}

func NewNestedLoopJoin(joinKind planner.JoinKind, cond *planner.Term, leftWidth, rightWidth int, left, right Operator) *NestedLoopJoinOperator {
	return &NestedLoopJoinOperator{joinKind: joinKind, cond: cond, leftWidth: leftWidth, rightWidth: rightWidth, left: left, right: right}
}

func (n *NestedLoopJoinOperator) Close() error {
	le := n.left.Close()
	re := n.right.Close()
	if le != nil {
		return le
	}
	return re
}

func (n *NestedLoopJoinOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if n.finished() {
		return nil, nil
	}
	out, err := n.run(ctx)
	n.done = true
	if err != nil {
		return nil, err
	}
	if out == nil || out.Cardinality() == 0 {
		return nil, nil
	}
	return out, nil
}

func (n *NestedLoopJoinOperator) run(ctx context.Context) (*containers.Batch, error) {
	leftBatch, err := drainAndConcat(ctx, n.left)
	if err != nil {
		return nil, err
	}
	rightBatch, err := drainAndConcat(ctx, n.right)
	if err != nil {
		return nil, err
	}
	nL, nR := leftBatch.Cardinality(), rightBatch.Cardinality()

	nullLeft := nullRow(n.leftWidth)
	nullRight := nullRow(n.rightWidth)

	outWidth := n.leftWidth + n.rightWidth
	var outRows [][]types.Value
	emit := func(left, right []types.Value) {
		row := make([]types.Value, outWidth)
		copy(row, left)
		copy(row[n.leftWidth:], right)
		outRows = append(outRows, row)
	}

	matchedRight := make([]bool, nR)
	for a := 0; a < nL; a++ {
		lrow := fullRow(leftBatch, a)
		anyMatch := false
		for b := 0; b < nR; b++ {
			rrow := fullRow(rightBatch, b)
			ok, err := evalCondRow(n.cond, lrow, rrow)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			anyMatch = true
			matchedRight[b] = true
			if n.joinKind != planner.JoinSemi && n.joinKind != planner.JoinAnti {
				emit(lrow, rrow)
			}
		}
		switch n.joinKind {
		case planner.JoinSemi:
			if anyMatch {
				emit(lrow, nullRight)
			}
		case planner.JoinAnti:
			if !anyMatch {
				emit(lrow, nullRight)
			}
		case planner.JoinLeft, planner.JoinFull:
			if !anyMatch {
				emit(lrow, nullRight)
			}
		}
	}
	if n.joinKind == planner.JoinRight || n.joinKind == planner.JoinFull {
		for b := 0; b < nR; b++ {
			if !matchedRight[b] {
				emit(nullLeft, fullRow(rightBatch, b))
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
