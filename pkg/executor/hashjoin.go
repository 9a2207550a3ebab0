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

// HashJoinOperator consumes the build side (right, typically the smaller
// input) entirely into a hash table keyed by rkeys, then streams the probe
// side (left), looking up key matches and applying cond as a residual
// filter after the key match, per spec.md §4.5's HashJoin contract.
type HashJoinOperator struct {
	baseOperator
	joinKind     planner.JoinKind
	cond         *planner.Term // residual predicate evaluated after key match, nil if none beyond equality
	lkeys, rkeys []*planner.Term
	leftWidth    int
	rightWidth   int
	left, right  Operator

	built      bool
	buildRows  [][]types.Value
	buildKeys  [][]types.Value
	matched    []bool
	index      map[uint64][]int

	pending    *containers.Batch
	pendingRow int
}

func NewHashJoin(joinKind planner.JoinKind, cond *planner.Term, lkeys, rkeys []*planner.Term, leftWidth, rightWidth int, left, right Operator) *HashJoinOperator {
	return &HashJoinOperator{
		joinKind: joinKind, cond: cond, lkeys: lkeys, rkeys: rkeys,
		leftWidth: leftWidth, rightWidth: rightWidth, left: left, right: right,
	}
}

func (h *HashJoinOperator) Close() error {
	le := h.left.Close()
	re := h.right.Close()
	if le != nil {
		return le
	}
	return re
}

// Next materializes the whole join result on first call (build side is
// already fully materialized by construction; the probe side is drained in
// full here too, matching the rest of this package's single-result-batch
// operators such as HashAgg and Order) and returns it; later calls signal
// end of stream.
func (h *HashJoinOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if h.finished() {
		return nil, nil
	}
	if !h.built {
		if err := h.build(ctx); err != nil {
			return h.fail(err)
		}
		h.built = true
	}
	out, err := h.probe(ctx)
	if err != nil {
		return h.fail(err)
	}
	h.done = true
	if out == nil || out.Cardinality() == 0 {
		return nil, nil
	}
	return out, nil
}

func (h *HashJoinOperator) build(ctx context.Context) error {
	h.index = map[uint64][]int{}
	for {
		batch, err := h.right.Next(ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			break
		}
		keyCols := make([]containers.Array, len(h.rkeys))
		for i, k := range h.rkeys {
			col, err := Eval(k, batch)
			if err != nil {
				return err
			}
			keyCols[i] = col
		}
		for row := 0; row < batch.Cardinality(); row++ {
			rowVals := make([]types.Value, batch.NumColumns())
			for c := 0; c < batch.NumColumns(); c++ {
				rowVals[c] = batch.Column(c).Get(row)
			}
			keyVals := make([]types.Value, len(keyCols))
			for i, c := range keyCols {
				keyVals[i] = c.Get(row)
			}
			idx := len(h.buildRows)
			h.buildRows = append(h.buildRows, rowVals)
			h.buildKeys = append(h.buildKeys, keyVals)
			h.matched = append(h.matched, false)
			digest := hashKeyValues(keyVals)
			h.index[digest] = append(h.index[digest], idx)
		}
	}
	return nil
}

func (h *HashJoinOperator) probe(ctx context.Context) (*containers.Batch, error) {
	var outRows [][]types.Value
	outWidth := h.leftWidth + h.rightWidth
	nullRight := nullRow(h.rightWidth)
	nullLeft := nullRow(h.leftWidth)

	emit := func(left, right []types.Value) {
		row := make([]types.Value, outWidth)
		copy(row, left)
		copy(row[h.leftWidth:], right)
		outRows = append(outRows, row)
	}

	for {
		batch, row, ok, err := h.nextLeftRow(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		leftVals := make([]types.Value, batch.NumColumns())
		for c := 0; c < batch.NumColumns(); c++ {
			leftVals[c] = batch.Column(c).Get(row)
		}
		keyVals := make([]types.Value, len(h.lkeys))
		for i, k := range h.lkeys {
			col, err := Eval(k, batch)
			if err != nil {
				return nil, err
			}
			keyVals[i] = col.Get(row)
		}

		anyMatch := false
		digest := hashKeyValues(keyVals)
		for _, idx := range h.index[digest] {
			if !sameKey(keyVals, h.buildKeys[idx]) {
				continue
			}
			ok, err := evalCondRow(h.cond, leftVals, h.buildRows[idx])
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
			anyMatch = true
			h.matched[idx] = true
			switch h.joinKind {
			case planner.JoinSemi:
				// emitted once below, outside the candidate loop
			case planner.JoinAnti:
				// suppressed entirely below
			default:
				emit(leftVals, h.buildRows[idx])
			}
		}

		switch h.joinKind {
		case planner.JoinSemi:
			if anyMatch {
				emit(leftVals, nullRight)
			}
		case planner.JoinAnti:
			if !anyMatch {
				emit(leftVals, nullRight)
			}
		case planner.JoinLeft, planner.JoinFull:
			if !anyMatch {
				emit(leftVals, nullRight)
			}
		}
	}

	if h.joinKind == planner.JoinRight || h.joinKind == planner.JoinFull {
		for i, m := range h.matched {
			if !m {
				emit(nullLeft, h.buildRows[i])
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

func (h *HashJoinOperator) nextLeftRow(ctx context.Context) (*containers.Batch, int, bool, error) {
	for {
		if h.pending == nil {
			b, err := h.left.Next(ctx)
			if err != nil {
				return nil, 0, false, err
			}
			if b == nil {
				return nil, 0, false, nil
			}
			h.pending = b
			h.pendingRow = 0
		}
		if h.pendingRow >= h.pending.Cardinality() {
			h.pending = nil
			continue
		}
		row := h.pendingRow
		h.pendingRow++
		return h.pending, row, true, nil
	}
}
