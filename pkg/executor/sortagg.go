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

// SortAggOperator assumes child is already ordered by keys and emits one
// row per contiguous run of equal keys, carrying only the single active
// run's aggregate state rather than materializing child's input, per
// spec.md §4.5's SortAgg contract ("uses O(k) memory").
type SortAggOperator struct {
	baseOperator
	keys  []*planner.Term
	aggs  []*planner.Term
	child Operator

	pending    *containers.Batch
	pendingRow int
}

func NewSortAgg(keys, aggs []*planner.Term, child Operator) *SortAggOperator {
	return &SortAggOperator{keys: keys, aggs: aggs, child: child}
}

// Next runs the whole child stream to completion and emits every group in
// one batch: grouping still costs only one active run's state at a time,
// but the output rows accumulate across the full drain since this
// operator, like Order, emits a single result batch rather than a stream
// of partial ones.
func (s *SortAggOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if s.finished() {
		return nil, nil
	}
	out, err := s.run(ctx)
	if err != nil {
		return s.fail(err)
	}
	s.done = true
	if out == nil || out.Cardinality() == 0 {
		return nil, nil
	}
	return out, nil
}

func (s *SortAggOperator) Close() error { return s.child.Close() }

func (s *SortAggOperator) run(ctx context.Context) (*containers.Batch, error) {
	var curKey []types.Value
	var states []*aggState
	haveRun := false
	var outKeys [][]types.Value
	var outVals [][]types.Value

	flush := func() {
		if !haveRun {
			return
		}
		row := make([]types.Value, len(states))
		for i, st := range states {
			v, _ := st.result()
			row[i] = v
		}
		outKeys = append(outKeys, curKey)
		outVals = append(outVals, row)
	}
	startRun := func(keyVals []types.Value) {
		curKey = keyVals
		states = make([]*aggState, len(s.aggs))
		for i, a := range s.aggs {
			states[i] = newAggState(a.Op)
		}
		haveRun = true
	}

	for {
		batch, row, ok, err := s.nextRow(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			flush()
			break
		}
		keyVals := make([]types.Value, len(s.keys))
		for i, k := range s.keys {
			col, err := Eval(k, batch)
			if err != nil {
				return nil, err
			}
			keyVals[i] = col.Get(row)
		}
		if haveRun && !sameKey(curKey, keyVals) {
			flush()
			haveRun = false
		}
		if !haveRun {
			startRun(keyVals)
		}
		for i, a := range s.aggs {
			if len(a.Children) == 0 {
				states[i].add(types.BoolValue(true))
				continue
			}
			col, err := Eval(a.Children[0], batch)
			if err != nil {
				return nil, err
			}
			states[i].add(col.Get(row))
		}
	}

	if len(outKeys) == 0 {
		return nil, nil
	}
	return rowsToBatch(outKeys, outVals)
}

// nextRow yields the batch/row-index pairs of child's stream one row at a
// time, fetching a new batch only once the current one is exhausted.
func (s *SortAggOperator) nextRow(ctx context.Context) (*containers.Batch, int, bool, error) {
	for {
		if s.pending == nil {
			b, err := s.child.Next(ctx)
			if err != nil {
				return nil, 0, false, err
			}
			if b == nil {
				return nil, 0, false, nil
			}
			s.pending = b
			s.pendingRow = 0
		}
		if s.pendingRow >= s.pending.Cardinality() {
			s.pending = nil
			continue
		}
		row := s.pendingRow
		s.pendingRow++
		return s.pending, row, true, nil
	}
}

func rowsToBatch(keys, vals [][]types.Value) (*containers.Batch, error) {
	width := len(keys[0]) + len(vals[0])
	rows := make([][]types.Value, len(keys))
	for i := range keys {
		row := make([]types.Value, width)
		copy(row, keys[i])
		copy(row[len(keys[i]):], vals[i])
		rows[i] = row
	}
	cols := make([]containers.Array, width)
	for c := 0; c < width; c++ {
		cols[c] = containers.NewEmptyArray(columnTypeAcross(rows, c))
	}
	for _, row := range rows {
		for c, v := range row {
			cols[c].AppendValue(v)
		}
	}
	return containers.NewBatch(cols)
}
