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

	"github.com/cespare/xxhash/v2"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// aggState accumulates one aggregate's running value across the rows of
// one group, per spec.md §4.5's HashAgg/SortAgg contract.
type aggState struct {
	op    planner.Op
	count int64
	sum   types.Value
	have  bool
	best  types.Value
	first types.Value
	last  types.Value
}

func newAggState(op planner.Op) *aggState { return &aggState{op: op} }

func (s *aggState) add(v types.Value) {
	s.count++
	if v.Null {
		return
	}
	if !s.have {
		s.first = v
	}
	s.last = v
	switch s.op {
	case planner.OpSum, planner.OpAvg:
		if !s.have {
			s.sum = v
		} else {
			sum, err := types.Add(s.sum, v)
			if err == nil {
				s.sum = sum
			}
		}
	case planner.OpMax:
		if !s.have || types.Compare(v, s.best) > 0 {
			s.best = v
		}
	case planner.OpMin:
		if !s.have || types.Compare(v, s.best) < 0 {
			s.best = v
		}
	}
	s.have = true
}

func (s *aggState) result() (types.Value, error) {
	switch s.op {
	case planner.OpCount:
		if !s.have && s.count == 0 {
			return types.Int64Value(0), nil
		}
		return types.Int64Value(s.count), nil
	case planner.OpRowCount:
		return types.Int64Value(s.count), nil
	case planner.OpSum:
		if !s.have {
			return types.NullValue(types.NewType(types.KindInt64, true)), nil
		}
		return s.sum, nil
	case planner.OpAvg:
		if !s.have {
			return types.NullValue(types.NewType(types.KindFloat64, true)), nil
		}
		return types.Div(s.sum, types.Int64Value(s.count))
	case planner.OpMax, planner.OpMin:
		if !s.have {
			return types.NullValue(types.NewType(types.KindInt64, true)), nil
		}
		return s.best, nil
	case planner.OpFirst:
		return s.first, nil
	case planner.OpLast:
		return s.last, nil
	default:
		return types.Value{}, engineerr.NewExecute("unsupported aggregate operator %d", s.op)
	}
}

// aggSpec is one requested aggregate: its op plus the scalar expr to feed
// it (nil for row-count / count(*)).
type aggSpec struct {
	op  planner.Op
	arg *planner.Term
}

func aggSpecOf(t *planner.Term) aggSpec {
	spec := aggSpec{op: t.Op}
	if len(t.Children) > 0 {
		spec.arg = t.Children[0]
	}
	return spec
}

// HashAggOperator groups child's rows by keys into one hash bucket per
// distinct key tuple, carrying each bucket's running aggregate state, and
// emits one row per bucket at end of input, per spec.md §4.5.
type HashAggOperator struct {
	baseOperator
	keys  []*planner.Term
	aggs  []*planner.Term
	child Operator

	emitted bool
	buckets map[uint64][]*bucket
}

type bucket struct {
	keyVals []types.Value
	states  []*aggState
}

func NewHashAgg(keys, aggs []*planner.Term, child Operator) *HashAggOperator {
	return &HashAggOperator{keys: keys, aggs: aggs, child: child}
}

func (h *HashAggOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if h.finished() {
		return nil, nil
	}
	if h.buckets == nil {
		if err := h.consume(ctx); err != nil {
			return h.fail(err)
		}
	}
	if h.emitted {
		return h.finish()
	}
	h.emitted = true
	return h.materialize()
}

func (h *HashAggOperator) Close() error { return h.child.Close() }

func (h *HashAggOperator) consume(ctx context.Context) error {
	h.buckets = map[uint64][]*bucket{}
	for {
		batch, err := h.child.Next(ctx)
		if err != nil {
			return err
		}
		if batch == nil {
			return nil
		}
		keyCols := make([]containers.Array, len(h.keys))
		for i, k := range h.keys {
			col, err := Eval(k, batch)
			if err != nil {
				return err
			}
			keyCols[i] = col
		}
		argCache := map[*planner.Term]containers.Array{}
		for row := 0; row < batch.Cardinality(); row++ {
			keyVals := make([]types.Value, len(keyCols))
			for i, c := range keyCols {
				keyVals[i] = c.Get(row)
			}
			b, err := h.bucketFor(keyVals)
			if err != nil {
				return err
			}
			for i, spec := range aggSpecsOf(h.aggs) {
				if spec.arg == nil {
					b.states[i].add(types.BoolValue(true))
					continue
				}
				col, ok := argCache[spec.arg]
				if !ok {
					col, err = Eval(spec.arg, batch)
					if err != nil {
						return err
					}
					argCache[spec.arg] = col
				}
				b.states[i].add(col.Get(row))
			}
		}
	}
}

func aggSpecsOf(aggs []*planner.Term) []aggSpec {
	out := make([]aggSpec, len(aggs))
	for i, a := range aggs {
		out[i] = aggSpecOf(a)
	}
	return out
}

func (h *HashAggOperator) bucketFor(keyVals []types.Value) (*bucket, error) {
	digest := hashKeyValues(keyVals)
	for _, b := range h.buckets[digest] {
		if sameKey(b.keyVals, keyVals) {
			return b, nil
		}
	}
	states := make([]*aggState, len(h.aggs))
	for i, a := range h.aggs {
		states[i] = newAggState(a.Op)
	}
	b := &bucket{keyVals: keyVals, states: states}
	h.buckets[digest] = append(h.buckets[digest], b)
	return b, nil
}

func (h *HashAggOperator) materialize() (*containers.Batch, error) {
	width := len(h.keys) + len(h.aggs)
	rows := make([][]types.Value, 0, width)
	for _, list := range h.buckets {
		for _, b := range list {
			row := make([]types.Value, width)
			copy(row, b.keyVals)
			for i, st := range b.states {
				v, err := st.result()
				if err != nil {
					return nil, err
				}
				row[len(h.keys)+i] = v
			}
			rows = append(rows, row)
		}
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

// columnTypeAcross picks column c's array type from the first non-null
// value observed in rows, so every bucket's value for that column (of
// uniform runtime kind, since they all evaluated the same expression)
// allocates a correctly-typed accumulator; falls back to Int64 only when
// every bucket's value was null.
func columnTypeAcross(rows [][]types.Value, c int) types.DataType {
	for _, row := range rows {
		if !row[c].Null {
			return row[c].Type
		}
	}
	return types.NewType(types.KindInt64, true)
}

func hashKeyValues(vals []types.Value) uint64 {
	h := xxhash.New()
	for _, v := range vals {
		_, _ = h.Write([]byte(v.String()))
		_, _ = h.Write([]byte{0})
	}
	return h.Sum64()
}

func sameKey(a, b []types.Value) bool {
	for i := range a {
		if a[i].Null != b[i].Null {
			return false
		}
		if !a[i].Null && types.Compare(a[i], b[i]) != 0 {
			return false
		}
	}
	return true
}
