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
	"sort"

	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// OrderOperator materializes every batch from child, sorts rows stably by
// keys (null first, smallest first), and re-emits the result as a single
// batch, per spec.md §4.5's Order contract.
type OrderOperator struct {
	baseOperator
	keys  []planner.TermSortKey
	child Operator
	sorted *containers.Batch
	sent   bool
}

func NewOrder(keys []planner.TermSortKey, child Operator) *OrderOperator {
	return &OrderOperator{keys: keys, child: child}
}

func (o *OrderOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if o.finished() {
		return nil, nil
	}
	if o.sorted == nil {
		batch, err := drainAndConcat(ctx, o.child)
		if err != nil {
			return o.fail(err)
		}
		cols, err := evalKeyColumns(o.keys, batch)
		if err != nil {
			return o.fail(err)
		}
		order := sortOrder(batch.Cardinality(), cols, o.keys)
		o.sorted = permute(batch, order)
	}
	if o.sent {
		return o.finish()
	}
	o.sent = true
	if o.sorted.Cardinality() == 0 {
		return o.finish()
	}
	return o.sorted, nil
}

func (o *OrderOperator) Close() error { return o.child.Close() }

// drainAndConcat pulls every batch from op and concatenates them into one.
func drainAndConcat(ctx context.Context, op Operator) (*containers.Batch, error) {
	var chunks []*containers.Batch
	for {
		b, err := op.Next(ctx)
		if err != nil {
			return nil, err
		}
		if b == nil {
			break
		}
		chunks = append(chunks, b)
	}
	return containers.Concat(chunks)
}

func evalKeyColumns(keys []planner.TermSortKey, batch *containers.Batch) ([]containers.Array, error) {
	cols := make([]containers.Array, len(keys))
	for i, k := range keys {
		col, err := Eval(k.Expr, batch)
		if err != nil {
			return nil, err
		}
		cols[i] = col
	}
	return cols, nil
}

// sortOrder returns a stable permutation of [0, n) ordering rows by cols
// per keys' ascending/descending and null-first-smallest semantics.
func sortOrder(n int, cols []containers.Array, keys []planner.TermSortKey) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		for k, col := range cols {
			va, vb := col.Get(a), col.Get(b)
			cmp := compareNullsFirst(va, vb)
			if keys[k].Desc {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return false
	})
	return order
}

func compareNullsFirst(a, b types.Value) int {
	switch {
	case a.Null && b.Null:
		return 0
	case a.Null:
		return -1
	case b.Null:
		return 1
	default:
		return types.Compare(a, b)
	}
}

func permute(batch *containers.Batch, order []int) *containers.Batch {
	out := make([]containers.Array, batch.NumColumns())
	for c := 0; c < batch.NumColumns(); c++ {
		src := batch.Column(c)
		acc := containers.NewEmptyArray(src.Type())
		for _, r := range order {
			acc.AppendValue(src.Get(r))
		}
		out[c] = acc
	}
	b, _ := containers.NewBatch(out)
	return b
}
