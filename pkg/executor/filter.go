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

	"github.com/egraph-db/secondary/pkg/common/bitmap"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
)

// FilterOperator evaluates pred over each of child's batches into a bitmap
// and emits batch.Filter(bitmap) whenever it is non-empty, per spec.md
// §4.5's Filter contract.
type FilterOperator struct {
	baseOperator
	pred  *planner.Term
	child Operator
}

func NewFilter(pred *planner.Term, child Operator) *FilterOperator {
	return &FilterOperator{pred: pred, child: child}
}

func (f *FilterOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if f.finished() {
		return nil, nil
	}
	for {
		batch, err := f.child.Next(ctx)
		if err != nil {
			return f.fail(err)
		}
		if batch == nil {
			return f.finish()
		}
		col, err := Eval(f.pred, batch)
		if err != nil {
			return f.fail(err)
		}
		bm := bitmap.NewAllValid(int64(batch.Cardinality()))
		for i := 0; i < batch.Cardinality(); i++ {
			v := col.Get(i)
			if v.Null || !v.Bool() {
				bm.Remove(int64(i))
			}
		}
		filtered, err := batch.Filter(bm)
		if err != nil {
			return f.fail(err)
		}
		if filtered.Cardinality() > 0 {
			return filtered, nil
		}
	}
}

func (f *FilterOperator) Close() error { return f.child.Close() }
