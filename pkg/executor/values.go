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

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// ValuesOperator emits one literal-constructed batch from a VALUES clause's
// rows, per spec.md §4.5; rows is one *planner.Term (tuple/list) per row,
// each holding the row's per-column scalar expressions.
type ValuesOperator struct {
	baseOperator
	rows []*planner.Term
	sent bool
}

func NewValues(rows []*planner.Term) *ValuesOperator {
	return &ValuesOperator{rows: rows}
}

func (v *ValuesOperator) Close() error { return nil }

func (v *ValuesOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if v.finished() || v.sent {
		return v.finish()
	}
	v.sent = true
	if len(v.rows) == 0 {
		v.done = true
		return nil, nil
	}

	empty := &containers.Batch{}
	width := len(v.rows[0].Children)
	materialized := make([][]types.Value, len(v.rows))
	for i, row := range v.rows {
		if len(row.Children) != width {
			v.done = true
			return v.fail(engineerr.NewExecute("VALUES row %d has %d columns, expected %d", i, len(row.Children), width))
		}
		r := make([]types.Value, width)
		for c, expr := range row.Children {
			val, err := evalRow(expr, empty, 0)
			if err != nil {
				v.done = true
				return v.fail(err)
			}
			r[c] = val
		}
		materialized[i] = r
	}

	v.done = true
	cols := make([]containers.Array, width)
	for c := 0; c < width; c++ {
		cols[c] = containers.NewEmptyArray(columnTypeAcross(materialized, c))
	}
	for _, row := range materialized {
		for c, val := range row {
			cols[c].AppendValue(val)
		}
	}
	return containers.NewBatch(cols)
}
