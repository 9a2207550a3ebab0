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
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// evalCondRow evaluates cond, if any, against the single combined row
// formed from left and right column values; shared by all three join
// operators' residual-predicate check after a candidate pair is found. A
// nil cond always passes.
func evalCondRow(cond *planner.Term, left, right []types.Value) (bool, error) {
	if cond == nil {
		return true, nil
	}
	row := make([]types.Value, len(left)+len(right))
	copy(row, left)
	copy(row[len(left):], right)
	cols := make([]containers.Array, len(row))
	for c, v := range row {
		arr := containers.NewEmptyArray(v.Type)
		arr.AppendValue(v)
		cols[c] = arr
	}
	batch, err := containers.NewBatch(cols)
	if err != nil {
		return false, err
	}
	col, err := Eval(cond, batch)
	if err != nil {
		return false, err
	}
	v := col.Get(0)
	return !v.Null && v.Bool(), nil
}

func nullRow(width int) []types.Value {
	row := make([]types.Value, width)
	for i := range row {
		row[i] = types.NullValue(types.NewType(types.KindInt64, true))
	}
	return row
}
