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

// sliceSource is a fixed, fully in-memory BatchSource: every batch is handed
// out once, in order, then Next returns (nil, nil).
type sliceSource struct {
	batches []*containers.Batch
	pos     int
}

func (s *sliceSource) Next(ctx context.Context) (*containers.Batch, error) {
	if s.pos >= len(s.batches) {
		return nil, nil
	}
	b := s.batches[s.pos]
	s.pos++
	return b, nil
}

// int64Col builds one materialized column out of plain Go int64s.
func int64Col(vals ...int64) containers.Array {
	a := containers.NewEmptyArray(types.NewType(types.KindInt64, true))
	for _, v := range vals {
		a.AppendValue(types.Int64Value(v))
	}
	return a
}

func stringCol(vals ...string) containers.Array {
	a := containers.NewEmptyArray(types.NewType(types.KindString, true))
	for _, v := range vals {
		a.AppendValue(types.StringValue(v))
	}
	return a
}

func mustBatch(cols ...containers.Array) *containers.Batch {
	b, err := containers.NewBatch(cols)
	if err != nil {
		panic(err)
	}
	return b
}

func colIndexTerm(idx int) *planner.Term {
	return &planner.Term{Node: planner.Node{Op: planner.OpColumnIndex, ColIndex: idx}}
}

func litTerm(v types.Value) *planner.Term {
	return &planner.Term{Node: planner.Node{Op: planner.OpLiteral, Literal: v}}
}

func binTerm(op planner.Op, l, r *planner.Term) *planner.Term {
	return &planner.Term{Node: planner.Node{Op: op}, Children: []*planner.Term{l, r}}
}

func drainAll(t interface {
	Next(ctx context.Context) (*containers.Batch, error)
}) ([]*containers.Batch, error) {
	var out []*containers.Batch
	for {
		b, err := t.Next(context.Background())
		if err != nil {
			return nil, err
		}
		if b == nil {
			return out, nil
		}
		out = append(out, b)
	}
}
