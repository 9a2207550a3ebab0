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

// ProjectOperator evaluates exprs over every batch from child, returning a
// batch of exactly len(exprs) columns, per spec.md §4.5's Projection
// contract.
type ProjectOperator struct {
	baseOperator
	exprs []*planner.Term
	child Operator
}

func NewProject(exprs []*planner.Term, child Operator) *ProjectOperator {
	return &ProjectOperator{exprs: exprs, child: child}
}

func (p *ProjectOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if p.finished() {
		return nil, nil
	}
	batch, err := p.child.Next(ctx)
	if err != nil {
		return p.fail(err)
	}
	if batch == nil {
		return p.finish()
	}
	cols := make([]containers.Array, len(p.exprs))
	for i, e := range p.exprs {
		col, err := Eval(e, batch)
		if err != nil {
			return p.fail(err)
		}
		cols[i] = col
	}
	out, err := containers.NewBatch(cols)
	if err != nil {
		return p.fail(err)
	}
	return out, nil
}

func (p *ProjectOperator) Close() error { return p.child.Close() }
