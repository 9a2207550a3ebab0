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
	"github.com/egraph-db/secondary/pkg/types"
)

// Inserter is the subset of *txn.WriteTxn InsertOperator needs, named here
// to avoid pulling pkg/secondary/txn into this package's import graph for a
// single method.
type Inserter interface {
	Insert(batch *containers.Batch) error
}

// InsertOperator drains child and accumulates its rows into the enclosing
// write transaction's pending rowset; on EOF it emits a single-row batch
// reporting how many rows were inserted, per spec.md §4.5's Insert contract.
type InsertOperator struct {
	baseOperator
	txn     Inserter
	child   Operator
	count   int64
	emitted bool
}

func NewInsert(txn Inserter, child Operator) *InsertOperator {
	return &InsertOperator{txn: txn, child: child}
}

func (ins *InsertOperator) Close() error { return ins.child.Close() }

func (ins *InsertOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if ins.finished() {
		return nil, nil
	}
	if ins.emitted {
		return ins.finish()
	}
	for {
		batch, err := ins.child.Next(ctx)
		if err != nil {
			return ins.fail(err)
		}
		if batch == nil {
			break
		}
		if err := ins.txn.Insert(batch); err != nil {
			return ins.fail(err)
		}
		ins.count += int64(batch.Cardinality())
	}
	ins.emitted = true
	col := containers.NewEmptyArray(types.NewType(types.KindInt64, false))
	col.AppendValue(types.Int64Value(ins.count))
	return containers.NewBatch([]containers.Array{col})
}
