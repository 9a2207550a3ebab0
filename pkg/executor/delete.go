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

// Deleter is the subset of *txn.WriteTxn DeleteOperator needs.
type Deleter interface {
	Delete(rowsetID uint64, rowID uint32)
}

// DeleteOperator drains child, which must project (rowset_id, row_id)
// tuples, marking each row deleted in the enclosing write transaction —
// building one delete vector per affected rowset — per spec.md §4.5's
// Delete contract.
type DeleteOperator struct {
	baseOperator
	txn     Deleter
	child   Operator
	count   int64
	emitted bool
}

func NewDelete(txn Deleter, child Operator) *DeleteOperator {
	return &DeleteOperator{txn: txn, child: child}
}

func (d *DeleteOperator) Close() error { return d.child.Close() }

func (d *DeleteOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if d.finished() {
		return nil, nil
	}
	if d.emitted {
		return d.finish()
	}
	for {
		batch, err := d.child.Next(ctx)
		if err != nil {
			return d.fail(err)
		}
		if batch == nil {
			break
		}
		rowsetCol := batch.Column(0)
		rowCol := batch.Column(1)
		for i := 0; i < batch.Cardinality(); i++ {
			rowsetID := uint64(rowsetCol.Get(i).Int64())
			rowID := uint32(rowCol.Get(i).Int64())
			d.txn.Delete(rowsetID, rowID)
		}
		d.count += int64(batch.Cardinality())
	}
	d.emitted = true
	col := containers.NewEmptyArray(types.NewType(types.KindInt64, false))
	col.AppendValue(types.Int64Value(d.count))
	return containers.NewBatch([]containers.Array{col})
}
