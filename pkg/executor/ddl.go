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

	"github.com/egraph-db/secondary/pkg/catalog"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// CreateTableOperator registers a new table in schema, per spec.md §4.5's
// "mechanical" CreateTable contract.
type CreateTableOperator struct {
	baseOperator
	schema     *catalog.Schema
	tableID    uint64
	name       string
	columns    []*catalog.Column
	primaryKey []uint64
	done2      bool
}

func NewCreateTable(schema *catalog.Schema, tableID uint64, name string, columns []*catalog.Column, primaryKey []uint64) *CreateTableOperator {
	return &CreateTableOperator{schema: schema, tableID: tableID, name: name, columns: columns, primaryKey: primaryKey}
}

func (op *CreateTableOperator) Close() error { return nil }

func (op *CreateTableOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if op.finished() || op.done2 {
		return op.finish()
	}
	op.done2 = true
	if _, err := op.schema.CreateTable(op.tableID, op.name, op.columns, op.primaryKey); err != nil {
		return op.fail(err)
	}
	return emptyOKBatch()
}

// DropTableOperator removes a table from schema, per spec.md §4.5's
// "mechanical" DropTable contract.
type DropTableOperator struct {
	baseOperator
	schema  *catalog.Schema
	tableID uint64
	done2   bool
}

func NewDropTable(schema *catalog.Schema, tableID uint64) *DropTableOperator {
	return &DropTableOperator{schema: schema, tableID: tableID}
}

func (op *DropTableOperator) Close() error { return nil }

func (op *DropTableOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if op.finished() || op.done2 {
		return op.finish()
	}
	op.done2 = true
	if err := op.schema.DropTable(op.tableID); err != nil {
		return op.fail(err)
	}
	return emptyOKBatch()
}

// ExplainOperator emits the optimizer's rendered plan as a single
// single-column, single-row text batch, per spec.md §4.5.
type ExplainOperator struct {
	baseOperator
	text  string
	done2 bool
}

func NewExplain(term *planner.Term) *ExplainOperator {
	return &ExplainOperator{text: planner.Explain(term)}
}

func (op *ExplainOperator) Close() error { return nil }

func (op *ExplainOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if op.finished() || op.done2 {
		return op.finish()
	}
	op.done2 = true
	col := containers.NewEmptyArray(types.NewType(types.KindString, false))
	col.AppendValue(types.StringValue(op.text))
	return containers.NewBatch([]containers.Array{col})
}

// emptyOKBatch is the one-row acknowledgement DDL operators return on
// success, mirroring Insert/Delete's row-count batch.
func emptyOKBatch() (*containers.Batch, error) {
	col := containers.NewEmptyArray(types.NewType(types.KindBool, false))
	col.AppendValue(types.BoolValue(true))
	return containers.NewBatch([]containers.Array{col})
}
