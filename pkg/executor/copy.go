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

// RowSource yields one record's string fields at a time, or (nil, nil) at
// end of input. CSV parsing itself is an external collaborator (spec.md
// §1); this package only knows how to turn parsed string fields into typed
// column values.
type RowSource interface {
	NextRow() ([]string, error)
}

// RowSink accepts one record's string fields at a time, the mirror
// contract CopyTo writes through.
type RowSink interface {
	WriteRow(fields []string) error
}

// CopyFromOperator reads records from source, casts each field to its
// column's declared type, and emits them batched, per spec.md §4.5's
// "mechanical" CopyFrom contract.
type CopyFromOperator struct {
	baseOperator
	colTypes  []types.DataType
	source    RowSource
	batchSize int
}

func NewCopyFrom(colTypes []types.DataType, source RowSource, batchSize int) *CopyFromOperator {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &CopyFromOperator{colTypes: colTypes, source: source, batchSize: batchSize}
}

func (c *CopyFromOperator) Close() error { return nil }

func (c *CopyFromOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if c.finished() {
		return nil, nil
	}
	cols := make([]containers.Array, len(c.colTypes))
	for i, t := range c.colTypes {
		cols[i] = containers.NewEmptyArray(t)
	}
	n := 0
	for n < c.batchSize {
		fields, err := c.source.NextRow()
		if err != nil {
			return c.fail(err)
		}
		if fields == nil {
			c.done = true
			break
		}
		for i := range cols {
			v, err := fieldToValue(fields, i, c.colTypes[i])
			if err != nil {
				return c.fail(err)
			}
			cols[i].AppendValue(v)
		}
		n++
	}
	if n == 0 {
		return nil, nil
	}
	return containers.NewBatch(cols)
}

func fieldToValue(fields []string, i int, t types.DataType) (types.Value, error) {
	if i >= len(fields) || (fields[i] == "" && t.Nullable) {
		return types.NullValue(t), nil
	}
	return castValue(types.StringValue(fields[i]), t)
}

// CopyToOperator drains child and writes each row's fields, rendered via
// types.Value.String, to sink, per spec.md §4.5's "mechanical" CopyTo
// contract.
type CopyToOperator struct {
	baseOperator
	child Operator
	sink  RowSink
	count int64
}

func NewCopyTo(child Operator, sink RowSink) *CopyToOperator {
	return &CopyToOperator{child: child, sink: sink}
}

func (c *CopyToOperator) Close() error { return c.child.Close() }

func (c *CopyToOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if c.finished() {
		return nil, nil
	}
	batch, err := c.child.Next(ctx)
	if err != nil {
		return c.fail(err)
	}
	if batch == nil {
		return c.finish()
	}
	fields := make([]string, batch.NumColumns())
	for row := 0; row < batch.Cardinality(); row++ {
		for col := 0; col < batch.NumColumns(); col++ {
			v := batch.Column(col).Get(row)
			if v.Null {
				fields[col] = ""
			} else {
				fields[col] = v.String()
			}
		}
		if err := c.sink.WriteRow(fields); err != nil {
			return c.fail(err)
		}
		c.count++
	}
	return batch, nil
}
