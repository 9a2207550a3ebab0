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

// Package executor turns an extracted physical planner.Term into a tree of
// streaming operators, per spec.md §4.5. Grounded on the teacher's
// colexec operator idiom (pkg/sql/colexec/types.go's receive-and-forward
// shape, rightsemi/join.go's per-kind join emission, deletion/deletion.go's
// drain-then-flush DML shape) generalized from matrixone's vectorized
// batch-of-vectors pipeline (pull-driven registers feeding a process) down
// to a single-process pull model: every Operator's Next is the teacher's
// Call, and a nil batch with a nil error is the teacher's end-of-pipeline
// signal.
package executor

import (
	"context"

	"github.com/egraph-db/secondary/pkg/containers"
)

// Operator is one streaming physical operator, per spec.md §4.5's
// end-of-stream contract: Next returns (nil, nil) once all data has been
// produced. An error is returned from the call that hit it; every later call
// returns (nil, nil). Children are not closed when an error occurs; they are
// released only by Close.
type Operator interface {
	// Next returns the next non-empty batch, or (nil, nil) at end of stream.
	Next(ctx context.Context) (*containers.Batch, error)
	// Close releases any resources (build-side hash tables, sort buffers)
	// this operator is holding. Idempotent.
	Close() error
}

// baseOperator centralizes the stop-after-error/end-of-stream bookkeeping
// every operator in this package shares, mirroring the teacher's
// ReceiverOperator embedding pattern: operators compose a small shared base
// rather than repeating the same bookkeeping per type.
type baseOperator struct {
	err  error
	done bool
}

func (b *baseOperator) fail(err error) (*containers.Batch, error) {
	b.err = err
	b.done = true
	return nil, err
}

func (b *baseOperator) finished() bool {
	return b.done
}

func (b *baseOperator) finish() (*containers.Batch, error) {
	b.done = true
	return nil, nil
}
