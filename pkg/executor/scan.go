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

	"github.com/egraph-db/secondary/pkg/common/bitmap"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
)

// BatchSource is anything that can stream batches, satisfied by
// *secondary.TableScan; kept as an interface here so the executor package
// never imports pkg/secondary (the builder wires the concrete scan in).
type BatchSource interface {
	Next(ctx context.Context) (*containers.Batch, error)
}

// ScanOperator asks a BatchSource for batches (which has already applied
// any pushed primary-key range and delete-vector masking) and additionally
// evaluates an optional residual block-level predicate, per spec.md §4.5's
// Scan contract ("filtered by any additional block-level predicate").
type ScanOperator struct {
	baseOperator
	source BatchSource
	filter *planner.Term
}

func NewScan(source BatchSource, filter *planner.Term) *ScanOperator {
	return &ScanOperator{source: source, filter: filter}
}

func (s *ScanOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if s.finished() {
		return nil, nil
	}
	for {
		batch, err := s.source.Next(ctx)
		if err != nil {
			return s.fail(err)
		}
		if batch == nil {
			return s.finish()
		}
		if s.filter == nil {
			return batch, nil
		}
		col, err := Eval(s.filter, batch)
		if err != nil {
			return s.fail(err)
		}
		bm := bitmap.NewAllValid(int64(batch.Cardinality()))
		for i := 0; i < batch.Cardinality(); i++ {
			v := col.Get(i)
			if v.Null || !v.Bool() {
				bm.Remove(int64(i))
			}
		}
		filtered, err := batch.Filter(bm)
		if err != nil {
			return s.fail(err)
		}
		if filtered.Cardinality() > 0 {
			return filtered, nil
		}
	}
}

func (s *ScanOperator) Close() error { return nil }
