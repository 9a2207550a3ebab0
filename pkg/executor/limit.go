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
)

// LimitOperator skips offset rows then passes up to limit rows through,
// per spec.md §4.5's Limit contract.
type LimitOperator struct {
	baseOperator
	limit, offset int64
	child         Operator
	skipped       int64
	emitted       int64
}

func NewLimit(limit, offset int64, child Operator) *LimitOperator {
	return &LimitOperator{limit: limit, offset: offset, child: child}
}

func (l *LimitOperator) Next(ctx context.Context) (*containers.Batch, error) {
	if l.finished() || l.emitted >= l.limit {
		return l.finish()
	}
	for {
		batch, err := l.child.Next(ctx)
		if err != nil {
			return l.fail(err)
		}
		if batch == nil {
			return l.finish()
		}
		n := batch.Cardinality()
		lo := 0
		if l.skipped < l.offset {
			skip := l.offset - l.skipped
			if skip > int64(n) {
				skip = int64(n)
			}
			l.skipped += skip
			lo = int(skip)
		}
		if lo >= n {
			continue
		}
		remaining := l.limit - l.emitted
		hi := n
		if int64(hi-lo) > remaining {
			hi = lo + int(remaining)
		}
		if hi <= lo {
			continue
		}
		l.emitted += int64(hi - lo)
		return batch.Slice(lo, hi), nil
	}
}

func (l *LimitOperator) Close() error { return l.child.Close() }
