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

package planner

import (
	"fmt"
	"strings"
)

// Explain renders t as the indented text tree spec.md §6.4 describes
// ("EXPLAIN returns a text rendering of the final physical plan"), a
// feature recovered from original_source (src/planner/explain.rs) that the
// distilled spec leaves implicit in "EXPLAIN returns a text rendering."
func Explain(t *Term) string {
	var b strings.Builder
	explainNode(&b, t, 0)
	return b.String()
}

func explainNode(b *strings.Builder, t *Term, depth int) {
	if t == nil {
		return
	}
	b.WriteString(strings.Repeat("  ", depth))
	b.WriteString(opLabel(t))
	b.WriteByte('\n')
	for _, c := range t.Children {
		explainNode(b, c, depth+1)
	}
}

func opLabel(t *Term) string {
	switch t.Op {
	case OpScan:
		return fmt.Sprintf("Scan(table=%d, cols=%v)", t.TableID, t.Columns)
	case OpFilter:
		return "Filter"
	case OpProj:
		return "Project"
	case OpOrder:
		return fmt.Sprintf("Order(keys=%d)", len(t.Keys))
	case OpLimit:
		return fmt.Sprintf("Limit(limit=%d, offset=%d)", t.Limit, t.Offset)
	case OpTopN:
		return fmt.Sprintf("TopN(limit=%d, offset=%d)", t.Limit, t.Offset)
	case OpHashJoin:
		return fmt.Sprintf("HashJoin(type=%v)", t.JoinKind)
	case OpMergeJoin:
		return fmt.Sprintf("MergeJoin(type=%v)", t.JoinKind)
	case OpNestedLoopJoin:
		return fmt.Sprintf("NestedLoopJoin(type=%v)", t.JoinKind)
	case OpJoin:
		return fmt.Sprintf("Join(type=%v)", t.JoinKind)
	case OpHashAgg:
		return fmt.Sprintf("HashAgg(keys=%d)", len(t.Keys))
	case OpSortAgg:
		return fmt.Sprintf("SortAgg(keys=%d)", len(t.Keys))
	case OpAgg:
		return "Agg"
	case OpValues:
		return fmt.Sprintf("Values(rows=%d)", len(t.Children))
	case OpInsert:
		return fmt.Sprintf("Insert(table=%d)", t.TableID)
	case OpDelete:
		return fmt.Sprintf("Delete(table=%d)", t.TableID)
	case OpCreate:
		return fmt.Sprintf("CreateTable(table=%d)", t.TableID)
	case OpDrop:
		return fmt.Sprintf("DropTable(table=%d)", t.TableID)
	case OpCopyFrom:
		return fmt.Sprintf("CopyFrom(table=%d)", t.TableID)
	case OpCopyTo:
		return fmt.Sprintf("CopyTo(table=%d)", t.TableID)
	default:
		return fmt.Sprintf("Op(%d)", t.Op)
	}
}
