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

import "math"

// IOFactor weights a column-read against an in-memory row operation in the
// scan cost formula, per spec.md §4.4.
const IOFactor = 4.0

const infCost = math.MaxFloat64

// TermSortKey is a Term-level SortKey: the e-class Id of Node.SortKey is
// resolved to the extracted sub-term it names, since a Term carries no
// EGraph to resolve an Id against later.
type TermSortKey struct {
	Expr *Term
	Desc bool
}

// Term is a concrete, fully-extracted node: the output of Extract, with
// Children resolved to other Terms rather than e-class ids. Keys/LKeys/
// RKeys shadow the embedded Node's Id-typed fields of the same name,
// since those Ids name e-classes that exist only in the EGraph Extract ran
// over, not in the standalone Term tree extraction produces.
type Term struct {
	Node
	Children []*Term

	Keys         []TermSortKey
	LKeys, RKeys []*Term
}

// Extract performs bottom-up minimum-cost extraction out of the e-graph
// rooted at root, per spec.md §4.4 step 1 ("after each saturation, extract
// the minimum-cost term"). Extraction is a standard fixed-point: visit
// every class repeatedly, keeping the cheapest node discovered so far,
// until no class's best choice changes.
func Extract(g *EGraph, root Id) *Term {
	best := map[Id]float64{}
	bestNode := map[Id]Node{}
	classes := g.Classes()
	for _, id := range classes {
		best[id] = infCost
	}

	for changed := true; changed; {
		changed = false
		for _, id := range classes {
			for _, n := range g.Nodes(id) {
				c := nodeCost(g, n, best)
				if c < best[id] {
					best[id] = c
					bestNode[id] = n
					changed = true
				}
			}
		}
	}

	return buildTerm(g, g.Find(root), bestNode)
}

// CostOf computes root's current minimum extractable cost without building
// a Term, used by the optimizer driver to decide whether a stage's latest
// re-extraction strictly improved on the previous one.
func CostOf(g *EGraph, root Id) float64 {
	best := map[Id]float64{}
	classes := g.Classes()
	for _, id := range classes {
		best[id] = infCost
	}
	for changed := true; changed; {
		changed = false
		for _, id := range classes {
			for _, n := range g.Nodes(id) {
				c := nodeCost(g, n, best)
				if c < best[id] {
					best[id] = c
					changed = true
				}
			}
		}
	}
	return best[g.Find(root)]
}

// InfCost is the sentinel cost of a term that cannot be a final physical
// plan (still containing unresolved select/prune/distinct nodes).
const InfCost = infCost

func buildTerm(g *EGraph, id Id, bestNode map[Id]Node) *Term {
	n, ok := bestNode[id]
	if !ok {
		return nil
	}
	t := &Term{Node: n}
	for _, c := range n.Children {
		t.Children = append(t.Children, buildTerm(g, g.Find(c), bestNode))
	}
	for _, k := range n.Keys {
		t.Keys = append(t.Keys, TermSortKey{Expr: buildTerm(g, g.Find(k.Expr), bestNode), Desc: k.Desc})
	}
	for _, k := range n.LKeys {
		t.LKeys = append(t.LKeys, buildTerm(g, g.Find(k), bestNode))
	}
	for _, k := range n.RKeys {
		t.RKeys = append(t.RKeys, buildTerm(g, g.Find(k), bestNode))
	}
	return t
}

// nodeCost is the recursive cost formula of spec.md §4.4 step 2. Children
// costs come from the running `best` table (possibly still infCost on a
// first pass, which self-corrects as the fixed point iterates).
func nodeCost(g *EGraph, n Node, best map[Id]float64) float64 {
	childCost := func(i int) float64 {
		if i < 0 || i >= len(n.Children) {
			return 0
		}
		return best[g.Find(n.Children[i])]
	}
	rowsOf := func(i int) float64 {
		if i < 0 || i >= len(n.Children) {
			return 1
		}
		if a := g.Analysis(n.Children[i]); a != nil && a.Rows >= 0 {
			return a.Rows
		}
		return 1
	}
	sumChildren := func() float64 {
		var s float64
		for i := range n.Children {
			s += childCost(i)
		}
		return s
	}

	switch n.Op {
	case OpSelect, OpPrune, OpDistinct:
		return infCost // must disappear before final extraction
	case OpScan:
		return float64(len(n.Columns)) * 1000 * IOFactor
	case OpOrder:
		rows := rowsOf(len(n.Children) - 1)
		return rows*math.Log2(rows+1) + childCost(len(n.Children)-1)
	case OpTopN:
		rowsOut := float64(n.Limit + n.Offset)
		if rowsOut <= 0 {
			rowsOut = 1
		}
		rowsChild := rowsOf(len(n.Children) - 1)
		return math.Log2(rowsOut+1)*rowsChild + childCost(len(n.Children)-1)
	case OpProj, OpFilter:
		if len(n.Children) == 0 {
			return 0
		}
		exprsCost := float64(len(n.Children) - 1)
		rows := rowsOf(len(n.Children) - 1)
		return exprsCost*rows + childCost(len(n.Children)-1)
	case OpAgg, OpHashAgg, OpSortAgg:
		if len(n.Children) == 0 {
			return 0
		}
		rows := rowsOf(len(n.Children) - 1)
		aggCost := float64(len(n.Children) - 1)
		return aggCost*rows + childCost(len(n.Children)-1)
	case OpJoin, OpNestedLoopJoin:
		if len(n.Children) < 2 {
			return sumChildren()
		}
		li, ri := len(n.Children)-2, len(n.Children)-1
		rowsL, rowsR := rowsOf(li), rowsOf(ri)
		return rowsL*rowsR*2 + childCost(li) + childCost(ri)
	case OpHashJoin, OpMergeJoin:
		if len(n.Children) < 2 {
			return sumChildren()
		}
		li, ri := len(n.Children)-2, len(n.Children)-1
		rowsL, rowsR := rowsOf(li), rowsOf(ri)
		return (rowsL+rowsR)*2 + childCost(li) + childCost(ri)
	case OpLimit:
		rowsOut := float64(n.Limit)
		if rowsOut <= 0 {
			rowsOut = rowsOf(len(n.Children) - 1)
		}
		return rowsOut + childCost(len(n.Children)-1)
	default:
		return sumChildren()
	}
}
