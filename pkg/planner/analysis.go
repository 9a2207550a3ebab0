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

import "github.com/egraph-db/secondary/pkg/types"

// Bound is one side of a Range: a value plus whether it is inclusive.
// A zero Bound (Valid == false) means unbounded on that side.
type Bound struct {
	Value     types.Value
	Inclusive bool
	Valid     bool
}

// KeyRange is a conjunction of comparisons on a single column, per spec.md
// §4.2 ("if the class is a conjunction of comparisons col op constant on a
// single column").
type KeyRange struct {
	Column uint64
	Low    Bound
	High   Bound
}

// Analysis is the per-e-class record spec.md §4.2 requires every e-class to
// carry, maintained incrementally as nodes are added and classes merged.
type Analysis struct {
	Constant   *types.Value
	Columns    map[uint64]struct{} // column refs that influence the value
	Aggregates map[Id]struct{}     // aggregate sub-terms
	Schema     []Id                // ordered output expr classes, plan nodes only
	Rows       float64             // -1 means "unknown"
	OrderKey   []SortKey           // known sort order, for merge-join/sort-agg promotion
	Range      *KeyRange
}

func newAnalysis() *Analysis {
	return &Analysis{Columns: map[uint64]struct{}{}, Aggregates: map[Id]struct{}{}, Rows: -1}
}

// computeAnalysis derives a fresh node's analysis bottom-up from its
// already-computed children's analyses.
func computeAnalysis(g *EGraph, n Node) *Analysis {
	a := newAnalysis()

	switch n.Op {
	case OpLiteral:
		v := n.Literal
		a.Constant = &v
	case OpColumnRef, OpColumnIndex:
		a.Columns[storageColOf(n)] = struct{}{}
	}

	for _, c := range n.Children {
		ca := g.Analysis(c)
		if ca == nil {
			continue
		}
		for col := range ca.Columns {
			a.Columns[col] = struct{}{}
		}
		for agg := range ca.Aggregates {
			a.Aggregates[agg] = struct{}{}
		}
	}

	switch n.Op {
	case OpScan, OpValues, OpProj, OpFilter, OpOrder, OpLimit, OpTopN,
		OpJoin, OpHashJoin, OpMergeJoin, OpNestedLoopJoin,
		OpAgg, OpHashAgg, OpSortAgg, OpWindow, OpApply:
		a.Schema = planSchema(g, n)
		a.Rows = estimateRows(g, n)
		a.OrderKey = planOrderKey(g, n)
	}

	if n.Op == OpFilter || n.Op == OpAnd {
		a.Range = conjunctiveRange(g, n)
	}

	return a
}

func storageColOf(n Node) uint64 {
	if len(n.Columns) > 0 {
		return n.Columns[0]
	}
	return uint64(n.ColIndex)
}

// planSchema computes a plan node's ordered output expression classes.
// Scan/Values/Proj name their own output list explicitly; everything else
// passes through (or concatenates, for joins) its child/children's schema.
func planSchema(g *EGraph, n Node) []Id {
	switch n.Op {
	case OpProj:
		return append([]Id(nil), n.Children...)
	case OpScan, OpValues:
		return nil // column identity is carried by n.Columns, not sub-classes
	case OpJoin, OpHashJoin, OpMergeJoin, OpNestedLoopJoin:
		if len(n.Children) < 2 {
			return nil
		}
		left, right := g.Analysis(n.Children[len(n.Children)-2]), g.Analysis(n.Children[len(n.Children)-1])
		var out []Id
		if left != nil {
			out = append(out, left.Schema...)
		}
		if right != nil {
			out = append(out, right.Schema...)
		}
		return out
	default:
		if len(n.Children) == 0 {
			return nil
		}
		if ca := g.Analysis(n.Children[len(n.Children)-1]); ca != nil {
			return ca.Schema
		}
		return nil
	}
}

// estimateRows derives a coarse cardinality estimate, used only to drive
// cost comparisons between equivalent rewrites, never for correctness.
func estimateRows(g *EGraph, n Node) float64 {
	childRows := func(i int) float64 {
		if i < 0 || i >= len(n.Children) {
			return 1
		}
		if ca := g.Analysis(n.Children[i]); ca != nil && ca.Rows >= 0 {
			return ca.Rows
		}
		return 1
	}
	switch n.Op {
	case OpScan:
		return 1000 // no storage-level statistics collaborator in scope; flat prior
	case OpValues:
		return float64(len(n.Children))
	case OpFilter:
		return childRows(len(n.Children) - 1) * 0.3
	case OpProj:
		if len(n.Children) == 0 {
			return 1
		}
		return childRows(len(n.Children) - 1)
	case OpLimit, OpTopN:
		if n.Limit > 0 {
			return float64(n.Limit)
		}
		return childRows(len(n.Children) - 1)
	case OpAgg, OpHashAgg, OpSortAgg:
		return childRows(len(n.Children)-1) * 0.1
	case OpJoin, OpHashJoin, OpMergeJoin, OpNestedLoopJoin:
		if len(n.Children) < 2 {
			return 1
		}
		l, r := childRows(len(n.Children)-2), childRows(len(n.Children)-1)
		return l * r * 0.1
	case OpOrder, OpWindow:
		if len(n.Children) == 0 {
			return 1
		}
		return childRows(len(n.Children) - 1)
	default:
		return 1
	}
}

// planOrderKey reports the sort order a plan node is known to produce.
func planOrderKey(g *EGraph, n Node) []SortKey {
	switch n.Op {
	case OpOrder, OpTopN, OpSortAgg:
		return n.Keys
	case OpMergeJoin:
		return n.Keys
	default:
		if len(n.Children) == 0 {
			return nil
		}
		if ca := g.Analysis(n.Children[len(n.Children)-1]); ca != nil {
			return ca.OrderKey
		}
		return nil
	}
}

// conjunctiveRange recognizes `filter`/`and` nodes whose leaves are all
// `col op constant` comparisons on one column, folding them into a Range.
func conjunctiveRange(g *EGraph, n Node) *KeyRange {
	leaves := flattenAnd(g, n)
	var col uint64
	haveCol := false
	r := &KeyRange{}
	for _, leaf := range leaves {
		c, b, isLow, ok := comparisonBound(g, leaf)
		if !ok {
			return nil
		}
		if !haveCol {
			col, haveCol = c, true
		} else if col != c {
			return nil
		}
		if isLow {
			r.Low = tighterLow(r.Low, b)
		} else {
			r.High = tighterHigh(r.High, b)
		}
	}
	if !haveCol {
		return nil
	}
	r.Column = col
	return r
}

func flattenAnd(g *EGraph, n Node) []Node {
	if n.Op == OpFilter {
		if len(n.Children) == 0 {
			return nil
		}
		var out []Node
		for _, node := range g.Nodes(n.Children[0]) {
			out = append(out, flattenAnd(g, node)...)
			break
		}
		return out
	}
	if n.Op == OpAnd && len(n.Children) == 2 {
		var out []Node
		for _, node := range g.Nodes(n.Children[0]) {
			out = append(out, flattenAnd(g, node)...)
			break
		}
		for _, node := range g.Nodes(n.Children[1]) {
			out = append(out, flattenAnd(g, node)...)
			break
		}
		return out
	}
	return []Node{n}
}

// comparisonBound recognizes `col op const` / `const op col`, returning the
// column id, the resulting bound, and whether it constrains the low or
// high side.
func comparisonBound(g *EGraph, n Node) (col uint64, b Bound, isLow bool, ok bool) {
	if len(n.Children) != 2 {
		return 0, Bound{}, false, false
	}
	colNode, constNode, colFirst := findColumnAndConstant(g, n.Children[0], n.Children[1])
	if colNode == nil || constNode == nil {
		return 0, Bound{}, false, false
	}
	op := n.Op
	if !colFirst {
		op = flipComparison(op)
	}
	switch op {
	case OpGt:
		return storageColOf(*colNode), Bound{Value: *constNode, Valid: true}, true, true
	case OpGe:
		return storageColOf(*colNode), Bound{Value: *constNode, Inclusive: true, Valid: true}, true, true
	case OpLt:
		return storageColOf(*colNode), Bound{Value: *constNode, Valid: true}, false, true
	case OpLe:
		return storageColOf(*colNode), Bound{Value: *constNode, Inclusive: true, Valid: true}, false, true
	case OpEq:
		return storageColOf(*colNode), Bound{Value: *constNode, Inclusive: true, Valid: true}, true, true
	default:
		return 0, Bound{}, false, false
	}
}

func flipComparison(op Op) Op {
	switch op {
	case OpGt:
		return OpLt
	case OpGe:
		return OpLe
	case OpLt:
		return OpGt
	case OpLe:
		return OpGe
	default:
		return op
	}
}

func findColumnAndConstant(g *EGraph, a, b Id) (*Node, *types.Value, bool) {
	aa, ac := g.Analysis(a), g.Analysis(b)
	if aa != nil && ac != nil && ac.Constant != nil && isColumnClass(g, a) {
		n := columnNode(g, a)
		return n, ac.Constant, true
	}
	if aa != nil && ac != nil && aa.Constant != nil && isColumnClass(g, b) {
		n := columnNode(g, b)
		return n, aa.Constant, false
	}
	return nil, nil, false
}

func isColumnClass(g *EGraph, id Id) bool {
	for _, n := range g.Nodes(id) {
		if n.Op == OpColumnRef || n.Op == OpColumnIndex {
			return true
		}
	}
	return false
}

func columnNode(g *EGraph, id Id) *Node {
	for _, n := range g.Nodes(id) {
		if n.Op == OpColumnRef || n.Op == OpColumnIndex {
			cp := n
			return &cp
		}
	}
	return nil
}

func tighterLow(a, b Bound) Bound {
	if !a.Valid {
		return b
	}
	if !b.Valid {
		return a
	}
	if types.Compare(b.Value, a.Value) > 0 {
		return b
	}
	return a
}

func tighterHigh(a, b Bound) Bound {
	if !a.Valid {
		return b
	}
	if !b.Valid {
		return a
	}
	if types.Compare(b.Value, a.Value) < 0 {
		return b
	}
	return a
}

// mergeAnalysis implements spec.md §4.2's monotone merge: constant keeps
// whichever side has one, columns/aggregates keep the smaller (more
// constrained, i.e. intersected) set, schema keeps the longer list, rows
// takes the min of the two estimates, order-key keeps the longer known
// prefix, range intersects when both sides name the same column.
func mergeAnalysis(a, b *Analysis) (*Analysis, bool) {
	if a == nil {
		return b, b != nil
	}
	if b == nil {
		return a, false
	}
	out := newAnalysis()
	changed := false

	switch {
	case a.Constant != nil:
		out.Constant = a.Constant
	case b.Constant != nil:
		out.Constant = b.Constant
		changed = true
	}

	for col := range a.Columns {
		if _, ok := b.Columns[col]; ok {
			out.Columns[col] = struct{}{}
		}
	}
	if len(out.Columns) != len(a.Columns) {
		changed = true
	}

	for agg := range a.Aggregates {
		if _, ok := b.Aggregates[agg]; ok {
			out.Aggregates[agg] = struct{}{}
		}
	}
	if len(out.Aggregates) != len(a.Aggregates) {
		changed = true
	}

	if len(b.Schema) > len(a.Schema) {
		out.Schema = b.Schema
		changed = true
	} else {
		out.Schema = a.Schema
	}

	switch {
	case a.Rows < 0:
		out.Rows = b.Rows
		changed = changed || b.Rows != a.Rows
	case b.Rows < 0:
		out.Rows = a.Rows
	case b.Rows < a.Rows:
		out.Rows = b.Rows
		changed = true
	default:
		out.Rows = a.Rows
	}

	if len(b.OrderKey) > len(a.OrderKey) {
		out.OrderKey = b.OrderKey
		changed = true
	} else {
		out.OrderKey = a.OrderKey
	}

	switch {
	case a.Range == nil:
		out.Range = b.Range
		changed = changed || b.Range != nil
	case b.Range == nil:
		out.Range = a.Range
	case a.Range.Column == b.Range.Column:
		r := &KeyRange{Column: a.Range.Column, Low: tighterLow(a.Range.Low, b.Range.Low), High: tighterHigh(a.Range.High, b.Range.High)}
		out.Range = r
		changed = true
	default:
		out.Range = a.Range
	}

	return out, changed
}
