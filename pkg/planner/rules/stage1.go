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

package rules

import (
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// RuleAlgebraicIdentities applies the always-better rewrites of spec.md
// §4.3 stage 1: `x+0`, `x*1`, idempotent `and`/`or`, double negation.
func RuleAlgebraicIdentities(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			switch n.Op {
			case planner.OpAdd:
				if len(n.Children) == 2 {
					if isConstZero(g, n.Children[1]) {
						if _, u := g.Union(id, n.Children[0]); u {
							changed = true
						}
					} else if isConstZero(g, n.Children[0]) {
						if _, u := g.Union(id, n.Children[1]); u {
							changed = true
						}
					}
				}
			case planner.OpMul:
				if len(n.Children) == 2 {
					if isConstOne(g, n.Children[1]) {
						if _, u := g.Union(id, n.Children[0]); u {
							changed = true
						}
					} else if isConstOne(g, n.Children[0]) {
						if _, u := g.Union(id, n.Children[1]); u {
							changed = true
						}
					}
				}
			case planner.OpAnd, planner.OpOr:
				if len(n.Children) == 2 && n.Children[0] == n.Children[1] {
					if _, u := g.Union(id, n.Children[0]); u {
						changed = true
					}
				}
			case planner.OpNot:
				if len(n.Children) == 1 {
					for _, inner := range g.Nodes(n.Children[0]) {
						if inner.Op == planner.OpNot && len(inner.Children) == 1 {
							if _, u := g.Union(id, inner.Children[0]); u {
								changed = true
							}
						}
					}
				}
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}

func isConstZero(g *planner.EGraph, id planner.Id) bool {
	a := g.Analysis(id)
	if a == nil || a.Constant == nil {
		return false
	}
	return isNumericEqual(*a.Constant, 0)
}

func isConstOne(g *planner.EGraph, id planner.Id) bool {
	a := g.Analysis(id)
	if a == nil || a.Constant == nil {
		return false
	}
	return isNumericEqual(*a.Constant, 1)
}

func isNumericEqual(v types.Value, n int64) bool {
	if v.Null {
		return false
	}
	switch v.Type.Kind {
	case types.KindInt32, types.KindInt64:
		return v.Int64() == n
	case types.KindFloat64:
		return v.Float64() == float64(n)
	default:
		return false
	}
}

// RuleFilterFalsePredicate recognizes a Filter all of whose predicate
// children analyze to the constant `false` and unions it with a freshly
// added, empty Values node: no row can ever pass such a predicate, so the
// scan/join below it is pure waste, per spec.md §8's "WHERE false" EXPLAIN
// scenario.
func RuleFilterFalsePredicate(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpFilter || len(n.Children) < 2 {
				continue
			}
			allFalse := true
			for _, pred := range n.Children[:len(n.Children)-1] {
				if !isConstFalse(g, pred) {
					allFalse = false
					break
				}
			}
			if !allFalse {
				continue
			}
			empty := g.Add(planner.Node{Op: planner.OpValues})
			if _, u := g.Union(id, empty); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}

func isConstFalse(g *planner.EGraph, id planner.Id) bool {
	a := g.Analysis(id)
	if a == nil || a.Constant == nil {
		return false
	}
	v := *a.Constant
	return !v.Null && v.Type.Kind == types.KindBool && !v.Bool()
}

// RuleApplySingleToJoin replaces `apply(single, left, right)` with
// `join(inner, true, left, right)` when right does not depend on left — the
// decorrelation base case of spec.md §4.3 stage 1, approximated via the
// `columns_is_disjoint` guard over the two sides' analyzed column sets
// (right referencing none of left's output columns is exactly
// non-dependence for a single-row subquery that has already been bound).
func RuleApplySingleToJoin(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpApply || n.JoinKind != planner.JoinSingle || len(n.Children) != 2 {
				continue
			}
			left, right := g.Analysis(n.Children[0]), g.Analysis(n.Children[1])
			if left == nil || right == nil || !columnsDisjoint(right.Columns, left.Columns) {
				continue
			}
			trueLit := g.Add(planner.Node{Op: planner.OpLiteral, Literal: types.BoolValue(true)})
			joined := g.Add(planner.Node{Op: planner.OpJoin, JoinKind: planner.JoinInner, Children: []planner.Id{trueLit, n.Children[0], n.Children[1]}})
			if _, u := g.Union(id, joined); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}
