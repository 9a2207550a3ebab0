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

import "github.com/egraph-db/secondary/pkg/planner"

// RuleJoinCommute explores the swapped operand order of an inner/full join,
// letting the cost model pick whichever side is cheaper to build/probe
// from. Column references name classes directly rather than positions, so
// swapping operands needs no condition rewrite.
func RuleJoinCommute(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpJoin || len(n.Children) != 3 {
				continue
			}
			if n.JoinKind != planner.JoinInner && n.JoinKind != planner.JoinFull {
				continue
			}
			on, l, r := n.Children[0], n.Children[1], n.Children[2]
			swapped := g.Add(planner.Node{Op: planner.OpJoin, JoinKind: n.JoinKind, Children: []planner.Id{on, r, l}})
			if _, u := g.Union(id, swapped); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}

// RuleHashJoinDerive derives the physical join forms of a logical `join`
// node: a hash join when the condition is (or contains) an equi-join
// predicate between the two sides, and a nested-loop join unconditionally,
// as the always-applicable fallback for an arbitrary join predicate.
func RuleHashJoinDerive(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpJoin || len(n.Children) != 3 {
				continue
			}
			on, l, r := n.Children[0], n.Children[1], n.Children[2]
			la, ra := g.Analysis(l), g.Analysis(r)
			if la == nil || ra == nil {
				continue
			}

			nestedLoop := g.Add(planner.Node{Op: planner.OpNestedLoopJoin, JoinKind: n.JoinKind, Children: []planner.Id{on, l, r}})
			if _, u := g.Union(id, nestedLoop); u {
				changed = true
			}

			lkeys, rkeys := equiJoinKeys(g, on, la.Columns, ra.Columns)
			if len(lkeys) == 0 {
				continue
			}
			hashJoin := g.Add(planner.Node{
				Op: planner.OpHashJoin, JoinKind: n.JoinKind,
				LKeys: lkeys, RKeys: rkeys,
				Children: []planner.Id{on, l, r},
			})
			if _, u := g.Union(id, hashJoin); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}

// equiJoinKeys walks the top-level conjunction of on, picking out every
// `a = b` conjunct where one side's columns lie entirely within leftCols and
// the other's entirely within rightCols.
func equiJoinKeys(g *planner.EGraph, on planner.Id, leftCols, rightCols map[uint64]struct{}) ([]planner.Id, []planner.Id) {
	var lkeys, rkeys []planner.Id
	var walk func(id planner.Id)
	walk = func(id planner.Id) {
		for _, n := range g.Nodes(id) {
			if n.Op == planner.OpAnd && len(n.Children) == 2 {
				walk(n.Children[0])
				walk(n.Children[1])
				return
			}
			if n.Op == planner.OpEq && len(n.Children) == 2 {
				a, b := g.Analysis(n.Children[0]), g.Analysis(n.Children[1])
				if a == nil || b == nil {
					return
				}
				if columnsSubset(a.Columns, leftCols) && columnsSubset(b.Columns, rightCols) {
					lkeys = append(lkeys, n.Children[0])
					rkeys = append(rkeys, n.Children[1])
				} else if columnsSubset(b.Columns, leftCols) && columnsSubset(a.Columns, rightCols) {
					lkeys = append(lkeys, n.Children[1])
					rkeys = append(rkeys, n.Children[0])
				}
			}
			return
		}
	}
	walk(on)
	return lkeys, rkeys
}

// RuleMergeJoinPromote promotes a hash join to a merge join when both sides
// are already known to be ordered by their respective join keys — cheapest
// when the underlying table is primary-key sorted, per spec.md §4.3 stage 3
// and cfg.TableIsSortedByPrimaryKey.
func RuleMergeJoinPromote(g *planner.EGraph, cfg Config) bool {
	if !cfg.TableIsSortedByPrimaryKey {
		return false
	}
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpHashJoin || len(n.Children) != 3 || len(n.LKeys) == 0 {
				continue
			}
			on, l, r := n.Children[0], n.Children[1], n.Children[2]
			la, ra := g.Analysis(l), g.Analysis(r)
			if la == nil || ra == nil {
				continue
			}
			lKeySorts := make([]planner.SortKey, len(n.LKeys))
			for i, k := range n.LKeys {
				lKeySorts[i] = planner.SortKey{Expr: k}
			}
			rKeySorts := make([]planner.SortKey, len(n.RKeys))
			for i, k := range n.RKeys {
				rKeySorts[i] = planner.SortKey{Expr: k}
			}
			if !orderPrefixOf(la.OrderKey, lKeySorts) || !orderPrefixOf(ra.OrderKey, rKeySorts) {
				continue
			}
			mergeJoin := g.Add(planner.Node{
				Op: planner.OpMergeJoin, JoinKind: n.JoinKind,
				LKeys: n.LKeys, RKeys: n.RKeys, Keys: lKeySorts,
				Children: []planner.Id{on, l, r},
			})
			if _, u := g.Union(id, mergeJoin); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}
