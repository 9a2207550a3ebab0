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

// RuleFilterFilterMerge folds `filter(f1, filter(f2, c))` into
// `filter(and(f1,f2), c)`.
func RuleFilterFilterMerge(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpFilter || len(n.Children) != 2 {
				continue
			}
			f1, child := n.Children[0], n.Children[1]
			for _, inner := range g.Nodes(child) {
				if inner.Op != planner.OpFilter || len(inner.Children) != 2 {
					continue
				}
				f2, c := inner.Children[0], inner.Children[1]
				and := g.Add(planner.Node{Op: planner.OpAnd, Children: []planner.Id{f1, f2}})
				merged := g.Add(planner.Node{Op: planner.OpFilter, Children: []planner.Id{and, c}})
				if _, u := g.Union(id, merged); u {
					changed = true
				}
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}

// RuleFilterJoinPush folds `filter(cond, join(t, on, l, r))` into
// `join(t, and(on, cond), l, r)`.
func RuleFilterJoinPush(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpFilter || len(n.Children) != 2 {
				continue
			}
			cond, child := n.Children[0], n.Children[1]
			for _, inner := range g.Nodes(child) {
				if inner.Op != planner.OpJoin || len(inner.Children) != 3 {
					continue
				}
				on, l, r := inner.Children[0], inner.Children[1], inner.Children[2]
				and := g.Add(planner.Node{Op: planner.OpAnd, Children: []planner.Id{on, cond}})
				joined := g.Add(planner.Node{Op: planner.OpJoin, JoinKind: inner.JoinKind, Children: []planner.Id{and, l, r}})
				if _, u := g.Union(id, joined); u {
					changed = true
				}
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}

// RuleJoinFilterSplit pulls a side-local conjunct out of a join condition
// into a filter directly over that side: `join(t, and(a,b), l, r) =>
// join(t, b, filter(a, l), r)` when `columns(a) ⊆ columns(l)`, symmetric
// for r.
func RuleJoinFilterSplit(g *planner.EGraph, _ Config) bool {
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
			for _, onNode := range g.Nodes(on) {
				if onNode.Op != planner.OpAnd || len(onNode.Children) != 2 {
					continue
				}
				a, b := onNode.Children[0], onNode.Children[1]
				aa := g.Analysis(a)
				if aa == nil {
					continue
				}
				if columnsSubset(aa.Columns, la.Columns) {
					fl := g.Add(planner.Node{Op: planner.OpFilter, Children: []planner.Id{a, l}})
					joined := g.Add(planner.Node{Op: planner.OpJoin, JoinKind: n.JoinKind, Children: []planner.Id{b, fl, r}})
					if _, u := g.Union(id, joined); u {
						changed = true
					}
				} else if columnsSubset(aa.Columns, ra.Columns) {
					fr := g.Add(planner.Node{Op: planner.OpFilter, Children: []planner.Id{a, r}})
					joined := g.Add(planner.Node{Op: planner.OpJoin, JoinKind: n.JoinKind, Children: []planner.Id{b, l, fr}})
					if _, u := g.Union(id, joined); u {
						changed = true
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

// RuleProjectionPushdown thins a scan's column list down to only the
// columns actually referenced by an enclosing projection, producing a
// narrower scan.
func RuleProjectionPushdown(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpProj || len(n.Children) < 1 {
				continue
			}
			child := n.Children[len(n.Children)-1]
			for _, scanNode := range g.Nodes(child) {
				if scanNode.Op != planner.OpScan {
					continue
				}
				needed := map[uint64]struct{}{}
				for _, e := range n.Children[:len(n.Children)-1] {
					if a := g.Analysis(e); a != nil {
						for c := range a.Columns {
							needed[c] = struct{}{}
						}
					}
				}
				if len(needed) == 0 || len(needed) >= len(scanNode.Columns) {
					continue
				}
				var thinned []uint64
				for _, c := range scanNode.Columns {
					if _, ok := needed[c]; ok {
						thinned = append(thinned, c)
					}
				}
				if len(thinned) == len(scanNode.Columns) {
					continue
				}
				newScanChildren := append([]planner.Id(nil), scanNode.Children...)
				newScan := g.Add(planner.Node{Op: planner.OpScan, TableID: scanNode.TableID, Columns: thinned, Children: newScanChildren})
				if _, u := g.Union(child, newScan); u {
					changed = true
				}
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}
