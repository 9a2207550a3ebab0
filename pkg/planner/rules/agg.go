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

// RuleHashAggToSortAgg derives the physical forms of a logical `agg` node,
// per original_source/src/planner/rules/agg.rs's hash-agg/sort-agg split:
// a hash-agg is always a valid physical form, and a sort-agg is additionally
// offered when the input is already ordered by (a prefix of) the group
// keys, letting the extractor pick whichever the cost model prefers.
func RuleHashAggToSortAgg(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpAgg || len(n.Children) == 0 {
				continue
			}
			hashAgg := planner.Node{Op: planner.OpHashAgg, Children: n.Children, Keys: n.Keys}
			hid := g.Add(hashAgg)
			if _, u := g.Union(id, hid); u {
				changed = true
			}

			child := n.Children[len(n.Children)-1]
			ca := g.Analysis(child)
			if ca == nil || !orderPrefixOf(ca.OrderKey, n.Keys) {
				continue
			}
			sortAgg := planner.Node{Op: planner.OpSortAgg, Children: n.Children, Keys: n.Keys}
			sid := g.Add(sortAgg)
			if _, u := g.Union(id, sid); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}
