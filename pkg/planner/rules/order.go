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

// RuleOrderElimination drops an `order` node whose requested keys are
// already a prefix of its input's known order, per
// original_source/src/planner/rules/order.rs's redundant-sort elimination.
func RuleOrderElimination(g *planner.EGraph, _ Config) bool {
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpOrder || len(n.Children) == 0 {
				continue
			}
			child := n.Children[len(n.Children)-1]
			ca := g.Analysis(child)
			if ca == nil || !orderPrefixOf(ca.OrderKey, n.Keys) {
				continue
			}
			if _, u := g.Union(id, child); u {
				changed = true
			}
		}
	}
	if changed {
		g.Rebuild()
	}
	return changed
}
