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

// RuleRangeScanPush recognizes `filter(cond, scan(t, cols))` whose cond
// analyzes to a single-column KeyRange over a primary-key column and adds
// the same filter over a scan carrying that range, so the scan can skip
// blocks while the filter still checks the exact predicate, per
// original_source/src/planner/rules/range.rs's `RangeScan` derivation. Gated
// by cfg.EnableRangeFilterScan and cfg.PrimaryKeyColumns so a range is only
// pushed onto a column the storage engine can actually seek on.
func RuleRangeScanPush(g *planner.EGraph, cfg Config) bool {
	if !cfg.EnableRangeFilterScan {
		return false
	}
	changed := false
	for _, id := range g.Classes() {
		for _, n := range g.Nodes(id) {
			if n.Op != planner.OpFilter || len(n.Children) != 2 {
				continue
			}
			cond, child := n.Children[0], n.Children[1]
			condAnalysis := g.Analysis(cond)
			if condAnalysis == nil || condAnalysis.Range == nil {
				continue
			}
			for _, scanNode := range g.Nodes(child) {
				if scanNode.Op != planner.OpScan || scanNode.ScanRange != nil {
					continue
				}
				pk := cfg.PrimaryKeyColumns[scanNode.TableID]
				if pk == nil || !pk[condAnalysis.Range.Column] {
					continue
				}
				rng := *condAnalysis.Range
				newScanChildren := append([]planner.Id(nil), scanNode.Children...)
				newScan := g.Add(planner.Node{
					Op:        planner.OpScan,
					TableID:   scanNode.TableID,
					Columns:   scanNode.Columns,
					ScanRange: &rng,
					Children:  newScanChildren,
				})
				newFilter := g.Add(planner.Node{
					Op:       planner.OpFilter,
					Children: []planner.Id{cond, newScan},
				})
				if _, u := g.Union(id, newFilter); u {
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
