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

// Package rules implements the three rewrite-rule stages of spec.md §4.3,
// grounded on original_source/src/planner/rules/{agg,order,range}.rs for
// the agg/order/range-specific rules and on src/planner/mod.rs for the
// general algebraic-identity and pushdown rules. Every rule has the same
// shape as egg's searcher+applier pair, simplified to a single function
// that scans every live e-class, matches, and unions in a replacement.
package rules

import "github.com/egraph-db/secondary/pkg/planner"

// Config carries the optimizer options of spec.md §6.5 that gate individual
// rules.
type Config struct {
	EnableRangeFilterScan       bool
	TableIsSortedByPrimaryKey   bool
	PrimaryKeyColumns           map[uint64]map[uint64]bool // table id -> set of PK storage column ids
}

// Rule scans g's current e-classes, applies one rewrite, and reports
// whether anything changed (drives saturation-loop termination).
type Rule func(g *planner.EGraph, cfg Config) bool

// Stage1 returns the apply/subquery-flattening rules of spec.md §4.3.
func Stage1() []Rule {
	return []Rule{
		RuleAlgebraicIdentities,
		RuleApplySingleToJoin,
		RuleFilterFalsePredicate,
	}
}

// Stage2 returns the predicate/projection pushdown rules.
func Stage2() []Rule {
	return []Rule{
		RuleFilterFilterMerge,
		RuleFilterJoinPush,
		RuleJoinFilterSplit,
		RuleRangeScanPush,
		RuleProjectionPushdown,
		RuleAlgebraicIdentities,
	}
}

// Stage3 returns the join-shape and physical-form rules.
func Stage3() []Rule {
	return []Rule{
		RuleJoinCommute,
		RuleHashJoinDerive,
		RuleMergeJoinPromote,
		RuleHashAggToSortAgg,
		RuleOrderElimination,
	}
}

// columnsSubset reports whether a's column set is contained in b's, the
// `columns_is_subset` guard of spec.md §4.3.
func columnsSubset(a, b map[uint64]struct{}) bool {
	for c := range a {
		if _, ok := b[c]; !ok {
			return false
		}
	}
	return true
}

// columnsDisjoint reports whether a and b share no column, the
// `columns_is_disjoint` guard of spec.md §4.3.
func columnsDisjoint(a, b map[uint64]struct{}) bool {
	for c := range a {
		if _, ok := b[c]; ok {
			return false
		}
	}
	return true
}

func orderPrefixOf(have, want []planner.SortKey) bool {
	if len(want) > len(have) {
		return false
	}
	for i, k := range want {
		if have[i].Expr != k.Expr || have[i].Desc != k.Desc {
			return false
		}
	}
	return true
}
