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

// Package planner implements the unified e-graph term language of spec.md
// §3.6 and the equality-saturation optimizer of spec.md §4.2-4.4. Grounded
// on original_source/src/egg.rs for the term/e-graph arena shape (a single
// flat node enum shared by scalar expressions and plan nodes, living in one
// e-graph whose eclasses carry an analysis record) and on
// src/planner/{mod,optimizer,cost,explain}.rs for the staged-saturation
// driver. No e-graph library exists anywhere in the Go example pack (egg is
// Rust-only), so the e-graph itself is hand-rolled over plain maps/slices,
// standard-library only — see DESIGN.md.
package planner

import (
	"fmt"

	"github.com/egraph-db/secondary/pkg/secondary/rowset"
	"github.com/egraph-db/secondary/pkg/types"
)

// Id names one e-class within an EGraph.
type Id int

// Op is the single flat discriminant spanning scalar expressions, plan
// nodes, and DDL/DML per spec.md §3.6.
type Op int

const (
	// Literals
	OpLiteral Op = iota
	OpColumnRef
	OpColumnIndex
	OpSymbol

	// Scalar ops
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpConcat
	OpGt
	OpLt
	OpGe
	OpLe
	OpEq
	OpNe
	OpAnd
	OpOr
	OpXor
	OpLike
	OpNot
	OpNeg
	OpIsNull
	OpIf
	OpIn
	OpCast

	// Aggregates
	OpMax
	OpMin
	OpSum
	OpAvg
	OpCount
	OpRowCount
	OpFirst
	OpLast

	// Window
	OpOver

	// Lists/tuples
	OpList
	OpTuple

	// Plan nodes
	OpScan
	OpValues
	OpProj
	OpFilter
	OpOrder
	OpLimit
	OpTopN
	OpJoin
	OpHashJoin
	OpMergeJoin
	OpNestedLoopJoin
	OpAgg
	OpHashAgg
	OpSortAgg
	OpWindow
	OpApply

	// DDL/DML
	OpCreate
	OpDrop
	OpInsert
	OpDelete
	OpCopyFrom
	OpCopyTo
	OpExplain

	// Unresolved placeholders that must disappear before final extraction,
	// per spec.md §4.4 ("unresolved select/prune/distinct nodes cost
	// infinity").
	OpSelect
	OpPrune
	OpDistinct
)

// JoinKind is the logical join type carried on join/hashjoin/mergejoin/apply
// nodes.
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinSemi
	JoinAnti
	JoinSingle // apply(single, ...) per spec.md §4.3 stage 1
)

// SortKey names one ordering column, ascending or descending, within an
// order/topn/window node.
type SortKey struct {
	Expr Id
	Desc bool
}

// Node is one e-node: an operator plus its child e-classes, plus whatever
// auxiliary payload that operator needs. Only the fields relevant to Op are
// populated; this mirrors the single tagged-union shape of
// original_source/src/egg.rs's `Expr` enum rather than one Go type per Op,
// since the e-graph's hash-consing needs one canonical equality/hash
// function over the whole term language.
type Node struct {
	Op       Op
	Children []Id

	Literal  types.Value
	ColIndex int
	Symbol   string

	TableID   uint64
	Columns   []uint64  // storage column ids, for scan/insert/delete/copy
	ScanRange *KeyRange // pushed single-column range bound, physical scan nodes only

	JoinKind JoinKind
	Keys     []SortKey // order/topn/window
	LKeys    []Id      // hashjoin/mergejoin left key expressions
	RKeys    []Id      // hashjoin/mergejoin right key expressions

	Limit, Offset int64

	CastType types.DataType
}

// key is the canonical hash-consing key for a node whose children are
// already canonicalized (Find()-ed). Two nodes with the same key are
// congruent and collapse to the same e-class.
func (n Node) key() string {
	s := fmt.Sprintf("%d|%v|%s|%d|%q|%d|%v|%v|%d|%v|%v|%v|%d|%d|%v",
		n.Op, n.Children, n.Literal.String(), n.ColIndex, n.Symbol,
		n.TableID, n.Columns, n.ScanRange, n.JoinKind, n.Keys, n.LKeys, n.RKeys,
		n.Limit, n.Offset, n.CastType)
	return s
}

// ColumnDescriptors is the catalog-shaped column list a scan/insert/delete
// node needs to interpret its Columns ids; kept here rather than imported
// from pkg/catalog to avoid a planner -> catalog dependency (the planner
// only needs storage ids and types, which the binder collaborator resolves
// before constructing scan/insert/delete nodes).
type ColumnDescriptors = []rowset.ColumnDescriptor
