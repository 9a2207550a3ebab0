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

package executor

import (
	"github.com/egraph-db/secondary/pkg/catalog"
	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/secondary/rowset"
	"github.com/egraph-db/secondary/pkg/types"
)

// TableReader opens a streaming scan over one table's frozen snapshot,
// satisfied by *txn.ReadTxn; kept as an interface here for the same reason
// BatchSource is (scan.go) — this package never imports pkg/secondary/txn.
type TableReader interface {
	Scan(storageColIDs []uint64, keyRange *rowset.KeyRange, batchSize int) BatchSource
}

// DeleteTableReader opens the identity-prefixed scan an OpDelete node's
// source subtree reads from, satisfied by *txn.WriteTxn. Every batch it
// yields is (rowset_id, row_id, storageColIDs...) — see
// secondary.Table.ScanForDelete — so the WHERE predicate above it can still
// reference the requested columns at positions 2.. while DeleteOperator
// recovers row identity at positions 0 and 1.
type DeleteTableReader interface {
	ScanForDelete(storageColIDs []uint64, keyRange *rowset.KeyRange, batchSize int) BatchSource
}

// TableDef is the column/primary-key definition a CreateTable node needs but
// cannot carry itself: planner.Node only ever holds a TableID for OpCreate
// (per spec.md §3.6's single flat Node shape), since names and declared
// column types belong to the binder collaborator that allocated the id in
// the first place. The caller populates one TableDef per pending CREATE
// TABLE before handing the plan to Build.
type TableDef struct {
	Schema     *catalog.Schema
	Name       string
	Columns    []*catalog.Column
	PrimaryKey []uint64
}

// Builder walks an extracted *planner.Term into a wired Operator tree, per
// spec.md §4.5. Every map here is resolved out-of-band by the session
// collaborator from the TableID/Columns a plan node carries — Build itself
// never touches the catalog or transaction manager directly, staying a pure
// tree-to-tree transform like the rest of this package.
type Builder struct {
	// Readers supplies the snapshot scan for each table id appearing in an
	// OpScan node.
	Readers map[uint64]TableReader
	// Writers supplies the pending write transaction's Insert for each table
	// id appearing in an OpInsert node.
	Writers map[uint64]Inserter
	// Deleters mirrors Writers for OpDelete.
	Deleters map[uint64]Deleter
	// DeleteReaders supplies the identity-prefixed scan an OpDelete node's
	// source subtree reads from, one per table id.
	DeleteReaders map[uint64]DeleteTableReader
	// CreateDefs supplies the new table's definition for each table id
	// appearing in an OpCreate node.
	CreateDefs map[uint64]*TableDef
	// DropSchemas supplies the owning schema for each table id appearing in
	// an OpDrop node.
	DropSchemas map[uint64]*catalog.Schema
	// CatalogTables resolves a table id to its catalog definition, used to
	// type CopyFrom's incoming string fields.
	CatalogTables map[uint64]*catalog.Table
	// CopySources/CopySinks supply the record stream for OpCopyFrom/OpCopyTo,
	// one per table id.
	CopySources map[uint64]RowSource
	CopySinks   map[uint64]RowSink

	// BatchSize bounds every Scan/CopyFrom operator's internal batch size;
	// zero means "use each operator's own default."
	BatchSize int
}

// Build recursively compiles t into a wired Operator tree. The Children
// slicing conventions below are authoritative per the planner package's own
// rule/cost implementations (pkg/planner/rules/stage2.go, order.go, agg.go,
// pkg/planner/cost.go's nodeCost): Filter/Proj/Order/Limit/TopN/Agg family
// carry their single input child last; Join family carries [cond, left,
// right].
func (b *Builder) Build(t *planner.Term) (Operator, error) {
	if t == nil {
		return nil, engineerr.NewExecute("cannot build a nil plan term")
	}

	switch t.Op {
	case planner.OpScan:
		return b.buildScan(t)
	case planner.OpValues:
		return NewValues(t.Children), nil
	case planner.OpFilter:
		return b.buildFilter(t)
	case planner.OpProj:
		return b.buildProject(t)
	case planner.OpOrder:
		return b.buildOrder(t)
	case planner.OpLimit:
		return b.buildLimit(t)
	case planner.OpTopN:
		return b.buildTopN(t)
	case planner.OpHashAgg:
		return b.buildHashAgg(t)
	case planner.OpSortAgg:
		return b.buildSortAgg(t)
	case planner.OpHashJoin:
		return b.buildHashJoin(t)
	case planner.OpMergeJoin:
		return b.buildMergeJoin(t)
	case planner.OpNestedLoopJoin, planner.OpJoin:
		return b.buildNestedLoopJoin(t)
	case planner.OpInsert:
		return b.buildInsert(t)
	case planner.OpDelete:
		return b.buildDelete(t)
	case planner.OpCreate:
		return b.buildCreate(t)
	case planner.OpDrop:
		return b.buildDrop(t)
	case planner.OpCopyFrom:
		return b.buildCopyFrom(t)
	case planner.OpCopyTo:
		return b.buildCopyTo(t)
	case planner.OpExplain:
		return b.buildExplain(t)
	default:
		return nil, engineerr.NewExecute("no physical operator for plan op %d", t.Op)
	}
}

func (b *Builder) buildScan(t *planner.Term) (Operator, error) {
	reader, ok := b.Readers[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no table reader registered for table %d", t.TableID)
	}
	source := reader.Scan(t.Columns, toRowsetKeyRange(t.ScanRange), b.BatchSize)
	// A residual block-level predicate, when the plan has one, always shows
	// up as a separate enclosing OpFilter node (no Node field exists to fold
	// it into the scan itself), so the scan here never carries one.
	return NewScan(source, nil), nil
}

// toRowsetKeyRange converts the optimizer's inclusive/exclusive Bound
// representation (planner.KeyRange) to rowset.KeyRange's half-open [Low,
// High) form. Low is always pushed down when valid, regardless of
// inclusivity, since the plan always keeps (or implies) a residual Filter
// re-checking the exact predicate; an inclusive Low is a safe
// over-approximation there. High is only pushed when it is already
// exclusive — an inclusive High pushed as-is would incorrectly drop rows
// equal to the bound before the residual filter ever saw them, so it is left
// unbounded and caught entirely by the residual predicate instead.
func toRowsetKeyRange(kr *planner.KeyRange) *rowset.KeyRange {
	if kr == nil {
		return nil
	}
	out := &rowset.KeyRange{}
	if kr.Low.Valid {
		out.HasLow = true
		out.Low = kr.Low.Value
	}
	if kr.High.Valid && !kr.High.Inclusive {
		out.HasHigh = true
		out.High = kr.High.Value
	}
	if !out.HasLow && !out.HasHigh {
		return nil
	}
	return out
}

func (b *Builder) buildFilter(t *planner.Term) (Operator, error) {
	if len(t.Children) < 2 {
		return nil, engineerr.NewExecute("filter node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	return NewFilter(t.Children[0], child), nil
}

func (b *Builder) buildProject(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("project node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	return NewProject(t.Children[:len(t.Children)-1], child), nil
}

func (b *Builder) buildOrder(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("order node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	return NewOrder(t.Keys, child), nil
}

func (b *Builder) buildLimit(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("limit node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	return NewLimit(t.Limit, t.Offset, child), nil
}

func (b *Builder) buildTopN(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("topn node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	return NewTopN(t.Keys, t.Limit, t.Offset, child), nil
}

func (b *Builder) buildHashAgg(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("hash agg node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	keys := make([]*planner.Term, len(t.Keys))
	for i, k := range t.Keys {
		keys[i] = k.Expr
	}
	return NewHashAgg(keys, t.Children[:len(t.Children)-1], child), nil
}

func (b *Builder) buildSortAgg(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("sort agg node has no child")
	}
	child, err := b.Build(t.Children[len(t.Children)-1])
	if err != nil {
		return nil, err
	}
	keys := make([]*planner.Term, len(t.Keys))
	for i, k := range t.Keys {
		keys[i] = k.Expr
	}
	return NewSortAgg(keys, t.Children[:len(t.Children)-1], child), nil
}

func (b *Builder) buildJoinSides(t *planner.Term) (cond *planner.Term, left, right Operator, err error) {
	if len(t.Children) != 3 {
		return nil, nil, nil, engineerr.NewExecute("join node must have exactly 3 children (cond, left, right), got %d", len(t.Children))
	}
	cond = t.Children[0]
	left, err = b.Build(t.Children[1])
	if err != nil {
		return nil, nil, nil, err
	}
	right, err = b.Build(t.Children[2])
	if err != nil {
		return nil, nil, nil, err
	}
	return cond, left, right, nil
}

func (b *Builder) buildHashJoin(t *planner.Term) (Operator, error) {
	cond, left, right, err := b.buildJoinSides(t)
	if err != nil {
		return nil, err
	}
	leftWidth, rightWidth := termWidth(t.Children[1]), termWidth(t.Children[2])
	return NewHashJoin(t.JoinKind, cond, t.LKeys, t.RKeys, leftWidth, rightWidth, left, right), nil
}

func (b *Builder) buildMergeJoin(t *planner.Term) (Operator, error) {
	cond, left, right, err := b.buildJoinSides(t)
	if err != nil {
		return nil, err
	}
	leftWidth, rightWidth := termWidth(t.Children[1]), termWidth(t.Children[2])
	return NewMergeJoin(t.JoinKind, cond, t.LKeys, t.RKeys, leftWidth, rightWidth, left, right), nil
}

func (b *Builder) buildNestedLoopJoin(t *planner.Term) (Operator, error) {
	cond, left, right, err := b.buildJoinSides(t)
	if err != nil {
		return nil, err
	}
	leftWidth, rightWidth := termWidth(t.Children[1]), termWidth(t.Children[2])
	return NewNestedLoopJoin(t.JoinKind, cond, leftWidth, rightWidth, left, right), nil
}

// termWidth is the output column count of t's physical plan shape, computed
// structurally (never by running the plan) so join operators can size their
// null-padding rows before any batch has actually been seen.
func termWidth(t *planner.Term) int {
	if t == nil {
		return 0
	}
	switch t.Op {
	case planner.OpScan:
		return len(t.Columns)
	case planner.OpValues:
		if len(t.Children) == 0 {
			return 0
		}
		return len(t.Children[0].Children)
	case planner.OpProj:
		if len(t.Children) == 0 {
			return 0
		}
		return len(t.Children) - 1
	case planner.OpHashJoin, planner.OpMergeJoin, planner.OpNestedLoopJoin, planner.OpJoin:
		if len(t.Children) != 3 {
			return 0
		}
		return termWidth(t.Children[1]) + termWidth(t.Children[2])
	case planner.OpHashAgg, planner.OpSortAgg, planner.OpAgg:
		if len(t.Children) == 0 {
			return len(t.Keys)
		}
		return len(t.Keys) + len(t.Children) - 1
	default:
		if len(t.Children) == 0 {
			return 0
		}
		return termWidth(t.Children[len(t.Children)-1])
	}
}

func (b *Builder) buildInsert(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("insert node has no source child")
	}
	inserter, ok := b.Writers[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no writer registered for table %d", t.TableID)
	}
	// The source child's columns are assumed already arranged in full
	// table-storage-column order: reordering a statement's explicit column
	// list (INSERT INTO t (b, a) VALUES ...) into declaration order is the
	// binder's job, done before this node was ever built, not this
	// operator's.
	child, err := b.Build(t.Children[0])
	if err != nil {
		return nil, err
	}
	return NewInsert(inserter, child), nil
}

func (b *Builder) buildDelete(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("delete node has no source child")
	}
	deleter, ok := b.Deleters[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no deleter registered for table %d", t.TableID)
	}
	source, err := b.buildDeleteSource(t.Children[0], t.TableID)
	if err != nil {
		return nil, err
	}
	// Whatever WHERE columns the scan beneath carried for filtering, the
	// operator itself only ever needs the two identity columns every
	// ScanForDelete batch is prefixed with.
	identity := []*planner.Term{columnIndexTerm(0), columnIndexTerm(1)}
	return NewDelete(deleter, NewProject(identity, source)), nil
}

// buildDeleteSource mirrors Build for the narrow shape an OpDelete source
// subtree can take (bare OpScan, or OpFilter wrapping one): its leaf OpScan
// reads through DeleteReaders instead of Readers, since the WHERE predicate
// evaluated along the way needs row identity carried alongside the scanned
// columns, a shape buildScan's plain TableReader can't produce.
func (b *Builder) buildDeleteSource(t *planner.Term, tableID uint64) (Operator, error) {
	switch t.Op {
	case planner.OpScan:
		reader, ok := b.DeleteReaders[tableID]
		if !ok {
			return nil, engineerr.NewExecute("no delete reader registered for table %d", tableID)
		}
		source := reader.ScanForDelete(t.Columns, toRowsetKeyRange(t.ScanRange), b.BatchSize)
		return NewScan(source, nil), nil
	case planner.OpFilter:
		if len(t.Children) < 2 {
			return nil, engineerr.NewExecute("delete filter node has no child")
		}
		child, err := b.buildDeleteSource(t.Children[len(t.Children)-1], tableID)
		if err != nil {
			return nil, err
		}
		return NewFilter(t.Children[0], child), nil
	default:
		return nil, engineerr.NewExecute("unsupported delete source op %d", t.Op)
	}
}

// columnIndexTerm builds a standalone column-reference term, the shape
// Project's expression list expects.
func columnIndexTerm(i int) *planner.Term {
	return &planner.Term{Node: planner.Node{Op: planner.OpColumnIndex, ColIndex: i}}
}

func (b *Builder) buildCreate(t *planner.Term) (Operator, error) {
	def, ok := b.CreateDefs[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no table definition registered for create of table %d", t.TableID)
	}
	return NewCreateTable(def.Schema, t.TableID, def.Name, def.Columns, def.PrimaryKey), nil
}

func (b *Builder) buildDrop(t *planner.Term) (Operator, error) {
	schema, ok := b.DropSchemas[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no owning schema registered for drop of table %d", t.TableID)
	}
	return NewDropTable(schema, t.TableID), nil
}

func (b *Builder) buildCopyFrom(t *planner.Term) (Operator, error) {
	source, ok := b.CopySources[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no row source registered for copy into table %d", t.TableID)
	}
	colTypes, err := b.columnTypes(t.TableID, t.Columns)
	if err != nil {
		return nil, err
	}
	return NewCopyFrom(colTypes, source, b.BatchSize), nil
}

func (b *Builder) buildCopyTo(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("copy-to node has no source child")
	}
	sink, ok := b.CopySinks[t.TableID]
	if !ok {
		return nil, engineerr.NewExecute("no row sink registered for copy from table %d", t.TableID)
	}
	child, err := b.Build(t.Children[0])
	if err != nil {
		return nil, err
	}
	return NewCopyTo(child, sink), nil
}

func (b *Builder) buildExplain(t *planner.Term) (Operator, error) {
	if len(t.Children) < 1 {
		return nil, engineerr.NewExecute("explain node has no inner plan")
	}
	return NewExplain(t.Children[0]), nil
}

// columnTypes resolves storageColIDs against tableID's catalog definition, in
// order, for CopyFrom's field-to-value casting.
func (b *Builder) columnTypes(tableID uint64, storageColIDs []uint64) ([]types.DataType, error) {
	table, ok := b.CatalogTables[tableID]
	if !ok {
		return nil, engineerr.NewExecute("no catalog table registered for table %d", tableID)
	}
	out := make([]types.DataType, len(storageColIDs))
	for i, id := range storageColIDs {
		col, ok := table.ColumnByID(id)
		if !ok {
			return nil, engineerr.NewExecute("column id %d not found in table %q", id, table.Name)
		}
		out[i] = col.Type
	}
	return out, nil
}
