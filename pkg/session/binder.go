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

package session

import (
	"strings"

	"github.com/egraph-db/secondary/pkg/catalog"
	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/executor"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// binder turns a parsed Stmt into an e-graph rooted at one Id, per spec.md
// §6.1's bind-to-root-id contract. It never constructs a *planner.Term
// directly (that is Extract's job, downstream of optimize.Optimize) except
// where the EXPLAIN special case requires hand-wrapping an already
// extracted inner term.
type binder struct {
	g      *planner.EGraph
	schema *catalog.Schema
}

func newBinder(schema *catalog.Schema) *binder {
	return &binder{g: planner.NewEGraph(), schema: schema}
}

// scope resolves a column name to its position within the row a bound
// expression is evaluated against. colOffset shifts every position by a
// fixed amount, used by bindDelete so WHERE predicates line up with the
// identity-prefixed rows secondary.Table.ScanForDelete produces.
type scope struct {
	table     *catalog.Table
	colOffset int
}

func (s *scope) resolve(name string) (int, *catalog.Column, bool) {
	col, ok := s.table.ColumnByName(name)
	if !ok {
		return 0, nil, false
	}
	for i, c := range s.table.Columns {
		if c.ID == col.ID {
			return i + s.colOffset, col, true
		}
	}
	return 0, nil, false
}

func (b *binder) resolveTable(name string) (*catalog.Table, error) {
	t, ok := b.schema.TableByName(name)
	if !ok {
		return nil, engineerr.NewBind(engineerr.InvalidTable, "", nil, "table %q not found", name)
	}
	return t, nil
}

func columnIDs(t *catalog.Table) []uint64 {
	out := make([]uint64, len(t.Columns))
	for i, c := range t.Columns {
		out[i] = c.ID
	}
	return out
}

var aggFuncs = map[string]planner.Op{
	"SUM": planner.OpSum,
	"AVG": planner.OpAvg,
	"MIN": planner.OpMin,
	"MAX": planner.OpMax,
}

func isAggFuncName(name string) bool {
	if strings.EqualFold(name, "COUNT") {
		return true
	}
	_, ok := aggFuncs[strings.ToUpper(name)]
	return ok
}

func containsAggCall(e Expr) bool {
	switch ex := e.(type) {
	case *FuncCall:
		return isAggFuncName(ex.Name)
	case *UnaryExpr:
		return containsAggCall(ex.X)
	case *BinaryExpr:
		return containsAggCall(ex.L) || containsAggCall(ex.R)
	default:
		return false
	}
}

// bindScalarExpr binds e against sc (sc == nil means "no column references
// are valid here", the VALUES-row context). Any aggregate call found is
// rejected with errKind, the caller's context-specific bind error.
func (b *binder) bindScalarExpr(e Expr, sc *scope, errKind engineerr.BindErrorKind) (planner.Id, types.DataType, error) {
	switch ex := e.(type) {
	case *Literal:
		return b.g.Add(planner.Node{Op: planner.OpLiteral, Literal: ex.Value}), ex.Value.Type, nil
	case *ColumnRef:
		if sc == nil {
			return 0, types.DataType{}, engineerr.NewBind(engineerr.InvalidColumn, "", nil, "column reference %q not valid in this context", ex.Name)
		}
		idx, col, ok := sc.resolve(ex.Name)
		if !ok {
			return 0, types.DataType{}, engineerr.NewBind(engineerr.InvalidColumn, "", nil, "column %q not found in table %q", ex.Name, sc.table.Name)
		}
		return b.g.Add(planner.Node{Op: planner.OpColumnIndex, ColIndex: idx}), col.Type, nil
	case *UnaryExpr:
		xid, xt, err := b.bindScalarExpr(ex.X, sc, errKind)
		if err != nil {
			return 0, types.DataType{}, err
		}
		switch ex.Op {
		case "-":
			return b.g.Add(planner.Node{Op: planner.OpNeg, Children: []planner.Id{xid}}), xt, nil
		case "NOT":
			return b.g.Add(planner.Node{Op: planner.OpNot, Children: []planner.Id{xid}}), types.NewType(types.KindBool, true), nil
		}
		return 0, types.DataType{}, engineerr.NewBind(engineerr.NotSupported, "", nil, "unsupported unary operator %q", ex.Op)
	case *BinaryExpr:
		lid, lt, err := b.bindScalarExpr(ex.L, sc, errKind)
		if err != nil {
			return 0, types.DataType{}, err
		}
		rid, _, err := b.bindScalarExpr(ex.R, sc, errKind)
		if err != nil {
			return 0, types.DataType{}, err
		}
		op, boolResult, ok := binaryOp(ex.Op)
		if !ok {
			return 0, types.DataType{}, engineerr.NewBind(engineerr.NotSupported, "", nil, "unsupported operator %q", ex.Op)
		}
		rt := lt
		if boolResult {
			rt = types.NewType(types.KindBool, true)
		}
		return b.g.Add(planner.Node{Op: op, Children: []planner.Id{lid, rid}}), rt, nil
	case *FuncCall:
		return 0, types.DataType{}, engineerr.NewBind(errKind, "", nil, "aggregate function %q not allowed here", ex.Name)
	case *Star:
		return 0, types.DataType{}, engineerr.NewBind(engineerr.InvalidExpression, "", nil, "* not allowed here")
	default:
		return 0, types.DataType{}, engineerr.NewBind(engineerr.NotSupported, "", nil, "unsupported expression")
	}
}

func binaryOp(op string) (planner.Op, bool, bool) {
	switch op {
	case "+":
		return planner.OpAdd, false, true
	case "-":
		return planner.OpSub, false, true
	case "*":
		return planner.OpMul, false, true
	case "/":
		return planner.OpDiv, false, true
	case "%":
		return planner.OpMod, false, true
	case "=":
		return planner.OpEq, true, true
	case "<>":
		return planner.OpNe, true, true
	case "<":
		return planner.OpLt, true, true
	case ">":
		return planner.OpGt, true, true
	case "<=":
		return planner.OpLe, true, true
	case ">=":
		return planner.OpGe, true, true
	case "AND":
		return planner.OpAnd, true, true
	case "OR":
		return planner.OpOr, true, true
	case "LIKE":
		return planner.OpLike, true, true
	default:
		return 0, false, false
	}
}

// bindAggCall binds one top-level aggregate FuncCall against sc, returning
// the id of a fresh OpSum/OpAvg/OpMin/OpMax/OpCount/OpRowCount node.
func (b *binder) bindAggCall(fc *FuncCall, sc *scope) (planner.Id, error) {
	name := strings.ToUpper(fc.Name)
	if name == "COUNT" {
		if len(fc.Args) == 1 {
			if _, isStar := fc.Args[0].(*Star); isStar {
				return b.g.Add(planner.Node{Op: planner.OpRowCount}), nil
			}
		}
		if len(fc.Args) != 1 {
			return 0, engineerr.NewBind(engineerr.InvalidExpression, "", nil, "COUNT takes exactly one argument")
		}
		argID, _, err := b.bindScalarExpr(fc.Args[0], sc, engineerr.NestedAgg)
		if err != nil {
			return 0, err
		}
		return b.g.Add(planner.Node{Op: planner.OpCount, Children: []planner.Id{argID}}), nil
	}
	op, ok := aggFuncs[name]
	if !ok {
		return 0, engineerr.NewBind(engineerr.NotSupported, "", nil, "unknown function %q", fc.Name)
	}
	if len(fc.Args) != 1 {
		return 0, engineerr.NewBind(engineerr.InvalidExpression, "", nil, "%s takes exactly one argument", name)
	}
	argID, _, err := b.bindScalarExpr(fc.Args[0], sc, engineerr.NestedAgg)
	if err != nil {
		return 0, err
	}
	return b.g.Add(planner.Node{Op: op, Children: []planner.Id{argID}}), nil
}

// exprKey is a structural dedup/equality key over the small Expr subset
// select items and GROUP BY keys can take — used to recognize when two
// select-list entries name the same aggregate call or group key, without a
// full expression-equality implementation.
func exprKey(e Expr) string {
	switch ex := e.(type) {
	case *ColumnRef:
		return "col:" + strings.ToLower(ex.Name)
	case *FuncCall:
		var sb strings.Builder
		sb.WriteString(strings.ToUpper(ex.Name))
		sb.WriteByte('(')
		for i, a := range ex.Args {
			if i > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(exprKey(a))
		}
		sb.WriteByte(')')
		return sb.String()
	case *Star:
		return "*"
	default:
		return ""
	}
}

func matchGroupExpr(e Expr, groupBy []Expr) int {
	cr, ok := e.(*ColumnRef)
	if !ok {
		return -1
	}
	for i, g := range groupBy {
		if gcr, ok := g.(*ColumnRef); ok && strings.EqualFold(gcr.Name, cr.Name) {
			return i
		}
	}
	return -1
}

func expandStar(items []SelectItem, table *catalog.Table) []SelectItem {
	var out []SelectItem
	for _, it := range items {
		if _, ok := it.Expr.(*Star); ok {
			for _, c := range table.Columns {
				out = append(out, SelectItem{Expr: &ColumnRef{Name: c.Name}})
			}
			continue
		}
		out = append(out, it)
	}
	return out
}

// bindSelect binds stmt into the e-graph, returning the root id of the
// fully composed plan (Project on top of whatever Order/TopN/Limit/HashAgg/
// Filter/Scan chain the clauses require) plus the single table id it reads
// from.
func (b *binder) bindSelect(stmt *SelectStmt) (planner.Id, uint64, error) {
	table, err := b.resolveTable(stmt.From)
	if err != nil {
		return 0, 0, err
	}
	sc := &scope{table: table}
	srcID := b.g.Add(planner.Node{Op: planner.OpScan, TableID: table.ID, Columns: columnIDs(table)})

	if stmt.Where != nil {
		whereID, _, err := b.bindScalarExpr(stmt.Where, sc, engineerr.AggregateInWhere)
		if err != nil {
			return 0, 0, err
		}
		srcID = b.g.Add(planner.Node{Op: planner.OpFilter, Children: []planner.Id{whereID, srcID}})
	}

	hasAgg := len(stmt.GroupBy) > 0
	if !hasAgg {
		for _, it := range stmt.Columns {
			if containsAggCall(it.Expr) {
				hasAgg = true
				break
			}
		}
	}

	var body planner.Id
	var projPositions []int // per select item, the ColIndex to emit in the final project

	if hasAgg {
		groupIDs := make([]planner.Id, len(stmt.GroupBy))
		for i, ge := range stmt.GroupBy {
			id, _, err := b.bindScalarExpr(ge, sc, engineerr.AggregateInGroupBy)
			if err != nil {
				return 0, 0, err
			}
			groupIDs[i] = id
		}
		var aggIDs []planner.Id
		aggIndex := map[string]int{}
		projPositions = make([]int, len(stmt.Columns))
		for i, it := range stmt.Columns {
			if fc, ok := it.Expr.(*FuncCall); ok && isAggFuncName(fc.Name) {
				id, err := b.bindAggCall(fc, sc)
				if err != nil {
					return 0, 0, err
				}
				key := exprKey(it.Expr)
				idx, seen := aggIndex[key]
				if !seen {
					idx = len(aggIDs)
					aggIDs = append(aggIDs, id)
					aggIndex[key] = idx
				}
				projPositions[i] = len(groupIDs) + idx
				continue
			}
			pos := matchGroupExpr(it.Expr, stmt.GroupBy)
			if pos < 0 {
				return 0, 0, engineerr.NewBind(engineerr.ColumnNotInAgg, "", nil, "select item is neither an aggregate nor a GROUP BY key")
			}
			projPositions[i] = pos
		}
		keys := make([]planner.SortKey, len(groupIDs))
		for i, id := range groupIDs {
			keys[i] = planner.SortKey{Expr: id}
		}
		children := append(append([]planner.Id{}, aggIDs...), srcID)
		body = b.g.Add(planner.Node{Op: planner.OpHashAgg, Keys: keys, Children: children})
	} else {
		body = srcID
	}

	// ORDER BY / LIMIT / OFFSET, resolved against body's row shape: the
	// scan/filter row for a plain query, the group/agg-output row for an
	// aggregate query.
	if len(stmt.OrderBy) > 0 {
		keys := make([]planner.SortKey, len(stmt.OrderBy))
		for i, o := range stmt.OrderBy {
			var id planner.Id
			var err error
			if hasAgg {
				id, err = b.resolveAggOrderKey(o.Expr, stmt)
			} else {
				id, _, err = b.bindScalarExpr(o.Expr, sc, engineerr.NotSupported)
			}
			if err != nil {
				return 0, 0, err
			}
			keys[i] = planner.SortKey{Expr: id, Desc: o.Desc}
		}
		limit, offset := int64(0), int64(0)
		if stmt.Limit != nil {
			limit = *stmt.Limit
		}
		if stmt.Offset != nil {
			offset = *stmt.Offset
		}
		if stmt.Limit != nil {
			body = b.g.Add(planner.Node{Op: planner.OpTopN, Keys: keys, Limit: limit, Offset: offset, Children: []planner.Id{body}})
		} else {
			body = b.g.Add(planner.Node{Op: planner.OpOrder, Keys: keys, Children: []planner.Id{body}})
		}
	} else if stmt.Limit != nil {
		offset := int64(0)
		if stmt.Offset != nil {
			offset = *stmt.Offset
		}
		body = b.g.Add(planner.Node{Op: planner.OpLimit, Limit: *stmt.Limit, Offset: offset, Children: []planner.Id{body}})
	}

	var projIDs []planner.Id
	if hasAgg {
		projIDs = make([]planner.Id, len(projPositions))
		for i, pos := range projPositions {
			projIDs[i] = b.g.Add(planner.Node{Op: planner.OpColumnIndex, ColIndex: pos})
		}
	} else {
		items := expandStar(stmt.Columns, table)
		projIDs = make([]planner.Id, len(items))
		for i, it := range items {
			id, _, err := b.bindScalarExpr(it.Expr, sc, engineerr.AggregateInWhere)
			if err != nil {
				return 0, 0, err
			}
			projIDs[i] = id
		}
	}
	root := b.g.Add(planner.Node{Op: planner.OpProj, Children: append(projIDs, body)})
	return root, table.ID, nil
}

// resolveAggOrderKey resolves an ORDER BY entry of an aggregate query
// against the agg-output row: either a GROUP BY key (by name) or a select
// item that is itself an aggregate call or a group key, matched
// structurally by exprKey.
func (b *binder) resolveAggOrderKey(e Expr, stmt *SelectStmt) (planner.Id, error) {
	if pos := matchGroupExpr(e, stmt.GroupBy); pos >= 0 {
		return b.g.Add(planner.Node{Op: planner.OpColumnIndex, ColIndex: pos}), nil
	}
	key := exprKey(e)
	groupCount := len(stmt.GroupBy)
	aggIndex := map[string]int{}
	next := 0
	for _, it := range stmt.Columns {
		if fc, ok := it.Expr.(*FuncCall); ok && isAggFuncName(fc.Name) {
			k := exprKey(it.Expr)
			idx, seen := aggIndex[k]
			if !seen {
				idx = next
				aggIndex[k] = idx
				next++
			}
			if k == key {
				return b.g.Add(planner.Node{Op: planner.OpColumnIndex, ColIndex: groupCount + idx}), nil
			}
		}
	}
	return 0, engineerr.NewBind(engineerr.NotSupported, "", nil, "ORDER BY key is neither a GROUP BY key nor a selected aggregate")
}

// bindInsert reorders the VALUES rows into the table's declared column
// order and returns the OpInsert root plus the table id.
func (b *binder) bindInsert(stmt *InsertStmt) (planner.Id, uint64, error) {
	table, err := b.resolveTable(stmt.Table)
	if err != nil {
		return 0, 0, err
	}
	order := table.Columns
	if stmt.Columns != nil {
		if len(stmt.Columns) != len(table.Columns) {
			return 0, 0, engineerr.NewBind(engineerr.ColumnCountMismatch, "", nil, "insert column list has %d columns, table %q has %d", len(stmt.Columns), table.Name, len(table.Columns))
		}
		order = make([]*catalog.Column, len(stmt.Columns))
		seen := map[uint64]bool{}
		for i, name := range stmt.Columns {
			col, ok := table.ColumnByName(name)
			if !ok {
				return 0, 0, engineerr.NewBind(engineerr.InvalidColumn, "", nil, "column %q not found in table %q", name, table.Name)
			}
			if seen[col.ID] {
				return 0, 0, engineerr.NewBind(engineerr.ColumnExists, "", nil, "column %q repeated in insert column list", name)
			}
			seen[col.ID] = true
			order[i] = col
		}
	}
	declaredIdx := make(map[uint64]int, len(table.Columns))
	for i, c := range table.Columns {
		declaredIdx[c.ID] = i
	}
	rowTerms := make([]planner.Id, len(stmt.Rows))
	for ri, row := range stmt.Rows {
		if len(row) != len(order) {
			return 0, 0, engineerr.NewBind(engineerr.ColumnCountMismatch, "", nil, "row %d has %d values, expected %d", ri, len(row), len(order))
		}
		vals := make([]planner.Id, len(table.Columns))
		for vi, ve := range row {
			id, _, err := b.bindScalarExpr(ve, nil, engineerr.InvalidExpression)
			if err != nil {
				return 0, 0, err
			}
			vals[declaredIdx[order[vi].ID]] = id
		}
		rowTerms[ri] = b.g.Add(planner.Node{Op: planner.OpTuple, Children: vals})
	}
	valuesID := b.g.Add(planner.Node{Op: planner.OpValues, Children: rowTerms})
	return b.g.Add(planner.Node{Op: planner.OpInsert, TableID: table.ID, Children: []planner.Id{valuesID}}), table.ID, nil
}

// bindDelete binds stmt's WHERE clause against the identity-prefixed scope
// secondary.Table.ScanForDelete produces (storage columns shifted right by
// the two identity columns every such scan prefixes its batches with).
func (b *binder) bindDelete(stmt *DeleteStmt) (planner.Id, uint64, error) {
	table, err := b.resolveTable(stmt.Table)
	if err != nil {
		return 0, 0, err
	}
	sc := &scope{table: table, colOffset: 2}
	srcID := b.g.Add(planner.Node{Op: planner.OpScan, TableID: table.ID, Columns: columnIDs(table)})
	if stmt.Where != nil {
		whereID, _, err := b.bindScalarExpr(stmt.Where, sc, engineerr.AggregateInWhere)
		if err != nil {
			return 0, 0, err
		}
		srcID = b.g.Add(planner.Node{Op: planner.OpFilter, Children: []planner.Id{whereID, srcID}})
	}
	return b.g.Add(planner.Node{Op: planner.OpDelete, TableID: table.ID, Children: []planner.Id{srcID}}), table.ID, nil
}

// bindCreateTable allocates storage ids for every column (and constructs the
// TableDef the executor's CreateTableOperator needs) using alloc for the
// table id itself.
func (b *binder) bindCreateTable(stmt *CreateTableStmt, tableID uint64) (planner.Id, *executor.TableDef, error) {
	cols := make([]*catalog.Column, len(stmt.Columns))
	var pk []uint64
	for i, cd := range stmt.Columns {
		col := &catalog.Column{ID: uint64(i), Name: cd.Name, Type: cd.Type}
		cols[i] = col
		if cd.PrimaryKey {
			pk = append(pk, col.ID)
		}
	}
	root := b.g.Add(planner.Node{Op: planner.OpCreate, TableID: tableID})
	def := &executor.TableDef{Schema: b.schema, Name: stmt.Table, Columns: cols, PrimaryKey: pk}
	return root, def, nil
}

func (b *binder) bindDropTable(stmt *DropTableStmt) (planner.Id, uint64, error) {
	table, err := b.resolveTable(stmt.Table)
	if err != nil {
		return 0, 0, err
	}
	return b.g.Add(planner.Node{Op: planner.OpDrop, TableID: table.ID}), table.ID, nil
}
