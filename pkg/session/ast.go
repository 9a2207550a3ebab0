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

import "github.com/egraph-db/secondary/pkg/types"

// Stmt is one parsed top-level statement.
type Stmt interface{ stmt() }

// ColumnDef is one column of a CREATE TABLE statement.
type ColumnDef struct {
	Name       string
	Type       types.DataType
	PrimaryKey bool
}

// CreateTableStmt is CREATE TABLE name (col type [PRIMARY KEY], ...).
type CreateTableStmt struct {
	Table   string
	Columns []ColumnDef
}

// InsertStmt is INSERT INTO name [(col, ...)] VALUES (expr, ...), ...
type InsertStmt struct {
	Table   string
	Columns []string // nil means "all columns, declaration order"
	Rows    [][]Expr
}

// DeleteStmt is DELETE FROM name [WHERE expr].
type DeleteStmt struct {
	Table string
	Where Expr
}

// DropTableStmt is DROP TABLE name.
type DropTableStmt struct {
	Table string
}

// SelectItem is one expression of a SELECT list, with its optional alias.
type SelectItem struct {
	Expr  Expr
	Alias string
}

// OrderItem is one ORDER BY clause entry.
type OrderItem struct {
	Expr Expr
	Desc bool
}

// SelectStmt is SELECT list FROM table [WHERE][GROUP BY][ORDER BY][LIMIT][OFFSET].
type SelectStmt struct {
	Columns []SelectItem
	From    string
	Where   Expr
	GroupBy []Expr
	OrderBy []OrderItem
	Limit   *int64
	Offset  *int64
}

// ExplainStmt is EXPLAIN stmt.
type ExplainStmt struct {
	Inner Stmt
}

func (*CreateTableStmt) stmt() {}
func (*InsertStmt) stmt()      {}
func (*DeleteStmt) stmt()      {}
func (*DropTableStmt) stmt()   {}
func (*SelectStmt) stmt()      {}
func (*ExplainStmt) stmt()     {}

// Expr is one parsed scalar expression.
type Expr interface{ expr() }

// Literal is a constant value.
type Literal struct{ Value types.Value }

// ColumnRef names a column by its unqualified name.
type ColumnRef struct{ Name string }

// Star is the bare `*` select item.
type Star struct{}

// UnaryExpr is a prefix operator applied to X: "-" or "NOT".
type UnaryExpr struct {
	Op string
	X  Expr
}

// BinaryExpr is an infix operator applied to L and R.
type BinaryExpr struct {
	Op   string
	L, R Expr
}

// FuncCall is name(args...): only the aggregate functions SUM/AVG/MIN/MAX/
// COUNT are bound, per the session package's scope.
type FuncCall struct {
	Name string
	Args []Expr
}

func (*Literal) expr()    {}
func (*ColumnRef) expr()  {}
func (*Star) expr()       {}
func (*UnaryExpr) expr()  {}
func (*BinaryExpr) expr() {}
func (*FuncCall) expr()   {}
