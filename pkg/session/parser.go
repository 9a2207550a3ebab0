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
	"strconv"
	"strings"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/types"
)

// parser is a recursive-descent parser over a flat token stream, grammar
// restricted to the statement forms spec.md §8's scenarios exercise: CREATE
// TABLE, INSERT, DELETE, DROP TABLE, SELECT, EXPLAIN. Expression precedence
// climbs OR -> AND -> NOT -> comparison -> additive -> multiplicative ->
// unary -> primary, the conventional SQL ladder.
type parser struct {
	toks []token
	pos  int
}

func parseSQL(sql string) (Stmt, error) {
	toks, err := newLexer(sql).tokenize()
	if err != nil {
		return nil, err
	}
	p := &parser{toks: toks}
	stmt, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	p.skipPunct(";")
	if !p.atEOF() {
		return nil, engineerr.NewParse("unexpected trailing input at %d", p.cur().pos)
	}
	return stmt, nil
}

func (p *parser) cur() token  { return p.toks[p.pos] }
func (p *parser) atEOF() bool { return p.cur().kind == tokEOF }

func (p *parser) advance() token {
	t := p.toks[p.pos]
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return t
}

func (p *parser) atKeyword(kw string) bool {
	t := p.cur()
	return t.kind == tokIdent && strings.EqualFold(t.text, kw)
}

func (p *parser) atPunct(s string) bool {
	t := p.cur()
	return t.kind == tokPunct && t.text == s
}

func (p *parser) eatKeyword(kw string) error {
	if !p.atKeyword(kw) {
		return engineerr.NewParse("expected keyword %q at %d, got %q", kw, p.cur().pos, p.cur().text)
	}
	p.advance()
	return nil
}

func (p *parser) skipPunct(s string) bool {
	if p.atPunct(s) {
		p.advance()
		return true
	}
	return false
}

func (p *parser) eatPunct(s string) error {
	if !p.skipPunct(s) {
		return engineerr.NewParse("expected %q at %d, got %q", s, p.cur().pos, p.cur().text)
	}
	return nil
}

func (p *parser) eatIdent() (string, error) {
	t := p.cur()
	if t.kind != tokIdent {
		return "", engineerr.NewParse("expected identifier at %d, got %q", t.pos, t.text)
	}
	p.advance()
	return t.text, nil
}

func (p *parser) parseStatement() (Stmt, error) {
	switch {
	case p.atKeyword("CREATE"):
		return p.parseCreateTable()
	case p.atKeyword("INSERT"):
		return p.parseInsert()
	case p.atKeyword("DELETE"):
		return p.parseDelete()
	case p.atKeyword("DROP"):
		return p.parseDropTable()
	case p.atKeyword("EXPLAIN"):
		return p.parseExplain()
	case p.atKeyword("SELECT"):
		return p.parseSelect()
	default:
		return nil, engineerr.NewParse("unrecognized statement starting at %d (%q)", p.cur().pos, p.cur().text)
	}
}

// parseCreateTable parses CREATE TABLE name (col type [PRIMARY KEY], ...).
func (p *parser) parseCreateTable() (Stmt, error) {
	if err := p.eatKeyword("CREATE"); err != nil {
		return nil, err
	}
	if err := p.eatKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.eatIdent()
	if err != nil {
		return nil, err
	}
	if err := p.eatPunct("("); err != nil {
		return nil, err
	}
	var cols []ColumnDef
	for {
		colName, err := p.eatIdent()
		if err != nil {
			return nil, err
		}
		typ, err := p.parseTypeName()
		if err != nil {
			return nil, err
		}
		cd := ColumnDef{Name: colName, Type: typ}
		if p.atKeyword("PRIMARY") {
			p.advance()
			if err := p.eatKeyword("KEY"); err != nil {
				return nil, err
			}
			cd.PrimaryKey = true
			cd.Type.Nullable = false
		}
		cols = append(cols, cd)
		if p.skipPunct(",") {
			continue
		}
		break
	}
	if err := p.eatPunct(")"); err != nil {
		return nil, err
	}
	return &CreateTableStmt{Table: name, Columns: cols}, nil
}

// parseTypeName maps a SQL type name onto a types.DataType, nullable unless
// the column turns out to be a primary key (the caller flips that back).
func (p *parser) parseTypeName() (types.DataType, error) {
	name, err := p.eatIdent()
	if err != nil {
		return types.DataType{}, err
	}
	switch strings.ToUpper(name) {
	case "BOOL", "BOOLEAN":
		return types.NewType(types.KindBool, true), nil
	case "INT", "INTEGER", "INT32":
		return types.NewType(types.KindInt32, true), nil
	case "BIGINT", "INT64", "LONG":
		return types.NewType(types.KindInt64, true), nil
	case "FLOAT", "DOUBLE", "FLOAT64", "REAL":
		return types.NewType(types.KindFloat64, true), nil
	case "DECIMAL", "NUMERIC":
		precision, scale := int32(38), int32(0)
		if p.skipPunct("(") {
			pr, err := p.eatIntLiteral()
			if err != nil {
				return types.DataType{}, err
			}
			precision = int32(pr)
			if p.skipPunct(",") {
				sc, err := p.eatIntLiteral()
				if err != nil {
					return types.DataType{}, err
				}
				scale = int32(sc)
			}
			if err := p.eatPunct(")"); err != nil {
				return types.DataType{}, err
			}
		}
		return types.NewDecimalType(precision, scale, true), nil
	case "VARCHAR", "TEXT", "STRING", "CHAR":
		if p.skipPunct("(") {
			if _, err := p.eatIntLiteral(); err != nil {
				return types.DataType{}, err
			}
			if err := p.eatPunct(")"); err != nil {
				return types.DataType{}, err
			}
		}
		return types.NewType(types.KindString, true), nil
	case "BLOB", "BYTES", "VARBINARY":
		return types.NewType(types.KindBlob, true), nil
	case "DATE":
		return types.NewType(types.KindDate, true), nil
	case "TIMESTAMP":
		return types.NewType(types.KindTimestamp, true), nil
	case "TIMESTAMPTZ":
		return types.NewType(types.KindTimestampTz, true), nil
	case "INTERVAL":
		return types.NewType(types.KindInterval, true), nil
	case "VECTOR":
		dim := 0
		if p.skipPunct("(") {
			d, err := p.eatIntLiteral()
			if err != nil {
				return types.DataType{}, err
			}
			dim = d
			if err := p.eatPunct(")"); err != nil {
				return types.DataType{}, err
			}
		}
		return types.NewVectorType(dim, true), nil
	default:
		return types.DataType{}, engineerr.NewParse("unknown type name %q", name)
	}
}

func (p *parser) eatIntLiteral() (int, error) {
	t := p.cur()
	if t.kind != tokNumber {
		return 0, engineerr.NewParse("expected integer at %d, got %q", t.pos, t.text)
	}
	p.advance()
	n, err := strconv.Atoi(t.text)
	if err != nil {
		return 0, engineerr.NewParse("invalid integer literal %q at %d", t.text, t.pos)
	}
	return n, nil
}

// parseInsert parses INSERT INTO name [(col, ...)] VALUES (expr, ...), ...
func (p *parser) parseInsert() (Stmt, error) {
	if err := p.eatKeyword("INSERT"); err != nil {
		return nil, err
	}
	if err := p.eatKeyword("INTO"); err != nil {
		return nil, err
	}
	name, err := p.eatIdent()
	if err != nil {
		return nil, err
	}
	var cols []string
	if p.skipPunct("(") {
		for {
			c, err := p.eatIdent()
			if err != nil {
				return nil, err
			}
			cols = append(cols, c)
			if p.skipPunct(",") {
				continue
			}
			break
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
	}
	if err := p.eatKeyword("VALUES"); err != nil {
		return nil, err
	}
	var rows [][]Expr
	for {
		if err := p.eatPunct("("); err != nil {
			return nil, err
		}
		var row []Expr
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			row = append(row, e)
			if p.skipPunct(",") {
				continue
			}
			break
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
		rows = append(rows, row)
		if p.skipPunct(",") {
			continue
		}
		break
	}
	return &InsertStmt{Table: name, Columns: cols, Rows: rows}, nil
}

// parseDelete parses DELETE FROM name [WHERE expr].
func (p *parser) parseDelete() (Stmt, error) {
	if err := p.eatKeyword("DELETE"); err != nil {
		return nil, err
	}
	if err := p.eatKeyword("FROM"); err != nil {
		return nil, err
	}
	name, err := p.eatIdent()
	if err != nil {
		return nil, err
	}
	stmt := &DeleteStmt{Table: name}
	if p.atKeyword("WHERE") {
		p.advance()
		stmt.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	return stmt, nil
}

// parseDropTable parses DROP TABLE name.
func (p *parser) parseDropTable() (Stmt, error) {
	if err := p.eatKeyword("DROP"); err != nil {
		return nil, err
	}
	if err := p.eatKeyword("TABLE"); err != nil {
		return nil, err
	}
	name, err := p.eatIdent()
	if err != nil {
		return nil, err
	}
	return &DropTableStmt{Table: name}, nil
}

// parseExplain parses EXPLAIN stmt.
func (p *parser) parseExplain() (Stmt, error) {
	if err := p.eatKeyword("EXPLAIN"); err != nil {
		return nil, err
	}
	inner, err := p.parseStatement()
	if err != nil {
		return nil, err
	}
	return &ExplainStmt{Inner: inner}, nil
}

// parseSelect parses SELECT list FROM table [WHERE][GROUP BY][ORDER BY]
// [LIMIT][OFFSET].
func (p *parser) parseSelect() (Stmt, error) {
	if err := p.eatKeyword("SELECT"); err != nil {
		return nil, err
	}
	var items []SelectItem
	for {
		if p.atPunct("*") {
			p.advance()
			items = append(items, SelectItem{Expr: &Star{}})
		} else {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := SelectItem{Expr: e}
			if p.atKeyword("AS") {
				p.advance()
				alias, err := p.eatIdent()
				if err != nil {
					return nil, err
				}
				item.Alias = alias
			}
			items = append(items, item)
		}
		if p.skipPunct(",") {
			continue
		}
		break
	}
	stmt := &SelectStmt{Columns: items}
	if err := p.eatKeyword("FROM"); err != nil {
		return nil, err
	}
	from, err := p.eatIdent()
	if err != nil {
		return nil, err
	}
	stmt.From = from

	if p.atKeyword("WHERE") {
		p.advance()
		stmt.Where, err = p.parseExpr()
		if err != nil {
			return nil, err
		}
	}
	if p.atKeyword("GROUP") {
		p.advance()
		if err := p.eatKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			stmt.GroupBy = append(stmt.GroupBy, e)
			if p.skipPunct(",") {
				continue
			}
			break
		}
	}
	if p.atKeyword("ORDER") {
		p.advance()
		if err := p.eatKeyword("BY"); err != nil {
			return nil, err
		}
		for {
			e, err := p.parseExpr()
			if err != nil {
				return nil, err
			}
			item := OrderItem{Expr: e}
			if p.atKeyword("DESC") {
				p.advance()
				item.Desc = true
			} else if p.atKeyword("ASC") {
				p.advance()
			}
			stmt.OrderBy = append(stmt.OrderBy, item)
			if p.skipPunct(",") {
				continue
			}
			break
		}
	}
	if p.atKeyword("LIMIT") {
		p.advance()
		n, err := p.eatIntLiteral()
		if err != nil {
			return nil, err
		}
		v := int64(n)
		stmt.Limit = &v
	}
	if p.atKeyword("OFFSET") {
		p.advance()
		n, err := p.eatIntLiteral()
		if err != nil {
			return nil, err
		}
		v := int64(n)
		stmt.Offset = &v
	}
	return stmt, nil
}

// --- expressions ---

func (p *parser) parseExpr() (Expr, error) { return p.parseOr() }

func (p *parser) parseOr() (Expr, error) {
	l, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("OR") {
		p.advance()
		r, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: "OR", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseAnd() (Expr, error) {
	l, err := p.parseNot()
	if err != nil {
		return nil, err
	}
	for p.atKeyword("AND") {
		p.advance()
		r, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: "AND", L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseNot() (Expr, error) {
	if p.atKeyword("NOT") {
		p.advance()
		x, err := p.parseNot()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "NOT", X: x}, nil
	}
	return p.parseComparison()
}

func (p *parser) parseComparison() (Expr, error) {
	l, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	op := ""
	switch {
	case p.atPunct("="):
		op = "="
	case p.atPunct("<>"), p.atPunct("!="):
		op = "<>"
	case p.atPunct("<"):
		op = "<"
	case p.atPunct(">"):
		op = ">"
	case p.atPunct("<="):
		op = "<="
	case p.atPunct(">="):
		op = ">="
	case p.atKeyword("LIKE"):
		op = "LIKE"
	}
	if op == "" {
		return l, nil
	}
	p.advance()
	r, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	return &BinaryExpr{Op: op, L: l, R: r}, nil
}

func (p *parser) parseAdditive() (Expr, error) {
	l, err := p.parseMultiplicative()
	if err != nil {
		return nil, err
	}
	for p.atPunct("+") || p.atPunct("-") {
		op := p.advance().text
		r, err := p.parseMultiplicative()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseMultiplicative() (Expr, error) {
	l, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.atPunct("*") || p.atPunct("/") || p.atPunct("%") {
		op := p.advance().text
		r, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		l = &BinaryExpr{Op: op, L: l, R: r}
	}
	return l, nil
}

func (p *parser) parseUnary() (Expr, error) {
	if p.atPunct("-") {
		p.advance()
		x, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &UnaryExpr{Op: "-", X: x}, nil
	}
	return p.parsePrimary()
}

func (p *parser) parsePrimary() (Expr, error) {
	t := p.cur()
	switch {
	case p.atPunct("("):
		p.advance()
		e, err := p.parseExpr()
		if err != nil {
			return nil, err
		}
		if err := p.eatPunct(")"); err != nil {
			return nil, err
		}
		return e, nil
	case t.kind == tokNumber:
		p.advance()
		return &Literal{Value: numberLiteral(t.text)}, nil
	case t.kind == tokString:
		p.advance()
		return &Literal{Value: types.StringValue(t.text)}, nil
	case t.kind == tokIdent:
		switch strings.ToUpper(t.text) {
		case "NULL":
			p.advance()
			return &Literal{Value: types.NullValue(types.NewType(types.KindNull, true))}, nil
		case "TRUE":
			p.advance()
			return &Literal{Value: types.BoolValue(true)}, nil
		case "FALSE":
			p.advance()
			return &Literal{Value: types.BoolValue(false)}, nil
		}
		name, err := p.eatIdent()
		if err != nil {
			return nil, err
		}
		if p.atPunct("(") {
			p.advance()
			var args []Expr
			if p.atPunct("*") {
				p.advance()
				args = append(args, &Star{})
			} else if !p.atPunct(")") {
				for {
					a, err := p.parseExpr()
					if err != nil {
						return nil, err
					}
					args = append(args, a)
					if p.skipPunct(",") {
						continue
					}
					break
				}
			}
			if err := p.eatPunct(")"); err != nil {
				return nil, err
			}
			return &FuncCall{Name: name, Args: args}, nil
		}
		return &ColumnRef{Name: name}, nil
	default:
		return nil, engineerr.NewParse("unexpected token %q at %d", t.text, t.pos)
	}
}

// numberLiteral parses a lexed numeric token into an int64 or float64 value
// depending on whether it carries a fractional part.
func numberLiteral(text string) types.Value {
	if strings.Contains(text, ".") {
		f, _ := strconv.ParseFloat(text, 64)
		return types.Float64Value(f)
	}
	n, err := strconv.ParseInt(text, 10, 64)
	if err != nil {
		f, _ := strconv.ParseFloat(text, 64)
		return types.Float64Value(f)
	}
	return types.Int64Value(n)
}
