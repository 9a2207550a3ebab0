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
	"strconv"
	"strings"

	"github.com/egraph-db/secondary/pkg/common/engineerr"
	"github.com/egraph-db/secondary/pkg/containers"
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

// Eval evaluates a scalar expression term against every row of batch,
// returning a materialized column. By the time the binder/optimizer have
// finished, every column reference in a scalar term is positional
// (Node.ColIndex), so evaluation needs nothing beyond the batch itself.
func Eval(t *planner.Term, batch *containers.Batch) (containers.Array, error) {
	n := batch.Cardinality()
	out := containers.NewEmptyArray(resultType(t, batch))
	for i := 0; i < n; i++ {
		v, err := evalRow(t, batch, i)
		if err != nil {
			return nil, err
		}
		out.AppendValue(v)
	}
	return out, nil
}

// resultType infers the output type of t well enough to allocate the right
// kind of accumulator array; boolean-producing ops always resolve to Bool,
// everything else borrows its first operand's (or the referenced column's)
// type, which is exact for Cast and close enough for arithmetic since
// AppendValue only inspects v.Null for untyped kinds.
func resultType(t *planner.Term, batch *containers.Batch) types.DataType {
	switch t.Op {
	case planner.OpGt, planner.OpLt, planner.OpGe, planner.OpLe, planner.OpEq, planner.OpNe,
		planner.OpAnd, planner.OpOr, planner.OpXor, planner.OpLike, planner.OpNot, planner.OpIsNull, planner.OpIn:
		return types.NewType(types.KindBool, true)
	case planner.OpCast:
		return t.CastType
	case planner.OpColumnRef, planner.OpColumnIndex:
		if t.ColIndex < batch.NumColumns() {
			return batch.Column(t.ColIndex).Type()
		}
	case planner.OpLiteral:
		return t.Literal.Type
	}
	if len(t.Children) > 0 {
		return resultType(t.Children[0], batch)
	}
	return types.NewType(types.KindInt64, true)
}

func evalRow(t *planner.Term, batch *containers.Batch, row int) (types.Value, error) {
	switch t.Op {
	case planner.OpLiteral:
		return t.Literal, nil
	case planner.OpColumnRef, planner.OpColumnIndex:
		if t.ColIndex >= batch.NumColumns() {
			return types.Value{}, engineerr.NewExecute("column index %d out of range (batch has %d columns)", t.ColIndex, batch.NumColumns())
		}
		return batch.Column(t.ColIndex).Get(row), nil
	case planner.OpNeg:
		v, err := evalRow(t.Children[0], batch, row)
		if err != nil {
			return types.Value{}, err
		}
		return types.Neg(v)
	case planner.OpNot:
		v, err := evalRow(t.Children[0], batch, row)
		if err != nil {
			return types.Value{}, err
		}
		if v.Null {
			return types.NullValue(types.NewType(types.KindBool, true)), nil
		}
		return types.BoolValue(!v.Bool()), nil
	case planner.OpIsNull:
		v, err := evalRow(t.Children[0], batch, row)
		if err != nil {
			return types.Value{}, err
		}
		return types.BoolValue(v.Null), nil
	case planner.OpCast:
		v, err := evalRow(t.Children[0], batch, row)
		if err != nil {
			return types.Value{}, err
		}
		return castValue(v, t.CastType)
	case planner.OpAdd, planner.OpSub, planner.OpMul, planner.OpDiv, planner.OpMod,
		planner.OpGt, planner.OpLt, planner.OpGe, planner.OpLe, planner.OpEq, planner.OpNe,
		planner.OpAnd, planner.OpOr, planner.OpXor, planner.OpLike, planner.OpConcat:
		return evalBinary(t, batch, row)
	case planner.OpIf:
		cond, err := evalRow(t.Children[0], batch, row)
		if err != nil {
			return types.Value{}, err
		}
		if !cond.Null && cond.Bool() {
			return evalRow(t.Children[1], batch, row)
		}
		return evalRow(t.Children[2], batch, row)
	case planner.OpIn:
		left, err := evalRow(t.Children[0], batch, row)
		if err != nil {
			return types.Value{}, err
		}
		for _, c := range t.Children[1:] {
			v, err := evalRow(c, batch, row)
			if err != nil {
				return types.Value{}, err
			}
			if !left.Null && !v.Null && types.Compare(left, v) == 0 {
				return types.BoolValue(true), nil
			}
		}
		return types.BoolValue(false), nil
	default:
		return types.Value{}, engineerr.NewExecute("cannot evaluate operator %d as a scalar expression", t.Op)
	}
}

func evalBinary(t *planner.Term, batch *containers.Batch, row int) (types.Value, error) {
	a, err := evalRow(t.Children[0], batch, row)
	if err != nil {
		return types.Value{}, err
	}
	b, err := evalRow(t.Children[1], batch, row)
	if err != nil {
		return types.Value{}, err
	}

	switch t.Op {
	case planner.OpAnd:
		if (!a.Null && !a.Bool()) || (!b.Null && !b.Bool()) {
			return types.BoolValue(false), nil
		}
		if a.Null || b.Null {
			return types.NullValue(types.NewType(types.KindBool, true)), nil
		}
		return types.BoolValue(true), nil
	case planner.OpOr:
		if (!a.Null && a.Bool()) || (!b.Null && b.Bool()) {
			return types.BoolValue(true), nil
		}
		if a.Null || b.Null {
			return types.NullValue(types.NewType(types.KindBool, true)), nil
		}
		return types.BoolValue(false), nil
	case planner.OpXor:
		if a.Null || b.Null {
			return types.NullValue(types.NewType(types.KindBool, true)), nil
		}
		return types.BoolValue(a.Bool() != b.Bool()), nil
	}

	if a.Null || b.Null {
		return types.NullValue(resultTypeOfOp(t.Op, a, b)), nil
	}

	switch t.Op {
	case planner.OpAdd:
		return types.Add(a, b)
	case planner.OpSub:
		return types.Sub(a, b)
	case planner.OpMul:
		return types.Mul(a, b)
	case planner.OpDiv:
		return types.Div(a, b)
	case planner.OpMod:
		return types.Mod(a, b)
	case planner.OpConcat:
		return types.StringValue(a.String_() + b.String_()), nil
	case planner.OpGt:
		return types.BoolValue(types.Compare(a, b) > 0), nil
	case planner.OpLt:
		return types.BoolValue(types.Compare(a, b) < 0), nil
	case planner.OpGe:
		return types.BoolValue(types.Compare(a, b) >= 0), nil
	case planner.OpLe:
		return types.BoolValue(types.Compare(a, b) <= 0), nil
	case planner.OpEq:
		return types.BoolValue(types.Compare(a, b) == 0), nil
	case planner.OpNe:
		return types.BoolValue(types.Compare(a, b) != 0), nil
	case planner.OpLike:
		return types.BoolValue(matchLike(a.String_(), b.String_())), nil
	default:
		return types.Value{}, engineerr.NewExecute("unsupported binary operator %d", t.Op)
	}
}

func resultTypeOfOp(op planner.Op, a, b types.Value) types.DataType {
	switch op {
	case planner.OpGt, planner.OpLt, planner.OpGe, planner.OpLe, planner.OpEq, planner.OpNe:
		return types.NewType(types.KindBool, true)
	}
	if !a.Null {
		return a.Type
	}
	return b.Type
}

func castValue(v types.Value, target types.DataType) (types.Value, error) {
	if v.Null {
		return types.NullValue(target), nil
	}
	switch target.Kind {
	case types.KindInt32:
		return types.Int32Value(int32(numeric(v))), nil
	case types.KindInt64:
		return types.Int64Value(int64(numeric(v))), nil
	case types.KindFloat64:
		return types.Float64Value(numeric(v)), nil
	case types.KindString:
		return types.StringValue(v.String()), nil
	case types.KindBool:
		return types.BoolValue(numeric(v) != 0), nil
	default:
		return types.Value{}, engineerr.NewConvert("unsupported cast target kind %v", target.Kind)
	}
}

func numeric(v types.Value) float64 {
	switch v.Type.Kind {
	case types.KindInt32:
		return float64(v.Int32())
	case types.KindInt64, types.KindDate, types.KindTimestamp:
		return float64(v.Int64())
	case types.KindFloat64:
		return v.Float64()
	case types.KindBool:
		if v.Bool() {
			return 1
		}
		return 0
	case types.KindString:
		f, _ := strconv.ParseFloat(strings.TrimSpace(v.String_()), 64)
		return f
	default:
		return 0
	}
}

// matchLike implements SQL LIKE with `%`/`_` wildcards via a small greedy
// matcher; good enough for the single-pattern, no-escape-char case this
// engine's scope covers.
func matchLike(s, pattern string) bool {
	parts := strings.Split(pattern, "%")
	if len(parts) == 1 {
		return matchSegment(s, pattern) && len(s) == len(pattern)
	}
	if len(s) < len(parts[0]) || !matchSegment(s[:len(parts[0])], parts[0]) {
		return false
	}
	s = s[len(parts[0]):]
	for i := 1; i < len(parts)-1; i++ {
		idx := indexSegment(s, parts[i])
		if idx < 0 {
			return false
		}
		s = s[idx+len(parts[i]):]
	}
	last := parts[len(parts)-1]
	return len(s) >= len(last) && matchSegment(s[len(s)-len(last):], last)
}

func matchSegment(s, seg string) bool {
	if len(s) != len(seg) {
		return false
	}
	for i := range seg {
		if seg[i] != '_' && seg[i] != s[i] {
			return false
		}
	}
	return true
}

func indexSegment(s, seg string) int {
	for i := 0; i+len(seg) <= len(s); i++ {
		if matchSegment(s[i:i+len(seg)], seg) {
			return i
		}
	}
	return -1
}
