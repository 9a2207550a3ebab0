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

package optimize

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/types"
)

func TestOptimizeSimplifiesAddZero(t *testing.T) {
	g := planner.NewEGraph()
	col := g.Add(planner.Node{Op: planner.OpColumnIndex, ColIndex: 0})
	zero := g.Add(planner.Node{Op: planner.OpLiteral, Literal: types.Int64Value(0)})
	root := g.Add(planner.Node{Op: planner.OpAdd, Children: []planner.Id{col, zero}})

	term := Optimize(g, root, DefaultConfig())
	require.Equal(t, planner.OpColumnIndex, term.Op, "x+0 should simplify to x")
}

func TestOptimizeOnScanIsStable(t *testing.T) {
	g := planner.NewEGraph()
	root := g.Add(planner.Node{Op: planner.OpScan, TableID: 1, Columns: []uint64{0, 1}})

	term := Optimize(g, root, DefaultConfig())
	require.Equal(t, planner.OpScan, term.Op)
	require.Equal(t, uint64(1), term.TableID)
}

func TestOptimizeFilterFalseDropsScan(t *testing.T) {
	g := planner.NewEGraph()
	scan := g.Add(planner.Node{Op: planner.OpScan, TableID: 1, Columns: []uint64{0}})
	falseLit := g.Add(planner.Node{Op: planner.OpLiteral, Literal: types.BoolValue(false)})
	root := g.Add(planner.Node{Op: planner.OpFilter, Children: []planner.Id{falseLit, scan}})

	term := Optimize(g, root, DefaultConfig())
	require.Equal(t, planner.OpValues, term.Op, "WHERE false should optimize away the scan into an empty values node")
	require.Empty(t, term.Children)
}
