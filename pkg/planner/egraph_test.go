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

package planner

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/egraph-db/secondary/pkg/types"
)

func TestAddHashConsesIdenticalNodes(t *testing.T) {
	g := NewEGraph()
	a := g.Add(Node{Op: OpLiteral, Literal: types.Int64Value(1)})
	b := g.Add(Node{Op: OpLiteral, Literal: types.Int64Value(1)})
	require.Equal(t, a, b, "identical literal nodes must hash-cons to the same class")

	c := g.Add(Node{Op: OpLiteral, Literal: types.Int64Value(2)})
	require.NotEqual(t, a, c)
}

func TestAddCanonicalizesChildren(t *testing.T) {
	g := NewEGraph()
	lit1 := g.Add(Node{Op: OpLiteral, Literal: types.Int64Value(1)})
	lit1Again := g.Add(Node{Op: OpLiteral, Literal: types.Int64Value(1)})
	require.Equal(t, lit1, lit1Again)

	// Union two distinct literal classes, then add a node referencing the
	// merged-away id: Add must canonicalize to the surviving root so the two
	// resulting Add nodes still hash-cons together.
	lit2 := g.Add(Node{Op: OpLiteral, Literal: types.Int64Value(2)})
	g.Union(lit1, lit2)
	g.Rebuild()

	n1 := g.Add(Node{Op: OpNeg, Children: []Id{lit1}})
	n2 := g.Add(Node{Op: OpNeg, Children: []Id{lit2}})
	require.Equal(t, n1, n2)
}

func TestUnionMergesClassesAndRebuildPropagates(t *testing.T) {
	g := NewEGraph()
	a := g.Add(Node{Op: OpColumnIndex, ColIndex: 0})
	b := g.Add(Node{Op: OpColumnIndex, ColIndex: 1})
	parentA := g.Add(Node{Op: OpNot, Children: []Id{a}})
	parentB := g.Add(Node{Op: OpNot, Children: []Id{b}})
	require.NotEqual(t, parentA, parentB)

	g.Union(a, b)
	g.Rebuild()
	require.Equal(t, g.Find(parentA), g.Find(parentB), "congruent parents must merge after Rebuild")
}

func TestExtractPicksCheapestEquivalentTerm(t *testing.T) {
	g := NewEGraph()
	scan := g.Add(Node{Op: OpScan, TableID: 1, Columns: []uint64{0, 1}})
	filterTrue := g.Add(Node{Op: OpLiteral, Literal: types.BoolValue(true)})
	filtered := g.Add(Node{Op: OpFilter, Children: []Id{filterTrue, scan}})

	// A Filter(true, scan) node is logically equivalent to scan alone; union
	// them directly (simulating what an identity-elimination rule would do)
	// and confirm Extract prefers the cheaper scan-only term.
	root, _ := g.Union(scan, filtered)
	g.Rebuild()

	term := Extract(g, root)
	require.Equal(t, OpScan, term.Op, "extraction should prefer the cheaper of two congruent alternatives")
}

func TestExplainRendersNestedPlan(t *testing.T) {
	g := NewEGraph()
	scan := g.Add(Node{Op: OpScan, TableID: 7, Columns: []uint64{0}})
	pred := g.Add(Node{Op: OpLiteral, Literal: types.BoolValue(true)})
	filter := g.Add(Node{Op: OpFilter, Children: []Id{pred, scan}})

	term := Extract(g, filter)
	out := Explain(term)
	require.Contains(t, out, "Filter")
	require.Contains(t, out, "Scan")
}
