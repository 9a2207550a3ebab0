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

// EGraph is a union-find over e-classes plus hash-consed e-nodes, per
// spec.md §3.6 ("all terms live in a shared e-graph whose equivalence
// classes carry an analysis record"). Unlike egg's incremental congruence
// maintenance, this EGraph batch-rebuilds: Union only merges union-find
// parents and analyses; Rebuild() re-canonicalizes every node's children
// and re-merges any classes that collide as a result, repeating until a
// full pass makes no further merges. This fits spec.md §4.4's staged
// saturation driver, which always rebuilds once per iteration rather than
// needing congruence maintained mid-rule-application.
type EGraph struct {
	parent    []Id
	classNode map[Id][]Node // keyed by root id only (always kept canonical after Rebuild)
	analysis  map[Id]*Analysis
}

// NewEGraph constructs an empty e-graph.
func NewEGraph() *EGraph {
	return &EGraph{classNode: map[Id][]Node{}, analysis: map[Id]*Analysis{}}
}

func (g *EGraph) newClass() Id {
	id := Id(len(g.parent))
	g.parent = append(g.parent, id)
	return id
}

// Find returns the canonical id of id's e-class, compressing the path.
func (g *EGraph) Find(id Id) Id {
	for g.parent[id] != id {
		g.parent[id] = g.parent[g.parent[id]]
		id = g.parent[id]
	}
	return id
}

// Add canonicalizes n's children and hash-conses it into the graph,
// returning the (possibly pre-existing) class id it belongs to.
func (g *EGraph) Add(n Node) Id {
	n.Children = canonChildren(g, n.Children)
	n.LKeys = canonChildren(g, n.LKeys)
	n.RKeys = canonChildren(g, n.RKeys)
	for i := range n.Keys {
		n.Keys[i].Expr = g.Find(n.Keys[i].Expr)
	}
	key := n.key()
	for id, nodes := range g.classNode {
		for _, existing := range nodes {
			if existing.key() == key {
				return g.Find(id)
			}
		}
	}
	id := g.newClass()
	g.classNode[id] = []Node{n}
	a := computeAnalysis(g, n)
	if isAggregateOp(n.Op) {
		a.Aggregates[id] = struct{}{}
	}
	g.analysis[id] = a
	return id
}

func isAggregateOp(op Op) bool {
	switch op {
	case OpMax, OpMin, OpSum, OpAvg, OpCount, OpRowCount, OpFirst, OpLast:
		return true
	default:
		return false
	}
}

func canonChildren(g *EGraph, ids []Id) []Id {
	if ids == nil {
		return nil
	}
	out := make([]Id, len(ids))
	for i, c := range ids {
		out[i] = g.Find(c)
	}
	return out
}

// Union merges a and b's e-classes and their analyses, returning the new
// root. Reports whether the analysis actually changed, which callers use
// to decide whether to keep iterating saturation.
func (g *EGraph) Union(a, b Id) (Id, bool) {
	a, b = g.Find(a), g.Find(b)
	if a == b {
		return a, false
	}
	merged, changed := mergeAnalysis(g.analysis[a], g.analysis[b])
	g.parent[b] = a
	g.classNode[a] = append(g.classNode[a], g.classNode[b]...)
	delete(g.classNode, b)
	g.analysis[a] = merged
	delete(g.analysis, b)
	return a, changed
}

// Rebuild re-canonicalizes every node's children against the current
// union-find state and merges any classes whose nodes become congruent as
// a result, repeating until a full pass finds nothing new to merge.
func (g *EGraph) Rebuild() {
	for {
		byRoot := map[Id][]Node{}
		for id, nodes := range g.classNode {
			root := g.Find(id)
			for _, n := range nodes {
				n.Children = canonChildren(g, n.Children)
				n.LKeys = canonChildren(g, n.LKeys)
				n.RKeys = canonChildren(g, n.RKeys)
				byRoot[root] = append(byRoot[root], n)
			}
		}
		seen := map[string]Id{}
		merged := false
		for root, nodes := range byRoot {
			root = g.Find(root)
			for _, n := range nodes {
				k := n.key()
				if other, ok := seen[k]; ok {
					otherRoot := g.Find(other)
					if otherRoot != root {
						newRoot, _ := g.Union(otherRoot, root)
						root = newRoot
						merged = true
						continue
					}
				}
				seen[k] = root
			}
		}
		if !merged {
			// Recompute classNode strictly keyed by current roots, deduped.
			dedup := map[Id]map[string]Node{}
			for id, nodes := range g.classNode {
				root := g.Find(id)
				if dedup[root] == nil {
					dedup[root] = map[string]Node{}
				}
				for _, n := range nodes {
					n.Children = canonChildren(g, n.Children)
					dedup[root][n.key()] = n
				}
			}
			g.classNode = map[Id][]Node{}
			for root, set := range dedup {
				for _, n := range set {
					g.classNode[root] = append(g.classNode[root], n)
				}
			}
			return
		}
	}
}

// Nodes returns every e-node belonging to id's e-class.
func (g *EGraph) Nodes(id Id) []Node {
	return g.classNode[g.Find(id)]
}

// Classes returns the id of every currently live e-class (roots only).
func (g *EGraph) Classes() []Id {
	out := make([]Id, 0, len(g.classNode))
	for id := range g.classNode {
		out = append(out, g.Find(id))
	}
	return out
}

// Analysis returns id's e-class analysis record, per spec.md §4.2.
func (g *EGraph) Analysis(id Id) *Analysis {
	return g.analysis[g.Find(id)]
}
