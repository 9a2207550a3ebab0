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

// Package optimize wires pkg/planner's e-graph and pkg/planner/rules's
// rewrite stages into the staged-saturation driver of spec.md §4.4. It is
// its own package, separate from both, purely to break the import cycle
// rules would otherwise have with its own driver (rules already imports
// planner for EGraph/Node).
package optimize

import (
	"github.com/egraph-db/secondary/pkg/planner"
	"github.com/egraph-db/secondary/pkg/planner/rules"
)

// Config carries the staged-saturation driver's tunables of spec.md §4.4,
// plus the rule-gating options of spec.md §6.5.
type Config struct {
	rules.Config

	// IterLimit bounds how many saturation passes run within one
	// re-extraction window of a stage.
	IterLimit int
	// StageIterations bounds how many re-extractions a stage performs
	// before moving to the next stage.
	StageIterations int
}

// DefaultConfig returns conservative driver limits; callers override
// individual fields as needed.
func DefaultConfig() Config {
	return Config{IterLimit: 20, StageIterations: 5}
}

type stage struct {
	rules []rules.Rule
}

// Optimize runs the three-stage equality-saturation driver of spec.md §4.4
// starting from root within g, returning the final extracted physical term.
func Optimize(g *planner.EGraph, root planner.Id, cfg Config) *planner.Term {
	stages := []stage{
		{rules.Stage1()},
		{rules.Stage2()},
		{rules.Stage3()},
	}

	current := root
	bestCost := planner.InfCost
	for _, st := range stages {
		for i := 0; i < cfg.StageIterations; i++ {
			saturate(g, st.rules, cfg.Config, cfg.IterLimit)

			cost := planner.CostOf(g, current)
			if cost >= bestCost {
				break
			}
			bestCost = cost
			current = reseed(g, planner.Extract(g, current))
		}
	}

	return planner.Extract(g, current)
}

// saturate runs every rule in rs against g in a round-robin fixed point,
// stopping once a full pass over all rules makes no further change or
// iterLimit rounds have run, whichever comes first.
func saturate(g *planner.EGraph, rs []rules.Rule, cfg rules.Config, iterLimit int) {
	for i := 0; i < iterLimit; i++ {
		changed := false
		for _, r := range rs {
			if r(g, cfg) {
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// reseed re-adds the extracted term's tree back into g, returning the id of
// its root e-class — the working expression for the next re-extraction
// pass, per spec.md §4.4 step 1 ("replace the working expression").
func reseed(g *planner.EGraph, t *planner.Term) planner.Id {
	if t == nil {
		return g.Add(planner.Node{Op: planner.OpSelect})
	}
	children := make([]planner.Id, len(t.Children))
	for i, c := range t.Children {
		children[i] = reseed(g, c)
	}
	n := t.Node
	n.Children = children
	return g.Add(n)
}
