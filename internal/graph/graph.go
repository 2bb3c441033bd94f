// Package graph tracks import dependencies between batch modules.
//
// Nodes are qualified module names; an edge a -> b means a imports from b.
// Iteration follows insertion order so results are reproducible.
package graph

import (
	"fmt"
	"sort"
)

// Graph is a directed dependency graph. It is not safe for concurrent
// mutation; read-only use after construction is safe.
type Graph struct {
	index map[string]int
	nodes []string
	edges [][]int
}

func New() *Graph {
	return &Graph{index: make(map[string]int)}
}

// AddNode adds name if it is not present yet.
func (g *Graph) AddNode(name string) {
	g.node(name)
}

func (g *Graph) node(name string) int {
	if i, ok := g.index[name]; ok {
		return i
	}
	i := len(g.nodes)
	g.index[name] = i
	g.nodes = append(g.nodes, name)
	g.edges = append(g.edges, nil)
	return i
}

// AddEdge records that from depends on to. Duplicate edges are ignored.
func (g *Graph) AddEdge(from, to string) {
	f, t := g.node(from), g.node(to)
	for _, e := range g.edges[f] {
		if e == t {
			return
		}
	}
	g.edges[f] = append(g.edges[f], t)
}

func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Deps returns the direct dependencies of name.
func (g *Graph) Deps(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	out := make([]string, len(g.edges[i]))
	for j, e := range g.edges[i] {
		out[j] = g.nodes[e]
	}
	return out
}

// Cycles returns one closed path per strongly connected component that
// contains a cycle, e.g. [a b a]. Self-imports yield [a a].
func (g *Graph) Cycles() [][]string {
	var out [][]string
	for _, scc := range g.components() {
		if len(scc) == 1 && !g.selfLoop(scc[0]) {
			continue
		}
		out = append(out, g.cyclePath(scc))
	}
	return out
}

// InCycle reports whether name lies on a cycle.
func (g *Graph) InCycle(name string) bool {
	for _, c := range g.Cycles() {
		for _, n := range c {
			if n == name {
				return true
			}
		}
	}
	return false
}

// TopoOrder returns the nodes with every dependency before its dependents.
func (g *Graph) TopoOrder() ([]string, error) {
	if cycles := g.Cycles(); len(cycles) > 0 {
		return nil, fmt.Errorf("import cycle: %v", cycles[0])
	}
	state := make([]uint8, len(g.nodes))
	order := make([]string, 0, len(g.nodes))
	var visit func(int)
	visit = func(n int) {
		if state[n] != 0 {
			return
		}
		state[n] = 1
		for _, d := range g.edges[n] {
			visit(d)
		}
		order = append(order, g.nodes[n])
	}
	for i := range g.nodes {
		visit(i)
	}
	return order, nil
}

func (g *Graph) selfLoop(n int) bool {
	for _, e := range g.edges[n] {
		if e == n {
			return true
		}
	}
	return false
}

// components runs Tarjan's algorithm and returns each component sorted by
// insertion order, components ordered by their first node.
func (g *Graph) components() [][]int {
	var (
		counter int
		stack   []int
		out     [][]int
	)
	index := make([]int, len(g.nodes))
	low := make([]int, len(g.nodes))
	onStack := make([]bool, len(g.nodes))
	for i := range index {
		index[i] = -1
	}

	var connect func(int)
	connect = func(v int) {
		index[v], low[v] = counter, counter
		counter++
		stack = append(stack, v)
		onStack[v] = true
		for _, w := range g.edges[v] {
			switch {
			case index[w] < 0:
				connect(w)
				low[v] = min(low[v], low[w])
			case onStack[w]:
				low[v] = min(low[v], index[w])
			}
		}
		if low[v] != index[v] {
			return
		}
		var scc []int
		for {
			w := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		out = append(out, scc)
	}
	for v := range g.nodes {
		if index[v] < 0 {
			connect(v)
		}
	}

	for _, scc := range out {
		sort.Ints(scc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}

// cyclePath walks from the component's first node back to itself, staying
// inside the component.
func (g *Graph) cyclePath(scc []int) []string {
	in := make(map[int]bool, len(scc))
	for _, n := range scc {
		in[n] = true
	}
	start := scc[0]
	seen := map[int]bool{}
	var path []int
	var walk func(int) bool
	walk = func(v int) bool {
		path = append(path, v)
		seen[v] = true
		for _, w := range g.edges[v] {
			if w == start {
				path = append(path, w)
				return true
			}
			if in[w] && !seen[w] && walk(w) {
				return true
			}
		}
		path = path[:len(path)-1]
		return false
	}
	walk(start)

	out := make([]string, len(path))
	for i, n := range path {
		out[i] = g.nodes[n]
	}
	return out
}
