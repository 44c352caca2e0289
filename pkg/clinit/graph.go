// Package clinit orders the static initializers of a linked program and
// synthesizes the entry method that runs them before the program's main method.
package clinit

import (
	"sort"

	"github.com/daimatz/jvmlink/pkg/linkmodel"
)

// Graph is a directed graph of class names. An edge a -> b means b must be
// initialized before a.
type Graph struct {
	adj map[string]map[string]bool
}

// NewGraph returns an empty graph.
func NewGraph() *Graph {
	return &Graph{adj: make(map[string]map[string]bool)}
}

// AddNode adds name if it is not present yet.
func (g *Graph) AddNode(name string) {
	if g.adj[name] == nil {
		g.adj[name] = make(map[string]bool)
	}
}

// AddEdge adds both nodes and the edge from -> to.
func (g *Graph) AddEdge(from, to string) {
	g.AddNode(from)
	g.AddNode(to)
	g.adj[from][to] = true
}

// Has reports whether name is a node.
func (g *Graph) Has(name string) bool {
	_, ok := g.adj[name]
	return ok
}

// Nodes returns every node in name order.
func (g *Graph) Nodes() []string {
	out := make([]string, 0, len(g.adj))
	for n := range g.adj {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// Successors returns the targets of name's edges in name order.
func (g *Graph) Successors(name string) []string {
	out := make([]string, 0, len(g.adj[name]))
	for n := range g.adj[name] {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

type color int

const (
	white color = iota
	gray
	black
)

type frame struct {
	node string
	succ []string
	next int
}

// Order returns the nodes so that every node follows all of its successors.
// first, when it is a node, is visited before all others. Nodes and successors
// are otherwise visited in name order, so the result depends only on the graph.
// A cycle yields a *linkmodel.CyclicInitError.
func (g *Graph) Order(first string) ([]string, error) {
	colors := make(map[string]color, len(g.adj))
	var order []string

	visit := func(start string) error {
		if colors[start] != white {
			return nil
		}
		colors[start] = gray
		stack := []*frame{{node: start, succ: g.Successors(start)}}
		for len(stack) > 0 {
			top := stack[len(stack)-1]
			if top.next == len(top.succ) {
				colors[top.node] = black
				order = append(order, top.node)
				stack = stack[:len(stack)-1]
				continue
			}
			next := top.succ[top.next]
			top.next++
			switch colors[next] {
			case gray:
				return cycleError(stack, next)
			case white:
				colors[next] = gray
				stack = append(stack, &frame{node: next, succ: g.Successors(next)})
			}
		}
		return nil
	}

	if g.Has(first) {
		if err := visit(first); err != nil {
			return nil, err
		}
	}
	for _, n := range g.Nodes() {
		if err := visit(n); err != nil {
			return nil, err
		}
	}
	return order, nil
}

func cycleError(stack []*frame, node string) error {
	i := len(stack) - 1
	for i > 0 && stack[i].node != node {
		i--
	}
	var cycle []string
	for _, f := range stack[i:] {
		cycle = append(cycle, f.node)
	}
	cycle = append(cycle, node)
	return &linkmodel.CyclicInitError{Class: node, Cycle: cycle}
}
