package model

import (
	"fmt"
	"slices"

	"github.com/imamik/vnsync/internal/platform/contrail"
)

// Graph is the arena of model objects for one reconciliation pass. Nodes are
// indexed by UUID and linked by explicit parent/child edge lists.
type Graph struct {
	nodes    map[string]Object
	order    []string
	parents  map[string][]string
	children map[string][]string
}

// NewGraph creates an empty graph.
func NewGraph() *Graph {
	return &Graph{
		nodes:    make(map[string]Object),
		parents:  make(map[string][]string),
		children: make(map[string][]string),
	}
}

// Add inserts o into the graph. Adding the same UUID twice is an error.
func (g *Graph) Add(o Object) error {
	id := o.UUID()
	if id == "" {
		return fmt.Errorf("cannot add %s without uuid", o.Kind())
	}
	if _, ok := g.nodes[id]; ok {
		return fmt.Errorf("%s %s already in graph", o.Kind(), id)
	}
	o.node().graph = g
	g.nodes[id] = o
	g.order = append(g.order, id)
	return nil
}

// Get returns the node with the given UUID.
func (g *Graph) Get(uuid string) (Object, bool) {
	o, ok := g.nodes[uuid]
	return o, ok
}

// Len returns the number of nodes.
func (g *Graph) Len() int {
	return len(g.order)
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []Object {
	out := make([]Object, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// AddTo records that child depends on parent. Self-edges and edges that
// would close a cycle are rejected with ErrCycle. Repeated edges are no-ops.
func (g *Graph) AddTo(child, parent Object) error {
	c, p := child.UUID(), parent.UUID()
	if _, ok := g.nodes[c]; !ok {
		return fmt.Errorf("%s %s not in graph", child.Kind(), c)
	}
	if _, ok := g.nodes[p]; !ok {
		return fmt.Errorf("%s %s not in graph", parent.Kind(), p)
	}
	if c == p {
		return fmt.Errorf("%s %s depends on itself: %w", child.Kind(), c, ErrCycle)
	}
	if slices.Contains(g.parents[c], p) {
		return nil
	}
	if g.reachable(c, p) {
		return fmt.Errorf("%s %s -> %s %s: %w", child.Kind(), c, parent.Kind(), p, ErrCycle)
	}
	g.parents[c] = append(g.parents[c], p)
	g.children[p] = append(g.children[p], c)
	return nil
}

// reachable reports whether to is a descendant of from.
func (g *Graph) reachable(from, to string) bool {
	seen := map[string]bool{from: true}
	stack := []string{from}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, next := range g.children[id] {
			if next == to {
				return true
			}
			if !seen[next] {
				seen[next] = true
				stack = append(stack, next)
			}
		}
	}
	return false
}

// Parents returns the direct parents of o in edge order.
func (g *Graph) Parents(o Object) []Object {
	return g.lookup(g.parents[o.UUID()])
}

// Children returns the direct children of o in edge order.
func (g *Graph) Children(o Object) []Object {
	return g.lookup(g.children[o.UUID()])
}

// ParentOfKind returns the first parent of o with the given kind.
func (g *Graph) ParentOfKind(o Object, kind contrail.Kind) Object {
	for _, p := range g.Parents(o) {
		if p.Kind() == kind {
			return p
		}
	}
	return nil
}

// Descendants returns every node reachable from o through child edges.
func (g *Graph) Descendants(o Object) []Object {
	var ids []string
	seen := map[string]bool{o.UUID(): true}
	queue := []string{o.UUID()}
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		for _, next := range g.children[id] {
			if !seen[next] {
				seen[next] = true
				ids = append(ids, next)
				queue = append(queue, next)
			}
		}
	}
	return g.lookup(ids)
}

// TopoOrder returns every node with parents before children. Ties are broken
// by insertion order so the result is deterministic.
func (g *Graph) TopoOrder() ([]Object, error) {
	indegree := make(map[string]int, len(g.order))
	for _, id := range g.order {
		indegree[id] = len(g.parents[id])
	}

	var queue []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	out := make([]Object, 0, len(g.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, g.nodes[id])
		for _, c := range g.children[id] {
			indegree[c]--
			if indegree[c] == 0 {
				queue = append(queue, c)
			}
		}
	}

	if len(out) != len(g.order) {
		return nil, ErrCycle
	}
	return out, nil
}

// ReverseOrder returns every node with children before parents.
func (g *Graph) ReverseOrder() ([]Object, error) {
	order, err := g.TopoOrder()
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	return order, nil
}

func (g *Graph) lookup(ids []string) []Object {
	out := make([]Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, g.nodes[id])
	}
	return out
}
