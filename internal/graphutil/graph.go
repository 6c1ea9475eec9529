// Copyright Amazon.com, Inc. or its affiliates. All Rights Reserved.
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

// Package graphutil contains a directed graph over arbitrary comparable vertices that can be used with both the
// yourbasic graph library and gonum's graph algorithms.
package graphutil

import (
	"fmt"
	"sort"

	"github.com/yourbasic/graph"
	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/iterator"
	"gonum.org/v1/gonum/graph/topo"
)

// Digraph is a directed graph whose vertices are values of type T. Each vertex is given an id in [0, Order()) in
// insertion order. It implements graph.Iterator and gonum's graph.Directed.
type Digraph[T comparable] struct {
	// Vertices maps ids to vertices
	Vertices []T

	ids map[T]int64
	out map[int64]map[int64]bool
	in  map[int64]map[int64]bool
}

// NewDigraph returns an empty graph
func NewDigraph[T comparable]() *Digraph[T] {
	return &Digraph[T]{
		ids: map[T]int64{},
		out: map[int64]map[int64]bool{},
		in:  map[int64]map[int64]bool{},
	}
}

// AddNode adds v to the graph if it is not already present and returns its id
func (g *Digraph[T]) AddNode(v T) int64 {
	if id, ok := g.ids[v]; ok {
		return id
	}
	id := int64(len(g.Vertices))
	g.Vertices = append(g.Vertices, v)
	g.ids[v] = id
	g.out[id] = map[int64]bool{}
	g.in[id] = map[int64]bool{}
	return id
}

// AddEdge adds an edge from x to y, adding the vertices if needed
func (g *Digraph[T]) AddEdge(x, y T) {
	xid := g.AddNode(x)
	yid := g.AddNode(y)
	g.out[xid][yid] = true
	g.in[yid][xid] = true
}

// ID returns the id of v, if v is a vertex of the graph
func (g *Digraph[T]) ID(v T) (int64, bool) {
	id, ok := g.ids[v]
	return id, ok
}

// Order implements the order of the graph.Iterator interface
func (g *Digraph[T]) Order() int {
	return len(g.Vertices)
}

// Visit implements the graph.Iterator interface. Successors are visited in increasing id order.
func (g *Digraph[T]) Visit(v int, do func(w int, c int64) (skip bool)) (aborted bool) {
	for _, w := range sortedIds(g.out[int64(v)]) {
		if do(int(w), 1) {
			return true
		}
	}
	return false
}

// IsAcyclic returns true if the graph has no cycle
func (g *Digraph[T]) IsAcyclic() bool {
	return graph.Acyclic(g)
}

// Cycles returns the vertices of each cycle of the graph, grouped by strongly connected component. Self-loops
// are cycles of one vertex.
func (g *Digraph[T]) Cycles() [][]T {
	var res [][]T
	for _, component := range graph.StrongComponents(g) {
		if len(component) == 1 && !g.out[int64(component[0])][int64(component[0])] {
			continue
		}
		sort.Ints(component)
		vertices := make([]T, len(component))
		for i, id := range component {
			vertices[i] = g.Vertices[id]
		}
		res = append(res, vertices)
	}
	return res
}

// Depths returns, for each vertex, the length of the longest path from a vertex without predecessors. It returns
// an error if the graph has a cycle.
func (g *Digraph[T]) Depths() (map[T]int, error) {
	sorted, err := topo.Sort(g)
	if err != nil {
		return nil, fmt.Errorf("graph is not acyclic: %w", err)
	}
	depths := make(map[T]int, len(sorted))
	for _, n := range sorted {
		d := 0
		for pred := range g.in[n.ID()] {
			if pd := depths[g.Vertices[pred]] + 1; pd > d {
				d = pd
			}
		}
		depths[g.Vertices[n.ID()]] = d
	}
	return depths, nil
}

// *************** gonum graph.Directed implementation **********************

// Node implements the Graph interface
func (g *Digraph[T]) Node(id int64) gonum.Node {
	if id < 0 || id >= int64(len(g.Vertices)) {
		return nil
	}
	return Node[T]{id: id, Vertex: g.Vertices[id]}
}

// Nodes returns the set of nodes in the graph
func (g *Digraph[T]) Nodes() gonum.Nodes {
	nodes := make([]gonum.Node, len(g.Vertices))
	for i, v := range g.Vertices {
		nodes[i] = Node[T]{id: int64(i), Vertex: v}
	}
	return iterator.NewOrderedNodes(nodes)
}

// From returns the successors of the node with the given id
func (g *Digraph[T]) From(id int64) gonum.Nodes {
	return g.nodeSet(g.out[id])
}

// To returns the predecessors of the node with the given id
func (g *Digraph[T]) To(id int64) gonum.Nodes {
	return g.nodeSet(g.in[id])
}

// HasEdgeBetween returns whether an edge exists between the two nodes, in any direction
func (g *Digraph[T]) HasEdgeBetween(xid, yid int64) bool {
	return g.out[xid][yid] || g.out[yid][xid]
}

// HasEdgeFromTo returns whether an edge exists from u to v
func (g *Digraph[T]) HasEdgeFromTo(uid, vid int64) bool {
	return g.out[uid][vid]
}

// Edge returns the edge from u to v, or nil if there is none
func (g *Digraph[T]) Edge(uid, vid int64) gonum.Edge {
	if !g.out[uid][vid] {
		return nil
	}
	return Edge{F: g.Node(uid), T: g.Node(vid)}
}

func (g *Digraph[T]) nodeSet(ids map[int64]bool) gonum.Nodes {
	if len(ids) == 0 {
		return gonum.Empty
	}
	nodes := make([]gonum.Node, 0, len(ids))
	for _, id := range sortedIds(ids) {
		nodes = append(nodes, g.Node(id))
	}
	return iterator.NewOrderedNodes(nodes)
}

func sortedIds(set map[int64]bool) []int64 {
	ids := make([]int64, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// Node is a vertex of a Digraph, implementing gonum's graph.Node
type Node[T comparable] struct {
	id     int64
	Vertex T
}

// ID returns the id of the node
func (n Node[T]) ID() int64 { return n.id }

// Edge is a directed edge implementing gonum's graph.Edge
type Edge struct {
	F, T gonum.Node
}

// From returns the origin of the edge
func (e Edge) From() gonum.Node { return e.F }

// To returns the destination of the edge
func (e Edge) To() gonum.Node { return e.T }

// ReversedEdge returns the edge in the other direction
func (e Edge) ReversedEdge() gonum.Edge { return Edge{F: e.T, T: e.F} }
