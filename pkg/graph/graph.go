// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph builds the labeled dependency graph over extracted AST nodes.
//
// A Graph owns its nodes by value. Vertices are numbered 0..N-1 in insertion
// order; consumers that outlive one Graph must key by symbol id instead.
package graph

import (
	"fmt"
	"sort"

	gonum "gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/multi"
	"gonum.org/v1/gonum/graph/traverse"

	"github.com/kraklabs/codegraph/pkg/model"
)

// Edge is one labeled edge between two vertex indices.
type Edge struct {
	From  int64
	To    int64
	Label model.EdgeLabel
}

type edgeKey struct {
	from, to int64
	label    model.EdgeLabel
}

// Graph is a directed multigraph of AST nodes. Parallel edges are allowed
// only when their labels differ.
type Graph struct {
	g        *multi.DirectedGraph
	nodes    []model.AstNode
	bySymbol map[string]int64
	edges    []Edge
	edgeSet  map[edgeKey]struct{}
}

// New returns an empty graph.
func New() *Graph {
	return &Graph{
		g:        multi.NewDirectedGraph(),
		bySymbol: make(map[string]int64),
		edgeSet:  make(map[edgeKey]struct{}),
	}
}

// vertex is the gonum node for one AST node.
type vertex struct {
	id   int64
	kind model.Kind
	name string
}

func (v vertex) ID() int64 { return v.id }

func (v vertex) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: string(v.kind) + " " + v.name}}
}

// labeledLine is the gonum line carrying an edge label.
type labeledLine struct {
	F, T  gonum.Node
	UID   int64
	Label model.EdgeLabel
}

func (l labeledLine) From() gonum.Node { return l.F }
func (l labeledLine) To() gonum.Node   { return l.T }
func (l labeledLine) ID() int64        { return l.UID }

func (l labeledLine) ReversedLine() gonum.Line {
	l.F, l.T = l.T, l.F
	return l
}

func (l labeledLine) Attributes() []encoding.Attribute {
	return []encoding.Attribute{{Key: "label", Value: string(l.Label)}}
}

// AddNode adds n and returns its vertex index. Adding a symbol id that is
// already present returns the existing index and keeps the first payload.
func (g *Graph) AddNode(n model.AstNode) int64 {
	if id, ok := g.bySymbol[n.SymbolID]; ok {
		return id
	}
	id := int64(len(g.nodes))
	g.nodes = append(g.nodes, n)
	g.bySymbol[n.SymbolID] = id
	g.g.AddNode(vertex{id: id, kind: n.Kind, name: n.Name})
	return id
}

// Node returns the payload at index id.
func (g *Graph) Node(id int64) model.AstNode {
	return g.nodes[id]
}

// Lookup returns the vertex index of a symbol id.
func (g *Graph) Lookup(symbolID string) (int64, bool) {
	id, ok := g.bySymbol[symbolID]
	return id, ok
}

// Len returns the number of vertices.
func (g *Graph) Len() int { return len(g.nodes) }

// Nodes returns the payloads in index order. The slice must not be modified.
func (g *Graph) Nodes() []model.AstNode { return g.nodes }

// Edges returns the edges in insertion order. The slice must not be modified.
func (g *Graph) Edges() []Edge { return g.edges }

// AddEdge adds a labeled edge unless the identical edge exists or either
// endpoint is unknown. It reports whether an edge was added.
func (g *Graph) AddEdge(from, to int64, label model.EdgeLabel) bool {
	if from < 0 || to < 0 || from >= int64(len(g.nodes)) || to >= int64(len(g.nodes)) {
		return false
	}
	key := edgeKey{from, to, label}
	if _, ok := g.edgeSet[key]; ok {
		return false
	}
	g.edgeSet[key] = struct{}{}
	g.edges = append(g.edges, Edge{From: from, To: to, Label: label})

	base := g.g.NewLine(g.g.Node(from), g.g.Node(to))
	g.g.SetLine(labeledLine{F: base.From(), T: base.To(), UID: base.ID(), Label: label})
	return true
}

// HasEdge reports whether the labeled edge exists.
func (g *Graph) HasEdge(from, to int64, label model.EdgeLabel) bool {
	_, ok := g.edgeSet[edgeKey{from, to, label}]
	return ok
}

// Out returns the edges leaving id, sorted by label then target.
func (g *Graph) Out(id int64) []Edge {
	var out []Edge
	targets := g.g.From(id)
	for targets.Next() {
		to := targets.Node().ID()
		lines := g.g.Lines(id, to)
		for lines.Next() {
			if l, ok := lines.Line().(labeledLine); ok {
				out = append(out, Edge{From: id, To: to, Label: l.Label})
			}
		}
	}
	sortEdges(out, func(e Edge) int64 { return e.To })
	return out
}

// In returns the edges entering id, sorted by label then source.
func (g *Graph) In(id int64) []Edge {
	var in []Edge
	sources := g.g.To(id)
	for sources.Next() {
		from := sources.Node().ID()
		lines := g.g.Lines(from, id)
		for lines.Next() {
			if l, ok := lines.Line().(labeledLine); ok {
				in = append(in, Edge{From: from, To: id, Label: l.Label})
			}
		}
	}
	sortEdges(in, func(e Edge) int64 { return e.From })
	return in
}

func sortEdges(edges []Edge, other func(Edge) int64) {
	sort.Slice(edges, func(i, j int) bool {
		if edges[i].Label != edges[j].Label {
			return edges[i].Label < edges[j].Label
		}
		return other(edges[i]) < other(edges[j])
	})
}

// Hop is a vertex reached by Reachable and its distance from the start.
type Hop struct {
	Node  int64
	Depth int
}

// Reachable walks outgoing edges with label breadth-first, up to maxHops,
// and returns every vertex reached except the start, ordered by depth then
// index.
func (g *Graph) Reachable(from int64, label model.EdgeLabel, maxHops int) []Hop {
	if maxHops < 1 || from < 0 || from >= int64(len(g.nodes)) {
		return nil
	}
	var hops []Hop
	bf := traverse.BreadthFirst{
		Traverse: func(e gonum.Edge) bool {
			return g.HasEdge(e.From().ID(), e.To().ID(), label)
		},
	}
	bf.Walk(g.g, g.g.Node(from), func(n gonum.Node, depth int) bool {
		if depth > maxHops {
			return true
		}
		if n.ID() != from {
			hops = append(hops, Hop{Node: n.ID(), Depth: depth})
		}
		return false
	})
	sort.Slice(hops, func(i, j int) bool {
		if hops[i].Depth != hops[j].Depth {
			return hops[i].Depth < hops[j].Depth
		}
		return hops[i].Node < hops[j].Node
	})
	return hops
}

// DOT renders the graph in Graphviz syntax.
func (g *Graph) DOT(name string) ([]byte, error) {
	data, err := dot.MarshalMulti(g.g, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal dot: %w", err)
	}
	return data, nil
}
