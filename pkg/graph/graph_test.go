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

package graph

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

func fileNode(path string) model.AstNode {
	return model.AstNode{SymbolID: "file:" + path, Name: path, Kind: model.KindFile, File: path, FQN: path}
}

func declNode(file, name string, kind model.Kind, owners ...string) model.AstNode {
	return model.AstNode{
		SymbolID:  "sym:" + file + ":" + strings.Join(append(owners, name), "."),
		Name:      name,
		Kind:      kind,
		File:      file,
		OwnerPath: owners,
		FQN:       model.BuildFQN(file, owners, name),
	}
}

func directive(file, uri string, kind model.Kind, resolved string) model.AstNode {
	return model.AstNode{
		SymbolID:       "dir:" + file + ":" + uri + ":" + string(kind),
		Name:           uri,
		Kind:           kind,
		File:           file,
		ImportURI:      uri,
		ResolvedTarget: resolved,
	}
}

func TestGraph_AddNodeIsIdempotent(t *testing.T) {
	g := New()
	a := g.AddNode(fileNode("a.dart"))
	again := g.AddNode(fileNode("a.dart"))

	assert.Equal(t, a, again)
	assert.Equal(t, 1, g.Len())
}

func TestGraph_AddEdgeDedupesByLabel(t *testing.T) {
	g := New()
	a := g.AddNode(fileNode("a.dart"))
	b := g.AddNode(fileNode("b.dart"))

	assert.True(t, g.AddEdge(a, b, model.EdgeImports))
	assert.False(t, g.AddEdge(a, b, model.EdgeImports))
	assert.True(t, g.AddEdge(a, b, model.EdgeExports))
	assert.False(t, g.AddEdge(a, 99, model.EdgeImports), "unknown endpoint")

	assert.Len(t, g.Edges(), 2)
	out := g.Out(a)
	require.Len(t, out, 2)
	assert.Equal(t, model.EdgeExports, out[0].Label)
	assert.Equal(t, model.EdgeImports, out[1].Label)

	in := g.In(b)
	require.Len(t, in, 2)
	assert.Equal(t, a, in[0].From)
}

func TestGraph_ReachableHonorsHopLimit(t *testing.T) {
	g := New()
	file := g.AddNode(fileNode("a.dart"))
	class := g.AddNode(declNode("a.dart", "A", model.KindClass))
	method := g.AddNode(declNode("a.dart", "m", model.KindMethod, "A"))
	other := g.AddNode(fileNode("b.dart"))
	g.AddEdge(file, class, model.EdgeDeclares)
	g.AddEdge(class, method, model.EdgeDeclares)
	g.AddEdge(file, other, model.EdgeImports)

	one := g.Reachable(file, model.EdgeDeclares, 1)
	assert.Equal(t, []Hop{{Node: class, Depth: 1}}, one)

	two := g.Reachable(file, model.EdgeDeclares, 2)
	assert.Equal(t, []Hop{{Node: class, Depth: 1}, {Node: method, Depth: 2}}, two)

	assert.Nil(t, g.Reachable(file, model.EdgeDeclares, 0))
}

func TestGraph_DOT(t *testing.T) {
	g := New()
	a := g.AddNode(fileNode("a.dart"))
	b := g.AddNode(fileNode("b.dart"))
	g.AddEdge(a, b, model.EdgeImports)

	data, err := g.DOT("repo")
	require.NoError(t, err)
	out := string(data)
	assert.Contains(t, out, "digraph repo")
	assert.Contains(t, out, "Imports")
	assert.Contains(t, out, `"File a.dart"`)
}

func TestMerge_RemapsWithoutDangling(t *testing.T) {
	g1 := New()
	a := g1.AddNode(fileNode("a.dart"))
	b := g1.AddNode(fileNode("b.dart"))
	g1.AddEdge(a, b, model.EdgeImports)

	g2 := New()
	x := g2.AddNode(fileNode("x.py"))
	y := g2.AddNode(declNode("x.py", "f", model.KindFunction))
	g2.AddEdge(x, y, model.EdgeDeclares)

	merged := Merge(g1, g2)
	require.Equal(t, 4, merged.Len())
	require.Len(t, merged.Edges(), 2)

	for _, e := range merged.Edges() {
		assert.Less(t, e.From, int64(merged.Len()))
		assert.Less(t, e.To, int64(merged.Len()))
	}

	xi, ok := merged.Lookup("file:x.py")
	require.True(t, ok)
	fi, ok := merged.Lookup("sym:x.py:f")
	require.True(t, ok)
	assert.True(t, merged.HasEdge(xi, fi, model.EdgeDeclares))
}

func TestMerge_OrderIndependentNodeSet(t *testing.T) {
	g1 := New()
	g1.AddNode(fileNode("a.dart"))
	g2 := New()
	g2.AddNode(fileNode("b.rs"))

	ab := Merge(g1, g2)
	ba := Merge(g2, g1)

	ids := func(g *Graph) map[string]bool {
		out := make(map[string]bool)
		for _, n := range g.Nodes() {
			out[n.SymbolID] = true
		}
		return out
	}
	assert.Equal(t, ids(ab), ids(ba))
}

func TestMerge_ClonesPayloads(t *testing.T) {
	g := New()
	n := declNode("a.dart", "m", model.KindMethod, "A")
	g.AddNode(n)

	merged := Merge(g)
	merged.Nodes()[0].OwnerPath[0] = "changed"

	assert.Equal(t, "A", g.Node(0).OwnerPath[0])
}
