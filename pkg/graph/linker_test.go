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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

func edgeBetween(t *testing.T, g *Graph, from, to string, label model.EdgeLabel) bool {
	t.Helper()
	f, ok := g.Lookup(from)
	require.True(t, ok, "missing %s", from)
	d, ok := g.Lookup(to)
	require.True(t, ok, "missing %s", to)
	return g.HasEdge(f, d, label)
}

func countLabel(g *Graph, label model.EdgeLabel) int {
	n := 0
	for _, e := range g.Edges() {
		if e.Label == label {
			n++
		}
	}
	return n
}

func TestLink_DeclaresCoverage(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("lib/a.dart"),
		directive("lib/a.dart", "b.dart", model.KindImport, "lib/b.dart"),
		declNode("lib/a.dart", "A", model.KindClass),
		declNode("lib/a.dart", "run", model.KindMethod, "A"),
		declNode("lib/a.dart", "top", model.KindFunction),
		fileNode("lib/b.dart"),
	}
	g, _ := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	file, _ := g.Lookup("file:lib/a.dart")
	for id, n := range g.Nodes() {
		if n.File != "lib/a.dart" || n.Kind == model.KindFile {
			continue
		}
		fromFile := 0
		for _, e := range g.In(int64(id)) {
			if e.Label == model.EdgeDeclares && e.From == file {
				fromFile++
			}
		}
		if n.Kind.IsDirective() {
			assert.Zero(t, fromFile, "directive %s must not be declared", n.Name)
		} else {
			assert.Equal(t, 1, fromFile, "node %s", n.Name)
		}
	}

	assert.True(t, edgeBetween(t, g, "sym:lib/a.dart:A", "sym:lib/a.dart:A.run", model.EdgeDeclares))
	assert.True(t, edgeBetween(t, g, "file:lib/a.dart", "file:lib/b.dart", model.EdgeImports))
}

func TestLink_UnresolvedDirectiveDropped(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("lib/a.dart"),
		directive("lib/a.dart", "package:some_pkg/x.dart", model.KindImport, ""),
	}
	g, stats := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	assert.Zero(t, countLabel(g, model.EdgeImports))
	assert.Equal(t, 1, stats.Unresolved)
	assert.Equal(t, 2, g.Len())
}

func TestLink_PackageURIMonorepoConvention(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("apps/app/lib/main.dart"),
		directive("apps/app/lib/main.dart", "package:core/util.dart", model.KindImport, ""),
		fileNode("packages/core/lib/util.dart"),
	}
	g, _ := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:apps/app/lib/main.dart", "file:packages/core/lib/util.dart", model.EdgeImports))
}

func TestLink_PartOfPointsFromLibrary(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("lib/lib.dart"),
		fileNode("lib/src/piece.dart"),
		directive("lib/src/piece.dart", "../lib.dart", model.KindPartOf, "lib/lib.dart"),
	}
	g, _ := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:lib/lib.dart", "file:lib/src/piece.dart", model.EdgePart))
}

func TestLink_ReexportFlattening(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("a.dart"),
		fileNode("b.dart"),
		fileNode("c.dart"),
		directive("a.dart", "b.dart", model.KindImport, "b.dart"),
		directive("b.dart", "c.dart", model.KindExport, "c.dart"),
		directive("b.dart", "a.dart", model.KindExport, "a.dart"),
	}
	g, stats := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:a.dart", "file:c.dart", model.EdgeImportsViaExport))
	assert.Equal(t, 1, countLabel(g, model.EdgeImportsViaExport), "no self re-export edge")
	assert.Equal(t, 1, stats.Edges[model.EdgeImportsViaExport])

	assert.Zero(t, FlattenReexports(g), "second pass adds nothing")
	assert.Equal(t, 1, countLabel(g, model.EdgeImportsViaExport))
}

func TestLink_ReexportFlatteningIsOneHop(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("a.dart"),
		fileNode("b.dart"),
		fileNode("c.dart"),
		fileNode("d.dart"),
		directive("a.dart", "b.dart", model.KindImport, "b.dart"),
		directive("b.dart", "c.dart", model.KindExport, "c.dart"),
		directive("c.dart", "d.dart", model.KindExport, "d.dart"),
	}
	g, _ := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:a.dart", "file:c.dart", model.EdgeImportsViaExport))
	assert.False(t, edgeBetween(t, g, "file:a.dart", "file:d.dart", model.EdgeImportsViaExport))
}

func TestLink_NoFlatteningOutsideDart(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("a.ts"),
		fileNode("b.ts"),
		fileNode("c.ts"),
		directive("a.ts", "./b", model.KindImport, ""),
		directive("b.ts", "./c", model.KindExport, ""),
	}
	g, _ := Link(nodes, TypeScriptStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:a.ts", "file:b.ts", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:b.ts", "file:c.ts", model.EdgeExports))
	assert.Zero(t, countLabel(g, model.EdgeImportsViaExport))
}

func TestLink_SameFileOnlyForGenericAndRust(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("m.py"),
		declNode("m.py", "f", model.KindFunction),
		declNode("m.py", "g", model.KindFunction),
	}
	g, _ := Link(nodes, GenericStrategy(), DefaultOptions(), nil)
	assert.Equal(t, 6, countLabel(g, model.EdgeSameFile), "3 nodes, both directions")
	assert.True(t, edgeBetween(t, g, "sym:m.py:g", "sym:m.py:f", model.EdgeSameFile))

	dart, _ := Link(nodes, DartStrategy(), DefaultOptions(), nil)
	assert.Zero(t, countLabel(dart, model.EdgeSameFile))

	capped := DefaultOptions()
	capped.SameFileMaxNodes = 2
	small, _ := Link(nodes, GenericStrategy(), capped, nil)
	assert.Zero(t, countLabel(small, model.EdgeSameFile))
}

func TestLink_CallsHeuristic(t *testing.T) {
	caller := declNode("a.dart", "run", model.KindFunction)
	caller.Doc = "Calls helper to do the work."
	helper := declNode("a.dart", "helper", model.KindFunction)
	helper.Signature = "void helper()"
	unrelated := declNode("a.dart", "helperish", model.KindFunction)

	nodes := []model.AstNode{fileNode("a.dart"), caller, helper, unrelated}
	g, _ := Link(nodes, DartStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, caller.SymbolID, helper.SymbolID, model.EdgeCalls))
	assert.False(t, edgeBetween(t, g, caller.SymbolID, unrelated.SymbolID, model.EdgeCalls))
	assert.False(t, edgeBetween(t, g, helper.SymbolID, caller.SymbolID, model.EdgeCalls))

	off := DefaultOptions()
	off.Calls = false
	none, _ := Link(nodes, DartStrategy(), off, nil)
	assert.Zero(t, countLabel(none, model.EdgeCalls))
}

func TestLink_RustModulesAndUsePaths(t *testing.T) {
	modDecl := declNode("src/lib.rs", "net", model.KindModule)
	modDecl.ImportURI = "net"
	nodes := []model.AstNode{
		fileNode("src/lib.rs"),
		fileNode("src/net/mod.rs"),
		fileNode("src/net/tcp.rs"),
		modDecl,
		directive("src/lib.rs", "crate::net::tcp::Stream", model.KindImport, ""),
		directive("src/net/tcp.rs", "super::Config", model.KindImport, ""),
		directive("src/lib.rs", "serde::Serialize", model.KindImport, ""),
	}
	g, stats := Link(nodes, RustStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:src/lib.rs", "file:src/net/mod.rs", model.EdgePart))
	assert.True(t, edgeBetween(t, g, "file:src/lib.rs", "file:src/net/tcp.rs", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:src/net/tcp.rs", "file:src/net/mod.rs", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:src/lib.rs", modDecl.SymbolID, model.EdgeDeclares), "mod items stay declarations")
	assert.Equal(t, 1, stats.Unresolved)
}

func TestLink_TypeScriptExtensionProbing(t *testing.T) {
	nodes := []model.AstNode{
		fileNode("src/app.ts"),
		fileNode("src/util.ts"),
		fileNode("src/widgets/index.tsx"),
		fileNode("src/legacy.js"),
		directive("src/app.ts", "./util.js", model.KindImport, ""),
		directive("src/app.ts", "./widgets", model.KindImport, ""),
		directive("src/app.ts", "./legacy", model.KindImport, ""),
		directive("src/app.ts", "react", model.KindImport, ""),
	}
	g, stats := Link(nodes, TypeScriptStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:src/app.ts", "file:src/util.ts", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:src/app.ts", "file:src/widgets/index.tsx", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:src/app.ts", "file:src/legacy.js", model.EdgeImports))
	assert.Equal(t, 1, stats.Unresolved)
}

func TestLink_PythonModules(t *testing.T) {
	fromPkg := directive("app/main.py", "app.models", model.KindImport, "")
	relative := directive("app/main.py", ".", model.KindImport, "")
	relativeName := relative
	relativeName.SymbolID = "dir:app/main.py:.:views"
	relativeName.Name = "views"

	nodes := []model.AstNode{
		fileNode("app/__init__.py"),
		fileNode("app/main.py"),
		fileNode("app/models.py"),
		fileNode("app/views/__init__.py"),
		fromPkg,
		relative,
		relativeName,
		directive("app/main.py", "os", model.KindImport, ""),
	}
	g, _ := Link(nodes, GenericStrategy(), DefaultOptions(), nil)

	assert.True(t, edgeBetween(t, g, "file:app/main.py", "file:app/models.py", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:app/main.py", "file:app/__init__.py", model.EdgeImports))
	assert.True(t, edgeBetween(t, g, "file:app/main.py", "file:app/views/__init__.py", model.EdgeImports))
}

func TestFileIndex_SuffixMatchDeterministic(t *testing.T) {
	g := New()
	for _, p := range []string{"z/pkg/lib/a.dart", "pkg/lib/a.dart", "b/pkg/lib/a.dart", "xpkg/lib/a.dart"} {
		g.AddNode(fileNode(p))
	}
	idx := newFileIndex(g)

	got, ok := idx.SuffixMatch("pkg/lib/a.dart")
	require.True(t, ok)
	assert.Equal(t, "pkg/lib/a.dart", got)

	_, ok = idx.SuffixMatch("other.dart")
	assert.False(t, ok)
}

func TestStrategyFor(t *testing.T) {
	assert.Equal(t, "dart", StrategyFor("dart").Name)
	assert.Equal(t, "rust", StrategyFor("rust").Name)
	assert.Equal(t, "typescript", StrategyFor("typescript").Name)
	assert.Equal(t, "generic", StrategyFor("python").Name)
}
