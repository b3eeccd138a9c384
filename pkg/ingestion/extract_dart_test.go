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

package ingestion

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

const dartShapes = `//! Shapes library.
import 'package:flutter/widgets.dart' show Widget, State hide Key;
import '../util/math.dart' as m;
export 'src/circle.dart';
part 'shapes.g.dart';

/// A shape.
@immutable
abstract class Shape {
  final String name;
  const Shape(this.name);

  /// Area of the shape.
  double area();

  void describe() {
    print(name);
  }
}

mixin Named on Shape {}

enum Color { red, green }

extension ShapeX on Shape {
  bool get big => area() > 10;
}

typedef Area = double Function(Shape s);

int _counter = 0;

void main() {}
`

func TestDartExtractor_FileNode(t *testing.T) {
	nodes := extract(t, "lib/shapes.dart", dartShapes, testExtractOptions())

	file := nodes[0]
	assert.Equal(t, "lib/shapes.dart", file.Name)
	assert.Equal(t, model.LangDart, file.Language)
	assert.Equal(t, "Shapes library.", file.Doc)
	assert.False(t, file.IsGenerated)
}

func TestDartExtractor_Directives(t *testing.T) {
	nodes := extract(t, "lib/shapes.dart", dartShapes, testExtractOptions())

	pkg := mustFind(t, nodes, model.KindImport, "package:flutter/widgets.dart")
	assert.Empty(t, pkg.ResolvedTarget, "package URIs are left to the linker")
	assert.Equal(t, "package:flutter/widgets.dart", pkg.ImportURI)
	assert.Contains(t, pkg.Annotations, model.Annotation{Name: "hide", Value: "Key"})
	assert.Equal(t, 2, pkg.Span.StartLine)

	for _, name := range []string{"Widget", "State"} {
		shown := mustFind(t, nodes, model.KindImport, name)
		assert.Equal(t, "package:flutter/widgets.dart", shown.ImportURI)
		assert.Equal(t, 2, shown.Span.StartLine)
	}
	assert.Nil(t, find(nodes, model.KindImport, "Key"), "hidden names are not imported")

	rel := mustFind(t, nodes, model.KindImport, "../util/math.dart")
	assert.Equal(t, "m", rel.ImportAlias)
	assert.Equal(t, "util/math.dart", rel.ResolvedTarget)

	exp := mustFind(t, nodes, model.KindExport, "src/circle.dart")
	assert.Equal(t, "lib/src/circle.dart", exp.ResolvedTarget)

	part := mustFind(t, nodes, model.KindPart, "shapes.g.dart")
	assert.Equal(t, "lib/shapes.g.dart", part.ResolvedTarget)
	assert.Empty(t, part.Doc, "directives carry no doc")
}

func TestDartExtractor_Declarations(t *testing.T) {
	nodes := extract(t, "lib/shapes.dart", dartShapes, testExtractOptions())

	shape := mustFind(t, nodes, model.KindClass, "Shape")
	assert.Equal(t, "A shape.", shape.Doc)
	assert.Equal(t, "abstract class Shape", shape.Signature)
	assert.Contains(t, shape.Annotations, model.Annotation{Name: "immutable"})
	assert.Equal(t, "lib/shapes.dart::Shape", shape.FQN)
	assert.Equal(t, model.VisibilityPublic, shape.Visibility)
	assert.Contains(t, shape.Snippet, "void describe()")
	assert.Equal(t, 1, count(nodes, model.KindClass, "Shape"), "fallback must not duplicate")
	for _, a := range shape.Annotations {
		assert.NotEqual(t, "fallback", a.Name)
	}

	area := mustFind(t, nodes, model.KindMethod, "area")
	assert.Equal(t, []string{"Shape"}, area.OwnerPath)
	assert.Equal(t, "Area of the shape.", area.Doc)
	assert.Equal(t, "lib/shapes.dart::Shape.area", area.FQN)

	describe := mustFind(t, nodes, model.KindMethod, "describe")
	assert.Equal(t, []string{"Shape"}, describe.OwnerPath)
	assert.Equal(t, "void describe()", describe.Signature)
	assert.True(t, strings.HasSuffix(describe.Snippet, "}"))
	assert.True(t, describe.Span.StartByte >= shape.Span.StartByte && describe.Span.EndByte <= shape.Span.EndByte)

	name := mustFind(t, nodes, model.KindField, "name")
	assert.Equal(t, []string{"Shape"}, name.OwnerPath)

	assert.NotNil(t, find(nodes, model.KindMixin, "Named"))
	assert.NotNil(t, find(nodes, model.KindExtension, "ShapeX"))
	assert.NotNil(t, find(nodes, model.KindTypeAlias, "Area"))

	assert.NotNil(t, find(nodes, model.KindEnum, "Color"))
	for _, c := range []string{"red", "green"} {
		constant := mustFind(t, nodes, model.KindField, c)
		assert.Equal(t, []string{"Color"}, constant.OwnerPath)
	}

	counter := mustFind(t, nodes, model.KindVariable, "_counter")
	assert.Equal(t, model.VisibilityPrivate, counter.Visibility)
	assert.Empty(t, counter.OwnerPath)

	main := mustFind(t, nodes, model.KindFunction, "main")
	assert.Equal(t, "void main()", main.Signature)
	assert.Empty(t, main.OwnerPath)
}

func TestDartExtractor_PackageImportAndDocumentedMethod(t *testing.T) {
	src := "import 'package:some_pkg/x.dart';\n\nclass A {\n  /// Doc.\n  void m() {}\n}\n"
	file := ScannedFile{Path: "lib/a.dart", Language: model.LangDart}

	nodes, err := dartExtractor.Extract(context.Background(), file, []byte(src), testExtractOptions())
	require.NoError(t, err)
	assertWellFormed(t, nodes)

	imp := mustFind(t, nodes, model.KindImport, "package:some_pkg/x.dart")
	assert.Equal(t, "package:some_pkg/x.dart", imp.ImportURI)
	m := mustFind(t, nodes, model.KindMethod, "m")
	assert.Equal(t, "Doc.", m.Doc)
	assert.Equal(t, []string{"A"}, m.OwnerPath)
	for _, n := range nodes {
		assert.NotContains(t, n.Annotations, model.Annotation{Name: "fallback"})
	}
}

func TestDartExtractor_Locals(t *testing.T) {
	src := "void run() {\n  var total = 0;\n  final label = 'x';\n}\n"

	nodes := extract(t, "lib/run.dart", src, testExtractOptions())
	assert.Nil(t, find(nodes, model.KindVariable, "total"), "locals are off by default")

	opts := testExtractOptions()
	opts.IncludeLocals = true
	nodes = extract(t, "lib/run.dart", src, opts)
	for _, name := range []string{"total", "label"} {
		v := mustFind(t, nodes, model.KindVariable, name)
		assert.Empty(t, v.OwnerPath)
	}
}

func TestDartExtractor_GeneratedFile(t *testing.T) {
	nodes := extract(t, "lib/model.g.dart", "class Gen {}\n", testExtractOptions())
	for _, n := range nodes {
		assert.True(t, n.IsGenerated, "%s %s", n.Kind, n.Name)
	}
}

func TestDartExtractor_SnippetLimit(t *testing.T) {
	body := strings.Repeat("  int f() => 1;\n", 10)
	src := "class Big {\n" + body + "}\n"

	opts := testExtractOptions()
	opts.MaxSnippetBytes = 32
	nodes := extract(t, "lib/big.dart", src, opts)

	big := mustFind(t, nodes, model.KindClass, "Big")
	assert.Empty(t, big.Snippet, "oversized declarations are sliced by the chunker")
}

func TestDartExtractor_Degrade(t *testing.T) {
	file := ScannedFile{Path: "lib/shapes.dart", Language: model.LangDart}
	nodes := dartExtractor.Degrade(file, []byte(dartShapes), testExtractOptions())
	require.NotEmpty(t, nodes)
	assertWellFormed(t, nodes)

	assert.Equal(t, "Shapes library.", nodes[0].Doc)
	for _, want := range []struct {
		kind model.Kind
		name string
	}{
		{model.KindClass, "Shape"},
		{model.KindMixin, "Named"},
		{model.KindEnum, "Color"},
		{model.KindExtension, "ShapeX"},
		{model.KindTypeAlias, "Area"},
	} {
		n := mustFind(t, nodes, want.kind, want.name)
		assert.Contains(t, n.Annotations, model.Annotation{Name: "fallback"})
		assert.Equal(t, n.Span.StartLine, n.Span.EndLine, "fallback spans one line")
	}
	assert.Nil(t, find(nodes, model.KindMethod, "describe"))
}

func TestDartFallback_SkipsComments(t *testing.T) {
	src := "// class Commented {}\n/*\nclass InBlock {}\n*/\nclass Real {}\n"
	file := ScannedFile{Path: "lib/c.dart", Language: model.LangDart}
	nodes := dartExtractor.Degrade(file, []byte(src), testExtractOptions())

	assert.NotNil(t, find(nodes, model.KindClass, "Real"))
	assert.Nil(t, find(nodes, model.KindClass, "Commented"))
	assert.Nil(t, find(nodes, model.KindClass, "InBlock"))
}

func TestResolveDartURI(t *testing.T) {
	assert.Equal(t, "lib/b.dart", resolveDartURI("lib/a.dart", "b.dart"))
	assert.Equal(t, "b.dart", resolveDartURI("lib/a.dart", "../b.dart"))
	assert.Equal(t, "", resolveDartURI("lib/a.dart", "dart:async"))
	assert.Equal(t, "", resolveDartURI("lib/a.dart", "package:x/y.dart"))
	assert.Equal(t, "", resolveDartURI("lib/a.dart", ""))
}
