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
	"errors"
	"strings"
	"testing"
	"unsafe"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/rust"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/model"
)

func testExtractOptions() ExtractOptions {
	return DefaultConfig().ExtractOptions()
}

// extract runs the extractor for path's language over src.
func extract(t *testing.T, path, src string, opts ExtractOptions) []model.AstNode {
	t.Helper()
	lang, ok := DetectLanguage(path)
	require.True(t, ok, "no language for %s", path)
	ex := ExtractorFor(lang)
	require.NotNil(t, ex)

	nodes, err := ex.Extract(context.Background(), ScannedFile{Path: path, Language: lang}, []byte(src), opts)
	require.NoError(t, err)
	require.NotEmpty(t, nodes)
	assertWellFormed(t, nodes)
	return nodes
}

// assertWellFormed checks the invariants every extractor upholds.
func assertWellFormed(t *testing.T, nodes []model.AstNode) {
	t.Helper()
	assert.Equal(t, model.KindFile, nodes[0].Kind, "File node first")
	assert.True(t, nodes[0].Span.IsZero())

	seen := make(map[string]bool)
	for _, n := range nodes {
		assert.False(t, seen[n.SymbolID], "duplicate symbol %s %s", n.Kind, n.Name)
		seen[n.SymbolID] = true
		assert.True(t, n.Span.Valid(), "span of %s %s", n.Kind, n.Name)
		if n.Kind != model.KindFile {
			assert.False(t, n.Span.IsZero(), "zero span on %s %s", n.Kind, n.Name)
		}
		assert.NotNil(t, n.OwnerPath)
	}
}

func find(nodes []model.AstNode, kind model.Kind, name string) *model.AstNode {
	for i := range nodes {
		if nodes[i].Kind == kind && nodes[i].Name == name {
			return &nodes[i]
		}
	}
	return nil
}

func count(nodes []model.AstNode, kind model.Kind, name string) int {
	n := 0
	for _, node := range nodes {
		if node.Kind == kind && node.Name == name {
			n++
		}
	}
	return n
}

func mustFind(t *testing.T, nodes []model.AstNode, kind model.Kind, name string) model.AstNode {
	t.Helper()
	n := find(nodes, kind, name)
	require.NotNil(t, n, "missing %s %s", kind, name)
	return *n
}

func TestExtractorFor(t *testing.T) {
	for _, lang := range []model.Language{
		model.LangDart, model.LangRust, model.LangTypeScript, model.LangJavaScript,
		model.LangPython, model.LangYAML, model.LangJSON, model.LangTOML, model.LangMarkdown,
	} {
		assert.NotNil(t, ExtractorFor(lang), lang)
	}
	assert.Nil(t, ExtractorFor("cobol"))
}

func TestPlainExtractor_FileOnly(t *testing.T) {
	nodes := extract(t, "config/app.yaml", "name: app\nversion: 1\n", testExtractOptions())
	require.Len(t, nodes, 1)
	assert.Equal(t, model.LangYAML, nodes[0].Language)
	assert.Equal(t, "config/app.yaml", nodes[0].FQN)
	assert.Empty(t, nodes[0].Snippet)
}

func TestExtract_Deterministic(t *testing.T) {
	src := "class A {\n  void m() {}\n}\n"
	first := extract(t, "lib/a.dart", src, testExtractOptions())
	second := extract(t, "lib/a.dart", src, testExtractOptions())
	assert.Equal(t, first, second)
}

func TestExtractError(t *testing.T) {
	err := &ExtractError{Path: "a.dart", Language: model.LangDart, Stage: StageParse, Err: ErrNoTree}
	assert.ErrorIs(t, err, ErrNoTree)
	assert.Contains(t, err.Error(), "parse a.dart (dart)")
}

func failingExtractor(walk walkFunc) *treeExtractor {
	return &treeExtractor{
		lang:    model.LangRust,
		grammar: func(string) *sitter.Language { return rust.GetLanguage() },
		walk:    walk,
	}
}

func TestTreeExtractor_Diagnostics(t *testing.T) {
	file := ScannedFile{Path: "src/lib.rs", Language: model.LangRust}
	src := []byte("fn main() {}\n")
	boom := errors.New("unexpected shape")
	e := failingExtractor(func(*nodeBuilder, *sitter.Node) error { return boom })

	_, err := e.Extract(context.Background(), file, src, testExtractOptions())
	var xe *ExtractError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, StageExtract, xe.Stage)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, xe.TreeDump, "diagnostics are off by default")

	opts := testExtractOptions()
	opts.Diagnostics.DumpTreeOnError = true
	_, err = e.Extract(context.Background(), file, src, opts)
	require.ErrorAs(t, err, &xe)
	assert.True(t, strings.HasPrefix(xe.TreeDump, "(source_file"), xe.TreeDump)

	opts.Diagnostics.MaxDumpBytes = 8
	_, err = e.Extract(context.Background(), file, src, opts)
	require.ErrorAs(t, err, &xe)
	assert.Len(t, xe.TreeDump, 8)
}

func TestTreeExtractor_RecoversPanic(t *testing.T) {
	file := ScannedFile{Path: "src/lib.rs", Language: model.LangRust}
	e := failingExtractor(func(*nodeBuilder, *sitter.Node) error { panic("index out of range") })

	nodes, err := e.Extract(context.Background(), file, []byte("fn main() {}\n"), testExtractOptions())
	assert.Nil(t, nodes)
	var xe *ExtractError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, StageExtract, xe.Stage)
	assert.Contains(t, xe.Error(), "panic: index out of range")

	degraded := e.Degrade(file, []byte("fn main() {}\n"), testExtractOptions())
	require.Len(t, degraded, 1)
	assert.Equal(t, model.KindFile, degraded[0].Kind)
}

// abi15Header is a language whose version word is past the runtime's
// supported range; the runtime reads nothing else before refusing it.
var abi15Header = [32]uint32{15}

func TestCheckGrammars(t *testing.T) {
	require.NoError(t, CheckGrammars(context.Background()))
}

func TestCheckGrammar_RejectsNewerABI(t *testing.T) {
	lang := sitter.NewLanguage(unsafe.Pointer(&abi15Header))
	assert.ErrorIs(t, checkGrammar(context.Background(), lang), ErrGrammarRejected)

	e := &treeExtractor{
		lang:    model.LangDart,
		grammar: func(string) *sitter.Language { return lang },
		walk:    walkDart,
	}
	_, err := e.Extract(context.Background(), ScannedFile{Path: "lib/a.dart", Language: model.LangDart}, []byte("class A {}\n"), testExtractOptions())
	var xe *ExtractError
	require.ErrorAs(t, err, &xe)
	assert.Equal(t, StageParse, xe.Stage)
	assert.ErrorIs(t, err, sitter.ErrNoLanguage)
}
