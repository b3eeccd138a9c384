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

package export

import (
	"bufio"
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
)

func sampleRun() Run {
	file := model.AstNode{SymbolID: "f1", Name: "lib/a.dart", Kind: model.KindFile, File: "lib/a.dart", OwnerPath: []string{}}
	class := model.AstNode{
		SymbolID: "c1", Name: "A<T> & B", Kind: model.KindClass, File: "lib/a.dart",
		Span: model.Span{StartLine: 3, EndLine: 9, StartByte: 20, EndByte: 80},
	}
	g := graph.New()
	fi := g.AddNode(file)
	ci := g.AddNode(class)
	g.AddEdge(fi, ci, model.EdgeDeclares)

	return Run{
		Nodes: []model.AstNode{file, class},
		Graph: g,
		Records: []model.RagRecord{
			{ID: "c1", Kind: model.KindClass, Snippet: "class A<T> {}", Neighbors: []model.Neighbor{}, Tags: []string{"class"}},
		},
		Summary: Summary{Root: "/repo", FilesScanned: 1},
	}
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, bytes.HasSuffix(data, []byte("\n")), "newline terminated")
	return strings.Split(strings.TrimSuffix(string(data), "\n"), "\n")
}

func TestWrite_Layout(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC)

	sum, err := Write(root, sampleRun(), DefaultOptions(), now, nil)
	require.NoError(t, err)

	dir := filepath.Join(root, "graphs_data", "20260304_050607")
	assert.Equal(t, dir, sum.OutDir)
	assert.Equal(t, "20260304_050607", sum.Timestamp)
	assert.Equal(t, 2, sum.AstNodes)
	assert.Equal(t, 2, sum.GraphNodes)
	assert.Equal(t, 1, sum.GraphEdges)
	assert.Equal(t, 1, sum.RagRecords)
	assert.Equal(t, 1, sum.NodesByKind[model.KindClass])
	assert.Equal(t, 1, sum.EdgesByLabel[model.EdgeDeclares])
	assert.Equal(t, "/repo", sum.Root)

	for _, name := range []string{FileASTNodes, FileGraphNodes, FileGraphEdges, FileRecords, FileGraphML, FileSummary} {
		assert.FileExists(t, filepath.Join(dir, name))
	}
	assert.NoFileExists(t, filepath.Join(dir, FileDOT))
	assert.NoFileExists(t, filepath.Join(dir, FileSummary+".tmp"))

	nodes := readLines(t, filepath.Join(dir, FileGraphNodes))
	require.Len(t, nodes, 2)
	var line map[string]any
	require.NoError(t, json.Unmarshal([]byte(nodes[1]), &line))
	assert.Equal(t, float64(1), line["id"])
	assert.Equal(t, "Class", line["type"])
	assert.Equal(t, float64(3), line["start_line"])
	assert.Equal(t, float64(9), line["end_line"])
	assert.Equal(t, "c1", line["symbol_id"])

	edges := readLines(t, filepath.Join(dir, FileGraphEdges))
	assert.Equal(t, []string{`{"src":0,"dst":1,"label":"Declares"}`}, edges)

	records := readLines(t, filepath.Join(dir, FileRecords))
	require.Len(t, records, 1)
	assert.Contains(t, records[0], `"snippet":"class A<T> {}"`, "no HTML escaping")

	got, err := ReadSummary(dir)
	require.NoError(t, err)
	assert.Equal(t, sum, got)
}

func TestWrite_DOT(t *testing.T) {
	root := t.TempDir()
	opts := DefaultOptions()
	opts.DOT = true

	sum, err := Write(root, sampleRun(), opts, time.Now(), nil)
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(sum.OutDir, FileDOT))
	require.NoError(t, err)
	assert.Contains(t, string(data), "digraph codegraph")
}

func TestWrite_FailureLeavesNoSummary(t *testing.T) {
	root := t.TempDir()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	dir := RunDir(root, DefaultOptions(), now)
	// a directory where a file must go makes the write fail
	require.NoError(t, os.MkdirAll(filepath.Join(dir, FileRecords), 0o755))

	_, err := Write(root, sampleRun(), DefaultOptions(), now, nil)
	require.Error(t, err)
	assert.NoFileExists(t, filepath.Join(dir, FileSummary))

	_, err = LatestComplete(root, DefaultOutputDir)
	assert.ErrorIs(t, err, ErrNoRuns)
}

func TestWriteGraphML_Escapes(t *testing.T) {
	var buf bytes.Buffer
	w := bufio.NewWriter(&buf)
	require.NoError(t, WriteGraphML(w, sampleRun().Graph))
	require.NoError(t, w.Flush())

	out := buf.String()
	assert.Contains(t, out, `<data key="name">A&lt;T&gt; &amp; B</data>`)
	assert.Contains(t, out, `<edge id="e0" source="n0" target="n1">`)
	assert.Contains(t, out, `<data key="label">Declares</data>`)
	assert.True(t, strings.HasSuffix(out, "</graphml>\n"))
}

func TestEscapeXML(t *testing.T) {
	assert.Equal(t, "&amp;&lt;&gt;&quot;&apos;x", EscapeXML(`&<>"'x`))
	assert.Equal(t, "ab\tc\nd", EscapeXML("a\x00b\tc\x1b\nd\uffff"))
	assert.Equal(t, "caf\u00e9 \u2192", EscapeXML("caf\u00e9 \u2192"))
}

func TestWriteGraphML_ControlCharacters(t *testing.T) {
	g := graph.New()
	a := g.AddNode(model.AstNode{SymbolID: "a", Kind: model.KindVariable, Name: "esc\x1b[0m", File: "lib/a\x07.dart"})
	b := g.AddNode(model.AstNode{SymbolID: "b\x00", Kind: model.KindFile, Name: "lib/b.dart", File: "lib/b.dart"})
	g.AddEdge(b, a, model.EdgeDeclares)

	var buf bytes.Buffer
	require.NoError(t, WriteGraphML(&buf, g))

	dec := xml.NewDecoder(&buf)
	for {
		_, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
	}
}

func TestLatest(t *testing.T) {
	root := t.TempDir()
	base := filepath.Join(root, DefaultOutputDir)

	_, err := Latest(root, DefaultOutputDir)
	assert.ErrorIs(t, err, ErrNoRuns)

	for _, name := range []string{"20250101_000000", "20251231_235959", "20250601_120000", "notes", "2025"} {
		require.NoError(t, os.MkdirAll(filepath.Join(base, name), 0o755))
	}
	require.NoError(t, os.WriteFile(filepath.Join(base, "20250601_120000", FileSummary), []byte("{}"), 0o644))

	latest, err := Latest(root, DefaultOutputDir)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "20251231_235959"), latest)

	complete, err := LatestComplete(root, "")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "20250601_120000"), complete)
}
