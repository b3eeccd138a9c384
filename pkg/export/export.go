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

// Package export persists one pipeline run under
// {root}/{output_dir}/{YYYYMMDD_HHMMSS}/.
//
// Layout of a run directory:
//
//	ast_nodes.jsonl    one AstNode per line
//	graph_nodes.jsonl  {id, name, type, file, start_line, end_line, symbol_id}
//	graph_edges.jsonl  {src, dst, label}
//	rag_records.jsonl  one RagRecord per line
//	graph.graphml      for graph viewers
//	graph.dot          only when Options.DOT is set
//	summary.json       written last; its presence marks a complete run
//
// Graph ordinals are vertex indices of the exported graph. They are stable
// within one run only; join across runs on symbol_id.
package export

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
)

// DefaultOutputDir is the directory under the repository root that holds
// run directories.
const DefaultOutputDir = "graphs_data"

// RunDirLayout names run directories. Fixed width keeps lexicographic and
// chronological order identical.
const RunDirLayout = "20060102_150405"

// File names inside a run directory.
const (
	FileASTNodes   = "ast_nodes.jsonl"
	FileGraphNodes = "graph_nodes.jsonl"
	FileGraphEdges = "graph_edges.jsonl"
	FileRecords    = "rag_records.jsonl"
	FileGraphML    = "graph.graphml"
	FileDOT        = "graph.dot"
	FileSummary    = "summary.json"
)

// Options controls what is written and where.
type Options struct {
	OutputDir string `yaml:"output_dir"`
	DOT       bool   `yaml:"dot"`
}

// DefaultOptions returns the export defaults.
func DefaultOptions() Options {
	return Options{OutputDir: DefaultOutputDir}
}

// Run is everything one pipeline run hands to the exporter.
type Run struct {
	Nodes   []model.AstNode
	Graph   *graph.Graph
	Records []model.RagRecord

	// Summary carries the caller's run statistics. Counts, OutDir and
	// Timestamp are filled in by Write.
	Summary Summary
}

// Summary is the content of summary.json.
type Summary struct {
	OutDir     string `json:"out_dir"`
	Timestamp  string `json:"timestamp"`
	AstNodes   int    `json:"ast_nodes"`
	GraphNodes int    `json:"graph_nodes"`
	GraphEdges int    `json:"graph_edges"`
	RagRecords int    `json:"rag_records"`

	NodesByKind  map[model.Kind]int      `json:"nodes_by_kind"`
	EdgesByLabel map[model.EdgeLabel]int `json:"edges_by_label"`

	Root          string         `json:"root,omitempty"`
	GitCommit     string         `json:"git_commit,omitempty"`
	DurationMS    int64          `json:"duration_ms"`
	FilesScanned  int            `json:"files_scanned"`
	FilesSkipped  map[string]int `json:"files_skipped,omitempty"`
	ExtractErrors int            `json:"extract_errors"`
	ChunksSplit   int            `json:"chunks_split"`
	Unresolved    int            `json:"unresolved_directives"`
}

// RunDir returns the run directory for a run started at now.
func RunDir(root string, opts Options, now time.Time) string {
	out := opts.OutputDir
	if out == "" {
		out = DefaultOutputDir
	}
	return filepath.Join(root, out, now.UTC().Format(RunDirLayout))
}

// Write persists run under RunDir(root, opts, now) and returns the written
// summary. Any write failure aborts the export before summary.json exists.
// A second run in the same second reuses the directory.
func Write(root string, run Run, opts Options, now time.Time, logger *slog.Logger) (Summary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if run.Graph == nil {
		run.Graph = graph.New()
	}
	dir := RunDir(root, opts, now)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("create run dir: %w", err)
	}
	// a stale marker from an earlier run in the same second must not
	// vouch for this one
	if err := os.Remove(filepath.Join(dir, FileSummary)); err != nil && !os.IsNotExist(err) {
		return Summary{}, fmt.Errorf("remove stale summary: %w", err)
	}

	steps := []step{
		{FileASTNodes, func(w *bufio.Writer) error { return writeJSONL(w, run.Nodes) }},
		{FileGraphNodes, func(w *bufio.Writer) error { return writeGraphNodes(w, run.Graph) }},
		{FileGraphEdges, func(w *bufio.Writer) error { return writeGraphEdges(w, run.Graph) }},
		{FileRecords, func(w *bufio.Writer) error { return writeJSONL(w, run.Records) }},
		{FileGraphML, func(w *bufio.Writer) error { return WriteGraphML(w, run.Graph) }},
	}
	if opts.DOT {
		steps = append(steps, step{FileDOT, func(w *bufio.Writer) error { return writeDOT(w, run.Graph) }})
	}
	for _, s := range steps {
		if err := writeFile(filepath.Join(dir, s.name), s.write); err != nil {
			return Summary{}, err
		}
		logger.Debug("export.file.written", "file", s.name)
	}

	sum := run.Summary
	sum.OutDir = dir
	sum.Timestamp = now.UTC().Format(RunDirLayout)
	sum.AstNodes = len(run.Nodes)
	sum.GraphNodes = run.Graph.Len()
	sum.GraphEdges = len(run.Graph.Edges())
	sum.RagRecords = len(run.Records)
	sum.NodesByKind = make(map[model.Kind]int)
	for _, n := range run.Nodes {
		sum.NodesByKind[n.Kind]++
	}
	sum.EdgesByLabel = make(map[model.EdgeLabel]int)
	for _, e := range run.Graph.Edges() {
		sum.EdgesByLabel[e.Label]++
	}

	if err := writeSummary(filepath.Join(dir, FileSummary), sum); err != nil {
		return Summary{}, err
	}
	logger.Info("export.complete",
		"dir", dir,
		"ast_nodes", sum.AstNodes,
		"graph_edges", sum.GraphEdges,
		"rag_records", sum.RagRecords,
	)
	return sum, nil
}

type step struct {
	name  string
	write func(*bufio.Writer) error
}

func writeDOT(w *bufio.Writer, g *graph.Graph) error {
	data, err := g.DOT("codegraph")
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	return w.WriteByte('\n')
}

func writeFile(path string, write func(*bufio.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", filepath.Base(path), err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close %s: %w", filepath.Base(path), cerr)
		}
	}()
	w := bufio.NewWriter(f)
	if err := write(w); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush %s: %w", filepath.Base(path), err)
	}
	return nil
}

func newEncoder(w *bufio.Writer) *json.Encoder {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	return enc
}

// writeJSONL writes one object per line. Encode terminates each with '\n'.
func writeJSONL[T any](w *bufio.Writer, items []T) error {
	enc := newEncoder(w)
	for i := range items {
		if err := enc.Encode(items[i]); err != nil {
			return err
		}
	}
	return nil
}

type graphNodeLine struct {
	ID        int64  `json:"id"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	File      string `json:"file"`
	StartLine int    `json:"start_line"`
	EndLine   int    `json:"end_line"`
	SymbolID  string `json:"symbol_id"`
}

type graphEdgeLine struct {
	Src   int64           `json:"src"`
	Dst   int64           `json:"dst"`
	Label model.EdgeLabel `json:"label"`
}

func writeGraphNodes(w *bufio.Writer, g *graph.Graph) error {
	enc := newEncoder(w)
	for i, n := range g.Nodes() {
		line := graphNodeLine{
			ID:        int64(i),
			Name:      n.Name,
			Type:      string(n.Kind),
			File:      n.File,
			StartLine: n.Span.StartLine,
			EndLine:   n.Span.EndLine,
			SymbolID:  n.SymbolID,
		}
		if err := enc.Encode(line); err != nil {
			return err
		}
	}
	return nil
}

func writeGraphEdges(w *bufio.Writer, g *graph.Graph) error {
	enc := newEncoder(w)
	for _, e := range g.Edges() {
		if err := enc.Encode(graphEdgeLine{Src: e.From, Dst: e.To, Label: e.Label}); err != nil {
			return err
		}
	}
	return nil
}

// writeSummary writes atomically (temp file + rename) so readers never see
// a partial completion marker.
func writeSummary(path string, sum Summary) error {
	data, err := json.MarshalIndent(sum, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	data = append(data, '\n')

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("write summary temp: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename summary: %w", err)
	}
	return nil
}

// ReadSummary loads summary.json from a run directory.
func ReadSummary(dir string) (Summary, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileSummary))
	if err != nil {
		return Summary{}, fmt.Errorf("read summary: %w", err)
	}
	var sum Summary
	if err := json.Unmarshal(data, &sum); err != nil {
		return Summary{}, fmt.Errorf("parse summary: %w", err)
	}
	return sum, nil
}
