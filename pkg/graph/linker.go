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
	"log/slog"
	"sort"
	"strings"

	"github.com/kraklabs/codegraph/pkg/model"
)

// Options tunes the linkers.
type Options struct {
	// SameFileMaxNodes caps the per-file node count for SameFile edges, which
	// grow quadratically. Files above the cap get none. Zero disables them.
	SameFileMaxNodes int `yaml:"same_file_max_nodes"`

	// FlattenReexports adds ImportsViaExport edges where the strategy allows it.
	FlattenReexports bool `yaml:"flatten_reexports"`

	// Calls enables the intra-file textual call heuristic.
	Calls bool `yaml:"calls"`
}

// DefaultOptions returns the linker defaults.
func DefaultOptions() Options {
	return Options{
		SameFileMaxNodes: 200,
		FlattenReexports: true,
		Calls:            true,
	}
}

// Directive is how a strategy classifies one directive node.
type Directive struct {
	Label model.EdgeLabel

	// Reverse points the edge from the target file to the directive's file,
	// as for "part of" which names the library that owns this file.
	Reverse bool
}

// Strategy is the per-language part of linking. Everything else is shared.
type Strategy struct {
	Name string

	// Classify maps a node to a file-to-file edge. Nodes it rejects are
	// declarations.
	Classify func(n model.AstNode) (Directive, bool)

	// Resolve guesses the target file of a directive whose extractor left
	// ResolvedTarget empty.
	Resolve func(n model.AstNode, files *FileIndex) (string, bool)

	// SameFile adds SameFile adjacency edges.
	SameFile bool

	// FlattenReexports adds one-hop ImportsViaExport edges.
	FlattenReexports bool
}

// Stats counts what one Link call did.
type Stats struct {
	Nodes      int
	Edges      map[model.EdgeLabel]int
	Unresolved int
}

// Link builds the graph for one language family.
//
// Every node becomes a vertex. Files declare their non-directive nodes, and
// containers declare their direct members. Directives become file-to-file
// edges when both endpoints are known files; the rest are dropped.
func Link(nodes []model.AstNode, s Strategy, opts Options, logger *slog.Logger) (*Graph, Stats) {
	if logger == nil {
		logger = slog.Default()
	}
	g := New()
	stats := Stats{Edges: make(map[model.EdgeLabel]int)}
	add := func(from, to int64, label model.EdgeLabel) {
		if g.AddEdge(from, to, label) {
			stats.Edges[label]++
		}
	}

	for _, n := range nodes {
		g.AddNode(n)
	}
	stats.Nodes = g.Len()

	files := newFileIndex(g)
	byFile := make(map[string][]int64)
	var order []string
	for id, n := range g.Nodes() {
		if _, seen := byFile[n.File]; !seen {
			order = append(order, n.File)
		}
		byFile[n.File] = append(byFile[n.File], int64(id))
	}

	// Declares and containment
	for _, file := range order {
		members := byFile[file]
		fileID, hasFile := files.Lookup(file)
		containers := containersByFQN(g, members)
		for _, id := range members {
			n := g.Node(id)
			if n.Kind == model.KindFile || isDirective(s, n) {
				continue
			}
			if hasFile {
				add(fileID, id, model.EdgeDeclares)
			}
			if owner, ok := ownerOf(g, containers, n); ok && owner != id {
				add(owner, id, model.EdgeDeclares)
			}
		}
	}

	// SameFile adjacency
	if s.SameFile && opts.SameFileMaxNodes > 0 {
		for _, file := range order {
			members := byFile[file]
			if len(members) > opts.SameFileMaxNodes {
				logger.Debug("link.same_file.skipped", "file", file, "nodes", len(members), "cap", opts.SameFileMaxNodes)
				continue
			}
			for i, a := range members {
				for _, b := range members[i+1:] {
					add(a, b, model.EdgeSameFile)
					add(b, a, model.EdgeSameFile)
				}
			}
		}
	}

	// Directives
	for id, n := range g.Nodes() {
		d, ok := s.Classify(n)
		if !ok {
			continue
		}
		src, ok := files.Lookup(n.File)
		if !ok {
			stats.Unresolved++
			continue
		}
		target := n.ResolvedTarget
		if target == "" && s.Resolve != nil {
			target, _ = s.Resolve(n, files)
		}
		dst, ok := files.Lookup(target)
		if target == "" || !ok || dst == src {
			stats.Unresolved++
			logger.Debug("link.directive.unresolved", "strategy", s.Name, "file", n.File, "uri", n.ImportURI, "node", id)
			continue
		}
		if d.Reverse {
			src, dst = dst, src
		}
		add(src, dst, d.Label)
	}

	if s.FlattenReexports && opts.FlattenReexports {
		stats.Edges[model.EdgeImportsViaExport] += FlattenReexports(g)
	}

	if opts.Calls {
		for _, file := range order {
			linkCalls(g, byFile[file], add)
		}
	}

	logger.Debug("link.complete", "strategy", s.Name, "nodes", stats.Nodes, "edges", len(g.Edges()), "unresolved", stats.Unresolved)
	return g, stats
}

func isDirective(s Strategy, n model.AstNode) bool {
	if n.Kind.IsDirective() {
		return true
	}
	_, ok := s.Classify(n)
	return ok && n.Kind != model.KindModule
}

// containersByFQN indexes the container nodes of one file.
func containersByFQN(g *Graph, members []int64) map[string][]int64 {
	out := make(map[string][]int64)
	for _, id := range members {
		n := g.Node(id)
		if n.Kind != model.KindFile && n.Kind.IsContainer() {
			out[n.FQN] = append(out[n.FQN], id)
		}
	}
	return out
}

// ownerOf finds the container of n: same file, FQN equal to n's owner path,
// and a span enclosing n. A Rust struct and its impl share an FQN; the span
// check picks the impl for methods.
func ownerOf(g *Graph, containers map[string][]int64, n model.AstNode) (int64, bool) {
	if len(n.OwnerPath) == 0 {
		return 0, false
	}
	fqn := model.BuildFQN(n.File, n.OwnerPath[:len(n.OwnerPath)-1], n.OwnerPath[len(n.OwnerPath)-1])
	candidates := containers[fqn]
	for _, c := range candidates {
		sp := g.Node(c).Span
		if sp.StartByte <= n.Span.StartByte && n.Span.EndByte <= sp.EndByte {
			return c, true
		}
	}
	if len(candidates) > 0 {
		return candidates[0], true
	}
	return 0, false
}

// FlattenReexports adds A -ImportsViaExport-> C for every A -Imports-> B and
// B -Exports-> C with C != A. It is one hop, not a closure, and idempotent.
// Returns the number of edges added.
func FlattenReexports(g *Graph) int {
	type pair struct{ a, c int64 }
	var pending []pair
	for _, imp := range g.Edges() {
		if imp.Label != model.EdgeImports {
			continue
		}
		for _, exp := range g.Out(imp.To) {
			if exp.Label != model.EdgeExports || exp.To == imp.From {
				continue
			}
			pending = append(pending, pair{imp.From, exp.To})
		}
	}
	added := 0
	for _, p := range pending {
		if g.AddEdge(p.a, p.c, model.EdgeImportsViaExport) {
			added++
		}
	}
	return added
}

// linkCalls adds Calls(a -> b) when a's signature or doc mentions b's exact
// name as a whole word. A textual heuristic: it over- and under-approximates.
func linkCalls(g *Graph, members []int64, add func(from, to int64, label model.EdgeLabel)) {
	var callables []int64
	for _, id := range members {
		if g.Node(id).Kind.IsCallable() {
			callables = append(callables, id)
		}
	}
	for _, a := range callables {
		na := g.Node(a)
		text := na.Signature + "\n" + na.Doc
		for _, b := range callables {
			if a == b {
				continue
			}
			nb := g.Node(b)
			if nb.Name == na.Name || nb.Name == "" {
				continue
			}
			if containsWord(text, nb.Name) {
				add(a, b, model.EdgeCalls)
			}
		}
	}
}

func containsWord(text, word string) bool {
	for i := 0; ; {
		j := strings.Index(text[i:], word)
		if j < 0 {
			return false
		}
		start := i + j
		end := start + len(word)
		if (start == 0 || !isWordByte(text[start-1])) && (end == len(text) || !isWordByte(text[end])) {
			return true
		}
		i = start + 1
	}
}

func isWordByte(b byte) bool {
	return b == '_' || b == '$' || b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// ============================================================================
// FILE INDEX
// ============================================================================

// FileIndex maps repo-relative paths to File vertices.
type FileIndex struct {
	byPath map[string]int64
	paths  []string
}

func newFileIndex(g *Graph) *FileIndex {
	idx := &FileIndex{byPath: make(map[string]int64)}
	for id, n := range g.Nodes() {
		if n.Kind == model.KindFile {
			if _, dup := idx.byPath[n.File]; !dup {
				idx.byPath[n.File] = int64(id)
				idx.paths = append(idx.paths, n.File)
			}
		}
	}
	sort.Strings(idx.paths)
	return idx
}

// Lookup returns the File vertex for an exact path.
func (f *FileIndex) Lookup(path string) (int64, bool) {
	id, ok := f.byPath[path]
	return id, ok
}

// Has reports whether path is a known file.
func (f *FileIndex) Has(path string) bool {
	_, ok := f.byPath[path]
	return ok
}

// SuffixMatch returns the known path ending in "/"+suffix, or equal to it.
// Among several matches the shortest wins, then the lexicographically first.
func (f *FileIndex) SuffixMatch(suffix string) (string, bool) {
	suffix = strings.TrimPrefix(suffix, "/")
	if suffix == "" {
		return "", false
	}
	best := ""
	for _, p := range f.paths {
		if p != suffix && !strings.HasSuffix(p, "/"+suffix) {
			continue
		}
		if best == "" || len(p) < len(best) {
			best = p
		}
	}
	return best, best != ""
}
