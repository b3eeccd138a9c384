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
	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/codegraph/pkg/ids"
	"github.com/kraklabs/codegraph/pkg/model"
)

// nodeBuilder accumulates the nodes of one file. It is owned by a single
// extraction call.
type nodeBuilder struct {
	lang      model.Language
	file      ScannedFile
	src       []byte
	opts      ExtractOptions
	lines     lineIndex
	generated bool

	nodes     []model.AstNode
	seen      map[string]bool
	oversized map[string]bool
}

func newNodeBuilder(lang model.Language, file ScannedFile, src []byte, opts ExtractOptions) *nodeBuilder {
	return &nodeBuilder{
		lang:      lang,
		file:      file,
		src:       src,
		opts:      opts,
		lines:     newLineIndex(src),
		generated: IsGeneratedPath(lang, file.Path),
		seen:      make(map[string]bool),
		oversized: make(map[string]bool),
	}
}

// decl describes one node to emit. Byte offsets index the file source.
type decl struct {
	kind   model.Kind
	name   string
	owners []string
	start  int
	end    int

	// docAnchor is where the upward doc scan begins; zero means start.
	// Set it to the first leading annotation so docs above it are found.
	docAnchor int
	doc       string

	signature   string
	visibility  model.Visibility
	annotations []model.Annotation

	importURI   string
	importAlias string
	resolved    string

	// withSnippet precomputes the full declaration text as the snippet.
	withSnippet bool
}

func (b *nodeBuilder) text(start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(b.src) {
		end = len(b.src)
	}
	if end <= start {
		return ""
	}
	return string(b.src[start:end])
}

func (b *nodeBuilder) content(n *sitter.Node) string {
	if n == nil {
		return ""
	}
	return b.text(int(n.StartByte()), int(n.EndByte()))
}

// emitFile adds the synthetic zero-span File node. It must be called first.
func (b *nodeBuilder) emitFile(doc string) {
	path := b.file.Path
	b.add(model.AstNode{
		SymbolID:    ids.FileID(string(b.lang), path),
		Name:        path,
		Kind:        model.KindFile,
		Language:    b.lang,
		File:        path,
		OwnerPath:   []string{},
		FQN:         path,
		Doc:         doc,
		IsGenerated: b.generated,
	})
}

// emit builds d and appends it unless an identical symbol already exists.
func (b *nodeBuilder) emit(d decl) model.AstNode {
	n := b.build(d)
	b.add(n)
	return n
}

// build converts d into a node without recording it.
func (b *nodeBuilder) build(d decl) model.AstNode {
	if d.end < d.start {
		d.end = d.start
	}
	endLineOffset := d.end - 1
	if endLineOffset < d.start {
		endLineOffset = d.start
	}
	span := model.Span{
		StartLine: b.lines.lineOf(d.start),
		EndLine:   b.lines.lineOf(endLineOffset),
		StartByte: d.start,
		EndByte:   d.end,
	}

	owners := append([]string{}, d.owners...)
	n := model.AstNode{
		SymbolID:       ids.SymbolID(string(b.lang), b.file.Path, d.start, d.end, d.name, string(d.kind)),
		Name:           d.name,
		Kind:           d.kind,
		Language:       b.lang,
		File:           b.file.Path,
		Span:           span,
		OwnerPath:      owners,
		FQN:            model.BuildFQN(b.file.Path, owners, d.name),
		Visibility:     d.visibility,
		Signature:      d.signature,
		Doc:            d.doc,
		Annotations:    d.annotations,
		ImportURI:      d.importURI,
		ImportAlias:    d.importAlias,
		ResolvedTarget: d.resolved,
		IsGenerated:    b.generated,
	}

	if n.Doc == "" && !d.kind.IsDirective() {
		anchor := d.start
		if d.docAnchor > 0 && d.docAnchor < anchor {
			anchor = d.docAnchor
		}
		n.Doc = docAbove(b.src, b.lines, b.lines.lineOf(anchor))
	}

	if d.withSnippet {
		from := d.start
		if ctx := b.opts.SnippetContextLines; ctx > 0 {
			first := span.StartLine - ctx
			if first < 1 {
				first = 1
			}
			from = b.lines.lineStart(first)
		}
		if text := b.text(from, d.end); len(text) <= b.opts.MaxSnippetBytes {
			n.Snippet = text
		} else {
			b.oversized[n.SymbolID] = true
		}
	}
	return n
}

// add appends n unless its symbol is already present. Returns whether n was
// added.
func (b *nodeBuilder) add(n model.AstNode) bool {
	if b.seen[n.SymbolID] {
		return false
	}
	b.seen[n.SymbolID] = true
	b.nodes = append(b.nodes, n)
	return true
}

// finish applies the default snippet (the signature) and returns the nodes.
func (b *nodeBuilder) finish() []model.AstNode {
	for i := range b.nodes {
		n := &b.nodes[i]
		if n.Kind == model.KindFile || n.Snippet != "" || b.oversized[n.SymbolID] {
			continue
		}
		n.Snippet = n.Signature
	}
	return b.nodes
}

// visibilityByUnderscore maps the leading-underscore privacy convention.
func visibilityByUnderscore(name string) model.Visibility {
	if leadingUnderscorePrivate(name) {
		return model.VisibilityPrivate
	}
	return model.VisibilityPublic
}

// ---------------------------------------------------------------------------
// tree helpers
// ---------------------------------------------------------------------------

func childOfType(n *sitter.Node, types ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		for _, t := range types {
			if c.Type() == t {
				return c
			}
		}
	}
	return nil
}

func childrenOfType(n *sitter.Node, t string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil && c.Type() == t {
			out = append(out, c)
		}
	}
	return out
}

// descendantOfType returns the first node of type t in pre-order, n included.
func descendantOfType(n *sitter.Node, t string) *sitter.Node {
	if n == nil {
		return nil
	}
	if n.Type() == t {
		return n
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if d := descendantOfType(n.Child(i), t); d != nil {
			return d
		}
	}
	return nil
}

// fieldOr returns the named field or the first child of one of types.
func fieldOr(n *sitter.Node, field string, types ...string) *sitter.Node {
	if n == nil {
		return nil
	}
	if f := n.ChildByFieldName(field); f != nil {
		return f
	}
	return childOfType(n, types...)
}

// fieldChildren returns every child attached under field.
func fieldChildren(n *sitter.Node, field string) []*sitter.Node {
	if n == nil {
		return nil
	}
	var out []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		if n.FieldNameForChild(i) == field {
			if c := n.Child(i); c != nil {
				out = append(out, c)
			}
		}
	}
	return out
}

func appendOwner(owners []string, name string) []string {
	out := make([]string, 0, len(owners)+1)
	out = append(out, owners...)
	return append(out, name)
}
