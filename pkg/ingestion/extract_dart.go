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
	"regexp"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/codegraph/internal/grammar/dart"
	"github.com/kraklabs/codegraph/pkg/model"
)

var dartExtractor = &treeExtractor{
	lang:    model.LangDart,
	grammar: func(string) *sitter.Language { return dart.GetLanguage() },
	moduleDoc: func(b *nodeBuilder) string {
		return moduleDoc(b.src, b.lines, "//!")
	},
	walk:     walkDart,
	fallback: dartFallback,
}

// dartWalker holds the per-file state of the three Dart passes.
type dartWalker struct {
	b        *nodeBuilder
	varSpans map[[2]uint32]bool
}

func walkDart(b *nodeBuilder, root *sitter.Node) error {
	if root == nil {
		return ErrNoTree
	}
	w := &dartWalker{b: b, varSpans: make(map[[2]uint32]bool)}
	w.directives(root)
	w.declarations(root, nil)
	w.variables(root, nil, false)
	return nil
}

// ============================================================================
// DIRECTIVES
// ============================================================================

func (w *dartWalker) directives(root *sitter.Node) {
	for i := 0; i < int(root.ChildCount()); i++ {
		c := root.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "import_or_export":
			if lib := childOfType(c, "library_import"); lib != nil {
				w.importExport(c, childOfType(lib, "import_specification"), model.KindImport)
			}
			if lib := childOfType(c, "library_export"); lib != nil {
				w.importExport(c, lib, model.KindExport)
			}
		case "part_directive":
			w.part(c, model.KindPart)
		case "part_of_directive":
			w.part(c, model.KindPartOf)
		}
	}
}

// importExport emits one node for the directive and one per show-listed name.
func (w *dartWalker) importExport(stmt, spec *sitter.Node, kind model.Kind) {
	if spec == nil {
		return
	}
	b := w.b
	uri := unquote(b.content(descendantOfType(childOfType(spec, "configurable_uri", "uri"), "string_literal")))
	if uri == "" {
		return
	}
	alias := b.content(childOfType(spec, "identifier"))
	resolved := resolveDartURI(b.file.Path, uri)
	sig := clip(collapseSpace(b.content(stmt)), maxSignatureLen)

	var shown []*sitter.Node
	var annotations []model.Annotation
	for _, comb := range childrenOfType(spec, "combinator") {
		names := childrenOfType(comb, "identifier")
		if strings.HasPrefix(b.content(comb), "hide") {
			var hidden []string
			for _, n := range names {
				hidden = append(hidden, b.content(n))
			}
			annotations = append(annotations, model.Annotation{Name: "hide", Value: strings.Join(hidden, ", ")})
			continue
		}
		shown = append(shown, names...)
	}

	b.emit(decl{
		kind:        kind,
		name:        uri,
		start:       int(stmt.StartByte()),
		end:         int(stmt.EndByte()),
		signature:   sig,
		annotations: annotations,
		importURI:   uri,
		importAlias: alias,
		resolved:    resolved,
	})
	for _, id := range shown {
		b.emit(decl{
			kind:        kind,
			name:        b.content(id),
			start:       int(id.StartByte()),
			end:         int(id.EndByte()),
			signature:   sig,
			importURI:   uri,
			importAlias: alias,
			resolved:    resolved,
		})
	}
}

func (w *dartWalker) part(stmt *sitter.Node, kind model.Kind) {
	b := w.b
	var name, uri, resolved string
	if u := childOfType(stmt, "uri"); u != nil {
		uri = unquote(b.content(descendantOfType(u, "string_literal")))
		name = uri
		resolved = resolveDartURI(b.file.Path, uri)
	} else if lib := childOfType(stmt, "dotted_identifier_list"); lib != nil {
		// part of a.b.c; names a library, not a file
		name = b.content(lib)
	}
	if name == "" {
		return
	}
	b.emit(decl{
		kind:      kind,
		name:      name,
		start:     int(stmt.StartByte()),
		end:       int(stmt.EndByte()),
		signature: clip(collapseSpace(b.content(stmt)), maxSignatureLen),
		importURI: uri,
		resolved:  resolved,
	})
}

// resolveDartURI resolves relative directive URIs against the importing
// file. Scheme URIs (package:, dart:) are left to the linker.
func resolveDartURI(from, uri string) string {
	if uri == "" || strings.Contains(uri, ":") {
		return ""
	}
	if !strings.HasPrefix(uri, "./") && !strings.HasPrefix(uri, "../") && !strings.HasSuffix(uri, ".dart") {
		return ""
	}
	return joinRelative(from, uri)
}

// ============================================================================
// DECLARATIONS
// ============================================================================

var dartSignatureTypes = []string{
	"function_signature", "getter_signature", "setter_signature",
	"constructor_signature", "constant_constructor_signature",
	"factory_constructor_signature", "redirecting_factory_constructor_signature",
	"operator_signature",
}

func (w *dartWalker) declarations(container *sitter.Node, owners []string) {
	var pending []*sitter.Node
	count := int(container.ChildCount())
	for i := 0; i < count; i++ {
		c := container.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "annotation":
			pending = append(pending, c)
			continue
		case "comment", "documentation_comment":
			continue
		case "class_definition":
			w.container(c, model.KindClass, w.b.content(c.ChildByFieldName("name")), c.ChildByFieldName("body"), pending, owners)
		case "mixin_declaration":
			w.container(c, model.KindMixin, w.b.content(childOfType(c, "identifier")), childOfType(c, "class_body"), pending, owners)
		case "enum_declaration":
			w.enum(c, pending, owners)
		case "extension_declaration":
			name := w.b.content(c.ChildByFieldName("name"))
			if name == "" {
				name = "extension"
			}
			w.container(c, model.KindExtension, name, c.ChildByFieldName("body"), pending, owners)
		case "extension_type_declaration":
			w.container(c, model.KindExtensionType, w.b.content(c.ChildByFieldName("name")), c.ChildByFieldName("body"), pending, owners)
		case "type_alias":
			w.typeAlias(c, pending, owners)
		case "function_signature", "getter_signature", "setter_signature", "method_signature":
			var body *sitter.Node
			if i+1 < count {
				if next := container.Child(i + 1); next != nil && next.Type() == "function_body" {
					body = next
					i++
				}
			}
			w.callable(c, body, pending, owners)
		case "declaration":
			if childOfType(c, dartSignatureTypes...) != nil {
				w.callable(c, nil, pending, owners)
			}
		}
		pending = nil
	}
}

// container emits a class-like node and descends into its body.
func (w *dartWalker) container(n *sitter.Node, kind model.Kind, name string, body *sitter.Node, pending []*sitter.Node, owners []string) {
	if name == "" {
		return
	}
	b := w.b
	annots := append(append([]*sitter.Node{}, pending...), childrenOfType(n, "annotation")...)
	start := int(n.StartByte())
	if len(pending) > 0 {
		start = int(pending[0].StartByte())
	}
	b.emit(decl{
		kind:        kind,
		name:        name,
		owners:      owners,
		start:       start,
		end:         int(n.EndByte()),
		signature:   dartLikeSignature(b.text(w.headStart(n), int(n.EndByte()))),
		visibility:  visibilityByUnderscore(name),
		annotations: w.annotations(annots),
		withSnippet: true,
	})
	if body != nil {
		w.declarations(body, appendOwner(owners, name))
	}
}

func (w *dartWalker) enum(n *sitter.Node, pending []*sitter.Node, owners []string) {
	b := w.b
	name := b.content(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	w.container(n, model.KindEnum, name, nil, pending, owners)
	body := n.ChildByFieldName("body")
	if body == nil {
		return
	}
	inner := appendOwner(owners, name)
	for _, c := range childrenOfType(body, "enum_constant") {
		cname := b.content(c.ChildByFieldName("name"))
		if cname == "" {
			continue
		}
		b.emit(decl{
			kind:        model.KindField,
			name:        cname,
			owners:      inner,
			start:       int(c.StartByte()),
			end:         int(c.EndByte()),
			signature:   clip(collapseSpace(b.content(c)), maxSignatureLen),
			visibility:  visibilityByUnderscore(cname),
			annotations: w.annotations(childrenOfType(c, "annotation")),
		})
	}
	w.declarations(body, inner)
}

// typeAlias handles both `typedef F = ...;` and the legacy
// `typedef R F(params);` forms.
func (w *dartWalker) typeAlias(n *sitter.Node, pending []*sitter.Node, owners []string) {
	b := w.b
	var first, beforeParams *sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		if c.Type() == "formal_parameter_list" {
			break
		}
		if c.Type() == "type_identifier" {
			if first == nil {
				first = c
			}
			beforeParams = c
		}
	}
	nameNode := first
	if childOfType(n, "formal_parameter_list") != nil && beforeParams != nil {
		nameNode = beforeParams
	}
	name := b.content(nameNode)
	if name == "" {
		return
	}
	start := int(n.StartByte())
	if len(pending) > 0 {
		start = int(pending[0].StartByte())
	}
	b.emit(decl{
		kind:        model.KindTypeAlias,
		name:        name,
		owners:      owners,
		start:       start,
		end:         int(n.EndByte()),
		signature:   clip(collapseSpace(strings.TrimSuffix(strings.TrimSpace(b.text(w.headStart(n), int(n.EndByte()))), ";")), maxSignatureLen),
		visibility:  visibilityByUnderscore(name),
		annotations: w.annotations(append(append([]*sitter.Node{}, pending...), childrenOfType(n, "annotation")...)),
		withSnippet: true,
	})
}

// callable emits a function or method. sig is a signature node, a
// method_signature wrapper or a class-body declaration.
func (w *dartWalker) callable(sig, body *sitter.Node, pending []*sitter.Node, owners []string) {
	b := w.b
	inner := sig
	if sig.Type() == "method_signature" || sig.Type() == "declaration" {
		inner = childOfType(sig, dartSignatureTypes...)
	}
	if inner == nil {
		return
	}
	name := w.callableName(inner)
	if name == "" {
		return
	}
	kind := model.KindFunction
	if len(owners) > 0 {
		kind = model.KindMethod
	}
	start := int(sig.StartByte())
	if len(pending) > 0 {
		start = int(pending[0].StartByte())
	}
	end := int(sig.EndByte())
	if body != nil {
		end = int(body.EndByte())
	}
	b.emit(decl{
		kind:        kind,
		name:        name,
		owners:      owners,
		start:       start,
		end:         end,
		signature:   dartLikeSignature(b.text(int(sig.StartByte()), end)),
		visibility:  visibilityByUnderscore(name),
		annotations: w.annotations(pending),
		withSnippet: true,
	})
}

var dartOperatorName = regexp.MustCompile(`operator\s*(\S+?)\s*\(`)

func (w *dartWalker) callableName(sig *sitter.Node) string {
	b := w.b
	switch sig.Type() {
	case "constructor_signature":
		var parts []string
		for _, p := range fieldChildren(sig, "name") {
			parts = append(parts, b.content(p))
		}
		return strings.Join(parts, "")
	case "constant_constructor_signature", "factory_constructor_signature", "redirecting_factory_constructor_signature":
		var parts []string
		for i := 0; i < int(sig.ChildCount()); i++ {
			c := sig.Child(i)
			if c == nil || c.Type() == "formal_parameter_list" {
				break
			}
			if c.Type() == "identifier" {
				parts = append(parts, b.content(c))
			}
		}
		return strings.Join(parts, ".")
	case "operator_signature":
		if m := dartOperatorName.FindStringSubmatch(b.content(sig)); m != nil {
			return "operator" + m[1]
		}
		return "operator"
	}
	if name := sig.ChildByFieldName("name"); name != nil {
		return b.content(name)
	}
	var last string
	for i := 0; i < int(sig.ChildCount()); i++ {
		c := sig.Child(i)
		if c == nil || c.Type() == "formal_parameter_list" {
			break
		}
		if c.Type() == "identifier" {
			last = b.content(c)
		}
	}
	return last
}

// headStart is the offset of the first child that is not an annotation.
func (w *dartWalker) headStart(n *sitter.Node) int {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() != "annotation" && c.Type() != "comment" && c.Type() != "documentation_comment" {
			return int(c.StartByte())
		}
	}
	return int(n.StartByte())
}

func (w *dartWalker) annotations(nodes []*sitter.Node) []model.Annotation {
	var out []model.Annotation
	for _, a := range nodes {
		name := w.b.content(a.ChildByFieldName("name"))
		if name == "" {
			name = strings.TrimPrefix(collapseSpace(w.b.content(a)), "@")
		}
		var value string
		if args := childOfType(a, "arguments"); args != nil {
			value = strings.TrimSuffix(strings.TrimPrefix(collapseSpace(w.b.content(args)), "("), ")")
		}
		out = append(out, model.Annotation{Name: name, Value: value})
	}
	return out
}

// ============================================================================
// VARIABLES
// ============================================================================

var dartClassLike = map[string]bool{
	"class_definition":           true,
	"mixin_declaration":          true,
	"enum_declaration":           true,
	"extension_declaration":      true,
	"extension_type_declaration": true,
}

// variables walks declaration-bearing nodes for bindings. Both the
// "identifier with initializer" and the bare identifier-list shapes count.
func (w *dartWalker) variables(n *sitter.Node, owners []string, local bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		t := c.Type()
		switch {
		case dartClassLike[t]:
			name := w.containerName(c)
			body := c.ChildByFieldName("body")
			if body == nil {
				body = childOfType(c, "class_body", "extension_body", "enum_body")
			}
			if name != "" && body != nil {
				w.variables(body, appendOwner(owners, name), false)
			}
		case t == "function_body":
			if w.b.opts.IncludeLocals {
				w.variables(c, owners, true)
			}
		case t == "declaration":
			w.variables(c, owners, local)
		case !local && (t == "initialized_identifier_list" || t == "static_final_declaration_list" || t == "identifier_list"):
			w.bindingList(c, owners)
		case local && t == "local_variable_declaration":
			for _, def := range childrenOfType(c, "initialized_variable_definition") {
				stmt := b2s(c)
				if id := def.ChildByFieldName("name"); id != nil {
					w.binding(id, def, stmt, owners, true)
				}
				for _, extra := range childrenOfType(def, "initialized_identifier") {
					if id := childOfType(extra, "identifier"); id != nil {
						w.binding(id, extra, stmt, owners, true)
					}
				}
			}
		case local:
			w.variables(c, owners, true)
		}
	}
}

func b2s(n *sitter.Node) [2]int {
	return [2]int{int(n.StartByte()), int(n.EndByte())}
}

func (w *dartWalker) containerName(n *sitter.Node) string {
	if name := n.ChildByFieldName("name"); name != nil {
		return w.b.content(name)
	}
	if n.Type() == "extension_declaration" {
		return "extension"
	}
	return w.b.content(childOfType(n, "identifier"))
}

// bindingList handles the identifier lists of a field or top-level variable
// declaration.
func (w *dartWalker) bindingList(list *sitter.Node, owners []string) {
	stmt := [2]int{w.statementStart(list), int(list.EndByte())}
	if parent := list.Parent(); parent != nil && parent.Type() == "declaration" {
		stmt = b2s(parent)
	}
	for i := 0; i < int(list.ChildCount()); i++ {
		c := list.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "initialized_identifier", "static_final_declaration":
			if id := childOfType(c, "identifier"); id != nil {
				w.binding(id, c, stmt, owners, false)
			}
		case "identifier":
			w.binding(c, c, stmt, owners, false)
		}
	}
}

// dartDeclarationHead are the program-level siblings that precede a flattened
// top-level variable list.
var dartDeclarationHead = map[string]bool{
	"final_builtin": true, "const_builtin": true, "inferred_type": true,
	"type_identifier": true, "type_arguments": true, "nullable_type": true,
	"function_type": true, "record_type": true, "void_type": true,
}

func (w *dartWalker) statementStart(list *sitter.Node) int {
	start := int(list.StartByte())
	for prev := list.PrevSibling(); prev != nil && dartDeclarationHead[prev.Type()]; prev = prev.PrevSibling() {
		start = int(prev.StartByte())
	}
	return start
}

func (w *dartWalker) binding(id, span *sitter.Node, stmt [2]int, owners []string, local bool) {
	key := [2]uint32{span.StartByte(), span.EndByte()}
	if w.varSpans[key] {
		return
	}
	w.varSpans[key] = true

	b := w.b
	name := b.content(id)
	if name == "" {
		return
	}
	kind := model.KindVariable
	if len(owners) > 0 && !local {
		kind = model.KindField
	}
	b.emit(decl{
		kind:       kind,
		name:       name,
		owners:     owners,
		start:      int(span.StartByte()),
		end:        int(span.EndByte()),
		docAnchor:  stmt[0],
		signature:  dartLikeSignature(b.text(stmt[0], stmt[1])),
		visibility: visibilityByUnderscore(name),
	})
}

// ============================================================================
// FALLBACK
// ============================================================================

var dartFallbackPatterns = []struct {
	kind model.Kind
	re   *regexp.Regexp
}{
	{model.KindClass, regexp.MustCompile(`^\s*(?:(?:abstract|base|final|interface|sealed|mixin)\s+)*class\s+([A-Za-z_$][\w$]*)`)},
	{model.KindMixin, regexp.MustCompile(`^\s*(?:base\s+)?mixin\s+([A-Za-z_$][\w$]*)\s*(?:<|on\b|implements\b|\{)`)},
	{model.KindEnum, regexp.MustCompile(`^\s*enum\s+([A-Za-z_$][\w$]*)`)},
	{model.KindExtensionType, regexp.MustCompile(`^\s*extension\s+type\s+(?:const\s+)?([A-Za-z_$][\w$]*)`)},
	{model.KindExtension, regexp.MustCompile(`^\s*extension\s+([A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s+on\b`)},
	{model.KindTypeAlias, regexp.MustCompile(`^\s*typedef\s+([A-Za-z_$][\w$]*)\s*(?:<[^>]*>)?\s*=`)},
}

// dartFallback recovers top-level type declarations the grammar missed. It
// only adds (kind, name) pairs not already present.
func dartFallback(b *nodeBuilder, existing []model.AstNode) []model.AstNode {
	have := make(map[string]bool, len(existing))
	for _, n := range existing {
		have[string(n.Kind)+"\x00"+n.Name] = true
	}
	var out []model.AstNode
	inBlock := false
	for line := 1; line <= len(b.lines.starts); line++ {
		text := b.lines.lineText(b.src, line)
		trimmed := strings.TrimSpace(text)
		if inBlock {
			if strings.Contains(trimmed, "*/") {
				inBlock = false
			}
			continue
		}
		if strings.HasPrefix(trimmed, "/*") {
			inBlock = !strings.Contains(trimmed, "*/")
			continue
		}
		if strings.HasPrefix(trimmed, "//") {
			continue
		}
		for _, p := range dartFallbackPatterns {
			m := p.re.FindStringSubmatch(text)
			if m == nil || m[1] == "class" {
				continue
			}
			key := string(p.kind) + "\x00" + m[1]
			if have[key] {
				break
			}
			have[key] = true
			start := b.lines.lineStart(line)
			out = append(out, b.build(decl{
				kind:        p.kind,
				name:        m[1],
				start:       start,
				end:         start + len(text),
				signature:   dartLikeSignature(text),
				visibility:  visibilityByUnderscore(m[1]),
				annotations: []model.Annotation{{Name: "fallback"}},
			}))
			break
		}
	}
	return out
}
