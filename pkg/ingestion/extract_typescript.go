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
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/kraklabs/codegraph/pkg/model"
)

// =============================================================================
// TYPESCRIPT / JAVASCRIPT EXTRACTOR
// =============================================================================

var typeScriptExtractor = &treeExtractor{
	lang: model.LangTypeScript,
	grammar: func(p string) *sitter.Language {
		if strings.HasSuffix(strings.ToLower(p), ".tsx") {
			return tsx.GetLanguage()
		}
		return typescript.GetLanguage()
	},
	walk: walkECMAScript,
}

var javaScriptExtractor = &treeExtractor{
	lang:    model.LangJavaScript,
	grammar: func(string) *sitter.Language { return javascript.GetLanguage() },
	walk:    walkECMAScript,
}

// tsWalker serves both grammars; node names absent from one grammar simply
// never match.
type tsWalker struct {
	b *nodeBuilder
}

func walkECMAScript(b *nodeBuilder, root *sitter.Node) error {
	if root == nil {
		return ErrNoTree
	}
	w := &tsWalker{b: b}
	w.statements(root, nil)
	w.requires(root)
	return nil
}

func (w *tsWalker) statements(container *sitter.Node, owners []string) {
	for i := 0; i < int(container.ChildCount()); i++ {
		c := container.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "import_statement":
			w.importStatement(c)
		case "export_statement":
			w.exportStatement(c, owners)
		case "comment":
		default:
			w.declaration(c, c, owners, false, nil)
		}
	}
}

func (w *tsWalker) importStatement(n *sitter.Node) {
	b := w.b
	src := n.ChildByFieldName("source")
	if src == nil {
		// import x = require("y")
		if req := childOfType(n, "import_require_clause"); req != nil {
			src = req.ChildByFieldName("source")
			if src == nil {
				src = childOfType(req, "string")
			}
		}
	}
	uri := unquote(b.content(src))
	if uri == "" {
		return
	}
	var alias string
	if clause := childOfType(n, "import_clause"); clause != nil {
		if ns := childOfType(clause, "namespace_import"); ns != nil {
			alias = b.content(childOfType(ns, "identifier"))
		} else if def := childOfType(clause, "identifier"); def != nil {
			alias = b.content(def)
		}
	}
	b.emit(decl{
		kind:        model.KindImport,
		name:        uri,
		start:       int(n.StartByte()),
		end:         int(n.EndByte()),
		signature:   clip(collapseSpace(b.content(n)), maxSignatureLen),
		importURI:   uri,
		importAlias: alias,
	})
}

func (w *tsWalker) exportStatement(n *sitter.Node, owners []string) {
	b := w.b
	if src := n.ChildByFieldName("source"); src != nil {
		uri := unquote(b.content(src))
		if uri == "" {
			return
		}
		var alias string
		if ns := childOfType(n, "namespace_export"); ns != nil {
			alias = b.content(childOfType(ns, "identifier"))
		}
		b.emit(decl{
			kind:        model.KindExport,
			name:        uri,
			start:       int(n.StartByte()),
			end:         int(n.EndByte()),
			signature:   clip(collapseSpace(b.content(n)), maxSignatureLen),
			importURI:   uri,
			importAlias: alias,
		})
		return
	}
	if d := n.ChildByFieldName("declaration"); d != nil {
		w.declaration(d, n, owners, true, fieldChildren(n, "decorator"))
		return
	}
	// export default class/function
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "class_declaration", "abstract_class_declaration", "function_declaration", "generator_function_declaration":
			w.declaration(c, n, owners, true, fieldChildren(n, "decorator"))
		}
	}
}

// declaration emits n. stmt is the outermost statement (the export wrapper
// when exported); its start anchors the span and doc.
func (w *tsWalker) declaration(n, stmt *sitter.Node, owners []string, exported bool, decorators []*sitter.Node) {
	b := w.b
	vis := model.VisibilityPrivate
	if exported || len(owners) > 0 {
		vis = model.VisibilityPublic
	}
	emitDecl := func(kind model.Kind, name string, snippet bool) model.AstNode {
		decorators = append(decorators, fieldChildren(n, "decorator")...)
		return b.emit(decl{
			kind:        kind,
			name:        name,
			owners:      owners,
			start:       int(stmt.StartByte()),
			end:         int(stmt.EndByte()),
			signature:   w.signature(n),
			visibility:  vis,
			annotations: w.decorators(decorators),
			withSnippet: snippet,
		})
	}

	switch n.Type() {
	case "class_declaration", "abstract_class_declaration":
		name := b.content(n.ChildByFieldName("name"))
		if name == "" {
			return
		}
		emitDecl(model.KindClass, name, true)
		w.members(n.ChildByFieldName("body"), appendOwner(owners, name))
	case "interface_declaration":
		name := b.content(n.ChildByFieldName("name"))
		if name == "" {
			return
		}
		emitDecl(model.KindInterface, name, true)
		w.members(n.ChildByFieldName("body"), appendOwner(owners, name))
	case "enum_declaration":
		name := b.content(n.ChildByFieldName("name"))
		if name == "" {
			return
		}
		emitDecl(model.KindEnum, name, true)
		w.enumMembers(n.ChildByFieldName("body"), appendOwner(owners, name))
	case "type_alias_declaration":
		if name := b.content(n.ChildByFieldName("name")); name != "" {
			emitDecl(model.KindTypeAlias, name, true)
		}
	case "function_declaration", "generator_function_declaration", "function_signature":
		if name := b.content(n.ChildByFieldName("name")); name != "" {
			emitDecl(model.KindFunction, name, true)
		}
	case "lexical_declaration", "variable_declaration":
		for _, d := range childrenOfType(n, "variable_declarator") {
			w.declarator(d, stmt, owners, vis)
		}
	case "internal_module", "module":
		name := unquote(b.content(n.ChildByFieldName("name")))
		if name == "" {
			return
		}
		emitDecl(model.KindModule, name, false)
		if body := n.ChildByFieldName("body"); body != nil {
			w.statements(body, appendOwner(owners, name))
		}
	case "expression_statement":
		// namespace X {} parses as an expression statement in some versions
		if m := childOfType(n, "internal_module"); m != nil {
			w.declaration(m, stmt, owners, exported, decorators)
		}
	case "ambient_declaration":
		for i := 0; i < int(n.ChildCount()); i++ {
			if c := n.Child(i); c != nil && c.IsNamed() {
				w.declaration(c, stmt, owners, exported, decorators)
			}
		}
	}
}

// declarator emits one binding of a const/let/var statement. Bindings whose
// value is a function become Function nodes.
func (w *tsWalker) declarator(d, stmt *sitter.Node, owners []string, vis model.Visibility) {
	b := w.b
	nameNode := d.ChildByFieldName("name")
	if nameNode == nil || nameNode.Type() != "identifier" {
		return
	}
	name := b.content(nameNode)
	kind := model.KindVariable
	snippet := false
	if v := d.ChildByFieldName("value"); v != nil {
		switch v.Type() {
		case "arrow_function", "function_expression", "function", "generator_function":
			kind = model.KindFunction
			snippet = true
		}
	}
	start, end := int(d.StartByte()), int(d.EndByte())
	if kind == model.KindFunction {
		start, end = int(stmt.StartByte()), int(stmt.EndByte())
	}
	b.emit(decl{
		kind:        kind,
		name:        name,
		owners:      owners,
		start:       start,
		end:         end,
		docAnchor:   int(stmt.StartByte()),
		signature:   signatureHead(b.text(int(stmt.StartByte()), int(d.EndByte())), ";", "{", "=>"),
		visibility:  vis,
		withSnippet: snippet,
	})
}

// members walks class and interface bodies. Decorators precede the member
// they apply to as siblings.
func (w *tsWalker) members(body *sitter.Node, owners []string) {
	if body == nil {
		return
	}
	b := w.b
	var pending []*sitter.Node
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c == nil {
			continue
		}
		kind := model.Kind("")
		switch c.Type() {
		case "decorator":
			pending = append(pending, c)
			continue
		case "comment":
			continue
		case "method_definition", "method_signature", "abstract_method_signature":
			kind = model.KindMethod
		case "public_field_definition", "field_definition", "property_signature":
			kind = model.KindField
		}
		if kind == "" {
			pending = nil
			continue
		}
		nameNode := c.ChildByFieldName("name")
		if nameNode == nil {
			nameNode = c.ChildByFieldName("property")
		}
		name := b.content(nameNode)
		if name == "" {
			pending = nil
			continue
		}
		start := int(c.StartByte())
		if len(pending) > 0 {
			start = int(pending[0].StartByte())
		}
		decorators := append(append([]*sitter.Node{}, pending...), childrenOfType(c, "decorator")...)
		b.emit(decl{
			kind:        kind,
			name:        name,
			owners:      owners,
			start:       start,
			end:         int(c.EndByte()),
			signature:   w.signature(c),
			visibility:  w.memberVisibility(c, nameNode),
			annotations: w.decorators(decorators),
			withSnippet: kind == model.KindMethod,
		})
		pending = nil
	}
}

func (w *tsWalker) enumMembers(body *sitter.Node, owners []string) {
	if body == nil {
		return
	}
	b := w.b
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c == nil {
			continue
		}
		var nameNode *sitter.Node
		switch c.Type() {
		case "property_identifier", "string":
			nameNode = c
		case "enum_assignment":
			nameNode = c.ChildByFieldName("name")
		default:
			continue
		}
		name := unquote(b.content(nameNode))
		if name == "" {
			continue
		}
		b.emit(decl{
			kind:       model.KindField,
			name:       name,
			owners:     owners,
			start:      int(c.StartByte()),
			end:        int(c.EndByte()),
			signature:  clip(collapseSpace(b.content(c)), maxSignatureLen),
			visibility: model.VisibilityPublic,
		})
	}
}

func (w *tsWalker) memberVisibility(member, name *sitter.Node) model.Visibility {
	if name != nil && (name.Type() == "private_property_identifier" || strings.HasPrefix(w.b.content(name), "#")) {
		return model.VisibilityPrivate
	}
	if mod := childOfType(member, "accessibility_modifier"); mod != nil {
		switch strings.TrimSpace(w.b.content(mod)) {
		case "private":
			return model.VisibilityPrivate
		case "protected":
			return model.VisibilityProtected
		}
	}
	return model.VisibilityPublic
}

// signature is the declaration head without decorators.
func (w *tsWalker) signature(n *sitter.Node) string {
	start := int(n.StartByte())
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c != nil && c.Type() != "decorator" && c.Type() != "comment" {
			start = int(c.StartByte())
			break
		}
	}
	text := w.b.text(start, int(n.EndByte()))
	if n.Type() == "type_alias_declaration" {
		return clip(collapseSpace(strings.TrimSuffix(strings.TrimSpace(text), ";")), maxSignatureLen)
	}
	return signatureHead(text, ";", "{", "=>")
}

func (w *tsWalker) decorators(nodes []*sitter.Node) []model.Annotation {
	var out []model.Annotation
	for _, d := range nodes {
		text := strings.TrimPrefix(strings.TrimSpace(w.b.content(d)), "@")
		name, value := text, ""
		if i := strings.IndexByte(text, '('); i >= 0 {
			name = text[:i]
			value = strings.TrimSuffix(text[i+1:], ")")
		}
		out = append(out, model.Annotation{Name: strings.TrimSpace(name), Value: collapseSpace(value)})
	}
	return out
}

// requires emits an Import for every require("...") call with a literal
// argument, anywhere in the file.
func (w *tsWalker) requires(n *sitter.Node) {
	if n.Type() == "call_expression" {
		fn := n.ChildByFieldName("function")
		if fn != nil && fn.Type() == "identifier" && w.b.content(fn) == "require" {
			if args := n.ChildByFieldName("arguments"); args != nil {
				if lit := childOfType(args, "string"); lit != nil {
					if uri := unquote(w.b.content(lit)); uri != "" {
						w.b.emit(decl{
							kind:      model.KindImport,
							name:      uri,
							start:     int(n.StartByte()),
							end:       int(n.EndByte()),
							signature: clip(collapseSpace(w.b.content(n)), maxSignatureLen),
							importURI: uri,
						})
					}
				}
			}
		}
	}
	for i := 0; i < int(n.ChildCount()); i++ {
		if c := n.Child(i); c != nil {
			w.requires(c)
		}
	}
}
