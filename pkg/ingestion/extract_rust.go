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
	"github.com/smacker/go-tree-sitter/rust"

	"github.com/kraklabs/codegraph/pkg/model"
)

// =============================================================================
// RUST EXTRACTOR
// =============================================================================

var rustExtractor = &treeExtractor{
	lang:    model.LangRust,
	grammar: func(string) *sitter.Language { return rust.GetLanguage() },
	moduleDoc: func(b *nodeBuilder) string {
		return moduleDoc(b.src, b.lines, "//!")
	},
	walk: func(b *nodeBuilder, root *sitter.Node) error {
		if root == nil {
			return ErrNoTree
		}
		w := &rustWalker{b: b}
		w.items(root, nil)
		return nil
	},
}

type rustWalker struct {
	b *nodeBuilder
}

// items walks a source file, inline module or trait/impl body.
func (w *rustWalker) items(container *sitter.Node, owners []string) {
	var attrs []*sitter.Node
	for i := 0; i < int(container.ChildCount()); i++ {
		c := container.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "attribute_item":
			attrs = append(attrs, c)
			continue
		case "line_comment", "block_comment", "inner_attribute_item":
			continue
		case "use_declaration":
			w.use(c)
		case "extern_crate_declaration":
			if name := w.b.content(c.ChildByFieldName("name")); name != "" {
				w.b.emit(decl{
					kind:        model.KindImport,
					name:        name,
					start:       int(c.StartByte()),
					end:         int(c.EndByte()),
					signature:   clip(collapseSpace(w.b.content(c)), maxSignatureLen),
					importURI:   name,
					importAlias: w.b.content(c.ChildByFieldName("alias")),
				})
			}
		case "mod_item":
			w.module(c, attrs, owners)
		case "function_item", "function_signature_item":
			kind := model.KindFunction
			if len(owners) > 0 {
				kind = model.KindMethod
			}
			w.item(c, kind, c.ChildByFieldName("name"), attrs, owners)
		case "struct_item", "union_item":
			if n := w.item(c, model.KindClass, c.ChildByFieldName("name"), attrs, owners); n.Name != "" {
				w.fields(c.ChildByFieldName("body"), appendOwner(owners, n.Name))
			}
		case "enum_item":
			if n := w.item(c, model.KindEnum, c.ChildByFieldName("name"), attrs, owners); n.Name != "" {
				w.variants(c.ChildByFieldName("body"), appendOwner(owners, n.Name))
			}
		case "trait_item":
			if n := w.item(c, model.KindTrait, c.ChildByFieldName("name"), attrs, owners); n.Name != "" {
				if body := c.ChildByFieldName("body"); body != nil {
					w.items(body, appendOwner(owners, n.Name))
				}
			}
		case "impl_item":
			w.impl(c, attrs, owners)
		case "const_item", "static_item":
			kind := model.KindVariable
			if len(owners) > 0 {
				kind = model.KindField
			}
			w.item(c, kind, c.ChildByFieldName("name"), attrs, owners)
		case "type_item", "associated_type":
			w.item(c, model.KindTypeAlias, c.ChildByFieldName("name"), attrs, owners)
		case "macro_definition":
			w.item(c, model.KindMacro, c.ChildByFieldName("name"), attrs, owners)
		}
		attrs = nil
	}
}

// item emits one declaration. The returned node has an empty name when
// nothing was emitted.
func (w *rustWalker) item(n *sitter.Node, kind model.Kind, nameNode *sitter.Node, attrs []*sitter.Node, owners []string) model.AstNode {
	name := w.b.content(nameNode)
	if name == "" {
		return model.AstNode{}
	}
	return w.emitItem(n, kind, name, attrs, owners)
}

func (w *rustWalker) emitItem(n *sitter.Node, kind model.Kind, name string, attrs []*sitter.Node, owners []string, extra ...model.Annotation) model.AstNode {
	b := w.b
	start := int(n.StartByte())
	if len(attrs) > 0 {
		start = int(attrs[0].StartByte())
	}
	return b.emit(decl{
		kind:        kind,
		name:        name,
		owners:      owners,
		start:       start,
		end:         int(n.EndByte()),
		signature:   signatureHead(b.content(n), ";", "{"),
		visibility:  w.visibility(n),
		annotations: append(w.attributes(attrs), extra...),
		withSnippet: kind != model.KindVariable && kind != model.KindField,
	})
}

func (w *rustWalker) use(n *sitter.Node) {
	b := w.b
	arg := n.ChildByFieldName("argument")
	if arg == nil {
		return
	}
	var alias string
	uri := collapseSpace(b.content(arg))
	if arg.Type() == "use_as_clause" {
		uri = collapseSpace(b.content(arg.ChildByFieldName("path")))
		alias = b.content(arg.ChildByFieldName("alias"))
	}
	// pub use re-exports the path
	kind := model.KindImport
	if childOfType(n, "visibility_modifier") != nil {
		kind = model.KindExport
	}
	b.emit(decl{
		kind:        kind,
		name:        uri,
		start:       int(n.StartByte()),
		end:         int(n.EndByte()),
		signature:   clip(collapseSpace(b.content(n)), maxSignatureLen),
		visibility:  w.visibility(n),
		importURI:   uri,
		importAlias: alias,
	})
}

// module emits a Module node. An out-of-line `mod x;` keeps the module name
// as its import URI so the linker can find the backing file.
func (w *rustWalker) module(n *sitter.Node, attrs []*sitter.Node, owners []string) {
	name := w.b.content(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	body := n.ChildByFieldName("body")
	if body == nil {
		start := int(n.StartByte())
		if len(attrs) > 0 {
			start = int(attrs[0].StartByte())
		}
		w.b.emit(decl{
			kind:        model.KindModule,
			name:        name,
			owners:      owners,
			start:       start,
			end:         int(n.EndByte()),
			signature:   signatureHead(w.b.content(n), ";", "{"),
			visibility:  w.visibility(n),
			annotations: w.attributes(attrs),
			importURI:   name,
		})
		return
	}
	w.emitItem(n, model.KindModule, name, attrs, owners)
	w.items(body, appendOwner(owners, name))
}

// impl emits an Impl node named after the implementing type. Its methods are
// owned by the type so their FQNs read Type.method.
func (w *rustWalker) impl(n *sitter.Node, attrs []*sitter.Node, owners []string) {
	b := w.b
	typeName := rustBaseType(b.content(n.ChildByFieldName("type")))
	if typeName == "" {
		return
	}
	var extra []model.Annotation
	if trait := rustBaseType(b.content(n.ChildByFieldName("trait"))); trait != "" {
		extra = append(extra, model.Annotation{Name: "impl", Value: trait})
	}
	w.emitItem(n, model.KindImpl, typeName, attrs, owners, extra...)
	if body := n.ChildByFieldName("body"); body != nil {
		w.items(body, appendOwner(owners, typeName))
	}
}

// rustBaseType strips generic arguments and references from a type path.
func rustBaseType(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "&")
	s = strings.TrimPrefix(s, "mut ")
	if i := strings.IndexByte(s, '<'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}

func (w *rustWalker) fields(body *sitter.Node, owners []string) {
	if body == nil || body.Type() != "field_declaration_list" {
		return
	}
	var attrs []*sitter.Node
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "attribute_item":
			attrs = append(attrs, c)
			continue
		case "field_declaration":
			w.item(c, model.KindField, c.ChildByFieldName("name"), attrs, owners)
		}
		attrs = nil
	}
}

func (w *rustWalker) variants(body *sitter.Node, owners []string) {
	if body == nil {
		return
	}
	var attrs []*sitter.Node
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "attribute_item":
			attrs = append(attrs, c)
			continue
		case "enum_variant":
			w.item(c, model.KindField, c.ChildByFieldName("name"), attrs, owners)
		}
		attrs = nil
	}
}

func (w *rustWalker) visibility(n *sitter.Node) model.Visibility {
	vis := childOfType(n, "visibility_modifier")
	if vis == nil {
		return model.VisibilityPrivate
	}
	if strings.TrimSpace(w.b.content(vis)) == "pub" {
		return model.VisibilityPublic
	}
	return model.VisibilityCrate
}

// attributes turns #[name(args)] and #[name = value] items into annotations.
func (w *rustWalker) attributes(attrs []*sitter.Node) []model.Annotation {
	var out []model.Annotation
	for _, a := range attrs {
		text := strings.TrimSpace(w.b.content(a))
		text = strings.TrimSuffix(strings.TrimPrefix(text, "#["), "]")
		name, value := text, ""
		if i := strings.IndexAny(text, "(="); i >= 0 {
			name = strings.TrimSpace(text[:i])
			value = strings.TrimSpace(text[i:])
			if strings.HasPrefix(value, "(") {
				value = strings.TrimSuffix(strings.TrimPrefix(value, "("), ")")
			} else {
				value = strings.TrimSpace(strings.TrimPrefix(value, "="))
			}
		}
		out = append(out, model.Annotation{Name: name, Value: collapseSpace(value)})
	}
	return out
}
