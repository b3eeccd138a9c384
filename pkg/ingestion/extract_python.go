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
	"github.com/smacker/go-tree-sitter/python"

	"github.com/kraklabs/codegraph/pkg/model"
)

// =============================================================================
// PYTHON EXTRACTOR
// =============================================================================

var pythonExtractor = &treeExtractor{
	lang:    model.LangPython,
	grammar: func(string) *sitter.Language { return python.GetLanguage() },
	walk: func(b *nodeBuilder, root *sitter.Node) error {
		if root == nil {
			return ErrNoTree
		}
		w := &pythonWalker{b: b}
		if doc := w.docstring(root); doc != "" && len(b.nodes) > 0 && b.nodes[0].Kind == model.KindFile {
			b.nodes[0].Doc = doc
		}
		w.block(root, nil, false, false)
		return nil
	},
}

type pythonWalker struct {
	b *nodeBuilder
}

// pythonNested are compound statements whose blocks still belong to the
// enclosing scope.
var pythonNested = map[string]bool{
	"if_statement": true, "elif_clause": true, "else_clause": true,
	"try_statement": true, "except_clause": true, "finally_clause": true,
	"with_statement": true, "block": true,
}

// block walks one scope. inClass selects Method/Field kinds; local is set
// inside function bodies when locals are enabled.
func (w *pythonWalker) block(n *sitter.Node, owners []string, inClass, local bool) {
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if c == nil {
			continue
		}
		switch c.Type() {
		case "import_statement":
			if !local {
				w.importStatement(c)
			}
		case "import_from_statement":
			if !local {
				w.importFrom(c)
			}
		case "class_definition":
			w.class(c, c, nil, owners)
		case "function_definition":
			w.function(c, c, nil, owners, inClass)
		case "decorated_definition":
			def := c.ChildByFieldName("definition")
			if def == nil {
				continue
			}
			decorators := childrenOfType(c, "decorator")
			if def.Type() == "class_definition" {
				w.class(def, c, decorators, owners)
			} else {
				w.function(def, c, decorators, owners, inClass)
			}
		case "expression_statement":
			w.assignment(c, owners, inClass, local)
		case "type_alias_statement":
			w.typeAlias(c, owners)
		default:
			if pythonNested[c.Type()] {
				w.block(c, owners, inClass, local)
			}
		}
	}
}

func (w *pythonWalker) importStatement(n *sitter.Node) {
	for _, name := range fieldChildren(n, "name") {
		module, alias := w.importName(name)
		if module == "" {
			continue
		}
		w.b.emit(decl{
			kind:        model.KindImport,
			name:        module,
			start:       int(name.StartByte()),
			end:         int(name.EndByte()),
			signature:   clip(collapseSpace(w.b.content(n)), maxSignatureLen),
			importURI:   module,
			importAlias: alias,
		})
	}
}

// importFrom emits the module import plus one node per imported name, so
// usage heuristics can match individual names.
func (w *pythonWalker) importFrom(n *sitter.Node) {
	b := w.b
	module := strings.TrimSpace(b.content(n.ChildByFieldName("module_name")))
	if module == "" {
		return
	}
	sig := clip(collapseSpace(b.content(n)), maxSignatureLen)
	b.emit(decl{
		kind:      model.KindImport,
		name:      module,
		start:     int(n.StartByte()),
		end:       int(n.EndByte()),
		signature: sig,
		importURI: module,
	})
	for _, name := range fieldChildren(n, "name") {
		imported, alias := w.importName(name)
		if imported == "" {
			continue
		}
		b.emit(decl{
			kind:        model.KindImport,
			name:        imported,
			start:       int(name.StartByte()),
			end:         int(name.EndByte()),
			signature:   sig,
			importURI:   module,
			importAlias: alias,
		})
	}
}

func (w *pythonWalker) importName(n *sitter.Node) (name, alias string) {
	if n.Type() == "aliased_import" {
		return w.b.content(n.ChildByFieldName("name")), w.b.content(n.ChildByFieldName("alias"))
	}
	return w.b.content(n), ""
}

// class emits a class and walks its body. outer is the decorated wrapper when
// present.
func (w *pythonWalker) class(n, outer *sitter.Node, decorators []*sitter.Node, owners []string) {
	b := w.b
	name := b.content(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	body := n.ChildByFieldName("body")
	b.emit(decl{
		kind:        model.KindClass,
		name:        name,
		owners:      owners,
		start:       int(outer.StartByte()),
		end:         int(outer.EndByte()),
		doc:         w.docstring(body),
		signature:   signatureHead(b.content(n), ":"),
		visibility:  visibilityByUnderscore(name),
		annotations: w.decorators(decorators),
		withSnippet: true,
	})
	if body != nil {
		w.block(body, appendOwner(owners, name), true, false)
	}
}

func (w *pythonWalker) function(n, outer *sitter.Node, decorators []*sitter.Node, owners []string, inClass bool) {
	b := w.b
	name := b.content(n.ChildByFieldName("name"))
	if name == "" {
		return
	}
	kind := model.KindFunction
	if inClass {
		kind = model.KindMethod
	}
	body := n.ChildByFieldName("body")
	b.emit(decl{
		kind:        kind,
		name:        name,
		owners:      owners,
		start:       int(outer.StartByte()),
		end:         int(outer.EndByte()),
		doc:         w.docstring(body),
		signature:   signatureHead(b.content(n), ":"),
		visibility:  visibilityByUnderscore(name),
		annotations: w.decorators(decorators),
		withSnippet: true,
	})
	if body != nil && b.opts.IncludeLocals {
		w.block(body, appendOwner(owners, name), false, true)
	}
}

// assignment emits module and class level bindings; inside functions only
// when locals are enabled.
func (w *pythonWalker) assignment(stmt *sitter.Node, owners []string, inClass, local bool) {
	b := w.b
	assign := childOfType(stmt, "assignment")
	if assign == nil {
		return
	}
	left := assign.ChildByFieldName("left")
	if left == nil {
		return
	}
	var targets []*sitter.Node
	switch left.Type() {
	case "identifier":
		targets = append(targets, left)
	case "pattern_list", "tuple_pattern":
		targets = append(targets, childrenOfType(left, "identifier")...)
	}
	kind := model.KindVariable
	if inClass {
		kind = model.KindField
	}
	sig := clip(collapseSpace(b.lines.lineText(b.src, b.lines.lineOf(int(stmt.StartByte())))), maxSignatureLen)
	for _, t := range targets {
		name := b.content(t)
		b.emit(decl{
			kind:       kind,
			name:       name,
			owners:     owners,
			start:      int(stmt.StartByte()),
			end:        int(stmt.EndByte()),
			signature:  sig,
			visibility: visibilityByUnderscore(name),
		})
	}
}

func (w *pythonWalker) typeAlias(stmt *sitter.Node, owners []string) {
	b := w.b
	nameNode := stmt.ChildByFieldName("left")
	if nameNode == nil {
		nameNode = childOfType(stmt, "type")
	}
	name := b.content(nameNode)
	if i := strings.IndexByte(name, '['); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return
	}
	b.emit(decl{
		kind:       model.KindTypeAlias,
		name:       name,
		owners:     owners,
		start:      int(stmt.StartByte()),
		end:        int(stmt.EndByte()),
		signature:  clip(collapseSpace(b.content(stmt)), maxSignatureLen),
		visibility: visibilityByUnderscore(name),
	})
}

// docstring returns the leading string literal of a module or body block,
// dedented.
func (w *pythonWalker) docstring(body *sitter.Node) string {
	if body == nil {
		return ""
	}
	for i := 0; i < int(body.ChildCount()); i++ {
		c := body.Child(i)
		if c == nil || c.Type() == "comment" {
			continue
		}
		if c.Type() != "expression_statement" {
			return ""
		}
		lit := childOfType(c, "string")
		if lit == nil || c.NamedChildCount() != 1 {
			return ""
		}
		return dedent(unquote(w.b.content(lit)))
	}
	return ""
}

func (w *pythonWalker) decorators(nodes []*sitter.Node) []model.Annotation {
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

// dedent strips the common indentation of all lines after the first.
func dedent(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 1 {
		return lines[0]
	}
	indent := -1
	for _, l := range lines[1:] {
		if strings.TrimSpace(l) == "" {
			continue
		}
		n := len(l) - len(strings.TrimLeft(l, " \t"))
		if indent < 0 || n < indent {
			indent = n
		}
	}
	if indent > 0 {
		for i := 1; i < len(lines); i++ {
			if len(lines[i]) >= indent {
				lines[i] = lines[i][indent:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " \t")
			}
		}
	}
	return strings.Join(lines, "\n")
}
