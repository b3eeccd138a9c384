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

package model

import "strings"

// Kind is the closed tag set of AST node kinds.
type Kind string

const (
	KindFile          Kind = "File"
	KindModule        Kind = "Module"
	KindPackage       Kind = "Package"
	KindClass         Kind = "Class"
	KindMixin         Kind = "Mixin"
	KindEnum          Kind = "Enum"
	KindExtension     Kind = "Extension"
	KindExtensionType Kind = "ExtensionType"
	KindInterface     Kind = "Interface"
	KindTypeAlias     Kind = "TypeAlias"
	KindTrait         Kind = "Trait"
	KindImpl          Kind = "Impl"
	KindFunction      Kind = "Function"
	KindMethod        Kind = "Method"
	KindField         Kind = "Field"
	KindVariable      Kind = "Variable"
	KindImport        Kind = "Import"
	KindExport        Kind = "Export"
	KindPart          Kind = "Part"
	KindPartOf        Kind = "PartOf"
	KindMacro         Kind = "Macro"
)

// AllKinds lists every kind in declaration order.
var AllKinds = []Kind{
	KindFile, KindModule, KindPackage, KindClass, KindMixin, KindEnum, KindExtension,
	KindExtensionType, KindInterface, KindTypeAlias, KindTrait, KindImpl, KindFunction,
	KindMethod, KindField, KindVariable, KindImport, KindExport, KindPart, KindPartOf, KindMacro,
}

// IsDirective reports whether k is directive metadata rather than a declaration.
func (k Kind) IsDirective() bool {
	switch k {
	case KindImport, KindExport, KindPart, KindPartOf:
		return true
	}
	return false
}

// IsCallable reports whether k can participate in Calls edges.
func (k Kind) IsCallable() bool {
	return k == KindFunction || k == KindMethod
}

// IsContainer reports whether nodes of kind k own other declarations.
func (k Kind) IsContainer() bool {
	switch k {
	case KindFile, KindModule, KindPackage, KindClass, KindMixin, KindEnum, KindExtension,
		KindExtensionType, KindInterface, KindTrait, KindImpl:
		return true
	}
	return false
}

// Language identifies the grammar a file was extracted with.
type Language string

const (
	LangDart       Language = "dart"
	LangRust       Language = "rust"
	LangTypeScript Language = "typescript"
	LangJavaScript Language = "javascript"
	LangPython     Language = "python"
	LangYAML       Language = "yaml"
	LangJSON       Language = "json"
	LangTOML       Language = "toml"
	LangMarkdown   Language = "markdown"
)

// Visibility is the optional access level of a declaration.
type Visibility string

const (
	VisibilityPublic    Visibility = "Public"
	VisibilityPrivate   Visibility = "Private"
	VisibilityProtected Visibility = "Protected"
	VisibilityCrate     Visibility = "Crate"
	VisibilityPackage   Visibility = "Package"
)

// Span locates a node in its file. Lines are 1-based and inclusive,
// bytes are 0-based with an exclusive end.
type Span struct {
	StartLine int `json:"start_line"`
	EndLine   int `json:"end_line"`
	StartByte int `json:"start_byte"`
	EndByte   int `json:"end_byte"`
}

// IsZero reports whether the span is the synthetic zero-length span.
func (s Span) IsZero() bool {
	return s == Span{}
}

// Valid reports whether the span ranges are well formed.
func (s Span) Valid() bool {
	if s.IsZero() {
		return true
	}
	return s.EndByte >= s.StartByte && s.EndLine >= s.StartLine && s.StartLine >= 1
}

// Annotation is a name with an optional argument text.
type Annotation struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// AstNode is one extracted fact about a source file.
type AstNode struct {
	SymbolID       string       `json:"symbol_id"`
	Name           string       `json:"name"`
	Kind           Kind         `json:"kind"`
	Language       Language     `json:"language"`
	File           string       `json:"file"`
	Span           Span         `json:"span"`
	OwnerPath      []string     `json:"owner_path"`
	FQN            string       `json:"fqn"`
	Visibility     Visibility   `json:"visibility,omitempty"`
	Signature      string       `json:"signature,omitempty"`
	Doc            string       `json:"doc,omitempty"`
	Annotations    []Annotation `json:"annotations,omitempty"`
	ImportURI      string       `json:"import_uri,omitempty"`
	ImportAlias    string       `json:"import_alias,omitempty"`
	ResolvedTarget string       `json:"resolved_target,omitempty"`
	IsGenerated    bool         `json:"is_generated"`
	Snippet        string       `json:"snippet,omitempty"`
}

// Clone returns a deep copy of n.
func (n AstNode) Clone() AstNode {
	c := n
	if n.OwnerPath != nil {
		c.OwnerPath = append([]string(nil), n.OwnerPath...)
	}
	if n.Annotations != nil {
		c.Annotations = append([]Annotation(nil), n.Annotations...)
	}
	return c
}

// BuildFQN joins a file path and a containment chain into a qualified name,
// e.g. "lib/a.dart::Widget.build".
func BuildFQN(file string, owners []string, name string) string {
	parts := make([]string, 0, len(owners)+1)
	parts = append(parts, owners...)
	if name != "" {
		parts = append(parts, name)
	}
	if len(parts) == 0 {
		return file
	}
	return file + "::" + strings.Join(parts, ".")
}
