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
	"path"
	"strings"

	"github.com/kraklabs/codegraph/pkg/model"
)

// StrategyFor returns the linking strategy for a linker family name. Unknown
// families get the generic strategy.
func StrategyFor(family string) Strategy {
	switch family {
	case "dart":
		return DartStrategy()
	case "rust":
		return RustStrategy()
	case "typescript":
		return TypeScriptStrategy()
	default:
		return GenericStrategy()
	}
}

// classifyDirective is the shared directive-kind mapping.
func classifyDirective(n model.AstNode) (Directive, bool) {
	switch n.Kind {
	case model.KindImport:
		return Directive{Label: model.EdgeImports}, true
	case model.KindExport:
		return Directive{Label: model.EdgeExports}, true
	case model.KindPart:
		return Directive{Label: model.EdgePart}, true
	case model.KindPartOf:
		return Directive{Label: model.EdgePart, Reverse: true}, true
	}
	return Directive{}, false
}

// DartStrategy links Dart libraries. Re-exports are flattened one hop.
func DartStrategy() Strategy {
	return Strategy{
		Name:             "dart",
		Classify:         classifyDirective,
		Resolve:          resolveDart,
		FlattenReexports: true,
	}
}

// resolveDart handles what the extractor left open: package: URIs under the
// monorepo convention <pkg>/lib/<path>, and bare relative paths.
func resolveDart(n model.AstNode, files *FileIndex) (string, bool) {
	uri := n.ImportURI
	switch {
	case uri == "", strings.HasPrefix(uri, "dart:"):
		return "", false
	case strings.HasPrefix(uri, "package:"):
		pkg, rest, ok := strings.Cut(strings.TrimPrefix(uri, "package:"), "/")
		if !ok || pkg == "" || rest == "" {
			return "", false
		}
		return files.SuffixMatch(pkg + "/lib/" + rest)
	case strings.Contains(uri, ":"):
		return "", false
	}
	return relativeOrSuffix(n.File, uri, files)
}

// relativeOrSuffix resolves ./ and ../ paths against the importing file's
// directory, and anything else by suffix match.
func relativeOrSuffix(from, uri string, files *FileIndex) (string, bool) {
	if strings.HasPrefix(uri, "./") || strings.HasPrefix(uri, "../") {
		p := joinRelative(from, uri)
		return p, p != "" && files.Has(p)
	}
	return files.SuffixMatch(uri)
}

func joinRelative(from, rel string) string {
	joined := path.Join(path.Dir(from), rel)
	if joined == "." || joined == ".." || strings.HasPrefix(joined, "../") {
		return ""
	}
	return joined
}

// GenericStrategy links Python-like modules and config files. It adds
// SameFile adjacency since finer edges are scarce.
func GenericStrategy() Strategy {
	return Strategy{
		Name:     "generic",
		Classify: classifyDirective,
		Resolve:  resolvePython,
		SameFile: true,
	}
}

// resolvePython maps dotted module names to a/b.py or a/b/__init__.py,
// honoring leading dots as relative levels. For `from m import name` the
// name is tried as a submodule first.
func resolvePython(n model.AstNode, files *FileIndex) (string, bool) {
	uri := n.ImportURI
	if uri == "" {
		return "", false
	}
	if n.Name != "" && n.Name != uri {
		sub := uri + "." + n.Name
		if strings.HasSuffix(uri, ".") {
			sub = uri + n.Name
		}
		if p, ok := resolvePythonModule(n.File, sub, files); ok {
			return p, true
		}
	}
	return resolvePythonModule(n.File, uri, files)
}

func resolvePythonModule(from, module string, files *FileIndex) (string, bool) {
	dots := len(module) - len(strings.TrimLeft(module, "."))
	rel := strings.ReplaceAll(strings.TrimLeft(module, "."), ".", "/")

	if dots > 0 {
		dir := path.Dir(from)
		for i := 1; i < dots; i++ {
			dir = path.Dir(dir)
		}
		base := path.Join(dir, rel)
		if rel == "" {
			base = dir
		}
		for _, c := range []string{base + ".py", base + ".pyi", base + "/__init__.py"} {
			c = strings.TrimPrefix(c, "./")
			if files.Has(c) {
				return c, true
			}
		}
		return "", false
	}

	if rel == "" {
		return "", false
	}
	for _, c := range []string{rel + ".py", rel + ".pyi", rel + "/__init__.py"} {
		if files.Has(c) {
			return c, true
		}
	}
	// src layouts and nested projects
	for _, c := range []string{rel + ".py", rel + "/__init__.py"} {
		if p, ok := files.SuffixMatch(c); ok {
			return p, true
		}
	}
	return "", false
}

// RustStrategy links `mod x;` declarations and crate-local use paths.
func RustStrategy() Strategy {
	return Strategy{
		Name: "rust",
		Classify: func(n model.AstNode) (Directive, bool) {
			if n.Kind == model.KindModule && n.ImportURI != "" {
				return Directive{Label: model.EdgePart}, true
			}
			return classifyDirective(n)
		},
		Resolve:  resolveRust,
		SameFile: true,
	}
}

func resolveRust(n model.AstNode, files *FileIndex) (string, bool) {
	if n.Kind == model.KindModule {
		dir := rustModuleDir(n.File)
		return firstKnown(files, path.Join(dir, n.ImportURI+".rs"), path.Join(dir, n.ImportURI, "mod.rs"))
	}

	use := n.ImportURI
	if i := strings.Index(use, "::{"); i >= 0 {
		use = use[:i]
	}
	segs := strings.Split(use, "::")
	if len(segs) < 2 {
		return "", false
	}
	var base string
	switch segs[0] {
	case "crate":
		base = rustCrateRoot(n.File)
	case "self":
		base = rustModuleDir(n.File)
	case "super":
		base = path.Dir(rustModuleDir(n.File))
		for len(segs) > 2 && segs[1] == "super" {
			base = path.Dir(base)
			segs = segs[1:]
		}
	default:
		return "", false
	}
	segs = segs[1:]
	// the last segments may name items rather than modules
	for l := len(segs); l > 0; l-- {
		p := path.Join(append([]string{base}, segs[:l]...)...)
		if found, ok := firstKnown(files, p+".rs", path.Join(p, "mod.rs")); ok {
			return found, true
		}
	}
	// an item of the base module itself
	return firstKnown(files, base+".rs", path.Join(base, "mod.rs"), path.Join(base, "lib.rs"), path.Join(base, "main.rs"))
}

// rustModuleDir is the directory holding the child modules of file.
func rustModuleDir(file string) string {
	switch path.Base(file) {
	case "lib.rs", "main.rs", "mod.rs":
		return path.Dir(file)
	}
	return strings.TrimSuffix(file, ".rs")
}

// rustCrateRoot is the nearest enclosing src directory.
func rustCrateRoot(file string) string {
	dir := path.Dir(file)
	for d := dir; d != "." && d != "/"; d = path.Dir(d) {
		if path.Base(d) == "src" {
			return d
		}
	}
	return dir
}

func firstKnown(files *FileIndex, candidates ...string) (string, bool) {
	for _, c := range candidates {
		c = strings.TrimPrefix(path.Clean(c), "./")
		if files.Has(c) {
			return c, true
		}
	}
	return "", false
}

// TypeScriptStrategy links relative module specifiers for TS and JS. Bare
// specifiers name packages and stay unresolved.
func TypeScriptStrategy() Strategy {
	return Strategy{
		Name:     "typescript",
		Classify: classifyDirective,
		Resolve:  resolveTypeScript,
	}
}

var tsExtensions = []string{".ts", ".tsx", ".d.ts", ".mts", ".cts", ".js", ".jsx", ".mjs", ".cjs"}

func resolveTypeScript(n model.AstNode, files *FileIndex) (string, bool) {
	uri := n.ImportURI
	if !strings.HasPrefix(uri, "./") && !strings.HasPrefix(uri, "../") {
		return "", false
	}
	base := joinRelative(n.File, uri)
	if base == "" {
		return "", false
	}
	candidates := []string{base}
	// ESM sources import "./x.js" for x.ts
	if ext := path.Ext(base); ext == ".js" || ext == ".mjs" || ext == ".cjs" || ext == ".jsx" {
		stem := strings.TrimSuffix(base, ext)
		candidates = append(candidates, stem+".ts", stem+".tsx", stem+".mts", stem+".cts")
	}
	for _, ext := range tsExtensions {
		candidates = append(candidates, base+ext)
	}
	for _, ext := range tsExtensions {
		candidates = append(candidates, base+"/index"+ext)
	}
	return firstKnown(files, candidates...)
}
