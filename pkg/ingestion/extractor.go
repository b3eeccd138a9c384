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
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/kraklabs/codegraph/pkg/model"
)

// ExtractOptions is the per-call view of ExtractConfig. Extractors read it and
// never consult process-wide state, so files can be extracted concurrently.
type ExtractOptions ExtractConfig

// Extractor turns one source file into a flat list of AST nodes. The first
// node is always the synthetic File node.
type Extractor interface {
	// Extract parses src and returns its nodes. It never panics: internal
	// failures come back as *ExtractError.
	Extract(ctx context.Context, file ScannedFile, src []byte, opts ExtractOptions) ([]model.AstNode, error)

	// Degrade returns the safe fallback used when Extract fails: the File
	// node plus whatever the text-pattern pass can recover.
	Degrade(file ScannedFile, src []byte, opts ExtractOptions) []model.AstNode
}

// Extraction stages reported by ExtractError.
const (
	StageParse   = "parse"
	StageExtract = "extract"
)

// ErrNoTree is returned when the parser produced no tree.
var ErrNoTree = errors.New("parser returned no tree")

// ErrGrammarRejected is returned when the tree-sitter runtime refuses a
// grammar, usually one generated for a newer language ABI.
var ErrGrammarRejected = errors.New("grammar rejected by tree-sitter runtime")

// ExtractError is a per-file failure. The pipeline logs it and continues.
type ExtractError struct {
	Path     string
	Language model.Language
	Stage    string
	Err      error

	// TreeDump is the S-expression of the parse tree when diagnostics are on.
	TreeDump string
}

func (e *ExtractError) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Stage, e.Path, e.Language, e.Err)
}

func (e *ExtractError) Unwrap() error { return e.Err }

// ExtractorFor returns the extractor for lang, or nil when none exists.
func ExtractorFor(lang model.Language) Extractor {
	switch lang {
	case model.LangDart:
		return dartExtractor
	case model.LangRust:
		return rustExtractor
	case model.LangTypeScript:
		return typeScriptExtractor
	case model.LangJavaScript:
		return javaScriptExtractor
	case model.LangPython:
		return pythonExtractor
	case model.LangYAML, model.LangJSON, model.LangTOML, model.LangMarkdown:
		return plainExtractor{}
	}
	return nil
}

// grammarChecks names one file per grammar the extractors can select.
var grammarChecks = []ScannedFile{
	{Path: "a.dart", Language: model.LangDart},
	{Path: "a.rs", Language: model.LangRust},
	{Path: "a.ts", Language: model.LangTypeScript},
	{Path: "a.tsx", Language: model.LangTypeScript},
	{Path: "a.js", Language: model.LangJavaScript},
	{Path: "a.py", Language: model.LangPython},
}

// CheckGrammars parses an empty source with every bundled grammar. A grammar
// the runtime refuses would otherwise fail each file of its language at
// StageParse and degrade the whole language to the text-pattern pass.
func CheckGrammars(ctx context.Context) error {
	for _, f := range grammarChecks {
		e, ok := ExtractorFor(f.Language).(*treeExtractor)
		if !ok {
			continue
		}
		if err := checkGrammar(ctx, e.grammar(f.Path)); err != nil {
			return fmt.Errorf("load %s grammar for %s: %w", f.Language, f.Path, err)
		}
	}
	return nil
}

func checkGrammar(ctx context.Context, lang *sitter.Language) error {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, []byte{})
	if errors.Is(err, sitter.ErrNoLanguage) {
		return ErrGrammarRejected
	}
	if err != nil {
		return err
	}
	if tree != nil {
		tree.Close()
	}
	return nil
}

// walkFunc builds nodes from a parsed tree.
type walkFunc func(b *nodeBuilder, root *sitter.Node) error

// fallbackFunc recovers nodes by text patterns; existing nodes are read-only.
type fallbackFunc func(b *nodeBuilder, existing []model.AstNode) []model.AstNode

// treeExtractor is the shared tree-sitter driver. Each language supplies its
// grammar, a walk and optionally a fallback pass.
type treeExtractor struct {
	lang      model.Language
	grammar   func(path string) *sitter.Language
	moduleDoc func(b *nodeBuilder) string
	walk      walkFunc
	fallback  fallbackFunc
}

func (e *treeExtractor) Extract(ctx context.Context, file ScannedFile, src []byte, opts ExtractOptions) (nodes []model.AstNode, err error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(e.grammar(file.Path))

	tree, perr := parser.ParseCtx(ctx, nil, src)
	if perr != nil {
		return nil, &ExtractError{Path: file.Path, Language: e.lang, Stage: StageParse, Err: perr}
	}
	if tree == nil {
		return nil, &ExtractError{Path: file.Path, Language: e.lang, Stage: StageParse, Err: ErrNoTree}
	}
	defer tree.Close()
	root := tree.RootNode()

	b := newNodeBuilder(e.lang, file, src, opts)
	defer func() {
		if r := recover(); r != nil {
			nodes = nil
			err = &ExtractError{
				Path:     file.Path,
				Language: e.lang,
				Stage:    StageExtract,
				Err:      fmt.Errorf("panic: %v", r),
				TreeDump: treeDump(root, opts),
			}
		}
	}()

	b.emitFile(e.docOf(b))
	if werr := e.walk(b, root); werr != nil {
		return nil, &ExtractError{
			Path:     file.Path,
			Language: e.lang,
			Stage:    StageExtract,
			Err:      werr,
			TreeDump: treeDump(root, opts),
		}
	}
	if opts.FallbackRegex && e.fallback != nil {
		for _, n := range e.fallback(b, b.nodes) {
			b.add(n)
		}
	}
	return b.finish(), nil
}

func (e *treeExtractor) Degrade(file ScannedFile, src []byte, opts ExtractOptions) []model.AstNode {
	b := newNodeBuilder(e.lang, file, src, opts)
	b.emitFile(e.docOf(b))
	if e.fallback != nil {
		for _, n := range e.fallback(b, b.nodes) {
			b.add(n)
		}
	}
	return b.finish()
}

func (e *treeExtractor) docOf(b *nodeBuilder) string {
	if e.moduleDoc == nil {
		return ""
	}
	return e.moduleDoc(b)
}

// treeDump renders root for diagnostics, or "" when they are off.
func treeDump(root *sitter.Node, opts ExtractOptions) string {
	if root == nil || !opts.Diagnostics.DumpTreeOnError {
		return ""
	}
	dump := root.String()
	if max := opts.Diagnostics.MaxDumpBytes; max > 0 && len(dump) > max {
		dump = dump[:max]
	}
	return dump
}

// plainExtractor handles config and markup files: one File node whose
// content is chunked by whole-file slicing.
type plainExtractor struct{}

func (plainExtractor) Extract(_ context.Context, file ScannedFile, src []byte, opts ExtractOptions) ([]model.AstNode, error) {
	b := newNodeBuilder(file.Language, file, src, opts)
	b.emitFile("")
	return b.finish(), nil
}

func (p plainExtractor) Degrade(file ScannedFile, src []byte, opts ExtractOptions) []model.AstNode {
	nodes, _ := p.Extract(context.Background(), file, src, opts)
	return nodes
}
