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

// Package rag projects AST nodes into bounded retrieval records and attaches
// graph neighbors to them.
package rag

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kraklabs/codegraph/pkg/ids"
	"github.com/kraklabs/codegraph/pkg/model"
)

// Limits bounds chunk size.
type Limits struct {
	MaxChunkLines int `yaml:"max_chunk_lines"`
	MaxChunkChars int `yaml:"max_chunk_chars"`
	OverlapLines  int `yaml:"overlap_lines"`

	// FileCacheSize is the number of source files kept in memory for
	// byte-span slicing.
	FileCacheSize int `yaml:"file_cache_size"`
}

// DefaultLimits returns the chunking defaults.
func DefaultLimits() Limits {
	return Limits{
		MaxChunkLines: 200,
		MaxChunkChars: 16000,
		OverlapLines:  4,
		FileCacheSize: 256,
	}
}

type cachedFile struct {
	data []byte
	ok   bool
}

// Chunker turns nodes into records. Text comes from the node snippet or, when
// there is none, from the node's byte span in its file.
type Chunker struct {
	root   string
	limits Limits
	logger *slog.Logger
	files  *lru.Cache[string, cachedFile]
}

// NewChunker returns a chunker reading sources relative to root.
func NewChunker(root string, limits Limits, logger *slog.Logger) (*Chunker, error) {
	if logger == nil {
		logger = slog.Default()
	}
	size := limits.FileCacheSize
	if size <= 0 {
		size = DefaultLimits().FileCacheSize
	}
	cache, err := lru.New[string, cachedFile](size)
	if err != nil {
		return nil, fmt.Errorf("create file cache: %w", err)
	}
	return &Chunker{root: root, limits: limits, logger: logger, files: cache}, nil
}

// Chunk emits one record per node that fits the limits and an overlapping
// line window series for the rest. Output order follows input order.
func (c *Chunker) Chunk(nodes []model.AstNode) []model.RagRecord {
	records := make([]model.RagRecord, 0, len(nodes))
	for _, n := range nodes {
		records = append(records, c.chunkNode(n)...)
	}
	return records
}

func (c *Chunker) chunkNode(n model.AstNode) []model.RagRecord {
	text := c.textOf(n)
	lines := splitLines(text)

	base := model.RagRecord{
		Path:      n.File,
		Language:  n.Language,
		Kind:      n.Kind,
		Name:      n.Name,
		FQN:       n.FQN,
		Doc:       n.Doc,
		Signature: n.Signature,
		OwnerPath: append([]string{}, n.OwnerPath...),
		Neighbors: []model.Neighbor{},
		Tags:      Tags(n),
		Metrics:   model.Metrics{Params: CountParams(n.Signature)},
	}

	if len(lines) <= c.limits.MaxChunkLines && len(text) <= c.limits.MaxChunkChars {
		rec := base
		rec.ID = n.SymbolID
		rec.Snippet = text
		rec.Chunk = &model.ChunkMeta{Index: 1, Total: 1, ParentID: n.SymbolID}
		rec.Metrics.LOC = len(lines)
		rec.HashContent = ids.HashString(text)
		return []model.RagRecord{rec}
	}

	windows := c.windows(lines)
	out := make([]model.RagRecord, 0, len(windows))
	for i, w := range windows {
		rec := base
		rec.OwnerPath = append([]string{}, n.OwnerPath...)
		rec.Tags = append([]string{}, base.Tags...)
		rec.Neighbors = []model.Neighbor{}
		rec.ID = fmt.Sprintf("%s#c%d", n.SymbolID, i+1)
		rec.Snippet = w.text
		rec.Chunk = &model.ChunkMeta{Index: i + 1, Total: len(windows), ParentID: n.SymbolID}
		rec.Metrics.LOC = w.lines
		rec.HashContent = ids.HashString(w.text)
		out = append(out, rec)
	}
	return out
}

type window struct {
	text  string
	lines int
}

// windows slides a window of at most MaxChunkLines lines with stride
// MaxChunkLines-OverlapLines, giving ceil(lines/stride) windows. A window
// also stops before the line that would take it over MaxChunkChars and then
// strides from its own length; a single line longer than the cap is cut at a
// rune boundary. The stride is never below one line.
func (c *Chunker) windows(lines []string) []window {
	maxLines := c.limits.MaxChunkLines
	if maxLines < 1 {
		maxLines = 1
	}
	var out []window
	for start := 0; start < len(lines); {
		end := start
		size := 0
		charBound := false
		for end < len(lines) && end-start < maxLines {
			if end > start && size+len(lines[end]) > c.limits.MaxChunkChars {
				charBound = true
				break
			}
			size += len(lines[end])
			end++
		}
		text := strings.Join(lines[start:end], "")
		if len(text) > c.limits.MaxChunkChars {
			text = truncateRunes(text, c.limits.MaxChunkChars)
		}
		out = append(out, window{text: text, lines: end - start})

		stride := maxLines - c.limits.OverlapLines
		if charBound {
			stride = end - start - c.limits.OverlapLines
		}
		if stride < 1 {
			stride = 1
		}
		start += stride
	}
	return out
}

// textOf returns the node's full text. Missing files yield "".
func (c *Chunker) textOf(n model.AstNode) string {
	if n.Snippet != "" {
		return n.Snippet
	}
	data, ok := c.file(n.File)
	if !ok {
		return ""
	}
	if n.Span.IsZero() {
		return string(data)
	}
	start, end := n.Span.StartByte, n.Span.EndByte
	if start < 0 || start > len(data) || end < start {
		return ""
	}
	if end > len(data) {
		end = len(data)
	}
	return string(data[start:end])
}

func (c *Chunker) file(rel string) ([]byte, bool) {
	if f, ok := c.files.Get(rel); ok {
		return f.data, f.ok
	}
	data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(rel)))
	if err != nil {
		c.logger.Warn("chunk.file.unreadable", "path", rel, "err", err)
		c.files.Add(rel, cachedFile{})
		return nil, false
	}
	c.files.Add(rel, cachedFile{data: data, ok: true})
	return data, true
}

// splitLines keeps line terminators so windows concatenate back to the
// source.
func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	lines := strings.SplitAfter(text, "\n")
	if lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && s[cut]&0xC0 == 0x80 {
		cut--
	}
	return s[:cut]
}
