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
	"path"
	"sort"
	"strings"
)

// maxSignatureLen bounds signature heads; anything longer is elided.
const maxSignatureLen = 320

// lineIndex maps byte offsets to 1-based line numbers.
type lineIndex struct {
	starts []int
	size   int
}

func newLineIndex(src []byte) lineIndex {
	starts := []int{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, i+1)
		}
	}
	return lineIndex{starts: starts, size: len(src)}
}

// lineOf returns the 1-based line containing offset.
func (li lineIndex) lineOf(offset int) int {
	if offset < 0 {
		offset = 0
	}
	return sort.Search(len(li.starts), func(i int) bool { return li.starts[i] > offset })
}

// lineStart returns the byte offset where 1-based line begins.
func (li lineIndex) lineStart(line int) int {
	if line < 1 {
		return 0
	}
	if line > len(li.starts) {
		return li.size
	}
	return li.starts[line-1]
}

// lineText returns line n without its terminator.
func (li lineIndex) lineText(src []byte, line int) string {
	if line < 1 || line > len(li.starts) {
		return ""
	}
	start := li.starts[line-1]
	end := li.size
	if line < len(li.starts) {
		end = li.starts[line] - 1
	}
	if end < start {
		return ""
	}
	return strings.TrimRight(string(src[start:end]), "\r")
}

// signatureHead truncates declaration text at the first terminator found at
// bracket depth zero, then collapses whitespace onto one line. Terminators
// inside parameter or index lists (named-parameter braces, default values)
// do not cut the head.
func signatureHead(text string, terminators ...string) string {
	depth := 0
	cut := len(text)
scan:
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '(', '[':
			depth++
			continue
		case ')', ']':
			if depth > 0 {
				depth--
			}
			continue
		}
		if depth > 0 {
			continue
		}
		for _, term := range terminators {
			if strings.HasPrefix(text[i:], term) {
				cut = i
				break scan
			}
		}
	}
	return clip(collapseSpace(text[:cut]), maxSignatureLen)
}

// dartLikeSignature applies the C-family terminators ; { =>.
func dartLikeSignature(text string) string {
	return signatureHead(text, ";", "{", "=>")
}

// collapseSpace joins all whitespace runs into single spaces.
func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !isRuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

func isRuneStart(b byte) bool {
	return b&0xC0 != 0x80
}

// docAbove collects the documentation comment immediately above line. A run of
// /// lines or a /** */ block qualifies; blank lines are tolerated inside the
// run, and the upward scan stops at the first other line.
func docAbove(src []byte, li lineIndex, line int) string {
	var collected []string
	for l := line - 1; l >= 1; l-- {
		text := strings.TrimSpace(li.lineText(src, l))
		switch {
		case text == "":
			continue
		case strings.HasPrefix(text, "///"):
			collected = append(collected, stripDocPrefix(text, "///"))
		case strings.HasSuffix(text, "*/"):
			block, top, ok := blockDocEndingAt(src, li, l)
			if !ok {
				return joinReversed(collected)
			}
			collected = append(collected, block...)
			l = top
		default:
			return joinReversed(collected)
		}
	}
	return joinReversed(collected)
}

// blockDocEndingAt reads a /** */ block whose last line is end, returning its
// content lines bottom-up and the first line of the block.
func blockDocEndingAt(src []byte, li lineIndex, end int) ([]string, int, bool) {
	var lines []string
	for l := end; l >= 1; l-- {
		text := strings.TrimSpace(li.lineText(src, l))
		open := strings.Index(text, "/*")
		if open >= 0 {
			if !strings.HasPrefix(text[open:], "/**") {
				return nil, 0, false
			}
			body := strings.TrimPrefix(text[open:], "/**")
			body = strings.TrimSuffix(body, "*/")
			if s := strings.TrimSpace(body); s != "" {
				lines = append(lines, s)
			}
			return lines, l, true
		}
		body := strings.TrimSuffix(text, "*/")
		body = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(body), "*"))
		lines = append(lines, body)
	}
	return nil, 0, false
}

// moduleDoc returns the leading contiguous run of lines starting with prefix.
func moduleDoc(src []byte, li lineIndex, prefix string) string {
	var out []string
	for l := 1; l <= len(li.starts); l++ {
		text := strings.TrimSpace(li.lineText(src, l))
		if text == "" && len(out) == 0 {
			continue
		}
		if strings.HasPrefix(text, "#!") && len(out) == 0 {
			continue
		}
		if !strings.HasPrefix(text, prefix) {
			break
		}
		out = append(out, stripDocPrefix(text, prefix))
	}
	return strings.Join(out, "\n")
}

func stripDocPrefix(line, prefix string) string {
	s := strings.TrimPrefix(line, prefix)
	return strings.TrimPrefix(s, " ")
}

func joinReversed(lines []string) string {
	// drop blank padding at either end of the block
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	out := make([]string, len(lines))
	for i, l := range lines {
		out[len(lines)-1-i] = l
	}
	return strings.Join(out, "\n")
}

// unquote strips Dart/JS/Python string delimiters and raw prefixes.
func unquote(s string) string {
	s = strings.TrimSpace(s)
	if t := strings.TrimLeft(s, "rRbBuUfF"); t != s && t != "" && strings.ContainsRune(`'"`, rune(t[0])) {
		s = t
	}
	for _, q := range []string{`'''`, `"""`, `'`, `"`, "`"} {
		if len(s) >= 2*len(q) && strings.HasPrefix(s, q) && strings.HasSuffix(s, q) {
			return s[len(q) : len(s)-len(q)]
		}
	}
	return s
}

// leadingUnderscorePrivate maps Dart and Python naming conventions.
func leadingUnderscorePrivate(name string) bool {
	last := name
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		last = name[i+1:]
	}
	return strings.HasPrefix(last, "_") && !(strings.HasPrefix(last, "__") && strings.HasSuffix(last, "__"))
}

// joinRelative resolves rel against the directory of from. It returns "" when
// the result escapes the repository root.
func joinRelative(from, rel string) string {
	joined := path.Join(path.Dir(from), rel)
	if joined == ".." || strings.HasPrefix(joined, "../") || strings.HasPrefix(joined, "/") {
		return ""
	}
	if joined == "." {
		return ""
	}
	return joined
}
