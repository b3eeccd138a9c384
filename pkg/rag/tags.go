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

package rag

import (
	"path"
	"sort"
	"strings"

	"github.com/kraklabs/codegraph/pkg/model"
)

// Tags derives retrieval tags from a node's kind, path and flags.
func Tags(n model.AstNode) []string {
	set := map[string]bool{
		strings.ToLower(string(n.Kind)): true,
	}
	if n.Language != "" {
		set[string(n.Language)] = true
	}
	if isTestPath(n.File) {
		set["test"] = true
	}
	if n.IsGenerated {
		set["generated"] = true
	}
	switch n.Language {
	case model.LangYAML, model.LangJSON, model.LangTOML:
		set["config"] = true
	case model.LangMarkdown:
		set["docs"] = true
	}
	if n.Kind.IsDirective() {
		set["directive"] = true
	}
	if n.Visibility == model.VisibilityPrivate {
		set["private"] = true
	}
	if n.Doc != "" {
		set["documented"] = true
	}
	for _, a := range n.Annotations {
		if strings.EqualFold(a.Name, "deprecated") {
			set["deprecated"] = true
		}
	}

	tags := make([]string, 0, len(set))
	for t := range set {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}

// isTestPath applies the common test naming conventions of the supported
// languages.
func isTestPath(p string) bool {
	p = strings.ToLower(p)
	base := path.Base(p)
	for _, seg := range []string{"test/", "tests/", "__tests__/", "spec/"} {
		if strings.HasPrefix(p, seg) || strings.Contains(p, "/"+seg) {
			return true
		}
	}
	stem := strings.TrimSuffix(base, path.Ext(base))
	return strings.HasSuffix(stem, "_test") ||
		strings.HasSuffix(stem, ".test") ||
		strings.HasSuffix(stem, ".spec") ||
		strings.HasPrefix(stem, "test_")
}

// CountParams counts the parameters in the first parameter list of a
// signature. Named and optional groups ({...}, [...]) are flattened; nested
// parentheses and generic arguments are not split.
func CountParams(signature string) int {
	open := paramsOpen(signature)
	if open < 0 {
		return 0
	}
	depth := 0
	count := 0
	seen := false
	for i := open + 1; i < len(signature); i++ {
		ch := signature[i]
		switch ch {
		case '(', '<':
			depth++
		case ')':
			if depth == 0 {
				if seen {
					count++
				}
				return count
			}
			depth--
		case '>':
			if depth > 0 && signature[i-1] != '=' && signature[i-1] != '-' {
				depth--
			}
		case ',':
			if depth == 0 {
				if seen {
					count++
				}
				seen = false
				continue
			}
		}
		if depth == 0 && ch != ' ' && ch != '\t' && ch != '{' && ch != '}' && ch != '[' && ch != ']' && ch != ',' {
			seen = true
		}
	}
	return count
}

// paramsOpen finds the parenthesis opening the parameter list, skipping
// parentheses inside leading generic bounds such as <F: Fn(u8)>.
func paramsOpen(signature string) int {
	angle := 0
	for i := 0; i < len(signature); i++ {
		switch signature[i] {
		case '<':
			angle++
		case '>':
			if angle > 0 && signature[i-1] != '-' && signature[i-1] != '=' {
				angle--
			}
		case '(':
			if angle == 0 {
				return i
			}
		}
	}
	// unbalanced, e.g. operator <
	return strings.IndexByte(signature, '(')
}
