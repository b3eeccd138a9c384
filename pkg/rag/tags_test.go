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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kraklabs/codegraph/pkg/model"
)

func TestTags(t *testing.T) {
	tests := []struct {
		name string
		node model.AstNode
		want []string
	}{
		{
			name: "plain class",
			node: model.AstNode{Kind: model.KindClass, Language: model.LangDart, File: "lib/a.dart"},
			want: []string{"class", "dart"},
		},
		{
			name: "generated private documented",
			node: model.AstNode{
				Kind: model.KindField, Language: model.LangDart, File: "lib/a.g.dart",
				IsGenerated: true, Visibility: model.VisibilityPrivate, Doc: "x",
			},
			want: []string{"dart", "documented", "field", "generated", "private"},
		},
		{
			name: "test_ prefix",
			node: model.AstNode{Kind: model.KindFunction, Language: model.LangPython, File: "pkg/test_util.py"},
			want: []string{"function", "python", "test"},
		},
		{
			name: "test directory",
			node: model.AstNode{Kind: model.KindFile, Language: model.LangDart, File: "test/widget_test.dart"},
			want: []string{"dart", "file", "test"},
		},
		{
			name: "spec file",
			node: model.AstNode{Kind: model.KindFile, Language: model.LangTypeScript, File: "src/app.spec.ts"},
			want: []string{"file", "test", "typescript"},
		},
		{
			name: "config",
			node: model.AstNode{Kind: model.KindFile, Language: model.LangYAML, File: "pubspec.yaml"},
			want: []string{"config", "file", "yaml"},
		},
		{
			name: "docs",
			node: model.AstNode{Kind: model.KindFile, Language: model.LangMarkdown, File: "README.md"},
			want: []string{"docs", "file", "markdown"},
		},
		{
			name: "deprecated import",
			node: model.AstNode{
				Kind: model.KindImport, Language: model.LangDart, File: "lib/a.dart",
				Annotations: []model.Annotation{{Name: "Deprecated", Value: "'use b'"}},
			},
			want: []string{"dart", "deprecated", "directive", "import"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tags(tt.node))
		})
	}
}

func TestCountParams(t *testing.T) {
	tests := []struct {
		sig  string
		want int
	}{
		{"", 0},
		{"class A", 0},
		{"void f()", 0},
		{"void f(int a)", 1},
		{"void f(int a, String b)", 2},
		{"void f(int a, {String? b, required int c})", 3},
		{"void f(int a, [int b = 1])", 2},
		{"fn map<F: Fn(u8) -> u8>(f: F, xs: Vec<(u8, u8)>) -> Vec<u8>", 2},
		{"fn get(&self, key: &str) -> Option<&V>", 2},
		{"def f(self, *args, **kwargs)", 3},
		{"function f(a: Map<string, number>, cb: (x: number) => void)", 2},
		{"void f(int a,)", 1},
	}
	for _, tt := range tests {
		t.Run(tt.sig, func(t *testing.T) {
			assert.Equal(t, tt.want, CountParams(tt.sig))
		})
	}
}
