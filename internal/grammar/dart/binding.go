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

// Package dart is the tree-sitter Dart grammar for the smacker runtime.
//
// The tables come from github.com/UserNobody14/tree-sitter-dart at be07cf7118d3
// (MIT, see LICENSE). Upstream generates them for language ABI 15, which the
// runtime rejects, so parser.c is re-emitted at ABI 14: the supertype tables,
// language name and metadata are dropped and lex modes lose the reserved word
// set id (the grammar declares no reserved words). The parse tables are
// unchanged.
package dart

//#include "parser.h"
//TSLanguage *tree_sitter_dart();
import "C"
import (
	"unsafe"

	sitter "github.com/smacker/go-tree-sitter"
)

func GetLanguage() *sitter.Language {
	ptr := unsafe.Pointer(C.tree_sitter_dart())
	return sitter.NewLanguage(ptr)
}
