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
	"strings"

	"github.com/kraklabs/codegraph/pkg/model"
)

// extLanguages maps file extensions to the language they are extracted as.
var extLanguages = map[string]model.Language{
	".dart": model.LangDart,
	".rs":   model.LangRust,
	".ts":   model.LangTypeScript,
	".tsx":  model.LangTypeScript,
	".mts":  model.LangTypeScript,
	".cts":  model.LangTypeScript,
	".js":   model.LangJavaScript,
	".jsx":  model.LangJavaScript,
	".mjs":  model.LangJavaScript,
	".cjs":  model.LangJavaScript,
	".py":   model.LangPython,
	".pyi":  model.LangPython,
	".yaml": model.LangYAML,
	".yml":  model.LangYAML,
	".json": model.LangJSON,
	".toml": model.LangTOML,
	".md":   model.LangMarkdown,
}

// DetectLanguage returns the language for path from its extension alone.
func DetectLanguage(p string) (model.Language, bool) {
	lang, ok := extLanguages[strings.ToLower(path.Ext(p))]
	return lang, ok
}

// Linker families group languages that share one dependency-graph strategy.
const (
	FamilyDart       = "dart"
	FamilyRust       = "rust"
	FamilyTypeScript = "typescript"
	FamilyGeneric    = "generic"
)

// LinkerFamily returns the family whose linker handles lang.
func LinkerFamily(lang model.Language) string {
	switch lang {
	case model.LangDart:
		return FamilyDart
	case model.LangRust:
		return FamilyRust
	case model.LangTypeScript, model.LangJavaScript:
		return FamilyTypeScript
	default:
		return FamilyGeneric
	}
}

// generatedSegments mark directories holding generated sources.
var generatedSegments = []string{"gen/", "generated/"}

// generatedSuffixes per language flag generated files that are still indexed.
var generatedSuffixes = map[model.Language][]string{
	model.LangDart:       {".g.dart", ".freezed.dart", ".gr.dart"},
	model.LangTypeScript: {".generated.ts", ".gen.ts"},
	model.LangJavaScript: {".generated.js", ".gen.js"},
	model.LangPython:     {"_pb2.py", "_pb2_grpc.py"},
	model.LangRust:       {".generated.rs"},
}

// IsGeneratedPath applies the filename heuristics for generated code.
func IsGeneratedPath(lang model.Language, p string) bool {
	p = strings.ToLower(p)
	for _, suffix := range generatedSuffixes[lang] {
		if strings.HasSuffix(p, suffix) {
			return true
		}
	}
	for _, seg := range generatedSegments {
		if strings.HasPrefix(p, seg) || strings.Contains(p, "/"+seg) {
			return true
		}
	}
	return false
}
