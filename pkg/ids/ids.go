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

// Package ids derives the deterministic identifiers and content hashes used
// across the pipeline.
//
// Identifiers are name-based UUIDs (SHA-1, RFC 4122 version 5) computed over a
// composite key under a fixed namespace, so the same logical input yields the
// same identifier on every run and every machine. Vector stores upsert by these
// identifiers, which is what makes re-ingestion idempotent.
package ids

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/google/uuid"
)

// Namespace is the fixed UUID namespace for every identifier this package
// produces. Changing it changes every identifier ever emitted.
var Namespace = uuid.MustParse("6f1c2b9e-4d0a-5b7e-9c3f-2a8d1e4b7c60")

// keySep separates composite key components. The unit separator cannot occur
// in paths or identifiers, so distinct component tuples never share a key.
const keySep = "\x1f"

// FileID returns the identifier of a file within a language.
func FileID(language, path string) string {
	key := strings.Join([]string{"file", language, NormalizePath(path)}, keySep)
	return uuid.NewSHA1(Namespace, []byte(key)).String()
}

// SymbolID returns the identifier of a symbol. Every argument participates in
// the key: moving, renaming or re-kinding a symbol yields a new identifier.
func SymbolID(language, file string, startByte, endByte int, name, kind string) string {
	key := strings.Join([]string{
		"symbol",
		language,
		NormalizePath(file),
		strconv.Itoa(startByte),
		strconv.Itoa(endByte),
		name,
		kind,
	}, keySep)
	return uuid.NewSHA1(Namespace, []byte(key)).String()
}

// HashContent returns a fast non-cryptographic 64-bit hash of b as 16
// lowercase hex digits. Suitable for change detection only.
func HashContent(b []byte) string {
	return fmt.Sprintf("%016x", xxhash.Sum64(b))
}

// HashString is HashContent for strings without a copy.
func HashString(s string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(s))
}

// NormalizePath returns a repo-relative, slash-separated, cleaned path:
//   - leading ./ removed
//   - separators converted to forward slashes
//   - redundant separators and dot segments cleaned
//   - leading slash removed
func NormalizePath(path string) string {
	path = filepath.ToSlash(path)
	path = strings.TrimPrefix(path, "./")
	path = filepath.ToSlash(filepath.Clean(filepath.FromSlash(path)))
	path = strings.TrimLeft(path, "/")
	if path == "." {
		return ""
	}
	return path
}
