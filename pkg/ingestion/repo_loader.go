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
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/kraklabs/codegraph/pkg/ids"
	"github.com/kraklabs/codegraph/pkg/model"
)

// Skip reasons reported in ScanResult.SkipReasons.
const (
	SkipExcludedDir     = "excluded_dir"
	SkipExcludedGlob    = "excluded_glob"
	SkipGitignore       = "gitignore"
	SkipGenerated       = "generated"
	SkipTooLarge        = "too_large"
	SkipUnreadable      = "unreadable"
	SkipUnknownLanguage = "unknown_language"
)

// ScannedFile is one matched file. Language is empty when the extension was
// allow-listed but no grammar is known for it.
type ScannedFile struct {
	Path     string // repo-relative, slash separated
	FullPath string
	Size     int64
	Language model.Language
}

// ScanResult summarizes one walk of a repository.
type ScanResult struct {
	Root        string
	Files       []ScannedFile
	TotalSize   int64
	Languages   map[model.Language]int
	SkipReasons map[string]int
}

// Scanner walks a repository root and returns the files worth extracting.
type Scanner struct {
	cfg      ScanConfig
	logger   *slog.Logger
	allowed  map[string]bool
	skipDirs map[string]bool
	excludes []glob.Glob
}

// NewScanner compiles the scan configuration.
func NewScanner(cfg ScanConfig, logger *slog.Logger) (*Scanner, error) {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Scanner{
		cfg:      cfg,
		logger:   logger,
		allowed:  make(map[string]bool),
		skipDirs: make(map[string]bool),
	}
	for _, ext := range append(append([]string(nil), cfg.CodeExtensions...), cfg.ConfigExtensions...) {
		s.allowed[strings.ToLower(ext)] = true
	}
	for _, d := range cfg.SkipDirs {
		s.skipDirs[d] = true
	}
	for _, pattern := range cfg.ExcludeGlobs {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			return nil, fmt.Errorf("compile exclude glob %q: %w", pattern, err)
		}
		s.excludes = append(s.excludes, g)
	}
	return s, nil
}

// Scan walks root. Unreadable entries are logged and skipped; only a missing
// or non-directory root is an error. Files are returned sorted by path.
func (s *Scanner) Scan(ctx context.Context, root string) (*ScanResult, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("stat root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root is not a directory: %s", absRoot)
	}

	s.logger.Info("scan.start", "root", absRoot)

	var gi *ignore.GitIgnore
	if s.cfg.RespectGitignore {
		gi = loadGitignore(absRoot)
	}

	result := &ScanResult{
		Root:        absRoot,
		Languages:   make(map[model.Language]int),
		SkipReasons: make(map[string]int),
	}

	walkErr := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			s.logger.Warn("scan.walk.error", "path", path, "err", err)
			result.SkipReasons[SkipUnreadable]++
			if d != nil && d.IsDir() && path != absRoot {
				return filepath.SkipDir
			}
			return nil
		}
		if path == absRoot {
			return nil
		}

		rel, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}
		rel = ids.NormalizePath(rel)

		if d.IsDir() {
			if s.skipDirs[d.Name()] {
				result.SkipReasons[SkipExcludedDir]++
				return filepath.SkipDir
			}
			if gi != nil && gi.MatchesPath(rel+"/") {
				result.SkipReasons[SkipGitignore]++
				return filepath.SkipDir
			}
			return nil
		}
		if d.Type()&fs.ModeSymlink != 0 || !d.Type().IsRegular() {
			return nil
		}

		if reason, skip := s.skipFile(rel, gi); skip {
			if reason != "" {
				result.SkipReasons[reason]++
			}
			return nil
		}

		fi, err := d.Info()
		if err != nil {
			s.logger.Warn("scan.stat.error", "path", rel, "err", err)
			result.SkipReasons[SkipUnreadable]++
			return nil
		}
		if fi.Size() > s.cfg.MaxFileBytes {
			s.logger.Warn("scan.skip_large_file", "path", rel, "size", fi.Size(), "limit", s.cfg.MaxFileBytes)
			result.SkipReasons[SkipTooLarge]++
			return nil
		}

		lang, _ := DetectLanguage(rel)
		if lang == "" {
			result.SkipReasons[SkipUnknownLanguage]++
		} else {
			result.Languages[lang]++
		}
		result.Files = append(result.Files, ScannedFile{
			Path:     rel,
			FullPath: path,
			Size:     fi.Size(),
			Language: lang,
		})
		result.TotalSize += fi.Size()
		return nil
	})
	if walkErr != nil {
		return nil, fmt.Errorf("walk repository: %w", walkErr)
	}

	sort.Slice(result.Files, func(i, j int) bool {
		return result.Files[i].Path < result.Files[j].Path
	})

	s.logger.Info("scan.complete",
		"files", len(result.Files),
		"total_size", result.TotalSize,
		"languages", result.Languages,
		"skipped", result.SkipReasons,
	)
	return result, nil
}

// skipFile applies the per-file filters. An empty reason means the file was
// simply not of interest (extension not allow-listed).
func (s *Scanner) skipFile(rel string, gi *ignore.GitIgnore) (string, bool) {
	name := filepath.Base(rel)
	ext := strings.ToLower(filepath.Ext(name))
	if !s.allowed[ext] {
		return "", true
	}
	for _, suffix := range s.cfg.GeneratedSuffixes {
		if strings.HasSuffix(name, suffix) {
			return SkipGenerated, true
		}
	}
	for _, g := range s.excludes {
		if g.Match(rel) {
			return SkipExcludedGlob, true
		}
	}
	if gi != nil && gi.MatchesPath(rel) {
		return SkipGitignore, true
	}
	return "", false
}

func loadGitignore(root string) *ignore.GitIgnore {
	gi, err := ignore.CompileIgnoreFile(filepath.Join(root, ".gitignore"))
	if err != nil {
		return nil
	}
	return gi
}

// ReadSource reads a scanned file, re-checking the size limit since the file
// may have grown after the walk.
func ReadSource(f ScannedFile, maxBytes int64) ([]byte, error) {
	data, err := os.ReadFile(f.FullPath)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", f.Path, err)
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("read %s: %d bytes exceeds limit %d", f.Path, len(data), maxBytes)
	}
	return data, nil
}
