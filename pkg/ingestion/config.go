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
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
	"gopkg.in/yaml.v3"

	"github.com/kraklabs/codegraph/pkg/export"
	"github.com/kraklabs/codegraph/pkg/graph"
	"github.com/kraklabs/codegraph/pkg/model"
	"github.com/kraklabs/codegraph/pkg/rag"
)

// Config drives one pipeline run. It is loaded from YAML and validated before
// any file is read.
type Config struct {
	Scan      ScanConfig         `yaml:"scan"`
	Extract   ExtractConfig      `yaml:"extract"`
	Link      graph.Options      `yaml:"link"`
	Chunk     rag.Limits         `yaml:"chunk"`
	Neighbors rag.NeighborConfig `yaml:"neighbors"`
	Export    export.Options     `yaml:"export"`

	// Workers bounds parallel extraction and linking. Zero means one per CPU.
	Workers int `yaml:"workers"`
}

// ScanConfig controls which files the Scanner returns.
type ScanConfig struct {
	// CodeExtensions are extracted with a language grammar.
	CodeExtensions []string `yaml:"code_extensions"`

	// ConfigExtensions are config/markup files indexed as whole-file records.
	ConfigExtensions []string `yaml:"config_extensions"`

	// SkipDirs are directory names pruned anywhere in the tree.
	SkipDirs []string `yaml:"skip_dirs"`

	// GeneratedSuffixes exclude files whose name ends with one of them.
	GeneratedSuffixes []string `yaml:"generated_suffixes"`

	// ExcludeGlobs are matched against slash-separated repo-relative paths.
	ExcludeGlobs []string `yaml:"exclude_globs"`

	// RespectGitignore applies the root .gitignore.
	RespectGitignore bool `yaml:"respect_gitignore"`

	// MaxFileBytes rejects larger files before parsing.
	MaxFileBytes int64 `yaml:"max_file_bytes"`
}

// ExtractConfig is threaded into every extraction call.
type ExtractConfig struct {
	// SnippetContextLines extends declaration snippets upward to capture
	// leading comments and annotations.
	SnippetContextLines int `yaml:"snippet_context_lines"`

	// MaxSnippetBytes caps precomputed snippets. Larger declarations keep no
	// snippet and are sliced from the file by the chunker.
	MaxSnippetBytes int `yaml:"max_snippet_bytes"`

	// IncludeLocals also emits variables declared inside function bodies.
	IncludeLocals bool `yaml:"include_locals"`

	// FallbackRegex enables the additive text-pattern pass.
	FallbackRegex bool `yaml:"fallback_regex"`

	Diagnostics Diagnostics `yaml:"diagnostics"`
}

// Diagnostics controls per-call debugging output. Off by default.
type Diagnostics struct {
	// DumpTreeOnError attaches the S-expression of the parse tree to
	// extraction errors.
	DumpTreeOnError bool `yaml:"dump_tree_on_error"`

	// MaxDumpBytes truncates attached tree dumps.
	MaxDumpBytes int `yaml:"max_dump_bytes"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Scan: ScanConfig{
			CodeExtensions: []string{
				".dart", ".rs", ".ts", ".tsx", ".mts", ".cts",
				".js", ".jsx", ".mjs", ".cjs", ".py", ".pyi",
			},
			ConfigExtensions: []string{".yaml", ".yml", ".json", ".toml", ".md"},
			SkipDirs: []string{
				".git", ".hg", ".svn",
				"build", "dist", "target", "out",
				"node_modules", ".dart_tool", ".pub-cache", ".pub", "__pycache__", ".venv", "venv",
				".idea", ".vscode", ".gradle",
				export.DefaultOutputDir,
			},
			GeneratedSuffixes: []string{
				".min.js", ".min.mjs", ".bundle.js", ".chunk.js", ".map",
				"package-lock.json", "pubspec.lock", "Cargo.lock",
			},
			RespectGitignore: true,
			MaxFileBytes:     1 << 20,
		},
		Extract: ExtractConfig{
			SnippetContextLines: 0,
			MaxSnippetBytes:     32 * 1024,
			FallbackRegex:       true,
			Diagnostics: Diagnostics{
				MaxDumpBytes: 64 * 1024,
			},
		},
		Link:      graph.DefaultOptions(),
		Chunk:     rag.DefaultLimits(),
		Neighbors: rag.DefaultNeighborConfig(),
		Export:    export.DefaultOptions(),
	}
}

// ValidationError reports a rejected configuration value.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid config %s: %s", e.Field, e.Reason)
}

// Validate rejects zero or absurd limits.
func (c Config) Validate() error {
	checks := []struct {
		bad    bool
		field  string
		reason string
	}{
		{c.Scan.MaxFileBytes <= 0, "scan.max_file_bytes", "must be greater than zero"},
		{len(c.Scan.CodeExtensions)+len(c.Scan.ConfigExtensions) == 0, "scan.code_extensions", "no extensions configured"},
		{c.Extract.SnippetContextLines < 0 || c.Extract.SnippetContextLines > 50, "extract.snippet_context_lines", "must be between 0 and 50"},
		{c.Extract.MaxSnippetBytes <= 0, "extract.max_snippet_bytes", "must be greater than zero"},
		{c.Extract.Diagnostics.MaxDumpBytes < 0, "extract.diagnostics.max_dump_bytes", "must not be negative"},
		{c.Chunk.MaxChunkLines <= 0, "chunk.max_chunk_lines", "must be greater than zero"},
		{c.Chunk.MaxChunkChars <= 0, "chunk.max_chunk_chars", "must be greater than zero"},
		{c.Chunk.OverlapLines < 0 || c.Chunk.OverlapLines >= c.Chunk.MaxChunkLines, "chunk.overlap_lines", "must be at least 0 and below max_chunk_lines"},
		{c.Chunk.FileCacheSize <= 0, "chunk.file_cache_size", "must be greater than zero"},
		{c.Neighbors.MaxNeighbors < 0, "neighbors.max_neighbors", "must not be negative"},
		{c.Neighbors.DeclaresHops < 1 || c.Neighbors.DeclaresHops > 8, "neighbors.declares_hops", "must be between 1 and 8"},
		{c.Link.SameFileMaxNodes < 0, "link.same_file_max_nodes", "must not be negative"},
		{c.Workers < 0, "workers", "must not be negative"},
		{c.Export.OutputDir == "" || strings.ContainsAny(c.Export.OutputDir, `/\`), "export.output_dir", "must be a single directory name"},
	}
	for _, chk := range checks {
		if chk.bad {
			return &ValidationError{Field: chk.field, Reason: chk.reason}
		}
	}

	for _, l := range c.Neighbors.EdgeLabels {
		if _, ok := model.ParseEdgeLabel(string(l)); !ok {
			return &ValidationError{Field: "neighbors.edge_labels", Reason: fmt.Sprintf("unknown edge label %q", l)}
		}
	}
	for _, pattern := range c.Scan.ExcludeGlobs {
		if _, err := glob.Compile(pattern, '/'); err != nil {
			return &ValidationError{Field: "scan.exclude_globs", Reason: fmt.Sprintf("pattern %q: %v", pattern, err)}
		}
	}
	return nil
}

// LoadConfigFile reads a YAML config on top of DefaultConfig. A missing file
// yields the defaults. The result is not validated.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// envOverrides lists the environment variables that override integer limits.
var envOverrides = []struct {
	name  string
	apply func(c *Config, v int)
}{
	{"CODEGRAPH_MAX_FILE_BYTES", func(c *Config, v int) { c.Scan.MaxFileBytes = int64(v) }},
	{"CODEGRAPH_MAX_CHUNK_LINES", func(c *Config, v int) { c.Chunk.MaxChunkLines = v }},
	{"CODEGRAPH_MAX_CHUNK_CHARS", func(c *Config, v int) { c.Chunk.MaxChunkChars = v }},
	{"CODEGRAPH_OVERLAP_LINES", func(c *Config, v int) { c.Chunk.OverlapLines = v }},
	{"CODEGRAPH_MAX_NEIGHBORS", func(c *Config, v int) { c.Neighbors.MaxNeighbors = v }},
	{"CODEGRAPH_WORKERS", func(c *Config, v int) { c.Workers = v }},
}

// ApplyEnv overrides limits from CODEGRAPH_* environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	for _, o := range envOverrides {
		raw, ok := lookup(o.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		v, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return &ValidationError{Field: o.name, Reason: fmt.Sprintf("not an integer: %q", raw)}
		}
		o.apply(c, v)
	}
	return nil
}

// ExtractOptions returns the per-call extraction options.
func (c Config) ExtractOptions() ExtractOptions {
	return ExtractOptions(c.Extract)
}
